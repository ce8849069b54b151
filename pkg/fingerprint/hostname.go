package fingerprint

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	mdnsPort    = "5353"
	mdnsTimeout = 500 * time.Millisecond
)

var errNoName = errors.New("no name for address")

// firstName returns the first usable name, trimmed of its trailing dot.
// A name equal to the literal address is not a hostname.
func firstName(addr netip.Addr, names []string) (string, error) {
	for _, name := range names {
		name = strings.TrimSuffix(strings.TrimSpace(name), ".")
		if name == "" || name == addr.String() {
			continue
		}
		return name, nil
	}
	return "", errNoName
}

// queryMDNS asks the host itself for its name with a unicast mDNS PTR query
func queryMDNS(ctx context.Context, addr netip.Addr) (string, error) {
	reverse, err := dns.ReverseAddr(addr.String())
	if err != nil {
		return "", err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(reverse, dns.TypePTR)
	msg.RecursionDesired = false

	ctx, cancel := context.WithTimeout(ctx, mdnsTimeout)
	defer cancel()

	client := &dns.Client{Net: "udp", Timeout: mdnsTimeout}
	resp, _, err := client.ExchangeContext(ctx, msg, net.JoinHostPort(addr.String(), mdnsPort))
	if err != nil {
		return "", err
	}

	var names []string
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			names = append(names, ptr.Ptr)
		}
	}
	return firstName(addr, names)
}
