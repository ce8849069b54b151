package netrange

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/projectdiscovery/mapcidr"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/common"
	"github.com/projectdiscovery/netscan/pkg/types"
)

var (
	// ErrInvalidNetworkFormat is returned for network text that is neither a
	// CIDR nor one of the accepted shorthands
	ErrInvalidNetworkFormat = errors.New("invalid network format")
	// ErrNoNetwork is returned by Parse for empty input; callers fall back to
	// local network detection
	ErrNoNetwork = errors.New("no network specified")
	// ErrRangeTooLarge is returned when a range exceeds the configured host cap
	ErrRangeTooLarge = errors.New("network range too large")
)

// DefaultMaxHosts caps enumeration at a /16
const DefaultMaxHosts = 65536

var (
	threeGroups = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	fourGroups  = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)
)

// Parse interprets user supplied network text:
//   - "a.b.c.d/n" or "a.b.c.d/m.m.m.m" is a CIDR, host bits are cleared
//   - "a.b.c" is a /24 anchored at a.b.c.0
//   - "a.b.c.d" is the /24 containing that address
func Parse(text string) (types.NetworkSpec, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return types.NetworkSpec{}, ErrNoNetwork
	case strings.Contains(text, "/"):
		addr, suffix, _ := strings.Cut(text, "/")
		if strings.Contains(suffix, ".") {
			spec, err := FromAddressAndMask(addr, suffix)
			if err != nil {
				return types.NetworkSpec{}, fmt.Errorf("%w: %s", ErrInvalidNetworkFormat, text)
			}
			return spec, nil
		}
		return parseCIDR(text)
	case threeGroups.MatchString(text):
		return parseCIDR(text + ".0/24")
	case fourGroups.MatchString(text):
		return parseCIDR(text + "/24")
	default:
		return types.NetworkSpec{}, fmt.Errorf("%w: %s", ErrInvalidNetworkFormat, text)
	}
}

func parseCIDR(cidr string) (types.NetworkSpec, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return types.NetworkSpec{}, fmt.Errorf("%w: %s", ErrInvalidNetworkFormat, cidr)
	}
	spec, err := types.NewNetworkSpec(prefix)
	if err != nil {
		return types.NetworkSpec{}, fmt.Errorf("%w: %s", ErrInvalidNetworkFormat, cidr)
	}
	return spec, nil
}

// FromAddressAndMask builds the network containing ip for a dotted
// ("255.255.255.0") or hex ("0xffffff00") subnet mask.
func FromAddressAndMask(ip, mask string) (types.NetworkSpec, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return types.NetworkSpec{}, fmt.Errorf("invalid address %q: %w", ip, err)
	}
	bits, err := maskBits(strings.TrimSpace(mask))
	if err != nil {
		return types.NetworkSpec{}, err
	}
	return types.NewNetworkSpec(netip.PrefixFrom(addr.Unmap(), bits))
}

func maskBits(mask string) (int, error) {
	var raw net.IPMask
	if strings.HasPrefix(mask, "0x") || strings.HasPrefix(mask, "0X") {
		value, err := strconv.ParseUint(mask[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid hex mask %q: %w", mask, err)
		}
		raw = make(net.IPMask, 4)
		binary.BigEndian.PutUint32(raw, uint32(value))
	} else {
		parsed := net.ParseIP(mask).To4()
		if parsed == nil {
			return 0, fmt.Errorf("invalid mask %q", mask)
		}
		raw = net.IPMask(parsed)
	}
	ones, bits := raw.Size()
	if bits == 0 {
		return 0, fmt.Errorf("non-contiguous mask %q", mask)
	}
	return ones, nil
}

// Enumerate expands spec into its usable host addresses in ascending order.
// Network and broadcast addresses are dropped unless the range has two or
// fewer addresses, in which case every address is usable.
func Enumerate(spec types.NetworkSpec) ([]netip.Addr, error) {
	if !spec.IsValid() {
		return nil, fmt.Errorf("%w: empty network", ErrInvalidNetworkFormat)
	}

	prefix := spec.Prefix()
	if spec.Size() <= 2 {
		addrs := []netip.Addr{prefix.Addr()}
		if spec.Size() == 2 {
			addrs = append(addrs, prefix.Addr().Next())
		}
		return addrs, nil
	}

	// Streamed so no intermediate list of address strings is held
	cidr := spec.String()
	ips, err := mapcidr.IPAddressesAsStream(cidr)
	if err != nil {
		return nil, fmt.Errorf("failed to expand CIDR %s: %w", cidr, err)
	}

	addrs := make([]netip.Addr, 0, spec.UsableHosts())
	for ipStr := range ips {
		addr, err := netip.ParseAddr(ipStr)
		if err != nil {
			continue
		}
		addr = addr.Unmap()

		// Skip network and broadcast addresses
		if common.IsNetworkOrBroadcast(addr, prefix) {
			continue
		}
		addrs = append(addrs, addr)
	}
	slices.SortFunc(addrs, netip.Addr.Compare)
	return slices.Compact(addrs), nil
}

// EnumerateLimit is Enumerate with a cap on the number of usable hosts.
// The cap is checked before expansion; maxHosts <= 0 disables it.
func EnumerateLimit(spec types.NetworkSpec, maxHosts int) ([]netip.Addr, error) {
	if maxHosts > 0 && spec.UsableHosts() > uint64(maxHosts) {
		return nil, fmt.Errorf("%w: %s has %d hosts, limit is %d", ErrRangeTooLarge, spec, spec.UsableHosts(), maxHosts)
	}
	return Enumerate(spec)
}
