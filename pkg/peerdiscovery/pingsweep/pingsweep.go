package pingsweep

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"net/netip"
	"time"

	"github.com/projectdiscovery/gologger"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const (
	// DefaultTimeout matches the ping utility's one second wait
	DefaultTimeout = time.Second
	// MaxTimeout bounds a single probe including process or socket overhead
	MaxTimeout = 2 * time.Second
)

// Probe modes accepted by NewProber
const (
	ModeAuto    = "auto"
	ModeICMP    = "icmp"
	ModeCommand = "command"
)

// Prober checks whether one address answers
type Prober interface {
	Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) bool
}

// ProberFunc adapts a function to the Prober interface
type ProberFunc func(ctx context.Context, addr netip.Addr, timeout time.Duration) bool

// Probe calls f
func (f ProberFunc) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) bool {
	return f(ctx, addr, timeout)
}

// NewProber returns a prober for mode. In auto mode the ICMP prober is used
// when a socket can be opened, otherwise the ping command.
func NewProber(mode string) (Prober, error) {
	switch mode {
	case ModeICMP:
		return NewICMPProber()
	case ModeCommand:
		return &CommandProber{}, nil
	case ModeAuto, "":
		prober, err := NewICMPProber()
		if err != nil {
			gologger.Verbose().Msgf("icmp sockets unavailable (%v), falling back to ping command", err)
			return &CommandProber{}, nil
		}
		return prober, nil
	default:
		return nil, fmt.Errorf("unknown probe mode %q", mode)
	}
}

// clampTimeout keeps a probe timeout within (0, MaxTimeout]
func clampTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	if timeout > MaxTimeout {
		return MaxTimeout
	}
	return timeout
}

// ICMPProber sends ICMP echo requests, one socket per probe
type ICMPProber struct {
	network    string
	privileged bool
}

// NewICMPProber checks that an ICMP socket can be opened. Raw sockets are
// used when the process is privileged, datagram ICMP sockets otherwise.
func NewICMPProber() (*ICMPProber, error) {
	candidates := []string{"udp4"}
	if canOpenRawSocket() {
		candidates = []string{"ip4:icmp", "udp4"}
	}

	var lastErr error
	for _, network := range candidates {
		conn, err := icmp.ListenPacket(network, "0.0.0.0")
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return &ICMPProber{network: network, privileged: network == "ip4:icmp"}, nil
	}
	return nil, fmt.Errorf("failed to open icmp socket: %w", lastErr)
}

// Probe sends a single echo request and waits for the matching reply
func (p *ICMPProber) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) bool {
	addr = addr.Unmap()
	if !addr.Is4() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, clampTimeout(timeout))
	defer cancel()

	conn, err := icmp.ListenPacket(p.network, "0.0.0.0")
	if err != nil {
		gologger.Debug().Msgf("probe %s: failed to open icmp socket: %v", addr, err)
		return false
	}
	defer func() {
		_ = conn.Close()
	}()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return false
	}
	// Unblock the read when the caller cancels
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	id := rand.IntN(0xffff) + 1
	seq := rand.IntN(0xffff) + 1
	if err := sendPing(conn, addr, id, seq, p.privileged); err != nil {
		gologger.Debug().Msgf("probe %s: %v", addr, err)
		return false
	}
	return awaitReply(conn, addr, id, seq, p.privileged)
}

// sendPing sends an ICMP echo request
func sendPing(conn *icmp.PacketConn, addr netip.Addr, id, seq int, privileged bool) error {
	msg := &icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: []byte("HELLO-R-U-THERE"),
		},
	}

	msgBytes, err := msg.Marshal(nil)
	if err != nil {
		return fmt.Errorf("failed to marshal ICMP message: %w", err)
	}

	var dst net.Addr = &net.UDPAddr{IP: addr.AsSlice()}
	if privileged {
		dst = &net.IPAddr{IP: addr.AsSlice()}
	}
	_, err = conn.WriteTo(msgBytes, dst)
	return err
}

// awaitReply reads until the matching echo reply arrives or the deadline passes.
// Datagram sockets have their echo id rewritten by the kernel, so only raw
// sockets match on it.
func awaitReply(conn *icmp.PacketConn, addr netip.Addr, id, seq int, privileged bool) bool {
	protocol := ipv4.ICMPTypeEchoReply.Protocol()
	reply := make([]byte, 1500)

	for {
		n, peer, err := conn.ReadFrom(reply)
		if err != nil {
			// Deadline or closed socket
			return false
		}

		if !peerMatches(peer, addr) {
			continue
		}

		rm, err := icmp.ParseMessage(protocol, reply[:n])
		if err != nil {
			continue
		}
		if rm.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		echo, ok := rm.Body.(*icmp.Echo)
		if !ok {
			continue
		}
		if echo.Seq != seq {
			continue
		}
		if privileged && echo.ID != id {
			continue
		}
		return true
	}
}

func peerMatches(peer net.Addr, addr netip.Addr) bool {
	var ip net.IP
	switch p := peer.(type) {
	case *net.IPAddr:
		ip = p.IP
	case *net.UDPAddr:
		ip = p.IP
	default:
		return false
	}
	got, ok := netip.AddrFromSlice(ip)
	return ok && got.Unmap() == addr
}
