// Package pingsweep decides whether a single host is reachable.
//
// Two probers are provided:
//   - ICMPProber sends one ICMP echo request per probe on its own socket,
//     using a raw socket when privileged and an unprivileged ICMP datagram
//     socket otherwise
//   - CommandProber runs the system ping utility
//
// NewProber picks the ICMP prober when a socket can be opened and falls back
// to the ping command.
//
// Example usage:
//
//	prober, err := pingsweep.NewProber(pingsweep.ModeAuto)
//	alive := prober.Probe(ctx, netip.MustParseAddr("192.168.1.1"), time.Second)
//
// Every failure (timeout, permission error, malformed reply) is reported as
// "not reachable". Probes share no state and are safe to run concurrently.
//
// Limitations:
// - Hosts with ICMP disabled or firewalled will not respond
// - Some networks may rate-limit ICMP traffic
package pingsweep
