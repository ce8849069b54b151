// Package netrange parses network specifications and expands them into the
// ordered set of usable IPv4 host addresses.
//
// Accepted input forms:
//   - "192.168.1.0/24" or "192.168.1.9/255.255.255.0": CIDR, host bits cleared
//   - "192.168.1": shorthand for 192.168.1.0/24
//   - "192.168.1.9": the /24 containing the address
//
// Example usage:
//
//	spec, err := netrange.Parse("10.0.0")
//	addrs, err := netrange.EnumerateLimit(spec, netrange.DefaultMaxHosts)
//
// Enumeration drops the network and broadcast addresses except for /31 and
// /32 ranges, which are returned whole.
package netrange
