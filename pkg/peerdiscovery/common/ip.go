package common

import "net/netip"

// IsNetworkOrBroadcast checks if an address is the network or broadcast address
// of prefix. Ranges of two or fewer addresses have neither.
func IsNetworkOrBroadcast(addr netip.Addr, prefix netip.Prefix) bool {
	if !prefix.IsValid() || !addr.Is4() {
		return false
	}
	if prefix.Bits() >= 31 {
		return false
	}

	// Check if address equals network address
	if addr == prefix.Masked().Addr() {
		return true
	}

	return addr == Broadcast(prefix)
}

// Broadcast returns the highest address of an IPv4 prefix.
func Broadcast(prefix netip.Prefix) netip.Addr {
	network := prefix.Masked().Addr().As4()
	hostBits := 32 - prefix.Bits()
	value := uint32(network[0])<<24 | uint32(network[1])<<16 | uint32(network[2])<<8 | uint32(network[3])
	if hostBits > 0 {
		value |= uint32(1)<<uint(hostBits) - 1
	}
	return netip.AddrFrom4([4]byte{byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value)})
}

// LastOctet returns the final byte of an IPv4 address, or -1 for other families.
func LastOctet(addr netip.Addr) int {
	addr = addr.Unmap()
	if !addr.Is4() {
		return -1
	}
	return int(addr.As4()[3])
}
