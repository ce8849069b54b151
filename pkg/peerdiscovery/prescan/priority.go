package prescan

import "net/netip"

// PrioritizedAddr holds an address and its priority score (0-100)
type PrioritizedAddr struct {
	Addr     netip.Addr
	Priority int
}

// CalculatePriority returns priority score (0-100) for an address in a network.
// Higher scores mean more likely to be online. Non-IPv4 addresses use the
// default priority.
func CalculatePriority(addr netip.Addr, prefix netip.Prefix) int {
	if !prefix.IsValid() {
		return PriorityTier6
	}

	if addr.Unmap().Is4() {
		return calculateIPv4Priority(addr.Unmap(), prefix)
	}

	return PriorityTier6
}
