package prescan

import (
	"net/netip"
	"slices"
)

// Prioritize returns a copy of addrs sorted by priority (high to low), then
// by address for stable ordering.
func Prioritize(addrs []netip.Addr, prefix netip.Prefix) []netip.Addr {
	prioritized := make([]PrioritizedAddr, 0, len(addrs))
	for _, addr := range addrs {
		prioritized = append(prioritized, PrioritizedAddr{
			Addr:     addr,
			Priority: CalculatePriority(addr, prefix),
		})
	}

	slices.SortStableFunc(prioritized, func(a, b PrioritizedAddr) int {
		if a.Priority != b.Priority {
			return b.Priority - a.Priority
		}
		return a.Addr.Compare(b.Addr)
	})

	result := make([]netip.Addr, 0, len(prioritized))
	for _, p := range prioritized {
		result = append(result, p.Addr)
	}
	return result
}
