// Package prescan orders host addresses so the ones most likely to be online
// are probed first, based on real-world allocation patterns. Ordering only
// affects dispatch; it never drops addresses.
//
// Priority tiers (0-100):
//   - 100: .1, .254 (routers/gateways - always check these first)
//   - 90:  .2-.5, .250-.253 (reserved infrastructure)
//   - 80:  .6-.10 (early DHCP - devices that connect first)
//   - 70:  .50, .100, .150 (DHCP peaks - common allocation points)
//   - 50:  .51-.99, .101-.149, .151-.200 (main DHCP pool)
//   - 20:  .11-.49, .201-.249 (long-tail, lower probability)
//   - 0:   .0, .255 (network/broadcast)
//
// Example:
//
//	ordered := prescan.Prioritize(addrs, spec.Prefix())
//
// O(n log n) complexity.
package prescan
