// Package fingerprint enriches a reachable host with a hostname, hardware
// address, vendor and a heuristic device type.
//
// Every stage is best effort: a failed lookup yields the "Unknown" sentinel
// and never aborts the caller. Device types come from an ordered rule table
// (see DeviceTypeRules) so the first matching rule wins.
package fingerprint
