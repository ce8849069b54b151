// Package arp looks up link-layer addresses in the operating system's
// neighbor (ARP) table.
//
// The table is read from /proc/net/arp on Linux and from `arp -a` on macOS
// and Windows. Snapshots are cached for a short while so that resolving many
// hosts of one scan reads the table only a handful of times. On Linux a Table
// can optionally send an ARP request itself when the address is missing.
package arp
