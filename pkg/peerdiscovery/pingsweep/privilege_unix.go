//go:build !windows

package pingsweep

import "golang.org/x/sys/unix"

// canOpenRawSocket reports whether raw ICMP sockets are worth trying
func canOpenRawSocket() bool {
	return unix.Geteuid() == 0
}
