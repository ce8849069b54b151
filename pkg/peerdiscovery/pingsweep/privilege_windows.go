//go:build windows

package pingsweep

import "golang.org/x/sys/windows"

// canOpenRawSocket reports whether the process token is elevated
func canOpenRawSocket() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
