//go:build !linux

package arp

import (
	"context"
	"errors"
	"net"
	"net/netip"
)

var errActiveUnsupported = errors.New("active arp is only supported on linux")

func resolveActive(context.Context, netip.Addr) (net.HardwareAddr, error) {
	return nil, errActiveUnsupported
}
