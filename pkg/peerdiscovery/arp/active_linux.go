//go:build linux

package arp

import (
	"context"
	"net"
	"net/netip"
	"time"

	mdarp "github.com/mdlayher/arp"
)

const activeTimeout = time.Second

// resolveActive sends an ARP request on the interface facing addr
func resolveActive(ctx context.Context, addr netip.Addr) (net.HardwareAddr, error) {
	ifi, err := interfaceFor(addr)
	if err != nil {
		return nil, err
	}

	client, err := mdarp.Dial(ifi)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = client.Close()
	}()

	deadline := time.Now().Add(activeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := client.SetDeadline(deadline); err != nil {
		return nil, err
	}
	return client.Resolve(addr)
}
