package common

import (
	"errors"
	"net"
	"net/netip"
	"slices"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// LocalAddress is an IPv4 address assigned to a local interface
type LocalAddress struct {
	Interface    string
	HardwareAddr string
	Prefix       netip.Prefix
}

// Mask returns the dotted-decimal subnet mask of the address
func (l LocalAddress) Mask() string {
	return net.IP(net.CIDRMask(l.Prefix.Bits(), 32)).String()
}

var errNoLocalAddress = errors.New("no private IPv4 address found on local interfaces")

// interfaces is replaced in tests
var interfaces = psnet.Interfaces

// GetLocalAddresses returns the private IPv4 addresses of all up, non-loopback interfaces
func GetLocalAddresses() ([]LocalAddress, error) {
	ifaces, err := interfaces()
	if err != nil {
		return nil, err
	}

	var addrs []LocalAddress
	seen := make(map[netip.Prefix]struct{})

	for _, iface := range ifaces {
		// Skip loopback and down interfaces
		if slices.Contains(iface.Flags, "loopback") {
			continue
		}
		if !slices.Contains(iface.Flags, "up") {
			continue
		}

		for _, addr := range iface.Addrs {
			prefix, err := netip.ParsePrefix(addr.Addr)
			if err != nil {
				continue
			}

			// Only process private IPv4 addresses
			ip := prefix.Addr().Unmap()
			if !ip.Is4() || !ip.IsPrivate() {
				continue
			}
			prefix = netip.PrefixFrom(ip, prefix.Bits())

			// Avoid duplicates
			if _, exists := seen[prefix]; exists {
				continue
			}
			seen[prefix] = struct{}{}

			addrs = append(addrs, LocalAddress{Interface: iface.Name, HardwareAddr: iface.HardwareAddr, Prefix: prefix})
		}
	}

	return addrs, nil
}

// LocalHardwareAddr returns the hardware address of the local interface that
// owns addr. The scanning host never appears in its own neighbor table.
func LocalHardwareAddr(addr netip.Addr) (net.HardwareAddr, bool) {
	addrs, err := GetLocalAddresses()
	if err != nil {
		return nil, false
	}
	for _, local := range addrs {
		if local.Prefix.Addr() != addr.Unmap() || local.HardwareAddr == "" {
			continue
		}
		hw, err := net.ParseMAC(local.HardwareAddr)
		if err != nil {
			return nil, false
		}
		return hw, true
	}
	return nil, false
}

// DetectLocalAddressAndMask returns the address and mask of the local network
// to scan when the caller did not name one. It prefers an interface address,
// then the source address the kernel would use for outbound traffic with a
// /24 mask, and finally loopback.
func DetectLocalAddressAndMask() (string, string, error) {
	addrs, err := GetLocalAddresses()
	if err == nil && len(addrs) > 0 {
		return addrs[0].Prefix.Addr().String(), addrs[0].Mask(), nil
	}

	if ip, dialErr := outboundAddress(); dialErr == nil {
		return ip, "255.255.255.0", nil
	}

	if err == nil {
		err = errNoLocalAddress
	}
	return "127.0.0.1", "255.255.255.0", err
}

// outboundAddress connects a UDP socket to a public address; no packet is
// sent, the kernel only selects a route and source address.
func outboundAddress() (string, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = conn.Close()
	}()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || local.IP == nil {
		return "", errNoLocalAddress
	}
	return local.IP.String(), nil
}
