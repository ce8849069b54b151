package types

import (
	"fmt"
	"net/netip"
)

// NetworkSpec is an IPv4 address range identified by its network address
// and prefix length. The zero value is not a valid network.
type NetworkSpec struct {
	prefix netip.Prefix
}

// NewNetworkSpec normalizes prefix so the base address is the network
// address of the range. Host bits are cleared rather than rejected.
func NewNetworkSpec(prefix netip.Prefix) (NetworkSpec, error) {
	if !prefix.IsValid() {
		return NetworkSpec{}, fmt.Errorf("invalid prefix %q", prefix.String())
	}
	if !prefix.Addr().Is4() && !prefix.Addr().Is4In6() {
		return NetworkSpec{}, fmt.Errorf("unsupported address family: %s", prefix.String())
	}
	addr := prefix.Addr().Unmap()
	bits := prefix.Bits()
	if prefix.Addr().Is4In6() {
		bits -= 96
	}
	if bits < 0 || bits > 32 {
		return NetworkSpec{}, fmt.Errorf("invalid prefix length %d", bits)
	}
	return NetworkSpec{prefix: netip.PrefixFrom(addr, bits).Masked()}, nil
}

// MustNetworkSpec is like NewNetworkSpec but panics on malformed input.
// Intended for constants and tests.
func MustNetworkSpec(cidr string) NetworkSpec {
	spec, err := NewNetworkSpec(netip.MustParsePrefix(cidr))
	if err != nil {
		panic(err)
	}
	return spec
}

// Prefix returns the normalized prefix.
func (n NetworkSpec) Prefix() netip.Prefix {
	return n.prefix
}

// Addr returns the network address.
func (n NetworkSpec) Addr() netip.Addr {
	return n.prefix.Addr()
}

// Bits returns the prefix length.
func (n NetworkSpec) Bits() int {
	return n.prefix.Bits()
}

// IsValid reports whether n holds a parsed network.
func (n NetworkSpec) IsValid() bool {
	return n.prefix.IsValid()
}

// Size returns the number of addresses covered by the range, including
// the network and broadcast addresses.
func (n NetworkSpec) Size() uint64 {
	if !n.prefix.IsValid() {
		return 0
	}
	return uint64(1) << uint(32-n.prefix.Bits())
}

// UsableHosts returns the number of addresses Enumerate would yield.
// Ranges of two or fewer addresses are point-to-point and keep every address.
func (n NetworkSpec) UsableHosts() uint64 {
	size := n.Size()
	if size <= 2 {
		return size
	}
	return size - 2
}

// Contains reports whether addr falls inside the range.
func (n NetworkSpec) Contains(addr netip.Addr) bool {
	return n.prefix.IsValid() && n.prefix.Contains(addr.Unmap())
}

func (n NetworkSpec) String() string {
	if !n.prefix.IsValid() {
		return ""
	}
	return n.prefix.String()
}

// MarshalText renders the network in CIDR notation.
func (n NetworkSpec) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText parses CIDR notation. An empty input yields the zero value.
func (n *NetworkSpec) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*n = NetworkSpec{}
		return nil
	}
	prefix, err := netip.ParsePrefix(string(text))
	if err != nil {
		return err
	}
	spec, err := NewNetworkSpec(prefix)
	if err != nil {
		return err
	}
	*n = spec
	return nil
}
