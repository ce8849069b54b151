package fingerprint

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/projectdiscovery/gcache"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/common"
	"github.com/projectdiscovery/netscan/pkg/types"
)

const (
	// DefaultHostnameTimeout bounds the reverse lookup of one address
	DefaultHostnameTimeout = 2 * time.Second
	// DefaultCacheSize is the number of hostnames kept between scans
	DefaultCacheSize = 4096
	// DefaultCacheTTL is how long a resolved hostname is reused
	DefaultCacheTTL = time.Minute
)

// NeighborLookup resolves an address to its hardware address
type NeighborLookup interface {
	Lookup(ctx context.Context, addr netip.Addr) (net.HardwareAddr, error)
}

// Options of a Resolver
type Options struct {
	HostnameTimeout time.Duration
	// MDNS falls back to a unicast mDNS query when reverse DNS has no name
	MDNS bool
	// OUIFile is an optional IEEE oui.txt merged into the built-in table
	OUIFile   string
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		HostnameTimeout: DefaultHostnameTimeout,
		MDNS:            true,
		CacheSize:       DefaultCacheSize,
		CacheTTL:        DefaultCacheTTL,
	}
}

// Resolver builds device fingerprints
type Resolver struct {
	options   Options
	neighbors NeighborLookup
	vendors   *VendorTable
	names     gcache.Cache[netip.Addr, string]

	// replaced in tests
	lookupAddr func(ctx context.Context, addr string) ([]string, error)
	queryMDNS  func(ctx context.Context, addr netip.Addr) (string, error)
	localMAC   func(addr netip.Addr) (net.HardwareAddr, bool)
}

// New creates a resolver. neighbors may be nil, in which case MAC
// addresses are always unknown.
func New(neighbors NeighborLookup, options Options) (*Resolver, error) {
	if options.HostnameTimeout <= 0 {
		options.HostnameTimeout = DefaultHostnameTimeout
	}
	if options.CacheSize <= 0 {
		options.CacheSize = DefaultCacheSize
	}
	if options.CacheTTL <= 0 {
		options.CacheTTL = DefaultCacheTTL
	}

	vendors := NewVendorTable()
	if options.OUIFile != "" {
		count, err := vendors.LoadFile(options.OUIFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load oui file: %w", err)
		}
		gologger.Verbose().Msgf("loaded %d vendor prefixes from %s", count, options.OUIFile)
	}

	return &Resolver{
		options:    options,
		neighbors:  neighbors,
		vendors:    vendors,
		names: gcache.New[netip.Addr, string](options.CacheSize).
			LRU().
			Expiration(options.CacheTTL).
			Build(),
		lookupAddr: net.DefaultResolver.LookupAddr,
		queryMDNS:  queryMDNS,
		localMAC:   common.LocalHardwareAddr,
	}, nil
}

// outcome of one best-effort stage
type outcome struct {
	value string
	err   error
}

func (o outcome) or(sentinel string) string {
	if o.err != nil || o.value == "" {
		return sentinel
	}
	return o.value
}

// Resolve fingerprints a reachable address. It never fails: every stage
// that cannot produce a value reports its Unknown sentinel instead.
func (r *Resolver) Resolve(ctx context.Context, addr netip.Addr) types.DeviceFingerprint {
	hostname := r.hostname(ctx, addr)
	if hostname.err != nil {
		gologger.Debug().Msgf("%s: no hostname: %v", addr, hostname.err)
	}

	mac := r.mac(ctx, addr)
	if mac.err != nil {
		gologger.Debug().Msgf("%s: no mac address: %v", addr, mac.err)
	}

	vendor := types.Unknown
	if mac.err == nil {
		vendor = r.vendor(mac.value).or(types.UnknownVendor)
	}

	fp := types.DeviceFingerprint{
		Hostname:   hostname.or(types.Unknown),
		MACAddress: mac.or(types.Unknown),
		Vendor:     vendor,
	}
	fp.DeviceType = ClassifyDevice(addr, fp.Hostname, fp.Vendor)
	return fp
}

func (r *Resolver) hostname(ctx context.Context, addr netip.Addr) outcome {
	if name, err := r.names.Get(addr); err == nil {
		return outcome{value: name}
	}

	name, err := r.reverseLookup(ctx, addr)
	if err != nil && r.options.MDNS {
		if mdnsName, mdnsErr := r.queryMDNS(ctx, addr); mdnsErr == nil {
			name, err = mdnsName, nil
		}
	}
	if err != nil {
		return outcome{err: err}
	}

	_ = r.names.Set(addr, name)
	return outcome{value: name}
}

func (r *Resolver) reverseLookup(ctx context.Context, addr netip.Addr) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.options.HostnameTimeout)
	defer cancel()

	names, err := r.lookupAddr(ctx, addr.String())
	if err != nil {
		return "", err
	}
	return firstName(addr, names)
}

func (r *Resolver) mac(ctx context.Context, addr netip.Addr) outcome {
	hw, local := r.localMAC(addr)
	if !local {
		if r.neighbors == nil {
			return outcome{err: errNoNeighborTable}
		}
		var err error
		if hw, err = r.neighbors.Lookup(ctx, addr); err != nil {
			return outcome{err: err}
		}
	}
	normalized, ok := NormalizeMAC(hw.String())
	if !ok {
		return outcome{err: fmt.Errorf("invalid hardware address %q", hw)}
	}
	return outcome{value: normalized}
}

func (r *Resolver) vendor(mac string) outcome {
	vendor, ok := r.vendors.Lookup(mac)
	if !ok {
		return outcome{err: errUnknownPrefix}
	}
	return outcome{value: vendor}
}
