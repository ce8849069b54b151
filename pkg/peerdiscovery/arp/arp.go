package arp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/projectdiscovery/gcache"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/common"
)

const (
	// DefaultCacheTTL is how long a table snapshot is reused
	DefaultCacheTTL = 2 * time.Second
	// minRefreshInterval bounds re-reads triggered by lookup misses
	minRefreshInterval = 250 * time.Millisecond

	snapshotKey = "neighbors"
)

// ErrNotFound is returned when the neighbor table has no entry for an address
var ErrNotFound = errors.New("no neighbor entry")

type snapshot struct {
	entries map[netip.Addr]net.HardwareAddr
	taken   time.Time
}

// Table resolves IPv4 addresses to hardware addresses
type Table struct {
	active    bool
	cacheTTL  time.Duration
	snapshots gcache.Cache[string, *snapshot]
	mu        sync.Mutex

	// read and resolve are replaced in tests
	read    func(ctx context.Context) ([]Entry, error)
	resolve func(ctx context.Context, addr netip.Addr) (net.HardwareAddr, error)
}

// Option configures a Table
type Option func(*Table)

// WithActive sends ARP requests for addresses missing from the table.
// Only supported on Linux and requires CAP_NET_RAW.
func WithActive(enabled bool) Option {
	return func(t *Table) {
		t.active = enabled
	}
}

// WithCacheTTL sets how long a table snapshot is reused
func WithCacheTTL(ttl time.Duration) Option {
	return func(t *Table) {
		if ttl > 0 {
			t.cacheTTL = ttl
		}
	}
}

// NewTable creates a neighbor table reader
func NewTable(opts ...Option) *Table {
	t := &Table{
		cacheTTL: DefaultCacheTTL,
		read:     readLocalARPTable,
		resolve:  resolveActive,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.snapshots = gcache.New[string, *snapshot](1).
		LRU().
		Expiration(t.cacheTTL).
		Build()
	return t
}

// snapshot returns the cached table, reading it when missing or when
// refresh is set and the cached copy is older than minRefreshInterval
func (t *Table) snapshot(ctx context.Context, refresh bool) (*snapshot, error) {
	if snap, err := t.snapshots.Get(snapshotKey); err == nil && !refresh {
		return snap, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another caller may have refreshed while we waited
	if snap, err := t.snapshots.Get(snapshotKey); err == nil {
		if !refresh || time.Since(snap.taken) < minRefreshInterval {
			return snap, nil
		}
	}

	entries, err := t.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read neighbor table: %w", err)
	}

	snap := &snapshot{entries: make(map[netip.Addr]net.HardwareAddr, len(entries)), taken: time.Now()}
	for _, entry := range entries {
		snap.entries[entry.IP] = entry.MAC
	}
	_ = t.snapshots.Set(snapshotKey, snap)
	return snap, nil
}

// Entries returns the current neighbor table ordered by address
func (t *Table) Entries(ctx context.Context) ([]Entry, error) {
	snap, err := t.snapshot(ctx, false)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(snap.entries))
	for ip, mac := range snap.entries {
		entries = append(entries, Entry{IP: ip, MAC: mac})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return a.IP.Compare(b.IP)
	})
	return entries, nil
}

// Lookup returns the hardware address of addr. A miss re-reads the table once,
// since the entry is usually learned by the probe that found the host.
func (t *Table) Lookup(ctx context.Context, addr netip.Addr) (net.HardwareAddr, error) {
	addr = addr.Unmap()

	var readErr error
	for _, refresh := range []bool{false, true} {
		snap, err := t.snapshot(ctx, refresh)
		if err != nil {
			readErr = err
			break
		}
		if mac, ok := snap.entries[addr]; ok {
			return mac, nil
		}
	}

	if t.active {
		mac, err := t.resolve(ctx, addr)
		if err == nil {
			return mac, nil
		}
		gologger.Debug().Msgf("active arp for %s failed: %v", addr, err)
	}

	if readErr != nil {
		return nil, readErr
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
}

// interfaceFor returns the local interface whose subnet contains addr
func interfaceFor(addr netip.Addr) (*net.Interface, error) {
	locals, err := common.GetLocalAddresses()
	if err != nil {
		return nil, err
	}
	for _, local := range locals {
		if local.Prefix.Masked().Contains(addr) {
			return net.InterfaceByName(local.Interface)
		}
	}
	return nil, fmt.Errorf("no local interface on the subnet of %s", addr)
}
