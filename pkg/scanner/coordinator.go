package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/netrange"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/pingsweep"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/prescan"
	"github.com/projectdiscovery/netscan/pkg/registry"
	"github.com/projectdiscovery/netscan/pkg/types"
	mapsutil "github.com/projectdiscovery/utils/maps"
	syncutil "github.com/projectdiscovery/utils/sync"
	"github.com/rs/xid"
)

var (
	// ErrScanInProgress is returned when a scan is started while another runs
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrEmptyRange is recorded when a network has no usable hosts
	ErrEmptyRange = errors.New("network contains no usable hosts")
	// ErrNoScanRunning is returned by Cancel when there is nothing to cancel
	ErrNoScanRunning = errors.New("no scan running")
)

const (
	DefaultProbeConcurrency       = 64
	MaxProbeConcurrency           = 256
	DefaultFingerprintConcurrency = 16
)

// Fingerprinter enriches a reachable address
type Fingerprinter interface {
	Resolve(ctx context.Context, addr netip.Addr) types.DeviceFingerprint
}

// Options tune a Coordinator
type Options struct {
	ProbeConcurrency       int
	FingerprintConcurrency int
	ProbeTimeout           time.Duration
	// MaxHosts caps the usable hosts of a range, 0 disables the cap
	MaxHosts int
	// Prioritize probes likely-online addresses first
	Prioritize bool
}

// DefaultOptions returns the coordinator defaults
func DefaultOptions() Options {
	return Options{
		ProbeConcurrency:       DefaultProbeConcurrency,
		FingerprintConcurrency: DefaultFingerprintConcurrency,
		ProbeTimeout:           pingsweep.DefaultTimeout,
		MaxHosts:               netrange.DefaultMaxHosts,
		Prioritize:             true,
	}
}

// normalize clamps the options into their supported ranges
func (o Options) normalize() Options {
	if o.ProbeConcurrency <= 0 {
		o.ProbeConcurrency = DefaultProbeConcurrency
	}
	o.ProbeConcurrency = min(o.ProbeConcurrency, MaxProbeConcurrency)
	if o.FingerprintConcurrency <= 0 {
		o.FingerprintConcurrency = DefaultFingerprintConcurrency
	}
	o.FingerprintConcurrency = min(o.FingerprintConcurrency, o.ProbeConcurrency)
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = pingsweep.DefaultTimeout
	}
	o.ProbeTimeout = min(o.ProbeTimeout, pingsweep.MaxTimeout)
	return o
}

// Coordinator runs one scan at a time
type Coordinator struct {
	options       Options
	prober        pingsweep.Prober
	fingerprinter Fingerprinter
	status        *Status
	registry      *registry.Registry

	// enumerate is replaced in tests
	enumerate func(spec types.NetworkSpec, maxHosts int) ([]netip.Addr, error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator wires a coordinator to its collaborators
func NewCoordinator(prober pingsweep.Prober, fingerprinter Fingerprinter, status *Status, registry *registry.Registry, options Options) *Coordinator {
	return &Coordinator{
		options:       options.normalize(),
		prober:        prober,
		fingerprinter: fingerprinter,
		status:        status,
		registry:      registry,
		enumerate:     netrange.EnumerateLimit,
	}
}

// begin claims the status for a new scan and registers its cancel function
func (c *Coordinator) begin(ctx context.Context, spec types.NetworkSpec) (context.Context, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.status.Begin(spec); err != nil {
		return nil, nil, err
	}
	scanCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel, c.done = cancel, done

	release := func() {
		cancel()
		c.mu.Lock()
		if c.done == done {
			c.cancel = nil
		}
		c.mu.Unlock()
		close(done)
	}
	return scanCtx, release, nil
}

// Start launches a scan of spec in the background. It returns
// ErrScanInProgress when a scan is already running.
func (c *Coordinator) Start(ctx context.Context, spec types.NetworkSpec) error {
	scanCtx, release, err := c.begin(ctx, spec)
	if err != nil {
		return err
	}
	go func() {
		defer release()
		c.run(scanCtx, spec)
	}()
	return nil
}

// Scan runs a scan of spec and returns its stored record
func (c *Coordinator) Scan(ctx context.Context, spec types.NetworkSpec) (types.ScanRecord, error) {
	scanCtx, release, err := c.begin(ctx, spec)
	if err != nil {
		return types.ScanRecord{}, err
	}
	defer release()
	return c.run(scanCtx, spec), nil
}

// Cancel stops the running scan. Probes already in flight finish and the
// hosts found so far are stored as a cancelled record.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil || !c.status.Running() {
		return ErrNoScanRunning
	}
	c.cancel()
	return nil
}

// Wait blocks until the current scan, if any, has been stored
func (c *Coordinator) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// run executes the scan and always stores exactly one record
func (c *Coordinator) run(ctx context.Context, spec types.NetworkSpec) (record types.ScanRecord) {
	start := time.Now()
	record = types.ScanRecord{
		RunID:     xid.New().String(),
		Network:   spec,
		StartTime: start.Round(0).UTC(),
	}
	gologger.Info().Msgf("[%s] scanning %s", record.RunID, spec)

	defer func() {
		if r := recover(); r != nil {
			record = failed(record, fmt.Errorf("scan panicked: %v", r))
		}
		record.Duration = types.Duration(time.Since(start).Round(time.Millisecond))
		record = c.registry.Append(record)
		c.status.Finish(string(record.State), record.ID)

		if record.Failed() {
			gologger.Error().Msgf("[%s] scan %d of %s failed: %s", record.RunID, record.ID, spec, record.Error)
			return
		}
		gologger.Info().Msgf("[%s] scan %d of %s %s: %d/%d hosts up in %s",
			record.RunID, record.ID, spec, record.State, record.TotalFound, record.TotalScanned, record.Duration)
	}()

	hosts, scanned, total, err := c.sweep(ctx, record.RunID, spec)
	if err != nil {
		return failed(record, err)
	}

	record.Hosts = hosts
	record.TotalScanned = scanned
	record.TotalFound = len(hosts)
	record.State = types.ScanCompleted
	if scanned < total {
		record.State = types.ScanCancelled
	}
	return record
}

func failed(record types.ScanRecord, err error) types.ScanRecord {
	record.State = types.ScanFailed
	record.Error = err.Error()
	record.Hosts = nil
	record.TotalScanned = 0
	record.TotalFound = 0
	return record
}

// sweep probes every address of spec and fingerprints the live ones.
// It returns the hosts sorted by address, the number of addresses probed and
// the size of the range.
func (c *Coordinator) sweep(ctx context.Context, runID string, spec types.NetworkSpec) ([]types.Host, int, int, error) {
	addrs, err := c.enumerate(spec, c.options.MaxHosts)
	if err != nil {
		return nil, 0, 0, err
	}
	if len(addrs) == 0 {
		return nil, 0, 0, ErrEmptyRange
	}
	total := len(addrs)
	c.status.SetTotal(total)

	if c.options.Prioritize {
		addrs = prescan.Prioritize(addrs, spec.Prefix())
	}

	probes, err := syncutil.New(syncutil.WithSize(c.options.ProbeConcurrency))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to create probe pool: %w", err)
	}
	fingerprints, err := syncutil.New(syncutil.WithSize(c.options.FingerprintConcurrency))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to create fingerprint pool: %w", err)
	}

	found := mapsutil.NewSyncLockMap[netip.Addr, types.Host]()
	var scanned atomic.Int64
	var panicked atomic.Pointer[error]

	// Fingerprints of hosts already found are completed after a cancel
	resolveCtx := context.WithoutCancel(ctx)

	recoverWorker := func(addr netip.Addr) {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker for %s panicked: %v", addr, r)
			panicked.CompareAndSwap(nil, &err)
		}
	}

	for _, addr := range addrs {
		if ctx.Err() != nil {
			gologger.Verbose().Msgf("[%s] scan cancelled, %d addresses not probed", runID, total-int(scanned.Load()))
			break
		}

		probes.Add()
		go func(addr netip.Addr) {
			defer probes.Done()
			defer recoverWorker(addr)

			alive := c.prober.Probe(ctx, addr, c.options.ProbeTimeout)
			if !alive && ctx.Err() != nil {
				// Interrupted, not probed
				return
			}
			scanned.Add(1)
			c.status.RecordProbe(alive)
			if !alive {
				return
			}
			gologger.Verbose().Msgf("[%s] %s is up", runID, addr)

			fingerprints.Add()
			go func() {
				defer fingerprints.Done()
				defer recoverWorker(addr)

				fp := c.fingerprinter.Resolve(resolveCtx, addr)
				_ = found.Set(addr, types.Host{IP: addr, DeviceFingerprint: fp})
			}()
		}(addr)
	}

	probes.Wait()
	fingerprints.Wait()

	if err := panicked.Load(); err != nil {
		return nil, 0, 0, *err
	}

	hosts := []types.Host{}
	_ = found.Iterate(func(_ netip.Addr, host types.Host) error {
		hosts = append(hosts, host)
		return nil
	})
	slices.SortFunc(hosts, func(a, b types.Host) int {
		return a.IP.Compare(b.IP)
	})
	return hosts, int(scanned.Load()), total, nil
}
