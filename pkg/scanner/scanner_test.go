package scanner

import (
	"context"
	"errors"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/netrange"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/pingsweep"
	"github.com/projectdiscovery/netscan/pkg/registry"
	"github.com/projectdiscovery/netscan/pkg/types"
)

type fingerprintFunc func(ctx context.Context, addr netip.Addr) types.DeviceFingerprint

func (f fingerprintFunc) Resolve(ctx context.Context, addr netip.Addr) types.DeviceFingerprint {
	return f(ctx, addr)
}

var unknownFingerprint = fingerprintFunc(func(context.Context, netip.Addr) types.DeviceFingerprint {
	return types.DeviceFingerprint{
		Hostname:   types.Unknown,
		MACAddress: types.Unknown,
		Vendor:     types.Unknown,
		DeviceType: "Generic Device",
	}
})

// aliveSet answers probes for the given addresses only
func aliveSet(addrs ...string) pingsweep.Prober {
	set := make(map[netip.Addr]bool)
	for _, addr := range addrs {
		set[netip.MustParseAddr(addr)] = true
	}
	return pingsweep.ProberFunc(func(_ context.Context, addr netip.Addr, _ time.Duration) bool {
		return set[addr]
	})
}

func testOptions() Options {
	options := DefaultOptions()
	options.ProbeConcurrency = 8
	options.FingerprintConcurrency = 4
	options.Prioritize = false
	return options
}

func newTestCoordinator(prober pingsweep.Prober) *Coordinator {
	return NewCoordinator(prober, unknownFingerprint, NewStatus(), registry.New(), testOptions())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScanCompleted(t *testing.T) {
	c := newTestCoordinator(aliveSet("192.168.1.200", "192.168.1.1", "192.168.1.10"))

	record, err := c.Scan(context.Background(), types.MustNetworkSpec("192.168.1.0/24"))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if record.ID != 1 || record.State != types.ScanCompleted {
		t.Fatalf("record id=%d state=%s, want 1 completed", record.ID, record.State)
	}
	if record.RunID == "" {
		t.Error("record has no run id")
	}
	if record.TotalScanned != 254 || record.TotalFound != 3 {
		t.Errorf("scanned=%d found=%d, want 254 and 3", record.TotalScanned, record.TotalFound)
	}

	var got []string
	for _, host := range record.Hosts {
		got = append(got, host.IP.String())
	}
	want := []string{"192.168.1.1", "192.168.1.10", "192.168.1.200"}
	if !slices.Equal(got, want) {
		t.Errorf("hosts = %v, want %v", got, want)
	}
	if err := record.Validate(); err != nil {
		t.Errorf("stored record is invalid: %v", err)
	}

	status := c.status.Snapshot()
	if status.Running || status.Progress != 100 || status.CurrentScan != nil {
		t.Errorf("status not frozen: %+v", status)
	}
	if status.ScannedHosts != 254 || status.TotalHosts != 254 || status.FoundHosts != 3 {
		t.Errorf("status counters = %+v", status)
	}
	if status.State != types.StateCompleted || status.LastScanID != 1 {
		t.Errorf("status state=%s last=%d", status.State, status.LastScanID)
	}
}

func TestScanNoHostsFound(t *testing.T) {
	c := newTestCoordinator(aliveSet())
	record, err := c.Scan(context.Background(), types.MustNetworkSpec("10.0.0.0/28"))
	if err != nil {
		t.Fatal(err)
	}
	if record.State != types.ScanCompleted || record.TotalScanned != 14 || record.TotalFound != 0 {
		t.Errorf("unexpected record %+v", record)
	}
	if record.Hosts == nil {
		t.Error("completed record has nil hosts")
	}
}

func TestScanFingerprintsLiveHostsOnly(t *testing.T) {
	var resolved sync.Map
	c := NewCoordinator(aliveSet("10.0.0.5", "10.0.0.9"), fingerprintFunc(func(_ context.Context, addr netip.Addr) types.DeviceFingerprint {
		resolved.Store(addr, true)
		return types.DeviceFingerprint{Hostname: "host-" + addr.String(), MACAddress: types.Unknown, Vendor: types.Unknown, DeviceType: "Computer"}
	}), NewStatus(), registry.New(), testOptions())

	record, err := c.Scan(context.Background(), types.MustNetworkSpec("10.0.0.0/28"))
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	resolved.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count != 2 {
		t.Errorf("resolved %d addresses, want 2", count)
	}
	if record.Hosts[0].Hostname != "host-10.0.0.5" {
		t.Errorf("fingerprint not attached: %+v", record.Hosts[0])
	}
}

func TestEmptyRangeFails(t *testing.T) {
	c := newTestCoordinator(aliveSet())
	c.enumerate = func(types.NetworkSpec, int) ([]netip.Addr, error) {
		return nil, nil
	}

	record, err := c.Scan(context.Background(), types.MustNetworkSpec("10.0.0.0/24"))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if record.State != types.ScanFailed || record.Error != ErrEmptyRange.Error() {
		t.Errorf("record state=%s error=%q", record.State, record.Error)
	}
	if record.Hosts != nil {
		t.Error("failed record carries hosts")
	}

	status := c.status.Snapshot()
	if status.Running || status.Progress != 100 || status.State != types.StateFailed {
		t.Errorf("status after failure = %+v", status)
	}
}

func TestEnumerationErrorFails(t *testing.T) {
	c := newTestCoordinator(aliveSet())
	options := testOptions()
	options.MaxHosts = 100
	c.options = options.normalize()

	record, err := c.Scan(context.Background(), types.MustNetworkSpec("10.0.0.0/24"))
	if err != nil {
		t.Fatal(err)
	}
	if !record.Failed() {
		t.Errorf("record state = %s, want failed", record.State)
	}
}

func TestPanicBecomesFailedRecord(t *testing.T) {
	c := newTestCoordinator(pingsweep.ProberFunc(func(_ context.Context, addr netip.Addr, _ time.Duration) bool {
		if addr.String() == "10.0.0.3" {
			panic("probe exploded")
		}
		return false
	}))

	record, err := c.Scan(context.Background(), types.MustNetworkSpec("10.0.0.0/29"))
	if err != nil {
		t.Fatal(err)
	}
	if !record.Failed() || record.Error == "" {
		t.Fatalf("record = %+v, want failed", record)
	}
	if c.status.Running() {
		t.Fatal("status still running after panic")
	}

	// The coordinator is usable again
	c.prober = aliveSet("10.0.0.1")
	next, err := c.Scan(context.Background(), types.MustNetworkSpec("10.0.0.0/29"))
	if err != nil || next.State != types.ScanCompleted || next.ID != 2 {
		t.Errorf("next scan = %+v, %v", next, err)
	}
}

func TestScanInProgress(t *testing.T) {
	release := make(chan struct{})
	c := newTestCoordinator(pingsweep.ProberFunc(func(ctx context.Context, _ netip.Addr, _ time.Duration) bool {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return false
	}))

	spec := types.MustNetworkSpec("10.0.0.0/28")
	if err := c.Start(context.Background(), spec); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	before := c.status.Snapshot()

	if err := c.Start(context.Background(), spec); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("second Start() error = %v, want ErrScanInProgress", err)
	}
	if _, err := c.Scan(context.Background(), spec); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("Scan() error = %v, want ErrScanInProgress", err)
	}
	if after := c.status.Snapshot(); after.State != before.State || !after.Running {
		t.Errorf("rejected start changed the status: %+v", after)
	}

	close(release)
	c.Wait()
	if got := c.registry.Len(); got != 1 {
		t.Errorf("registry holds %d records, want 1", got)
	}
}

func TestProgressMonotonic(t *testing.T) {
	c := newTestCoordinator(pingsweep.ProberFunc(func(_ context.Context, addr netip.Addr, _ time.Duration) bool {
		time.Sleep(time.Millisecond)
		return addr.As4()[3]%7 == 0
	}))

	if err := c.Start(context.Background(), types.MustNetworkSpec("172.16.0.0/24")); err != nil {
		t.Fatal(err)
	}

	var last types.ScanStatus
	for {
		s := c.status.Snapshot()
		if s.ScannedHosts < last.ScannedHosts || s.Progress < last.Progress {
			t.Fatalf("progress went backwards: %+v after %+v", s, last)
		}
		if s.TotalHosts > 0 && s.ScannedHosts > s.TotalHosts {
			t.Fatalf("scanned %d of %d", s.ScannedHosts, s.TotalHosts)
		}
		if s.Progress > 100 || s.FoundHosts > s.ScannedHosts {
			t.Fatalf("inconsistent status %+v", s)
		}
		if s.TotalHosts > 0 && s.Running && s.Progress != s.ScannedHosts*100/s.TotalHosts {
			t.Fatalf("progress %d does not match %d/%d", s.Progress, s.ScannedHosts, s.TotalHosts)
		}
		last = s
		if !s.Running {
			break
		}
		time.Sleep(time.Millisecond)
	}
	c.Wait()

	if last.Progress != 100 || last.ScannedHosts != 254 {
		t.Errorf("final status = %+v", last)
	}
}

func TestProbeConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	c := newTestCoordinator(pingsweep.ProberFunc(func(context.Context, netip.Addr, time.Duration) bool {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return true
	}))

	if _, err := c.Scan(context.Background(), types.MustNetworkSpec("10.1.0.0/25")); err != nil {
		t.Fatal(err)
	}
	if p := peak.Load(); p > int32(c.options.ProbeConcurrency) {
		t.Errorf("peak concurrency %d exceeds bound %d", p, c.options.ProbeConcurrency)
	}
}

func TestCancel(t *testing.T) {
	c := newTestCoordinator(pingsweep.ProberFunc(func(ctx context.Context, addr netip.Addr, _ time.Duration) bool {
		octet := addr.As4()[3]
		if octet <= 10 {
			return octet <= 2
		}
		<-ctx.Done()
		return false
	}))

	if err := c.Cancel(); !errors.Is(err, ErrNoScanRunning) {
		t.Errorf("Cancel() while idle = %v, want ErrNoScanRunning", err)
	}

	if err := c.Start(context.Background(), types.MustNetworkSpec("192.168.5.0/24")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first probes", func() bool {
		return c.status.Snapshot().ScannedHosts >= 10
	})
	if err := c.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	c.Wait()

	records := c.registry.All()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	record := records[0]
	if record.State != types.ScanCancelled {
		t.Fatalf("state = %s, want cancelled", record.State)
	}
	if record.TotalScanned != 10 || record.TotalFound != 2 {
		t.Errorf("scanned=%d found=%d, want 10 and 2", record.TotalScanned, record.TotalFound)
	}
	if err := record.Validate(); err != nil {
		t.Errorf("cancelled record invalid: %v", err)
	}

	status := c.status.Snapshot()
	if status.Running || status.State != types.StateCancelled || status.ScannedHosts != 10 {
		t.Errorf("status after cancel = %+v", status)
	}
	if err := c.Cancel(); !errors.Is(err, ErrNoScanRunning) {
		t.Errorf("Cancel() after finish = %v, want ErrNoScanRunning", err)
	}
}

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{
			name: "zero values",
			in:   Options{},
			want: Options{ProbeConcurrency: 64, FingerprintConcurrency: 16, ProbeTimeout: time.Second},
		},
		{
			name: "clamped",
			in:   Options{ProbeConcurrency: 1000, FingerprintConcurrency: 500, ProbeTimeout: time.Minute},
			want: Options{ProbeConcurrency: 256, FingerprintConcurrency: 256, ProbeTimeout: 2 * time.Second},
		},
		{
			name: "fingerprint never above probes",
			in:   Options{ProbeConcurrency: 4, FingerprintConcurrency: 16, ProbeTimeout: time.Second},
			want: Options{ProbeConcurrency: 4, FingerprintConcurrency: 4, ProbeTimeout: time.Second},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.normalize(); got != tt.want {
				t.Errorf("normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func newTestService(prober pingsweep.Prober) *Service {
	s := NewService(context.Background(), newTestCoordinator(prober))
	s.detect = func() (string, string, error) {
		return "192.168.44.17", "255.255.255.0", nil
	}
	return s
}

func TestServiceStartScan(t *testing.T) {
	s := newTestService(aliveSet("192.168.44.1"))

	tests := []struct {
		input   string
		wantErr error
		want    string
	}{
		{input: "not a network", wantErr: netrange.ErrInvalidNetworkFormat},
		{input: "fe80::/64", wantErr: netrange.ErrInvalidNetworkFormat},
		{input: "10.0.0.0/8", wantErr: netrange.ErrRangeTooLarge},
		{input: "", want: "192.168.44.0/24"},
		{input: "10.20.30", want: "10.20.30.0/24"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			spec, err := s.StartScan(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("StartScan(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("StartScan(%q) error = %v", tt.input, err)
			}
			if spec.String() != tt.want {
				t.Errorf("StartScan(%q) = %s, want %s", tt.input, spec, tt.want)
			}
			s.Wait()
		})
	}

	results := s.Results()
	if len(results) != 2 {
		t.Fatalf("Results() = %d records, want 2", len(results))
	}
	if results[0].Network.String() != "192.168.44.0/24" || results[0].TotalFound != 1 {
		t.Errorf("unexpected first result %+v", results[0])
	}
}

func TestServiceResults(t *testing.T) {
	s := newTestService(aliveSet("10.9.8.1"))

	record, err := s.Scan(context.Background(), "10.9.8.0/29")
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Result(record.ID)
	if err != nil || got.ID != record.ID {
		t.Errorf("Result() = %+v, %v", got, err)
	}
	if data, err := s.Export(record.ID); err != nil || len(data) == 0 {
		t.Errorf("Export() = %d bytes, %v", len(data), err)
	}
	if _, err := s.Result(99); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("Result(99) error = %v, want ErrNotFound", err)
	}

	s.ClearResults()
	if len(s.Results()) != 0 {
		t.Error("ClearResults() left records behind")
	}
	if status := s.Status(); status.LastScanID != record.ID {
		t.Errorf("ClearResults() changed status: %+v", status)
	}
}

func TestServiceClearDuringScan(t *testing.T) {
	release := make(chan struct{})
	s := newTestService(pingsweep.ProberFunc(func(ctx context.Context, _ netip.Addr, _ time.Duration) bool {
		<-release
		return true
	}))

	if _, err := s.StartScan("10.0.0.0/30"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartScan("10.0.0.0/30"); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("StartScan() while running = %v, want ErrScanInProgress", err)
	}
	s.ClearResults()
	if !s.Status().Running {
		t.Error("ClearResults() stopped the running scan")
	}

	close(release)
	s.Wait()
	if results := s.Results(); len(results) != 1 || results[0].TotalFound != 2 {
		t.Errorf("results after clear = %+v", results)
	}
}

func TestServiceSuggestedNetwork(t *testing.T) {
	s := newTestService(aliveSet())
	spec, ip, mask, err := s.SuggestedNetwork()
	if err != nil {
		t.Fatal(err)
	}
	if spec.String() != "192.168.44.0/24" || ip != "192.168.44.17" || mask != "255.255.255.0" {
		t.Errorf("SuggestedNetwork() = %s, %s, %s", spec, ip, mask)
	}

	s.detect = func() (string, string, error) {
		return "", "", errors.New("no interfaces")
	}
	if _, _, _, err := s.SuggestedNetwork(); err == nil {
		t.Error("expected detection error")
	}
}
