package scanner

import (
	"sync"

	"github.com/projectdiscovery/netscan/pkg/types"
)

// Status holds the progress of the current or last scan. Only the running
// scan writes to it; readers get copies through Snapshot.
type Status struct {
	mu     sync.RWMutex
	status types.ScanStatus
}

// NewStatus returns an idle status
func NewStatus() *Status {
	return &Status{status: types.ScanStatus{State: types.StateIdle}}
}

// Begin resets the counters for a new scan of spec. It fails with
// ErrScanInProgress, leaving the status untouched, while a scan runs.
func (s *Status) Begin(spec types.NetworkSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Running {
		return ErrScanInProgress
	}
	current := spec
	s.status = types.ScanStatus{
		Running:     true,
		State:       types.StateRunning,
		CurrentScan: &current,
		LastScanID:  s.status.LastScanID,
	}
	return nil
}

// SetTotal records the number of addresses the scan will probe
func (s *Status) SetTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.TotalHosts = total
}

// RecordProbe counts one finished probe
func (s *Status) RecordProbe(found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.ScannedHosts >= s.status.TotalHosts {
		return
	}
	s.status.ScannedHosts++
	if found {
		s.status.FoundHosts++
	}
	s.status.Progress = s.status.ScannedHosts * 100 / s.status.TotalHosts
}

// Finish freezes the status once the scan's record has been stored
func (s *Status) Finish(state string, scanID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Running = false
	s.status.State = state
	s.status.CurrentScan = nil
	s.status.Progress = 100
	s.status.LastScanID = scanID
}

// Running reports whether a scan is in progress
func (s *Status) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status.Running
}

// Snapshot returns a copy of the status
func (s *Status) Snapshot() types.ScanStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.status
	if snapshot.CurrentScan != nil {
		current := *snapshot.CurrentScan
		snapshot.CurrentScan = &current
	}
	return snapshot
}
