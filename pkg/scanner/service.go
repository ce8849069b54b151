package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/common"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/netrange"
	"github.com/projectdiscovery/netscan/pkg/registry"
	"github.com/projectdiscovery/netscan/pkg/types"
)

// Service exposes scans to users
type Service struct {
	ctx         context.Context
	coordinator *Coordinator
	status      *Status
	registry    *registry.Registry
	maxHosts    int

	// detect is replaced in tests
	detect func() (string, string, error)
}

// NewService creates a service. Background scans are bound to ctx.
func NewService(ctx context.Context, coordinator *Coordinator) *Service {
	return &Service{
		ctx:         ctx,
		coordinator: coordinator,
		status:      coordinator.status,
		registry:    coordinator.registry,
		maxHosts:    coordinator.options.MaxHosts,
		detect:      common.DetectLocalAddressAndMask,
	}
}

// ParseNetwork turns user input into a network; empty input selects the
// local network
func (s *Service) ParseNetwork(text string) (types.NetworkSpec, error) {
	spec, err := netrange.Parse(text)
	if errors.Is(err, netrange.ErrNoNetwork) {
		spec, _, _, err = s.SuggestedNetwork()
	}
	if err != nil {
		return types.NetworkSpec{}, err
	}
	if s.maxHosts > 0 && spec.UsableHosts() > uint64(s.maxHosts) {
		return types.NetworkSpec{}, fmt.Errorf("%w: %s has %d hosts, limit is %d", netrange.ErrRangeTooLarge, spec, spec.UsableHosts(), s.maxHosts)
	}
	return spec, nil
}

// StartScan parses text and starts a background scan of it
func (s *Service) StartScan(text string) (types.NetworkSpec, error) {
	if s.status.Running() {
		return types.NetworkSpec{}, ErrScanInProgress
	}
	spec, err := s.ParseNetwork(text)
	if err != nil {
		return types.NetworkSpec{}, err
	}
	if err := s.coordinator.Start(s.ctx, spec); err != nil {
		return types.NetworkSpec{}, err
	}
	return spec, nil
}

// Scan parses text and scans it synchronously
func (s *Service) Scan(ctx context.Context, text string) (types.ScanRecord, error) {
	spec, err := s.ParseNetwork(text)
	if err != nil {
		return types.ScanRecord{}, err
	}
	return s.coordinator.Scan(ctx, spec)
}

// Status returns a snapshot of the scan status
func (s *Service) Status() types.ScanStatus {
	return s.status.Snapshot()
}

// Results returns every stored scan, oldest first
func (s *Service) Results() []types.ScanRecord {
	return s.registry.All()
}

// Result returns one stored scan
func (s *Service) Result(id int) (types.ScanRecord, error) {
	return s.registry.Get(id)
}

// ClearResults removes stored scans; a running scan is unaffected
func (s *Service) ClearResults() {
	s.registry.Clear()
}

// Export returns a stored scan as indented JSON
func (s *Service) Export(id int) ([]byte, error) {
	return s.registry.Export(id)
}

// Cancel stops the running scan
func (s *Service) Cancel() error {
	return s.coordinator.Cancel()
}

// Wait blocks until the running scan, if any, is stored
func (s *Service) Wait() {
	s.coordinator.Wait()
}

// SuggestedNetwork returns the local network along with the address and
// mask it was derived from
func (s *Service) SuggestedNetwork() (types.NetworkSpec, string, string, error) {
	ip, mask, err := s.detect()
	if ip == "" {
		return types.NetworkSpec{}, "", "", fmt.Errorf("failed to detect local network: %w", err)
	}
	if err != nil {
		gologger.Warning().Msgf("could not detect local network (%v), using %s/%s", err, ip, mask)
	}
	spec, parseErr := netrange.FromAddressAndMask(ip, mask)
	if parseErr != nil {
		return types.NetworkSpec{}, ip, mask, parseErr
	}
	return spec, ip, mask, nil
}
