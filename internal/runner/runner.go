package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/netscan/internal/api"
	"github.com/projectdiscovery/netscan/pkg/fingerprint"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/arp"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/pingsweep"
	"github.com/projectdiscovery/netscan/pkg/registry"
	"github.com/projectdiscovery/netscan/pkg/scanner"
	"github.com/projectdiscovery/netscan/pkg/types"
)

// Runner contains the internal logic of the program
type Runner struct {
	options       *Options
	prober        pingsweep.Prober
	fingerprinter scanner.Fingerprinter
	registry      *registry.Registry

	// stdout receives results in single scan mode
	stdout io.Writer
}

// NewRunner builds the scan pipeline described by options
func NewRunner(options *Options) (*Runner, error) {
	prober, err := pingsweep.NewProber(options.ProbeMode)
	if err != nil {
		return nil, err
	}

	neighbors := arp.NewTable(arp.WithActive(options.ActiveARP))
	resolver, err := fingerprint.New(neighbors, fingerprint.Options{
		HostnameTimeout: options.HostnameTimeout,
		MDNS:            !options.NoMDNS,
		OUIFile:         options.OUIFile,
		CacheSize:       fingerprint.DefaultCacheSize,
		CacheTTL:        fingerprint.DefaultCacheTTL,
	})
	if err != nil {
		return nil, err
	}

	results := registry.New()
	if options.ResultsFile != "" {
		results, err = registry.Open(options.ResultsFile)
		if err != nil {
			return nil, fmt.Errorf("could not open results file: %w", err)
		}
		gologger.Verbose().Msgf("loaded %d stored scans from %s", results.Len(), options.ResultsFile)
	}

	return &Runner{
		options:       options,
		prober:        prober,
		fingerprinter: resolver,
		registry:      results,
		stdout:        os.Stdout,
	}, nil
}

func (r *Runner) service(ctx context.Context) *scanner.Service {
	coordinator := scanner.NewCoordinator(r.prober, r.fingerprinter, scanner.NewStatus(), r.registry, scanner.Options{
		ProbeConcurrency:       r.options.Concurrency,
		FingerprintConcurrency: r.options.FingerprintConcurrency,
		ProbeTimeout:           r.options.Timeout,
		MaxHosts:               r.options.MaxHosts,
		Prioritize:             !r.options.NoPrioritize,
	})
	return scanner.NewService(ctx, coordinator)
}

// Run the instance
func (r *Runner) Run(ctx context.Context) error {
	service := r.service(ctx)

	switch {
	case r.options.ShowNetwork:
		spec, ip, mask, err := service.SuggestedNetwork()
		if err != nil {
			return err
		}
		gologger.Info().Msgf("local address %s, mask %s", ip, mask)
		gologger.Silent().Msgf("%s", spec)
		return nil
	case r.options.Server:
		defer func() {
			_ = service.Cancel()
			service.Wait()
		}()
		return api.NewServer(service).ListenAndServe(ctx, r.options.Listen)
	}

	record, err := service.Scan(ctx, r.options.Network)
	if err != nil {
		return err
	}
	if record.Failed() {
		return fmt.Errorf("scan of %s failed: %s", record.Network, record.Error)
	}
	return r.writeResult(record)
}

// writeResult prints the hosts of record and writes the optional output file
func (r *Runner) writeResult(record types.ScanRecord) error {
	if r.options.JSON {
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(r.stdout, string(data))
	} else {
		for _, host := range record.Hosts {
			_, _ = fmt.Fprintln(r.stdout, formatHost(host))
		}
	}

	if r.options.Output == "" {
		return nil
	}
	data, err := r.registry.Export(record.ID)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(r.options.Output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("could not create output directory: %w", err)
		}
	}
	if err := os.WriteFile(r.options.Output, data, 0644); err != nil {
		return fmt.Errorf("could not write output: %w", err)
	}
	gologger.Info().Msgf("scan %d written to %s", record.ID, r.options.Output)
	return nil
}

// formatHost renders one host as a result line
func formatHost(host types.Host) string {
	fields := []string{
		au.Green(host.IP.String()).String(),
		host.MACAddress,
		host.Vendor,
		au.Cyan(host.Hostname).String(),
		au.Yellow(host.DeviceType).String(),
	}
	return strings.Join(fields, " | ")
}
