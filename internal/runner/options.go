package runner

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/logrusorgru/aurora/v4"
	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/formatter"
	"github.com/projectdiscovery/gologger/levels"
	"github.com/projectdiscovery/netscan/pkg/fingerprint"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/netrange"
	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/pingsweep"
	"github.com/projectdiscovery/netscan/pkg/scanner"
	"github.com/projectdiscovery/netscan/pkg/version"
	envutil "github.com/projectdiscovery/utils/env"
	fileutil "github.com/projectdiscovery/utils/file"
	sliceutil "github.com/projectdiscovery/utils/slice"
)

var (
	ListenEnv      = envutil.GetEnvOrDefault("NETSCAN_LISTEN", "127.0.0.1:8080")
	ResultsFileEnv = envutil.GetEnvOrDefault("NETSCAN_RESULTS_FILE", "")
	OUIFileEnv     = envutil.GetEnvOrDefault("NETSCAN_OUI_FILE", "")
	ProbeModeEnv   = envutil.GetEnvOrDefault("NETSCAN_PROBE_MODE", pingsweep.ModeAuto)
	VerboseEnv     = envutil.GetEnvOrDefault("NETSCAN_VERBOSE", "")
)

var au = aurora.New(aurora.WithColors(true))

var probeModes = []string{pingsweep.ModeAuto, pingsweep.ModeICMP, pingsweep.ModeCommand}

// Options contains the configuration options for a scan or the API server
type Options struct {
	ConfigFile string

	Network     string
	ShowNetwork bool

	ProbeMode              string
	Concurrency            int
	FingerprintConcurrency int
	Timeout                time.Duration
	MaxHosts               int
	NoPrioritize           bool

	HostnameTimeout time.Duration
	NoMDNS          bool
	OUIFile         string
	ActiveARP       bool

	Server bool
	Listen string

	Output      string
	JSON        bool
	ResultsFile string

	Verbose bool
	Silent  bool
	NoColor bool
	Version bool
}

// ParseOptions parses the command line flags provided by a user
func ParseOptions() *Options {
	options := &Options{}
	flagSet := goflags.NewFlagSet()

	flagSet.SetDescription(`netscan discovers live hosts on a local subnet and fingerprints them`)

	flagSet.CreateGroup("input", "Input",
		flagSet.StringVarP(&options.Network, "network", "n", "", "network to scan (CIDR, a.b.c or a.b.c.d), defaults to the local network"),
		flagSet.BoolVarP(&options.ShowNetwork, "show-network", "sn", false, "show the detected local network then exit"),
	)

	flagSet.CreateGroup("scan", "Scan",
		flagSet.StringVarP(&options.ProbeMode, "probe-mode", "pm", ProbeModeEnv, "liveness probe to use (auto, icmp, command)"),
		flagSet.IntVarP(&options.Concurrency, "concurrency", "c", scanner.DefaultProbeConcurrency, "number of addresses probed in parallel"),
		flagSet.IntVarP(&options.FingerprintConcurrency, "fingerprint-concurrency", "fc", scanner.DefaultFingerprintConcurrency, "number of hosts fingerprinted in parallel"),
		flagSet.DurationVarP(&options.Timeout, "timeout", "t", pingsweep.DefaultTimeout, "probe timeout per address"),
		flagSet.IntVarP(&options.MaxHosts, "max-hosts", "mh", netrange.DefaultMaxHosts, "largest number of hosts a network may contain (0 disables the limit)"),
		flagSet.BoolVarP(&options.NoPrioritize, "no-prioritize", "np", false, "probe addresses in ascending order"),
	)

	flagSet.CreateGroup("fingerprint", "Fingerprint",
		flagSet.DurationVarP(&options.HostnameTimeout, "hostname-timeout", "ht", fingerprint.DefaultHostnameTimeout, "hostname lookup timeout per host"),
		flagSet.BoolVar(&options.NoMDNS, "no-mdns", false, "disable the mdns hostname fallback"),
		flagSet.StringVarP(&options.OUIFile, "oui-file", "of", OUIFileEnv, "ieee oui.txt file with additional vendor prefixes"),
		flagSet.BoolVarP(&options.ActiveARP, "active-arp", "aa", false, "send arp requests for hosts missing from the neighbor table (linux, requires root)"),
	)

	flagSet.CreateGroup("server", "Server",
		flagSet.BoolVarP(&options.Server, "server", "s", false, "serve the scan api instead of running a single scan"),
		flagSet.StringVarP(&options.Listen, "listen", "l", ListenEnv, "address the api listens on"),
	)

	flagSet.CreateGroup("output", "Output",
		flagSet.StringVarP(&options.Output, "output", "o", "", "file to write the scan result to (json)"),
		flagSet.BoolVarP(&options.JSON, "json", "j", false, "print the scan result as json"),
		flagSet.StringVarP(&options.ResultsFile, "results-file", "rf", ResultsFileEnv, "file stored scan results are persisted to"),
	)

	flagSet.CreateGroup("debug", "Debug",
		flagSet.StringVar(&options.ConfigFile, "config", "", "cli flag configuration file"),
		flagSet.BoolVar(&options.Version, "version", false, "show version of the project"),
		flagSet.BoolVarP(&options.Verbose, "verbose", "v", false, "show verbose output"),
		flagSet.BoolVar(&options.Silent, "silent", false, "show only results in output"),
		flagSet.BoolVarP(&options.NoColor, "no-color", "nc", false, "disable output content coloring (ANSI escape codes)"),
	)

	if err := flagSet.Parse(); err != nil {
		gologger.Fatal().Msgf("%s\n", err)
	}

	if options.ConfigFile != "" {
		if !fileutil.FileExists(options.ConfigFile) {
			gologger.Fatal().Msgf("config file %s does not exist", options.ConfigFile)
		}
		if err := flagSet.MergeConfigFile(options.ConfigFile); err != nil {
			gologger.Fatal().Msgf("Could not read config: %s\n", err)
		}
	}

	if (VerboseEnv == "true" || VerboseEnv == "1") && !options.Verbose {
		options.Verbose = true
	}

	options.configureOutput()

	if options.Version {
		gologger.Info().Msgf("Current Version: %s\n", version.GetVersion())
		os.Exit(0)
	}

	if err := options.validate(); err != nil {
		gologger.Fatal().Msgf("Program exiting: %s\n", err)
	}

	return options
}

// configureOutput configures the output on the screen
func (options *Options) configureOutput() {
	if options.Verbose {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelVerbose)
	}
	if options.NoColor {
		gologger.DefaultLogger.SetFormatter(formatter.NewCLI(true))
		au = aurora.New(aurora.WithColors(false))
	}
	if options.Silent {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
	}
}

// validate rejects contradictory options and clamps the rest
func (options *Options) validate() error {
	if !sliceutil.Contains(probeModes, options.ProbeMode) {
		return fmt.Errorf("invalid probe mode %q, expected one of %v", options.ProbeMode, probeModes)
	}
	if options.MaxHosts < 0 {
		return errors.New("max-hosts cannot be negative")
	}
	if options.Server {
		if options.Listen == "" {
			return errors.New("server mode requires a listen address")
		}
		if options.Output != "" || options.JSON {
			return errors.New("output and json cannot be used in server mode")
		}
	}

	options.Concurrency = max(options.Concurrency, 1)
	options.FingerprintConcurrency = max(options.FingerprintConcurrency, 1)
	if options.Timeout <= 0 {
		options.Timeout = pingsweep.DefaultTimeout
	}
	options.Timeout = min(options.Timeout, pingsweep.MaxTimeout)
	if options.HostnameTimeout <= 0 {
		options.HostnameTimeout = fingerprint.DefaultHostnameTimeout
	}
	return nil
}
