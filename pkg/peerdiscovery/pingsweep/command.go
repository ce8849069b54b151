package pingsweep

import (
	"context"
	"net/netip"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/projectdiscovery/gologger"
	osutils "github.com/projectdiscovery/utils/os"
)

var ttlPattern = regexp.MustCompile(`(?i)ttl`)

// CommandProber runs the system ping utility once per probe
type CommandProber struct {
	// Path overrides the ping binary, mainly for tests
	Path string
}

// Probe reports whether ping got a reply. A reply line always carries a TTL
// field, so the output is searched for it rather than trusting the exit code.
func (p *CommandProber) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) bool {
	addr = addr.Unmap()
	if !addr.Is4() {
		return false
	}

	timeout = clampTimeout(timeout)
	// Leave room for process start-up without exceeding the probe ceiling
	ctx, cancel := context.WithTimeout(ctx, min(timeout+time.Second, MaxTimeout))
	defer cancel()

	path := p.Path
	if path == "" {
		path = "ping"
	}

	cmd := exec.CommandContext(ctx, path, pingArgs(addr, timeout)...)
	cmd.WaitDelay = 100 * time.Millisecond
	output, err := cmd.CombinedOutput()
	if err != nil && ctx.Err() != nil {
		gologger.Debug().Msgf("probe %s: ping timed out", addr)
		return false
	}
	return ttlPattern.Match(output)
}

// pingArgs builds a single-echo ping invocation for the current platform
func pingArgs(addr netip.Addr, timeout time.Duration) []string {
	switch {
	case osutils.IsWindows():
		return []string{"-n", "1", "-w", strconv.FormatInt(timeout.Milliseconds(), 10), addr.String()}
	case osutils.IsOSX():
		// -W is in milliseconds on darwin
		return []string{"-c", "1", "-W", strconv.FormatInt(timeout.Milliseconds(), 10), addr.String()}
	default:
		seconds := max(1, int(timeout/time.Second))
		return []string{"-c", "1", "-W", strconv.Itoa(seconds), addr.String()}
	}
}
