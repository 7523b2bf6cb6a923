package discovery

import (
	"context"
	"net/netip"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// NetworkProbe is what the discovery engine needs from the network: a
// reachability probe and a view of the neighbor table.
type NetworkProbe interface {
	// Probe reports whether addr answered. A failed probe is not an error.
	Probe(ctx context.Context, addr netip.Addr) bool
	Neighbors(ctx context.Context) ([]Neighbor, error)
}

const (
	DefaultProbeTimeout = 700 * time.Millisecond

	linuxNeighborTable = "/proc/net/arp"
)

// OSProbe shells out to the system ping and reads the kernel neighbor table.
type OSProbe struct {
	timeout time.Duration
	goos    string
	table   string
}

func NewOSProbe(timeout time.Duration) *OSProbe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &OSProbe{
		timeout: timeout,
		goos:    runtime.GOOS,
		table:   linuxNeighborTable,
	}
}

func (p *OSProbe) Timeout() time.Duration { return p.timeout }

func (p *OSProbe) Probe(ctx context.Context, addr netip.Addr) bool {
	// ping's own timeout plus a little for process start up.
	ctx, cancel := context.WithTimeout(ctx, p.timeout+250*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ping", pingArgs(p.goos, p.timeout, addr)...)
	return cmd.Run() == nil
}

func (p *OSProbe) Neighbors(ctx context.Context) ([]Neighbor, error) {
	if p.goos == "linux" {
		b, err := os.ReadFile(p.table)
		if err == nil {
			return ParseNeighborTable(string(b)), nil
		}
	}

	out, err := exec.CommandContext(ctx, "arp", "-a").Output()
	if err != nil {
		return nil, errors.Wrap(err, "listing neighbor table")
	}
	return ParseNeighborTable(string(out)), nil
}

func pingArgs(goos string, timeout time.Duration, addr netip.Addr) []string {
	switch goos {
	case "windows":
		return []string{"-n", "1", "-w", strconv.FormatInt(timeout.Milliseconds(), 10), addr.String()}
	case "darwin", "freebsd":
		return []string{"-c", "1", "-W", strconv.FormatInt(timeout.Milliseconds(), 10), addr.String()}
	default:
		// iputils only takes whole seconds.
		secs := int64((timeout + time.Second - 1) / time.Second)
		return []string{"-c", "1", "-W", strconv.FormatInt(max(secs, 1), 10), addr.String()}
	}
}
