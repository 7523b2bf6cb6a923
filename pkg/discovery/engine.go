package discovery

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	slogctx "github.com/veqryn/slog-context"
)

// ErrDiscoveryTimeout is returned when no neighbor matched before the
// overall deadline or the address list ran out.
var ErrDiscoveryTimeout = errors.New("no matching device found before the discovery deadline")

const (
	DefaultMaxWorkers     = 50
	DefaultBatchSize      = 200
	DefaultOverallTimeout = 20 * time.Second
	DefaultBatchPause     = 200 * time.Millisecond
)

// Options tunes one discovery run.
type Options struct {
	Subnet netip.Prefix
	Prefix HardwareAddressPrefix

	MaxWorkers     int
	BatchSize      int
	OverallTimeout time.Duration
	BatchPause     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.OverallTimeout <= 0 {
		o.OverallTimeout = DefaultOverallTimeout
	}
	if o.BatchPause <= 0 {
		o.BatchPause = DefaultBatchPause
	}
	return o
}

// Result is the outcome of a discovery run. Address and HardwareAddress are
// either both set or both empty.
type Result struct {
	Address         netip.Addr
	HardwareAddress string
}

func (r Result) Found() bool { return r.Address.IsValid() }

// Engine sweeps a subnet with probes so the target shows up in the neighbor
// table, then picks it out by hardware address prefix.
type Engine struct {
	probe NetworkProbe
}

func NewEngine(probe NetworkProbe) *Engine {
	return &Engine{probe: probe}
}

// Discover probes every host of opts.Subnet in ascending order with at most
// opts.MaxWorkers probes in flight. It returns as soon as a neighbor matches,
// or ErrDiscoveryTimeout once the deadline passes or every address has been
// tried.
func (e *Engine) Discover(ctx context.Context, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if opts.Prefix == "" {
		return Result{}, errors.Wrap(ErrInvalidPrefix, "prefix is required")
	}

	hosts, err := Hosts(opts.Subnet)
	if err != nil {
		return Result{}, err
	}

	ctx = slogctx.Append(ctx, "subnet", opts.Subnet.String(), "prefix", opts.Prefix.String())
	slog.InfoContext(ctx, "Scanning subnet", "addresses", len(hosts), "workers", opts.MaxWorkers)

	deadline := time.Now().Add(opts.OverallTimeout)

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := &latch{}
	check := func(ctx context.Context) {
		neighbors, err := e.probe.Neighbors(ctx)
		if err != nil {
			// Treated as an empty table; the next check retries.
			slog.DebugContext(ctx, "Neighbor table read failed", "error", err)
			return
		}
		if n, ok := Match(neighbors, opts.Subnet, opts.Prefix); ok && found.set(n) {
			cancel()
		}
	}

	p := pool.New().WithMaxGoroutines(opts.MaxWorkers).WithContext(scanCtx)

submit:
	for i, addr := range hosts {
		switch {
		case found.done(), scanCtx.Err() != nil:
			break submit
		case time.Now().After(deadline):
			slog.WarnContext(ctx, "Overall timeout reached, stopping scan", "submitted", i)
			break submit
		}

		p.Go(func(scan context.Context) error {
			if found.done() || scan.Err() != nil {
				return nil
			}
			// A dispatched probe runs to its own timeout even after a match.
			e.probe.Probe(ctx, addr)
			if scan.Err() == nil {
				check(scan)
			}
			return nil
		})

		if (i+1)%opts.BatchSize == 0 {
			pause(scanCtx, opts.BatchPause)
			if !found.done() {
				check(scanCtx)
			}
		}
	}

	e.await(ctx, p, time.Until(deadline), cancel)

	if res, ok := found.get(); ok {
		slog.InfoContext(ctx, "Found device", "address", res.Address.String(), "hardware-address", res.HardwareAddress)
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, errors.Wrap(err, "discovery cancelled")
	}
	return Result{}, ErrDiscoveryTimeout
}

// await waits for in-flight probes for at most budget, then abandons them.
func (e *Engine) await(ctx context.Context, p *pool.ContextPool, budget time.Duration, cancel context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		_ = p.Wait()
		close(done)
	}()

	timer := time.NewTimer(max(budget, 0))
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		slog.DebugContext(ctx, "Abandoning in-flight probes")
		cancel()
	case <-ctx.Done():
	}
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// latch holds the first match. Later writes are ignored.
type latch struct {
	once  sync.Once
	isSet atomic.Bool
	mu    sync.Mutex
	res   Result
}

func (l *latch) set(n Neighbor) bool {
	won := false
	l.once.Do(func() {
		l.mu.Lock()
		l.res = Result{Address: n.Address, HardwareAddress: n.HardwareAddress}
		l.mu.Unlock()
		l.isSet.Store(true)
		won = true
	})
	return won
}

func (l *latch) done() bool { return l.isSet.Load() }

func (l *latch) get() (Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.res, l.res.Found()
}
