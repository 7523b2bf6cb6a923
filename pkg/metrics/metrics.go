package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ivanvanderbyl/flowpro/pkg/acquisition"
)

const namespace = "flowpro"

// Collector records acquisition and discovery metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	samples           prometheus.Counter
	channelErrors     *prometheus.CounterVec
	discoveryDuration prometheus.Histogram
	discoveries       *prometheus.CounterVec
	running           prometheus.Gauge
	burst             prometheus.Gauge
	interval          prometheus.Gauge
	started           prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Samples appended to the record.",
		}),
		channelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_errors_total",
			Help:      "Failed channel reads by port and kind.",
		}, []string{"port", "kind"}),
		discoveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Time taken by master discovery.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		discoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discoveries_total",
			Help:      "Discovery runs by result.",
		}, []string{"result"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while data collection is running.",
		}),
		burst: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "burst",
			Help:      "1 while burst mode is on.",
		}),
		interval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sample_interval_seconds",
			Help:      "Current sampling interval.",
		}),
		started: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_started_timestamp_seconds",
			Help:      "Unix time data collection was first started.",
		}),
	}

	c.registry.MustRegister(
		c.samples,
		c.channelErrors,
		c.discoveryDuration,
		c.discoveries,
		c.running,
		c.burst,
		c.interval,
		c.started,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) SampleRecorded(acquisition.Sample) { c.samples.Inc() }

func (c *Collector) ChannelFailed(port int, kind string) {
	c.channelErrors.WithLabelValues(strconv.Itoa(port), kind).Inc()
}

func (c *Collector) StatusChanged(s acquisition.Status) {
	c.running.Set(boolGauge(s.Running))
	c.burst.Set(boolGauge(s.Burst))
	c.interval.Set(s.Interval.Seconds())
	if !s.StartedAt.IsZero() {
		c.started.Set(float64(s.StartedAt.UnixMilli()) / 1000)
	}
}

// ObserveDiscovery records one discovery run.
func (c *Collector) ObserveDiscovery(took time.Duration, found bool) {
	c.discoveryDuration.Observe(took.Seconds())
	result := "timeout"
	if found {
		result = "found"
	}
	c.discoveries.WithLabelValues(result).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.InfoContext(ctx, "Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serving metrics")
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
