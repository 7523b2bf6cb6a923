package acquisition

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	slogctx "github.com/veqryn/slog-context"

	"github.com/ivanvanderbyl/flowpro/pkg/decode"
	"github.com/ivanvanderbyl/flowpro/pkg/iolink"
)

// ErrNoSensorData means a tick produced neither a pressure nor a flow
// reading although the master answered. The run cannot continue.
var ErrNoSensorData = errors.New("no usable pressure or flow reading; check that all sensors are connected")

const (
	pollInterval  = 10 * time.Millisecond
	signalBacklog = 16
)

// Measurement is a value that may be absent.
type Measurement struct {
	Value float64
	Valid bool
}

func Value(v float64) Measurement { return Measurement{Value: v, Valid: true} }

// Sample is one row of a run.
type Sample struct {
	Time     time.Time
	Elapsed  float64 // seconds since the first sample
	Pressure Measurement
	Flow     Measurement
}

// Reader fetches raw process data for a port.
type Reader interface {
	ProcessData(ctx context.Context, port int) (string, error)
}

// Sink receives every sample in order. The loop makes no assumption about
// how long Append takes.
type Sink interface {
	Append(Sample) error
}

// Observer is told about loop events, for metrics.
type Observer interface {
	SampleRecorded(Sample)
	ChannelFailed(port int, kind string)
	StatusChanged(Status)
}

type Signal int

const (
	SignalStart Signal = iota
	SignalStop
	SignalToggleBurst
)

func (s Signal) String() string {
	switch s {
	case SignalStart:
		return "start"
	case SignalStop:
		return "stop"
	case SignalToggleBurst:
		return "burst"
	}
	return "unknown"
}

// Bounds are the display axis limits.
type Bounds struct {
	PressureMin, PressureMax float64
	FlowMin, FlowMax         float64
}

// Config is fixed for the lifetime of a run.
type Config struct {
	Channels     []iolink.ChannelDescriptor
	PressureUnit decode.PressureUnit
	FlowUnit     decode.FlowUnit
	Interval     time.Duration
	Sliding      bool
	Bounds       Bounds
}

// Loop is the acquisition state machine. Everything it owns is touched only
// from the goroutine running Run; other goroutines talk to it through Send.
type Loop struct {
	cfg      Config
	reader   Reader
	sink     Sink
	renderer Renderer
	observer Observer
	onStatus []func(Status)

	state   *RunState
	window  *Window
	signals chan Signal
	now     func() time.Time
}

type Option func(*Loop)

func WithRenderer(r Renderer) Option { return func(l *Loop) { l.renderer = r } }

func WithObserver(o Observer) Option { return func(l *Loop) { l.observer = o } }

// WithStatusHook registers fn to be called after every state transition.
func WithStatusHook(fn func(Status)) Option {
	return func(l *Loop) { l.onStatus = append(l.onStatus, fn) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(l *Loop) { l.now = now } }

func New(cfg Config, reader Reader, sink Sink, opts ...Option) (*Loop, error) {
	if err := ValidateInterval(cfg.Interval); err != nil {
		return nil, err
	}
	if reader == nil || sink == nil {
		return nil, errors.New("acquisition: reader and sink are required")
	}

	limit := 0
	if cfg.Sliding {
		limit = WindowSize
	}

	l := &Loop{
		cfg:     cfg,
		reader:  reader,
		sink:    sink,
		state:   NewRunState(cfg.Interval),
		window:  NewWindow(limit),
		signals: make(chan Signal, signalBacklog),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Send queues a control signal for the loop. It never blocks; a signal
// arriving while the backlog is full is dropped.
func (l *Loop) Send(sig Signal) {
	select {
	case l.signals <- sig:
	default:
		slog.Warn("Dropping control signal, loop is busy", "signal", sig.String())
	}
}

// Run polls until ctx is done or a fatal error occurs.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Acquisition loop ready", "interval", l.cfg.Interval, "sliding", l.cfg.Sliding)
	l.render()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping acquisition loop", "status", l.state.Status().String())
			return nil
		case sig := <-l.signals:
			l.Apply(ctx, sig)
		case <-ticker.C:
			if err := l.Tick(ctx); err != nil {
				return err
			}
		}
	}
}

// Apply performs one control transition. Run calls it for queued signals.
func (l *Loop) Apply(ctx context.Context, sig Signal) {
	now := l.now()

	changed := true
	switch sig {
	case SignalStart:
		changed = l.state.Start(now)
		if changed {
			slog.InfoContext(ctx, "Data collection started")
		}
	case SignalStop:
		changed = l.state.Stop()
		if changed {
			slog.InfoContext(ctx, "Data collection stopped")
		}
	case SignalToggleBurst:
		l.state.ToggleBurst(now)
		slog.InfoContext(ctx, "Burst mode toggled", "burst", l.state.Burst(), "interval", l.state.Interval())
	default:
		return
	}
	if !changed {
		return
	}

	st := l.state.Status()
	for _, fn := range l.onStatus {
		fn(st)
	}
	if l.observer != nil {
		l.observer.StatusChanged(st)
	}
	l.render()
}

// Tick takes a sample if the loop is running and one is due.
func (l *Loop) Tick(ctx context.Context) error {
	now := l.now()
	if !l.state.Due(now) {
		return nil
	}

	pressure, flow, answered := l.read(ctx)
	if !pressure.Valid && !flow.Valid {
		if !answered {
			slog.WarnContext(ctx, "Skipping sample, master did not answer")
			l.state.Skipped(now)
			return nil
		}
		slog.ErrorContext(ctx, "Sample rejected", "error", ErrNoSensorData)
		l.state.Stop()
		return ErrNoSensorData
	}

	s := Sample{
		Time:     now,
		Elapsed:  l.state.Sampled(now),
		Pressure: pressure,
		Flow:     flow,
	}
	if err := l.sink.Append(s); err != nil {
		l.state.Stop()
		return errors.Wrap(err, "appending sample")
	}
	l.window.Push(s)

	if l.observer != nil {
		l.observer.SampleRecorded(s)
	}
	l.render()
	return nil
}

// read queries every measuring channel once. answered is false when every
// attempted channel failed at the transport level.
func (l *Loop) read(ctx context.Context) (pressure, flow Measurement, answered bool) {
	attempted, unreachable := 0, 0

	for _, ch := range l.cfg.Channels {
		if !ch.Measures() {
			continue
		}
		attempted++
		ctx := slogctx.Append(ctx, "port", ch.Port)

		raw, err := l.reader.ProcessData(ctx, ch.Port)
		if err != nil {
			var te *iolink.TransportError
			if errors.As(err, &te) {
				unreachable++
			}
			l.channelFailed(ctx, ch.Port, err)
			continue
		}

		kind := ch.Profile.Decoder
		switch {
		case kind.IsPressure():
			r, err := decode.Pressure(raw)
			if err != nil {
				l.channelFailed(ctx, ch.Port, err)
				continue
			}
			pressure = Value(r.In(l.cfg.PressureUnit))
		case kind.IsFlow():
			r, err := kind.Flow(raw)
			if err != nil {
				l.channelFailed(ctx, ch.Port, err)
				continue
			}
			flow = Value(r.In(l.cfg.FlowUnit))
		}
	}

	return pressure, flow, attempted == 0 || unreachable < attempted
}

func (l *Loop) channelFailed(ctx context.Context, port int, err error) {
	kind := ErrorKind(err)
	slog.WarnContext(ctx, "Channel read failed", "kind", kind, "error", err)
	if l.observer != nil {
		l.observer.ChannelFailed(port, kind)
	}
}

func (l *Loop) render() {
	if l.renderer == nil {
		return
	}
	latest, ok := l.window.Latest()
	f := Frame{
		Status:       l.state.Status(),
		Samples:      l.window.Samples(),
		PressureUnit: l.cfg.PressureUnit,
		FlowUnit:     l.cfg.FlowUnit,
		Bounds:       l.cfg.Bounds,
	}
	if ok {
		f.Latest = &latest
	}
	l.renderer.Render(f)
}

// Status returns the current run state. Only safe from the Run goroutine or
// when Run is not running.
func (l *Loop) Status() Status { return l.state.Status() }

// Window returns the display buffer. The same rules as Status apply.
func (l *Loop) Window() *Window { return l.window }

// ErrorKind classifies a per-channel failure as transport, protocol or decode.
func ErrorKind(err error) string {
	var (
		te *iolink.TransportError
		pe *iolink.ProtocolError
		de *decode.DecodeError
	)
	switch {
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &pe):
		return "protocol"
	case errors.As(err, &de):
		return "decode"
	}
	return "other"
}
