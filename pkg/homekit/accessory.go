package homekit

import (
	"context"
	syslog "log"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/log"
	"github.com/pkg/errors"

	"github.com/ivanvanderbyl/flowpro/pkg/acquisition"
	"github.com/ivanvanderbyl/flowpro/pkg/control"
)

type Options struct {
	Name   string
	Serial string
	Pin    string // 8 digits; hap picks its default when empty
	Store  string // pairing store directory
	Debug  bool
}

// Bridge exposes the acquisition loop as two HomeKit switches: Recording
// starts and stops collection, Burst toggles burst mode.
type Bridge struct {
	opts      Options
	loop      control.Sender
	bridge    *accessory.Bridge
	recording *accessory.Switch
	burst     *accessory.Switch

	// burstOn is the burst state the loop has or will have once queued
	// toggles are applied.
	burstOn atomic.Bool
}

func NewBridge(ctx context.Context, loop control.Sender, opts Options) *Bridge {
	if opts.Name == "" {
		opts.Name = "FlowPro"
	}
	if opts.Store == "" {
		opts.Store = "./db"
	}

	b := &Bridge{
		opts: opts,
		loop: loop,
		bridge: accessory.NewBridge(accessory.Info{
			Name:         opts.Name,
			SerialNumber: opts.Serial,
			Manufacturer: "FlowPro",
			Model:        "IO-Link Recorder",
		}),
		recording: accessory.NewSwitch(accessory.Info{Name: "Recording"}),
		burst:     accessory.NewSwitch(accessory.Info{Name: "Burst"}),
	}

	b.recording.Switch.On.OnValueRemoteUpdate(func(on bool) {
		slog.InfoContext(ctx, "HomeKit recording switch", "on", on)
		b.setRecording(on)
	})
	b.burst.Switch.On.OnValueRemoteUpdate(func(on bool) {
		slog.InfoContext(ctx, "HomeKit burst switch", "on", on)
		b.setBurst(on)
	})

	return b
}

func (b *Bridge) setRecording(on bool) {
	if on {
		b.loop.Send(acquisition.SignalStart)
		return
	}
	b.loop.Send(acquisition.SignalStop)
}

func (b *Bridge) setBurst(on bool) {
	if !b.burstOn.CompareAndSwap(!on, on) {
		return
	}
	b.loop.Send(acquisition.SignalToggleBurst)
}

// Mirror reflects a loop status on the switches. Register it with
// acquisition.WithStatusHook.
func (b *Bridge) Mirror(s acquisition.Status) {
	b.burstOn.Store(s.Burst)
	b.recording.Switch.On.SetValue(s.Running)
	b.burst.Switch.On.SetValue(s.Burst)
}

// ListenAndServe runs the HomeKit server until ctx is done.
func (b *Bridge) ListenAndServe(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting HomeKit server", "name", b.opts.Name, "store", b.opts.Store)

	if b.opts.Debug {
		newLogger := syslog.New(os.Stdout, "HAP ", syslog.LstdFlags|syslog.Lshortfile)
		log.Debug = &log.Logger{Logger: newLogger}
	}

	server, err := hap.NewServer(hap.NewFsStore(b.opts.Store), b.bridge.A, b.recording.A, b.burst.A)
	if err != nil {
		return errors.Wrap(err, "creating server")
	}
	if b.opts.Pin != "" {
		server.Pin = b.opts.Pin
	}

	return server.ListenAndServe(ctx)
}
