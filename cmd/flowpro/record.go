package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"github.com/urfave/cli/v2"
	slogctx "github.com/veqryn/slog-context"

	"github.com/ivanvanderbyl/flowpro/pkg/acquisition"
	"github.com/ivanvanderbyl/flowpro/pkg/config"
	"github.com/ivanvanderbyl/flowpro/pkg/control"
	"github.com/ivanvanderbyl/flowpro/pkg/homekit"
	"github.com/ivanvanderbyl/flowpro/pkg/iolink"
	"github.com/ivanvanderbyl/flowpro/pkg/metrics"
	"github.com/ivanvanderbyl/flowpro/pkg/record"
)

func recordAction(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext(c.Context)
	defer cancel()
	ctx = slogctx.Append(ctx, "run", s.Run.Name)

	var obs *metrics.Collector
	if s.Metrics.Addr != "" {
		obs = metrics.NewCollector()
	}

	client, err := masterClient(ctx, s, obs)
	if err != nil {
		slog.ErrorContext(ctx, "Could not reach a master", "error", err)
		return err
	}

	sess := &session{
		settings: s,
		client:   client,
		metrics:  obs,
		in:       os.Stdin,
		out:      c.App.Writer,
		started:  time.Now(),
	}
	return sess.run(ctx)
}

// session is one recording from inventory to close.
type session struct {
	settings *config.Settings
	client   *iolink.Client
	metrics  *metrics.Collector
	in       io.Reader
	out      io.Writer
	started  time.Time
}

func (s *session) run(ctx context.Context) error {
	channels, err := iolink.Inventory(ctx, s.client, s.settings.Master.Ports)
	if err != nil {
		return errors.Wrap(err, "identifying ports")
	}
	printInventory(s.out, channels)

	cfg, err := s.settings.AcquisitionConfig(channels)
	if err != nil {
		return err
	}

	sink, err := record.Create(s.settings.Run.Output, preambleFor(s.settings.Run.Name, s.started, channels), record.Header(cfg.PressureUnit, cfg.FlowUnit))
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			slog.ErrorContext(ctx, "Failed to close record", "error", err)
		}
	}()
	slog.InfoContext(ctx, "Recording", "output", s.settings.Run.Output)

	opts := []acquisition.Option{acquisition.WithRenderer(acquisition.NewTextRenderer(s.out))}
	if s.metrics != nil {
		opts = append(opts, acquisition.WithObserver(s.metrics))
	}

	// The bridge needs the loop and the loop needs the bridge's status hook.
	var bridge *homekit.Bridge
	if s.settings.HomeKit.Enabled {
		opts = append(opts, acquisition.WithStatusHook(func(st acquisition.Status) {
			bridge.Mirror(st)
		}))
	}

	loop, err := acquisition.New(cfg, s.client, sink, opts...)
	if err != nil {
		return err
	}

	if s.settings.HomeKit.Enabled {
		bridge = homekit.NewBridge(ctx, loop, homekit.Options{
			Name:   "FlowPro " + s.settings.Run.Name,
			Serial: s.settings.Run.Name,
			Pin:    s.settings.HomeKit.Pin,
			Store:  s.settings.HomeKit.Store,
			Debug:  s.settings.HomeKit.Debug,
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		defer cancel()
		return loop.Run(ctx)
	})
	p.Go(control.NewConsole(s.in, s.out, loop, cancel).Run)

	if bridge != nil {
		p.Go(func(ctx context.Context) error {
			if err := bridge.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
				return errors.Wrap(err, "homekit")
			}
			return nil
		})
	}
	if s.metrics != nil {
		addr := s.settings.Metrics.Addr
		p.Go(func(ctx context.Context) error {
			return s.metrics.Serve(ctx, addr)
		})
	}

	err = p.Wait()
	fmt.Fprintf(s.out, "Recorded %d samples to %s\n", sink.Row()-record.FirstDataRow, s.settings.Run.Output)
	if err != nil {
		slog.ErrorContext(ctx, "Run ended with an error", "error", err)
		return err
	}
	return nil
}

// preambleFor names the first pressure and flow devices found.
func preambleFor(name string, start time.Time, channels []iolink.ChannelDescriptor) record.Preamble {
	p := record.Preamble{RunName: name, Start: start}
	for _, ch := range channels {
		if !ch.Measures() {
			continue
		}
		switch {
		case ch.Profile.Role == iolink.RolePressure && p.PressureSensor == "":
			p.PressureSensor = ch.Name()
		case ch.Profile.Role == iolink.RoleFlow && p.FlowSensor == "":
			p.FlowSensor = ch.Name()
		}
	}
	if p.PressureSensor == "" {
		p.PressureSensor = "None"
	}
	if p.FlowSensor == "" {
		p.FlowSensor = "None"
	}
	return p
}
