package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	slogctx "github.com/veqryn/slog-context"

	"github.com/ivanvanderbyl/flowpro/pkg/config"
	"github.com/ivanvanderbyl/flowpro/pkg/decode"
	"github.com/ivanvanderbyl/flowpro/pkg/discovery"
	"github.com/ivanvanderbyl/flowpro/pkg/iolink"
	"github.com/ivanvanderbyl/flowpro/pkg/metrics"
)

func discoverAction(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	ctx, cancel := interruptContext(c.Context)
	defer cancel()

	res, err := discover(ctx, s, nil)
	if err != nil {
		slog.ErrorContext(ctx, "Discovery failed", "error", err)
		return err
	}

	fmt.Fprintf(c.App.Writer, "Master: %s\n\tHardware Address: %s\n", res.Address, res.HardwareAddress)
	return nil
}

func inventoryAction(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	ctx, cancel := interruptContext(c.Context)
	defer cancel()

	client, err := masterClient(ctx, s, nil)
	if err != nil {
		return err
	}

	channels, err := iolink.Inventory(ctx, client, s.Master.Ports)
	if err != nil {
		return errors.Wrap(err, "identifying ports")
	}
	printInventory(c.App.Writer, channels)
	return nil
}

func readAction(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	port := c.Int("port")
	if err := iolink.ValidatePorts([]int{port}); err != nil {
		return err
	}

	ctx, cancel := interruptContext(c.Context)
	defer cancel()

	client, err := masterClient(ctx, s, nil)
	if err != nil {
		return err
	}
	return readPort(ctx, c.App.Writer, client, port, s)
}

func decodeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one hex payload")
	}
	kind, err := decode.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}
	return printDecoded(c.App.Writer, kind, c.Args().First())
}

// discover runs the subnet sweep. obs may be nil.
func discover(ctx context.Context, s *config.Settings, obs *metrics.Collector) (discovery.Result, error) {
	opts, err := s.DiscoveryOptions()
	if err != nil {
		return discovery.Result{}, err
	}

	probe := discovery.NewOSProbe(s.Discovery.ProbeTimeout)
	slog.DebugContext(ctx, "Starting discovery", "probe-timeout", probe.Timeout(), "batch-size", opts.BatchSize)

	engine := discovery.NewEngine(probe)
	start := time.Now()
	res, err := engine.Discover(ctx, opts)
	if obs != nil {
		obs.ObserveDiscovery(time.Since(start), res.Found())
	}
	return res, err
}

// masterClient returns a client for the configured target, discovering one
// when none is set.
func masterClient(ctx context.Context, s *config.Settings, obs *metrics.Collector) (*iolink.Client, error) {
	addr, ok := s.Target()
	if !ok {
		res, err := discover(ctx, s, obs)
		if err != nil {
			return nil, errors.Wrap(err, "locating master")
		}
		addr = res.Address
	}

	ctx = slogctx.Append(ctx, "target", addr.String())
	slog.InfoContext(ctx, "Using master")
	return iolink.NewMasterClient(addr), nil
}

func printInventory(w io.Writer, channels []iolink.ChannelDescriptor) {
	for _, ch := range channels {
		role := "-"
		if ch.Measures() {
			role = string(ch.Profile.Role)
		}
		fmt.Fprintf(w, "Port %d: %s\n\tDevice ID: %d\n\tRole: %s\n", ch.Port, ch.Name(), ch.DeviceID, role)
	}
}

func readPort(ctx context.Context, w io.Writer, client *iolink.Client, port int, s *config.Settings) error {
	ctx = slogctx.Append(ctx, "port", port)

	id, err := client.DeviceID(ctx, port)
	if err != nil {
		return errors.Wrap(err, "identifying device")
	}
	profile, ok := iolink.LookupDevice(id)
	if !ok || profile.Decoder == decode.KindNone {
		return errors.Errorf("port %d: device %d has no decoder", port, id)
	}

	raw, err := client.ProcessData(ctx, port)
	if err != nil {
		return errors.Wrap(err, "reading process data")
	}

	pu, err := decode.ParsePressureUnit(s.Run.PressureUnit)
	if err != nil {
		return err
	}
	fu, err := decode.ParseFlowUnit(s.Run.FlowUnit)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Port %d: %s\n\tRaw: %s\n", port, profile.DisplayName, raw)
	if profile.Decoder.IsPressure() {
		r, err := decode.Pressure(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tPressure: %.2f%s\n", r.In(pu), pu)
		return nil
	}
	r, err := profile.Decoder.Flow(raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\tFlow: %.2f%s\n", r.In(fu), fu)
	return nil
}

func printDecoded(w io.Writer, kind decode.Kind, raw string) error {
	switch {
	case kind.IsPressure():
		r, err := decode.Pressure(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%g bar\n%g psi\n%g kpa\n", r.Bar, r.PSI, r.KPa)
	case kind.IsFlow():
		r, err := kind.Flow(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%g l/m\n%g g/m\n", r.LitresPerMinute, r.GallonsPerMinute)
	default:
		return errors.Errorf("%s has nothing to decode", kind)
	}
	return nil
}
