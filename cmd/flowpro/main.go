package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	slogctx "github.com/veqryn/slog-context"

	"github.com/ivanvanderbyl/flowpro/pkg/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "flowpro",
		Usage: "Pressure and flow recorder for IO-Link masters",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML settings file",
				EnvVars: []string{"FLOWPRO_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"FLOWPRO_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "Log as JSON",
				EnvVars: []string{"FLOWPRO_LOG_JSON"},
			},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			{
				Name:   "discover",
				Usage:  "Search the subnet for an IO-Link master",
				Flags:  discoveryFlags,
				Action: discoverAction,
			},
			{
				Name:   "inventory",
				Usage:  "List the devices attached to each port of the master",
				Flags:  append(discoveryFlags, portsFlag),
				Action: inventoryAction,
			},
			{
				Name:  "read",
				Usage: "Read and decode the live process data of one port",
				Flags: append(discoveryFlags,
					&cli.IntFlag{
						Name:     "port",
						Usage:    "Port to read (1-4)",
						Required: true,
					},
					pressureUnitFlag,
					flowUnitFlag,
				),
				Action: readAction,
			},
			{
				Name:      "decode",
				Usage:     "Decode a hex payload offline",
				ArgsUsage: "HEX",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "kind",
						Usage:    "pressure, flow-keyence or flow-ifm",
						Required: true,
					},
				},
				Action: decodeAction,
			},
			{
				Name:   "record",
				Usage:  "Record a run to a CSV file",
				Flags:  append(append(discoveryFlags, portsFlag, pressureUnitFlag, flowUnitFlag), recordFlags...),
				Action: recordAction,
			},
		},
	}
}

func setupLogging(c *cli.Context) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return errors.Wrap(err, "parsing log level")
	}

	opts := &slog.HandlerOptions{Level: level}
	var base slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if c.Bool("log-json") {
		base = slog.NewJSONHandler(os.Stderr, opts)
	}

	h := slogctx.NewHandler(base, nil)
	slog.SetDefault(slog.New(h))
	return nil
}

// loadSettings reads --config when given, applies flags that were set on the
// command line and then validates and fills in defaults.
func loadSettings(c *cli.Context) (*config.Settings, error) {
	s := &config.Settings{}
	if path := c.String("config"); path != "" {
		var err error
		if s, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if err := applyFlags(c, s); err != nil {
		return nil, err
	}

	if err := config.Finish(s); err != nil {
		return nil, err
	}
	return s, nil
}

// interruptContext is cancelled on SIGINT or SIGTERM.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-sigChan:
			slog.Info("Interrupt signal received")
		case <-ctx.Done():
		}
		// Stop delivering signals.
		signal.Stop(sigChan)
		cancel()
	}()
	return ctx, cancel
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}
