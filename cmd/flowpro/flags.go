package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/ivanvanderbyl/flowpro/pkg/config"
)

var discoveryFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "subnet",
		Usage:   "IPv4 subnet to search, in CIDR notation (default " + config.DefaultSubnet + ")",
		EnvVars: []string{"FLOWPRO_SUBNET"},
	},
	&cli.StringFlag{
		Name:    "hardware-prefix",
		Usage:   "Hardware address prefix of the master (default " + config.DefaultHardwarePrefix + ")",
		EnvVars: []string{"FLOWPRO_HARDWARE_PREFIX"},
	},
	&cli.IntFlag{
		Name:  "workers",
		Usage: "Probes in flight during discovery",
	},
	&cli.IntFlag{
		Name:  "batch-size",
		Usage: "Probes submitted between neighbor table checks",
	},
	&cli.DurationFlag{
		Name:  "discovery-timeout",
		Usage: "Give up discovery after this long",
	},
	&cli.DurationFlag{
		Name:  "probe-timeout",
		Usage: "Timeout for each ping",
	},
	&cli.StringFlag{
		Name:    "target",
		Usage:   "Address of the master; skips discovery",
		EnvVars: []string{"FLOWPRO_TARGET"},
	},
}

var portsFlag = &cli.StringFlag{
	Name:    "ports",
	Usage:   "Comma separated master ports to use (default 1,2,3,4)",
	EnvVars: []string{"FLOWPRO_PORTS"},
}

var pressureUnitFlag = &cli.StringFlag{
	Name:    "pressure-unit",
	Usage:   "psi, bar or kpa",
	EnvVars: []string{"FLOWPRO_PRESSURE_UNIT"},
}

var flowUnitFlag = &cli.StringFlag{
	Name:    "flow-unit",
	Usage:   "l/m or g/m",
	EnvVars: []string{"FLOWPRO_FLOW_UNIT"},
}

var recordFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "name",
		Usage:   "Run name written at the top of the record",
		EnvVars: []string{"FLOWPRO_RUN_NAME"},
	},
	&cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Record file (default <name>-<time>.csv)",
	},
	&cli.StringFlag{
		Name:    "interval",
		Usage:   "Sampling interval in seconds: 0.5, 1, 5, 10, 30 or 60",
		EnvVars: []string{"FLOWPRO_INTERVAL"},
	},
	&cli.StringFlag{
		Name:  "display",
		Usage: "sliding (last 300 samples) or all",
	},
	&cli.Float64Flag{Name: "pressure-min", Usage: "Pressure axis minimum"},
	&cli.Float64Flag{Name: "pressure-max", Usage: "Pressure axis maximum"},
	&cli.Float64Flag{Name: "flow-min", Usage: "Flow axis minimum"},
	&cli.Float64Flag{Name: "flow-max", Usage: "Flow axis maximum"},
	&cli.BoolFlag{
		Name:    "homekit",
		Usage:   "Expose Recording and Burst switches over HomeKit",
		EnvVars: []string{"FLOWPRO_HOMEKIT"},
	},
	&cli.StringFlag{
		Name:    "homekit-pin",
		Usage:   "8 digit HomeKit pairing pin",
		EnvVars: []string{"FLOWPRO_HOMEKIT_PIN"},
	},
	&cli.StringFlag{
		Name:  "homekit-store",
		Usage: "Directory for HomeKit pairing data",
	},
	&cli.BoolFlag{
		Name:    "homekit-debug",
		Usage:   "Log HomeKit protocol traffic",
		EnvVars: []string{"FLOWPRO_HOMEKIT_DEBUG"},
	},
	&cli.StringFlag{
		Name:    "metrics-addr",
		Usage:   "Serve Prometheus metrics on this address, e.g. :9100",
		EnvVars: []string{"FLOWPRO_METRICS_ADDR"},
	},
}

// applyFlags copies flags set on the command line or environment over s.
func applyFlags(c *cli.Context, s *config.Settings) error {
	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setFloat := func(name string, dst **float64) {
		if c.IsSet(name) {
			v := c.Float64(name)
			*dst = &v
		}
	}

	d := &s.Discovery
	setString("subnet", &d.Subnet)
	setString("hardware-prefix", &d.HardwarePrefix)
	setString("target", &d.Target)
	if c.IsSet("workers") {
		d.Workers = c.Int("workers")
	}
	if c.IsSet("batch-size") {
		d.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("discovery-timeout") {
		d.Timeout = c.Duration("discovery-timeout")
	}
	if c.IsSet("probe-timeout") {
		d.ProbeTimeout = c.Duration("probe-timeout")
	}

	if c.IsSet("ports") {
		ports, err := parsePorts(c.String("ports"))
		if err != nil {
			return err
		}
		s.Master.Ports = ports
	}

	r := &s.Run
	setString("pressure-unit", &r.PressureUnit)
	setString("flow-unit", &r.FlowUnit)
	setString("name", &r.Name)
	setString("output", &r.Output)
	setString("interval", &r.Interval)
	setString("display", &r.Display)
	setFloat("pressure-min", &r.Bounds.PressureMin)
	setFloat("pressure-max", &r.Bounds.PressureMax)
	setFloat("flow-min", &r.Bounds.FlowMin)
	setFloat("flow-max", &r.Bounds.FlowMax)

	if c.IsSet("homekit") {
		s.HomeKit.Enabled = c.Bool("homekit")
	}
	if c.IsSet("homekit-debug") {
		s.HomeKit.Debug = c.Bool("homekit-debug")
	}
	setString("homekit-pin", &s.HomeKit.Pin)
	setString("homekit-store", &s.HomeKit.Store)
	setString("metrics-addr", &s.Metrics.Addr)
	return nil
}

func parsePorts(s string) ([]int, error) {
	var ports []int
	for _, f := range splitList(s) {
		p, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing port %q", f)
		}
		ports = append(ports, p)
	}
	return ports, nil
}
