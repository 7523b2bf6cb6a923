package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ivanvanderbyl/flowpro/pkg/config"
)

func TestApplyFlags(t *testing.T) {
	a := assert.New(t)

	flags := append([]cli.Flag{portsFlag, pressureUnitFlag, flowUnitFlag}, discoveryFlags...)
	flags = append(flags, recordFlags...)

	s := &config.Settings{HomeKit: config.HomeKitSettings{Store: "/var/lib/flowpro"}}
	app := &cli.App{
		Flags: flags,
		Action: func(c *cli.Context) error {
			return applyFlags(c, s)
		},
	}

	require.NoError(t, app.Run([]string{"flowpro",
		"--subnet", "192.168.0.0/16",
		"--ports", "1,2",
		"--flow-max", "40",
		"--homekit",
		"--homekit-debug",
		"--homekit-pin", "00102003",
	}))
	require.NoError(t, config.Finish(s))

	a.Equal("192.168.0.0/16", s.Discovery.Subnet)
	a.Equal([]int{1, 2}, s.Master.Ports)
	require.NotNil(t, s.Run.Bounds.FlowMax)
	a.Equal(40.0, *s.Run.Bounds.FlowMax)
	a.True(s.HomeKit.Enabled)
	a.True(s.HomeKit.Debug)
	a.Equal("00102003", s.HomeKit.Pin)
	a.Equal("/var/lib/flowpro", s.HomeKit.Store, "unset flags keep file values")
}
