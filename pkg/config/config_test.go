package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/flowpro/pkg/acquisition"
	"github.com/ivanvanderbyl/flowpro/pkg/decode"
	"github.com/ivanvanderbyl/flowpro/pkg/discovery"
)

const sample = `
discovery:
  subnet: 192.168.1.0/24
  hardware_prefix: "00-02-01"
  workers: 16
  timeout: 5s
master:
  ports: [1, 2]
run:
  name: pump-7
  pressure_unit: BAR
  interval: "0.5"
  display: all
  bounds:
    pressure_max: 20
homekit:
  enabled: true
  pin: "00102003"
  debug: true
`

func TestParse(t *testing.T) {
	a := assert.New(t)

	s, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.NoError(t, Finish(s))

	a.Equal("192.168.1.0/24", s.Discovery.Subnet)
	a.Equal(16, s.Discovery.Workers)
	a.Equal(discovery.DefaultBatchSize, s.Discovery.BatchSize)
	a.Equal(5*time.Second, s.Discovery.Timeout)
	a.Equal(discovery.DefaultProbeTimeout, s.Discovery.ProbeTimeout)
	a.Equal([]int{1, 2}, s.Master.Ports)
	a.Equal("bar", s.Run.PressureUnit)
	a.Equal(DefaultFlowUnit, s.Run.FlowUnit)
	a.True(s.HomeKit.Enabled)
	a.True(s.HomeKit.Debug)
	a.Equal(DefaultHomeKitStore, s.HomeKit.Store)

	opts, err := s.DiscoveryOptions()
	require.NoError(t, err)
	a.Equal("192.168.1.0/24", opts.Subnet.String())
	a.Equal("00:02:01", opts.Prefix.String())

	cfg, err := s.AcquisitionConfig(nil)
	require.NoError(t, err)
	a.Equal(decode.PressureBar, cfg.PressureUnit)
	a.Equal(500*time.Millisecond, cfg.Interval)
	a.False(cfg.Sliding)
	a.Equal(acquisition.Bounds{PressureMin: 0, PressureMax: 20, FlowMin: 0, FlowMax: 100}, cfg.Bounds)
}

func TestDefaults(t *testing.T) {
	a := assert.New(t)
	s := Defaults()

	a.Equal(DefaultSubnet, s.Discovery.Subnet)
	a.Equal(discovery.DefaultMaxWorkers, s.Discovery.Workers)
	a.Equal([]int{1, 2, 3, 4}, s.Master.Ports)
	a.Equal(DisplaySliding, s.Run.Display)
	a.True(strings.HasPrefix(s.Run.Output, DefaultRunName+"-"))
	a.True(strings.HasSuffix(s.Run.Output, ".csv"))

	_, ok := s.Target()
	a.False(ok)

	cfg, err := s.AcquisitionConfig(nil)
	require.NoError(t, err)
	a.Equal(time.Second, cfg.Interval)
	a.True(cfg.Sliding)
	a.Equal(decode.PressurePSI, cfg.PressureUnit)
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]string{
		"subnet":        "discovery: {subnet: 10.0.0.0/31}",
		"wide subnet":   "discovery: {subnet: 0.0.0.0/0}",
		"class a":       "discovery: {subnet: 10.0.0.0/8}",
		"prefix":        "discovery: {hardware_prefix: zz}",
		"target":        "discovery: {target: not-an-ip}",
		"workers":       "discovery: {workers: -1}",
		"ports":         "master: {ports: [1, 1]}",
		"port range":    "master: {ports: [5]}",
		"pressure unit": "run: {pressure_unit: atm}",
		"flow unit":     "run: {flow_unit: m3/h}",
		"interval":      "run: {interval: '2'}",
		"display":       "run: {display: scrolling}",
		"bounds":        "run: {bounds: {flow_min: 10, flow_max: 5}}",
		"pin":           "homekit: {pin: '1234'}",
		"unknown field": "run: {colour: red}",
	}

	for name, doc := range tests {
		s, err := Parse(strings.NewReader(doc))
		if err == nil {
			err = Finish(s)
		}
		assert.Error(t, err, name)
	}
}

func TestLoad(t *testing.T) {
	a := assert.New(t)
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	s, err := Load(empty)
	require.NoError(t, err)
	a.Empty(s.Discovery.Subnet)
	require.NoError(t, Finish(s))
	a.Equal(DefaultSubnet, s.Discovery.Subnet)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	a.Error(err)
}

func TestOutputPath(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "a_b-20240501-093000.csv", OutputPath("a/b", at))
}
