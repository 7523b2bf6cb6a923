package config

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Settings is everything a run can be configured with. Zero values mean
// "use the default"; Normalize fills them in.
type Settings struct {
	Discovery DiscoverySettings `yaml:"discovery"`
	Master    MasterSettings    `yaml:"master"`
	Run       RunSettings       `yaml:"run"`
	HomeKit   HomeKitSettings   `yaml:"homekit"`
	Metrics   MetricsSettings   `yaml:"metrics"`
}

type DiscoverySettings struct {
	Subnet         string        `yaml:"subnet"`
	HardwarePrefix string        `yaml:"hardware_prefix"`
	Workers        int           `yaml:"workers"`
	BatchSize      int           `yaml:"batch_size"`
	Timeout        time.Duration `yaml:"timeout"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`

	// Target skips discovery when set.
	Target string `yaml:"target"`
}

type MasterSettings struct {
	Ports []int `yaml:"ports"`
}

type RunSettings struct {
	Name         string `yaml:"name"`
	Output       string `yaml:"output"`
	PressureUnit string `yaml:"pressure_unit"`
	FlowUnit     string `yaml:"flow_unit"`
	Interval     string `yaml:"interval"` // seconds ("0.5") or a duration ("500ms")
	Display      string `yaml:"display"`  // sliding or all
	Bounds       Bounds `yaml:"bounds"`
}

// Bounds are optional axis limits.
type Bounds struct {
	PressureMin *float64 `yaml:"pressure_min"`
	PressureMax *float64 `yaml:"pressure_max"`
	FlowMin     *float64 `yaml:"flow_min"`
	FlowMax     *float64 `yaml:"flow_max"`
}

type HomeKitSettings struct {
	Enabled bool   `yaml:"enabled"`
	Pin     string `yaml:"pin"`
	Store   string `yaml:"store"`
	Debug   bool   `yaml:"debug"`
}

type MetricsSettings struct {
	Addr string `yaml:"addr"`
}

// Load reads a settings file without validating it. Call Finish once any
// command line overrides are applied.
func Load(path string) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening config")
	}
	defer f.Close()

	return Parse(f)
}

// Parse is Load for an already open reader.
func Parse(r io.Reader) (*Settings, error) {
	var s Settings

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decoding config")
	}
	return &s, nil
}

// Finish validates s and fills in defaults.
func Finish(s *Settings) error {
	if err := Validate(s); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	Normalize(s)
	return nil
}

// Defaults returns normalized empty settings.
func Defaults() *Settings {
	var s Settings
	Normalize(&s)
	return &s
}
