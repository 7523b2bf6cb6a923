package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/ivanvanderbyl/flowpro/pkg/discovery"
	"github.com/ivanvanderbyl/flowpro/pkg/iolink"
)

const (
	DefaultSubnet         = "10.0.0.0/24"
	DefaultHardwarePrefix = "00:02:01"
	DefaultPressureUnit   = "psi"
	DefaultFlowUnit       = "l/m"
	DefaultInterval       = "1"
	DefaultRunName        = "flowpro"
	DefaultHomeKitStore   = "./db"

	defaultAxisMin = 0
	defaultAxisMax = 100
)

// Normalize fills in defaults. Call it after Validate.
func Normalize(s *Settings) {
	if s == nil {
		return
	}

	d := &s.Discovery
	setDefault(&d.Subnet, DefaultSubnet)
	setDefault(&d.HardwarePrefix, DefaultHardwarePrefix)
	if d.Workers == 0 {
		d.Workers = discovery.DefaultMaxWorkers
	}
	if d.BatchSize == 0 {
		d.BatchSize = discovery.DefaultBatchSize
	}
	if d.Timeout == 0 {
		d.Timeout = discovery.DefaultOverallTimeout
	}
	if d.ProbeTimeout == 0 {
		d.ProbeTimeout = discovery.DefaultProbeTimeout
	}

	if len(s.Master.Ports) == 0 {
		s.Master.Ports = append([]int(nil), iolink.DefaultPorts...)
	}

	r := &s.Run
	setDefault(&r.Name, DefaultRunName)
	r.PressureUnit = strings.ToLower(strings.TrimSpace(r.PressureUnit))
	r.FlowUnit = strings.ToLower(strings.TrimSpace(r.FlowUnit))
	setDefault(&r.PressureUnit, DefaultPressureUnit)
	setDefault(&r.FlowUnit, DefaultFlowUnit)
	setDefault(&r.Interval, DefaultInterval)
	setDefault(&r.Display, DisplaySliding)
	setDefault(&r.Output, OutputPath(r.Name, time.Now()))
	setBound(&r.Bounds.PressureMin, defaultAxisMin)
	setBound(&r.Bounds.PressureMax, defaultAxisMax)
	setBound(&r.Bounds.FlowMin, defaultAxisMin)
	setBound(&r.Bounds.FlowMax, defaultAxisMax)

	setDefault(&s.HomeKit.Store, DefaultHomeKitStore)
}

// OutputPath is the default record file for a run started at t.
func OutputPath(name string, t time.Time) string {
	base := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, name)
	return filepath.Join(".", base+"-"+t.Format("20060102-150405")+".csv")
}

func setDefault(v *string, def string) {
	if strings.TrimSpace(*v) == "" {
		*v = def
	}
}

func setBound(v **float64, def float64) {
	if *v == nil {
		*v = &def
	}
}
