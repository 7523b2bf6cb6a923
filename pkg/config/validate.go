package config

import (
	"net/netip"

	"github.com/pkg/errors"

	"github.com/ivanvanderbyl/flowpro/pkg/acquisition"
	"github.com/ivanvanderbyl/flowpro/pkg/decode"
	"github.com/ivanvanderbyl/flowpro/pkg/discovery"
	"github.com/ivanvanderbyl/flowpro/pkg/iolink"
)

const (
	DisplaySliding = "sliding"
	DisplayAll     = "all"
)

// Validate checks settings without changing them.
func Validate(s *Settings) error {
	d := s.Discovery
	if d.Subnet != "" {
		if _, err := discovery.ParseSubnet(d.Subnet); err != nil {
			return errors.Wrap(err, "discovery.subnet")
		}
	}
	if d.HardwarePrefix != "" {
		if _, err := discovery.ParseHardwareAddressPrefix(d.HardwarePrefix); err != nil {
			return errors.Wrap(err, "discovery.hardware_prefix")
		}
	}
	if d.Target != "" {
		if _, err := netip.ParseAddr(d.Target); err != nil {
			return errors.Wrap(err, "discovery.target")
		}
	}
	if d.Workers < 0 || d.BatchSize < 0 || d.Timeout < 0 || d.ProbeTimeout < 0 {
		return errors.New("discovery: workers, batch_size and timeouts must not be negative")
	}

	if len(s.Master.Ports) > 0 {
		if err := iolink.ValidatePorts(s.Master.Ports); err != nil {
			return errors.Wrap(err, "master.ports")
		}
	}

	r := s.Run
	if r.PressureUnit != "" {
		if _, err := decode.ParsePressureUnit(r.PressureUnit); err != nil {
			return errors.Wrap(err, "run.pressure_unit")
		}
	}
	if r.FlowUnit != "" {
		if _, err := decode.ParseFlowUnit(r.FlowUnit); err != nil {
			return errors.Wrap(err, "run.flow_unit")
		}
	}
	if r.Interval != "" {
		if _, err := acquisition.ParseInterval(r.Interval); err != nil {
			return errors.Wrap(err, "run.interval")
		}
	}
	switch r.Display {
	case "", DisplaySliding, DisplayAll:
	default:
		return errors.Errorf("run.display: must be %q or %q, got %q", DisplaySliding, DisplayAll, r.Display)
	}
	if err := checkRange("pressure", r.Bounds.PressureMin, r.Bounds.PressureMax); err != nil {
		return err
	}
	if err := checkRange("flow", r.Bounds.FlowMin, r.Bounds.FlowMax); err != nil {
		return err
	}

	if pin := s.HomeKit.Pin; pin != "" {
		if len(pin) != 8 || !allDigits(pin) {
			return errors.New("homekit.pin: must be 8 digits")
		}
	}

	return nil
}

func checkRange(name string, lo, hi *float64) error {
	if lo != nil && hi != nil && *lo >= *hi {
		return errors.Errorf("run.bounds: %s_min %g must be below %s_max %g", name, *lo, name, *hi)
	}
	return nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
