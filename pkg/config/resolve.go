package config

import (
	"net/netip"

	"github.com/pkg/errors"

	"github.com/ivanvanderbyl/flowpro/pkg/acquisition"
	"github.com/ivanvanderbyl/flowpro/pkg/decode"
	"github.com/ivanvanderbyl/flowpro/pkg/discovery"
	"github.com/ivanvanderbyl/flowpro/pkg/iolink"
)

// DiscoveryOptions converts normalized settings into engine options.
func (s *Settings) DiscoveryOptions() (discovery.Options, error) {
	subnet, err := discovery.ParseSubnet(s.Discovery.Subnet)
	if err != nil {
		return discovery.Options{}, err
	}
	prefix, err := discovery.ParseHardwareAddressPrefix(s.Discovery.HardwarePrefix)
	if err != nil {
		return discovery.Options{}, err
	}
	return discovery.Options{
		Subnet:         subnet,
		Prefix:         prefix,
		MaxWorkers:     s.Discovery.Workers,
		BatchSize:      s.Discovery.BatchSize,
		OverallTimeout: s.Discovery.Timeout,
	}, nil
}

// Target returns the fixed master address, if one is configured.
func (s *Settings) Target() (netip.Addr, bool) {
	addr, err := netip.ParseAddr(s.Discovery.Target)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}

// AcquisitionConfig builds the loop configuration for the identified channels.
func (s *Settings) AcquisitionConfig(channels []iolink.ChannelDescriptor) (acquisition.Config, error) {
	pu, err := decode.ParsePressureUnit(s.Run.PressureUnit)
	if err != nil {
		return acquisition.Config{}, err
	}
	fu, err := decode.ParseFlowUnit(s.Run.FlowUnit)
	if err != nil {
		return acquisition.Config{}, err
	}
	interval, err := acquisition.ParseInterval(s.Run.Interval)
	if err != nil {
		return acquisition.Config{}, err
	}

	b := s.Run.Bounds
	if b.PressureMin == nil || b.PressureMax == nil || b.FlowMin == nil || b.FlowMax == nil {
		return acquisition.Config{}, errors.New("axis bounds are not normalized")
	}

	return acquisition.Config{
		Channels:     channels,
		PressureUnit: pu,
		FlowUnit:     fu,
		Interval:     interval,
		Sliding:      s.Run.Display != DisplayAll,
		Bounds: acquisition.Bounds{
			PressureMin: *b.PressureMin,
			PressureMax: *b.PressureMax,
			FlowMin:     *b.FlowMin,
			FlowMax:     *b.FlowMax,
		},
	}, nil
}
