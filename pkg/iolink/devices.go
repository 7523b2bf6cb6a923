package iolink

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	slogctx "github.com/veqryn/slog-context"

	"github.com/ivanvanderbyl/flowpro/pkg/decode"
)

const (
	MinPort = 1
	MaxPort = 4
)

var ErrInvalidPort = errors.New("invalid port")

// DefaultPorts is every port of a four port master.
var DefaultPorts = []int{1, 2, 3, 4}

type Role string

const (
	RoleNone     Role = ""
	RoleFlow     Role = "flow"
	RolePressure Role = "pressure"
)

// DeviceProfile describes a known IO-Link device type.
type DeviceProfile struct {
	ID          int
	DisplayName string
	Role        Role
	Decoder     decode.Kind
}

// Device IDs as reported by deviceid/getdata.
const (
	DeviceKeyenceFDH20 = 2015
	DeviceIFMSU8021    = 1463
	DeviceIFMPN7692    = 452
	DeviceIFMEIO344    = 1313
)

var catalogue = map[int]DeviceProfile{
	DeviceKeyenceFDH20: {ID: DeviceKeyenceFDH20, DisplayName: "Keyence FD-H20 Flow Meter", Role: RoleFlow, Decoder: decode.KindFlowKeyence},
	DeviceIFMSU8021:    {ID: DeviceIFMSU8021, DisplayName: "SU8021 IFM Flow Meter", Role: RoleFlow, Decoder: decode.KindFlowIFM},
	DeviceIFMPN7692:    {ID: DeviceIFMPN7692, DisplayName: "PN7692 IFM Pressure Sensor", Role: RolePressure, Decoder: decode.KindPressure},
	DeviceIFMEIO344:    {ID: DeviceIFMEIO344, DisplayName: "EIO344 IFM Moneo Blue|Classic Adapter", Role: RoleNone, Decoder: decode.KindNone},
}

// LookupDevice returns the profile for a device ID.
func LookupDevice(id int) (DeviceProfile, bool) {
	p, ok := catalogue[id]
	return p, ok
}

// ChannelDescriptor is one port of the master and whatever was found on it.
type ChannelDescriptor struct {
	Port     int
	DeviceID int
	Path     string
	Profile  *DeviceProfile
}

// Attached reports whether a known device sits on the port.
func (c ChannelDescriptor) Attached() bool { return c.Profile != nil }

// Measures reports whether the port carries pressure or flow data.
func (c ChannelDescriptor) Measures() bool {
	return c.Profile != nil && c.Profile.Role != RoleNone
}

func (c ChannelDescriptor) Name() string {
	if c.Profile == nil {
		return "None"
	}
	return c.Profile.DisplayName
}

// ValidatePorts checks that ports is a non-empty list of distinct ports.
func ValidatePorts(ports []int) error {
	if len(ports) == 0 {
		return errors.Wrap(ErrInvalidPort, "no ports configured")
	}
	seen := make(map[int]bool, len(ports))
	for _, p := range ports {
		if p < MinPort || p > MaxPort {
			return errors.Wrapf(ErrInvalidPort, "port %d out of range %d-%d", p, MinPort, MaxPort)
		}
		if seen[p] {
			return errors.Wrapf(ErrInvalidPort, "port %d listed twice", p)
		}
		seen[p] = true
	}
	return nil
}

// Identifier is the part of Client used to identify ports.
type Identifier interface {
	DeviceID(ctx context.Context, port int) (int, error)
}

// Inventory identifies the device on each port concurrently. A port that
// fails to answer or reports an unknown device gets no profile; that is not
// an error.
func Inventory(ctx context.Context, c Identifier, ports []int) ([]ChannelDescriptor, error) {
	if err := ValidatePorts(ports); err != nil {
		return nil, err
	}

	channels := make([]ChannelDescriptor, len(ports))
	p := pool.New().WithMaxGoroutines(len(ports))
	for i, port := range ports {
		p.Go(func() {
			ctx := slogctx.Append(ctx, "port", port)
			ch := ChannelDescriptor{Port: port, Path: ProcessDataPath(port)}

			id, err := c.DeviceID(ctx, port)
			if err != nil {
				slog.WarnContext(ctx, "Port detection failed", "error", err)
				channels[i] = ch
				return
			}
			ch.DeviceID = id

			if profile, ok := LookupDevice(id); ok {
				ch.Profile = &profile
				slog.InfoContext(ctx, "Detected device", "device", profile.DisplayName, "role", string(profile.Role))
			} else {
				slog.WarnContext(ctx, "Unknown device", "device-id", id)
			}
			channels[i] = ch
		})
	}
	p.Wait()

	return channels, nil
}
