package decode

import (
	"strings"

	"github.com/pkg/errors"
)

type PressureUnit string

const (
	PressurePSI PressureUnit = "psi"
	PressureBar PressureUnit = "bar"
	PressureKPa PressureUnit = "kpa"
)

type FlowUnit string

const (
	FlowLitresPerMinute  FlowUnit = "l/m"
	FlowGallonsPerMinute FlowUnit = "g/m"
)

var ErrUnknownUnit = errors.New("unknown unit")

func ParsePressureUnit(s string) (PressureUnit, error) {
	switch u := PressureUnit(strings.ToLower(strings.TrimSpace(s))); u {
	case PressurePSI, PressureBar, PressureKPa:
		return u, nil
	}
	return "", errors.Wrapf(ErrUnknownUnit, "pressure unit %q", s)
}

func ParseFlowUnit(s string) (FlowUnit, error) {
	switch u := FlowUnit(strings.ToLower(strings.TrimSpace(s))); u {
	case FlowLitresPerMinute, FlowGallonsPerMinute:
		return u, nil
	}
	return "", errors.Wrapf(ErrUnknownUnit, "flow unit %q", s)
}

// Kind names the decoder a device's process data needs.
type Kind int

const (
	KindNone Kind = iota
	KindPressure
	KindFlowKeyence
	KindFlowIFM
)

var kindNames = map[Kind]string{
	KindNone:        "none",
	KindPressure:    "pressure",
	KindFlowKeyence: "flow-keyence",
	KindFlowIFM:     "flow-ifm",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) IsPressure() bool { return k == KindPressure }

func (k Kind) IsFlow() bool { return k == KindFlowKeyence || k == KindFlowIFM }

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return KindNone, errors.Errorf("unknown decoder kind %q", s)
}

// Flow decodes raw with the flow decoder for k.
func (k Kind) Flow(raw string) (FlowReading, error) {
	switch k {
	case KindFlowKeyence:
		return FlowKeyence(raw)
	case KindFlowIFM:
		return FlowIFM(raw)
	}
	return FlowReading{}, errors.Errorf("%s is not a flow decoder", k)
}
