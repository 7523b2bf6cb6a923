package decode

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// Raw process data from the IO-Link master is a hex string. Every decoder
// expands it to 4 bits per character and slices fields from the most
// significant end.

const (
	bitsPerHexCharacter = 4

	// PN7692 pressure payloads carry two framing bits on each side of the value.
	pressureFrameBits = 2
	pressureScale     = 10
	barToPSI          = 14.5038
	barToKPa          = 100

	// Keyence FD-H20: instantaneous flow in the leading 32 bits, 0.01 L/min steps.
	keyenceFieldBits = 32
	keyenceScale     = 100

	// Readings above the threshold are a negative flow read back as unsigned.
	// The correction is 2^32 / keyenceScale.
	keyenceOverflowThreshold  = 100
	keyenceOverflowCorrection = 42949672.96
	keyenceLitresToGallons    = 0.264172

	// IFM SU8021: instantaneous flow in bits 32..63.
	ifmFieldStart      = 32
	ifmFieldEnd        = 64
	ifmScale           = 60
	ifmLitresToGallons = 0.2641720524
)

var ErrEmptyField = errors.New("bit field is empty")

// DecodeError reports a payload that could not be turned into a number.
type DecodeError struct {
	Payload string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding payload %q: %v", e.Payload, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PressureReading is one pressure sample in every supported unit.
type PressureReading struct {
	Bar float64
	PSI float64
	KPa float64
}

// In returns the reading in unit u.
func (r PressureReading) In(u PressureUnit) float64 {
	switch u {
	case PressureBar:
		return r.Bar
	case PressureKPa:
		return r.KPa
	default:
		return r.PSI
	}
}

// FlowReading is one volumetric flow sample in every supported unit.
type FlowReading struct {
	LitresPerMinute  float64
	GallonsPerMinute float64
}

func (r FlowReading) In(u FlowUnit) float64 {
	if u == FlowGallonsPerMinute {
		return r.GallonsPerMinute
	}
	return r.LitresPerMinute
}

// Pressure decodes a PN7692 payload.
func Pressure(raw string) (PressureReading, error) {
	v, err := field(raw, pressureFrameBits, -pressureFrameBits)
	if err != nil {
		return PressureReading{}, err
	}

	bar := toFloat(v) / pressureScale
	return PressureReading{
		Bar: bar,
		PSI: bar * barToPSI,
		KPa: bar * barToKPa,
	}, nil
}

// FlowKeyence decodes a Keyence FD-H20 payload. The overflow correction is
// applied to anything strictly above the threshold.
func FlowKeyence(raw string) (FlowReading, error) {
	v, err := field(raw, 0, keyenceFieldBits)
	if err != nil {
		return FlowReading{}, err
	}

	lpm := toFloat(v) / keyenceScale
	if lpm > keyenceOverflowThreshold {
		lpm -= keyenceOverflowCorrection
	}
	return FlowReading{
		LitresPerMinute:  lpm,
		GallonsPerMinute: lpm * keyenceLitresToGallons,
	}, nil
}

// FlowIFM decodes an IFM SU8021 payload.
func FlowIFM(raw string) (FlowReading, error) {
	v, err := field(raw, ifmFieldStart, ifmFieldEnd)
	if err != nil {
		return FlowReading{}, err
	}

	lpm := toFloat(v) / ifmScale
	return FlowReading{
		LitresPerMinute:  lpm,
		GallonsPerMinute: lpm * ifmLitresToGallons,
	}, nil
}

// field returns the unsigned integer held in bits [from, to) of the payload,
// counted from the most significant bit. Bounds follow slice semantics: a
// negative bound counts back from the end and out of range bounds are
// clamped to the payload width.
func field(raw string, from, to int) (*big.Int, error) {
	v, err := parseHex(raw)
	if err != nil {
		return nil, err
	}

	width := len(raw) * bitsPerHexCharacter
	start, end := clamp(from, width), clamp(to, width)
	if end <= start {
		return nil, &DecodeError{Payload: raw, Err: ErrEmptyField}
	}

	out := new(big.Int).Rsh(v, uint(width-end))
	mask := new(big.Int).Lsh(big.NewInt(1), uint(end-start))
	mask.Sub(mask, big.NewInt(1))
	return out.And(out, mask), nil
}

func clamp(i, width int) int {
	if i < 0 {
		i += width
	}
	switch {
	case i < 0:
		return 0
	case i > width:
		return width
	}
	return i
}

func parseHex(raw string) (*big.Int, error) {
	if raw == "" {
		return nil, &DecodeError{Payload: raw, Err: errors.New("empty payload")}
	}
	if i := strings.IndexFunc(raw, notHexDigit); i >= 0 {
		return nil, &DecodeError{Payload: raw, Err: errors.Errorf("invalid hex digit %q at %d", raw[i], i)}
	}

	v, ok := new(big.Int).SetString(raw, 16)
	if !ok {
		return nil, &DecodeError{Payload: raw, Err: errors.New("invalid hex payload")}
	}
	return v, nil
}

func notHexDigit(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		return false
	}
	return true
}

func toFloat(v *big.Int) float64 {
	if v.IsUint64() {
		return float64(v.Uint64())
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
