package decode

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pressurePayload frames a tenths-of-a-bar count with two bits each side,
// the way a PN7692 reports it in a 16 bit word.
func pressurePayload(tenths uint16) string {
	return fmt.Sprintf("%04x", tenths<<2|0x3)
}

func TestPressureRoundTrip(t *testing.T) {
	a := assert.New(t)

	for _, bar := range []float64{0, 0.1, 1, 12.3, 250.5, 409.5} {
		raw := pressurePayload(uint16(bar*10 + 0.5))
		// Set both framing MSBs too; they must be ignored.
		raw = fmt.Sprintf("%04x", 0xC000|mustParse(raw))

		r, err := Pressure(raw)
		require.NoError(t, err, raw)
		a.InDelta(bar, r.Bar, 1e-9, raw)
		a.InDelta(bar*14.5038, r.PSI, 1e-9, raw)
		a.InDelta(bar*100, r.KPa, 1e-9, raw)
	}
}

func TestPressureKnownPayload(t *testing.T) {
	a := assert.New(t)

	// 123 tenths framed: 0b00_000001111011_00
	r, err := Pressure("01EC")
	a.NoError(err)
	a.InDelta(12.3, r.Bar, 1e-9)
	a.InDelta(12.3, r.In(PressureBar), 1e-9)
	a.InDelta(178.39674, r.In(PressurePSI), 1e-6)
	a.InDelta(1230, r.In(PressureKPa), 1e-9)
}

func TestPressureTooShort(t *testing.T) {
	_, err := Pressure("F")
	var de *DecodeError
	assert.True(t, errors.As(err, &de))
	assert.ErrorIs(t, err, ErrEmptyField)
}

func TestFlowKeyenceOverflowBoundary(t *testing.T) {
	a := assert.New(t)

	tests := []struct {
		name string
		raw  string
		lpm  float64
	}{
		{name: "zero", raw: "0000000000000000", lpm: 0},
		{name: "exactly threshold", raw: "0000271000000000", lpm: 100},
		{name: "just above threshold", raw: "0000271100000000", lpm: 100.01 - 42949672.96},
		{name: "negative one hundredth", raw: "FFFFFFFF00000000", lpm: -0.01},
		{name: "short payload uses all bits", raw: "04D2", lpm: 12.34},
	}

	for _, tt := range tests {
		r, err := FlowKeyence(tt.raw)
		a.NoError(err, tt.name)
		a.InDelta(tt.lpm, r.LitresPerMinute, 1e-6, tt.name)
		a.InDelta(tt.lpm*0.264172, r.GallonsPerMinute, 1e-6, tt.name)
	}
}

func TestFlowIFM(t *testing.T) {
	a := assert.New(t)

	// Leading 32 bits are totaliser data and must not leak into the flow.
	r, err := FlowIFM("DEADBEEF00000E10")
	a.NoError(err)
	a.InDelta(60, r.LitresPerMinute, 1e-9)
	a.InDelta(60*0.2641720524, r.In(FlowGallonsPerMinute), 1e-9)

	// Trailing bits past 64 are ignored.
	r, err = FlowIFM("0000000000000E10FFFF")
	a.NoError(err)
	a.InDelta(60, r.LitresPerMinute, 1e-9)

	_, err = FlowIFM("00000000")
	a.ErrorIs(err, ErrEmptyField)
}

func TestMalformedPayload(t *testing.T) {
	for _, raw := range []string{"", "zz", "-1F", "0x1F", "12 4"} {
		_, err := FlowKeyence(raw)
		var de *DecodeError
		assert.True(t, errors.As(err, &de), "payload %q", raw)
	}
}

func TestUnitsAndKinds(t *testing.T) {
	a := assert.New(t)

	u, err := ParsePressureUnit(" KPA ")
	a.NoError(err)
	a.Equal(PressureKPa, u)

	_, err = ParsePressureUnit("atm")
	a.ErrorIs(err, ErrUnknownUnit)

	f, err := ParseFlowUnit("g/m")
	a.NoError(err)
	a.Equal(FlowGallonsPerMinute, f)

	k, err := ParseKind("flow-ifm")
	a.NoError(err)
	a.Equal(KindFlowIFM, k)
	a.True(k.IsFlow())
	a.False(KindPressure.IsFlow())

	_, err = KindPressure.Flow("00")
	a.Error(err)
}

func mustParse(raw string) uint16 {
	var v uint16
	if _, err := fmt.Sscanf(raw, "%x", &v); err != nil {
		panic(err)
	}
	return v
}
