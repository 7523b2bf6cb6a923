package acquisition

import (
	"fmt"
	"io"
	"strings"

	"github.com/ivanvanderbyl/flowpro/pkg/decode"
)

// Frame is everything a display needs to draw the current state.
type Frame struct {
	Status       Status
	Latest       *Sample
	Samples      []Sample
	PressureUnit decode.PressureUnit
	FlowUnit     decode.FlowUnit
	Bounds       Bounds
}

// Renderer draws frames. Render is called from the loop goroutine and must
// not block for long.
type Renderer interface {
	Render(Frame)
}

// TextRenderer prints a one line readout per frame.
type TextRenderer struct {
	w io.Writer
}

func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (r *TextRenderer) Render(f Frame) {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] burst: %s", f.Status, formatBoolean(f.Status.Burst))
	if f.Latest != nil {
		fmt.Fprintf(&b, "  t=%.2fs  pressure: %s  flow: %s  points: %d",
			f.Latest.Elapsed,
			formatMeasurement(f.Latest.Pressure, string(f.PressureUnit), f.Bounds.PressureMin, f.Bounds.PressureMax),
			formatMeasurement(f.Latest.Flow, string(f.FlowUnit), f.Bounds.FlowMin, f.Bounds.FlowMax),
			len(f.Samples),
		)
	}
	fmt.Fprintln(r.w, b.String())
}

func formatMeasurement(m Measurement, unit string, lo, hi float64) string {
	if !m.Valid {
		return "--"
	}
	s := fmt.Sprintf("%.2f%s", m.Value, unit)
	if hi > lo && (m.Value < lo || m.Value > hi) {
		s += " (off scale)"
	}
	return s
}

func formatBoolean(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}
