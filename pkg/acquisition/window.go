package acquisition

// WindowSize is how many samples a sliding display keeps.
const WindowSize = 300

// Window is the display buffer. With a limit it keeps only the most recent
// samples, otherwise it grows without bound.
type Window struct {
	limit   int
	samples []Sample
}

// NewWindow returns a window keeping at most limit samples; 0 means unbounded.
func NewWindow(limit int) *Window {
	return &Window{limit: max(limit, 0)}
}

func (w *Window) Push(s Sample) {
	w.samples = append(w.samples, s)
	if w.limit > 0 && len(w.samples) > w.limit {
		w.samples = append(w.samples[:0], w.samples[len(w.samples)-w.limit:]...)
	}
}

// Samples returns a copy of the buffered samples, oldest first.
func (w *Window) Samples() []Sample {
	return append([]Sample(nil), w.samples...)
}

func (w *Window) Len() int { return len(w.samples) }

func (w *Window) Latest() (Sample, bool) {
	if len(w.samples) == 0 {
		return Sample{}, false
	}
	return w.samples[len(w.samples)-1], true
}
