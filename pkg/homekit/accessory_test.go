package homekit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ivanvanderbyl/flowpro/pkg/acquisition"
)

type recordingSender struct{ signals []acquisition.Signal }

func (r *recordingSender) Send(s acquisition.Signal) { r.signals = append(r.signals, s) }

func TestRemoteUpdatesBecomeSignals(t *testing.T) {
	a := assert.New(t)
	loop := &recordingSender{}
	b := NewBridge(context.Background(), loop, Options{})

	b.setRecording(true)
	b.setBurst(true)
	b.Mirror(acquisition.Status{Running: true, Burst: true, Interval: acquisition.BurstInterval})

	// Already in burst, nothing to toggle.
	b.setBurst(true)
	b.setBurst(false)
	b.setRecording(false)

	a.Equal([]acquisition.Signal{
		acquisition.SignalStart,
		acquisition.SignalToggleBurst,
		acquisition.SignalToggleBurst,
		acquisition.SignalStop,
	}, loop.signals)
}

func TestRepeatedBurstUpdatesToggleOnce(t *testing.T) {
	a := assert.New(t)
	loop := &recordingSender{}
	b := NewBridge(context.Background(), loop, Options{})

	// The loop has not applied the first toggle yet.
	b.setBurst(true)
	b.setBurst(true)
	a.Equal([]acquisition.Signal{acquisition.SignalToggleBurst}, loop.signals)

	b.setBurst(false)
	b.setBurst(false)
	a.Len(loop.signals, 2)
}

func TestMirror(t *testing.T) {
	a := assert.New(t)
	b := NewBridge(context.Background(), &recordingSender{}, Options{Name: "Bench"})

	b.Mirror(acquisition.Status{Running: true, Interval: time.Second})
	a.True(b.recording.Switch.On.Value())
	a.False(b.burst.Switch.On.Value())

	b.Mirror(acquisition.Status{Running: false, Burst: true, Interval: acquisition.BurstInterval})
	a.False(b.recording.Switch.On.Value())
	a.True(b.burst.Switch.On.Value())
}
