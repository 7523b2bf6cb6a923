package control

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ivanvanderbyl/flowpro/pkg/acquisition"
)

type recordingSender struct {
	mu      sync.Mutex
	signals []acquisition.Signal
}

func (r *recordingSender) Send(s acquisition.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
}

func TestConsoleCommands(t *testing.T) {
	a := assert.New(t)
	var out bytes.Buffer
	loop := &recordingSender{}
	quits := 0

	in := strings.NewReader("s\n  BURST \nfoo\n\nx\nq\nstart\n")
	c := NewConsole(in, &out, loop, func() { quits++ })

	a.NoError(c.Run(context.Background()))
	a.Equal([]acquisition.Signal{
		acquisition.SignalStart,
		acquisition.SignalToggleBurst,
		acquisition.SignalStop,
	}, loop.signals)
	a.Equal(1, quits)
	a.Contains(out.String(), `unknown command "foo"`)
}

func TestConsoleEndOfInputQuits(t *testing.T) {
	loop := &recordingSender{}
	quits := 0

	c := NewConsole(strings.NewReader("start\n"), io.Discard, loop, func() { quits++ })

	assert.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []acquisition.Signal{acquisition.SignalStart}, loop.signals)
	assert.Equal(t, 1, quits)
}

func TestConsoleStopsWithContext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewConsole(pr, io.Discard, &recordingSender{}, func() {})
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("console did not stop with its context")
	}
}
