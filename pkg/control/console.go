package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/ivanvanderbyl/flowpro/pkg/acquisition"
)

// Sender is the part of the acquisition loop a control surface drives.
type Sender interface {
	Send(acquisition.Signal)
}

var commands = map[string]acquisition.Signal{
	"start": acquisition.SignalStart,
	"s":     acquisition.SignalStart,
	"stop":  acquisition.SignalStop,
	"x":     acquisition.SignalStop,
	"burst": acquisition.SignalToggleBurst,
	"b":     acquisition.SignalToggleBurst,
}

const usage = "commands: start (s), stop (x), burst (b), quit (q)"

// Console turns lines of operator input into loop signals.
type Console struct {
	in   io.Reader
	out  io.Writer
	loop Sender
	quit func()
}

// NewConsole reads commands from in and writes prompts to out. quit is
// called when the operator asks to finish the run.
func NewConsole(in io.Reader, out io.Writer, loop Sender, quit func()) *Console {
	return &Console{in: in, out: out, loop: loop, quit: quit}
}

// Run reads until quit, end of input or ctx is done. End of input is treated
// like quit. A read blocked on input is abandoned when ctx ends.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	fmt.Fprintln(c.out, usage)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				c.quit()
				select {
				case err := <-errc:
					return errors.Wrap(err, "reading console")
				default:
					return nil
				}
			}
			if c.handle(ctx, line) {
				return nil
			}
		}
	}
}

// handle applies one line and reports whether the operator quit.
func (c *Console) handle(ctx context.Context, line string) bool {
	cmd := strings.ToLower(strings.TrimSpace(line))
	switch cmd {
	case "":
		return false
	case "quit", "q", "exit":
		slog.InfoContext(ctx, "Operator quit")
		c.quit()
		return true
	case "help", "?":
		fmt.Fprintln(c.out, usage)
		return false
	}

	sig, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(c.out, "unknown command %q; %s\n", cmd, usage)
		return false
	}
	c.loop.Send(sig)
	return false
}
