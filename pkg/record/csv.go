package record

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ivanvanderbyl/flowpro/pkg/acquisition"
	"github.com/ivanvanderbyl/flowpro/pkg/decode"
)

const (
	// FirstDataRow is the zero based row index of the first sample: four
	// preamble rows, a blank row and the header come first.
	FirstDataRow = 6

	TimestampLayout = "2006-01-02 15:04:05.000000"
	startLayout     = "2006-01-02 15:04:05"
)

// Preamble identifies a run at the top of the record.
type Preamble struct {
	RunName        string
	Start          time.Time
	PressureSensor string
	FlowSensor     string
}

func (p Preamble) rows() [][]string {
	return [][]string{
		{"Test Name", p.RunName},
		{"Test Start", p.Start.Format(startLayout)},
		{"Pressure Sensor ID", p.PressureSensor},
		{"Flow Meter ID", p.FlowSensor},
		{},
	}
}

// Header returns the column titles for the chosen units.
func Header(pu decode.PressureUnit, fu decode.FlowUnit) []string {
	return []string{
		"Time Stamp",
		"Elapsed Time (s)",
		"Pressure (" + string(pu) + ")",
		"Flow Rate (" + string(fu) + ")",
	}
}

// CSVSink writes a run as comma separated rows. Every Append reaches the
// underlying writer before it returns.
type CSVSink struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
	row    int
	closed bool
}

// Create truncates or creates path and writes the preamble and header.
func Create(path string, p Preamble, header []string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating record directory")
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "opening record file")
	}

	s, err := NewCSVSink(f, p, header)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewCSVSink writes the preamble and header to w.
func NewCSVSink(w io.Writer, p Preamble, header []string) (*CSVSink, error) {
	s := &CSVSink{w: csv.NewWriter(w)}

	for _, r := range p.rows() {
		if err := s.write(r); err != nil {
			return nil, errors.Wrap(err, "writing preamble")
		}
	}
	if err := s.write(header); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}
	return s, nil
}

func (s *CSVSink) Append(smp acquisition.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("record is closed")
	}
	return errors.Wrapf(s.write([]string{
		smp.Time.Format(TimestampLayout),
		strconv.FormatFloat(smp.Elapsed, 'f', 2, 64),
		formatMeasurement(smp.Pressure),
		formatMeasurement(smp.Flow),
	}), "writing row %d", s.row)
}

// Row is the index the next sample will be written at.
func (s *CSVSink) Row() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.row
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.w.Flush()
	err := s.w.Error()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return errors.Wrap(err, "closing record")
}

func (s *CSVSink) write(r []string) error {
	if err := s.w.Write(r); err != nil {
		return err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	s.row++
	return nil
}

func formatMeasurement(m acquisition.Measurement) string {
	if !m.Valid {
		return ""
	}
	return strconv.FormatFloat(m.Value, 'f', -1, 64)
}
