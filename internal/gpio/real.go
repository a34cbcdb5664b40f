//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads button lines from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	lines *gpiocdev.Lines
	vals  []int
}

// NewRealReader requests the given offsets on chip as inputs with pull-ups.
func NewRealReader(chip string, offsets []int) (*RealReader, error) {
	lines, err := gpiocdev.RequestLines(chip, offsets, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request input lines %v: %w", offsets, err)
	}
	return &RealReader{
		lines: lines,
		vals:  make([]int, len(offsets)),
	}, nil
}

// Read returns the raw levels of all requested lines. true = high.
func (r *RealReader) Read() ([]bool, error) {
	if err := r.lines.Values(r.vals); err != nil {
		return nil, fmt.Errorf("read input lines: %w", err)
	}
	out := make([]bool, len(r.vals))
	for i, v := range r.vals {
		out[i] = v != 0
	}
	return out, nil
}

// Close releases the lines.
// Pull-ups are kept so the buttons read inactive while the daemon is down.
func (r *RealReader) Close() error {
	if r.lines == nil {
		return nil
	}
	if err := r.lines.Close(); err != nil {
		return fmt.Errorf("close input lines: %w", err)
	}
	return nil
}

// RealSwitch drives a single output line.
type RealSwitch struct {
	line *gpiocdev.Line
}

// NewRealSwitch requests offset on chip as an output, initially low.
func NewRealSwitch(chip string, offset int) (*RealSwitch, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output line %d: %w", offset, err)
	}
	return &RealSwitch{line: line}, nil
}

// Set drives the line high (on) or low (off).
func (s *RealSwitch) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := s.line.SetValue(v); err != nil {
		return fmt.Errorf("set output line: %w", err)
	}
	return nil
}

// Close drives the line low and releases it.
func (s *RealSwitch) Close() error {
	var errs []error
	if err := s.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("drive low: %w", err))
	}
	if err := s.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
