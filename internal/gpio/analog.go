package gpio

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// IIOReader reads a raw ADC channel from the Linux IIO sysfs interface,
// e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type IIOReader struct {
	Path string
}

// NewIIOReader returns a reader for the given sysfs attribute.
func NewIIOReader(path string) *IIOReader {
	return &IIOReader{Path: path}
}

// ReadRaw returns the current sample, clamped to 0..ADCMax.
func (r *IIOReader) ReadRaw() (int, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return 0, fmt.Errorf("read adc %s: %w", r.Path, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse adc %s: %w", r.Path, err)
	}
	if v < 0 {
		v = 0
	}
	if v > ADCMax {
		v = ADCMax
	}
	return v, nil
}
