package gpio

import "errors"

// FakeReader is a test double that returns scripted input levels.
type FakeReader struct {
	// Samples contains scripted raw levels to return.
	// Each call to Read() consumes the next sample.
	Samples [][]bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...[]bool) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() ([]bool, error) {
	if f.ReadError != nil {
		return nil, f.ReadError
	}

	if len(f.Samples) == 0 {
		return nil, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	out := make([]bool, len(sample))
	copy(out, sample)
	return out, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeAnalog returns a settable ADC value.
type FakeAnalog struct {
	Raw       int
	ReadError error
}

// ReadRaw returns Raw or ReadError.
func (f *FakeAnalog) ReadRaw() (int, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.Raw, nil
}

// FakePWM records duty cycles.
type FakePWM struct {
	Duty    float64
	History []float64
	Err     error
}

// SetDuty records duty.
func (f *FakePWM) SetDuty(duty float64) error {
	if f.Err != nil {
		return f.Err
	}
	f.Duty = duty
	f.History = append(f.History, duty)
	return nil
}

// FakeSwitch records the output state.
type FakeSwitch struct {
	On     bool
	Closed bool
}

// Set records on.
func (f *FakeSwitch) Set(on bool) error {
	f.On = on
	return nil
}

// Close marks the switch closed.
func (f *FakeSwitch) Close() error {
	f.On = false
	f.Closed = true
	return nil
}
