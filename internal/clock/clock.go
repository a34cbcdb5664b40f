// Package clock provides the millisecond time base shared by every control loop.
//
// Millis is a 32-bit counter that wraps after ~49.7 days. All elapsed-time
// checks go through Since, which relies on unsigned subtraction and stays
// correct across a wrap as long as the measured interval is shorter than
// the counter period.
package clock

import "time"

// Millis is a wrapping millisecond timestamp.
type Millis uint32

// Clock returns the current millisecond count.
type Clock interface {
	Now() Millis
}

// Since returns the elapsed milliseconds from then to now.
// Unsigned arithmetic makes this wraparound-safe.
func Since(now, then Millis) Millis {
	return now - then
}

// Elapsed reports whether at least d milliseconds have passed since then.
func Elapsed(now, then Millis, d Millis) bool {
	return Since(now, then) >= d
}

// Monotonic counts milliseconds since it was created, using the runtime's
// monotonic clock reading.
type Monotonic struct {
	start time.Time
}

// NewMonotonic starts a time base at zero.
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

// Now returns milliseconds since construction, truncated to 32 bits.
func (m *Monotonic) Now() Millis {
	return Millis(uint64(time.Since(m.start).Milliseconds()))
}

// Fake is a manually driven clock for tests.
type Fake struct {
	T Millis
}

// NewFake creates a Fake clock set to t.
func NewFake(t Millis) *Fake {
	return &Fake{T: t}
}

// Now returns the current fake time.
func (f *Fake) Now() Millis {
	return f.T
}

// Advance moves the clock forward by d milliseconds (wrapping).
func (f *Fake) Advance(d Millis) Millis {
	f.T += d
	return f.T
}

// Set jumps the clock to t.
func (f *Fake) Set(t Millis) {
	f.T = t
}
