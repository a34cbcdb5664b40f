// Package led animates the indicator LEDs using elapsed-time comparisons
// only; Update never waits.
package led

import (
	"log"

	"github.com/sweeney/cover-controller/internal/clock"
)

// ID identifies an indicator LED.
type ID int

const (
	Network ID = iota
	Status
	Light
	Count
)

var idNames = [Count]string{"NETWORK", "STATUS", "LIGHT"}

func (id ID) String() string {
	if id < 0 || id >= Count {
		return "UNKNOWN"
	}
	return idNames[id]
}

// Mode is the visual mode of an LED.
type Mode int

const (
	ModeOff Mode = iota
	ModeOn
	ModeBlinkSlow
	ModeBlinkFast
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "OFF"
	case ModeOn:
		return "ON"
	case ModeBlinkSlow:
		return "BLINK_SLOW"
	case ModeBlinkFast:
		return "BLINK_FAST"
	}
	return "UNKNOWN"
}

// Blink half-periods.
const (
	SlowPeriod clock.Millis = 500
	FastPeriod clock.Millis = 150
)

// period returns the toggle period of a blinking mode, 0 otherwise.
func (m Mode) period() clock.Millis {
	switch m {
	case ModeBlinkSlow:
		return SlowPeriod
	case ModeBlinkFast:
		return FastPeriod
	case ModeOff, ModeOn:
		return 0
	}
	return 0
}

// Driver writes an 8-bit level to an LED output.
type Driver interface {
	SetLevel(id ID, level uint8) error
}

// Channel is the animation state of one LED.
type Channel struct {
	ID         ID
	Mode       Mode
	Phase      bool
	LastToggle clock.Millis
	Level      uint8
}

// Animator owns all LED channels.
type Animator struct {
	clock      clock.Clock
	driver     Driver
	channels   [Count]Channel
	brightness uint8
}

// NewAnimator creates an animator with every LED off at full brightness.
func NewAnimator(c clock.Clock, d Driver) *Animator {
	a := &Animator{clock: c, driver: d, brightness: 255}
	now := c.Now()
	for i := range a.channels {
		a.channels[i] = Channel{ID: ID(i), LastToggle: now}
	}
	return a
}

// SetMode switches the mode of id. Setting the current mode again is a
// no-op so the blink phase is not restarted.
func (a *Animator) SetMode(id ID, mode Mode) {
	if id < 0 || id >= Count {
		return
	}
	ch := &a.channels[id]
	if ch.Mode == mode {
		return
	}
	ch.Mode = mode
	ch.Phase = false
	ch.LastToggle = a.clock.Now()
}

// Mode returns the mode of id, ModeOff for unknown ids.
func (a *Animator) Mode(id ID) Mode {
	if id < 0 || id >= Count {
		return ModeOff
	}
	return a.channels[id].Mode
}

// SetBrightness sets the level used for lit LEDs.
func (a *Animator) SetBrightness(b uint8) {
	a.brightness = b
}

// Brightness returns the global LED brightness.
func (a *Animator) Brightness() uint8 {
	return a.brightness
}

// Update advances blink phases and writes every output.
func (a *Animator) Update() {
	now := a.clock.Now()
	for i := range a.channels {
		ch := &a.channels[i]

		var lit bool
		switch ch.Mode {
		case ModeOff:
			lit = false
		case ModeOn:
			lit = true
		case ModeBlinkSlow, ModeBlinkFast:
			if clock.Elapsed(now, ch.LastToggle, ch.Mode.period()) {
				ch.LastToggle = now
				ch.Phase = !ch.Phase
			}
			lit = ch.Phase
		}

		ch.Level = 0
		if lit {
			ch.Level = a.brightness
		}
		if a.driver == nil {
			continue
		}
		if err := a.driver.SetLevel(ch.ID, ch.Level); err != nil {
			log.Printf("led: set %s: %v", ch.ID, err)
		}
	}
}

// Snapshot returns a copy of every channel.
func (a *Animator) Snapshot() [Count]Channel {
	return a.channels
}
