// Package input turns raw button levels into debounced, edge-triggered
// events and the potentiometer sample into a filtered brightness value.
// It has no hardware dependencies; samples come through gpio.Reader and
// gpio.AnalogReader, time through clock.Clock.
package input

import (
	"log"

	"github.com/sweeney/cover-controller/internal/clock"
	"github.com/sweeney/cover-controller/internal/gpio"
)

// ButtonID identifies a front panel button.
type ButtonID int

const (
	ButtonOpen ButtonID = iota
	ButtonClose
	ButtonLightOn
	ButtonLightOff
	ButtonCount
)

var buttonNames = [ButtonCount]string{"OPEN", "CLOSE", "LIGHT_ON", "LIGHT_OFF"}

func (id ButtonID) String() string {
	if id < 0 || id >= ButtonCount {
		return "UNKNOWN"
	}
	return buttonNames[id]
}

// Event is the one-shot result of the most recent poll for a button.
type Event int

const (
	EventNone Event = iota
	EventPressed
	EventReleased
	EventClick
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "NONE"
	case EventPressed:
		return "PRESSED"
	case EventReleased:
		return "RELEASED"
	case EventClick:
		return "CLICK"
	}
	return "UNKNOWN"
}

// Level is a raw pin level. Buttons are wired active low.
type Level bool

const (
	Low  Level = false
	High Level = true

	active   = Low
	inactive = High
)

// Debounce timing and analog filtering.
const (
	DebounceWindow clock.Millis = 40
	NoiseThreshold              = 8
)

// Button holds the debounce state of one channel.
type Button struct {
	ID           ButtonID
	Raw          Level
	Stable       Level
	LastReported Level
	LastChange   clock.Millis
	Event        Event
}

// Down reports whether the debounced level is the active one.
func (b Button) Down() bool { return b.Stable == active }

// Analog holds the potentiometer filter state.
type Analog struct {
	Raw          int
	LastAccepted int
	Brightness   uint8
}

// Debouncer owns all button channels and the brightness potentiometer.
type Debouncer struct {
	clock   clock.Clock
	reader  gpio.Reader
	analog  gpio.AnalogReader
	buttons [ButtonCount]Button
	pot     Analog
}

// NewDebouncer creates a debouncer with every button released and the
// potentiometer unread, so the first analog sample is always accepted.
// reader must return one level per ButtonID, in ButtonID order. analog
// may be nil.
func NewDebouncer(c clock.Clock, reader gpio.Reader, analog gpio.AnalogReader) *Debouncer {
	d := &Debouncer{
		clock:  c,
		reader: reader,
		analog: analog,
		pot:    Analog{LastAccepted: -NoiseThreshold},
	}
	now := c.Now()
	for i := range d.buttons {
		d.buttons[i] = Button{
			ID:           ButtonID(i),
			Raw:          inactive,
			Stable:       inactive,
			LastReported: inactive,
			LastChange:   now,
		}
	}
	return d
}

// Poll samples every button once and recomputes its event.
func (d *Debouncer) Poll() {
	now := d.clock.Now()

	levels, err := d.reader.Read()
	if err != nil {
		log.Printf("input: read error: %v", err)
		for i := range d.buttons {
			d.buttons[i].Event = EventNone
		}
		return
	}

	for i := range d.buttons {
		raw := inactive
		if i < len(levels) {
			raw = Level(levels[i])
		}
		d.buttons[i].step(raw, now)
	}
}

func (b *Button) step(raw Level, now clock.Millis) {
	b.Event = EventNone

	if raw != b.Raw {
		b.Raw = raw
		b.LastChange = now
		return
	}

	if !clock.Elapsed(now, b.LastChange, DebounceWindow) || b.Stable == raw {
		return
	}

	b.Stable = raw
	if raw == active {
		b.Event = EventPressed
	} else if b.LastReported == active {
		b.Event = EventClick
	} else {
		b.Event = EventReleased
	}
	b.LastReported = raw
}

// UpdateAnalog reads the potentiometer and refreshes the brightness
// when the sample moved by at least NoiseThreshold counts.
func (d *Debouncer) UpdateAnalog() {
	if d.analog == nil {
		return
	}
	raw, err := d.analog.ReadRaw()
	if err != nil {
		log.Printf("input: adc read error: %v", err)
		return
	}
	d.pot.Raw = raw

	diff := raw - d.pot.LastAccepted
	if diff < 0 {
		diff = -diff
	}
	if diff < NoiseThreshold {
		return
	}

	d.pot.LastAccepted = raw
	d.pot.Brightness = 255 - scale(raw)
}

// scale maps 0..ADCMax onto 0..255.
func scale(raw int) uint8 {
	if raw < 0 {
		raw = 0
	}
	if raw > gpio.ADCMax {
		raw = gpio.ADCMax
	}
	return uint8(raw * 255 / gpio.ADCMax)
}

func (d *Debouncer) button(id ButtonID) (Button, bool) {
	if id < 0 || id >= ButtonCount {
		return Button{}, false
	}
	return d.buttons[id], true
}

// EventOf returns the event produced by the most recent poll.
func (d *Debouncer) EventOf(id ButtonID) Event {
	b, ok := d.button(id)
	if !ok {
		return EventNone
	}
	return b.Event
}

// Pressed reports whether id became pressed on the most recent poll.
func (d *Debouncer) Pressed(id ButtonID) bool { return d.EventOf(id) == EventPressed }

// Released reports a release that did not follow a reported press.
func (d *Debouncer) Released(id ButtonID) bool { return d.EventOf(id) == EventReleased }

// Clicked reports a release following a reported press.
func (d *Debouncer) Clicked(id ButtonID) bool { return d.EventOf(id) == EventClick }

// IsDown reports whether the debounced level of id is active.
func (d *Debouncer) IsDown(id ButtonID) bool {
	b, ok := d.button(id)
	return ok && b.Stable == active
}

// Brightness returns the filtered potentiometer brightness (0..255).
func (d *Debouncer) Brightness() uint8 {
	return d.pot.Brightness
}

// Snapshot is a value copy of the input state for status consumers.
type Snapshot struct {
	Buttons    [ButtonCount]Button
	Pot        Analog
	Brightness uint8
}

// Snapshot returns a copy of all channels.
func (d *Debouncer) Snapshot() Snapshot {
	return Snapshot{
		Buttons:    d.buttons,
		Pot:        d.pot,
		Brightness: d.pot.Brightness,
	}
}
