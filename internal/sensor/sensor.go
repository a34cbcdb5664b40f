// Package sensor polls the environmental sensor (temperature, humidity,
// pressure) on a fixed cadence and keeps the last reading as a value
// snapshot for the thermal controller and status consumers.
package sensor

import (
	"log"

	"github.com/sweeney/cover-controller/internal/clock"
)

// ReadInterval is the sensor polling cadence.
const ReadInterval clock.Millis = 2000

// Reading is one environmental measurement.
type Reading struct {
	Temperature float64 // °C
	Humidity    float64 // %RH
	Pressure    float64 // hPa
}

// Device is an environmental sensor.
type Device interface {
	Sense() (Reading, error)
}

// Status is the manager's snapshot. Present is false when no device was
// found at startup; Valid is false until the first successful read and
// after a failed one.
type Status struct {
	Present  bool
	Valid    bool
	Reading  Reading
	LastRead clock.Millis
}

// Manager owns the sensor device and its last reading.
type Manager struct {
	clock  clock.Clock
	dev    Device
	status Status
	primed bool
}

// NewManager creates a manager. dev may be nil when no sensor is fitted.
func NewManager(c clock.Clock, dev Device) *Manager {
	return &Manager{
		clock:  c,
		dev:    dev,
		status: Status{Present: dev != nil},
	}
}

// Update reads the device when ReadInterval has elapsed. The first call
// reads immediately.
func (m *Manager) Update() {
	if m.dev == nil {
		return
	}
	now := m.clock.Now()
	if m.primed && !clock.Elapsed(now, m.status.LastRead, ReadInterval) {
		return
	}
	m.primed = true
	m.status.LastRead = now

	r, err := m.dev.Sense()
	if err != nil {
		log.Printf("sensor: read error: %v", err)
		m.status.Valid = false
		return
	}
	m.status.Reading = r
	m.status.Valid = true
}

// Status returns a copy of the current sensor state.
func (m *Manager) Status() Status {
	return m.status
}

// Fake is a settable Device for tests.
type Fake struct {
	Reading Reading
	Err     error
	Reads   int
}

// Sense returns Reading or Err.
func (f *Fake) Sense() (Reading, error) {
	f.Reads++
	if f.Err != nil {
		return Reading{}, f.Err
	}
	return f.Reading, nil
}
