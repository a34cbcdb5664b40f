// Package thermal computes the dew point from the environmental sensor and
// drives the two dew heaters proportionally to the condensation risk.
package thermal

import (
	"log"
	"math"

	"github.com/sweeney/cover-controller/internal/clock"
	"github.com/sweeney/cover-controller/internal/sensor"
)

// UpdateInterval is the control cadence.
const UpdateInterval clock.Millis = 5000

// Control law thresholds: heaters start below StartDelta of dew point
// margin and reach their configured maximum at FullOnDelta.
const (
	StartDelta  = 4.0
	FullOnDelta = 2.0
)

// Magnus coefficients.
const (
	magnusA = 17.62
	magnusB = 243.12
)

// Heater identifies one dew heater channel.
type Heater int

const (
	Heater1 Heater = iota
	Heater2
	HeaterCount
)

// Heaters drives the heater outputs in percent (0..100).
type Heaters interface {
	SetPower(h Heater, percent int) error
}

// SensorSource provides the latest environmental reading.
type SensorSource interface {
	Status() sensor.Status
}

// Status is the controller's snapshot.
type Status struct {
	Temperature float64
	Humidity    float64
	DewPoint    float64
	Power       [HeaterCount]int
	MaxPower    [HeaterCount]int
	Active      bool
	LastUpdate  clock.Millis
}

// Controller runs the dew heater control law.
type Controller struct {
	clock   clock.Clock
	source  SensorSource
	heaters Heaters
	status  Status
}

// New creates a controller with both heaters off. max1 and max2 are the
// configured maximum powers in percent.
func New(c clock.Clock, source SensorSource, heaters Heaters, max1, max2 int) *Controller {
	ctl := &Controller{
		clock:   c,
		source:  source,
		heaters: heaters,
		status:  Status{LastUpdate: c.Now()},
	}
	ctl.SetMaxPower(max1, max2)
	ctl.drive()
	return ctl
}

// SetMaxPower changes the per-channel maximum; it takes effect on the
// next control cycle.
func (c *Controller) SetMaxPower(max1, max2 int) {
	c.status.MaxPower = [HeaterCount]int{clampPercent(max1), clampPercent(max2)}
}

// Update runs one control cycle when UpdateInterval has elapsed since the
// previous one; otherwise it does nothing.
func (c *Controller) Update() {
	now := c.clock.Now()
	if !clock.Elapsed(now, c.status.LastUpdate, UpdateInterval) {
		return
	}
	c.status.LastUpdate = now

	st := c.source.Status()
	if !st.Present || !st.Valid {
		c.off()
		return
	}

	t := st.Reading.Temperature
	h := st.Reading.Humidity
	c.status.Temperature = t
	c.status.Humidity = h
	if !finite(t) || !finite(h) || h <= 0 || h > 100 {
		log.Printf("thermal: invalid sensor reading T=%v RH=%v", t, h)
		c.status.DewPoint = math.NaN()
		c.off()
		return
	}

	td := DewPoint(t, h)
	delta := t - td
	c.status.DewPoint = td
	for i := range c.status.Power {
		c.status.Power[i] = Duty(delta, c.status.MaxPower[i])
	}
	c.status.Active = c.status.Power[Heater1] > 0 || c.status.Power[Heater2] > 0
	c.drive()

	log.Printf("thermal: T=%.1fC RH=%.1f%% Td=%.1fC delta=%.2f -> H1=%d%% H2=%d%%",
		t, h, td, delta, c.status.Power[Heater1], c.status.Power[Heater2])
}

func (c *Controller) off() {
	c.status.Power = [HeaterCount]int{}
	c.status.Active = false
	c.drive()
}

func (c *Controller) drive() {
	if c.heaters == nil {
		return
	}
	for i, p := range c.status.Power {
		if err := c.heaters.SetPower(Heater(i), p); err != nil {
			log.Printf("thermal: set heater %d: %v", i+1, err)
		}
	}
}

// Status returns a copy of the controller state.
func (c *Controller) Status() Status {
	return c.status
}

// DewPoint returns the Magnus-approximation dew point in °C.
func DewPoint(tempC, humidity float64) float64 {
	gamma := (magnusA*tempC)/(magnusB+tempC) + math.Log(humidity/100)
	return (magnusB * gamma) / (magnusA - gamma)
}

// Duty returns the heater power for a dew point margin delta, scaled to
// maxPercent. Zero at or above StartDelta, maxPercent at or below
// FullOnDelta, linear in between.
func Duty(delta float64, maxPercent int) int {
	maxPercent = clampPercent(maxPercent)
	if delta >= StartDelta {
		return 0
	}
	factor := (StartDelta - delta) / (StartDelta - FullOnDelta)
	if factor > 1 {
		factor = 1
	}
	if factor < 0 {
		factor = 0
	}
	return int(factor * float64(maxPercent))
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
