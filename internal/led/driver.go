package led

import (
	"fmt"

	"github.com/sweeney/cover-controller/internal/gpio"
)

// PWMDriver maps LED ids onto PWM outputs. Missing outputs are skipped.
type PWMDriver struct {
	outputs [Count]gpio.PWM
	last    [Count]int
}

// NewPWMDriver creates a driver; outputs is indexed by ID.
func NewPWMDriver(outputs [Count]gpio.PWM) *PWMDriver {
	d := &PWMDriver{outputs: outputs}
	for i := range d.last {
		d.last[i] = -1
	}
	return d
}

// SetLevel writes level to the output of id. Unchanged levels are not
// rewritten.
func (d *PWMDriver) SetLevel(id ID, level uint8) error {
	if id < 0 || id >= Count || d.outputs[id] == nil {
		return nil
	}
	if d.last[id] == int(level) {
		return nil
	}
	if err := d.outputs[id].SetDuty(float64(level) / 255); err != nil {
		return fmt.Errorf("led %s: %w", id, err)
	}
	d.last[id] = int(level)
	return nil
}
