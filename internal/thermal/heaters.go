package thermal

import (
	"fmt"

	"github.com/sweeney/cover-controller/internal/gpio"
)

// PWMHeaters drives the heater channels through PWM outputs.
type PWMHeaters struct {
	outputs [HeaterCount]gpio.PWM
}

// NewPWMHeaters wires heater 1 and heater 2 to their outputs.
func NewPWMHeaters(h1, h2 gpio.PWM) *PWMHeaters {
	return &PWMHeaters{outputs: [HeaterCount]gpio.PWM{h1, h2}}
}

// SetPower sets h to percent (clamped to 0..100).
func (p *PWMHeaters) SetPower(h Heater, percent int) error {
	if h < 0 || h >= HeaterCount || p.outputs[h] == nil {
		return nil
	}
	if err := p.outputs[h].SetDuty(float64(clampPercent(percent)) / 100); err != nil {
		return fmt.Errorf("heater %d: %w", h+1, err)
	}
	return nil
}
