package gpio

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Default PWM frequencies. Heaters run above the audible range, LEDs
// just need to be flicker-free.
const (
	HeaterFrequency = 20 * physic.KiloHertz
	LEDFrequency    = 5 * physic.KiloHertz
)

var (
	hostOnce sync.Once
	hostErr  error
)

// InitHost loads the periph.io host drivers. Safe to call more than once.
func InitHost() error {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	return hostErr
}

// PeriphPWM drives a PWM-capable pin through periph.io.
type PeriphPWM struct {
	pin  gpio.PinIO
	freq physic.Frequency
}

// NewPeriphPWM opens the named pin (e.g. "GPIO18") at the given frequency
// and drives it low.
func NewPeriphPWM(name string, freq physic.Frequency) (*PeriphPWM, error) {
	if err := InitHost(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("pwm pin %q not found", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("pwm pin %s: drive low: %w", name, err)
	}
	return &PeriphPWM{pin: pin, freq: freq}, nil
}

// SetDuty sets the duty cycle (clamped to 0..1). Zero and full duty are
// written as plain levels.
func (p *PeriphPWM) SetDuty(duty float64) error {
	switch {
	case duty <= 0:
		return p.pin.Out(gpio.Low)
	case duty >= 1:
		return p.pin.Out(gpio.High)
	}
	d := gpio.Duty(duty * float64(gpio.DutyMax))
	if err := p.pin.PWM(d, p.freq); err != nil {
		return fmt.Errorf("pwm %s: %w", p.pin.Name(), err)
	}
	return nil
}

// Halt stops the output and leaves the pin low.
func (p *PeriphPWM) Halt() error {
	if err := p.pin.Halt(); err != nil {
		return fmt.Errorf("halt %s: %w", p.pin.Name(), err)
	}
	return p.pin.Out(gpio.Low)
}
