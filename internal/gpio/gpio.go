// Package gpio provides hardware abstraction for the controller's pins.
// Real implementations use the Linux GPIO character device for digital
// lines, periph.io for PWM and the IIO sysfs interface for the ADC.
// Fake implementations allow testing without hardware.
package gpio

// Reader reads raw digital input levels.
type Reader interface {
	// Read returns the raw level of every configured line, in the order
	// the lines were requested. true = high.
	Read() ([]bool, error)

	// Close releases GPIO resources.
	Close() error
}

// AnalogReader returns raw ADC samples.
type AnalogReader interface {
	// ReadRaw returns a 12-bit sample (0..4095).
	ReadRaw() (int, error)
}

// PWM drives a duty-cycle output.
type PWM interface {
	// SetDuty sets the output duty cycle, 0..1.
	SetDuty(duty float64) error
}

// Switch drives a plain on/off output.
type Switch interface {
	Set(on bool) error
	Close() error
}

// Default line offsets on gpiochip0 (BCM numbering).
// Buttons are active low with pull-ups.
const (
	DefaultPinOpen     = 17
	DefaultPinClose    = 27
	DefaultPinLightOn  = 22
	DefaultPinLightOff = 23
	DefaultPinPanel    = 24
)

// ADCMax is the full-scale value of the 12-bit ADC.
const ADCMax = 4095

// SupplyVolts converts a raw supply-sense sample to volts.
// The sense input sits behind a 100k/22k divider on a 3.3 V reference.
func SupplyVolts(raw int) float64 {
	const (
		dividerFactor = (100000.0 + 22000.0) / 22000.0
		vRef          = 3.3
	)
	return float64(raw) / ADCMax * vRef * dividerFactor
}
