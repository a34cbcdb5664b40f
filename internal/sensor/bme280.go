package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"

	"github.com/sweeney/cover-controller/internal/gpio"
)

// DefaultAddress is the BME280 I2C address with SDO tied low.
const DefaultAddress = 0x76

// BME280 reads a Bosch BME280 over I2C.
type BME280 struct {
	bus i2c.BusCloser
	dev *bmxx80.Dev
}

// OpenBME280 opens bus (empty for the first available) and probes addr.
func OpenBME280(bus string, addr uint16) (*BME280, error) {
	if err := gpio.InitHost(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", bus, err)
	}
	dev, err := bmxx80.NewI2C(b, addr, &bmxx80.DefaultOpts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("bme280 at 0x%02x: %w", addr, err)
	}
	return &BME280{bus: b, dev: dev}, nil
}

// Sense performs one forced measurement.
func (s *BME280) Sense() (Reading, error) {
	var e physic.Env
	if err := s.dev.Sense(&e); err != nil {
		return Reading{}, fmt.Errorf("bme280 sense: %w", err)
	}
	return Reading{
		Temperature: float64(e.Temperature-physic.ZeroCelsius) / float64(physic.Celsius),
		Humidity:    float64(e.Humidity) / float64(physic.PercentRH),
		Pressure:    float64(e.Pressure) / float64(100*physic.Pascal),
	}, nil
}

// Close halts the device and releases the bus.
func (s *BME280) Close() error {
	var errs []error
	if err := s.dev.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("halt: %w", err))
	}
	if err := s.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close bus: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
