package main

import (
	"fmt"
	"io"
	"log"

	"periph.io/x/conn/v3/physic"

	"github.com/sweeney/cover-controller/internal/config"
	"github.com/sweeney/cover-controller/internal/gpio"
	"github.com/sweeney/cover-controller/internal/input"
	"github.com/sweeney/cover-controller/internal/led"
	"github.com/sweeney/cover-controller/internal/sensor"
	"github.com/sweeney/cover-controller/internal/thermal"
)

// hardware holds the opened devices. Everything except the buttons is
// optional; a missing device is nil and its consumer runs in its safe
// state.
type hardware struct {
	buttons gpio.Reader
	pot     gpio.AnalogReader
	supply  gpio.AnalogReader
	panel   gpio.Switch
	heaters [thermal.HeaterCount]gpio.PWM
	leds    [led.Count]gpio.PWM
	sensor  sensor.Device
	closers []io.Closer
}

func openHardware(cfg *config.Config) (*hardware, error) {
	buttons, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.ButtonOffsets())
	if err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	hw := &hardware{buttons: buttons}

	hw.pot = openADC("potentiometer", cfg.GPIO.PotADC)
	hw.supply = openADC("supply", cfg.GPIO.SupplyADC)

	if sw, err := gpio.NewRealSwitch(cfg.GPIO.Chip, cfg.GPIO.PinPanel); err != nil {
		log.Printf("panel power switch unavailable: %v", err)
	} else {
		hw.panel = sw
		if err := sw.Set(true); err != nil {
			log.Printf("panel power on: %v", err)
		}
	}

	hw.heaters[thermal.Heater1] = openPWM(cfg.GPIO.Heater1PWM, gpio.HeaterFrequency)
	hw.heaters[thermal.Heater2] = openPWM(cfg.GPIO.Heater2PWM, gpio.HeaterFrequency)
	hw.leds[led.Network] = openPWM(cfg.GPIO.LEDNetwork, gpio.LEDFrequency)
	hw.leds[led.Status] = openPWM(cfg.GPIO.LEDStatus, gpio.LEDFrequency)
	hw.leds[led.Light] = openPWM(cfg.GPIO.LEDLight, gpio.LEDFrequency)

	if dev, err := sensor.OpenBME280(cfg.Sensor.Bus, cfg.Sensor.Address); err != nil {
		log.Printf("environment sensor not found: %v", err)
	} else {
		hw.sensor = dev
		hw.closers = append(hw.closers, dev)
	}
	return hw, nil
}

// openADC returns nil when the channel cannot be read.
func openADC(name, path string) gpio.AnalogReader {
	r := gpio.NewIIOReader(path)
	if _, err := r.ReadRaw(); err != nil {
		log.Printf("%s adc unavailable: %v", name, err)
		return nil
	}
	return r
}

// openPWM returns nil when the pin cannot be driven.
func openPWM(name string, freq physic.Frequency) gpio.PWM {
	p, err := gpio.NewPeriphPWM(name, freq)
	if err != nil {
		log.Printf("pwm %s unavailable: %v", name, err)
		return nil
	}
	return p
}

// Close stops every output and releases the devices.
func (hw *hardware) Close() error {
	type halter interface{ Halt() error }
	for _, out := range append(hw.heaters[:], hw.leds[:]...) {
		if h, ok := out.(halter); ok {
			if err := h.Halt(); err != nil {
				log.Printf("halt output: %v", err)
			}
		}
	}
	if hw.panel != nil {
		hw.panel.Close()
	}
	for _, c := range hw.closers {
		c.Close()
	}
	return hw.buttons.Close()
}

// printState writes one reading of every input to w.
func printState(w io.Writer, hw *hardware) error {
	levels, err := hw.buttons.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	for id := input.ButtonID(0); id < input.ButtonCount; id++ {
		state := "released"
		if int(id) < len(levels) && !levels[id] {
			state = "pressed"
		}
		fmt.Fprintf(w, "%s: %s\n", id, state)
	}

	if hw.pot != nil {
		if raw, err := hw.pot.ReadRaw(); err == nil {
			fmt.Fprintf(w, "POT: %d\n", raw)
		}
	}
	if hw.supply != nil {
		if raw, err := hw.supply.ReadRaw(); err == nil {
			fmt.Fprintf(w, "SUPPLY: %.2fV\n", gpio.SupplyVolts(raw))
		}
	}

	if hw.sensor == nil {
		fmt.Fprintln(w, "SENSOR: absent")
		return nil
	}
	r, err := hw.sensor.Sense()
	if err != nil {
		fmt.Fprintf(w, "SENSOR: error: %v\n", err)
		return nil
	}
	fmt.Fprintf(w, "SENSOR: T=%.1fC RH=%.1f%% P=%.1fhPa\n", r.Temperature, r.Humidity, r.Pressure)
	return nil
}
