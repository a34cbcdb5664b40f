package config

import (
	"fmt"
	"strings"

	"github.com/sweeney/cover-controller/internal/link"
	"github.com/sweeney/cover-controller/internal/schedule"
)

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg.Serial.Baud <= 0 {
		return fmt.Errorf("serial: baud must be positive, got %d", cfg.Serial.Baud)
	}
	// The identifier is the first separator-delimited field of every line.
	if strings.ContainsAny(cfg.Serial.ProtocolID, string([]byte{link.Separator, link.Terminator})) {
		return fmt.Errorf("serial: protocol_id %q must not contain %q or a newline", cfg.Serial.ProtocolID, link.Separator)
	}
	for _, dew := range []struct {
		name  string
		level *int
	}{
		{"dew1_level", cfg.Dew.Dew1Level},
		{"dew2_level", cfg.Dew.Dew2Level},
	} {
		if dew.level != nil && (*dew.level < 0 || *dew.level > 100) {
			return fmt.Errorf("dew: %s must be 0..100, got %d", dew.name, *dew.level)
		}
	}
	for _, led := range []struct {
		name  string
		level *int
	}{
		{"led_brightness", cfg.LED.Brightness},
		{"led_brightness_dark", cfg.LED.BrightnessDark},
	} {
		if led.level != nil && (*led.level < 0 || *led.level > 255) {
			return fmt.Errorf("led: %s must be 0..255, got %d", led.name, *led.level)
		}
	}
	if _, err := schedule.ParseTimeOfDay(cfg.Cover.AutoCloseTime); err != nil {
		return fmt.Errorf("cover: autoclose_time: %w", err)
	}

	pins := map[int]string{}
	for _, p := range []struct {
		name string
		pin  int
	}{
		{"pin_open", cfg.GPIO.PinOpen},
		{"pin_close", cfg.GPIO.PinClose},
		{"pin_light_on", cfg.GPIO.PinLightOn},
		{"pin_light_off", cfg.GPIO.PinLightOff},
		{"pin_panel", cfg.GPIO.PinPanel},
	} {
		if p.pin < 0 {
			return fmt.Errorf("gpio: %s must not be negative", p.name)
		}
		if other, ok := pins[p.pin]; ok {
			return fmt.Errorf("gpio: %s and %s share line %d", other, p.name, p.pin)
		}
		pins[p.pin] = p.name
	}

	if cfg.Control.PollInterval < 0 {
		return fmt.Errorf("control: poll_interval must not be negative")
	}
	if cfg.Control.QueueSize < 0 {
		return fmt.Errorf("control: queue_size must not be negative")
	}
	return nil
}
