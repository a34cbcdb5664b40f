// Package config loads the controller's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/cover-controller/internal/gpio"
	"github.com/sweeney/cover-controller/internal/link"
	"github.com/sweeney/cover-controller/internal/schedule"
	"github.com/sweeney/cover-controller/internal/sensor"
)

type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	GPIO    GPIOConfig    `yaml:"gpio"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Dew     DewConfig     `yaml:"dew"`
	LED     LEDConfig     `yaml:"led"`
	Cover   CoverConfig   `yaml:"cover"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	Control ControlConfig `yaml:"control"`
}

type SerialConfig struct {
	Port       string `yaml:"port"`
	Baud       int    `yaml:"baud"`
	ProtocolID string `yaml:"protocol_id"`
}

type GPIOConfig struct {
	Chip        string `yaml:"chip"`
	PinOpen     int    `yaml:"pin_open"`
	PinClose    int    `yaml:"pin_close"`
	PinLightOn  int    `yaml:"pin_light_on"`
	PinLightOff int    `yaml:"pin_light_off"`
	PinPanel    int    `yaml:"pin_panel"`
	PotADC      string `yaml:"pot_adc"`
	SupplyADC   string `yaml:"supply_adc"`
	Heater1PWM  string `yaml:"heater1_pwm"`
	Heater2PWM  string `yaml:"heater2_pwm"`
	LEDNetwork  string `yaml:"led_network"`
	LEDStatus   string `yaml:"led_status"`
	LEDLight    string `yaml:"led_light"`
}

type SensorConfig struct {
	Bus     string `yaml:"bus"`
	Address uint16 `yaml:"address"`
}

type DewConfig struct {
	Dew1Level *int `yaml:"dew1_level"`
	Dew2Level *int `yaml:"dew2_level"`
}

type LEDConfig struct {
	Brightness     *int `yaml:"led_brightness"`
	BrightnessDark *int `yaml:"led_brightness_dark"`
	Dark           bool `yaml:"led_dark"`
}

type CoverConfig struct {
	AutoClose     bool   `yaml:"autoclose_cover"`
	AutoCloseTime string `yaml:"autoclose_time"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	WSBroker string `yaml:"ws_broker"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type ControlConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	QueueSize         int           `yaml:"queue_size"`
}

// Defaults.
const (
	DefaultDewLevel          = 70
	DefaultLEDBrightness     = 80
	DefaultLEDBrightnessDark = 20
	DefaultAutoCloseTime     = "05:00"
	DefaultBroker            = "tcp://localhost:1883"
	DefaultHTTPAddr          = ":80"
	DefaultPollInterval      = 10 * time.Millisecond
	DefaultHeartbeat         = 15 * time.Minute
	DefaultQueueSize         = 8
)

// Load reads path, expands environment variables, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data. Empty input yields the defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func intPtr(v int) *int { return &v }

func (c *Config) setDefaults() {
	if c.Serial.Port == "" {
		c.Serial.Port = "/dev/ttyACM0"
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = link.DefaultBaud
	}
	if c.Serial.ProtocolID == "" {
		c.Serial.ProtocolID = link.DefaultProtocolID
	}
	if c.GPIO.Chip == "" {
		c.GPIO.Chip = "gpiochip0"
	}
	if c.GPIO.PinOpen == 0 {
		c.GPIO.PinOpen = gpio.DefaultPinOpen
	}
	if c.GPIO.PinClose == 0 {
		c.GPIO.PinClose = gpio.DefaultPinClose
	}
	if c.GPIO.PinLightOn == 0 {
		c.GPIO.PinLightOn = gpio.DefaultPinLightOn
	}
	if c.GPIO.PinLightOff == 0 {
		c.GPIO.PinLightOff = gpio.DefaultPinLightOff
	}
	if c.GPIO.PinPanel == 0 {
		c.GPIO.PinPanel = gpio.DefaultPinPanel
	}
	if c.GPIO.PotADC == "" {
		c.GPIO.PotADC = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"
	}
	if c.GPIO.SupplyADC == "" {
		c.GPIO.SupplyADC = "/sys/bus/iio/devices/iio:device0/in_voltage1_raw"
	}
	if c.GPIO.Heater1PWM == "" {
		c.GPIO.Heater1PWM = "GPIO12"
	}
	if c.GPIO.Heater2PWM == "" {
		c.GPIO.Heater2PWM = "GPIO13"
	}
	if c.GPIO.LEDNetwork == "" {
		c.GPIO.LEDNetwork = "GPIO5"
	}
	if c.GPIO.LEDStatus == "" {
		c.GPIO.LEDStatus = "GPIO6"
	}
	if c.GPIO.LEDLight == "" {
		c.GPIO.LEDLight = "GPIO26"
	}
	if c.Sensor.Bus == "" {
		c.Sensor.Bus = "/dev/i2c-1"
	}
	if c.Sensor.Address == 0 {
		c.Sensor.Address = sensor.DefaultAddress
	}
	if c.Dew.Dew1Level == nil {
		c.Dew.Dew1Level = intPtr(DefaultDewLevel)
	}
	if c.Dew.Dew2Level == nil {
		c.Dew.Dew2Level = intPtr(DefaultDewLevel)
	}
	if c.LED.Brightness == nil {
		c.LED.Brightness = intPtr(DefaultLEDBrightness)
	}
	if c.LED.BrightnessDark == nil {
		c.LED.BrightnessDark = intPtr(DefaultLEDBrightnessDark)
	}
	if c.Cover.AutoCloseTime == "" {
		c.Cover.AutoCloseTime = DefaultAutoCloseTime
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = DefaultBroker
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.Control.PollInterval == 0 {
		c.Control.PollInterval = DefaultPollInterval
	}
	if c.Control.HeartbeatInterval == 0 {
		c.Control.HeartbeatInterval = DefaultHeartbeat
	}
	if c.Control.QueueSize == 0 {
		c.Control.QueueSize = DefaultQueueSize
	}
}

// LEDBrightness returns the indicator brightness (0..255) for the current
// dark setting.
func (c *Config) LEDBrightness() uint8 {
	level := *c.LED.Brightness
	if c.LED.Dark {
		level = *c.LED.BrightnessDark
	}
	return uint8(level)
}

// AutoCloseAt returns the parsed auto-close time. Validate guarantees it
// parses.
func (c *Config) AutoCloseAt() schedule.TimeOfDay {
	tod, _ := schedule.ParseTimeOfDay(c.Cover.AutoCloseTime)
	return tod
}

// ButtonOffsets returns the button line offsets in input.ButtonID order.
func (c *Config) ButtonOffsets() []int {
	return []int{c.GPIO.PinOpen, c.GPIO.PinClose, c.GPIO.PinLightOn, c.GPIO.PinLightOff}
}
