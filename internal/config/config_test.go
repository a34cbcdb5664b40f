package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/cover-controller/internal/link"
	"github.com/sweeney/cover-controller/internal/schedule"
)

func TestParseEmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, link.DefaultBaud, cfg.Serial.Baud)
	assert.Equal(t, link.DefaultProtocolID, cfg.Serial.ProtocolID)
	assert.Equal(t, DefaultDewLevel, *cfg.Dew.Dew1Level)
	assert.Equal(t, DefaultDewLevel, *cfg.Dew.Dew2Level)
	assert.Equal(t, uint8(DefaultLEDBrightness), cfg.LEDBrightness())
	assert.False(t, cfg.Cover.AutoClose)
	assert.Equal(t, schedule.TimeOfDay{Hour: 5}, cfg.AutoCloseAt())
	assert.Equal(t, DefaultPollInterval, cfg.Control.PollInterval)
	assert.Equal(t, []int{17, 27, 22, 23}, cfg.ButtonOffsets())
}

func TestParseOverrides(t *testing.T) {
	data := []byte(`
serial:
  port: /dev/ttyUSB1
  protocol_id: WandererCoverV3
dew:
  dew1_level: 0
  dew2_level: 40
led:
  led_brightness: 120
  led_brightness_dark: 10
  led_dark: true
cover:
  autoclose_cover: true
  autoclose_time: "06:30"
control:
  poll_interval: 20ms
  heartbeat_interval: 1m
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, "WandererCoverV3", cfg.Serial.ProtocolID)
	assert.Equal(t, 0, *cfg.Dew.Dew1Level, "explicit zero must not be replaced by the default")
	assert.Equal(t, 40, *cfg.Dew.Dew2Level)
	assert.Equal(t, uint8(10), cfg.LEDBrightness())
	assert.True(t, cfg.Cover.AutoClose)
	assert.Equal(t, schedule.TimeOfDay{Hour: 6, Minute: 30}, cfg.AutoCloseAt())
	assert.Equal(t, 20*time.Millisecond, cfg.Control.PollInterval)
	assert.Equal(t, time.Minute, cfg.Control.HeartbeatInterval)
}

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("COVER_BROKER", "tcp://mqtt.local:1883")
	cfg, err := Parse([]byte("mqtt:\n  broker: ${COVER_BROKER}\n"))
	require.NoError(t, err)
	assert.Equal(t, "tcp://mqtt.local:1883", cfg.MQTT.Broker)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"dew out of range":  "dew:\n  dew1_level: 101\n",
		"negative dew":      "dew:\n  dew2_level: -1\n",
		"led out of range":  "led:\n  led_brightness: 256\n",
		"bad autoclose":     "cover:\n  autoclose_time: \"25:00\"\n",
		"duplicate pin":     "gpio:\n  pin_open: 5\n  pin_close: 5\n",
		"not yaml":          "serial: [",
		"negative baud":     "serial:\n  baud: -9600\n",
		"negative interval": "control:\n  poll_interval: -1s\n",
		"separator in id":   "serial:\n  protocol_id: WandererCoverA4\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":8080\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTP.Addr)
}
