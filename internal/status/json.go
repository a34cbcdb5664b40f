package status

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/cover-controller/internal/input"
	"github.com/sweeney/cover-controller/internal/led"
	"github.com/sweeney/cover-controller/internal/thermal"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Sensor        SensorJSON   `json:"bme"`
	Dew           DewJSON      `json:"dew"`
	Cover         CoverJSON    `json:"wanderer"`
	Inputs        InputsJSON   `json:"inputs"`
	LEDs          []LEDJSON    `json:"leds"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SensorJSON reports the environmental sensor and supply voltage.
type SensorJSON struct {
	Present     bool    `json:"present"`
	Valid       bool    `json:"valid"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Pressure    float64 `json:"pressure"`
	Voltage     float64 `json:"voltage"`
	Time        string  `json:"time"`
}

// DewJSON reports the dew heater controller.
type DewJSON struct {
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	DewPoint     float64 `json:"dewPoint"`
	Dew1Power    int     `json:"dew1Power"`
	Dew1MaxPower int     `json:"dew1MaxPower"`
	Dew2Power    int     `json:"dew2Power"`
	Dew2MaxPower int     `json:"dew2MaxPower"`
	Active       bool    `json:"active"`
}

// CoverJSON reports the accessory link and its last status record.
type CoverJSON struct {
	ConnectionStatus bool     `json:"connection_status"`
	State            string   `json:"state"`
	Firmware         string   `json:"firmware,omitempty"`
	ClosePosition    *float64 `json:"close_position,omitempty"`
	OpenPosition     *float64 `json:"open_position,omitempty"`
	CurrentPosition  *float64 `json:"current_position,omitempty"`
	InputVoltage     *float64 `json:"input_voltage,omitempty"`
	Brightness       *int     `json:"brightness,omitempty"`
	DewHeater        *int     `json:"dew_heater,omitempty"`
	ASIAirEnabled    *bool    `json:"asiair_enabled,omitempty"`
	PotiBrightness   int      `json:"poti_brightness"`
	Messages         int      `json:"messages"`
	Rejected         int      `json:"rejected"`
	Reconnects       int      `json:"reconnects"`
}

// InputsJSON reports debounced button levels.
type InputsJSON struct {
	Buttons map[string]bool `json:"buttons"`
	PotRaw  int             `json:"pot_raw"`
}

// LEDJSON reports one indicator LED.
type LEDJSON struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
	On   bool   `json:"on"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs        int64  `json:"poll_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	WSBroker      string `json:"ws_broker,omitempty"`
	SerialPort    string `json:"serial_port"`
	ProtocolID    string `json:"protocol_id"`
	AutoClose     bool   `json:"autoclose_cover"`
	AutoCloseTime string `json:"autoclose_time"`
}

// finiteOr0 keeps NaN and Inf out of the JSON encoder, which rejects them.
func finiteOr0(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Sensor:        buildSensor(snap),
		Dew:           buildDew(snap.Thermal),
		Cover:         buildCover(snap),
		Inputs:        buildInputs(snap.Input),
		LEDs:          buildLEDs(snap.LEDs),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:        snap.Config.PollMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			WSBroker:      snap.Config.WSBroker,
			SerialPort:    snap.Config.SerialPort,
			ProtocolID:    snap.Config.ProtocolID,
			AutoClose:     snap.Config.AutoClose,
			AutoCloseTime: snap.Config.AutoCloseTime,
		},
	}
}

func buildSensor(snap Snapshot) SensorJSON {
	s := snap.Sensor
	return SensorJSON{
		Present:     s.Present,
		Valid:       s.Valid,
		Temperature: finiteOr0(s.Reading.Temperature),
		Humidity:    finiteOr0(s.Reading.Humidity),
		Pressure:    finiteOr0(s.Reading.Pressure),
		Voltage:     finiteOr0(snap.SupplyVolts),
		Time:        snap.Now.Local().Format("15:04"),
	}
}

func buildDew(t thermal.Status) DewJSON {
	return DewJSON{
		Temperature:  finiteOr0(t.Temperature),
		Humidity:     finiteOr0(t.Humidity),
		DewPoint:     finiteOr0(t.DewPoint),
		Dew1Power:    t.Power[thermal.Heater1],
		Dew1MaxPower: t.MaxPower[thermal.Heater1],
		Dew2Power:    t.Power[thermal.Heater2],
		Dew2MaxPower: t.MaxPower[thermal.Heater2],
		Active:       t.Active,
	}
}

func buildCover(snap Snapshot) CoverJSON {
	l := snap.Link
	c := CoverJSON{
		ConnectionStatus: l.Connected(),
		State:            l.State.String(),
		PotiBrightness:   int(snap.Input.Brightness),
		Messages:         l.Stats.Messages,
		Rejected:         l.Stats.Rejected,
		Reconnects:       l.Stats.Reconnects,
	}
	if !l.HasRecord {
		return c
	}
	r := l.Record
	heater := int(r.Heater)
	c.Firmware = r.Firmware
	c.ClosePosition = &r.CloseAngle
	c.OpenPosition = &r.OpenAngle
	c.CurrentPosition = &r.CurrentAngle
	c.InputVoltage = &r.InputVoltage
	c.Brightness = &r.Brightness
	c.DewHeater = &heater
	c.ASIAirEnabled = &r.ExternalControl
	return c
}

func buildInputs(in input.Snapshot) InputsJSON {
	buttons := make(map[string]bool, len(in.Buttons))
	for _, b := range in.Buttons {
		buttons[b.ID.String()] = b.Down()
	}
	return InputsJSON{Buttons: buttons, PotRaw: in.Pot.Raw}
}

func buildLEDs(chs [led.Count]led.Channel) []LEDJSON {
	out := make([]LEDJSON, 0, len(chs))
	for _, ch := range chs {
		out = append(out, LEDJSON{Name: ch.ID.String(), Mode: ch.Mode.String(), On: ch.Level > 0})
	}
	return out
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
