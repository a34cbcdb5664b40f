// Package link owns the serial session with the cover/flat-panel
// accessory: framing of the line-oriented status protocol, parsing into a
// Record, liveness detection and outbound command encoding.
package link

import "fmt"

// State is the connection state of the session.
type State int

const (
	// Disconnected: no transport, or the last attempt failed.
	Disconnected State = iota
	// Connected: transport open and data arriving.
	Connected
	// Stale: transport open but silent past the liveness timeout.
	Stale
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connected:
		return "CONNECTED"
	case Stale:
		return "STALE"
	}
	return "UNKNOWN"
}

// HeaterLevel is the accessory's own dew heater setting.
type HeaterLevel int

const (
	HeaterOff  HeaterLevel = 0
	HeaterLow  HeaterLevel = 50
	HeaterMid  HeaterLevel = 100
	HeaterHigh HeaterLevel = 150
)

// ParseHeaterLevel maps a wire value onto a HeaterLevel.
func ParseHeaterLevel(v int) (HeaterLevel, error) {
	switch HeaterLevel(v) {
	case HeaterOff, HeaterLow, HeaterMid, HeaterHigh:
		return HeaterLevel(v), nil
	}
	return HeaterOff, fmt.Errorf("heater level %d not in {0,50,100,150}", v)
}

func (h HeaterLevel) String() string {
	switch h {
	case HeaterOff:
		return "OFF"
	case HeaterLow:
		return "LOW"
	case HeaterMid:
		return "MID"
	case HeaterHigh:
		return "HIGH"
	}
	return "UNKNOWN"
}

// Record is the last known accessory status. Angles are in degrees.
type Record struct {
	Firmware        string
	CloseAngle      float64
	OpenAngle       float64
	CurrentAngle    float64
	InputVoltage    float64
	Brightness      int
	Heater          HeaterLevel
	ExternalControl bool
}
