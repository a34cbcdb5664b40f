package link

import (
	"fmt"
	"strconv"
)

// Command is an outbound accessory command. Values 1..255 set the panel
// brightness; the rest are fixed codes.
type Command int

const (
	CmdClose    Command = 1000
	CmdOpen     Command = 1001
	CmdLightOff Command = 9999
)

// Brightness limits for the flat panel.
const (
	MinBrightness = 1
	MaxBrightness = 255
)

// Brightness returns the command that sets the panel to level, clamped to
// MinBrightness..MaxBrightness.
func Brightness(level int) Command {
	if level < MinBrightness {
		level = MinBrightness
	}
	if level > MaxBrightness {
		level = MaxBrightness
	}
	return Command(level)
}

// Encode returns the wire form: ASCII decimal, no separator or terminator.
func (c Command) Encode() []byte {
	return strconv.AppendInt(nil, int64(c), 10)
}

func (c Command) String() string {
	switch c {
	case CmdOpen:
		return "OPEN"
	case CmdClose:
		return "CLOSE"
	case CmdLightOff:
		return "LIGHT_OFF"
	}
	return fmt.Sprintf("BRIGHTNESS(%d)", int(c))
}
