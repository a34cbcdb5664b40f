package link

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// DefaultBaud is the accessory's fixed line rate (8N1).
const DefaultBaud = 19200

// SerialOpener opens a serial port with a zero read timeout so reads
// return immediately.
type SerialOpener struct {
	Port string
	Baud int
}

// Open opens the port and discards anything already buffered.
func (o SerialOpener) Open() (io.ReadWriteCloser, error) {
	baud := o.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	p, err := serial.Open(o.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", o.Port, err)
	}
	if err := p.SetReadTimeout(0); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", o.Port, err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		p.Close()
		return nil, fmt.Errorf("reset input on %s: %w", o.Port, err)
	}
	return p, nil
}
