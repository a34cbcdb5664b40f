package link

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/sweeney/cover-controller/internal/clock"
)

// Session timing and buffer limits.
//
// The receive buffer has more capacity than the length guard; the guard is
// the contract and a line longer than it is treated as a stuck or noisy
// transport.
const (
	LivenessTimeout clock.Millis = 5000
	LengthGuard                  = 200
	BufferCapacity               = 512

	readChunk = 64
)

// ErrNotConnected is returned when a command is sent without an open
// transport.
var ErrNotConnected = errors.New("link: not connected")

// Opener opens the transport to the accessory. Reads on the returned
// stream must not block; (0, nil) means no data is available.
type Opener interface {
	Open() (io.ReadWriteCloser, error)
}

// Stats counts session activity since startup.
type Stats struct {
	Messages   int // lines received
	Rejected   int // lines discarded as malformed
	Overflows  int // length guard resets
	Timeouts   int // liveness timeouts
	Reconnects int // successful opens
}

// Snapshot is a value copy of the session for status consumers.
type Snapshot struct {
	State     State
	Record    Record
	HasRecord bool
	LastLine  string
	LastRx    clock.Millis
	Stats     Stats
}

// Connected reports whether the session is connected.
func (s Snapshot) Connected() bool {
	return s.State == Connected
}

// Session is the serial protocol session. It is driven by Update once
// per control tick and never blocks.
type Session struct {
	clock  clock.Clock
	opener Opener
	parser Parser

	port      io.ReadWriteCloser
	state     State
	buf       []byte
	chunk     [readChunk]byte
	lastRx    clock.Millis
	record    Record
	hasRecord bool
	lastLine  string
	stats     Stats
	lastErr   string
}

// NewSession creates a disconnected session. The first Update attempts
// to open the transport.
func NewSession(c clock.Clock, opener Opener, parser Parser) *Session {
	return &Session{
		clock:  c,
		opener: opener,
		parser: parser,
		buf:    make([]byte, 0, BufferCapacity),
		lastRx: c.Now(),
	}
}

// Init closes any open transport, resets the receive buffer and liveness
// timer, and tries to open the transport again.
func (s *Session) Init() {
	now := s.clock.Now()
	s.closePort()
	s.buf = s.buf[:0]
	s.lastRx = now
	s.state = Disconnected

	port, err := s.opener.Open()
	if err != nil {
		// Retried every tick; only log when the failure changes.
		if msg := err.Error(); msg != s.lastErr {
			log.Printf("link: device not connected: %v", err)
			s.lastErr = msg
		}
		return
	}
	s.lastErr = ""
	s.port = port
	s.state = Connected
	s.stats.Reconnects++
	log.Printf("link: device connected")
}

// Update runs one session step: reinitialize when not connected, check
// liveness, then drain available bytes.
func (s *Session) Update() {
	if s.state != Connected {
		s.Init()
		return
	}

	now := s.clock.Now()
	if clock.Since(now, s.lastRx) > LivenessTimeout {
		log.Printf("link: no data for %dms, marking stale", clock.Since(now, s.lastRx))
		s.state = Stale
		s.stats.Timeouts++
		return
	}

	s.drain(now)
}

// drain reads at most BufferCapacity bytes so one tick stays bounded.
func (s *Session) drain(now clock.Millis) {
	for total := 0; total < BufferCapacity; {
		n, err := s.port.Read(s.chunk[:])
		if n > 0 {
			total += n
			s.lastRx = now
			for _, c := range s.chunk[:n] {
				if !s.feed(c) {
					return
				}
			}
		}
		if err != nil {
			log.Printf("link: read error: %v", err)
			s.state = Disconnected
			return
		}
		if n == 0 {
			return
		}
	}
}

// feed appends one byte and handles framing. It returns false when the
// session had to be reset.
func (s *Session) feed(c byte) bool {
	if c == Terminator {
		line := strings.TrimRight(string(s.buf), "\r")
		s.buf = s.buf[:0]
		s.handleLine(line)
		return true
	}

	if len(s.buf) < cap(s.buf) {
		s.buf = append(s.buf, c)
	}
	if len(s.buf) > LengthGuard {
		log.Printf("link: line exceeds %d bytes without terminator, resetting", LengthGuard)
		s.buf = s.buf[:0]
		s.stats.Overflows++
		s.state = Disconnected
		return false
	}
	return true
}

func (s *Session) handleLine(line string) {
	s.lastLine = line
	s.stats.Messages++

	rec, err := s.parser.Parse(line, s.record)
	var perr *ParseError
	if errors.As(err, &perr) && perr.Discarded() {
		s.stats.Rejected++
		log.Printf("link: %v", err)
		return
	}
	if err != nil {
		log.Printf("link: %v", err)
	}
	s.record = rec
	s.hasRecord = true
}

func (s *Session) closePort() {
	if s.port == nil {
		return
	}
	if err := s.port.Close(); err != nil {
		log.Printf("link: close transport: %v", err)
	}
	s.port = nil
}

// Close releases the transport and leaves the session disconnected.
func (s *Session) Close() error {
	s.closePort()
	s.state = Disconnected
	return nil
}

// Send writes cmd to the accessory.
func (s *Session) Send(cmd Command) error {
	if s.port == nil || s.state != Connected {
		return ErrNotConnected
	}
	if _, err := s.port.Write(cmd.Encode()); err != nil {
		return fmt.Errorf("link: send %s: %w", cmd, err)
	}
	log.Printf("link: sent command %s (%s)", cmd.Encode(), cmd)
	return nil
}

// SendOpen opens the cover.
func (s *Session) SendOpen() error { return s.Send(CmdOpen) }

// SendClose closes the cover.
func (s *Session) SendClose() error { return s.Send(CmdClose) }

// SendLightOff turns the flat panel off.
func (s *Session) SendLightOff() error { return s.Send(CmdLightOff) }

// SetBrightness sets the flat panel brightness, clamped to 1..255.
func (s *Session) SetBrightness(level int) error { return s.Send(Brightness(level)) }

// State returns the current connection state.
func (s *Session) State() State { return s.state }

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		State:     s.state,
		Record:    s.record,
		HasRecord: s.hasRecord,
		LastLine:  s.lastLine,
		LastRx:    s.lastRx,
		Stats:     s.stats,
	}
}
