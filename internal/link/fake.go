package link

import (
	"bytes"
	"errors"
	"io"
)

// FakePort is an in-memory transport. Bytes queued with Feed are returned
// by Read; writes are collected in Written.
type FakePort struct {
	in       bytes.Buffer
	Written  bytes.Buffer
	ReadErr  error
	WriteErr error
	Closed   bool
}

// Feed queues s for reading.
func (p *FakePort) Feed(s string) {
	p.in.WriteString(s)
}

// Read returns queued bytes, or (0, nil) when none are queued.
func (p *FakePort) Read(b []byte) (int, error) {
	if p.ReadErr != nil {
		return 0, p.ReadErr
	}
	if p.in.Len() == 0 {
		return 0, nil
	}
	return p.in.Read(b)
}

// Write records b.
func (p *FakePort) Write(b []byte) (int, error) {
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}
	return p.Written.Write(b)
}

// Close marks the port closed.
func (p *FakePort) Close() error {
	p.Closed = true
	return nil
}

// FakeOpener hands out Port, or fails with Err.
type FakeOpener struct {
	Port  *FakePort
	Err   error
	Opens int
}

// NewFakeOpener returns an opener that succeeds with a fresh FakePort.
func NewFakeOpener() *FakeOpener {
	return &FakeOpener{Port: &FakePort{}}
}

// Open returns Port (reopened) or Err.
func (o *FakeOpener) Open() (io.ReadWriteCloser, error) {
	o.Opens++
	if o.Err != nil {
		return nil, o.Err
	}
	if o.Port == nil {
		return nil, errors.New("no port")
	}
	o.Port.Closed = false
	return o.Port, nil
}
