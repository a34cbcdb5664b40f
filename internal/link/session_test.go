package link

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/cover-controller/internal/clock"
)

const goodLine = "IDA20231001A10.0A170.0A90.0A12.1A200A50A1\n"

func newTestSession(t *testing.T) (*Session, *FakeOpener, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(10000)
	op := NewFakeOpener()
	s := NewSession(clk, op, NewParser("ID"))
	return s, op, clk
}

func connect(t *testing.T, s *Session) {
	t.Helper()
	s.Update()
	require.Equal(t, Connected, s.State())
}

func TestSessionStartsDisconnected(t *testing.T) {
	s, op, _ := newTestSession(t)
	snap := s.Snapshot()
	assert.Equal(t, Disconnected, snap.State)
	assert.False(t, snap.HasRecord)
	assert.Equal(t, 0, op.Opens)
}

func TestSessionOpenFailureRetriesEveryTick(t *testing.T) {
	s, op, clk := newTestSession(t)
	op.Err = errors.New("no such device")

	for i := 0; i < 3; i++ {
		s.Update()
		clk.Advance(10)
		assert.Equal(t, Disconnected, s.State())
	}
	assert.Equal(t, 3, op.Opens)

	op.Err = nil
	s.Update()
	assert.Equal(t, Connected, s.State())
	assert.Equal(t, 1, s.Snapshot().Stats.Reconnects)
}

func TestSessionParsesCompleteLine(t *testing.T) {
	s, op, clk := newTestSession(t)
	connect(t, s)

	op.Port.Feed(goodLine)
	clk.Advance(10)
	s.Update()

	snap := s.Snapshot()
	require.True(t, snap.HasRecord)
	assert.Equal(t, goodRecord(), snap.Record)
	assert.Equal(t, strings.TrimSuffix(goodLine, "\n"), snap.LastLine)
	assert.Equal(t, 1, snap.Stats.Messages)
	assert.True(t, snap.Connected())
}

func TestSessionLineSplitAcrossTicks(t *testing.T) {
	s, op, clk := newTestSession(t)
	connect(t, s)

	op.Port.Feed(goodLine[:17])
	clk.Advance(10)
	s.Update()
	assert.False(t, s.Snapshot().HasRecord)

	op.Port.Feed(goodLine[17:])
	clk.Advance(10)
	s.Update()
	assert.Equal(t, goodRecord(), s.Snapshot().Record)
}

func TestSessionBadIdentifierKeepsRecord(t *testing.T) {
	s, op, clk := newTestSession(t)
	connect(t, s)
	op.Port.Feed(goodLine)
	s.Update()
	before := s.Snapshot().Record

	op.Port.Feed("XXA1A2A3A4A5A6A0A0\n")
	op.Port.Feed("IDA1A2A3\n")
	clk.Advance(10)
	s.Update()

	snap := s.Snapshot()
	assert.Equal(t, before, snap.Record)
	assert.Equal(t, 2, snap.Stats.Rejected)
	assert.Equal(t, "IDA1A2A3", snap.LastLine)
	assert.Equal(t, Connected, snap.State)
}

func TestSessionLivenessTimeout(t *testing.T) {
	s, op, clk := newTestSession(t)
	connect(t, s)
	op.Port.Feed(goodLine)
	s.Update()

	clk.Advance(LivenessTimeout)
	s.Update()
	assert.Equal(t, Connected, s.State(), "exactly the timeout is still alive")

	clk.Advance(1)
	s.Update()
	assert.Equal(t, Stale, s.State())
	assert.False(t, s.Snapshot().Connected())
	assert.Equal(t, 1, s.Snapshot().Stats.Timeouts)
	assert.Equal(t, 1, op.Opens)

	// Next tick re-attempts initialization.
	clk.Advance(10)
	s.Update()
	assert.Equal(t, 2, op.Opens)
	assert.Equal(t, Connected, s.State())
	assert.True(t, s.Snapshot().HasRecord, "record survives reinitialization")
}

func TestSessionTrafficKeepsAlive(t *testing.T) {
	s, op, clk := newTestSession(t)
	connect(t, s)
	for i := 0; i < 10; i++ {
		clk.Advance(1000)
		op.Port.Feed(goodLine)
		s.Update()
		require.Equal(t, Connected, s.State())
	}
}

func TestSessionReinitResetsTimer(t *testing.T) {
	s, _, clk := newTestSession(t)
	clk.Advance(60000)
	connect(t, s)

	clk.Advance(100)
	s.Update()
	assert.Equal(t, Connected, s.State(), "stale timestamp from before the open must not time out")
}

func TestSessionLengthGuard(t *testing.T) {
	s, op, clk := newTestSession(t)
	connect(t, s)

	// A complete line first, then a well-formed message that never
	// terminates and runs past the guard.
	op.Port.Feed(goodLine)
	op.Port.Feed(strings.TrimSuffix(goodLine, "\n"))
	op.Port.Feed(strings.Repeat("9", LengthGuard))
	clk.Advance(10)
	s.Update()

	snap := s.Snapshot()
	assert.Equal(t, Disconnected, snap.State)
	assert.Equal(t, 1, snap.Stats.Overflows)
	assert.Equal(t, 1, snap.Stats.Messages)

	clk.Advance(10)
	s.Update()
	assert.Equal(t, Connected, s.State())
	assert.Equal(t, 2, op.Opens)
}

func TestSessionGuardBoundary(t *testing.T) {
	s, op, _ := newTestSession(t)
	connect(t, s)

	op.Port.Feed(strings.Repeat("x", LengthGuard) + "\n")
	s.Update()
	assert.Equal(t, Connected, s.State(), "a line of exactly the guard length is accepted")
	assert.Equal(t, 1, s.Snapshot().Stats.Rejected)
}

func TestSessionReadErrorDisconnects(t *testing.T) {
	s, op, _ := newTestSession(t)
	connect(t, s)

	op.Port.ReadErr = errors.New("device unplugged")
	s.Update()
	assert.Equal(t, Disconnected, s.State())

	op.Port.ReadErr = nil
	s.Update()
	assert.Equal(t, Connected, s.State())
	assert.False(t, op.Port.Closed)
}

func TestSessionSendCommands(t *testing.T) {
	s, op, _ := newTestSession(t)
	connect(t, s)

	require.NoError(t, s.SendOpen())
	require.NoError(t, s.SendClose())
	require.NoError(t, s.SendLightOff())
	require.NoError(t, s.SetBrightness(300))
	require.NoError(t, s.SetBrightness(0))

	assert.Equal(t, "1001"+"1000"+"9999"+"255"+"1", op.Port.Written.String())
}

func TestSessionSendWhileDisconnected(t *testing.T) {
	s, op, _ := newTestSession(t)
	assert.ErrorIs(t, s.SendOpen(), ErrNotConnected)

	op.Err = errors.New("missing")
	s.Update()
	assert.ErrorIs(t, s.SetBrightness(10), ErrNotConnected)
}

func TestSessionSendWriteError(t *testing.T) {
	s, op, _ := newTestSession(t)
	connect(t, s)
	op.Port.WriteErr = errors.New("write failed")
	err := s.SendClose()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConnected)
}

func TestSessionClose(t *testing.T) {
	s, op, _ := newTestSession(t)
	connect(t, s)
	require.NoError(t, s.Close())
	assert.True(t, op.Port.Closed)
	assert.Equal(t, Disconnected, s.State())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "STALE", Stale.String())
	assert.Equal(t, "CONNECTED", Connected.String())
}
