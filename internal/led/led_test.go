package led

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/cover-controller/internal/clock"
	"github.com/sweeney/cover-controller/internal/gpio"
)

type recordingDriver struct {
	levels [Count]uint8
	writes int
	err    error
}

func (r *recordingDriver) SetLevel(id ID, level uint8) error {
	r.writes++
	r.levels[id] = level
	return r.err
}

func setup() (*Animator, *recordingDriver, *clock.Fake) {
	clk := clock.NewFake(0)
	drv := &recordingDriver{}
	return NewAnimator(clk, drv), drv, clk
}

func TestOffAndOn(t *testing.T) {
	a, drv, _ := setup()
	a.SetBrightness(80)

	a.SetMode(Status, ModeOn)
	a.Update()
	assert.Equal(t, uint8(80), drv.levels[Status])
	assert.Equal(t, uint8(0), drv.levels[Network])

	a.SetMode(Status, ModeOff)
	a.Update()
	assert.Equal(t, uint8(0), drv.levels[Status])
}

func TestBlinkFastTiming(t *testing.T) {
	a, drv, clk := setup()
	a.SetMode(Status, ModeBlinkFast)

	a.Update()
	assert.Equal(t, uint8(0), drv.levels[Status], "phase starts off")

	clk.Advance(FastPeriod - 1)
	a.Update()
	assert.Equal(t, uint8(0), drv.levels[Status])

	clk.Advance(1)
	a.Update()
	assert.Equal(t, uint8(255), drv.levels[Status])

	clk.Advance(FastPeriod)
	a.Update()
	assert.Equal(t, uint8(0), drv.levels[Status])
}

func TestBlinkSlowTiming(t *testing.T) {
	a, drv, clk := setup()
	a.SetMode(Network, ModeBlinkSlow)

	var lit []bool
	for i := 0; i < 20; i++ {
		clk.Advance(100)
		a.Update()
		lit = append(lit, drv.levels[Network] > 0)
	}
	// Toggles at 500, 1000, 1500, 2000
	want := []bool{
		false, false, false, false, true,
		true, true, true, true, false,
		false, false, false, false, true,
		true, true, true, true, false,
	}
	assert.Equal(t, want, lit)
}

func TestSetModeSameModeKeepsPhase(t *testing.T) {
	a, _, clk := setup()
	a.SetMode(Status, ModeBlinkSlow)
	clk.Advance(SlowPeriod)
	a.Update()
	before := a.Snapshot()[Status]
	require.True(t, before.Phase)

	clk.Advance(100)
	a.SetMode(Status, ModeBlinkSlow)
	a.SetMode(Status, ModeBlinkSlow)

	after := a.Snapshot()[Status]
	assert.Equal(t, before.Phase, after.Phase)
	assert.Equal(t, before.LastToggle, after.LastToggle)
}

func TestSetModeChangeResetsPhase(t *testing.T) {
	a, _, clk := setup()
	a.SetMode(Light, ModeBlinkSlow)
	clk.Advance(SlowPeriod)
	a.Update()
	require.True(t, a.Snapshot()[Light].Phase)

	clk.Advance(30)
	a.SetMode(Light, ModeBlinkFast)
	ch := a.Snapshot()[Light]
	assert.False(t, ch.Phase)
	assert.Equal(t, clk.Now(), ch.LastToggle)
	assert.Equal(t, ModeBlinkFast, a.Mode(Light))
}

func TestBrightnessAppliesToAllLitChannels(t *testing.T) {
	a, drv, _ := setup()
	a.SetMode(Network, ModeOn)
	a.SetMode(Light, ModeOn)
	a.SetBrightness(20)
	a.Update()
	assert.Equal(t, uint8(20), drv.levels[Network])
	assert.Equal(t, uint8(20), drv.levels[Light])
	assert.Equal(t, uint8(0), drv.levels[Status])
	assert.Equal(t, uint8(20), a.Brightness())
}

func TestOutOfRangeID(t *testing.T) {
	a, _, _ := setup()
	a.SetMode(Count, ModeOn)
	a.SetMode(-1, ModeOn)
	assert.Equal(t, ModeOff, a.Mode(Count))
	assert.Equal(t, "UNKNOWN", ID(7).String())
}

func TestDriverErrorDoesNotStopUpdate(t *testing.T) {
	a, drv, _ := setup()
	drv.err = errors.New("pwm busy")
	a.SetMode(Light, ModeOn)
	a.Update()
	assert.Equal(t, int(Count), drv.writes)
	assert.Equal(t, uint8(255), a.Snapshot()[Light].Level)
}

func TestPWMDriverSkipsUnchanged(t *testing.T) {
	status := &gpio.FakePWM{}
	d := NewPWMDriver([Count]gpio.PWM{Status: status})

	require.NoError(t, d.SetLevel(Status, 255))
	require.NoError(t, d.SetLevel(Status, 255))
	require.NoError(t, d.SetLevel(Status, 0))
	require.NoError(t, d.SetLevel(Network, 255)) // no output wired

	assert.Equal(t, []float64{1, 0}, status.History)
}

func TestModeStrings(t *testing.T) {
	assert.Equal(t, "BLINK_FAST", ModeBlinkFast.String())
	assert.Equal(t, "STATUS", Status.String())
}
