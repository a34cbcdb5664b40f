// Package controller runs the cooperative control loop. One Tick calls
// every component in a fixed order on the caller's goroutine; other
// goroutines reach the loop only through Submit and the status tracker.
package controller

import (
	"errors"
	"log"
	"time"

	"github.com/sweeney/cover-controller/internal/clock"
	"github.com/sweeney/cover-controller/internal/gpio"
	"github.com/sweeney/cover-controller/internal/input"
	"github.com/sweeney/cover-controller/internal/led"
	"github.com/sweeney/cover-controller/internal/link"
	"github.com/sweeney/cover-controller/internal/schedule"
	"github.com/sweeney/cover-controller/internal/sensor"
	"github.com/sweeney/cover-controller/internal/status"
	"github.com/sweeney/cover-controller/internal/thermal"
)

// ErrQueueFull is returned by Submit when the command queue is full.
var ErrQueueFull = errors.New("controller: command queue full")

// DefaultQueueSize is the remote command queue capacity.
const DefaultQueueSize = 8

// SupplyInterval is how often the supply voltage is sampled.
const SupplyInterval clock.Millis = 1000

// CommandKind selects a remote command.
type CommandKind int

const (
	CommandOpen CommandKind = iota
	CommandClose
	CommandLightOff
	CommandBrightness
)

// UsePot as a brightness level means "use the potentiometer setting".
const UsePot = -1

// Command is a remote request queued for the control loop.
type Command struct {
	Kind  CommandKind
	Level int // CommandBrightness only; UsePot for the potentiometer
}

// ConnectionStatus reports whether the telemetry connection is up.
type ConnectionStatus interface {
	IsConnected() bool
}

// Link is the accessory session as seen by the controller.
type Link interface {
	Update()
	State() link.State
	Snapshot() link.Snapshot
	Send(cmd link.Command) error
}

// Deps are the components the controller drives. Clock, Input, LEDs,
// Sensor, Thermal and Link are required.
type Deps struct {
	Clock     clock.Clock
	Wall      func() time.Time
	Input     *input.Debouncer
	LEDs      *led.Animator
	Sensor    *sensor.Manager
	Thermal   *thermal.Controller
	Link      Link
	AutoClose *schedule.Daily
	Supply    gpio.AnalogReader
	MQTT      ConnectionStatus
	Tracker   *status.Tracker
	QueueSize int
}

// Controller owns the components and the tick order.
type Controller struct {
	Deps

	queue      chan Command
	linkState  link.State
	supplyRaw  int
	supplyAt   clock.Millis
	supplyRead bool
	ticks      uint64
}

// New creates a controller. Indicator LEDs start in their disconnected
// modes.
func New(d Deps) *Controller {
	if d.Wall == nil {
		d.Wall = time.Now
	}
	if d.QueueSize <= 0 {
		d.QueueSize = DefaultQueueSize
	}
	c := &Controller{
		Deps:      d,
		queue:     make(chan Command, d.QueueSize),
		linkState: d.Link.State(),
	}
	c.updateIndicators()
	return c
}

// Submit queues a remote command without blocking. Safe for concurrent
// use.
func (c *Controller) Submit(cmd Command) error {
	select {
	case c.queue <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// Tick runs one pass of the control loop and returns the events it
// produced.
func (c *Controller) Tick() []Event {
	var events []Event
	now := c.Clock.Now()
	wall := c.Wall()
	c.ticks++

	c.LEDs.Update()

	if c.AutoClose != nil && c.AutoClose.Check() {
		log.Printf("controller: scheduled auto-close at %s", c.AutoClose.At)
		events = append(events, c.send(wall, SourceSchedule, link.CmdClose))
	}

	c.Input.Poll()
	c.Input.UpdateAnalog()
	c.Sensor.Update()
	c.Thermal.Update()

	c.Link.Update()
	if st := c.Link.State(); st != c.linkState {
		events = append(events, Event{
			Timestamp: wall,
			Type:      EventLinkState,
			State:     st.String(),
			From:      c.linkState.String(),
		})
		c.linkState = st
	}

	events = c.buttonActions(wall, events)
	events = c.remoteCommands(wall, events)

	c.updateIndicators()
	c.sampleSupply(now)
	c.publish()
	return events
}

func (c *Controller) buttonActions(wall time.Time, events []Event) []Event {
	for id := input.ButtonID(0); id < input.ButtonCount; id++ {
		if !c.Input.Clicked(id) {
			continue
		}
		events = append(events, Event{Timestamp: wall, Type: EventButton, Button: id.String()})

		var cmd link.Command
		switch id {
		case input.ButtonOpen:
			cmd = link.CmdOpen
		case input.ButtonClose:
			cmd = link.CmdClose
		case input.ButtonLightOn:
			cmd = link.Brightness(int(c.Input.Brightness()))
		case input.ButtonLightOff:
			cmd = link.CmdLightOff
		}
		events = append(events, c.send(wall, SourceButton, cmd))
	}
	return events
}

// remoteCommands drains at most one queue's worth of commands.
func (c *Controller) remoteCommands(wall time.Time, events []Event) []Event {
	for i := 0; i < cap(c.queue); i++ {
		var cmd Command
		select {
		case cmd = <-c.queue:
		default:
			return events
		}

		var lc link.Command
		switch cmd.Kind {
		case CommandOpen:
			lc = link.CmdOpen
		case CommandClose:
			lc = link.CmdClose
		case CommandLightOff:
			lc = link.CmdLightOff
		case CommandBrightness:
			level := cmd.Level
			if level == UsePot {
				level = int(c.Input.Brightness())
			}
			lc = link.Brightness(level)
		default:
			log.Printf("controller: unknown remote command %d", cmd.Kind)
			continue
		}
		events = append(events, c.send(wall, SourceRemote, lc))
	}
	return events
}

func (c *Controller) send(wall time.Time, source string, cmd link.Command) Event {
	ev := Event{Timestamp: wall, Type: EventCommand, Source: source, Command: cmd.String()}
	if err := c.Link.Send(cmd); err != nil {
		log.Printf("controller: %s command %s: %v", source, cmd, err)
		ev.Err = err.Error()
	}
	return ev
}

func (c *Controller) updateIndicators() {
	if c.Link.State() == link.Connected {
		c.LEDs.SetMode(led.Status, led.ModeOn)
	} else {
		c.LEDs.SetMode(led.Status, led.ModeBlinkFast)
	}

	if c.MQTT != nil && c.MQTT.IsConnected() {
		c.LEDs.SetMode(led.Network, led.ModeOn)
	} else {
		c.LEDs.SetMode(led.Network, led.ModeBlinkSlow)
	}

	snap := c.Link.Snapshot()
	if snap.HasRecord && snap.Record.Brightness > 0 {
		c.LEDs.SetMode(led.Light, led.ModeOn)
	} else {
		c.LEDs.SetMode(led.Light, led.ModeOff)
	}
}

func (c *Controller) sampleSupply(now clock.Millis) {
	if c.Supply == nil {
		return
	}
	if c.supplyRead && !clock.Elapsed(now, c.supplyAt, SupplyInterval) {
		return
	}
	c.supplyRead = true
	c.supplyAt = now
	raw, err := c.Supply.ReadRaw()
	if err != nil {
		log.Printf("controller: supply voltage: %v", err)
		return
	}
	c.supplyRaw = raw
}

// SupplyVolts returns the last sampled supply voltage.
func (c *Controller) SupplyVolts() float64 {
	return gpio.SupplyVolts(c.supplyRaw)
}

// Control returns the current control loop state.
func (c *Controller) Control() status.Control {
	ctl := status.Control{
		Input:       c.Input.Snapshot(),
		LEDs:        c.LEDs.Snapshot(),
		Sensor:      c.Sensor.Status(),
		Thermal:     c.Thermal.Status(),
		Link:        c.Link.Snapshot(),
		SupplyVolts: c.SupplyVolts(),
		Ticks:       c.ticks,
	}
	if c.AutoClose != nil {
		ctl.AutoCloseFired = c.AutoClose.FiredToday()
	}
	return ctl
}

func (c *Controller) publish() {
	if c.Tracker == nil {
		return
	}
	c.Tracker.Update(c.Control())
	if c.MQTT != nil {
		c.Tracker.SetMQTTConnected(c.MQTT.IsConnected())
	}
}

// Settings are the runtime-adjustable parameters.
type Settings struct {
	Dew1Max       int
	Dew2Max       int
	LEDBrightness uint8
	AutoClose     bool
	AutoCloseAt   schedule.TimeOfDay
}

// Apply updates runtime parameters. Must be called from the goroutine
// that calls Tick.
func (c *Controller) Apply(s Settings) {
	c.Thermal.SetMaxPower(s.Dew1Max, s.Dew2Max)
	c.LEDs.SetBrightness(s.LEDBrightness)
	if c.AutoClose != nil {
		c.AutoClose.Enabled = s.AutoClose
		c.AutoClose.At = s.AutoCloseAt
	}
}
