package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/cover-controller/internal/config"
	"github.com/sweeney/cover-controller/internal/controller"
	"github.com/sweeney/cover-controller/internal/gpio"
	"github.com/sweeney/cover-controller/internal/mqtt"
	"github.com/sweeney/cover-controller/internal/schedule"
	"github.com/sweeney/cover-controller/internal/sensor"
	"github.com/sweeney/cover-controller/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		assert.Equal(t, canonical, got)
	}
}

func TestReadNetworkInfo(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	assert.Nil(t, readNetworkInfo(), "no status means no info")

	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "Observatory")

	assert.Equal(t, &status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "Observatory",
	}, readNetworkInfo())
}

func TestResolveWSBroker(t *testing.T) {
	assert.Equal(t, "ws://192.168.1.200:9001", resolveWSBroker("=broker", "tcp://192.168.1.200:1883"))
	assert.Equal(t, "", resolveWSBroker("off", "tcp://192.168.1.200:1883"))
	assert.Equal(t, "ws://other:8080", resolveWSBroker("ws://other:8080", "tcp://x:1883"))
	assert.Equal(t, "", resolveWSBroker("=broker", "://bad"))
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(options{
		configPath: filepath.Join(t.TempDir(), "missing.yaml"),
		httpAddr:   ":8080",
		serialPort: "/dev/ttyUSB0",
		wsBroker:   "=broker",
		dark:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, config.DefaultBroker, cfg.MQTT.Broker)
	assert.Equal(t, "ws://localhost:9001", cfg.MQTT.WSBroker)
	assert.Equal(t, uint8(config.DefaultLEDBrightnessDark), cfg.LEDBrightness())
}

func TestLoadConfigFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mqtt:\n  broker: tcp://file:1883\ndew:\n  dew1_level: 40\n"), 0o644))

	cfg, err := loadConfig(options{configPath: path, broker: "tcp://flag:1883", wsBroker: "off"})
	require.NoError(t, err)
	assert.Equal(t, "tcp://flag:1883", cfg.MQTT.Broker)
	assert.Empty(t, cfg.MQTT.WSBroker)

	s := settingsFrom(cfg)
	assert.Equal(t, 40, s.Dew1Max)
	assert.Equal(t, config.DefaultDewLevel, s.Dew2Max)
	assert.Equal(t, schedule.TimeOfDay{Hour: 5}, s.AutoCloseAt)
}

func TestLoadConfigInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dew:\n  dew1_level: 500\n"), 0o644))
	_, err := loadConfig(options{configPath: path})
	assert.Error(t, err)
}

func TestStatusConfigHTTPOff(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Addr = "off"
	assert.Empty(t, statusConfig(cfg).HTTPAddr)
	assert.Equal(t, config.DefaultPollInterval.Milliseconds(), statusConfig(cfg).PollMs)
}

func TestPrintState(t *testing.T) {
	hw := &hardware{
		buttons: gpio.NewFakeReader([]bool{true, false, true, true}),
		pot:     &gpio.FakeAnalog{Raw: 1234},
		sensor:  &sensor.Fake{Reading: sensor.Reading{Temperature: 4.5, Humidity: 88, Pressure: 1002.3}},
	}
	var buf bytes.Buffer
	require.NoError(t, printState(&buf, hw))

	out := buf.String()
	assert.Contains(t, out, "OPEN: released\n")
	assert.Contains(t, out, "CLOSE: pressed\n")
	assert.Contains(t, out, "POT: 1234\n")
	assert.Contains(t, out, "SENSOR: T=4.5C RH=88.0% P=1002.3hPa\n")
	assert.NotContains(t, out, "SUPPLY")
}

func TestPrintStateSensorAbsent(t *testing.T) {
	hw := &hardware{buttons: gpio.NewFakeReader([]bool{true, true, true, true})}
	var buf bytes.Buffer
	require.NoError(t, printState(&buf, hw))
	assert.Contains(t, buf.String(), "SENSOR: absent")
}

func TestPrintStateReadError(t *testing.T) {
	r := gpio.NewFakeReader([]bool{true})
	r.ReadError = errors.New("gpio fault")
	assert.Error(t, printState(&bytes.Buffer{}, &hardware{buttons: r}))
}

func TestHardwareClose(t *testing.T) {
	r := gpio.NewFakeReader([]bool{true})
	sw := &gpio.FakeSwitch{On: true}
	hw := &hardware{buttons: r, panel: sw}
	hw.heaters[0] = &gpio.FakePWM{}
	require.NoError(t, hw.Close())
	assert.True(t, r.Closed)
	assert.True(t, sw.Closed)
	assert.False(t, sw.On)
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Only called from runLoop's goroutine.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// scriptedController returns one scripted batch of events per tick.
type scriptedController struct {
	batches [][]controller.Event
	ticks   int
	applied []controller.Settings
}

func (s *scriptedController) Tick() []controller.Event {
	i := s.ticks
	s.ticks++
	if i < len(s.batches) {
		return s.batches[i]
	}
	return nil
}

func (s *scriptedController) Apply(settings controller.Settings) {
	s.applied = append(s.applied, settings)
}

type loopResult struct {
	reason string
	out    []outbound
}

// runRunLoop drives runLoop for nTicks, then sends each signal in order.
func runRunLoop(t *testing.T, ctl tickable, conn mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, clock func() time.Time, nTicks int, reload func() (controller.Settings, error), signals ...os.Signal) loopResult {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal)
	out := make(chan outbound, outboundQueue)

	done := make(chan string, 1)
	go func() {
		done <- runLoop(ctl, out, conn, tracker, heartbeat, clock, tick, sig, nil, nil, reload)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	for _, s := range signals {
		sig <- s
	}

	var res loopResult
	select {
	case res.reason = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return")
	}
	close(out)
	for msg := range out {
		res.out = append(res.out, msg)
	}
	return res
}

func TestRunLoopForwardsEvents(t *testing.T) {
	ctl := &scriptedController{batches: [][]controller.Event{
		nil,
		{{Type: controller.EventButton, Button: "OPEN"}, {Type: controller.EventCommand, Command: "OPEN", Source: controller.SourceButton}},
		{{Type: controller.EventLinkState, State: "STALE", From: "CONNECTED"}},
	}}
	res := runRunLoop(t, ctl, nil, nil, 0, fakeClock(time.Now(), time.Second), 3, nil, syscall.SIGTERM)

	assert.Equal(t, "SIGTERM", res.reason)
	assert.Equal(t, 3, ctl.ticks)
	require.Len(t, res.out, 3)
	assert.Equal(t, "OPEN", res.out[0].event.Button)
	assert.Equal(t, "OPEN", res.out[1].event.Command)
	assert.Equal(t, "STALE", res.out[2].event.State)
	for _, msg := range res.out {
		assert.Nil(t, msg.system)
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	res := runRunLoop(t, &scriptedController{}, nil, nil, 0, fakeClock(time.Now(), time.Second), 0, nil, syscall.SIGINT)
	assert.Equal(t, "SIGINT", res.reason)
	assert.Empty(t, res.out)
}

func TestRunLoopHeartbeat(t *testing.T) {
	tracker := status.NewTracker(time.Now(), status.Config{})
	pub := mqtt.NewFakePublisher()
	pub.SetConnected(true)

	res := runRunLoop(t, &scriptedController{}, pub, tracker, 2*time.Minute,
		fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute), 4, nil, syscall.SIGTERM)

	require.Len(t, res.out, 2)
	for _, msg := range res.out {
		require.NotNil(t, msg.system)
		assert.Equal(t, "HEARTBEAT", msg.system.Event)
		assert.Contains(t, string(msg.system.RawPayload), `"event":"HEARTBEAT"`)
	}
	assert.Equal(t, time.Date(2026, 1, 1, 0, 2, 0, 0, time.UTC), res.out[0].system.Timestamp)
	assert.True(t, tracker.Snapshot().MQTTConnected)
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	tracker := status.NewTracker(time.Now(), status.Config{})
	res := runRunLoop(t, &scriptedController{}, nil, tracker, 0, fakeClock(time.Now(), time.Hour), 5, nil, syscall.SIGTERM)
	assert.Empty(t, res.out)
}

func TestRunLoopReloadOnSIGHUP(t *testing.T) {
	ctl := &scriptedController{}
	want := controller.Settings{Dew1Max: 10, Dew2Max: 20, LEDBrightness: 5}
	calls := 0
	reload := func() (controller.Settings, error) {
		calls++
		if calls == 2 {
			return controller.Settings{}, errors.New("bad yaml")
		}
		return want, nil
	}

	res := runRunLoop(t, ctl, nil, nil, 0, fakeClock(time.Now(), time.Second), 1, reload,
		syscall.SIGHUP, syscall.SIGHUP, syscall.SIGTERM)

	assert.Equal(t, "SIGTERM", res.reason)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []controller.Settings{want}, ctl.applied, "failed reload is not applied")
}

func TestRunLoopReloadOnRequest(t *testing.T) {
	ctl := &scriptedController{}
	want := controller.Settings{Dew1Max: 30, Dew2Max: 40, LEDBrightness: 60}
	reloaded := make(chan struct{}, 1)
	reload := func() (controller.Settings, error) {
		reloaded <- struct{}{}
		return want, nil
	}

	sig := make(chan os.Signal)
	reqs := make(chan struct{}, 1)
	done := make(chan string, 1)
	go func() {
		done <- runLoop(ctl, make(chan outbound, 1), nil, nil, 0, time.Now, nil, sig, reqs, nil, reload)
	}()

	reqs <- struct{}{}
	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("reload not requested")
	}
	sig <- syscall.SIGTERM
	assert.Equal(t, "SIGTERM", <-done)
	assert.Equal(t, []controller.Settings{want}, ctl.applied)
}

func TestConfigAdmin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.yaml")
	cfg := config.Default()
	a := newConfigAdmin(path, cfg)

	data, err := a.ConfigYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "dew1_level: 70")

	require.NoError(t, a.SaveConfig([]byte("dew:\n  dew1_level: 45\n")))
	saved, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45, *saved.Dew.Dew1Level)
	require.Len(t, a.reloads, 1, "save queues a reload")

	// Pending requests coalesce.
	a.RequestReload()
	assert.Len(t, a.reloads, 1)

	assert.ErrorIs(t, a.SaveConfig([]byte("dew:\n  dew1_level: 500\n")), config.ErrInvalid)

	a.setCurrent(saved)
	data, err = a.ConfigYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "dew1_level: 45")
}

func TestRunLoopStopsOnDone(t *testing.T) {
	done := make(chan struct{})
	close(done)
	reason := runLoop(&scriptedController{}, make(chan outbound, 1), nil, nil, 0, time.Now, nil, nil, nil, done, nil)
	assert.Equal(t, "ERROR", reason)
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	out := make(chan outbound, 1)
	enqueue(out, outbound{event: &controller.Event{Button: "A"}})
	enqueue(out, outbound{event: &controller.Event{Button: "B"}})
	require.Len(t, out, 1)
	assert.Equal(t, "A", (<-out).event.Button)
}

func TestPublishOutbound(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	out := make(chan outbound, 3)
	out <- outbound{event: &controller.Event{Type: controller.EventButton, Button: "CLOSE"}}
	out <- outbound{system: &mqtt.SystemEvent{Event: "HEARTBEAT"}}
	out <- outbound{}
	close(out)

	publishOutbound(pub, out)

	require.Len(t, pub.Events(), 1)
	assert.Equal(t, "CLOSE", pub.Events()[0].Button)
	require.Len(t, pub.SystemEvents(), 1)
	assert.Equal(t, "HEARTBEAT", pub.SystemEvents()[0].Event)
}
