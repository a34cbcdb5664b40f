// Command cover-controller drives a telescope cover/flat panel accessory
// over serial, runs the dew heaters and front panel, and reports status
// over HTTP and MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/cover-controller/internal/clock"
	"github.com/sweeney/cover-controller/internal/config"
	"github.com/sweeney/cover-controller/internal/controller"
	"github.com/sweeney/cover-controller/internal/input"
	"github.com/sweeney/cover-controller/internal/led"
	"github.com/sweeney/cover-controller/internal/link"
	"github.com/sweeney/cover-controller/internal/mqtt"
	"github.com/sweeney/cover-controller/internal/schedule"
	"github.com/sweeney/cover-controller/internal/sensor"
	"github.com/sweeney/cover-controller/internal/status"
	"github.com/sweeney/cover-controller/internal/thermal"
	"github.com/sweeney/cover-controller/internal/web"
)

const defaultConfigPath = "/etc/cover-controller/config.yaml"

type options struct {
	configPath string
	httpAddr   string
	broker     string
	serialPort string
	wsBroker   string
	dark       bool
	printState bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", defaultConfigPath, "YAML config file (missing file = defaults)")
	flag.StringVar(&o.httpAddr, "http", "", "HTTP status address, overrides config (\"off\" disables)")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address, overrides config")
	flag.StringVar(&o.serialPort, "serial", "", "Accessory serial port, overrides config")
	flag.StringVar(&o.wsBroker, "ws-broker", "=broker", `MQTT websocket URL shown on the status page ("=broker" derives from the broker, "off" disables)`)
	flag.BoolVar(&o.dark, "dark", false, "Use the dark indicator LED brightness")
	flag.BoolVar(&o.printState, "print-state", false, "Print current inputs and sensor reading and exit")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(o options) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("config %s not found, using defaults", o.configPath)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	if o.httpAddr != "" {
		cfg.HTTP.Addr = o.httpAddr
	}
	if o.broker != "" {
		cfg.MQTT.Broker = o.broker
	}
	if o.serialPort != "" {
		cfg.Serial.Port = o.serialPort
	}
	if o.dark {
		cfg.LED.Dark = true
	}
	if cfg.MQTT.WSBroker == "" {
		cfg.MQTT.WSBroker = resolveWSBroker(o.wsBroker, cfg.MQTT.Broker)
	}
	return cfg, nil
}

func settingsFrom(cfg *config.Config) controller.Settings {
	return controller.Settings{
		Dew1Max:       *cfg.Dew.Dew1Level,
		Dew2Max:       *cfg.Dew.Dew2Level,
		LEDBrightness: cfg.LEDBrightness(),
		AutoClose:     cfg.Cover.AutoClose,
		AutoCloseAt:   cfg.AutoCloseAt(),
	}
}

func statusConfig(cfg *config.Config) status.Config {
	httpAddr := cfg.HTTP.Addr
	if httpAddr == "off" {
		httpAddr = ""
	}
	return status.Config{
		PollMs:        cfg.Control.PollInterval.Milliseconds(),
		HeartbeatMs:   cfg.Control.HeartbeatInterval.Milliseconds(),
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      httpAddr,
		WSBroker:      cfg.MQTT.WSBroker,
		SerialPort:    cfg.Serial.Port,
		ProtocolID:    cfg.Serial.ProtocolID,
		AutoClose:     cfg.Cover.AutoClose,
		AutoCloseTime: cfg.Cover.AutoCloseTime,
	}
}

func run(o options) error {
	logs := web.NewLogHub()
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	hw, err := openHardware(cfg)
	if err != nil {
		return err
	}
	defer hw.Close()

	if o.printState {
		return printState(os.Stdout, hw)
	}

	publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Status tracker exists before STARTUP so the snapshot is available.
	scfg := statusConfig(cfg)
	tracker := status.NewTracker(time.Now(), scfg)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	clk := clock.NewMonotonic()
	sensors := sensor.NewManager(clk, hw.sensor)
	settings := settingsFrom(cfg)
	leds := led.NewAnimator(clk, led.NewPWMDriver(hw.leds))
	leds.SetBrightness(settings.LEDBrightness)

	session := link.NewSession(clk, link.SerialOpener{Port: cfg.Serial.Port, Baud: cfg.Serial.Baud}, link.NewParser(cfg.Serial.ProtocolID))
	defer session.Close()

	ctl := controller.New(controller.Deps{
		Clock:     clk,
		Input:     input.NewDebouncer(clk, hw.buttons, hw.pot),
		LEDs:      leds,
		Sensor:    sensors,
		Thermal:   thermal.New(clk, sensors, thermal.NewPWMHeaters(hw.heaters[0], hw.heaters[1]), settings.Dew1Max, settings.Dew2Max),
		Link:      session,
		AutoClose: schedule.NewDaily(settings.AutoCloseAt, settings.AutoClose, time.Now),
		Supply:    hw.supply,
		MQTT:      publisher,
		Tracker:   tracker,
		QueueSize: cfg.Control.QueueSize,
	})

	tracker.SetMQTTConnected(publisher.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	out := make(chan outbound, outboundQueue)
	g.Go(func() error {
		publishOutbound(publisher, out)
		return nil
	})

	admin := newConfigAdmin(o.configPath, cfg)
	if scfg.HTTPAddr != "" {
		srv := web.New(scfg.HTTPAddr, tracker, ctl, admin, logs)
		g.Go(func() error {
			log.Printf("http status server listening on %s", scfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Printf("started: poll=%v serial=%s broker=%s heartbeat=%v",
		cfg.Control.PollInterval, cfg.Serial.Port, cfg.MQTT.Broker, cfg.Control.HeartbeatInterval)

	ticker := time.NewTicker(cfg.Control.PollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	reload := func() (controller.Settings, error) {
		next, err := loadConfig(o)
		if err != nil {
			return controller.Settings{}, err
		}
		tracker.SetConfig(statusConfig(next))
		admin.setCurrent(next)
		return settingsFrom(next), nil
	}

	var reason string
	g.Go(func() error {
		defer cancel()
		defer close(out)
		reason = runLoop(ctl, out, publisher, tracker, cfg.Control.HeartbeatInterval, time.Now, ticker.C, sigCh, admin.reloads, ctx.Done(), reload)
		return nil
	})
	err = g.Wait()

	// The outbound worker has drained; publish the final state directly.
	tracker.SetMQTTConnected(publisher.IsConnected())
	shutdown := mqtt.SystemEvent{
		Timestamp:  time.Now(),
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", reason),
	}
	if perr := publisher.PublishSystem(shutdown); perr != nil {
		log.Printf("failed to publish shutdown event: %v", perr)
	} else {
		log.Printf("published shutdown event")
	}
	return err
}

// outboundQueue bounds the messages waiting for the MQTT worker.
const outboundQueue = 64

// outbound is one message for the MQTT worker: a controller event or a
// system event.
type outbound struct {
	event  *controller.Event
	system *mqtt.SystemEvent
}

// publishOutbound publishes messages until out is closed. Publishing can
// block on the broker, so it never runs on the control loop.
func publishOutbound(publisher mqtt.Publisher, out <-chan outbound) {
	for msg := range out {
		var err error
		switch {
		case msg.event != nil:
			err = publisher.Publish(*msg.event)
		case msg.system != nil:
			err = publisher.PublishSystem(*msg.system)
		}
		if err != nil {
			log.Printf("publish error: %v", err)
		}
	}
}

// enqueue hands msg to the MQTT worker without blocking the control loop.
func enqueue(out chan<- outbound, msg outbound) {
	select {
	case out <- msg:
	default:
		log.Printf("mqtt: outbound queue full, dropping message")
	}
}

// tickable is the control loop as seen by runLoop.
type tickable interface {
	Tick() []controller.Event
	Apply(s controller.Settings)
}

// runLoop drives the controller until a terminating signal arrives or
// done is closed, and returns the shutdown reason. SIGHUP and requests on
// reloadReq reload the configuration between ticks.
func runLoop(ctl tickable, out chan<- outbound, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, reloadReq <-chan struct{}, done <-chan struct{}, reload func() (controller.Settings, error)) string {
	lastHeartbeat := now()

	applyReload := func(source string) {
		if reload == nil {
			return
		}
		settings, err := reload()
		if err != nil {
			log.Printf("config reload (%s) failed: %v", source, err)
			return
		}
		ctl.Apply(settings)
		log.Printf("config reloaded (%s): dew=%d/%d led=%d autoclose=%v@%s",
			source, settings.Dew1Max, settings.Dew2Max, settings.LEDBrightness, settings.AutoClose, settings.AutoCloseAt)
	}

	for {
		select {
		case <-done:
			log.Printf("stopping: context cancelled")
			return "ERROR"

		case s := <-sig:
			if s == syscall.SIGHUP {
				applyReload("SIGHUP")
				continue
			}
			log.Printf("received %v, shutting down", s)
			return signalName(s)

		case <-reloadReq:
			applyReload("web")

		case <-tick:
			for _, ev := range ctl.Tick() {
				ev := ev
				log.Printf("event: %s %s%s%s", ev.Type, ev.Button, ev.Command, ev.State)
				enqueue(out, outbound{event: &ev})
			}

			if tracker == nil {
				continue
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			t := now()
			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				log.Printf("heartbeat: uptime=%v link=%s", snap.Uptime().Truncate(time.Second), snap.Link.State)
				enqueue(out, outbound{system: &mqtt.SystemEvent{
					Timestamp:  t,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}})
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
