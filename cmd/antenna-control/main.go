// Command antenna-control drives the antenna switch DF mode line and publishes
// switch pattern changes to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/antenna-control/internal/config"
	"github.com/sweeney/antenna-control/internal/control"
	"github.com/sweeney/antenna-control/internal/gpio"
	"github.com/sweeney/antenna-control/internal/mqtt"
	"github.com/sweeney/antenna-control/internal/pattern"
	"github.com/sweeney/antenna-control/internal/poller"
	"github.com/sweeney/antenna-control/internal/settings"
	"github.com/sweeney/antenna-control/internal/status"
	"github.com/sweeney/antenna-control/internal/web"
)

// statusInterval is how often runLoop refreshes the tracker and checks the heartbeat.
const statusInterval = time.Second

func main() {
	configPath := flag.String("config", "", "YAML config file (built-in defaults and environment when empty)")
	printState := flag.Bool("print-state", false, "Print the current switch pattern and exit")

	flag.Parse()

	if err := run(*configPath, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath string, printState bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize GPIO
	sampler, err := gpio.NewRealSampler(cfg.GPIO.Chip, cfg.GPIO.Pins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer sampler.Close()

	monitor := pattern.NewMonitor(sampler)

	// Print state mode
	if printState {
		code, _, err := monitor.Sample()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("pattern: %d antenna: %s\n", code, pairString(code))
		return nil
	}

	var store *settings.Store
	if cfg.State.Path != "" {
		store, err = settings.Open(cfg.State.Path)
		if err != nil {
			return fmt.Errorf("init settings: %w", err)
		}
		defer store.Close()
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		BufferSize: cfg.MQTT.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	loop, err := poller.New(poller.Config{
		Period:      cfg.Poll.Interval,
		StopTimeout: cfg.Poll.StopTimeout,
	}, monitor, publisher)
	if err != nil {
		return fmt.Errorf("init poller: %w", err)
	}

	var opts []control.Option
	if store != nil {
		opts = append(opts, control.WithStore(store))
	}
	ctrl := control.New(sampler, loop, opts...)

	d := &daemon{
		ctrl:    ctrl,
		loop:    loop,
		monitor: monitor,
		tracker: tracker,
		pub:     publisher,
		conn:    publisher,
		now:     time.Now,
	}

	if err := publisher.SubscribeMode(d.applyMode); err != nil {
		log.Printf("mqtt: subscribe %s: %v", mqtt.TopicModeSet, err)
	}

	if store != nil {
		d.restoreMode(store)
	}
	if cfg.Poll.Autostart && ctrl.Start() {
		log.Printf("polling started (autostart)")
	}

	// Publish startup event with full status snapshot
	startup := d.systemEvent("STARTUP", "")
	startup.Retained = true
	if err := publisher.PublishSystem(startup); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, ctrl,
			web.WithRefresh(d.refresh),
			web.WithModeListener(d.announceMode),
		)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: poll=%v stop_timeout=%v broker=%s heartbeat=%v chip=%s",
		cfg.Poll.Interval, cfg.Poll.StopTimeout, cfg.MQTT.Broker, cfg.MQTT.Heartbeat, cfg.GPIO.Chip)

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(d, cfg.MQTT.Heartbeat, ticker.C, sigCh)
}

// daemon ties the controller to the tracker and the publisher.
type daemon struct {
	ctrl    *control.Controller
	loop    *poller.Loop
	monitor *pattern.Monitor
	tracker *status.Tracker
	pub     mqtt.Publisher
	conn    mqtt.ConnectionStatus
	now     func() time.Time
}

// applyMode handles a DF mode command from the broker.
func (d *daemon) applyMode(on bool) {
	if err := d.ctrl.SetMode(on); err != nil {
		log.Printf("set df mode=%v: %v", on, err)
		return
	}
	d.announceMode(on)
}

// announceMode publishes the retained DF mode state.
func (d *daemon) announceMode(on bool) {
	if err := d.pub.PublishMode(mqtt.ModeEvent{Timestamp: d.now(), Enabled: on}); err != nil {
		log.Printf("mode publish error: %v", err)
	}
}

type modeLoader interface {
	LoadMode() (on, found bool, err error)
}

// restoreMode re-applies a persisted DF mode. Only an enabled mode is
// re-applied; the mode line already starts low.
func (d *daemon) restoreMode(store modeLoader) {
	on, found, err := store.LoadMode()
	if err != nil {
		log.Printf("restore df mode: %v", err)
		return
	}
	if !found || !on {
		return
	}
	log.Printf("restoring df mode=true")
	d.applyMode(true)
}

func (d *daemon) refresh() {
	d.tracker.Update(d.ctrl.Mode(), string(d.loop.State()), d.monitor.Current(), d.monitor.Counts())
	if d.conn != nil {
		d.tracker.SetMQTTConnected(d.conn.IsConnected())
	}
}

func (d *daemon) systemEvent(event, reason string) mqtt.SystemEvent {
	d.refresh()
	snap := d.tracker.Snapshot()
	return mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
}

func runLoop(d *daemon, heartbeat time.Duration, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastBeat := d.now()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			if err := d.ctrl.Stop(); err != nil {
				if errors.Is(err, poller.ErrStopTimeout) {
					log.Printf("loop did not terminate: %v", err)
				} else {
					log.Printf("stop error: %v", err)
				}
			}

			event := d.systemEvent("SHUTDOWN", signalName(s))
			event.Retained = true
			if err := d.pub.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			d.refresh()

			if heartbeat <= 0 {
				continue
			}
			t := d.now()
			if t.Sub(lastBeat) < heartbeat {
				continue
			}
			lastBeat = t

			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			event := d.systemEvent("HEARTBEAT", "")
			counts := d.monitor.Counts()
			log.Printf("heartbeat: df_mode=%v loop=%s pattern=%d samples=%d changes=%d read_errors=%d",
				d.ctrl.Mode(), d.loop.State(), d.monitor.Current(), counts.Samples, counts.Changes, counts.ReadErrors)
			if err := d.pub.PublishSystem(event); err != nil {
				log.Printf("heartbeat publish error: %v", err)
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

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		PollMs:        cfg.Poll.Interval.Milliseconds(),
		StopTimeoutMs: cfg.Poll.StopTimeout.Milliseconds(),
		HeartbeatMs:   cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      cfg.HTTP.Addr,
		Chip:          cfg.GPIO.Chip,
		Pins:          [4]int{cfg.GPIO.ModePin, cfg.GPIO.Pattern0Pin, cfg.GPIO.Pattern1Pin, cfg.GPIO.Pattern2Pin},
	}
}

func pairString(c pattern.Code) string {
	if p := c.Pair(); p != "" {
		return p
	}
	return "none"
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
