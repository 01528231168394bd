// Package config loads daemon configuration from a YAML file and the environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment
// variables. Validate runs last.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/antenna-control/internal/gpio"
	"github.com/sweeney/antenna-control/internal/mqtt"
	"github.com/sweeney/antenna-control/internal/poller"
)

// Config is the full daemon configuration.
type Config struct {
	GPIO  GPIOConfig  `yaml:"gpio"`
	Poll  PollConfig  `yaml:"poll"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
	HTTP  HTTPConfig  `yaml:"http"`
	State StateConfig `yaml:"state"`
}

// ---- GPIO ----

type GPIOConfig struct {
	Chip        string `yaml:"chip" env:"ANTENNA_GPIO_CHIP"`
	ModePin     int    `yaml:"mode_pin" env:"ANTENNA_PIN_MODE"`
	Pattern0Pin int    `yaml:"pattern0_pin" env:"ANTENNA_PIN_PATTERN0"`
	Pattern1Pin int    `yaml:"pattern1_pin" env:"ANTENNA_PIN_PATTERN1"`
	Pattern2Pin int    `yaml:"pattern2_pin" env:"ANTENNA_PIN_PATTERN2"`
}

// Pins returns the line offsets in the form the gpio package takes.
func (g GPIOConfig) Pins() gpio.Pins {
	return gpio.Pins{
		Mode:     g.ModePin,
		Pattern0: g.Pattern0Pin,
		Pattern1: g.Pattern1Pin,
		Pattern2: g.Pattern2Pin,
	}
}

// ---- POLL ----

type PollConfig struct {
	Interval    time.Duration `yaml:"interval" env:"ANTENNA_POLL_INTERVAL"`
	StopTimeout time.Duration `yaml:"stop_timeout" env:"ANTENNA_STOP_TIMEOUT"`
	// Autostart starts polling at boot, before any mode command.
	Autostart bool `yaml:"autostart" env:"ANTENNA_AUTOSTART"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Broker     string        `yaml:"broker" env:"ANTENNA_MQTT_BROKER"`
	ClientID   string        `yaml:"client_id" env:"ANTENNA_MQTT_CLIENT_ID"`
	Heartbeat  time.Duration `yaml:"heartbeat" env:"ANTENNA_HEARTBEAT"` // 0 disables
	BufferSize int           `yaml:"buffer_size" env:"ANTENNA_MQTT_BUFFER"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Addr string `yaml:"addr" env:"ANTENNA_HTTP_ADDR"` // empty disables
}

// ---- STATE ----

type StateConfig struct {
	Path string `yaml:"path" env:"ANTENNA_STATE_PATH"` // empty disables persistence
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	pins := gpio.DefaultPins()
	return Config{
		GPIO: GPIOConfig{
			Chip:        gpio.DefaultChip,
			ModePin:     pins.Mode,
			Pattern0Pin: pins.Pattern0,
			Pattern1Pin: pins.Pattern1,
			Pattern2Pin: pins.Pattern2,
		},
		Poll: PollConfig{
			Interval:    poller.DefaultPeriod,
			StopTimeout: poller.DefaultStopTimeout,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://192.168.1.200:1883",
			ClientID:   "antenna-control",
			Heartbeat:  15 * time.Minute,
			BufferSize: mqtt.DefaultBufferSize,
		},
		HTTP:  HTTPConfig{Addr: ":80"},
		State: StateConfig{Path: "/var/lib/antenna-control/state.db"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment. The result is not validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg Config) error {
	var errs []error

	if cfg.GPIO.Chip == "" {
		errs = append(errs, errors.New("gpio.chip must be set"))
	}
	seen := make(map[int]string)
	for _, p := range []struct {
		name   string
		offset int
	}{
		{"mode_pin", cfg.GPIO.ModePin},
		{"pattern0_pin", cfg.GPIO.Pattern0Pin},
		{"pattern1_pin", cfg.GPIO.Pattern1Pin},
		{"pattern2_pin", cfg.GPIO.Pattern2Pin},
	} {
		if p.offset < 0 {
			errs = append(errs, fmt.Errorf("gpio.%s: negative offset %d", p.name, p.offset))
			continue
		}
		if other, dup := seen[p.offset]; dup {
			errs = append(errs, fmt.Errorf("gpio.%s: offset %d already used by %s", p.name, p.offset, other))
			continue
		}
		seen[p.offset] = p.name
	}

	if cfg.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poll.interval must be positive, got %v", cfg.Poll.Interval))
	}
	if cfg.Poll.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("poll.stop_timeout must be positive, got %v", cfg.Poll.StopTimeout))
	}

	if cfg.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker must be set"))
	}
	if cfg.MQTT.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("mqtt.heartbeat must not be negative, got %v", cfg.MQTT.Heartbeat))
	}
	if cfg.MQTT.BufferSize < 1 {
		errs = append(errs, fmt.Errorf("mqtt.buffer_size must be at least 1, got %d", cfg.MQTT.BufferSize))
	}

	return errors.Join(errs...)
}
