// Package config loads the daemon configuration from YAML, applies
// environment overrides and validates the result.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Bus       BusConfig       `yaml:"bus"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	HTTP      HTTPConfig      `yaml:"http"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Power     PowerConfig     `yaml:"power"`
	State     StateConfig     `yaml:"state"`
}

// DeviceConfig names the board.
type DeviceConfig struct {
	Name        string `yaml:"name"`
	AutoConnect bool   `yaml:"auto_connect"`
}

// BusConfig selects the expander bus.
type BusConfig struct {
	Kind    string `yaml:"kind"`    // spi, i2c or fake
	Device  string `yaml:"device"`  // periph port/bus name; empty picks the first
	Address uint8  `yaml:"address"` // hardware address pins, or 7-bit I2C address
	SpeedHz int64  `yaml:"speed_hz"`
}

// ScheduleConfig controls the tick and the confirmation window.
type ScheduleConfig struct {
	Tick       time.Duration `yaml:"tick"`
	ArmTimeout time.Duration `yaml:"arm_timeout"`
}

// TelemetryConfig controls telemetry sources.
type TelemetryConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	Resolver   string        `yaml:"resolver"`
	PublicName string        `yaml:"public_name"`
}

// MQTTConfig contains broker connection settings.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	BufferSize  int    `yaml:"buffer_size"`
}

// HTTPConfig contains the status server address (empty disables it).
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// IndicatorConfig selects the armed-state LED. Pin < 0 disables it.
type IndicatorConfig struct {
	Chip string `yaml:"chip"`
	Pin  int    `yaml:"pin"`
}

// PowerConfig holds the host shutdown and restart commands.
type PowerConfig struct {
	ShutdownCommand []string      `yaml:"shutdown_command"`
	RestartCommand  []string      `yaml:"restart_command"`
	Timeout         time.Duration `yaml:"timeout"`
}

// StateConfig controls relay state persistence.
type StateConfig struct {
	Path    string `yaml:"path"`
	Restore bool   `yaml:"restore"`
}

// Environment variable overrides.
const (
	EnvBroker = "RELAYD_BROKER"
	EnvHTTP   = "RELAYD_HTTP"
	EnvBus    = "RELAYD_BUS"
)

// Load reads path on top of the defaults. An empty path returns the
// defaults. Environment overrides are applied after the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the built-in configuration for a PiFace Relay+ on SPI 0.0.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:        "PiFace Relay",
			AutoConnect: true,
		},
		Bus: BusConfig{
			Kind:    "spi",
			Device:  "",
			Address: 0,
			SpeedHz: 10_000_000,
		},
		Schedule: ScheduleConfig{
			Tick:       time.Second,
			ArmTimeout: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Timeout:    3 * time.Second,
			Resolver:   "resolver1.opendns.com:53",
			PublicName: "myip.opendns.com",
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "piface-relay",
			TopicPrefix: "piface-relay",
			BufferSize:  100,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Indicator: IndicatorConfig{
			Chip: "gpiochip0",
			Pin:  -1,
		},
		Power: PowerConfig{
			ShutdownCommand: []string{"sudo", "shutdown", "-h", "now"},
			RestartCommand:  []string{"sudo", "shutdown", "-r", "now"},
			Timeout:         10 * time.Second,
		},
		State: StateConfig{
			Path:    "/var/lib/piface-relay/state.yaml",
			Restore: false,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvBroker); v != "" {
		cfg.MQTT.Broker = v
	}
	if v, ok := os.LookupEnv(EnvHTTP); ok {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv(EnvBus); v != "" {
		cfg.Bus.Kind = v
	}
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Bus.Kind) {
	case "spi":
		if c.Bus.Address > 7 {
			problems = append(problems, fmt.Sprintf("bus.address %d out of range 0-7 for spi", c.Bus.Address))
		}
	case "i2c":
		if c.Bus.Address > 0x77 {
			problems = append(problems, fmt.Sprintf("bus.address 0x%02x out of range for i2c", c.Bus.Address))
		}
	case "fake":
	default:
		problems = append(problems, fmt.Sprintf("bus.kind %q must be spi, i2c or fake", c.Bus.Kind))
	}

	if c.Schedule.Tick <= 0 {
		problems = append(problems, "schedule.tick must be positive")
	}
	if c.Schedule.ArmTimeout < 0 {
		problems = append(problems, "schedule.arm_timeout must not be negative")
	}
	if c.Telemetry.Timeout <= 0 {
		problems = append(problems, "telemetry.timeout must be positive")
	}
	if c.MQTT.Broker != "" && c.MQTT.ClientID == "" {
		problems = append(problems, "mqtt.client_id is required when mqtt.broker is set")
	}
	if c.MQTT.TopicPrefix == "" {
		problems = append(problems, "mqtt.topic_prefix is required")
	}
	if c.MQTT.BufferSize < 0 {
		problems = append(problems, "mqtt.buffer_size must not be negative")
	}
	if c.Indicator.Pin >= 0 && c.Indicator.Chip == "" {
		problems = append(problems, "indicator.chip is required when indicator.pin is set")
	}
	if len(c.Power.ShutdownCommand) == 0 || len(c.Power.RestartCommand) == 0 {
		problems = append(problems, "power.shutdown_command and power.restart_command are required")
	}
	if c.State.Restore && c.State.Path == "" {
		problems = append(problems, "state.restore needs state.path")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
