// Package config loads service configuration from defaults, an optional
// YAML file, a .env file and ENERGY_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/energy-dashboard/internal/energy"
	"github.com/sweeney/energy-dashboard/internal/simulation"
)

// EnvPrefix is prepended to every environment override, e.g.
// ENERGY_HTTP_ADDR for http.addr.
const EnvPrefix = "ENERGY"

// Config is the full service configuration.
type Config struct {
	HTTP      HTTPConfig     `mapstructure:"http"`
	Realtime  RealtimeConfig `mapstructure:"realtime"`
	Drift     DriftConfig    `mapstructure:"drift"`
	Energy    EnergyConfig   `mapstructure:"energy"`
	Seed      SeedConfig     `mapstructure:"seed"`
	MQTT      MQTTConfig     `mapstructure:"mqtt"`
	Heartbeat time.Duration  `mapstructure:"heartbeat"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

type HTTPConfig struct {
	// Addr is the listen address. Empty disables the HTTP server.
	Addr string `mapstructure:"addr"`
}

type RealtimeConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Autostart bool          `mapstructure:"autostart"`
}

type DriftConfig struct {
	Variation float64 `mapstructure:"variation"`
	Reconcile string  `mapstructure:"reconcile"`
	Reversion float64 `mapstructure:"reversion"`
	Seed      uint64  `mapstructure:"seed"`
}

type EnergyConfig struct {
	// Tariff is the price per kWh used for cost estimates.
	Tariff float64 `mapstructure:"tariff"`
}

type SeedConfig struct {
	// Path to a dataset JSON file. Empty uses the built-in dataset.
	Path string `mapstructure:"path"`
}

type MQTTConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Broker     string `mapstructure:"broker"`
	ClientID   string `mapstructure:"client_id"`
	BufferSize int    `mapstructure:"buffer_size"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("realtime.interval", simulation.DefaultInterval)
	v.SetDefault("realtime.autostart", true)
	v.SetDefault("drift.variation", simulation.DefaultVariation)
	v.SetDefault("drift.reconcile", string(simulation.PolicyNone))
	v.SetDefault("drift.reversion", simulation.DefaultReversion)
	v.SetDefault("drift.seed", 0)
	v.SetDefault("energy.tariff", energy.DefaultTariff)
	v.SetDefault("seed.path", "")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "energy-dashboard")
	v.SetDefault("mqtt.buffer_size", 100)
	v.SetDefault("heartbeat", 15*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load builds the configuration. If path is empty, energy-dashboard.yaml is
// looked up in the working directory, ./configs and /etc/energy-dashboard;
// a missing file is not an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("energy-dashboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/energy-dashboard")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Realtime.Interval <= 0 {
		errs = append(errs, fmt.Errorf("realtime.interval must be positive, got %v", c.Realtime.Interval))
	}
	if c.Drift.Variation <= 0 || c.Drift.Variation >= 1 {
		errs = append(errs, fmt.Errorf("drift.variation must be in (0, 1), got %v", c.Drift.Variation))
	}
	if _, err := simulation.ParsePolicy(c.Drift.Reconcile); err != nil {
		errs = append(errs, fmt.Errorf("drift.reconcile: %w", err))
	}
	if c.Drift.Reversion < 0 || c.Drift.Reversion > 1 {
		errs = append(errs, fmt.Errorf("drift.reversion must be in [0, 1], got %v", c.Drift.Reversion))
	}
	if c.Energy.Tariff <= 0 {
		errs = append(errs, fmt.Errorf("energy.tariff must be positive, got %v", c.Energy.Tariff))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// SimulationDrift converts the drift section for the simulation package.
// Call Validate first.
func (c *Config) SimulationDrift() simulation.DriftConfig {
	policy, _ := simulation.ParsePolicy(c.Drift.Reconcile)
	return simulation.DriftConfig{
		Variation: c.Drift.Variation,
		Policy:    policy,
		Reversion: c.Drift.Reversion,
		Seed:      c.Drift.Seed,
	}
}

// YAML renders the effective configuration in the file format Load reads.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(map[string]any{
		"http": map[string]any{"addr": c.HTTP.Addr},
		"realtime": map[string]any{
			"interval":  c.Realtime.Interval.String(),
			"autostart": c.Realtime.Autostart,
		},
		"drift": map[string]any{
			"variation": c.Drift.Variation,
			"reconcile": c.Drift.Reconcile,
			"reversion": c.Drift.Reversion,
			"seed":      c.Drift.Seed,
		},
		"energy": map[string]any{"tariff": c.Energy.Tariff},
		"seed":   map[string]any{"path": c.Seed.Path},
		"mqtt": map[string]any{
			"enabled":     c.MQTT.Enabled,
			"broker":      c.MQTT.Broker,
			"client_id":   c.MQTT.ClientID,
			"buffer_size": c.MQTT.BufferSize,
		},
		"heartbeat": c.Heartbeat.String(),
		"logging": map[string]any{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
		},
	})
}

// loadDotEnv exports the variables in path without overriding ones already
// set. A missing file is not an error; an unreadable or malformed one is.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}
