// Command energy-dashboard serves a simulated home energy dashboard over
// HTTP, websocket and MQTT.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/energy-dashboard/internal/config"
	"github.com/sweeney/energy-dashboard/internal/energy"
	"github.com/sweeney/energy-dashboard/internal/engine"
	"github.com/sweeney/energy-dashboard/internal/seed"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "energy-dashboard",
	Short: "Simulated home energy dashboard",
	Long: `energy-dashboard keeps an in-memory model of household appliances and
their power draw, drifts the real-time reading on a fixed interval and serves
it as a web dashboard, a JSON API, a websocket feed and MQTT messages.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./energy-dashboard.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging section.
func newLogger(c config.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

// newEngine loads the dataset and builds an engine with the loop stopped.
// Rejected appliances are logged by the engine and do not fail startup.
func newEngine(cfg *config.Config, log *zap.Logger) *engine.Engine {
	ds := seed.LoadOrDefault(cfg.Seed.Path, log.Named("seed"))
	eng, _ := engine.New(ds, engine.Config{
		Tariff:   cfg.Energy.Tariff,
		Interval: cfg.Realtime.Interval,
		Drift:    cfg.SimulationDrift(),
		Logger:   log.Named("engine"),
	})
	return eng
}

func statusString(s energy.Status) string {
	if s.Valid() {
		return string(s)
	}
	return "unknown"
}
