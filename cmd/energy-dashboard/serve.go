package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/energy-dashboard/internal/config"
	"github.com/sweeney/energy-dashboard/internal/engine"
	"github.com/sweeney/energy-dashboard/internal/mqtt"
	"github.com/sweeney/energy-dashboard/internal/status"
	"github.com/sweeney/energy-dashboard/internal/web"
)

// wsBuffer is the engine subscription depth for the websocket hub.
const wsBuffer = 64

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	eng := newEngine(cfg, log)
	defer eng.Dispose()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg), eng)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Nil when MQTT is disabled; runLoop skips lifecycle events then.
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Enabled {
		mlog := log.Named("mqtt")
		rp, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			BufferSize: cfg.MQTT.BufferSize,
			OnToggle:   func(topic string) { mqtt.HandleToggle(eng, topic, mlog) },
			Logger:     mlog,
		})
		if err != nil {
			return err
		}
		defer rp.Close()
		publisher, mqttStatus = rp, rp
		tracker.SetMQTTConnected(rp.IsConnected())

		updates, unsubscribe := eng.Subscribe(cfg.MQTT.BufferSize)
		defer unsubscribe()
		go mqtt.Forward(ctx, updates, rp, mlog)

		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			log.Warn("failed to publish startup event", zap.Error(err))
		} else {
			log.Info("published startup event")
		}
	}

	if cfg.HTTP.Addr != "" {
		hub := web.NewHub(log.Named("ws"))
		updates, unsubscribe := eng.Subscribe(wsBuffer)
		defer unsubscribe()
		go hub.Run(ctx, updates)

		srv := web.New(cfg.HTTP.Addr, eng, tracker, hub, log.Named("http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", zap.Error(err))
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			srv.Shutdown(sctx)
		}()
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	if cfg.Realtime.Autostart {
		eng.StartRealtime()
	}

	log.Info("started",
		zap.Duration("interval", cfg.Realtime.Interval),
		zap.Float64("tariff", cfg.Energy.Tariff),
		zap.String("drift", cfg.Drift.Reconcile),
		zap.Bool("mqtt", cfg.MQTT.Enabled),
		zap.Duration("heartbeat", cfg.Heartbeat),
	)

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 && publisher != nil {
		ticker := time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(publisher, mqttStatus, tracker, time.Now, heartbeat, sigCh, log)
}

func statusConfig(cfg *config.Config) status.Config {
	sc := status.Config{
		IntervalMs:  cfg.Realtime.Interval.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Tariff:      cfg.Energy.Tariff,
		DriftPolicy: cfg.Drift.Reconcile,
		HTTPAddr:    cfg.HTTP.Addr,
	}
	if cfg.MQTT.Enabled {
		sc.Broker = cfg.MQTT.Broker
	}
	return sc
}

// runLoop publishes HEARTBEAT events on every heartbeat tick and a SHUTDOWN
// event when a signal arrives, then returns. publisher may be nil.
func runLoop(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, heartbeat <-chan time.Time, sig <-chan os.Signal, log *zap.Logger) error {
	for {
		select {
		case s := <-sig:
			log.Info("shutting down", zap.String("signal", s.String()))
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if publisher == nil {
				return nil
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				refreshConnected(tracker, mqttStatus)
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warn("failed to publish shutdown event", zap.Error(err))
			} else {
				log.Info("published shutdown event")
			}
			return nil

		case <-heartbeat:
			if tracker != nil {
				refreshConnected(tracker, mqttStatus)
			}
			if publisher == nil {
				continue
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				snap := tracker.Snapshot()
				log.Debug("heartbeat",
					zap.Duration("uptime", snap.Uptime()),
					zap.Float64("total_power", snap.Energy.TotalPower),
					zap.Bool("realtime_running", snap.RealtimeRunning),
				)
				event.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warn("heartbeat publish error", zap.Error(err))
			}
		}
	}
}

func refreshConnected(tracker *status.Tracker, mqttStatus mqtt.ConnectionStatus) {
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}

// compile-time check that the engine satisfies every consumer interface.
var (
	_ web.Engine    = (*engine.Engine)(nil)
	_ status.Source = (*engine.Engine)(nil)
	_ mqtt.Toggler  = (*engine.Engine)(nil)
)
