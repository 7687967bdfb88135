package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/energy-dashboard/internal/config"
	"github.com/sweeney/energy-dashboard/internal/engine"
	"github.com/sweeney/energy-dashboard/internal/mqtt"
	"github.com/sweeney/energy-dashboard/internal/seed"
	"github.com/sweeney/energy-dashboard/internal/status"
)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

func newTestTracker(t *testing.T) *status.Tracker {
	t.Helper()
	eng, err := engine.New(seed.Default(), engine.Config{Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(eng.Dispose)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return status.NewTracker(start, status.Config{Broker: "tcp://broker:1883", HeartbeatMs: 900000}, eng)
}

// runRunLoop drives runLoop with nBeats heartbeats then the given signal.
func runRunLoop(t *testing.T, pub mqtt.Publisher, tracker *status.Tracker, nBeats int, signal os.Signal) error {
	t.Helper()
	beat := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 15*time.Minute)

	var connStatus mqtt.ConnectionStatus
	if fp, ok := pub.(*mqtt.FakePublisher); ok {
		connStatus = fp
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(pub, connStatus, tracker, clock, beat, sig, zap.NewNop())
	}()

	for i := 0; i < nBeats; i++ {
		beat <- time.Time{}
	}
	sig <- signal

	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return after signal")
		return nil
	}
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	pub := mqtt.NewFakePublisher()

	if err := runRunLoop(t, pub, newTestTracker(t), 0, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	se := pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN, got %q", se.Event)
	}
	if se.Reason != "SIGTERM" {
		t.Errorf("expected reason SIGTERM, got %q", se.Reason)
	}
	if !se.Retained {
		t.Error("expected Retained=true for SHUTDOWN")
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	pub := mqtt.NewFakePublisher()

	if err := runRunLoop(t, pub, newTestTracker(t), 0, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if got := pub.SystemEvents[0].Reason; got != "SIGINT" {
		t.Errorf("expected reason SIGINT, got %q", got)
	}
}

func TestRunLoopShutdownPayloadCarriesStatus(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.Connected = true

	if err := runRunLoop(t, pub, newTestTracker(t), 0, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads[0], &sj); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", sj.Status.Event, sj.Status.Reason)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT connected to be refreshed before shutdown")
	}
	if sj.Status.Energy.TotalPower != 9200 {
		t.Errorf("TotalPower: got %v, want 9200", sj.Status.Energy.TotalPower)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	pub := mqtt.NewFakePublisher()

	if err := runRunLoop(t, pub, newTestTracker(t), 2, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var heartbeats, shutdowns int
	for i, se := range pub.SystemEvents {
		switch se.Event {
		case "HEARTBEAT":
			heartbeats++
			if se.Retained {
				t.Error("HEARTBEAT should not be retained")
			}
			var sj status.StatusJSON
			if err := json.Unmarshal(pub.SystemPayloads[i], &sj); err != nil {
				t.Fatalf("decode heartbeat: %v", err)
			}
			if sj.Status.Event != "HEARTBEAT" {
				t.Errorf("payload event: got %q", sj.Status.Event)
			}
		case "SHUTDOWN":
			shutdowns++
		}
	}
	if heartbeats != 2 {
		t.Errorf("expected 2 HEARTBEAT events, got %d", heartbeats)
	}
	if shutdowns != 1 {
		t.Errorf("expected 1 SHUTDOWN event, got %d", shutdowns)
	}
}

func TestRunLoopPublishError(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.PublishSystemError = errors.New("broker unavailable")

	if err := runRunLoop(t, pub, newTestTracker(t), 1, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.SystemEvents) != 0 {
		t.Errorf("expected 0 recorded events (publish failed), got %d", len(pub.SystemEvents))
	}
}

func TestRunLoopWithoutPublisher(t *testing.T) {
	if err := runRunLoop(t, nil, newTestTracker(t), 1, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
}

func TestStatusConfig(t *testing.T) {
	cfg := &config.Config{
		HTTP:      config.HTTPConfig{Addr: ":9000"},
		Realtime:  config.RealtimeConfig{Interval: 30 * time.Second},
		Drift:     config.DriftConfig{Reconcile: "mean_revert"},
		Energy:    config.EnergyConfig{Tariff: 0.2},
		MQTT:      config.MQTTConfig{Broker: "tcp://broker:1883"},
		Heartbeat: 15 * time.Minute,
	}

	sc := statusConfig(cfg)
	if sc.IntervalMs != 30000 || sc.HeartbeatMs != 900000 {
		t.Errorf("durations: got %d/%d", sc.IntervalMs, sc.HeartbeatMs)
	}
	if sc.Broker != "" {
		t.Errorf("Broker should be empty while MQTT is disabled, got %q", sc.Broker)
	}

	cfg.MQTT.Enabled = true
	if got := statusConfig(cfg).Broker; got != "tcp://broker:1883" {
		t.Errorf("Broker: got %q", got)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger(config.LoggingConfig{Level: "debug", Format: "console"}); err != nil {
		t.Errorf("console logger: %v", err)
	}
	if _, err := newLogger(config.LoggingConfig{Level: "loud", Format: "json"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	eng := newEngine(cfg, zap.NewNop())
	t.Cleanup(eng.Dispose)
	return eng
}

func TestPrintState(t *testing.T) {
	var buf bytes.Buffer
	if err := printState(&buf, testEngine(t)); err != nil {
		t.Fatalf("printState: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Power: 9200 W (9.2 kW)", "Active: 7/10", "Daily cost: $26.50", "Smart TV", "HVAC=3550"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRender(t *testing.T) {
	eng := testEngine(t)

	csv, err := render(eng, "csv")
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if !strings.HasPrefix(string(csv), "Date,Consumption (kWh)") {
		t.Errorf("csv header: got %q", strings.SplitN(string(csv), "\n", 2)[0])
	}

	js, err := render(eng, "json")
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if !json.Valid(js) {
		t.Error("json export is not valid JSON")
	}

	if _, err := render(eng, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
