// Package status tracks process-level state of the dashboard service for
// the /index.json endpoint and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/energy-dashboard/internal/energy"
)

// Source is the part of the engine the tracker reads on every snapshot.
type Source interface {
	Session() uuid.UUID
	Snapshot() energy.RealTime
	Summary() energy.ApplianceSummary
	RealtimeRunning() bool
}

// Config contains service configuration for display.
type Config struct {
	IntervalMs  int64
	HeartbeatMs int64
	Tariff      float64
	DriftPolicy string
	Broker      string // empty when MQTT is disabled
	HTTPAddr    string
}

// Snapshot is a point-in-time view of service state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Session         string
	Energy          energy.RealTime
	Appliances      energy.ApplianceSummary
	RealtimeRunning bool
	StartTime       time.Time
	Now             time.Time
	MQTTConnected   bool
	Config          Config
}

// Uptime returns the duration since the service started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable service state behind an RWMutex.
type Tracker struct {
	source Source
	now    func() time.Time

	mu            sync.RWMutex
	startTime     time.Time
	mqttConnected bool
	cfg           Config
}

// NewTracker creates a Tracker reading energy state from src.
func NewTracker(startTime time.Time, cfg Config, src Source) *Tracker {
	return &Tracker{
		source:    src,
		now:       time.Now,
		startTime: startTime,
		cfg:       cfg,
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.mqttConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the service state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := Snapshot{
		StartTime:     t.startTime,
		MQTTConnected: t.mqttConnected,
		Config:        t.cfg,
	}
	t.mu.RUnlock()

	if t.source != nil {
		s.Session = t.source.Session().String()
		s.Energy = t.source.Snapshot()
		s.Appliances = t.source.Summary()
		s.RealtimeRunning = t.source.RealtimeRunning()
	}
	s.Now = t.now()
	return s
}
