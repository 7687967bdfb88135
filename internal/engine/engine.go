// Package engine owns the authoritative dashboard state. Every read and
// every mutation of the appliance registry and the real-time snapshot goes
// through an Engine.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/energy-dashboard/internal/energy"
	"github.com/sweeney/energy-dashboard/internal/simulation"
	"github.com/sweeney/energy-dashboard/internal/telemetry"
)

// Config tunes an Engine. Zero values select the defaults.
type Config struct {
	Tariff   float64
	Interval time.Duration
	Drift    simulation.DriftConfig
	// DriftSource overrides the drift built from Drift, for tests.
	DriftSource *simulation.Drift
	TickSource  simulation.TickSource
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Engine is the single mutation and read surface for dashboard state.
// All methods are safe for concurrent use.
type Engine struct {
	tariff  float64
	clock   func() time.Time
	log     *zap.Logger
	session uuid.UUID

	// mu guards everything below. Ticks and toggles hold it for their
	// whole duration so no partial state is observable.
	mu        sync.Mutex
	registry  *energy.Registry
	history   *energy.HistoricalLog
	rt        energy.RealTime
	reference Reference
	drift     *simulation.Drift
	subs      map[int]chan Update
	nextSub   int
	disposed  bool

	// loop has its own lock; never wait on it while holding mu.
	loop *simulation.Loop
}

// Reference is the read-only data carried through from the seed.
type Reference struct {
	Predictions  energy.Predictions  `json:"predictions"`
	Gamification energy.Gamification `json:"gamification"`
	Anomalies    []energy.Anomaly    `json:"anomalies"`
}

// New builds an Engine from a dataset. The returned error reports
// appliances that were rejected at load; the Engine is usable either way.
func New(ds energy.Dataset, cfg Config) (*Engine, error) {
	if cfg.Tariff <= 0 {
		cfg.Tariff = energy.DefaultTariff
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	drift := cfg.DriftSource
	if drift == nil {
		drift = simulation.NewDrift(cfg.Drift)
	}

	registry, loadErr := energy.NewRegistry(ds.Appliances)
	if loadErr != nil {
		loadErr = fmt.Errorf("load appliances: %w", loadErr)
		cfg.Logger.Warn("some appliances were rejected", zap.Error(loadErr))
	}

	e := &Engine{
		tariff:   cfg.Tariff,
		clock:    cfg.Clock,
		log:      cfg.Logger,
		session:  uuid.New(),
		registry: registry,
		history:  energy.NewHistoricalLog(ds.HistoricalData),
		reference: Reference{
			Predictions:  ds.Predictions,
			Gamification: ds.Gamification,
			Anomalies:    ds.Anomalies,
		},
		drift: drift,
		subs:  make(map[int]chan Update),
	}

	e.rt = energy.RealTime{
		Weather:           ds.RealTime.Weather,
		CurrentEfficiency: energy.ClampEfficiency(ds.RealTime.CurrentEfficiency),
	}
	e.resyncLocked()

	e.loop = simulation.NewLoop(simulation.LoopConfig{
		Interval: cfg.Interval,
		Tick:     e.tick,
		OnFault:  e.fault,
		Source:   cfg.TickSource,
		Logger:   cfg.Logger.Named("simulation"),
	})

	e.observeLocked()
	e.log.Info("engine ready",
		zap.String("session", e.session.String()),
		zap.Int("appliances", registry.Len()),
		zap.Int("history_days", e.history.Len()),
		zap.Float64("total_power", e.rt.TotalPower),
		zap.String("drift_policy", string(drift.Policy())),
	)
	return e, loadErr
}

// Session identifies this engine instance.
func (e *Engine) Session() uuid.UUID {
	return e.session
}

// Tariff returns the price per kWh used for cost estimates.
func (e *Engine) Tariff() float64 {
	return e.tariff
}

// Snapshot returns a copy of the real-time snapshot.
func (e *Engine) Snapshot() energy.RealTime {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rt
}

// Appliances returns a copy of the registry in insertion order.
func (e *Engine) Appliances() []energy.Appliance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.List()
}

// Appliance returns one appliance, or an error wrapping energy.ErrNotFound.
func (e *Engine) Appliance(id int) (energy.Appliance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Get(id)
}

// Breakdown returns the active power per type, in order of first appearance.
func (e *Engine) Breakdown() []energy.TypePower {
	e.mu.Lock()
	defer e.mu.Unlock()
	return energy.PowerBreakdown(e.registry.List())
}

// Summary returns appliance counts and the exact active load.
func (e *Engine) Summary() energy.ApplianceSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return energy.Summarize(e.registry.List())
}

// History returns the date-ascending historical log.
func (e *Engine) History() []energy.HistoricalRecord {
	return e.history.Records()
}

// HistorySummary aggregates the historical log.
func (e *Engine) HistorySummary() energy.HistorySummary {
	return e.history.Summary()
}

// Reference returns the predictions, gamification and anomaly data.
func (e *Engine) Reference() Reference {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reference
}

// Dataset returns the full current state in seed layout.
func (e *Engine) Dataset() energy.Dataset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return energy.Dataset{
		Appliances:     e.registry.List(),
		HistoricalData: e.history.Records(),
		RealTime:       e.rt,
		Predictions:    e.reference.Predictions,
		Gamification:   e.reference.Gamification,
		Anomalies:      e.reference.Anomalies,
	}
}

// StartRealtime starts the simulation loop. It has no effect if the loop
// is already running or the engine has been disposed.
func (e *Engine) StartRealtime() {
	e.mu.Lock()
	disposed := e.disposed
	e.mu.Unlock()
	if disposed {
		return
	}
	e.loop.Start()

	// Dispose may have run between the check above and Start.
	e.mu.Lock()
	disposed = e.disposed
	e.mu.Unlock()
	if disposed {
		e.loop.Stop()
	}
	telemetry.RealtimeRunning.Set(telemetry.Bool(e.loop.Running()))
}

// StopRealtime stops the simulation loop. When it returns no further tick
// will run.
func (e *Engine) StopRealtime() {
	e.loop.Stop()
	telemetry.RealtimeRunning.Set(telemetry.Bool(e.loop.Running()))
}

// RealtimeRunning reports whether the simulation loop is active.
func (e *Engine) RealtimeRunning() bool {
	return e.loop.Running()
}

// Dispose stops the loop and closes every subscription. The Engine must
// not be used afterwards.
func (e *Engine) Dispose() {
	e.mu.Lock()
	first := !e.disposed
	e.disposed = true
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.mu.Unlock()

	// Stop after disposed is set so a racing StartRealtime sees it. The loop
	// must not be stopped under mu since a tick in flight takes it.
	e.StopRealtime()
	if first {
		e.log.Info("engine disposed", zap.String("session", e.session.String()))
	}
}

// tick applies one drift step. Runs on the loop goroutine.
func (e *Engine) tick(time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}

	truth := energy.TotalPowerWatts(e.registry.List())
	power, eff := e.drift.Apply(e.rt.TotalPower, e.rt.CurrentEfficiency, truth)
	e.rt.TotalPower = power
	e.rt.CurrentEfficiency = eff
	e.rt.EstimatedDailyCost = energy.DailyCostEstimate(power, e.tariff)
	e.rt.Timestamp = e.clock()

	telemetry.SimulationTicks.Inc()
	e.observeLocked()
	e.log.Debug("tick",
		zap.Float64("total_power", power),
		zap.Float64("truth", truth),
		zap.Int("efficiency", eff),
	)
	e.publishLocked(Update{Kind: KindTick, Snapshot: e.rt})
}

// fault reports a recovered tick panic to subscribers.
func (e *Engine) fault(err error) {
	telemetry.SimulationFaults.Inc()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.publishLocked(Update{Kind: KindFault, Snapshot: e.rt, Err: err})
}

// resyncLocked sets the power, count and cost fields to the exact registry
// values and stamps the snapshot.
func (e *Engine) resyncLocked() {
	list := e.registry.List()
	e.rt.TotalPower = energy.TotalPowerWatts(list)
	e.rt.ActiveAppliances = len(energy.ActiveAppliances(list))
	e.rt.EstimatedDailyCost = energy.DailyCostEstimate(e.rt.TotalPower, e.tariff)
	e.rt.Timestamp = e.clock()
}

func (e *Engine) observeLocked() {
	telemetry.TotalPowerWatts.Set(e.rt.TotalPower)
	telemetry.ActiveAppliances.Set(float64(e.rt.ActiveAppliances))
	telemetry.Efficiency.Set(float64(e.rt.CurrentEfficiency))
}
