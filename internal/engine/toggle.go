package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sweeney/energy-dashboard/internal/energy"
	"github.com/sweeney/energy-dashboard/internal/telemetry"
)

// ToggleResult is the outcome of a successful toggle.
type ToggleResult struct {
	Appliance energy.Appliance   `json:"appliance"`
	Previous  energy.Status      `json:"previous"`
	Snapshot  energy.RealTime    `json:"snapshot"`
	Breakdown []energy.TypePower `json:"breakdown"`
}

// Message is the human-readable confirmation shown to the user.
func (r ToggleResult) Message() string {
	action := "turned off"
	if r.Appliance.On() {
		action = "turned on"
	}
	return fmt.Sprintf("%s has been %s", r.Appliance.Name, action)
}

// ToggleAppliance flips appliance id and resynchronizes the snapshot to the
// exact registry totals, discarding accumulated drift. An unknown id
// returns an error wrapping energy.ErrNotFound and changes nothing.
func (e *Engine) ToggleAppliance(id int) (ToggleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ToggleResult{}, ErrDisposed
	}

	a, err := e.registry.Get(id)
	if err != nil {
		telemetry.Toggles.WithLabelValues(toggleResult(err)).Inc()
		return ToggleResult{}, err
	}
	next := a.Status.Flip()
	prev, err := e.registry.SetStatus(id, next)
	if err != nil {
		telemetry.Toggles.WithLabelValues(toggleResult(err)).Inc()
		return ToggleResult{}, err
	}
	a.Status = next

	e.resyncLocked()
	e.observeLocked()

	res := ToggleResult{
		Appliance: a,
		Previous:  prev,
		Snapshot:  e.rt,
		Breakdown: energy.PowerBreakdown(e.registry.List()),
	}
	telemetry.Toggles.WithLabelValues("ok").Inc()
	e.log.Info("appliance toggled",
		zap.Int("id", id),
		zap.String("name", a.Name),
		zap.String("status", string(a.Status)),
		zap.Float64("total_power", e.rt.TotalPower),
		zap.Int("active", e.rt.ActiveAppliances),
	)

	e.publishLocked(Update{Kind: KindToggle, Snapshot: e.rt, Breakdown: res.Breakdown, Toggle: &res})
	return res, nil
}

func toggleResult(err error) string {
	if errors.Is(err, energy.ErrNotFound) {
		return "not_found"
	}
	return "error"
}
