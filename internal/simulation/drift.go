// Package simulation produces the synthetic real-time feed: a bounded random
// drift of the power and efficiency readings, applied on a fixed interval.
package simulation

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sweeney/energy-dashboard/internal/energy"
)

// Policy controls how drifted power relates to the registry total.
type Policy string

const (
	// PolicyNone lets power random-walk from its last value.
	PolicyNone Policy = "none"
	// PolicyMeanRevert pulls power toward the registry total each tick.
	PolicyMeanRevert Policy = "mean_revert"
)

// Defaults used when DriftConfig fields are zero.
const (
	DefaultVariation = 0.05
	DefaultReversion = 0.1
)

// ParsePolicy validates a policy name. Empty means PolicyNone.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyNone:
		return PolicyNone, nil
	case PolicyMeanRevert:
		return PolicyMeanRevert, nil
	}
	return "", fmt.Errorf("unknown drift policy %q", s)
}

// DriftConfig configures Drift.
type DriftConfig struct {
	// Variation is the half-width of the per-tick relative power change.
	Variation float64
	Policy    Policy
	// Reversion is the fraction of the gap to the registry total closed per
	// tick under PolicyMeanRevert.
	Reversion float64
	// Seed fixes the random sequence. Zero seeds from the clock.
	Seed uint64
}

// Drift perturbs a snapshot. Not safe for concurrent use.
type Drift struct {
	variation float64
	policy    Policy
	reversion float64
	rng       *rand.Rand
}

// NewDrift creates a Drift from cfg.
func NewDrift(cfg DriftConfig) *Drift {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return NewDriftWithRand(cfg, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// NewDriftWithRand creates a Drift drawing from rng.
func NewDriftWithRand(cfg DriftConfig, rng *rand.Rand) *Drift {
	d := &Drift{
		variation: cfg.Variation,
		policy:    cfg.Policy,
		reversion: cfg.Reversion,
		rng:       rng,
	}
	if d.variation <= 0 {
		d.variation = DefaultVariation
	}
	if d.policy == "" {
		d.policy = PolicyNone
	}
	if d.reversion <= 0 || d.reversion > 1 {
		d.reversion = DefaultReversion
	}
	return d
}

// Policy returns the reconciliation policy in effect.
func (d *Drift) Policy() Policy {
	return d.policy
}

// Apply returns the next power and efficiency readings. truth is the exact
// registry total, consulted only under PolicyMeanRevert.
func (d *Drift) Apply(power float64, efficiency int, truth float64) (float64, int) {
	v := (d.rng.Float64()*2 - 1) * d.variation
	next := math.Max(0, power*(1+v))

	if d.policy == PolicyMeanRevert {
		next = math.Max(0, next+d.reversion*(truth-next))
	}

	// Efficiency steps down by one or holds; it never steps up.
	delta := int(math.Floor(d.rng.Float64()*2 - 1))
	return next, energy.ClampEfficiency(efficiency + delta)
}
