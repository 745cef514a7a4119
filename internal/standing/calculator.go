// Package standing turns impact events into bounded reputation scores.
//
// The calculator is pure and never fails: unknown impact types contribute
// nothing and malformed multipliers fail closed to a zero delta. Callers that
// must surface an unmapped type use ApplyImpactStrict or inspect Result.Gap.
package standing

import (
	"math"

	dErrors "civictrust/pkg/domain-errors"
)

const (
	MinScore = -1000
	MaxScore = 10000
)

// ImpactEvent is a validated impact with its neural multiplier.
type ImpactEvent struct {
	Type             ImpactType
	NeuralMultiplier float64
}

// NewImpactEvent validates an impact before it reaches the calculator.
func NewImpactEvent(t ImpactType, multiplier float64) (ImpactEvent, error) {
	if t == "" {
		return ImpactEvent{}, dErrors.New(dErrors.CodeValidation, "impact_type is required")
	}
	if math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return ImpactEvent{}, dErrors.New(dErrors.CodeValidation, "neural_multiplier must be finite")
	}
	if multiplier < 0 {
		return ImpactEvent{}, dErrors.New(dErrors.CodeValidation, "neural_multiplier must not be negative")
	}
	return ImpactEvent{Type: t, NeuralMultiplier: multiplier}, nil
}

// Result describes one application of an impact.
type Result struct {
	Previous int
	Score    int
	Delta    int
	// Gap is set when the impact type has no registered weight.
	Gap bool
	// Saturated is set when the score was clamped at a bound.
	Saturated bool
}

type Calculator struct {
	registry *Registry
}

// NewCalculator builds a calculator over reg. A nil reg uses the defaults.
func NewCalculator(reg *Registry) *Calculator {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Calculator{registry: reg}
}

// Registry exposes the weight table the calculator reads.
func (c *Calculator) Registry() *Registry { return c.registry }

// ApplyImpact returns clamp(round(current + weight*multiplier)).
func (c *Calculator) ApplyImpact(current int, t ImpactType, multiplier float64) int {
	return c.Apply(current, ImpactEvent{Type: t, NeuralMultiplier: multiplier}).Score
}

// ApplyImpactStrict is ApplyImpact that reports an unmapped impact type as
// a ConfigurationGap error instead of applying a zero delta.
func (c *Calculator) ApplyImpactStrict(current int, t ImpactType, multiplier float64) (int, error) {
	res := c.Apply(current, ImpactEvent{Type: t, NeuralMultiplier: multiplier})
	if res.Gap {
		return current, dErrors.Newf(dErrors.CodeConfigurationGap, "impact type %s has no registered weight", t)
	}
	return res.Score, nil
}

// Apply computes the full result for ev.
func (c *Calculator) Apply(current int, ev ImpactEvent) Result {
	weight, ok := c.registry.Weight(ev.Type)
	res := Result{Previous: current, Gap: !ok}

	next := float64(current) + delta(weight, ev.NeuralMultiplier)
	clamped := math.Max(MinScore, math.Min(MaxScore, math.Round(next)))
	res.Saturated = clamped != math.Round(next)
	res.Score = int(clamped)
	res.Delta = res.Score - current
	return res
}

// delta fails closed: NaN and negative multipliers contribute nothing, and
// +Inf saturates in the direction of the weight.
func delta(weight int, multiplier float64) float64 {
	if weight == 0 || math.IsNaN(multiplier) || multiplier < 0 {
		return 0
	}
	if math.IsInf(multiplier, 1) {
		if weight > 0 {
			return math.Inf(1)
		}
		return math.Inf(-1)
	}
	return float64(weight) * multiplier
}
