// internal/temperature/model.go
package temperature

import "math"

// Model computes the time-decaying activity weight ("temperature") of a vertex
// or edge. A freshly committed vertex starts at the initial temperature and
// cools exponentially with the number of steps since its creation:
//
//	T(age) = T0 * exp(-k * age)
//
// The value is recomputed from the creation step on demand; no mutable
// per-vertex state exists, so a snapshot of (creation step, current step)
// always yields the same temperature.
type Model struct {
	initial float64 // T0 > 0
	decay   float64 // k >= 0; zero disables cooling entirely
}

// NewModel creates a temperature model. The constructor trusts its inputs;
// range checking happens once at configuration validation.
func NewModel(initial, decay float64) Model {
	return Model{initial: initial, decay: decay}
}

// Initial returns T0, the temperature assigned to fresh vertices and edges.
func (m Model) Initial() float64 { return m.initial }

// At returns the temperature of an element created at createdStep as observed
// at currentStep. The result is clamped to [0, T0]; a current step earlier
// than the creation step (which a well-formed run never produces) reads as T0.
func (m Model) At(createdStep, currentStep int64) float64 {
	age := currentStep - createdStep
	if age <= 0 || m.decay == 0 {
		return m.initial
	}
	t := m.initial * math.Exp(-m.decay*float64(age))
	if t < 0 {
		return 0
	}
	return t
}

// Weigher maps an element's age to its parent-selection weight. It is the
// pluggable growth ruleset: the engine multiplies selection probability by
// this value, so alternative strategies (uniform, depth-biased, ...) can be
// swapped in without touching the step algorithm.
type Weigher interface {
	Weight(createdStep, currentStep int64) float64
}

// ActivityWeigher is the default Weigher: selection weight proportional to
// current temperature, with a small floor so fully cooled vertices keep a
// non-zero chance of being reselected. The floor models the observed behavior
// of real figures occasionally resuming growth from a previously burnt path.
type ActivityWeigher struct {
	model Model
	floor float64 // absolute weight floor, floorFraction * T0
}

// NewActivityWeigher builds the default temperature-proportional weigher.
// floorFraction is the reactivation floor expressed as a fraction of T0;
// values outside [0, 1] are clamped.
func NewActivityWeigher(model Model, floorFraction float64) ActivityWeigher {
	if floorFraction < 0 {
		floorFraction = 0
	}
	if floorFraction > 1 {
		floorFraction = 1
	}
	return ActivityWeigher{model: model, floor: floorFraction * model.Initial()}
}

// Weight implements Weigher.
func (w ActivityWeigher) Weight(createdStep, currentStep int64) float64 {
	t := w.model.At(createdStep, currentStep)
	if t < w.floor {
		return w.floor
	}
	return t
}

// Compile-time interface check, mirroring the store's discipline.
var _ Weigher = ActivityWeigher{}
