package engine

import "errors"

// ErrGrowthExhausted signals that a step found no valid candidate position
// within its full retry budget. It is a normal termination signal consumed by
// the simulator, not a failure: the field simply has no room left around the
// sampled growth fronts.
var ErrGrowthExhausted = errors.New("engine: no valid growth candidate within retry budget")
