// internal/engine/engine.go
package engine

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/xkilldash9x/filament-cli/internal/field"
	"github.com/xkilldash9x/filament-cli/internal/geometry"
	"github.com/xkilldash9x/filament-cli/internal/spatial"
	"github.com/xkilldash9x/filament-cli/internal/temperature"
	"github.com/xkilldash9x/filament-cli/internal/tree"
)

// Params are the growth-rule knobs of a single run. They arrive
// pre-validated from the configuration layer.
type Params struct {
	// StepLength is the distance a new vertex is placed from its parent.
	StepLength float64
	// DMin is the minimum allowed distance between any two vertices. The
	// configuration layer guarantees 0 < DMin < StepLength, so a candidate can
	// never collide with its own parent.
	DMin float64
	// RandomnessWeight blends the candidate direction between the repulsion
	// field (0.0) and a pure random walk (1.0).
	RandomnessWeight float64
	// MaxRetriesPerStep is how many extra directions are sampled for a parent
	// after its first candidate is rejected.
	MaxRetriesPerStep int
	// MaxParentResamples is how many alternative parents are tried after the
	// first parent's direction budget is spent. The total attempt budget per
	// step is (1+MaxParentResamples) * (1+MaxRetriesPerStep).
	MaxParentResamples int
	// ChargeByTemperature scales each vertex's field charge by its normalized
	// temperature, so hot regions repel harder than burnt-out ones.
	ChargeByTemperature bool
}

// Engine grows the tree by one vertex per successful step. It owns the
// collision index and is the only component that mutates the tree; all
// sampling is driven by a single seeded generator, so a step sequence is
// fully determined by (seed, initial tree state, params).
type Engine struct {
	params  Params
	tree    *tree.Tree
	index   *spatial.Index
	field   *field.Field
	model   temperature.Model
	weigher temperature.Weigher
	rng     *rand.Rand
	log     *zap.Logger

	// sources is scratch space rebuilt each step to avoid re-allocating the
	// O(V) charge slice on every attempt.
	sources []field.Source
}

// New creates an engine over an existing tree. The collision index is seeded
// from the tree's committed vertices, which makes resumed trees work exactly
// like fresh ones.
func New(
	t *tree.Tree,
	f *field.Field,
	model temperature.Model,
	weigher temperature.Weigher,
	params Params,
	rng *rand.Rand,
	logger *zap.Logger,
) (*Engine, error) {
	if t == nil || f == nil || weigher == nil || rng == nil {
		return nil, fmt.Errorf("engine: tree, field, weigher and rng are all required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	index := spatial.NewIndex(params.DMin)
	for _, v := range t.Vertices() {
		index.Insert(v.Pos)
	}

	return &Engine{
		params:  params,
		tree:    t,
		index:   index,
		field:   f,
		model:   model,
		weigher: weigher,
		rng:     rng,
		log:     logger.Named("engine"),
	}, nil
}

// Tree exposes the engine's graph for snapshotting and inspection.
func (e *Engine) Tree() *tree.Tree { return e.tree }

// Step attempts to grow the tree by exactly one vertex at the given step
// index. On success the new vertex and edge are committed atomically into the
// tree and collision index. On ErrGrowthExhausted nothing has been mutated.
func (e *Engine) Step(currentStep int64) (tree.Vertex, tree.Edge, error) {
	vertices := e.tree.Vertices()
	e.rebuildSources(vertices, currentStep)

	for attempt := 0; attempt <= e.params.MaxParentResamples; attempt++ {
		parent := e.selectParent(vertices, currentStep)

		for try := 0; try <= e.params.MaxRetriesPerStep; try++ {
			dir := e.candidateDirection(parent.Pos)
			candidate := parent.Pos.Add(dir.Mul(e.params.StepLength))

			if e.index.AnyWithin(candidate, e.params.DMin) {
				continue
			}

			v, edge, err := e.tree.Grow(parent.ID, candidate, currentStep)
			if err != nil {
				// The engine is the only writer, so this indicates a bug, not
				// a runtime condition.
				return tree.Vertex{}, tree.Edge{}, fmt.Errorf("commit failed: %w", err)
			}
			e.index.Insert(candidate)
			return v, edge, nil
		}
	}

	e.log.Debug("Step exhausted retry budget",
		zap.Int64("step", currentStep),
		zap.Int("parent_resamples", e.params.MaxParentResamples),
		zap.Int("direction_retries", e.params.MaxRetriesPerStep))
	return tree.Vertex{}, tree.Edge{}, ErrGrowthExhausted
}

// rebuildSources refreshes the charge slice the field sums over. Charges are
// uniform unless ChargeByTemperature is set, in which case a vertex's charge
// is its temperature normalized to [0, 1].
func (e *Engine) rebuildSources(vertices []tree.Vertex, currentStep int64) {
	if cap(e.sources) < len(vertices) {
		e.sources = make([]field.Source, 0, len(vertices)*2)
	}
	e.sources = e.sources[:0]
	t0 := e.model.Initial()
	for _, v := range vertices {
		charge := 1.0
		if e.params.ChargeByTemperature && t0 > 0 {
			charge = e.model.At(v.CreatedStep, currentStep) / t0
		}
		e.sources = append(e.sources, field.Source{Pos: v.Pos, Charge: charge})
	}
}

// selectParent picks a growth vertex with probability proportional to its
// selection weight. Hot vertices dominate; the weigher's reactivation floor
// keeps cold ones reachable. A degenerate all-zero weighting falls back to a
// uniform pick so the step can still proceed.
func (e *Engine) selectParent(vertices []tree.Vertex, currentStep int64) tree.Vertex {
	total := 0.0
	for _, v := range vertices {
		total += e.weigher.Weight(v.CreatedStep, currentStep)
	}
	if total <= 0 {
		return vertices[e.rng.Intn(len(vertices))]
	}

	p := e.rng.Float64() * total
	for _, v := range vertices {
		p -= e.weigher.Weight(v.CreatedStep, currentStep)
		if p <= 0 {
			return v
		}
	}
	// Float underflow can leave a sliver of p; the last vertex takes it.
	return vertices[len(vertices)-1]
}

// candidateDirection blends the field's repulsion direction at the parent
// position with a uniformly random unit direction according to
// RandomnessWeight, then renormalizes.
func (e *Engine) candidateDirection(parentPos geometry.Vec2) geometry.Vec2 {
	w := e.params.RandomnessWeight
	if w >= 1.0 {
		// Pure random walk; skip the O(V) field query entirely.
		return geometry.RandomUnit(e.rng)
	}

	fieldDir := e.field.Direction(parentPos, e.sources, e.rng)
	if w <= 0 {
		return fieldDir
	}

	blended := fieldDir.Mul(1 - w).Add(geometry.RandomUnit(e.rng).Mul(w))
	if blended.IsZero() {
		// The two unit vectors cancelled exactly; any direction is fair.
		return geometry.RandomUnit(e.rng)
	}
	return blended.Normalize()
}
