// internal/simulator/simulator.go
package simulator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/filament-cli/api/schemas"
	"github.com/xkilldash9x/filament-cli/internal/engine"
	"github.com/xkilldash9x/filament-cli/internal/temperature"
)

// Options control when a run stops and how it identifies itself.
type Options struct {
	// Seed is recorded into the snapshot and run record; together with the
	// step count it pins the exact RNG state for resumption.
	Seed int64
	// StartStep is the step index to continue from (non-zero for resumed
	// runs).
	StartStep int64
	// MaxVertices stops the run once the tree reaches this size.
	MaxVertices int
	// MaxConsecutiveFailures stops the run after this many failed steps in a
	// row, signaling the field has no explorable area left. Zero means stop
	// on the first failed step.
	MaxConsecutiveFailures int
}

// Result bundles everything a finished run produces.
type Result struct {
	Snapshot *schemas.TreeSnapshot
	Stats    schemas.GrowthStats
	Record   schemas.RunRecord
}

// Simulator drives repeated engine steps until a stop condition is met. The
// loop is strictly sequential; cancellation is honored between steps, so the
// tree is always observed fully committed.
type Simulator struct {
	engine   *engine.Engine
	model    temperature.Model
	opts     Options
	log      *zap.Logger
	progress *rate.Limiter
}

// New creates a simulator over a prepared engine.
func New(eng *engine.Engine, model temperature.Model, opts Options, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		engine: eng,
		model:  model,
		opts:   opts,
		log:    logger.Named("simulator"),
		// Progress lines are throttled so tight growth loops don't flood the
		// console; the limiter only gates logging, never the simulation.
		progress: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// Run grows the tree until max vertices, growth exhaustion, or cancellation.
// An early stop with fewer vertices than requested is a normal, reported
// outcome, not an error; Run only returns an error for context cancellation.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	stats := schemas.GrowthStats{}
	step := s.opts.StartStep

	failureLimit := int64(s.opts.MaxConsecutiveFailures)
	if failureLimit < 1 {
		failureLimit = 1
	}

	s.log.Info("Run starting",
		zap.Int64("seed", s.opts.Seed),
		zap.Int64("start_step", step),
		zap.Int("max_vertices", s.opts.MaxVertices))

loop:
	for {
		select {
		case <-ctx.Done():
			stats.Stopped = schemas.StopCancelled
			break loop
		default:
		}

		if s.engine.Tree().Len() >= s.opts.MaxVertices {
			stats.Stopped = schemas.StopMaxVertices
			break
		}

		step++
		stats.Steps++
		_, _, err := s.engine.Step(step)
		switch {
		case err == nil:
			stats.Accepted++
			stats.ConsecutiveFailures = 0
		case errors.Is(err, engine.ErrGrowthExhausted):
			stats.Rejected++
			stats.ConsecutiveFailures++
			if stats.ConsecutiveFailures >= failureLimit {
				stats.Stopped = schemas.StopExhausted
				break loop
			}
		default:
			// Commit errors indicate a programming fault; surface them.
			return nil, err
		}

		if s.progress.Allow() {
			s.log.Info("Growth progress",
				zap.Int("vertices", s.engine.Tree().Len()),
				zap.Int64("step", step),
				zap.Int64("rejected", stats.Rejected))
		}
	}

	snapshot := s.engine.Tree().Snapshot(s.opts.Seed, step, s.model)
	result := &Result{
		Snapshot: snapshot,
		Stats:    stats,
		Record: schemas.RunRecord{
			ID:          uuid.NewString(),
			Seed:        s.opts.Seed,
			Steps:       step,
			VertexCount: snapshot.VertexCount(),
			CreatedAt:   time.Now().UTC(),
		},
	}

	s.log.Info("Run finished",
		zap.String("run_id", result.Record.ID),
		zap.String("stopped", string(stats.Stopped)),
		zap.Int("vertices", result.Record.VertexCount),
		zap.Int64("steps", stats.Steps),
		zap.Int64("rejected", stats.Rejected))

	if stats.Stopped == schemas.StopCancelled {
		// The partial result is still valid and returned alongside the error
		// so callers can export what grew before the interrupt.
		return result, ctx.Err()
	}
	return result, nil
}
