// internal/field/field.go
package field

import (
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/filament-cli/internal/geometry"
)

// coincidentEps is the squared distance below which a source is considered to
// sit exactly on the query point. Such terms are excluded from the sum (the
// force law is singular there) and replaced with a small jitter.
const coincidentEps = 1e-18

// jitterScale is the magnitude of the jitter applied when the query point
// coincides with an existing source.
const jitterScale = 1e-6

// Source is a single charged point contributing repulsion to the field.
type Source struct {
	Pos geometry.Vec2
	// Charge scales this source's contribution. Uniform (1.0) by default; the
	// engine may scale it by normalized temperature when configured to.
	Charge float64
}

// Field computes net inverse-square repulsion over a set of point sources.
// It holds only configuration; every query is a pure function of the query
// point, the source set, and (for degenerate fallbacks) the RNG state.
type Field struct {
	strength float64
	// parallelThreshold is the source count above which the summation is
	// chunked across goroutines. The reduction is performed in chunk order so
	// results stay bit-identical regardless of scheduling.
	parallelThreshold int
}

// Option configures a Field.
type Option func(*Field)

// WithParallelThreshold sets the source count above which force summation runs
// on multiple goroutines. A non-positive value disables parallelism.
func WithParallelThreshold(n int) Option {
	return func(f *Field) {
		f.parallelThreshold = n
	}
}

// New creates a Field with the given strength constant. Strength zero yields a
// degenerate field whose queries always fall back to a random direction.
func New(strength float64, opts ...Option) *Field {
	f := &Field{
		strength:          strength,
		parallelThreshold: 4096,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Net computes the raw net force vector exerted on point q by all sources.
// Each source contributes `strength * charge * (q - p) / |q - p|^3`, i.e. a
// unit vector away from the source scaled by the inverse square of the
// distance. Sources coincident with q are skipped.
func (f *Field) Net(q geometry.Vec2, sources []Source) geometry.Vec2 {
	if f.parallelThreshold > 0 && len(sources) >= f.parallelThreshold {
		return f.netParallel(q, sources)
	}
	return partialNet(q, sources, f.strength)
}

// partialNet sums contributions over one contiguous slice of sources.
func partialNet(q geometry.Vec2, sources []Source, strength float64) geometry.Vec2 {
	var net geometry.Vec2
	for _, s := range sources {
		d := q.Sub(s.Pos)
		r2 := d.MagSq()
		if r2 < coincidentEps {
			continue // Singular term; the caller jitters instead.
		}
		r := d.Mag()
		// F = strength * charge / r^2, directed away from the source.
		net = net.Add(d.Mul(strength * s.Charge / (r2 * r)))
	}
	return net
}

// netParallel splits the source slice into per-CPU chunks and reduces the
// partial sums in chunk order. Chunk boundaries depend only on the source
// count, keeping the floating-point reduction order deterministic.
func (f *Field) netParallel(q geometry.Vec2, sources []Source) geometry.Vec2 {
	chunks := runtime.GOMAXPROCS(0)
	if chunks > len(sources) {
		chunks = len(sources)
	}
	partials := make([]geometry.Vec2, chunks)
	size := (len(sources) + chunks - 1) / chunks

	var g errgroup.Group
	for i := 0; i < chunks; i++ {
		lo := i * size
		hi := lo + size
		if hi > len(sources) {
			hi = len(sources)
		}
		g.Go(func() error {
			partials[i] = partialNet(q, sources[lo:hi], f.strength)
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()

	var net geometry.Vec2
	for _, p := range partials {
		net = net.Add(p)
	}
	return net
}

// Direction returns the unit repulsion direction at q. If q coincides with an
// existing source, that term is excluded and a small jitter keeps the result
// off the singularity. A zero net force (perfect symmetry, empty source set,
// or zero strength) falls back to a uniformly random unit direction; this is
// recovered locally and never surfaced to callers.
func (f *Field) Direction(q geometry.Vec2, sources []Source, rng *rand.Rand) geometry.Vec2 {
	net := f.Net(q, sources)
	for _, s := range sources {
		if q.Sub(s.Pos).MagSq() < coincidentEps {
			net = net.Add(geometry.RandomUnit(rng).Mul(jitterScale))
			break
		}
	}
	if net.IsZero() {
		return geometry.RandomUnit(rng)
	}
	return net.Normalize()
}
