// internal/spatial/index.go
package spatial

import (
	"math"

	"github.com/xkilldash9x/filament-cli/internal/geometry"
)

// cellKey addresses one bucket of the uniform grid.
type cellKey struct {
	cx, cy int
}

// Index is a uniform cell-hash over committed vertex positions. It answers
// the single query the growth loop needs, "is any committed vertex within
// radius r of p", by scanning the 3x3 cell neighborhood around p.
//
// Correctness requires r <= cellSize; the constructor clamps the cell size up
// to the largest radius the caller declares.
type Index struct {
	cellSize float64
	cells    map[cellKey][]geometry.Vec2
	count    int
}

// NewIndex creates an empty index whose cells are sized for queries up to
// maxRadius. A non-positive radius is treated as 1.0.
func NewIndex(maxRadius float64) *Index {
	if maxRadius <= 0 {
		maxRadius = 1.0
	}
	return &Index{
		cellSize: maxRadius,
		cells:    make(map[cellKey][]geometry.Vec2),
	}
}

// keyFor maps a position to its containing cell.
func (ix *Index) keyFor(p geometry.Vec2) cellKey {
	return cellKey{
		cx: int(math.Floor(p.X / ix.cellSize)),
		cy: int(math.Floor(p.Y / ix.cellSize)),
	}
}

// Insert adds a committed position to the index.
func (ix *Index) Insert(p geometry.Vec2) {
	k := ix.keyFor(p)
	ix.cells[k] = append(ix.cells[k], p)
	ix.count++
}

// Len returns the number of indexed positions.
func (ix *Index) Len() int { return ix.count }

// AnyWithin reports whether any indexed position lies strictly within radius r
// of p. Positions exactly at distance r do not count as collisions, matching
// the "distance >= d_min" tree invariant.
func (ix *Index) AnyWithin(p geometry.Vec2, r float64) bool {
	if r > ix.cellSize {
		// The 3x3 scan would miss candidates; callers size the index for
		// their largest query radius at construction.
		panic("spatial: query radius exceeds index cell size")
	}
	center := ix.keyFor(p)
	r2 := r * r
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			bucket := ix.cells[cellKey{cx: center.cx + dx, cy: center.cy + dy}]
			for _, q := range bucket {
				if p.Sub(q).MagSq() < r2 {
					return true
				}
			}
		}
	}
	return false
}
