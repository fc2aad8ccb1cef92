// internal/tree/tree.go
package tree

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/filament-cli/api/schemas"
	"github.com/xkilldash9x/filament-cli/internal/geometry"
	"github.com/xkilldash9x/filament-cli/internal/temperature"
)

// Vertex is the in-memory representation of one point of the figure.
// Temperature is deliberately absent: it is a pure function of CreatedStep and
// the current step, computed through the temperature model on demand.
type Vertex struct {
	ID          schemas.VertexID
	Pos         geometry.Vec2
	CreatedStep int64
	ParentEdge  schemas.EdgeID // schemas.NoParent for the root
}

// Edge connects a parent vertex to the child it grew.
type Edge struct {
	ID          schemas.EdgeID
	From        schemas.VertexID
	To          schemas.VertexID
	Length      float64
	CreatedStep int64
}

// Tree is the persistent graph state of a run. Vertices and edges are only
// ever appended, never mutated or removed, and IDs double as slice indices.
// The growth engine is the sole writer; everything else reads.
type Tree struct {
	mu       sync.RWMutex
	vertices []Vertex
	edges    []Edge
	log      *zap.Logger
}

// New creates a tree holding only the root vertex at the given origin. The
// root is created at step 0 with no parent edge.
func New(origin geometry.Vec2, logger *zap.Logger) *Tree {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tree{
		vertices: []Vertex{{
			ID:          0,
			Pos:         origin,
			CreatedStep: 0,
			ParentEdge:  schemas.NoParent,
		}},
		log: logger.Named("tree"),
	}
	t.log.Debug("Root vertex created", zap.Float64("x", origin.X), zap.Float64("y", origin.Y))
	return t
}

// Len returns the current vertex count.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.vertices)
}

// EdgeCount returns the current edge count (always Len()-1).
func (t *Tree) EdgeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.edges)
}

// Root returns the root vertex.
func (t *Tree) Root() Vertex {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vertices[0]
}

// Vertex retrieves a vertex by ID.
func (t *Tree) Vertex(id schemas.VertexID) (Vertex, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id < 0 || int(id) >= len(t.vertices) {
		return Vertex{}, fmt.Errorf("vertex with id '%d' not found", id)
	}
	return t.vertices[id], nil
}

// Vertices returns the committed vertex slice. Callers must treat it as
// read-only; the engine holds no references across steps, and append-only
// growth means previously handed-out prefixes stay valid.
func (t *Tree) Vertices() []Vertex {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vertices
}

// Edges returns the committed edge slice under the same read-only contract as
// Vertices.
func (t *Tree) Edges() []Edge {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.edges
}

// Grow atomically commits one new vertex and its parent edge at the given
// step. It is the only mutation the tree supports; a failed call leaves the
// tree untouched. Collision validation is the engine's responsibility and has
// already happened by the time Grow runs.
func (t *Tree) Grow(parent schemas.VertexID, pos geometry.Vec2, step int64) (Vertex, Edge, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if parent < 0 || int(parent) >= len(t.vertices) {
		return Vertex{}, Edge{}, fmt.Errorf("parent vertex with id '%d' not found", parent)
	}

	edgeID := schemas.EdgeID(len(t.edges))
	v := Vertex{
		ID:          schemas.VertexID(len(t.vertices)),
		Pos:         pos,
		CreatedStep: step,
		ParentEdge:  edgeID,
	}
	e := Edge{
		ID:          edgeID,
		From:        parent,
		To:          v.ID,
		Length:      t.vertices[parent].Pos.Dist(pos),
		CreatedStep: step,
	}

	t.vertices = append(t.vertices, v)
	t.edges = append(t.edges, e)

	t.log.Debug("Vertex committed",
		zap.Int64("id", int64(v.ID)),
		zap.Int64("parent", int64(parent)),
		zap.Int64("step", step))
	return v, e, nil
}

// Snapshot exports the full tree state, deriving temperatures for the given
// current step through the temperature model.
func (t *Tree) Snapshot(seed, currentStep int64, model temperature.Model) *schemas.TreeSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := &schemas.TreeSnapshot{
		Vertices: make([]schemas.Vertex, len(t.vertices)),
		Edges:    make([]schemas.Edge, len(t.edges)),
		Seed:     seed,
		Steps:    currentStep,
	}
	for i, v := range t.vertices {
		snap.Vertices[i] = schemas.Vertex{
			ID:          v.ID,
			X:           v.Pos.X,
			Y:           v.Pos.Y,
			CreatedStep: v.CreatedStep,
			ParentEdge:  v.ParentEdge,
			Temperature: model.At(v.CreatedStep, currentStep),
		}
	}
	for i, e := range t.edges {
		snap.Edges[i] = schemas.Edge{
			ID:          e.ID,
			From:        e.From,
			To:          e.To,
			Length:      e.Length,
			CreatedStep: e.CreatedStep,
			// An edge's temperature mirrors its child vertex.
			Temperature: model.At(t.vertices[e.To].CreatedStep, currentStep),
		}
	}
	return snap
}

// Load rebuilds a tree from a snapshot, validating the structural invariants
// on the way in so a corrupted snapshot fails loudly instead of producing an
// inconsistent run.
func Load(snap *schemas.TreeSnapshot, logger *zap.Logger) (*Tree, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(snap.Vertices) == 0 {
		return nil, fmt.Errorf("snapshot has no vertices")
	}
	if len(snap.Edges) != len(snap.Vertices)-1 {
		return nil, fmt.Errorf("snapshot has %d edges for %d vertices, want %d",
			len(snap.Edges), len(snap.Vertices), len(snap.Vertices)-1)
	}
	if snap.Vertices[0].ParentEdge != schemas.NoParent {
		return nil, fmt.Errorf("snapshot root has a parent edge")
	}

	t := &Tree{
		vertices: make([]Vertex, len(snap.Vertices)),
		edges:    make([]Edge, len(snap.Edges)),
		log:      logger.Named("tree"),
	}
	for i, v := range snap.Vertices {
		if int64(v.ID) != int64(i) {
			return nil, fmt.Errorf("snapshot vertex %d has out-of-order id %d", i, v.ID)
		}
		if i > 0 {
			pe := v.ParentEdge
			if pe < 0 || int(pe) >= len(snap.Edges) {
				return nil, fmt.Errorf("vertex %d references missing parent edge %d", v.ID, pe)
			}
			if snap.Edges[pe].To != v.ID {
				return nil, fmt.Errorf("parent edge %d does not terminate at vertex %d", pe, v.ID)
			}
		}
		t.vertices[i] = Vertex{
			ID:          v.ID,
			Pos:         geometry.Vec2{X: v.X, Y: v.Y},
			CreatedStep: v.CreatedStep,
			ParentEdge:  v.ParentEdge,
		}
	}
	for i, e := range snap.Edges {
		if int64(e.ID) != int64(i) {
			return nil, fmt.Errorf("snapshot edge %d has out-of-order id %d", i, e.ID)
		}
		if e.From < 0 || int(e.From) >= len(snap.Vertices) {
			return nil, fmt.Errorf("edge %d references missing source vertex %d", e.ID, e.From)
		}
		// A child must be created after its parent, otherwise the topology
		// cannot be an arborescence rooted at vertex 0.
		if e.To <= e.From {
			return nil, fmt.Errorf("edge %d does not point forward (%d -> %d)", e.ID, e.From, e.To)
		}
		t.edges[i] = Edge{
			ID:          e.ID,
			From:        e.From,
			To:          e.To,
			Length:      e.Length,
			CreatedStep: e.CreatedStep,
		}
	}
	t.log.Debug("Tree loaded from snapshot",
		zap.Int("vertices", len(t.vertices)),
		zap.Int64("steps", snap.Steps))
	return t, nil
}
