package schemas

import "time"

// -- Growth Data Model --
//
// These types form the wire-level representation of a grown figure. The
// simulation core works on richer internal structures; everything exported,
// persisted, or consumed by visualization tooling goes through this package.

// VertexID identifies a vertex within a single run. IDs are assigned
// sequentially starting from the root at 0, so a vertex ID also encodes
// insertion order.
type VertexID int64

// EdgeID identifies an edge within a single run. Assigned sequentially.
type EdgeID int64

// NoParent marks the root vertex, which has no parent edge.
const NoParent EdgeID = -1

// Vertex is one point of the discharge figure.
type Vertex struct {
	ID VertexID `json:"id"`
	// X, Y are the 2D position in simulation units.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// CreatedStep is the step index at which the vertex was committed. The
	// vertex's temperature at any later step is a pure function of this value,
	// so it is the only activity state that needs to survive export.
	CreatedStep int64 `json:"created_step"`
	// ParentEdge is the edge connecting this vertex to its parent, or NoParent
	// for the root.
	ParentEdge EdgeID `json:"parent_edge"`
	// Temperature is the activity weight at export time, in [0, T0]. Derived,
	// included for the benefit of renderers that color by activity.
	Temperature float64 `json:"temperature"`
}

// Edge connects a parent vertex to the child vertex it grew.
type Edge struct {
	ID   EdgeID   `json:"id"`
	From VertexID `json:"from"`
	To   VertexID `json:"to"`
	// Length is the Euclidean distance between the endpoints (the configured
	// step length under the default growth rules).
	Length      float64 `json:"length"`
	CreatedStep int64   `json:"created_step"`
	// Temperature mirrors the child vertex's temperature at export time.
	Temperature float64 `json:"temperature"`
}

// TreeSnapshot is a complete, self-describing capture of a run's state. It is
// both the export payload and the resumption unit: Seed plus Steps plus the
// committed vertex sequence is enough to continue a run exactly where it
// stopped.
type TreeSnapshot struct {
	Vertices []Vertex `json:"vertices"`
	Edges    []Edge   `json:"edges"`
	// Seed is the RNG seed the run was started with.
	Seed int64 `json:"seed"`
	// Steps is the number of simulation steps taken, including rejected ones.
	Steps int64 `json:"steps"`
}

// VertexCount returns the number of vertices in the snapshot.
func (s *TreeSnapshot) VertexCount() int { return len(s.Vertices) }

// StopReason describes why a simulation run ended.
type StopReason string

const (
	// StopMaxVertices: the configured vertex budget was reached.
	StopMaxVertices StopReason = "max_vertices"
	// StopExhausted: the growth front found no valid candidate for the
	// configured number of consecutive steps. A normal outcome, not an error.
	StopExhausted StopReason = "exhausted"
	// StopCancelled: the run context was cancelled between steps.
	StopCancelled StopReason = "cancelled"
)

// GrowthStats summarizes a run for logging and reporting.
type GrowthStats struct {
	Steps               int64      `json:"steps"`
	Accepted            int64      `json:"accepted"`
	Rejected            int64      `json:"rejected"`
	ConsecutiveFailures int64      `json:"consecutive_failures"`
	Stopped             StopReason `json:"stopped"`
}

// RunRecord is the persistence-level identity of a completed (or suspended)
// run. The snapshot referenced by a record carries the actual graph.
type RunRecord struct {
	ID          string    `json:"id"` // UUID
	Seed        int64     `json:"seed"`
	Steps       int64     `json:"steps"`
	VertexCount int       `json:"vertex_count"`
	CreatedAt   time.Time `json:"created_at"`
}
