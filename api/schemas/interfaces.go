package schemas

import "context"

// RunStore defines a generic interface for persisting finished or suspended
// runs. This abstraction keeps the CLI and simulator independent of the
// specific database implementation (e.g., PostgreSQL, in-memory for tests).
type RunStore interface {
	// SaveRun persists a run record together with its full snapshot in a
	// single transaction.
	SaveRun(ctx context.Context, record RunRecord, snapshot *TreeSnapshot) error
	// LoadRun retrieves a run record and rebuilds its snapshot.
	LoadRun(ctx context.Context, runID string) (RunRecord, *TreeSnapshot, error)
	// ListRuns returns records of all persisted runs, newest first.
	ListRuns(ctx context.Context) ([]RunRecord, error)
}
