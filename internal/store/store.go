package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/filament-cli/api/schemas"
)

// DBPool abstracts the pgxpool.Pool so the store can be exercised against
// pgxmock in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides a PostgreSQL implementation of schemas.RunStore. A run is
// one row in `runs` plus bulk-copied vertex and edge rows, written inside a
// single transaction so a run is either fully saved or absent.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.RunStore = (*Store)(nil)

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const sqlInsertRun = `
        INSERT INTO runs (id, seed, steps, vertex_count, created_at)
        VALUES ($1, $2, $3, $4, $5);
    `

// SaveRun persists the record and its snapshot transactionally.
func (s *Store) SaveRun(ctx context.Context, record schemas.RunRecord, snapshot *schemas.TreeSnapshot) error {
	if snapshot == nil || len(snapshot.Vertices) == 0 {
		return fmt.Errorf("refusing to save empty snapshot for run '%s'", record.ID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed; that is the
		// quiet path, anything else deserves a log line.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlInsertRun,
		record.ID, record.Seed, record.Steps, record.VertexCount, record.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert run record: %w", err)
	}

	if err := s.copyVertices(ctx, tx, record.ID, snapshot.Vertices); err != nil {
		return err
	}
	if err := s.copyEdges(ctx, tx, record.ID, snapshot.Edges); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info("Run persisted",
		zap.String("run_id", record.ID),
		zap.Int("vertices", len(snapshot.Vertices)),
		zap.Int("edges", len(snapshot.Edges)))
	return nil
}

var vertexColumns = []string{"run_id", "id", "x", "y", "created_step", "parent_edge", "temperature"}

func (s *Store) copyVertices(ctx context.Context, tx pgx.Tx, runID string, vertices []schemas.Vertex) error {
	rows := make([][]interface{}, len(vertices))
	for i, v := range vertices {
		rows[i] = []interface{}{
			runID, int64(v.ID), v.X, v.Y, v.CreatedStep, int64(v.ParentEdge), v.Temperature,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"run_vertices"},
		vertexColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy vertices: %w", err)
	}
	if int(copyCount) != len(vertices) {
		return fmt.Errorf("mismatch in copied vertex count: expected %d, got %d", len(vertices), copyCount)
	}
	return nil
}

var edgeColumns = []string{"run_id", "id", "from_id", "to_id", "length", "created_step", "temperature"}

func (s *Store) copyEdges(ctx context.Context, tx pgx.Tx, runID string, edges []schemas.Edge) error {
	if len(edges) == 0 {
		// A snapshot holding only the root has nothing to copy.
		return nil
	}
	rows := make([][]interface{}, len(edges))
	for i, e := range edges {
		rows[i] = []interface{}{
			runID, int64(e.ID), int64(e.From), int64(e.To), e.Length, e.CreatedStep, e.Temperature,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"run_edges"},
		edgeColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy edges: %w", err)
	}
	if int(copyCount) != len(edges) {
		return fmt.Errorf("mismatch in copied edge count: expected %d, got %d", len(edges), copyCount)
	}
	return nil
}

const sqlSelectRun = `
        SELECT id, seed, steps, vertex_count, created_at
        FROM runs WHERE id = $1;
    `

const sqlSelectVertices = `
        SELECT id, x, y, created_step, parent_edge, temperature
        FROM run_vertices WHERE run_id = $1 ORDER BY id;
    `

const sqlSelectEdges = `
        SELECT id, from_id, to_id, length, created_step, temperature
        FROM run_edges WHERE run_id = $1 ORDER BY id;
    `

// LoadRun retrieves a record and rebuilds its snapshot.
func (s *Store) LoadRun(ctx context.Context, runID string) (schemas.RunRecord, *schemas.TreeSnapshot, error) {
	var record schemas.RunRecord
	err := s.pool.QueryRow(ctx, sqlSelectRun, runID).Scan(
		&record.ID, &record.Seed, &record.Steps, &record.VertexCount, &record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schemas.RunRecord{}, nil, fmt.Errorf("run with id '%s' not found", runID)
		}
		return schemas.RunRecord{}, nil, fmt.Errorf("failed to load run record: %w", err)
	}

	snapshot := &schemas.TreeSnapshot{Seed: record.Seed, Steps: record.Steps}

	if err := s.loadVertices(ctx, runID, snapshot); err != nil {
		return schemas.RunRecord{}, nil, err
	}
	if err := s.loadEdges(ctx, runID, snapshot); err != nil {
		return schemas.RunRecord{}, nil, err
	}

	if len(snapshot.Vertices) != record.VertexCount {
		return schemas.RunRecord{}, nil, fmt.Errorf(
			"run '%s' is corrupt: record says %d vertices, found %d",
			runID, record.VertexCount, len(snapshot.Vertices))
	}

	return record, snapshot, nil
}

func (s *Store) loadVertices(ctx context.Context, runID string, snapshot *schemas.TreeSnapshot) error {
	rows, err := s.pool.Query(ctx, sqlSelectVertices, runID)
	if err != nil {
		return fmt.Errorf("failed to query vertices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v schemas.Vertex
		var id, parentEdge int64
		if err := rows.Scan(&id, &v.X, &v.Y, &v.CreatedStep, &parentEdge, &v.Temperature); err != nil {
			return fmt.Errorf("failed to scan vertex row: %w", err)
		}
		v.ID = schemas.VertexID(id)
		v.ParentEdge = schemas.EdgeID(parentEdge)
		snapshot.Vertices = append(snapshot.Vertices, v)
	}
	return rows.Err()
}

func (s *Store) loadEdges(ctx context.Context, runID string, snapshot *schemas.TreeSnapshot) error {
	rows, err := s.pool.Query(ctx, sqlSelectEdges, runID)
	if err != nil {
		return fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e schemas.Edge
		var id, from, to int64
		if err := rows.Scan(&id, &from, &to, &e.Length, &e.CreatedStep, &e.Temperature); err != nil {
			return fmt.Errorf("failed to scan edge row: %w", err)
		}
		e.ID = schemas.EdgeID(id)
		e.From = schemas.VertexID(from)
		e.To = schemas.VertexID(to)
		snapshot.Edges = append(snapshot.Edges, e)
	}
	return rows.Err()
}

const sqlListRuns = `
        SELECT id, seed, steps, vertex_count, created_at
        FROM runs ORDER BY created_at DESC;
    `

// ListRuns returns all persisted run records, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]schemas.RunRecord, error) {
	rows, err := s.pool.Query(ctx, sqlListRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []schemas.RunRecord
	for rows.Next() {
		var r schemas.RunRecord
		if err := rows.Scan(&r.ID, &r.Seed, &r.Steps, &r.VertexCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Schema is the DDL for the tables the store uses, exposed so operators can
// bootstrap a database with `filament runs init` or their own migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id           UUID PRIMARY KEY,
    seed         BIGINT NOT NULL,
    steps        BIGINT NOT NULL,
    vertex_count INTEGER NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS run_vertices (
    run_id       UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    id           BIGINT NOT NULL,
    x            DOUBLE PRECISION NOT NULL,
    y            DOUBLE PRECISION NOT NULL,
    created_step BIGINT NOT NULL,
    parent_edge  BIGINT NOT NULL,
    temperature  DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS run_edges (
    run_id       UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    id           BIGINT NOT NULL,
    from_id      BIGINT NOT NULL,
    to_id        BIGINT NOT NULL,
    length       DOUBLE PRECISION NOT NULL,
    created_step BIGINT NOT NULL,
    temperature  DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (run_id, id)
);
`

// InitSchema creates the run tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	s.log.Info("Run store schema initialized")
	return nil
}
