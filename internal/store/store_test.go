package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/filament-cli/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more
// robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func sampleRun() (schemas.RunRecord, *schemas.TreeSnapshot) {
	record := schemas.RunRecord{
		ID:          uuid.NewString(),
		Seed:        42,
		Steps:       2,
		VertexCount: 3,
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	snapshot := &schemas.TreeSnapshot{
		Vertices: []schemas.Vertex{
			{ID: 0, X: 0, Y: 0, CreatedStep: 0, ParentEdge: schemas.NoParent, Temperature: 0.9},
			{ID: 1, X: 1, Y: 0, CreatedStep: 1, ParentEdge: 0, Temperature: 0.95},
			{ID: 2, X: 1, Y: 1, CreatedStep: 2, ParentEdge: 1, Temperature: 1.0},
		},
		Edges: []schemas.Edge{
			{ID: 0, From: 0, To: 1, Length: 1, CreatedStep: 1, Temperature: 0.95},
			{ID: 1, From: 1, To: 2, Length: 1, CreatedStep: 2, Temperature: 1.0},
		},
		Seed:  42,
		Steps: 2,
	}
	return record, snapshot
}

func newTestStore(t *testing.T, logger *zap.Logger) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()

	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing().WillReturnError(nil)
	store, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return store, mockPool
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSaveRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist a full run without rollback errors", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		store, mockPool := newTestStore(t, zap.New(observedZapCore))

		record, snapshot := sampleRun()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(record.ID, record.Seed, record.Steps, record.VertexCount, record.CreatedAt.UTC()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"run_vertices"}, vertexColumns).
			WillReturnResult(int64(len(snapshot.Vertices)))
		mockPool.ExpectCopyFrom(pgx.Identifier{"run_edges"}, edgeColumns).
			WillReturnResult(int64(len(snapshot.Edges)))
		mockPool.ExpectCommit()
		// The deferred rollback after commit reports ErrTxClosed, which must
		// stay silent.
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.SaveRun(ctx, record, snapshot))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Zero(t, observedLogs.Len(), "no error logs expected on the happy path")
	})

	t.Run("should skip edge copy for a root-only snapshot", func(t *testing.T) {
		store, mockPool := newTestStore(t, zap.NewNop())

		record, _ := sampleRun()
		record.VertexCount = 1
		snapshot := &schemas.TreeSnapshot{
			Vertices: []schemas.Vertex{
				{ID: 0, ParentEdge: schemas.NoParent, Temperature: 1.0},
			},
			Seed:  record.Seed,
			Steps: 0,
		}

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(record.ID, record.Seed, record.Steps, record.VertexCount, record.CreatedAt.UTC()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"run_vertices"}, vertexColumns).
			WillReturnResult(1)
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.SaveRun(ctx, record, snapshot))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should roll back when the vertex copy fails", func(t *testing.T) {
		store, mockPool := newTestStore(t, zap.NewNop())

		record, snapshot := sampleRun()
		copyErr := errors.New("copy blew up")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(record.ID, record.Seed, record.Steps, record.VertexCount, record.CreatedAt.UTC()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"run_vertices"}, vertexColumns).
			WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := store.SaveRun(ctx, record, snapshot)
		require.Error(t, err)
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should refuse an empty snapshot", func(t *testing.T) {
		store, mockPool := newTestStore(t, zap.NewNop())

		record, _ := sampleRun()
		err := store.SaveRun(ctx, record, &schemas.TreeSnapshot{})
		require.Error(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestLoadRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should rebuild a snapshot from its rows", func(t *testing.T) {
		store, mockPool := newTestStore(t, zap.NewNop())

		record, want := sampleRun()

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRun)).
			WithArgs(record.ID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "seed", "steps", "vertex_count", "created_at"}).
				AddRow(record.ID, record.Seed, record.Steps, record.VertexCount, record.CreatedAt))

		vertexRows := pgxmock.NewRows([]string{"id", "x", "y", "created_step", "parent_edge", "temperature"})
		for _, v := range want.Vertices {
			vertexRows.AddRow(int64(v.ID), v.X, v.Y, v.CreatedStep, int64(v.ParentEdge), v.Temperature)
		}
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectVertices)).
			WithArgs(record.ID).
			WillReturnRows(vertexRows)

		edgeRows := pgxmock.NewRows([]string{"id", "from_id", "to_id", "length", "created_step", "temperature"})
		for _, e := range want.Edges {
			edgeRows.AddRow(int64(e.ID), int64(e.From), int64(e.To), e.Length, e.CreatedStep, e.Temperature)
		}
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectEdges)).
			WithArgs(record.ID).
			WillReturnRows(edgeRows)

		gotRecord, gotSnapshot, err := store.LoadRun(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, record, gotRecord)
		assert.Equal(t, want, gotSnapshot)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report a missing run distinctly", func(t *testing.T) {
		store, mockPool := newTestStore(t, zap.NewNop())

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRun)).
			WithArgs("no-such-run").
			WillReturnError(pgx.ErrNoRows)

		_, _, err := store.LoadRun(ctx, "no-such-run")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should reject a run whose vertex rows disagree with its record", func(t *testing.T) {
		store, mockPool := newTestStore(t, zap.NewNop())

		record, _ := sampleRun()

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRun)).
			WithArgs(record.ID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "seed", "steps", "vertex_count", "created_at"}).
				AddRow(record.ID, record.Seed, record.Steps, record.VertexCount, record.CreatedAt))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectVertices)).
			WithArgs(record.ID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "x", "y", "created_step", "parent_edge", "temperature"}).
				AddRow(int64(0), 0.0, 0.0, int64(0), int64(-1), 1.0))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectEdges)).
			WithArgs(record.ID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "from_id", "to_id", "length", "created_step", "temperature"}))

		_, _, err := store.LoadRun(ctx, record.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "corrupt")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestListRuns(t *testing.T) {
	store, mockPool := newTestStore(t, zap.NewNop())

	first := uuid.NewString()
	second := uuid.NewString()
	now := time.Now().UTC()

	mockPool.ExpectQuery(flexibleSQLMatcher(sqlListRuns)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "seed", "steps", "vertex_count", "created_at"}).
			AddRow(first, int64(1), int64(10), 11, now).
			AddRow(second, int64(2), int64(20), 21, now.Add(-time.Hour)))

	records, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first, records[0].ID)
	assert.Equal(t, 21, records[1].VertexCount)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestInitSchema(t *testing.T) {
	store, mockPool := newTestStore(t, zap.NewNop())

	mockPool.ExpectExec(flexibleSQLMatcher(Schema)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.InitSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
