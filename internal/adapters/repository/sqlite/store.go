// Package sqlite persists run history in SQLite through the pure-Go
// modernc driver. Build payloads (params, outputs, logs) are packed into a
// single blob column by the serialization pipeline.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flowengine/flowengine/internal/core/artifact"
	"github.com/flowengine/flowengine/internal/core/record"
	"github.com/flowengine/flowengine/pkg/serialization"
)

// Store implements record.Store on a SQLite database.
type Store struct {
	db         *sql.DB
	serializer *serialization.Serializer
}

// buildPayload is the blob-packed portion of a vertex build record.
type buildPayload struct {
	Params  map[string]interface{} `msgpack:"params"`
	Outputs map[string]interface{} `msgpack:"outputs"`
	Logs    []artifact.LogEntry    `msgpack:"logs"`
}

// NewStore wraps an open database handle. A nil serializer defaults to
// msgpack with zstd compression.
func NewStore(db *sql.DB, serializer *serialization.Serializer) *Store {
	if serializer == nil {
		serializer = serialization.Default()
	}
	return &Store{db: db, serializer: serializer}
}

// Open opens (or creates) a SQLite database at path and prepares the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string, serializer *serialization.Serializer) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	s := NewStore(db, serializer)
	if err := s.CreateTables(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// CreateTables prepares the schema. Idempotent.
func (s *Store) CreateTables(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS flow_runs (
			id TEXT PRIMARY KEY,
			flow_id TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			built INTEGER NOT NULL DEFAULT 0,
			errored INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_flow_runs_flow_id ON flow_runs (flow_id);
		CREATE INDEX IF NOT EXISTS idx_flow_runs_started_at ON flow_runs (started_at);

		CREATE TABLE IF NOT EXISTS vertex_builds (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			flow_id TEXT NOT NULL,
			vertex_id TEXT NOT NULL,
			valid INTEGER NOT NULL,
			cached INTEGER NOT NULL,
			payload BLOB,
			error TEXT,
			elapsed_ms INTEGER NOT NULL DEFAULT 0,
			timestamp INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vertex_builds_run_id ON vertex_builds (run_id);
		CREATE INDEX IF NOT EXISTS idx_vertex_builds_flow_id ON vertex_builds (flow_id);
		CREATE INDEX IF NOT EXISTS idx_vertex_builds_timestamp ON vertex_builds (timestamp);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// SaveRun inserts or replaces a run record.
func (s *Store) SaveRun(ctx context.Context, run *record.RunRecord) error {
	if err := run.Validate(); err != nil {
		return err
	}
	var finished int64
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO flow_runs (id, flow_id, status, started_at, finished_at, built, errored, skipped, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.FlowID, string(run.Status), run.StartedAt.UnixMilli(), finished,
		run.VerticesBuilt, run.VerticesError, run.VerticesSkip, run.Error)
	if err != nil {
		return fmt.Errorf("%w: %v", record.ErrSaveFailed, err)
	}
	return nil
}

// SaveVertexBuild appends a build record.
func (s *Store) SaveVertexBuild(ctx context.Context, build *record.VertexBuildRecord) error {
	if err := build.Validate(); err != nil {
		return err
	}
	blob, err := s.serializer.Marshal(buildPayload{
		Params:  build.Params,
		Outputs: build.Outputs,
		Logs:    build.Logs,
	})
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", record.ErrSaveFailed, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO vertex_builds (id, run_id, flow_id, vertex_id, valid, cached, payload, error, elapsed_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		build.ID, build.RunID, build.FlowID, build.VertexID,
		boolToInt(build.Valid), boolToInt(build.Cached), blob, build.Error,
		build.ElapsedMS, build.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: %v", record.ErrSaveFailed, err)
	}
	return nil
}

// ListRuns returns matching run records, newest first.
func (s *Store) ListRuns(ctx context.Context, filter record.Filter) ([]*record.RunRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query := "SELECT id, flow_id, status, started_at, finished_at, built, errored, skipped, error FROM flow_runs WHERE 1=1"
	args := make([]interface{}, 0, 4)
	if filter.FlowID != "" {
		query += " AND flow_id = ?"
		args = append(args, filter.FlowID)
	}
	if filter.RunID != "" {
		query += " AND id = ?"
		args = append(args, filter.RunID)
	}
	query, args = appendWindow(query, args, "started_at", filter)
	query += " ORDER BY started_at DESC"
	query, args = appendPage(query, args, filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", record.ErrListFailed, err)
	}
	defer rows.Close()

	var runs []*record.RunRecord
	for rows.Next() {
		var (
			run               record.RunRecord
			status            string
			started, finished int64
		)
		if err := rows.Scan(&run.ID, &run.FlowID, &status, &started, &finished,
			&run.VerticesBuilt, &run.VerticesError, &run.VerticesSkip, &run.Error); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", record.ErrListFailed, err)
		}
		run.Status = record.RunStatus(status)
		run.StartedAt = time.UnixMilli(started)
		if finished > 0 {
			run.FinishedAt = time.UnixMilli(finished)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// ListVertexBuilds returns matching build records, newest first.
func (s *Store) ListVertexBuilds(ctx context.Context, filter record.Filter) ([]*record.VertexBuildRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query := "SELECT id, run_id, flow_id, vertex_id, valid, cached, payload, error, elapsed_ms, timestamp FROM vertex_builds WHERE 1=1"
	args := make([]interface{}, 0, 5)
	if filter.FlowID != "" {
		query += " AND flow_id = ?"
		args = append(args, filter.FlowID)
	}
	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.VertexID != "" {
		query += " AND vertex_id = ?"
		args = append(args, filter.VertexID)
	}
	query, args = appendWindow(query, args, "timestamp", filter)
	query += " ORDER BY timestamp DESC"
	query, args = appendPage(query, args, filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", record.ErrListFailed, err)
	}
	defer rows.Close()

	var builds []*record.VertexBuildRecord
	for rows.Next() {
		var (
			build         record.VertexBuildRecord
			valid, cached int
			blob          []byte
			ts            int64
		)
		if err := rows.Scan(&build.ID, &build.RunID, &build.FlowID, &build.VertexID,
			&valid, &cached, &blob, &build.Error, &build.ElapsedMS, &ts); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", record.ErrListFailed, err)
		}
		build.Valid = valid != 0
		build.Cached = cached != 0
		build.Timestamp = time.UnixMilli(ts)
		if len(blob) > 0 {
			var payload buildPayload
			if err := s.serializer.Unmarshal(blob, &payload); err != nil {
				return nil, fmt.Errorf("%w: decode payload: %v", record.ErrListFailed, err)
			}
			build.Params = payload.Params
			build.Outputs = payload.Outputs
			build.Logs = payload.Logs
		}
		builds = append(builds, &build)
	}
	return builds, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func appendWindow(query string, args []interface{}, column string, f record.Filter) (string, []interface{}) {
	if f.Since != nil {
		query += " AND " + column + " > ?"
		args = append(args, f.Since.UnixMilli())
	}
	if f.Before != nil {
		query += " AND " + column + " < ?"
		args = append(args, f.Before.UnixMilli())
	}
	return query, args
}

func appendPage(query string, args []interface{}, f record.Filter) (string, []interface{}) {
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, f.Offset)
	}
	return query, args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
