// Package postgres persists run history in PostgreSQL over a pgx
// connection pool. Schema mirrors the SQLite adapter with native
// timestamps and a BYTEA payload column.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowengine/flowengine/internal/core/artifact"
	"github.com/flowengine/flowengine/internal/core/record"
	"github.com/flowengine/flowengine/pkg/serialization"
)

// Store implements record.Store on PostgreSQL.
type Store struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
}

type buildPayload struct {
	Params  map[string]interface{} `msgpack:"params"`
	Outputs map[string]interface{} `msgpack:"outputs"`
	Logs    []artifact.LogEntry    `msgpack:"logs"`
}

// NewStore wraps an open connection pool. A nil serializer defaults to
// msgpack with zstd compression.
func NewStore(pool *pgxpool.Pool, serializer *serialization.Serializer) *Store {
	if serializer == nil {
		serializer = serialization.Default()
	}
	return &Store{pool: pool, serializer: serializer}
}

// Connect creates a pool from a connection string and prepares the schema.
func Connect(ctx context.Context, connString string, serializer *serialization.Serializer) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := NewStore(pool, serializer)
	if err := s.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// CreateTables prepares the schema. Idempotent.
func (s *Store) CreateTables(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS flow_runs (
			id VARCHAR(64) PRIMARY KEY,
			flow_id VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			built INTEGER NOT NULL DEFAULT 0,
			errored INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_flow_runs_flow_id ON flow_runs (flow_id);
		CREATE INDEX IF NOT EXISTS idx_flow_runs_started_at ON flow_runs (started_at);

		CREATE TABLE IF NOT EXISTS vertex_builds (
			id VARCHAR(64) PRIMARY KEY,
			run_id VARCHAR(64) NOT NULL,
			flow_id VARCHAR(255) NOT NULL,
			vertex_id VARCHAR(255) NOT NULL,
			valid BOOLEAN NOT NULL,
			cached BOOLEAN NOT NULL,
			payload BYTEA,
			error TEXT NOT NULL DEFAULT '',
			elapsed_ms BIGINT NOT NULL DEFAULT 0,
			timestamp TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vertex_builds_run_id ON vertex_builds (run_id);
		CREATE INDEX IF NOT EXISTS idx_vertex_builds_flow_id ON vertex_builds (flow_id);
		CREATE INDEX IF NOT EXISTS idx_vertex_builds_timestamp ON vertex_builds (timestamp);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// SaveRun inserts or updates a run record.
func (s *Store) SaveRun(ctx context.Context, run *record.RunRecord) error {
	if err := run.Validate(); err != nil {
		return err
	}
	var finished *time.Time
	if !run.FinishedAt.IsZero() {
		finished = &run.FinishedAt
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO flow_runs (id, flow_id, status, started_at, finished_at, built, errored, skipped, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at,
			built = EXCLUDED.built,
			errored = EXCLUDED.errored,
			skipped = EXCLUDED.skipped,
			error = EXCLUDED.error`,
		run.ID, run.FlowID, string(run.Status), run.StartedAt, finished,
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO vertex_builds (id, run_id, flow_id, vertex_id, valid, cached, payload, error, elapsed_ms, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		build.ID, build.RunID, build.FlowID, build.VertexID,
		build.Valid, build.Cached, blob, build.Error, build.ElapsedMS, build.Timestamp)
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
		args = append(args, filter.FlowID)
		query += fmt.Sprintf(" AND flow_id = $%d", len(args))
	}
	if filter.RunID != "" {
		args = append(args, filter.RunID)
		query += fmt.Sprintf(" AND id = $%d", len(args))
	}
	query, args = appendWindow(query, args, "started_at", filter)
	query += " ORDER BY started_at DESC"
	query, args = appendPage(query, args, filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", record.ErrListFailed, err)
	}
	defer rows.Close()

	var runs []*record.RunRecord
	for rows.Next() {
		var (
			run      record.RunRecord
			status   string
			finished *time.Time
		)
		if err := rows.Scan(&run.ID, &run.FlowID, &status, &run.StartedAt, &finished,
			&run.VerticesBuilt, &run.VerticesError, &run.VerticesSkip, &run.Error); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", record.ErrListFailed, err)
		}
		run.Status = record.RunStatus(status)
		if finished != nil {
			run.FinishedAt = *finished
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
		args = append(args, filter.FlowID)
		query += fmt.Sprintf(" AND flow_id = $%d", len(args))
	}
	if filter.RunID != "" {
		args = append(args, filter.RunID)
		query += fmt.Sprintf(" AND run_id = $%d", len(args))
	}
	if filter.VertexID != "" {
		args = append(args, filter.VertexID)
		query += fmt.Sprintf(" AND vertex_id = $%d", len(args))
	}
	query, args = appendWindow(query, args, "timestamp", filter)
	query += " ORDER BY timestamp DESC"
	query, args = appendPage(query, args, filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", record.ErrListFailed, err)
	}
	defer rows.Close()

	var builds []*record.VertexBuildRecord
	for rows.Next() {
		var (
			build record.VertexBuildRecord
			blob  []byte
		)
		if err := rows.Scan(&build.ID, &build.RunID, &build.FlowID, &build.VertexID,
			&build.Valid, &build.Cached, &blob, &build.Error, &build.ElapsedMS, &build.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", record.ErrListFailed, err)
		}
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

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func appendWindow(query string, args []interface{}, column string, f record.Filter) (string, []interface{}) {
	if f.Since != nil {
		args = append(args, *f.Since)
		query += fmt.Sprintf(" AND %s > $%d", column, len(args))
	}
	if f.Before != nil {
		args = append(args, *f.Before)
		query += fmt.Sprintf(" AND %s < $%d", column, len(args))
	}
	return query, args
}

func appendPage(query string, args []interface{}, f record.Filter) (string, []interface{}) {
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
