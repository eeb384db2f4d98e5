// Package db mirrors run records and stage artifacts into PostgreSQL. The
// filesystem run directory stays the source of truth; the mirror exists so
// runs can be browsed and compared without shell access to the run host.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// Run is one mirrored pipeline run.
type Run struct {
	RunUID      string     `json:"run_uid"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ArtifactSummary is a lightweight view of a mirrored artifact.
type ArtifactSummary struct {
	Stage     string    `json:"stage"`
	Path      string    `json:"path"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
}

// Connect establishes a connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the mirror tables when they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS serp_runs (
			run_uid      TEXT PRIMARY KEY,
			status       TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS serp_artifacts (
			run_uid    TEXT NOT NULL REFERENCES serp_runs(run_uid) ON DELETE CASCADE,
			stage      TEXT NOT NULL,
			path       TEXT NOT NULL,
			records    INTEGER NOT NULL DEFAULT 0,
			content    JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_uid, stage)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// UpsertRun records a run and its current status. Re-running a stage of an
// existing run updates the status in place.
func (db *DB) UpsertRun(ctx context.Context, runUID, status string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO serp_runs (run_uid, status)
		 VALUES ($1, $2)
		 ON CONFLICT (run_uid) DO UPDATE SET status = $2`,
		runUID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert run %s: %w", runUID, err)
	}
	return nil
}

// CompleteRun marks a run finished with its terminal status.
func (db *DB) CompleteRun(ctx context.Context, runUID, status string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE serp_runs SET status = $1, completed_at = NOW() WHERE run_uid = $2`,
		status, runUID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", runUID, err)
	}
	return nil
}

// GetRun retrieves a mirrored run, or nil when it was never mirrored.
func (db *DB) GetRun(ctx context.Context, runUID string) (*Run, error) {
	var run Run
	err := db.pool.QueryRow(ctx,
		`SELECT run_uid, status, created_at, completed_at
		 FROM serp_runs WHERE run_uid = $1`,
		runUID,
	).Scan(&run.RunUID, &run.Status, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run %s: %w", runUID, err)
	}
	return &run, nil
}

// ListRuns retrieves recent mirrored runs, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT run_uid, status, created_at, completed_at
		 FROM serp_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.RunUID, &run.Status, &run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// SaveArtifact mirrors one stage artifact. Content is the decoded dataset;
// path and record count are kept so the mirror can point back at the
// authoritative file.
func (db *DB) SaveArtifact(ctx context.Context, runUID, stage, path string, records int, content any) error {
	jsonBytes, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact %s: %w", stage, err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO serp_artifacts (run_uid, stage, path, records, content)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_uid, stage) DO UPDATE SET path = $3, records = $4, content = $5, created_at = NOW()`,
		runUID, stage, path, records, jsonBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", stage, err)
	}
	return nil
}

// GetArtifact retrieves a mirrored artifact's content, or nil when the stage
// was never mirrored for this run.
func (db *DB) GetArtifact(ctx context.Context, runUID, stage string) ([]byte, error) {
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT content FROM serp_artifacts WHERE run_uid = $1 AND stage = $2`,
		runUID, stage,
	).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact %s: %w", stage, err)
	}
	return content, nil
}

// ListArtifacts retrieves the artifact summaries of one run in stage order.
func (db *DB) ListArtifacts(ctx context.Context, runUID string) ([]ArtifactSummary, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT stage, path, records, created_at
		 FROM serp_artifacts WHERE run_uid = $1 ORDER BY created_at ASC`,
		runUID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []ArtifactSummary
	for rows.Next() {
		var a ArtifactSummary
		if err := rows.Scan(&a.Stage, &a.Path, &a.Records, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}
