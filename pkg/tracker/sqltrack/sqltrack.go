// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqltrack is a tracking backend that stores runs and metric
// history in PostgreSQL, MySQL or SQLite.
package sqltrack

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/crewlink/pkg/config"
	"github.com/kadirpekel/crewlink/pkg/tracker"
)

// Run states.
const (
	StateRunning  = "running"
	StateFinished = "finished"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tracker_runs (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    project VARCHAR(255) NOT NULL,
    entity VARCHAR(255),
    config TEXT,
    state VARCHAR(32) NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NULL
)`,
	`CREATE TABLE IF NOT EXISTS tracker_metrics (
    run_id VARCHAR(64) NOT NULL,
    step INTEGER NOT NULL,
    metric_key VARCHAR(255) NOT NULL,
    num_value DOUBLE PRECISION,
    text_value TEXT,
    logged_at TIMESTAMP NOT NULL
)`,
}

// indexes use syntax MySQL lacks; they are created on the other dialects.
var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_tracker_runs_project ON tracker_runs(project)`,
	`CREATE INDEX IF NOT EXISTS idx_tracker_metrics_run ON tracker_metrics(run_id, step)`,
}

// Backend stores runs in a SQL database.
type Backend struct {
	db      *sql.DB
	dialect config.DatabaseConfig
	now     func() time.Time
}

// Option configures the backend.
type Option func(*Backend)

// WithClock replaces time.Now for stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// New creates a backend on db and initializes the schema. dialect is
// "postgres", "mysql" or "sqlite".
func New(ctx context.Context, db *sql.DB, dialect string, opts ...Option) (*Backend, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	switch dialect {
	case "postgres", "mysql", "sqlite", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	b := &Backend{
		db:      db,
		dialect: config.DatabaseConfig{Driver: dialect},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return b, nil
}

// Open gets a connection from pool and creates a backend on it.
func Open(ctx context.Context, pool *config.DBPool, cfg *config.DatabaseConfig, opts ...Option) (*Backend, error) {
	db, err := pool.Get(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(ctx, db, cfg.Driver, opts...)
}

func (b *Backend) initSchema(ctx context.Context) error {
	stmts := schema
	if b.dialect.Driver != "mysql" {
		stmts = append(append([]string{}, schema...), indexes...)
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// bind rewrites ? placeholders for the dialect.
func (b *Backend) bind(query string) string {
	if b.dialect.Driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString(b.dialect.Placeholder(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Start inserts a run row.
func (b *Backend) Start(ctx context.Context, opts tracker.StartOptions) (tracker.Session, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("project is required")
	}

	cfg, err := json.Marshal(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run config: %w", err)
	}

	id := tracker.NewRunID()
	name := tracker.RunName(opts.Name, id)

	_, err = b.db.ExecContext(ctx, b.bind(`
INSERT INTO tracker_runs (id, name, project, entity, config, state, started_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
		id, name, opts.Project, opts.Entity, string(cfg), StateRunning, b.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return &session{backend: b, id: id, name: name}, nil
}

type session struct {
	backend *Backend
	id      string
	name    string

	mu   sync.Mutex
	next int
}

func (s *session) Name() string { return s.name }

func (s *session) URL() string { return "sql://tracker_runs/" + s.id }

// Log writes one row per metric in a single transaction. Batches without
// a step get the next step after the last one written.
func (s *session) Log(ctx context.Context, batch tracker.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.next
	if batch.Step != nil {
		step = *batch.Step
	}

	keys := make([]string, 0, len(batch.Metrics))
	for k := range batch.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.backend.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := s.backend.bind(`
INSERT INTO tracker_metrics (run_id, step, metric_key, num_value, text_value, logged_at)
VALUES (?, ?, ?, ?, ?, ?)`)
	now := s.backend.now().UTC()

	for _, k := range keys {
		var num sql.NullFloat64
		var text sql.NullString
		if f, ok := tracker.Float(batch.Metrics[k]); ok {
			num = sql.NullFloat64{Float64: f, Valid: true}
		} else {
			text = sql.NullString{String: fmt.Sprint(batch.Metrics[k]), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, query, s.id, step, k, num, text, now); err != nil {
			return fmt.Errorf("failed to insert metric %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metrics: %w", err)
	}
	s.next = step + 1
	return nil
}

func (s *session) Finish(ctx context.Context) error {
	_, err := s.backend.db.ExecContext(ctx, s.backend.bind(
		`UPDATE tracker_runs SET state = ?, finished_at = ? WHERE id = ?`),
		StateFinished, s.backend.now().UTC(), s.id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// Run is a stored run.
type Run struct {
	ID      string
	Name    string
	Project string
	Entity  string
	State   string
	Config  map[string]any
}

// Point is one stored metric value.
type Point struct {
	Step  int
	Key   string
	Value any
}

// Runs lists the runs of a project, oldest first.
func (b *Backend) Runs(ctx context.Context, project string) ([]Run, error) {
	rows, err := b.db.QueryContext(ctx, b.bind(`
SELECT id, name, project, entity, state, config FROM tracker_runs
WHERE project = ? ORDER BY started_at, id`), project)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var entity, cfg sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.Project, &entity, &r.State, &cfg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Entity = entity.String
		if cfg.Valid && cfg.String != "" && cfg.String != "null" {
			if err := json.Unmarshal([]byte(cfg.String), &r.Config); err != nil {
				return nil, fmt.Errorf("failed to decode config of run %s: %w", r.ID, err)
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// History returns the metrics of a run ordered by step and key.
func (b *Backend) History(ctx context.Context, runID string) ([]Point, error) {
	rows, err := b.db.QueryContext(ctx, b.bind(`
SELECT step, metric_key, num_value, text_value FROM tracker_metrics
WHERE run_id = ? ORDER BY step, metric_key`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		var num sql.NullFloat64
		var text sql.NullString
		if err := rows.Scan(&p.Step, &p.Key, &num, &text); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		if num.Valid {
			p.Value = num.Float64
		} else {
			p.Value = text.String
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

var _ tracker.Backend = (*Backend)(nil)
