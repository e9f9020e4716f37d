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

// Package filetrack is an offline tracking backend. Each run gets a
// directory holding
//
//	config.yaml     run identity and configuration
//	metrics.jsonl   one JSON line per logged batch
//	summary.json    last value of every key, written at finish
package filetrack

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/crewlink/pkg/tracker"
)

// File names inside a run directory.
const (
	ConfigFile  = "config.yaml"
	MetricsFile = "metrics.jsonl"
	SummaryFile = "summary.json"
)

// Reserved keys added to every metrics line.
const (
	StepKey      = "_step"
	TimestampKey = "_timestamp"
)

// RunConfig is the content of config.yaml.
type RunConfig struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	Project   string         `yaml:"project"`
	Entity    string         `yaml:"entity,omitempty"`
	StartedAt time.Time      `yaml:"started_at"`
	Config    map[string]any `yaml:"config,omitempty"`
}

// Option configures the backend.
type Option func(*Backend)

// WithClock replaces time.Now for timestamps and directory names.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// Backend writes runs under a root directory.
type Backend struct {
	dir string
	now func() time.Time
}

// New creates a backend rooted at dir. The directory is created on the
// first Start.
func New(dir string, opts ...Option) (*Backend, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory is required")
	}
	b := &Backend{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Dir returns the root directory.
func (b *Backend) Dir() string {
	return b.dir
}

// Start creates the run directory and writes config.yaml.
func (b *Backend) Start(ctx context.Context, opts tracker.StartOptions) (tracker.Session, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("project is required")
	}

	id := tracker.NewRunID()
	started := b.now()
	rc := RunConfig{
		ID:        id,
		Name:      tracker.RunName(opts.Name, id),
		Project:   opts.Project,
		Entity:    opts.Entity,
		StartedAt: started.UTC(),
		Config:    opts.Config,
	}

	runDir := filepath.Join(b.dir, tracker.SanitizeKey(opts.Project),
		fmt.Sprintf("run-%s-%s", started.UTC().Format("20060102_150405"), id))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := yaml.Marshal(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, ConfigFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write run config: %w", err)
	}

	return &session{
		backend: b,
		dir:     runDir,
		name:    rc.Name,
		summary: make(map[string]any),
	}, nil
}

type session struct {
	backend *Backend
	dir     string
	name    string

	mu      sync.Mutex
	next    int
	summary map[string]any
}

func (s *session) Name() string { return s.name }

func (s *session) URL() string {
	if abs, err := filepath.Abs(s.dir); err == nil {
		return "file://" + abs
	}
	return "file://" + s.dir
}

// Log appends one line to metrics.jsonl.
func (s *session) Log(ctx context.Context, batch tracker.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.next
	if batch.Step != nil {
		step = *batch.Step
	}

	line := make(map[string]any, len(batch.Metrics)+2)
	maps.Copy(line, batch.Metrics)
	line[StepKey] = step
	line[TimestampKey] = float64(s.backend.now().UnixMilli()) / 1000

	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(s.dir, MetricsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open metrics file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append metrics: %w", err)
	}

	maps.Copy(s.summary, line)
	s.next = step + 1
	return nil
}

// Finish writes summary.json.
func (s *session) Finish(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, SummaryFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// ReadRun loads config.yaml and the metric lines of a run directory.
func ReadRun(dir string) (*RunConfig, []map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read run config: %w", err)
	}
	var rc RunConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse run config: %w", err)
	}

	f, err := os.Open(filepath.Join(dir, MetricsFile))
	if os.IsNotExist(err) {
		return &rc, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open metrics file: %w", err)
	}
	defer f.Close()

	var lines []map[string]any
	dec := json.NewDecoder(f)
	for dec.More() {
		var line map[string]any
		if err := dec.Decode(&line); err != nil {
			return nil, nil, fmt.Errorf("failed to parse metrics line %d: %w", len(lines)+1, err)
		}
		lines = append(lines, line)
	}
	return &rc, lines, nil
}

var _ tracker.Backend = (*Backend)(nil)
