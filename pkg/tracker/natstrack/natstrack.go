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

// Package natstrack is a tracking backend that publishes run events to NATS.
//
// Events are JSON documents published on
//
//	<prefix>.<project>.<run>.start
//	<prefix>.<project>.<run>.metrics
//	<prefix>.<project>.<run>.finish
//
// Project and run tokens are sanitized so they never contain subject
// separators or wildcards.
package natstrack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kadirpekel/crewlink/pkg/config"
	"github.com/kadirpekel/crewlink/pkg/logger"
	"github.com/kadirpekel/crewlink/pkg/tracker"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "crewlink.runs"

// Event types.
const (
	EventStart   = "start"
	EventMetrics = "metrics"
	EventFinish  = "finish"
)

// Publisher is the subset of *nats.Conn the backend uses.
type Publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// Event is the payload of every published message.
type Event struct {
	Type    string          `json:"type"`
	Project string          `json:"project"`
	Entity  string          `json:"entity,omitempty"`
	Run     string          `json:"run"`
	RunID   string          `json:"run_id"`
	Time    time.Time       `json:"time"`
	Step    *int            `json:"step,omitempty"`
	Config  map[string]any  `json:"config,omitempty"`
	Metrics tracker.Metrics `json:"metrics,omitempty"`
}

// Option configures the backend.
type Option func(*Backend)

// WithSubjectPrefix sets the subject prefix.
func WithSubjectPrefix(prefix string) Option {
	return func(b *Backend) {
		b.prefix = strings.Trim(prefix, ".")
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		b.log = l
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// Backend publishes run events.
type Backend struct {
	pub    Publisher
	conn   *nats.Conn
	prefix string
	log    *slog.Logger
	now    func() time.Time
}

// New creates a backend publishing through pub.
func New(pub Publisher, opts ...Option) (*Backend, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	b := &Backend{
		pub:    pub,
		prefix: DefaultSubjectPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.GetLogger()
	}
	if b.prefix == "" {
		b.prefix = DefaultSubjectPrefix
	}
	return b, nil
}

// Connect dials the configured server. The connection is owned by the
// backend and drained by Close.
func Connect(cfg config.NATSTrackerConfig, opts ...Option) (*Backend, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("crewlink-tracker"),
		nats.Timeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	b, err := New(nc, append([]Option{WithSubjectPrefix(cfg.SubjectPrefix)}, opts...)...)
	if err != nil {
		nc.Close()
		return nil, err
	}
	b.conn = nc
	return b, nil
}

// Close drains the connection opened by Connect.
func (b *Backend) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Drain()
}

// Subject returns the subject of an event type for a run.
func (b *Backend) Subject(project, run, event string) string {
	return strings.Join([]string{b.prefix, tracker.SanitizeKey(project), tracker.SanitizeKey(run), event}, ".")
}

// Start publishes the start event.
func (b *Backend) Start(ctx context.Context, opts tracker.StartOptions) (tracker.Session, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("project is required")
	}

	id := tracker.NewRunID()
	s := &session{
		backend: b,
		id:      id,
		name:    tracker.RunName(opts.Name, id),
		project: opts.Project,
		entity:  opts.Entity,
	}

	if err := s.publish(EventStart, Event{Config: opts.Config}); err != nil {
		return nil, err
	}
	return s, nil
}

type session struct {
	backend *Backend
	id      string
	name    string
	project string
	entity  string

	mu   sync.Mutex
	next int
}

func (s *session) Name() string { return s.name }

func (s *session) URL() string {
	return "nats://" + s.backend.Subject(s.project, s.name, "*")
}

// Log publishes one metrics event. Batches without a step are numbered
// after the last step published.
func (s *session) Log(ctx context.Context, batch tracker.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.next
	if batch.Step != nil {
		step = *batch.Step
	}
	if err := s.publish(EventMetrics, Event{Step: &step, Metrics: batch.Metrics}); err != nil {
		return err
	}
	s.next = step + 1
	return nil
}

// Finish publishes the finish event and flushes the connection.
func (s *session) Finish(ctx context.Context) error {
	if err := s.publish(EventFinish, Event{}); err != nil {
		return err
	}
	if err := s.backend.pub.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	return nil
}

func (s *session) publish(kind string, ev Event) error {
	ev.Type = kind
	ev.Project = s.project
	ev.Entity = s.entity
	ev.Run = s.name
	ev.RunID = s.id
	ev.Time = s.backend.now().UTC()

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", kind, err)
	}

	subject := s.backend.Subject(s.project, s.name, kind)
	if err := s.backend.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	s.backend.log.Debug("Published run event", "subject", subject, "bytes", len(data))
	return nil
}

var (
	_ tracker.Backend = (*Backend)(nil)
	_ Publisher       = (*nats.Conn)(nil)
)
