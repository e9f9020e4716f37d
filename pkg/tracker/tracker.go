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

// Package tracker wraps an experiment-tracking session.
//
// A Tracker owns at most one active session. Every logging call is either
// forwarded to the backend immediately or dropped; nothing is buffered and
// nothing is retried. Tracking failures never reach the caller: they are
// logged at WARN and the workflow carries on.
//
// # Lifecycle
//
//	Uninitialized --Start--> Active --Finish--> Finished
//
// Calls made outside Active are no-ops that emit exactly one warning.
//
// # Scoped use
//
//	err := tracker.Run(ctx, backend, tracker.StartOptions{Project: "research"},
//	    func(ctx context.Context, t *tracker.Tracker) error {
//	        t.LogMetrics(ctx, tracker.Metrics{"acc": 0.9})
//	        return doWork(ctx)
//	    })
//
// Run finishes the session on every exit path, including panics.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kadirpekel/crewlink/pkg/logger"
)

// State is the lifecycle state of a Tracker.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Tracker manages one tracking session at a time.
type Tracker struct {
	backend Backend
	probe   HostProbe
	log     *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	state   State
	session Session
	config  map[string]any
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used for tracking warnings.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

// WithHostProbe replaces the host telemetry source.
func WithHostProbe(p HostProbe) Option {
	return func(t *Tracker) {
		if p != nil {
			t.probe = p
		}
	}
}

// WithClock overrides time.Now, used for the default run config timestamp.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates a Tracker in the Uninitialized state.
func New(backend Backend, opts ...Option) *Tracker {
	t := &Tracker{
		backend: backend,
		probe:   SystemProbe{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = logger.GetLogger()
	}
	return t
}

// Open creates a Tracker and starts a session right away.
func Open(ctx context.Context, backend Backend, start StartOptions, opts ...Option) *Tracker {
	t := New(backend, opts...)
	t.Start(ctx, start)
	return t
}

// Start requests a new session from the backend. Failures are logged and
// leave the state unchanged.
func (t *Tracker) Start(ctx context.Context, opts StartOptions) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateActive {
		t.log.Warn("Tracking run already active, ignoring start", "run", t.session.Name())
		return
	}
	if opts.Project == "" {
		t.log.Warn("Failed to start tracking run", "error", "project is required")
		return
	}
	if t.backend == nil {
		t.log.Warn("Failed to start tracking run", "error", "no backend configured")
		return
	}

	if opts.Config == nil {
		opts.Config = DefaultConfig(t.now())
	} else {
		opts.Config = cloneConfig(opts.Config)
	}

	session, err := t.backend.Start(ctx, opts)
	if err != nil {
		t.log.Warn("Failed to start tracking run", "project", opts.Project, "error", err)
		return
	}
	if session == nil {
		t.log.Warn("Failed to start tracking run", "project", opts.Project, "error", "backend returned no session")
		return
	}

	t.session = session
	t.config = opts.Config
	t.state = StateActive

	t.log.Info("Tracking run started", "run", session.Name(), "url", session.URL())
}

// LogOption configures a LogMetrics call.
type LogOption func(*Batch)

// WithStep tags the batch with a step index.
func WithStep(step int) LogOption {
	return func(b *Batch) {
		b.Step = &step
	}
}

// LogMetrics forwards a batch to the active session.
func (t *Tracker) LogMetrics(ctx context.Context, metrics Metrics, opts ...LogOption) {
	batch := Batch{Metrics: metrics}
	for _, opt := range opts {
		opt(&batch)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateActive {
		t.log.Warn("Tracker not active, skipping metric logging", "state", t.state.String())
		return
	}

	if err := t.session.Log(ctx, batch); err != nil {
		t.log.Warn("Failed to log metrics", "run", t.session.Name(), "error", err)
	}
}

// Finish closes the active session. The tracker ends up Finished even when
// the backend reports an error.
func (t *Tracker) Finish(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateActive {
		t.log.Warn("No active tracking run to finish", "state", t.state.String())
		return
	}

	name := t.session.Name()
	err := t.session.Finish(ctx)
	t.state = StateFinished
	if err != nil {
		t.log.Warn("Error finishing tracking run", "run", name, "error", err)
		return
	}
	t.log.Info("Tracking run finished", "run", name)
}

// Close finishes the session. It implements io.Closer and always returns nil.
func (t *Tracker) Close() error {
	t.Finish(context.Background())
	return nil
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Active reports whether a session is active.
func (t *Tracker) Active() bool {
	return t.State() == StateActive
}

// RunName returns the backend-assigned name of the current or last session.
func (t *Tracker) RunName() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return ""
	}
	return t.session.Name()
}

// RunURL returns the URL of the current or last session.
func (t *Tracker) RunURL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return ""
	}
	return t.session.URL()
}

// Config returns a copy of the run config.
func (t *Tracker) Config() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneConfig(t.config)
}

// Run starts a session, calls fn, and finishes the session on every exit
// path. fn's error is returned unchanged; a panic in fn is re-raised after
// the session is finished.
func Run(ctx context.Context, backend Backend, start StartOptions, fn func(context.Context, *Tracker) error, opts ...Option) error {
	t := Open(ctx, backend, start, opts...)
	defer t.Finish(context.WithoutCancel(ctx))
	return fn(ctx, t)
}

// DefaultConfig is the run config used when none is supplied.
func DefaultConfig(now time.Time) map[string]any {
	return map[string]any{
		"framework":    "crewlink",
		"mcp_version":  "1.0.0",
		"project_type": "AI_Agent_Research",
		"tools_count":  3,
		"timestamp":    now.Format(time.RFC3339),
		"environment":  "development",
	}
}
