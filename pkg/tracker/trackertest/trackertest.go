// Package trackertest provides a recording tracker backend for tests.
package trackertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/kadirpekel/crewlink/pkg/tracker"
)

// Backend records every call it receives. Error fields inject failures.
type Backend struct {
	mu sync.Mutex

	// StartErr fails Start when set.
	StartErr error
	// LogErr, when non-nil, is consulted for every Log call with the
	// zero-based call index; a non-nil return fails that call.
	LogErr func(call int) error
	// FinishErr fails Finish when set.
	FinishErr error

	starts   []tracker.StartOptions
	batches  []tracker.Batch
	attempts int
	finishes int
}

// New returns an empty recording backend.
func New() *Backend {
	return &Backend{}
}

// Start records the request and returns a session bound to this backend.
func (b *Backend) Start(_ context.Context, opts tracker.StartOptions) (tracker.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.starts = append(b.starts, opts)
	if b.StartErr != nil {
		return nil, b.StartErr
	}

	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("test-run-%d", len(b.starts))
	}
	return &session{backend: b, name: name}, nil
}

// Starts returns the recorded start requests.
func (b *Backend) Starts() []tracker.StartOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tracker.StartOptions(nil), b.starts...)
}

// Batches returns the successfully submitted batches in order.
func (b *Backend) Batches() []tracker.Batch {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tracker.Batch(nil), b.batches...)
}

// Metrics returns the metric maps of the submitted batches.
func (b *Backend) Metrics() []tracker.Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]tracker.Metrics, len(b.batches))
	for i, batch := range b.batches {
		out[i] = batch.Metrics
	}
	return out
}

// Attempts returns how many Log calls reached the backend, failed or not.
func (b *Backend) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Finishes returns how many times Finish was called.
func (b *Backend) Finishes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finishes
}

type session struct {
	backend *Backend
	name    string
}

func (s *session) Name() string { return s.name }

func (s *session) URL() string { return "test://" + s.name }

func (s *session) Log(_ context.Context, batch tracker.Batch) error {
	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	call := b.attempts
	b.attempts++
	if b.LogErr != nil {
		if err := b.LogErr(call); err != nil {
			return err
		}
	}
	b.batches = append(b.batches, batch)
	return nil
}

func (s *session) Finish(_ context.Context) error {
	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	b.finishes++
	return b.FinishErr
}
