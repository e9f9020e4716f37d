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

package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager owns the tracer provider for the lifetime of a command.
type Manager struct {
	config Config
	opts   []TracerOption

	mu             sync.RWMutex
	tracerProvider trace.TracerProvider
}

func NewManager(cfg Config, opts ...TracerOption) *Manager {
	return &Manager{
		config:         cfg,
		opts:           opts,
		tracerProvider: noop.NewTracerProvider(),
	}
}

func (m *Manager) Initialize(ctx context.Context) error {
	tp, err := InitTracer(ctx, m.config.Tracing, m.opts...)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.tracerProvider = tp
	m.mu.Unlock()
	return nil
}

func (m *Manager) Tracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracerProvider.Tracer(name)
}

// Shutdown flushes pending spans.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	tp := m.tracerProvider
	m.mu.RUnlock()

	if s, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
		return s.Shutdown(ctx)
	}
	return nil
}
