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

package tracker

import (
	"context"
	"maps"
)

// Metrics is a batch of metric name to value. Values are numbers, strings
// or booleans; backends decide how to render each kind.
type Metrics map[string]any

// Batch is one submission to a backend session.
type Batch struct {
	Metrics Metrics

	// Step is the optional step index. Nil means the backend assigns one.
	Step *int
}

// StartOptions describes the run to create.
type StartOptions struct {
	// Entity is the team or user the run belongs to. Optional.
	Entity string

	// Project groups runs. Required.
	Project string

	// Name requests a run name. Backends generate one when empty.
	Name string

	// Config is the run configuration. It is cloned at start and never
	// mutated afterwards.
	Config map[string]any
}

// Backend creates tracking sessions.
type Backend interface {
	Start(ctx context.Context, opts StartOptions) (Session, error)
}

// Session is one run on a backend.
type Session interface {
	// Name returns the run name assigned by the backend.
	Name() string

	// URL returns where the run can be viewed. May be empty.
	URL() string

	// Log submits a batch. Delivery is fire-and-forget from the tracker's
	// point of view.
	Log(ctx context.Context, batch Batch) error

	// Finish flushes and closes the run.
	Finish(ctx context.Context) error
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, opts StartOptions) (Session, error)

// Start calls f.
func (f BackendFunc) Start(ctx context.Context, opts StartOptions) (Session, error) {
	return f(ctx, opts)
}

func cloneConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return nil
	}
	return maps.Clone(cfg)
}

// Float converts a numeric metric value to float64. Booleans map to 0 and
// 1; strings and other kinds report false.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
