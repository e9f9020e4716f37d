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

package tool

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/crewlink/pkg/observability"
)

// UsageRecorder records one tool invocation. *tracker.Tracker satisfies it.
type UsageRecorder interface {
	LogToolUsage(ctx context.Context, tool string, elapsed time.Duration, success bool)
}

// TrackOption configures Track.
type TrackOption func(*tracked)

// WithTracer sets the tracer used for tool spans.
// Default: observability.Tracer()
func WithTracer(t trace.Tracer) TrackOption {
	return func(tt *tracked) {
		tt.tracer = t
	}
}

// WithClock replaces time.Now for elapsed time measurement.
func WithClock(now func() time.Time) TrackOption {
	return func(tt *tracked) {
		tt.now = now
	}
}

// Track wraps t so that every call is timed, recorded on rec under metric
// and traced. A call counts as successful when it returns a nil error.
// The record is written on every exit path, including a panic, which is
// re-raised afterwards. A nil rec only traces.
func Track(t CallableTool, rec UsageRecorder, metric string, opts ...TrackOption) CallableTool {
	if metric == "" {
		metric = t.Name()
	}
	tt := &tracked{
		CallableTool: t,
		rec:          rec,
		metric:       metric,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(tt)
	}
	if tt.tracer == nil {
		tt.tracer = observability.Tracer()
	}
	return tt
}

type tracked struct {
	CallableTool
	rec    UsageRecorder
	metric string
	tracer trace.Tracer
	now    func() time.Time
}

func (t *tracked) Call(ctx context.Context, args map[string]any) (result map[string]any, err error) {
	ctx, span := t.tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(attribute.String(observability.AttrToolName, t.Name())),
	)
	start := t.now()
	success := false

	defer func() {
		elapsed := t.now().Sub(start)
		span.SetAttributes(attribute.Bool(observability.AttrToolSuccess, success))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if t.rec != nil {
			t.rec.LogToolUsage(ctx, t.metric, elapsed, success)
		}
	}()

	result, err = t.CallableTool.Call(ctx, args)
	success = err == nil
	return result, err
}

// Unwrap returns the wrapped tool.
func (t *tracked) Unwrap() CallableTool {
	return t.CallableTool
}
