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

// Package promtrack is a tracking backend that exposes run metrics for
// Prometheus to scrape.
//
// Every numeric metric key becomes an OpenTelemetry observable gauge
// labelled with the project and run. The gauges are exported through the
// OpenTelemetry Prometheus exporter into a private registry, served by
// Handler. Only active runs and the most recently finished ones are
// reported, so the series count stays bounded on long-lived servers.
package promtrack

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kadirpekel/crewlink/pkg/logger"
	"github.com/kadirpekel/crewlink/pkg/tracker"
)

// DefaultNamespace prefixes every exported metric.
const DefaultNamespace = "crewlink"

// DefaultRetainedRuns is how many finished runs keep their gauges.
const DefaultRetainedRuns = 5

const meterName = "github.com/kadirpekel/crewlink/pkg/tracker/promtrack"

// Label names attached to every sample.
const (
	LabelProject = "project"
	LabelRun     = "run"
	LabelEntity  = "entity"
)

// Option configures the backend.
type Option func(*Backend)

// WithNamespace sets the metric name prefix.
func WithNamespace(ns string) Option {
	return func(b *Backend) {
		b.namespace = ns
	}
}

// WithRetainedRuns sets how many finished runs stay visible. Older
// finished runs stop being reported. Negative values are treated as 0.
func WithRetainedRuns(n int) Option {
	return func(b *Backend) {
		b.retain = max(n, 0)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		b.log = l
	}
}

// Backend creates sessions whose metrics are served to Prometheus.
type Backend struct {
	namespace string
	log       *slog.Logger

	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	runsStarted  metric.Int64Counter
	runsFinished metric.Int64Counter
	batches      metric.Int64Counter

	// instMu guards instrument creation. It is never held while mu is.
	instMu sync.Mutex
	gauges map[string]metric.Float64ObservableGauge

	// mu guards the values read by gauge callbacks.
	mu       sync.Mutex
	retain   int
	runs     map[*session]map[string]float64
	finished []*session
}

// New creates a backend with its own registry.
func New(opts ...Option) (*Backend, error) {
	b := &Backend{
		namespace: DefaultNamespace,
		registry:  prometheus.NewRegistry(),
		retain:    DefaultRetainedRuns,
		gauges:    make(map[string]metric.Float64ObservableGauge),
		runs:      make(map[*session]map[string]float64),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.GetLogger()
	}

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(b.registry),
		otelprom.WithNamespace(b.namespace),
		otelprom.WithoutTargetInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	b.provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	b.meter = b.provider.Meter(meterName)

	if b.runsStarted, err = b.meter.Int64Counter("runs_started",
		metric.WithDescription("Tracking runs started")); err != nil {
		return nil, fmt.Errorf("failed to create runs started counter: %w", err)
	}
	if b.runsFinished, err = b.meter.Int64Counter("runs_finished",
		metric.WithDescription("Tracking runs finished")); err != nil {
		return nil, fmt.Errorf("failed to create runs finished counter: %w", err)
	}
	if b.batches, err = b.meter.Int64Counter("metric_batches",
		metric.WithDescription("Metric batches logged")); err != nil {
		return nil, fmt.Errorf("failed to create batches counter: %w", err)
	}

	return b, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{Registry: b.registry})
}

// Registry returns the private registry.
func (b *Backend) Registry() *prometheus.Registry {
	return b.registry
}

// Shutdown stops the meter provider.
func (b *Backend) Shutdown(ctx context.Context) error {
	return b.provider.Shutdown(ctx)
}

// Start registers a run. Runs are named like other backends so the same
// name shows up in every sink.
func (b *Backend) Start(ctx context.Context, opts tracker.StartOptions) (tracker.Session, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("project is required")
	}

	name := tracker.RunName(opts.Name, tracker.NewRunID())
	attrs := []attribute.KeyValue{
		attribute.String(LabelProject, opts.Project),
		attribute.String(LabelRun, name),
	}
	if opts.Entity != "" {
		attrs = append(attrs, attribute.String(LabelEntity, opts.Entity))
	}

	project := metric.WithAttributes(attribute.String(LabelProject, opts.Project))
	s := &session{
		backend: b,
		name:    name,
		attrs:   metric.WithAttributeSet(attribute.NewSet(attrs...)),
		project: project,
	}

	b.mu.Lock()
	b.runs[s] = make(map[string]float64)
	b.mu.Unlock()

	b.runsStarted.Add(ctx, 1, project)

	b.log.Debug("Prometheus run registered", "run", name, "project", opts.Project)
	return s, nil
}

// ensureGauge registers the observable gauge for an instrument name once.
func (b *Backend) ensureGauge(name string) error {
	b.instMu.Lock()
	defer b.instMu.Unlock()

	if _, ok := b.gauges[name]; ok {
		return nil
	}
	g, err := b.meter.Float64ObservableGauge(name,
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			b.observe(name, o)
			return nil
		}))
	if err != nil {
		return err
	}
	b.gauges[name] = g
	return nil
}

func (b *Backend) observe(name string, o metric.Float64Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s, values := range b.runs {
		if v, ok := values[name]; ok {
			o.Observe(v, s.attrs)
		}
	}
}

func (b *Backend) record(s *session, name string, v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if values, ok := b.runs[s]; ok {
		values[name] = v
	}
}

// finish marks a run finished and evicts the oldest finished runs beyond
// the retention limit.
func (b *Backend) finish(s *session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.runs[s]; !ok {
		return
	}
	b.finished = append(b.finished, s)
	for len(b.finished) > b.retain {
		delete(b.runs, b.finished[0])
		b.finished = b.finished[1:]
	}
}

// Runs returns how many runs currently have reported gauges.
func (b *Backend) Runs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.runs)
}

type session struct {
	backend *Backend
	name    string
	attrs   metric.MeasurementOption
	project metric.MeasurementOption
	done    sync.Once
}

func (s *session) Name() string { return s.name }

// URL is empty; the run is visible wherever the registry is scraped.
func (s *session) URL() string { return "" }

// Log sets one gauge per numeric key. String values have no Prometheus
// representation and are skipped.
func (s *session) Log(ctx context.Context, batch tracker.Batch) error {
	keys := make([]string, 0, len(batch.Metrics))
	for k := range batch.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, ok := tracker.Float(batch.Metrics[k])
		if !ok {
			s.backend.log.Debug("Skipping non-numeric metric", "run", s.name, "key", k)
			continue
		}
		name := MetricName(k)
		if err := s.backend.ensureGauge(name); err != nil {
			return fmt.Errorf("metric %s: %w", k, err)
		}
		s.backend.record(s, name, v)
	}

	s.backend.batches.Add(ctx, 1, s.project)
	return nil
}

func (s *session) Finish(ctx context.Context) error {
	s.done.Do(func() {
		s.backend.finish(s)
		s.backend.runsFinished.Add(ctx, 1, s.project)
	})
	return nil
}

// MetricName converts a metric key into a valid instrument name.
func MetricName(key string) string {
	name := tracker.SanitizeKey(key)
	if c := name[0]; !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
		name = "m" + name
	}
	return name
}

var _ tracker.Backend = (*Backend)(nil)
