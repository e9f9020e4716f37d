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

// Package research runs the research workflow: search the web for a topic,
// compose a markdown report, write it, optionally illustrate it, and record
// every step on the run tracker.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/crewlink/pkg/config"
	"github.com/kadirpekel/crewlink/pkg/logger"
	"github.com/kadirpekel/crewlink/pkg/observability"
	"github.com/kadirpekel/crewlink/pkg/report"
	"github.com/kadirpekel/crewlink/pkg/tool"
	"github.com/kadirpekel/crewlink/pkg/tool/filetool"
	"github.com/kadirpekel/crewlink/pkg/tool/imagetool"
	"github.com/kadirpekel/crewlink/pkg/tool/searchtool"
	"github.com/kadirpekel/crewlink/pkg/tracker"
	"github.com/kadirpekel/crewlink/pkg/utils"
)

// KeyWorkflowSuccess and KeyTotalExecutionTime are logged with the final
// counters of a run.
const (
	KeyTotalExecutionTime = "total_execution_time"
	KeyWorkflowSuccess    = "workflow_success"
)

// DefaultMetricNames maps tool names to the metric names used on
// dashboards.
var DefaultMetricNames = map[string]string{
	filetool.WriteFileName: tool.MetricFileWrite,
	searchtool.Name:        tool.MetricWebSearch,
	imagetool.Name:         tool.MetricImageGenerate,
}

// Request is one research job.
type Request struct {
	Topic string `json:"topic"`
	Query string `json:"query"`
}

// Validate checks that both fields are set.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Topic) == "" || strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("topic and query are required")
	}
	return nil
}

// Result is the outcome of a run.
type Result struct {
	Output       report.Output
	Duration     time.Duration
	ToolCalls    int
	ToolFailures int
	Queries      []string
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) {
		w.log = l
	}
}

// WithTokenCounter replaces the token counter used for the report.
// Default: utils.CountTokens with utils.DefaultTokenModel
func WithTokenCounter(count func(string) int) Option {
	return func(w *Workflow) {
		w.countTokens = count
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		w.now = now
	}
}

// WithTracer sets the tracer for workflow and tool spans.
func WithTracer(t trace.Tracer) Option {
	return func(w *Workflow) {
		w.tracer = t
	}
}

// WithMetricNames overrides the tool to metric name mapping. Tools not in
// the map are recorded under their own name.
func WithMetricNames(names map[string]string) Option {
	return func(w *Workflow) {
		w.metricNames = names
	}
}

// Workflow runs research jobs against a tool registry.
type Workflow struct {
	cfg         config.ResearchConfig
	tools       *tool.Registry
	outputs     report.Collector
	metricNames map[string]string
	log         *slog.Logger
	tracer      trace.Tracer
	countTokens func(string) int
	now         func() time.Time
}

// New creates a workflow. The registry must contain write_file and the
// configured search tool; generate_image is optional.
func New(cfg config.ResearchConfig, tools *tool.Registry, opts ...Option) (*Workflow, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tools == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	for _, name := range []string{filetool.WriteFileName, cfg.SearchTool} {
		if _, ok := tools.Get(name); !ok {
			return nil, fmt.Errorf("tool %q is not registered", name)
		}
	}

	w := &Workflow{
		cfg:         cfg,
		tools:       tools,
		metricNames: DefaultMetricNames,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logger.GetLogger()
	}
	if w.tracer == nil {
		w.tracer = observability.Tracer()
	}
	if w.countTokens == nil {
		w.countTokens = func(text string) int {
			return utils.CountTokens(utils.DefaultTokenModel, text)
		}
	}
	w.outputs = report.Collector{FilesDir: cfg.FilesDir, ImagesDir: cfg.ImagesDir, Log: w.log}
	return w, nil
}

// Outputs returns the collector over the workflow's output directories.
func (w *Workflow) Outputs() report.Collector {
	return w.outputs
}

// Queries returns the searches planned for a request: the query itself,
// then the topic's latest developments.
func Queries(req Request) []string {
	return []string{req.Query, req.Topic + " latest developments"}
}

// Slug turns a topic into a file name stem.
func Slug(topic string) string {
	var sb strings.Builder
	underscore := false
	for _, r := range strings.ToLower(topic) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			sb.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && sb.Len() > 0 {
			sb.WriteByte('_')
			underscore = true
		}
	}
	s := strings.TrimSuffix(sb.String(), "_")
	if s == "" {
		return "research"
	}
	return s
}

// Run executes one research job. Tool failures are recorded and never
// abort the run; the run succeeds when the report was written. An error is
// returned only for an invalid request.
func (w *Workflow) Run(ctx context.Context, t *tracker.Tracker, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := w.tracer.Start(ctx, observability.SpanWorkflowRun, trace.WithAttributes(
		attribute.String(observability.AttrTopic, req.Topic),
		attribute.String(observability.AttrQuery, req.Query),
		attribute.String(observability.AttrRunName, t.RunName()),
	))
	defer span.End()

	start := w.now()
	run := &execution{workflow: w, tracker: t}

	w.log.Info("Starting research workflow", "topic", req.Topic, "query", req.Query)

	if !w.cfg.KeepOutputs {
		w.outputs.Cleanup()
	}
	if err := utils.EnsureDirs(w.cfg.FilesDir, w.cfg.ImagesDir); err != nil {
		w.log.Warn("Failed to create output directories", "error", err)
	}

	t.LogHostTelemetry(ctx)

	queries := Queries(req)
	var findings []Finding
	for _, q := range queries {
		res, err := run.call(ctx, w.cfg.SearchTool, map[string]any{"query": q})
		if err != nil {
			findings = append(findings, Finding{Query: q, Text: "Search failed: " + err.Error()})
			continue
		}
		findings = append(findings, Finding{Query: q, Text: tool.ResultText(res)})
	}

	slug := Slug(req.Topic)
	content := Compose(req, findings, w.now())

	reportName := slug + "_research_report.md"
	_, writeErr := run.call(ctx, filetool.WriteFileName, map[string]any{
		"filename": reportName,
		"content":  content,
	})

	if w.cfg.ImagesEnabled() {
		if _, ok := w.tools.Get(imagetool.Name); ok {
			_, _ = run.call(ctx, imagetool.Name, map[string]any{
				"prompt":   fmt.Sprintf("A clean professional diagram illustrating the key concepts of %s", req.Topic),
				"filename": slug + "_diagram",
			})
		} else {
			w.log.Debug("Image tool not available, skipping illustration")
		}
	}

	elapsed := w.now().Sub(start)
	successRate := 0.0
	if run.calls > 0 {
		successRate = float64(run.calls-run.failures) / float64(run.calls)
	}
	t.LogAgentPerformance(ctx, w.cfg.Agent, elapsed, successRate,
		tracker.WithTokensUsed(w.countTokens(content)))

	files, images := w.outputs.Collect()
	success := writeErr == nil

	t.LogResearchProgress(ctx, req.Topic, len(queries), len(files), len(images))
	t.LogMetrics(ctx, tracker.Metrics{
		KeyTotalExecutionTime:           elapsed.Seconds(),
		tracker.KeyFilesGeneratedCount:  len(files),
		tracker.KeyImagesGeneratedCount: len(images),
		KeyWorkflowSuccess:              success,
	})

	if success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.RecordError(writeErr)
		span.SetStatus(codes.Error, "report not written")
	}

	w.log.Info("Research workflow finished",
		"topic", req.Topic,
		"success", success,
		"duration", elapsed,
		"tool_calls", run.calls,
		"tool_failures", run.failures,
		"files", len(files),
		"images", len(images),
	)

	return &Result{
		Output: report.Output{
			Success:         success,
			ResearchTopic:   req.Topic,
			ResearchQuery:   req.Query,
			Result:          content,
			FilesGenerated:  files,
			ImagesGenerated: images,
		},
		Duration:     elapsed,
		ToolCalls:    run.calls,
		ToolFailures: run.failures,
		Queries:      queries,
	}, nil
}

// execution holds the per-run counters.
type execution struct {
	workflow *Workflow
	tracker  *tracker.Tracker
	calls    int
	failures int
}

func (e *execution) call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	w := e.workflow
	raw, ok := w.tools.Get(name)
	if !ok {
		e.calls++
		e.failures++
		err := fmt.Errorf("tool %q is not registered", name)
		w.log.Warn("Tool call failed", "tool", name, "error", err)
		return nil, err
	}

	metric := w.metricNames[name]
	tracked := tool.Track(raw, e.tracker, metric, tool.WithTracer(w.tracer), tool.WithClock(w.now))

	e.calls++
	res, err := tracked.Call(ctx, args)
	if err != nil {
		e.failures++
		w.log.Warn("Tool call failed", "tool", name, "error", err)
		return nil, err
	}
	w.log.Debug("Tool call succeeded", "tool", name)
	return res, nil
}
