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

// Package runtime assembles the tools, tracking backends and research
// workflow described by a configuration.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/crewlink/pkg/config"
	"github.com/kadirpekel/crewlink/pkg/httpclient"
	"github.com/kadirpekel/crewlink/pkg/logger"
	"github.com/kadirpekel/crewlink/pkg/research"
	"github.com/kadirpekel/crewlink/pkg/server"
	"github.com/kadirpekel/crewlink/pkg/tool"
	"github.com/kadirpekel/crewlink/pkg/tool/filetool"
	"github.com/kadirpekel/crewlink/pkg/tool/imagetool"
	"github.com/kadirpekel/crewlink/pkg/tool/mcptoolset"
	"github.com/kadirpekel/crewlink/pkg/tool/searchtool"
	"github.com/kadirpekel/crewlink/pkg/tracker"
	"github.com/kadirpekel/crewlink/pkg/tracker/backends"
	"github.com/kadirpekel/crewlink/pkg/tracker/promtrack"
)

type options struct {
	log     *slog.Logger
	tracer  trace.Tracer
	version string
	now     func() time.Time
	dialers map[string]mcptoolset.Dialer
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithTracer sets the tracer for workflow and tool spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithVersion sets the version announced to MCP servers.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithMCPDialer replaces the subprocess launch of the named MCP server.
func WithMCPDialer(name string, d mcptoolset.Dialer) Option {
	return func(o *options) {
		if o.dialers == nil {
			o.dialers = make(map[string]mcptoolset.Dialer)
		}
		o.dialers[name] = d
	}
}

// Runtime holds everything built from one configuration.
type Runtime struct {
	cfg      *config.Config
	log      *slog.Logger
	now      func() time.Time
	tools    *tool.Registry
	toolsets []*mcptoolset.Toolset
	trackers *backends.Set
	workflow *research.Workflow
}

// New builds a runtime. MCP servers that cannot be reached are logged and
// skipped; their tools are simply unavailable.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	o := options{version: "dev", now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.GetLogger()
	}

	r := &Runtime{cfg: cfg, log: o.log, now: o.now}

	builtins, err := BuiltinTools(cfg, o.log)
	if err != nil {
		return nil, err
	}
	if r.tools, err = tool.NewRegistry(builtins...); err != nil {
		return nil, err
	}

	for _, name := range cfg.MCP.Enabled() {
		r.addMCPServer(ctx, name, cfg.MCP.Servers[name], o)
	}

	if r.trackers, err = backends.Build(ctx, cfg.Tracker, o.log); err != nil {
		r.closeToolsets()
		return nil, fmt.Errorf("failed to create tracking backends: %w", err)
	}

	wfOpts := []research.Option{research.WithLogger(o.log), research.WithClock(o.now)}
	if o.tracer != nil {
		wfOpts = append(wfOpts, research.WithTracer(o.tracer))
	}
	if r.workflow, err = research.New(cfg.Research, r.tools, wfOpts...); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to create research workflow: %w", err)
	}

	o.log.Debug("Runtime ready",
		"tools", r.tools.Names(),
		"backends", r.trackers.Names,
	)
	return r, nil
}

// BuiltinTools creates write_file, web_search and, when images are
// enabled, generate_image.
func BuiltinTools(cfg *config.Config, log *slog.Logger) ([]tool.CallableTool, error) {
	httpOpts := []httpclient.Option{
		httpclient.WithTimeout(cfg.Tools.HTTP.Timeout),
		httpclient.WithMaxRetries(cfg.Tools.HTTP.MaxRetries),
		httpclient.WithBaseDelay(cfg.Tools.HTTP.BaseDelay),
		httpclient.WithLogger(log),
	}

	writeFile, err := filetool.NewWriteFile(filetool.WriteFileConfig{Dir: cfg.Research.FilesDir})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filetool.WriteFileName, err)
	}

	search, err := searchtool.New(searchtool.Config{
		APIKey:  cfg.Tools.Search.APIKey,
		BaseURL: cfg.Tools.Search.BaseURL,
		Count:   cfg.Tools.Search.Count,
		Show:    cfg.Tools.Search.Show,
		Client: httpclient.New(append(httpOpts,
			httpclient.WithHeaderParser(httpclient.ParseBraveHeaders))...),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", searchtool.Name, err)
	}

	tools := []tool.CallableTool{writeFile, search}
	if !cfg.Research.ImagesEnabled() {
		return tools, nil
	}

	image, err := imagetool.New(imagetool.Config{
		APIKey:       cfg.Tools.Image.APIKey,
		Organization: cfg.Tools.Image.Organization,
		BaseURL:      cfg.Tools.Image.BaseURL,
		Dir:          cfg.Research.ImagesDir,
		Model:        cfg.Tools.Image.Model,
		Size:         cfg.Tools.Image.Size,
		Quality:      cfg.Tools.Image.Quality,
		Client: httpclient.New(append(httpOpts,
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders))...),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", imagetool.Name, err)
	}
	return append(tools, image), nil
}

// addMCPServer registers the tools of one server. Built-in tools keep
// their names; a remote tool with the same name is skipped.
func (r *Runtime) addMCPServer(ctx context.Context, name string, srv config.MCPServerConfig, o options) {
	tsOpts := []mcptoolset.Option{mcptoolset.WithLogger(o.log), mcptoolset.WithVersion(o.version)}
	if d, ok := o.dialers[name]; ok {
		tsOpts = append(tsOpts, mcptoolset.WithDialer(d))
	}

	ts, err := mcptoolset.New(mcptoolset.FromConfig(name, srv), tsOpts...)
	if err != nil {
		o.log.Warn("MCP server skipped", "server", name, "error", err)
		return
	}

	remote, err := ts.Tools(ctx)
	if err != nil {
		o.log.Warn("MCP server unavailable", "server", name, "error", err)
		return
	}
	r.toolsets = append(r.toolsets, ts)

	for _, t := range remote {
		ct, ok := t.(tool.CallableTool)
		if !ok {
			continue
		}
		if _, exists := r.tools.Get(ct.Name()); exists {
			o.log.Debug("MCP tool shadowed by existing tool", "server", name, "tool", ct.Name())
			continue
		}
		if err := r.tools.Register(ct); err != nil {
			o.log.Warn("MCP tool not registered", "server", name, "tool", ct.Name(), "error", err)
		}
	}
}

// Config returns the configuration the runtime was built from.
func (r *Runtime) Config() *config.Config {
	return r.cfg
}

// Tools returns the tool registry.
func (r *Runtime) Tools() *tool.Registry {
	return r.tools
}

// Workflow returns the research workflow.
func (r *Runtime) Workflow() *research.Workflow {
	return r.workflow
}

// Backend returns the fan-out tracking backend.
func (r *Runtime) Backend() tracker.Backend {
	return r.trackers.Backend
}

// Backends lists the tracking backends that were built.
func (r *Runtime) Backends() []string {
	return r.trackers.Names
}

// Prometheus returns the prometheus backend, or nil when it is not
// configured.
func (r *Runtime) Prometheus() *promtrack.Backend {
	return r.trackers.Prometheus
}

// StartOptions describes a run from the tracker section. The built-in run
// config is used when none is configured.
func (r *Runtime) StartOptions() tracker.StartOptions {
	runConfig := r.cfg.Tracker.Config
	if len(runConfig) == 0 {
		runConfig = tracker.DefaultConfig(r.now())
	}
	return tracker.StartOptions{
		Entity:  r.cfg.Tracker.Entity,
		Project: r.cfg.Tracker.Project,
		Name:    r.cfg.Tracker.Name,
		Config:  runConfig,
	}
}

// TrackerOptions returns the options every tracker should be opened with.
func (r *Runtime) TrackerOptions() []tracker.Option {
	return []tracker.Option{tracker.WithLogger(r.log), tracker.WithClock(r.now)}
}

// Server returns the part of the HTTP server backed by this runtime.
func (r *Runtime) Server() server.Runtime {
	return server.Runtime{
		Workflow:       r.workflow,
		Backend:        r.Backend(),
		Start:          r.StartOptions,
		TrackerOptions: r.TrackerOptions(),
	}
}

// Close stops MCP servers and releases tracking backends.
func (r *Runtime) Close(ctx context.Context) error {
	errs := []error{r.closeToolsets()}
	if r.trackers != nil {
		errs = append(errs, r.trackers.Close(ctx))
	}
	return errors.Join(errs...)
}

func (r *Runtime) closeToolsets() error {
	var errs []error
	for _, ts := range r.toolsets {
		if err := ts.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mcp server %s: %w", ts.Name(), err))
		}
	}
	r.toolsets = nil
	return errors.Join(errs...)
}
