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

// Package mcptoolset provides a Toolset for MCP servers launched as
// subprocesses and reached over stdio.
//
// The toolset connects lazily: the process is spawned and the tool list
// fetched when Tools is first called. A failed connection is not cached;
// the next call tries again.
package mcptoolset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/crewlink/pkg/config"
	"github.com/kadirpekel/crewlink/pkg/logger"
	"github.com/kadirpekel/crewlink/pkg/tool"
)

// ClientName is announced to servers during initialization.
const ClientName = "crewlink"

// Client is the subset of the mcp-go client the toolset uses.
type Client interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer creates a started client.
type Dialer func(ctx context.Context) (Client, error)

// Config describes one MCP server.
type Config struct {
	// Name identifies the server in logs and errors.
	Name string

	// Command and Args launch the server.
	Command string
	Args    []string

	// Env entries are added to the server's environment.
	Env map[string]string

	// Filter limits the exposed tools. Empty exposes all.
	Filter []string
}

// FromConfig converts a configured server.
func FromConfig(name string, srv config.MCPServerConfig) Config {
	return Config{
		Name:    name,
		Command: srv.Command,
		Args:    srv.Args,
		Env:     srv.Env,
		Filter:  srv.Filter,
	}
}

// Option configures a Toolset.
type Option func(*Toolset)

// WithDialer replaces the stdio subprocess launch.
func WithDialer(d Dialer) Option {
	return func(t *Toolset) {
		t.dial = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Toolset) {
		t.log = l
	}
}

// WithVersion sets the client version announced to servers.
func WithVersion(v string) Option {
	return func(t *Toolset) {
		t.version = v
	}
}

// Toolset wraps the tools of one MCP server.
type Toolset struct {
	cfg     Config
	allow   tool.Predicate
	dial    Dialer
	log     *slog.Logger
	version string

	mu     sync.Mutex
	client Client
	tools  []tool.Tool
}

// New creates a Toolset. Nothing is started until Tools is called.
func New(cfg Config, opts ...Option) (*Toolset, error) {
	t := &Toolset{
		cfg:     cfg,
		allow:   tool.StringPredicate(cfg.Filter),
		version: "dev",
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.dial == nil {
		if cfg.Command == "" {
			return nil, fmt.Errorf("mcp server %q: command is required", cfg.Name)
		}
		t.dial = t.dialStdio
	}
	if t.log == nil {
		t.log = logger.GetLogger()
	}
	return t, nil
}

// Name returns the server name.
func (t *Toolset) Name() string {
	return t.cfg.Name
}

// Tools connects on first use and returns the exposed tools.
func (t *Toolset) Tools(ctx context.Context) ([]tool.Tool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		if err := t.connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to MCP server %s: %w", t.cfg.Name, err)
		}
	}
	return t.tools, nil
}

// dialStdio spawns the server. The mcp-go stdio client starts the
// subprocess itself, so Start is not called.
func (t *Toolset) dialStdio(ctx context.Context) (Client, error) {
	env := make([]string, 0, len(t.cfg.Env))
	for k, v := range t.cfg.Env {
		env = append(env, k+"="+v)
	}

	c, err := client.NewStdioMCPClient(t.cfg.Command, env, t.cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", t.cfg.Command, err)
	}
	return c, nil
}

func (t *Toolset) connect(ctx context.Context) error {
	c, err := t.dial(ctx)
	if err != nil {
		return err
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: ClientName, Version: t.version}

	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to initialize MCP: %w", err)
	}

	listResp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to list tools: %w", err)
	}

	var tools []tool.Tool
	for _, mt := range listResp.Tools {
		w := &remoteTool{
			toolset: t,
			name:    mt.Name,
			desc:    mt.Description,
			schema:  convertSchema(mt),
		}
		if !t.allow(w) {
			continue
		}
		tools = append(tools, w)
	}

	t.client = c
	t.tools = tools

	t.log.Info("Connected to MCP server",
		"name", t.cfg.Name,
		"command", t.cfg.Command,
		"tools", len(tools),
	)
	return nil
}

// Close stops the server process.
func (t *Toolset) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	t.tools = nil
	return err
}

func (t *Toolset) currentClient() Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client
}

// remoteTool wraps an MCP tool as tool.CallableTool.
type remoteTool struct {
	toolset *Toolset
	name    string
	desc    string
	schema  map[string]any
}

func (w *remoteTool) Name() string { return w.name }

func (w *remoteTool) Description() string { return w.desc }

func (w *remoteTool) Schema() map[string]any { return w.schema }

// Call invokes the remote tool. A result flagged as an error by the
// server is returned as an error.
func (w *remoteTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	c := w.toolset.currentClient()
	if c == nil {
		return nil, fmt.Errorf("MCP server %s not connected", w.toolset.Name())
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = w.name
	req.Params.Arguments = args

	resp, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("MCP call failed: %w", err)
	}
	return parseToolResponse(resp)
}

func parseToolResponse(resp *mcp.CallToolResult) (map[string]any, error) {
	var texts []string
	for _, content := range resp.Content {
		if text, ok := content.(mcp.TextContent); ok {
			texts = append(texts, text.Text)
		}
	}

	if resp.IsError {
		if len(texts) == 0 {
			return nil, errors.New("MCP tool reported an unknown error")
		}
		return nil, errors.New(strings.Join(texts, "\n"))
	}

	result := make(map[string]any)
	switch len(texts) {
	case 0:
	case 1:
		result["result"] = texts[0]
	default:
		result["results"] = texts
	}
	return result, nil
}

func convertSchema(mt mcp.Tool) map[string]any {
	var data []byte
	if len(mt.RawInputSchema) > 0 {
		data = mt.RawInputSchema
	} else {
		var err error
		if data, err = json.Marshal(mt.InputSchema); err != nil {
			return nil
		}
	}

	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil
	}
	return schema
}

var (
	_ tool.Toolset      = (*Toolset)(nil)
	_ tool.CallableTool = (*remoteTool)(nil)
	_ Client            = (*client.Client)(nil)
)
