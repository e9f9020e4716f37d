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

// Package mcpserver exposes callable tools as an MCP server.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kadirpekel/crewlink/pkg/logger"
	"github.com/kadirpekel/crewlink/pkg/tool"
)

// DefaultName is the server name announced during initialization.
const DefaultName = "crewlink"

type options struct {
	name    string
	version string
	log     *slog.Logger
}

// Option configures the server.
type Option func(*options)

// WithName sets the announced server name.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithVersion sets the announced server version.
func WithVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

// WithLogger sets the logger for call failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New creates an MCP server with every tool registered.
func New(tools []tool.CallableTool, opts ...Option) (*server.MCPServer, error) {
	o := options{name: DefaultName, version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.GetLogger()
	}

	s := server.NewMCPServer(
		o.name,
		o.version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	for _, t := range tools {
		def, err := Definition(t)
		if err != nil {
			return nil, err
		}
		s.AddTool(def, Handler(t, o.log))
	}
	return s, nil
}

// Definition converts a tool into its MCP definition.
func Definition(t tool.CallableTool) (mcp.Tool, error) {
	schema := t.Schema()
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("tool %s: failed to marshal schema: %w", t.Name(), err)
	}
	return mcp.NewToolWithRawSchema(t.Name(), t.Description(), raw), nil
}

// Handler adapts a tool to an MCP tool handler. Tool failures are
// reported to the client as error results, not protocol errors.
func Handler(t tool.CallableTool, log *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := t.Call(ctx, request.GetArguments())
		if err != nil {
			if log != nil {
				log.Warn("MCP tool call failed", "tool", t.Name(), "error", err)
			}
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(tool.ResultText(result)), nil
	}
}

// ServeStdio serves s over the given streams until ctx is done or the
// input is closed.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer, log *slog.Logger) error {
	stdio := server.NewStdioServer(s)
	if log != nil {
		stdio.SetErrorLogger(slog.NewLogLogger(log.Handler(), slog.LevelError))
	}
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}
