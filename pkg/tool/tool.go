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

// Package tool defines the tools the research workflow invokes.
//
// Tools are capabilities such as writing a file, searching the web or
// generating an image. Built-in tools are created with functiontool;
// remote tools come from MCP servers through mcptoolset.
//
//	Tool (base)
//	  └── CallableTool - synchronous execution with a JSON schema
//
// Every call can be timed and recorded with Track:
//
//	search := tool.Track(searchtool.New(cfg), run, tool.MetricWebSearch)
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Metric names used when recording tool usage.
const (
	MetricFileWrite     = "file_write"
	MetricWebSearch     = "web_search"
	MetricImageGenerate = "image_generate"
)

// Tool defines the base interface for a tool.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string
}

// CallableTool extends Tool with synchronous execution.
type CallableTool interface {
	Tool

	// Call executes the tool with the given arguments.
	// Returns the result as a map and any error that occurred.
	Call(ctx context.Context, args map[string]any) (map[string]any, error)

	// Schema returns the JSON schema for the tool's parameters.
	// Returns nil if the tool takes no parameters.
	Schema() map[string]any
}

// Toolset groups related tools and resolves them lazily.
type Toolset interface {
	// Name returns the name of this toolset.
	Name() string

	// Tools returns the available tools, connecting on first use.
	Tools(ctx context.Context) ([]Tool, error)
}

// Predicate determines whether a tool is exposed.
type Predicate func(tool Tool) bool

// StringPredicate creates a Predicate that allows only named tools.
// An empty list allows every tool.
func StringPredicate(allowedTools []string) Predicate {
	if len(allowedTools) == 0 {
		return AllowAll()
	}
	allowed := make(map[string]bool, len(allowedTools))
	for _, name := range allowedTools {
		allowed[name] = true
	}

	return func(tool Tool) bool {
		return allowed[tool.Name()]
	}
}

// AllowAll returns a Predicate that allows all tools.
func AllowAll() Predicate {
	return func(tool Tool) bool {
		return true
	}
}

// Definition describes a tool for listings and MCP registration.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToDefinition converts a tool to a Definition.
func ToDefinition(t Tool) Definition {
	def := Definition{
		Name:        t.Name(),
		Description: t.Description(),
	}
	if ct, ok := t.(CallableTool); ok {
		def.Parameters = ct.Schema()
	}
	return def
}

// ResultText extracts the text of a tool result. Tools put their primary
// output under "result"; MCP tools returning several text blocks use
// "results". Anything else is rendered as JSON.
func ResultText(result map[string]any) string {
	if result == nil {
		return ""
	}
	if s, ok := result["result"].(string); ok {
		return s
	}
	switch texts := result["results"].(type) {
	case []string:
		return strings.Join(texts, "\n")
	case []any:
		lines := make([]string, 0, len(texts))
		for _, t := range texts {
			lines = append(lines, fmt.Sprint(t))
		}
		return strings.Join(lines, "\n")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprint(result)
	}
	return string(data)
}

// Registry holds callable tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]CallableTool
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...CallableTool) (*Registry, error) {
	r := &Registry{tools: make(map[string]CallableTool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(t CallableTool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (CallableTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Tools returns the registered tools sorted by name.
func (r *Registry) Tools() []CallableTool {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]CallableTool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

// AddToolset resolves a toolset and registers the tools it exposes that
// are callable.
func (r *Registry) AddToolset(ctx context.Context, ts Toolset) error {
	tools, err := ts.Tools(ctx)
	if err != nil {
		return fmt.Errorf("toolset %s: %w", ts.Name(), err)
	}
	for _, t := range tools {
		ct, ok := t.(CallableTool)
		if !ok {
			continue
		}
		if err := r.Register(ct); err != nil {
			return fmt.Errorf("toolset %s: %w", ts.Name(), err)
		}
	}
	return nil
}
