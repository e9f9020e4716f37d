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

// Package functiontool creates tools from typed Go functions.
//
// The parameter schema is generated from the struct tags of the argument
// type, so a tool is declared once:
//
//	type WriteArgs struct {
//	    Filename string `json:"filename" jsonschema:"required,description=Name of the file"`
//	    Content  string `json:"content" jsonschema:"required,description=Text to write"`
//	}
//
//	writeTool, err := functiontool.New(
//	    functiontool.Config{Name: "write_file", Description: "Write a file"},
//	    func(ctx context.Context, args WriteArgs) (map[string]any, error) {
//	        return map[string]any{"result": "ok"}, nil
//	    },
//	)
//
// Tools that need a dynamic schema implement tool.CallableTool directly.
package functiontool

import (
	"context"
	"fmt"

	"github.com/kadirpekel/crewlink/pkg/tool"
)

// Config defines the configuration for a function tool.
type Config struct {
	// Name is the unique identifier for this tool (required).
	Name string

	// Description explains what the tool does (required).
	Description string
}

// Func is the typed implementation behind a function tool.
type Func[Args any] func(ctx context.Context, args Args) (map[string]any, error)

// New creates a CallableTool from a typed function. Args is a struct
// with json and jsonschema tags defining the parameters.
func New[Args any](cfg Config, fn Func[Args]) (tool.CallableTool, error) {
	return newFunctionTool(cfg, fn, nil)
}

// NewWithValidation creates a CallableTool that runs validate on the
// decoded arguments before fn. A validation failure is returned as the
// call error.
func NewWithValidation[Args any](cfg Config, fn Func[Args], validate func(Args) error) (tool.CallableTool, error) {
	return newFunctionTool(cfg, fn, validate)
}

func newFunctionTool[Args any](cfg Config, fn Func[Args], validate func(Args) error) (*functionTool[Args], error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %s: function is required", cfg.Name)
	}

	schema, err := generateSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %s: %w", cfg.Name, err)
	}

	return &functionTool[Args]{
		config:   cfg,
		fn:       fn,
		validate: validate,
		schema:   schema,
	}, nil
}

// functionTool implements tool.CallableTool by wrapping a typed function.
type functionTool[Args any] struct {
	config   Config
	fn       Func[Args]
	validate func(Args) error
	schema   map[string]any
}

func (t *functionTool[Args]) Name() string {
	return t.config.Name
}

func (t *functionTool[Args]) Description() string {
	return t.config.Description
}

func (t *functionTool[Args]) Schema() map[string]any {
	return t.schema
}

// Call checks required arguments, decodes args into Args, validates them
// and runs the function.
func (t *functionTool[Args]) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	for _, name := range RequiredArgs(t.schema) {
		if _, ok := args[name]; !ok {
			return nil, fmt.Errorf("invalid arguments for %s: missing required argument %q", t.config.Name, name)
		}
	}

	var typedArgs Args
	if err := mapToStruct(args, &typedArgs); err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", t.config.Name, err)
	}

	if t.validate != nil {
		if err := t.validate(typedArgs); err != nil {
			return nil, fmt.Errorf("validation failed for %s: %w", t.config.Name, err)
		}
	}

	return t.fn(ctx, typedArgs)
}

func validateConfig(cfg Config) error {
	if cfg.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("tool description is required")
	}
	return nil
}

var _ tool.CallableTool = (*functionTool[struct{}])(nil)
