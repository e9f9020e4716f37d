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

package functiontool_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/crewlink/pkg/tool/functiontool"
)

func TestNew_Schema(t *testing.T) {
	type SimpleArgs struct {
		Name string `json:"name" jsonschema:"required,description=User name"`
		Age  int    `json:"age,omitempty" jsonschema:"description=User age,minimum=0,maximum=150"`
	}

	greet, err := functiontool.New(
		functiontool.Config{Name: "greet", Description: "Greet a user"},
		func(ctx context.Context, args SimpleArgs) (map[string]any, error) {
			return map[string]any{"result": fmt.Sprintf("Hello, %s!", args.Name)}, nil
		},
	)
	require.NoError(t, err)

	assert.Equal(t, "greet", greet.Name())
	assert.Equal(t, "Greet a user", greet.Description())

	schema := greet.Schema()
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "name")
	assert.Contains(t, props, "age")

	age := props["age"].(map[string]any)
	assert.Equal(t, float64(0), age["minimum"])
	assert.Equal(t, float64(150), age["maximum"])

	assert.Equal(t, []string{"name"}, functiontool.RequiredArgs(schema))
}

func TestCall_DecodesArgs(t *testing.T) {
	type MathArgs struct {
		A int `json:"a" jsonschema:"required"`
		B int `json:"b" jsonschema:"required"`
	}

	add, err := functiontool.New(
		functiontool.Config{Name: "add", Description: "Add two numbers"},
		func(ctx context.Context, args MathArgs) (map[string]any, error) {
			return map[string]any{"sum": args.A + args.B}, nil
		},
	)
	require.NoError(t, err)

	// JSON numbers arrive as float64.
	result, err := add.Call(context.Background(), map[string]any{"a": float64(5), "b": 3})
	require.NoError(t, err)
	assert.Equal(t, 8, result["sum"])
}

func TestCall_MissingRequired(t *testing.T) {
	type Args struct {
		Query string `json:"query" jsonschema:"required"`
		Limit int    `json:"limit,omitempty"`
	}

	called := false
	search, err := functiontool.New(
		functiontool.Config{Name: "search", Description: "Search"},
		func(ctx context.Context, args Args) (map[string]any, error) {
			called = true
			return nil, nil
		},
	)
	require.NoError(t, err)

	_, err = search.Call(context.Background(), map[string]any{"limit": 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required argument "query"`)
	assert.False(t, called)
}

func TestCall_WrongType(t *testing.T) {
	type Args struct {
		Count int `json:"count"`
	}

	counter, err := functiontool.New(
		functiontool.Config{Name: "count", Description: "Count"},
		func(ctx context.Context, args Args) (map[string]any, error) {
			return nil, nil
		},
	)
	require.NoError(t, err)

	_, err = counter.Call(context.Background(), map[string]any{"count": "many"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments for count")
}

func TestNewWithValidation(t *testing.T) {
	type PathArgs struct {
		Path string `json:"path" jsonschema:"required,description=File path"`
	}

	read, err := functiontool.NewWithValidation(
		functiontool.Config{Name: "read", Description: "Read a file"},
		func(ctx context.Context, args PathArgs) (map[string]any, error) {
			return map[string]any{"path": args.Path}, nil
		},
		func(args PathArgs) error {
			if strings.Contains(args.Path, "..") {
				return errors.New("path traversal not allowed")
			}
			return nil
		},
	)
	require.NoError(t, err)

	result, err := read.Call(context.Background(), map[string]any{"path": "notes.md"})
	require.NoError(t, err)
	assert.Equal(t, "notes.md", result["path"])

	_, err = read.Call(context.Background(), map[string]any{"path": "../../etc/passwd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal not allowed")
}

func TestNew_InvalidConfig(t *testing.T) {
	type Args struct{}
	fn := func(ctx context.Context, args Args) (map[string]any, error) { return nil, nil }

	_, err := functiontool.New(functiontool.Config{Description: "no name"}, fn)
	assert.Error(t, err)

	_, err = functiontool.New(functiontool.Config{Name: "no_description"}, fn)
	assert.Error(t, err)

	_, err = functiontool.New[Args](functiontool.Config{Name: "x", Description: "y"}, nil)
	assert.Error(t, err)
}

func TestCall_PassesContext(t *testing.T) {
	type Args struct{}
	type key struct{}

	probe, err := functiontool.New(
		functiontool.Config{Name: "probe", Description: "Reads the context"},
		func(ctx context.Context, args Args) (map[string]any, error) {
			return map[string]any{"value": ctx.Value(key{})}, nil
		},
	)
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), key{}, "v")
	result, err := probe.Call(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "v", result["value"])
}
