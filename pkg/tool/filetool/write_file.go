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

// Package filetool provides the write_file tool.
package filetool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kadirpekel/crewlink/pkg/tool"
	"github.com/kadirpekel/crewlink/pkg/tool/functiontool"
)

// WriteFileName is the tool name.
const WriteFileName = "write_file"

// DefaultMaxFileSize caps the content written by one call.
const DefaultMaxFileSize = 1 << 20

// WriteFileArgs defines the parameters for writing a file.
type WriteFileArgs struct {
	Filename string `json:"filename" jsonschema:"required,description=Name of the file to write inside the files directory"`
	Content  string `json:"content" jsonschema:"required,description=Content to write to the file"`
}

// WriteFileConfig defines configuration for the write_file tool.
type WriteFileConfig struct {
	// Dir receives the files. Created on demand.
	// Default: files
	Dir string

	// MaxFileSize in bytes.
	// Default: 1 MiB
	MaxFileSize int
}

// NewWriteFile creates the write_file tool.
func NewWriteFile(cfg WriteFileConfig) (tool.CallableTool, error) {
	if cfg.Dir == "" {
		cfg.Dir = "files"
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}

	return functiontool.NewWithValidation(
		functiontool.Config{
			Name:        WriteFileName,
			Description: "Write content to a file in the files directory",
		},
		func(ctx context.Context, args WriteFileArgs) (map[string]any, error) {
			return writeFile(cfg, args)
		},
		func(args WriteFileArgs) error {
			if err := ValidateFilename(args.Filename); err != nil {
				return err
			}
			if len(args.Content) > cfg.MaxFileSize {
				return fmt.Errorf("content too large: %d bytes (max: %d)", len(args.Content), cfg.MaxFileSize)
			}
			return nil
		},
	)
}

func writeFile(cfg WriteFileConfig, args WriteFileArgs) (map[string]any, error) {
	path := filepath.Join(cfg.Dir, filepath.Clean(args.Filename))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	_, statErr := os.Stat(path)
	existed := statErr == nil

	if err := os.WriteFile(path, []byte(args.Content), 0o644); err != nil {
		return nil, fmt.Errorf("error writing file: %w", err)
	}

	return map[string]any{
		"result":       fmt.Sprintf("Successfully wrote content to %s", args.Filename),
		"path":         path,
		"size":         len(args.Content),
		"file_existed": existed,
	}, nil
}

// ValidateFilename rejects names that would escape the target directory.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("filename is required")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return fmt.Errorf("absolute paths not allowed, use a relative filename")
	}

	cleaned := filepath.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return fmt.Errorf("directory traversal not allowed (..)")
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return fmt.Errorf("directory traversal not allowed (..)")
		}
	}
	return nil
}
