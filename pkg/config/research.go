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

package config

import "fmt"

// ResearchConfig configures the research workflow.
type ResearchConfig struct {
	// Topic and Query are used when the CLI is given none.
	Topic string `yaml:"topic,omitempty"`
	Query string `yaml:"query,omitempty"`

	// FilesDir receives written reports.
	// Default: files
	FilesDir string `yaml:"files_dir,omitempty"`

	// ImagesDir receives generated images.
	// Default: images
	ImagesDir string `yaml:"images_dir,omitempty"`

	// GenerateImage enables the illustration step.
	// Default: true
	GenerateImage *bool `yaml:"generate_image,omitempty"`

	// KeepOutputs skips the cleanup of previous outputs.
	KeepOutputs bool `yaml:"keep_outputs,omitempty"`

	// Agent names the agent in performance metrics.
	// Default: research_analyst
	Agent string `yaml:"agent,omitempty"`

	// SearchTool names the tool used for searching. Any tool from the
	// built-in set or a configured MCP server taking a "query" argument
	// works.
	// Default: web_search
	SearchTool string `yaml:"search_tool,omitempty"`
}

// SetDefaults applies default values to ResearchConfig.
func (c *ResearchConfig) SetDefaults() {
	if c.FilesDir == "" {
		c.FilesDir = "files"
	}
	if c.ImagesDir == "" {
		c.ImagesDir = "images"
	}
	if c.GenerateImage == nil {
		enabled := true
		c.GenerateImage = &enabled
	}
	if c.Agent == "" {
		c.Agent = "research_analyst"
	}
	if c.SearchTool == "" {
		c.SearchTool = "web_search"
	}
}

// Validate checks the research configuration.
func (c *ResearchConfig) Validate() error {
	if c.FilesDir == "" {
		return fmt.Errorf("files_dir is required")
	}
	if c.ImagesDir == "" {
		return fmt.Errorf("images_dir is required")
	}
	return nil
}

// ImagesEnabled reports whether the illustration step runs.
func (c *ResearchConfig) ImagesEnabled() bool {
	return c.GenerateImage == nil || *c.GenerateImage
}
