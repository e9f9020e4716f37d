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

// Package config loads crewlink configuration from YAML or TOML files.
//
// Values may reference the environment with ${VAR}, ${VAR:-default} or
// $VAR; references are expanded before decoding. Every section has
// SetDefaults and Validate methods, which Loader applies in that order.
package config

import (
	"fmt"

	"github.com/kadirpekel/crewlink/pkg/observability"
)

// Config is the root configuration.
type Config struct {
	// Logger configures process logging.
	Logger LoggerConfig `yaml:"logger,omitempty"`

	// Tracker configures the experiment-tracking backends.
	Tracker TrackerConfig `yaml:"tracker,omitempty"`

	// Research configures the research workflow.
	Research ResearchConfig `yaml:"research,omitempty"`

	// Tools configures the built-in tools.
	Tools ToolsConfig `yaml:"tools,omitempty"`

	// MCP lists external MCP servers.
	MCP MCPConfig `yaml:"mcp,omitempty"`

	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server,omitempty"`

	// Observability configures tracing.
	Observability observability.Config `yaml:"observability,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		MCP: MCPConfig{Servers: DefaultMCPServers()},
	}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	c.Logger.SetDefaults()
	c.Tracker.SetDefaults()
	c.Research.SetDefaults()
	c.Tools.SetDefaults()
	c.MCP.SetDefaults(c.Research.FilesDir)
	c.Server.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"logger", c.Logger.Validate},
		{"tracker", c.Tracker.Validate},
		{"research", c.Research.Validate},
		{"tools", c.Tools.Validate},
		{"mcp", c.MCP.Validate},
		{"server", c.Server.Validate},
		{"observability", c.Observability.Validate},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("%s: %w", check.name, err)
		}
	}
	return nil
}
