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

import (
	"fmt"
	"slices"
	"strings"
)

// FilesDirPlaceholder in MCP server args is replaced with the research
// files directory.
const FilesDirPlaceholder = "{files_dir}"

// MCPConfig lists MCP servers reached over stdio.
//
// Example:
//
//	mcp:
//	  servers:
//	    filesystem:
//	      command: npx
//	      args: ["-y", "@modelcontextprotocol/server-filesystem", "{files_dir}"]
//	    exa:
//	      command: npx
//	      args: ["-y", "mcp-remote", "https://mcp.exa.ai/mcp?exaApiKey=${EXA_API_KEY}"]
//	      filter: [web_search_exa]
type MCPConfig struct {
	Servers map[string]MCPServerConfig `yaml:"servers,omitempty"`
}

// MCPServerConfig describes one stdio MCP server.
type MCPServerConfig struct {
	// Command to launch.
	Command string `yaml:"command"`

	// Args passed to Command.
	Args []string `yaml:"args,omitempty"`

	// Env entries added to the server's environment.
	Env map[string]string `yaml:"env,omitempty"`

	// Filter limits which tools are exposed. Empty exposes all.
	Filter []string `yaml:"filter,omitempty"`

	// Disabled skips the server.
	Disabled bool `yaml:"disabled,omitempty"`
}

// DefaultMCPServers returns the servers used without a config file.
func DefaultMCPServers() map[string]MCPServerConfig {
	return map[string]MCPServerConfig{
		"filesystem": {
			Command: "npx",
			Args:    []string{"-y", "@modelcontextprotocol/server-filesystem", FilesDirPlaceholder},
		},
	}
}

// SetDefaults substitutes the files directory into server args.
func (c *MCPConfig) SetDefaults(filesDir string) {
	for name, srv := range c.Servers {
		args := slices.Clone(srv.Args)
		for i, a := range args {
			args[i] = strings.ReplaceAll(a, FilesDirPlaceholder, filesDir)
		}
		srv.Args = args
		c.Servers[name] = srv
	}
}

// Validate checks the MCP configuration.
func (c *MCPConfig) Validate() error {
	for name, srv := range c.Servers {
		if srv.Command == "" && !srv.Disabled {
			return fmt.Errorf("server %q: command is required", name)
		}
	}
	return nil
}

// Enabled returns the enabled servers sorted by name.
func (c *MCPConfig) Enabled() []string {
	var names []string
	for name, srv := range c.Servers {
		if !srv.Disabled {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// EnvList renders Env as KEY=VALUE pairs sorted by key.
func (c MCPServerConfig) EnvList() []string {
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	slices.Sort(env)
	return env
}
