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
	"time"
)

// Tracking backend names.
const (
	BackendPrometheus = "prometheus"
	BackendSQL        = "sql"
	BackendNATS       = "nats"
	BackendFile       = "file"
)

// DefaultProject is the project used when none is configured.
const DefaultProject = "mcp-crewlink-research"

// TrackerConfig configures experiment tracking.
//
// Example:
//
//	tracker:
//	  backends: [file, prometheus]
//	  entity: ${WANDB_ENTITY}
//	  project: mcp-crewlink-research
//	  config:
//	    learning_rate: 0.02
type TrackerConfig struct {
	// Backends lists the sinks every run is written to.
	// Default: [file]
	Backends []string `yaml:"backends,omitempty"`

	// Entity is the team or user runs belong to.
	Entity string `yaml:"entity,omitempty"`

	// Project groups runs.
	// Default: mcp-crewlink-research
	Project string `yaml:"project,omitempty"`

	// Name requests a fixed run name. Generated when empty.
	Name string `yaml:"name,omitempty"`

	// Config is the run config. The built-in default is used when empty.
	Config map[string]any `yaml:"config,omitempty"`

	Prometheus PrometheusTrackerConfig `yaml:"prometheus,omitempty"`
	SQL        SQLTrackerConfig        `yaml:"sql,omitempty"`
	NATS       NATSTrackerConfig       `yaml:"nats,omitempty"`
	File       FileTrackerConfig       `yaml:"file,omitempty"`
}

// PrometheusTrackerConfig configures the pull-based metrics backend.
type PrometheusTrackerConfig struct {
	// Namespace prefixes every gauge.
	// Default: crewlink
	Namespace string `yaml:"namespace,omitempty"`

	// Path is where the server exposes the registry.
	// Default: /metrics
	Path string `yaml:"path,omitempty"`

	// RetainedRuns is how many finished runs keep their gauges.
	// Default: 5
	RetainedRuns int `yaml:"retained_runs,omitempty"`
}

// SQLTrackerConfig configures the SQL backend.
type SQLTrackerConfig struct {
	Database DatabaseConfig `yaml:"database,omitempty"`
}

// NATSTrackerConfig configures the messaging backend.
type NATSTrackerConfig struct {
	// URL of the NATS server.
	// Default: nats://127.0.0.1:4222
	URL string `yaml:"url,omitempty"`

	// SubjectPrefix is prepended to every event subject.
	// Default: crewlink.runs
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`

	// ConnectTimeout bounds the initial connection.
	// Default: 5s
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

// FileTrackerConfig configures the offline file backend.
type FileTrackerConfig struct {
	// Dir holds one sub-directory per run.
	// Default: runs
	Dir string `yaml:"dir,omitempty"`
}

// SetDefaults applies default values to TrackerConfig.
func (c *TrackerConfig) SetDefaults() {
	if len(c.Backends) == 0 {
		c.Backends = []string{BackendFile}
	}
	if c.Project == "" {
		c.Project = DefaultProject
	}

	if c.Prometheus.Namespace == "" {
		c.Prometheus.Namespace = "crewlink"
	}
	if c.Prometheus.Path == "" {
		c.Prometheus.Path = "/metrics"
	}
	if c.Prometheus.RetainedRuns == 0 {
		c.Prometheus.RetainedRuns = 5
	}

	if c.Uses(BackendSQL) {
		if c.SQL.Database.Driver == "" {
			c.SQL.Database.Driver = "sqlite"
		}
		if c.SQL.Database.Database == "" && c.SQL.Database.Driver == "sqlite" {
			c.SQL.Database.Database = "crewlink.db"
		}
		c.SQL.Database.SetDefaults()
	}

	if c.NATS.URL == "" {
		c.NATS.URL = "nats://127.0.0.1:4222"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "crewlink.runs"
	}
	if c.NATS.ConnectTimeout == 0 {
		c.NATS.ConnectTimeout = 5 * time.Second
	}

	if c.File.Dir == "" {
		c.File.Dir = "runs"
	}
}

// Validate checks the tracker configuration.
func (c *TrackerConfig) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("project is required")
	}
	for _, b := range c.Backends {
		switch b {
		case BackendPrometheus, BackendNATS, BackendFile:
		case BackendSQL:
			if err := c.SQL.Database.Validate(); err != nil {
				return fmt.Errorf("sql: %w", err)
			}
		default:
			return fmt.Errorf("unknown backend %q (valid: prometheus, sql, nats, file)", b)
		}
	}
	return nil
}

// Uses reports whether the named backend is enabled.
func (c *TrackerConfig) Uses(backend string) bool {
	return slices.Contains(c.Backends, backend)
}
