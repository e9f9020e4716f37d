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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kadirpekel/crewlink/pkg/logger"
	"github.com/kadirpekel/crewlink/pkg/observability"
	"github.com/kadirpekel/crewlink/pkg/research"
	"github.com/kadirpekel/crewlink/pkg/runtime"
	"github.com/kadirpekel/crewlink/pkg/tool"
	"github.com/kadirpekel/crewlink/pkg/tool/mcpserver"
	"github.com/kadirpekel/crewlink/pkg/tracker"
	"github.com/kadirpekel/crewlink/pkg/tracker/backends"
)

// MCPCmd serves the built-in tools to MCP clients over stdin/stdout.
// Stdout carries the protocol, so logs and stdout traces go to stderr.
type MCPCmd struct {
	Tools []string `help:"Tools to expose (default: all built-in tools)." placeholder:"NAME"`
	Track bool     `help:"Record tool usage in a tracked run for the lifetime of the server."`
}

func (c *MCPCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := cli.setup(ctx, nil, observability.WithStdoutWriter(os.Stderr))
	if err != nil {
		return err
	}
	defer a.close(ctx)
	log := logger.GetLogger()

	builtins, err := runtime.BuiltinTools(a.cfg, log)
	if err != nil {
		return err
	}
	allow := tool.AllowAll()
	if len(c.Tools) > 0 {
		allow = tool.StringPredicate(c.Tools)
	}

	var rec tool.UsageRecorder
	if c.Track {
		set, err := backends.Build(ctx, a.cfg.Tracker, log)
		if err != nil {
			return fmt.Errorf("failed to create tracking backends: %w", err)
		}
		defer set.Close(context.WithoutCancel(ctx))

		runConfig := a.cfg.Tracker.Config
		if len(runConfig) == 0 {
			runConfig = tracker.DefaultConfig(time.Now())
		}
		t := tracker.Open(ctx, set.Backend, tracker.StartOptions{
			Entity:  a.cfg.Tracker.Entity,
			Project: a.cfg.Tracker.Project,
			Name:    a.cfg.Tracker.Name,
			Config:  runConfig,
		}, tracker.WithLogger(log))
		defer t.Finish(context.WithoutCancel(ctx))
		rec = t
	}

	tracer := a.obs.Tracer(tracerName)
	var exposed []tool.CallableTool
	for _, t := range builtins {
		if !allow(t) {
			continue
		}
		exposed = append(exposed, tool.Track(t, rec, research.DefaultMetricNames[t.Name()], tool.WithTracer(tracer)))
	}
	if len(exposed) == 0 {
		return fmt.Errorf("no tools selected (available: write_file, web_search, generate_image)")
	}

	srv, err := mcpserver.New(exposed,
		mcpserver.WithVersion(version()),
		mcpserver.WithLogger(log),
	)
	if err != nil {
		return err
	}

	log.Info("MCP stdio server ready", "tools", len(exposed))
	return mcpserver.ServeStdio(ctx, srv, os.Stdin, os.Stdout, log)
}
