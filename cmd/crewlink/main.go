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

// Command crewlink runs tracked research workflows.
//
// Usage:
//
//	crewlink research --topic "Quantum Computing" --query "error correction"
//	crewlink serve --config crewlink.yaml --watch
//	crewlink demo --epochs 10
//	crewlink check
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/crewlink/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Research ResearchCmd `cmd:"" help:"Run one tracked research job."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API."`
	MCP      MCPCmd      `cmd:"" name:"mcp" help:"Serve the built-in tools over MCP stdio."`
	Demo     DemoCmd     `cmd:"" help:"Log a simulated training run to the tracking backends."`
	Cleanup  CleanupCmd  `cmd:"" help:"Remove generated files and images."`
	Check    CheckCmd    `cmd:"" help:"Verify the local setup."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string   `short:"c" help:"Path to config file (YAML or TOML)." type:"path"`
	EnvFile   []string `name:"env-file" help:"Dotenv files to load (default: .env.local, .env)." type:"path"`
	LogLevel  string   `help:"Log level (debug, info, warn, error)."`
	LogFile   string   `help:"Log file path (empty = stderr)."`
	LogFormat string   `help:"Log format (simple, verbose, json)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("crewlink version %s\n", version())
	return nil
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
	}
	return "dev"
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			slog.Info("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("crewlink"),
		kong.Description("crewlink - tracked MCP research workflows"),
		kong.UsageOnError(),
	)

	if err := config.LoadEnvFiles(cli.EnvFile...); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env files: %v\n", err)
		os.Exit(1)
	}

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
