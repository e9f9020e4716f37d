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
	"log/slog"

	"github.com/kadirpekel/crewlink/pkg/config"
	"github.com/kadirpekel/crewlink/pkg/observability"
	"github.com/kadirpekel/crewlink/pkg/runtime"
)

const tracerName = "github.com/kadirpekel/crewlink"

// app is the environment shared by the commands that run workflows.
type app struct {
	cfg    *config.Config
	loader *config.Loader
	obs    *observability.Manager

	cleanups []func()
}

// loadConfig reads the config file, or returns the built-in defaults when
// no path is given.
func loadConfig(ctx context.Context, path string, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	if path == "" {
		return config.Default(), nil, nil
	}
	return config.LoadFile(ctx, path, opts...)
}

// setup loads the config, applies its logger section and starts tracing.
func (cli *CLI) setup(ctx context.Context, loaderOpts []config.LoaderOption, tracerOpts ...observability.TracerOption) (*app, error) {
	cfg, loader, err := loadConfig(ctx, cli.Config, loaderOpts...)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, loader: loader}

	logCleanup, err := initLoggerFromConfig(cli, cfg.Logger)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if logCleanup != nil {
		a.cleanups = append(a.cleanups, logCleanup)
	}

	a.obs = observability.NewManager(cfg.Observability, tracerOpts...)
	if err := a.obs.Initialize(ctx); err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	return a, nil
}

// newRuntime builds the tools, tracking backends and workflow for cfg.
func (a *app) newRuntime(ctx context.Context, cfg *config.Config) (*runtime.Runtime, error) {
	return runtime.New(ctx, cfg,
		runtime.WithTracer(a.obs.Tracer(tracerName)),
		runtime.WithVersion(version()),
	)
}

func (a *app) close(ctx context.Context) {
	if a.obs != nil {
		if err := a.obs.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Tracing shutdown failed", "error", err)
		}
	}
	if a.loader != nil {
		_ = a.loader.Close()
	}
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}
