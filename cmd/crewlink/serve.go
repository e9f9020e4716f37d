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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/crewlink/pkg/config"
	"github.com/kadirpekel/crewlink/pkg/runtime"
	"github.com/kadirpekel/crewlink/pkg/server"
)

// ServeCmd starts the HTTP API.
type ServeCmd struct {
	Host  string `help:"Host to bind to (overrides server.host)."`
	Port  int    `help:"Port to listen on (overrides server.port)."`
	Watch bool   `help:"Watch config file for changes."`
}

// runtimes tracks every runtime built during the process. Replaced
// runtimes stay open until shutdown because requests may still use them.
type runtimes struct {
	mu      sync.Mutex
	current *runtime.Runtime
	all     []*runtime.Runtime
}

func (r *runtimes) set(rt *runtime.Runtime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = rt
	r.all = append(r.all, rt)
}

func (r *runtimes) get() *runtime.Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *runtimes) close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range r.all {
		if err := rt.Close(ctx); err != nil {
			slog.Warn("Runtime cleanup error", "error", err)
		}
	}
}

// metricsHandler serves the prometheus registry of the current runtime.
func (r *runtimes) metricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		prom := r.get().Prometheus()
		if prom == nil {
			http.NotFound(w, req)
			return
		}
		prom.Handler().ServeHTTP(w, req)
	})
}

func (c *ServeCmd) apply(cfg *config.Config) {
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	var (
		rts runtimes
		srv *server.Server
		a   *app
	)

	reload := func(cfg *config.Config) {
		c.apply(cfg)
		rt, err := a.newRuntime(ctx, cfg)
		if err != nil {
			slog.Error("Config reload rejected", "error", err)
			return
		}
		if err := srv.Update(rt.Server()); err != nil {
			slog.Error("Config reload rejected", "error", err)
			_ = rt.Close(ctx)
			return
		}
		rts.set(rt)
	}

	a, err := cli.setup(ctx, []config.LoaderOption{config.WithOnChange(reload)})
	if err != nil {
		return err
	}
	defer a.close(ctx)
	c.apply(a.cfg)

	rt, err := a.newRuntime(ctx, a.cfg)
	if err != nil {
		return err
	}
	rts.set(rt)
	defer rts.close(context.WithoutCancel(ctx))

	opts := []server.Option{server.WithTracer(a.obs.Tracer(tracerName))}
	if a.cfg.Tracker.Uses(config.BackendPrometheus) {
		opts = append(opts, server.WithMetrics(a.cfg.Tracker.Prometheus.Path, rts.metricsHandler()))
	}
	srv, err = server.New(a.cfg.Server, rt.Server(), opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Printf("\n%s\n", successStyle.Render("crewlink server ready"))
	fmt.Printf("   Research:  POST http://%s/api/research\n", a.cfg.Server.Address())
	fmt.Printf("   Reports:   GET  http://%s/api/reports\n", a.cfg.Server.Address())
	fmt.Printf("   Health:    GET  http://%s/health\n", a.cfg.Server.Address())
	if a.cfg.Tracker.Uses(config.BackendPrometheus) {
		fmt.Printf("   Metrics:   GET  http://%s%s\n", a.cfg.Server.Address(), a.cfg.Tracker.Prometheus.Path)
	}
	fmt.Printf("   Tracking:  %v\n\n", rt.Backends())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})

	if c.Watch {
		if a.loader == nil {
			slog.Warn("--watch ignored: no config file given")
		} else {
			g.Go(func() error {
				err := a.loader.Watch(gctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		}
	}

	return g.Wait()
}
