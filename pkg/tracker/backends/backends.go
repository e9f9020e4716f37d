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

// Package backends builds the configured tracking backends.
package backends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/crewlink/pkg/config"
	"github.com/kadirpekel/crewlink/pkg/logger"
	"github.com/kadirpekel/crewlink/pkg/tracker"
	"github.com/kadirpekel/crewlink/pkg/tracker/filetrack"
	"github.com/kadirpekel/crewlink/pkg/tracker/natstrack"
	"github.com/kadirpekel/crewlink/pkg/tracker/promtrack"
	"github.com/kadirpekel/crewlink/pkg/tracker/sqltrack"
)

// Set is the result of Build.
type Set struct {
	// Backend fans out to every configured backend.
	Backend tracker.Backend

	// Prometheus is set when the prometheus backend is enabled.
	Prometheus *promtrack.Backend

	// Names lists the backends that were built, in configuration order.
	Names []string

	closers []func(context.Context) error
	pool    *config.DBPool
}

// Close releases connections held by the backends.
func (s *Set) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build creates every backend listed in cfg. A backend that cannot be
// created is logged and skipped; Build fails only when none could be
// created.
func Build(ctx context.Context, cfg config.TrackerConfig, log *slog.Logger) (*Set, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	set := &Set{}
	var built []tracker.Backend
	var errs []error

	for _, name := range cfg.Backends {
		b, err := set.build(ctx, name, cfg, log)
		if err != nil {
			log.Warn("Tracking backend unavailable", "backend", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		built = append(built, b)
		set.Names = append(set.Names, name)
	}

	if len(built) == 0 {
		_ = set.Close(ctx)
		if len(errs) == 0 {
			return nil, fmt.Errorf("no tracking backends configured")
		}
		return nil, errors.Join(errs...)
	}

	set.Backend = tracker.Multi(built...)
	log.Debug("Tracking backends ready", "backends", set.Names)
	return set, nil
}

func (s *Set) build(ctx context.Context, name string, cfg config.TrackerConfig, log *slog.Logger) (tracker.Backend, error) {
	switch name {
	case config.BackendFile:
		return filetrack.New(cfg.File.Dir)

	case config.BackendPrometheus:
		b, err := promtrack.New(
			promtrack.WithNamespace(cfg.Prometheus.Namespace),
			promtrack.WithRetainedRuns(cfg.Prometheus.RetainedRuns),
			promtrack.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		s.Prometheus = b
		s.closers = append(s.closers, b.Shutdown)
		return b, nil

	case config.BackendSQL:
		if s.pool == nil {
			s.pool = config.NewDBPool()
		}
		db := cfg.SQL.Database
		return sqltrack.Open(ctx, s.pool, &db)

	case config.BackendNATS:
		b, err := natstrack.Connect(cfg.NATS, natstrack.WithLogger(log))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return b.Close() })
		return b, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}
