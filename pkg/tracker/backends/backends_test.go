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

package backends

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/crewlink/pkg/config"
	"github.com/kadirpekel/crewlink/pkg/tracker"
)

func TestBuild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.TrackerConfig{
		Backends: []string{config.BackendFile, config.BackendPrometheus, config.BackendSQL},
		SQL: config.SQLTrackerConfig{Database: config.DatabaseConfig{
			Driver:   "sqlite",
			Database: filepath.Join(dir, "runs.db"),
		}},
		File: config.FileTrackerConfig{Dir: filepath.Join(dir, "runs")},
	}
	cfg.SetDefaults()

	set, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close(ctx) })

	assert.Equal(t, []string{"file", "prometheus", "sql"}, set.Names)
	require.NotNil(t, set.Prometheus)

	tr := tracker.Open(ctx, set.Backend, tracker.StartOptions{Project: "p", Name: "shared-name"})
	require.True(t, tr.Active())
	assert.Equal(t, "shared-name", tr.RunName())
	tr.LogMetrics(ctx, tracker.Metrics{"loss": 1.0})
	tr.Finish(ctx)
}

func TestBuild_SkipsUnavailable(t *testing.T) {
	ctx := context.Background()
	cfg := config.TrackerConfig{
		Backends: []string{config.BackendNATS, config.BackendFile},
		File:     config.FileTrackerConfig{Dir: t.TempDir()},
		NATS:     config.NATSTrackerConfig{URL: "nats://127.0.0.1:1"},
	}
	cfg.SetDefaults()

	set, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close(ctx) })
	assert.Equal(t, []string{"file"}, set.Names)
	assert.Nil(t, set.Prometheus)
}

func TestBuild_NoneAvailable(t *testing.T) {
	_, err := Build(context.Background(), config.TrackerConfig{Backends: []string{"bogus"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")

	_, err = Build(context.Background(), config.TrackerConfig{}, nil)
	assert.Error(t, err)
}
