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

package sqltrack

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/crewlink/pkg/config"
	"github.com/kadirpekel/crewlink/pkg/tracker"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	pool := config.NewDBPool()
	t.Cleanup(func() { _ = pool.Close() })

	cfg := &config.DatabaseConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "tracker.db"),
	}
	b, err := Open(context.Background(), pool, cfg)
	require.NoError(t, err)
	return b
}

func TestSession_Lifecycle(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	sess, err := b.Start(ctx, tracker.StartOptions{
		Project: "research",
		Entity:  "lab",
		Name:    "first-run",
		Config:  map[string]any{"epochs": 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "first-run", sess.Name())
	assert.Contains(t, sess.URL(), "sql://tracker_runs/")

	require.NoError(t, sess.Log(ctx, tracker.Batch{Metrics: tracker.Metrics{"loss": 0.5, "agent": "analyst"}}))
	step := 7
	require.NoError(t, sess.Log(ctx, tracker.Batch{Metrics: tracker.Metrics{"loss": 0.25}, Step: &step}))
	require.NoError(t, sess.Log(ctx, tracker.Batch{Metrics: tracker.Metrics{"ok": true}}))

	runs, err := b.Runs(ctx, "research")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "first-run", runs[0].Name)
	assert.Equal(t, "lab", runs[0].Entity)
	assert.Equal(t, StateRunning, runs[0].State)
	assert.Equal(t, float64(10), runs[0].Config["epochs"])

	points, err := b.History(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []Point{
		{Step: 0, Key: "agent", Value: "analyst"},
		{Step: 0, Key: "loss", Value: 0.5},
		{Step: 7, Key: "loss", Value: 0.25},
		{Step: 8, Key: "ok", Value: float64(1)},
	}, points)

	require.NoError(t, sess.Finish(ctx))
	runs, err = b.Runs(ctx, "research")
	require.NoError(t, err)
	assert.Equal(t, StateFinished, runs[0].State)
}

func TestStart_GeneratesName(t *testing.T) {
	b := newBackend(t)

	sess, err := b.Start(context.Background(), tracker.StartOptions{Project: "p"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Name())

	_, err = b.Start(context.Background(), tracker.StartOptions{})
	assert.Error(t, err)
}

func TestNew_RejectsDialect(t *testing.T) {
	_, err := New(context.Background(), nil, "sqlite")
	assert.Error(t, err)
}

func TestBind(t *testing.T) {
	pg := &Backend{dialect: config.DatabaseConfig{Driver: "postgres"}}
	assert.Equal(t, "VALUES ($1, $2)", pg.bind("VALUES (?, ?)"))

	my := &Backend{dialect: config.DatabaseConfig{Driver: "mysql"}}
	assert.Equal(t, "VALUES (?, ?)", my.bind("VALUES (?, ?)"))
}
