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

package tracker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/crewlink/pkg/tracker"
	"github.com/kadirpekel/crewlink/pkg/tracker/trackertest"
)

// warnCounter is a slog handler that keeps every WARN message.
type warnCounter struct {
	mu       sync.Mutex
	messages []string
}

func (w *warnCounter) Enabled(_ context.Context, level slog.Level) bool { return true }

func (w *warnCounter) Handle(_ context.Context, r slog.Record) error {
	if r.Level == slog.LevelWarn {
		w.mu.Lock()
		w.messages = append(w.messages, r.Message)
		w.mu.Unlock()
	}
	return nil
}

func (w *warnCounter) WithAttrs([]slog.Attr) slog.Handler { return w }
func (w *warnCounter) WithGroup(string) slog.Handler      { return w }

func (w *warnCounter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.messages)
}

func newTracker(t *testing.T, backend tracker.Backend, opts ...tracker.Option) (*tracker.Tracker, *warnCounter) {
	t.Helper()
	warns := &warnCounter{}
	opts = append([]tracker.Option{tracker.WithLogger(slog.New(warns))}, opts...)
	return tracker.New(backend, opts...), warns
}

var start = tracker.StartOptions{Project: "test", Name: "unit"}

func TestTracker_NoOpsBeforeStart(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	tr, warns := newTracker(t, backend)

	tr.LogMetrics(ctx, tracker.Metrics{"a": 1})
	tr.LogToolUsage(ctx, "x", time.Second, true)
	tr.LogAgentPerformance(ctx, "researcher", time.Second, 1)
	tr.LogResearchProgress(ctx, "topic", 1, 1, 1)
	tr.LogHostTelemetry(ctx)
	tr.Finish(ctx)

	assert.Equal(t, 6, warns.Count(), "each no-op call warns exactly once")
	assert.Empty(t, backend.Starts())
	assert.Zero(t, backend.Attempts())
	assert.Zero(t, backend.Finishes())
	assert.Equal(t, tracker.StateUninitialized, tr.State())
}

func TestTracker_StartLogFinish(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	tr, warns := newTracker(t, backend)

	tr.Start(ctx, tracker.StartOptions{Project: "test"})
	require.True(t, tr.Active())

	tr.LogMetrics(ctx, tracker.Metrics{"a": 1})
	tr.Finish(ctx)

	assert.Equal(t, tracker.StateFinished, tr.State())
	assert.Equal(t, []tracker.Metrics{{"a": 1}}, backend.Metrics())
	assert.Equal(t, 1, backend.Finishes())
	assert.Zero(t, warns.Count())
}

func TestTracker_StartDefaultConfig(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tr, _ := newTracker(t, backend, tracker.WithClock(func() time.Time { return at }))

	tr.Start(ctx, tracker.StartOptions{Project: "test"})

	starts := backend.Starts()
	require.Len(t, starts, 1)
	cfg := starts[0].Config
	assert.Equal(t, "crewlink", cfg["framework"])
	assert.Equal(t, 3, cfg["tools_count"])
	assert.Equal(t, "2025-03-01T12:00:00Z", cfg["timestamp"])
	assert.Equal(t, cfg, tr.Config())
}

func TestTracker_StartClonesConfig(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	tr, _ := newTracker(t, backend)

	cfg := map[string]any{"learning_rate": 0.1}
	tr.Start(ctx, tracker.StartOptions{Project: "test", Config: cfg})
	cfg["learning_rate"] = 0.5

	assert.Equal(t, 0.1, tr.Config()["learning_rate"])
}

func TestTracker_StartFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("backend error", func(t *testing.T) {
		backend := trackertest.New()
		backend.StartErr = errors.New("unauthorized")
		tr, warns := newTracker(t, backend)

		tr.Start(ctx, start)

		assert.Equal(t, tracker.StateUninitialized, tr.State())
		assert.Equal(t, 1, warns.Count())
	})

	t.Run("missing project", func(t *testing.T) {
		backend := trackertest.New()
		tr, warns := newTracker(t, backend)

		tr.Start(ctx, tracker.StartOptions{})

		assert.Equal(t, tracker.StateUninitialized, tr.State())
		assert.Empty(t, backend.Starts())
		assert.Equal(t, 1, warns.Count())
	})

	t.Run("nil backend", func(t *testing.T) {
		tr, warns := newTracker(t, nil)

		tr.Start(ctx, start)

		assert.Equal(t, tracker.StateUninitialized, tr.State())
		assert.Equal(t, 1, warns.Count())
	})

	t.Run("nil session", func(t *testing.T) {
		backend := tracker.BackendFunc(func(context.Context, tracker.StartOptions) (tracker.Session, error) {
			return nil, nil
		})
		tr, warns := newTracker(t, backend)

		tr.Start(ctx, start)

		assert.Equal(t, tracker.StateUninitialized, tr.State())
		assert.Equal(t, 1, warns.Count())
	})
}

func TestTracker_StartWhileActive(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	tr, warns := newTracker(t, backend)

	tr.Start(ctx, start)
	tr.Start(ctx, tracker.StartOptions{Project: "other"})

	assert.Len(t, backend.Starts(), 1)
	assert.Equal(t, 1, warns.Count())
	assert.Equal(t, "unit", tr.RunName())
}

func TestTracker_RestartAfterFinish(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	tr, _ := newTracker(t, backend)

	tr.Start(ctx, start)
	tr.Finish(ctx)
	tr.Start(ctx, tracker.StartOptions{Project: "test", Name: "second"})

	assert.True(t, tr.Active())
	assert.Equal(t, "second", tr.RunName())
	assert.Len(t, backend.Starts(), 2)
}

func TestTracker_LogToolUsage(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	tr, _ := newTracker(t, backend)
	tr.Start(ctx, start)

	tr.LogToolUsage(ctx, "x", 1500*time.Millisecond, true)
	tr.LogToolUsage(ctx, "file_write", 0, false)

	assert.Equal(t, []tracker.Metrics{
		{"tool_x_execution_time": 1.5, "tool_x_success": 1, "total_tool_calls": 1},
		{"tool_file_write_execution_time": 0.0, "tool_file_write_success": 0, "total_tool_calls": 1},
	}, backend.Metrics())
}

func TestTracker_LogToolUsageNegativeDuration(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	tr, warns := newTracker(t, backend)
	tr.Start(ctx, start)

	tr.LogToolUsage(ctx, "x", -time.Second, true)

	assert.Zero(t, backend.Attempts())
	assert.Equal(t, 1, warns.Count())
}

func TestTracker_DoubleFinish(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	tr, warns := newTracker(t, backend)
	tr.Start(ctx, start)

	tr.Finish(ctx)
	tr.Finish(ctx)

	assert.Equal(t, 1, backend.Finishes())
	assert.Equal(t, 1, warns.Count())
	assert.Equal(t, tracker.StateFinished, tr.State())
}

func TestTracker_FinishErrorStillFinishes(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	backend.FinishErr = errors.New("flush failed")
	tr, warns := newTracker(t, backend)
	tr.Start(ctx, start)

	tr.Finish(ctx)

	assert.Equal(t, tracker.StateFinished, tr.State())
	assert.Equal(t, 1, warns.Count())
}

func TestTracker_LogErrorKeepsActive(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	backend.LogErr = func(call int) error {
		if call == 0 {
			return errors.New("connection reset")
		}
		return nil
	}
	tr, warns := newTracker(t, backend)
	tr.Start(ctx, start)

	tr.LogMetrics(ctx, tracker.Metrics{"first": 1})
	assert.True(t, tr.Active())
	assert.Equal(t, 1, warns.Count())

	tr.LogMetrics(ctx, tracker.Metrics{"second": 2})
	assert.Equal(t, 2, backend.Attempts())
	assert.Equal(t, []tracker.Metrics{{"second": 2}}, backend.Metrics(), "the failed batch is not retried")
}

func TestTracker_LogMetricsWithStep(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	tr, _ := newTracker(t, backend)
	tr.Start(ctx, start)

	tr.LogMetrics(ctx, tracker.Metrics{"loss": 0.3}, tracker.WithStep(7))
	tr.LogMetrics(ctx, tracker.Metrics{"loss": 0.2})

	batches := backend.Batches()
	require.Len(t, batches, 2)
	require.NotNil(t, batches[0].Step)
	assert.Equal(t, 7, *batches[0].Step)
	assert.Nil(t, batches[1].Step)
}

func TestTracker_LogAgentPerformance(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	tr, warns := newTracker(t, backend)
	tr.Start(ctx, start)

	tr.LogAgentPerformance(ctx, "researcher", 2*time.Second, 0.75)
	tr.LogAgentPerformance(ctx, "researcher", 2*time.Second, 0.75, tracker.WithTokensUsed(500))
	tr.LogAgentPerformance(ctx, "researcher", time.Second, 1.5)

	metrics := backend.Metrics()
	require.Len(t, metrics, 2)
	assert.Equal(t, tracker.Metrics{
		"researcher_completion_time": 2.0,
		"researcher_success_rate":    0.75,
	}, metrics[0])
	assert.Len(t, metrics[1], 3)
	assert.Equal(t, 500, metrics[1]["researcher_tokens_used"])
	assert.Equal(t, 1, warns.Count(), "out of range success rate is rejected")
}

func TestTracker_LogResearchProgress(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	tr, _ := newTracker(t, backend)
	tr.Start(ctx, start)

	tr.LogResearchProgress(ctx, "Künstliche", 3, 2, 1)

	assert.Equal(t, []tracker.Metrics{{
		"search_queries_count":   3,
		"files_generated_count":  2,
		"images_generated_count": 1,
		"research_topic_length":  10,
	}}, backend.Metrics())
}

func TestTracker_LogHostTelemetry(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		backend := trackertest.New()
		probe := tracker.HostProbeFunc(func(context.Context) (tracker.HostInfo, error) {
			return tracker.HostInfo{
				Platform:         "linux",
				GoVersion:        "go1.24.0",
				CPUCount:         8,
				MemoryTotalGB:    16,
				DiskUsagePercent: 42.5,
			}, nil
		})
		tr, _ := newTracker(t, backend, tracker.WithHostProbe(probe))
		tr.Start(ctx, start)

		tr.LogHostTelemetry(ctx)

		assert.Equal(t, []tracker.Metrics{{
			"system_platform":    "linux",
			"go_version":         "go1.24.0",
			"cpu_count":          8,
			"memory_total_gb":    16.0,
			"disk_usage_percent": 42.5,
		}}, backend.Metrics())
	})

	t.Run("probe failure", func(t *testing.T) {
		backend := trackertest.New()
		probe := tracker.HostProbeFunc(func(context.Context) (tracker.HostInfo, error) {
			return tracker.HostInfo{}, errors.New("permission denied")
		})
		tr, warns := newTracker(t, backend, tracker.WithHostProbe(probe))
		tr.Start(ctx, start)

		tr.LogHostTelemetry(ctx)

		assert.Zero(t, backend.Attempts())
		assert.Equal(t, 1, warns.Count())
		assert.True(t, tr.Active())
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("returns fn error and finishes", func(t *testing.T) {
		backend := trackertest.New()
		boom := errors.New("boom")

		err := tracker.Run(ctx, backend, start, func(ctx context.Context, tr *tracker.Tracker) error {
			tr.LogMetrics(ctx, tracker.Metrics{"a": 1})
			return boom
		}, tracker.WithLogger(slog.New(&warnCounter{})))

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, backend.Finishes())
		assert.Len(t, backend.Batches(), 1)
	})

	t.Run("finishes on panic", func(t *testing.T) {
		backend := trackertest.New()

		assert.PanicsWithValue(t, "kaboom", func() {
			_ = tracker.Run(ctx, backend, start, func(context.Context, *tracker.Tracker) error {
				panic("kaboom")
			}, tracker.WithLogger(slog.New(&warnCounter{})))
		})
		assert.Equal(t, 1, backend.Finishes())
	})

	t.Run("fn may finish early", func(t *testing.T) {
		backend := trackertest.New()
		warns := &warnCounter{}

		err := tracker.Run(ctx, backend, start, func(ctx context.Context, tr *tracker.Tracker) error {
			tr.Finish(ctx)
			return nil
		}, tracker.WithLogger(slog.New(warns)))

		require.NoError(t, err)
		assert.Equal(t, 1, backend.Finishes())
		assert.Equal(t, 1, warns.Count())
	})

	t.Run("start failure still runs fn", func(t *testing.T) {
		backend := trackertest.New()
		backend.StartErr = errors.New("offline")
		called := false

		err := tracker.Run(ctx, backend, start, func(ctx context.Context, tr *tracker.Tracker) error {
			called = true
			assert.False(t, tr.Active())
			return nil
		}, tracker.WithLogger(slog.New(&warnCounter{})))

		require.NoError(t, err)
		assert.True(t, called)
		assert.Zero(t, backend.Finishes())
	})
}

func TestTracker_Close(t *testing.T) {
	backend := trackertest.New()
	tr, _ := newTracker(t, backend)
	tr.Start(context.Background(), start)

	require.NoError(t, tr.Close())
	assert.Equal(t, tracker.StateFinished, tr.State())
}

func TestTracker_ConcurrentLogging(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	tr, _ := newTracker(t, backend)
	tr.Start(ctx, start)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.LogMetrics(ctx, tracker.Metrics{"i": i})
		}(i)
	}
	wg.Wait()
	tr.Finish(ctx)

	assert.Equal(t, 20, backend.Attempts())
}

func TestSimulateTraining(t *testing.T) {
	ctx := context.Background()
	backend := trackertest.New()
	tr, _ := newTracker(t, backend)
	tr.Start(ctx, tracker.StartOptions{Project: "test", Config: map[string]any{"learning_rate": 0.05}})

	tr.SimulateTraining(ctx, 5)

	metrics := backend.Metrics()
	require.Len(t, metrics, 3)
	for i, m := range metrics {
		assert.Equal(t, i+2, m["epoch"])
		assert.Equal(t, 0.05, m["learning_rate"])
		assert.Contains(t, m, "accuracy")
		assert.Contains(t, m, "loss")
	}
}
