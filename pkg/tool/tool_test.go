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

package tool_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kadirpekel/crewlink/pkg/observability"
	"github.com/kadirpekel/crewlink/pkg/tool"
	"github.com/kadirpekel/crewlink/pkg/tool/functiontool"
	"github.com/kadirpekel/crewlink/pkg/tracker"
	"github.com/kadirpekel/crewlink/pkg/tracker/trackertest"
)

type usage struct {
	tool    string
	elapsed time.Duration
	success bool
}

type recorder struct {
	mu    sync.Mutex
	calls []usage
}

func (r *recorder) LogToolUsage(ctx context.Context, name string, elapsed time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, usage{name, elapsed, success})
}

type echoArgs struct {
	Text string `json:"text" jsonschema:"required"`
}

func newEcho(t *testing.T, fn functiontool.Func[echoArgs]) tool.CallableTool {
	t.Helper()
	if fn == nil {
		fn = func(ctx context.Context, args echoArgs) (map[string]any, error) {
			return map[string]any{"result": args.Text}, nil
		}
	}
	echo, err := functiontool.New(functiontool.Config{Name: "echo", Description: "Echo text"}, fn)
	require.NoError(t, err)
	return echo
}

// fakeClock advances by step on every reading.
func fakeClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Unix(0, 0)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

func newSpanRecorder() (*tracetest.SpanRecorder, tool.TrackOption) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, tool.WithTracer(tp.Tracer("test"))
}

func TestTrack_Success(t *testing.T) {
	rec := &recorder{}
	sr, withTracer := newSpanRecorder()
	tracked := tool.Track(newEcho(t, nil), rec, tool.MetricWebSearch, withTracer, tool.WithClock(fakeClock(1500*time.Millisecond)))

	assert.Equal(t, "echo", tracked.Name())
	assert.Equal(t, "Echo text", tracked.Description())

	result, err := tracked.Call(context.Background(), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", tool.ResultText(result))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, usage{"web_search", 1500 * time.Millisecond, true}, rec.calls[0])

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, observability.SpanToolExecution, spans[0].Name())
}

func TestTrack_Failure(t *testing.T) {
	rec := &recorder{}
	sr, withTracer := newSpanRecorder()
	failing := newEcho(t, func(ctx context.Context, args echoArgs) (map[string]any, error) {
		return nil, errors.New("upstream down")
	})

	_, err := tool.Track(failing, rec, "", withTracer).Call(context.Background(), map[string]any{"text": "x"})
	require.Error(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "echo", rec.calls[0].tool, "metric defaults to the tool name")
	assert.False(t, rec.calls[0].success)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

func TestTrack_InvalidArgsRecorded(t *testing.T) {
	rec := &recorder{}
	_, withTracer := newSpanRecorder()

	_, err := tool.Track(newEcho(t, nil), rec, tool.MetricFileWrite, withTracer).Call(context.Background(), nil)
	require.Error(t, err)
	require.Len(t, rec.calls, 1)
	assert.False(t, rec.calls[0].success)
}

func TestTrack_PanicRecorded(t *testing.T) {
	rec := &recorder{}
	_, withTracer := newSpanRecorder()
	panicking := newEcho(t, func(ctx context.Context, args echoArgs) (map[string]any, error) {
		panic("boom")
	})
	tracked := tool.Track(panicking, rec, tool.MetricImageGenerate, withTracer)

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = tracked.Call(context.Background(), map[string]any{"text": "x"})
	})
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "image_generate", rec.calls[0].tool)
	assert.False(t, rec.calls[0].success)
}

func TestTrack_NilRecorder(t *testing.T) {
	_, withTracer := newSpanRecorder()
	result, err := tool.Track(newEcho(t, nil), nil, "", withTracer).Call(context.Background(), map[string]any{"text": "ok"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result["result"])
}

func TestTrack_WithTracker(t *testing.T) {
	backend := trackertest.New()
	run := tracker.New(backend)
	run.Start(context.Background(), tracker.StartOptions{Project: "test"})

	_, withTracer := newSpanRecorder()
	tracked := tool.Track(newEcho(t, nil), run, tool.MetricFileWrite, withTracer, tool.WithClock(fakeClock(time.Second)))
	_, err := tracked.Call(context.Background(), map[string]any{"text": "x"})
	require.NoError(t, err)

	metrics := backend.Metrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, tracker.Metrics{
		"tool_file_write_execution_time": 1.0,
		"tool_file_write_success":        1,
		"total_tool_calls":               1,
	}, metrics[0])
}

func TestRegistry(t *testing.T) {
	echo := newEcho(t, nil)
	reg, err := tool.NewRegistry(echo)
	require.NoError(t, err)

	got, ok := reg.Get("echo")
	require.True(t, ok)
	assert.Same(t, echo, got)

	assert.Error(t, reg.Register(echo), "duplicate names are rejected")
	assert.Equal(t, []string{"echo"}, reg.Names())
	assert.Len(t, reg.Tools(), 1)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

type staticToolset struct {
	tools []tool.Tool
	err   error
}

func (s staticToolset) Name() string { return "static" }

func (s staticToolset) Tools(ctx context.Context) ([]tool.Tool, error) { return s.tools, s.err }

func TestRegistry_AddToolset(t *testing.T) {
	reg, err := tool.NewRegistry()
	require.NoError(t, err)

	require.NoError(t, reg.AddToolset(context.Background(), staticToolset{tools: []tool.Tool{newEcho(t, nil)}}))
	assert.Equal(t, []string{"echo"}, reg.Names())

	err = reg.AddToolset(context.Background(), staticToolset{err: errors.New("spawn failed")})
	assert.ErrorContains(t, err, "toolset static")
}

func TestResultText(t *testing.T) {
	assert.Equal(t, "", tool.ResultText(nil))
	assert.Equal(t, "a", tool.ResultText(map[string]any{"result": "a"}))
	assert.Equal(t, "a\nb", tool.ResultText(map[string]any{"results": []string{"a", "b"}}))
	assert.Equal(t, "a\nb", tool.ResultText(map[string]any{"results": []any{"a", "b"}}))
	assert.Equal(t, `{"n":1}`, tool.ResultText(map[string]any{"n": 1}))
}

func TestStringPredicate(t *testing.T) {
	echo := newEcho(t, nil)
	assert.True(t, tool.StringPredicate(nil)(echo))
	assert.True(t, tool.StringPredicate([]string{"echo"})(echo))
	assert.False(t, tool.StringPredicate([]string{"other"})(echo))

	def := tool.ToDefinition(echo)
	assert.Equal(t, "echo", def.Name)
	assert.NotNil(t, def.Parameters)
}
