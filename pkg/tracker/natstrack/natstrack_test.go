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

package natstrack

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/crewlink/pkg/tracker"
)

type message struct {
	subject string
	event   Event
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []message
	flushes  int
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	p.messages = append(p.messages, message{subject: subject, event: ev})
	return nil
}

func (p *fakePublisher) FlushWithContext(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushes++
	return nil
}

func TestSession_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	b, err := New(pub, WithSubjectPrefix("lab.runs."), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	sess, err := b.Start(ctx, tracker.StartOptions{
		Project: "mcp.research",
		Entity:  "team",
		Name:    "calm-wave-3",
		Config:  map[string]any{"framework": "crewlink"},
	})
	require.NoError(t, err)
	assert.Equal(t, "nats://lab.runs.mcp_research.calm_wave_3.*", sess.URL())

	require.NoError(t, sess.Log(ctx, tracker.Batch{Metrics: tracker.Metrics{"loss": 0.5}}))
	require.NoError(t, sess.Log(ctx, tracker.Batch{Metrics: tracker.Metrics{"loss": 0.4}}))
	require.NoError(t, sess.Finish(ctx))

	require.Len(t, pub.messages, 4)
	assert.Equal(t, "lab.runs.mcp_research.calm_wave_3.start", pub.messages[0].subject)
	assert.Equal(t, "crewlink", pub.messages[0].event.Config["framework"])
	assert.Equal(t, "team", pub.messages[0].event.Entity)

	assert.Equal(t, "lab.runs.mcp_research.calm_wave_3.metrics", pub.messages[1].subject)
	require.NotNil(t, pub.messages[1].event.Step)
	assert.Equal(t, 0, *pub.messages[1].event.Step)
	assert.Equal(t, 0.5, pub.messages[1].event.Metrics["loss"])
	assert.Equal(t, 1, *pub.messages[2].event.Step)

	last := pub.messages[3]
	assert.Equal(t, "lab.runs.mcp_research.calm_wave_3.finish", last.subject)
	assert.Equal(t, EventFinish, last.event.Type)
	assert.True(t, fixed.Equal(last.event.Time))
	assert.Equal(t, 1, pub.flushes)
}

func TestSession_ExplicitStep(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	b, err := New(pub)
	require.NoError(t, err)

	sess, err := b.Start(ctx, tracker.StartOptions{Project: "p"})
	require.NoError(t, err)

	step := 10
	require.NoError(t, sess.Log(ctx, tracker.Batch{Metrics: tracker.Metrics{"a": 1}, Step: &step}))
	require.NoError(t, sess.Log(ctx, tracker.Batch{Metrics: tracker.Metrics{"a": 2}}))

	assert.Equal(t, 10, *pub.messages[1].event.Step)
	assert.Equal(t, 11, *pub.messages[2].event.Step)
}

func TestBackend_PublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection closed")}
	b, err := New(pub)
	require.NoError(t, err)

	_, err = b.Start(context.Background(), tracker.StartOptions{Project: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")

	_, err = New(nil)
	assert.Error(t, err)
}
