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

package tracker

import (
	"context"
	"time"
	"unicode/utf8"
)

// Metric keys shared by dashboards. Per-tool and per-agent keys are built
// from these patterns.
const (
	KeyTotalToolCalls       = "total_tool_calls"
	KeySearchQueriesCount   = "search_queries_count"
	KeyFilesGeneratedCount  = "files_generated_count"
	KeyImagesGeneratedCount = "images_generated_count"
	KeyResearchTopicLength  = "research_topic_length"
)

// ToolTimeKey returns the execution time key for a tool.
func ToolTimeKey(tool string) string { return "tool_" + tool + "_execution_time" }

// ToolSuccessKey returns the success flag key for a tool.
func ToolSuccessKey(tool string) string { return "tool_" + tool + "_success" }

// LogToolUsage records one tool invocation.
func (t *Tracker) LogToolUsage(ctx context.Context, tool string, elapsed time.Duration, success bool) {
	if elapsed < 0 {
		t.log.Warn("Skipping tool usage with negative duration", "tool", tool, "elapsed", elapsed)
		return
	}

	flag := 0
	if success {
		flag = 1
	}

	t.LogMetrics(ctx, Metrics{
		ToolTimeKey(tool):    elapsed.Seconds(),
		ToolSuccessKey(tool): flag,
		KeyTotalToolCalls:    1,
	})
}

type agentPerformance struct {
	tokensUsed int
}

// AgentOption configures LogAgentPerformance.
type AgentOption func(*agentPerformance)

// WithTokensUsed adds the <agent>_tokens_used key. Zero is treated as
// unknown and omitted.
func WithTokensUsed(tokens int) AgentOption {
	return func(p *agentPerformance) {
		p.tokensUsed = tokens
	}
}

// LogAgentPerformance records how an agent did on its task.
func (t *Tracker) LogAgentPerformance(ctx context.Context, agent string, completion time.Duration, successRate float64, opts ...AgentOption) {
	if successRate < 0 || successRate > 1 {
		t.log.Warn("Skipping agent performance with success rate outside [0,1]", "agent", agent, "success_rate", successRate)
		return
	}

	var perf agentPerformance
	for _, opt := range opts {
		opt(&perf)
	}

	metrics := Metrics{
		agent + "_completion_time": completion.Seconds(),
		agent + "_success_rate":    successRate,
	}
	if perf.tokensUsed > 0 {
		metrics[agent+"_tokens_used"] = perf.tokensUsed
	}

	t.LogMetrics(ctx, metrics)
}

// LogResearchProgress records the counters of a research run. The topic
// length stands in for the topic itself.
func (t *Tracker) LogResearchProgress(ctx context.Context, topic string, searchQueries, filesGenerated, imagesGenerated int) {
	t.LogMetrics(ctx, Metrics{
		KeySearchQueriesCount:   searchQueries,
		KeyFilesGeneratedCount:  filesGenerated,
		KeyImagesGeneratedCount: imagesGenerated,
		KeyResearchTopicLength:  utf8.RuneCountInString(topic),
	})
}

// LogHostTelemetry gathers host information and submits it as one batch.
func (t *Tracker) LogHostTelemetry(ctx context.Context) {
	if !t.Active() {
		t.log.Warn("Tracker not active, skipping host telemetry", "state", t.State().String())
		return
	}

	info, err := t.probe.Probe(ctx)
	if err != nil {
		t.log.Warn("Failed to gather host telemetry", "error", err)
		return
	}

	t.LogMetrics(ctx, info.Metrics())
	t.log.Debug("Host telemetry logged", "platform", info.Platform, "cpus", info.CPUCount)
}
