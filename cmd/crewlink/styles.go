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
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kadirpekel/crewlink/pkg/research"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
)

// runInfo identifies the tracked run a result belongs to.
type runInfo struct {
	Name string
	URL  string
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func status(ok bool) string {
	if ok {
		return successStyle.Render("✓")
	}
	return errorStyle.Render("✗")
}

// renderResult draws the summary box printed after a research run.
func renderResult(res *research.Result, run runInfo) string {
	out := res.Output

	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s Research: %s", status(out.Success), out.ResearchTopic)),
		"",
		row("Query", out.ResearchQuery),
		row("Duration", res.Duration.Round(time.Millisecond).String()),
		row("Tool calls", fmt.Sprintf("%d (%d failed)", res.ToolCalls, res.ToolFailures)),
	}
	if run.Name != "" {
		lines = append(lines, row("Run", run.Name))
	}
	if run.URL != "" {
		lines = append(lines, row("Run URL", run.URL))
	}

	lines = append(lines, "", titleStyle.Render("Files"))
	if len(out.FilesGenerated) == 0 {
		lines = append(lines, warnStyle.Render("  none"))
	}
	for _, f := range out.FilesGenerated {
		lines = append(lines, "  "+valueStyle.Render(f.Path))
	}

	lines = append(lines, "", titleStyle.Render("Images"))
	if len(out.ImagesGenerated) == 0 {
		lines = append(lines, warnStyle.Render("  none"))
	}
	for _, img := range out.ImagesGenerated {
		lines = append(lines, "  "+valueStyle.Render(img.Path))
	}

	return boxStyle.Render(strings.Join(lines, "\n")) + "\n"
}
