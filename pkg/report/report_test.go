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

package report

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForDisplay(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "markdown header",
			in:   "# Title",
			want: headerOpen + "# Title</h3>",
		},
		{
			name: "colon header",
			in:   "Key Findings:",
			want: headerOpen + "Key Findings:</h3>",
		},
		{
			name: "upper case header",
			in:   "EXECUTIVE SUMMARY",
			want: headerOpen + "EXECUTIVE SUMMARY</h3>",
		},
		{
			name: "paragraph",
			in:   "  Plain text.  ",
			want: paragraphOpen + "Plain text.</p>",
		},
		{
			name: "blank line",
			in:   "a\n\nb",
			want: paragraphOpen + "a</p>\n<br>\n" + paragraphOpen + "b</p>",
		},
		{
			name: "bullets then paragraph",
			in:   "- one\n• two\nafter",
			want: "<ul>" + itemOpen + "one</li>\n<ul>" + itemOpen + "two</li></ul>\n" + paragraphOpen + "after</p>",
		},
		{
			name: "numbered item then blank",
			in:   "12. twelfth\n",
			want: "<ul>" + itemOpen + "12. twelfth</li></ul>\n<br>",
		},
		{
			name: "twenty is not numbered",
			in:   "20. twentieth",
			want: paragraphOpen + "20. twentieth</p>",
		},
		{
			name: "header wins over bullet",
			in:   "- Note:",
			want: headerOpen + "- Note:</h3>",
		},
		{
			name: "digits are not upper case",
			in:   "2025",
			want: paragraphOpen + "2025</p>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, containerOpen+tt.want+"</div>", FormatForDisplay(tt.in))
		})
	}
}

func TestFormatForDisplay_LongUpperCaseIsParagraph(t *testing.T) {
	line := strings.Repeat("WORD ", 11)
	assert.Equal(t, containerOpen+paragraphOpen+strings.TrimSpace(line)+"</p></div>", FormatForDisplay(line))
}

func newCollector(t *testing.T) Collector {
	t.Helper()
	root := t.TempDir()
	c := Collector{
		FilesDir:  filepath.Join(root, "files"),
		ImagesDir: filepath.Join(root, "images"),
	}
	require.NoError(t, os.MkdirAll(c.FilesDir, 0o755))
	require.NoError(t, os.MkdirAll(c.ImagesDir, 0o755))
	return c
}

func write(t *testing.T, dir, name, content string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	if !mod.IsZero() {
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
}

func TestCollect(t *testing.T) {
	c := newCollector(t)
	write(t, c.FilesDir, "ai_report.md", "# AI", time.Time{})
	write(t, c.FilesDir, "notes.txt", "plain", time.Time{})
	write(t, c.FilesDir, "data.json", "{}", time.Time{})
	write(t, c.ImagesDir, "ai_diagram.png", "png-bytes", time.Time{})
	write(t, c.ImagesDir, "photo.jpg", "jpg", time.Time{})

	files, images := c.Collect()
	require.Len(t, files, 2)
	assert.Equal(t, "ai_report.md", files[0].Filename)
	assert.Equal(t, TypeMarkdown, files[0].FileType)
	assert.Equal(t, FormatForDisplay("# AI"), files[0].FormattedContent)
	assert.Equal(t, TypeText, files[1].FileType)

	require.Len(t, images, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png-bytes")), images[0].Base64)
}

func TestCollect_MissingDirs(t *testing.T) {
	c := Collector{FilesDir: filepath.Join(t.TempDir(), "none"), ImagesDir: filepath.Join(t.TempDir(), "none")}
	files, images := c.Collect()
	assert.Empty(t, files)
	assert.Empty(t, images)
	assert.NotNil(t, files)
}

func TestStructuredRoundTrip(t *testing.T) {
	out := Output{
		Success:        true,
		ResearchTopic:  "AI",
		ResearchQuery:  "agents",
		FilesGenerated: []File{{Filename: "a.md", Content: "x", FileType: TypeMarkdown}},
	}

	var buf bytes.Buffer
	buf.WriteString("log line\n")
	require.NoError(t, WriteStructured(&buf, out))
	buf.WriteString("trailing output\n")

	got, err := ParseStructured(buf.String())
	require.NoError(t, err)
	assert.Equal(t, "AI", got.ResearchTopic)
	assert.Equal(t, "a.md", got.FilesGenerated[0].Filename)

	_, err = ParseStructured("nothing here")
	assert.ErrorIs(t, err, ErrNoStructuredOutput)
}

func TestCleanup(t *testing.T) {
	c := newCollector(t)
	write(t, c.FilesDir, "r.md", "x", time.Time{})
	write(t, c.FilesDir, "r.json", "x", time.Time{})
	write(t, c.FilesDir, "keep.csv", "x", time.Time{})
	write(t, c.ImagesDir, "a.png", "x", time.Time{})
	write(t, c.ImagesDir, "b.svg", "x", time.Time{})

	r := c.Cleanup()
	assert.Equal(t, 2, r.Files)
	assert.Equal(t, 2, r.Images)
	assert.FileExists(t, filepath.Join(c.FilesDir, "keep.csv"))

	r = c.Clear()
	assert.Equal(t, 1, r.Files)
	assert.Equal(t, 0, r.Images)
	assert.Empty(t, r.Errors)
}

func TestList(t *testing.T) {
	c := newCollector(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	write(t, c.FilesDir, "quantum_computing_research_report.md", "# Q", base)
	write(t, c.FilesDir, "old_notes.txt", "n", base.Add(-time.Hour))
	write(t, c.ImagesDir, "quantum_computing_research_report_diagram.png", "img", base)
	write(t, c.ImagesDir, "sunset.PNG", "img", base.Add(time.Hour))

	reports := c.List()
	require.Len(t, reports, 3)

	assert.Equal(t, "Sunset", reports[0].Topic)
	assert.Equal(t, "Previously generated image", reports[0].Query)
	assert.Empty(t, reports[0].FilesGenerated)

	assert.Equal(t, "Quantum Computing Research Report", reports[1].Topic)
	require.Len(t, reports[1].ImagesGenerated, 1)
	assert.Equal(t, "quantum_computing_research_report_diagram.png", reports[1].ImagesGenerated[0].Filename)
	assert.True(t, reports[1].IsExisting)

	assert.Equal(t, "Old Notes", reports[2].Topic)
	assert.Equal(t, TypeText, reports[2].FilesGenerated[0].FileType)
}

func TestTopicFromFilename(t *testing.T) {
	assert.Equal(t, "Ai Agents Report", TopicFromFilename("ai_agents_report"))
	assert.Equal(t, "Gpt-4o Review", TopicFromFilename("gpt-4o_review"))
}
