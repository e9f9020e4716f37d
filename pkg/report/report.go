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

// Package report manages the files and images a research run produces:
// collecting them, rendering them for display, listing and removing them.
package report

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kadirpekel/crewlink/pkg/logger"
)

// Markers delimiting the structured output block on stdout.
const (
	StructuredStart = "=== STRUCTURED_OUTPUT_START ==="
	StructuredEnd   = "=== STRUCTURED_OUTPUT_END ==="
)

// File types.
const (
	TypeMarkdown = "markdown"
	TypeText     = "text"
)

// ErrNoStructuredOutput is returned when the markers are missing.
var ErrNoStructuredOutput = errors.New("no structured output found")

// File is a generated text report.
type File struct {
	Filename         string `json:"filename"`
	Content          string `json:"content"`
	Path             string `json:"path"`
	FileType         string `json:"file_type"`
	FormattedContent string `json:"formatted_content,omitempty"`
}

// Image is a generated image, base64 encoded.
type Image struct {
	Filename string `json:"filename"`
	Base64   string `json:"base64"`
	Path     string `json:"path"`
}

// Output is the structured result of a research run.
type Output struct {
	Success         bool    `json:"success"`
	ResearchTopic   string  `json:"research_topic"`
	ResearchQuery   string  `json:"research_query"`
	Result          string  `json:"crew_result"`
	FilesGenerated  []File  `json:"files_generated"`
	ImagesGenerated []Image `json:"images_generated"`
}

// Collector reads generated outputs from disk.
type Collector struct {
	FilesDir  string
	ImagesDir string
	Log       *slog.Logger
}

func (c Collector) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logger.GetLogger()
}

// Collect returns the .md/.txt reports and .png images. Missing
// directories yield empty lists; unreadable entries are logged and
// skipped.
func (c Collector) Collect() ([]File, []Image) {
	log := c.logger()
	files := []File{}
	images := []Image{}

	for _, name := range listDir(c.FilesDir) {
		fileType, ok := fileTypeOf(name)
		if !ok {
			continue
		}
		path := filepath.Join(c.FilesDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("Error reading file", "file", name, "error", err)
			continue
		}
		content := string(data)
		files = append(files, File{
			Filename:         name,
			Content:          content,
			Path:             path,
			FileType:         fileType,
			FormattedContent: FormatForDisplay(content),
		})
	}

	for _, name := range listDir(c.ImagesDir) {
		if !strings.HasSuffix(name, ".png") {
			continue
		}
		img, err := readImage(c.ImagesDir, name)
		if err != nil {
			log.Warn("Error reading image", "image", name, "error", err)
			continue
		}
		images = append(images, img)
	}

	return files, images
}

// WriteStructured prints out as indented JSON between the markers.
func WriteStructured(w io.Writer, out Output) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode structured output: %w", err)
	}
	_, err = fmt.Fprintf(w, "\n%s\n%s\n%s\n", StructuredStart, data, StructuredEnd)
	return err
}

// ParseStructured extracts the structured output block from text.
func ParseStructured(text string) (*Output, error) {
	_, rest, ok := strings.Cut(text, StructuredStart+"\n")
	if !ok {
		return nil, ErrNoStructuredOutput
	}
	body, _, ok := strings.Cut(rest, "\n"+StructuredEnd)
	if !ok {
		return nil, ErrNoStructuredOutput
	}

	var out Output
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("failed to parse structured output: %w", err)
	}
	return &out, nil
}

func fileTypeOf(name string) (string, bool) {
	switch {
	case strings.HasSuffix(name, ".md"):
		return TypeMarkdown, true
	case strings.HasSuffix(name, ".txt"):
		return TypeText, true
	default:
		return "", false
	}
}

func readImage(dir, name string) (Image, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, err
	}
	return Image{
		Filename: name,
		Base64:   base64.StdEncoding.EncodeToString(data),
		Path:     path,
	}, nil
}

// listDir returns the names of regular files in dir, sorted. A missing
// directory is empty.
func listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names
}
