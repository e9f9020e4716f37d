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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
)

var imageExt = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|gif|svg)$`)

// Report is a previously generated report as listed by the API.
type Report struct {
	ID              string    `json:"id"`
	Success         bool      `json:"success"`
	Output          string    `json:"output"`
	Topic           string    `json:"topic"`
	Query           string    `json:"query"`
	Timestamp       time.Time `json:"timestamp"`
	FilesGenerated  []File    `json:"files_generated"`
	ImagesGenerated []Image   `json:"images_generated"`
	IsExisting      bool      `json:"isExisting"`
}

// List returns the reports on disk, newest first. Each .md or .txt file is
// a report; an image is attached to the first report whose topic slug its
// name contains, otherwise it becomes a report of its own.
func (c Collector) List() []Report {
	log := c.logger()
	reports := []Report{}

	for _, name := range listDir(c.FilesDir) {
		fileType, ok := fileTypeOf(name)
		if !ok {
			continue
		}
		path := filepath.Join(c.FilesDir, name)
		info, err := os.Stat(path)
		if err != nil {
			log.Warn("Error reading file", "file", name, "error", err)
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("Error reading file", "file", name, "error", err)
			continue
		}

		reports = append(reports, Report{
			ID:        fmt.Sprintf("existing_%s_%d", name, info.ModTime().UnixMilli()),
			Success:   true,
			Output:    "Loaded existing report: " + name,
			Topic:     TopicFromFilename(strings.TrimSuffix(strings.TrimSuffix(name, ".md"), ".txt")),
			Query:     "Previously generated report",
			Timestamp: info.ModTime().UTC(),
			FilesGenerated: []File{{
				Filename: name,
				Content:  string(data),
				Path:     path,
				FileType: fileType,
			}},
			ImagesGenerated: []Image{},
			IsExisting:      true,
		})
	}

	for _, name := range listDir(c.ImagesDir) {
		if !imageExt.MatchString(name) {
			continue
		}
		info, err := os.Stat(filepath.Join(c.ImagesDir, name))
		if err != nil {
			log.Warn("Error reading image", "image", name, "error", err)
			continue
		}
		img, err := readImage(c.ImagesDir, name)
		if err != nil {
			log.Warn("Error reading image", "image", name, "error", err)
			continue
		}

		if r := findReport(reports, name); r != nil {
			r.ImagesGenerated = append(r.ImagesGenerated, img)
			continue
		}

		reports = append(reports, Report{
			ID:              fmt.Sprintf("existing_image_%s_%d", name, info.ModTime().UnixMilli()),
			Success:         true,
			Output:          "Loaded existing image: " + name,
			Topic:           TopicFromFilename(imageExt.ReplaceAllString(name, "")),
			Query:           "Previously generated image",
			Timestamp:       info.ModTime().UTC(),
			FilesGenerated:  []File{},
			ImagesGenerated: []Image{img},
			IsExisting:      true,
		})
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Timestamp.After(reports[j].Timestamp)
	})
	return reports
}

func findReport(reports []Report, image string) *Report {
	lower := strings.ToLower(image)
	for i := range reports {
		slug := strings.Join(strings.Fields(strings.ToLower(reports[i].Topic)), "_")
		if strings.Contains(lower, slug) {
			return &reports[i]
		}
	}
	return nil
}

// TopicFromFilename turns a file stem like "ai_agents_report" into
// "Ai Agents Report".
func TopicFromFilename(stem string) string {
	s := []rune(strings.ReplaceAll(stem, "_", " "))
	for i, r := range s {
		if isWordRune(r) && (i == 0 || !isWordRune(s[i-1])) {
			s[i] = unicode.ToUpper(r)
		}
	}
	return string(s)
}

func isWordRune(r rune) bool {
	return r == '_' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
