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
	"slices"
	"strings"
)

var (
	cleanupFileExts  = []string{".txt", ".md", ".json"}
	cleanupImageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".svg"}
)

// Removed counts the entries deleted by Cleanup or Clear.
type Removed struct {
	Files  int      `json:"files_removed"`
	Images int      `json:"images_removed"`
	Errors []string `json:"errors,omitempty"`
}

// Cleanup removes previous outputs before a run: text, markdown and JSON
// files, and images. Other entries are left alone.
func (c Collector) Cleanup() Removed {
	log := c.logger()
	var r Removed

	r.Files = c.remove(c.FilesDir, cleanupFileExts, &r.Errors)
	r.Images = c.remove(c.ImagesDir, cleanupImageExts, &r.Errors)

	log.Info("Cleanup completed", "files_removed", r.Files, "images_removed", r.Images)
	return r
}

// Clear removes every regular file from both directories.
func (c Collector) Clear() Removed {
	var r Removed
	r.Files = c.remove(c.FilesDir, nil, &r.Errors)
	r.Images = c.remove(c.ImagesDir, nil, &r.Errors)
	return r
}

// remove deletes files in dir with one of exts, or all when exts is nil.
func (c Collector) remove(dir string, exts []string, errs *[]string) int {
	log := c.logger()
	removed := 0
	for _, name := range listDir(dir) {
		if exts != nil && !slices.Contains(exts, strings.ToLower(filepath.Ext(name))) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			log.Warn("Error removing file", "file", name, "error", err)
			*errs = append(*errs, fmt.Sprintf("failed to remove %s: %v", name, err))
			continue
		}
		removed++
		log.Debug("Removed old output", "file", name)
	}
	return removed
}
