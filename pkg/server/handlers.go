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

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kadirpekel/crewlink/pkg/report"
	"github.com/kadirpekel/crewlink/pkg/research"
	"github.com/kadirpekel/crewlink/pkg/tracker"
)

const maxRequestBody = 1 << 20

// ResearchResponse is the body of a completed research request.
type ResearchResponse struct {
	Success         bool           `json:"success"`
	Topic           string         `json:"topic"`
	Query           string         `json:"query"`
	Timestamp       time.Time      `json:"timestamp"`
	RunName         string         `json:"run_name,omitempty"`
	RunURL          string         `json:"run_url,omitempty"`
	StructuredData  report.Output  `json:"structured_data"`
	FilesGenerated  []report.File  `json:"files_generated"`
	ImagesGenerated []report.Image `json:"images_generated"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req research.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Topic and query are required"})
		return
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	// The research budget starts once the run ahead of this one is done.
	rt := s.current()
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ResearchTimeout)
	defer cancel()

	var (
		result  *research.Result
		runName string
		runURL  string
	)
	err := tracker.Run(ctx, rt.Backend, rt.Start(), func(ctx context.Context, t *tracker.Tracker) error {
		var err error
		result, err = rt.Workflow.Run(ctx, t, req)
		runName, runURL = t.RunName(), t.RunURL()
		return err
	}, rt.TrackerOptions...)
	if err != nil {
		s.log.Error("Research request failed", "topic", req.Topic, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Research workflow failed", Details: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ResearchResponse{
		Success:         true,
		Topic:           req.Topic,
		Query:           req.Query,
		Timestamp:       s.now().UTC(),
		RunName:         runName,
		RunURL:          runURL,
		StructuredData:  result.Output,
		FilesGenerated:  result.Output.FilesGenerated,
		ImagesGenerated: result.Output.ImagesGenerated,
	})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	reports := s.current().Workflow.Outputs().List()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"reports": reports,
		"count":   len(reports),
	})
}

func (s *Server) handleClearReports(w http.ResponseWriter, r *http.Request) {
	s.runMu.Lock()
	removed := s.current().Workflow.Outputs().Clear()
	s.runMu.Unlock()

	s.log.Info("Reports cleared", "files_removed", removed.Files, "images_removed", removed.Images)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        "Reports cleared successfully",
		"files_removed":  removed.Files,
		"images_removed": removed.Images,
		"errors":         removed.Errors,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
