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

// Package searchtool provides web_search backed by the Brave Search API.
package searchtool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kadirpekel/crewlink/pkg/httpclient"
	"github.com/kadirpekel/crewlink/pkg/tool"
	"github.com/kadirpekel/crewlink/pkg/tool/functiontool"
)

// Name is the tool name.
const Name = "web_search"

const searchPath = "/res/v1/web/search"

// ErrMissingAPIKey is returned when no subscription token is configured.
var ErrMissingAPIKey = errors.New("brave API key not found, set BRAVE_API_KEY in your .env file")

// Args defines the parameters for web_search.
type Args struct {
	Query string `json:"query" jsonschema:"required,description=Search query to execute"`
}

// Config defines configuration for web_search.
type Config struct {
	APIKey  string
	BaseURL string

	// Count is the number of results requested.
	// Default: 5
	Count int

	// Show is the number of results rendered.
	// Default: 3
	Show int

	// Client sends the requests. Default: httpclient.New with Brave rate
	// limit headers.
	Client *httpclient.Client
}

// Result is one web result.
type Result struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type response struct {
	Web struct {
		Results []Result `json:"results"`
	} `json:"web"`
}

// New creates the web_search tool.
func New(cfg Config) (tool.CallableTool, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.search.brave.com"
	}
	if cfg.Count <= 0 {
		cfg.Count = 5
	}
	if cfg.Show <= 0 {
		cfg.Show = min(3, cfg.Count)
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.New(httpclient.WithHeaderParser(httpclient.ParseBraveHeaders))
	}

	s := &searcher{cfg: cfg}
	return functiontool.New(
		functiontool.Config{
			Name:        Name,
			Description: "Search the web using the Brave Search API",
		},
		s.search,
	)
}

type searcher struct {
	cfg Config
}

func (s *searcher) search(ctx context.Context, args Args) (map[string]any, error) {
	if s.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(args.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}

	results, err := s.fetch(ctx, args.Query)
	if err != nil {
		return nil, err
	}

	shown := results[:min(len(results), s.cfg.Show)]
	return map[string]any{
		"result": Format(args.Query, shown),
		"query":  args.Query,
		"count":  len(shown),
	}, nil
}

func (s *searcher) fetch(ctx context.Context, query string) ([]Result, error) {
	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + searchPath + "?" + url.Values{
		"q":     {query},
		"count": {strconv.Itoa(s.cfg.Count)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.cfg.APIKey)

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing web search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return parsed.Web.Results, nil
}

// Format renders results the way the research report embeds them.
func Format(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for '%s'", query)
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("**%s**\n%s\nURL: %s\n",
			orDefault(r.Title, "No title"),
			orDefault(r.Description, "No description"),
			orDefault(r.URL, "No URL")))
	}
	return fmt.Sprintf("Search results for '%s':\n\n", query) + strings.Join(blocks, "\n")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
