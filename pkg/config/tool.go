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

package config

import (
	"fmt"
	"os"
	"time"
)

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	Search SearchToolConfig `yaml:"search,omitempty"`
	Image  ImageToolConfig  `yaml:"image,omitempty"`
	HTTP   HTTPConfig       `yaml:"http,omitempty"`
}

// SearchToolConfig configures web_search.
type SearchToolConfig struct {
	// APIKey is the Brave Search subscription token.
	// Default: $BRAVE_API_KEY
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL of the Brave Search API.
	BaseURL string `yaml:"base_url,omitempty"`

	// Count is how many results are requested.
	// Default: 5
	Count int `yaml:"count,omitempty"`

	// Show is how many results are rendered.
	// Default: 3
	Show int `yaml:"show,omitempty"`
}

// ImageToolConfig configures generate_image.
type ImageToolConfig struct {
	// APIKey for the OpenAI images API.
	// Default: $OPENAI_API_KEY
	APIKey string `yaml:"api_key,omitempty"`

	// Organization is sent as OpenAI-Organization when set.
	// Default: $OPENAI_ORGANIZATION
	Organization string `yaml:"organization,omitempty"`

	BaseURL string `yaml:"base_url,omitempty"`

	// Default: dall-e-3
	Model string `yaml:"model,omitempty"`

	// Default: 1024x1024
	Size string `yaml:"size,omitempty"`

	// Default: hd
	Quality string `yaml:"quality,omitempty"`
}

// HTTPConfig configures the client shared by the HTTP tools.
type HTTPConfig struct {
	// Timeout per request.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// MaxRetries on 429 and 5xx responses.
	// Default: 3
	MaxRetries int `yaml:"max_retries,omitempty"`

	// BaseDelay of the exponential backoff.
	// Default: 1s
	BaseDelay time.Duration `yaml:"base_delay,omitempty"`
}

// SetDefaults applies default values to ToolsConfig.
func (c *ToolsConfig) SetDefaults() {
	if c.Search.APIKey == "" {
		c.Search.APIKey = os.Getenv("BRAVE_API_KEY")
	}
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = "https://api.search.brave.com"
	}
	if c.Search.Count == 0 {
		c.Search.Count = 5
	}
	if c.Search.Show == 0 {
		c.Search.Show = min(3, c.Search.Count)
	}

	if c.Image.APIKey == "" {
		c.Image.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Image.Organization == "" {
		c.Image.Organization = os.Getenv("OPENAI_ORGANIZATION")
	}
	if c.Image.BaseURL == "" {
		c.Image.BaseURL = "https://api.openai.com"
	}
	if c.Image.Model == "" {
		c.Image.Model = "dall-e-3"
	}
	if c.Image.Size == "" {
		c.Image.Size = "1024x1024"
	}
	if c.Image.Quality == "" {
		c.Image.Quality = "hd"
	}

	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 60 * time.Second
	}
	if c.HTTP.MaxRetries == 0 {
		c.HTTP.MaxRetries = 3
	}
	if c.HTTP.BaseDelay == 0 {
		c.HTTP.BaseDelay = time.Second
	}
}

// Validate checks the tools configuration. Missing API keys are not an
// error; the tools report them when called.
func (c *ToolsConfig) Validate() error {
	if c.Search.Count < 0 || c.Search.Show < 0 {
		return fmt.Errorf("search: count and show must be non-negative")
	}
	if c.Search.Show > c.Search.Count {
		return fmt.Errorf("search: show (%d) exceeds count (%d)", c.Search.Show, c.Search.Count)
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http: max_retries must be non-negative")
	}
	return nil
}
