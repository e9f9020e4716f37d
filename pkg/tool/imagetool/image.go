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

// Package imagetool provides generate_image backed by the OpenAI images API.
package imagetool

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kadirpekel/crewlink/pkg/httpclient"
	"github.com/kadirpekel/crewlink/pkg/tool"
	"github.com/kadirpekel/crewlink/pkg/tool/filetool"
	"github.com/kadirpekel/crewlink/pkg/tool/functiontool"
)

// Name is the tool name.
const Name = "generate_image"

// PromptPrefix is prepended to every prompt.
const PromptPrefix = "Generate an image based on the following prompt: "

const generationsPath = "/v1/images/generations"

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("OpenAI API key not found, set OPENAI_API_KEY in your .env file")

// Args defines the parameters for generate_image.
type Args struct {
	Prompt   string `json:"prompt" jsonschema:"required,description=Description of the image to generate"`
	Filename string `json:"filename" jsonschema:"required,description=Name for the generated image file without extension"`
}

// Config defines configuration for generate_image.
type Config struct {
	APIKey       string
	Organization string
	BaseURL      string

	// Dir receives the PNG files. Created on demand.
	// Default: images
	Dir string

	// Default: dall-e-3
	Model string
	// Default: 1024x1024
	Size string
	// Default: hd
	Quality string

	Client *httpclient.Client
}

type generateRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Quality        string `json:"quality"`
	ResponseFormat string `json:"response_format"`
}

type generateResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// New creates the generate_image tool.
func New(cfg Config) (tool.CallableTool, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Dir == "" {
		cfg.Dir = "images"
	}
	if cfg.Model == "" {
		cfg.Model = "dall-e-3"
	}
	if cfg.Size == "" {
		cfg.Size = "1024x1024"
	}
	if cfg.Quality == "" {
		cfg.Quality = "hd"
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.New(httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders))
	}

	g := &generator{cfg: cfg}
	return functiontool.NewWithValidation(
		functiontool.Config{
			Name:        Name,
			Description: "Generate an image using OpenAI DALL-E",
		},
		g.generate,
		func(args Args) error {
			if strings.TrimSpace(args.Prompt) == "" {
				return fmt.Errorf("prompt is required")
			}
			return filetool.ValidateFilename(args.Filename)
		},
	)
}

type generator struct {
	cfg Config
}

func (g *generator) generate(ctx context.Context, args Args) (map[string]any, error) {
	if g.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	image, err := g.request(ctx, args.Prompt)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(args.Filename, ".png") + ".png"
	path := filepath.Join(g.cfg.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	return map[string]any{
		"result": fmt.Sprintf("Successfully generated and saved image '%s' in images directory with prompt: %s", name, args.Prompt),
		"path":   path,
		"size":   len(image),
	}, nil
}

func (g *generator) request(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(generateRequest{
		Model:          g.cfg.Model,
		Prompt:         PromptPrefix + prompt,
		N:              1,
		Size:           g.cfg.Size,
		Quality:        g.cfg.Quality,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(g.cfg.BaseURL, "/") + generationsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	if g.cfg.Organization != "" {
		req.Header.Set("OpenAI-Organization", g.cfg.Organization)
	}

	resp, err := g.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error generating image: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed generateResponse
	decodeErr := json.Unmarshal(data, &parsed)
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("image API error: %d - %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image API returned no image data")
	}

	image, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return image, nil
}
