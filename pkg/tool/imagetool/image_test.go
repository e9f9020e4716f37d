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

package imagetool

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestGenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "org-1", r.Header.Get("OpenAI-Organization"))

		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, generateRequest{
			Model:          "dall-e-3",
			Prompt:         "Generate an image based on the following prompt: a lighthouse",
			N:              1,
			Size:           "1024x1024",
			Quality:        "hd",
			ResponseFormat: "b64_json",
		}, req)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"b64_json": base64.StdEncoding.EncodeToString(pngBytes)}},
		})
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "images")
	gen, err := New(Config{APIKey: "sk-test", Organization: "org-1", BaseURL: srv.URL, Dir: dir})
	require.NoError(t, err)

	result, err := gen.Call(context.Background(), map[string]any{
		"prompt":   "a lighthouse",
		"filename": "lighthouse_diagram",
	})
	require.NoError(t, err)
	assert.Contains(t, result["result"], "'lighthouse_diagram.png'")

	data, err := os.ReadFile(filepath.Join(dir, "lighthouse_diagram.png"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestGenerateImage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"content policy violation"}}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	gen, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Dir: dir})
	require.NoError(t, err)

	_, err = gen.Call(context.Background(), map[string]any{"prompt": "p", "filename": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400 - content policy violation")
	assert.NoFileExists(t, filepath.Join(dir, "x.png"))
}

func TestGenerateImage_Rejected(t *testing.T) {
	gen, err := New(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	_, err = gen.Call(context.Background(), map[string]any{"prompt": "p", "filename": "x"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = gen.Call(context.Background(), map[string]any{"prompt": "p", "filename": "../x"})
	assert.ErrorContains(t, err, "traversal")

	_, err = gen.Call(context.Background(), map[string]any{"filename": "x"})
	assert.ErrorContains(t, err, "prompt")
}
