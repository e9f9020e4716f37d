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

package searchtool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const braveResponse = `{"web":{"results":[
	{"title":"One","description":"first","url":"https://one.example"},
	{"title":"Two","description":"second","url":"https://two.example"},
	{"title":"","description":"","url":"https://three.example"},
	{"title":"Four","description":"fourth","url":"https://four.example"}
]}}`

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/res/v1/web/search", r.URL.Path)
		assert.Equal(t, "quantum computing", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("count"))
		assert.Equal(t, "secret", r.Header.Get("X-Subscription-Token"))
		_, _ = w.Write([]byte(braveResponse))
	}))
	defer srv.Close()

	search, err := New(Config{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := search.Call(context.Background(), map[string]any{"query": "quantum computing"})
	require.NoError(t, err)

	want := "Search results for 'quantum computing':\n\n" +
		"**One**\nfirst\nURL: https://one.example\n" +
		"\n**Two**\nsecond\nURL: https://two.example\n" +
		"\n**No title**\nNo description\nURL: https://three.example\n"
	assert.Equal(t, want, result["result"])
	assert.Equal(t, 3, result["count"])
}

func TestSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	search, err := New(Config{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := search.Call(context.Background(), map[string]any{"query": "zzz"})
	require.NoError(t, err)
	assert.Equal(t, "No results found for 'zzz'", result["result"])
}

func TestSearch_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	search, err := New(Config{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = search.Call(context.Background(), map[string]any{"query": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search API error: 401 - invalid token")

	noKey, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = noKey.Call(context.Background(), map[string]any{"query": "x"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestFormat_ShowLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("count"))
		_, _ = w.Write([]byte(braveResponse))
	}))
	defer srv.Close()

	search, err := New(Config{APIKey: "k", BaseURL: srv.URL, Count: 2, Show: 1})
	require.NoError(t, err)

	result, err := search.Call(context.Background(), map[string]any{"query": "q"})
	require.NoError(t, err)
	assert.Equal(t, 1, result["count"])
}
