// Package utils provides filesystem and token counting helpers.
package utils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultTokenModel is the model whose encoding is used for report token
// counts.
const DefaultTokenModel = "gpt-4o"

// TokenCounter counts tokens with the encoding of a model.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.Mutex
)

// NewTokenCounter creates a counter for model. Encodings are cached per
// model. Loading an encoding may need network access on first use.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := encodingCache[model]; ok {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(GetEncodingForModel(model))
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding for %s: %w", model, err)
		}
	}
	encodingCache[model] = encoding

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Count returns the token count of text. A nil counter estimates.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.encoding == nil {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// Model returns the model name this counter is configured for.
func (tc *TokenCounter) Model() string {
	if tc == nil {
		return ""
	}
	return tc.model
}

// CountTokens counts the tokens of text for model. When the encoding cannot
// be loaded it falls back to EstimateTokens.
func CountTokens(model, text string) int {
	tc, err := NewTokenCounter(model)
	if err != nil {
		return EstimateTokens(text)
	}
	return tc.Count(text)
}

// EstimateTokens is a rough count at four characters per token.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		return 1
	}
	return n
}

// GetEncodingForModel returns the encoding name for a model family.
func GetEncodingForModel(model string) string {
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "o200k_base"
	default:
		return "cl100k_base"
	}
}
