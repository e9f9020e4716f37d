package httpclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

func parseRetryAfter(headers http.Header) time.Duration {
	if v := headers.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

// ParseOpenAIHeaders extracts rate limit info from OpenAI API headers.
func ParseOpenAIHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{RetryAfter: parseRetryAfter(headers)}

	if v := headers.Get("x-ratelimit-remaining-requests"); v != "" {
		info.RequestsRemaining, _ = strconv.Atoi(v)
	}
	if v := headers.Get("x-ratelimit-remaining-tokens"); v != "" {
		info.TokensRemaining, _ = strconv.Atoi(v)
	}
	return info
}

// ParseBraveHeaders extracts rate limit info from Brave Search headers.
// Brave sends comma separated per-window values, e.g.
// "X-RateLimit-Reset: 1, 1419704" (seconds until each window resets).
func ParseBraveHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{RetryAfter: parseRetryAfter(headers)}

	if info.RetryAfter == 0 {
		if first := firstField(headers.Get("X-RateLimit-Reset")); first != "" {
			if seconds, err := strconv.Atoi(first); err == nil && seconds > 0 {
				info.RetryAfter = time.Duration(seconds) * time.Second
			}
		}
	}
	if first := firstField(headers.Get("X-RateLimit-Remaining")); first != "" {
		info.RequestsRemaining, _ = strconv.Atoi(first)
	}
	return info
}

func firstField(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}
