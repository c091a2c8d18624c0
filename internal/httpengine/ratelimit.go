package httpengine

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// RateLimitInfo is the provider-agnostic view of rate-limit headers used to
// compute retry_after_ms (§4.13, §5 timeouts).
type RateLimitInfo struct {
	RetryAfter            time.Duration
	ResetTime             int64
	RequestsRemaining     int
	InputTokensRemaining  int
	OutputTokensRemaining int
	TokensRemaining       int
}

// HeaderParser extracts RateLimitInfo from a provider's response headers.
type HeaderParser func(http.Header) RateLimitInfo

// resetFormat distinguishes how a provider encodes a reset-time header,
// since OpenAI uses a unix timestamp and Anthropic an RFC3339 string while
// Google exposes no reset header at all.
type resetFormat int

const (
	resetNone resetFormat = iota
	resetUnix
	resetRFC3339
)

// headerNames is the per-provider set of rate-limit header names; the three
// provider parsers below differ only in these, so the actual extraction
// logic lives once in parseRateLimitHeaders.
type headerNames struct {
	retryAfter        string
	resetHeaders      []string
	resetFmt          resetFormat
	requestsRemaining string
	inputRemaining    string
	outputRemaining   string
	tokensRemaining   string
}

var (
	openAIHeaders = headerNames{
		retryAfter:        "Retry-After",
		resetHeaders:      []string{"x-ratelimit-reset-tokens", "x-ratelimit-reset-requests"},
		resetFmt:          resetUnix,
		requestsRemaining: "x-ratelimit-remaining-requests",
		tokensRemaining:   "x-ratelimit-remaining-tokens",
	}

	anthropicHeaders = headerNames{
		retryAfter: "retry-after",
		resetHeaders: []string{
			"anthropic-ratelimit-input-tokens-reset",
			"anthropic-ratelimit-output-tokens-reset",
			"anthropic-ratelimit-requests-reset",
		},
		resetFmt:          resetRFC3339,
		requestsRemaining: "anthropic-ratelimit-requests-remaining",
		inputRemaining:    "anthropic-ratelimit-input-tokens-remaining",
		outputRemaining:   "anthropic-ratelimit-output-tokens-remaining",
	}

	googleHeaders = headerNames{
		retryAfter: "Retry-After",
	}
)

// parseRateLimitHeaders applies one headerNames spec to an actual response,
// filling in whichever counters that provider exposes. A provider that
// doesn't set a given header field (e.g. Google's empty resetHeaders) just
// leaves the corresponding RateLimitInfo field at its zero value.
func parseRateLimitHeaders(headers http.Header, names headerNames) RateLimitInfo {
	var info RateLimitInfo

	if v := headers.Get(names.retryAfter); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			info.RetryAfter = time.Duration(seconds) * time.Second
		}
	}

	for _, h := range names.resetHeaders {
		v := headers.Get(h)
		if v == "" {
			continue
		}
		switch names.resetFmt {
		case resetUnix:
			if t, err := strconv.ParseInt(v, 10, 64); err == nil {
				info.ResetTime = t
			}
		case resetRFC3339:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				info.ResetTime = t.Unix()
			}
		}
		if info.ResetTime != 0 {
			break
		}
	}

	scanCounter(headers, names.requestsRemaining, &info.RequestsRemaining)
	scanCounter(headers, names.inputRemaining, &info.InputTokensRemaining)
	scanCounter(headers, names.outputRemaining, &info.OutputTokensRemaining)
	scanCounter(headers, names.tokensRemaining, &info.TokensRemaining)

	return info
}

func scanCounter(headers http.Header, name string, dst *int) {
	if name == "" {
		return
	}
	if v := headers.Get(name); v != "" {
		_, _ = fmt.Sscanf(v, "%d", dst)
	}
}

// ParseOpenAIRateLimitHeaders reads OpenAI's x-ratelimit-* headers.
func ParseOpenAIRateLimitHeaders(headers http.Header) RateLimitInfo {
	return parseRateLimitHeaders(headers, openAIHeaders)
}

// ParseAnthropicRateLimitHeaders reads Anthropic's anthropic-ratelimit-* headers.
func ParseAnthropicRateLimitHeaders(headers http.Header) RateLimitInfo {
	return parseRateLimitHeaders(headers, anthropicHeaders)
}

// ParseGoogleRateLimitHeaders reads Google Gemini's rate-limit headers (only
// Retry-After is standardized there).
func ParseGoogleRateLimitHeaders(headers http.Header) RateLimitInfo {
	return parseRateLimitHeaders(headers, googleHeaders)
}
