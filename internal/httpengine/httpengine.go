// Package httpengine is the async HTTP engine of §4.13: it owns the single
// outbound HTTP client per provider instance, drives SSE streaming, and
// applies the retry/backoff policy of §5 and §7.
//
// The original design multiplexes many in-flight requests behind one
// curl-multi handle and exports its readiness as an fd_set for the REPL's
// select() loop. Go's runtime scheduler already multiplexes blocking I/O
// across goroutines, so that role collapses naturally: StartRequest spawns
// one goroutine per request and hands the caller a channel of Events. The
// REPL's event loop (§4.15) is itself a select over Go channels — this
// channel IS this engine's fd_set-equivalent readiness signal.
package httpengine

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/ikigai-term/ikigai/internal/ikerr"
)

// RetryStrategy is how a failed attempt should be handled.
type RetryStrategy int

const (
	NoRetry RetryStrategy = iota
	ConservativeRetry
	SmartRetry
)

// StrategyFunc classifies a status code into a RetryStrategy.
type StrategyFunc func(statusCode int) RetryStrategy

// DefaultStrategy mirrors the teacher's classification: 429/503 get
// rate-limit-aware SmartRetry, 408/500/502/504 get a short ConservativeRetry,
// everything else is not retried here (the provider maps it to a category
// instead, per §7).
func DefaultStrategy(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// EventKind discriminates Engine's streaming-line events.
type EventKind int

const (
	EventLine EventKind = iota
	EventDone
	EventError
)

// Event is one readiness notification for an in-flight streaming request.
type Event struct {
	Kind         EventKind
	Line         []byte
	StatusCode   int
	Body         []byte
	Err          *ikerr.Error
	RetryAfterMs int
}

// Engine is one provider instance's async HTTP driver (§5 "HTTP multi-handle
// -> provider instance, event-loop-thread only").
type Engine struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	headerParser HeaderParser
	strategyFunc StrategyFunc
}

// Option configures an Engine.
type Option func(*Engine)

func WithHTTPClient(c *http.Client) Option     { return func(e *Engine) { e.client = c } }
func WithMaxRetries(n int) Option              { return func(e *Engine) { e.maxRetries = n } }
func WithBaseDelay(d time.Duration) Option     { return func(e *Engine) { e.baseDelay = d } }
func WithMaxDelay(d time.Duration) Option      { return func(e *Engine) { e.maxDelay = d } }
func WithHeaderParser(p HeaderParser) Option   { return func(e *Engine) { e.headerParser = p } }
func WithRetryStrategy(f StrategyFunc) Option  { return func(e *Engine) { e.strategyFunc = f } }

// New builds an Engine with the teacher's defaults: 120s client timeout,
// 5 retries, 2s base / 60s max backoff.
func New(opts ...Option) *Engine {
	e := &Engine{
		client:       &http.Client{Timeout: 120 * time.Second},
		maxRetries:   5,
		baseDelay:    2 * time.Second,
		maxDelay:     60 * time.Second,
		strategyFunc: DefaultStrategy,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartRequest issues req (replayable body required for retries), retrying
// non-2xx responses per the configured strategy, and streams the response
// body line-by-line onto the returned channel. The channel is closed after a
// terminal EventDone/EventError. Cancelling ctx ends the goroutine's next
// blocking read (§5 cancellation semantics).
func (e *Engine) StartRequest(ctx context.Context, req *http.Request) <-chan Event {
	out := make(chan Event, 16)

	var bodyBytes []byte
	if req.Body != nil {
		bodyBytes, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	go func() {
		defer close(out)

		for attempt := 0; attempt <= e.maxRetries; attempt++ {
			if bodyBytes != nil {
				req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			}
			req = req.WithContext(ctx)

			resp, err := e.client.Do(req)
			if err != nil {
				out <- Event{Kind: EventError, Err: ikerr.Wrap(err, ikerr.Network, "request failed")}
				return
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				e.streamBody(resp.Body, out)
				resp.Body.Close()
				return
			}

			strategy := e.strategyFunc(resp.StatusCode)
			var info RateLimitInfo
			if e.headerParser != nil {
				info = e.headerParser(resp.Header)
			}

			if strategy == NoRetry || attempt >= e.maxRetries {
				errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
				resp.Body.Close()
				out <- Event{
					Kind:       EventError,
					StatusCode: resp.StatusCode,
					Body:       errBody,
					Err:        ikerr.New(categoryForStatus(resp.StatusCode), "HTTP %d", resp.StatusCode),
				}
				return
			}
			resp.Body.Close()

			delay := e.calculateDelay(strategy, attempt, info)
			select {
			case <-ctx.Done():
				out <- Event{Kind: EventError, Err: ikerr.Wrap(ctx.Err(), ikerr.Network, "request cancelled")}
				return
			case <-time.After(delay):
			}
		}
	}()

	return out
}

func (e *Engine) streamBody(body io.Reader, out chan<- Event) {
	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			out <- Event{Kind: EventLine, Line: bytes.TrimRight(line, "\r\n")}
		}
		if err != nil {
			if err == io.EOF {
				out <- Event{Kind: EventDone}
				return
			}
			out <- Event{Kind: EventError, Err: ikerr.Wrap(err, ikerr.IO, "stream read failed")}
			return
		}
	}
}

func (e *Engine) calculateDelay(strategy RetryStrategy, attempt int, info RateLimitInfo) time.Duration {
	switch strategy {
	case SmartRetry:
		if info.RetryAfter > 0 {
			return info.RetryAfter
		}
		if info.ResetTime > 0 {
			if d := time.Until(time.Unix(info.ResetTime, 0)); d > 0 {
				return minDuration(d, e.maxDelay)
			}
		}
		delay := time.Duration(math.Pow(2, float64(attempt))) * e.baseDelay
		jitter := time.Duration(rand.Float64() * float64(delay) * 0.1)
		return minDuration(delay+jitter, e.maxDelay)
	case ConservativeRetry:
		if attempt >= 2 {
			return 0
		}
		return time.Duration(2+attempt) * time.Second
	default:
		return 0
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// categoryForStatus maps an HTTP status to the error taxonomy of §7.
func categoryForStatus(status int) ikerr.Category {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ikerr.Auth
	case status == http.StatusTooManyRequests:
		return ikerr.RateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ikerr.Timeout
	case status >= 500:
		return ikerr.Server
	case status == http.StatusNotFound:
		return ikerr.NotFound
	default:
		return ikerr.Internal
	}
}

// RetryAfterMs is a convenience used by providers surfacing §4.13's
// retry_after_ms to the REPL's diagnostic line.
func RetryAfterMs(info RateLimitInfo) int {
	if info.RetryAfter <= 0 {
		return 0
	}
	return int(info.RetryAfter / time.Millisecond)
}
