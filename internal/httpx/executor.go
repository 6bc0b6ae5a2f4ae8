// Package httpx implements the HTTP request layer used by every
// network-touching component: a single-request executor with bounded
// retry-and-backoff on transport failures, and a paginator that walks
// page-numbered or Link-header APIs.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Synthetic status codes returned when all transport-level retries are
// exhausted. Application statuses from the server are passed through as-is.
const (
	StatusTimedOut       = http.StatusRequestTimeout
	StatusTransportError = http.StatusInternalServerError
)

// Result is the outcome of a single executed request. Transport failures are
// reported as synthetic statuses with ErrText set, not as Go errors, so
// callers always check status ranges.
type Result struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	// ErrText carries a human-readable description when the status is
	// synthetic; empty for real server responses.
	ErrText string
}

// OK reports whether the status is in the 2xx range.
func (r Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the response body into v.
func (r Result) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// StatusError reports a non-2xx page fetch during pagination.
type StatusError struct {
	StatusCode int
	URL        string
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
}

// Executor issues HTTP requests with a per-request timeout and retries
// transport failures with exponential backoff. It is safe for concurrent use;
// the API-call counter is atomic.
type Executor struct {
	client     *http.Client
	logger     *zap.Logger
	timeout    time.Duration
	maxRetries int
	calls      atomic.Int64

	// sleep is replaceable in tests.
	sleep func(time.Duration)
}

// NewExecutor creates an executor. client may be nil, in which case
// http.DefaultClient's transport is used. maxRetries is the number of
// additional attempts after the first; 0 disables retrying.
func NewExecutor(client *http.Client, logger *zap.Logger, timeout time.Duration, maxRetries int) *Executor {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Executor{
		client:     client,
		logger:     logger,
		timeout:    timeout,
		maxRetries: maxRetries,
		sleep:      time.Sleep,
	}
}

// Calls returns the number of HTTP attempts issued so far.
func (e *Executor) Calls() int64 {
	return e.calls.Load()
}

// Do executes one logical request. Transport failures (timeout, connection
// error) are retried up to the configured maximum with 2^attempt seconds of
// backoff; exhaustion yields a synthetic 408 or 500 Result. Application
// statuses, including 4xx/5xx, are returned verbatim without retrying.
func (e *Executor) Do(ctx context.Context, method, url string, header http.Header, body []byte) Result {
	var lastErr error

	for attempt := 0; ; attempt++ {
		res, err := e.attempt(ctx, method, url, header, body)
		if err == nil {
			return res
		}
		lastErr = err

		// A cancelled parent context means the caller is shutting down;
		// retrying would only delay the exit.
		if ctx.Err() != nil {
			break
		}
		if attempt >= e.maxRetries {
			e.logger.Error("maximum retry attempts reached, giving up",
				zap.String("url", url),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			break
		}

		wait := time.Duration(1<<uint(attempt)) * time.Second
		e.logger.Warn("request failed, retrying",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", e.maxRetries),
			zap.Duration("wait", wait),
			zap.Error(err))
		e.sleep(wait)
	}

	if isTimeout(lastErr) {
		return Result{
			StatusCode: StatusTimedOut,
			ErrText:    fmt.Sprintf("request timed out after %d attempts: %v", e.maxRetries+1, lastErr),
		}
	}
	return Result{
		StatusCode: StatusTransportError,
		ErrText:    fmt.Sprintf("request failed after %d attempts: %v", e.maxRetries+1, lastErr),
	}
}

func (e *Executor) attempt(ctx context.Context, method, url string, header http.Header, body []byte) (Result, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, url, reader)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	e.calls.Add(1)

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response body: %w", err)
	}

	return Result{
		StatusCode: resp.StatusCode,
		Body:       data,
		Header:     resp.Header,
	}, nil
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
