package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// transport is the HTTP loop shared by every runtime. With more than one
// attempt, transient network errors, 429 and 5xx are retried with jittered
// exponential backoff, and a Retry-After header takes precedence over the
// computed delay. One attempt means exactly one call.
type transport struct {
	httpClient       *http.Client
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	// host is reported in UnreachableError; empty means network failures are
	// wrapped as plain errors.
	host string
}

func newTransport(httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) transport {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax < 1 {
		retryMax = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	return transport{
		httpClient:       &http.Client{Timeout: httpTimeout},
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
	}
}

// do sends the request built by newReq until it succeeds or attempts run out.
// A 2xx body is returned whole; the final non-2xx response is converted by
// classify.
func (t *transport) do(ctx context.Context, newReq func(context.Context) (*http.Request, error), classify func(*APIError, *http.Response) error) ([]byte, *http.Response, error) {
	backoff := t.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= t.retryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		req, err := newReq(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := t.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			lastErr = t.netErr(err)
			if isRetryableNetErr(err) && attempt < t.retryMaxAttempts {
				if err := sleepCtx(ctx, withJitter(backoff)); err != nil {
					return nil, nil, err
				}
				backoff *= 2
				continue
			}
			return nil, nil, lastErr
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if readErr != nil {
				return nil, resp, fmt.Errorf("read response: %w", readErr)
			}
			return body, resp, nil
		}

		apiErr := parseAPIError(resp, body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if !retryable || attempt == t.retryMaxAttempts {
			return nil, resp, classify(apiErr, resp)
		}
		lastErr = apiErr
		wait := withJitter(backoff)
		if t.retryMaxDelay > 0 && wait > t.retryMaxDelay {
			wait = t.retryMaxDelay
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := parseRetryAfterSeconds(ra); err == nil && secs >= 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, nil, err
		}
		backoff *= 2
	}
	return nil, nil, lastErr
}

func (t *transport) netErr(err error) error {
	if t.host != "" {
		return &UnreachableError{Host: t.host, Err: err}
	}
	return fmt.Errorf("http request: %w", err)
}

// postJSON is do for a JSON POST with the given extra headers.
func (t *transport) postJSON(ctx context.Context, endpoint string, body any, headers map[string]string, classify func(*APIError, *http.Response) error) ([]byte, *http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}
	return t.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}, classify)
}

// getJSON is do for a GET with the given extra headers.
func (t *transport) getJSON(ctx context.Context, endpoint string, headers map[string]string, classify func(*APIError, *http.Response) error) ([]byte, *http.Response, error) {
	return t.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}, classify)
}

// parseAPIError decodes the common provider error envelopes:
// {"error":{"message","code"|"status"}}, {"error":"..."} and {"message":"..."}.
func parseAPIError(resp *http.Response, body []byte) *APIError {
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp)}
	switch v := raw["error"].(type) {
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			apiErr.Message = msg
		}
		if code, ok := v["code"].(string); ok {
			apiErr.Code = code
		} else if status, ok := v["status"].(string); ok {
			apiErr.Code = status
		}
	case string:
		apiErr.Message = v
	}
	if apiErr.Message == "" {
		if msg, ok := raw["message"].(string); ok {
			apiErr.Message = msg
		}
	}
	if apiErr.Code == "" {
		if code, ok := raw["code"].(string); ok {
			apiErr.Code = code
		}
	}
	return apiErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfterSeconds interprets a Retry-After value as seconds or an
// HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// withJitter returns d with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	if out := time.Duration(float64(d) * f); out > 0 {
		return out
	}
	return d
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Goog-Request-Id", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}
