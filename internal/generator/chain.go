package generator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/KaramelBytes/askcsv/internal/metrics"
)

// Chain tries its backends in order and returns the first usable answer.
type Chain struct {
	backends []*Backend
	logger   *zap.Logger
}

// NewChain keeps the first backend of each name; later duplicates are
// ignored so no backend is asked twice for one prompt.
func NewChain(logger *zap.Logger, backends ...*Backend) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	seen := make(map[string]bool, len(backends))
	c := &Chain{logger: logger.Named("generator")}
	for _, b := range backends {
		if b == nil || b.Runtime == nil || seen[b.Name] {
			continue
		}
		seen[b.Name] = true
		c.backends = append(c.backends, b)
	}
	return c
}

// Backends returns the backend names in fallback order.
func (c *Chain) Backends() []string {
	out := make([]string, len(c.backends))
	for i, b := range c.backends {
		out[i] = b.Name
	}
	return out
}

// Generate returns the first non-empty completion. When every backend fails
// the error is a *RateLimitedError if the last failure was throttling, and an
// *ExhaustedError otherwise.
func (c *Chain) Generate(ctx context.Context, p Prompt) (string, error) {
	if len(c.backends) == 0 {
		return "", &ExhaustedError{Cause: ErrNoBackends}
	}
	var (
		attempts []string
		lastErr  error
	)
	for _, b := range c.backends {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempts = append(attempts, b.Name)
		text, err := b.Generate(ctx, p)
		if err == nil {
			metrics.RecordGeneration(b.Name, "ok")
			c.logger.Debug("generated query", zap.String("backend", b.String()), zap.Int("attempt", len(attempts)))
			return text, nil
		}
		status := "error"
		if IsRateLimited(err) {
			status = "rate_limited"
		} else if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		metrics.RecordGeneration(b.Name, status)
		c.logger.Warn("backend failed, falling back",
			zap.String("backend", b.String()),
			zap.String("status", status),
			zap.Error(err))
		lastErr = err
	}
	if IsRateLimited(lastErr) {
		return "", &RateLimitedError{Cause: lastErr}
	}
	return "", &ExhaustedError{Attempts: attempts, Cause: lastErr}
}
