// Package generator turns a natural-language question into candidate SQL by
// asking one or more text generation backends in order.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/askcsv/internal/ai"
	"github.com/KaramelBytes/askcsv/internal/query"
)

// Generator produces candidate SQL text for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 30 * time.Second

// Backend is one runtime and model with its own prompt style and timeout.
type Backend struct {
	Name        string
	Runtime     ai.Runtime
	Model       string
	Style       Style
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Generate asks the runtime once. The prompt's sample rows are trimmed to fit
// the model's context window and the completion is unwrapped from any code
// fence.
func (b *Backend) Generate(ctx context.Context, p Prompt) (string, error) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p = p.Fit(b.Style, b.budget())
	resp, err := b.Runtime.Generate(ctx, ai.GenerateRequest{
		Model:       b.Model,
		Messages:    p.Messages(b.Style),
		MaxTokens:   b.MaxTokens,
		Temperature: b.Temperature,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(query.StripCodeFence(resp.Text()))
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// budget is the prompt token allowance: the context window minus the
// completion reservation, never below half the window.
func (b *Backend) budget() int {
	window := ai.ContextWindow(b.Model)
	budget := window - b.MaxTokens
	if budget < window/2 {
		budget = window / 2
	}
	return budget
}

func (b *Backend) String() string {
	if b.Model == "" {
		return b.Name
	}
	return fmt.Sprintf("%s/%s", b.Name, b.Model)
}
