package cmd

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/askcsv/internal/ai"
	cfgpkg "github.com/KaramelBytes/askcsv/internal/config"
	"github.com/KaramelBytes/askcsv/internal/generator"
)

// runtimeConfig maps the shared HTTP/retry settings onto ai.RuntimeConfig
// with the given number of calls per request.
func runtimeConfig(c *cfgpkg.Global, attempts int) ai.RuntimeConfig {
	return ai.RuntimeConfig{
		HTTPTimeout: c.HTTPTimeout(),
		RetryMax:    attempts,
		BaseDelay:   c.RetryBaseDelay(),
		MaxDelay:    c.RetryMaxDelay(),
	}
}

// firstNonEmpty returns the first non-blank value.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// newBackend builds the generator backend for one provider. Generation makes
// a single call per backend; on failure the chain moves to the next one. A
// nil backend with a reason means the provider is not usable with the
// current settings.
func newBackend(c *cfgpkg.Global, provider string) (*generator.Backend, string) {
	return buildBackend(c, provider, 1)
}

func buildBackend(c *cfgpkg.Global, provider string, attempts int) (*generator.Backend, string) {
	rc := runtimeConfig(c, attempts)
	b := &generator.Backend{
		Name:        provider,
		Style:       generator.StyleChat,
		Timeout:     c.GenerationTimeout(),
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
	switch provider {
	case ai.ProviderGemini:
		rc.APIKey = firstNonEmpty(c.GeminiAPIKey, os.Getenv("GEMINI_API_KEY"))
		if rc.APIKey == "" {
			return nil, "gemini_api_key is not set"
		}
		b.Model = c.GeminiModel
	case ai.ProviderOpenRouter:
		rc.APIKey = firstNonEmpty(c.OpenRouterAPIKey, os.Getenv("OPENROUTER_API_KEY"))
		if rc.APIKey == "" {
			return nil, "openrouter_api_key is not set"
		}
		b.Model = c.OpenRouterModel
	case ai.ProviderOllama:
		rc.Host = c.OllamaHost
		b.Model = c.OllamaModel
	case ai.ProviderInference:
		rc.URL = strings.TrimSpace(c.InferenceURL)
		if rc.URL == "" {
			return nil, "inference_url is not set"
		}
		rc.Token = c.InferenceToken
		b.Model = ai.DefaultInferenceModel
		b.Style = generator.StyleCompact
	default:
		return nil, fmt.Sprintf("provider not supported: %s", provider)
	}
	rt, ok := ai.GetRuntime(provider, rc)
	if !ok {
		return nil, fmt.Sprintf("provider not supported: %s", provider)
	}
	b.Runtime = rt
	return b, ""
}

// buildChain assembles the configured providers in order, skipping the ones
// that cannot run.
func buildChain(c *cfgpkg.Global, log *zap.Logger) *generator.Chain {
	var backends []*generator.Backend
	for _, p := range c.Providers {
		b, reason := newBackend(c, p)
		if b == nil {
			log.Warn("skipping generator backend", zap.String("backend", p), zap.String("reason", reason))
			continue
		}
		backends = append(backends, b)
	}
	return generator.NewChain(log, backends...)
}
