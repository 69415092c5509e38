package ai

import "context"

// Runtime is implemented by every text generation backend: hosted chat APIs,
// a local Ollama runtime and hosted text2text inference endpoints.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// ModelLister is implemented by runtimes that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelEntry, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
	ProviderInference  = "inference"
)

// Providers lists the built-in provider identifiers in display order.
func Providers() []string {
	return []string{ProviderGemini, ProviderInference, ProviderOpenRouter, ProviderOllama}
}
