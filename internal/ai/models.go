package ai

import (
	"encoding/json"
	"os"
	"sort"
)

// ModelInfo is catalog metadata used to budget prompts.
type ModelInfo struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	ContextTokens int    `json:"context_tokens"` // approximate context window
}

// ModelEntry is one model reported by a provider's listing endpoint.
type ModelEntry struct {
	Name             string   `json:"name"`
	DisplayName      string   `json:"display_name,omitempty"`
	Description      string   `json:"description,omitempty"`
	Methods          []string `json:"methods,omitempty"`
	InputTokenLimit  int      `json:"input_token_limit,omitempty"`
	OutputTokenLimit int      `json:"output_token_limit,omitempty"`
}

// DefaultContextTokens is assumed for models missing from the catalog.
const DefaultContextTokens = 4096

// DefaultInferenceModel names the text-to-SQL model served by an inference
// endpoint; the endpoint URL, not this name, selects what actually runs.
const DefaultInferenceModel = "juierror/flan-t5-text2sql-with-schema"

var models = func() map[string]ModelInfo {
	m := make(map[string]ModelInfo)
	for _, mi := range []ModelInfo{
		{Name: "gemini-1.5-flash", Provider: ProviderGemini, ContextTokens: 1000000},
		{Name: "gemini-1.5-pro", Provider: ProviderGemini, ContextTokens: 2000000},
		{Name: "gemini-2.0-flash", Provider: ProviderGemini, ContextTokens: 1000000},
		{Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter, ContextTokens: 128000},
		{Name: "deepseek/deepseek-r1:free", Provider: ProviderOpenRouter, ContextTokens: 128000},
		{Name: "meta-llama/llama-3.1-8b-instruct", Provider: ProviderOpenRouter, ContextTokens: 131072},
		{Name: "google/gemini-1.5-flash", Provider: ProviderOpenRouter, ContextTokens: 1000000},
		{Name: "llama3:latest", Provider: ProviderOllama, ContextTokens: 8192},
		{Name: "llama3.1:8b-instruct", Provider: ProviderOllama, ContextTokens: 8192},
		{Name: "sqlcoder:7b", Provider: ProviderOllama, ContextTokens: 4096},
		{Name: "mistral:7b-instruct", Provider: ProviderOllama, ContextTokens: 8192},
		{Name: "phi3:mini-4k-instruct", Provider: ProviderOllama, ContextTokens: 4096},
		{Name: DefaultInferenceModel, Provider: ProviderInference, ContextTokens: 512},
	} {
		m[mi.Name] = mi
	}
	return m
}()

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// ContextWindow returns the catalog window for name, or DefaultContextTokens.
func ContextWindow(name string) int {
	if mi, ok := models[name]; ok && mi.ContextTokens > 0 {
		return mi.ContextTokens
	}
	return DefaultContextTokens
}

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m map[string]ModelInfo
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	for k, v := range m {
		models[k] = v
	}
}

// CatalogFor lists catalog entries for provider, sorted by name. An empty
// provider lists everything.
func CatalogFor(provider string) []ModelInfo {
	var out []ModelInfo
	for _, mi := range models {
		if provider == "" || mi.Provider == provider {
			out = append(out, mi)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
