package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, []string{"gemini", "openrouter", "ollama"}, c.Providers)
	require.Equal(t, "gemini-1.5-flash", c.GeminiModel)
	require.Equal(t, 30, c.GenerationTimeoutSec)
	require.Equal(t, 512, c.MaxTokens)
	require.Equal(t, 3, c.SampleRows)
	require.Equal(t, 15, c.QueryTimeoutSec)
	require.Equal(t, ":5000", c.ListenAddr)
	require.Equal(t, "info", c.LogLevel)
	require.False(t, c.DatadogEnabled)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers: [ollama]\nollama_model: llama3:latest\nmax_tokens: 1024\n"), 0o644))
	t.Setenv("ASKCSV_MAX_TOKENS", "256")

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"ollama"}, c.Providers)
	require.Equal(t, "llama3:latest", c.OllamaModel)
	require.Equal(t, 256, c.MaxTokens)
}

func TestLoadProvidersFromEnv(t *testing.T) {
	t.Setenv("ASKCSV_PROVIDERS", "inference, gemini")
	c, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, []string{"inference", "gemini"}, c.Providers)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers: [unclosed\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Set("providers", "ollama,gemini"))
	require.NoError(t, c.Set("gemini_api_key", "AIza-secret"))
	require.NoError(t, c.Set("sample_rows", "5"))
	require.NoError(t, Save(c, path))

	back, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"ollama", "gemini"}, back.Providers)
	require.Equal(t, "AIza-secret", back.GeminiAPIKey)
	require.Equal(t, 5, back.SampleRows)
}

func TestSetValidates(t *testing.T) {
	c := &Global{}
	require.Error(t, c.Set("providers", "gemini,bard"))
	require.Error(t, c.Set("max_tokens", "-1"))
	require.Error(t, c.Set("max_tokens", "many"))
	require.Error(t, c.Set("temperature", "warm"))
	require.Error(t, c.Set("datadog_enabled", "maybe"))
	require.Error(t, c.Set("no_such_key", "1"))

	require.NoError(t, c.Set("temperature", "0.2"))
	require.InDelta(t, 0.2, c.Temperature, 1e-9)
	require.NoError(t, c.Set("datadog_enabled", "true"))
	require.True(t, c.DatadogEnabled)
	require.NoError(t, c.Set("upload_ttl_min", "10"))
	require.Equal(t, 10, c.UploadTTLMin)
}

func TestMaskedHidesSecrets(t *testing.T) {
	c := &Global{Providers: []string{"gemini", "ollama"}, GeminiAPIKey: "AIzaSyExample", MaxTokens: 512}
	got := map[string]string{}
	for _, kv := range c.Masked() {
		got[kv[0]] = kv[1]
	}
	require.Equal(t, "gemini,ollama", got["providers"])
	require.Equal(t, "AIza*********", got["gemini_api_key"])
	require.Equal(t, "", got["openrouter_api_key"])
	require.Equal(t, "512", got["max_tokens"])
	require.Len(t, c.Masked(), len(Keys))
}

func TestDurations(t *testing.T) {
	c := &Global{HTTPTimeoutSec: 2, RetryBaseDelayMs: 250, QueryTimeoutSec: 15, UploadTTLMin: 60}
	require.Equal(t, "2s", c.HTTPTimeout().String())
	require.Equal(t, "250ms", c.RetryBaseDelay().String())
	require.Equal(t, "15s", c.QueryTimeout().String())
	require.Equal(t, "1h0m0s", c.UploadTTL().String())
}
