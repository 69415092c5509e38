package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestGeminiGenerate(t *testing.T) {
	var captured geminiRequest
	var gotKey, gotPath string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": "SELECT brand "}, map[string]any{"text": "FROM data"}},
			}}},
			"usageMetadata": map[string]any{"promptTokenCount": 30, "candidatesTokenCount": 6, "totalTokenCount": 36},
		})
	}))
	defer srv.Close()

	c := NewGeminiClient("g-key", srv.URL, 2*time.Second, 1, 0, 0)
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model: "gemini-1.5-flash",
		Messages: []Message{
			{Role: "system", Content: "Answer with SQL only."},
			{Role: "user", Content: "most expensive brand"},
		},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if gotKey != "g-key" {
		t.Fatalf("api key header not sent: %q", gotKey)
	}
	if gotPath != "/models/gemini-1.5-flash:generateContent" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "Answer with SQL only." {
		t.Fatalf("system instruction not mapped: %+v", captured.SystemInstruction)
	}
	if len(captured.Contents) != 1 || captured.Contents[0].Role != "user" {
		t.Fatalf("unexpected contents: %+v", captured.Contents)
	}
	if captured.GenerationConfig == nil || captured.GenerationConfig.MaxOutputTokens != 256 {
		t.Fatalf("unexpected generation config: %+v", captured.GenerationConfig)
	}
	if resp.Text() != "SELECT brand FROM data" {
		t.Fatalf("unexpected text: %q", resp.Text())
	}
	if resp.Usage.TotalTokens != 36 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
}

func TestGeminiResourceExhaustedIsRateLimit(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
			"code": 429, "message": "Resource has been exhausted (e.g. check quota).", "status": "RESOURCE_EXHAUSTED",
		}})
	}))
	defer srv.Close()

	c := NewGeminiClient("g-key", srv.URL, 2*time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "gemini-1.5-flash", Messages: []Message{{Role: "user", Content: "q"}}})
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if rl.Code != "RESOURCE_EXHAUSTED" {
		t.Fatalf("expected status as code, got %q", rl.Code)
	}
}

func TestGeminiBlockedPrompt(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"promptFeedback": map[string]any{"blockReason": "SAFETY"}})
	}))
	defer srv.Close()

	c := NewGeminiClient("g-key", srv.URL, 2*time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "gemini-1.5-flash", Messages: []Message{{Role: "user", Content: "q"}}})
	if err == nil || err.Error() != "prompt blocked: SAFETY" {
		t.Fatalf("expected blocked prompt error, got %v", err)
	}
}

func TestGeminiRequiresKey(t *testing.T) {
	c := NewGeminiClient("", "", time.Second, 1, 0, 0)
	if _, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "q"}}}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := c.ListModels(context.Background()); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestGeminiListModelsPages(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("pageToken") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"models": []any{map[string]any{
					"name": "models/gemini-1.5-flash", "displayName": "Gemini 1.5 Flash",
					"inputTokenLimit": 1000000, "outputTokenLimit": 8192,
					"supportedGenerationMethods": []string{"generateContent", "countTokens"},
				}},
				"nextPageToken": "p2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []any{map[string]any{"name": "models/embedding-001", "supportedGenerationMethods": []string{"embedContent"}}},
		})
	}))
	defer srv.Close()

	c := NewGeminiClient("g-key", srv.URL, 2*time.Second, 1, 0, 0)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models across pages, got %d", len(models))
	}
	first := models[0]
	if first.Name != "models/gemini-1.5-flash" || first.DisplayName != "Gemini 1.5 Flash" || first.InputTokenLimit != 1000000 || first.OutputTokenLimit != 8192 {
		t.Fatalf("unexpected first model: %+v", first)
	}
	if len(first.Methods) != 2 || first.Methods[0] != "generateContent" {
		t.Fatalf("unexpected methods: %v", first.Methods)
	}
}
