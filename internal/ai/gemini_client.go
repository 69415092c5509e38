package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Google generative language API.
type GeminiClient struct {
	transport
	apiKey  string
	baseURL string
}

// NewGeminiClient returns a client for the public endpoint. baseURL may be
// empty.
func NewGeminiClient(apiKey, baseURL string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *GeminiClient {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &GeminiClient{
		transport: newTransport(httpTimeout, retryMax, baseDelay, maxDelay),
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

type geminiModelsResponse struct {
	Models []struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		Description                string   `json:"description"`
		InputTokenLimit            int      `json:"inputTokenLimit"`
		OutputTokenLimit           int      `json:"outputTokenLimit"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
	NextPageToken string `json:"nextPageToken"`
}

func (c *GeminiClient) headers() map[string]string {
	return map[string]string{"x-goog-api-key": c.apiKey}
}

// Generate maps chat messages onto generateContent. System messages become
// the system instruction; assistant turns use the "model" role.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is missing")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	greq := geminiRequest{}
	var system []geminiPart
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, geminiPart{Text: m.Content})
		case "assistant":
			greq.Contents = append(greq.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			greq.Contents = append(greq.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(greq.Contents) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	if len(system) > 0 {
		greq.SystemInstruction = &geminiContent{Parts: system}
	}
	temp := req.Temperature
	greq.GenerationConfig = &geminiGenerationConfig{Temperature: &temp, MaxOutputTokens: req.MaxTokens}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(strings.TrimPrefix(req.Model, "models/")))
	body, resp, err := c.postJSON(ctx, endpoint, greq, c.headers(), classifyAPIError)
	if err != nil {
		return nil, err
	}
	var gresp geminiResponse
	if err := json.Unmarshal(body, &gresp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(gresp.Candidates) == 0 {
		if r := gresp.PromptFeedback.BlockReason; r != "" {
			return nil, fmt.Errorf("prompt blocked: %s", r)
		}
		return nil, errors.New("no candidates returned")
	}
	var text strings.Builder
	for _, p := range gresp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return &GenerateResponse{
		Choices: []Choice{{Message: Message{Role: "assistant", Content: text.String()}}},
		Usage: Usage{
			PromptTokens:     gresp.UsageMetadata.PromptTokenCount,
			CompletionTokens: gresp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gresp.UsageMetadata.TotalTokenCount,
		},
		RequestID: extractRequestID(resp),
	}, nil
}

// ListModels pages through every model visible to the API key.
func (c *GeminiClient) ListModels(ctx context.Context) ([]ModelEntry, error) {
	if c.apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is missing")
	}
	var out []ModelEntry
	page := ""
	for {
		endpoint := c.baseURL + "/models?pageSize=100"
		if page != "" {
			endpoint += "&pageToken=" + url.QueryEscape(page)
		}
		body, _, err := c.getJSON(ctx, endpoint, c.headers(), classifyAPIError)
		if err != nil {
			return nil, err
		}
		var mr geminiModelsResponse
		if err := json.Unmarshal(body, &mr); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		for _, m := range mr.Models {
			out = append(out, ModelEntry{
				Name:             m.Name,
				DisplayName:      m.DisplayName,
				Description:      m.Description,
				Methods:          m.SupportedGenerationMethods,
				InputTokenLimit:  m.InputTokenLimit,
				OutputTokenLimit: m.OutputTokenLimit,
			})
		}
		if mr.NextPageToken == "" {
			return out, nil
		}
		page = mr.NextPageToken
	}
}
