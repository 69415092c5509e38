package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// InferenceClient calls a hosted text2text inference endpoint, such as a
// T5 text-to-SQL model, that takes {"inputs": ...} and answers with
// [{"generated_text": ...}].
type InferenceClient struct {
	transport
	url   string
	token string
}

// NewInferenceClient targets endpoint with an optional bearer token.
func NewInferenceClient(endpoint, token string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *InferenceClient {
	return &InferenceClient{
		transport: newTransport(httpTimeout, retryMax, baseDelay, maxDelay),
		url:       endpoint,
		token:     token,
	}
}

type inferenceRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

type inferenceOutput struct {
	GeneratedText string `json:"generated_text"`
}

// Generate sends the concatenated message contents as the model input. The
// model field is ignored; the endpoint URL selects the model.
func (c *InferenceClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.url == "" {
		return nil, errors.New("inference endpoint URL is missing")
	}
	parts := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		if s := strings.TrimSpace(m.Content); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	ireq := inferenceRequest{
		Inputs:     strings.Join(parts, "\n"),
		Parameters: map[string]any{},
		Options:    map[string]any{"wait_for_model": true},
	}
	if req.MaxTokens > 0 {
		ireq.Parameters["max_new_tokens"] = req.MaxTokens
	}
	var headers map[string]string
	if c.token != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.token}
	}
	body, resp, err := c.postJSON(ctx, c.url, ireq, headers, classifyAPIError)
	if err != nil {
		return nil, err
	}
	text, err := decodeGeneratedText(body)
	if err != nil {
		return nil, err
	}
	return &GenerateResponse{
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: text}}},
		RequestID: extractRequestID(resp),
	}, nil
}

// decodeGeneratedText accepts both the list form and a single object.
func decodeGeneratedText(body []byte) (string, error) {
	var list []inferenceOutput
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 {
			return "", errors.New("inference returned no outputs")
		}
		return list[0].GeneratedText, nil
	}
	var one inferenceOutput
	if err := json.Unmarshal(body, &one); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return one.GeneratedText, nil
}
