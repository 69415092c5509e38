package ai

import (
	"errors"
	"net/http"
	"testing"
)

func TestClassifyAPIError(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	cases := []struct {
		name   string
		err    *APIError
		target any
	}{
		{"auth", &APIError{StatusCode: 401}, new(*AuthError)},
		{"rate", &APIError{StatusCode: 429}, new(*RateLimitError)},
		{"model", &APIError{StatusCode: 404, Message: "model xyz not found"}, new(*ModelNotFoundError)},
		{"quota", &APIError{StatusCode: 402, Code: "quota_exceeded"}, new(*QuotaExceededError)},
		{"resource exhausted", &APIError{StatusCode: 400, Code: "RESOURCE_EXHAUSTED"}, new(*QuotaExceededError)},
		{"bad request", &APIError{StatusCode: 400, Message: "invalid"}, new(*BadRequestError)},
		{"server", &APIError{StatusCode: 503}, new(*ServerError)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyAPIError(tc.err, resp)
			if !errors.As(got, tc.target) {
				t.Fatalf("classify(%+v) = %T, want %T", tc.err, got, tc.target)
			}
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	e := &APIError{StatusCode: 400, Code: "bad_request", RequestID: "r1", Message: "nope"}
	want := "api error: status=400 code=bad_request request_id=r1 message=nope"
	if e.Error() != want {
		t.Fatalf("got %q, want %q", e.Error(), want)
	}
}

func TestLookupModel(t *testing.T) {
	mi, ok := LookupModel("gemini-1.5-flash")
	if !ok || mi.Provider != ProviderGemini {
		t.Fatalf("unexpected lookup: %+v ok=%v", mi, ok)
	}
	if ContextWindow("no-such-model") != DefaultContextTokens {
		t.Fatalf("unknown model should get the default window")
	}
	for _, mi := range CatalogFor(ProviderOllama) {
		if mi.Provider != ProviderOllama {
			t.Fatalf("CatalogFor leaked %+v", mi)
		}
	}
}

func TestRegistryHasBuiltins(t *testing.T) {
	for _, p := range Providers() {
		if _, ok := GetRuntime(p, RuntimeConfig{}); !ok {
			t.Fatalf("provider %q not registered", p)
		}
	}
	if _, ok := GetRuntime("nope", RuntimeConfig{}); ok {
		t.Fatalf("unexpected runtime for unknown provider")
	}
}
