package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTrip func(*http.Request) *http.Response

func (rt roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt(req), nil
}

func TestGenerateSuccess(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test/v1/chat/completions",
		APIKey:  "secret",
		Model:   "local-model",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				if got := req.Header.Get("Authorization"); got != "Bearer secret" {
					t.Fatalf("Authorization = %q", got)
				}
				body, _ := io.ReadAll(req.Body)
				var payload struct {
					Model       string  `json:"model"`
					Temperature float64 `json:"temperature"`
					Messages    []struct {
						Role    string `json:"role"`
						Content string `json:"content"`
					} `json:"messages"`
				}
				if err := json.Unmarshal(body, &payload); err != nil {
					t.Fatalf("request body: %v", err)
				}
				if payload.Model != "local-model" || payload.Temperature != 0.4 {
					t.Fatalf("payload = %+v", payload)
				}
				if len(payload.Messages) != 1 || payload.Messages[0].Role != "user" {
					t.Fatalf("messages = %+v", payload.Messages)
				}
				return &http.Response{
					StatusCode: 200,
					Body: io.NopCloser(strings.NewReader(`{
						"choices":[{"message":{"role":"assistant","content":"{\"description\":\"ok\"}"}}]
					}`)),
					Header: make(http.Header),
				}
			}),
		},
	}

	out, err := client.Generate(context.Background(), "classify this", 0.4)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(out, "description") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestGenerateAPIError(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test/v1/chat/completions",
		Model:   "local-model",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				return &http.Response{
					StatusCode: 200,
					Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"quota exceeded"}}`)),
					Header:     make(http.Header),
				}
			}),
		},
	}
	if _, err := client.Generate(context.Background(), "p", 0.7); err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test/v1/chat/completions",
		Model:   "local-model",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				return &http.Response{
					StatusCode: 200,
					Body:       io.NopCloser(strings.NewReader(`{"choices":[]}`)),
					Header:     make(http.Header),
				}
			}),
		},
	}
	if _, err := client.Generate(context.Background(), "p", 0.7); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestGenerateRequiresConfig(t *testing.T) {
	client := &Client{}
	if _, err := client.Generate(context.Background(), "p", 0.7); err == nil {
		t.Fatal("expected error without base URL and model")
	}
}
