package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okravchuk/devfinder/internal/core/domain"
	"github.com/okravchuk/devfinder/internal/infrastructure/resilience"
)

func TestCompleteParsesToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("unexpected auth header %q", got)
		}

		var req struct {
			Tools []json.RawMessage `json:"tools"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Tools) != 1 {
			t.Fatalf("expected 1 declared tool, got %d", len(req.Tools))
		}

		_, _ = w.Write([]byte(`{
			"choices": [{"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{"id": "call_1", "type": "function",
					"function": {"name": "repository_search", "arguments": "{\"query\":\"gumroad\"}"}}]
			}}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 7}
		}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", "test-model", "test-embed")
	resp, err := client.Complete(context.Background(), []domain.ModelMessage{
		{Role: domain.RoleUser, Content: "find gumroad"},
	}, []domain.ToolSchema{
		{Name: "repository_search", Description: "search repos", Properties: map[string]domain.ToolProperty{
			"query": {Type: "string", Description: "search query"},
		}, Required: []string{"query"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.Name != "repository_search" || call.Arguments["query"] != "gumroad" {
		t.Fatalf("unexpected tool call %+v", call)
	}
	if resp.PromptTokens != 42 || resp.CompletionTokens != 7 {
		t.Fatalf("unexpected usage %+v", resp)
	}
}

func TestCompleteReturnsFinalText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "  hello there  "}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", "test-model", "test-embed")
	resp, err := client.Complete(context.Background(), []domain.ModelMessage{{Role: domain.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello there" || len(resp.ToolCalls) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCompleteStatusErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "slow down"}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", "test-model", "test-embed")
	_, err := client.Complete(context.Background(), []domain.ModelMessage{{Role: domain.RoleUser, Content: "hi"}}, nil)
	if err == nil {
		t.Fatalf("expected status error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("status error should carry the upstream status, got %q", err.Error())
	}
	if !resilience.RetryableMessage(err) {
		t.Fatalf("429 status error should classify as retryable")
	}
}

func TestEmbedQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data": [{"embedding": [0.25, -0.5]}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", "test-model", "test-embed")
	vector, err := client.EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vector) != 2 || vector[0] != 0.25 {
		t.Fatalf("unexpected vector %v", vector)
	}
}
