package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestOpenRouterChat(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{
		"model": "test-model",
		"choices": [{"message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
	}`)
	defer srv.Close()

	c := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: srv.URL})
	res, err := c.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.Content != "hello" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.TotalTokens != 12 {
		t.Fatalf("usage not parsed: %+v", res)
	}
}

func TestOpenRouterChatStructuredOutput(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{
		"model": "test-model",
		"choices": [{"message": {"role": "assistant", "content": "Here you go:\n`+"```json\\n{\\\"name\\\": \\\"Ana\\\"}\\n```"+`"}}],
		"usage": {}
	}`)
	defer srv.Close()

	schema := json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`)

	c := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: srv.URL})
	res, err := c.Chat(context.Background(), &ChatRequest{
		Messages:       []Message{{Role: "user", Content: "hi"}},
		ResponseFormat: &ResponseFormat{Type: "json_schema", JSONSchema: schema},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(res.ParsedJSON, &parsed); err != nil {
		t.Fatalf("parsed JSON invalid: %v", err)
	}
	if parsed.Name != "Ana" {
		t.Fatalf("unexpected parse: %+v", parsed)
	}
}

func TestOpenRouterChatClassifiesErrors(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, `{"error": "slow down"}`)
	defer srv.Close()

	c := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if _, ok := IsRateLimitError(err); !ok {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
}

func TestParseStructuredJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain object", input: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose wrapped", input: `Sure! {"a":1} there you go`, want: `{"a":1}`},
		{name: "array", input: `[1,2]`, want: `[1,2]`},
		{name: "empty", input: "", wantErr: true},
		{name: "no json", input: "I cannot help with that", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStructuredJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValidateAgainstSchema(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)

	if err := ValidateAgainstSchema(schema, json.RawMessage(`{"name":"x"}`)); err != nil {
		t.Fatalf("valid doc rejected: %v", err)
	}
	if err := ValidateAgainstSchema(schema, json.RawMessage(`{}`)); err == nil {
		t.Fatal("invalid doc accepted")
	}
}
