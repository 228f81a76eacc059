package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chag-go/internal/config"
)

func TestComplete_SendsRequestAndReturnsText(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing auth header: %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"text_completion","model":"gpt2","choices":[{"text":" hello there","index":0,"finish_reason":"stop"}],"usage":{"completion_tokens":2}}`))
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{
		APIKey:  "secret",
		BaseURL: srv.URL,
		Model:   "gpt2",
		Generation: config.LLMGenerationConfig{
			MaxTokens: 40,
		},
	})
	text, err := c.Complete(context.Background(), "User: hi\nChag:", []string{"\nUser:"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != " hello there" {
		t.Fatalf("text = %q", text)
	}
	if got["model"] != "gpt2" || got["prompt"] != "User: hi\nChag:" {
		t.Fatalf("unexpected request body: %v", got)
	}
	if got["max_tokens"].(float64) != 40 {
		t.Fatalf("max_tokens = %v", got["max_tokens"])
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "gpt2"})
	if _, err := c.Complete(context.Background(), "x", nil); err != ErrEmptyCompletion {
		t.Fatalf("err = %v, want ErrEmptyCompletion", err)
	}
}

func TestComplete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "gpt2"})
	if _, err := c.Complete(context.Background(), "x", nil); err == nil {
		t.Fatal("expected error on 500")
	}
}
