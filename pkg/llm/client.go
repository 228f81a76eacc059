// Package llm provides a client for text-completion models served behind an
// OpenAI-compatible API (vLLM, text-generation-inference, llama.cpp) such as gpt2.
package llm

import (
	"context"
	"errors"
	"fmt"

	"chag-go/internal/config"
	"chag-go/pkg/log"

	"github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion is returned when the server answers without any choice.
var ErrEmptyCompletion = errors.New("completion returned no choices")

// Client defines the interface for a completion client.
type Client interface {
	// Complete continues prompt and returns only the generated text.
	Complete(ctx context.Context, prompt string, stop []string) (string, error)
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature float32
	TopP        float32
	MaxTokens   int
}

type completionClient struct {
	client *openai.Client
	model  string
	gen    GenerationParams
}

// NewClient creates a completion client from config.
func NewClient(cfg config.LLMConfig) Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &completionClient{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		gen: GenerationParams{
			Temperature: float32(cfg.Generation.Temperature),
			TopP:        float32(cfg.Generation.TopP),
			MaxTokens:   cfg.Generation.MaxTokens,
		},
	}
}

// Complete calls the /completions endpoint.
func (c *completionClient) Complete(ctx context.Context, prompt string, stop []string) (string, error) {
	req := openai.CompletionRequest{
		Model:       c.model,
		Prompt:      prompt,
		MaxTokens:   c.gen.MaxTokens,
		Temperature: c.gen.Temperature,
		TopP:        c.gen.TopP,
		Stop:        stop,
	}
	resp, err := c.client.CreateCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	log.Debugf("[LLMClient] completion finished, model: %s, finish_reason: %s, completion_tokens: %d",
		c.model, resp.Choices[0].FinishReason, resp.Usage.CompletionTokens)
	return resp.Choices[0].Text, nil
}
