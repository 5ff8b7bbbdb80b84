// Package llm streams chat completions from an OpenAI-compatible endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"pdfchat/internal/domain"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

// Config configures the hosted model.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client sends one system instruction and one user prompt per call.
type Client struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

var _ domain.LLM = (*Client)(nil)

// New builds a client for the configured endpoint.
func New(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(key),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("llm: init client: %w", err)
	}
	return Wrap(model, cfg), nil
}

// Wrap builds a client around any langchaingo model.
func Wrap(model llms.Model, cfg Config) *Client {
	return &Client{model: model, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens}
}

// Stream sends prompt under the system instruction and calls onToken for
// every streamed fragment. It returns the complete response.
func (c *Client) Stream(ctx context.Context, system, prompt string, onToken func(string)) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	var streamed strings.Builder
	opts := []llms.CallOption{
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			streamed.Write(chunk)
			if onToken != nil {
				onToken(string(chunk))
			}
			return nil
		}),
	}
	if c.temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.temperature))
	}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}
	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return streamed.String(), fmt.Errorf("llm: generate: %w", err)
	}
	if streamed.Len() > 0 {
		return streamed.String(), nil
	}
	// the model did not stream; deliver the final text at once
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("llm: empty response")
	}
	text := resp.Choices[0].Content
	if onToken != nil && text != "" {
		onToken(text)
	}
	return text, nil
}
