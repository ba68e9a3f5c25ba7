// Package llm provides provider-neutral chat completion clients for the
// keyword and summarization stages. OpenAI is the default provider; Gemini
// is available for deployments keyed to it.
package llm

import (
	"context"
	"strings"

	"newsly/internal/config"
	"newsly/internal/core"
)

// Message is a single chat turn.
type Message struct {
	Role    string // "system" or "user"
	Content string
}

// Request is a provider-neutral completion request.
type Request struct {
	Messages    []Message
	Model       string  // empty selects the client default
	MaxTokens   int     // <= 0 leaves the provider default
	Temperature float64 // <= 0 leaves the provider default
}

// Client produces one completion per call. Implementations are safe for
// concurrent use.
type Client interface {
	// Complete returns the model's text response. Failures carry a
	// PipelineError kind: RateLimited, LLMUnavailable, HTTPError or Timeout.
	Complete(ctx context.Context, req Request) (string, error)
	// Model reports the default model name, used in response metadata.
	Model() string
}

// New builds the client named by cfg.Provider. API keys are validated here
// rather than at config load so commands that never call a model can run
// without one.
func New(ctx context.Context, cfg config.LLM) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewOpenAI(cfg)
	case "gemini":
		return NewGemini(ctx, cfg)
	}
	return nil, core.NewError(core.KindConfigError, "unknown LLM provider "+cfg.Provider)
}

func systemContent(msgs []Message) string {
	for _, m := range msgs {
		if m.Role == "system" {
			return m.Content
		}
	}
	return ""
}

func promptChars(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		n += len(m.Content)
	}
	return n
}
