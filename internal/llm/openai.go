package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"newsly/internal/config"
	"newsly/internal/core"
)

const defaultOpenAIModel = "gpt-3.5-turbo"

// OpenAI is a Client backed by the OpenAI chat completions API. A custom
// base URL routes requests to compatible gateways.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI builds the client from configuration.
func NewOpenAI(cfg config.LLM) (*OpenAI, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, core.NewError(core.KindConfigError, "OPENAI_API_KEY is not set")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAI.APIKey)}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}, nil
}

func (c *OpenAI) Model() string { return c.model }

func (c *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", core.NewError(core.KindLLMUnavailable, "model returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", core.NewError(core.KindLLMUnavailable, "model returned empty content")
	}
	return text, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" {
			out = append(out, openai.SystemMessage(m.Content))
			continue
		}
		out = append(out, openai.UserMessage(m.Content))
	}
	return out
}

func mapOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return core.WrapError(core.KindTimeout, "LLM call timed out", err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return mapAPIStatus(apiErr.StatusCode, err)
	}
	return core.WrapError(core.KindLLMUnavailable, "LLM unreachable", err)
}

// mapAPIStatus folds an HTTP status from a model API into the error
// taxonomy: 429 and 5xx are retryable, other statuses are not.
func mapAPIStatus(status int, err error) error {
	switch {
	case status == 429:
		return &core.PipelineError{Kind: core.KindRateLimited, Status: status, Message: "LLM rate limit hit", Err: err}
	case status >= 500:
		return &core.PipelineError{Kind: core.KindLLMUnavailable, Status: status, Message: "LLM service error", Err: err}
	default:
		return &core.PipelineError{Kind: core.KindHTTPError, Status: status, Message: fmt.Sprintf("LLM rejected the request (HTTP %d)", status), Err: err}
	}
}
