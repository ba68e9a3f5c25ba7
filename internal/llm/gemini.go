package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"newsly/internal/config"
	"newsly/internal/core"
)

const defaultGeminiModel = "gemini-1.5-flash-latest"

// Gemini is a Client backed by the Google Generative AI API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini builds the client from configuration.
func NewGemini(ctx context.Context, cfg config.LLM) (*Gemini, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, core.NewError(core.KindConfigError, "GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.Gemini.APIKey))
	if err != nil {
		return nil, core.WrapError(core.KindConfigError, "building Gemini client failed", err)
	}
	model := cfg.Gemini.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (c *Gemini) Model() string { return c.model }

// Close releases the underlying connection.
func (c *Gemini) Close() error { return c.client.Close() }

func (c *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	name := req.Model
	if name == "" {
		name = c.model
	}
	model := c.client.GenerativeModel(name)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if sys := systemContent(req.Messages); sys != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sys)}}
	}

	var user []string
	for _, m := range req.Messages {
		if m.Role != "system" {
			user = append(user, m.Content)
		}
	}
	resp, err := model.GenerateContent(ctx, genai.Text(strings.Join(user, "\n\n")))
	if err != nil {
		return "", mapGeminiError(err)
	}
	text := responseText(resp)
	if text == "" {
		return "", core.NewError(core.KindLLMUnavailable, "model returned empty content")
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func mapGeminiError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return core.WrapError(core.KindTimeout, "LLM call timed out", err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return mapAPIStatus(apiErr.Code, err)
	}
	return core.WrapError(core.KindLLMUnavailable, "LLM unreachable", err)
}
