// Package summarize turns extracted articles into short neutral summaries
// via the LLM, with bounded retries and output validation.
package summarize

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"newsly/internal/core"
	"newsly/internal/llm"
	"newsly/internal/logger"
)

// maxCustomPromptChars bounds caller-supplied prompt prefixes. The article
// body is truncated separately; an oversized custom prompt is rejected
// outright because trimming it would silently change the instruction.
const maxCustomPromptChars = 2000

// Options configures a Summarizer. Zero values select the defaults.
type Options struct {
	SoftCap     int           // soft body truncation boundary, default 4000
	HardCap     int           // hard body truncation cap, default 6000
	MaxTokens   int           // completion budget, default 500
	Temperature float64       // default 0.3
	MaxAttempts int           // attempts for transient failures, default 3
	BaseDelay   time.Duration // first backoff step, default 1s
}

func (o Options) withDefaults() Options {
	if o.SoftCap <= 0 {
		o.SoftCap = 4000
	}
	if o.HardCap < o.SoftCap {
		o.HardCap = 6000
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 500
	}
	if o.Temperature <= 0 {
		o.Temperature = 0.3
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	return o
}

// Summarizer produces one SummarizedArticle per call. Safe for concurrent
// use.
type Summarizer struct {
	client llm.Client
	opts   Options
	now    func() time.Time
}

// New builds a Summarizer on top of the given LLM client.
func New(client llm.Client, opts Options) *Summarizer {
	return &Summarizer{client: client, opts: opts.withDefaults(), now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the timestamp source. Tests use it for deterministic
// ProducedAt values.
func (s *Summarizer) WithClock(now func() time.Time) *Summarizer {
	s.now = now
	return s
}

// Summarize generates a summary of the article in the requested language.
// Transient LLM failures retry with exponential backoff and jitter; an
// invalid completion retries once before surfacing SummaryInvalid.
func (s *Summarizer) Summarize(ctx context.Context, article *core.Article, language, customPrompt string) (*core.SummarizedArticle, error) {
	if s.client == nil {
		return nil, &core.PipelineError{
			Kind:    core.KindLLMUnavailable,
			Stage:   core.StageSummarize,
			Message: "no LLM client is configured",
		}
	}
	if article == nil || strings.TrimSpace(article.Body) == "" {
		return nil, &core.PipelineError{
			Kind:    core.KindSummaryInvalid,
			Stage:   core.StageSummarize,
			Message: "article has no body to summarize",
		}
	}
	if utf8.RuneCountInString(customPrompt) > maxCustomPromptChars {
		return nil, &core.PipelineError{
			Kind:    core.KindInputTooLarge,
			Stage:   core.StageSummarize,
			URL:     article.URL,
			Message: "custom prompt is too large",
		}
	}

	language = core.NormalizeLanguage(language)
	system := systemPrompt(language)
	req := llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: userPrompt(article, customPrompt, s.opts.SoftCap, s.opts.HardCap)},
		},
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	}

	invalidRetried := false
	var lastErr error
	for attempt := 0; attempt < s.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := s.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		text, err := s.client.Complete(ctx, req)
		if err != nil {
			lastErr = err
			if !core.Transient(err) || ctx.Err() != nil {
				return nil, s.stageError(err, article.URL)
			}
			logger.Get().Warn().Err(err).
				Str("stage", core.StageSummarize).
				Str("url", article.URL).
				Int("attempt", attempt+1).
				Msg("retrying summary after transient failure")
			continue
		}

		summary := strings.TrimSpace(text)
		if invalid := validateSummary(summary, article.Body, system); invalid != "" {
			lastErr = &core.PipelineError{
				Kind:    core.KindSummaryInvalid,
				Stage:   core.StageSummarize,
				URL:     article.URL,
				Message: invalid,
			}
			if invalidRetried {
				return nil, lastErr
			}
			invalidRetried = true
			continue
		}

		return &core.SummarizedArticle{
			Article:    *article,
			Summary:    summary,
			Language:   language,
			Model:      s.client.Model(),
			ProducedAt: s.now(),
		}, nil
	}
	return nil, s.stageError(lastErr, article.URL)
}

// validateSummary returns a rejection reason, or "" when the summary is
// acceptable.
func validateSummary(summary, body, system string) string {
	if summary == "" {
		return "model returned an empty summary"
	}
	if utf8.RuneCountInString(summary) > utf8.RuneCountInString(body) {
		return "summary is longer than the article body"
	}
	if leaksSystemPrompt(summary, system) {
		return "summary echoes the system prompt"
	}
	return ""
}

// backoff sleeps for BaseDelay * 2^(attempt-1) with ±20% jitter, or returns
// early when the context expires.
func (s *Summarizer) backoff(ctx context.Context, attempt int) error {
	delay := s.opts.BaseDelay << (attempt - 1)
	jittered := time.Duration(float64(delay) * (0.8 + 0.4*rand.Float64()))
	timer := time.NewTimer(jittered)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return core.WrapError(core.KindTimeout, "summary deadline expired during backoff", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (s *Summarizer) stageError(err error, url string) error {
	if err == nil {
		err = errors.New("summarization failed")
	}
	var pe *core.PipelineError
	if errors.As(err, &pe) {
		if pe.Stage == "" {
			pe.Stage = core.StageSummarize
		}
		if pe.URL == "" {
			pe.URL = url
		}
		return pe
	}
	return &core.PipelineError{
		Kind:    core.KindLLMUnavailable,
		Stage:   core.StageSummarize,
		URL:     url,
		Message: "summarization failed",
		Err:     err,
	}
}
