package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"newsly/internal/core"
	"newsly/internal/logger"
)

// Traced wraps a Client and logs every completion with model, size and
// latency fields. Failures log at warn with the error kind.
type Traced struct {
	inner Client
	log   *zerolog.Logger
}

// NewTraced decorates inner with call logging.
func NewTraced(inner Client) *Traced {
	return &Traced{inner: inner, log: logger.Get()}
}

func (t *Traced) Model() string { return t.inner.Model() }

func (t *Traced) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := t.inner.Complete(ctx, req)

	model := req.Model
	if model == "" {
		model = t.inner.Model()
	}
	evt := t.log.Debug()
	if err != nil {
		evt = t.log.Warn().Err(err).Str("kind", string(core.KindOf(err)))
	}
	evt.Str("model", model).
		Int("prompt_chars", promptChars(req.Messages)).
		Int("completion_chars", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("llm completion")
	return text, err
}
