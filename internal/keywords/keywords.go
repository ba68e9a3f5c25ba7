// Package keywords extracts salient search terms from a natural-language
// query. The primary path asks the LLM; a heuristic tokenizer takes over
// when the model is unavailable or the query fails the injection scrub.
package keywords

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"newsly/internal/core"
	"newsly/internal/llm"
	"newsly/internal/logger"
)

const (
	maxTerms = 10

	systemPrompt = "You extract 3-7 salient search keywords from a user query. " +
		"Reply as a comma-separated list, no commentary."
)

// letterRuns tokenizes the fallback path: runs of Unicode letters or digits,
// which keeps Hangul words whole.
var letterRuns = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Options configures an Extractor.
type Options struct {
	Denylist    []string // extra injection patterns on top of the built-ins
	MaxTokens   int      // LLM completion budget
	Temperature float64
}

// Extractor produces a KeywordSet per query. A nil client skips the LLM and
// always tokenizes heuristically.
type Extractor struct {
	client    llm.Client
	sanitizer *sanitizer
	opts      Options
}

// New builds an Extractor. The denylist is compiled once here.
func New(client llm.Client, opts Options) (*Extractor, error) {
	s, err := newSanitizer(opts.Denylist)
	if err != nil {
		return nil, core.WrapError(core.KindConfigError, "invalid keyword denylist pattern", err)
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 100
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.3
	}
	return &Extractor{client: client, sanitizer: s, opts: opts}, nil
}

// Extract returns 1..10 deduplicated lowercase terms for the query. The
// query path treats an empty result as fatal, so a query that yields no
// terms at all returns KeywordEmpty.
func (e *Extractor) Extract(ctx context.Context, query string) (core.KeywordSet, error) {
	cleaned, ok := e.sanitizer.sanitize(query)
	hint := core.DetectLanguage(query)

	if ok && e.client != nil {
		if terms := e.fromModel(ctx, cleaned); len(terms) > 0 {
			return core.KeywordSet{Terms: terms, LanguageHint: hint}, nil
		}
	}

	// The heuristic sees the scrubbed text so denylisted tokens cannot
	// reappear as keywords.
	terms := tokenize(cleaned)
	if len(terms) == 0 {
		terms = tokenize(strings.ToLower(cleaned))
	}
	if len(terms) == 0 {
		return core.KeywordSet{}, &core.PipelineError{
			Kind:    core.KindKeywordEmpty,
			Stage:   core.StageKeywords,
			Message: "no keywords could be extracted from the query",
		}
	}
	return core.KeywordSet{Terms: terms, LanguageHint: hint}, nil
}

// fromModel asks the LLM for a comma-separated keyword list. Any failure
// logs and returns nil so the caller falls back.
func (e *Extractor) fromModel(ctx context.Context, cleaned string) []string {
	text, err := e.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: cleaned},
		},
		MaxTokens:   e.opts.MaxTokens,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		logger.Get().Warn().Err(err).
			Str("stage", core.StageKeywords).
			Str("kind", string(core.KindOf(err))).
			Msg("keyword extraction falling back to heuristics")
		return nil
	}
	return parseTermList(text)
}

// parseTermList splits the model reply on commas and newlines, rejecting
// anything that does not look like a short term.
func parseTermList(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	var out []string
	seen := make(map[string]struct{})
	for _, f := range fields {
		term := strings.ToLower(strings.Trim(strings.TrimSpace(f), `"'.-•*`))
		if term == "" || len([]rune(term)) > 40 {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
		if len(out) == maxTerms {
			break
		}
	}
	return out
}

// tokenize is the heuristic path: letter runs of length >= 2, stopwords
// dropped, ranked by frequency with first appearance breaking ties.
func tokenize(text string) []string {
	type stat struct {
		count int
		first int
	}
	counts := make(map[string]*stat)
	order := []string{}
	for i, raw := range letterRuns.FindAllString(text, -1) {
		term := strings.ToLower(raw)
		if len([]rune(term)) < 2 || isStopword(term) {
			continue
		}
		if s, ok := counts[term]; ok {
			s.count++
			continue
		}
		counts[term] = &stat{count: 1, first: i}
		order = append(order, term)
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := counts[order[i]], counts[order[j]]
		if a.count != b.count {
			return a.count > b.count
		}
		return a.first < b.first
	})
	if len(order) > maxTerms {
		order = order[:maxTerms]
	}
	return order
}
