package keywords

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const maxQueryChars = 200

// defaultDenylist matches prompt-injection attempts: role overrides, persona
// switches, chat role markers and script fragments. Matched spans are
// removed before the query reaches the model.
var defaultDenylist = []string{
	`(?i)(ignore|forget|override|disregard)\s+(all\s+)?(previous|above|prior|earlier)\s+(instructions?|prompts?|rules?|messages?)`,
	`(?i)reveal\s+(the\s+)?(system\s+)?prompt`,
	`(?i)you\s+are\s+now\b`,
	`(?i)\bact\s+as\b`,
	`(?i)\bpretend\s+to\s+be\b`,
	`(?i)\broleplay\b`,
	`(?i)\b(system|assistant|user)\s*:`,
	`(?i)\[\s*(system|assistant|user|inst)\s*\]`,
	`(?i)###\s*instruction`,
	`(?i)<\s*script`,
	`(?i)javascript\s*:`,
	`(?i)\beval\s*\(`,
	`(?i)\bonload\s*=`,
}

type sanitizer struct {
	patterns []*regexp.Regexp
}

// newSanitizer compiles the built-in denylist plus any configured extras.
// A pattern that does not compile is a configuration mistake, so it fails
// loudly instead of silently weakening the guard.
func newSanitizer(extra []string) (*sanitizer, error) {
	patterns := make([]*regexp.Regexp, 0, len(defaultDenylist)+len(extra))
	for _, expr := range append(append([]string{}, defaultDenylist...), extra...) {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	return &sanitizer{patterns: patterns}, nil
}

// sanitize normalizes and scrubs a raw user query. ok is false when the
// scrub removed more than half of the input or left fewer than two
// characters; callers then skip the model and use the heuristic path.
func (s *sanitizer) sanitize(query string) (cleaned string, ok bool) {
	query = norm.NFKC.String(query)
	query = stripControl(query)
	query = truncateRunes(query, maxQueryChars)
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false
	}

	cleaned = query
	for _, re := range s.patterns {
		cleaned = re.ReplaceAllString(cleaned, " ")
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if utf8.RuneCountInString(cleaned) < 2 {
		return cleaned, false
	}
	if utf8.RuneCountInString(cleaned)*2 < utf8.RuneCountInString(query) {
		return cleaned, false
	}
	return cleaned, true
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
