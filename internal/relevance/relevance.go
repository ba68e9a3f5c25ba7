// Package relevance ranks feed entries against the extracted keywords.
// Scoring is deliberately cheap: case-insensitive substring counts over the
// title and snippet, weighted toward the title.
package relevance

import (
	"sort"
	"strings"
	"time"

	"newsly/internal/core"
)

// Title hits outweigh snippet hits; a keyword in a headline is a much
// stronger signal than one buried in the description.
const (
	titleWeight   = 3
	snippetWeight = 1
)

// scored carries an entry with its score and input position for the
// tie-break chain.
type scored struct {
	entry core.FeedEntry
	score int
	index int
}

// Filter scores entries against the keyword set, drops non-matches and
// returns the top limit entries. Ties break to the newer publication time,
// then to input order. limit <= 0 returns every match.
func Filter(entries []core.FeedEntry, keywords core.KeywordSet, limit int) []core.FeedEntry {
	if len(entries) == 0 || len(keywords.Terms) == 0 {
		return nil
	}

	matched := make([]scored, 0, len(entries))
	for i, entry := range entries {
		s := Score(entry, keywords)
		if s == 0 {
			continue
		}
		matched = append(matched, scored{entry: entry, score: s, index: i})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if newer := newerFirst(a.entry.PublishedAt, b.entry.PublishedAt); newer != 0 {
			return newer > 0
		}
		return a.index < b.index
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]core.FeedEntry, len(matched))
	for i, m := range matched {
		out[i] = m.entry
	}
	return out
}

// Score returns the weighted hit count for one entry. Matching is
// case-insensitive; terms are already lowercased by the keyword extractor.
func Score(entry core.FeedEntry, keywords core.KeywordSet) int {
	title := strings.ToLower(entry.Title)
	snippet := strings.ToLower(entry.Snippet)
	total := 0
	for _, term := range keywords.Terms {
		if term == "" {
			continue
		}
		total += titleWeight * strings.Count(title, term)
		total += snippetWeight * strings.Count(snippet, term)
	}
	return total
}

// newerFirst compares optional timestamps: positive when a is newer,
// negative when older, zero when equal or either is absent. Entries without
// a timestamp keep their input position rather than sorting to an end.
func newerFirst(a, b *time.Time) int {
	if a == nil || b == nil {
		return 0
	}
	if a.After(*b) {
		return 1
	}
	if b.After(*a) {
		return -1
	}
	return 0
}
