// Package recommend ranks fresh feed entries against a user's history
// signals. Users with no history get a recency-scored trending mix instead.
package recommend

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"newsly/internal/core"
	"newsly/internal/logger"
	"newsly/internal/registry"
)

const (
	maxLimit     = 20
	defaultLimit = 5

	// Trending decay half-life input: score = exp(-ageHours/48).
	trendingDecayHours = 48.0
	// Entries without a timestamp score as two-day-old ones rather than
	// jumping to the top.
	assumedAgeHours = 48.0

	topCategories = 3
)

// HistorySource is the slice of the history store the recommender reads.
type HistorySource interface {
	KeywordsOfUser(ctx context.Context, userID string, sinceDays int) (map[string]int, error)
	CategoriesOfUser(ctx context.Context, userID string, sinceDays int) (map[core.Category]int, error)
	URLsOfUser(ctx context.Context, userID string) (map[string]struct{}, error)
}

// FeedFetcher pulls current entries from one source.
type FeedFetcher interface {
	Fetch(ctx context.Context, source core.FeedSource) ([]core.FeedEntry, error)
}

// Options configures a Recommender. Zero values select the defaults.
type Options struct {
	WindowDays        int           // history look-back, default 30
	Parallelism       int           // concurrent feed fetches, default 8
	TrendingPerSource int           // entries per source in the trending mix, default 2
	EntriesPerSource  int           // entries per source for history matching, default 10
	FetchTimeout      time.Duration // per-feed budget, default 15s
}

func (o Options) withDefaults() Options {
	if o.WindowDays <= 0 {
		o.WindowDays = 30
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 8
	}
	if o.TrendingPerSource <= 0 {
		o.TrendingPerSource = 2
	}
	if o.EntriesPerSource <= 0 {
		o.EntriesPerSource = 10
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 15 * time.Second
	}
	return o
}

// Recommender computes recommendations on demand; it keeps no state between
// calls.
type Recommender struct {
	registry *registry.Registry
	feeds    FeedFetcher
	history  HistorySource
	opts     Options
	now      func() time.Time
}

// New builds a Recommender over the given collaborators.
func New(reg *registry.Registry, feeds FeedFetcher, history HistorySource, opts Options) *Recommender {
	return &Recommender{
		registry: reg,
		feeds:    feeds,
		history:  history,
		opts:     opts.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source for deterministic tests.
func (r *Recommender) WithClock(now func() time.Time) *Recommender {
	r.now = now
	return r
}

// candidate pairs an entry with its raw score before normalization.
type candidate struct {
	entry    core.FeedEntry
	score    float64
	recType  string
	keywords []string
}

// Recommend returns up to limit ranked recommendations for the user, never
// including URLs already in their history. Scores are min-max normalized to
// [0,1] within the returned set.
func (r *Recommender) Recommend(ctx context.Context, userID string, limit int) ([]core.Recommendation, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	keywords, err := r.history.KeywordsOfUser(ctx, userID, r.opts.WindowDays)
	if err != nil {
		return nil, err
	}
	categories, err := r.history.CategoriesOfUser(ctx, userID, r.opts.WindowDays)
	if err != nil {
		return nil, err
	}
	seen, err := r.history.URLsOfUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var candidates []candidate
	if len(keywords) == 0 && len(categories) == 0 {
		entries := r.fetchEntries(ctx, r.registry.List(), r.opts.TrendingPerSource)
		candidates = r.trendingCandidates(entries)
	} else {
		entries := r.fetchEntries(ctx, r.registry.List(), r.opts.EntriesPerSource)
		candidates = append(r.keywordCandidates(entries, keywords), r.categoryCandidates(entries, categories)...)
	}

	merged := mergeByURL(candidates, seen)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].score > merged[j].score })
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return r.toRecommendations(merged), nil
}

// fetchEntries fans out over the sources with bounded parallelism and
// gathers up to perSource entries from each. Fetch failures only log; a dead
// feed must not block recommendations.
func (r *Recommender) fetchEntries(ctx context.Context, sources []core.FeedSource, perSource int) []core.FeedEntry {
	sem := semaphore.NewWeighted(int64(r.opts.Parallelism))
	var mu sync.Mutex
	var wg sync.WaitGroup
	var all []core.FeedEntry

	for _, source := range sources {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(source core.FeedSource) {
			defer wg.Done()
			defer sem.Release(1)

			fetchCtx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
			defer cancel()
			entries, err := r.feeds.Fetch(fetchCtx, source)
			if err != nil {
				logger.Get().Debug().Err(err).
					Str("source", source.Name).
					Str("url", source.RSSURL).
					Msg("skipping source for recommendations")
				return
			}
			if len(entries) > perSource {
				entries = entries[:perSource]
			}
			mu.Lock()
			all = append(all, entries...)
			mu.Unlock()
		}(source)
	}
	wg.Wait()
	return all
}

func (r *Recommender) trendingCandidates(entries []core.FeedEntry) []candidate {
	now := r.now()
	out := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		age := assumedAgeHours
		if entry.PublishedAt != nil {
			age = now.Sub(*entry.PublishedAt).Hours()
			if age < 0 {
				age = 0
			}
		}
		score := math.Exp(-age / trendingDecayHours)
		out = append(out, candidate{
			entry:   entry,
			score:   clamp01(score),
			recType: core.RecommendationTrending,
		})
	}
	return out
}

// keywordCandidates scores entries by history keyword hits in the title,
// weighted by how often the user saw each keyword.
func (r *Recommender) keywordCandidates(entries []core.FeedEntry, freq map[string]int) []candidate {
	total := 0
	for _, n := range freq {
		total += n
	}
	normalize := float64(total)
	if normalize < 1 {
		normalize = 1
	}

	var out []candidate
	for _, entry := range entries {
		title := strings.ToLower(entry.Title)
		raw := 0.0
		var matched []string
		for term, n := range freq {
			if term == "" {
				continue
			}
			hits := strings.Count(title, strings.ToLower(term))
			if hits == 0 {
				continue
			}
			raw += float64(n * hits)
			matched = append(matched, term)
		}
		if raw == 0 {
			continue
		}
		sort.Strings(matched)
		out = append(out, candidate{
			entry:    entry,
			score:    raw / normalize,
			recType:  core.RecommendationKeyword,
			keywords: matched,
		})
	}
	return out
}

// categoryCandidates admits entries from sources in the user's top
// categories, scored by that category's share of their history.
func (r *Recommender) categoryCandidates(entries []core.FeedEntry, freq map[core.Category]int) []candidate {
	if len(freq) == 0 {
		return nil
	}
	type catCount struct {
		cat core.Category
		n   int
	}
	ranked := make([]catCount, 0, len(freq))
	total := 0
	for cat, n := range freq {
		ranked = append(ranked, catCount{cat, n})
		total += n
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].n != ranked[j].n {
			return ranked[i].n > ranked[j].n
		}
		return ranked[i].cat < ranked[j].cat
	})
	if len(ranked) > topCategories {
		ranked = ranked[:topCategories]
	}
	share := make(map[core.Category]float64, len(ranked))
	for _, cc := range ranked {
		share[cc.cat] = float64(cc.n) / float64(total)
	}

	var out []candidate
	for _, entry := range entries {
		s, ok := share[entry.Source.Category]
		if !ok {
			continue
		}
		out = append(out, candidate{
			entry:   entry,
			score:   s,
			recType: core.RecommendationCategory,
		})
	}
	return out
}

// mergeByURL drops already-seen URLs and collapses duplicates, keeping the
// higher-scored candidate. First appearance fixes the position, so keyword
// candidates outrank category ones at equal score.
func mergeByURL(candidates []candidate, seen map[string]struct{}) []candidate {
	byURL := make(map[string]int)
	var out []candidate
	for _, c := range candidates {
		if _, skip := seen[c.entry.Link]; skip {
			continue
		}
		if i, dup := byURL[c.entry.Link]; dup {
			if c.score > out[i].score {
				out[i] = c
			}
			continue
		}
		byURL[c.entry.Link] = len(out)
		out = append(out, c)
	}
	return out
}

// toRecommendations min-max normalizes the scores of the final set and
// builds the response records. A set with one distinct score maps to 1.0.
func (r *Recommender) toRecommendations(final []candidate) []core.Recommendation {
	if len(final) == 0 {
		return []core.Recommendation{}
	}
	lo, hi := final[0].score, final[0].score
	for _, c := range final[1:] {
		lo = math.Min(lo, c.score)
		hi = math.Max(hi, c.score)
	}

	now := r.now()
	out := make([]core.Recommendation, 0, len(final))
	for _, c := range final {
		score := 1.0
		if hi > lo {
			score = (c.score - lo) / (hi - lo)
		}
		out = append(out, core.Recommendation{
			ArticleTitle:        c.entry.Title,
			ArticleURL:          c.entry.Link,
			ArticleSource:       c.entry.Source.Name,
			Category:            c.entry.Source.Category,
			Keywords:            c.keywords,
			RecommendationType:  c.recType,
			RecommendationScore: clamp01(score),
			CreatedAt:           now,
		})
	}
	return out
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
