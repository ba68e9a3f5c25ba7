package recommend

import (
	"context"
	"testing"
	"time"

	"newsly/internal/config"
	"newsly/internal/core"
	"newsly/internal/registry"
)

type fakeHistory struct {
	keywords   map[string]int
	categories map[core.Category]int
	urls       map[string]struct{}
}

func (f *fakeHistory) KeywordsOfUser(context.Context, string, int) (map[string]int, error) {
	return f.keywords, nil
}

func (f *fakeHistory) CategoriesOfUser(context.Context, string, int) (map[core.Category]int, error) {
	return f.categories, nil
}

func (f *fakeHistory) URLsOfUser(context.Context, string) (map[string]struct{}, error) {
	if f.urls == nil {
		return map[string]struct{}{}, nil
	}
	return f.urls, nil
}

type fakeFeeds struct {
	entries map[string][]core.FeedEntry // keyed by RSSURL
}

func (f *fakeFeeds) Fetch(_ context.Context, source core.FeedSource) ([]core.FeedEntry, error) {
	return f.entries[source.RSSURL], nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entryAt(source core.FeedSource, title, link string, age time.Duration) core.FeedEntry {
	t := testNow.Add(-age)
	return core.FeedEntry{Title: title, Link: link, PublishedAt: &t, Source: source}
}

func twoSourceRegistry(t *testing.T) (*registry.Registry, core.FeedSource, core.FeedSource) {
	t.Helper()
	itSource := core.FeedSource{Name: "테크뉴스", Category: core.CategoryIT, RSSURL: "https://it.example.com/rss"}
	ecoSource := core.FeedSource{Name: "경제뉴스", Category: core.CategoryEconomy, RSSURL: "https://eco.example.com/rss"}
	reg, err := registry.Load(config.Feeds{
		ReplaceDefaults: true,
		Sources: []config.FeedSourceConfig{
			{Name: itSource.Name, Category: string(itSource.Category), RSSURL: itSource.RSSURL},
			{Name: ecoSource.Name, Category: string(ecoSource.Category), RSSURL: ecoSource.RSSURL},
		},
	})
	if err != nil {
		t.Fatalf("registry.Load returned error: %v", err)
	}
	return reg, itSource, ecoSource
}

func newRecommender(reg *registry.Registry, feeds FeedFetcher, history HistorySource) *Recommender {
	r := New(reg, feeds, history, Options{Parallelism: 2, FetchTimeout: time.Second})
	return r.WithClock(func() time.Time { return testNow })
}

func TestRecommendTrendingWhenNoHistory(t *testing.T) {
	reg, itSource, ecoSource := twoSourceRegistry(t)
	feeds := &fakeFeeds{entries: map[string][]core.FeedEntry{
		itSource.RSSURL: {
			entryAt(itSource, "방금 나온 기사", "https://it.example.com/1", time.Hour),
			entryAt(itSource, "오래된 기사", "https://it.example.com/2", 90*time.Hour),
			entryAt(itSource, "세 번째 기사", "https://it.example.com/3", 2*time.Hour),
		},
		ecoSource.RSSURL: {
			entryAt(ecoSource, "경제 기사", "https://eco.example.com/1", 5*time.Hour),
		},
	}}
	r := newRecommender(reg, feeds, &fakeHistory{})

	recs, err := r.Recommend(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	// 2 per source for the trending mix.
	if len(recs) != 3 {
		t.Fatalf("Expected 3 trending recommendations (2-per-source cap), got %d", len(recs))
	}
	for _, rec := range recs {
		if rec.RecommendationType != core.RecommendationTrending {
			t.Errorf("Expected trending type, got %q", rec.RecommendationType)
		}
	}
	if recs[0].ArticleTitle != "방금 나온 기사" {
		t.Errorf("Expected the freshest entry first, got %q", recs[0].ArticleTitle)
	}
}

func TestRecommendKeywordAndCategoryTypes(t *testing.T) {
	reg, itSource, ecoSource := twoSourceRegistry(t)
	feeds := &fakeFeeds{entries: map[string][]core.FeedEntry{
		itSource.RSSURL: {
			entryAt(itSource, "AI chip breakthrough", "https://it.example.com/ai", time.Hour),
			entryAt(itSource, "무관한 기술 기사", "https://it.example.com/other", time.Hour),
		},
		ecoSource.RSSURL: {
			entryAt(ecoSource, "금리 인하", "https://eco.example.com/rates", time.Hour),
		},
	}}
	history := &fakeHistory{
		keywords:   map[string]int{"ai": 2, "chip": 1},
		categories: map[core.Category]int{core.CategoryIT: 2},
	}
	r := newRecommender(reg, feeds, history)

	recs, err := r.Recommend(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("Expected recommendations")
	}
	if recs[0].RecommendationType != core.RecommendationKeyword {
		t.Errorf("Expected the keyword match to rank first, got %q", recs[0].RecommendationType)
	}
	if recs[0].ArticleURL != "https://it.example.com/ai" {
		t.Errorf("Expected the AI entry first, got %q", recs[0].ArticleURL)
	}
	if len(recs[0].Keywords) == 0 {
		t.Error("Expected matched keywords on a keyword recommendation")
	}
	sawCategory := false
	for _, rec := range recs {
		if rec.RecommendationType == core.RecommendationCategory {
			sawCategory = true
			if rec.Category != core.CategoryIT {
				t.Errorf("Expected it category, got %q", rec.Category)
			}
		}
		if rec.RecommendationType == core.RecommendationTrending {
			t.Error("Expected no trending items for a user with history")
		}
	}
	if !sawCategory {
		t.Error("Expected at least one category recommendation")
	}
}

func TestRecommendExcludesHistoryURLs(t *testing.T) {
	reg, itSource, _ := twoSourceRegistry(t)
	seen := "https://it.example.com/seen"
	feeds := &fakeFeeds{entries: map[string][]core.FeedEntry{
		itSource.RSSURL: {
			entryAt(itSource, "ai 이미 본 기사", seen, time.Hour),
			entryAt(itSource, "ai 새 기사", "https://it.example.com/new", time.Hour),
		},
	}}
	history := &fakeHistory{
		keywords: map[string]int{"ai": 1},
		urls:     map[string]struct{}{seen: {}},
	}
	r := newRecommender(reg, feeds, history)

	recs, err := r.Recommend(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	for _, rec := range recs {
		if rec.ArticleURL == seen {
			t.Errorf("Expected history URL %q to be excluded", seen)
		}
	}
}

func TestRecommendScoresNormalizedAndSorted(t *testing.T) {
	reg, itSource, ecoSource := twoSourceRegistry(t)
	feeds := &fakeFeeds{entries: map[string][]core.FeedEntry{
		itSource.RSSURL: {
			entryAt(itSource, "ai ai ai 기사", "https://it.example.com/1", time.Hour),
			entryAt(itSource, "ai 기사", "https://it.example.com/2", time.Hour),
			entryAt(itSource, "기술 일반 기사", "https://it.example.com/3", time.Hour),
		},
		ecoSource.RSSURL: {
			entryAt(ecoSource, "경제 기사", "https://eco.example.com/1", time.Hour),
		},
	}}
	history := &fakeHistory{
		keywords:   map[string]int{"ai": 3},
		categories: map[core.Category]int{core.CategoryIT: 2, core.CategoryEconomy: 1},
	}
	r := newRecommender(reg, feeds, history)

	recs, err := r.Recommend(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if len(recs) < 2 {
		t.Fatalf("Expected several recommendations, got %d", len(recs))
	}
	for i, rec := range recs {
		if rec.RecommendationScore < 0 || rec.RecommendationScore > 1 {
			t.Errorf("Score %f out of [0,1]", rec.RecommendationScore)
		}
		if i > 0 && rec.RecommendationScore > recs[i-1].RecommendationScore {
			t.Errorf("Scores not monotonically non-increasing at %d", i)
		}
	}
	if recs[0].RecommendationScore != 1.0 {
		t.Errorf("Expected the top score to normalize to 1.0, got %f", recs[0].RecommendationScore)
	}
}

func TestRecommendLimitClamp(t *testing.T) {
	reg, itSource, _ := twoSourceRegistry(t)
	var entries []core.FeedEntry
	for i := 0; i < 30; i++ {
		entries = append(entries, entryAt(itSource, "기사", "https://it.example.com/n"+string(rune('a'+i)), time.Hour))
	}
	feeds := &fakeFeeds{entries: map[string][]core.FeedEntry{itSource.RSSURL: entries}}
	r := New(reg, feeds, &fakeHistory{}, Options{TrendingPerSource: 30, Parallelism: 2, FetchTimeout: time.Second})
	r.WithClock(func() time.Time { return testNow })

	recs, err := r.Recommend(context.Background(), "u1", 100)
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if len(recs) > maxLimit {
		t.Errorf("Expected at most %d recommendations, got %d", maxLimit, len(recs))
	}
}
