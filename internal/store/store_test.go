package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"newsly/internal/core"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "newsly.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(userID, url string, createdAt time.Time) core.HistoryRecord {
	return core.HistoryRecord{
		UserID:          userID,
		ArticleURL:      url,
		ArticleTitle:    "반도체 수출 호조",
		ContentExcerpt:  "반도체 수출이 크게 늘었다",
		SummaryText:     "수출이 늘었다는 요약",
		SummaryLanguage: core.LanguageKorean,
		OriginalLength:  500,
		SummaryLength:   20,
		Keywords:        []string{"반도체", "수출"},
		Category:        core.CategoryIT,
		CreatedAt:       createdAt,
	}
}

func TestInsertAndList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		url := "https://news.example.com/articles/" + string(rune('a'+i))
		id, dup, err := s.Insert(ctx, record("u1", url, base.Add(time.Duration(i)*time.Minute)))
		if err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}
		if dup {
			t.Fatal("Expected no duplicate on first insert")
		}
		if id == "" {
			t.Fatal("Expected generated record ID")
		}
	}

	page, err := s.List(ctx, "u1", 1, 2, "")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("Expected total 3, got %d", page.Total)
	}
	if page.TotalPages != 2 {
		t.Errorf("Expected 2 pages, got %d", page.TotalPages)
	}
	if len(page.Records) != 2 {
		t.Fatalf("Expected 2 records on page 1, got %d", len(page.Records))
	}
	if !page.Records[0].CreatedAt.After(page.Records[1].CreatedAt) {
		t.Error("Expected newest record first")
	}
	if page.Records[0].Keywords[0] != "반도체" {
		t.Errorf("Expected keywords to round-trip, got %v", page.Records[0].Keywords)
	}
	if page.Records[0].Category != core.CategoryIT {
		t.Errorf("Expected category to round-trip, got %q", page.Records[0].Category)
	}

	second, err := s.List(ctx, "u1", 2, 2, "")
	if err != nil {
		t.Fatalf("List page 2 returned error: %v", err)
	}
	if len(second.Records) != 1 {
		t.Errorf("Expected 1 record on page 2, got %d", len(second.Records))
	}
}

func TestInsertDuplicateSameSecond(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := record("u1", "https://news.example.com/articles/1", at)
	if _, dup, err := s.Insert(ctx, rec); err != nil || dup {
		t.Fatalf("First insert failed: dup=%v err=%v", dup, err)
	}

	// Same user, URL and second, different sub-second offset.
	rec.CreatedAt = at.Add(500 * time.Millisecond)
	_, dup, err := s.Insert(ctx, rec)
	if err != nil {
		t.Fatalf("Second insert returned error: %v", err)
	}
	if !dup {
		t.Error("Expected duplicate to be reported")
	}

	page, err := s.List(ctx, "u1", 1, 10, "")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("Expected one stored row, got %d", page.Total)
	}

	// The next second is a new record.
	rec.CreatedAt = at.Add(time.Second)
	if _, dup, err := s.Insert(ctx, rec); err != nil || dup {
		t.Errorf("Expected insert in the next second to succeed: dup=%v err=%v", dup, err)
	}
}

func TestListLanguageFilter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	ko := record("u1", "https://news.example.com/ko", base)
	en := record("u1", "https://news.example.com/en", base.Add(time.Second))
	en.SummaryLanguage = core.LanguageEnglish
	if _, _, err := s.Insert(ctx, ko); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Insert(ctx, en); err != nil {
		t.Fatal(err)
	}

	page, err := s.List(ctx, "u1", 1, 10, core.LanguageEnglish)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Total != 1 || len(page.Records) != 1 {
		t.Fatalf("Expected one English record, got %d", page.Total)
	}
	if page.Records[0].ArticleURL != "https://news.example.com/en" {
		t.Errorf("Expected the English record, got %q", page.Records[0].ArticleURL)
	}
}

func TestKeywordAndCategoryCounts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := record("u1", "https://news.example.com/1", now.Add(-time.Hour))
	first.Keywords = []string{"ai", "chip"}
	second := record("u1", "https://news.example.com/2", now.Add(-2*time.Hour))
	second.Keywords = []string{"ai"}
	old := record("u1", "https://news.example.com/3", now.AddDate(0, 0, -60))
	old.Keywords = []string{"stale"}
	old.Category = core.CategoryEconomy

	for _, rec := range []core.HistoryRecord{first, second, old} {
		if _, _, err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}
	}

	keywords, err := s.KeywordsOfUser(ctx, "u1", 30)
	if err != nil {
		t.Fatalf("KeywordsOfUser returned error: %v", err)
	}
	if keywords["ai"] != 2 || keywords["chip"] != 1 {
		t.Errorf("Expected ai=2 chip=1, got %v", keywords)
	}
	if _, present := keywords["stale"]; present {
		t.Error("Expected records outside the window to be excluded")
	}

	categories, err := s.CategoriesOfUser(ctx, "u1", 30)
	if err != nil {
		t.Fatalf("CategoriesOfUser returned error: %v", err)
	}
	if categories[core.CategoryIT] != 2 {
		t.Errorf("Expected it=2, got %v", categories)
	}
	if _, present := categories[core.CategoryEconomy]; present {
		t.Error("Expected the old economy record to be excluded")
	}
}

func TestURLsOfUser(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, _, err := s.Insert(ctx, record("u1", "https://news.example.com/seen", now)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Insert(ctx, record("u2", "https://news.example.com/other", now)); err != nil {
		t.Fatal(err)
	}

	urls, err := s.URLsOfUser(ctx, "u1")
	if err != nil {
		t.Fatalf("URLsOfUser returned error: %v", err)
	}
	if _, ok := urls["https://news.example.com/seen"]; !ok {
		t.Error("Expected the user's URL to be present")
	}
	if _, ok := urls["https://news.example.com/other"]; ok {
		t.Error("Expected other users' URLs to be absent")
	}
}

func TestInsertFeedbackValidatesRating(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	err := s.InsertFeedback(ctx, core.FeedbackRecord{
		UserID: "u1", ArticleURL: "https://news.example.com/1", Rating: 9,
	})
	if core.KindOf(err) != core.KindInvalidRequest {
		t.Errorf("Expected InvalidRequest for rating 9, got %v", err)
	}

	err = s.InsertFeedback(ctx, core.FeedbackRecord{
		UserID: "u1", ArticleURL: "https://news.example.com/1",
		Rating: 4, FeedbackType: "positive",
	})
	if err != nil {
		t.Errorf("Expected valid feedback to insert, got %v", err)
	}
}

func TestStatsAndDeleteUser(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	en := record("u1", "https://news.example.com/en", base.Add(time.Hour))
	en.SummaryLanguage = core.LanguageEnglish
	en.Category = core.CategoryEconomy
	if _, _, err := s.Insert(ctx, record("u1", "https://news.example.com/ko", base)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Insert(ctx, en); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertFeedback(ctx, core.FeedbackRecord{
		UserID: "u1", ArticleURL: "https://news.example.com/ko", Rating: 5, FeedbackType: "positive",
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertRecommendationClick(ctx, "u1", "https://news.example.com/rec", base); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.TotalSummaries != 2 {
		t.Errorf("Expected 2 summaries, got %d", stats.TotalSummaries)
	}
	if stats.PerLanguage[core.LanguageKorean] != 1 || stats.PerLanguage[core.LanguageEnglish] != 1 {
		t.Errorf("Expected one summary per language, got %v", stats.PerLanguage)
	}
	if stats.FirstAt == nil || !stats.FirstAt.Equal(base) {
		t.Errorf("Expected FirstAt %v, got %v", base, stats.FirstAt)
	}
	if stats.LastAt == nil || !stats.LastAt.Equal(base.Add(time.Hour)) {
		t.Errorf("Expected LastAt %v, got %v", base.Add(time.Hour), stats.LastAt)
	}

	removed, err := s.DeleteUser(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteUser returned error: %v", err)
	}
	if removed != 4 {
		t.Errorf("Expected 4 removed rows, got %d", removed)
	}
	page, err := s.List(ctx, "u1", 1, 10, "")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("Expected empty history after delete, got %d", page.Total)
	}
}
