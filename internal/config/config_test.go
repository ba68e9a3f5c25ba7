package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Pipeline.FeedParallelism != 8 {
		t.Errorf("Expected feed_parallelism default 8, got %d", cfg.Pipeline.FeedParallelism)
	}
	if cfg.Pipeline.ArticleParallelism != 6 {
		t.Errorf("Expected article_parallelism default 6, got %d", cfg.Pipeline.ArticleParallelism)
	}
	if cfg.Pipeline.LLMParallelism != 3 {
		t.Errorf("Expected llm_parallelism default 3, got %d", cfg.Pipeline.LLMParallelism)
	}
	if cfg.Pipeline.MaxArticlesHard != 50 {
		t.Errorf("Expected max_articles_hard default 50, got %d", cfg.Pipeline.MaxArticlesHard)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("Expected provider default openai, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gpt-3.5-turbo" {
		t.Errorf("Expected model default gpt-3.5-turbo, got %s", cfg.LLM.Model)
	}

	if got := cfg.Pipeline.FetchTimeoutDuration(); got != 15*time.Second {
		t.Errorf("Expected fetch timeout 15s, got %v", got)
	}
	if got := cfg.Pipeline.RequestDeadlineDuration(); got != 300*time.Second {
		t.Errorf("Expected request deadline 300s, got %v", got)
	}
	if got := cfg.Pipeline.IdempotencyWindowDuration(); got != 60*time.Second {
		t.Errorf("Expected idempotency window 60s, got %v", got)
	}
	if got := cfg.HTTP.HostRequestIntervalDuration(); got != 500*time.Millisecond {
		t.Errorf("Expected host request interval 500ms, got %v", got)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	Reset()
	defer Reset()

	t.Setenv("FEED_PARALLELISM", "4")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("FETCH_TIMEOUT", "3s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Pipeline.FeedParallelism != 4 {
		t.Errorf("Expected feed_parallelism 4 from env, got %d", cfg.Pipeline.FeedParallelism)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("Expected model gpt-4o-mini from env, got %s", cfg.LLM.Model)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("Expected provider gemini from env, got %s", cfg.LLM.Provider)
	}
	if got := cfg.Pipeline.FetchTimeoutDuration(); got != 3*time.Second {
		t.Errorf("Expected fetch timeout 3s from env, got %v", got)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	Reset()
	defer Reset()

	t.Setenv("LLM_PROVIDER", "bard")

	if _, err := Load(""); err == nil {
		t.Fatal("Expected unknown provider to fail validation")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	Reset()
	defer Reset()

	t.Setenv("FETCH_TIMEOUT", "not-a-duration")

	if _, err := Load(""); err == nil {
		t.Fatal("Expected invalid duration to fail load")
	}
}
