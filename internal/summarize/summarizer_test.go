package summarize

import (
	"context"
	"strings"
	"testing"
	"time"

	"newsly/internal/core"
	"newsly/internal/llm"
)

type scriptedClient struct {
	replies []string
	errs    []error
	calls   int
	last    llm.Request
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (string, error) {
	c.last = req
	i := c.calls
	c.calls++
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	var reply string
	if i < len(c.replies) {
		reply = c.replies[i]
	}
	return reply, err
}

func (c *scriptedClient) Model() string { return "test-model" }

func testArticle(body string) *core.Article {
	return &core.Article{
		Title:     "반도체 수출 호조",
		URL:       "https://news.example.com/articles/1",
		Body:      body,
		FetchedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func fastSummarizer(client llm.Client) *Summarizer {
	return New(client, Options{BaseDelay: time.Millisecond})
}

func TestSummarizeSuccess(t *testing.T) {
	client := &scriptedClient{replies: []string{"반도체 수출이 사상 최대를 기록했다. 인공지능 수요가 견인했다."}}
	s := fastSummarizer(client)

	body := strings.Repeat("반도체 수출이 크게 늘었다. ", 20)
	got, err := s.Summarize(context.Background(), testArticle(body), "ko", "")
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if got.Summary == "" {
		t.Fatal("Expected non-empty summary")
	}
	if got.Language != core.LanguageKorean {
		t.Errorf("Expected ko language, got %q", got.Language)
	}
	if got.Model != "test-model" {
		t.Errorf("Expected model metadata, got %q", got.Model)
	}
	if got.ProducedAt.IsZero() {
		t.Error("Expected ProducedAt to be set")
	}
	if client.calls != 1 {
		t.Errorf("Expected a single call, got %d", client.calls)
	}
}

func TestSummarizeRetriesTransientErrors(t *testing.T) {
	client := &scriptedClient{
		errs:    []error{core.NewError(core.KindRateLimited, "slow down"), nil},
		replies: []string{"", "짧은 요약."},
	}
	s := fastSummarizer(client)

	got, err := s.Summarize(context.Background(), testArticle(strings.Repeat("문장입니다. ", 10)), "ko", "")
	if err != nil {
		t.Fatalf("Summarize returned error after retry: %v", err)
	}
	if got.Summary != "짧은 요약." {
		t.Errorf("Expected the second reply, got %q", got.Summary)
	}
	if client.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", client.calls)
	}
}

func TestSummarizeStopsOnPermanentError(t *testing.T) {
	client := &scriptedClient{errs: []error{core.HTTPStatusError(400, "bad request")}}
	s := fastSummarizer(client)

	_, err := s.Summarize(context.Background(), testArticle(strings.Repeat("문장. ", 30)), "ko", "")
	if err == nil {
		t.Fatal("Expected error")
	}
	if client.calls != 1 {
		t.Errorf("Expected no retry on a 4xx, got %d calls", client.calls)
	}
}

func TestSummarizeExhaustsRetries(t *testing.T) {
	unavailable := core.NewError(core.KindLLMUnavailable, "down")
	client := &scriptedClient{errs: []error{unavailable, unavailable, unavailable}}
	s := fastSummarizer(client)

	_, err := s.Summarize(context.Background(), testArticle(strings.Repeat("문장. ", 30)), "ko", "")
	if core.KindOf(err) != core.KindLLMUnavailable {
		t.Errorf("Expected LLMUnavailable after exhausted retries, got %v", err)
	}
	if client.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", client.calls)
	}
}

func TestSummarizeRejectsLongerThanBody(t *testing.T) {
	longReply := strings.Repeat("요약이 본문보다 길다. ", 50)
	client := &scriptedClient{replies: []string{longReply, longReply}}
	s := fastSummarizer(client)

	_, err := s.Summarize(context.Background(), testArticle(strings.Repeat("짧은 본문. ", 15)), "ko", "")
	if core.KindOf(err) != core.KindSummaryInvalid {
		t.Errorf("Expected SummaryInvalid, got %v", err)
	}
	if client.calls != 2 {
		t.Errorf("Expected one validation retry, got %d calls", client.calls)
	}
}

func TestSummarizeRejectsPromptLeak(t *testing.T) {
	leak := "Here it is: " + systemPromptEN
	valid := "A factual three sentence summary. It covers the article. Nothing extra."
	client := &scriptedClient{replies: []string{leak, valid}}
	s := fastSummarizer(client)

	body := strings.Repeat("The article body sentence repeats here. ", 30)
	got, err := s.Summarize(context.Background(), testArticle(body), "en", "")
	if err != nil {
		t.Fatalf("Expected recovery on the retry, got %v", err)
	}
	if got.Summary != valid {
		t.Errorf("Expected the clean retry reply, got %q", got.Summary)
	}
	for i := 0; i+leakWindow <= len([]rune(systemPromptEN)); i++ {
		window := string([]rune(systemPromptEN)[i : i+leakWindow])
		if strings.Contains(got.Summary, window) {
			t.Fatalf("Summary leaks system prompt fragment %q", window)
		}
	}
}

func TestSummarizeCustomPromptInUserMessage(t *testing.T) {
	client := &scriptedClient{replies: []string{"- 첫 번째 요점\n- 두 번째 요점"}}
	s := fastSummarizer(client)

	body := strings.Repeat("기사 본문 문장입니다. ", 20)
	_, err := s.Summarize(context.Background(), testArticle(body), "ko", "Summarize in bullet points.")
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	var system, user string
	for _, m := range client.last.Messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "user":
			user = m.Content
		}
	}
	if strings.Contains(system, "bullet points") {
		t.Error("Expected the custom prompt to stay out of the system message")
	}
	if !strings.HasPrefix(user, "Summarize in bullet points.") {
		t.Errorf("Expected the custom prompt to lead the user message, got %q", user)
	}
	if !strings.Contains(user, "Title: 반도체 수출 호조") {
		t.Errorf("Expected the titled article in the user message, got %q", user)
	}
}

func TestSummarizeRejectsOversizedCustomPrompt(t *testing.T) {
	client := &scriptedClient{}
	s := fastSummarizer(client)

	_, err := s.Summarize(context.Background(), testArticle("본문"), "ko", strings.Repeat("p", maxCustomPromptChars+1))
	if core.KindOf(err) != core.KindInputTooLarge {
		t.Errorf("Expected InputTooLarge, got %v", err)
	}
	if client.calls != 0 {
		t.Errorf("Expected no model call, got %d", client.calls)
	}
}

func TestTruncateBodyCutsOnSentenceBoundary(t *testing.T) {
	body := strings.Repeat("이 문장은 반복되는 본문입니다. ", 400)
	got := truncateBody(body, 4000, 6000)
	if n := len([]rune(got)); n > 4000 {
		t.Errorf("Expected at most 4000 runes, got %d", n)
	}
	if !strings.HasSuffix(got, "본문입니다.") {
		t.Errorf("Expected a sentence-boundary cut, got tail %q", got[len(got)-30:])
	}
}

func TestTruncateBodyHardCapWithoutBoundaries(t *testing.T) {
	body := strings.Repeat("가", 10000)
	got := truncateBody(body, 4000, 6000)
	if n := len([]rune(got)); n != 6000 {
		t.Errorf("Expected hard cap of 6000 runes, got %d", n)
	}
}

func TestSummarizeShortBodyUnchanged(t *testing.T) {
	if got := truncateBody("짧은 본문.", 4000, 6000); got != "짧은 본문." {
		t.Errorf("Expected short body untouched, got %q", got)
	}
}
