// Package pipeline orchestrates the fan-out over feeds, article extraction,
// summarization, persistence and mail dispatch for a single request. Each
// stage runs under its own concurrency cap; per-item failures are collected
// into the response instead of aborting the run.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"newsly/internal/category"
	"newsly/internal/config"
	"newsly/internal/core"
	"newsly/internal/email"
	"newsly/internal/logger"
	"newsly/internal/registry"
	"newsly/internal/relevance"
)

// KeywordExtractor turns a free-text query into search keywords.
type KeywordExtractor interface {
	Extract(ctx context.Context, query string) (core.KeywordSet, error)
}

// FeedFetcher pulls the current entries of one feed source.
type FeedFetcher interface {
	Fetch(ctx context.Context, source core.FeedSource) ([]core.FeedEntry, error)
}

// ArticleExtractor fetches and parses one article body.
type ArticleExtractor interface {
	Extract(ctx context.Context, url string) (*core.Article, error)
}

// Summarizer produces one summary per article.
type Summarizer interface {
	Summarize(ctx context.Context, article *core.Article, language, customPrompt string) (*core.SummarizedArticle, error)
}

// HistoryStore is the slice of the store the pipeline writes to.
type HistoryStore interface {
	Insert(ctx context.Context, rec core.HistoryRecord) (id string, duplicate bool, err error)
}

// Deps are the collaborators a Pipeline runs against. History and Mailer are
// optional; requests that need them fail per-item when they are absent.
type Deps struct {
	Registry   *registry.Registry
	Keywords   KeywordExtractor
	Feeds      FeedFetcher
	Articles   ArticleExtractor
	Summarizer Summarizer
	History    HistoryStore
	Mailer     email.Sender
}

// Options carries the orchestrator budgets and caps. Zero values select the
// defaults.
type Options struct {
	FeedParallelism    int
	ArticleParallelism int
	LLMParallelism     int
	FetchTimeout       time.Duration
	ExtractTimeout     time.Duration
	LLMTimeout         time.Duration
	RequestDeadline    time.Duration
	MaxArticlesHard    int
	IdempotencyWindow  time.Duration
	CacheSize          int
}

func (o Options) withDefaults() Options {
	if o.FeedParallelism <= 0 {
		o.FeedParallelism = 8
	}
	if o.ArticleParallelism <= 0 {
		o.ArticleParallelism = 6
	}
	if o.LLMParallelism <= 0 {
		o.LLMParallelism = 3
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 15 * time.Second
	}
	if o.ExtractTimeout <= 0 {
		o.ExtractTimeout = 20 * time.Second
	}
	if o.LLMTimeout <= 0 {
		o.LLMTimeout = 60 * time.Second
	}
	if o.RequestDeadline <= 0 {
		o.RequestDeadline = 300 * time.Second
	}
	if o.MaxArticlesHard <= 0 {
		o.MaxArticlesHard = 50
	}
	if o.IdempotencyWindow <= 0 {
		o.IdempotencyWindow = 60 * time.Second
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 256
	}
	return o
}

// OptionsFromConfig maps the loaded configuration onto orchestrator options.
func OptionsFromConfig(p config.Pipeline) Options {
	return Options{
		FeedParallelism:    p.FeedParallelism,
		ArticleParallelism: p.ArticleParallelism,
		LLMParallelism:     p.LLMParallelism,
		FetchTimeout:       p.FetchTimeoutDuration(),
		ExtractTimeout:     p.ExtractTimeoutDuration(),
		LLMTimeout:         p.LLMTimeoutDuration(),
		RequestDeadline:    p.RequestDeadlineDuration(),
		MaxArticlesHard:    p.MaxArticlesHard,
		IdempotencyWindow:  p.IdempotencyWindowDuration(),
	}
}

// Pipeline is safe for concurrent use; the concurrency caps apply per
// request, the idempotency cache is shared.
type Pipeline struct {
	deps  Deps
	opts  Options
	cache *idempotencyCache
	now   func() time.Time
}

// New builds a Pipeline over the given collaborators.
func New(deps Deps, opts Options) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{
		deps:  deps,
		opts:  opts,
		cache: newIdempotencyCache(opts.CacheSize, opts.IdempotencyWindow),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source for deterministic tests.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run executes one summarization request end to end. The returned response is
// non-nil whenever the request itself was valid; when nothing could be
// summarized it carries Success=false and the error reports NoResults.
func (p *Pipeline) Run(ctx context.Context, req *core.PipelineRequest) (*core.SummarizeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	maxArticles := req.MaxArticles
	if maxArticles > p.opts.MaxArticlesHard {
		maxArticles = p.opts.MaxArticlesHard
	}

	key := cacheKey(req)
	if cached, ok := p.cache.get(key); ok {
		logger.Get().Debug().Str("user_id", req.UserID).Msg("returning cached pipeline response")
		return cached, nil
	}

	// Asking for zero articles is a valid no-op; it still goes through the
	// cache so replays stay cheap.
	if maxArticles == 0 {
		resp := &core.SummarizeResponse{
			Success:     true,
			Articles:    []core.ArticleSummary{},
			Errors:      []core.StageError{},
			ProcessedAt: p.now(),
		}
		p.cache.put(key, resp)
		return resp, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.RequestDeadline)
	defer cancel()

	collect := &collector{}
	start := p.now()

	var keywords core.KeywordSet
	var entries []core.FeedEntry
	if req.HasQuery() {
		var err error
		keywords, err = p.deps.Keywords.Extract(ctx, req.Query)
		if err != nil {
			// A query that yields no keywords cannot select anything; this
			// is a request-level failure, not a collectible one.
			return nil, err
		}
		fetched := p.fetchFeeds(ctx, p.deps.Registry.List(), collect)
		entries = relevance.Filter(flatten(fetched), keywords, maxArticles)
	} else {
		entries = p.collectRequestedEntries(ctx, req, maxArticles, collect)
	}

	summaries := p.summarizeEntries(ctx, entries, req.Language, req.CustomPrompt, collect)
	resp := p.assemble(ctx, req, keywords, entries, summaries, collect)

	elapsed := p.now().Sub(start)
	logger.Get().Info().
		Int("selected", len(entries)).
		Int("summarized", resp.TotalArticles).
		Int("errors", len(resp.Errors)).
		Bool("partial", resp.Partial).
		Dur("elapsed", elapsed).
		Msg("pipeline run finished")

	if !resp.Success {
		return resp, core.NewError(core.KindNoResults, "no articles could be summarized")
	}
	p.cache.put(key, resp)
	return resp, nil
}

// fetchFeeds fans out over the sources under the feed cap and returns the
// entries per source, preserving source order. Failures are collected.
func (p *Pipeline) fetchFeeds(ctx context.Context, sources []core.FeedSource, collect *collector) [][]core.FeedEntry {
	results := make([][]core.FeedEntry, len(sources))
	sem := semaphore.NewWeighted(int64(p.opts.FeedParallelism))
	var wg sync.WaitGroup

	for i, source := range sources {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, source core.FeedSource) {
			defer wg.Done()
			defer sem.Release(1)

			fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
			defer cancel()
			entries, err := p.deps.Feeds.Fetch(fetchCtx, source)
			if err != nil {
				collect.add(core.ToStageError(core.StageFeed, source.RSSURL, err))
				return
			}
			results[i] = entries
		}(i, source)
	}
	wg.Wait()
	return results
}

// collectRequestedEntries handles the URL-list path: explicit feeds first in
// request order, then the pre-selected article URLs, capped at maxArticles.
func (p *Pipeline) collectRequestedEntries(ctx context.Context, req *core.PipelineRequest, maxArticles int, collect *collector) []core.FeedEntry {
	sources := make([]core.FeedSource, 0, len(req.RSSURLs))
	for _, raw := range req.RSSURLs {
		canonical, err := core.CanonicalURL(raw)
		if err != nil {
			collect.add(core.ToStageError(core.StageFeed, raw, err))
			continue
		}
		sources = append(sources, core.FeedSource{RSSURL: canonical})
	}

	var entries []core.FeedEntry
	for _, batch := range p.fetchFeeds(ctx, sources, collect) {
		entries = append(entries, batch...)
	}
	for _, raw := range req.ArticleURLs {
		canonical, err := core.CanonicalURL(raw)
		if err != nil {
			collect.add(core.ToStageError(core.StageExtract, raw, err))
			continue
		}
		entries = append(entries, core.FeedEntry{Link: canonical})
	}
	if len(entries) > maxArticles {
		entries = entries[:maxArticles]
	}
	return entries
}

// extracted pairs an article with its selection index so the response can
// restore selection order after the concurrent stages.
type extracted struct {
	index   int
	entry   core.FeedEntry
	article *core.Article
}

// summarizeEntries runs the extract and summarize stages as a two-stage
// pipeline. Extraction fans out under the article cap and feeds a bounded
// channel; summarize workers drain it under the LLM cap, so a slow LLM
// backpressures extraction instead of buffering unboundedly.
func (p *Pipeline) summarizeEntries(ctx context.Context, entries []core.FeedEntry, language, customPrompt string, collect *collector) []*core.SummarizedArticle {
	results := make([]*core.SummarizedArticle, len(entries))
	if len(entries) == 0 {
		return results
	}

	ch := make(chan extracted, 2*p.opts.LLMParallelism)
	go func() {
		defer close(ch)
		sem := semaphore.NewWeighted(int64(p.opts.ArticleParallelism))
		var wg sync.WaitGroup
		for i, entry := range entries {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(i int, entry core.FeedEntry) {
				defer wg.Done()
				defer sem.Release(1)

				extractCtx, cancel := context.WithTimeout(ctx, p.opts.ExtractTimeout)
				defer cancel()
				article, err := p.deps.Articles.Extract(extractCtx, entry.Link)
				if err != nil {
					collect.add(core.ToStageError(core.StageExtract, entry.Link, err))
					return
				}
				if entry.Source.Name != "" || entry.Source.RSSURL != "" {
					article.Source = entry.Source
				}
				if article.Title == "" {
					article.Title = entry.Title
				}
				select {
				case ch <- extracted{index: i, entry: entry, article: article}:
				case <-ctx.Done():
				}
			}(i, entry)
		}
		wg.Wait()
	}()

	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < p.opts.LLMParallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ex := range ch {
				llmCtx, cancel := context.WithTimeout(ctx, p.opts.LLMTimeout)
				summary, err := p.deps.Summarizer.Summarize(llmCtx, ex.article, language, customPrompt)
				cancel()
				if err != nil {
					collect.add(core.ToStageError(core.StageSummarize, ex.article.URL, err))
					continue
				}
				mu.Lock()
				results[ex.index] = summary
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return results
}

// assemble builds the response in selection order, persists history and sends
// the digest when the request asks for them.
func (p *Pipeline) assemble(ctx context.Context, req *core.PipelineRequest, keywords core.KeywordSet, entries []core.FeedEntry, summaries []*core.SummarizedArticle, collect *collector) *core.SummarizeResponse {
	var ordered []core.SummarizedArticle
	var articles []core.ArticleSummary
	for _, summary := range summaries {
		if summary == nil {
			continue
		}
		cat := category.Classify(summary.Article.Title, summary.Summary, keywords.Terms)
		ordered = append(ordered, *summary)
		articles = append(articles, core.ArticleSummary{
			Title:    summary.Article.Title,
			URL:      summary.Article.URL,
			Source:   summary.Article.Source.Name,
			Summary:  summary.Summary,
			Language: summary.Language,
			Category: cat,
		})
	}

	if req.UserID != "" && len(ordered) > 0 {
		p.persist(ctx, req.UserID, ordered, articles, keywords.Terms, collect)
	}
	if req.RecipientEmail != "" && len(ordered) > 0 {
		p.mail(req.RecipientEmail, ordered, req.Language, collect)
	}

	partial := ctx.Err() != nil
	if articles == nil {
		articles = []core.ArticleSummary{}
	}
	return &core.SummarizeResponse{
		Success:           len(articles) > 0,
		Articles:          articles,
		TotalArticles:     len(articles),
		ExtractedKeywords: keywords.Terms,
		Partial:           partial,
		Errors:            collect.all(),
		ProcessedAt:       p.now(),
	}
}

// persist writes one history record per summary. Duplicates within the same
// second are reported as informational DuplicateIgnored entries. Persistence
// uses a fresh context so records survive a blown request deadline.
func (p *Pipeline) persist(ctx context.Context, userID string, summaries []core.SummarizedArticle, articles []core.ArticleSummary, keywords []string, collect *collector) {
	if p.deps.History == nil {
		collect.add(core.StageError{
			Stage:   core.StagePersist,
			Kind:    core.KindStoreUnavailable,
			Message: "history store is not configured",
		})
		return
	}
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	for i, summary := range summaries {
		rec := core.HistoryRecord{
			UserID:          userID,
			ArticleURL:      summary.Article.URL,
			ArticleTitle:    summary.Article.Title,
			ContentExcerpt:  core.Excerpt(summary.Article.Body, 500),
			SummaryText:     summary.Summary,
			SummaryLanguage: summary.Language,
			OriginalLength:  len([]rune(summary.Article.Body)),
			SummaryLength:   len([]rune(summary.Summary)),
			Keywords:        keywords,
			Category:        articles[i].Category,
			CreatedAt:       p.now(),
		}
		_, duplicate, err := p.deps.History.Insert(persistCtx, rec)
		if err != nil {
			collect.add(core.ToStageError(core.StagePersist, summary.Article.URL, err))
			continue
		}
		if duplicate {
			collect.add(core.StageError{
				Stage:   core.StagePersist,
				URL:     summary.Article.URL,
				Kind:    core.KindDuplicateIgnored,
				Message: "history record already exists for this second",
			})
		}
	}
}

// mail renders and sends the digest. A mail failure never fails the request.
func (p *Pipeline) mail(recipient string, summaries []core.SummarizedArticle, language string, collect *collector) {
	if p.deps.Mailer == nil {
		collect.add(core.StageError{
			Stage:   core.StageMail,
			Kind:    core.KindMailError,
			Message: "mail sender is not configured",
		})
		return
	}
	digest, err := email.Render(summaries, language, p.now())
	if err != nil {
		collect.add(core.ToStageError(core.StageMail, "", err))
		return
	}
	if err := p.deps.Mailer.Send(recipient, digest.Subject, digest.HTMLBody, digest.TextBody); err != nil {
		collect.add(core.ToStageError(core.StageMail, "", err))
	}
}

func flatten(batches [][]core.FeedEntry) []core.FeedEntry {
	var out []core.FeedEntry
	for _, batch := range batches {
		out = append(out, batch...)
	}
	return out
}

// collector gathers per-item stage failures across goroutines. The order of
// the final list is deterministic: sorted by stage, then URL, then message.
type collector struct {
	mu     sync.Mutex
	errors []core.StageError
}

func (c *collector) add(err core.StageError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *collector) all() []core.StageError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.StageError, len(c.errors))
	copy(out, c.errors)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return out[i].Stage < out[j].Stage
		}
		if out[i].URL != out[j].URL {
			return out[i].URL < out[j].URL
		}
		return out[i].Message < out[j].Message
	})
	return out
}
