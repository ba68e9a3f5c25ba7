package pipeline

import (
	"context"

	"newsly/internal/config"
	"newsly/internal/email"
	"newsly/internal/feeds"
	"newsly/internal/fetch"
	"newsly/internal/httpclient"
	"newsly/internal/keywords"
	"newsly/internal/llm"
	"newsly/internal/logger"
	"newsly/internal/recommend"
	"newsly/internal/registry"
	"newsly/internal/store"
	"newsly/internal/summarize"
)

// Runtime bundles the pipeline with the collaborators the commands reach
// directly: the store for history queries and the recommender.
type Runtime struct {
	Pipeline    *Pipeline
	Registry    *registry.Registry
	Store       *store.Store
	Recommender *recommend.Recommender

	llmClient llm.Client
}

// Build assembles the full runtime from configuration. The LLM client is
// optional: without an API key the keyword extractor falls back to heuristics
// and summarization requests fail per-item rather than at startup.
func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	reg, err := registry.Load(cfg.Feeds)
	if err != nil {
		return nil, err
	}

	httpClient := httpclient.New(httpclient.Options{
		HostInterval:   cfg.HTTP.HostRequestIntervalDuration(),
		MaxRedirects:   cfg.HTTP.MaxRedirects,
		AcceptLanguage: cfg.HTTP.AcceptLanguage,
	})
	feedFetcher := feeds.New(httpClient, cfg.Feeds.MaxItemsPerFeed)
	articleExtractor := fetch.New(httpClient, fetch.Options{
		Selectors:     cfg.Fetch.BodySelectors,
		JunkSelectors: cfg.Fetch.JunkSelectors,
	})

	var llmClient llm.Client
	var rawClient llm.Client
	if client, err := llm.New(ctx, cfg.LLM); err != nil {
		logger.Get().Warn().Err(err).Msg("LLM client unavailable, keyword extraction falls back to heuristics")
	} else {
		rawClient = client
		llmClient = llm.NewTraced(client)
	}

	keywordExtractor, err := keywords.New(llmClient, keywords.Options{
		Denylist:    cfg.Keywords.Denylist,
		Temperature: float64(cfg.LLM.Temperature),
	})
	if err != nil {
		return nil, err
	}

	summarizer := summarize.New(llmClient, summarize.Options{
		SoftCap:     cfg.Pipeline.BodySoftCap,
		HardCap:     cfg.Pipeline.BodyHardCap,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: float64(cfg.LLM.Temperature),
	})

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	var mailer email.Sender
	if cfg.Email.SMTP.Host != "" {
		sender, err := email.NewSMTPSender(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
			cfg.Email.FromAddress,
			cfg.Email.FromName,
		)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		mailer = sender
	}

	pipe := New(Deps{
		Registry:   reg,
		Keywords:   keywordExtractor,
		Feeds:      feedFetcher,
		Articles:   articleExtractor,
		Summarizer: summarizer,
		History:    st,
		Mailer:     mailer,
	}, OptionsFromConfig(cfg.Pipeline))

	recommender := recommend.New(reg, feedFetcher, st, recommend.Options{
		WindowDays:   cfg.Pipeline.RecommendationWindowDays,
		Parallelism:  cfg.Pipeline.FeedParallelism,
		FetchTimeout: cfg.Pipeline.FetchTimeoutDuration(),
	})

	return &Runtime{
		Pipeline:    pipe,
		Registry:    reg,
		Store:       st,
		Recommender: recommender,
		llmClient:   rawClient,
	}, nil
}

// Close releases the runtime's resources.
func (r *Runtime) Close() error {
	if closer, ok := r.llmClient.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	return r.Store.Close()
}
