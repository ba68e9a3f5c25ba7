package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"newsly/internal/config"
	"newsly/internal/core"
	"newsly/internal/feeds"
	"newsly/internal/httpclient"
	"newsly/internal/recommend"
	"newsly/internal/registry"
)

// NewRecommendCmd creates the recommend command group.
func NewRecommendCmd() *cobra.Command {
	recommendCmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend articles from a user's reading history",
		Long: `Rank fresh feed entries against the user's stored keywords and
categories. A user with no history gets a recency-scored trending mix.

Examples:
  newsly recommend --user alice
  newsly recommend --user alice --limit 10 --format json
  newsly recommend click https://news.example.com/article --user alice`,
		Run: recommendRunFunc,
	}

	recommendCmd.Flags().StringP("user", "u", "", "User ID (required)")
	recommendCmd.Flags().IntP("limit", "n", 5, "Number of recommendations (max 20)")
	recommendCmd.Flags().StringP("format", "f", "terminal", "Output format: terminal, json")
	_ = recommendCmd.MarkFlagRequired("user")

	recommendCmd.AddCommand(newRecommendClickCmd())
	return recommendCmd
}

func recommendRunFunc(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")

	cfg := config.Get()
	reg, err := registry.Load(cfg.Feeds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	client := httpclient.New(httpclient.Options{
		HostInterval:   cfg.HTTP.HostRequestIntervalDuration(),
		MaxRedirects:   cfg.HTTP.MaxRedirects,
		AcceptLanguage: cfg.HTTP.AcceptLanguage,
	})
	feedFetcher := feeds.New(client, cfg.Feeds.MaxItemsPerFeed)

	st := openStore()
	defer func() { _ = st.Close() }()

	recommender := recommend.New(reg, feedFetcher, st, recommend.Options{
		WindowDays:   cfg.Pipeline.RecommendationWindowDays,
		Parallelism:  cfg.Pipeline.FeedParallelism,
		FetchTimeout: cfg.Pipeline.FetchTimeoutDuration(),
	})

	recs, err := recommender.Recommend(context.Background(), userID, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if format == "json" {
		printJSON(recs)
		return
	}
	if len(recs) == 0 {
		fmt.Println("No recommendations available right now.")
		return
	}
	for i, rec := range recs {
		fmt.Printf("%d. %s (%.2f, %s)\n", i+1, rec.ArticleTitle, rec.RecommendationScore, rec.RecommendationType)
		fmt.Printf("   %s · %s\n", rec.ArticleSource, rec.Category)
		if len(rec.Keywords) > 0 {
			fmt.Printf("   matched: %v\n", rec.Keywords)
		}
		fmt.Printf("   %s\n\n", rec.ArticleURL)
	}
}

func newRecommendClickCmd() *cobra.Command {
	clickCmd := &cobra.Command{
		Use:   "click [url]",
		Short: "Record that a recommendation was opened",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			userID, _ := cmd.Flags().GetString("user")
			articleURL, err := core.CanonicalURL(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			st := openStore()
			defer func() { _ = st.Close() }()

			if err := st.InsertRecommendationClick(context.Background(), userID, articleURL, time.Now().UTC()); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("✅ Click recorded")
		},
	}
	clickCmd.Flags().StringP("user", "u", "", "User ID (required)")
	_ = clickCmd.MarkFlagRequired("user")
	return clickCmd
}
