package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsly/internal/config"
	"newsly/internal/core"
	"newsly/internal/pipeline"
)

// NewSummarizeCmd creates the summarize command, the main pipeline entry.
func NewSummarizeCmd() *cobra.Command {
	summarizeCmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize news for a query or an explicit set of URLs",
		Long: `Run the full pipeline: keyword extraction, feed fan-out, relevance
filtering, article extraction and LLM summarization.

Exactly one of --query or --rss/--url must be given.

Examples:
  # Query path: curated feeds, relevance-filtered
  newsly summarize --query "반도체 뉴스" --max 3

  # URL-list path: explicit feeds and articles, no filtering
  newsly summarize --rss https://news.example.com/rss --url https://news.example.com/a1

  # Persist under a user and email the digest
  newsly summarize --query "금리" --user alice --email alice@example.com`,
		Run: summarizeRunFunc,
	}

	summarizeCmd.Flags().StringP("query", "q", "", "Natural-language query")
	summarizeCmd.Flags().StringSlice("rss", nil, "Explicit RSS/Atom feed URLs (repeatable)")
	summarizeCmd.Flags().StringSlice("url", nil, "Pre-selected article URLs (repeatable)")
	summarizeCmd.Flags().IntP("max", "n", 5, "Maximum number of articles to summarize")
	summarizeCmd.Flags().StringP("language", "l", "ko", "Summary language: ko or en")
	summarizeCmd.Flags().StringP("user", "u", "", "Persist history under this user ID")
	summarizeCmd.Flags().String("email", "", "Send the digest to this address")
	summarizeCmd.Flags().String("prompt", "", "Custom instruction prefix for the summarizer")
	summarizeCmd.Flags().StringP("format", "f", "terminal", "Output format: terminal, json")

	return summarizeCmd
}

func summarizeRunFunc(cmd *cobra.Command, args []string) {
	query, _ := cmd.Flags().GetString("query")
	rssURLs, _ := cmd.Flags().GetStringSlice("rss")
	articleURLs, _ := cmd.Flags().GetStringSlice("url")
	maxArticles, _ := cmd.Flags().GetInt("max")
	language, _ := cmd.Flags().GetString("language")
	userID, _ := cmd.Flags().GetString("user")
	email, _ := cmd.Flags().GetString("email")
	customPrompt, _ := cmd.Flags().GetString("prompt")
	format, _ := cmd.Flags().GetString("format")

	req := &core.PipelineRequest{
		Query:          query,
		RSSURLs:        rssURLs,
		ArticleURLs:    articleURLs,
		MaxArticles:    maxArticles,
		Language:       core.NormalizeLanguage(language),
		UserID:         userID,
		RecipientEmail: email,
		CustomPrompt:   customPrompt,
	}

	ctx := context.Background()
	runtime, err := pipeline.Build(ctx, config.Get())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = runtime.Close() }()

	resp, err := runtime.Pipeline.Run(ctx, req)
	if err != nil && resp == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if format == "json" {
		printJSON(resp)
	} else {
		printSummaries(resp)
	}
	if err != nil && core.KindOf(err) != core.KindNoResults {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if !resp.Success {
		os.Exit(1)
	}
}

func printSummaries(resp *core.SummarizeResponse) {
	if len(resp.ExtractedKeywords) > 0 {
		fmt.Printf("🔑 Keywords: %v\n\n", resp.ExtractedKeywords)
	}
	for i, a := range resp.Articles {
		fmt.Printf("📰 [%d] %s\n", i+1, a.Title)
		if a.Source != "" {
			fmt.Printf("   %s · %s\n", a.Source, a.Category)
		}
		fmt.Printf("   %s\n", a.URL)
		fmt.Printf("\n%s\n\n", a.Summary)
	}
	if resp.Partial {
		fmt.Println("⚠️  Partial result: the request deadline cut the run short.")
	}
	for _, se := range resp.Errors {
		if se.Kind == core.KindDuplicateIgnored {
			continue
		}
		fmt.Printf("⚠️  %s: %s (%s)\n", se.Stage, se.Message, se.URL)
	}
	if resp.TotalArticles == 0 {
		fmt.Println("No articles could be summarized.")
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
