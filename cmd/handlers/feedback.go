package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"newsly/internal/core"
)

// NewFeedbackCmd creates the feedback command.
func NewFeedbackCmd() *cobra.Command {
	feedbackCmd := &cobra.Command{
		Use:   "feedback [url]",
		Short: "Rate a previously summarized article",
		Long: `Store a 1-5 rating for an article. Ratings of 4 and above count as
positive feedback.

Example:
  newsly feedback https://news.example.com/article --user alice --rating 5`,
		Args: cobra.ExactArgs(1),
		Run:  feedbackRunFunc,
	}

	feedbackCmd.Flags().StringP("user", "u", "", "User ID (required)")
	feedbackCmd.Flags().IntP("rating", "r", 0, "Rating from 1 to 5 (required)")
	_ = feedbackCmd.MarkFlagRequired("user")
	_ = feedbackCmd.MarkFlagRequired("rating")

	return feedbackCmd
}

func feedbackRunFunc(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")
	rating, _ := cmd.Flags().GetInt("rating")

	articleURL, err := core.CanonicalURL(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	feedbackType := "negative"
	if rating >= 4 {
		feedbackType = "positive"
	}

	st := openStore()
	defer func() { _ = st.Close() }()

	fb := core.FeedbackRecord{
		UserID:       userID,
		ArticleURL:   articleURL,
		Rating:       rating,
		FeedbackType: feedbackType,
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.InsertFeedback(context.Background(), fb); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Feedback recorded (%s)\n", feedbackType)
}
