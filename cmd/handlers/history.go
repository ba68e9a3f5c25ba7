package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsly/internal/config"
	"newsly/internal/core"
	"newsly/internal/store"
)

// NewHistoryCmd creates the history command group.
func NewHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and manage a user's summary history",
		Long: `List the summaries stored for a user, newest first.

Examples:
  newsly history --user alice
  newsly history --user alice --page 2 --per-page 10 --language ko
  newsly history clear --user alice --confirm`,
		Run: historyListRunFunc,
	}

	historyCmd.Flags().StringP("user", "u", "", "User ID (required)")
	historyCmd.Flags().Int("page", 1, "1-indexed page number")
	historyCmd.Flags().Int("per-page", 20, "Records per page (max 100)")
	historyCmd.Flags().StringP("language", "l", "", "Filter by summary language: ko or en")
	historyCmd.Flags().StringP("format", "f", "terminal", "Output format: terminal, json")
	_ = historyCmd.MarkFlagRequired("user")

	historyCmd.AddCommand(newHistoryClearCmd())
	return historyCmd
}

func historyListRunFunc(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")
	page, _ := cmd.Flags().GetInt("page")
	perPage, _ := cmd.Flags().GetInt("per-page")
	language, _ := cmd.Flags().GetString("language")
	format, _ := cmd.Flags().GetString("format")
	if language != "" {
		language = core.NormalizeLanguage(language)
	}

	st := openStore()
	defer func() { _ = st.Close() }()

	result, err := st.List(context.Background(), userID, page, perPage, language)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if format == "json" {
		printJSON(result)
		return
	}

	if result.Total == 0 {
		fmt.Printf("No history for user %s.\n", userID)
		return
	}
	fmt.Printf("History for %s — page %d/%d (%d records)\n\n", userID, result.Page, result.TotalPages, result.Total)
	for _, rec := range result.Records {
		fmt.Printf("• %s [%s/%s]\n", rec.ArticleTitle, rec.SummaryLanguage, rec.Category)
		fmt.Printf("  %s\n", rec.ArticleURL)
		fmt.Printf("  %s\n", core.Excerpt(rec.SummaryText, 160))
		fmt.Printf("  %s\n\n", rec.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func newHistoryClearCmd() *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all stored data for a user",
		Long:  `Remove the user's history, feedback and recommendation clicks.`,
		Run: func(cmd *cobra.Command, args []string) {
			userID, _ := cmd.Flags().GetString("user")
			confirm, _ := cmd.Flags().GetBool("confirm")
			if !confirm {
				fmt.Println("This deletes every record for the user. Use --confirm to proceed.")
				return
			}

			st := openStore()
			defer func() { _ = st.Close() }()

			removed, err := st.DeleteUser(context.Background(), userID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("✅ Removed %d records for user %s\n", removed, userID)
		},
	}
	clearCmd.Flags().StringP("user", "u", "", "User ID (required)")
	clearCmd.Flags().Bool("confirm", false, "Actually delete the data")
	_ = clearCmd.MarkFlagRequired("user")
	return clearCmd
}

// openStore opens the configured history database or exits.
func openStore() *store.Store {
	st, err := store.Open(config.Get().Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history store: %v\n", err)
		os.Exit(1)
	}
	return st
}
