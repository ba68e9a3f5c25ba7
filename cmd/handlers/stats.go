package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show summary statistics for a user",
		Long: `Aggregate a user's history: total summaries, per-language and
per-category counts, and the first and last summary times.

Example:
  newsly stats --user alice`,
		Run: statsRunFunc,
	}

	statsCmd.Flags().StringP("user", "u", "", "User ID (required)")
	statsCmd.Flags().StringP("format", "f", "terminal", "Output format: terminal, json")
	_ = statsCmd.MarkFlagRequired("user")

	return statsCmd
}

func statsRunFunc(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")
	format, _ := cmd.Flags().GetString("format")

	st := openStore()
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(context.Background(), userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if format == "json" {
		printJSON(stats)
		return
	}

	fmt.Printf("Stats for %s\n", stats.UserID)
	fmt.Printf("===========%s\n", strings.Repeat("=", len(stats.UserID)))
	fmt.Printf("Total summaries: %d\n", stats.TotalSummaries)
	if stats.TotalSummaries == 0 {
		return
	}
	fmt.Println("\nPer language:")
	for lang, n := range stats.PerLanguage {
		fmt.Printf("  %-4s %d\n", lang, n)
	}
	fmt.Println("\nPer category:")
	for cat, n := range stats.PerCategory {
		fmt.Printf("  %-14s %d\n", cat, n)
	}
	if stats.FirstAt != nil && stats.LastAt != nil {
		fmt.Printf("\nFirst: %s\n", stats.FirstAt.Format("2006-01-02 15:04"))
		fmt.Printf("Last:  %s\n", stats.LastAt.Format("2006-01-02 15:04"))
	}
}
