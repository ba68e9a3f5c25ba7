package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsly/internal/config"
	"newsly/internal/core"
	"newsly/internal/registry"
)

// NewSourcesCmd creates the sources command.
func NewSourcesCmd() *cobra.Command {
	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "List the configured feed sources",
		Long: `Show the feed registry: the built-in curated sources plus any
configured additions, grouped by category.

Examples:
  newsly sources
  newsly sources --category it`,
		Run: sourcesRunFunc,
	}

	sourcesCmd.Flags().StringP("category", "c", "", "Only show sources in this category")
	sourcesCmd.Flags().StringP("format", "f", "terminal", "Output format: terminal, json")

	return sourcesCmd
}

func sourcesRunFunc(cmd *cobra.Command, args []string) {
	categoryFilter, _ := cmd.Flags().GetString("category")
	format, _ := cmd.Flags().GetString("format")

	reg, err := registry.Load(config.Get().Feeds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var sources []core.FeedSource
	if categoryFilter != "" {
		cat := core.Category(categoryFilter)
		if !core.ValidCategory(cat) {
			fmt.Fprintf(os.Stderr, "Error: unknown category %q\n", categoryFilter)
			os.Exit(1)
		}
		sources = reg.ByCategory(cat)
	} else {
		sources = reg.List()
	}

	if format == "json" {
		printJSON(sources)
		return
	}

	if len(sources) == 0 {
		fmt.Println("No sources configured.")
		return
	}
	fmt.Printf("Feed sources (%d):\n\n", len(sources))
	for _, cat := range reg.Categories() {
		if categoryFilter != "" && core.Category(categoryFilter) != cat {
			continue
		}
		for _, src := range reg.ByCategory(cat) {
			fmt.Printf("• %-12s %s\n", cat, src.Name)
			fmt.Printf("  %14s%s\n", "", src.RSSURL)
		}
	}
}
