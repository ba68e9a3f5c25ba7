/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsly/internal/config"
	"newsly/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newsly",
		Short: "Newsly aggregates, filters and summarizes Korean news feeds.",
		Long: `Newsly turns a natural-language query into a summarized news digest:
it extracts keywords, pulls articles from curated RSS feeds, filters them
for relevance, summarizes each with an LLM and optionally emails the
result. Summaries are stored per user and drive personalized
recommendations.

Examples:
  newsly summarize --query "반도체 뉴스" --max 3
  newsly summarize --rss https://example.com/rss --language en
  newsly history --user alice
  newsly recommend --user alice --limit 5`,
	}

	// Initialize configuration
	cobra.OnInitialize(initConfig)

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.newsly.yaml)")

	// Add subcommands
	rootCmd.AddCommand(NewSummarizeCmd())
	rootCmd.AddCommand(NewHistoryCmd())
	rootCmd.AddCommand(NewRecommendCmd())
	rootCmd.AddCommand(NewFeedbackCmd())
	rootCmd.AddCommand(NewSourcesCmd())
	rootCmd.AddCommand(NewStatsCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads configuration and wires the logger before any command
// body runs.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Logging.Level
	if cfg.App.Debug {
		level = "debug"
	}
	logger.Init(logger.Options{Level: level, Pretty: cfg.Logging.Pretty})
}
