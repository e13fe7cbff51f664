package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagConfigPath string

var rootCmd = &cobra.Command{
	Use:   "eventextract",
	Short: "Extract calendar events and pagination links from web pages",
	Long: `eventextract renders an event listing page, extracts events from its
structured metadata (falling back to a language model when that is not
enough), validates them against a field contract and discovers further
pages of the listing.

Usage:
  eventextract serve [flags]
  eventextract extract <url> [flags]`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to a YAML/JSON config file (default: $EVENTEXTRACT_CONFIG_PATH or ./config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
