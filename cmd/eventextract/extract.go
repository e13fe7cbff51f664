package main

import (
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/models"
)

var (
	flagExpected    int
	flagDateFormats []string
	flagSelectors   []string
	flagRequired    []string
	flagOptional    []string
	flagTimeout     int
)

var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Extract events from one page and print the result as JSON",
	Long: `Extract renders the page once, runs the extraction and pagination
strategies and writes the ExtractionResult JSON to stdout.

Examples:
  eventextract extract https://example.org/events
  eventextract extract https://example.org/calendar --expected 20 --date-format "MM/dd/yyyy"
  eventextract extract https://example.org/events --required title,start_time,location`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().IntVar(&flagExpected, "expected", 0, "Expected number of events on the page")
	extractCmd.Flags().StringSliceVar(&flagDateFormats, "date-format", nil, "Date format hint, e.g. MM/dd/yyyy (repeatable)")
	extractCmd.Flags().StringSliceVar(&flagSelectors, "selector", nil, "CSS selector narrowing the event content (repeatable)")
	extractCmd.Flags().StringSliceVar(&flagRequired, "required", nil, "Required event fields (repeatable)")
	extractCmd.Flags().StringSliceVar(&flagOptional, "optional", nil, "Optional event fields (repeatable)")
	extractCmd.Flags().IntVar(&flagTimeout, "timeout", 0, "Request timeout in seconds (default: server_config.request_timeout_secs)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	req := requestFromFlags(args[0])

	a, err := newApp(flagConfigPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := a.pipeline.Run(ctx, uuid.NewString(), req)
	if err != nil && errors.Is(err, errorwrapper.ErrInvalidInput) {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if encodeErr := encoder.Encode(result); encodeErr != nil {
		return encodeErr
	}
	return err
}

// requestFromFlags leaves hints and schema nil unless a flag sets them.
func requestFromFlags(url string) models.ExtractionRequest {
	req := models.ExtractionRequest{
		URL:            url,
		TimeoutSeconds: flagTimeout,
	}
	if flagExpected > 0 || len(flagDateFormats) > 0 || len(flagSelectors) > 0 {
		req.ExtractionHints = &models.ExtractionHints{
			ExpectedEventCount: flagExpected,
			DateFormats:        flagDateFormats,
			ContentSelectors:   flagSelectors,
		}
	}
	if len(flagRequired) > 0 || len(flagOptional) > 0 {
		req.SchemaRequirements = &models.SchemaRequirements{
			RequiredFields: flagRequired,
			OptionalFields: flagOptional,
		}
	}
	return req
}
