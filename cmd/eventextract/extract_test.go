package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFromFlags(t *testing.T) {
	t.Cleanup(func() {
		require.NoError(t, extractCmd.Flags().Set("expected", "0"))
		flagDateFormats, flagSelectors, flagRequired, flagOptional = nil, nil, nil, nil
	})

	req := requestFromFlags("https://example.org/events")
	assert.Equal(t, "https://example.org/events", req.URL)
	assert.Nil(t, req.ExtractionHints)
	assert.Nil(t, req.SchemaRequirements)

	require.NoError(t, extractCmd.Flags().Set("expected", "12"))
	require.NoError(t, extractCmd.Flags().Set("date-format", "MM/dd/yyyy"))
	require.NoError(t, extractCmd.Flags().Set("required", "title,start_time"))

	req = requestFromFlags("https://example.org/events")
	require.NotNil(t, req.ExtractionHints)
	assert.Equal(t, 12, req.ExtractionHints.ExpectedEventCount)
	assert.Equal(t, []string{"MM/dd/yyyy"}, req.ExtractionHints.DateFormats)
	require.NotNil(t, req.SchemaRequirements)
	assert.Equal(t, []string{"title", "start_time"}, req.SchemaRequirements.RequiredFields)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["extract"])
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}
