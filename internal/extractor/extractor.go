// Package extractor turns a rendered page into candidate event records.
package extractor

import (
	"context"
	"unicode/utf8"

	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/models"
)

// Extractor is one extraction strategy.
type Extractor interface {
	// Name is the strategy label reported in result metadata.
	Name() string
	// Method is the provenance stamped on every candidate.
	Method() models.ExtractionMethod
	Extract(ctx context.Context, doc *document.Document, hints models.ExtractionHints) ([]models.CandidateEvent, error)
}

// truncateUTF8 cuts s to at most max bytes without splitting a rune.
func truncateUTF8(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
