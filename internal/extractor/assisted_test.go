package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/llm"
	"github.com/aleister1102/eventextract/internal/models"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
	last  llm.JSONRequest
}

func (f *fakeCompleter) CompleteJSON(ctx context.Context, req llm.JSONRequest, out any) error {
	f.calls++
	f.last = req
	if f.err != nil {
		return f.err
	}
	return llm.DecodeStrict(f.reply, out)
}

func newAssisted(c llm.Completer) *ModelAssistedExtractor {
	return NewModelAssistedExtractor(c, config.NewDefaultModelConfig(), config.NewDefaultExtractionConfig(), zerolog.Nop())
}

var listingBody = `<nav>Home | Events</nav>
<div class="event-list">` + strings.Repeat(`<div class="event"><h3>Storytime for toddlers</h3><p>March 3, 2025 at 10:00 AM in the children's room. Bring a blanket.</p></div>`, 4) + `</div>`

func TestModelAssistedExtractor_AcceptsValidItems(t *testing.T) {
	fake := &fakeCompleter{reply: `{"events":[
		{"title":"Storytime","description":"","location":"Children's room","start_time":"2025-03-03T10:00:00","end_time":"","url":"/events/storytime","confidence":0.9},
		{"title":"Chess Club","description":"","location":"","start_time":"2025-03-04","end_time":"","url":"","confidence":0}
	]}`}
	doc := parseDoc(t, listingBody)

	got, err := newAssisted(fake).Extract(context.Background(), doc, models.ExtractionHints{ExpectedEventCount: 2})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.9, got[0].Confidence)
	assert.Equal(t, "https://library.example.org/events/storytime", got[0].URL)
	assert.Equal(t, models.MethodModelAssisted, got[0].ExtractionMethod)
	assert.Equal(t, 0.6, got[1].Confidence)
	assert.Equal(t, 1, fake.calls)
	assert.Contains(t, fake.last.UserPrompt, "about 2 events")
	assert.Equal(t, eventSchemaName, fake.last.SchemaName)
	require.NotNil(t, fake.last.Schema)
}

func TestModelAssistedExtractor_RejectsBadItemsIndividually(t *testing.T) {
	fake := &fakeCompleter{reply: `{"events":[
		{"title":"","description":"","location":"","start_time":"2025-03-03","end_time":"","url":"","confidence":0.8},
		{"title":"No date","description":"","location":"","start_time":"  ","end_time":"","url":"","confidence":0.8},
		{"title":"Out of range","description":"","location":"","start_time":"2025-03-03","end_time":"","url":"","confidence":7},
		{"title":"Good","description":"","location":"","start_time":"2025-03-05","end_time":"","url":"","confidence":0.7}
	]}`}
	doc := parseDoc(t, listingBody)

	got, err := newAssisted(fake).Extract(context.Background(), doc, models.ExtractionHints{})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Good", got[0].Title)
}

func TestModelAssistedExtractor_EmptySet(t *testing.T) {
	fake := &fakeCompleter{reply: `{"events":[]}`}

	got, err := newAssisted(fake).Extract(context.Background(), parseDoc(t, listingBody), models.ExtractionHints{})

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestModelAssistedExtractor_ShortContentSkipsModel(t *testing.T) {
	fake := &fakeCompleter{reply: `{"events":[]}`}

	got, err := newAssisted(fake).Extract(context.Background(), parseDoc(t, "<p>Closed today.</p>"), models.ExtractionHints{})

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, fake.calls)
}

func TestModelAssistedExtractor_CompleterError(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("all 3 attempts failed")}

	got, err := newAssisted(fake).Extract(context.Background(), parseDoc(t, listingBody), models.ExtractionHints{})

	assert.Error(t, err)
	assert.Empty(t, got)
}

func TestModelAssistedExtractor_NarrowsToSelectors(t *testing.T) {
	fake := &fakeCompleter{reply: `{"events":[]}`}
	body := `<div class="sidebar">` + strings.Repeat("Sidebar noise that should not reach the model. ", 10) + `</div>` + listingBody

	_, err := newAssisted(fake).Extract(context.Background(), parseDoc(t, body), models.ExtractionHints{ContentSelectors: []string{".event-list"}})

	require.NoError(t, err)
	assert.NotContains(t, fake.last.UserPrompt, "Sidebar noise")
	assert.Contains(t, fake.last.UserPrompt, "Storytime for toddlers")
}

func TestModelAssistedExtractor_NoCompleter(t *testing.T) {
	_, err := newAssisted(nil).Extract(context.Background(), parseDoc(t, listingBody), models.ExtractionHints{})
	assert.Error(t, err)
}
