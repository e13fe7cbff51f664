package pagination

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/llm"
	"github.com/aleister1102/eventextract/internal/models"
)

const listingURL = "https://example.com/events"

type scriptedCompleter struct {
	reply string
	err   error
	calls int
	last  llm.JSONRequest
}

func (s *scriptedCompleter) CompleteJSON(ctx context.Context, req llm.JSONRequest, out any) error {
	s.calls++
	s.last = req
	if s.err != nil {
		return s.err
	}
	return llm.DecodeStrict(s.reply, out)
}

func parsePage(t *testing.T, pageURL, body string) *document.Document {
	t.Helper()
	doc, err := document.Parse(pageURL, "<html><head><title>Events</title></head><body>"+body+"</body></html>")
	require.NoError(t, err)
	return doc
}

func newTestDiscoverer(completer llm.Completer, mutate func(*config.PaginationConfig)) *Discoverer {
	cfg := config.NewDefaultPaginationConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewDiscoverer(cfg, completer, zerolog.Nop())
}

func countFound(n int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) { return n, nil }
}

func TestDiscover_NumberedLinks(t *testing.T) {
	doc := parsePage(t, listingURL, `
		<div class="pagination">
			<a href="?page=2">2</a>
			<a href="?page=3">3</a>
			<a href="?page=4">4</a>
		</div>`)

	result := newTestDiscoverer(nil, nil).Discover(context.Background(), doc, listingURL, Options{})

	assert.Equal(t, []string{
		"https://example.com/events?page=2",
		"https://example.com/events?page=3",
		"https://example.com/events?page=4",
	}, result.URLs())
	for _, page := range result.Pages {
		assert.Equal(t, []models.PaginationStrategy{models.StrategyCSSNumbered}, page.Strategies)
		assert.Equal(t, numberedConfidence, page.Confidence)
	}
	assert.Equal(t, []string{AttemptStructural, AttemptScript}, result.StrategiesAttempted)
}

func TestDiscover_NumberedLinksOutsideContainer(t *testing.T) {
	doc := parsePage(t, listingURL, `
		<p><a href="/events/page/2">2</a></p>
		<p><a href="/tickets">3</a></p>`)

	result := newTestDiscoverer(nil, nil).Discover(context.Background(), doc, listingURL, Options{})

	assert.Equal(t, []string{"https://example.com/events/page/2"}, result.URLs())
}

func TestDiscover_ExcludesInputURL(t *testing.T) {
	current := "https://example.com/events?page=2"
	doc := parsePage(t, current, `
		<link rel="next" href="https://EXAMPLE.com/events?page=2#top">
		<nav>
			<a href="?page=1">1</a>
			<a href="?page=2">2</a>
			<a href="?page=3">3</a>
		</nav>`)

	result := newTestDiscoverer(nil, nil).Discover(context.Background(), doc, current, Options{})

	assert.Equal(t, []string{"https://example.com/events?page=3"}, result.URLs())
}

func TestDiscover_AdversarialPageNumberIsCapped(t *testing.T) {
	body := `<a href="#" onclick="goToPage(999999)">Last</a>`

	tests := []struct {
		name     string
		maxPages int
		want     int
	}{
		{"default cap", 50, 50},
		{"lower page cap", 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parsePage(t, listingURL, body)
			d := newTestDiscoverer(nil, func(c *config.PaginationConfig) { c.MaxPages = tt.maxPages })

			result := d.Discover(context.Background(), doc, listingURL, Options{})

			require.Len(t, result.Pages, tt.want)
			assert.Equal(t, "https://example.com/events?page=2", result.Pages[0].URL)
			for _, page := range result.Pages {
				assert.NotEqual(t, listingURL, page.URL)
				assert.Equal(t, []models.PaginationStrategy{models.StrategyScriptDriven}, page.Strategies)
			}
		})
	}
}

func TestDiscover_UnionKeepsMaxConfidenceAndAllStrategies(t *testing.T) {
	doc := parsePage(t, listingURL, `
		<a rel="next" href="/events?page=2">Next</a>
		<ul class="pager"><li><a href="/events?page=2">2</a></li></ul>
		<button onclick="loadPage(2)">More</button>`)

	result := newTestDiscoverer(nil, nil).Discover(context.Background(), doc, listingURL, Options{})

	require.Len(t, result.Pages, 1)
	page := result.Pages[0]
	assert.Equal(t, "https://example.com/events?page=2", page.URL)
	assert.Equal(t, relNextConfidence, page.Confidence)
	assert.Equal(t, []models.PaginationStrategy{
		models.StrategyLinkRelNext,
		models.StrategyCSSNumbered,
		models.StrategyScriptDriven,
	}, page.Strategies)
}

func TestDiscover_CrowdedNextLinksAreDownweighted(t *testing.T) {
	doc := parsePage(t, listingURL, `
		<a href="/a">Next</a><a href="/b">Next</a><a href="/c">Next</a><a href="/d">Next</a>`)

	result := newTestDiscoverer(nil, nil).Discover(context.Background(), doc, listingURL, Options{})

	require.Len(t, result.Pages, 4)
	for _, page := range result.Pages {
		assert.InDelta(t, nextTextConfidence*crowdedNextScale, page.Confidence, 1e-9)
	}
}

func TestDiscover_CalendarNavigation(t *testing.T) {
	tests := []struct {
		name     string
		pageURL  string
		body     string
		wantURLs []string
		strategy models.PaginationStrategy
	}{
		{
			name:     "next month link text",
			pageURL:  listingURL,
			body:     `<a href="?month=4&year=2025">Next Month ›</a>`,
			wantURLs: []string{"https://example.com/events?month=4&year=2025"},
			strategy: models.StrategyLinkRelNext,
		},
		{
			name:     "calendar widget forward link",
			pageURL:  listingURL,
			body:     `<a class="calendar-next" href="/events/calendar/2025-05"><span class="icon"></span></a>`,
			wantURLs: []string{"https://example.com/events/calendar/2025-05"},
			strategy: models.StrategyLinkRelNext,
		},
		{
			name:     "forward control with data-url",
			pageURL:  listingURL,
			body:     `<button data-action="next" data-url="/events?view=month&start=2025-06-01">Forward</button>`,
			wantURLs: []string{"https://example.com/events?start=2025-06-01&view=month"},
			strategy: models.StrategyLinkRelNext,
		},
		{
			name:     "script button advances month parameter",
			pageURL:  "https://example.com/events?month=3&year=2025",
			body:     `<div class="fc-toolbar"><button class="fc-next-button" type="button"></button></div>`,
			wantURLs: []string{"https://example.com/events?month=4&year=2025"},
			strategy: models.StrategyScriptDriven,
		},
		{
			name:     "december rolls into next year",
			pageURL:  "https://example.com/events?month=12&year=2025",
			body:     `<button class="next-month"></button>`,
			wantURLs: []string{"https://example.com/events?month=1&year=2026"},
			strategy: models.StrategyScriptDriven,
		},
		{
			name:     "zero padded month",
			pageURL:  "https://example.com/events?month=09",
			body:     `<button class="fc-next-button"></button>`,
			wantURLs: []string{"https://example.com/events?month=10"},
			strategy: models.StrategyScriptDriven,
		},
		{
			name:     "script button without month parameter",
			pageURL:  listingURL,
			body:     `<button class="fc-next-button"></button>`,
			wantURLs: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parsePage(t, tt.pageURL, tt.body)

			result := newTestDiscoverer(nil, nil).Discover(context.Background(), doc, tt.pageURL, Options{})

			assert.Equal(t, tt.wantURLs, result.URLs())
			for _, page := range result.Pages {
				assert.True(t, page.HasStrategy(tt.strategy), page.URL)
			}
		})
	}
}

func TestDiscover_CalendarFrames(t *testing.T) {
	doc := parsePage(t, listingURL, `
		<iframe src="/embed/calendar?view=month"></iframe>
		<iframe src="https://widgets.example.org/calendar/embed"></iframe>
		<iframe src="/embed/video/intro"></iframe>`)

	result := newTestDiscoverer(nil, nil).Discover(context.Background(), doc, listingURL, Options{})

	require.Len(t, result.Pages, 1)
	assert.Equal(t, "https://example.com/embed/calendar?view=month", result.Pages[0].URL)
	assert.Equal(t, calendarFrameConfidence, result.Pages[0].Confidence)
}

func TestNextMonthURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"https://example.com/cal?month=7", "https://example.com/cal?month=8", true},
		{"https://example.com/cal?month=12", "https://example.com/cal?month=1", true},
		{"https://example.com/cal?month=13", "", false},
		{"https://example.com/cal?month=may", "", false},
		{"https://example.com/cal", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)

			got, ok := nextMonthURL(u)

			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscover_ScriptTemplateFromJSluice(t *testing.T) {
	doc := parsePage(t, listingURL, `
		<div id="list"></div>
		<button onclick="more(3)">Show more</button>
		<script>
			function more(n) {
				fetch("/api/events?page=" + n).then(function (r) { return r.json(); });
			}
		</script>`)

	result := newTestDiscoverer(nil, nil).Discover(context.Background(), doc, listingURL, Options{})

	assert.Equal(t, []string{"https://example.com/api/events?page=2"}, result.URLs())
}

func TestDetectScript_OrdinaryScriptsAreNotPagination(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"page size setter", `<script>cal.setPageSize(20); cal.render();</script>`},
		{"page limit call", `<script>widget.pageLimit(10);</script>`},
		{"navigation call without page parameter", `<script>function init() { goToPage(4); }</script>`},
		{"page-like assignment without navigation", `<script>var config = { page: 7, theme: "dark" };</script>`},
		{"size handler", `<button onclick="setPageSize(50)">50 per page</button>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parsePage(t, listingURL, tt.body)

			assert.Empty(t, detectScript(doc, 50))
			result := newTestDiscoverer(nil, nil).Discover(context.Background(), doc, listingURL, Options{})
			assert.Empty(t, result.Pages)
		})
	}
}

func TestDetectScript_InlineNavigationWithPageState(t *testing.T) {
	doc := parsePage(t, listingURL, `
		<script>
			var state = { page: 1, pages: 3 };
			document.querySelector(".last").onclick = function () { loadPage(3); };
		</script>`)

	hits := detectScript(doc, 50)

	var urls []string
	for _, h := range hits {
		urls = append(urls, h.url)
		assert.Equal(t, models.StrategyScriptDriven, h.strategy)
	}
	assert.Equal(t, []string{"https://example.com/events?page=2", "https://example.com/events?page=3"}, urls)
}

func TestDiscover_IgnoresNonNavigableHrefs(t *testing.T) {
	doc := parsePage(t, listingURL, `
		<nav>
			<a href="mailto:info@example.com">2</a>
			<a href="tel:5551234">3</a>
			<a href="#page-4">4</a>
		</nav>`)

	result := newTestDiscoverer(nil, nil).Discover(context.Background(), doc, listingURL, Options{})

	assert.Empty(t, result.Pages)
}

func TestDiscover_ModelGate(t *testing.T) {
	body := `<a href="/about">About</a><a href="/events/archive">Older listings</a>`
	reply := `{"next_urls": ["/events/archive"], "confidence": 0.9, "reasoning": "archive continues the listing"}`

	tests := []struct {
		name      string
		expected  int
		found     int
		wantCalls int
		wantPages int
	}{
		{"expected exceeds found", 10, 3, 1, 1},
		{"expected already met", 3, 3, 0, 0},
		{"no expected count", 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &scriptedCompleter{reply: reply}
			doc := parsePage(t, listingURL, body)

			result := newTestDiscoverer(completer, nil).Discover(context.Background(), doc, listingURL, Options{
				ExpectedEventCount: tt.expected,
				FoundEvents:        countFound(tt.found),
			})

			assert.Equal(t, tt.wantCalls, completer.calls)
			require.Len(t, result.Pages, tt.wantPages)
			if tt.wantPages > 0 {
				assert.Equal(t, "https://example.com/events/archive", result.Pages[0].URL)
				assert.Equal(t, []models.PaginationStrategy{models.StrategyModelAssisted}, result.Pages[0].Strategies)
				assert.Equal(t, modelConfidenceCap, result.Pages[0].Confidence)
				assert.Contains(t, result.StrategiesAttempted, AttemptModel)
				assert.Equal(t, paginationSchema, completer.last.SchemaName)
			}
		})
	}
}

func TestDiscover_ModelRepliesOutsideSampleAreDropped(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		reply string
		want  []string
	}{
		{
			name:  "invented and off-site urls",
			body:  `<a href="/about">About</a>`,
			reply: `{"next_urls": ["https://evil.example.net/x?page=2", "/events?page=99"], "confidence": 0.4, "reasoning": "guess"}`,
			want:  []string{},
		},
		{
			name:  "sampled off-site link",
			body:  `<a href="/about">About</a><a href="https://partner.example.org/events?page=2">Partner events</a>`,
			reply: `{"next_urls": ["https://partner.example.org/events?page=2"], "confidence": 0.4, "reasoning": "looks paged"}`,
			want:  []string{},
		},
		{
			name:  "only sampled same-host link kept",
			body:  `<a href="/about">About</a><a href="/events/archive">Older listings</a>`,
			reply: `{"next_urls": ["/events/archive", "/events?page=99"], "confidence": 0.4, "reasoning": "archive"}`,
			want:  []string{"https://example.com/events/archive"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &scriptedCompleter{reply: tt.reply}
			doc := parsePage(t, listingURL, tt.body)

			result := newTestDiscoverer(completer, nil).Discover(context.Background(), doc, listingURL, Options{
				ExpectedEventCount: 10,
				FoundEvents:        countFound(0),
			})

			assert.Equal(t, 1, completer.calls)
			assert.Equal(t, tt.want, result.URLs())
		})
	}
}

func TestDiscover_ModelSkippedWhenStructuralFound(t *testing.T) {
	completer := &scriptedCompleter{reply: `{"next_urls": [], "confidence": 0, "reasoning": ""}`}
	doc := parsePage(t, listingURL, `<a rel="next" href="/events?page=2">Next</a>`)

	result := newTestDiscoverer(completer, nil).Discover(context.Background(), doc, listingURL, Options{
		ExpectedEventCount: 20,
		FoundEvents:        countFound(1),
	})

	assert.Zero(t, completer.calls)
	assert.Len(t, result.Pages, 1)
	assert.NotContains(t, result.StrategiesAttempted, AttemptModel)
}

func TestDiscover_ModelFailureIsNotFatal(t *testing.T) {
	completer := &scriptedCompleter{err: errors.New("upstream unavailable")}
	doc := parsePage(t, listingURL, `<a href="/about">About</a>`)

	result := newTestDiscoverer(completer, nil).Discover(context.Background(), doc, listingURL, Options{
		ExpectedEventCount: 5,
		FoundEvents:        countFound(0),
	})

	assert.Equal(t, 1, completer.calls)
	assert.Empty(t, result.Pages)
	assert.NotNil(t, result.Pages)
}

func TestDiscover_ModelDisabledByConfig(t *testing.T) {
	completer := &scriptedCompleter{reply: `{"next_urls": ["/x"], "confidence": 0.4, "reasoning": "r"}`}
	doc := parsePage(t, listingURL, `<a href="/x">X</a>`)
	d := newTestDiscoverer(completer, func(c *config.PaginationConfig) { c.EnableModelAssisted = false })

	d.Discover(context.Background(), doc, listingURL, Options{ExpectedEventCount: 5, FoundEvents: countFound(0)})

	assert.Zero(t, completer.calls)
}

func TestDiscover_WritesFailureRecord(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "pagination_failures.jsonl")
	d := newTestDiscoverer(nil, func(c *config.PaginationConfig) { c.FailureLogFile = logPath })
	doc := parsePage(t, listingURL, `<div class="infinite-scroll"></div><a href="/about">About</a><button>Load more</button>`)

	d.Discover(context.Background(), doc, listingURL, Options{})
	d.Discover(context.Background(), doc, listingURL, Options{})
	require.NoError(t, d.Close())

	raw, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var record FailureRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, listingURL, record.URL)
	assert.Equal(t, "example.com", record.Domain)
	assert.Len(t, record.ContentHash, 16)
	assert.Equal(t, []string{AttemptStructural, AttemptScript}, record.StrategiesAttempted)
	assert.True(t, record.Indicators.HasInfiniteScroll)
	assert.True(t, record.Indicators.HasLoadMoreControl)
	require.Len(t, record.NavigationLinks, 1)
	assert.Equal(t, "https://example.com/about", record.NavigationLinks[0].URL)
}

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func TestFailureRecorder_DedupesByURLAndContent(t *testing.T) {
	out := &bufferCloser{}
	recorder := newFailureRecorder(out)

	first := parsePage(t, listingURL, `<p>one</p>`)
	changed := parsePage(t, listingURL, `<p>two</p>`)

	written, err := recorder.Record(first, []string{AttemptStructural})
	require.NoError(t, err)
	assert.True(t, written)

	written, err = recorder.Record(first, []string{AttemptStructural})
	require.NoError(t, err)
	assert.False(t, written)

	written, err = recorder.Record(changed, []string{AttemptStructural})
	require.NoError(t, err)
	assert.True(t, written)

	assert.Equal(t, 2, strings.Count(out.String(), "\n"))
	require.NoError(t, recorder.Close())
	assert.True(t, out.closed)
}

func TestSampleLinks_Limit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString(`<a class="item" href="/e/` + string(rune('a'+i)) + `">Event</a>`)
	}
	b.WriteString(`<a href="javascript:void(0)">JS</a>`)
	doc := parsePage(t, listingURL, b.String())

	links := sampleLinks(doc, 4)

	require.Len(t, links, 4)
	assert.Equal(t, "https://example.com/e/a", links[0].URL)
	assert.Equal(t, "item", links[0].Class)
}
