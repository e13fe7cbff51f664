package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/llm"
	"github.com/aleister1102/eventextract/internal/models"
	"github.com/aleister1102/eventextract/internal/urlhandler"
)

const (
	modelConfidenceCap = 0.5
	paginationSchema   = "pagination_links"
)

const paginationSystemPrompt = `You identify pagination on an event listing page.

You receive the page URL and a list of links found on the page. Return the URLs of further pages of the same listing (next page, numbered pages, "load more" targets). Rules:
- Only return URLs that appear in the link list.
- Never return the current page URL.
- Return an empty next_urls list when the page has no pagination.
- confidence is your certainty between 0 and 1.
- reasoning is one short sentence.`

type linkSample struct {
	Text  string `json:"text"`
	Href  string `json:"href"`
	Class string `json:"class,omitempty"`
	URL   string `json:"url"`
}

type modelPagination struct {
	NextURLs   []string `json:"next_urls"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

func paginationResponseSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"next_urls":  {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}},
			"confidence": {Type: jsonschema.Number},
			"reasoning":  {Type: jsonschema.String},
		},
		Required:             []string{"next_urls", "confidence", "reasoning"},
		AdditionalProperties: false,
	}
}

// sampleLinks returns up to limit navigable links with their absolute URLs.
func sampleLinks(doc *document.Document, limit int) []linkSample {
	var links []linkSample
	seen := make(map[string]bool)
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		abs, ok := resolveHref(doc, href)
		if !ok || seen[abs] {
			return true
		}
		seen[abs] = true
		text := anchorText(s)
		if len([]rune(text)) > 80 {
			text = string([]rune(text)[:80])
		}
		links = append(links, linkSample{
			Text:  text,
			Href:  href,
			Class: strings.TrimSpace(s.AttrOr("class", "")),
			URL:   abs,
		})
		return len(links) < limit
	})
	return links
}

// detectWithModel asks the model for next-page URLs among the sampled links.
// Replies outside the sample or off the page's host are dropped.
func detectWithModel(ctx context.Context, completer llm.Completer, doc *document.Document, links []linkSample) ([]found, string, error) {
	if len(links) == 0 {
		return nil, "", nil
	}
	linkJSON, err := json.Marshal(links)
	if err != nil {
		return nil, "", err
	}

	var reply modelPagination
	err = completer.CompleteJSON(ctx, llm.JSONRequest{
		SystemPrompt: paginationSystemPrompt,
		UserPrompt:   fmt.Sprintf("Page URL: %s\n\nLinks:\n%s", doc.URL.String(), linkJSON),
		SchemaName:   paginationSchema,
		Schema:       paginationResponseSchema(),
	}, &reply)
	if err != nil {
		return nil, "", err
	}

	confidence := reply.Confidence
	if confidence <= 0 || confidence > modelConfidenceCap {
		confidence = modelConfidenceCap
	}

	offered := make(map[string]bool, len(links))
	for _, link := range links {
		if key, err := urlhandler.CanonicalURL(link.URL); err == nil {
			offered[key] = true
		}
	}

	hits := make([]found, 0, len(reply.NextURLs))
	for _, raw := range reply.NextURLs {
		abs, ok := resolveHref(doc, raw)
		if !ok || !sameHost(doc, abs) {
			continue
		}
		if key, err := urlhandler.CanonicalURL(abs); err != nil || !offered[key] {
			continue
		}
		hits = append(hits, found{url: abs, strategy: models.StrategyModelAssisted, confidence: confidence})
	}
	return hits, reply.Reasoning, nil
}

// sameHost reports whether abs is on the host of the page itself.
func sameHost(doc *document.Document, abs string) bool {
	return strings.EqualFold(urlhandler.Hostname(abs), doc.URL.Hostname())
}
