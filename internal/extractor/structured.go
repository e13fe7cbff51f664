package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/titanous/json5"

	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/models"
)

const (
	structuredConfidence = 1.0
	maxLinkedDataDepth   = 6
)

// StructuredExtractor reads schema.org Event objects from JSON-LD blocks.
type StructuredExtractor struct {
	lenient     bool
	maxFragment int
	logger      zerolog.Logger
}

// NewStructuredExtractor creates the linked-data extractor
func NewStructuredExtractor(cfg config.ExtractionConfig, logger zerolog.Logger) *StructuredExtractor {
	return &StructuredExtractor{
		lenient:     cfg.LenientJSONLD,
		maxFragment: cfg.MaxSourceFragmentBytes,
		logger:      logger.With().Str("component", "StructuredExtractor").Logger(),
	}
}

func (e *StructuredExtractor) Name() string { return models.ResultMethodJSONLD }

func (e *StructuredExtractor) Method() models.ExtractionMethod { return models.MethodStructured }

// Extract never fails on bad blocks; they are logged and skipped.
func (e *StructuredExtractor) Extract(ctx context.Context, doc *document.Document, _ models.ExtractionHints) ([]models.CandidateEvent, error) {
	var candidates []models.CandidateEvent

	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		if ctx.Err() != nil {
			return
		}
		scriptType, _ := s.Attr("type")
		if !strings.EqualFold(strings.TrimSpace(scriptType), "application/ld+json") {
			return
		}

		payload, err := e.parseBlock(s.Text())
		if err != nil {
			e.logger.Debug().Int("block", i).Err(err).Msg("Skipping unparseable JSON-LD block")
			return
		}

		var objects []map[string]any
		collectEventObjects(payload, &objects, 0)
		for _, obj := range objects {
			if candidate, ok := e.toCandidate(obj, doc); ok {
				candidates = append(candidates, candidate)
			}
		}
	})

	if err := ctx.Err(); err != nil {
		return candidates, err
	}
	e.logger.Debug().Int("candidates", len(candidates)).Msg("Structured extraction completed")
	return candidates, nil
}

func (e *StructuredExtractor) parseBlock(raw string) (any, error) {
	cleaned := stripScriptWrappers(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty block")
	}

	var payload any
	err := json.Unmarshal([]byte(cleaned), &payload)
	if err == nil {
		return payload, nil
	}
	if !e.lenient {
		return nil, err
	}

	var lenientPayload any
	if lenientErr := json5.Unmarshal([]byte(cleaned), &lenientPayload); lenientErr != nil {
		return nil, fmt.Errorf("strict: %v; lenient: %w", err, lenientErr)
	}
	return lenientPayload, nil
}

func (e *StructuredExtractor) toCandidate(obj map[string]any, doc *document.Document) (models.CandidateEvent, bool) {
	title := textValue(obj["name"])
	if title == "" {
		title = textValue(obj["headline"])
	}
	start := textValue(obj["startDate"])
	if title == "" || start == "" {
		return models.CandidateEvent{}, false
	}

	fragment, _ := json.Marshal(obj)

	return models.CandidateEvent{
		Title:            title,
		Description:      textValue(obj["description"]),
		Location:         locationValue(obj["location"], 0),
		StartTime:        start,
		EndTime:          textValue(obj["endDate"]),
		URL:              eventURL(obj, doc),
		SourceFragment:   truncateUTF8(string(fragment), e.maxFragment),
		Confidence:       structuredConfidence,
		ExtractionMethod: models.MethodStructured,
	}, true
}

// stripScriptWrappers removes HTML comment and CDATA guards around a script body.
func stripScriptWrappers(raw string) string {
	s := strings.TrimSpace(raw)
	for _, prefix := range []string{"<!--", "//<![CDATA[", "/*<![CDATA[*/", "<![CDATA["} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	for _, suffix := range []string{"-->", "//]]>", "/*]]>*/", "]]>"} {
		s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
	}
	return s
}

// collectEventObjects walks top-level objects, arrays, @graph and ItemList entries.
func collectEventObjects(v any, out *[]map[string]any, depth int) {
	if depth > maxLinkedDataDepth {
		return
	}
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			collectEventObjects(item, out, depth+1)
		}
	case map[string]any:
		if isEventType(node["@type"]) {
			*out = append(*out, node)
			return
		}
		if graph, ok := node["@graph"]; ok {
			collectEventObjects(graph, out, depth+1)
		}
		if elements, ok := node["itemListElement"].([]any); ok {
			for _, element := range elements {
				if entry, ok := element.(map[string]any); ok {
					if item, ok := entry["item"]; ok && !isEventType(entry["@type"]) {
						collectEventObjects(item, out, depth+1)
						continue
					}
				}
				collectEventObjects(element, out, depth+1)
			}
		}
	}
}

func isEventType(v any) bool {
	switch t := v.(type) {
	case string:
		name := t
		if idx := strings.LastIndexAny(name, "/:"); idx >= 0 {
			name = name[idx+1:]
		}
		return name == "Event" || (strings.HasSuffix(name, "Event") && len(name) > len("Event"))
	case []any:
		for _, item := range t {
			if isEventType(item) {
				return true
			}
		}
	}
	return false
}

// textValue returns unescaped, whitespace-collapsed text for a JSON-LD value.
func textValue(v any) string {
	switch t := v.(type) {
	case string:
		return document.CollapseWhitespace(html.UnescapeString(t))
	case float64:
		return fmt.Sprintf("%v", t)
	case []any:
		for _, item := range t {
			if s := textValue(item); s != "" {
				return s
			}
		}
	case map[string]any:
		if value, ok := t["@value"]; ok {
			return textValue(value)
		}
	}
	return ""
}

func locationValue(v any, depth int) string {
	if depth > 3 {
		return ""
	}
	switch t := v.(type) {
	case string:
		return textValue(t)
	case []any:
		for _, item := range t {
			if s := locationValue(item, depth+1); s != "" {
				return s
			}
		}
	case map[string]any:
		if hasType(t, "PostalAddress") {
			return joinAddress(t)
		}
		if name := textValue(t["name"]); name != "" {
			return name
		}
		switch addr := t["address"].(type) {
		case string:
			return textValue(addr)
		case map[string]any:
			return joinAddress(addr)
		}
	}
	return ""
}

func hasType(obj map[string]any, want string) bool {
	switch t := obj["@type"].(type) {
	case string:
		return t == want
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func joinAddress(addr map[string]any) string {
	var parts []string
	for _, key := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"} {
		if s := textValue(addr[key]); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return textValue(addr["name"])
	}
	return strings.Join(parts, ", ")
}

func eventURL(obj map[string]any, doc *document.Document) string {
	if raw := textValue(obj["url"]); raw != "" {
		if resolved, ok := doc.Resolve(raw); ok {
			return resolved
		}
	}
	if id := textValue(obj["@id"]); strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
		if resolved, ok := doc.Resolve(id); ok {
			return resolved
		}
	}
	return ""
}
