package extractor

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

const eventSchemaName = "event_listing"

const eventSystemPrompt = `You extract events from the content of a single web page.

Rules:
- Return only the fields in the response schema.
- Only report events that are explicitly present in the content. If there are none, return {"events": []}.
- Never guess or invent dates. If a date or time is not stated, leave the field as an empty string.
- Prefer ISO-8601 for start_time and end_time (for example 2025-03-14T19:30:00). If the page only gives a day, return the day (2025-03-14).
- Use an empty string for any unknown field.
- confidence is your certainty between 0 and 1 that the item is a real event with the stated date.`

var eventStringFields = []string{"title", "description", "location", "start_time", "end_time", "url"}

// eventResponseSchema is the strict schema for model-assisted extraction.
func eventResponseSchema() *jsonschema.Definition {
	props := make(map[string]jsonschema.Definition, len(eventStringFields)+1)
	for _, field := range eventStringFields {
		props[field] = jsonschema.Definition{Type: jsonschema.String}
	}
	props["confidence"] = jsonschema.Definition{Type: jsonschema.Number}

	required := append(append([]string{}, eventStringFields...), "confidence")

	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"events": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type:                 jsonschema.Object,
					Properties:           props,
					Required:             required,
					AdditionalProperties: false,
				},
			},
		},
		Required:             []string{"events"},
		AdditionalProperties: false,
	}
}

func buildEventUserPrompt(pageURL string, expected int, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Page URL: %s\n", pageURL)
	if expected > 0 {
		fmt.Fprintf(&b, "The page is expected to list about %d events.\n", expected)
	}
	b.WriteString("\nPage content (Markdown):\n\n")
	b.WriteString(content)
	return b.String()
}
