package pagination

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/models"
	"github.com/aleister1102/eventextract/internal/urlhandler"
)

const (
	relNextConfidence      = 0.95
	nextTextConfidence     = 0.8
	numberedConfidence     = 0.9
	crowdedNextThreshold   = 3
	crowdedNextScale       = 0.6
	maxNextAffordanceChars = 50

	calendarNavConfidence   = 0.85
	calendarDataConfidence  = 0.8
	monthStepConfidence     = 0.75
	calendarFrameConfidence = 0.7
)

// containerSelector matches elements that usually wrap page-number links.
const containerSelector = `.pagination, .pager, .page-numbers, nav, [role="navigation"], [class*="paginat"], [class*="pager"]`

// calendarNavSelector matches the forward control of common calendar widgets.
const calendarNavSelector = `.fc-next-button, .fc-button-next, .calendar-next, .next-month, .month-next, .nav-next, [data-action="next"]`

// calendarFrameHints mark an iframe src as an embedded calendar.
var calendarFrameHints = []string{"calendar", "event", "schedule", "month", "libcal"}

var nextAffordances = map[string]bool{
	"next":         true,
	"next page":    true,
	"next month":   true,
	"next month »": true,
	"next month ›": true,
	"next month →": true,
	"next month >": true,
	"next »":       true,
	"next ›":       true,
	"next →":       true,
	"next >":       true,
	"next >>":      true,
	"›":            true,
	"»":            true,
	"→":            true,
	">>":           true,
	"load more":    true,
	"more events":  true,
}

// pageParamNames are query keys that carry a page position.
var pageParamNames = map[string]bool{
	"page":       true,
	"pg":         true,
	"p":          true,
	"paged":      true,
	"pagenumber": true,
	"page_num":   true,
	"offset":     true,
	"start":      true,
}

// found is one strategy hit before merging.
type found struct {
	url        string
	strategy   models.PaginationStrategy
	confidence float64
}

// detectStructural finds rel=next links, "next" affordances, numbered page
// links and calendar month navigation.
func detectStructural(doc *document.Document) []found {
	var hits []found

	doc.Find("a[rel], link[rel]").Each(func(_ int, s *goquery.Selection) {
		if !relHasNext(s.AttrOr("rel", "")) {
			return
		}
		if abs, ok := resolveHref(doc, s.AttrOr("href", "")); ok {
			hits = append(hits, found{url: abs, strategy: models.StrategyLinkRelNext, confidence: relNextConfidence})
		}
	})

	var nextHits []found
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if relHasNext(s.AttrOr("rel", "")) {
			return
		}
		text := anchorText(s)
		if text == "" {
			return
		}
		abs, ok := resolveHref(doc, s.AttrOr("href", ""))
		if !ok {
			return
		}

		if len([]rune(text)) <= maxNextAffordanceChars && nextAffordances[strings.ToLower(text)] {
			nextHits = append(nextHits, found{url: abs, strategy: models.StrategyLinkRelNext, confidence: nextTextConfidence})
			return
		}

		n, err := strconv.Atoi(text)
		if err != nil || n <= 1 {
			return
		}
		if s.ParentsFiltered(containerSelector).Length() > 0 || hrefCarriesNumber(abs, n) {
			hits = append(hits, found{url: abs, strategy: models.StrategyCSSNumbered, confidence: numberedConfidence})
		}
	})

	if len(nextHits) > crowdedNextThreshold {
		for i := range nextHits {
			nextHits[i].confidence *= crowdedNextScale
		}
	}
	hits = append(hits, nextHits...)
	return append(hits, detectCalendar(doc)...)
}

// detectCalendar follows the forward control of calendar widgets and reports
// same-host calendar iframes. A control without a link advances a month=
// query parameter on the page URL. The iframe document itself is not
// inspected: that would need a second render.
func detectCalendar(doc *document.Document) []found {
	var hits []found
	stepped := false
	doc.Find(calendarNavSelector).Each(func(_ int, s *goquery.Selection) {
		if abs, ok := resolveHref(doc, s.AttrOr("href", "")); ok {
			hits = append(hits, found{url: abs, strategy: models.StrategyLinkRelNext, confidence: calendarNavConfidence})
			return
		}
		if abs, ok := resolveHref(doc, s.AttrOr("data-url", "")); ok {
			hits = append(hits, found{url: abs, strategy: models.StrategyLinkRelNext, confidence: calendarDataConfidence})
			return
		}
		if stepped {
			return
		}
		if next, ok := nextMonthURL(doc.URL); ok {
			stepped = true
			hits = append(hits, found{url: next, strategy: models.StrategyScriptDriven, confidence: monthStepConfidence})
		}
	})

	doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		src := s.AttrOr("src", "")
		abs, ok := resolveHref(doc, src)
		if !ok || !sameHost(doc, abs) || !isCalendarFrame(src) {
			return
		}
		hits = append(hits, found{url: abs, strategy: models.StrategyLinkRelNext, confidence: calendarFrameConfidence})
	})
	return hits
}

func isCalendarFrame(src string) bool {
	lower := strings.ToLower(src)
	for _, hint := range calendarFrameHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// nextMonthURL advances the month query parameter of u by one. December
// rolls over into January and bumps year when the URL carries one.
func nextMonthURL(u *url.URL) (string, bool) {
	query := u.Query()
	raw := query.Get("month")
	month, err := strconv.Atoi(raw)
	if err != nil || month < 1 || month > 12 {
		return "", false
	}

	month++
	if month > 12 {
		month = 1
		if year, err := strconv.Atoi(query.Get("year")); err == nil {
			query.Set("year", strconv.Itoa(year+1))
		}
	}
	if len(raw) == 2 {
		query.Set("month", fmt.Sprintf("%02d", month))
	} else {
		query.Set("month", strconv.Itoa(month))
	}

	next := *u
	next.RawQuery = query.Encode()
	next.Fragment = ""
	return next.String(), true
}

func relHasNext(rel string) bool {
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		if token == "next" {
			return true
		}
	}
	return false
}

func anchorText(s *goquery.Selection) string {
	text := document.CollapseWhitespace(s.Text())
	if text == "" {
		text = document.CollapseWhitespace(s.AttrOr("aria-label", ""))
	}
	return text
}

func resolveHref(doc *document.Document, href string) (string, bool) {
	if !urlhandler.IsNavigableHref(href) {
		return "", false
	}
	return doc.Resolve(href)
}

// hrefCarriesNumber reports whether n appears in abs as a page-like query
// value or path segment (/page/3, /p/3, /page-3, /page3).
func hrefCarriesNumber(abs string, n int) bool {
	parsed, err := url.Parse(abs)
	if err != nil {
		return false
	}
	want := strconv.Itoa(n)
	for key, values := range parsed.Query() {
		if !pageParamNames[strings.ToLower(key)] {
			continue
		}
		for _, v := range values {
			if v == want {
				return true
			}
		}
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, seg := range segments {
		lower := strings.ToLower(seg)
		if lower == "page-"+want || lower == "page"+want {
			return true
		}
		if seg == want && i > 0 {
			switch strings.ToLower(segments[i-1]) {
			case "page", "p", "pg", "pages":
				return true
			}
		}
	}
	return false
}
