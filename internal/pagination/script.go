package pagination

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/BishopFox/jsluice"
	"github.com/PuerkitoBio/goquery"

	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/models"
	"github.com/aleister1102/eventextract/internal/urlhandler"
)

const (
	scriptConfidence   = 0.7
	maxObservedPage    = 10_000_000
	jsluicePlaceholder = "EXPR"
)

var (
	// page=3, page: 3, "paged": "3", ?pg=3
	pageAssignPattern = regexp.MustCompile(`(?i)["']?\b(page|pg|p|paged|pageNumber|page_num|offset|start)\b["']?\s*[:=]\s*["']?(\d{1,8})\b`)
	// goToPage(3), loadPage('4'), showPage (5), fetch_page(6). Names such as
	// setPageSize(20) or pageLimit(10) do not match.
	pageCallPattern = regexp.MustCompile(`(?i)\b(?:go_?to|load|show|change|next|fetch|jump_?to)_?page\s*\(\s*["']?(\d{1,8})\b`)
)

// scriptSignals accumulates evidence from handlers and inline scripts.
type scriptSignals struct {
	param      string
	observed   []int
	templates  []string
	direct     []string
	hasHandler bool
}

// detectScript looks for script-driven pagination and synthesizes page URLs.
func detectScript(doc *document.Document, maxPages int) []found {
	sig := &scriptSignals{}

	doc.Find("[onclick], [data-page], [data-page-number], [data-next-page], a[href]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"data-page", "data-page-number"} {
			if v, ok := s.Attr(attr); ok {
				if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
					sig.observe("", n)
					sig.hasHandler = true
				}
			}
		}
		if v, ok := s.Attr("data-next-page"); ok {
			v = strings.TrimSpace(v)
			if n, err := strconv.Atoi(v); err == nil {
				sig.observe("", n)
				sig.hasHandler = true
			} else if abs, ok := resolveHref(doc, v); ok {
				sig.direct = append(sig.direct, abs)
			}
		}

		var code []string
		if onclick, ok := s.Attr("onclick"); ok {
			code = append(code, onclick)
		}
		if href, ok := s.Attr("href"); ok && strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), "javascript:") {
			code = append(code, strings.TrimSpace(href)[len("javascript:"):])
		}
		for _, body := range code {
			if sig.scan(body) {
				sig.hasHandler = true
			}
			sig.analyze(doc, body)
		}
	})

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		scriptType := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
		if scriptType != "" && !strings.Contains(scriptType, "javascript") && scriptType != "module" {
			return
		}
		// Inline code needs both a navigation call and a page-like
		// parameter; a jsluice template is evidence on its own.
		body := s.Text()
		assigned := sig.scanAssignments(body)
		called := sig.scanCalls(body)
		if assigned && called {
			sig.hasHandler = true
		}
		sig.analyze(doc, body)
	})

	hits := make([]found, 0, len(sig.direct))
	for _, u := range sig.direct {
		hits = append(hits, found{url: u, strategy: models.StrategyScriptDriven, confidence: scriptConfidence})
	}
	for _, u := range sig.synthesize(doc.URL, maxPages) {
		hits = append(hits, found{url: u, strategy: models.StrategyScriptDriven, confidence: scriptConfidence})
	}
	return hits
}

func (sig *scriptSignals) observe(param string, n int) {
	if n <= 0 || n > maxObservedPage {
		return
	}
	if sig.param == "" && param != "" {
		sig.param = param
	}
	sig.observed = append(sig.observed, n)
}

// scan applies the parameter and call patterns; it reports whether anything matched.
func (sig *scriptSignals) scan(code string) bool {
	assigned := sig.scanAssignments(code)
	called := sig.scanCalls(code)
	return assigned || called
}

func (sig *scriptSignals) scanAssignments(code string) bool {
	matched := false
	for _, m := range pageAssignPattern.FindAllStringSubmatch(code, -1) {
		if n, err := strconv.Atoi(m[2]); err == nil {
			sig.observe(m[1], n)
			matched = true
		}
	}
	return matched
}

func (sig *scriptSignals) scanCalls(code string) bool {
	matched := false
	for _, m := range pageCallPattern.FindAllStringSubmatch(code, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			sig.observe("", n)
			matched = true
		}
	}
	return matched
}

// analyze uses jsluice to find URL templates with a page-like query parameter.
func (sig *scriptSignals) analyze(doc *document.Document, code string) {
	if strings.TrimSpace(code) == "" {
		return
	}
	analyzer := jsluice.NewAnalyzer([]byte(code))
	for _, u := range analyzer.GetURLs() {
		param := pageLikeParam(u.QueryParams)
		if param == "" {
			continue
		}
		abs, ok := doc.Resolve(u.URL)
		if !ok {
			continue
		}
		if sig.param == "" {
			sig.param = param
		}
		sig.templates = append(sig.templates, abs)
		sig.hasHandler = true

		if parsed, err := url.Parse(abs); err == nil {
			if n, err := strconv.Atoi(parsed.Query().Get(param)); err == nil {
				sig.observe(param, n)
			}
		}
	}
}

func pageLikeParam(params []string) string {
	for _, p := range params {
		if pageParamNames[strings.ToLower(p)] {
			return p
		}
	}
	return ""
}

// synthesize enumerates current+1 .. max observed, at most maxPages URLs.
// Offset-style parameters step by the smallest observed offset.
func (sig *scriptSignals) synthesize(base *url.URL, maxPages int) []string {
	if !sig.hasHandler && len(sig.templates) == 0 {
		return nil
	}
	param := sig.param
	if param == "" {
		param = "page"
	}

	template := base.String()
	if len(sig.templates) > 0 {
		template = cleanTemplate(sig.templates[0], param)
	}

	current := 1
	if parsed, err := url.Parse(base.String()); err == nil {
		if n, err := strconv.Atoi(parsed.Query().Get(param)); err == nil && n > 0 {
			current = n
		}
	}

	step := 1
	offsetStyle := param == "offset" || param == "start"
	if offsetStyle {
		step = smallestPositive(sig.observed)
		if step <= 0 {
			return nil
		}
		if current == 1 {
			current = 0
		}
	}

	maxSeen := 0
	for _, n := range sig.observed {
		if n > maxSeen {
			maxSeen = n
		}
	}
	if maxSeen <= current {
		maxSeen = current + step
	}

	var urls []string
	for v := current + step; v <= maxSeen && len(urls) < maxPages; v += step {
		u, err := urlhandler.WithQueryParam(template, param, strconv.Itoa(v))
		if err != nil {
			break
		}
		urls = append(urls, u)
	}
	return urls
}

// cleanTemplate drops jsluice expression placeholders other than param.
func cleanTemplate(raw, param string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	query := parsed.Query()
	for key, values := range query {
		if key == param {
			continue
		}
		for _, v := range values {
			if strings.Contains(v, jsluicePlaceholder) {
				query.Del(key)
				break
			}
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func smallestPositive(values []int) int {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	for _, v := range sorted {
		if v > 0 {
			return v
		}
	}
	return 0
}
