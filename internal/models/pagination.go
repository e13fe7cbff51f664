package models

// PaginationStrategy tags the detector that found a page URL.
type PaginationStrategy string

const (
	StrategyLinkRelNext   PaginationStrategy = "link_rel_next"
	StrategyCSSNumbered   PaginationStrategy = "css_numbered"
	StrategyScriptDriven  PaginationStrategy = "script_driven"
	StrategyModelAssisted PaginationStrategy = "model_assisted"
)

// PageCandidate is one discovered listing page.
type PageCandidate struct {
	URL        string               `json:"url"`
	Strategies []PaginationStrategy `json:"strategies"`
	Confidence float64              `json:"confidence"`
}

// HasStrategy reports whether s contributed this page.
func (p PageCandidate) HasStrategy(s PaginationStrategy) bool {
	for _, have := range p.Strategies {
		if have == s {
			return true
		}
	}
	return false
}

// PageDiscoveryResult is the ordered, deduplicated outcome of pagination discovery.
type PageDiscoveryResult struct {
	Pages               []PageCandidate `json:"pages"`
	StrategiesAttempted []string        `json:"strategies_attempted"`
}

// URLs returns the page URLs in order.
func (r PageDiscoveryResult) URLs() []string {
	urls := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		urls = append(urls, p.URL)
	}
	return urls
}
