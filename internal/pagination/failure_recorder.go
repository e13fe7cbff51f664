package pagination

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/logger"
	"github.com/aleister1102/eventextract/internal/urlhandler"
)

const (
	maxRecordedLinks  = 20
	maxRecentFailures = 1000
	maxURLPatterns    = 10
)

// FailureRecord is one JSONL line describing a page where no pagination was found.
type FailureRecord struct {
	Timestamp           time.Time         `json:"timestamp"`
	URL                 string            `json:"url"`
	Domain              string            `json:"domain"`
	ContentHash         string            `json:"content_hash"`
	ContentLength       int               `json:"content_length"`
	StrategiesAttempted []string          `json:"strategies_attempted"`
	NavigationLinks     []linkSample      `json:"navigation_links"`
	Indicators          PaginationSignals `json:"indicators"`
}

// PaginationSignals are weak hints that a page paginates in a way no strategy caught.
type PaginationSignals struct {
	HasNumberedLinks   bool     `json:"has_numbered_links"`
	HasNextPrevText    bool     `json:"has_next_prev_text"`
	HasCalendarWidget  bool     `json:"has_calendar_widget"`
	HasLoadMoreControl bool     `json:"has_load_more_control"`
	HasInfiniteScroll  bool     `json:"has_infinite_scroll"`
	URLPatterns        []string `json:"url_patterns"`
}

// FailureRecorder appends failure records to a rotating file.
// Repeated failures for the same URL and content are written once.
type FailureRecorder struct {
	mu     sync.Mutex
	out    io.WriteCloser
	recent map[string]struct{}
	order  []string
	now    func() time.Time
}

// NewFailureRecorder opens a rotating JSONL writer at path.
func NewFailureRecorder(path string, maxSizeMB, maxBackups int) *FailureRecorder {
	return newFailureRecorder(logger.NewRotatingFile(path, maxSizeMB, maxBackups))
}

func newFailureRecorder(out io.WriteCloser) *FailureRecorder {
	return &FailureRecorder{
		out:    out,
		recent: make(map[string]struct{}),
		now:    time.Now,
	}
}

// Record writes a failure record for doc. It reports whether a line was written.
func (r *FailureRecorder) Record(doc *document.Document, strategies []string) (bool, error) {
	sum := sha256.Sum256([]byte(doc.HTML))
	hash := hex.EncodeToString(sum[:])[:16]
	pageURL := doc.URL.String()

	record := FailureRecord{
		Timestamp:           r.now().UTC(),
		URL:                 pageURL,
		Domain:              urlhandler.Hostname(pageURL),
		ContentHash:         hash,
		ContentLength:       len(doc.HTML),
		StrategiesAttempted: strategies,
		NavigationLinks:     sampleLinks(doc, maxRecordedLinks),
		Indicators:          detectSignals(doc),
	}
	line, err := json.Marshal(record)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := pageURL + "|" + hash
	if _, dup := r.recent[key]; dup {
		return false, nil
	}
	if _, err := r.out.Write(append(line, '\n')); err != nil {
		return false, err
	}
	r.remember(key)
	return true, nil
}

func (r *FailureRecorder) remember(key string) {
	r.recent[key] = struct{}{}
	r.order = append(r.order, key)
	if len(r.order) > maxRecentFailures {
		delete(r.recent, r.order[0])
		r.order = r.order[1:]
	}
}

// Close closes the underlying file.
func (r *FailureRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.Close()
}

func detectSignals(doc *document.Document) PaginationSignals {
	lowerHTML := strings.ToLower(doc.HTML)
	signals := PaginationSignals{URLPatterns: []string{}}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		text := document.CollapseWhitespace(s.Text())
		if text != "" && strings.Trim(text, "0123456789") == "" {
			signals.HasNumberedLinks = true
		}
		href := s.AttrOr("href", "")
		if len(signals.URLPatterns) < maxURLPatterns {
			for _, pattern := range []string{"/page/", "?page=", "&page=", "/calendar/"} {
				if strings.Contains(href, pattern) {
					signals.URLPatterns = append(signals.URLPatterns, href)
					break
				}
			}
		}
	})

	for _, word := range []string{"next", "previous", "more events", "load more"} {
		if strings.Contains(lowerHTML, word) {
			signals.HasNextPrevText = true
			break
		}
	}
	for _, marker := range []string{"fullcalendar", "calendar.js", "datepicker"} {
		if strings.Contains(lowerHTML, marker) {
			signals.HasCalendarWidget = true
			break
		}
	}
	for _, marker := range []string{"infinite-scroll", "infinitescroll", "data-infinite", "intersectionobserver"} {
		if strings.Contains(lowerHTML, marker) {
			signals.HasInfiniteScroll = true
			break
		}
	}
	if doc.Find(".load-more, .show-more, [data-load-more]").Length() > 0 {
		signals.HasLoadMoreControl = true
	}
	doc.Find("button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.Text()), "more") {
			signals.HasLoadMoreControl = true
			return false
		}
		return true
	})
	return signals
}
