package renderer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/document"
	"github.com/aleister1102/eventextract/internal/httpclient"
	"github.com/aleister1102/eventextract/internal/metrics"
)

const staticBackend = "static"

// StaticRenderer fetches pages without executing scripts.
type StaticRenderer struct {
	config    config.RenderConfig
	transport http.RoundTripper
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewStaticRenderer creates a StaticRenderer with a shared pooled transport.
func NewStaticRenderer(cfg config.RenderConfig, m *metrics.Metrics, logger zerolog.Logger) (*StaticRenderer, error) {
	clientCfg := httpclient.NewHTTPClientBuilder(logger).
		WithTimeout(time.Duration(cfg.TimeoutSecs) * time.Second).
		WithInsecureSkipVerify(cfg.InsecureSkipTLS).
		WithUserAgent(cfg.UserAgent).
		WithHTTP2(true).
		Config()

	transport, err := httpclient.NewTransport(clientCfg, logger)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to create static render transport")
	}

	return &StaticRenderer{
		config:    cfg,
		transport: transport,
		metrics:   m,
		logger:    logger.With().Str("component", "StaticRenderer").Logger(),
	}, nil
}

// Render fetches url once and parses the body. Non-2xx responses become HTTPError.
func (s *StaticRenderer) Render(ctx context.Context, url string) (doc *document.Document, err error) {
	started := time.Now()
	defer func() { observe(s.metrics, staticBackend, started, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collector := s.newCollector(ctx)

	var (
		body     []byte
		finalURL string
		fetchErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
		finalURL = r.Request.URL.String()
	})
	collector.OnError(func(r *colly.Response, e error) {
		fetchErr = s.classify(url, r, e)
	})

	visitErr := collector.Visit(url)
	if fetchErr == nil && visitErr != nil {
		fetchErr = s.classify(url, nil, visitErr)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if body == nil {
		return nil, errorwrapper.NewNetworkError(url, "empty response", nil)
	}

	doc, err = document.Parse(finalURL, string(body))
	if err != nil {
		return nil, errorwrapper.NewNetworkError(url, "unparseable response", err)
	}
	s.logger.Debug().Str("url", url).Str("final_url", finalURL).Int("bytes", len(body)).Msg("Page fetched")
	return doc, nil
}

// Ready always succeeds; the static backend has no local dependencies.
func (s *StaticRenderer) Ready() error { return nil }

// Close releases idle connections.
func (s *StaticRenderer) Close() error {
	if t, ok := s.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}

func (s *StaticRenderer) newCollector(ctx context.Context) *colly.Collector {
	options := []colly.CollectorOption{
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(s.config.MaxBodyMB * 1024 * 1024),
	}
	if s.config.UserAgent != "" {
		options = append(options, colly.UserAgent(s.config.UserAgent))
	}
	collector := colly.NewCollector(options...)

	timeout := time.Duration(s.config.TimeoutSecs) * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(&contextTransport{ctx: ctx, next: s.transport})
	return collector
}

func (s *StaticRenderer) classify(url string, r *colly.Response, err error) error {
	if r != nil && r.StatusCode > 0 {
		return errorwrapper.NewHTTPErrorWithURL(r.StatusCode, http.StatusText(r.StatusCode), url)
	}
	reason := "request failed"
	var netErr interface{ Timeout() bool }
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		reason = "timeout"
	case strings.Contains(err.Error(), "no such host"):
		reason = "dns lookup failed"
	case strings.Contains(err.Error(), "connection refused"):
		reason = "connection refused"
	}
	return errorwrapper.NewNetworkError(url, reason, err)
}

// contextTransport binds outgoing requests to the render context.
type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(req.WithContext(t.ctx))
}
