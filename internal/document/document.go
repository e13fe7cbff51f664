// Package document wraps a rendered page as a queryable DOM.
package document

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
)

// Document is a rendered page. It is read-only after Parse; callers that need
// to mutate the tree work on Clone.
type Document struct {
	URL   *url.URL
	HTML  string
	Title string

	dom *goquery.Document
}

// Parse builds a Document from rendered HTML. pageURL is the final URL of the
// page after redirects and is used to resolve relative links.
func Parse(pageURL, html string) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "invalid page URL")
	}
	if !base.IsAbs() {
		return nil, errorwrapper.NewValidationError("url", pageURL, "page URL must be absolute")
	}

	dom, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to parse HTML")
	}

	if href, ok := dom.Find("base[href]").First().Attr("href"); ok {
		if resolved, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = resolved
		}
	}

	return &Document{
		URL:   base,
		HTML:  html,
		Title: pageTitle(dom),
		dom:   dom,
	}, nil
}

// Find runs a CSS selector against the document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.dom.Find(selector)
}

// Selection returns the root selection.
func (d *Document) Selection() *goquery.Selection {
	return d.dom.Selection
}

// Clone returns an independent copy of the DOM that can be modified.
func (d *Document) Clone() *goquery.Document {
	return goquery.NewDocumentFromNode(cloneNode(d.dom.Nodes[0]))
}

// Resolve turns href into an absolute, fragment-free URL relative to the page.
func (d *Document) Resolve(href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := d.URL.ResolveReference(ref)
	abs.Fragment = ""
	abs.RawFragment = ""
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

// Text returns whitespace-collapsed text of the whole document.
func (d *Document) Text() string {
	return CollapseWhitespace(d.dom.Text())
}

// CollapseWhitespace trims s and squeezes runs of whitespace to one space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func pageTitle(dom *goquery.Document) string {
	if title := CollapseWhitespace(dom.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := dom.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		return CollapseWhitespace(og)
	}
	return CollapseWhitespace(dom.Find("h1").First().Text())
}
