package document

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
)

// noiseSelectors never carry event content.
var noiseSelectors = []string{
	"script",
	"style",
	"noscript",
	"svg",
	"iframe",
	"template",
	"link",
	"meta",
}

// ContentHTML returns the HTML fragment that represents the page content.
// With selectors, only matching elements are kept (in document order, nested
// matches collapsed into their outermost match); narrowed reports whether any
// selector matched. Without a match the whole body is returned. Noise
// elements are always stripped.
func (d *Document) ContentHTML(selectors []string) (fragment string, narrowed bool) {
	clone := d.Clone()
	clone.Find(strings.Join(noiseSelectors, ", ")).Remove()

	if len(selectors) > 0 {
		matched := make(map[*html.Node]bool)
		for _, selector := range selectors {
			selector = strings.TrimSpace(selector)
			if selector == "" {
				continue
			}
			for _, node := range clone.Find(selector).Nodes {
				matched[node] = true
			}
		}

		if len(matched) > 0 {
			var b strings.Builder
			collectOutermost(clone.Nodes[0], matched, &b)
			return b.String(), true
		}
	}

	body := clone.Find("body").First()
	if body.Length() == 0 {
		body = clone.Selection
	}
	var b strings.Builder
	for _, node := range body.Nodes {
		_ = html.Render(&b, node)
	}
	return b.String(), false
}

// ToMarkdown converts an HTML fragment to Markdown, falling back to plain
// text when the converter rejects the input.
func ToMarkdown(fragment string) (string, error) {
	markdown, err := htmltomarkdown.ConvertString(fragment)
	if err == nil {
		return strings.TrimSpace(markdown), nil
	}

	text, textErr := FragmentText(fragment)
	if textErr != nil {
		return "", errorwrapper.WrapError(err, "converting HTML to markdown")
	}
	return text, nil
}

// FragmentText returns the collapsed text content of an HTML fragment.
func FragmentText(fragment string) (string, error) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	return CollapseWhitespace(dom.Text()), nil
}

func collectOutermost(n *html.Node, matched map[*html.Node]bool, b *strings.Builder) {
	if matched[n] {
		_ = html.Render(b, n)
		b.WriteString("\n")
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectOutermost(child, matched, b)
	}
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(cloneNode(child))
	}
	return c
}
