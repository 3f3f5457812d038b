package scraper

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/k3a/html2text"
	"golang.org/x/net/html"
)

// Selectors name the CSS selectors that locate scheme fields. Title, Link,
// Ministry and Description are evaluated inside each card.
type Selectors struct {
	Card        string
	Title       string
	Link        string
	Ministry    string
	Description string
	Pagination  string
}

// fieldSelector is a compiled selector group. Its alternatives are tried in
// order, so "h2 + h2, p.note" prefers the first form and falls back to the second.
type fieldSelector cascadia.SelectorGroup

func compileSelector(src string) (fieldSelector, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty selector")
	}
	group, err := cascadia.ParseGroup(src)
	if err != nil {
		return nil, err
	}
	return fieldSelector(group), nil
}

// all returns every descendant of root matched by any alternative, in document order.
func (s fieldSelector) all(root *html.Node) []*html.Node {
	if len(s) == 0 || root == nil {
		return nil
	}
	return cascadia.QueryAll(root, cascadia.SelectorGroup(s))
}

// first returns the first match of the earliest alternative that matches
// inside root. A nil selector or root matches nothing.
func (s fieldSelector) first(root *html.Node) *html.Node {
	if root == nil {
		return nil
	}
	for _, alt := range s {
		if n := cascadia.Query(root, alt); n != nil {
			return n
		}
	}
	return nil
}

// Parser extracts schemes from a rendered listing page.
type Parser struct {
	base        *url.URL
	card        fieldSelector
	title       fieldSelector
	link        fieldSelector
	ministry    fieldSelector
	description fieldSelector
}

// NewParser compiles sel. Relative links are resolved against baseURL.
func NewParser(sel Selectors, baseURL string) (*Parser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	p := &Parser{base: base}
	for _, c := range []struct {
		dst  *fieldSelector
		name string
		src  string
	}{
		{&p.card, "card", sel.Card},
		{&p.title, "title", sel.Title},
		{&p.link, "link", sel.Link},
		{&p.ministry, "ministry", sel.Ministry},
		{&p.description, "description", sel.Description},
	} {
		if strings.TrimSpace(c.src) == "" {
			if c.name == "card" {
				return nil, fmt.Errorf("card selector is required")
			}
			continue
		}
		compiled, err := compileSelector(c.src)
		if err != nil {
			return nil, fmt.Errorf("%s selector: %w", c.name, err)
		}
		*c.dst = compiled
	}
	return p, nil
}

// Parse reads an HTML document and returns one Scheme per card that has a title.
func (p *Parser) Parse(r io.Reader) ([]Scheme, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	schemes := []Scheme{}
	for _, card := range p.card.all(doc) {
		s := Scheme{
			Title:       nodeText(p.title.first(card)),
			Link:        p.resolve(attr(p.link.first(card), "href")),
			Ministry:    nodeText(p.ministry.first(card)),
			Description: richText(p.description.first(card)),
		}
		if s.Title == "" {
			continue
		}
		schemes = append(schemes, s)
	}
	return schemes, nil
}

func (p *Parser) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return p.base.ResolveReference(ref).String()
}

// nodeText returns the text content of n with whitespace collapsed.
func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// richText renders the inner HTML of n as plain text on a single line.
func richText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return nodeText(n)
		}
	}
	return strings.Join(strings.Fields(html2text.HTML2Text(b.String())), " ")
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}
