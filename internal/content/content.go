// Package content reduces chapter markup to the plain text that gets indexed.
package content // import "github.com/Xunop/bookworm/internal/content"

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/Xunop/bookworm/internal/log"
)

const XHTMLNamespace = "http://www.w3.org/1999/xhtml"

var bodyTags = []string{"p", "h1", "h2", "h3", "h4", "h5", "h6"}

// Namespace describes how a document spells its XHTML elements.
type Namespace struct {
	// XHTML is true when a <p> element was found in the XHTML namespace.
	XHTML bool
	// Prefix is set when the namespace is bound to a prefix, as in
	// <x:p xmlns:x="http://www.w3.org/1999/xhtml">.
	Prefix string
}

func (ns Namespace) tag(local string) string {
	if ns.Prefix == "" {
		return local
	}
	return ns.Prefix + ":" + local
}

// Parse builds a DOM from arbitrary markup. The HTML5 parser recovers from
// unclosed and misnested tags; an error only comes from the reader.
func Parse(markup string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(markup))
}

// UsesXHTMLNamespace reports whether doc holds a <p> in the XHTML
// namespace, either prefixed or through a default xmlns declaration.
func UsesXHTMLNamespace(doc *goquery.Document) Namespace {
	var prefixes []string
	defaultNS := false
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range s.Nodes[0].Attr {
			if strings.TrimSpace(attr.Val) != XHTMLNamespace {
				continue
			}
			key := strings.ToLower(attr.Key)
			switch {
			case key == "xmlns":
				defaultNS = true
			case strings.HasPrefix(key, "xmlns:"):
				prefixes = append(prefixes, strings.TrimPrefix(key, "xmlns:"))
			}
		}
	})

	for _, prefix := range prefixes {
		if len(findTags(doc, map[string]bool{prefix + ":p": true})) > 0 {
			return Namespace{XHTML: true, Prefix: prefix}
		}
	}
	if defaultNS && doc.Find("p").Length() > 0 {
		return Namespace{XHTML: true}
	}
	return Namespace{}
}

// ExtractIndexableText returns the text of the paragraphs and headings of
// markup, one element per line. Malformed markup never fails; empty input
// gives "".
func ExtractIndexableText(markup string) string {
	text, _ := Analyze(markup)
	return text
}

// Analyze is ExtractIndexableText that also reports the namespace the
// document was read with.
func Analyze(markup string) (string, Namespace) {
	if strings.TrimSpace(markup) == "" {
		return "", Namespace{}
	}
	doc, err := Parse(markup)
	if err != nil {
		log.Warn("Unable to parse chapter markup", zap.Error(err))
		return "", Namespace{}
	}

	ns := UsesXHTMLNamespace(doc)
	wanted := make(map[string]bool, len(bodyTags))
	for _, t := range bodyTags {
		wanted[ns.tag(t)] = true
	}

	var lines []string
	for _, n := range findTags(doc, wanted) {
		if text := nodeText(n); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), ns
}

// URI is the namespace URI for storage alongside indexed text, "" for
// plain HTML.
func (ns Namespace) URI() string {
	if ns.XHTML {
		return XHTMLNamespace
	}
	return ""
}

// ExtractTitle returns the document <title>, falling back to the first
// <h1>.
func ExtractTitle(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	doc, err := Parse(markup)
	if err != nil {
		return ""
	}
	ns := UsesXHTMLNamespace(doc)
	for _, tag := range []string{"title", "h1"} {
		nodes := findTags(doc, map[string]bool{tag: true, ns.tag(tag): true})
		for _, n := range nodes {
			if text := nodeText(n); text != "" {
				return text
			}
		}
	}
	return ""
}

// findTags returns the elements named in wanted, in document order.
// Prefixed names cannot go through a CSS selector, so the match is on the
// raw element name.
func findTags(doc *goquery.Document, wanted map[string]bool) []*html.Node {
	var nodes []*html.Node
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		n := s.Nodes[0]
		if wanted[strings.ToLower(n.Data)] {
			nodes = append(nodes, n)
		}
	})
	return nodes
}

// nodeText joins the descendant text nodes of n with single spaces and
// collapses runs of whitespace.
func nodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
