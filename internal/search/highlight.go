package search

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

const (
	highlightOpen  = `<span class="search-highlight">`
	highlightClose = `</span>`
	highlightClass = "search-highlight"
)

// highlighter marks the words of a text that match a query word literally
// or by stem.
type highlighter struct {
	stemmer Stemmer
	literal map[string]bool
	stems   map[string]bool
}

func newHighlighter(words []string, stemmer Stemmer) *highlighter {
	h := &highlighter{
		stemmer: stemmer,
		literal: make(map[string]bool, len(words)),
		stems:   make(map[string]bool, len(words)),
	}
	for _, w := range words {
		h.literal[w] = true
		h.stems[stemmer.Stem(w)] = true
	}
	return h
}

func (h *highlighter) matches(word string) bool {
	return h.literal[word] || h.stems[h.stemmer.Stem(word)]
}

// highlight escapes text for HTML and wraps every matching word in the
// highlight span.
func (h *highlighter) highlight(text string) string {
	var b strings.Builder
	last := 0
	for _, tok := range tokenize(text) {
		if !h.matches(tok.Text) {
			continue
		}
		b.WriteString(html.EscapeString(text[last:tok.Start]))
		b.WriteString(highlightOpen)
		b.WriteString(html.EscapeString(text[tok.Start:tok.End]))
		b.WriteString(highlightClose)
		last = tok.End
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}

// Highlight is the highlighted rendering of text for query under the
// given language's stemmer.
func Highlight(text, query, lang string) string {
	return newHighlighter(parseQuery(query).words(), GetStemmer(lang)).highlight(text)
}

type fragmentWord struct {
	html        string
	highlighted bool
}

// ResultFragment cuts a snippet around the first highlighted word of
// highlighted: up to n words before it and n after. It returns "" when
// nothing is highlighted.
func ResultFragment(highlighted string, n int) string {
	words := fragmentWords(highlighted)
	first := -1
	for i, w := range words {
		if w.highlighted {
			first = i
			break
		}
	}
	if first < 0 {
		return ""
	}

	from, to := first-n, first+n+1
	if from < 0 {
		from = 0
	}
	if to > len(words) {
		to = len(words)
	}
	parts := make([]string, 0, to-from)
	for _, w := range words[from:to] {
		parts = append(parts, w.html)
	}
	return strings.Join(parts, " ")
}

// fragmentWords re-tokenizes highlighted markup into whitespace separated
// words, keeping the highlight spans on the words they cover.
func fragmentWords(highlighted string) []*fragmentWord {
	var words []*fragmentWord
	open := false
	appendText := func(s string, marked bool) {
		for s != "" {
			i := strings.IndexFunc(s, unicode.IsSpace)
			if i == 0 {
				open = false
				s = strings.TrimLeftFunc(s, unicode.IsSpace)
				continue
			}
			chunk := s
			if i > 0 {
				chunk, s = s[:i], s[i:]
			} else {
				s = ""
			}
			if !open {
				words = append(words, &fragmentWord{})
				open = true
			}
			w := words[len(words)-1]
			if marked {
				w.html += highlightOpen + html.EscapeString(chunk) + highlightClose
				w.highlighted = true
			} else {
				w.html += html.EscapeString(chunk)
			}
		}
	}

	z := html.NewTokenizer(strings.NewReader(highlighted))
	depth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return words
		case html.StartTagToken:
			if isHighlightSpan(z) || depth > 0 {
				depth++
			}
		case html.EndTagToken:
			if depth > 0 {
				depth--
			}
		case html.TextToken:
			appendText(string(z.Text()), depth > 0)
		}
	}
}

func isHighlightSpan(z *html.Tokenizer) bool {
	name, hasAttr := z.TagName()
	if string(name) != "span" {
		return false
	}
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) == "class" {
			for _, c := range strings.Fields(string(val)) {
				if c == highlightClass {
					return true
				}
			}
		}
	}
	return false
}
