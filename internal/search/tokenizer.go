package search

import (
	"regexp"
	"strings"
)

var wordMatcher = regexp.MustCompile(`[\p{L}\p{N}]+`)

// token is one word of a text, lower-cased, with its byte span in the
// original string.
type token struct {
	Text  string
	Start int
	End   int
}

// tokenize splits text into words. Unlike a web crawler tokenizer nothing
// is dropped: stop words and short words stay so phrases keep their
// positions.
func tokenize(text string) []token {
	spans := wordMatcher.FindAllStringIndex(text, -1)
	tokens := make([]token, 0, len(spans))
	for _, span := range spans {
		tokens = append(tokens, token{
			Text:  strings.ToLower(text[span[0]:span[1]]),
			Start: span[0],
			End:   span[1],
		})
	}
	return tokens
}

// stemPrefix marks stemmed terms, so "Zdog" and "dog" can live in the same
// term table.
const stemPrefix = "Z"

func stemTerm(s Stemmer, word string) string {
	return stemPrefix + s.Stem(word)
}

// termPositions produces the raw and stemmed terms of text with their
// word positions, and the total word count.
func termPositions(text string, s Stemmer) (map[string][]int, int) {
	tokens := tokenize(text)
	terms := make(map[string][]int, len(tokens))
	for i, tok := range tokens {
		terms[tok.Text] = append(terms[tok.Text], i)
		z := stemTerm(s, tok.Text)
		terms[z] = append(terms[z], i)
	}
	return terms, len(tokens)
}
