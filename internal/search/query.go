package search

import (
	"strings"
	"unicode"
)

type clauseOp int

const (
	opRequire clauseOp = iota
	opExclude
)

// clause is one element of a parsed query. A single word matches by stem;
// several words form a phrase matched on unstemmed terms at consecutive
// positions.
type clause struct {
	op    clauseOp
	words []string
}

func (c clause) phrase() bool {
	return len(c.words) > 1
}

type parsedQuery struct {
	clauses []clause
}

// positive returns the clauses a document must match.
func (q parsedQuery) positive() []clause {
	var out []clause
	for _, c := range q.clauses {
		if c.op == opRequire {
			out = append(out, c)
		}
	}
	return out
}

func (q parsedQuery) negative() []clause {
	var out []clause
	for _, c := range q.clauses {
		if c.op == opExclude {
			out = append(out, c)
		}
	}
	return out
}

// words returns every word of the positive clauses, for highlighting.
func (q parsedQuery) words() []string {
	var out []string
	for _, c := range q.positive() {
		out = append(out, c.words...)
	}
	return out
}

// parseQuery reads free text with +word, -word and "quoted phrase"
// operators. Terms are combined with AND, so a bare word is required just
// like +word. A bare word that tokenizes into several words (l'amour) is
// treated as a phrase.
func parseQuery(raw string) parsedQuery {
	var q parsedQuery
	rs := []rune(raw)
	for i := 0; i < len(rs); {
		if unicode.IsSpace(rs[i]) {
			i++
			continue
		}

		op := opRequire
		if rs[i] == '+' || rs[i] == '-' {
			if rs[i] == '-' {
				op = opExclude
			}
			i++
			if i >= len(rs) || unicode.IsSpace(rs[i]) {
				continue
			}
		}

		var text string
		if rs[i] == '"' {
			end := i + 1
			for end < len(rs) && rs[end] != '"' {
				end++
			}
			text = string(rs[i+1 : end])
			i = end + 1
		} else {
			end := i
			for end < len(rs) && !unicode.IsSpace(rs[end]) {
				end++
			}
			text = string(rs[i:end])
			i = end
		}

		var words []string
		for _, tok := range tokenize(text) {
			words = append(words, tok.Text)
		}
		if len(words) > 0 {
			q.clauses = append(q.clauses, clause{op: op, words: words})
		}
	}
	return q
}

// String renders the query back in operator syntax.
func (q parsedQuery) String() string {
	parts := make([]string, 0, len(q.clauses))
	for _, c := range q.clauses {
		prefix := "+"
		if c.op == opExclude {
			prefix = "-"
		}
		if c.phrase() {
			parts = append(parts, prefix+`"`+strings.Join(c.words, " ")+`"`)
		} else {
			parts = append(parts, prefix+c.words[0])
		}
	}
	return strings.Join(parts, " ")
}
