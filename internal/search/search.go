package search

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/log"
)

// BM25 parameters, the Xapian defaults.
const (
	bm25K1 = 1.0
	bm25B  = 0.5
)

type SortOrder int

const (
	SortRelevance SortOrder = iota
	// SortOrdinal orders results by chapter id, i.e. reading order within
	// a book.
	SortOrdinal
)

func ParseSortOrder(s string) SortOrder {
	if s == "ordinal" {
		return SortOrdinal
	}
	return SortRelevance
}

// Query selects a scope and a window of results. Start and End are
// 1-based and inclusive.
type Query struct {
	Term     string
	Username string
	BookID   *int
	Start    int
	End      int
	Sort     SortOrder
	Language string
}

type Result struct {
	BookID          int     `json:"book_id"`
	BookTitle       string  `json:"book_title"`
	ChapterID       int     `json:"chapter_id"`
	ChapterFilename string  `json:"chapter_filename"`
	ChapterTitle    string  `json:"chapter_title"`
	Namespace       string  `json:"namespace"`
	AuthorName      string  `json:"author_name"`
	Language        string  `json:"language"`
	Highlighted     string  `json:"highlighted"`
	Fragment        string  `json:"fragment"`
	Rank            int     `json:"rank"`
	Percent         int     `json:"percent"`
	Score           float64 `json:"score"`
}

type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ResultPage is one window of results. EstimatedTotal is what the backend
// reports as the size of the match set; this backend counts exactly, but
// callers should treat it as an estimate.
type ResultPage struct {
	Query          string   `json:"query"`
	Start          int      `json:"start"`
	End            int      `json:"end"`
	Results        []Result `json:"results"`
	EstimatedTotal int      `json:"estimated_total"`
	ShowPrevious   bool     `json:"show_previous"`
	ShowNext       bool     `json:"show_next"`
	Previous       Window   `json:"previous"`
	Next           Window   `json:"next"`
}

type Searcher struct {
	manager       *Manager
	pageSize      int
	fragmentWords int
}

func NewSearcher(manager *Manager, pageSize, fragmentWords int) *Searcher {
	if pageSize <= 0 {
		pageSize = 10
	}
	if fragmentWords <= 0 {
		fragmentWords = 10
	}
	return &Searcher{manager: manager, pageSize: pageSize, fragmentWords: fragmentWords}
}

func (s *Searcher) PageSize() int {
	return s.pageSize
}

// Search runs q against the user's database, or the book's when q.BookID
// is set. A scope without a database is created empty and yields no
// results.
func (s *Searcher) Search(ctx context.Context, q Query) (*ResultPage, error) {
	start, end := s.window(q.Start, q.End)
	parsed := parseQuery(q.Term)
	page := &ResultPage{
		Query:        parsed.String(),
		Start:        start,
		End:          end,
		Results:      []Result{},
		ShowPrevious: start != 1,
	}
	page.Previous, page.Next = s.slide(start, end)

	db, err := s.manager.OpenReadOnly(q.Username, q.BookID)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	stemmer := GetStemmer(q.Language)
	matches, err := s.match(ctx, db, parsed, stemmer)
	if err != nil {
		return nil, errors.Wrap(err, "search")
	}
	page.EstimatedTotal = len(matches)
	page.ShowNext = end < page.EstimatedTotal

	sortMatches(matches, q.Sort)
	offset, limit := start-1, end-start+1
	if offset >= len(matches) {
		return page, nil
	}
	if offset+limit > len(matches) {
		limit = len(matches) - offset
	}
	window := matches[offset : offset+limit]

	ids := make([]int, len(window))
	for i, m := range window {
		ids[i] = m.docID
	}
	docs, err := db.documents(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load documents")
	}

	top := topScore(matches)
	h := newHighlighter(parsed.words(), stemmer)
	for i, m := range window {
		doc, ok := docs[m.docID]
		if !ok {
			log.Warn("Matched document vanished", zap.Int("chapter_id", m.docID), zap.String("db", db.Dir))
			continue
		}
		highlighted := h.highlight(doc.Data)
		page.Results = append(page.Results, Result{
			BookID:          doc.BookID,
			BookTitle:       doc.BookTitle,
			ChapterID:       doc.ChapterID,
			ChapterFilename: doc.ChapterFilename,
			ChapterTitle:    doc.ChapterTitle,
			Namespace:       doc.Namespace,
			AuthorName:      doc.AuthorName,
			Language:        doc.Language,
			Highlighted:     highlighted,
			Fragment:        ResultFragment(highlighted, s.fragmentWords),
			Rank:            start + i,
			Percent:         percent(m.score, top),
			Score:           m.score,
		})
	}
	return page, nil
}

// window normalises the requested bounds: start defaults to 1 and end to
// one page after start.
func (s *Searcher) window(start, end int) (int, int) {
	if start < 1 {
		start = 1
	}
	if end < start {
		end = start + s.pageSize - 1
	}
	return start, end
}

// slide moves the window one page back and forward.
func (s *Searcher) slide(start, end int) (Window, Window) {
	prevStart := start - s.pageSize
	if prevStart < 1 {
		prevStart = 1
	}
	prev := Window{Start: prevStart, End: prevStart + s.pageSize - 1}
	next := Window{Start: start + s.pageSize, End: end + s.pageSize}
	return prev, next
}

type match struct {
	docID int
	score float64
}

// match evaluates the query: the intersection of the positive clauses
// minus the union of the negative ones, scored with BM25 over the positive
// terms.
func (s *Searcher) match(ctx context.Context, db *Database, q parsedQuery, stemmer Stemmer) ([]match, error) {
	positive := q.positive()
	if len(positive) == 0 {
		return nil, nil
	}

	stats, err := db.stats(ctx)
	if err != nil || stats.documents == 0 {
		return nil, err
	}

	var candidates map[int]float64
	var weights []termWeight
	for _, c := range positive {
		docs, cw, err := evalClause(ctx, db, c, stemmer)
		if err != nil {
			return nil, err
		}
		weights = append(weights, cw...)
		if candidates == nil {
			candidates = make(map[int]float64, len(docs))
			for id := range docs {
				candidates[id] = 0
			}
			continue
		}
		for id := range candidates {
			if !docs[id] {
				delete(candidates, id)
			}
		}
	}

	for _, c := range q.negative() {
		docs, _, err := evalClause(ctx, db, c, stemmer)
		if err != nil {
			return nil, err
		}
		for id := range docs {
			delete(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]int, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	lengths, err := db.docLengths(ctx, ids)
	if err != nil {
		return nil, err
	}

	matches := make([]match, 0, len(ids))
	for _, id := range ids {
		var score float64
		for _, w := range weights {
			if p, ok := w.postings[id]; ok {
				score += bm25(p.frequency, w.df, lengths[id], stats)
			}
		}
		matches = append(matches, match{docID: id, score: score})
	}
	return matches, nil
}

type termWeight struct {
	postings map[int]posting
	df       int
}

// evalClause returns the documents matching c and the term postings that
// score it.
func evalClause(ctx context.Context, db *Database, c clause, stemmer Stemmer) (map[int]bool, []termWeight, error) {
	if !c.phrase() {
		p, err := db.postings(ctx, stemTerm(stemmer, c.words[0]))
		if err != nil {
			return nil, nil, err
		}
		docs := make(map[int]bool, len(p))
		for id := range p {
			docs[id] = true
		}
		return docs, []termWeight{{postings: p, df: len(p)}}, nil
	}

	lists := make([]map[int]posting, len(c.words))
	weights := make([]termWeight, len(c.words))
	for i, w := range c.words {
		p, err := db.postings(ctx, w)
		if err != nil {
			return nil, nil, err
		}
		lists[i] = p
		weights[i] = termWeight{postings: p, df: len(p)}
	}

	docs := make(map[int]bool)
	for id, first := range lists[0] {
		if phraseAt(id, first.positions, lists[1:]) {
			docs[id] = true
		}
	}
	return docs, weights, nil
}

// phraseAt reports whether some start position is followed by each later
// word at the next position.
func phraseAt(id int, starts []int, rest []map[int]posting) bool {
	sets := make([]map[int]bool, len(rest))
	for i, list := range rest {
		p, ok := list[id]
		if !ok {
			return false
		}
		sets[i] = make(map[int]bool, len(p.positions))
		for _, pos := range p.positions {
			sets[i][pos] = true
		}
	}
	for _, start := range starts {
		found := true
		for i := range sets {
			if !sets[i][start+i+1] {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}

func bm25(tf, df, length int, stats collectionStats) float64 {
	if tf == 0 || df == 0 {
		return 0
	}
	n := float64(stats.documents)
	idf := math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
	norm := 1.0
	if stats.avgLength > 0 {
		norm = 1 - bm25B + bm25B*float64(length)/stats.avgLength
	}
	return idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
}

func sortMatches(matches []match, order SortOrder) {
	sort.Slice(matches, func(i, j int) bool {
		if order == SortRelevance && matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].docID < matches[j].docID
	})
}

func topScore(matches []match) float64 {
	var top float64
	for _, m := range matches {
		if m.score > top {
			top = m.score
		}
	}
	return top
}

func percent(score, top float64) int {
	if top <= 0 {
		return 100
	}
	return int(math.Round(score / top * 100))
}
