package search

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/Xunop/bookworm/internal/model"
)

// memStore is an in-memory ArchiveStore.
type memStore struct {
	records []*model.ContentRecord
	indexed map[int]bool
	scopes  map[int][]string
}

func (s *memStore) ListContent(find *model.FindContent) ([]*model.ContentRecord, error) {
	var out []*model.ContentRecord
	for _, r := range s.records {
		if find.ArchiveID != nil && r.ArchiveID != *find.ArchiveID {
			continue
		}
		if find.Kind != nil && r.Kind != *find.Kind {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *memStore) MarkIndexed(archiveID int, chapterIDs []int, indexed bool) error {
	s.indexed[archiveID] = indexed
	for _, r := range s.records {
		if r.ArchiveID == archiveID && (chapterIDs == nil || slices.Contains(chapterIDs, r.ID)) {
			r.Indexed = indexed
		}
	}
	return nil
}

func (s *memStore) AddIndexScopes(archiveID int, usernames []string) error {
	for _, u := range usernames {
		if !slices.Contains(s.scopes[archiveID], u) {
			s.scopes[archiveID] = append(s.scopes[archiveID], u)
		}
	}
	return nil
}

func (s *memStore) ListIndexScopes(archiveID int) ([]string, error) {
	return slices.Clone(s.scopes[archiveID]), nil
}

func (s *memStore) RemoveIndexScopes(archiveID int, usernames []string) error {
	s.scopes[archiveID] = slices.DeleteFunc(s.scopes[archiveID], func(u string) bool {
		return slices.Contains(usernames, u)
	})
	return nil
}

func chapter(archiveID, id int, body string) *model.ContentRecord {
	return &model.ContentRecord{
		ID:        id,
		ArchiveID: archiveID,
		Filename:  fmt.Sprintf("OEBPS/ch%d.xhtml", id),
		Kind:      model.ContentChapter,
		MediaType: "application/xhtml+xml",
		Text:      `<html xmlns="http://www.w3.org/1999/xhtml"><body>` + body + `</body></html>`,
		Order:     id,
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	withIndex := func(fn func(*Indexer, *Searcher, *memStore)) {
		m := NewManager(t.TempDir())
		st := &memStore{indexed: make(map[int]bool), scopes: make(map[int][]string)}
		fn(NewIndexer(m, st), NewSearcher(m, 10, 3), st)
	}
	archive := func(id int, owner, lang string) *model.Archive {
		return &model.Archive{ID: id, Name: "book.epub", Owner: owner, Title: "Dogs and Foxes", Authors: []string{"First Author", "Second Author"}, Language: lang}
	}

	t.Run("TestIndexAndQuery", func(t *testing.T) {
		withIndex(func(ix *Indexer, s *Searcher, st *memStore) {
			a := archive(7, "alice", "en")
			st.records = []*model.ContentRecord{
				chapter(7, 1, `<h1>Chapter One</h1><p>The quick brown fox jumps over the lazy dog.</p>`),
				chapter(7, 2, `<p>Dogs are loyal companions. A dog barks.</p>`),
				chapter(7, 3, `<div>no body copy here</div>`),
				chapter(7, 4, `<p>Cats &amp; mice.</p>`),
			}
			if err := ix.IndexEpub(ctx, nil, a, nil); err != nil {
				t.Fatal(err)
			}
			if !a.Indexed || !st.indexed[7] {
				t.Errorf("archive not marked indexed")
			}
			if !st.records[0].Indexed || st.records[2].Indexed {
				t.Errorf("chapter flags do not follow what was written")
			}
			if scopes := st.scopes[7]; len(scopes) != 1 || scopes[0] != "alice" {
				t.Errorf("owner scope not recorded: %v", scopes)
			}

			page, err := s.Search(ctx, Query{Term: "dogs", Username: "alice"})
			if err != nil {
				t.Fatal(err)
			}
			if page.EstimatedTotal != 2 || len(page.Results) != 2 {
				t.Fatalf("expected 2 stemmed matches, got %d", page.EstimatedTotal)
			}
			first := page.Results[0]
			if first.ChapterID != 2 {
				t.Errorf("expected the chapter with more occurrences first, got %d", first.ChapterID)
			}
			if first.BookID != 7 || first.BookTitle != "Dogs and Foxes" || first.AuthorName != "First Author" || first.Language != "en" {
				t.Errorf("unexpected fields: %+v", first)
			}
			if first.Namespace != "http://www.w3.org/1999/xhtml" || first.ChapterFilename != "OEBPS/ch2.xhtml" {
				t.Errorf("unexpected chapter fields: %+v", first)
			}
			if first.Rank != 1 || first.Percent != 100 {
				t.Errorf("unexpected rank %d / percent %d", first.Rank, first.Percent)
			}
			if !strings.Contains(first.Highlighted, `<span class="search-highlight">Dogs</span>`) ||
				!strings.Contains(first.Highlighted, `<span class="search-highlight">dog</span>`) {
				t.Errorf("missing highlights: %s", first.Highlighted)
			}
			if first.Fragment == "" {
				t.Errorf("missing fragment")
			}
			if page.Results[1].ChapterTitle != "Chapter One" {
				t.Errorf("chapter title not derived from markup: %q", page.Results[1].ChapterTitle)
			}

			book := 7
			scoped, err := s.Search(ctx, Query{Term: "dog", Username: "alice", BookID: &book})
			if err != nil {
				t.Fatal(err)
			}
			if scoped.EstimatedTotal != 2 {
				t.Errorf("book scope disagrees with user scope: %d", scoped.EstimatedTotal)
			}

			for term, want := range map[string]int{
				`dog fox`:               1,
				`+dog -fox`:             1,
				`"lazy dog"`:            1,
				`"dog lazy"`:            0,
				`-fox`:                  0,
				`cats`:                  1,
				`"no body copy"`:        0,
				`elephant`:              0,
				`"loyal companions" -x`: 1,
			} {
				page, err := s.Search(ctx, Query{Term: term, Username: "alice"})
				if err != nil {
					t.Fatal(err)
				}
				if page.EstimatedTotal != want {
					t.Errorf("%s: expected %d results, got %d", term, want, page.EstimatedTotal)
				}
			}
		})
	})

	t.Run("TestSingleChapter", func(t *testing.T) {
		withIndex(func(ix *Indexer, s *Searcher, st *memStore) {
			a := archive(3, "alice", "en")
			st.records = []*model.ContentRecord{chapter(3, 1, `<p>alpha</p>`), chapter(3, 2, `<p>alpha</p>`)}
			if err := ix.IndexEpub(ctx, []string{"alice", "alice"}, a, st.records[1]); err != nil {
				t.Fatal(err)
			}
			if err := ix.IndexEpub(ctx, []string{"alice"}, a, st.records[1]); err != nil {
				t.Fatal(err)
			}
			page, _ := s.Search(ctx, Query{Term: "alpha", Username: "alice"})
			if page.EstimatedTotal != 1 || page.Results[0].ChapterID != 2 {
				t.Errorf("expected only chapter 2, got %+v", page.Results)
			}
			if st.records[0].Indexed || !st.records[1].Indexed {
				t.Errorf("only the written chapter should be flagged: %v %v", st.records[0].Indexed, st.records[1].Indexed)
			}
		})
	})

	t.Run("TestPagination", func(t *testing.T) {
		withIndex(func(ix *Indexer, s *Searcher, st *memStore) {
			a := archive(5, "alice", "en")
			for i := 1; i <= 25; i++ {
				st.records = append(st.records, chapter(5, i, fmt.Sprintf("<p>apple number %d</p>", i)))
			}
			if err := ix.IndexEpub(ctx, nil, a, nil); err != nil {
				t.Fatal(err)
			}

			page, err := s.Search(ctx, Query{Term: "apple", Username: "alice", Start: 1, End: 10, Sort: SortOrdinal})
			if err != nil {
				t.Fatal(err)
			}
			if len(page.Results) != 10 || page.EstimatedTotal != 25 {
				t.Fatalf("got %d results of %d", len(page.Results), page.EstimatedTotal)
			}
			if page.ShowPrevious || !page.ShowNext {
				t.Errorf("first page: previous %v next %v", page.ShowPrevious, page.ShowNext)
			}
			if page.Next != (Window{Start: 11, End: 20}) {
				t.Errorf("unexpected next window %+v", page.Next)
			}
			for i, r := range page.Results {
				if r.ChapterID != i+1 || r.Rank != i+1 {
					t.Errorf("ordinal sort broken at %d: chapter %d rank %d", i, r.ChapterID, r.Rank)
				}
			}

			last, err := s.Search(ctx, Query{Term: "apple", Username: "alice", Start: 21, End: 30, Sort: SortOrdinal})
			if err != nil {
				t.Fatal(err)
			}
			if len(last.Results) != 5 || last.Results[0].ChapterID != 21 {
				t.Fatalf("unexpected last page %+v", last.Results)
			}
			if !last.ShowPrevious || last.ShowNext {
				t.Errorf("last page: previous %v next %v", last.ShowPrevious, last.ShowNext)
			}
			if last.Previous != (Window{Start: 11, End: 20}) {
				t.Errorf("unexpected previous window %+v", last.Previous)
			}

			beyond, err := s.Search(ctx, Query{Term: "apple", Username: "alice", Start: 41, End: 50})
			if err != nil || len(beyond.Results) != 0 {
				t.Errorf("expected an empty page past the end, got %v %v", beyond, err)
			}
		})
	})

	t.Run("TestDeletedBook", func(t *testing.T) {
		withIndex(func(ix *Indexer, s *Searcher, st *memStore) {
			a := archive(9, "alice", "en")
			st.records = []*model.ContentRecord{chapter(9, 1, `<p>unique zebra text</p>`)}
			if err := ix.IndexEpub(ctx, nil, a, nil); err != nil {
				t.Fatal(err)
			}
			if err := ix.RemoveBook(nil, a, st.records); err != nil {
				t.Fatal(err)
			}
			if a.Indexed || st.indexed[9] {
				t.Errorf("archive still marked indexed")
			}

			book := 9
			for _, q := range []Query{
				{Term: "zebra", Username: "alice", BookID: &book},
				{Term: "zebra", Username: "alice"},
			} {
				page, err := s.Search(ctx, q)
				if err != nil {
					t.Fatalf("search after delete: %v", err)
				}
				if page.EstimatedTotal != 0 || len(page.Results) != 0 {
					t.Errorf("expected no results after delete, got %d", page.EstimatedTotal)
				}
			}
		})
	})

	t.Run("TestDeletedBookExtraUser", func(t *testing.T) {
		withIndex(func(ix *Indexer, s *Searcher, st *memStore) {
			a := archive(9, "alice", "en")
			st.records = []*model.ContentRecord{chapter(9, 1, `<p>unique zebra text</p>`)}
			if err := ix.IndexEpub(ctx, []string{"alice", "bob"}, a, nil); err != nil {
				t.Fatal(err)
			}

			book := 9
			zebra := func(username string) int {
				t.Helper()
				total := 0
				for _, q := range []Query{
					{Term: "zebra", Username: username, BookID: &book},
					{Term: "zebra", Username: username},
				} {
					page, err := s.Search(ctx, q)
					if err != nil {
						t.Fatal(err)
					}
					total += page.EstimatedTotal
				}
				return total
			}

			// Dropping bob alone keeps the owner's index.
			if err := ix.RemoveBook([]string{"bob"}, a, st.records); err != nil {
				t.Fatal(err)
			}
			if zebra("bob") != 0 || zebra("alice") != 2 {
				t.Errorf("unexpected results after dropping bob: bob %d alice %d", zebra("bob"), zebra("alice"))
			}
			if !a.Indexed || !st.indexed[9] {
				t.Errorf("archive unmarked while the owner still holds it")
			}

			if err := ix.IndexEpub(ctx, []string{"bob"}, a, nil); err != nil {
				t.Fatal(err)
			}
			if err := ix.RemoveBook(nil, a, st.records); err != nil {
				t.Fatal(err)
			}
			if zebra("bob") != 0 || zebra("alice") != 0 {
				t.Errorf("book left behind: bob %d alice %d", zebra("bob"), zebra("alice"))
			}
			if a.Indexed || st.indexed[9] || len(st.scopes[9]) != 0 {
				t.Errorf("archive still indexed: scopes %v", st.scopes[9])
			}
		})
	})

	t.Run("TestDefaultLanguage", func(t *testing.T) {
		withIndex(func(ix *Indexer, s *Searcher, st *memStore) {
			ix.DefaultLanguage = "fr"
			a := archive(13, "alice", "")
			st.records = []*model.ContentRecord{chapter(13, 1, `<p>Il faut aimer son prochain.</p>`)}
			if err := ix.IndexEpub(ctx, nil, a, nil); err != nil {
				t.Fatal(err)
			}
			page, err := s.Search(ctx, Query{Term: "aimez", Username: "alice", Language: "fr"})
			if err != nil {
				t.Fatal(err)
			}
			if page.EstimatedTotal != 1 {
				t.Fatalf("archive without a language not stemmed with the default, got %d", page.EstimatedTotal)
			}
			if page.Results[0].Language != "fr" {
				t.Errorf("unexpected result language %q", page.Results[0].Language)
			}
			if a.Language != "" {
				t.Errorf("archive language overwritten with %q", a.Language)
			}
		})
	})

	t.Run("TestMissingScope", func(t *testing.T) {
		withIndex(func(ix *Indexer, s *Searcher, st *memStore) {
			page, err := s.Search(ctx, Query{Term: "anything", Username: "nobody"})
			if err != nil {
				t.Fatal(err)
			}
			if page.EstimatedTotal != 0 {
				t.Errorf("expected an empty scope")
			}
		})
	})

	t.Run("TestLanguageStemming", func(t *testing.T) {
		withIndex(func(ix *Indexer, s *Searcher, st *memStore) {
			body := `<p>Il faut aimer son prochain.</p>`
			fr := archive(11, "alice", "fr")
			en := archive(12, "bob", "en")
			st.records = []*model.ContentRecord{chapter(11, 1, body), chapter(12, 2, body)}
			if err := ix.IndexEpub(ctx, nil, fr, nil); err != nil {
				t.Fatal(err)
			}
			if err := ix.IndexEpub(ctx, nil, en, nil); err != nil {
				t.Fatal(err)
			}

			for _, form := range []string{"aime", "aimes", "aimez"} {
				page, err := s.Search(ctx, Query{Term: form, Username: "alice", Language: "fr"})
				if err != nil {
					t.Fatal(err)
				}
				if page.EstimatedTotal != 1 {
					t.Errorf("french index: %s should match aimer", form)
				}
				if len(page.Results) == 1 && !strings.Contains(page.Results[0].Highlighted, `<span class="search-highlight">aimer</span>`) {
					t.Errorf("stemmed match not highlighted: %s", page.Results[0].Highlighted)
				}

				page, err = s.Search(ctx, Query{Term: form, Username: "bob", Language: "en"})
				if err != nil {
					t.Fatal(err)
				}
				if page.EstimatedTotal != 0 {
					t.Errorf("english index: %s should not match aimer", form)
				}
			}
		})
	})
}

func TestHighlight(t *testing.T) {
	got := Highlight("Cats & dogs <3", "dog", "en")
	want := `Cats &amp; <span class="search-highlight">dogs</span> &lt;3`
	if got != want {
		t.Errorf("Highlight() = %q, want %q", got, want)
	}
	if got := Highlight("no match here", "-here", "en"); strings.Contains(got, "search-highlight") {
		t.Errorf("excluded terms must not be highlighted: %s", got)
	}
}

func TestResultFragment(t *testing.T) {
	h := Highlight("one two three four five six seven", "four", "en")
	if got := ResultFragment(h, 2); got != `two three <span class="search-highlight">four</span> five six` {
		t.Errorf("unexpected fragment %q", got)
	}
	if got := ResultFragment(h, 10); got != h {
		t.Errorf("wide fragment should cover the whole text: %q", got)
	}

	h = Highlight("a lazy dog, sleeping soundly", "dog", "en")
	if got := ResultFragment(h, 1); got != `lazy <span class="search-highlight">dog</span>, sleeping` {
		t.Errorf("punctuation split from its word: %q", got)
	}

	if got := ResultFragment("nothing highlighted &amp; here", 3); got != "" {
		t.Errorf("expected no fragment, got %q", got)
	}
	if got := ResultFragment("", 3); got != "" {
		t.Errorf("expected no fragment, got %q", got)
	}
}
