package epub

import (
	"strings"
	"sync"
	"testing"

	"github.com/Xunop/bookworm/internal/util/parsers/epub/epubtest"
)

func TestTOC(t *testing.T) {
	withTOC := func(data string, fn func(*TOC)) {
		toc, err := ParseTOC([]byte(data))
		if err != nil {
			t.Fatalf("parse toc: %v", err)
		}
		fn(toc)
	}

	t.Run("TestChildren", func(t *testing.T) {
		withTOC(epubtest.NCX, func(toc *TOC) {
			if toc.Title != "Sample Book" {
				t.Errorf("unexpected doc title %q", toc.Title)
			}
			copyright, ok := toc.FindByID("copyright")
			if !ok {
				t.Fatal("copyright point missing")
			}
			if n := len(toc.FindChildren(copyright)); n != 0 {
				t.Errorf("expected Copyright to have no children, got %d", n)
			}
			preface, _ := toc.FindByID("preface")
			children := toc.FindChildren(preface)
			if len(children) != 8 {
				t.Fatalf("expected Preface to have 8 children, got %d", len(children))
			}
			for i, c := range children {
				if c.Depth != 2 || c.Parent != preface.Index {
					t.Errorf("child %d: depth %d parent %d", i, c.Depth, c.Parent)
				}
			}
			if len(toc.FindChildrenByID("preface")) != 8 {
				t.Errorf("FindChildrenByID disagrees with FindChildren")
			}
			if toc.FindChildrenByID("nope") != nil {
				t.Errorf("expected no children for unknown id")
			}
		})
	})

	t.Run("TestFindPointsMonotonic", func(t *testing.T) {
		withTOC(epubtest.NCX, func(toc *TOC) {
			one, two, three := len(toc.FindPoints(1)), len(toc.FindPoints(2)), len(toc.FindPoints(3))
			if one != 4 || two != 12 || three != 13 {
				t.Errorf("unexpected counts %d %d %d", one, two, three)
			}
			if !(one <= two && two <= three) {
				t.Errorf("FindPoints is not monotonic")
			}
			if len(toc.Roots()) != one {
				t.Errorf("roots differ from depth 1 points")
			}
		})
	})

	t.Run("TestPreOrder", func(t *testing.T) {
		withTOC(epubtest.NCX, func(toc *TOC) {
			for _, p := range toc.Points {
				if p.IsRoot() {
					if p.Depth != 1 {
						t.Errorf("root %s has depth %d", p.ID, p.Depth)
					}
					continue
				}
				parent, ok := toc.ParentOf(p)
				if !ok || parent.Depth != p.Depth-1 || parent.Index >= p.Index {
					t.Errorf("bad parent for %s", p.ID)
				}
			}
			// Every descendant sits after its ancestor and before the
			// ancestor's next sibling.
			preface, _ := toc.FindByID("preface")
			desc := toc.Descendants(preface)
			if len(desc) != 9 {
				t.Fatalf("expected 9 descendants, got %d", len(desc))
			}
			next := toc.Points[preface.Index+len(desc)+1]
			if next.ID != "chapter1" {
				t.Errorf("expected next sibling chapter1, got %s", next.ID)
			}
			s3, _ := toc.FindByID("s3")
			if toc.Points[s3.Index+1].ID != "n1" || toc.Points[s3.Index+2].ID != "s4" {
				t.Errorf("nested point out of order")
			}
		})
	})

	t.Run("TestPlayOrder", func(t *testing.T) {
		withTOC(epubtest.NCX, func(toc *TOC) {
			for i, p := range toc.Points {
				if p.PlayOrder != i+1 {
					t.Errorf("point %s: play order %d, want %d", p.ID, p.PlayOrder, i+1)
				}
			}
		})
		broken := strings.Replace(epubtest.NCX, `playOrder="2"`, `playOrder="9"`, 1)
		broken = strings.Replace(broken, `id="copyright" playOrder="1"`, `id="copyright"`, 1)
		withTOC(broken, func(toc *TOC) {
			last := 0
			for _, p := range toc.Points {
				if p.PlayOrder <= last {
					t.Fatalf("play order not strictly increasing at %s", p.ID)
				}
				last = p.PlayOrder
			}
		})
	})

	t.Run("TestHrefs", func(t *testing.T) {
		withTOC(epubtest.NCX, func(toc *TOC) {
			ch, _ := toc.FindByID("chapter1")
			if ch.Label != "Chapter One" {
				t.Errorf("label whitespace not collapsed: %q", ch.Label)
			}
			s2, _ := toc.FindByID("s2")
			if s2.Path != "text/preface.xhtml" || s2.Fragment != "s2" {
				t.Errorf("unexpected target %q #%q", s2.Path, s2.Fragment)
			}
			p, ok := toc.FindByHref("text/preface.xhtml#s5")
			if !ok || p.ID != "preface" {
				t.Errorf("FindByHref should return the first point for the file, got %s", p.ID)
			}
			toc.resolve("OEBPS")
			if _, ok := toc.FindByPath("OEBPS/text/chapter1.xhtml"); !ok {
				t.Errorf("resolved path not found")
			}
		})
	})

	t.Run("TestEmpty", func(t *testing.T) {
		withTOC(`<ncx><docTitle><text>Nothing</text></docTitle><navMap/></ncx>`, func(toc *TOC) {
			if toc.Len() != 0 || len(toc.FindPoints(3)) != 0 || len(toc.Roots()) != 0 {
				t.Errorf("expected an empty toc")
			}
		})
	})

	t.Run("TestConcurrentParse", func(t *testing.T) {
		docs := []string{epubtest.NCX, strings.Replace(epubtest.NCX, "Sample Book", "Other Book", 1)}
		var wg sync.WaitGroup
		titles := make([]string, 20)
		for i := range titles {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				toc, err := ParseTOC([]byte(docs[i%2]))
				if err == nil {
					titles[i] = toc.Title
				}
			}(i)
		}
		wg.Wait()
		for i, title := range titles {
			want := "Sample Book"
			if i%2 == 1 {
				want = "Other Book"
			}
			if title != want {
				t.Errorf("parse %d: title %q, want %q", i, title, want)
			}
		}
	})
}
