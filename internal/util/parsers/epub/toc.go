package epub

import (
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type ncx struct {
	Title  string     `xml:"docTitle>text"`
	Points []ncxPoint `xml:"navMap>navPoint"`
}

type ncxPoint struct {
	ID        string     `xml:"id,attr"`
	PlayOrder string     `xml:"playOrder,attr"`
	Label     string     `xml:"navLabel>text"`
	Content   ncxContent `xml:"content"`
	Points    []ncxPoint `xml:"navPoint"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

// NavPoint is one entry of the flattened navigation map. Parent is the
// index of the parent in TOC.Points, -1 for top-level points.
type NavPoint struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Label     string `json:"label"`
	Href      string `json:"href"`
	Path      string `json:"path"`
	Fragment  string `json:"fragment"`
	PlayOrder int    `json:"play_order"`
	Depth     int    `json:"depth"`
	Parent    int    `json:"parent"`
}

// IsRoot reports whether p sits directly under the navMap.
func (p NavPoint) IsRoot() bool {
	return p.Parent < 0
}

// TOC holds the nav points of one NCX document in pre-order. Each
// instance is independent; nothing is shared between parsed documents.
type TOC struct {
	Title  string     `json:"title"`
	Points []NavPoint `json:"points"`
}

// ParseTOC parses an NCX document. Paths on the returned points are
// relative to the NCX itself.
func ParseTOC(data []byte) (*TOC, error) {
	var doc ncx
	if err := decodeXML(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse NCX")
	}

	t := &TOC{Title: strings.TrimSpace(doc.Title)}
	for _, p := range doc.Points {
		t.flatten(p, 1, -1)
	}
	t.normalizePlayOrder()
	return t, nil
}

func (t *TOC) flatten(p ncxPoint, depth, parent int) {
	href := strings.TrimSpace(p.Content.Src)
	target, fragment := resolveHref("", href)
	order, _ := strconv.Atoi(strings.TrimSpace(p.PlayOrder))

	idx := len(t.Points)
	t.Points = append(t.Points, NavPoint{
		Index:     idx,
		ID:        p.ID,
		Label:     strings.Join(strings.Fields(p.Label), " "),
		Href:      href,
		Path:      target,
		Fragment:  fragment,
		PlayOrder: order,
		Depth:     depth,
		Parent:    parent,
	})
	for _, child := range p.Points {
		t.flatten(child, depth+1, idx)
	}
}

// normalizePlayOrder keeps the document's playOrder values when they are
// positive and strictly increasing in traversal order, and renumbers every
// point 1..n otherwise.
func (t *TOC) normalizePlayOrder() {
	last := 0
	valid := true
	for _, p := range t.Points {
		if p.PlayOrder <= last {
			valid = false
			break
		}
		last = p.PlayOrder
	}
	if valid {
		return
	}
	for i := range t.Points {
		t.Points[i].PlayOrder = i + 1
	}
}

// resolve makes point paths archive-relative given the NCX directory.
func (t *TOC) resolve(dir string) {
	if dir == "." {
		dir = ""
	}
	for i := range t.Points {
		if t.Points[i].Path != "" {
			t.Points[i].Path = strings.TrimPrefix(path.Join(dir, t.Points[i].Path), "/")
		}
	}
}

func (t *TOC) Len() int {
	return len(t.Points)
}

// FindPoints returns the points no deeper than maxDepth, in traversal order.
func (t *TOC) FindPoints(maxDepth int) []NavPoint {
	var points []NavPoint
	for _, p := range t.Points {
		if p.Depth <= maxDepth {
			points = append(points, p)
		}
	}
	return points
}

func (t *TOC) Roots() []NavPoint {
	return t.childrenOf(-1)
}

// FindChildren returns the direct children of p.
func (t *TOC) FindChildren(p NavPoint) []NavPoint {
	if p.Index < 0 || p.Index >= len(t.Points) {
		return nil
	}
	return t.childrenOf(p.Index)
}

// FindChildrenByID is FindChildren for the first point with the given id.
func (t *TOC) FindChildrenByID(id string) []NavPoint {
	p, ok := t.FindByID(id)
	if !ok {
		return nil
	}
	return t.childrenOf(p.Index)
}

func (t *TOC) childrenOf(parent int) []NavPoint {
	var children []NavPoint
	for _, p := range t.Points {
		if p.Parent == parent {
			children = append(children, p)
		}
	}
	return children
}

func (t *TOC) FindByID(id string) (NavPoint, bool) {
	for _, p := range t.Points {
		if p.ID == id {
			return p, true
		}
	}
	return NavPoint{}, false
}

// ParentOf returns the parent of p; false for roots.
func (t *TOC) ParentOf(p NavPoint) (NavPoint, bool) {
	if p.Parent < 0 || p.Parent >= len(t.Points) {
		return NavPoint{}, false
	}
	return t.Points[p.Parent], true
}

// FindByPath returns the first point targeting the archive file name,
// whatever fragment it carries.
func (t *TOC) FindByPath(name string) (NavPoint, bool) {
	for _, p := range t.Points {
		if p.Path == name {
			return p, true
		}
	}
	return NavPoint{}, false
}

// FindByHref is FindByPath for an href relative to the NCX; the fragment
// is ignored.
func (t *TOC) FindByHref(href string) (NavPoint, bool) {
	target, _ := resolveHref("", href)
	for _, p := range t.Points {
		if p.Path == target || strings.HasSuffix(p.Path, "/"+target) {
			return p, true
		}
	}
	return NavPoint{}, false
}

// Descendants returns the subtree below p: the points after it up to its
// next sibling or ancestor sibling.
func (t *TOC) Descendants(p NavPoint) []NavPoint {
	if p.Index < 0 || p.Index >= len(t.Points) {
		return nil
	}
	var out []NavPoint
	for _, q := range t.Points[p.Index+1:] {
		if q.Depth <= p.Depth {
			break
		}
		out = append(out, q)
	}
	return out
}
