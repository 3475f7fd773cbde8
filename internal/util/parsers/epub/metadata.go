package epub

import (
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/Xunop/bookworm/internal/model"
)

// Metadata is the bibliographic information from the OPF. Repeated elements
// keep document order; scalar fields take the first non-empty value.
type Metadata struct {
	Titles         []string             `json:"titles"`
	Authors        []string             `json:"authors"`
	Languages      []string             `json:"languages"`
	Rights         string               `json:"rights"`
	Subjects       []string             `json:"subjects"`
	Publisher      string               `json:"publisher"`
	Description    string               `json:"description"`
	Date           string               `json:"date"`
	Identifier     string               `json:"identifier"`
	IdentifierKind model.IdentifierKind `json:"identifier_kind"`
	// Cover is the manifest id named by <meta name="cover">
	Cover string `json:"cover"`
}

func (m *Metadata) Title() string {
	if len(m.Titles) == 0 {
		return ""
	}
	return m.Titles[0]
}

func (m *Metadata) Language() string {
	if len(m.Languages) == 0 {
		return ""
	}
	return m.Languages[0]
}

func (md *rawMetadata) build(uniqueID string) Metadata {
	m := Metadata{
		Titles:      values(md.titles),
		Authors:     values(md.creators),
		Languages:   values(md.languages),
		Rights:      first(md.rights),
		Publisher:   first(md.publishers),
		Description: first(md.descriptions),
		Date:        first(md.dates),
	}

	seen := make(map[string]bool, len(md.subjects))
	for _, s := range values(md.subjects) {
		if !seen[s] {
			seen[s] = true
			m.Subjects = append(m.Subjects, s)
		}
	}

	if id, ok := pickIdentifier(md.identifiers, uniqueID); ok {
		m.Identifier = id.Value
		m.IdentifierKind = identifierKind(id.Value, id.Scheme)
	} else {
		m.IdentifierKind = model.IdentifierUnknown
	}

	for _, meta := range md.metas {
		if strings.EqualFold(meta.Name, "cover") && meta.Content != "" {
			m.Cover = meta.Content
			break
		}
	}
	return m
}

func values(els []dcElement) []string {
	var out []string
	for _, el := range els {
		if el.Value != "" {
			out = append(out, el.Value)
		}
	}
	return out
}

func first(els []dcElement) string {
	for _, el := range els {
		if el.Value != "" {
			return el.Value
		}
	}
	return ""
}

// pickIdentifier prefers the identifier named by the package
// unique-identifier attribute.
func pickIdentifier(ids []dcElement, uniqueID string) (dcElement, bool) {
	var fallback *dcElement
	for i := range ids {
		if ids[i].Value == "" {
			continue
		}
		if uniqueID != "" && ids[i].ID == uniqueID {
			return ids[i], true
		}
		if fallback == nil {
			fallback = &ids[i]
		}
	}
	if fallback == nil {
		return dcElement{}, false
	}
	return *fallback, true
}

func identifierKind(value, scheme string) model.IdentifierKind {
	v := strings.ToLower(strings.TrimSpace(value))
	switch s := strings.ToLower(strings.TrimSpace(scheme)); {
	case s == "isbn" || strings.HasPrefix(v, "urn:isbn:") || looksLikeISBN(v):
		return model.IdentifierISBN
	case s == "uuid" || strings.HasPrefix(v, "urn:uuid:"):
		return model.IdentifierUUID
	case s == "url" || s == "uri":
		return model.IdentifierURL
	}
	if _, err := uuid.Parse(v); err == nil {
		return model.IdentifierUUID
	}
	if u, err := url.Parse(v); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return model.IdentifierURL
	}
	return model.IdentifierUnknown
}

func looksLikeISBN(v string) bool {
	v = strings.NewReplacer("-", "", " ", "").Replace(v)
	if len(v) != 10 && len(v) != 13 {
		return false
	}
	for i, r := range v {
		if r >= '0' && r <= '9' {
			continue
		}
		if len(v) == 10 && i == 9 && r == 'x' {
			continue
		}
		return false
	}
	return true
}
