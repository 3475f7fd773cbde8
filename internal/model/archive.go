package model // import "github.com/Xunop/bookworm/internal/model"

import "strings"

type IdentifierKind string

const (
	IdentifierURL     IdentifierKind = "URL"
	IdentifierISBN    IdentifierKind = "ISBN"
	IdentifierUUID    IdentifierKind = "UUID"
	IdentifierUnknown IdentifierKind = "unknown"
)

// Archive is one uploaded EPUB. Content is owned by the archive until it is
// exploded; after that ContentRoot never changes.
type Archive struct {
	ID             int            `json:"id"`
	Name           string         `json:"name"`
	Owner          string         `json:"owner"`
	Content        []byte         `json:"-"`
	ContentRoot    string         `json:"content_root"`
	Container      string         `json:"-"`
	OPF            string         `json:"-"`
	TOC            string         `json:"-"`
	Title          string         `json:"title"`
	Authors        []string       `json:"authors"`
	AuthorSort     string         `json:"author_sort"`
	Language       string         `json:"language"`
	Rights         string         `json:"rights"`
	Subjects       []string       `json:"subjects"`
	Publisher      string         `json:"publisher"`
	Identifier     string         `json:"identifier"`
	IdentifierKind IdentifierKind `json:"identifier_kind"`
	Description    string         `json:"description"`
	Exploded       bool           `json:"exploded"`
	Indexed        bool           `json:"indexed"`
	CreatedTs      int64          `json:"created_ts"`
}

// Author returns the first author, used for short display.
func (a *Archive) Author() string {
	if len(a.Authors) == 0 {
		return ""
	}
	return a.Authors[0]
}

// AuthorList joins all authors for long display.
func (a *Archive) AuthorList() string {
	return strings.Join(a.Authors, ", ")
}

type FindArchive struct {
	ID      *int    `json:"id"`
	Name    *string `json:"name"`
	Owner   *string `json:"owner"`
	Indexed *bool   `json:"indexed"`
	// The maximum number of archives to return.
	Limit *int `json:"limit"`
}

type ContentKind string

const (
	ContentChapter    ContentKind = "chapter"
	ContentStylesheet ContentKind = "stylesheet"
	ContentImage      ContentKind = "image"
)

// ContentRecord is one rendered file of an exploded archive. Text holds the
// decoded document for text types, Data the raw bytes for binary types.
type ContentRecord struct {
	ID        int         `json:"id"`
	ArchiveID int         `json:"archive_id"`
	Filename  string      `json:"filename"`
	Kind      ContentKind `json:"kind"`
	MediaType string      `json:"media_type"`
	Text      string      `json:"-"`
	Data      []byte      `json:"-"`
	Title     string      `json:"title"`
	// Order is the NavPoint play order, or the spine ordinal when the file
	// has no NavPoint.
	Order   int  `json:"order"`
	Indexed bool `json:"indexed"`
}

// IsText reports whether the record carries decoded text rather than raw bytes.
func (c *ContentRecord) IsText() bool {
	return c.Kind != ContentImage
}

type FindContent struct {
	ID        *int         `json:"id"`
	ArchiveID *int         `json:"archive_id"`
	Kind      *ContentKind `json:"kind"`
	Filename  *string      `json:"filename"`
}
