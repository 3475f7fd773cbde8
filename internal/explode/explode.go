// Package explode turns an uploaded EPUB into the content records that get
// rendered and indexed.
package explode // import "github.com/Xunop/bookworm/internal/explode"

import (
	"context"
	"path"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/log"
	"github.com/Xunop/bookworm/internal/model"
	"github.com/Xunop/bookworm/internal/util"
	"github.com/Xunop/bookworm/internal/util/parsers/epub"
)

// RecordStore persists an exploded archive. ReplaceContent must drop the
// archive's previous records and write the new ones atomically.
type RecordStore interface {
	ReplaceContent(archive *model.Archive, records []*model.ContentRecord) ([]*model.ContentRecord, error)
}

type Engine struct {
	store RecordStore
}

func NewEngine(store RecordStore) *Engine {
	return &Engine{store: store}
}

// Explode extracts one record per spine item, followed by the stylesheets
// and images outside the spine, and stores them together with the
// descriptor read from the package document. Exploding again replaces the
// previous records. Nothing is stored when the archive cannot be parsed.
func (e *Engine) Explode(ctx context.Context, archive *model.Archive) ([]*model.ContentRecord, error) {
	book, err := epub.OpenBytes(archive.Name, archive.Content)
	if err != nil {
		log.Error("Unable to open archive", zap.String("archive", archive.Name), zap.Error(err))
		return nil, err
	}

	records, err := Extract(ctx, book)
	if err != nil {
		return nil, err
	}

	Describe(archive, book)
	stored, err := e.store.ReplaceContent(archive, records)
	if err != nil {
		return nil, errors.Wrapf(err, "store content of %s", archive.Name)
	}

	log.Info("Archive exploded",
		zap.String("archive", archive.Name),
		zap.Int("archive_id", archive.ID),
		zap.Int("records", len(stored)))
	return stored, nil
}

// Describe copies what the package document says about the book onto
// archive and marks it exploded.
func Describe(archive *model.Archive, book *epub.Book) {
	md := book.Metadata()
	archive.ContentRoot = book.ContentRoot()
	archive.Container = book.RawContainer()
	archive.OPF = book.RawOPF()
	archive.TOC = book.RawTOC()
	archive.Title = md.Title()
	archive.Authors = md.Authors
	archive.AuthorSort = ""
	if len(md.Authors) > 0 {
		archive.AuthorSort = util.GetSortedAuthor(md.Authors[0])
	}
	archive.Language = md.Language()
	archive.Rights = md.Rights
	archive.Subjects = md.Subjects
	archive.Publisher = md.Publisher
	archive.Identifier = md.Identifier
	archive.IdentifierKind = md.IdentifierKind
	archive.Description = md.Description
	archive.Exploded = true
}

// Extract builds the records of book without storing them. A spine idref
// listed twice yields one record; an idref missing from the manifest is
// skipped.
func Extract(ctx context.Context, book *epub.Book) ([]*model.ContentRecord, error) {
	toc := book.TOC()
	var records []*model.ContentRecord
	seen := make(map[string]bool)
	inSpine := make(map[string]bool)

	for i, ref := range book.Spine() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[ref.IDRef] {
			log.Debug("Skipping repeated spine item", zap.String("archive", book.Name), zap.String("idref", ref.IDRef))
			continue
		}
		seen[ref.IDRef] = true

		item, ok := book.ManifestItem(ref.IDRef)
		if !ok {
			log.Warn("Spine item has no manifest entry", zap.String("archive", book.Name), zap.String("idref", ref.IDRef))
			continue
		}
		inSpine[item.ID] = true

		record, err := newRecord(book, item, kindOf(item.MediaType, model.ContentChapter))
		if err != nil {
			log.Warn("Skipping unreadable spine item", zap.String("archive", book.Name), zap.String("href", item.Href), zap.Error(err))
			continue
		}
		archivePath, _ := book.ContentPath(item.Href)
		if p, ok := toc.FindByPath(archivePath); ok {
			record.Title = p.Label
			record.Order = p.PlayOrder
		} else {
			record.Order = i + 1
		}
		records = append(records, record)
	}

	warnOrphans(book, records)

	for _, item := range book.Opf.Manifest {
		if inSpine[item.ID] {
			continue
		}
		kind := kindOf(item.MediaType, "")
		if kind != model.ContentStylesheet && kind != model.ContentImage {
			continue
		}
		record, err := newRecord(book, item, kind)
		if err != nil {
			log.Warn("Skipping unreadable resource", zap.String("archive", book.Name), zap.String("href", item.Href), zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func newRecord(book *epub.Book, item epub.Manifest, kind model.ContentKind) (*model.ContentRecord, error) {
	archivePath, _ := book.ContentPath(item.Href)
	data, err := book.ReadFile(archivePath)
	if err != nil {
		return nil, err
	}

	record := &model.ContentRecord{
		Filename:  Filename(item.Href),
		Kind:      kind,
		MediaType: item.MediaType,
	}
	if isText(item.MediaType) {
		text, err := decodeText(data, item.MediaType)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", archivePath)
		}
		record.Text = text
	} else {
		record.Data = data
	}
	return record, nil
}

// Filename is the content-root-relative name of a manifest href.
func Filename(href string) string {
	name, _ := epub.SplitHref(href)
	return name
}

// warnOrphans logs nav points whose file is not part of the spine.
func warnOrphans(book *epub.Book, records []*model.ContentRecord) {
	toc := book.TOC()
	spineFiles := make(map[string]bool, len(records))
	for _, r := range records {
		spineFiles[path.Join(book.ContentRoot(), r.Filename)] = true
	}
	warned := make(map[string]bool)
	for _, p := range toc.Points {
		if p.Path == "" || spineFiles[p.Path] || warned[p.Path] {
			continue
		}
		warned[p.Path] = true
		log.Warn("Navigation point has no spine item",
			zap.String("archive", book.Name), zap.String("id", p.ID), zap.String("target", p.Path))
	}
}

func kindOf(mediaType string, fallback model.ContentKind) model.ContentKind {
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return model.ContentImage
	case mediaType == "text/css":
		return model.ContentStylesheet
	}
	return fallback
}
