package search

import (
	"context"
	"slices"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/content"
	"github.com/Xunop/bookworm/internal/log"
	"github.com/Xunop/bookworm/internal/model"
)

// ArchiveStore is the part of the record store the indexer needs.
type ArchiveStore interface {
	ListContent(find *model.FindContent) ([]*model.ContentRecord, error)
	MarkIndexed(archiveID int, chapterIDs []int, indexed bool) error
	AddIndexScopes(archiveID int, usernames []string) error
	ListIndexScopes(archiveID int) ([]string, error)
	RemoveIndexScopes(archiveID int, usernames []string) error
}

type Indexer struct {
	manager *Manager
	store   ArchiveStore

	// DefaultLanguage stems archives that declare no language.
	DefaultLanguage string
}

func NewIndexer(manager *Manager, store ArchiveStore) *Indexer {
	return &Indexer{manager: manager, store: store}
}

// IndexEpub indexes the chapters of archive into the book database and the
// user database of every named user, then records those users as scopes of
// the archive and marks it indexed. When single is set only that chapter is
// indexed. Chapters without extractable text are skipped and stay
// unflagged.
func (ix *Indexer) IndexEpub(ctx context.Context, usernames []string, archive *model.Archive, single *model.ContentRecord) error {
	if len(usernames) == 0 {
		usernames = []string{archive.Owner}
	}

	chapters := []*model.ContentRecord{single}
	if single == nil {
		kind := model.ContentChapter
		list, err := ix.store.ListContent(&model.FindContent{ArchiveID: &archive.ID, Kind: &kind})
		if err != nil {
			return errors.Wrapf(err, "list chapters of archive %d", archive.ID)
		}
		chapters = list
	}

	dbs, err := ix.openScopes(usernames, archive.ID)
	defer closeAll(dbs)
	if err != nil {
		return err
	}

	language := archive.Language
	if language == "" {
		language = ix.DefaultLanguage
	}
	stemmer := GetStemmer(language)
	written := make([]int, 0, len(chapters))
	for _, ch := range chapters {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, ns := content.Analyze(ch.Text)
		if text == "" {
			log.Info("Skipping chapter without indexable text",
				zap.String("archive", archive.Name), zap.Int("chapter_id", ch.ID), zap.String("filename", ch.Filename))
			continue
		}
		title := ch.Title
		if title == "" {
			title = content.ExtractTitle(ch.Text)
		}
		doc := IndexedDocument{
			ID:              ch.ID,
			Data:            text,
			BookID:          archive.ID,
			BookTitle:       archive.Title,
			ChapterID:       ch.ID,
			ChapterFilename: ch.Filename,
			ChapterTitle:    title,
			Namespace:       ns.URI(),
			AuthorName:      archive.Author(),
			Language:        language,
		}
		if err := IndexDocument(dbs, doc, stemmer); err != nil {
			return err
		}
		written = append(written, ch.ID)
	}

	if err := ix.store.AddIndexScopes(archive.ID, usernames); err != nil {
		return errors.Wrapf(err, "record index scopes of archive %d", archive.ID)
	}
	if err := ix.store.MarkIndexed(archive.ID, written, true); err != nil {
		return errors.Wrapf(err, "mark archive %d indexed", archive.ID)
	}
	archive.Indexed = true
	log.Info("Archive indexed",
		zap.String("archive", archive.Name), zap.Int("chapters", len(written)), zap.String("language", stemmer.Language()))
	return nil
}

// openScopes opens, for writing, the book database and the user database
// of each user. Nothing stays open on error.
func (ix *Indexer) openScopes(usernames []string, bookID int) ([]*Database, error) {
	var dbs []*Database
	seen := make(map[string]bool, len(usernames))
	for _, username := range usernames {
		if seen[username] {
			continue
		}
		seen[username] = true

		userDB, err := ix.manager.CreateUserDatabase(username)
		if err != nil {
			return dbs, err
		}
		dbs = append(dbs, userDB)

		bookDB, err := ix.manager.CreateBookDatabase(username, bookID)
		if err != nil {
			return dbs, err
		}
		dbs = append(dbs, bookDB)
	}
	return dbs, nil
}

// RemoveBook takes a book out of the index: its chapters leave the user
// database of every named user, then their book databases go. With no
// users named, every recorded scope of the archive is removed, or the
// owner's when none is recorded. The archive is marked unindexed once the
// owner's index or the last scope is gone.
func (ix *Indexer) RemoveBook(usernames []string, archive *model.Archive, chapters []*model.ContentRecord) error {
	scopes, err := ix.store.ListIndexScopes(archive.ID)
	if err != nil {
		return errors.Wrapf(err, "list index scopes of archive %d", archive.ID)
	}
	if len(usernames) == 0 {
		usernames = scopes
	}
	if len(usernames) == 0 {
		usernames = []string{archive.Owner}
	}
	ids := make([]int, 0, len(chapters))
	for _, ch := range chapters {
		ids = append(ids, ch.ID)
	}

	for _, username := range usernames {
		if err := ix.manager.DeleteBookDocuments(username, archive.ID, ids); err != nil {
			return err
		}
		if err := ix.manager.DeleteBookDatabase(username, archive.ID); err != nil {
			return err
		}
	}
	if err := ix.store.RemoveIndexScopes(archive.ID, usernames); err != nil {
		return errors.Wrapf(err, "remove index scopes of archive %d", archive.ID)
	}

	remaining := slices.DeleteFunc(slices.Clone(scopes), func(u string) bool {
		return slices.Contains(usernames, u)
	})
	if len(remaining) > 0 && !slices.Contains(usernames, archive.Owner) {
		return nil
	}
	if err := ix.store.MarkIndexed(archive.ID, nil, false); err != nil {
		return errors.Wrapf(err, "mark archive %d unindexed", archive.ID)
	}
	archive.Indexed = false
	return nil
}

func closeAll(dbs []*Database) {
	for _, d := range dbs {
		if err := d.Close(); err != nil {
			log.Warn("Failed to close index database", zap.String("db", d.Dir), zap.Error(err))
		}
	}
}
