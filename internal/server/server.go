// Package server wires the archive store, blob storage, extraction engine
// and search index into the operations the command line exposes.
package server // import "github.com/Xunop/bookworm/internal/server"

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/config"
	"github.com/Xunop/bookworm/internal/explode"
	"github.com/Xunop/bookworm/internal/log"
	"github.com/Xunop/bookworm/internal/model"
	"github.com/Xunop/bookworm/internal/search"
	"github.com/Xunop/bookworm/internal/storage"
	"github.com/Xunop/bookworm/internal/store"
	"github.com/Xunop/bookworm/internal/store/db"
	"github.com/Xunop/bookworm/internal/validator"
	"github.com/Xunop/bookworm/internal/worker"
)

// ErrRejected is returned when the remote validator finds errors in an
// upload.
var ErrRejected = errors.New("archive rejected by validator")

type Server struct {
	opts *config.Options
	db   *db.DB

	Store     *store.Store
	Storage   storage.Adapter
	Engine    *explode.Engine
	Manager   *search.Manager
	Indexer   *search.Indexer
	Searcher  *search.Searcher
	Validator *validator.Client
}

func NewServer(ctx context.Context, opts *config.Options) (*Server, error) {
	d, err := db.NewDB(opts.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "Error connecting to database")
	}
	if err := d.Migrate(ctx); err != nil {
		d.Close()
		return nil, errors.Wrap(err, "Error migrating database")
	}

	s := store.NewStore(d.DB)
	if err := s.Ping(); err != nil {
		d.Close()
		return nil, errors.Wrap(err, "Error pinging database")
	}

	adapter, err := storage.NewAdapter(ctx, opts)
	if err != nil {
		d.Close()
		return nil, err
	}

	manager := search.NewManager(opts.SearchRoot)
	indexer := search.NewIndexer(manager, s)
	indexer.DefaultLanguage = opts.DefaultLanguage
	return &Server{
		opts:      opts,
		db:        d,
		Store:     s,
		Storage:   adapter,
		Engine:    explode.NewEngine(s),
		Manager:   manager,
		Indexer:   indexer,
		Searcher:  search.NewSearcher(manager, opts.SearchPageSize, opts.FragmentWords),
		Validator: validator.NewClient(opts.ValidatorURL, time.Duration(opts.ValidatorTimeout)*time.Second, opts.ValidatorRate),
	}, nil
}

func (s *Server) Close() error {
	return s.db.Close()
}

// AddArchive uploads the EPUB at file for owner, explodes it and indexes
// it. An archive that cannot be exploded is not kept. A locked index only
// postpones indexing to the next reindex.
func (s *Server) AddArchive(ctx context.Context, owner, file string) (*model.Archive, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	archive := &model.Archive{
		Name:    filepath.Base(file),
		Owner:   owner,
		Content: data,
	}
	if err := validator.ValidateArchiveCreateRequest(s.Store, archive, s.opts.MaxUploadSize<<20); err != nil {
		return nil, err
	}
	if verdict := s.Validator.Validate(ctx, archive.Name, data); verdict.Status == validator.StatusInvalid {
		msgs := make([]string, 0, len(verdict.Errors))
		for _, e := range verdict.Errors {
			msgs = append(msgs, e.Code+": "+e.Message)
		}
		return nil, errors.Wrap(ErrRejected, strings.Join(msgs, "; "))
	}

	key := storage.ArchiveKey(owner, archive.Name)
	if err := s.Storage.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	if _, err := s.Store.AddArchive(archive); err != nil {
		s.discardBlob(ctx, key)
		return nil, err
	}

	if _, err := s.Engine.Explode(ctx, archive); err != nil {
		if rmErr := s.Store.RemoveArchive(archive.ID); rmErr != nil {
			log.Error("Failed to remove archive after explode failure", zap.Int("archive_id", archive.ID), zap.Error(rmErr))
		}
		s.discardBlob(ctx, key)
		return nil, err
	}

	s.index(ctx, archive, nil)
	return archive, nil
}

// Explode extracts an archive again, replacing its records. Chapter ids
// change, so an indexed archive is taken out of every index holding it
// first and indexed again into the same indexes afterwards.
func (s *Server) Explode(ctx context.Context, id int) (*model.Archive, []*model.ContentRecord, error) {
	archive, err := s.archive(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	users, err := s.Store.ListIndexScopes(archive.ID)
	if err != nil {
		return nil, nil, err
	}
	if archive.Indexed || len(users) > 0 {
		if users, err = s.unindex(archive); err != nil {
			return nil, nil, err
		}
	}
	records, err := s.Engine.Explode(ctx, archive)
	if err != nil {
		return nil, nil, err
	}
	if len(users) > 0 {
		s.index(ctx, archive, users)
	}
	return archive, records, nil
}

// Index indexes one chapter, or the whole archive when chapterID is nil,
// into the owner's index and the index of every extra user.
func (s *Server) Index(ctx context.Context, id int, chapterID *int, users []string) error {
	archive, err := s.archive(ctx, id)
	if err != nil {
		return err
	}
	if !archive.Exploded {
		return errors.Errorf("archive %d has not been exploded", id)
	}

	var single *model.ContentRecord
	if chapterID != nil {
		single, err = s.Store.GetContent(*chapterID)
		if err != nil {
			return err
		}
		if single == nil || single.ArchiveID != archive.ID || single.Kind != model.ContentChapter {
			return errors.Errorf("chapter %d not found in archive %d", *chapterID, id)
		}
	}
	return s.Indexer.IndexEpub(ctx, usersOf(archive, users), archive, single)
}

// Chapter returns a chapter with its neighbors in reading order.
func (s *Server) Chapter(id, chapterID int) (current, previous, next *model.ContentRecord, err error) {
	kind := model.ContentChapter
	chapters, err := s.Store.ListContent(&model.FindContent{ArchiveID: &id, Kind: &kind})
	if err != nil {
		return nil, nil, nil, err
	}
	for _, ch := range chapters {
		if ch.ID == chapterID {
			current = ch
			break
		}
	}
	if current == nil {
		return nil, nil, nil, errors.Errorf("chapter %d not found in archive %d", chapterID, id)
	}
	return current, explode.PreviousChapter(chapters, current), explode.NextChapter(chapters, current), nil
}

// RemoveArchive takes an archive out of every index holding it, the store
// and the blob storage, in that order.
func (s *Server) RemoveArchive(ctx context.Context, id int) error {
	archive, err := s.Store.GetArchive(&model.FindArchive{ID: &id})
	if err != nil {
		return err
	}
	if archive == nil {
		return errors.Errorf("archive %d not found", id)
	}
	if _, err := s.unindex(archive); err != nil {
		return err
	}
	if err := s.Store.RemoveArchive(id); err != nil {
		return err
	}
	s.discardBlob(ctx, storage.ArchiveKey(archive.Owner, archive.Name))
	return nil
}

// DeleteIndex drops one book from a user's index, or the user's whole
// index when bookID is nil. Archives of that user left without an index are
// marked unindexed so the next reindex rebuilds them.
func (s *Server) DeleteIndex(ctx context.Context, username string, bookID *int) error {
	if bookID != nil {
		archive, err := s.Store.GetArchive(&model.FindArchive{ID: bookID})
		if err != nil {
			return err
		}
		if archive == nil {
			return s.Manager.DeleteBookDatabase(username, *bookID)
		}
		kind := model.ContentChapter
		chapters, err := s.Store.ListContent(&model.FindContent{ArchiveID: &archive.ID, Kind: &kind})
		if err != nil {
			return err
		}
		return s.Indexer.RemoveBook([]string{username}, archive, chapters)
	}

	if err := s.Manager.DeleteUserDatabase(username); err != nil {
		return err
	}
	if err := s.Store.RemoveUserIndexScopes(username); err != nil {
		return err
	}
	archives, err := s.Store.ListArchives(&model.FindArchive{Owner: &username})
	if err != nil {
		return err
	}
	for _, archive := range archives {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Store.MarkIndexed(archive.ID, nil, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) Search(ctx context.Context, q search.Query) (*search.ResultPage, error) {
	if q.Language == "" {
		q.Language = s.opts.DefaultLanguage
	}
	return s.Searcher.Search(ctx, q)
}

func (s *Server) Reindex(ctx context.Context) (*worker.Report, error) {
	job := &worker.ReindexJob{
		LockFile: s.opts.LockFile,
		Store:    s.Store,
		Indexer:  s.Indexer,
		Size:     s.opts.WorkerPoolSize,
	}
	return job.Run(ctx)
}

func (s *Server) Validate(ctx context.Context, file string) (validator.Verdict, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return validator.Verdict{}, err
	}
	return s.Validator.Validate(ctx, filepath.Base(file), data), nil
}

// archive loads an archive, fetching its bytes from storage when the
// record does not carry them.
func (s *Server) archive(ctx context.Context, id int) (*model.Archive, error) {
	archive, err := s.Store.GetArchive(&model.FindArchive{ID: &id})
	if err != nil {
		return nil, err
	}
	if archive == nil {
		return nil, errors.Errorf("archive %d not found", id)
	}
	if len(archive.Content) == 0 {
		data, err := storage.ReadAll(ctx, s.Storage, storage.ArchiveKey(archive.Owner, archive.Name))
		if err != nil {
			return nil, errors.Wrapf(err, "load archive %d", id)
		}
		archive.Content = data
	}
	return archive, nil
}

func (s *Server) index(ctx context.Context, archive *model.Archive, users []string) {
	err := s.Indexer.IndexEpub(ctx, users, archive, nil)
	switch {
	case errors.Is(err, search.ErrDatabaseLocked):
		log.Warn("Index busy, archive left for the next reindex", zap.Int("archive_id", archive.ID), zap.Error(err))
	case err != nil:
		log.Error("Failed to index archive", zap.Int("archive_id", archive.ID), zap.Error(err))
	}
}

// unindex takes an archive out of every index holding it and returns the
// users whose index it left.
func (s *Server) unindex(archive *model.Archive) ([]string, error) {
	users, err := s.Store.ListIndexScopes(archive.ID)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		users = []string{archive.Owner}
	}
	kind := model.ContentChapter
	chapters, err := s.Store.ListContent(&model.FindContent{ArchiveID: &archive.ID, Kind: &kind})
	if err != nil {
		return nil, err
	}
	return users, s.Indexer.RemoveBook(users, archive, chapters)
}

func (s *Server) discardBlob(ctx context.Context, key string) {
	if err := s.Storage.Delete(ctx, key); err != nil {
		log.Error("Failed to delete stored archive", zap.String("key", key), zap.Error(err))
	}
}

func usersOf(archive *model.Archive, extra []string) []string {
	users := []string{archive.Owner}
	for _, u := range extra {
		if u != archive.Owner {
			users = append(users, u)
		}
	}
	return users
}
