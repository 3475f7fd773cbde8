package validator // import "github.com/Xunop/bookworm/internal/validator"

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/Xunop/bookworm/internal/model"
	"github.com/Xunop/bookworm/internal/store"
	"github.com/Xunop/bookworm/internal/util"
)

// ValidateArchiveCreateRequest checks an upload before anything is stored.
// maxSize is in bytes; zero disables the limit.
func ValidateArchiveCreateRequest(s *store.Store, archive *model.Archive, maxSize int64) error {
	if archive == nil {
		return errors.New("archive is nil")
	}
	if archive.Name == "" {
		return errors.New("archive name is empty")
	}
	if !strings.EqualFold(filepath.Ext(archive.Name), ".epub") {
		return errors.Errorf("unsupported file type: %s", filepath.Ext(archive.Name))
	}
	if archive.Owner == "" {
		return errors.New("owner is empty")
	}
	if !util.ValidUsername(archive.Owner) {
		return errors.New("owner is invalid")
	}
	if len(archive.Content) == 0 {
		return errors.New("archive is empty")
	}
	if maxSize > 0 && int64(len(archive.Content)) > maxSize {
		return errors.Errorf("archive is larger than %d bytes", maxSize)
	}
	if s != nil {
		existing, err := s.GetArchive(&model.FindArchive{Name: &archive.Name, Owner: &archive.Owner})
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.New("Archive already exists")
		}
	}
	return nil
}
