package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/log"
)

type LocalAdapter struct {
	// Path to the storage directory
	Path string
}

func NewLocalAdapter(path string) (*LocalAdapter, error) {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "failed to create storage directory %s", path)
	}
	return &LocalAdapter{Path: path}, nil
}

// fullPath maps key below Path, refusing keys that climb out of it.
func (s *LocalAdapter) fullPath(key string) (string, error) {
	full := filepath.Join(s.Path, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.Path, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("invalid storage key %q", key)
	}
	return full, nil
}

// Put writes to a temporary file first so a reader never sees a partial
// archive.
func (s *LocalAdapter) Put(_ context.Context, key string, data io.Reader) error {
	filePath, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
		return errors.Wrap(err, "failed to create directories")
	}

	outFile, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer os.Remove(outFile.Name())

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(outFile, hash), data); err != nil {
		outFile.Close()
		return errors.Wrap(err, "failed to write file")
	}
	if err := outFile.Close(); err != nil {
		return errors.Wrap(err, "failed to write file")
	}
	if err := os.Rename(outFile.Name(), filePath); err != nil {
		return errors.Wrap(err, "failed to move file into place")
	}

	fileHash := hex.EncodeToString(hash.Sum(nil))
	log.Debug("Stored file", zap.String("path", filePath), zap.String("hash", fileHash))
	return nil
}

func (s *LocalAdapter) Get(_ context.Context, key string) (io.ReadCloser, error) {
	filePath, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, key)
		}
		return nil, errors.Wrap(err, "failed to open file")
	}
	return file, nil
}

func (s *LocalAdapter) Delete(_ context.Context, key string) error {
	filePath, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete file")
	}
	return nil
}

func (s *LocalAdapter) Exists(_ context.Context, key string) (bool, error) {
	filePath, err := s.fullPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to check existence")
	}
	return true, nil
}
