package epub

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidArchiveFormat matches errors for bytes that are not a zip at all.
	ErrInvalidArchiveFormat = errors.New("epub: invalid archive format")
	// ErrInvalidArchive matches errors for a readable zip without a usable EPUB structure.
	ErrInvalidArchive = errors.New("epub: invalid archive")
	ErrFileNotFound   = errors.New("epub: file not found in archive")
)

// Reason separates the two kinds of structural failure so callers can show
// different messages.
type Reason int

const (
	// ReasonNotEPUB is a valid zip that lacks container, OPF or a referenced TOC.
	ReasonNotEPUB Reason = iota
	// ReasonMissingMetadata is a valid EPUB without required metadata.
	ReasonMissingMetadata
)

func (r Reason) String() string {
	switch r {
	case ReasonMissingMetadata:
		return "valid EPUB, missing required metadata"
	default:
		return "valid zip, not an EPUB"
	}
}

type InvalidArchiveFormatError struct {
	Name string
	Err  error
}

func (e *InvalidArchiveFormatError) Error() string {
	return fmt.Sprintf("epub: %s is not a zip archive: %v", e.Name, e.Err)
}

func (e *InvalidArchiveFormatError) Is(target error) bool {
	return target == ErrInvalidArchiveFormat
}

func (e *InvalidArchiveFormatError) Unwrap() error {
	return e.Err
}

type InvalidArchiveError struct {
	Name   string
	Reason string
	Kind   Reason
	Err    error
}

func (e *InvalidArchiveError) Error() string {
	msg := fmt.Sprintf("epub: invalid archive %s (%s): %s", e.Name, e.Kind, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidArchiveError) Is(target error) bool {
	return target == ErrInvalidArchive
}

func (e *InvalidArchiveError) Unwrap() error {
	return e.Err
}

func notEPUB(name, reason string, err error) error {
	return &InvalidArchiveError{Name: name, Reason: reason, Kind: ReasonNotEPUB, Err: err}
}

func missingMetadata(name, reason string) error {
	return &InvalidArchiveError{Name: name, Reason: reason, Kind: ReasonMissingMetadata}
}

// Describe returns a message suitable for the person who uploaded the archive.
func Describe(err error) string {
	var formatErr *InvalidArchiveFormatError
	var archiveErr *InvalidArchiveError
	switch {
	case errors.As(err, &formatErr):
		return fmt.Sprintf("%s does not appear to be an EPUB file: it is not a valid zip archive.", formatErr.Name)
	case errors.As(err, &archiveErr) && archiveErr.Kind == ReasonMissingMetadata:
		return fmt.Sprintf("%s is an EPUB but is missing required information: %s.", archiveErr.Name, archiveErr.Reason)
	case errors.As(err, &archiveErr):
		return fmt.Sprintf("%s is a zip archive but not a valid EPUB: %s.", archiveErr.Name, archiveErr.Reason)
	case err != nil:
		return err.Error()
	}
	return ""
}
