// Package validators contains pre-flight checks for incoming uploads
package validators

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"uploadfast/storage-api/internal/plan"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNoFile              = errors.New("no file provided")
	ErrFileNameTooLong     = errors.New("file name is too long")
	ErrFileTypeUnsupported = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

const maxFileNameSize = 245

// IsValidationError reports whether err is a rejection of the upload
// itself rather than an internal failure. Handlers use this to pick
// between a 400 and a generic 500.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoFile) ||
		errors.Is(err, ErrFileNameTooLong) ||
		errors.Is(err, ErrFileTypeUnsupported) ||
		errors.Is(err, ErrFileTooLarge)
}

// File describes one upload candidate. Open may be nil when only the
// declared metadata is available, content sniffing is skipped then.
type File struct {
	Name string
	MIME string
	Size int64 // bytes
	Open func() (io.ReadCloser, error)
}

// IsImage reports whether the declared type is an image. Images get an
// inline content disposition so browsers render instead of download.
func (f *File) IsImage() bool {
	return strings.HasPrefix(f.MIME, "image/")
}

// Validate checks one candidate against the fixed type allow-list and
// the plan's per-file size ceiling.
func Validate(f *File, planType string) error {
	if f == nil {
		return ErrNoFile
	}

	if len(f.Name) > maxFileNameSize {
		return fmt.Errorf("%w: %s", ErrFileNameTooLong, f.Name)
	}

	// Check the declared type first which is easy to spoof, but fast
	// for legit clients
	if !plan.TypeAllowed(f.MIME) {
		return fmt.Errorf("%w: %s", ErrFileTypeUnsupported, f.MIME)
	}

	maxSize := plan.LimitsFor(planType).MaxFileSizeMB << 20
	if f.Size > maxSize {
		return fmt.Errorf("%w: %s exceeds the %dMB limit for your plan", ErrFileTooLarge, f.Name, maxSize>>20)
	}

	if f.Open == nil {
		return nil
	}

	// And now sniff the actual content to catch malicious clients
	r, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open file for sniffing, %w", err)
	}
	defer r.Close()

	mime, err := mimetype.DetectReader(r)
	if err != nil {
		return fmt.Errorf("failed to detect file type, %w", err)
	}

	if !plan.TypeAllowed(mime.String()) {
		return fmt.Errorf("%w: detected %s", ErrFileTypeUnsupported, mime.String())
	}

	return nil
}

// ValidateBatch checks every file before any of them is admitted. A
// single bad file fails the whole batch with no side effects.
func ValidateBatch(files []*File, planType string) error {
	if len(files) == 0 {
		return ErrNoFile
	}

	for _, f := range files {
		if err := Validate(f, planType); err != nil {
			return err
		}
	}

	return nil
}
