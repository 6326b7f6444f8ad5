// Package storage keeps uploaded and signed documents on disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no document exists under an id.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidID is returned for ids that are not plain PDF file names.
	ErrInvalidID = errors.New("invalid document id")
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*\.pdf$`)

// Store loads and saves documents by id.
type Store interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// ValidID reports whether id is safe to use as a file name.
func ValidID(id string) bool {
	return len(id) <= 255 && idPattern.MatchString(id) && !strings.Contains(id, "..")
}

// NewUploadID returns a fresh id for an uploaded document.
func NewUploadID() string {
	return uuid.New().String() + ".pdf"
}

// SignedID derives the output id for a signed copy of source.
func SignedID(source string, unixMillis int64) string {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	return fmt.Sprintf("%s-signed-%d.pdf", base, unixMillis)
}

// FileStore is a Store backed by one directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir when needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Load reads the document stored under id.
func (s *FileStore) Load(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}
	return data, nil
}

// Save writes data under name and returns the id. The file appears
// atomically.
func (s *FileStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ValidID(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, name)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", name, err)
	}
	return name, nil
}
