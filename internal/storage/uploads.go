package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// UploadStore writes product images under random names so uploads can
// never collide or traverse outside the directory.
type UploadStore struct {
	dir string
}

func NewUploadStore(dir string) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &UploadStore{dir: dir}, nil
}

func (s *UploadStore) Dir() string { return s.dir }

// Save stores the stream under a uuid-based filename, keeping only the
// original extension, and returns the public location.
func (s *UploadStore) Save(r io.Reader, originalName string) (string, error) {
	ext := filepath.Ext(originalName)
	filename := uuid.NewString() + ext

	f, err := os.Create(filepath.Join(s.dir, filename))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write upload file: %w", err)
	}

	return "products/" + filename, nil
}
