package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrInvalidName = errors.New("invalid file name")

// LocalStore keeps uploaded files in a directory on disk.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir failed: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save writes data under filename and returns the stored name. The name must
// already be a bare file name.
func (s *LocalStore) Save(ctx context.Context, data []byte, filename string) (string, error) {
	if err := checkName(filename); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, filename)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file failed: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write upload failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload failed: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod upload failed: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move upload failed: %w", err)
	}
	return filename, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
