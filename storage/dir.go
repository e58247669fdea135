package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DirStore is a content-addressed store over a single flat directory.
type DirStore struct {
	dir string
}

// NewDirStore creates a DirStore rooted at dir, creating it if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %q: %w", dir, err)
	}
	return &DirStore{dir: dir}, nil
}

// Dir returns the backing directory path.
func (s *DirStore) Dir() string { return s.dir }

// List returns the names of all regular files in the store, sorted.
func (s *DirStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list store: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		// Dotfiles are in-flight scratch entries, not stored content.
		if e.Type().IsRegular() && e.Name()[0] != '.' {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Fetch returns the content of the named file.
func (s *DirStore) Fetch(_ context.Context, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: name}
		}
		return nil, fmt.Errorf("fetch %q: %w", name, err)
	}
	return data, nil
}

// Put stores data under md5(data) plus the sniffed extension. The write
// goes through a scratch file renamed into place, so a concurrent reader
// never observes a partially written entry.
func (s *DirStore) Put(_ context.Context, data []byte) (string, error) {
	name := ContentName(data)

	tmp, err := os.CreateTemp(s.dir, ".put-*")
	if err != nil {
		return "", fmt.Errorf("store %q: %w", name, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("store %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("store %q: %w", name, err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("store %q: %w", name, err)
	}
	return name, nil
}

// Remove deletes the named file.
func (s *DirStore) Remove(_ context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{Name: name}
		}
		return fmt.Errorf("remove %q: %w", name, err)
	}
	return nil
}

// ContentName derives the canonical stored name for the given bytes:
// the hex MD5 of the content plus the sniffed extension.
func ContentName(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]) + DetectExt(data)
}

// Verify DirStore implements Store.
var _ Store = (*DirStore)(nil)
