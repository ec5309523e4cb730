package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps one JSON file per fingerprint under a directory. The
// on-disk format is an internal contract only.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".json")
}

func (s *FileStore) Get(_ context.Context, fingerprint string) (Entry, error) {
	data, err := os.ReadFile(s.path(fingerprint))
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, ErrMiss
		}
		return Entry{}, &CacheError{Fingerprint: fingerprint, Err: err}
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, &CacheError{Fingerprint: fingerprint, Err: err}
	}
	return entry, nil
}

// Put replaces the entry wholesale via a temp file + rename, so
// concurrent readers never observe a torn write.
func (s *FileStore) Put(_ context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: marshal entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, entry.Fingerprint+".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: close entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(entry.Fingerprint)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: rename entry: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, fingerprint string) error {
	err := os.Remove(s.path(fingerprint))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
