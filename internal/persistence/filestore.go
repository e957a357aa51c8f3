package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileStore persists each collection as a JSON file under a data directory.
// Saves go through a temp file and rename so a crash mid-write never leaves
// a half-written collection behind.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the data directory if needed. Directory and files are
// kept private to the service user because settings carry SMTP and directory
// credentials.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory not configured")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// LoadCollection reads one collection into out. A collection that has never
// been saved leaves out untouched and returns nil.
func (s *FileStore) LoadCollection(_ context.Context, name string, out any) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read collection %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode collection %s: %w", name, err)
	}
	return nil
}

// SaveCollection replaces one collection atomically.
func (s *FileStore) SaveCollection(_ context.Context, name string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.json")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write collection %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync collection %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close collection %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod collection %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		return fmt.Errorf("replace collection %s: %w", name, err)
	}
	return nil
}

// Ping verifies the data directory is still reachable.
func (s *FileStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data path %s is not a directory", s.dir)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() {}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}
