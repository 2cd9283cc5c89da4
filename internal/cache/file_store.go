package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o600
)

// FileStore keeps one loose file per key under Dir.
type FileStore struct {
	Dir    string
	logger *logrus.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store rooted at dir. The directory is created lazily.
func NewFileStore(dir string, logger *logrus.Logger) *FileStore {
	return &FileStore{Dir: dir, logger: logger}
}

// Put writes value through a temp file and rename, so a concurrent reader sees
// either the old or the new content, never a partial file.
func (s *FileStore) Put(_ context.Context, key string, value any) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	data, err := encode(key, value)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.Dir, dirPermissions); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+key+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Chmod(filePermissions); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("chmod cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close cache file: %w", err)
	}

	path := filepath.Join(s.Dir, key)
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("commit cache file: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"key": key, "bytes": len(data)}).Debug("cache write")
	return path, nil
}

func (s *FileStore) Get(_ context.Context, key string) (Entry, bool, error) {
	if err := ValidateKey(key); err != nil {
		return Entry{}, false, err
	}

	data, err := os.ReadFile(filepath.Join(s.Dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read cache file %q: %w", key, err)
	}

	s.logger.WithField("key", key).Debug("cache hit")
	return Entry{Key: key, Raw: data}, true, nil
}
