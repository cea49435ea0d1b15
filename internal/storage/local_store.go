package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sketchstacker/server/internal/models"
)

// LocalStore keeps objects as files under a base directory
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a new LocalStore, creating the directory if needed
func NewLocalStore(basePath string) (*LocalStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, err
	}

	return &LocalStore{basePath: absPath}, nil
}

// Name implements ObjectStore
func (s *LocalStore) Name() string { return "local" }

// BasePath returns the absolute store root
func (s *LocalStore) BasePath() string { return s.basePath }

// FullPath returns the absolute path for a key
func (s *LocalStore) FullPath(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	if absPath != s.basePath && !strings.HasPrefix(absPath, s.basePath+string(os.PathSeparator)) {
		return "", models.ErrPathTraversal
	}

	return absPath, nil
}

// Put writes the object atomically, replacing any previous content
func (s *LocalStore) Put(_ context.Context, key string, r io.Reader, _ PutOptions) error {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Get opens the object for reading
func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, models.ErrObjectNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// List walks the store and returns every regular file, sorted by key
func (s *LocalStore) List(_ context.Context) ([]Object, error) {
	objects := []Object{}

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}

		objects = append(objects, Object{
			Key:     filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.basePath, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Exists checks if an object exists at key
func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Delete removes the object; missing objects are not an error
func (s *LocalStore) Delete(_ context.Context, key string) error {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
