package storage

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/sketchstacker/server/internal/models"
)

// Object describes a stored object
type Object struct {
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// PutOptions carries per-object metadata for Put
type PutOptions struct {
	ContentType  string
	StorageClass string
	Size         int64
}

// ObjectStore abstracts the bucket that holds images and the published manifest.
// Keys are slash separated and relative to the store root.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) error
	// Get returns models.ErrObjectNotFound (wrapped) when the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns every object in the store.
	List(ctx context.Context) ([]Object, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Name() string
}

// ValidateKey rejects keys that could escape the store root
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return models.ErrEmptyObjectKey
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return models.ErrPathTraversal
	}
	return nil
}

// Keys returns the keys of objs in order
func Keys(objs []Object) []string {
	keys := make([]string, len(objs))
	for i, o := range objs {
		keys[i] = o.Key
	}
	return keys
}
