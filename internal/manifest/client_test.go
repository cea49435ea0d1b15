package manifest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchstacker/server/internal/gallery"
	"github.com/sketchstacker/server/internal/models"
	"github.com/sketchstacker/server/internal/storage"
)

func TestHTTPClient_FetchManifest(t *testing.T) {
	t.Run("decodes key list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			assert.Equal(t, "/viewer/images.json", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`["1700000000000.png", "viewer/", "bad-name.png"]`))
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL+"/viewer/images.json", time.Second, nil)
		names, err := client.FetchManifest(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"1700000000000.png", "viewer/", "bad-name.png"}, names)
	})

	t.Run("null body is an empty manifest", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`null`))
		}))
		defer srv.Close()

		names, err := NewHTTPClient(srv.URL, time.Second, nil).FetchManifest(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, names)
		assert.Empty(t, names)
	})

	t.Run("non-2xx status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewHTTPClient(srv.URL, time.Second, nil).FetchManifest(context.Background())
		require.Error(t, err)

		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, http.StatusInternalServerError, fetchErr.Status)
		assert.Contains(t, err.Error(), "HTTP 500")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>not json</html>`))
		}))
		defer srv.Close()

		_, err := NewHTTPClient(srv.URL, time.Second, nil).FetchManifest(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid manifest JSON")
	})

	t.Run("trailing data after array", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`["1700000000.png"] <html>oops</html>`))
		}))
		defer srv.Close()

		names, err := NewHTTPClient(srv.URL, time.Second, nil).FetchManifest(context.Background())
		assert.Nil(t, names)

		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Contains(t, err.Error(), "invalid manifest JSON")
	})

	t.Run("second JSON value after array", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`["a.png"] ["b.png"]`))
		}))
		defer srv.Close()

		_, err := NewHTTPClient(srv.URL, time.Second, nil).FetchManifest(context.Background())
		assert.Error(t, err)
	})

	t.Run("trailing whitespace is fine", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("[\"a.png\"]\n\n"))
		}))
		defer srv.Close()

		names, err := NewHTTPClient(srv.URL, time.Second, nil).FetchManifest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"a.png"}, names)
	})

	t.Run("object instead of array", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"images": []}`))
		}))
		defer srv.Close()

		_, err := NewHTTPClient(srv.URL, time.Second, nil).FetchManifest(context.Background())
		assert.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		_, err := NewHTTPClient(srv.URL, 50*time.Millisecond, nil).FetchManifest(context.Background())
		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Zero(t, fetchErr.Status)
	})
}

func TestHTTPClient_SessionKeepsStateOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`["1700000000000.png", "1700003600.png", "bad-name.png"]`))
	}))
	defer srv.Close()

	session := gallery.NewSession(NewHTTPClient(srv.URL, time.Second, nil), gallery.SessionConfig{})
	require.NoError(t, session.Load(context.Background()))
	assert.Len(t, session.Displayed(), 3)

	fail.Store(true)
	err := session.Load(context.Background())
	assert.ErrorIs(t, err, gallery.ErrFetchFailed)

	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
	assert.Len(t, session.Displayed(), 3)
	assert.Equal(t, 2, session.TotalAll())
}

func TestStoreClient_FetchManifest(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	client := NewStoreClient(store, "viewer/images.json", nil)

	t.Run("missing manifest", func(t *testing.T) {
		_, err := client.FetchManifest(ctx)
		assert.ErrorIs(t, err, models.ErrObjectNotFound)
	})

	t.Run("reads published manifest", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "viewer/images.json", bytes.NewReader([]byte(`["a.png","b.png"]`)), storage.PutOptions{}))

		names, err := client.FetchManifest(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.png", "b.png"}, names)
	})

	t.Run("corrupt manifest", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "viewer/images.json", bytes.NewReader([]byte(`[1,2`)), storage.PutOptions{}))

		_, err := client.FetchManifest(ctx)
		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, "local:viewer/images.json", fetchErr.Source)
	})
}
