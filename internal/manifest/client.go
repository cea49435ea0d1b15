package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sketchstacker/server/internal/gallery"
	"github.com/sketchstacker/server/internal/observability"
	"github.com/sketchstacker/server/internal/storage"
)

// maxManifestBytes caps how much of a manifest body is read
const maxManifestBytes = 32 << 20

var (
	_ gallery.ManifestClient = (*HTTPClient)(nil)
	_ gallery.ManifestClient = (*StoreClient)(nil)
)

// FetchError describes a failed manifest fetch
type FetchError struct {
	Source string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.Source, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// HTTPClient reads the published manifest over HTTP, typically from the CDN
type HTTPClient struct {
	url     string
	client  *http.Client
	metrics *observability.BusinessMetrics
}

// NewHTTPClient creates an HTTPClient; timeout bounds the whole request
func NewHTTPClient(url string, timeout time.Duration, metrics *observability.BusinessMetrics) *HTTPClient {
	return &HTTPClient{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		metrics: metrics,
	}
}

// FetchManifest GETs the manifest and decodes it as a JSON array of keys
func (c *HTTPClient) FetchManifest(ctx context.Context) (names []string, err error) {
	ctx, span := observability.StartClientSpan(ctx, "manifest.FetchHTTP")
	defer func() {
		if err != nil {
			c.metrics.RecordFetchFailure(ctx, "http")
		}
		observability.EndSpan(span, err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &FetchError{Source: c.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Source: c.url, Status: resp.StatusCode}
	}

	names, err = decode(resp.Body)
	if err != nil {
		return nil, &FetchError{Source: c.url, Err: err}
	}

	observability.WithContext(ctx).Debugf("Fetched manifest with %d entries from %s", len(names), c.url)
	return names, nil
}

// StoreClient reads the manifest object straight from the object store
type StoreClient struct {
	store   storage.ObjectStore
	key     string
	metrics *observability.BusinessMetrics
}

// NewStoreClient creates a StoreClient for key
func NewStoreClient(store storage.ObjectStore, key string, metrics *observability.BusinessMetrics) *StoreClient {
	return &StoreClient{store: store, key: key, metrics: metrics}
}

// FetchManifest reads and decodes the manifest object
func (c *StoreClient) FetchManifest(ctx context.Context) (names []string, err error) {
	source := c.store.Name() + ":" + c.key

	ctx, span := observability.StartClientSpan(ctx, "manifest.FetchStore", observability.ObjectKey(c.key))
	defer func() {
		if err != nil {
			c.metrics.RecordFetchFailure(ctx, "store")
		}
		observability.EndSpan(span, err)
	}()

	rc, err := c.store.Get(ctx, c.key)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	defer rc.Close()

	names, err = decode(rc)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	return names, nil
}

// decode requires the body to be exactly one JSON array of keys
func decode(r io.Reader) ([]string, error) {
	dec := json.NewDecoder(io.LimitReader(r, maxManifestBytes))

	var names []string
	if err := dec.Decode(&names); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid manifest JSON: trailing data after array")
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
