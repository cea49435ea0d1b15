package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sketchstacker/server/internal/models"
	"github.com/sketchstacker/server/internal/observability"
	"github.com/sketchstacker/server/internal/storage"
)

// Notifier is told when a new manifest has been written
type Notifier interface {
	ManifestPublished(key string, count int)
}

// Publisher rewrites the manifest from the current store listing
type Publisher struct {
	store       storage.ObjectStore
	key         string
	invalidator Invalidator
	notifier    Notifier
	metrics     *observability.BusinessMetrics

	// publishes are serialized so a slower listing never overwrites a newer one
	mu sync.Mutex
}

// NewPublisher creates a Publisher. invalidator, notifier and metrics may be nil.
func NewPublisher(store storage.ObjectStore, key string, invalidator Invalidator, notifier Notifier, metrics *observability.BusinessMetrics) *Publisher {
	return &Publisher{
		store:       store,
		key:         key,
		invalidator: invalidator,
		notifier:    notifier,
		metrics:     metrics,
	}
}

// Key returns the manifest object key
func (p *Publisher) Key() string {
	return p.key
}

// Publish lists every object, writes the keys as indented JSON to the manifest
// key and invalidates the CDN copy. A failed invalidation is logged and
// reported through Invalidated=false; the manifest itself is already written.
func (p *Publisher) Publish(ctx context.Context) (resp *models.PublishResponse, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := observability.StartServiceSpan(ctx, "manifest", "Publish",
		observability.ObjectKey(p.key), observability.Backend(p.store.Name()))
	defer func() { observability.EndSpan(span, err) }()

	logger := observability.WithContext(ctx).WithAttrs(observability.ObjectKey(p.key))

	objects, err := p.store.List(ctx)
	if err != nil {
		p.metrics.RecordPublish(ctx, 0, false)
		return nil, fmt.Errorf("list objects: %w", err)
	}
	keys := storage.Keys(objects)

	body, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		p.metrics.RecordPublish(ctx, 0, false)
		return nil, err
	}

	err = p.store.Put(ctx, p.key, bytes.NewReader(body), storage.PutOptions{
		ContentType: "application/json",
		Size:        int64(len(body)),
	})
	if err != nil {
		p.metrics.RecordPublish(ctx, 0, false)
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	p.metrics.RecordPublish(ctx, len(keys), true)
	logger.Infof("Published manifest with %d keys", len(keys))

	resp = &models.PublishResponse{Key: p.key, Count: len(keys)}

	if p.invalidator != nil {
		invErr := p.invalidator.Invalidate(ctx, []string{"/" + p.key})
		p.metrics.RecordInvalidation(ctx, invErr == nil)
		if invErr != nil {
			logger.Warnf("CDN invalidation failed: %v", invErr)
		} else {
			resp.Invalidated = true
		}
	}

	if p.notifier != nil {
		p.notifier.ManifestPublished(p.key, len(keys))
	}

	return resp, nil
}
