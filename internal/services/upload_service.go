package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sketchstacker/server/internal/models"
	"github.com/sketchstacker/server/internal/observability"
	"github.com/sketchstacker/server/internal/repository"
	"github.com/sketchstacker/server/internal/storage"
)

// maxKeyAttempts bounds the search for a free millisecond key
const maxKeyAttempts = 1000

// ManifestPublisher republishes the manifest after the store changes
type ManifestPublisher interface {
	Publish(ctx context.Context) (*models.PublishResponse, error)
}

// UploadNotifier is told about newly stored objects
type UploadNotifier interface {
	UploadStored(key, url string)
}

// UploadConfig holds the upload limits and naming
type UploadConfig struct {
	MaxBytes     int64
	StorageClass string
	ManifestKey  string
	PublicURL    func(key string) string
}

// UploadService stores images under "<unix-millis>.png" keys
type UploadService struct {
	store     storage.ObjectStore
	repo      repository.UploadRepo
	images    *ImageService
	hashes    *HashService
	publisher ManifestPublisher
	notifier  UploadNotifier
	metrics   *observability.BusinessMetrics
	cfg       UploadConfig
	now       func() time.Time

	// dedupe lookup and key allocation must not interleave
	mu sync.Mutex
}

// NewUploadService creates a new UploadService. publisher, notifier and metrics may be nil.
func NewUploadService(
	store storage.ObjectStore,
	repo repository.UploadRepo,
	images *ImageService,
	hashes *HashService,
	publisher ManifestPublisher,
	notifier UploadNotifier,
	metrics *observability.BusinessMetrics,
	cfg UploadConfig,
) *UploadService {
	if cfg.PublicURL == nil {
		cfg.PublicURL = func(key string) string { return "/" + key }
	}
	return &UploadService{
		store:     store,
		repo:      repo,
		images:    images,
		hashes:    hashes,
		publisher: publisher,
		notifier:  notifier,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Upload decodes a base64 payload, validates it as an image and stores it.
// A payload already stored returns the existing object's URL.
func (s *UploadService) Upload(ctx context.Context, payload string) (resp *models.UploadResponse, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "upload", "Upload")
	defer func() { observability.EndSpan(span, err) }()

	data, err := s.decodePayload(payload)
	if err != nil {
		s.metrics.RecordUpload(ctx, 0, false, false)
		return nil, err
	}

	info, err := s.images.Inspect(data)
	if err != nil {
		s.metrics.RecordUpload(ctx, int64(len(data)), false, false)
		return nil, err
	}

	hash := s.hashes.Fingerprint(data)
	logger := observability.WithContext(ctx).WithField("file_hash", hash)

	s.mu.Lock()
	existing, err := s.findStored(ctx, hash)
	if err != nil {
		s.mu.Unlock()
		s.metrics.RecordUpload(ctx, int64(len(data)), false, false)
		return nil, err
	}
	if existing != nil {
		s.mu.Unlock()
		s.metrics.RecordUpload(ctx, int64(len(data)), true, true)
		logger.Infof("Duplicate upload of %s", existing.ObjectKey)
		return &models.UploadResponse{
			URL:       s.cfg.PublicURL(existing.ObjectKey),
			Key:       existing.ObjectKey,
			Duplicate: true,
		}, nil
	}

	key, err := s.allocateKey(ctx)
	if err == nil {
		err = s.store.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
			ContentType:  "image/png",
			StorageClass: s.cfg.StorageClass,
			Size:         int64(len(data)),
		})
	}
	s.mu.Unlock()
	if err != nil {
		s.metrics.RecordUpload(ctx, int64(len(data)), false, false)
		return nil, fmt.Errorf("store upload: %w", err)
	}

	span.SetAttributes(observability.ObjectKey(key))
	logger = logger.WithAttrs(observability.ObjectKey(key))

	// the object is stored; ledger and manifest failures are logged only
	s.record(ctx, logger, key, hash, int64(len(data)), info)

	s.metrics.RecordUpload(ctx, int64(len(data)), false, true)
	logger.Infof("Stored %dx%d image (%d bytes)", info.Width, info.Height, len(data))

	url := s.cfg.PublicURL(key)
	if s.notifier != nil {
		s.notifier.UploadStored(key, url)
	}
	s.publish(ctx)

	return &models.UploadResponse{URL: url, Key: key}, nil
}

// record adds the ledger entry for a stored object; failures are logged only
func (s *UploadService) record(ctx context.Context, logger *observability.Logger, key, hash string, size int64, info *ImageInfo) {
	upload, err := models.NewUpload(key, hash, size, info.Width, info.Height)
	if err != nil {
		logger.Errorf("Failed to build upload record: %v", err)
		return
	}
	if err := s.repo.Add(ctx, upload); err != nil {
		logger.Errorf("Failed to record upload: %v", err)
	}
}

// Delete removes an uploaded object and its ledger entry, then republishes
func (s *UploadService) Delete(ctx context.Context, key string) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "upload", "Delete", observability.ObjectKey(key))
	defer func() { observability.EndSpan(span, err) }()

	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if key == s.cfg.ManifestKey {
		return models.ErrProtectedObject
	}

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", key, models.ErrObjectNotFound)
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	if _, err := s.repo.DeleteByKey(ctx, key); err != nil {
		observability.WithContext(ctx).Errorf("Failed to remove ledger entry for %s: %v", key, err)
	}

	observability.WithContext(ctx).WithAttrs(observability.ObjectKey(key)).Infof("Deleted object")
	s.publish(ctx)
	return nil
}

// List returns a page of the upload ledger and the total count
func (s *UploadService) List(ctx context.Context, skip, take int) ([]*models.Upload, int, error) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 || take > 500 {
		take = 50
	}

	uploads, err := s.repo.GetAll(ctx, skip, take)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.GetCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return uploads, total, nil
}

// FindByHash looks up a stored upload by content hash; (nil, nil) when absent
func (s *UploadService) FindByHash(ctx context.Context, hash string) (*models.Upload, error) {
	if !s.hashes.Valid(hash) {
		return nil, models.ErrInvalidHash
	}
	return s.findStored(ctx, s.hashes.Normalize(hash))
}

// URL returns the public URL of key
func (s *UploadService) URL(key string) string {
	return s.cfg.PublicURL(key)
}

func (s *UploadService) decodePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		if i := strings.IndexByte(payload, ','); i >= 0 {
			payload = payload[i+1:]
		}
	}
	if payload == "" {
		return nil, models.ErrEmptyPayload
	}
	if s.cfg.MaxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(payload))) > s.cfg.MaxBytes+2 {
		return nil, models.ErrPayloadTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", models.ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, models.ErrEmptyPayload
	}
	if s.cfg.MaxBytes > 0 && int64(len(data)) > s.cfg.MaxBytes {
		return nil, models.ErrPayloadTooLarge
	}
	return data, nil
}

// findStored returns the ledger entry for hash if its object still exists.
// Entries whose object has gone are dropped.
func (s *UploadService) findStored(ctx context.Context, hash string) (*models.Upload, error) {
	existing, err := s.repo.GetByHash(ctx, hash)
	if err != nil || existing == nil {
		return nil, err
	}

	ok, err := s.store.Exists(ctx, existing.ObjectKey)
	if err != nil {
		return nil, err
	}
	if ok {
		return existing, nil
	}

	if _, err := s.repo.DeleteByKey(ctx, existing.ObjectKey); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *UploadService) allocateKey(ctx context.Context) (string, error) {
	ms := s.now().UnixMilli()
	for i := 0; i < maxKeyAttempts; i++ {
		key := fmt.Sprintf("%d.png", ms+int64(i))
		exists, err := s.store.Exists(ctx, key)
		if err != nil {
			return "", err
		}
		if !exists {
			return key, nil
		}
	}
	return "", fmt.Errorf("no free key after %d attempts", maxKeyAttempts)
}

func (s *UploadService) publish(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.Publish(ctx); err != nil {
		observability.WithContext(ctx).Errorf("Manifest publish failed: %v", err)
	}
}
