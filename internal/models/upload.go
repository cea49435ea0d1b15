package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Upload is a ledger entry for one stored image
type Upload struct {
	ID         string    `json:"id"`
	ObjectKey  string    `json:"objectKey"`
	FileHash   string    `json:"fileHash"`
	FileSize   int64     `json:"fileSize"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// NewUpload creates a new Upload with validation
func NewUpload(objectKey, fileHash string, fileSize int64, width, height int) (*Upload, error) {
	if strings.TrimSpace(objectKey) == "" {
		return nil, ErrEmptyObjectKey
	}
	if strings.Contains(objectKey, "..") {
		return nil, ErrPathTraversal
	}
	if strings.TrimSpace(fileHash) == "" {
		return nil, ErrEmptyHash
	}
	if fileSize <= 0 {
		return nil, ErrInvalidFileSize
	}

	return &Upload{
		ID:         uuid.New().String(),
		ObjectKey:  objectKey,
		FileHash:   strings.ToLower(fileHash),
		FileSize:   fileSize,
		Width:      width,
		Height:     height,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// GalleryError is a sentinel error type for the gallery backend
type GalleryError struct {
	Message string
}

func (e GalleryError) Error() string {
	return e.Message
}

var (
	ErrEmptyPayload    = GalleryError{"image payload cannot be empty"}
	ErrInvalidImage    = GalleryError{"payload is not a decodable image"}
	ErrPayloadTooLarge = GalleryError{"image size exceeds maximum allowed"}
	ErrPathTraversal   = GalleryError{"invalid key - path traversal detected"}
	ErrObjectNotFound  = GalleryError{"object not found"}
	ErrEmptyObjectKey  = GalleryError{"object key cannot be empty"}
	ErrEmptyHash       = GalleryError{"file hash cannot be empty"}
	ErrInvalidFileSize = GalleryError{"file size must be positive"}
	ErrInvalidHash     = GalleryError{"hash must be a sha256 hex digest"}
	ErrProtectedObject = GalleryError{"object is managed by the server"}
)
