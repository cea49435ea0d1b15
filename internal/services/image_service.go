package services

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"github.com/sketchstacker/server/internal/models"
)

// ImageInfo describes a validated upload
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// ImageService validates uploads and renders previews
type ImageService struct {
	allowedFormats map[string]bool
	maxPixels      int
}

// NewImageService creates an ImageService accepting the given decoder formats
// ("png", "jpeg", ...). An empty list accepts PNG only.
func NewImageService(formats ...string) *ImageService {
	if len(formats) == 0 {
		formats = []string{"png"}
	}
	allowed := make(map[string]bool, len(formats))
	for _, f := range formats {
		allowed[f] = true
	}
	return &ImageService{
		allowedFormats: allowed,
		maxPixels:      64 << 20,
	}
}

// Inspect checks the header, then decodes the whole image so truncated
// payloads are rejected. All failures wrap models.ErrInvalidImage.
func (s *ImageService) Inspect(data []byte) (*ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidImage, err)
	}
	if !s.allowedFormats[format] {
		return nil, fmt.Errorf("%w: unsupported format %q", models.ErrInvalidImage, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > s.maxPixels {
		return nil, fmt.Errorf("%w: bad dimensions %dx%d", models.ErrInvalidImage, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// Thumbnail writes a PNG preview of src that fits in maxDim x maxDim.
// Images already small enough are re-encoded unchanged.
func (s *ImageService) Thumbnail(w io.Writer, src io.Reader, maxDim int) error {
	img, err := imaging.Decode(src)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxDim || bounds.Dy() > maxDim {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	return imaging.Encode(w, img, imaging.PNG)
}
