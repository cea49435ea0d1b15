package services

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchstacker/server/internal/models"
)

func encodeImage(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 90, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func TestImageService_Inspect(t *testing.T) {
	svc := NewImageService()

	t.Run("png", func(t *testing.T) {
		info, err := svc.Inspect(encodeImage(t, 40, 30, imaging.PNG))
		require.NoError(t, err)
		assert.Equal(t, "png", info.Format)
		assert.Equal(t, 40, info.Width)
		assert.Equal(t, 30, info.Height)
	})

	t.Run("jpeg rejected by default", func(t *testing.T) {
		_, err := svc.Inspect(encodeImage(t, 10, 10, imaging.JPEG))
		assert.ErrorIs(t, err, models.ErrInvalidImage)
	})

	t.Run("jpeg allowed when configured", func(t *testing.T) {
		info, err := NewImageService("png", "jpeg").Inspect(encodeImage(t, 10, 12, imaging.JPEG))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", info.Format)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Inspect([]byte("definitely not an image"))
		assert.ErrorIs(t, err, models.ErrInvalidImage)
	})

	t.Run("truncated png", func(t *testing.T) {
		data := encodeImage(t, 64, 64, imaging.PNG)
		_, err := svc.Inspect(data[:len(data)/2])
		assert.ErrorIs(t, err, models.ErrInvalidImage)
	})
}

func TestImageService_Thumbnail(t *testing.T) {
	svc := NewImageService()

	t.Run("downscales keeping aspect ratio", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, svc.Thumbnail(&out, bytes.NewReader(encodeImage(t, 800, 400, imaging.PNG)), 200))

		cfg, format, err := image.DecodeConfig(&out)
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, 200, cfg.Width)
		assert.Equal(t, 100, cfg.Height)
	})

	t.Run("small image unchanged", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, svc.Thumbnail(&out, bytes.NewReader(encodeImage(t, 50, 20, imaging.PNG)), 200))

		cfg, _, err := image.DecodeConfig(&out)
		require.NoError(t, err)
		assert.Equal(t, 50, cfg.Width)
		assert.Equal(t, 20, cfg.Height)
	})

	t.Run("invalid source", func(t *testing.T) {
		var out bytes.Buffer
		err := svc.Thumbnail(&out, bytes.NewReader([]byte("nope")), 200)
		assert.ErrorIs(t, err, models.ErrInvalidImage)
	})
}
