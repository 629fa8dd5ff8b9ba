package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
)

// decodeReceiptImage loads any supported raster, routing HEIC/HEIF through
// the dedicated decoder since the general image libraries cannot read them.
func decodeReceiptImage(path string) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".heic" || ext == ".heif" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open image: %w", err)
		}
		defer f.Close()

		img, err := goheif.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode heic image: %w", err)
		}
		return img, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// transcodeForTextract re-encodes any supported raster for Textract, which
// only accepts JPEG/PNG payloads: HEIC/HEIF sources become PNG, every other
// format becomes a high-quality JPEG.
func transcodeForTextract(path string) ([]byte, error) {
	img, err := decodeReceiptImage(path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".heic" || ext == ".heif" {
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
		return buf.Bytes(), nil
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// CreateNormalizedImage writes a resized copy of the receipt image next to
// the original as normalized.jpg for the review UI. PDFs are skipped.
func CreateNormalizedImage(originalPath string, maxWidth int, logger *slog.Logger) error {
	if !isImage(originalPath) {
		return nil
	}
	if maxWidth <= 0 {
		maxWidth = 800
	}

	img, err := decodeReceiptImage(originalPath)
	if err != nil {
		return err
	}

	if img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	normalizedPath := filepath.Join(filepath.Dir(originalPath), "normalized.jpg")
	if err := imaging.Save(img, normalizedPath, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("failed to save normalized image: %w", err)
	}

	logger.Info("normalized image created",
		"path", normalizedPath,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	return nil
}
