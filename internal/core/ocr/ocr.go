// Package ocr turns receipt files into text with per-line bounding boxes.
//
// Providers implement the Provider interface; the Factory picks one per file
// type. Images always go to Textract. PDFs try the embedded text layer first,
// then Tesseract (when available and confident enough), then Textract.
package ocr

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrOCRUnavailable signals that the required provider is disabled or missing.
	ErrOCRUnavailable = errors.New("ocr: required provider unavailable")
	// ErrOCRFailed signals that every applicable extraction strategy failed.
	ErrOCRFailed = errors.New("ocr: all extraction strategies failed")
	// ErrUnsupportedFileType signals a file extension no provider accepts.
	ErrUnsupportedFileType = errors.New("ocr: unsupported file type")
	// errScannedPDF is returned by the text-layer extractor for image-only PDFs.
	errScannedPDF = errors.New("ocr: pdf has no usable text layer")
)

// Extraction method identifiers persisted with each receipt.
const (
	MethodTextract          = "textract"
	MethodTextractFallback  = "textract_fallback"
	MethodTesseract         = "tesseract"
	MethodPDFTextExtraction = "pdf_text_extraction"
)

// BoundingBox locates one OCR line on a page. Coordinates are normalized to
// [0,1] of the page regardless of provider.
type BoundingBox struct {
	Page       int     `json:"page"`
	LineNumber int     `json:"line_number"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Left       float64 `json:"left"`
	Top        float64 `json:"top"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// Result is the outcome of one OCR extraction.
type Result struct {
	Text          string
	Confidence    float64 // 0.0 to 1.0
	PageCount     int
	Method        string
	BoundingBoxes []BoundingBox
}

// Provider extracts text from a single file.
type Provider interface {
	ExtractText(ctx context.Context, path string) (*Result, error)
	SupportsFileType(path string) bool
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".heic": true, ".heif": true,
	".tiff": true, ".tif": true, ".bmp": true,
}

func isImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

func isPDF(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}
