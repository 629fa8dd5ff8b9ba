package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/ThomasMcCrossin/curlys-books/config"
)

// Factory selects the extraction strategy per file type.
//
// Images: Textract only. PDFs: embedded text layer, then Tesseract when its
// confidence clears the configured threshold, then Textract on a 300 DPI
// raster of the first page.
//
// A single long-lived Factory is shared by all pipeline runs; providers are
// constructed lazily and are stateless with respect to calls.
type Factory struct {
	cfg    config.OCRConfig
	logger *slog.Logger

	mu               sync.Mutex
	textractProvider *TextractProvider
	textractErr      error
	textractOnce     bool

	tesseractProvider *TesseractProvider
	tesseractErr      error
	tesseractOnce     bool

	pdfTextProvider *PDFTextProvider
}

func NewFactory(cfg config.OCRConfig, logger *slog.Logger) *Factory {
	logger.Info("ocr factory initialized",
		"backend", cfg.Backend,
		"textract_enabled", cfg.TextractEnabled,
		"tesseract_threshold", cfg.TesseractMinConfidence)

	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

func (f *Factory) tesseractEnabled() bool {
	switch f.cfg.Backend {
	case "textract":
		return false
	default: // auto, tesseract
		return true
	}
}

func (f *Factory) textract(ctx context.Context) (*TextractProvider, error) {
	if !f.cfg.TextractEnabled {
		return nil, fmt.Errorf("%w: textract disabled", ErrOCRUnavailable)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.textractOnce {
		f.textractProvider, f.textractErr = NewTextractProvider(ctx, f.cfg.TextractRegion, f.logger)
		f.textractOnce = true
	}
	if f.textractErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, f.textractErr)
	}
	return f.textractProvider, nil
}

func (f *Factory) tesseract() (*TesseractProvider, error) {
	if !f.tesseractEnabled() {
		return nil, fmt.Errorf("%w: tesseract disabled", ErrOCRUnavailable)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.tesseractOnce {
		f.tesseractProvider, f.tesseractErr = NewTesseractProvider(f.cfg.TesseractPath, f.logger)
		f.tesseractOnce = true
	}
	if f.tesseractErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, f.tesseractErr)
	}
	return f.tesseractProvider, nil
}

func (f *Factory) pdfText() *PDFTextProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pdfTextProvider == nil {
		f.pdfTextProvider = NewPDFTextProvider(f.logger)
	}
	return f.pdfTextProvider
}

// ExtractText extracts text from a receipt file using the strategy for its
// file type. Each provider call runs under the configured OCR timeout.
func (f *Factory) ExtractText(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %w", err)
	}

	f.logger.Info("ocr extraction started",
		"file", path,
		"size_bytes", info.Size())

	switch {
	case isImage(path):
		return f.extractFromImage(ctx, path)
	case isPDF(path):
		return f.extractFromPDF(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, path)
	}
}

func (f *Factory) extractFromImage(ctx context.Context, path string) (*Result, error) {
	provider, err := f.textract(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, f.cfg.CallTimeout)
	defer cancel()

	result, err := provider.ExtractText(callCtx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}
	return result, nil
}

func (f *Factory) extractFromPDF(ctx context.Context, path string) (*Result, error) {
	// Stage 1: embedded text layer. Free and exact for text-bearing PDFs.
	callCtx, cancel := context.WithTimeout(ctx, f.cfg.CallTimeout)
	result, err := f.pdfText().ExtractText(callCtx, path)
	cancel()
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.logger.Info("pdf requires ocr", "reason", err.Error())

	// Stage 2: Tesseract, gated on its confidence threshold.
	if provider, terr := f.tesseract(); terr == nil {
		callCtx, cancel := context.WithTimeout(ctx, f.cfg.CallTimeout)
		result, err = provider.ExtractText(callCtx, path)
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil {
			if result.Confidence >= f.cfg.TesseractMinConfidence {
				return result, nil
			}
			f.logger.Warn("tesseract confidence below threshold",
				"confidence", result.Confidence,
				"threshold", f.cfg.TesseractMinConfidence)
		} else {
			f.logger.Error("tesseract failed", "error", err)
		}
	} else {
		f.logger.Info("tesseract unavailable", "reason", terr.Error())
	}

	// Stage 3: Textract on a raster of the first page.
	provider, err := f.textract(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: no remaining strategy for scanned pdf", ErrOCRFailed)
	}

	pages, cleanup, err := rasterizePDF(ctx, path, 300, false)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf rasterization failed: %v", ErrOCRFailed, err)
	}
	defer cleanup()

	imageBytes, err := os.ReadFile(pages[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRFailed, err)
	}

	callCtx, cancel = context.WithTimeout(ctx, f.cfg.CallTimeout)
	defer cancel()

	result, err = provider.ExtractFromBytes(callCtx, imageBytes)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: textract fallback failed: %v", ErrOCRFailed, err)
	}

	f.logger.Info("textract fallback complete",
		"chars", len(result.Text),
		"confidence", result.Confidence)

	return result, nil
}
