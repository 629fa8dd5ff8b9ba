package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

const pageBreakMarker = "\n\n--- PAGE BREAK ---\n\n"

// Minimum embedded text for a PDF to count as text-bearing. Below this the
// PDF is treated as scanned and handed to OCR.
const (
	minPDFTextChars = 50
	minPDFTextWords = 10
)

// PDFTextProvider reads the embedded text layer of text-bearing PDFs.
// No OCR involved, so confidence is 1.0.
type PDFTextProvider struct {
	logger *slog.Logger
}

func NewPDFTextProvider(logger *slog.Logger) *PDFTextProvider {
	return &PDFTextProvider{logger: logger}
}

func (p *PDFTextProvider) SupportsFileType(path string) bool {
	return isPDF(path)
}

func (p *PDFTextProvider) ExtractText(ctx context.Context, path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %w", err)
	}

	if !p.SupportsFileType(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, path)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	defer f.Close()

	pageCount := reader.NumPage()
	pageTexts := make([]string, 0, pageCount)

	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			pageTexts = append(pageTexts, "")
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Warn("pdf page text extraction failed", "page", i, "error", err)
			pageTexts = append(pageTexts, "")
			continue
		}
		pageTexts = append(pageTexts, text)
	}

	combined := strings.Join(pageTexts, pageBreakMarker)
	charCount := len(strings.TrimSpace(combined))
	wordCount := len(strings.Fields(combined))

	if charCount < minPDFTextChars || wordCount < minPDFTextWords {
		return nil, fmt.Errorf("%w: %d words, %d chars", errScannedPDF, wordCount, charCount)
	}

	p.logger.Info("pdf text extracted",
		"pages", pageCount,
		"chars", charCount,
		"words", wordCount)

	return &Result{
		Text:       combined,
		Confidence: 1.0,
		PageCount:  pageCount,
		Method:     MethodPDFTextExtraction,
	}, nil
}
