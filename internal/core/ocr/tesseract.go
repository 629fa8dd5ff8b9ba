package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// TesseractProvider OCRs scanned PDFs with the system tesseract binary.
// Optional dependency: construction fails when no binary is found, and the
// factory falls back to Textract.
//
// Each PDF page is rasterized at 300 DPI with pdftoppm, then OCR'd with
// tesseract's TSV output so per-word confidences are available.
type TesseractProvider struct {
	tesseractPath string
	logger        *slog.Logger
}

func NewTesseractProvider(tesseractPath string, logger *slog.Logger) (*TesseractProvider, error) {
	if tesseractPath == "" {
		found, err := exec.LookPath("tesseract")
		if err != nil {
			return nil, fmt.Errorf("tesseract binary not found: %w", err)
		}
		tesseractPath = found
	} else if _, err := os.Stat(tesseractPath); err != nil {
		return nil, fmt.Errorf("tesseract binary not found at %s: %w", tesseractPath, err)
	}

	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, fmt.Errorf("pdftoppm binary not found (required to rasterize PDFs): %w", err)
	}

	logger.Info("tesseract provider initialized", "binary", tesseractPath)

	return &TesseractProvider{tesseractPath: tesseractPath, logger: logger}, nil
}

func (p *TesseractProvider) SupportsFileType(path string) bool {
	return isPDF(path)
}

func (p *TesseractProvider) ExtractText(ctx context.Context, path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %w", err)
	}

	if !p.SupportsFileType(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, path)
	}

	pages, cleanup, err := rasterizePDF(ctx, path, 300, true)
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize pdf: %w", err)
	}
	defer cleanup()

	var (
		pageTexts       []string
		confidenceSum   float64
		confidencePages int
	)

	for pageNum, pagePath := range pages {
		text, confidence, err := p.ocrPage(ctx, pagePath)
		if err != nil {
			return nil, fmt.Errorf("tesseract failed on page %d: %w", pageNum+1, err)
		}

		p.logger.Info("tesseract page complete",
			"page", pageNum+1,
			"confidence", confidence,
			"chars", len(text))

		pageTexts = append(pageTexts, text)
		confidenceSum += confidence
		confidencePages++
	}

	overall := 0.0
	if confidencePages > 0 {
		overall = confidenceSum / float64(confidencePages)
	}

	return &Result{
		Text:       strings.Join(pageTexts, pageBreakMarker),
		Confidence: overall,
		PageCount:  len(pages),
		Method:     MethodTesseract,
	}, nil
}

// ocrPage runs tesseract in TSV mode on one page image and returns the
// reconstructed text plus the mean word confidence in [0,1].
func (p *TesseractProvider) ocrPage(ctx context.Context, imagePath string) (string, float64, error) {
	cmd := exec.CommandContext(ctx, p.tesseractPath, imagePath, "stdout", "--psm", "6", "tsv")
	out, err := cmd.Output()
	if err != nil {
		return "", 0, fmt.Errorf("tesseract exec failed: %w", err)
	}
	return parseTesseractTSV(string(out))
}

// parseTesseractTSV reconstructs line text and averages word confidences
// from tesseract's TSV output. Rows with conf == -1 (structural rows) and
// empty text are excluded from the confidence mean.
func parseTesseractTSV(tsv string) (string, float64, error) {
	rows := strings.Split(tsv, "\n")
	if len(rows) < 2 {
		return "", 0, nil
	}

	type lineKey struct{ block, par, line int }
	lines := make(map[lineKey][]string)
	var keys []lineKey

	var confidenceSum float64
	var confidenceN int

	for _, row := range rows[1:] {
		fields := strings.Split(row, "\t")
		if len(fields) < 12 {
			continue
		}

		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil {
			continue
		}
		word := strings.TrimSpace(fields[11])
		if conf < 0 || word == "" {
			continue
		}

		block, _ := strconv.Atoi(fields[2])
		par, _ := strconv.Atoi(fields[3])
		line, _ := strconv.Atoi(fields[4])
		key := lineKey{block, par, line}
		if _, seen := lines[key]; !seen {
			keys = append(keys, key)
		}
		lines[key] = append(lines[key], word)

		confidenceSum += conf
		confidenceN++
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].block != keys[j].block {
			return keys[i].block < keys[j].block
		}
		if keys[i].par != keys[j].par {
			return keys[i].par < keys[j].par
		}
		return keys[i].line < keys[j].line
	})

	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Join(lines[key], " "))
	}

	confidence := 0.0
	if confidenceN > 0 {
		confidence = confidenceSum / float64(confidenceN) / 100
	}

	return sb.String(), confidence, nil
}

// rasterizePDF converts PDF pages to images with pdftoppm. When allPages is
// false only the first page is rendered. Returns page image paths in order
// plus a cleanup func for the temp directory.
func rasterizePDF(ctx context.Context, pdfPath string, dpi int, allPages bool) ([]string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "crb-ocr-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(dpi), "-gray", "-png"}
	if !allPages {
		args = append(args, "-f", "1", "-l", "1")
	}
	args = append(args, pdfPath, prefix)

	cmd := exec.CommandContext(ctx, "pdftoppm", args...)
	if err := cmd.Run(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("pdftoppm failed: %w", err)
	}

	matches, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(matches) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("pdftoppm produced no pages")
	}
	sort.Strings(matches)

	return matches, cleanup, nil
}
