package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/categorization"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/ocr"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/parsers"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/review"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/vendors"
	"github.com/ThomasMcCrossin/curlys-books/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("pipeline-service")

// ocrLowConfidenceThreshold marks OCR output worth warning about.
const ocrLowConfidenceThreshold = 0.80

// Service runs the receipt ingestion pipeline: OCR, vendor identification,
// parsing, two-stage categorization, and a single-transaction save.
//
// One receipt runs straight through on one goroutine; the task runner above
// this provides inter-receipt parallelism.
type Service struct {
	db          *pgxpool.Pool
	ocrFactory  *ocr.Factory
	identifier  *vendors.Identifier
	parsers     *parsers.Registry
	categorizer *categorization.Service
	repo        *receipts.Repository
	review      *review.Service
	logger      *slog.Logger
}

func NewService(
	db *pgxpool.Pool,
	ocrFactory *ocr.Factory,
	identifier *vendors.Identifier,
	parserRegistry *parsers.Registry,
	categorizer *categorization.Service,
	repo *receipts.Repository,
	reviewService *review.Service,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:          db,
		ocrFactory:  ocrFactory,
		identifier:  identifier,
		parsers:     parserRegistry,
		categorizer: categorizer,
		repo:        repo,
		review:      reviewService,
		logger:      logger,
	}
}

// Request identifies one receipt to process.
type Request struct {
	FilePath    string
	Entity      receipts.Entity
	ReceiptID   uuid.UUID
	Source      receipts.Source
	ContentHash string
}

// ProcessReceipt runs the full pipeline for one receipt.
//
// Fatal conditions (no OCR text, repository failure, cancellation) abort and
// leave the receipt failed with no lines persisted. Everything else degrades
// into validation warnings on a review_required receipt.
func (s *Service) ProcessReceipt(ctx context.Context, req Request) (*receipts.ProcessingResult, error) {
	ctx, span := tracer.Start(ctx, "pipeline.ProcessReceipt")
	defer span.End()

	s.logger.Info("receipt processing started",
		"receipt_id", req.ReceiptID,
		"entity", req.Entity,
		"file", req.FilePath,
		"source", req.Source)

	// Step 1: OCR. No text via any strategy is fatal.
	ocrResult, err := s.ocrFactory.ExtractText(ctx, req.FilePath)
	if err != nil {
		s.markFailed(ctx, req)
		return nil, fmt.Errorf("ocr failed for receipt %s: %w", req.ReceiptID, err)
	}
	if strings.TrimSpace(ocrResult.Text) == "" {
		s.markFailed(ctx, req)
		return nil, fmt.Errorf("ocr produced no text for receipt %s: %w", req.ReceiptID, ocr.ErrOCRFailed)
	}

	telemetry.OCRCallsTotal.Add(ctx, 1, api.WithAttributes(attribute.String("method", ocrResult.Method)))

	// Step 1.5: normalized raster for the review UI. Best effort.
	if err := ocr.CreateNormalizedImage(req.FilePath, 800, s.logger); err != nil {
		s.logger.Warn("failed to create normalized image", "receipt_id", req.ReceiptID, "error", err)
	}

	// Step 2: vendor identification.
	match := s.identifier.Identify(ocrResult.Text)
	if match != nil && match.TypicalEntity != "" && match.TypicalEntity != string(req.Entity) {
		s.logger.Warn("entity mismatch",
			"receipt_id", req.ReceiptID,
			"uploaded_as", req.Entity,
			"vendor_typical", match.TypicalEntity,
			"vendor", match.CanonicalName)
	}

	// Step 3: parse. A vendor parser that errors degrades to the generic
	// parser rather than failing the receipt.
	parser := s.parsers.ForVendor(match, ocrResult.Text)
	rec, err := parser.Parse(ocrResult.Text, req.Entity)
	if err != nil {
		s.logger.Warn("vendor parser failed, falling back to generic",
			"receipt_id", req.ReceiptID,
			"parser", parser.Key(),
			"error", err)
		rec, err = s.parsers.Generic().Parse(ocrResult.Text, req.Entity)
		if err != nil {
			s.markFailed(ctx, req)
			return nil, fmt.Errorf("generic parser failed for receipt %s: %w", req.ReceiptID, err)
		}
	}

	rec.ReceiptID = req.ReceiptID
	rec.Source = req.Source
	rec.OCRMethod = ocrResult.Method
	rec.OCRConfidence = ocrResult.Confidence
	rec.PageCount = ocrResult.PageCount
	if req.ContentHash != "" {
		rec.ContentHash = &req.ContentHash
	}

	if match == nil {
		rec.AddWarning(receipts.ValidationWarning{
			Type:    receipts.WarningVendorUnknown,
			Message: "no vendor matched; generic parser used",
			Data:    map[string]any{"vendor_guess": rec.VendorGuess},
		})
	}
	if ocrResult.Confidence < ocrLowConfidenceThreshold {
		rec.AddWarning(receipts.ValidationWarning{
			Type:    receipts.WarningOCRLowConfidence,
			Message: fmt.Sprintf("ocr confidence %.2f below %.2f", ocrResult.Confidence, ocrLowConfidenceThreshold),
			Data:    map[string]any{"confidence": ocrResult.Confidence, "method": ocrResult.Method},
		})
	}

	vendorCanonical := rec.VendorGuess
	if match != nil {
		vendorCanonical = match.CanonicalName
	}

	// Step 4: categorize each line, sequentially per receipt. A recognizer
	// timeout degrades that line and processing continues.
	result := &receipts.ProcessingResult{
		ReceiptID:     req.ReceiptID,
		Entity:        req.Entity,
		VendorGuess:   rec.VendorGuess,
		OCRMethod:     ocrResult.Method,
		OCRConfidence: ocrResult.Confidence,
		AICostUSD:     decimal.Zero,
	}

	for i := range rec.Lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := &rec.Lines[i]
		if line.LineType != receipts.LineTypeItem && line.LineType != receipts.LineTypeFee {
			continue
		}
		if line.ItemDescription == "" && line.VendorSKU == nil {
			line.RequiresReview = true
			continue
		}

		categorized, warning, err := s.categorizer.CategorizeLine(ctx, vendorCanonical, line.VendorSKU, lineDescription(line), line.LineTotal)
		if err != nil {
			// Only context cancellation propagates out of categorization.
			return nil, err
		}
		if warning != nil {
			rec.AddWarning(*warning)
		}

		line.NormalizedDescription = &categorized.NormalizedDescription
		line.ProductCategory = &categorized.ProductCategory
		line.Brand = categorized.Brand
		line.AccountCode = &categorized.AccountCode
		confidence := categorized.Confidence
		line.Confidence = &confidence
		source := categorized.Source
		line.CategorizationSource = &source
		line.RequiresReview = categorized.RequiresReview
		line.AICostUSD = categorized.AICostUSD

		if categorized.Source == categorization.SourceCache {
			result.CacheHits++
			telemetry.CacheHitsTotal.Add(ctx, 1)
		} else {
			result.AICalls++
			telemetry.CacheMissesTotal.Add(ctx, 1)
		}
		if categorized.AICostUSD != nil {
			result.AICostUSD = result.AICostUSD.Add(*categorized.AICostUSD)
		}
	}

	// Step 5: bounding boxes. Images without them get flagged so the review
	// UI knows it cannot draw crop overlays.
	if len(ocrResult.BoundingBoxes) > 0 {
		for i := range rec.Lines {
			rec.Lines[i].BoundingBox = matchLineToBoundingBox(lineDescription(&rec.Lines[i]), ocrResult.BoundingBoxes)
		}
	} else if isImagePath(req.FilePath) {
		rec.AddWarning(receipts.ValidationWarning{
			Type:    receipts.WarningBoundingBoxesUnavailable,
			Message: "no bounding boxes available for image receipt",
			Data:    map[string]any{"method": ocrResult.Method},
		})
	}

	status := receipts.StatusApproved
	if len(rec.ValidationWarnings) > 0 || anyLineRequiresReview(rec.Lines) {
		status = receipts.StatusReviewRequired
	}

	// Step 6: persist receipt and lines in one transaction. A cancelled
	// pipeline never commits partial state.
	tx, err := s.db.Begin(ctx)
	if err != nil {
		s.markFailed(ctx, req)
		return nil, fmt.Errorf("failed to begin save transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.SaveReceipt(ctx, tx, rec, status); err != nil {
		s.markFailed(ctx, req)
		return nil, err
	}
	if err := s.repo.SaveLines(ctx, tx, req.Entity, req.ReceiptID, rec.Lines); err != nil {
		s.markFailed(ctx, req)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		s.markFailed(ctx, req)
		return nil, fmt.Errorf("failed to commit receipt save: %w", err)
	}

	// Step 7: re-materialize the review projection.
	if err := s.review.Refresh(ctx); err != nil {
		s.logger.Error("review projection refresh failed", "receipt_id", req.ReceiptID, "error", err)
	}

	result.Total = rec.Total
	result.LineCount = len(rec.Lines)
	result.Status = status
	result.Warnings = rec.ValidationWarnings

	telemetry.ReceiptsProcessedTotal.Add(ctx, 1, api.WithAttributes(
		attribute.String("entity", string(req.Entity)),
		attribute.String("status", string(status)),
	))

	s.logger.Info("receipt processing complete",
		"receipt_id", req.ReceiptID,
		"vendor", rec.VendorGuess,
		"total", rec.Total.StringFixed(2),
		"lines", len(rec.Lines),
		"status", status,
		"cache_hits", result.CacheHits,
		"ai_calls", result.AICalls,
		"ai_cost_usd", result.AICostUSD.String(),
		"warnings", len(rec.ValidationWarnings))

	return result, nil
}

// markFailed records the fatal outcome on the receipt row. Best effort: the
// row may not exist yet when OCR fails on first processing.
func (s *Service) markFailed(ctx context.Context, req Request) {
	if ctx.Err() != nil {
		return
	}
	if err := s.repo.SetStatus(ctx, s.db, req.Entity, req.ReceiptID, receipts.StatusFailed); err != nil {
		s.logger.Warn("could not mark receipt failed", "receipt_id", req.ReceiptID, "error", err)
	}
}

func lineDescription(line *receipts.ReceiptLine) string {
	if line.ItemDescription != "" {
		return line.ItemDescription
	}
	return line.RawText
}

func anyLineRequiresReview(lines []receipts.ReceiptLine) bool {
	for _, line := range lines {
		if line.RequiresReview {
			return true
		}
	}
	return false
}

func isImagePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".heic", ".heif", ".tiff", ".tif", ".bmp":
		return true
	}
	return false
}
