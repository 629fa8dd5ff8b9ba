package categorization

import (
	"context"
	"log/slog"

	"github.com/ThomasMcCrossin/curlys-books/config"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("categorization-service")

// Service orchestrates the two categorization stages for receipt lines.
type Service struct {
	recognizer *Recognizer
	mapper     *AccountMapper
	cfg        config.RecognizerConfig
	logger     *slog.Logger
}

func NewService(recognizer *Recognizer, mapper *AccountMapper, cfg config.RecognizerConfig, logger *slog.Logger) *Service {
	return &Service{
		recognizer: recognizer,
		mapper:     mapper,
		cfg:        cfg,
		logger:     logger,
	}
}

// CategorizeLine runs both stages for one line item. The returned warning,
// when non-nil, belongs on the parent receipt.
func (s *Service) CategorizeLine(ctx context.Context, vendor string, sku *string, rawDescription string, lineTotal decimal.Decimal) (*CategorizedLineItem, *receipts.ValidationWarning, error) {
	ctx, span := tracer.Start(ctx, "categorization.CategorizeLine")
	defer span.End()

	recognized, warning, err := s.recognizer.Recognize(ctx, vendor, sku, rawDescription)
	if err != nil {
		return nil, nil, err
	}

	mapping := s.mapper.Map(recognized.ProductCategory, lineTotal)

	// Overall confidence is the weaker stage; the mapper is deterministic so
	// in practice this is the Stage-1 confidence.
	confidence := recognized.Confidence
	if mapping.Confidence < confidence {
		confidence = mapping.Confidence
	}

	requiresReview := mapping.RequiresReview ||
		recognized.Confidence < s.cfg.ReviewThreshold ||
		recognized.ProductCategory == CategoryUnknown

	result := &CategorizedLineItem{
		Vendor:                vendor,
		SKU:                   sku,
		RawDescription:        rawDescription,
		NormalizedDescription: recognized.NormalizedDescription,
		ProductCategory:       recognized.ProductCategory,
		Brand:                 recognized.Brand,
		AccountCode:           mapping.AccountCode,
		AccountName:           mapping.AccountName,
		Source:                recognized.Source,
		Confidence:            confidence,
		RequiresReview:        requiresReview,
		AICostUSD:             recognized.AICostUSD,
	}

	s.logger.Info("line categorized",
		"vendor", vendor,
		"sku", skuOrEmpty(sku),
		"category", result.ProductCategory,
		"account", result.AccountCode,
		"source", result.Source,
		"confidence", result.Confidence,
		"requires_review", result.RequiresReview)

	return result, warning, nil
}
