package telemetry

import (
	"log/slog"

	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Business metrics for application-level monitoring
var (
	// Receipt pipeline metrics
	ReceiptsProcessedTotal api.Int64Counter
	ReceiptsFailedTotal    api.Int64Counter
	OCRCallsTotal          api.Int64Counter
	ParserFallbacksTotal   api.Int64Counter

	// Categorization metrics
	CacheHitsTotal   api.Int64Counter
	CacheMissesTotal api.Int64Counter
	AICostUSDTotal   api.Float64Counter
	RecognizerErrors api.Int64Counter

	// Review queue metrics
	ReviewActionsTotal api.Int64Counter
	ReviewQueueDepth   api.Int64UpDownCounter

	// Error tracking
	ApplicationErrorsTotal api.Int64Counter
	DatabaseErrorsTotal    api.Int64Counter
)

// InitBusinessMetrics initializes all business-level metrics
func InitBusinessMetrics(provider *metric.MeterProvider) error {
	meter := provider.Meter("business")

	var err error

	// Receipt pipeline metrics
	ReceiptsProcessedTotal, err = meter.Int64Counter("receipts.processed.total",
		api.WithDescription("Total receipts processed by entity and outcome status"))
	if err != nil {
		return err
	}

	ReceiptsFailedTotal, err = meter.Int64Counter("receipts.failed.total",
		api.WithDescription("Total receipts that failed fatally by reason"))
	if err != nil {
		return err
	}

	OCRCallsTotal, err = meter.Int64Counter("ocr.calls.total",
		api.WithDescription("Total OCR extractions by method"))
	if err != nil {
		return err
	}

	ParserFallbacksTotal, err = meter.Int64Counter("parser.fallbacks.total",
		api.WithDescription("Total vendor parser failures that fell back to the generic parser"))
	if err != nil {
		return err
	}

	// Categorization metrics
	CacheHitsTotal, err = meter.Int64Counter("categorization.cache.hits.total",
		api.WithDescription("Total line items categorized from the product cache"))
	if err != nil {
		return err
	}

	CacheMissesTotal, err = meter.Int64Counter("categorization.cache.misses.total",
		api.WithDescription("Total line items that required a recognizer call"))
	if err != nil {
		return err
	}

	AICostUSDTotal, err = meter.Float64Counter("categorization.ai.cost.usd.total",
		api.WithDescription("Cumulative recognizer spend in USD"))
	if err != nil {
		return err
	}

	RecognizerErrors, err = meter.Int64Counter("categorization.recognizer.errors.total",
		api.WithDescription("Total recognizer timeouts and malformed outputs"))
	if err != nil {
		return err
	}

	// Review queue metrics
	ReviewActionsTotal, err = meter.Int64Counter("review.actions.total",
		api.WithDescription("Total review actions by type (approve, reject, correct)"))
	if err != nil {
		return err
	}

	ReviewQueueDepth, err = meter.Int64UpDownCounter("review.queue.depth",
		api.WithDescription("Number of reviewable items awaiting action"))
	if err != nil {
		return err
	}

	// Error Metrics
	ApplicationErrorsTotal, err = meter.Int64Counter("application.errors.total",
		api.WithDescription("Total application errors by component and type"))
	if err != nil {
		return err
	}

	DatabaseErrorsTotal, err = meter.Int64Counter("database.errors.total",
		api.WithDescription("Total database errors by operation and type"))
	if err != nil {
		return err
	}

	slog.Info("Business metrics initialized successfully")
	return nil
}
