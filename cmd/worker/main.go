package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/ThomasMcCrossin/curlys-books/config"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/categorization"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/ocr"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/parsers"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/pipeline"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/review"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/vendors"
	"github.com/ThomasMcCrossin/curlys-books/internal/infra/postgres"
	"github.com/ThomasMcCrossin/curlys-books/pkg/logger"
	"github.com/ThomasMcCrossin/curlys-books/pkg/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.9.0"
	"google.golang.org/grpc"
)

func main() {
	var (
		filePath  = flag.String("file", "", "path to the receipt file to process")
		entityArg = flag.String("entity", "corp", "business entity: corp or soleprop")
		sourceArg = flag.String("source", "manual", "upload source: pwa, email, drive, manual")
		receiptID = flag.String("receipt-id", "", "receipt UUID (generated when empty)")
	)
	flag.Parse()

	mainContext := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defaultLogger, loggerProvider, err := logger.NewObservableLogger(&cfg)
	if err != nil {
		slog.Warn("otlp log export unavailable, using local logger only", slog.String("error", err.Error()))
		defaultLogger = logger.NewLogger(&cfg)
	}
	slog.SetDefault(defaultLogger)

	defer func() {
		if loggerProvider != nil {
			if err := loggerProvider.Shutdown(mainContext); err != nil {
				slog.Error("failed to shutdown logger provider", slog.String("error", err.Error()))
			}
		}
	}()

	if *filePath == "" {
		slog.Error("no receipt file given, use -file")
		os.Exit(1)
	}

	conn, err := postgres.Init(cfg)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	metricExporter, err := otlpmetricgrpc.New(mainContext,
		otlpmetricgrpc.WithEndpoint(cfg.OtlpEndpoint),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithDialOption(grpc.WithUserAgent("curlys-books")),
	)
	if err != nil {
		slog.Error("failed to initialize otlp exporter", slog.String("error", err.Error()))
		os.Exit(1)
	}

	provider := metric.NewMeterProvider(metric.WithResource(resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("curlys-books"),
	)), metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(15*time.Second))))

	defer func() {
		if err := provider.Shutdown(mainContext); err != nil {
			slog.Error("failed to shutdown metric provider", slog.String("error", err.Error()))
		}
	}()

	if err := telemetry.InitBusinessMetrics(provider); err != nil {
		slog.Error("failed to initialize telemetry", slog.String("error", err.Error()))
		os.Exit(1)
	}

	instrumentedConn, err := telemetry.NewInstrumentedPool(provider, conn)
	if err != nil {
		slog.Error("failed to create instrumented pool", slog.String("error", err.Error()))
		os.Exit(1)
	}

	recognizerCfg := cfg.GetRecognizerConfig()

	ocrFactory := ocr.NewFactory(cfg.GetOCRConfig(), defaultLogger)
	identifier := vendors.NewIdentifier(vendors.DefaultRegistry(), defaultLogger)
	parserRegistry := parsers.NewRegistry(defaultLogger)

	cache := categorization.NewCache(instrumentedConn, defaultLogger)
	lookup := categorization.NewProductLookup(cfg.WebLookupEnabled,
		time.Duration(cfg.WebLookupTimeoutSeconds)*time.Second, defaultLogger)
	llmClient := categorization.NewAnthropicClient(recognizerCfg, defaultLogger)
	recognizer := categorization.NewRecognizer(recognizerCfg, llmClient, cache, lookup, defaultLogger)
	mapper := categorization.NewAccountMapper(cfg.GetCapitalizationThreshold(), defaultLogger)
	categorizer := categorization.NewService(recognizer, mapper, recognizerCfg, defaultLogger)

	repo := receipts.NewRepository(instrumentedConn, defaultLogger)
	reviewService := review.NewService(conn, repo, cache, defaultLogger)

	pipelineService := pipeline.NewService(conn, ocrFactory, identifier, parserRegistry,
		categorizer, repo, reviewService, defaultLogger)

	id := uuid.New()
	if *receiptID != "" {
		id, err = uuid.Parse(*receiptID)
		if err != nil {
			slog.Error("invalid receipt id", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	result, err := pipelineService.ProcessReceipt(mainContext, pipeline.Request{
		FilePath:  *filePath,
		Entity:    receipts.Entity(*entityArg),
		ReceiptID: id,
		Source:    receipts.Source(*sourceArg),
	})
	if err != nil {
		slog.Error("receipt processing failed",
			slog.String("receipt_id", id.String()),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("receipt processed",
		slog.String("receipt_id", result.ReceiptID.String()),
		slog.String("vendor", result.VendorGuess),
		slog.String("total", result.Total.StringFixed(2)),
		slog.Int("lines", result.LineCount),
		slog.String("status", string(result.Status)),
		slog.Int("cache_hits", result.CacheHits),
		slog.Int("ai_calls", result.AICalls),
		slog.String("ai_cost_usd", result.AICostUSD.String()))
}
