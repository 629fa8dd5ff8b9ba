package categorization

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThomasMcCrossin/curlys-books/config"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

type fakeLLM struct {
	response string
	err      error
	blocks   bool // wait for ctx cancellation instead of answering
	calls    int
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (*CompletionResult, error) {
	f.calls++
	if f.blocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &CompletionResult{Text: f.response, InputTokens: 500, OutputTokens: 60}, nil
}

func testRecognizerConfig() config.RecognizerConfig {
	return config.RecognizerConfig{
		Model:               "claude-sonnet-4-5",
		MaxTokens:           1024,
		InputCostPer1K:      decimal.RequireFromString("0.003"),
		OutputCostPer1K:     decimal.RequireFromString("0.015"),
		CallTimeout:         time.Second,
		ReviewThreshold:     0.80,
		CacheWriteThreshold: 0.80,
	}
}

func newRecognizerWithMock(t *testing.T, llm LLMClient) (*Recognizer, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	cache := NewCache(mock, slog.Default())
	return NewRecognizer(testRecognizerConfig(), llm, cache, nil, slog.Default()), mock
}

func strP(s string) *string { return &s }

func TestRecognizeColdCacheCallsAIAndWritesThrough(t *testing.T) {
	llm := &fakeLLM{response: `{"normalized_description": "Hot Rod Pepperoni Sticks 40 Count", "brand": "Hot Rod", "product_type": "meat snack", "category": "retail_snack", "confidence": 0.92}`}
	recognizer, mock := newRecognizerWithMock(t, llm)

	mock.ExpectQuery(`(?s)SELECT.*FROM shared\.product_mappings`).
		WithArgs(lookupHash("Costco Wholesale", "54491")).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`(?s)INSERT INTO shared\.product_mappings`).
		WithArgs(pgxmock.AnyArg(), "Costco Wholesale", "54491", "Hot Rod Pepperoni Sticks 40 Count",
			"", CategoryRetailSnack, pgxmock.AnyArg(), pgxmock.AnyArg(),
			lookupHash("Costco Wholesale", "54491")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	item, warning, err := recognizer.Recognize(context.Background(), "Costco Wholesale", strP("54491"), "HOT ROD 40CT")
	if err != nil {
		t.Fatalf("recognize failed: %v", err)
	}
	if warning != nil {
		t.Fatalf("unexpected warning: %+v", warning)
	}
	if item.Source != SourceAI {
		t.Fatalf("expected ai source, got %s", item.Source)
	}
	if item.ProductCategory != CategoryRetailSnack {
		t.Fatalf("expected retail_snack, got %s", item.ProductCategory)
	}
	if item.Confidence != 0.92 {
		t.Fatalf("expected confidence 0.92, got %v", item.Confidence)
	}
	if item.AICostUSD == nil || !item.AICostUSD.IsPositive() {
		t.Fatalf("expected positive ai cost, got %v", item.AICostUSD)
	}
	if llm.calls != 1 {
		t.Fatalf("expected one llm call, got %d", llm.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("cache interactions: %v", err)
	}
}

func TestRecognizeWarmCacheSkipsAI(t *testing.T) {
	llm := &fakeLLM{response: `unused`}
	recognizer, mock := newRecognizerWithMock(t, llm)

	now := time.Now()
	confidence := decimal.RequireFromString("0.92")
	rows := pgxmock.NewRows([]string{
		"id", "vendor_canonical", "sku", "description_normalized", "account_code",
		"product_category", "brand", "times_seen", "user_confidence", "last_seen",
		"created_at", "updated_at",
	}).AddRow(
		"8e6f1f2a-9a3f-4a59-9b1f-0c5b1c9e0d11", "Costco Wholesale", "54491",
		"Hot Rod Pepperoni Sticks 40 Count", "5031", "retail_snack", strP("Hot Rod"),
		1, &confidence, now, now, now,
	)

	mock.ExpectQuery(`(?s)SELECT.*FROM shared\.product_mappings`).
		WithArgs(lookupHash("Costco Wholesale", "54491")).
		WillReturnRows(rows)
	mock.ExpectExec(`(?s)UPDATE shared\.product_mappings.*times_seen = times_seen \+ 1`).
		WithArgs(lookupHash("Costco Wholesale", "54491")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	item, warning, err := recognizer.Recognize(context.Background(), "Costco Wholesale", strP("54491"), "HOT ROD 40CT")
	if err != nil {
		t.Fatalf("recognize failed: %v", err)
	}
	if warning != nil {
		t.Fatalf("unexpected warning: %+v", warning)
	}
	if item.Source != SourceCache {
		t.Fatalf("expected cache source, got %s", item.Source)
	}
	if item.AICostUSD != nil {
		t.Fatalf("cache hit must cost nothing, got %v", item.AICostUSD)
	}
	if item.Confidence != 0.92 {
		t.Fatalf("expected stored confidence 0.92, got %v", item.Confidence)
	}
	if llm.calls != 0 {
		t.Fatalf("llm should not be called on cache hit, got %d calls", llm.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("cache interactions: %v", err)
	}
}

func TestRecognizeMalformedOutputDegrades(t *testing.T) {
	llm := &fakeLLM{response: "I think this is probably a snack of some kind."}
	recognizer, mock := newRecognizerWithMock(t, llm)

	mock.ExpectQuery(`(?s)SELECT.*FROM shared\.product_mappings`).
		WithArgs(lookupHash("Costco Wholesale", "54491")).
		WillReturnError(pgx.ErrNoRows)

	item, warning, err := recognizer.Recognize(context.Background(), "Costco Wholesale", strP("54491"), "HOT ROD 40CT")
	if err != nil {
		t.Fatalf("recognize failed: %v", err)
	}
	if item.ProductCategory != CategoryUnknown {
		t.Fatalf("expected unknown, got %s", item.ProductCategory)
	}
	if item.Confidence != 0.0 {
		t.Fatalf("expected zero confidence, got %v", item.Confidence)
	}
	if warning == nil || warning.Type != receipts.WarningRecognizerOutputInvalid {
		t.Fatalf("expected recognizer_output_invalid warning, got %+v", warning)
	}
	// No cache write for a degraded result.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("cache interactions: %v", err)
	}
}

func TestRecognizeTimeoutDegrades(t *testing.T) {
	llm := &fakeLLM{blocks: true}
	recognizer, mock := newRecognizerWithMock(t, llm)
	recognizer.cfg.CallTimeout = 20 * time.Millisecond

	mock.ExpectQuery(`(?s)SELECT.*FROM shared\.product_mappings`).
		WithArgs(lookupHash("Costco Wholesale", "99999")).
		WillReturnError(pgx.ErrNoRows)

	item, warning, err := recognizer.Recognize(context.Background(), "Costco Wholesale", strP("99999"), "MYSTERY ITEM")
	if err != nil {
		t.Fatalf("recognize failed: %v", err)
	}
	if item.ProductCategory != CategoryUnknown {
		t.Fatalf("expected unknown after timeout, got %s", item.ProductCategory)
	}
	if warning == nil || warning.Type != receipts.WarningRecognizerTimeout {
		t.Fatalf("expected recognizer_timeout warning, got %+v", warning)
	}
}

func TestRecognizeCancelledContextPropagates(t *testing.T) {
	llm := &fakeLLM{response: "unused"}
	recognizer, mock := newRecognizerWithMock(t, llm)

	mock.ExpectQuery(`(?s)SELECT.*FROM shared\.product_mappings`).
		WithArgs(lookupHash("Costco Wholesale", "54491")).
		WillReturnError(pgx.ErrNoRows)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	llm.blocks = true
	if _, _, err := recognizer.Recognize(ctx, "Costco Wholesale", strP("54491"), "HOT ROD 40CT"); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestParseRecognizerOutputMarkdownFences(t *testing.T) {
	text := "```json\n{\"normalized_description\": \"Gatorade Cool Blue\", \"brand\": \"Gatorade\", \"category\": \"beverage_sports\", \"confidence\": 0.99}\n```"
	item, err := parseRecognizerOutput(text, "GATORADE CB")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if item.ProductCategory != CategoryBeverageSports {
		t.Fatalf("expected beverage_sports, got %s", item.ProductCategory)
	}
}

func TestParseRecognizerOutputRejectsForeignCategory(t *testing.T) {
	item, err := parseRecognizerOutput(`{"normalized_description": "X", "category": "beverages_pop", "confidence": 0.9}`, "X")
	if err == nil {
		t.Fatal("expected error for category outside vocabulary")
	}
	if item.ProductCategory != CategoryUnknown {
		t.Fatalf("expected unknown fallback, got %s", item.ProductCategory)
	}
}
