package categorization

import (
	"context"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

func newTestService(t *testing.T, llm LLMClient) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	recognizer, mock := newRecognizerWithMock(t, llm)
	cfg := testRecognizerConfig()
	mapper := NewAccountMapper(decimal.RequireFromString("2500.00"), slog.Default())
	return NewService(recognizer, mapper, cfg, slog.Default()), mock
}

func TestCategorizeLineCombinesStages(t *testing.T) {
	llm := &fakeLLM{response: `{"normalized_description": "Hot Rod Pepperoni Sticks 40 Count", "brand": "Hot Rod", "category": "retail_snack", "confidence": 0.92}`}
	service, mock := newTestService(t, llm)

	mock.ExpectQuery(`(?s)SELECT.*FROM shared\.product_mappings`).
		WithArgs(lookupHash("Costco Wholesale", "54491")).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`(?s)INSERT INTO shared\.product_mappings`).
		WithArgs(pgxmock.AnyArg(), "Costco Wholesale", "54491", "Hot Rod Pepperoni Sticks 40 Count",
			"", CategoryRetailSnack, pgxmock.AnyArg(), pgxmock.AnyArg(),
			lookupHash("Costco Wholesale", "54491")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	item, warning, err := service.CategorizeLine(context.Background(), "Costco Wholesale", strP("54491"), "HOT ROD 40CT", decimal.RequireFromString("14.99"))
	if err != nil {
		t.Fatalf("categorize failed: %v", err)
	}
	if warning != nil {
		t.Fatalf("unexpected warning: %+v", warning)
	}

	if item.ProductCategory != CategoryRetailSnack {
		t.Fatalf("category expected retail_snack, got %s", item.ProductCategory)
	}
	if item.AccountCode != "5031" {
		t.Fatalf("account expected 5031, got %s", item.AccountCode)
	}
	// Overall confidence is the Stage-1 value (mapper is deterministic).
	if item.Confidence != 0.92 {
		t.Fatalf("confidence expected 0.92, got %v", item.Confidence)
	}
	if item.RequiresReview {
		t.Fatal("0.92 confidence should clear the review threshold")
	}
}

func TestCategorizeLineFlagsLowConfidence(t *testing.T) {
	llm := &fakeLLM{response: `{"normalized_description": "East Coast Brand Product", "category": "food_pantry", "confidence": 0.65}`}
	service, mock := newTestService(t, llm)

	// Below the cache-write threshold: lookup only, no write-through.
	mock.ExpectQuery(`(?s)SELECT.*FROM shared\.product_mappings`).
		WithArgs(lookupHash("Gordon Food Service", "7654321")).
		WillReturnError(pgx.ErrNoRows)

	item, _, err := service.CategorizeLine(context.Background(), "Gordon Food Service", strP("7654321"), "EAST COAST", decimal.RequireFromString("35.00"))
	if err != nil {
		t.Fatalf("categorize failed: %v", err)
	}

	if !item.RequiresReview {
		t.Fatal("0.65 confidence must be flagged for review")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("low-confidence result must not be cached: %v", err)
	}
}

func TestCategorizeLineEquipmentCapitalization(t *testing.T) {
	llm := &fakeLLM{response: `{"normalized_description": "Commercial Chest Freezer", "category": "equipment", "confidence": 0.95}`}
	service, mock := newTestService(t, llm)

	mock.ExpectQuery(`(?s)SELECT.*FROM shared\.product_mappings`).
		WithArgs(lookupHash("Costco Wholesale", "88123")).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`(?s)INSERT INTO shared\.product_mappings`).
		WithArgs(pgxmock.AnyArg(), "Costco Wholesale", "88123", "Commercial Chest Freezer",
			"", CategoryEquipment, pgxmock.AnyArg(), pgxmock.AnyArg(),
			lookupHash("Costco Wholesale", "88123")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	item, _, err := service.CategorizeLine(context.Background(), "Costco Wholesale", strP("88123"), "CHEST FREEZER 25CF", decimal.RequireFromString("3499.99"))
	if err != nil {
		t.Fatalf("categorize failed: %v", err)
	}

	if item.AccountCode != "1500" {
		t.Fatalf("capitalized equipment expected 1500, got %s", item.AccountCode)
	}
	if !item.RequiresReview {
		t.Fatal("capitalization must force review even at high confidence")
	}
}

func TestCategorizeLineUnknownRoutesToPending(t *testing.T) {
	llm := &fakeLLM{response: `{"normalized_description": "???", "category": "unknown", "confidence": 0.3}`}
	service, mock := newTestService(t, llm)

	mock.ExpectQuery(`(?s)SELECT.*FROM shared\.product_mappings`).
		WithArgs(lookupHash("Costco Wholesale", "77777")).
		WillReturnError(pgx.ErrNoRows)

	item, _, err := service.CategorizeLine(context.Background(), "Costco Wholesale", strP("77777"), "XQZ 12", decimal.RequireFromString("9.99"))
	if err != nil {
		t.Fatalf("categorize failed: %v", err)
	}

	if item.AccountCode != "9100" {
		t.Fatalf("unknown expected 9100, got %s", item.AccountCode)
	}
	if !item.RequiresReview {
		t.Fatal("unknown must require review")
	}
}
