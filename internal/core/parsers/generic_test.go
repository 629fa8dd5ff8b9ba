package parsers

import (
	"testing"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/shopspring/decimal"
)

func TestGenericAlwaysDetects(t *testing.T) {
	if !(&GenericParser{}).DetectFormat("anything at all") {
		t.Fatal("generic parser must always match")
	}
}

func TestGenericBackCalculatesHST(t *testing.T) {
	text := `CORNER MARKET INC.
2025-03-01
COFFEE LARGE 2.30
MUFFIN 2.30
TOTAL 5.29
`
	rec, err := (&GenericParser{}).Parse(text, receipts.EntitySoleprop)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if !rec.Total.Equal(decimal.RequireFromString("5.29")) {
		t.Fatalf("total expected 5.29, got %s", rec.Total)
	}
	// No printed subtotal or tax: back-calculated at 15% HST.
	if !rec.Subtotal.Equal(decimal.RequireFromString("4.60")) {
		t.Fatalf("subtotal expected 4.60, got %s", rec.Subtotal)
	}
	if !rec.TaxTotal.Equal(decimal.RequireFromString("0.69")) {
		t.Fatalf("tax expected 0.69, got %s", rec.TaxTotal)
	}

	if len(rec.Lines) != 2 {
		t.Fatalf("expected 2 best-effort lines, got %d", len(rec.Lines))
	}
	if rec.Entity != receipts.EntitySoleprop {
		t.Fatalf("entity must pass through, got %s", rec.Entity)
	}
}

func TestGenericFooterLinesExcluded(t *testing.T) {
	text := `SHOP
2025-03-01
WIDGET 9.99
SUBTOTAL 9.99
HST 1.50
TOTAL 11.49
CASH 20.00
CHANGE 8.51
`
	rec, err := (&GenericParser{}).Parse(text, receipts.EntityCorp)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(rec.Lines) != 1 {
		t.Fatalf("expected only the widget line, got %d", len(rec.Lines))
	}
}
