package parsers

import (
	"testing"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/shopspring/decimal"
)

const superstoreReceipt = `ATLANTIC SUPERSTORE
2025-02-10
TRANS# 4521
06038364441 NN COLA 12PK H 5.49
06038311223 PC LEMONADE  4.99
SUBTOTAL 10.48
HST 0.82
TOTAL 11.30
`

func TestSuperstoreParse(t *testing.T) {
	parser := &SuperstoreParser{}

	if !parser.DetectFormat(superstoreReceipt) {
		t.Fatal("expected superstore format detection")
	}

	rec, err := parser.Parse(superstoreReceipt, receipts.EntityCorp)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if got := rec.PurchaseDate.Format("2006-01-02"); got != "2025-02-10" {
		t.Fatalf("date expected 2025-02-10, got %s", got)
	}
	if rec.InvoiceNumber == nil || *rec.InvoiceNumber != "4521" {
		t.Fatalf("transaction expected 4521, got %v", rec.InvoiceNumber)
	}
	if !rec.Total.Equal(decimal.RequireFromString("11.30")) {
		t.Fatalf("total expected 11.30, got %s", rec.Total)
	}

	if len(rec.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(rec.Lines))
	}

	// H tax code marks the line HST-taxable; the bare line is exempt.
	if rec.Lines[0].TaxFlag == nil || *rec.Lines[0].TaxFlag != receipts.TaxFlagTaxable {
		t.Fatal("H-coded line expected taxable")
	}
	if rec.Lines[1].TaxFlag == nil || *rec.Lines[1].TaxFlag != receipts.TaxFlagExempt {
		t.Fatal("uncoded line expected exempt")
	}

	if rec.Lines[0].UPC == nil || *rec.Lines[0].UPC != "06038364441" {
		t.Fatalf("upc expected 06038364441, got %v", rec.Lines[0].UPC)
	}
}

// A trailing E on the price column is the OCR digit confusion for 9.
func TestSuperstoreOCRDigitRepair(t *testing.T) {
	text := `ATLANTIC SUPERSTORE
2025-02-10
06038364441 NN CHIPS H 2.9E
SUBTOTAL 2.99
HST 0.45
TOTAL 3.44
`
	rec, err := (&SuperstoreParser{}).Parse(text, receipts.EntityCorp)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(rec.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(rec.Lines))
	}
	if !rec.Lines[0].LineTotal.Equal(decimal.RequireFromString("2.99")) {
		t.Fatalf("repaired price expected 2.99, got %s", rec.Lines[0].LineTotal)
	}
}
