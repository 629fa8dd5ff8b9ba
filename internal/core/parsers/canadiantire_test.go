package parsers

import (
	"testing"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/shopspring/decimal"
)

const canadianTireReturn = `CANADIAN TIRE
TRIANGLE REWARDS
ORIG TRN ID: 00123456AB
ORIG PURCHASE DATE: 06/14/2025
-2X063-0806-4 COUPLING, GARDEN  $ -26.38
@ $ -13.190 ea.
SUBTOTAL $ -26.38
15% HST $ -3.96
T O T A L $ -30.34
`

func TestCanadianTireReturnReceipt(t *testing.T) {
	parser := &CanadianTireParser{}

	if !parser.DetectFormat(canadianTireReturn) {
		t.Fatal("expected canadian tire format detection")
	}

	rec, err := parser.Parse(canadianTireReturn, receipts.EntityCorp)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if rec.InvoiceNumber == nil || *rec.InvoiceNumber != "00123456AB" {
		t.Fatalf("trn id expected 00123456AB, got %v", rec.InvoiceNumber)
	}
	if got := rec.PurchaseDate.Format("2006-01-02"); got != "2025-06-14" {
		t.Fatalf("date expected 2025-06-14, got %s", got)
	}
	if !rec.Total.Equal(decimal.RequireFromString("-30.34")) {
		t.Fatalf("total expected -30.34, got %s", rec.Total)
	}

	if len(rec.Lines) != 1 {
		t.Fatalf("expected 1 line (per-unit helper dropped), got %d", len(rec.Lines))
	}

	line := rec.Lines[0]
	if line.VendorSKU == nil || *line.VendorSKU != "063-0806-4" {
		t.Fatalf("sku expected 063-0806-4, got %v", line.VendorSKU)
	}
	if line.Quantity == nil || !line.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("quantity expected 2, got %v", line.Quantity)
	}
	if !line.LineTotal.Equal(decimal.RequireFromString("26.38")) {
		t.Fatalf("line total stored as magnitude 26.38, got %s", line.LineTotal)
	}
	if line.TaxFlag == nil || *line.TaxFlag != receipts.TaxFlagTaxable {
		t.Fatal("canadian tire items assumed taxable")
	}
}
