package parsers

import (
	"testing"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/shopspring/decimal"
)

const pepsiDeliveryInvoice = `PEPSICO CANADA BEVERAGES
INVOICE # 51314455
Route #: 8232
10/07/2025 53 AM
ITEM DETAIL
591ML PL 1/24
SALES
PEPSI 0-69000-00991-8 T 97.00 5 120 35.91 179.55
MTN DEW 0-69000-01234-5 T 97.00 3 72 35.91 107.73
Sales Cases 8 287.28
CHARGES
19.20
GST/HST On $287.28 $ 43.09
Amount Due
$ 349.57
`

func TestPepsiDeliveryInvoice(t *testing.T) {
	parser := &PepsiParser{}

	if !parser.DetectFormat(pepsiDeliveryInvoice) {
		t.Fatal("expected pepsi format detection")
	}

	rec, err := parser.Parse(pepsiDeliveryInvoice, receipts.EntityCorp)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if rec.VendorGuess != "PepsiCo Canada" {
		t.Fatalf("vendor expected PepsiCo Canada, got %q", rec.VendorGuess)
	}
	if rec.InvoiceNumber == nil || *rec.InvoiceNumber != "51314455" {
		t.Fatalf("invoice expected 51314455, got %v", rec.InvoiceNumber)
	}
	if got := rec.PurchaseDate.Format("2006-01-02"); got != "2025-10-07" {
		t.Fatalf("date expected 2025-10-07, got %s", got)
	}
	if !rec.IsBill {
		t.Fatal("pepsi invoices are bills")
	}
	if !rec.Total.Equal(decimal.RequireFromString("349.57")) {
		t.Fatalf("total expected 349.57, got %s", rec.Total)
	}
	if !rec.TaxTotal.Equal(decimal.RequireFromString("43.09")) {
		t.Fatalf("tax expected 43.09, got %s", rec.TaxTotal)
	}

	items := 0
	var depositFee *receipts.ReceiptLine
	for i := range rec.Lines {
		switch rec.Lines[i].LineType {
		case receipts.LineTypeItem:
			items++
		case receipts.LineTypeFee:
			depositFee = &rec.Lines[i]
		}
	}
	if items != 2 {
		t.Fatalf("expected 2 item lines, got %d", items)
	}
	if depositFee == nil {
		t.Fatal("expected deposit charges as a fee line")
	}
	if !depositFee.LineTotal.Equal(decimal.RequireFromString("19.20")) {
		t.Fatalf("charges expected 19.20, got %s", depositFee.LineTotal)
	}

	// UPC hyphens are stripped for the SKU.
	first := rec.Lines[0]
	if first.VendorSKU == nil || *first.VendorSKU != "069000009918" {
		t.Fatalf("sku expected 069000009918, got %v", first.VendorSKU)
	}
	if first.Quantity == nil || !first.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("quantity expected 5 cases, got %v", first.Quantity)
	}
}

// UPC-prefix hits alone must not detect: a retail receipt listing Pepsi
// products is not a Pepsi invoice.
func TestPepsiDetectionNeedsInvoiceContext(t *testing.T) {
	text := `SOMEONE ELSES RECEIPT
69000149180 5.97
69000009918 14.00
69000123456 7.00
TOTAL 26.97
`
	if (&PepsiParser{}).DetectFormat(text) {
		t.Fatal("UPC prefixes without invoice context must not detect")
	}

	withContext := text + "\nINVOICE DETAILS\n"
	if !(&PepsiParser{}).DetectFormat(withContext) {
		t.Fatal("UPC prefixes plus invoice context should detect")
	}
}

func TestPepsiEmailSummary(t *testing.T) {
	text := `Invoice Details
Bill To: Curly's Canteen
10/08/24
PEPSI COL COLA PET 591ML 1P24C 69000009918 2 CS $35.38 $70.76
MTN DEW PET 591ML 1P24C 69000012345 1 CS $35.38 $35.38
`
	rec, err := (&PepsiParser{}).Parse(text, receipts.EntityCorp)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if len(rec.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(rec.Lines))
	}
	if !rec.Subtotal.Equal(decimal.RequireFromString("106.14")) {
		t.Fatalf("subtotal expected 106.14, got %s", rec.Subtotal)
	}
	if rec.PaymentTerms == nil || *rec.PaymentTerms != "15th of next month" {
		t.Fatal("expected email summary payment terms")
	}
}
