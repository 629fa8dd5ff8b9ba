package parsers

import (
	"testing"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/shopspring/decimal"
)

const costcoReceipt = `COSTCO WHOLESALE
Member 111122223333
306657 GATORADE 65.97 Y
1510576 OASIS APP G 15.99 N
1770709 TPD/PEPSI 2.90-
9490 DEPOSIT/306 8.40
SUBTOTAL 79.06
TAX 9.89
**** TOTAL 88.95
09/08/2023 12:57 134511170812
`

func TestCostcoParse(t *testing.T) {
	parser := &CostcoParser{}

	if !parser.DetectFormat(costcoReceipt) {
		t.Fatal("expected costco format detection")
	}

	rec, err := parser.Parse(costcoReceipt, receipts.EntityCorp)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if rec.VendorGuess != "Costco Wholesale" {
		t.Fatalf("vendor expected Costco Wholesale, got %q", rec.VendorGuess)
	}
	if got := rec.PurchaseDate.Format("2006-01-02"); got != "2023-09-08" {
		t.Fatalf("date expected 2023-09-08, got %s", got)
	}
	if rec.InvoiceNumber == nil || *rec.InvoiceNumber != "134511170812" {
		t.Fatalf("transaction id expected 134511170812, got %v", rec.InvoiceNumber)
	}
	if !rec.Total.Equal(decimal.RequireFromString("88.95")) {
		t.Fatalf("total expected 88.95, got %s", rec.Total)
	}

	// Deposit code 9490 is excluded from item extraction.
	for _, line := range rec.Lines {
		if line.VendorSKU != nil && *line.VendorSKU == "9490" {
			t.Fatal("deposit code 9490 should be excluded")
		}
	}

	var discount *receipts.ReceiptLine
	items := 0
	for i := range rec.Lines {
		switch rec.Lines[i].LineType {
		case receipts.LineTypeItem:
			items++
		case receipts.LineTypeDiscount:
			discount = &rec.Lines[i]
		}
	}
	if items != 2 {
		t.Fatalf("expected 2 item lines, got %d", items)
	}
	if discount == nil {
		t.Fatal("expected a TPD discount line")
	}
	if !discount.LineTotal.Equal(decimal.RequireFromString("-2.90")) {
		t.Fatalf("discount expected -2.90, got %s", discount.LineTotal)
	}
	if discount.TaxFlag == nil || *discount.TaxFlag != receipts.TaxFlagExempt {
		t.Fatal("discount expected exempt tax flag")
	}

	// 65.97 + 15.99 - 2.90 = 79.06, matching the printed subtotal.
	if w := CheckSubtotal(rec.Lines, rec.Subtotal); w != nil {
		t.Fatalf("expected reconciled subtotal, got %+v", w)
	}
}

func TestCostcoTaxFlags(t *testing.T) {
	rec, err := (&CostcoParser{}).Parse(costcoReceipt, receipts.EntityCorp)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	for _, line := range rec.Lines {
		if line.VendorSKU == nil {
			continue
		}
		switch *line.VendorSKU {
		case "306657":
			if line.TaxFlag == nil || *line.TaxFlag != receipts.TaxFlagTaxable {
				t.Fatal("306657 expected taxable")
			}
		case "1510576":
			if line.TaxFlag == nil || *line.TaxFlag != receipts.TaxFlagExempt {
				t.Fatal("1510576 expected exempt")
			}
		}
	}
}
