package receipts

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateAcceptsWithinTolerance(t *testing.T) {
	rec := &ReceiptNormalized{
		Subtotal: decimal.RequireFromString("100.00"),
		TaxTotal: decimal.RequireFromString("15.00"),
		Total:    decimal.RequireFromString("115.01"),
	}
	rec.Validate()
	if len(rec.ValidationWarnings) != 0 {
		t.Fatalf("expected no warnings within tolerance, got %+v", rec.ValidationWarnings)
	}
}

func TestValidateFlagsTotalMismatch(t *testing.T) {
	rec := &ReceiptNormalized{
		Subtotal: decimal.RequireFromString("100.00"),
		TaxTotal: decimal.RequireFromString("15.00"),
		Total:    decimal.RequireFromString("120.00"),
	}
	rec.Validate()
	if !rec.HasWarning(WarningTotalMismatch) {
		t.Fatal("expected total_mismatch warning")
	}
}

func TestAddWarningDeduplicates(t *testing.T) {
	rec := &ReceiptNormalized{}
	w := ValidationWarning{Type: WarningSubtotalMismatch, Message: "same"}
	rec.AddWarning(w)
	rec.AddWarning(w)
	if len(rec.ValidationWarnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(rec.ValidationWarnings))
	}
}

func TestLineItemSum(t *testing.T) {
	rec := &ReceiptNormalized{
		Lines: []ReceiptLine{
			{LineType: LineTypeItem, LineTotal: decimal.RequireFromString("20.00")},
			{LineType: LineTypeFee, LineTotal: decimal.RequireFromString("0.40")},
			{LineType: LineTypeDiscount, LineTotal: decimal.RequireFromString("-2.90")},
			{LineType: LineTypeTax, LineTotal: decimal.RequireFromString("3.00")},
		},
	}
	if got := rec.LineItemSum(); !got.Equal(decimal.RequireFromString("17.50")) {
		t.Fatalf("expected 17.50, got %s", got)
	}
}

func TestEntitySchemaRouting(t *testing.T) {
	if EntityCorp.SchemaName() != "curlys_corp" {
		t.Fatalf("corp schema wrong: %s", EntityCorp.SchemaName())
	}
	if EntitySoleprop.SchemaName() != "curlys_soleprop" {
		t.Fatalf("soleprop schema wrong: %s", EntitySoleprop.SchemaName())
	}
}
