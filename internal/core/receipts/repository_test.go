package receipts

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

func newTestRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	return NewRepository(mock, slog.Default()), mock
}

func sampleReceipt(entity Entity) *ReceiptNormalized {
	return &ReceiptNormalized{
		ReceiptID:     uuid.New(),
		Entity:        entity,
		Source:        SourcePWA,
		VendorGuess:   "Costco Wholesale",
		PurchaseDate:  time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Currency:      "CAD",
		Subtotal:      decimal.RequireFromString("79.06"),
		TaxTotal:      decimal.RequireFromString("9.89"),
		Total:         decimal.RequireFromString("88.95"),
		OCRMethod:     "textract",
		OCRConfidence: 0.97,
		PageCount:     1,
	}
}

func TestSaveReceiptRoutesToEntitySchema(t *testing.T) {
	repo, mock := newTestRepo(t)

	rec := sampleReceipt(EntityCorp)
	mock.ExpectExec(`(?s)INSERT INTO curlys_corp\.receipts.*ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(rec.ReceiptID, "corp", "pwa", "Costco Wholesale",
			rec.PurchaseDate, rec.InvoiceNumber, rec.DueDate, "CAD",
			rec.Subtotal, rec.TaxTotal, rec.Total, false,
			rec.PaymentTerms, "textract", 0.97, 1,
			rec.ContentHash, rec.PerceptualHash, []byte("[]"), "review_required").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.SaveReceipt(context.Background(), mock, rec, StatusReviewRequired); err != nil {
		t.Fatalf("save receipt failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveReceiptSolepropNeverTouchesCorp(t *testing.T) {
	repo, mock := newTestRepo(t)

	rec := sampleReceipt(EntitySoleprop)
	mock.ExpectExec(`(?s)INSERT INTO curlys_soleprop\.receipts`).
		WithArgs(rec.ReceiptID, "soleprop", "pwa", "Costco Wholesale",
			rec.PurchaseDate, rec.InvoiceNumber, rec.DueDate, "CAD",
			rec.Subtotal, rec.TaxTotal, rec.Total, false,
			rec.PaymentTerms, "textract", 0.97, 1,
			rec.ContentHash, rec.PerceptualHash, []byte("[]"), "approved").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.SaveReceipt(context.Background(), mock, rec, StatusApproved); err != nil {
		t.Fatalf("save receipt failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveLinesDeletesThenInserts(t *testing.T) {
	repo, mock := newTestRepo(t)

	receiptID := uuid.New()
	sku := "306657"
	lines := []ReceiptLine{
		{LineIndex: 0, LineType: LineTypeItem, VendorSKU: &sku, ItemDescription: "GATORADE", LineTotal: decimal.RequireFromString("65.97")},
		{LineIndex: 1, LineType: LineTypeFee, ItemDescription: "Fuel Surcharge", LineTotal: decimal.RequireFromString("15.00")},
	}

	mock.ExpectExec(`DELETE FROM curlys_corp\.receipt_line_items WHERE receipt_id = \$1`).
		WithArgs(receiptID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`(?s)INSERT INTO curlys_corp\.receipt_line_items`).
		WithArgs(pgxmock.AnyArg(), receiptID, 0, "item", "", lines[0].VendorSKU, lines[0].UPC, "GATORADE",
			lines[0].NormalizedDescription, lines[0].Brand, lines[0].Quantity, lines[0].UnitPrice,
			lines[0].LineTotal, lines[0].TaxFlag, lines[0].TaxAmount, lines[0].ProductCategory,
			lines[0].AccountCode, lines[0].Confidence, lines[0].CategorizationSource,
			false, lines[0].AICostUSD, []byte(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`(?s)INSERT INTO curlys_corp\.receipt_line_items`).
		WithArgs(pgxmock.AnyArg(), receiptID, 1, "fee", "", lines[1].VendorSKU, lines[1].UPC, "Fuel Surcharge",
			lines[1].NormalizedDescription, lines[1].Brand, lines[1].Quantity, lines[1].UnitPrice,
			lines[1].LineTotal, lines[1].TaxFlag, lines[1].TaxAmount, lines[1].ProductCategory,
			lines[1].AccountCode, lines[1].Confidence, lines[1].CategorizationSource,
			false, lines[1].AICostUSD, []byte(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.SaveLines(context.Background(), mock, EntityCorp, receiptID, lines); err != nil {
		t.Fatalf("save lines failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateLineCategorizationClearsReviewFlag(t *testing.T) {
	repo, mock := newTestRepo(t)

	lineID := uuid.New()
	mock.ExpectExec(`(?s)UPDATE curlys_corp\.receipt_line_items.*requires_review = false`).
		WithArgs("Mountain Dew Citrus Soda 591mL", "beverage_soda", "5011", (*string)(nil),
			1.0, "user", "tom@curlys.ca", lineID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateLineCategorization(context.Background(), mock, EntityCorp, lineID, LineCategorizationUpdate{
		NormalizedDescription: "Mountain Dew Citrus Soda 591mL",
		ProductCategory:       "beverage_soda",
		AccountCode:           "5011",
		Confidence:            1.0,
		Source:                "user",
		ReviewedBy:            "tom@curlys.ca",
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateLineCategorizationMissingLine(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec(`(?s)UPDATE curlys_corp\.receipt_line_items`).
		WithArgs("", "", "", (*string)(nil), 0.0, "", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateLineCategorization(context.Background(), mock, EntityCorp, uuid.New(), LineCategorizationUpdate{})
	if err == nil {
		t.Fatal("expected error for missing line")
	}
}
