package review

import (
	"testing"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/google/uuid"
)

func TestParseReviewableID(t *testing.T) {
	pk := uuid.New()

	reviewType, entity, gotPK, err := parseReviewableID("receipt_line_item:curlys_corp:" + pk.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if reviewType != TypeReceiptLineItem {
		t.Fatalf("type expected receipt_line_item, got %s", reviewType)
	}
	if entity != receipts.EntityCorp {
		t.Fatalf("entity expected corp, got %s", entity)
	}
	if gotPK != pk {
		t.Fatalf("pk mismatch: %s vs %s", gotPK, pk)
	}
}

func TestParseReviewableIDAcceptsBareEntity(t *testing.T) {
	pk := uuid.New()
	_, entity, _, err := parseReviewableID("receipt_line_item:soleprop:" + pk.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if entity != receipts.EntitySoleprop {
		t.Fatalf("entity expected soleprop, got %s", entity)
	}
}

func TestParseReviewableIDRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"receipt_line_item",
		"receipt_line_item:curlys_corp",
		"receipt_line_item:unknown_schema:" + uuid.New().String(),
		"receipt_line_item:curlys_corp:not-a-uuid",
	}
	for _, id := range cases {
		if _, _, _, err := parseReviewableID(id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}
