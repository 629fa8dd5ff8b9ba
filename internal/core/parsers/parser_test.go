package parsers

import (
	"testing"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/shopspring/decimal"
)

func TestNormalizePrice(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"19.99", "19.99"},
		{"$19.99", "19.99"},
		{"1,234.56", "1234.56"},
		{"9.9E", "9.99"},
		{"10.0O", "10"},
		{"1o.00", "10"},
		{"-5.00", "-5"},
		{"(5.00)", "-5"},
		{"  $ 2.90 ", "2.9"},
		{"2.90-", "-2.9"},
	}
	for _, tc := range cases {
		got, err := NormalizePrice(tc.in)
		if err != nil {
			t.Fatalf("NormalizePrice(%q) error: %v", tc.in, err)
		}
		if got.String() != tc.expected {
			t.Fatalf("NormalizePrice(%q) expected %s, got %s", tc.in, tc.expected, got.String())
		}
	}
}

func TestNormalizePriceRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "12.34.56", "$"} {
		if _, err := NormalizePrice(in); err == nil {
			t.Fatalf("NormalizePrice(%q) expected error", in)
		}
	}
}

func TestNormalizePriceRoundTrip(t *testing.T) {
	for _, s := range []string{"0.00", "0.01", "19.99", "177.80", "1234.56", "-13.23", "2500.00"} {
		want := decimal.RequireFromString(s)
		got, err := NormalizePrice(FormatPrice(want))
		if err != nil {
			t.Fatalf("round trip of %s failed: %v", s, err)
		}
		if !got.Equal(want) {
			t.Fatalf("round trip of %s: got %s", s, got.String())
		}
	}
}

func TestCleanDescription(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"  CANADA   DRY  A ", "CANADA DRY A"},
		{"M|LK 2%", "MILK 2%"},
		{"SWIFFER_KIT", "SWIFFERKIT"},
	}
	for _, tc := range cases {
		if got := CleanDescription(tc.in); got != tc.expected {
			t.Fatalf("CleanDescription(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestCheckSubtotalWithinTolerance(t *testing.T) {
	lines := []receipts.ReceiptLine{
		{LineType: receipts.LineTypeItem, LineTotal: decimal.RequireFromString("10.00")},
		{LineType: receipts.LineTypeFee, LineTotal: decimal.RequireFromString("0.10")},
	}
	if w := CheckSubtotal(lines, decimal.RequireFromString("10.05")); w != nil {
		t.Fatalf("expected no warning inside tolerance, got %+v", w)
	}
}

func TestCheckSubtotalMismatch(t *testing.T) {
	// Faded receipt: items sum to 177.80 but the printed subtotal is 191.03.
	lines := []receipts.ReceiptLine{
		{LineType: receipts.LineTypeItem, LineTotal: decimal.RequireFromString("177.80")},
	}
	w := CheckSubtotal(lines, decimal.RequireFromString("191.03"))
	if w == nil {
		t.Fatal("expected subtotal_mismatch warning")
	}
	if w.Type != receipts.WarningSubtotalMismatch {
		t.Fatalf("expected subtotal_mismatch, got %s", w.Type)
	}
	if got := w.Data["found_total"].(float64); got != 177.80 {
		t.Fatalf("found_total expected 177.80, got %v", got)
	}
	if got := w.Data["expected_total"].(float64); got != 191.03 {
		t.Fatalf("expected_total expected 191.03, got %v", got)
	}
	if got := w.Data["difference"].(float64); got != 13.23 {
		t.Fatalf("difference expected 13.23, got %v", got)
	}
}

func TestCheckSubtotalDiscountsReduceItemSum(t *testing.T) {
	lines := []receipts.ReceiptLine{
		{LineType: receipts.LineTypeItem, LineTotal: decimal.RequireFromString("20.00")},
		{LineType: receipts.LineTypeDiscount, LineTotal: decimal.RequireFromString("-2.90")},
	}
	if w := CheckSubtotal(lines, decimal.RequireFromString("17.10")); w != nil {
		t.Fatalf("expected discounts to reconcile, got %+v", w)
	}
}
