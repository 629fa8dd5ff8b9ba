// Package parsers turns OCR text into normalized receipts, one parser per
// vendor format. Dispatch belongs to the vendor identifier; a parser's
// DetectFormat survives only as a sanity check and never drives routing.
package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/shopspring/decimal"
)

// Parser is the contract every vendor parser implements.
type Parser interface {
	// Key is the vendor registry key this parser handles.
	Key() string

	// DetectFormat reports whether the text looks like this parser's format.
	// Used only as a post-dispatch sanity check, never for routing.
	DetectFormat(text string) bool

	// Parse extracts a normalized receipt. The entity is supplied by the
	// caller; parsers never decide entity assignment.
	Parse(text string, entity receipts.Entity) (*receipts.ReceiptNormalized, error)
}

// subtotalTolerance is the slack allowed between the line-item sum and the
// parsed subtotal before a subtotal_mismatch warning is raised.
var subtotalTolerance = decimal.RequireFromString("0.10")

// hstRate is the Atlantic HST rate used for per-line tax estimation.
var hstRate = decimal.RequireFromString("0.15")

var (
	priceCleanRe  = regexp.MustCompile(`[$,\s]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	validPriceRe  = regexp.MustCompile(`^\d+(\.\d+)?$`)
	ocrDigitFixer = strings.NewReplacer("E", "9", "O", "0", "o", "0")
)

// NormalizePrice cleans OCR price text and converts it to a decimal.
//
// Repairs the common OCR confusions (E for 9, O for 0), strips currency
// symbols and thousands separators, and reads parentheses or a leading
// minus as negative.
func NormalizePrice(priceStr string) (decimal.Decimal, error) {
	cleaned := priceCleanRe.ReplaceAllString(strings.TrimSpace(priceStr), "")
	cleaned = ocrDigitFixer.Replace(cleaned)

	negative := strings.Contains(cleaned, "-") || strings.Contains(cleaned, "(")
	cleaned = strings.NewReplacer("-", "", "(", "", ")", "").Replace(cleaned)

	if !validPriceRe.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("could not parse price: %q", priceStr)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse price: %q", priceStr)
	}

	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

// FormatPrice renders a decimal with two fractional digits, the inverse of
// NormalizePrice for round-trip checks.
func FormatPrice(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// ExtractAmount pulls a monetary amount out of text with a compiled pattern
// whose given group captures the price. Returns nil when the pattern does
// not match or the captured text will not parse.
func ExtractAmount(text string, pattern *regexp.Regexp, group int) *decimal.Decimal {
	m := pattern.FindStringSubmatch(text)
	if m == nil || group >= len(m) {
		return nil
	}
	amount, err := NormalizePrice(m[group])
	if err != nil {
		return nil
	}
	return &amount
}

// CleanDescription collapses whitespace and strips the OCR artifacts that
// show up in item descriptions.
func CleanDescription(description string) string {
	description = whitespaceRe.ReplaceAllString(description, " ")
	description = strings.ReplaceAll(description, "|", "I")
	description = strings.ReplaceAll(description, "_", "")
	return strings.TrimSpace(description)
}

// CheckSubtotal compares the item+fee sum (less absolute discounts) against
// the parsed subtotal. Beyond tolerance it returns a subtotal_mismatch
// warning; no placeholder line is ever inserted — the review UI shows
// bounding boxes so the user can spot faded items themselves.
func CheckSubtotal(lines []receipts.ReceiptLine, subtotal decimal.Decimal) *receipts.ValidationWarning {
	itemTotal := decimal.Zero
	discountTotal := decimal.Zero
	for _, line := range lines {
		switch line.LineType {
		case receipts.LineTypeItem, receipts.LineTypeFee:
			itemTotal = itemTotal.Add(line.LineTotal)
		case receipts.LineTypeDiscount:
			discountTotal = discountTotal.Add(line.LineTotal)
		}
	}

	found := itemTotal.Sub(discountTotal.Abs())
	missing := subtotal.Sub(found)
	if missing.Abs().LessThanOrEqual(subtotalTolerance) {
		return nil
	}

	return &receipts.ValidationWarning{
		Type: receipts.WarningSubtotalMismatch,
		Message: fmt.Sprintf("line items sum to $%s but receipt subtotal is $%s (missing $%s)",
			found.StringFixed(2), subtotal.StringFixed(2), missing.Abs().StringFixed(2)),
		Data: map[string]any{
			"found_total":    found.InexactFloat64(),
			"expected_total": subtotal.InexactFloat64(),
			"difference":     missing.Abs().InexactFloat64(),
		},
	}
}

// priceParseWarning builds the warning for a token that would not parse.
func priceParseWarning(token string) receipts.ValidationWarning {
	return receipts.ValidationWarning{
		Type:    receipts.WarningPriceParseFailed,
		Message: fmt.Sprintf("could not parse price token %q", token),
		Data:    map[string]any{"token": token},
	}
}

// dateParseWarning builds the warning for an unextractable date.
func dateParseWarning(raw string) receipts.ValidationWarning {
	return receipts.ValidationWarning{
		Type:    receipts.WarningDateParseFailed,
		Message: "could not extract purchase date",
		Data:    map[string]any{"raw": raw},
	}
}

func strPtr(s string) *string { return &s }

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func taxFlagPtr(f receipts.TaxFlag) *receipts.TaxFlag { return &f }

// lineTax estimates per-line HST for taxable lines.
func lineTax(total decimal.Decimal, flag receipts.TaxFlag) decimal.Decimal {
	if flag != receipts.TaxFlagTaxable {
		return decimal.Zero
	}
	return total.Mul(hstRate).Round(2)
}
