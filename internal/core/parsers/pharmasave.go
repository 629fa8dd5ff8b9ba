package parsers

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/vendors"
	"github.com/shopspring/decimal"
)

// PharmasaveParser handles MacQuarries Pharmasave register receipts.
// Item lines carry a trailing tax code: TN/TY are HST-taxable, EN is
// zero-rated. Faded receipts drop their quantity column, so a second,
// quantity-less pattern covers those. Missing amounts surface as a
// subtotal_mismatch warning; placeholder lines are never invented.
type PharmasaveParser struct{}

var (
	pharmasaveDetectRe  = regexp.MustCompile(`MACQUARRIES\s+PHARMASAVE|PHARMASAVE\s+AMHERST|\bPHARMASAVE\b`)
	pharmasaveReceiptRe = regexp.MustCompile(`(?i)Receipt:\s*([A-Z0-9]+)`)
	pharmasaveDateRe    = regexp.MustCompile(`(?i)Date:\s*\w+\s+(\w+)\s+(\d{1,2}),\s+(\d{4})`)
	pharmasaveTotalRe   = regexp.MustCompile(`(?i)(?:^|[^B])TOTAL\s+\$([0-9,.]+)`)
	pharmasaveSubRe     = regexp.MustCompile(`(?i)SUB\s+TOTAL\s+([0-9,.]+)`)
	pharmasaveHSTRe     = regexp.MustCompile(`(?i)HST\s*\([0-9]+\)\s+([0-9,.]+)`)

	// QTY ITEM# DESCRIPTION AMOUNT+TAXCODE
	pharmasaveLineQtyRe = regexp.MustCompile(`(?m)^\s*(\d+)\s+(\d{5,})\s+(.+?)\s+([0-9.]+)\s*(EN|TN|TY)\s*$`)
	// ITEM# DESCRIPTION AMOUNT+TAXCODE (faded receipts drop the qty column)
	pharmasaveLineRe = regexp.MustCompile(`(?m)^\s*(\d{5,})\s+(.+?)\s+([0-9.]+)\s*(EN|TN|TY)\s*$`)
)

func (p *PharmasaveParser) Key() string { return vendors.KeyPharmasave }

func (p *PharmasaveParser) DetectFormat(text string) bool {
	return pharmasaveDetectRe.MatchString(strings.ToUpper(text))
}

func (p *PharmasaveParser) Parse(text string, entity receipts.Entity) (*receipts.ReceiptNormalized, error) {
	rec := &receipts.ReceiptNormalized{
		Entity:      entity,
		Source:      receipts.SourceManual,
		VendorGuess: "MacQuarries Pharmasave",
		Currency:    "CAD",
		IsBill:      false,
	}

	if m := pharmasaveReceiptRe.FindStringSubmatch(text); m != nil {
		rec.InvoiceNumber = strPtr(m[1])
	}

	if m := pharmasaveDateRe.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("January 2 2006", fmt.Sprintf("%s %s %s", m[1], m[2], m[3])); err == nil {
			rec.PurchaseDate = d
		}
	}
	if rec.PurchaseDate.IsZero() {
		rec.AddWarning(dateParseWarning(preview(text, 80)))
		rec.PurchaseDate = time.Now().UTC().Truncate(24 * time.Hour)
	}

	rec.Subtotal = amountOrZero(text, pharmasaveSubRe)
	rec.TaxTotal = amountOrZero(text, pharmasaveHSTRe)

	total := ExtractAmount(text, pharmasaveTotalRe, 1)
	if total == nil {
		return nil, fmt.Errorf("pharmasave: could not extract total")
	}
	rec.Total = *total

	p.extractLines(text, rec)

	finalize(rec)
	return rec, nil
}

func (p *PharmasaveParser) extractLines(text string, rec *receipts.ReceiptNormalized) {
	appendLine := func(raw, sku, description, amountStr, taxCode string, qty decimal.Decimal) {
		amount, err := NormalizePrice(amountStr)
		if err != nil {
			rec.AddWarning(priceParseWarning(raw))
			return
		}

		flag := receipts.TaxFlagZeroRated // EN
		if taxCode == "TN" || taxCode == "TY" {
			flag = receipts.TaxFlagTaxable
		}

		// Deposits are expenses but not COGS; keep them out of item sums.
		lineType := receipts.LineTypeItem
		if strings.Contains(strings.ToUpper(description), "DEPOSIT") {
			lineType = receipts.LineTypeFee
		}

		rec.Lines = append(rec.Lines, receipts.ReceiptLine{
			LineIndex:       len(rec.Lines),
			LineType:        lineType,
			RawText:         raw,
			VendorSKU:       strPtr(sku),
			ItemDescription: CleanDescription(description),
			Quantity:        decPtr(qty),
			UnitPrice:       decPtr(amount), // register prints line totals only
			LineTotal:       amount,
			TaxFlag:         taxFlagPtr(flag),
			TaxAmount:       decPtr(lineTax(amount, flag)),
		})
	}

	matched := false
	for _, m := range pharmasaveLineQtyRe.FindAllStringSubmatch(text, -1) {
		qty, err := decimal.NewFromString(m[1])
		if err != nil {
			qty = decimal.NewFromInt(1)
		}
		appendLine(strings.TrimSpace(m[0]), m[2], m[3], m[4], m[5], qty)
		matched = true
	}

	if !matched {
		for _, m := range pharmasaveLineRe.FindAllStringSubmatch(text, -1) {
			appendLine(strings.TrimSpace(m[0]), m[1], m[2], m[3], m[4], decimal.NewFromInt(1))
		}
	}
}
