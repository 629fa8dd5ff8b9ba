package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/vendors"
	"github.com/shopspring/decimal"
)

// CanadianTireParser handles Canadian Tire register receipts, including the
// return format with negative amounts. Item lines glue quantity to the SKU
// ("2X063-0806-4"); per-unit helper lines ("@ $ -13.190 ea") are dropped.
// Retail items are assumed HST-taxable.
type CanadianTireParser struct{}

var (
	canadianTireDetectRe = regexp.MustCompile(`(?i)CANADIAN\s+TIRE|CT\s+MONEY|TRIANGLE\s+REWARDS`)
	canadianTireTrnRe    = regexp.MustCompile(`(?i)ORIG\s+TRN\s+ID[:\s]*([0-9A-Z]{8,})`)
	canadianTireNumRe    = regexp.MustCompile(`\n\s*([0-9]{12,})\s*\n`)
	canadianTireDateRe   = regexp.MustCompile(`(?i)ORIG\s+PURCHASE\s+DATE[:\s]+(\d{1,2})/(\d{1,2})/(\d{2,4})`)
	canadianTireDate2Re  = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{2,4})`)
	canadianTireSubRe    = regexp.MustCompile(`SUBTOTAL\s+\$\s*([-0-9.,]+)`)
	canadianTireTaxRe    = regexp.MustCompile(`(?:\d{1,2}\s*%\s*)?(?:HST|GST|PST|QST)(?:\s+)\$\s*([-0-9.,]+)`)
	canadianTireTotalRe  = regexp.MustCompile(`(?m)^\s*T\s*O\s*T\s*A\s*L\s+\$\s*([-0-9.,]+)`)

	canadianTireItemRe = regexp.MustCompile(`(?im)^\s*-?\s*(\d+)X([A-Z0-9\-]+)\s+(.+?)\s+\$\s*([-0-9.,]+)\s*$`)
	canadianTireUnitRe = regexp.MustCompile(`(?im)^\s*@\s*\$\s*[-0-9.,]+\s*ea\.?\s*$`)
)

func (p *CanadianTireParser) Key() string { return vendors.KeyCanadianTire }

func (p *CanadianTireParser) DetectFormat(text string) bool {
	return canadianTireDetectRe.MatchString(text)
}

func (p *CanadianTireParser) Parse(text string, entity receipts.Entity) (*receipts.ReceiptNormalized, error) {
	rec := &receipts.ReceiptNormalized{
		Entity:      entity,
		Source:      receipts.SourceManual,
		VendorGuess: "Canadian Tire",
		Currency:    "CAD",
		IsBill:      false,
	}

	if m := canadianTireTrnRe.FindStringSubmatch(text); m != nil {
		rec.InvoiceNumber = strPtr(m[1])
	} else if m := canadianTireNumRe.FindStringSubmatch(text); m != nil {
		rec.InvoiceNumber = strPtr(m[1])
	}

	date, ok := canadianTireExtractDate(text)
	if !ok {
		rec.AddWarning(dateParseWarning(preview(text, 80)))
		date = time.Now().UTC().Truncate(24 * time.Hour)
	}
	rec.PurchaseDate = date

	rec.Subtotal = amountOrZero(text, canadianTireSubRe)
	rec.TaxTotal = amountOrZero(text, canadianTireTaxRe)

	total := ExtractAmount(text, canadianTireTotalRe, 1)
	if total == nil {
		return nil, fmt.Errorf("canadian tire: could not extract total")
	}
	rec.Total = *total

	// Strip per-unit helper lines before item matching.
	cleaned := canadianTireUnitRe.ReplaceAllString(text, "")

	for _, m := range canadianTireItemRe.FindAllStringSubmatch(cleaned, -1) {
		amount, err := NormalizePrice(m[4])
		if err != nil {
			rec.AddWarning(priceParseWarning(strings.TrimSpace(m[0])))
			continue
		}

		qty, err := decimal.NewFromString(m[1])
		if err != nil {
			qty = decimal.NewFromInt(1)
		}

		lineTotal := amount.Abs()

		rec.Lines = append(rec.Lines, receipts.ReceiptLine{
			LineIndex:       len(rec.Lines),
			LineType:        receipts.LineTypeItem,
			RawText:         strings.TrimSpace(m[0]),
			VendorSKU:       strPtr(strings.TrimSpace(m[2])),
			ItemDescription: CleanDescription(m[3]),
			Quantity:        decPtr(qty),
			UnitPrice:       decPtr(lineTotal),
			LineTotal:       lineTotal,
			TaxFlag:         taxFlagPtr(receipts.TaxFlagTaxable),
			TaxAmount:       decPtr(lineTax(lineTotal, receipts.TaxFlagTaxable)),
		})
	}

	finalize(rec)
	return rec, nil
}

func canadianTireExtractDate(text string) (time.Time, bool) {
	for _, re := range []*regexp.Regexp{canadianTireDateRe, canadianTireDate2Re} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		mo, _ := strconv.Atoi(m[1])
		dd, _ := strconv.Atoi(m[2])
		if d, err := time.Parse("2006-1-2", fmt.Sprintf("%s-%d-%d", year, mo, dd)); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
