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

// SuperstoreParser handles Atlantic Superstore grocery receipts.
// Long UPCs with NN/PC/BM brand prefixes and HMRJ-style tax code columns;
// H in the code marks HST-taxable lines.
type SuperstoreParser struct{}

var (
	superstoreDetectRe = regexp.MustCompile(`(?i)ATLANTIC\s+SUPERSTORE|\bSUPERSTORE\b`)
	superstoreAltRe    = regexp.MustCompile(`\d{11,13}\s+(NN|PC|BM)`)
	superstoreDateRe   = regexp.MustCompile(`(\d{4})[/-](\d{2})[/-](\d{2})`)
	superstoreDate2Re  = regexp.MustCompile(`(\d{2})[/-](\d{2})[/-](\d{4})`)
	superstoreTxnRe    = regexp.MustCompile(`(?i)(?:TRANS|TXN|REG)[\s#:]*(\d+)`)
	superstoreSubRe    = regexp.MustCompile(`(?i)SUBTOTAL\s+\$?([\d,]+\.?\d{2})`)
	superstoreTaxRe    = regexp.MustCompile(`(?i)(?:HST|TAX|GST)\s+\$?([\d,]+\.?\d{2})`)
	superstoreTotalRe  = regexp.MustCompile(`(?i)\bTOTAL\s+\$?([\d,]+\.?\d{2})`)

	// [(qty)] UPC description taxcode price [trailing OCR digit confusion]
	superstoreLineRe = regexp.MustCompile(`(?m)(?:\((\d+)\))?\s*(\d{11,13})\s+(.*?)\s+(H?M?R?J?)\s+([\d.]+)([E9]?)\s*$`)
)

func (p *SuperstoreParser) Key() string { return vendors.KeySuperstore }

func (p *SuperstoreParser) DetectFormat(text string) bool {
	if superstoreDetectRe.MatchString(text) {
		return true
	}
	return superstoreAltRe.MatchString(text)
}

func (p *SuperstoreParser) Parse(text string, entity receipts.Entity) (*receipts.ReceiptNormalized, error) {
	rec := &receipts.ReceiptNormalized{
		Entity:      entity,
		Source:      receipts.SourceManual,
		VendorGuess: "Atlantic Superstore",
		Currency:    "CAD",
		IsBill:      false,
	}

	date, ok := superstoreExtractDate(text)
	if !ok {
		return nil, fmt.Errorf("superstore: could not extract transaction date")
	}
	rec.PurchaseDate = date

	if m := superstoreTxnRe.FindStringSubmatch(text); m != nil {
		rec.InvoiceNumber = strPtr(m[1])
	}

	rec.Subtotal = amountOrZero(text, superstoreSubRe)
	rec.TaxTotal = amountOrZero(text, superstoreTaxRe)

	total := ExtractAmount(text, superstoreTotalRe, 1)
	if total == nil {
		return nil, fmt.Errorf("superstore: could not extract total")
	}
	rec.Total = *total

	for _, m := range superstoreLineRe.FindAllStringSubmatch(text, -1) {
		priceToken := m[5] + m[6] // trailing E/9 is OCR digit confusion
		price, err := NormalizePrice(priceToken)
		if err != nil {
			rec.AddWarning(priceParseWarning(strings.TrimSpace(m[0])))
			continue
		}

		flag := receipts.TaxFlagExempt
		if strings.Contains(m[4], "H") {
			flag = receipts.TaxFlagTaxable
		}

		qty := decimal.NewFromInt(1)
		if m[1] != "" {
			if q, err := decimal.NewFromString(m[1]); err == nil {
				qty = q
			}
		}

		rec.Lines = append(rec.Lines, receipts.ReceiptLine{
			LineIndex:       len(rec.Lines),
			LineType:        receipts.LineTypeItem,
			RawText:         strings.TrimSpace(m[0]),
			VendorSKU:       strPtr(m[2]),
			UPC:             strPtr(m[2]),
			ItemDescription: CleanDescription(m[3]),
			Quantity:        decPtr(qty),
			UnitPrice:       decPtr(price),
			LineTotal:       price,
			TaxFlag:         taxFlagPtr(flag),
			TaxAmount:       decPtr(lineTax(price, flag)),
		})
	}

	finalize(rec)
	return rec, nil
}

func superstoreExtractDate(text string) (time.Time, bool) {
	if m := superstoreDateRe.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("2006-01-02", fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])); err == nil {
			return d, true
		}
	}
	if m := superstoreDate2Re.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("2006-01-02", fmt.Sprintf("%s-%s-%s", m[3], m[1], m[2])); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
