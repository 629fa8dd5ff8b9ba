package parsers

import (
	"regexp"
	"strings"
	"time"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/shopspring/decimal"
)

// GenericParser is the fallback for unknown vendors and poor-quality OCR.
// Best-effort extraction of vendor, date, and totals with simple line-item
// patterns. The parser sets no review flag of its own; its output is flagged
// only through the warnings it collects, such as the vendor_unknown warning
// the pipeline adds when no vendor matched.
type GenericParser struct{}

var (
	genericVendorRes = []*regexp.Regexp{
		regexp.MustCompile(`([A-Z\s&]+(?:INC|LTD|LLC|CORP|CO)\.?)`),
		regexp.MustCompile(`([A-Z\s&]{3,})\s+(?:RECEIPT|INVOICE)`),
		regexp.MustCompile(`(?:STORE|SHOP|MARKET)[\s:]+([A-Z\s&]+)`),
	}
	genericInvoiceRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:INVOICE|RECEIPT|ORDER)[\s#:]*(\w+)`),
		regexp.MustCompile(`#\s*(\d+)`),
	}
	genericTotalRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)TOTAL\s+\$?([\d,]+\.?\d{2})`),
		regexp.MustCompile(`(?i)AMOUNT\s+\$?([\d,]+\.?\d{2})`),
		regexp.MustCompile(`(?i)BALANCE\s+\$?([\d,]+\.?\d{2})`),
	}
	genericSubtotalRe = regexp.MustCompile(`(?i)SUBTOTAL\s+\$?([\d,]+\.?\d{2})`)
	genericTaxRes     = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:GST|HST|TAX)\s+\$?([\d,]+\.?\d{2})`),
		regexp.MustCompile(`(?i)TAX\s+TOTAL\s+\$?([\d,]+\.?\d{2})`),
	}
	genericLineRe = regexp.MustCompile(`^(.+?)\s+\$?([\d,]+\.?\d{2})\s*$`)

	genericFooterKeywords = []string{"TOTAL", "SUBTOTAL", "TAX", "HST", "GST", "BALANCE", "CASH", "CHANGE"}

	// Back-calculation rate when only the grand total is readable.
	hstGrossRate = decimal.RequireFromString("1.15")
)

func (p *GenericParser) Key() string { return "generic" }

// DetectFormat always reports true; the generic parser is the last resort.
func (p *GenericParser) DetectFormat(text string) bool { return true }

func (p *GenericParser) Parse(text string, entity receipts.Entity) (*receipts.ReceiptNormalized, error) {
	rec := &receipts.ReceiptNormalized{
		Entity:      entity,
		Source:      receipts.SourceManual,
		VendorGuess: "UNKNOWN VENDOR",
		Currency:    "CAD",
		IsBill:      false,
	}

	if vendor := p.guessVendor(text); vendor != "" {
		rec.VendorGuess = vendor
	}

	date, ok := flexibleDate(text)
	if !ok {
		rec.AddWarning(dateParseWarning(preview(text, 80)))
		date = time.Now().UTC().Truncate(24 * time.Hour)
	}
	rec.PurchaseDate = date

	for _, re := range genericInvoiceRes {
		if m := re.FindStringSubmatch(text); m != nil {
			rec.InvoiceNumber = strPtr(m[1])
			break
		}
	}

	total := decimal.Zero
	for _, re := range genericTotalRes {
		if amount := ExtractAmount(text, re, 1); amount != nil {
			total = *amount
			break
		}
	}

	tax := decimal.Zero
	for _, re := range genericTaxRes {
		if amount := ExtractAmount(text, re, 1); amount != nil {
			tax = *amount
			break
		}
	}

	subtotal := amountOrZero(text, genericSubtotalRe)
	if subtotal.IsZero() && total.IsPositive() {
		if tax.IsPositive() {
			subtotal = total.Sub(tax)
		} else {
			// Assume 15% HST and back-calculate.
			subtotal = total.Div(hstGrossRate).Round(2)
			tax = total.Sub(subtotal)
		}
	}

	rec.Total = total
	rec.TaxTotal = tax
	rec.Subtotal = subtotal

	p.extractLines(text, rec)

	finalize(rec)
	return rec, nil
}

func (p *GenericParser) guessVendor(text string) string {
	header := strings.ToUpper(preview(text, 200))
	for _, re := range genericVendorRes {
		if m := re.FindStringSubmatch(header); m != nil {
			vendor := strings.TrimSpace(m[1])
			if len(vendor) > 3 {
				return vendor
			}
		}
	}
	return ""
}

func (p *GenericParser) extractLines(text string, rec *receipts.ReceiptNormalized) {
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if len(raw) < 5 {
			continue
		}

		m := genericLineRe.FindStringSubmatch(raw)
		if m == nil {
			continue
		}

		description := strings.TrimSpace(m[1])
		if genericIsFooterLine(description) {
			continue
		}

		amount, err := NormalizePrice(m[2])
		if err != nil {
			continue
		}

		rec.Lines = append(rec.Lines, receipts.ReceiptLine{
			LineIndex:       len(rec.Lines),
			LineType:        receipts.LineTypeItem,
			RawText:         raw,
			ItemDescription: CleanDescription(description),
			Quantity:        decPtr(decimal.NewFromInt(1)),
			LineTotal:       amount,
		})
	}
}

func genericIsFooterLine(description string) bool {
	d := strings.ToUpper(description)
	for _, k := range genericFooterKeywords {
		if strings.Contains(d, k) {
			return true
		}
	}
	return false
}
