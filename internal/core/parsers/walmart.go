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

// WalmartParser handles Walmart / Walmart Supercentre receipts in Canada.
//
// Item lines print as DESCRIPTION UPC $AMOUNT TAXCODE. Promotional multi-buy
// adjustments ("PEPSI 2 FOR $14 006L $7.84-A") are captured as negative item
// adjustments. Faded receipts are common; the subtotal check flags them
// instead of inventing placeholder lines.
type WalmartParser struct{}

const walmartNonItemPrefix = `SUB\s*TOTAL|TOTAL\b|CHANGE\b|CASH\b|DEBIT\b|CREDIT\b|VISA\b|MASTERCARD\b|` +
	`ROUND(ING)?\b|AMOUNT\s+TENDERED|BALANCE\s+DUE|APPROVAL|AID:|RID:|A000|TC|ERMINAL|` +
	`HST\b|GST\b|PST\b|QST\b|TAX\b|COUPON|SAV(ING|E)S|RETURN|REFUND|SUB-?TOTAL|` +
	`NS\s+DEPOSIT|DEPOSIT|MULTI\s+DISCOUNT`

var (
	walmartDetectRe = regexp.MustCompile(`(?mi)\bWALMART\b|WAL-MART|SAVE\s+MONEY\.?\s+LIVE\s+BETTER\.?|\bTC#\b|\bTR#\b|\bTRANS#\b`)

	walmartItemRe = regexp.MustCompile(`(?m)^(?:\s*)` +
		`([A-Z][A-Z0-9 \t&%/.,()*'#]+?)\s+` + // description
		`(\d{12})\s+` + // 12-digit UPC
		`\$?(\d+\.\d{2})\s*` + // price
		`([A-Z0-9])?\s*$`) // tax code

	walmartPromoRe = regexp.MustCompile(`(?m)^([A-Z][A-Z0-9\s&]+?)\s+` +
		`(\d+\s+FOR\s+\$\d+\.?\d{0,2})\s+` + // promo text
		`([\dL]+)\s+` + // size
		`\$?(\d+\.\d{2})-([A-Z])\s*$`) // amount-taxcode

	walmartNonItemRe  = regexp.MustCompile(`(?i)^\s*(?:` + walmartNonItemPrefix + `)`)
	walmartTCRe       = regexp.MustCompile(`(?i)\bTC#\s*([0-9\s-]+)`)
	walmartTRRe       = regexp.MustCompile(`(?i)\bTR#\s*([0-9\s-]+)`)
	walmartTransRe    = regexp.MustCompile(`(?i)\bTRANS#?\s*([0-9\s-]+)`)
	walmartSubtotalRe = regexp.MustCompile(`(?i)SUB\s*-?\s*TOTAL\s*[: ]\$?([0-9][0-9,]*\.\d{2})`)
	walmartTotalRe    = regexp.MustCompile(`(?i)\bTOTAL\b(?:\s*[: ])\s*\$?([0-9][0-9,]*\.\d{2})`)
	walmartSubRefRe   = regexp.MustCompile(`(?i)SUB\s*-?\s*TOTAL`)

	walmartZeroRatedKeywords = []string{
		"MILK", "BREAD", "BANANA", "APPLES", "APPLE", "LETTUCE", "CARROT", "EGG", "RICE", "FLOUR",
		"POTATO", "POTATOES", "TOMATO", "TOMATOES", "ONION", "ONIONS", "CUCUMBER",
	}

	walmartFeeKeywords = []string{
		"DEPOSIT", "DEP ", "BOTTLE DEP", "CONTAINER", "CRF", "ECO FEE", "ECOFEE",
		"EHF", "ENV FEE", "ENVIRONMENTAL FEE", "BATTERY FEE",
	}
)

func (p *WalmartParser) Key() string { return vendors.KeyWalmart }

func (p *WalmartParser) DetectFormat(text string) bool {
	return walmartDetectRe.MatchString(strings.ToUpper(text))
}

func (p *WalmartParser) Parse(text string, entity receipts.Entity) (*receipts.ReceiptNormalized, error) {
	rec := &receipts.ReceiptNormalized{
		Entity:      entity,
		Source:      receipts.SourceManual,
		VendorGuess: walmartVendorName(text),
		Currency:    "CAD",
		IsBill:      false,
	}

	date, ok := flexibleDate(text)
	if !ok {
		rec.AddWarning(dateParseWarning(preview(text, 80)))
		date = time.Now().UTC().Truncate(24 * time.Hour)
	}
	rec.PurchaseDate = date

	if no := walmartReceiptNumber(text); no != "" {
		rec.InvoiceNumber = strPtr(no)
	}

	rec.Subtotal = amountOrZero(text, walmartSubtotalRe)
	rec.TaxTotal = walmartTaxTotal(text)

	if total := walmartTotal(text); total != nil {
		rec.Total = *total
	} else {
		rec.Total = rec.Subtotal.Add(rec.TaxTotal)
	}

	p.extractLines(text, rec)

	finalize(rec)
	return rec, nil
}

func walmartVendorName(text string) string {
	if regexp.MustCompile(`(?i)WALMART\s+SUPERCENTRE`).MatchString(text) {
		return "Walmart Supercentre"
	}
	return "Walmart"
}

func walmartReceiptNumber(text string) string {
	for _, re := range []*regexp.Regexp{walmartTCRe, walmartTRRe, walmartTransRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// walmartTotal avoids matching SUBTOTAL and TOTAL SAVINGS.
func walmartTotal(text string) *decimal.Decimal {
	for _, m := range walmartTotalRe.FindAllStringSubmatchIndex(text, -1) {
		lineStart := strings.LastIndexByte(text[:m[0]], '\n') + 1
		prefix := text[lineStart:m[0]]
		if walmartSubRefRe.MatchString(prefix + "TOTAL") {
			continue
		}
		matched := text[m[0]:m[1]]
		if strings.Contains(strings.ToUpper(matched), "SAV") {
			continue
		}
		sub := walmartTotalRe.FindStringSubmatch(matched)
		if sub == nil {
			continue
		}
		if amount, err := NormalizePrice(sub[1]); err == nil {
			return &amount
		}
	}
	return nil
}

// walmartTaxTotal sums HST/GST/PST/QST dollar amounts; when no explicit tax
// line prints it falls back to total minus subtotal.
func walmartTaxTotal(text string) decimal.Decimal {
	taxTotal := decimal.Zero
	for _, label := range []string{"HST", "GST", "PST", "QST"} {
		re := regexp.MustCompile(`(?i)\b` + label + `\b[^$\n]*\$([0-9][0-9,]*\.\d{2})`)
		if amount := ExtractAmount(text, re, 1); amount != nil {
			taxTotal = taxTotal.Add(*amount)
		}
	}
	if taxTotal.IsZero() {
		total := walmartTotal(text)
		subtotal := ExtractAmount(text, walmartSubtotalRe, 1)
		if total != nil && subtotal != nil {
			taxTotal = total.Sub(*subtotal)
		}
	}
	return taxTotal
}

func (p *WalmartParser) extractLines(text string, rec *receipts.ReceiptNormalized) {
	// Regular items: DESC UPC $AMOUNT CODE
	for _, m := range walmartItemRe.FindAllStringSubmatch(text, -1) {
		raw := strings.TrimSpace(m[0])
		if walmartNonItemRe.MatchString(raw) {
			continue
		}

		desc := strings.TrimSpace(m[1])
		if strings.Contains(strings.ToUpper(desc), "DEPOSIT") {
			continue
		}

		amount, err := NormalizePrice(m[3])
		if err != nil {
			rec.AddWarning(priceParseWarning(raw))
			continue
		}

		upc := m[2]
		taxCode := strings.ToUpper(strings.TrimSpace(m[4]))

		lineType := receipts.LineTypeItem
		if walmartIsDepositOrFee(desc) {
			lineType = receipts.LineTypeFee
		}

		flag := walmartTaxFlag(taxCode, desc)

		rec.Lines = append(rec.Lines, receipts.ReceiptLine{
			LineIndex:       len(rec.Lines),
			LineType:        lineType,
			RawText:         raw,
			VendorSKU:       strPtr(upc), // UPC doubles as the SKU
			UPC:             strPtr(upc),
			ItemDescription: CleanDescription(desc),
			Quantity:        decPtr(decimal.NewFromInt(1)),
			UnitPrice:       decPtr(amount),
			LineTotal:       amount,
			TaxFlag:         taxFlagPtr(flag),
		})
	}

	// Promotional multi-buy adjustments, stored negative.
	for _, m := range walmartPromoRe.FindAllStringSubmatch(text, -1) {
		amount, err := NormalizePrice(m[4])
		if err != nil {
			rec.AddWarning(priceParseWarning(strings.TrimSpace(m[0])))
			continue
		}
		amount = amount.Neg()

		desc := fmt.Sprintf("%s (%s %s)", strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), strings.TrimSpace(m[3]))
		flag := walmartTaxFlag(strings.ToUpper(m[5]), m[1])

		rec.Lines = append(rec.Lines, receipts.ReceiptLine{
			LineIndex:       len(rec.Lines),
			LineType:        receipts.LineTypeItem, // promo discount is an item adjustment
			RawText:         strings.TrimSpace(m[0]),
			ItemDescription: CleanDescription(desc),
			Quantity:        decPtr(decimal.NewFromInt(1)),
			UnitPrice:       decPtr(amount),
			LineTotal:       amount,
			TaxFlag:         taxFlagPtr(flag),
		})
	}
}

func walmartIsDepositOrFee(desc string) bool {
	d := strings.ToUpper(desc)
	for _, k := range walmartFeeKeywords {
		if strings.Contains(d, k) {
			return true
		}
	}
	return false
}

func walmartTaxFlag(taxCode, desc string) receipts.TaxFlag {
	switch taxCode {
	case "T", "A", "B", "H", "J":
		return receipts.TaxFlagTaxable
	case "E", "Z":
		return receipts.TaxFlagZeroRated
	}

	d := strings.ToUpper(desc)
	for _, k := range walmartZeroRatedKeywords {
		if strings.Contains(d, k) {
			return receipts.TaxFlagZeroRated
		}
	}
	return receipts.TaxFlagTaxable // default in retail context
}

// flexibleDate tries the date print formats seen across retail receipts.
func flexibleDate(text string) (time.Time, bool) {
	// YYYY-MM-DD / YYYY/MM/DD
	if m := regexp.MustCompile(`(20\d{2})[\-/](\d{1,2})[\-/](\d{1,2})`).FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("2006-1-2", fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])); err == nil {
			return d, true
		}
	}
	// MM-DD-YYYY (flipped when the first field cannot be a month)
	if m := regexp.MustCompile(`(\d{1,2})[\-/](\d{1,2})[\-/](20\d{2})`).FindStringSubmatch(text); m != nil {
		mo, _ := strconv.Atoi(m[1])
		dd, _ := strconv.Atoi(m[2])
		if mo > 12 && dd <= 12 {
			mo, dd = dd, mo
		}
		if d, err := time.Parse("2006-1-2", fmt.Sprintf("%s-%d-%d", m[3], mo, dd)); err == nil {
			return d, true
		}
	}
	// MM-DD-YY
	if m := regexp.MustCompile(`(\d{1,2})[\-/](\d{1,2})[\-/](\d{2})\b`).FindStringSubmatch(text); m != nil {
		mo, _ := strconv.Atoi(m[1])
		dd, _ := strconv.Atoi(m[2])
		if mo > 12 && dd <= 12 {
			mo, dd = dd, mo
		}
		if d, err := time.Parse("2006-1-2", fmt.Sprintf("20%s-%d-%d", m[3], mo, dd)); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
