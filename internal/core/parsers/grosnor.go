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

// GrosnorParser handles Grosnor Distribution invoices for the collectibles
// side of the business. Clean PDF invoices: alpha-numeric SKUs, pack
// configuration in (case/inner/unit) form, SRP and UPC embedded in
// descriptions, freight as a separate charge.
type GrosnorParser struct{}

var (
	grosnorDetectRe  = regexp.MustCompile(`(?i)GROSNOR\s+DISTRIBUTION|GROSNOR\.COM`)
	grosnorConfigRe  = regexp.MustCompile(`\(\d+/\d+(?:/\d+)?\)`)
	grosnorUPCTextRe = regexp.MustCompile(`\(UPC\s+(\d+)\)`)
	grosnorSRPRe     = regexp.MustCompile(`\(SRP\$[\d.]+\)`)
	grosnorRefRe     = regexp.MustCompile(`#[\d\-]+`)
	grosnorInvoiceRe = regexp.MustCompile(`INVOICE NO\.\s+(\d{6})`)
	grosnorOrderRe   = regexp.MustCompile(`ORDER NO\.\s+(\d{6})`)
	grosnorDateRe    = regexp.MustCompile(`DATE\s+(\d{2}/\d{2}/\d{2})`)
	grosnorTermsRe   = regexp.MustCompile(`TERMS\s+([\w/]+)`)
	grosnorSalesRe   = regexp.MustCompile(`SALES AMOUNT\s+([\d.]+)`)
	grosnorFreightRe = regexp.MustCompile(`FREIGHT\s+([\d.]+)`)
	grosnorMiscRe    = regexp.MustCompile(`MISC\s+([\d.]+)`)
	grosnorTaxRe     = regexp.MustCompile(`(?:GST/HST|HST)\s+([\d.]+)`)
	grosnorTotalRe   = regexp.MustCompile(`INVOICE TOTAL\s+([\d.]+)`)

	// SKU Description (Config) QtyOrd QtyShip QtyBO UOM UnitPrice ExtPrice
	grosnorLineRe = regexp.MustCompile(`(?m)^([A-Z0-9]+)\s+(.+?)\s+\((\d+/\d+(?:/\d+)?)\)\s+(\d+)\s+(\d+)\s+(\d+)\s+(EA|BX)\s+([\d.]+)\s+([\d.]+)`)
)

func (p *GrosnorParser) Key() string { return vendors.KeyGrosnor }

func (p *GrosnorParser) DetectFormat(text string) bool {
	if grosnorDetectRe.MatchString(text) {
		return true
	}
	return grosnorConfigRe.MatchString(text) && grosnorUPCTextRe.MatchString(text)
}

func (p *GrosnorParser) Parse(text string, entity receipts.Entity) (*receipts.ReceiptNormalized, error) {
	rec := &receipts.ReceiptNormalized{
		Entity:      entity,
		Source:      receipts.SourceManual,
		VendorGuess: "Grosnor Distribution",
		Currency:    "CAD",
		IsBill:      true,
	}

	if m := grosnorInvoiceRe.FindStringSubmatch(text); m != nil {
		rec.InvoiceNumber = strPtr(m[1])
	}

	m := grosnorDateRe.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("grosnor: could not extract invoice date")
	}
	date, err := time.Parse("01/02/06", m[1])
	if err != nil {
		return nil, fmt.Errorf("grosnor: could not parse invoice date %q", m[1])
	}
	rec.PurchaseDate = date

	if m := grosnorTermsRe.FindStringSubmatch(text); m != nil {
		terms := m[1]
		if strings.Contains(terms, "VISA") || strings.Contains(terms, "MC") || strings.Contains(terms, "VDCARD") {
			terms = "Credit Card"
		}
		rec.PaymentTerms = strPtr(terms)
	}

	sales := amountOrZero(text, grosnorSalesRe)
	freight := amountOrZero(text, grosnorFreightRe)
	misc := amountOrZero(text, grosnorMiscRe)
	rec.TaxTotal = amountOrZero(text, grosnorTaxRe)

	total := ExtractAmount(text, grosnorTotalRe, 1)
	if total == nil {
		return nil, fmt.Errorf("grosnor: could not extract invoice total")
	}
	rec.Total = *total

	for _, m := range grosnorLineRe.FindAllStringSubmatch(text, -1) {
		unitPrice, err1 := NormalizePrice(m[8])
		extPrice, err2 := NormalizePrice(m[9])
		if err1 != nil || err2 != nil {
			rec.AddWarning(priceParseWarning(strings.TrimSpace(m[0])))
			continue
		}

		qtyShipped, err := decimal.NewFromString(m[5])
		if err != nil {
			qtyShipped = decimal.NewFromInt(1)
		}

		descriptionRaw := strings.TrimSpace(m[2])
		var upc *string
		if u := grosnorUPCTextRe.FindStringSubmatch(descriptionRaw); u != nil {
			upc = strPtr(u[1])
		}
		description := grosnorSRPRe.ReplaceAllString(descriptionRaw, "")
		description = grosnorUPCTextRe.ReplaceAllString(description, "")
		description = grosnorRefRe.ReplaceAllString(description, "")
		description = CleanDescription(description)

		rec.Lines = append(rec.Lines, receipts.ReceiptLine{
			LineIndex:       len(rec.Lines),
			LineType:        receipts.LineTypeItem,
			RawText:         CleanDescription(m[0]),
			VendorSKU:       strPtr(m[1]),
			UPC:             upc,
			ItemDescription: fmt.Sprintf("%s (%s)", description, m[3]),
			Quantity:        decPtr(qtyShipped),
			UnitPrice:       decPtr(unitPrice),
			LineTotal:       extPrice,
			TaxFlag:         taxFlagPtr(receipts.TaxFlagTaxable),
			TaxAmount:       decPtr(lineTax(extPrice, receipts.TaxFlagTaxable)),
		})
	}

	// Freight and misc charges ride inside the subtotal as fee lines.
	for _, charge := range []struct {
		amount decimal.Decimal
		raw    string
		desc   string
	}{
		{freight, "Freight Charge", "Freight"},
		{misc, "Misc Charge", "Miscellaneous Charge"},
	} {
		if !charge.amount.IsPositive() {
			continue
		}
		rec.Lines = append(rec.Lines, receipts.ReceiptLine{
			LineIndex:       len(rec.Lines),
			LineType:        receipts.LineTypeFee,
			RawText:         charge.raw,
			ItemDescription: charge.desc,
			Quantity:        decPtr(decimal.NewFromInt(1)),
			UnitPrice:       decPtr(charge.amount),
			LineTotal:       charge.amount,
			TaxFlag:         taxFlagPtr(receipts.TaxFlagTaxable),
			TaxAmount:       decPtr(lineTax(charge.amount, receipts.TaxFlagTaxable)),
		})
	}

	rec.Subtotal = sales.Add(freight).Add(misc)
	finalize(rec)
	return rec, nil
}
