package parsers

import (
	"fmt"
	"regexp"
	"time"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/vendors"
	"github.com/shopspring/decimal"
)

// GFSParser handles Gordon Food Service invoices.
//
// PDF invoices with tabular line items. Category codes GR (grocery),
// FR (frozen), DY (dairy), DS (disposables); tax column carries H for HST
// taxable items; fuel surcharges ride in the Misc line. Net 14 terms.
type GFSParser struct{}

var (
	gfsDetectRe   = regexp.MustCompile(`(?i)GORDON\s+FOOD\s+SERVICE|GFS\s+CANADA|GFSCANADA\.COM`)
	gfsInvoiceRe  = regexp.MustCompile(`Invoice\s+(\d{10})`)
	gfsDateRe     = regexp.MustCompile(`Invoice Date\s+(\d{2}/\d{2}/\d{4})`)
	gfsDateNextRe = regexp.MustCompile(`(?s)Invoice Date.*?[\n\r]+.*?(\d{2}/\d{2}/\d{4})`)
	gfsDueDateRe  = regexp.MustCompile(`Due Date\s+(\d{2}/\d{2}/\d{4})`)
	gfsSubtotalRe = regexp.MustCompile(`Product Total\s+\$?([\d,]+\.\d{2})`)
	gfsFuelRe     = regexp.MustCompile(`Misc\s+\$?([\d,]+\.\d{2})`)
	gfsTaxRe      = regexp.MustCompile(`GST/HST\s+\$?([\d,]+\.\d{2})`)
	gfsTotalRe    = regexp.MustCompile(`Invoice Total\s+\$?([\d,]+\.\d{2})`)

	// ItemCode QtyOrdered Description Category UnitPrice ExtPrice [H] Unit QtyShip PackSize Brand
	gfsLineRe = regexp.MustCompile(`(?m)(\d{7})\s+(\d+)\s+(.+?)\s+(GR|FR|DY|DS|CP)\s+([\d.]+)\s+([\d.]+)\s+(H)?\s*(CS|EA)\s+(\d+)\s+([\dXx.]+\s*[A-Z]+)\s+(\w+)`)
)

func (p *GFSParser) Key() string { return vendors.KeyGFS }

func (p *GFSParser) DetectFormat(text string) bool {
	if gfsDetectRe.MatchString(text) {
		return true
	}
	return gfsInvoiceRe.MatchString(text) && regexp.MustCompile(`\b(GR|FR|DY|DS)\b`).MatchString(text)
}

func (p *GFSParser) Parse(text string, entity receipts.Entity) (*receipts.ReceiptNormalized, error) {
	rec := &receipts.ReceiptNormalized{
		Entity:       entity,
		Source:       receipts.SourceManual, // overridden by the caller
		VendorGuess:  "Gordon Food Service",
		Currency:     "CAD",
		IsBill:       true,
		PaymentTerms: strPtr("Net 14"),
	}

	if m := gfsInvoiceRe.FindStringSubmatch(text); m != nil {
		rec.InvoiceNumber = strPtr(m[1])
	}

	date, ok := gfsExtractDate(text)
	if !ok {
		return nil, fmt.Errorf("gfs: could not extract invoice date")
	}
	rec.PurchaseDate = date

	if m := gfsDueDateRe.FindStringSubmatch(text); m != nil {
		if due, err := time.Parse("01/02/2006", m[1]); err == nil {
			rec.DueDate = &due
		}
	}

	subtotal := amountOrZero(text, gfsSubtotalRe)
	fuel := amountOrZero(text, gfsFuelRe)
	rec.TaxTotal = amountOrZero(text, gfsTaxRe)

	total := ExtractAmount(text, gfsTotalRe, 1)
	if total == nil {
		return nil, fmt.Errorf("gfs: could not extract invoice total")
	}
	rec.Total = *total

	for _, m := range gfsLineRe.FindAllStringSubmatch(text, -1) {
		unitPrice, err1 := NormalizePrice(m[5])
		extPrice, err2 := NormalizePrice(m[6])
		if err1 != nil || err2 != nil {
			rec.AddWarning(priceParseWarning(m[0]))
			continue
		}

		flag := receipts.TaxFlagExempt
		if m[7] == "H" {
			flag = receipts.TaxFlagTaxable
		}

		qtyShipped, err := decimal.NewFromString(m[9])
		if err != nil {
			qtyShipped = decimal.NewFromInt(1)
		}

		line := receipts.ReceiptLine{
			LineIndex:       len(rec.Lines),
			LineType:        receipts.LineTypeItem,
			RawText:         CleanDescription(m[0]),
			VendorSKU:       strPtr(m[1]),
			ItemDescription: fmt.Sprintf("%s (%s)", CleanDescription(m[3]), CleanDescription(m[10])),
			Quantity:        decPtr(qtyShipped),
			UnitPrice:       decPtr(unitPrice),
			LineTotal:       extPrice,
			TaxFlag:         taxFlagPtr(flag),
			TaxAmount:       decPtr(lineTax(extPrice, flag)),
		}
		rec.Lines = append(rec.Lines, line)
	}

	// Fuel surcharge rides inside the subtotal as a fee line.
	if fuel.IsPositive() {
		rec.Lines = append(rec.Lines, receipts.ReceiptLine{
			LineIndex:       len(rec.Lines),
			LineType:        receipts.LineTypeFee,
			RawText:         "Fuel Charge",
			ItemDescription: "Fuel Surcharge",
			Quantity:        decPtr(decimal.NewFromInt(1)),
			UnitPrice:       decPtr(fuel),
			LineTotal:       fuel,
			TaxFlag:         taxFlagPtr(receipts.TaxFlagTaxable),
			TaxAmount:       decPtr(lineTax(fuel, receipts.TaxFlagTaxable)),
		})
	}

	rec.Subtotal = subtotal.Add(fuel)
	finalize(rec)

	return rec, nil
}

func gfsExtractDate(text string) (time.Time, bool) {
	if m := gfsDateRe.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("01/02/2006", m[1]); err == nil {
			return d, true
		}
	}
	if m := gfsDateNextRe.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("01/02/2006", m[1]); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func amountOrZero(text string, pattern *regexp.Regexp) decimal.Decimal {
	if amount := ExtractAmount(text, pattern, 1); amount != nil {
		return *amount
	}
	return decimal.Zero
}

// finalize runs the shared numeric checks every parser applies before
// returning: subtotal reconciliation and the total invariant.
func finalize(rec *receipts.ReceiptNormalized) {
	if w := CheckSubtotal(rec.Lines, rec.Subtotal); w != nil {
		rec.AddWarning(*w)
	}
	rec.Validate()
}
