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

// PepsiParser handles PepsiCo Canada Beverages invoices: direct delivery
// invoices (INVOICE # plus ITEM DETAIL section) and monthly email summary
// PDFs (Invoice Details format). Charge-PAD terms, 15th of following month.
//
// Detection requires company or invoice context. PepsiCo GS1-prefixed UPCs
// alone are never enough — they appear on every retailer's receipt.
type PepsiParser struct{}

var (
	pepsiNameRe    = regexp.MustCompile(`PEPSICO\s+CANADA|PEPSI.*BEVERAGES|BEVERAGES.*BREUVAGES`)
	pepsiContextRe = regexp.MustCompile(`INVOICE\s+DETAILS|INVOICE\s+SUMMARY|INVOICE\s*#|ITEM\s+DETAIL|ROUTE\s*#?\s*:?\s*\d+`)
	pepsiUPCRe     = regexp.MustCompile(`69000\d{6}`)

	pepsiInvoiceRe    = regexp.MustCompile(`(?i)INVOICE\s*#\s*(\d+)`)
	pepsiDateRe       = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`)
	pepsiShortDateRe  = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{2,4})`)
	pepsiAmountDueRe  = regexp.MustCompile(`(?i)Amount\s+Due[\s\S]*?\$\s*([\d,]+\.?\d*)`)
	pepsiForInvoiceRe = regexp.MustCompile(`(?i)for\s+this\s+Invoice[\s\S]*?\$\s*([\d,]+\.?\d*)`)
	pepsiSalesRe      = regexp.MustCompile(`(?is)Sales.*?Cases.*?\d+\s+([\d,]+\.?\d*)`)
	pepsiSubtotalRe   = regexp.MustCompile(`(?i)Subtotal.*?([\d,]+\.?\d*)`)
	pepsiHSTOnRe      = regexp.MustCompile(`(?i)GST/HST\s+On.*?\$\s*[\d,]+\.?\d*\s*\$\s*([\d,]+\.?\d*)`)
	pepsiHSTRe        = regexp.MustCompile(`(?i)GST/HST.*?\$\s*([\d,]+\.?\d*)`)
	pepsiChargesRe    = regexp.MustCompile(`(?i)Charges[\s\n]+([\d,]+\.?\d*)`)

	pepsiItemSectionRe = regexp.MustCompile(`(?is)ITEM DETAIL.*?SALES(.*?)(?:CHARGES|Amount Due)`)
	// Description UPC Tax Price/Case Cases Units PricePerCase NetAmount
	pepsiDeliveryLineRe = regexp.MustCompile(`(?m)([A-Z][A-Z0-9\s/]+?)\s+([\d-]{11,})\s+T?\s*[\d.]+\s+(\d+)\s+\d+\s+([\d.]+)\s+([\d.]+)\s*$`)
	// Description UPC Quantity CS/EA $UnitPrice $Total
	pepsiEmailLineRe = regexp.MustCompile(`(?im)([A-Z0-9\s/]+?)\s+(\d{8,})\s+(\d+)\s+(?:CS|EA)\s+[=$\s]*\$?([\d.]+)[.\s]*\$?([\d.]+)`)
)

func (p *PepsiParser) Key() string { return vendors.KeyPepsi }

func (p *PepsiParser) DetectFormat(text string) bool {
	textUpper := strings.ToUpper(text)

	if pepsiNameRe.MatchString(textUpper) && pepsiContextRe.MatchString(textUpper) {
		return true
	}

	// Multiple PepsiCo product codes still need invoice context to count:
	// a Walmart receipt full of Pepsi UPCs is not a Pepsi invoice.
	if len(pepsiUPCRe.FindAllString(text, -1)) >= 3 && pepsiContextRe.MatchString(textUpper) {
		return true
	}

	return false
}

func (p *PepsiParser) Parse(text string, entity receipts.Entity) (*receipts.ReceiptNormalized, error) {
	textUpper := strings.ToUpper(text)

	if strings.Contains(textUpper, "INVOICE DETAILS") || strings.Contains(textUpper, "INVOICE SUMMARY") {
		return p.parseEmailSummary(text, entity)
	}
	return p.parseDeliveryInvoice(text, entity)
}

// parseDeliveryInvoice reads printed/photo delivery receipts.
func (p *PepsiParser) parseDeliveryInvoice(text string, entity receipts.Entity) (*receipts.ReceiptNormalized, error) {
	rec := &receipts.ReceiptNormalized{
		Entity:       entity,
		Source:       receipts.SourceManual,
		VendorGuess:  "PepsiCo Canada",
		Currency:     "CAD",
		IsBill:       true,
		PaymentTerms: strPtr("Charge-PAD 15th next month"),
	}

	if m := pepsiInvoiceRe.FindStringSubmatch(text); m != nil {
		rec.InvoiceNumber = strPtr(m[1])
	}

	if m := pepsiDateRe.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("1/2/2006", m[1]); err == nil {
			rec.PurchaseDate = d
		}
	}
	if rec.PurchaseDate.IsZero() {
		rec.AddWarning(dateParseWarning(preview(text, 80)))
		rec.PurchaseDate = time.Now().UTC().Truncate(24 * time.Hour)
	}

	var total decimal.Decimal
	if amount := ExtractAmount(text, pepsiAmountDueRe, 1); amount != nil {
		total = *amount
	} else if amount := ExtractAmount(text, pepsiForInvoiceRe, 1); amount != nil {
		total = *amount
	} else {
		return nil, fmt.Errorf("pepsi: could not extract amount due")
	}
	rec.Total = total

	subtotal := decimal.Zero
	if amount := ExtractAmount(text, pepsiSalesRe, 1); amount != nil {
		subtotal = *amount
	} else if amount := ExtractAmount(text, pepsiSubtotalRe, 1); amount != nil {
		subtotal = *amount
	}

	if amount := ExtractAmount(text, pepsiHSTOnRe, 1); amount != nil {
		rec.TaxTotal = *amount
	} else if amount := ExtractAmount(text, pepsiHSTRe, 1); amount != nil {
		rec.TaxTotal = *amount
	}

	charges := amountOrZero(text, pepsiChargesRe)

	p.extractDeliveryLines(text, rec)

	// Deposit charges ride inside the subtotal as a fee line so the
	// subtotal + tax == total invariant holds.
	if charges.IsPositive() {
		rec.Lines = append(rec.Lines, receipts.ReceiptLine{
			LineIndex:       len(rec.Lines),
			LineType:        receipts.LineTypeFee,
			RawText:         "Charges",
			ItemDescription: "Container Deposits",
			Quantity:        decPtr(decimal.NewFromInt(1)),
			UnitPrice:       decPtr(charges),
			LineTotal:       charges,
			TaxFlag:         taxFlagPtr(receipts.TaxFlagExempt),
			TaxAmount:       decPtr(decimal.Zero),
		})
	}

	rec.Subtotal = subtotal.Add(charges)
	finalize(rec)
	return rec, nil
}

func (p *PepsiParser) extractDeliveryLines(text string, rec *receipts.ReceiptNormalized) {
	sectionMatch := pepsiItemSectionRe.FindStringSubmatch(text)
	if sectionMatch == nil {
		return
	}

	for _, m := range pepsiDeliveryLineRe.FindAllStringSubmatch(sectionMatch[1], -1) {
		upc := strings.ReplaceAll(m[2], "-", "")
		cases, err := decimal.NewFromString(m[3])
		if err != nil {
			cases = decimal.NewFromInt(1)
		}
		pricePerCase, err1 := NormalizePrice(m[4])
		lineTotal, err2 := NormalizePrice(m[5])
		if err1 != nil || err2 != nil {
			rec.AddWarning(priceParseWarning(strings.TrimSpace(m[0])))
			continue
		}

		rec.Lines = append(rec.Lines, receipts.ReceiptLine{
			LineIndex:       len(rec.Lines),
			LineType:        receipts.LineTypeItem,
			RawText:         strings.TrimSpace(m[0]),
			VendorSKU:       strPtr(upc),
			UPC:             strPtr(upc),
			ItemDescription: CleanDescription(m[1]),
			Quantity:        decPtr(cases),
			UnitPrice:       decPtr(pricePerCase),
			LineTotal:       lineTotal,
			TaxFlag:         taxFlagPtr(receipts.TaxFlagTaxable),
		})
	}
}

// parseEmailSummary reads monthly invoice summary PDFs.
func (p *PepsiParser) parseEmailSummary(text string, entity receipts.Entity) (*receipts.ReceiptNormalized, error) {
	rec := &receipts.ReceiptNormalized{
		Entity:       entity,
		Source:       receipts.SourceManual,
		VendorGuess:  "PepsiCo Canada",
		Currency:     "CAD",
		IsBill:       true,
		PaymentTerms: strPtr("15th of next month"),
	}

	if m := regexp.MustCompile(`(\d{8})`).FindStringSubmatch(text); m != nil {
		rec.InvoiceNumber = strPtr(m[1])
	}

	if m := pepsiShortDateRe.FindStringSubmatch(text); m != nil {
		layout := "1/2/2006"
		if parts := strings.Split(m[1], "/"); len(parts) == 3 && len(parts[2]) == 2 {
			layout = "1/2/06"
		}
		if d, err := time.Parse(layout, m[1]); err == nil {
			rec.PurchaseDate = d
		}
	}
	if rec.PurchaseDate.IsZero() {
		rec.AddWarning(dateParseWarning(preview(text, 80)))
		rec.PurchaseDate = time.Now().UTC().Truncate(24 * time.Hour)
	}

	for _, m := range pepsiEmailLineRe.FindAllStringSubmatch(text, -1) {
		qty, err := decimal.NewFromString(m[3])
		if err != nil {
			qty = decimal.NewFromInt(1)
		}
		unitPrice, err1 := NormalizePrice(m[4])
		lineTotal, err2 := NormalizePrice(m[5])
		if err1 != nil || err2 != nil {
			rec.AddWarning(priceParseWarning(strings.TrimSpace(m[0])))
			continue
		}

		rec.Lines = append(rec.Lines, receipts.ReceiptLine{
			LineIndex:       len(rec.Lines),
			LineType:        receipts.LineTypeItem,
			RawText:         strings.TrimSpace(m[0]),
			VendorSKU:       strPtr(m[2]),
			UPC:             strPtr(m[2]),
			ItemDescription: CleanDescription(m[1]),
			Quantity:        decPtr(qty),
			UnitPrice:       decPtr(unitPrice),
			LineTotal:       lineTotal,
			TaxFlag:         taxFlagPtr(receipts.TaxFlagTaxable),
		})
	}

	subtotal := decimal.Zero
	for _, line := range rec.Lines {
		subtotal = subtotal.Add(line.LineTotal)
	}
	rec.Subtotal = subtotal
	rec.Total = subtotal

	if m := regexp.MustCompile(`(?i)Total.*?\$?([\d,]+\.?\d*)`).FindStringSubmatch(text); m != nil {
		if amount, err := NormalizePrice(m[1]); err == nil {
			rec.Total = amount
		}
	}

	if rec.Total.GreaterThan(subtotal) {
		rec.TaxTotal = rec.Total.Sub(subtotal)
	}

	finalize(rec)
	return rec, nil
}
