package parsers

import (
	"fmt"
	"regexp"
	"time"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/vendors"
	"github.com/shopspring/decimal"
)

// CostcoParser handles Costco Wholesale receipts (online order history
// format). Line items are SKU, description, price, Y/N tax flag. Container
// deposit codes (948x/949x) are excluded from item extraction; TPD lines are
// instant-savings discounts stored negative.
type CostcoParser struct{}

var costcoDepositCodes = map[string]bool{
	"9484": true, "9485": true, "9486": true, "9487": true,
	"9488": true, "9489": true, "9490": true, "9491": true,
	"9492": true, "9493": true, "9494": true, "9495": true,
}

var (
	costcoDetectRe   = regexp.MustCompile(`(?i)COSTCO\s+WHOLESALE|COSTCO\.CA|COSTCO\.COM`)
	costcoMemberRe   = regexp.MustCompile(`(?i)Member(?:\s+#)?\s*(\d{12})`)
	costcoDateRe     = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s+\d{2}:\d{2}\s+\d{11,12}`)
	costcoDateAltRe  = regexp.MustCompile(`P7\s+(\d{2}/\d{2}/\d{4})`)
	costcoTxnRe      = regexp.MustCompile(`\d{2}/\d{2}/\d{4}\s+\d{2}:\d{2}\s+(\d{11,12})`)
	costcoBarcodeRe  = regexp.MustCompile(`(\d{23})`)
	costcoLineRe     = regexp.MustCompile(`(?m)(\d{4,7})\s+([A-Z][A-Z\s*/\-]+?)\s+([\d.]+)(-?)\s*([YN])?(?:\s|$)`)
	costcoTPDRe      = regexp.MustCompile(`TPD/`)
	costcoSubtotalRe = regexp.MustCompile(`SUBTOTAL\s+([\d,]+\.\d{2})`)
	costcoTaxRe      = regexp.MustCompile(`(?m)^\s*TAX\s+([\d,]+\.\d{2})`)
	costcoTaxAltRe   = regexp.MustCompile(`\(A\)\s+15%\s+HST\s+([\d,]+\.\d{2})`)
	costcoTotalRe    = regexp.MustCompile(`\*+\s+TOTAL\s+([\d,]+\.\d{2})`)
	costcoSavingsRe  = regexp.MustCompile(`INSTANT SAVINGS\s+\$?([\d,]+\.\d{2})`)
)

func (p *CostcoParser) Key() string { return vendors.KeyCostco }

func (p *CostcoParser) DetectFormat(text string) bool {
	if costcoDetectRe.MatchString(text) {
		return true
	}
	return costcoMemberRe.MatchString(text) && costcoTxnRe.MatchString(text)
}

func (p *CostcoParser) Parse(text string, entity receipts.Entity) (*receipts.ReceiptNormalized, error) {
	rec := &receipts.ReceiptNormalized{
		Entity:      entity,
		Source:      receipts.SourceManual,
		VendorGuess: "Costco Wholesale",
		Currency:    "CAD",
		IsBill:      false, // paid at the register
	}

	date, ok := costcoExtractDate(text)
	if !ok {
		return nil, fmt.Errorf("costco: could not extract transaction date")
	}
	rec.PurchaseDate = date

	if txn := costcoExtractTransactionID(text); txn != "" {
		rec.InvoiceNumber = strPtr(txn)
	}

	rec.Subtotal = amountOrZero(text, costcoSubtotalRe)
	rec.TaxTotal = amountOrZero(text, costcoTaxRe)
	if rec.TaxTotal.IsZero() {
		rec.TaxTotal = amountOrZero(text, costcoTaxAltRe)
	}

	total := ExtractAmount(text, costcoTotalRe, 1)
	if total == nil {
		return nil, fmt.Errorf("costco: could not extract total")
	}
	rec.Total = *total

	for _, m := range costcoLineRe.FindAllStringSubmatch(text, -1) {
		sku := m[1]
		if costcoDepositCodes[sku] {
			continue
		}

		price, err := NormalizePrice(m[3])
		if err != nil {
			rec.AddWarning(priceParseWarning(m[0]))
			continue
		}
		if m[4] == "-" {
			price = price.Neg()
		}

		description := CleanDescription(m[2])

		var line receipts.ReceiptLine
		if costcoTPDRe.MatchString(description) {
			// Instant-savings discount line, stored negative.
			line = receipts.ReceiptLine{
				LineIndex:       len(rec.Lines),
				LineType:        receipts.LineTypeDiscount,
				RawText:         CleanDescription(m[0]),
				VendorSKU:       strPtr(sku),
				ItemDescription: description,
				LineTotal:       price.Abs().Neg(),
				TaxFlag:         taxFlagPtr(receipts.TaxFlagExempt),
				TaxAmount:       decPtr(decimal.Zero),
			}
		} else {
			flag := receipts.TaxFlagExempt
			if m[5] == "Y" {
				flag = receipts.TaxFlagTaxable
			}
			// Costco prints extended prices only; quantity stays 1.
			line = receipts.ReceiptLine{
				LineIndex:       len(rec.Lines),
				LineType:        receipts.LineTypeItem,
				RawText:         CleanDescription(m[0]),
				VendorSKU:       strPtr(sku),
				ItemDescription: description,
				Quantity:        decPtr(decimal.NewFromInt(1)),
				UnitPrice:       decPtr(price),
				LineTotal:       price,
				TaxFlag:         taxFlagPtr(flag),
				TaxAmount:       decPtr(lineTax(price, flag)),
			}
		}
		rec.Lines = append(rec.Lines, line)
	}

	finalize(rec)
	return rec, nil
}

func costcoExtractDate(text string) (time.Time, bool) {
	if m := costcoDateRe.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("01/02/2006", m[1]); err == nil {
			return d, true
		}
	}
	if m := costcoDateAltRe.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("01/02/2006", m[1]); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func costcoExtractTransactionID(text string) string {
	if m := costcoTxnRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := costcoBarcodeRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
