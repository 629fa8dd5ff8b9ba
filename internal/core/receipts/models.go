package receipts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entity selects one of the two business persistence namespaces
type Entity string

const (
	EntityCorp     Entity = "corp"
	EntitySoleprop Entity = "soleprop"
)

// SchemaName returns the Postgres schema backing an entity.
func (e Entity) SchemaName() string {
	if e == EntityCorp {
		return "curlys_corp"
	}
	return "curlys_soleprop"
}

// Source is the upload channel a receipt arrived through
type Source string

const (
	SourcePWA    Source = "pwa"
	SourceEmail  Source = "email"
	SourceDrive  Source = "drive"
	SourceManual Source = "manual"
)

// Status is the receipt lifecycle state
type Status string

const (
	StatusPending        Status = "pending"
	StatusProcessing     Status = "processing"
	StatusReviewRequired Status = "review_required"
	StatusApproved       Status = "approved"
	StatusPosted         Status = "posted"
	StatusRejected       Status = "rejected"
	StatusFailed         Status = "failed"
)

// LineType classifies a line on a receipt
type LineType string

const (
	LineTypeItem     LineType = "item"
	LineTypeDiscount LineType = "discount"
	LineTypeDeposit  LineType = "deposit"
	LineTypeFee      LineType = "fee"
	LineTypeSubtotal LineType = "subtotal"
	LineTypeTax      LineType = "tax"
	LineTypeTotal    LineType = "total"
)

// TaxFlag is the per-line tax treatment
type TaxFlag string

const (
	TaxFlagTaxable   TaxFlag = "Y"
	TaxFlagZeroRated TaxFlag = "Z"
	TaxFlagExempt    TaxFlag = "N"
)

// Warning types attached to receipts. Closed set; the review UI renders
// these verbatim with numeric context in Data.
const (
	WarningSubtotalMismatch         = "subtotal_mismatch"
	WarningTotalMismatch            = "total_mismatch"
	WarningPriceParseFailed         = "price_parse_failed"
	WarningDateParseFailed          = "date_parse_failed"
	WarningVendorUnknown            = "vendor_unknown"
	WarningRecognizerTimeout        = "recognizer_timeout"
	WarningRecognizerOutputInvalid  = "recognizer_output_invalid"
	WarningOCRLowConfidence         = "ocr_low_confidence"
	WarningBoundingBoxesUnavailable = "bounding_boxes_unavailable"
)

// ValidationWarning is a structured, non-fatal parse problem attached to a receipt
type ValidationWarning struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// BoundingBox locates a line on the source page, normalized to [0,1]
type BoundingBox struct {
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Left       float64 `json:"left"`
	Top        float64 `json:"top"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// ReceiptLine is a single line item on a receipt
type ReceiptLine struct {
	LineIndex int      `json:"line_index"`
	LineType  LineType `json:"line_type"`
	RawText   string   `json:"raw_text,omitempty"`

	// Product identification
	VendorSKU       *string `json:"vendor_sku,omitempty"`
	UPC             *string `json:"upc,omitempty"`
	ItemDescription string  `json:"item_description,omitempty"`

	// Quantities and pricing
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	LineTotal decimal.Decimal  `json:"line_total"`

	// Tax information
	TaxFlag   *TaxFlag         `json:"tax_flag,omitempty"`
	TaxAmount *decimal.Decimal `json:"tax_amount,omitempty"`

	// Classification (filled by the categorization stages)
	NormalizedDescription *string          `json:"normalized_description,omitempty"`
	ProductCategory       *string          `json:"product_category,omitempty"`
	Brand                 *string          `json:"brand,omitempty"`
	AccountCode           *string          `json:"account_code,omitempty"`
	Confidence            *float64         `json:"confidence,omitempty"`
	CategorizationSource  *string          `json:"categorization_source,omitempty"`
	RequiresReview        bool             `json:"requires_review"`
	AICostUSD             *decimal.Decimal `json:"ai_cost_usd,omitempty"`
	BoundingBox           *BoundingBox     `json:"bounding_box,omitempty"`
}

// ReceiptNormalized is the canonical post-parse receipt shape
type ReceiptNormalized struct {
	ReceiptID uuid.UUID `json:"receipt_id"`
	Entity    Entity    `json:"entity"`
	Source    Source    `json:"source"`

	VendorGuess string `json:"vendor_guess,omitempty"`

	PurchaseDate  time.Time  `json:"purchase_date"`
	InvoiceNumber *string    `json:"invoice_number,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`

	Currency string          `json:"currency"`
	Subtotal decimal.Decimal `json:"subtotal"`
	TaxTotal decimal.Decimal `json:"tax_total"`
	Total    decimal.Decimal `json:"total"`

	Lines []ReceiptLine `json:"lines"`

	IsBill       bool    `json:"is_bill"`
	PaymentTerms *string `json:"payment_terms,omitempty"`

	OCRMethod     string  `json:"ocr_method,omitempty"`
	OCRConfidence float64 `json:"ocr_confidence,omitempty"`
	PageCount     int     `json:"page_count,omitempty"`

	ContentHash    *string `json:"content_hash,omitempty"`
	PerceptualHash *string `json:"perceptual_hash,omitempty"`

	ValidationWarnings []ValidationWarning `json:"validation_warnings,omitempty"`
}

// amountTolerance is the accepted rounding slack on receipt arithmetic.
var amountTolerance = decimal.RequireFromString("0.02")

// Validate checks the receipt's numeric invariants and appends warnings for
// any that fail. The receipt is always accepted; no synthetic balancing line
// is ever created.
func (r *ReceiptNormalized) Validate() {
	expected := r.Subtotal.Add(r.TaxTotal)
	if r.Total.Sub(expected).Abs().GreaterThan(amountTolerance) {
		r.AddWarning(ValidationWarning{
			Type:    WarningTotalMismatch,
			Message: "subtotal + tax does not equal total",
			Data: map[string]any{
				"subtotal":   r.Subtotal.StringFixed(2),
				"tax_total":  r.TaxTotal.StringFixed(2),
				"total":      r.Total.StringFixed(2),
				"difference": r.Total.Sub(expected).Abs().StringFixed(2),
			},
		})
	}
}

// AddWarning appends a warning unless one with the same type and message is
// already present.
func (r *ReceiptNormalized) AddWarning(w ValidationWarning) {
	for _, existing := range r.ValidationWarnings {
		if existing.Type == w.Type && existing.Message == w.Message {
			return
		}
	}
	r.ValidationWarnings = append(r.ValidationWarnings, w)
}

// HasWarning reports whether a warning of the given type is present.
func (r *ReceiptNormalized) HasWarning(warningType string) bool {
	for _, w := range r.ValidationWarnings {
		if w.Type == warningType {
			return true
		}
	}
	return false
}

// LineItemSum returns the item+fee sum less absolute discounts, the quantity
// checked against the parsed subtotal.
func (r *ReceiptNormalized) LineItemSum() decimal.Decimal {
	sum := decimal.Zero
	discounts := decimal.Zero
	for _, line := range r.Lines {
		switch line.LineType {
		case LineTypeItem, LineTypeFee:
			sum = sum.Add(line.LineTotal)
		case LineTypeDiscount:
			discounts = discounts.Add(line.LineTotal)
		}
	}
	return sum.Sub(discounts.Abs())
}

// ProcessingResult summarizes one pipeline run for the caller.
type ProcessingResult struct {
	ReceiptID     uuid.UUID           `json:"receipt_id"`
	Entity        Entity              `json:"entity"`
	VendorGuess   string              `json:"vendor_guess,omitempty"`
	Total         decimal.Decimal     `json:"total"`
	LineCount     int                 `json:"line_count"`
	OCRMethod     string              `json:"ocr_method"`
	OCRConfidence float64             `json:"ocr_confidence"`
	Status        Status              `json:"status"`
	AICostUSD     decimal.Decimal     `json:"ai_cost_usd"`
	CacheHits     int                 `json:"cache_hits"`
	AICalls       int                 `json:"ai_calls"`
	Warnings      []ValidationWarning `json:"warnings,omitempty"`
}
