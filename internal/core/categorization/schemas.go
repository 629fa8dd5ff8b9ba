// Package categorization implements the two-stage line-item classifier:
// Stage 1 expands cryptic vendor descriptions with an LLM (cache-first),
// Stage 2 maps the recognized product category onto a GL account with
// deterministic rules. The product cache is the feedback edge — human
// corrections write through it so the next receipt benefits immediately.
package categorization

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Categorization sources recorded with each line.
const (
	SourceCache        = "cache"
	SourceAI           = "ai"
	SourceUserOverride = "user"
	SourceRule         = "rule"
)

// RecognizedItem is the Stage-1 result.
type RecognizedItem struct {
	NormalizedDescription string           `json:"normalized_description"`
	ProductCategory       string           `json:"product_category"`
	Brand                 *string          `json:"brand,omitempty"`
	ProductType           *string          `json:"product_type,omitempty"`
	Source                string           `json:"source"`
	Confidence            float64          `json:"confidence"`
	AICostUSD             *decimal.Decimal `json:"ai_cost_usd,omitempty"`
}

// AccountMapping is the Stage-2 result.
type AccountMapping struct {
	AccountCode    string  `json:"account_code"`
	AccountName    string  `json:"account_name"`
	Confidence     float64 `json:"confidence"`
	RequiresReview bool    `json:"requires_review"`
	MappingRule    string  `json:"mapping_rule,omitempty"`
}

// CategorizedLineItem combines both stages; this is what gets persisted on
// the receipt line.
type CategorizedLineItem struct {
	Vendor         string  `json:"vendor"`
	SKU            *string `json:"sku,omitempty"`
	RawDescription string  `json:"raw_description"`

	NormalizedDescription string  `json:"normalized_description"`
	ProductCategory       string  `json:"product_category"`
	Brand                 *string `json:"brand,omitempty"`

	AccountCode string `json:"account_code"`
	AccountName string `json:"account_name"`

	Source         string           `json:"source"`
	Confidence     float64          `json:"confidence"`
	RequiresReview bool             `json:"requires_review"`
	AICostUSD      *decimal.Decimal `json:"ai_cost_usd,omitempty"`
}

// ProductMapping is one cache entry: the durable, cross-entity learning
// record for a (vendor, sku) pair.
type ProductMapping struct {
	ID                    uuid.UUID        `json:"id"`
	VendorCanonical       string           `json:"vendor_canonical"`
	SKU                   string           `json:"sku"`
	DescriptionNormalized string           `json:"description_normalized"`
	AccountCode           string           `json:"account_code"`
	ProductCategory       string           `json:"product_category"`
	Brand                 *string          `json:"brand,omitempty"`
	TimesSeen             int              `json:"times_seen"`
	UserConfidence        *decimal.Decimal `json:"user_confidence,omitempty"`
	LastSeen              time.Time        `json:"last_seen"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// WebProduct is the optional web-lookup context for an SKU.
type WebProduct struct {
	ProductName  string `json:"product_name,omitempty"`
	Brand        string `json:"brand,omitempty"`
	CategoryHint string `json:"category_hint,omitempty"`
}
