package receipts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("receipts-repository")

// Querier is satisfied by *pgxpool.Pool and pgx.Tx. Repository methods take
// it explicitly so a whole receipt save can share one transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository routes receipt reads and writes to the correct entity schema.
// Corp and sole-prop books never mix; the schema name comes from the entity
// on every call.
type Repository struct {
	db     Querier
	logger *slog.Logger
}

func NewRepository(db Querier, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// SaveReceipt inserts or updates the receipt header row. Validation warnings
// are stored as an ordered JSON array on the row.
func (r *Repository) SaveReceipt(ctx context.Context, q Querier, rec *ReceiptNormalized, status Status) error {
	ctx, span := tracer.Start(ctx, "receipts.SaveReceipt")
	defer span.End()

	warnings := rec.ValidationWarnings
	if warnings == nil {
		warnings = []ValidationWarning{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal validation warnings: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.receipts (
			id, entity, source, vendor_guess, purchase_date, invoice_number,
			due_date, currency, subtotal, tax_total, total, is_bill,
			payment_terms, ocr_method, ocr_confidence, page_count,
			content_hash, perceptual_hash, validation_warnings, status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			vendor_guess = EXCLUDED.vendor_guess,
			purchase_date = EXCLUDED.purchase_date,
			invoice_number = EXCLUDED.invoice_number,
			due_date = EXCLUDED.due_date,
			currency = EXCLUDED.currency,
			subtotal = EXCLUDED.subtotal,
			tax_total = EXCLUDED.tax_total,
			total = EXCLUDED.total,
			is_bill = EXCLUDED.is_bill,
			payment_terms = EXCLUDED.payment_terms,
			ocr_method = EXCLUDED.ocr_method,
			ocr_confidence = EXCLUDED.ocr_confidence,
			page_count = EXCLUDED.page_count,
			validation_warnings = EXCLUDED.validation_warnings,
			status = EXCLUDED.status,
			updated_at = NOW()`,
		rec.Entity.SchemaName())

	_, err = q.Exec(ctx, query,
		rec.ReceiptID, string(rec.Entity), string(rec.Source), rec.VendorGuess,
		rec.PurchaseDate, rec.InvoiceNumber, rec.DueDate, rec.Currency,
		rec.Subtotal, rec.TaxTotal, rec.Total, rec.IsBill,
		rec.PaymentTerms, rec.OCRMethod, rec.OCRConfidence, rec.PageCount,
		rec.ContentHash, rec.PerceptualHash, warningsJSON, string(status),
	)
	if err != nil {
		r.logger.Error("failed to save receipt",
			"receipt_id", rec.ReceiptID,
			"entity", rec.Entity,
			"error", err)
		return fmt.Errorf("failed to save receipt: %w", err)
	}

	r.logger.Info("receipt saved",
		"receipt_id", rec.ReceiptID,
		"entity", rec.Entity,
		"vendor", rec.VendorGuess,
		"status", status,
		"warnings", len(warnings))

	return nil
}

// SaveLines replaces all lines of a receipt inside the caller's transaction.
// Delete-then-insert keyed on receipt_id makes re-runs idempotent per
// (receipt_id, line_index).
func (r *Repository) SaveLines(ctx context.Context, q Querier, entity Entity, receiptID uuid.UUID, lines []ReceiptLine) error {
	ctx, span := tracer.Start(ctx, "receipts.SaveLines")
	defer span.End()

	schema := entity.SchemaName()

	if _, err := q.Exec(ctx, fmt.Sprintf(`DELETE FROM %s.receipt_line_items WHERE receipt_id = $1`, schema), receiptID); err != nil {
		return fmt.Errorf("failed to clear existing lines: %w", err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s.receipt_line_items (
			id, receipt_id, line_index, line_type, raw_text, sku, upc,
			description, normalized_description, brand, quantity, unit_price,
			line_total, tax_flag, tax_amount, product_category, account_code,
			confidence_score, categorization_source, requires_review,
			review_status, ai_cost, bounding_box, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, 'pending', $21, $22, NOW()
		)`, schema)

	for _, line := range lines {
		var boundingBoxJSON []byte
		if line.BoundingBox != nil {
			var err error
			boundingBoxJSON, err = json.Marshal(line.BoundingBox)
			if err != nil {
				return fmt.Errorf("failed to marshal bounding box: %w", err)
			}
		}

		description := line.ItemDescription
		if description == "" {
			description = line.RawText
		}
		if description == "" {
			description = "Unknown"
		}

		_, err := q.Exec(ctx, insert,
			uuid.New(), receiptID, line.LineIndex, string(line.LineType),
			line.RawText, line.VendorSKU, line.UPC, description,
			line.NormalizedDescription, line.Brand, line.Quantity, line.UnitPrice,
			line.LineTotal, line.TaxFlag, line.TaxAmount, line.ProductCategory,
			line.AccountCode, line.Confidence, line.CategorizationSource,
			line.RequiresReview, line.AICostUSD, boundingBoxJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to insert line %d: %w", line.LineIndex, err)
		}
	}

	r.logger.Info("receipt lines saved",
		"receipt_id", receiptID,
		"entity", entity,
		"line_count", len(lines))

	return nil
}

// SetStatus moves a receipt through its lifecycle.
func (r *Repository) SetStatus(ctx context.Context, q Querier, entity Entity, receiptID uuid.UUID, status Status) error {
	query := fmt.Sprintf(`UPDATE %s.receipts SET status = $1, updated_at = NOW() WHERE id = $2`, entity.SchemaName())
	tag, err := q.Exec(ctx, query, string(status), receiptID)
	if err != nil {
		return fmt.Errorf("failed to update receipt status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("receipt %s not found in %s", receiptID, entity.SchemaName())
	}
	return nil
}

// ReviewFilters narrows the review queue query.
type ReviewFilters struct {
	Vendor        string
	DateFrom      *time.Time
	DateTo        *time.Time
	MaxConfidence *float64
	Limit         int
}

// ReviewLine is one line item awaiting human review.
type ReviewLine struct {
	ID                   uuid.UUID        `json:"id"`
	ReceiptID            uuid.UUID        `json:"receipt_id"`
	LineIndex            int              `json:"line_index"`
	SKU                  *string          `json:"sku,omitempty"`
	Description          string           `json:"description"`
	Quantity             *decimal.Decimal `json:"quantity,omitempty"`
	LineTotal            decimal.Decimal  `json:"line_total"`
	ProductCategory      *string          `json:"product_category,omitempty"`
	AccountCode          *string          `json:"account_code,omitempty"`
	Confidence           *float64         `json:"confidence,omitempty"`
	CategorizationSource *string          `json:"categorization_source,omitempty"`
	Vendor               string           `json:"vendor"`
	PurchaseDate         time.Time        `json:"purchase_date"`
	CreatedAt            time.Time        `json:"created_at"`
}

// GetLinesForReview returns flagged lines for an entity, newest first.
func (r *Repository) GetLinesForReview(ctx context.Context, entity Entity, filters ReviewFilters) ([]ReviewLine, error) {
	ctx, span := tracer.Start(ctx, "receipts.GetLinesForReview")
	defer span.End()

	schema := entity.SchemaName()
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT
			rli.id, rli.receipt_id, rli.line_index, rli.sku, rli.description,
			rli.quantity, rli.line_total, rli.product_category, rli.account_code,
			rli.confidence_score, rli.categorization_source,
			r.vendor_guess, r.purchase_date, rli.created_at
		FROM %s.receipt_line_items rli
		JOIN %s.receipts r ON rli.receipt_id = r.id
		WHERE rli.requires_review = true
		  AND ($1 = '' OR r.vendor_guess = $1)
		  AND ($2::timestamptz IS NULL OR r.purchase_date >= $2)
		  AND ($3::timestamptz IS NULL OR r.purchase_date <= $3)
		  AND ($4::float8 IS NULL OR rli.confidence_score <= $4)
		ORDER BY rli.created_at DESC
		LIMIT $5`, schema, schema)

	rows, err := r.db.Query(ctx, query, filters.Vendor, filters.DateFrom, filters.DateTo, filters.MaxConfidence, limit)
	if err != nil {
		return nil, fmt.Errorf("review queue query failed: %w", err)
	}
	defer rows.Close()

	var out []ReviewLine
	for rows.Next() {
		var l ReviewLine
		if err := rows.Scan(
			&l.ID, &l.ReceiptID, &l.LineIndex, &l.SKU, &l.Description,
			&l.Quantity, &l.LineTotal, &l.ProductCategory, &l.AccountCode,
			&l.Confidence, &l.CategorizationSource,
			&l.Vendor, &l.PurchaseDate, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("review queue scan failed: %w", err)
		}
		out = append(out, l)
	}

	r.logger.Info("review queue retrieved", "entity", entity, "count", len(out))

	return out, rows.Err()
}

// LineCategorizationUpdate carries a reviewer's correction for one line.
type LineCategorizationUpdate struct {
	NormalizedDescription string
	ProductCategory       string
	AccountCode           string
	Brand                 *string
	Confidence            float64
	Source                string
	ReviewedBy            string
}

// UpdateLineCategorization applies a correction to a stored line on the
// caller's transaction. The caller is responsible for writing through to the
// categorization cache in the same transaction.
func (r *Repository) UpdateLineCategorization(ctx context.Context, q Querier, entity Entity, lineID uuid.UUID, update LineCategorizationUpdate) error {
	ctx, span := tracer.Start(ctx, "receipts.UpdateLineCategorization")
	defer span.End()

	query := fmt.Sprintf(`
		UPDATE %s.receipt_line_items
		SET
			normalized_description = $1,
			product_category = $2,
			account_code = $3,
			brand = $4,
			confidence_score = $5,
			categorization_source = $6,
			requires_review = false,
			review_status = 'approved',
			reviewed_by = $7,
			reviewed_at = NOW()
		WHERE id = $8`, entity.SchemaName())

	tag, err := q.Exec(ctx, query,
		update.NormalizedDescription, update.ProductCategory, update.AccountCode,
		update.Brand, update.Confidence, update.Source, update.ReviewedBy, lineID)
	if err != nil {
		return fmt.Errorf("failed to update line categorization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("line %s not found in %s", lineID, entity.SchemaName())
	}

	r.logger.Info("line categorization updated",
		"line_id", lineID,
		"entity", entity,
		"account_code", update.AccountCode,
		"reviewed_by", update.ReviewedBy)

	return nil
}

// GetLineVendorSKU fetches the receipt vendor and line SKU needed for the
// cache write-through that accompanies a correction.
func (r *Repository) GetLineVendorSKU(ctx context.Context, q Querier, entity Entity, lineID uuid.UUID) (vendor string, sku *string, err error) {
	schema := entity.SchemaName()
	query := fmt.Sprintf(`
		SELECT r.vendor_guess, rli.sku
		FROM %s.receipt_line_items rli
		JOIN %s.receipts r ON rli.receipt_id = r.id
		WHERE rli.id = $1`, schema, schema)

	err = q.QueryRow(ctx, query, lineID).Scan(&vendor, &sku)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load line %s: %w", lineID, err)
	}
	return vendor, sku, nil
}
