package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/categorization"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("review-service")

// Service reads the reviewable projection and dispatches reviewer actions
// back to the source tables.
type Service struct {
	db     *pgxpool.Pool
	repo   *receipts.Repository
	cache  *categorization.Cache
	logger *slog.Logger
}

func NewService(db *pgxpool.Pool, repo *receipts.Repository, cache *categorization.Cache, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// Refresh re-materializes the projection for both entities. Called after
// every write so projection staleness stays within the refresh bound.
func (s *Service) Refresh(ctx context.Context) error {
	for _, entity := range []receipts.Entity{receipts.EntityCorp, receipts.EntitySoleprop} {
		query := fmt.Sprintf(`REFRESH MATERIALIZED VIEW CONCURRENTLY %s.view_review_receipt_line_items`, entity.SchemaName())
		if _, err := s.db.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to refresh review projection for %s: %w", entity, err)
		}
	}
	return nil
}

// List returns reviewable items for one entity from the projection.
func (s *Service) List(ctx context.Context, entity receipts.Entity, filters QueueFilters) ([]Reviewable, error) {
	ctx, span := tracer.Start(ctx, "review.List")
	defer span.End()

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	status := string(filters.Status)

	query := fmt.Sprintf(`
		SELECT
			id, type, entity, created_at, source_ref, summary, confidence,
			requires_review, status, assignee, vendor, date, amount, age_hours,
			details
		FROM %s.view_review_receipt_line_items
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR vendor = $2)
		  AND ($3::float8 IS NULL OR confidence <= $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`, entity.SchemaName())

	rows, err := s.db.Query(ctx, query, status, filters.Vendor, filters.MaxConfidence, limit, filters.Offset)
	if err != nil {
		return nil, fmt.Errorf("review projection query failed: %w", err)
	}
	defer rows.Close()

	var out []Reviewable
	for rows.Next() {
		var (
			item        Reviewable
			sourceRefJS []byte
			detailsJS   []byte
		)
		if err := rows.Scan(
			&item.ID, &item.Type, &item.Entity, &item.CreatedAt, &sourceRefJS,
			&item.Summary, &item.Confidence, &item.RequiresReview, &item.Status,
			&item.Assignee, &item.Vendor, &item.Date, &item.Amount, &item.AgeHours,
			&detailsJS,
		); err != nil {
			return nil, fmt.Errorf("review projection scan failed: %w", err)
		}

		if err := json.Unmarshal(sourceRefJS, &item.SourceRef); err != nil {
			return nil, fmt.Errorf("bad source_ref on %s: %w", item.ID, err)
		}
		if err := json.Unmarshal(detailsJS, &item.Details); err != nil {
			return nil, fmt.Errorf("bad details on %s: %w", item.ID, err)
		}

		out = append(out, item)
	}

	s.logger.Info("review queue listed", "entity", entity, "count", len(out))

	return out, rows.Err()
}

// parseReviewableID splits "<type>:<schema>:<pk>" into its parts.
func parseReviewableID(id string) (reviewType ReviewType, entity receipts.Entity, pk uuid.UUID, err error) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 {
		return "", "", uuid.Nil, fmt.Errorf("malformed reviewable id %q", id)
	}

	reviewType = ReviewType(parts[0])

	switch parts[1] {
	case receipts.EntityCorp.SchemaName(), string(receipts.EntityCorp):
		entity = receipts.EntityCorp
	case receipts.EntitySoleprop.SchemaName(), string(receipts.EntitySoleprop):
		entity = receipts.EntitySoleprop
	default:
		return "", "", uuid.Nil, fmt.Errorf("unknown schema in reviewable id %q", id)
	}

	pk, err = uuid.Parse(parts[2])
	if err != nil {
		return "", "", uuid.Nil, fmt.Errorf("bad pk in reviewable id %q: %w", id, err)
	}

	return reviewType, entity, pk, nil
}

// Approve marks a reviewable accepted as categorized.
func (s *Service) Approve(ctx context.Context, reviewableID, actor string) error {
	return s.resolve(ctx, reviewableID, actor, ActionApprove, StatusApproved)
}

// Reject marks a reviewable rejected.
func (s *Service) Reject(ctx context.Context, reviewableID, actor, reason string) error {
	return s.resolveWithReason(ctx, reviewableID, actor, reason, ActionReject, StatusRejected)
}

func (s *Service) resolve(ctx context.Context, reviewableID, actor string, action Action, status ReviewStatus) error {
	return s.resolveWithReason(ctx, reviewableID, actor, "", action, status)
}

func (s *Service) resolveWithReason(ctx context.Context, reviewableID, actor, reason string, action Action, status ReviewStatus) error {
	ctx, span := tracer.Start(ctx, "review.resolve")
	defer span.End()

	reviewType, entity, lineID, err := parseReviewableID(reviewableID)
	if err != nil {
		return err
	}
	if reviewType != TypeReceiptLineItem {
		return fmt.Errorf("unsupported reviewable type %q", reviewType)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin review transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		UPDATE %s.receipt_line_items
		SET requires_review = false,
		    review_status = $1,
		    reviewed_by = $2,
		    reviewed_at = NOW()
		WHERE id = $3`, entity.SchemaName())

	tag, err := tx.Exec(ctx, query, string(status), actor, lineID)
	if err != nil {
		return fmt.Errorf("failed to %s line: %w", action, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("line %s not found in %s", lineID, entity.SchemaName())
	}

	if err := s.recordActivity(ctx, tx, reviewableID, entity, action, actor, reason, nil); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit review action: %w", err)
	}

	s.logger.Info("reviewable resolved",
		"reviewable_id", reviewableID,
		"action", action,
		"actor", actor)

	return s.Refresh(ctx)
}

// Correct applies a reviewer's categorization fix. The line update, the
// audit record, and the cache write-through commit in one transaction — the
// feedback edge that makes the next receipt from the same vendor benefit
// immediately.
func (s *Service) Correct(ctx context.Context, reviewableID string, correction Correction, actor string) error {
	ctx, span := tracer.Start(ctx, "review.Correct")
	defer span.End()

	reviewType, entity, lineID, err := parseReviewableID(reviewableID)
	if err != nil {
		return err
	}
	if reviewType != TypeReceiptLineItem {
		return fmt.Errorf("unsupported reviewable type %q", reviewType)
	}
	if !categorization.IsValidCategory(correction.ProductCategory) {
		return fmt.Errorf("unknown product category %q", correction.ProductCategory)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin correction transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	vendor, sku, err := s.repo.GetLineVendorSKU(ctx, tx, entity, lineID)
	if err != nil {
		return err
	}

	err = s.repo.UpdateLineCategorization(ctx, tx, entity, lineID, receipts.LineCategorizationUpdate{
		NormalizedDescription: correction.NormalizedDescription,
		ProductCategory:       correction.ProductCategory,
		AccountCode:           correction.AccountCode,
		Brand:                 correction.Brand,
		Confidence:            1.0,
		Source:                categorization.SourceUserOverride,
		ReviewedBy:            actor,
	})
	if err != nil {
		return err
	}

	// SKU-less lines stay on the pure-AI path: nothing to cache.
	if sku != nil && *sku != "" {
		err = s.cache.Correct(ctx, tx, vendor, *sku, categorization.ProductMapping{
			DescriptionNormalized: correction.NormalizedDescription,
			ProductCategory:       correction.ProductCategory,
			AccountCode:           correction.AccountCode,
			Brand:                 correction.Brand,
		}, actor)
		if err != nil {
			return err
		}
	}

	payload, err := json.Marshal(correction)
	if err != nil {
		return fmt.Errorf("failed to marshal correction: %w", err)
	}
	if err := s.recordActivity(ctx, tx, reviewableID, entity, ActionCorrect, actor, correction.Reason, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit correction: %w", err)
	}

	s.logger.Info("reviewable corrected",
		"reviewable_id", reviewableID,
		"category", correction.ProductCategory,
		"account_code", correction.AccountCode,
		"actor", actor)

	return s.Refresh(ctx)
}

func (s *Service) recordActivity(ctx context.Context, tx pgx.Tx, reviewableID string, entity receipts.Entity, action Action, actor, reason string, payload []byte) error {
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO shared.review_activity (
			id, reviewable_id, reviewable_type, entity, action, performed_by,
			new_values, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		uuid.New(), reviewableID, string(TypeReceiptLineItem), string(entity),
		string(action), actor, payload, reasonPtr)
	if err != nil {
		return fmt.Errorf("failed to record review activity: %w", err)
	}
	return nil
}
