package categorization

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx, so cache writes can join
// a caller's transaction when required (human corrections do).
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Cache is the durable vendor+SKU categorization store. It lives in the
// shared schema: the same vendor SKU means the same product regardless of
// entity, and sharing learnings is what drives the cache hit rate.
type Cache struct {
	db     Querier
	logger *slog.Logger
}

func NewCache(db Querier, logger *slog.Logger) *Cache {
	return &Cache{db: db, logger: logger}
}

// lookupHash gives the unique index key for a (vendor, sku) pair.
func lookupHash(vendorCanonical, sku string) string {
	sum := sha256.Sum256([]byte(vendorCanonical + "||" + sku))
	return hex.EncodeToString(sum[:])
}

const cacheSelectColumns = `
	id, vendor_canonical, sku, description_normalized, account_code,
	product_category, brand, times_seen, user_confidence, last_seen,
	created_at, updated_at`

// Get looks up the cached categorization for a vendor SKU. Returns nil on miss.
func (c *Cache) Get(ctx context.Context, vendorCanonical, sku string) (*ProductMapping, error) {
	query := `SELECT` + cacheSelectColumns + `
		FROM shared.product_mappings
		WHERE lookup_hash = $1`

	var m ProductMapping
	err := c.db.QueryRow(ctx, query, lookupHash(vendorCanonical, sku)).Scan(
		&m.ID, &m.VendorCanonical, &m.SKU, &m.DescriptionNormalized, &m.AccountCode,
		&m.ProductCategory, &m.Brand, &m.TimesSeen, &m.UserConfidence, &m.LastSeen,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		c.logger.Debug("cache miss", "vendor", vendorCanonical, "sku", sku)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}

	c.logger.Debug("cache hit",
		"vendor", vendorCanonical,
		"sku", sku,
		"category", m.ProductCategory,
		"times_seen", m.TimesSeen)

	return &m, nil
}

// Touch records another sighting of a cached SKU.
func (c *Cache) Touch(ctx context.Context, vendorCanonical, sku string) error {
	_, err := c.db.Exec(ctx, `
		UPDATE shared.product_mappings
		SET times_seen = times_seen + 1,
		    last_seen = NOW(),
		    updated_at = NOW()
		WHERE lookup_hash = $1`,
		lookupHash(vendorCanonical, sku))
	if err != nil {
		return fmt.Errorf("cache touch failed: %w", err)
	}
	return nil
}

// Put upserts a machine-produced entry. Concurrent writers for the same key
// are linearized by the unique index; on conflict only the sighting counters
// move, never the categorization fields — those belong to humans via Correct.
func (c *Cache) Put(ctx context.Context, entry ProductMapping) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO shared.product_mappings (
			id, vendor_canonical, sku, description_normalized, account_code,
			product_category, brand, times_seen, user_confidence, last_seen,
			lookup_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, NOW(), $9, NOW(), NOW())
		ON CONFLICT (lookup_hash) DO UPDATE SET
			times_seen = shared.product_mappings.times_seen + 1,
			last_seen = NOW(),
			updated_at = NOW()`,
		uuid.New(), entry.VendorCanonical, entry.SKU, entry.DescriptionNormalized,
		entry.AccountCode, entry.ProductCategory, entry.Brand, entry.UserConfidence,
		lookupHash(entry.VendorCanonical, entry.SKU))
	if err != nil {
		return fmt.Errorf("cache put failed: %w", err)
	}

	c.logger.Info("cache entry written",
		"vendor", entry.VendorCanonical,
		"sku", entry.SKU,
		"category", entry.ProductCategory,
		"account_code", entry.AccountCode)

	return nil
}

// Correct unconditionally overwrites an entry with a human decision, pins
// user_confidence to 1.0, and appends the review-activity audit record.
// Runs on the caller's Querier so it can share a transaction with the line
// update it accompanies.
func (c *Cache) Correct(ctx context.Context, q Querier, vendorCanonical, sku string, entry ProductMapping, actor string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO shared.product_mappings (
			id, vendor_canonical, sku, description_normalized, account_code,
			product_category, brand, times_seen, user_confidence, last_seen,
			lookup_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 1, 1.00, NOW(), $8, NOW(), NOW())
		ON CONFLICT (lookup_hash) DO UPDATE SET
			description_normalized = EXCLUDED.description_normalized,
			account_code = EXCLUDED.account_code,
			product_category = EXCLUDED.product_category,
			brand = EXCLUDED.brand,
			user_confidence = 1.00,
			last_seen = NOW(),
			updated_at = NOW()`,
		uuid.New(), vendorCanonical, sku, entry.DescriptionNormalized,
		entry.AccountCode, entry.ProductCategory, entry.Brand,
		lookupHash(vendorCanonical, sku))
	if err != nil {
		return fmt.Errorf("cache correct failed: %w", err)
	}

	newValues, err := json.Marshal(map[string]any{
		"description_normalized": entry.DescriptionNormalized,
		"account_code":           entry.AccountCode,
		"product_category":       entry.ProductCategory,
	})
	if err != nil {
		return fmt.Errorf("cache correct failed: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO shared.review_activity (
			id, reviewable_id, reviewable_type, entity, action, performed_by, new_values, created_at
		) VALUES ($1, $2, 'receipt_line_item', 'shared', 'correct', $3, $4, NOW())`,
		uuid.New(),
		fmt.Sprintf("product_mapping:shared:%s|%s", vendorCanonical, sku),
		actor, newValues)
	if err != nil {
		return fmt.Errorf("cache correct audit failed: %w", err)
	}

	c.logger.Info("cache entry corrected",
		"vendor", vendorCanonical,
		"sku", sku,
		"category", entry.ProductCategory,
		"actor", actor)

	return nil
}

// CacheStats summarizes cache health for monitoring.
type CacheStats struct {
	TotalSKUs           int     `json:"total_skus"`
	TotalLookups        int     `json:"total_lookups"`
	AvgLookupsPerSKU    float64 `json:"avg_lookups_per_sku"`
	SingleUseSKUs       int     `json:"single_use_skus"`
	FrequentSKUs        int     `json:"frequent_skus"`
	EstimatedHitRatePct float64 `json:"estimated_hit_rate_pct"`
}

// Stats reports aggregate cache metrics. Hit rate is estimated from the
// assumption that the first lookup per SKU missed and the rest hit.
func (c *Cache) Stats(ctx context.Context) (*CacheStats, error) {
	var s CacheStats
	var totalLookups, avg *float64
	err := c.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(times_seen), 0)::float8,
			COALESCE(AVG(times_seen), 0)::float8,
			COUNT(*) FILTER (WHERE times_seen = 1),
			COUNT(*) FILTER (WHERE times_seen > 10)
		FROM shared.product_mappings`).Scan(
		&s.TotalSKUs, &totalLookups, &avg, &s.SingleUseSKUs, &s.FrequentSKUs)
	if err != nil {
		return nil, fmt.Errorf("cache stats failed: %w", err)
	}

	if totalLookups != nil {
		s.TotalLookups = int(*totalLookups)
	}
	if avg != nil {
		s.AvgLookupsPerSKU = *avg
	}
	if s.TotalLookups > 0 {
		hits := s.TotalLookups - s.TotalSKUs
		s.EstimatedHitRatePct = float64(hits) / float64(s.TotalLookups) * 100
	}

	return &s, nil
}

// TopProducts returns the most frequently seen cached products.
func (c *Cache) TopProducts(ctx context.Context, limit int) ([]ProductMapping, error) {
	rows, err := c.db.Query(ctx, `SELECT`+cacheSelectColumns+`
		FROM shared.product_mappings
		ORDER BY times_seen DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top products query failed: %w", err)
	}
	defer rows.Close()

	var out []ProductMapping
	for rows.Next() {
		var m ProductMapping
		if err := rows.Scan(
			&m.ID, &m.VendorCanonical, &m.SKU, &m.DescriptionNormalized, &m.AccountCode,
			&m.ProductCategory, &m.Brand, &m.TimesSeen, &m.UserConfidence, &m.LastSeen,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("top products scan failed: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
