package categorization

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// ProductLookup verifies ambiguous SKUs against vendor websites.
//
// Disabled by default: the target sites block automated access, rate-limit,
// and change structure without notice, so this only runs when explicitly
// enabled and its failures are always silent.
type ProductLookup struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// vendorSearchURLs maps canonical vendor names to their SKU search pages.
var vendorSearchURLs = map[string]string{
	"Costco Wholesale":    "https://www.costco.ca/CatalogSearch?keyword=%s",
	"Gordon Food Service": "https://www.gfs.com/en-us/search?searchTerm=%s",
	"Atlantic Superstore": "https://www.atlanticsuperstore.ca/search?search-bar=%s",
}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// NewProductLookup returns a lookup client, or nil when disabled.
func NewProductLookup(enabled bool, timeout time.Duration, logger *slog.Logger) *ProductLookup {
	if !enabled {
		return nil
	}
	return &ProductLookup{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Lookup attempts to fetch product context for a vendor SKU. Best effort:
// any failure returns nil.
func (l *ProductLookup) Lookup(ctx context.Context, vendor, sku string) *WebProduct {
	urlTemplate, ok := vendorSearchURLs[vendor]
	if !ok {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf(urlTemplate, sku), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; curlys-books/1.0)")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		l.logger.Debug("web lookup failed", "vendor", vendor, "sku", sku, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.logger.Debug("web lookup rejected", "vendor", vendor, "sku", sku, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return nil
	}

	m := titleRe.FindStringSubmatch(string(body))
	if m == nil {
		return nil
	}

	title := strings.TrimSpace(m[1])
	if title == "" || strings.Contains(strings.ToLower(title), "search") {
		return nil
	}

	l.logger.Info("web lookup found product", "vendor", vendor, "sku", sku, "title", title)

	return &WebProduct{ProductName: title}
}
