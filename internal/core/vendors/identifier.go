package vendors

import (
	"log/slog"
	"regexp"
	"strings"
)

// Match is the identifier's verdict for one receipt.
type Match struct {
	Key           string
	CanonicalName string
	Score         int
	TypicalEntity string
}

// Identifier scores registry vendors against OCR text.
type Identifier struct {
	registry []Vendor
	logger   *slog.Logger
}

func NewIdentifier(registry []Vendor, logger *slog.Logger) *Identifier {
	return &Identifier{registry: registry, logger: logger}
}

// Identify returns the winning vendor for the text, or nil when no vendor
// reaches the minimum score. At least one name pattern must match before a
// vendor scores at all; each marker category contributes its weight once.
// Ties break by registry priority.
func (i *Identifier) Identify(text string) *Match {
	textUpper := strings.ToUpper(text)

	var best *Match
	bestPriority := 0

	for _, vendor := range i.registry {
		score := scoreVendor(vendor, textUpper)
		if score < MinimumScore {
			continue
		}

		if best == nil || score > best.Score || (score == best.Score && vendor.Priority < bestPriority) {
			best = &Match{
				Key:           vendor.Key,
				CanonicalName: vendor.CanonicalName,
				Score:         score,
				TypicalEntity: string(vendor.TypicalEntity),
			}
			bestPriority = vendor.Priority
		}
	}

	if best == nil {
		i.logger.Warn("vendor not identified", "text_preview", preview(textUpper, 120))
		return nil
	}

	i.logger.Info("vendor identified",
		"vendor", best.Key,
		"canonical", best.CanonicalName,
		"score", best.Score)

	return best
}

func scoreVendor(v Vendor, textUpper string) int {
	if !anyMatch(v.NamePatterns, textUpper) {
		return 0
	}

	score := WeightName
	if anyMatch(v.TaxIDPatterns, textUpper) {
		score += WeightTaxID
	}
	if anyMatch(v.FormatPatterns, textUpper) {
		score += WeightFormat
	}
	if anyMatch(v.SloganPatterns, textUpper) {
		score += WeightSlogan
	}
	if anyMatch(v.BrandPatterns, textUpper) {
		score += WeightBrand
	}
	return score
}

func anyMatch(pats []*regexp.Regexp, text string) bool {
	for _, p := range pats {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
