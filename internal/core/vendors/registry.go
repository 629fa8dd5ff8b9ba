// Package vendors identifies the vendor behind a receipt from OCR text.
//
// Detection is centralized here rather than in the parsers: each vendor in
// the registry carries weighted marker categories, and the identifier scores
// all of them against the text. Markers must be location-independent across
// a vendor's outlets — never street addresses, phone numbers, or store
// numbers — so a Walmart receipt full of Pepsi UPCs still routes to the
// Walmart parser.
package vendors

import (
	"regexp"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
)

// Marker category weights. Name markers are required: a vendor scores zero
// unless at least one name pattern matches.
const (
	WeightName   = 10
	WeightTaxID  = 7
	WeightFormat = 5
	WeightSlogan = 3
	WeightBrand  = 2
	MinimumScore = 10
)

// Vendor keys, stable across the system.
const (
	KeyGrosnor      = "grosnor"
	KeyCostco       = "costco"
	KeyGFS          = "gfs"
	KeyPepsi        = "pepsi"
	KeySuperstore   = "superstore"
	KeyPharmasave   = "pharmasave"
	KeyWalmart      = "walmart"
	KeyCanadianTire = "canadian_tire"
)

// Vendor is one registry entry. Patterns are matched against upper-cased
// OCR text. Priority orders tie-breaks, highest known annual spend first.
type Vendor struct {
	Key           string
	CanonicalName string
	TypicalEntity receipts.Entity
	Priority      int // lower is higher priority

	NamePatterns   []*regexp.Regexp // required; weight 10
	TaxIDPatterns  []*regexp.Regexp // corporate tax ids; weight 7
	FormatPatterns []*regexp.Regexp // receipt-format markers; weight 5
	SloganPatterns []*regexp.Regexp // slogans and company indicators; weight 3
	BrandPatterns  []*regexp.Regexp // exclusive-brand tokens; weight 2
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile(expr))
	}
	return out
}

// DefaultRegistry is the production vendor set, ordered by annual spend.
func DefaultRegistry() []Vendor {
	return []Vendor{
		{
			Key:           KeyGrosnor,
			CanonicalName: "Grosnor Distribution",
			TypicalEntity: receipts.EntitySoleprop,
			Priority:      1,
			NamePatterns:  patterns(`GROSNOR\s+DISTRIBUTION`, `GROSNOR\.COM`, `\bGROSNOR\b`),
			FormatPatterns: patterns(
				`\(\d+/\d+/\d+\)`,   // case/inner/unit configuration
				`\(UPC\s+\d+\)`,     // UPC embedded in description
				`SRP\s*:?\s*\$?\d+`, // suggested retail price column
			),
		},
		{
			Key:           KeyCostco,
			CanonicalName: "Costco Wholesale",
			TypicalEntity: receipts.EntityCorp,
			Priority:      2,
			NamePatterns:  patterns(`COSTCO\s+WHOLESALE`, `COSTCO\.CA`, `COSTCO\.COM`, `\bCOSTCO\b`),
			TaxIDPatterns: patterns(`GST/HST\s*#?\s*121668711`),
			FormatPatterns: patterns(
				`MEMBER\s*#?\s*\d{12}`,
				`INSTANT\s+SAVINGS`,
				`TPD/`,
			),
			BrandPatterns: patterns(`\bKIRKLAND\b`),
		},
		{
			Key:           KeyGFS,
			CanonicalName: "Gordon Food Service",
			TypicalEntity: receipts.EntityCorp,
			Priority:      3,
			NamePatterns:  patterns(`GORDON\s+FOOD\s+SERVICE`, `GFS\s+CANADA`, `GFSCANADA\.COM`),
			FormatPatterns: patterns(
				`INVOICE\s+\d{10}`,
				`PRODUCT\s+TOTAL`,
				`\b(GR|FR|DY|DS)\b.*\b(GR|FR|DY|DS)\b`,
			),
		},
		{
			Key:           KeyPepsi,
			CanonicalName: "PepsiCo Canada",
			TypicalEntity: receipts.EntityCorp,
			Priority:      4,
			NamePatterns:  patterns(`PEPSICO\s+CANADA`, `PEPSICO\b`, `PEPSI\s+BEVERAGES`, `BEVERAGES.*BREUVAGES`),
			FormatPatterns: patterns(
				`INVOICE\s+DETAILS`,
				`INVOICE\s+SUMMARY`,
				`ITEM\s+DETAIL`,
				`ROUTE\s*#?\s*:?\s*\d+`,
			),
			// GS1 prefix for PepsiCo products. Brand weight only: UPCs show up
			// on any retailer's receipt, so they can never carry detection.
			BrandPatterns: patterns(`69000\d{6}`, `\bMTN\s+DEW\b`),
		},
		{
			Key:           KeySuperstore,
			CanonicalName: "Atlantic Superstore",
			TypicalEntity: receipts.EntityCorp,
			Priority:      5,
			NamePatterns:  patterns(`ATLANTIC\s+SUPERSTORE`, `\bSUPERSTORE\b`),
			FormatPatterns: patterns(
				`PC\s+OPTIMUM`,
				`\d{11,13}\s+(NN|PC|BM)\b`,
			),
			BrandPatterns: patterns(`NO\s+NAME\b`, `PRESIDENT'?S\s+CHOICE`),
		},
		{
			Key:           KeyPharmasave,
			CanonicalName: "MacQuarries Pharmasave",
			TypicalEntity: receipts.EntityCorp,
			Priority:      6,
			NamePatterns:  patterns(`MACQUARRIES\s+PHARMASAVE`, `\bPHARMASAVE\b`),
			FormatPatterns: patterns(
				`RECEIPT:\s*[A-Z0-9]+`,
				`\b(EN|TN|TY)\b\s*$`,
			),
		},
		{
			Key:           KeyWalmart,
			CanonicalName: "Walmart",
			TypicalEntity: receipts.EntityCorp,
			Priority:      7,
			NamePatterns:  patterns(`WALMART\s+SUPERCENTRE`, `\bWALMART\b`, `WAL-MART`),
			TaxIDPatterns: patterns(`GST/HST\s*#?\s*137466199`),
			FormatPatterns: patterns(
				`\bTC#`, `\bTR#`, `\bTRANS#`,
			),
			SloganPatterns: patterns(`SAVE\s+MONEY\.?\s+LIVE\s+BETTER`),
			BrandPatterns:  patterns(`GREAT\s+VALUE\b`, `\bEQUATE\b`),
		},
		{
			Key:           KeyCanadianTire,
			CanonicalName: "Canadian Tire",
			TypicalEntity: receipts.EntityCorp,
			Priority:      8,
			NamePatterns:  patterns(`CANADIAN\s+TIRE`),
			FormatPatterns: patterns(
				`CT\s+MONEY`,
				`TRIANGLE\s+REWARDS`,
			),
			BrandPatterns: patterns(`\bMOTOMASTER\b`, `\bMASTERCRAFT\b`, `\bNOMA\b`),
		},
	}
}
