package vendors

import (
	"log/slog"
	"testing"
)

func newTestIdentifier() *Identifier {
	return NewIdentifier(DefaultRegistry(), slog.Default())
}

// A Walmart receipt full of PepsiCo UPCs must route to Walmart: UPCs are
// brand markers only, and Pepsi never scores without its own name markers.
func TestIdentifyWalmartWithPepsiUPCs(t *testing.T) {
	text := `WALMART SUPERCENTRE
SAVE MONEY. LIVE BETTER.
GST/HST 137466199
TC# 1234 5678 9012
BUBLY LIME 069000149180 $5.97 J
PEPSI 24PK 069000009918 $14.00 J
MTN DEW 069000123456 $7.00 J
7UP 069000234567 $6.50 J
CANADA DRY 069000345678 $6.98 J
`
	match := newTestIdentifier().Identify(text)
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Key != KeyWalmart {
		t.Fatalf("expected walmart, got %s", match.Key)
	}
	// name 10 + tax id 7 + receipt format 5 at minimum
	if match.Score < 22 {
		t.Fatalf("expected score >= 22, got %d", match.Score)
	}
}

// Without a name marker a vendor scores zero, no matter how many of its
// brand tokens appear.
func TestIdentifyRequiresNameMarker(t *testing.T) {
	text := `SOME CORNER STORE
069000149180 069000009918 069000123456
INVOICE # 1234
`
	match := newTestIdentifier().Identify(text)
	if match != nil {
		t.Fatalf("expected no match, got %s (score %d)", match.Key, match.Score)
	}
}

func TestIdentifyPepsiInvoice(t *testing.T) {
	text := `PEPSICO CANADA BEVERAGES
INVOICE # 51314455
Route #: 8232
ITEM DETAIL
PEPSI 0-69000-00991-8 T 97.00 5 120 35.91 179.55
`
	match := newTestIdentifier().Identify(text)
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Key != KeyPepsi {
		t.Fatalf("expected pepsi, got %s", match.Key)
	}
}

func TestIdentifyNoMatchReturnsNil(t *testing.T) {
	if match := newTestIdentifier().Identify("CORNER STORE\nMILK 4.99\nTOTAL 4.99"); match != nil {
		t.Fatalf("expected nil, got %s", match.Key)
	}
}

func TestIdentifyTypicalEntity(t *testing.T) {
	match := newTestIdentifier().Identify("GROSNOR DISTRIBUTION\nINVOICE NO. 217427")
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.TypicalEntity != "soleprop" {
		t.Fatalf("grosnor expected soleprop, got %s", match.TypicalEntity)
	}
}
