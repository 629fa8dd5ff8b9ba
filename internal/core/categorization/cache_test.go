package categorization

import (
	"context"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

func newTestCache(t *testing.T) (*Cache, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	return NewCache(mock, slog.Default()), mock
}

func TestCacheGetMissReturnsNil(t *testing.T) {
	cache, mock := newTestCache(t)

	mock.ExpectQuery(`(?s)SELECT.*FROM shared\.product_mappings`).
		WithArgs(lookupHash("Costco Wholesale", "54491")).
		WillReturnError(pgx.ErrNoRows)

	entry, err := cache.Get(context.Background(), "Costco Wholesale", "54491")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil on miss, got %+v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCachePutUpserts(t *testing.T) {
	cache, mock := newTestCache(t)

	mock.ExpectExec(`(?s)INSERT INTO shared\.product_mappings.*ON CONFLICT \(lookup_hash\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "Costco Wholesale", "54491", "Hot Rod Pepperoni Sticks 40 Count",
			"5031", CategoryRetailSnack, pgxmock.AnyArg(), pgxmock.AnyArg(),
			lookupHash("Costco Wholesale", "54491")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	confidence := decimal.RequireFromString("0.92")
	err := cache.Put(context.Background(), ProductMapping{
		VendorCanonical:       "Costco Wholesale",
		SKU:                   "54491",
		DescriptionNormalized: "Hot Rod Pepperoni Sticks 40 Count",
		ProductCategory:       CategoryRetailSnack,
		AccountCode:           "5031",
		UserConfidence:        &confidence,
	})
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCacheCorrectOverwritesAndAudits(t *testing.T) {
	cache, mock := newTestCache(t)

	mock.ExpectExec(`(?s)INSERT INTO shared\.product_mappings.*user_confidence = 1\.00`).
		WithArgs(pgxmock.AnyArg(), "Gordon Food Service", "1234567", "Mountain Dew Citrus Soda 591mL",
			"5011", CategoryBeverageSoda, pgxmock.AnyArg(), lookupHash("Gordon Food Service", "1234567")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`(?s)INSERT INTO shared\.review_activity`).
		WithArgs(pgxmock.AnyArg(), "product_mapping:shared:Gordon Food Service|1234567", "tom@curlys.ca", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := cache.Correct(context.Background(), mock, "Gordon Food Service", "1234567", ProductMapping{
		DescriptionNormalized: "Mountain Dew Citrus Soda 591mL",
		ProductCategory:       CategoryBeverageSoda,
		AccountCode:           "5011",
	}, "tom@curlys.ca")
	if err != nil {
		t.Fatalf("correct failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLookupHashIsStablePerKey(t *testing.T) {
	a := lookupHash("Costco Wholesale", "54491")
	b := lookupHash("Costco Wholesale", "54491")
	c := lookupHash("Costco Wholesale", "54492")
	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if a == c {
		t.Fatal("different SKUs must hash differently")
	}
}
