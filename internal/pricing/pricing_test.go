package pricing

import (
	"math/big"
	"testing"
	"time"

	"github.com/goex/swaprelayer/internal/domain"
)

func testAuction() domain.Auction {
	return domain.Auction{
		StartPrice: big.NewInt(1_000_000),
		EndPrice:   big.NewInt(900_000),
		Duration:   60 * time.Second,
		StartTime:  time.Unix(1_700_000_000, 0),
	}
}

func TestCurrentPriceAtStart(t *testing.T) {
	a := testAuction()
	got := CurrentPrice(a, a.StartTime)
	if got.Cmp(a.StartPrice) != 0 {
		t.Fatalf("expected %s at t0, got %s", a.StartPrice, got)
	}
}

func TestCurrentPriceHalfway(t *testing.T) {
	a := testAuction()
	got := CurrentPrice(a, a.StartTime.Add(30*time.Second))
	want := big.NewInt(950_000)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s at halfway, got %s", want, got)
	}
}

func TestCurrentPriceAfterExpiryClampsToEndPrice(t *testing.T) {
	a := testAuction()
	got := CurrentPrice(a, a.StartTime.Add(301*time.Second))
	if got.Cmp(a.EndPrice) != 0 {
		t.Fatalf("expected end price after expiry, got %s", got)
	}
}

func TestCurrentPriceMonotonicallyNonIncreasing(t *testing.T) {
	a := testAuction()
	prev := CurrentPrice(a, a.StartTime)
	for i := 1; i <= 120; i++ {
		tNow := a.StartTime.Add(time.Duration(i) * 500 * time.Millisecond)
		cur := CurrentPrice(a, tNow)
		if cur.Cmp(prev) > 0 {
			t.Fatalf("price increased at step %d: prev=%s cur=%s", i, prev, cur)
		}
		if cur.Cmp(a.EndPrice) < 0 {
			t.Fatalf("price fell below floor at step %d: cur=%s", i, cur)
		}
		prev = cur
	}
}

func TestValidateQuoteAcceptsWithinBand(t *testing.T) {
	a := testAuction()
	if err := ValidateQuote(a, big.NewInt(950_000), a.StartTime.Add(30*time.Second), nil); err != nil {
		t.Fatalf("expected quote to validate, got %v", err)
	}
}

func TestValidateQuoteRejectsAboveCurrentPrice(t *testing.T) {
	a := testAuction()
	if err := ValidateQuote(a, big.NewInt(999_000), a.StartTime.Add(30*time.Second), nil); err == nil {
		t.Fatal("expected rejection for quote above current price")
	}
}

func TestValidateQuoteRejectsBelowEndPrice(t *testing.T) {
	a := testAuction()
	if err := ValidateQuote(a, big.NewInt(1), a.StartTime, nil); err == nil {
		t.Fatal("expected rejection for quote below end price")
	}
}

func TestTokenAmountsSameDecimals(t *testing.T) {
	got, err := TokenAmounts(big.NewInt(1_000_000), 6, 6, big.NewInt(950_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := big.NewInt(950_000)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestTokenAmountsDifferentDecimalsTruncates(t *testing.T) {
	// 1 unit plus 1 base unit of an 18-decimal token at price 1.000000 into a
	// 6-decimal token: the extra 10^-12 of a destination unit truncates away.
	src := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	src.Add(src, big.NewInt(1))
	got, err := TokenAmounts(src, 18, 6, big.NewInt(Scale))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := big.NewInt(1_000_000)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
