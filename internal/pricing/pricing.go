// Package pricing implements the Dutch-auction pricing function (C4). It
// is pure and deterministic: no I/O, no shared mutable state, and it never
// suspends — every function here runs to completion on the caller's
// goroutine.
package pricing

import (
	"fmt"
	"math/big"
	"time"

	"github.com/goex/swaprelayer/internal/domain"
)

// Scale is the fixed-point denominator prices are expressed in: a price of
// 1_000_000 base units means "1.000000" in human terms.
const Scale = 1_000_000

// ScaleDecimals is the number of decimal places Scale represents, for
// callers rendering a Scale-denominated integer as a decimal string.
const ScaleDecimals = 6

// CurrentPrice returns the auction's price at tNow. It is monotonically
// non-increasing in tNow and never falls below auction.EndPrice.
//
//	currentPrice = endPrice                                             if tNow >= startTime+duration
//	currentPrice = startPrice - (startPrice-endPrice)*(tNow-startTime)/duration   otherwise
//
// The division is integer division over the auction's duration in
// nanoseconds, truncating toward zero, so two coordinator instances
// evaluating the same (auction, tNow) always agree bit-for-bit.
func CurrentPrice(auction domain.Auction, tNow time.Time) *big.Int {
	elapsed := tNow.Sub(auction.StartTime)
	if elapsed >= auction.Duration || auction.Duration <= 0 {
		return new(big.Int).Set(auction.EndPrice)
	}
	if elapsed < 0 {
		elapsed = 0
	}

	spread := new(big.Int).Sub(auction.StartPrice, auction.EndPrice)
	numerator := new(big.Int).Mul(spread, big.NewInt(int64(elapsed)))
	decay := new(big.Int).Quo(numerator, big.NewInt(int64(auction.Duration)))

	price := new(big.Int).Sub(auction.StartPrice, decay)
	if price.Cmp(auction.EndPrice) < 0 {
		return new(big.Int).Set(auction.EndPrice)
	}
	return price
}

// ValidateQuote succeeds iff endPrice <= quoted <= currentPrice(auction,
// tNow) + tolerance. tolerance defaults to 0 (spec.md §9 Open Question c):
// the source applies no clock-skew allowance, so neither do we unless a
// caller explicitly configures one.
func ValidateQuote(auction domain.Auction, quoted *big.Int, tNow time.Time, tolerance *big.Int) error {
	if quoted == nil {
		return fmt.Errorf("%w: quoted price required", domain.ErrPriceOutOfBand)
	}
	if quoted.Cmp(auction.EndPrice) < 0 {
		return fmt.Errorf("%w: quoted below auction floor", domain.ErrPriceOutOfBand)
	}

	ceiling := CurrentPrice(auction, tNow)
	if tolerance != nil && tolerance.Sign() > 0 {
		ceiling = new(big.Int).Add(ceiling, tolerance)
	}
	if quoted.Cmp(ceiling) > 0 {
		return fmt.Errorf("%w: quoted above current auction price", domain.ErrPriceOutOfBand)
	}
	return nil
}

// TokenAmounts converts a base-unit source amount into the base-unit
// destination amount implied by quoted (expressed at the fixed Scale
// internal price), accounting for the two tokens' decimals. Division
// truncates toward zero.
//
//	dstAmount = srcAmount * quoted * 10^dstDecimals / (10^srcDecimals * Scale)
func TokenAmounts(srcAmount *big.Int, srcDecimals, dstDecimals uint8, quoted *big.Int) (*big.Int, error) {
	if srcAmount == nil || quoted == nil {
		return nil, fmt.Errorf("srcAmount and quoted are required")
	}
	if srcAmount.Sign() < 0 || quoted.Sign() < 0 {
		return nil, fmt.Errorf("srcAmount and quoted must be non-negative")
	}

	numerator := new(big.Int).Mul(srcAmount, quoted)
	numerator.Mul(numerator, pow10(dstDecimals))

	denominator := new(big.Int).Mul(pow10(srcDecimals), big.NewInt(Scale))
	if denominator.Sign() == 0 {
		return nil, fmt.Errorf("invalid decimals/scale")
	}

	return new(big.Int).Quo(numerator, denominator), nil
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
