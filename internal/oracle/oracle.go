// Package oracle provides the reference market-price feed that drives
// startPrice = max(marketPrice, minAcceptablePrice). Real price-feed
// production is out of scope; this package ships only a cached/static
// reference implementation, behind an interface other implementations can
// be wired against later.
package oracle

import (
	"context"
	"math/big"
)

// Oracle returns the current reference price for a (srcToken, dstToken)
// pair, expressed at pricing.Scale.
type Oracle interface {
	MarketPrice(ctx context.Context, srcChain uint64, srcToken string, dstChain uint64, dstToken string) (*big.Int, error)
}
