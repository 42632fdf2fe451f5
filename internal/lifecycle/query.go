package lifecycle

import (
	"context"
	"math/big"
	"time"

	"github.com/goex/swaprelayer/internal/domain"
	"github.com/goex/swaprelayer/internal/pricing"
)

// OrderStatus returns the redacted order record orderStatus(id) exposes:
// the domain.Order itself already excludes the signature (never stored)
// and the preimage (stored separately), so a Clone is the full redaction.
func (c *Controller) OrderStatus(ctx context.Context, orderID [32]byte) (domain.Order, error) {
	order, err := c.store.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return order.Clone(), nil
}

// AuctionPriceResult is auctionPrice(id)'s response shape.
type AuctionPriceResult struct {
	CurrentPrice  *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	TimeRemaining time.Duration
}

func (c *Controller) AuctionPrice(ctx context.Context, orderID [32]byte) (AuctionPriceResult, error) {
	order, err := c.store.Get(ctx, orderID)
	if err != nil {
		return AuctionPriceResult{}, err
	}

	now := time.Now()
	current := pricing.CurrentPrice(order.Auction, now)
	srcDecimals, err := c.decimalsOrDefault(ctx, order.Intent.SrcChain, order.Intent.SrcToken)
	if err != nil {
		return AuctionPriceResult{}, err
	}
	dstDecimals, err := c.decimalsOrDefault(ctx, order.Intent.DstChain, order.Intent.DstToken)
	if err != nil {
		return AuctionPriceResult{}, err
	}
	takerAmount, err := pricing.TokenAmounts(order.Intent.SrcAmount, srcDecimals, dstDecimals, current)
	if err != nil {
		return AuctionPriceResult{}, err
	}

	remaining := order.Auction.StartTime.Add(order.Auction.Duration).Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	return AuctionPriceResult{
		CurrentPrice:  current,
		MakerAmount:   new(big.Int).Set(order.Intent.SrcAmount),
		TakerAmount:   takerAmount,
		TimeRemaining: remaining,
	}, nil
}

// ActiveOrders returns every order still eligible for resolver attention
// (ACTIVE or RESCUE_AVAILABLE), redacted the same way OrderStatus is.
func (c *Controller) ActiveOrders(ctx context.Context) ([]domain.Order, error) {
	active, err := c.store.ListByStatus(ctx, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	rescuable, err := c.store.ListByStatus(ctx, domain.StatusRescueAvailable)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Order, 0, len(active)+len(rescuable))
	for _, o := range active {
		out = append(out, o.Clone())
	}
	for _, o := range rescuable {
		out = append(out, o.Clone())
	}
	return out, nil
}

// OrderSecretResult is orderSecret(id, resolver)'s response shape.
type OrderSecretResult struct {
	RevealTxHash string
	RevealedAt   time.Time
}

// OrderSecret discloses the reveal outcome to the currently committed
// resolver only. It never returns the preimage itself — that is
// disclosed solely via the Secret bus or the on-chain reveal.
func (c *Controller) OrderSecret(ctx context.Context, orderID [32]byte, resolver string) (OrderSecretResult, error) {
	order, err := c.store.Get(ctx, orderID)
	if err != nil {
		return OrderSecretResult{}, err
	}
	if order.Resolver != resolver {
		return OrderSecretResult{}, domain.ErrNotOwningResolver
	}
	if order.SecretRevealedAt == nil {
		return OrderSecretResult{}, domain.ErrWrongStatus
	}
	return OrderSecretResult{RevealTxHash: order.SecretRevealTx, RevealedAt: *order.SecretRevealedAt}, nil
}
