package lifecycle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/goex/swaprelayer/internal/domain"
	"github.com/goex/swaprelayer/internal/pricing"
)

// AdmitResult is what createSwap returns to its HTTP caller.
type AdmitResult struct {
	OrderID     [32]byte
	MarketPrice *big.Int
	ExpiresAt   time.Time
}

// Admit verifies the signed intent, checks the maker's on-chain allowance,
// constructs the order's Dutch auction, and persists the order and its
// secret. It never holds a per-order lock: the order does not exist in the
// store until this call succeeds, so there is nothing to serialize against
// yet.
func (c *Controller) Admit(ctx context.Context, intent domain.Intent, signature []byte, preimage [32]byte) (AdmitResult, error) {
	orderID, err := c.verify.Verify(intent, signature)
	if err != nil {
		return AdmitResult{}, err
	}

	if crypto.Keccak256Hash(preimage[:]) != common.Hash(intent.SecretHash) {
		return AdmitResult{}, domain.ErrHashMismatch
	}

	// Idempotent admit: the same (intent, signature, preimage) hashes to
	// the same orderId, so a resubmission (retry, duplicate broadcast)
	// returns the already-admitted order's result instead of re-running
	// admission side effects.
	if existing, getErr := c.store.Get(ctx, orderID); getErr == nil {
		return AdmitResult{OrderID: existing.ID, MarketPrice: existing.MarketPrice, ExpiresAt: existing.ExpiresAt}, nil
	}

	factory, err := c.escrowFactory(intent.SrcChain)
	if err != nil {
		return AdmitResult{}, fmt.Errorf("resolve escrow factory: %w", err)
	}

	gctx, cancel := gatewayCtx(ctx)
	allowance, err := c.gateway.Allowance(gctx, intent.SrcChain, intent.SrcToken, intent.Maker, factory)
	cancel()
	if err != nil {
		return AdmitResult{}, err
	}
	if allowance.Cmp(intent.SrcAmount) < 0 {
		return AdmitResult{}, domain.ErrInsufficientAllowance
	}

	if intent.OrderDuration <= 0 || intent.OrderDuration > c.cfg.DefaultOrderDuration {
		intent.OrderDuration = c.cfg.DefaultOrderDuration
	}

	marketPrice, err := c.oracle.MarketPrice(ctx, intent.SrcChain, intent.SrcToken, intent.DstChain, intent.DstToken)
	if err != nil {
		return AdmitResult{}, fmt.Errorf("look up market price: %w", err)
	}

	startPrice := marketPrice
	if intent.MinAcceptablePrice.Cmp(startPrice) > 0 {
		startPrice = intent.MinAcceptablePrice
	}

	now := time.Now()
	order := domain.Order{
		ID:     orderID,
		Intent: intent,
		Status: domain.StatusActive,
		Auction: domain.Auction{
			StartPrice: new(big.Int).Set(startPrice),
			EndPrice:   new(big.Int).Set(intent.MinAcceptablePrice),
			Duration:   c.cfg.FastAuctionDuration,
			StartTime:  now,
		},
		MarketPrice: new(big.Int).Set(marketPrice),
		CreatedAt:   now,
		ExpiresAt:   now.Add(intent.OrderDuration),
		UpdatedAt:   now,
	}

	secret := domain.Secret{
		OrderID:   orderID,
		Preimage:  preimage,
		Hash:      intent.SecretHash,
		CreatedAt: now,
	}

	if err := c.store.Save(ctx, order); err != nil {
		return AdmitResult{}, fmt.Errorf("save order: %w", err)
	}
	if err := c.store.SaveSecret(ctx, secret); err != nil {
		return AdmitResult{}, fmt.Errorf("save secret: %w", err)
	}

	if err := c.publishOrderBroadcast(ctx, order); err != nil {
		c.logOrderErr("publish order broadcast failed", orderID, err)
	}

	return AdmitResult{OrderID: orderID, MarketPrice: order.MarketPrice, ExpiresAt: order.ExpiresAt}, nil
}

func (c *Controller) publishOrderBroadcast(ctx context.Context, order domain.Order) error {
	srcDecimals, err := c.decimalsOrDefault(ctx, order.Intent.SrcChain, order.Intent.SrcToken)
	if err != nil {
		return err
	}
	dstDecimals, err := c.decimalsOrDefault(ctx, order.Intent.DstChain, order.Intent.DstToken)
	if err != nil {
		return err
	}

	current := pricing.CurrentPrice(order.Auction, time.Now())
	broadcast := domain.OrderBroadcast{
		OrderID:           fmt.Sprintf("%x", order.ID),
		Maker:             order.Intent.Maker,
		SrcChain:          order.Intent.SrcChain,
		SrcToken:          order.Intent.SrcToken,
		SrcAmount:         order.Intent.SrcAmount.String(),
		DstChain:          order.Intent.DstChain,
		DstToken:          order.Intent.DstToken,
		SecretHash:        fmt.Sprintf("%x", order.Intent.SecretHash),
		Timestamp:         time.Now(),
		AuctionStartPrice: order.Auction.StartPrice.String(),
		AuctionEndPrice:   order.Auction.EndPrice.String(),
		AuctionDuration:   int64(order.Auction.Duration.Seconds()),
		CurrentPrice:      current.String(),
		SrcTokenDecimals:  srcDecimals,
		DstTokenDecimals:  dstDecimals,
	}
	return c.bus.PublishOrder(ctx, broadcast)
}

// decimalsOrDefault falls back to 18 (and logs) when the gateway call
// itself fails, per SPEC_FULL.md's documented fallback policy.
func (c *Controller) decimalsOrDefault(ctx context.Context, chain uint64, token string) (uint8, error) {
	gctx, cancel := gatewayCtx(ctx)
	defer cancel()
	decimals, err := c.gateway.Decimals(gctx, chain, token)
	if err != nil {
		c.logger.Warn("decimals lookup failed, defaulting to 18", "chain", chain, "token", token, "error", err)
		return 18, nil
	}
	return decimals, nil
}
