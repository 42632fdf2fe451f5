package lifecycle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/goex/swaprelayer/internal/domain"
	"github.com/goex/swaprelayer/internal/pricing"
)

// expectedDstAmount recomputes the destination amount implied by the
// order's committed price, the same way Commit derived it for its
// response.
func (c *Controller) expectedDstAmount(ctx context.Context, order domain.Order) (*big.Int, error) {
	srcDecimals, err := c.decimalsOrDefault(ctx, order.Intent.SrcChain, order.Intent.SrcToken)
	if err != nil {
		return nil, err
	}
	dstDecimals, err := c.decimalsOrDefault(ctx, order.Intent.DstChain, order.Intent.DstToken)
	if err != nil {
		return nil, err
	}
	return pricing.TokenAmounts(order.Intent.SrcAmount, srcDecimals, dstDecimals, order.CommittedPrice)
}

// NotifySettlement implements notifySettlement(orderId, resolver,
// dstAmount, dstTxHash). On success it spawns the settlement supervisor
// that waits secretRevealDelay and then publishes the secret, so the HTTP
// caller is never blocked on that wait.
func (c *Controller) NotifySettlement(ctx context.Context, orderID [32]byte, resolver string, dstAmount *big.Int, dstTxHash string) error {
	var spawn bool
	err := c.withOrderLock(ctx, orderKey(orderID), func() error {
		order, err := c.store.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusSettling {
			return domain.ErrWrongStatus
		}
		if order.Resolver != resolver {
			return domain.ErrNotOwningResolver
		}

		gctx, cancel := gatewayCtx(ctx)
		srcBalance, err := c.gateway.EscrowBalance(gctx, order.Intent.SrcChain, order.SrcEscrow, order.Intent.SrcToken)
		cancel()
		if err != nil {
			return err
		}
		if srcBalance.Cmp(order.Intent.SrcAmount) < 0 {
			return fmt.Errorf("%w: src escrow holds %s, need %s", domain.ErrFundsNotVerified, srcBalance, order.Intent.SrcAmount)
		}

		gctx, cancel = gatewayCtx(ctx)
		dstBalance, err := c.gateway.EscrowBalance(gctx, order.Intent.DstChain, order.DstEscrow, order.Intent.DstToken)
		cancel()
		if err != nil {
			return err
		}
		if dstBalance.Cmp(dstAmount) < 0 {
			return fmt.Errorf("%w: dst escrow holds %s, need %s", domain.ErrFundsNotVerified, dstBalance, dstAmount)
		}

		order.DstSettlementTx = dstTxHash
		order.UpdatedAt = time.Now()
		if err := c.store.Save(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		spawn = true
		return nil
	})
	if err != nil {
		return err
	}
	if spawn {
		go c.runSettlementSupervisor(orderID)
	}
	return nil
}

// runSettlementSupervisor waits secretRevealDelay and then publishes the
// secret for competition. It is a plain goroutine cancellable via the
// controller's shared shutdown context, never holding the per-order lock
// across the wait itself.
func (c *Controller) runSettlementSupervisor(orderID [32]byte) {
	select {
	case <-time.After(c.cfg.SecretRevealDelay):
	case <-c.settlementCtx.Done():
		return
	}

	if err := c.PublishSecretForCompetition(c.settlementCtx, orderID); err != nil {
		c.logOrderErr("publish secret for competition failed", orderID, err)
	}
}

// PublishSecretForCompetition implements publishSecretForCompetition(orderId):
// it opens the competition window and then immediately attempts the
// controller's own authoritative reveal, since competition exists as a
// liveness fallback rather than the primary path.
func (c *Controller) PublishSecretForCompetition(ctx context.Context, orderID [32]byte) error {
	var order domain.Order
	var secret domain.Secret
	err := c.withOrderLock(ctx, orderKey(orderID), func() error {
		var err error
		order, err = c.store.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusSettling {
			return domain.ErrWrongStatus
		}
		secret, err = c.store.GetSecret(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load secret: %w", err)
		}

		deadline := time.Now().Add(c.cfg.CompetitionWindow)
		order.CompetitionDeadline = &deadline
		order.Status = domain.StatusCompeting
		order.UpdatedAt = time.Now()
		return c.store.Save(ctx, order)
	})
	if err != nil {
		return err
	}

	dstAmount, err := c.expectedDstAmount(ctx, order)
	if err != nil {
		c.logOrderErr("compute dst amount for secret broadcast failed", orderID, err)
		dstAmount = big.NewInt(0)
	}

	broadcast := domain.SecretBroadcast{
		OrderID:             fmt.Sprintf("%x", order.ID),
		Preimage:            fmt.Sprintf("%x", secret.Preimage),
		ResolverAddress:     order.Resolver,
		SrcEscrow:           order.SrcEscrow,
		DstEscrow:           order.DstEscrow,
		SrcChain:            order.Intent.SrcChain,
		DstChain:            order.Intent.DstChain,
		SrcAmount:           order.Intent.SrcAmount.String(),
		DstAmount:           dstAmount.String(),
		Timestamp:           time.Now(),
		CompetitionDeadline: *order.CompetitionDeadline,
	}
	if err := c.bus.PublishSecret(ctx, broadcast); err != nil {
		c.logOrderErr("publish secret broadcast failed", orderID, err)
	}

	return c.attemptAuthoritativeReveal(ctx, orderID, secret.Preimage)
}

// attemptAuthoritativeReveal performs the controller's own reveal on the
// destination escrow. Success completes the order regardless of who else
// might also be racing to reveal; failure leaves the order COMPETING for
// the reaper's CompetitionTimeout to arbitrate.
func (c *Controller) attemptAuthoritativeReveal(ctx context.Context, orderID [32]byte, preimage [32]byte) error {
	var order domain.Order
	err := c.withOrderLock(ctx, orderKey(orderID), func() error {
		var err error
		order, err = c.store.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusCompeting {
			return nil
		}

		gctx, cancel := gatewayCtx(ctx)
		txHash, err := c.gateway.RevealOnDestination(gctx, order.Intent.DstChain, order.DstEscrow, preimage)
		cancel()
		if err != nil {
			return err
		}

		now := time.Now()
		order.Status = domain.StatusCompleted
		order.SecretRevealedAt = &now
		order.SecretRevealTx = txHash
		order.UpdatedAt = now
		if err := c.store.Save(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		if err := c.store.MarkRevealed(ctx, orderID, now); err != nil {
			return fmt.Errorf("mark secret revealed: %w", err)
		}
		return c.store.UpdateCommitmentStatus(ctx, orderID, order.Resolver, *order.CommitmentTime, domain.CommitmentCompleted)
	})
	if err != nil {
		c.logOrderErr("authoritative reveal failed, leaving order for competition window", orderID, err)
	}
	return err
}
