package lifecycle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/goex/swaprelayer/internal/domain"
	"github.com/goex/swaprelayer/internal/pricing"
)

// CommitResult carries the fields commitResolver returns to its caller.
type CommitResult struct {
	CurrentPrice      *big.Int
	ExpectedDstAmount *big.Int
}

// Commit implements commit(orderId, resolver, quoted, now): the first
// resolver to win the per-order critical section while the order is
// ACTIVE or RESCUE_AVAILABLE claims it.
func (c *Controller) Commit(ctx context.Context, orderID [32]byte, resolver string, quoted *big.Int, now time.Time) (CommitResult, error) {
	var result CommitResult
	err := c.withOrderLock(ctx, orderKey(orderID), func() error {
		order, err := c.store.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusActive && order.Status != domain.StatusRescueAvailable {
			return domain.ErrWrongStatus
		}

		if err := pricing.ValidateQuote(order.Auction, quoted, now, nil); err != nil {
			return err
		}

		if order.Resolver != "" {
			if err := c.store.UpdateCommitmentStatus(ctx, orderID, order.Resolver, *order.CommitmentTime, domain.CommitmentFailed); err != nil {
				return fmt.Errorf("mark prior commitment failed: %w", err)
			}
		}

		deadline := now.Add(c.cfg.ResolverCommitmentWindow)
		order.Resolver = resolver
		order.CommittedPrice = new(big.Int).Set(quoted)
		order.CommitmentTime = &now
		order.CommitmentDeadline = &deadline
		order.Status = domain.StatusCommitted
		order.UpdatedAt = now

		if err := c.store.SaveCommitment(ctx, domain.ResolverCommitment{
			OrderID:       orderID,
			Resolver:      resolver,
			AcceptedPrice: new(big.Int).Set(quoted),
			Timestamp:     now,
			Status:        domain.CommitmentActive,
		}); err != nil {
			return fmt.Errorf("save commitment: %w", err)
		}

		if err := c.store.Save(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		srcDecimals, err := c.decimalsOrDefault(ctx, order.Intent.SrcChain, order.Intent.SrcToken)
		if err != nil {
			return err
		}
		dstDecimals, err := c.decimalsOrDefault(ctx, order.Intent.DstChain, order.Intent.DstToken)
		if err != nil {
			return err
		}
		dstAmount, err := pricing.TokenAmounts(order.Intent.SrcAmount, srcDecimals, dstDecimals, quoted)
		if err != nil {
			return fmt.Errorf("compute expected amounts: %w", err)
		}

		result = CommitResult{
			CurrentPrice:      pricing.CurrentPrice(order.Auction, now),
			ExpectedDstAmount: dstAmount,
		}
		return nil
	})
	return result, err
}

// EscrowsReady implements escrowsReady(orderId, resolver, srcEscrow,
// dstEscrow, srcDepositTx, dstDepositTx): the two deposit transactions
// must themselves be confirmed before the escrow balances they fund are
// trusted, then both safety deposits are verified, then it hands off to
// moveUserFunds inside the same critical section.
func (c *Controller) EscrowsReady(ctx context.Context, orderID [32]byte, resolver, srcEscrow, dstEscrow, srcDepositTx, dstDepositTx string) error {
	return c.withOrderLock(ctx, orderKey(orderID), func() error {
		order, err := c.store.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusCommitted {
			return domain.ErrWrongStatus
		}
		if order.Resolver != resolver {
			return domain.ErrNotOwningResolver
		}

		if err := c.awaitDepositConfirmed(ctx, order.Intent.SrcChain, srcDepositTx); err != nil {
			return err
		}
		if err := c.awaitDepositConfirmed(ctx, order.Intent.DstChain, dstDepositTx); err != nil {
			return err
		}

		if err := c.verifySafetyDeposit(ctx, order.Intent.SrcChain, srcEscrow); err != nil {
			return err
		}
		if err := c.verifySafetyDeposit(ctx, order.Intent.DstChain, dstEscrow); err != nil {
			return err
		}

		order.SrcEscrow = srcEscrow
		order.DstEscrow = dstEscrow
		order.UpdatedAt = time.Now()
		if err := c.store.Save(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		return c.moveUserFundsLocked(ctx, order)
	})
}

func (c *Controller) awaitDepositConfirmed(ctx context.Context, chain uint64, depositTx string) error {
	gctx, cancel := gatewayCtx(ctx)
	defer cancel()
	_, err := c.gateway.AwaitConfirmations(gctx, chain, depositTx, c.cfg.confirmations(chain))
	return err
}

func (c *Controller) verifySafetyDeposit(ctx context.Context, chain uint64, escrow string) error {
	gctx, cancel := gatewayCtx(ctx)
	defer cancel()
	balance, err := c.gateway.EscrowBalance(gctx, chain, escrow, "")
	if err != nil {
		return err
	}
	if balance.Cmp(c.cfg.minSafetyDeposit(chain)) < 0 {
		return fmt.Errorf("%w: escrow %s holds %s, need %s", domain.ErrEscrowUnderfunded, escrow, balance, c.cfg.minSafetyDeposit(chain))
	}
	return nil
}

// moveUserFundsLocked implements moveUserFunds(orderId). Callers must
// already hold the order's critical section.
func (c *Controller) moveUserFundsLocked(ctx context.Context, order domain.Order) error {
	gctx, cancel := gatewayCtx(ctx)
	defer cancel()
	txHash, err := c.gateway.TransferUserFunds(gctx, order.Intent.SrcChain, order.ID, order.Intent.Maker, order.Intent.SrcToken, order.Intent.SrcAmount)
	if err != nil {
		return err
	}

	now := time.Now()
	order.Status = domain.StatusSettling
	order.FundsMovedAt = &now
	order.SrcSettlementTx = txHash
	order.UpdatedAt = now
	return c.store.Save(ctx, order)
}
