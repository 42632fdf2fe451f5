package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/goex/swaprelayer/internal/domain"
	"github.com/goex/swaprelayer/internal/pricing"
)

// CommitmentLapsed implements CommitmentLapsed(orderId): COMMITTED ->
// RESCUE_AVAILABLE. The defaulting resolver's audit row is marked failed;
// its safety deposit stays attached to the escrow for whoever eventually
// completes the order.
func (c *Controller) CommitmentLapsed(ctx context.Context, orderID [32]byte) error {
	return c.withOrderLock(ctx, orderKey(orderID), func() error {
		order, err := c.store.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusCommitted {
			return nil
		}

		if order.CommitmentTime != nil {
			if err := c.store.UpdateCommitmentStatus(ctx, orderID, order.Resolver, *order.CommitmentTime, domain.CommitmentFailed); err != nil {
				return fmt.Errorf("mark commitment failed: %w", err)
			}
		}

		order.Status = domain.StatusRescueAvailable
		order.UpdatedAt = time.Now()
		return c.store.Save(ctx, order)
	})
}

// OrderExpired implements OrderExpired(orderId): ACTIVE -> FAILED.
func (c *Controller) OrderExpired(ctx context.Context, orderID [32]byte) error {
	return c.withOrderLock(ctx, orderKey(orderID), func() error {
		order, err := c.store.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusActive {
			return nil
		}
		order.Status = domain.StatusFailed
		order.UpdatedAt = time.Now()
		return c.store.Save(ctx, order)
	})
}

// CompetitionTimeout implements CompetitionTimeout(orderId): if still
// COMPETING and unrevealed, the controller makes one last authoritative
// reveal attempt; if that also fails the order terminates FAILED.
func (c *Controller) CompetitionTimeout(ctx context.Context, orderID [32]byte) error {
	order, err := c.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.StatusCompeting {
		return nil
	}

	secret, err := c.store.GetSecret(ctx, orderID)
	if err == nil {
		if revealErr := c.attemptAuthoritativeReveal(ctx, orderID, secret.Preimage); revealErr == nil {
			return nil
		}
	}

	return c.withOrderLock(ctx, orderKey(orderID), func() error {
		order, err := c.store.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusCompeting {
			return nil
		}
		order.Status = domain.StatusFailed
		order.UpdatedAt = time.Now()
		return c.store.Save(ctx, order)
	})
}

// RescueOrder lets a resolver other than the defaulter take over a
// RESCUE_AVAILABLE order at the auction's currently quoted price — it is
// the resolver-facing entry point onto the same commit path.
func (c *Controller) RescueOrder(ctx context.Context, orderID [32]byte, resolver string) (originalResolver string, err error) {
	order, err := c.store.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.Status != domain.StatusRescueAvailable {
		return "", domain.ErrNotRescuable
	}
	originalResolver = order.Resolver

	now := time.Now()
	quoted := pricing.CurrentPrice(order.Auction, now)
	if _, err := c.Commit(ctx, orderID, resolver, quoted, now); err != nil {
		return "", err
	}
	return originalResolver, nil
}
