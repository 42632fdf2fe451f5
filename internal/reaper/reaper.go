// Package reaper implements the Timer/Reaper (C7): a background scan loop
// that turns elapsed deadlines into lifecycle events, and a separate daily
// job that prunes terminal orders past their retention window. It never
// holds per-order exclusivity itself — it only reads store state and hands
// events to the lifecycle controller, which serializes each transition on
// its own.
package reaper

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/goex/swaprelayer/internal/domain"
	"github.com/goex/swaprelayer/internal/store"
)

// Controller is the subset of internal/lifecycle.Controller the reaper
// drives. Declared locally so this package never imports internal/lifecycle
// directly, avoiding an import cycle risk if the controller ever needs
// reaper-shaped helpers.
type Controller interface {
	OrderExpired(ctx context.Context, orderID [32]byte) error
	CommitmentLapsed(ctx context.Context, orderID [32]byte) error
	CompetitionTimeout(ctx context.Context, orderID [32]byte) error
}

const (
	scanInterval    = 10 * time.Second
	revealDueWindow = 120 * time.Second
	pruneInterval   = 24 * time.Hour
)

// Reaper owns both scheduled jobs spec.md §4.5 describes.
type Reaper struct {
	store         store.Store
	ctrl          Controller
	logger        *slog.Logger
	retentionDays int
}

func New(st store.Store, ctrl Controller, retentionDays int, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Reaper{store: st, ctrl: ctrl, logger: logger, retentionDays: retentionDays}
}

// Run blocks until ctx is cancelled, driving the 10s scan loop and the
// daily prune job on independent tickers.
func (r *Reaper) Run(ctx context.Context) {
	scanTicker := time.NewTicker(scanInterval)
	defer scanTicker.Stop()
	pruneTicker := time.NewTicker(pruneInterval)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-scanTicker.C:
			r.scan(ctx)
		case <-pruneTicker.C:
			r.prune(ctx)
		}
	}
}

// scan implements the 10s reaper tick spec.md §4.5 describes: one lookup
// per event kind, restart-safe because it only reads.
func (r *Reaper) scan(ctx context.Context) {
	now := time.Now()

	r.emitExpired(ctx, now)
	r.emitCommitmentLapsed(ctx, now)
	r.emitRevealDue(ctx, now)
	r.emitCompetitionTimeout(ctx, now)
}

func (r *Reaper) emitExpired(ctx context.Context, now time.Time) {
	orders, err := r.store.Expired(ctx, now)
	if err != nil {
		r.logger.Error("reaper: list expired orders failed", "error", err)
		return
	}
	for _, order := range orders {
		if err := r.ctrl.OrderExpired(ctx, order.ID); err != nil {
			r.logger.Error("reaper: OrderExpired failed", "error", err, "order_id", orderIDHex(order))
		}
	}
}

func (r *Reaper) emitCommitmentLapsed(ctx context.Context, now time.Time) {
	orders, err := r.store.ExpiredCommitments(ctx, now)
	if err != nil {
		r.logger.Error("reaper: list expired commitments failed", "error", err)
		return
	}
	for _, order := range orders {
		if err := r.ctrl.CommitmentLapsed(ctx, order.ID); err != nil {
			r.logger.Error("reaper: CommitmentLapsed failed", "error", err, "order_id", orderIDHex(order))
		}
	}
}

// emitRevealDue implements the RevealDue(id) event: SETTLING orders with a
// settlement tx recorded, no reveal yet, past the reveal-delay window. The
// event is logged as an operational signal (a settlement supervisor is
// expected to be handling the reveal); the reaper logs a warning for each
// such order and takes no further action.
func (r *Reaper) emitRevealDue(ctx context.Context, now time.Time) {
	orders, err := r.store.PendingReveal(ctx, now, revealDueWindow)
	if err != nil {
		r.logger.Error("reaper: list pending reveal orders failed", "error", err)
		return
	}
	for _, order := range orders {
		r.logger.Warn("reaper: reveal overdue", "order_id", orderIDHex(order), "funds_moved_at", order.FundsMovedAt)
	}
}

// emitCompetitionTimeout implements COMPETING & now > competitionDeadline
// -> CompetitionTimeout(id). internal/store.Store's contract has no
// dedicated query for this (spec.md §4.4 does not list one); the reaper
// lists COMPETING orders and filters the deadline in memory instead of
// widening the store interface beyond its enumerated operations.
func (r *Reaper) emitCompetitionTimeout(ctx context.Context, now time.Time) {
	orders, err := r.store.ListByStatus(ctx, domain.StatusCompeting)
	if err != nil {
		r.logger.Error("reaper: list competing orders failed", "error", err)
		return
	}
	for _, order := range orders {
		if order.CompetitionDeadline == nil || !now.After(*order.CompetitionDeadline) {
			continue
		}
		if err := r.ctrl.CompetitionTimeout(ctx, order.ID); err != nil {
			r.logger.Error("reaper: CompetitionTimeout failed", "error", err, "order_id", orderIDHex(order))
		}
	}
}

func (r *Reaper) prune(ctx context.Context) {
	deleted, err := r.store.Prune(ctx, r.retentionDays)
	if err != nil {
		r.logger.Error("reaper: prune failed", "error", err)
		return
	}
	if deleted > 0 {
		r.logger.Info("reaper: pruned terminal orders", "count", deleted, "retention_days", r.retentionDays)
	}
}

func orderIDHex(order domain.Order) string {
	return hex.EncodeToString(order.ID[:])
}
