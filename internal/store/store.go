// Package store defines the Order Store (C2): the authoritative persisted
// view of every order, its secret, and its resolver commitment audit trail.
package store

import (
	"context"
	"time"

	"github.com/goex/swaprelayer/internal/domain"
)

// Stats summarizes the current order population, used by the control
// plane's operational surface and tests asserting on store state.
type Stats struct {
	ByStatus map[domain.Status]int64
	Total    int64
}

// Store is the persistence contract the lifecycle controller and reaper
// depend on. Reads are point-in-time consistent for a single order-id;
// list queries may be eventually consistent. Writes to an individual order
// are serialized by the caller's internal/lock critical section, not by
// the store itself.
type Store interface {
	Save(ctx context.Context, order domain.Order) error
	Get(ctx context.Context, orderID [32]byte) (domain.Order, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Order, error)

	// Expired returns ACTIVE orders whose expiresAt has passed as of now.
	Expired(ctx context.Context, now time.Time) ([]domain.Order, error)
	// ExpiredCommitments returns COMMITTED orders whose commitmentDeadline
	// has passed as of now.
	ExpiredCommitments(ctx context.Context, now time.Time) ([]domain.Order, error)
	// PendingReveal returns SETTLING orders with a settlement tx recorded,
	// no recorded reveal, and fundsMovedAt older than the reveal delay.
	PendingReveal(ctx context.Context, now time.Time, revealDelay time.Duration) ([]domain.Order, error)

	SaveSecret(ctx context.Context, secret domain.Secret) error
	GetSecret(ctx context.Context, orderID [32]byte) (domain.Secret, error)
	MarkRevealed(ctx context.Context, orderID [32]byte, revealedAt time.Time) error

	SaveCommitment(ctx context.Context, commitment domain.ResolverCommitment) error
	UpdateCommitmentStatus(ctx context.Context, orderID [32]byte, resolver string, commitmentTime time.Time, status domain.CommitmentStatus) error

	Stats(ctx context.Context) (Stats, error)
	// Prune deletes terminal orders (COMPLETED, FAILED) older than
	// retentionDays, along with their secrets and commitments.
	Prune(ctx context.Context, retentionDays int) (int64, error)
}
