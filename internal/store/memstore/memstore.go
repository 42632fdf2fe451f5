// Package memstore is the in-memory Store used by unit tests. It is wired
// the same way the Postgres store is; it is not a production component.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/goex/swaprelayer/internal/domain"
	"github.com/goex/swaprelayer/internal/store"
)

var _ store.Store = (*Store)(nil)

type commitmentKey struct {
	orderID        [32]byte
	resolver       string
	commitmentTime time.Time
}

type Store struct {
	mu          sync.Mutex
	orders      map[[32]byte]domain.Order
	secrets     map[[32]byte]domain.Secret
	commitments map[commitmentKey]domain.ResolverCommitment
}

func New() *Store {
	return &Store{
		orders:      map[[32]byte]domain.Order{},
		secrets:     map[[32]byte]domain.Secret{},
		commitments: map[commitmentKey]domain.ResolverCommitment{},
	}
}

func (s *Store) Save(ctx context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order.Clone()
	return nil
}

func (s *Store) Get(ctx context.Context, orderID [32]byte) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (s *Store) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, order := range s.orders {
		if order.Status == status {
			out = append(out, order.Clone())
		}
	}
	return out, nil
}

func (s *Store) Expired(ctx context.Context, now time.Time) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, order := range s.orders {
		if order.Status == domain.StatusActive && now.After(order.ExpiresAt) {
			out = append(out, order.Clone())
		}
	}
	return out, nil
}

func (s *Store) ExpiredCommitments(ctx context.Context, now time.Time) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, order := range s.orders {
		if order.Status == domain.StatusCommitted && order.CommitmentDeadline != nil && now.After(*order.CommitmentDeadline) {
			out = append(out, order.Clone())
		}
	}
	return out, nil
}

func (s *Store) PendingReveal(ctx context.Context, now time.Time, revealDelay time.Duration) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, order := range s.orders {
		if order.Status != domain.StatusSettling {
			continue
		}
		if order.SrcSettlementTx == "" || order.DstSettlementTx == "" {
			continue
		}
		if order.SecretRevealedAt != nil {
			continue
		}
		if order.FundsMovedAt == nil || now.Sub(*order.FundsMovedAt) <= revealDelay {
			continue
		}
		out = append(out, order.Clone())
	}
	return out, nil
}

func (s *Store) SaveSecret(ctx context.Context, secret domain.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[secret.OrderID] = secret
	return nil
}

func (s *Store) GetSecret(ctx context.Context, orderID [32]byte) (domain.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.secrets[orderID]
	if !ok {
		return domain.Secret{}, domain.ErrNotFound
	}
	return secret, nil
}

func (s *Store) MarkRevealed(ctx context.Context, orderID [32]byte, revealedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.secrets[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	secret.RevealedAt = &revealedAt
	s.secrets[orderID] = secret
	return nil
}

func (s *Store) SaveCommitment(ctx context.Context, commitment domain.ResolverCommitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := commitmentKey{orderID: commitment.OrderID, resolver: commitment.Resolver, commitmentTime: commitment.Timestamp}
	s.commitments[key] = commitment
	return nil
}

func (s *Store) UpdateCommitmentStatus(ctx context.Context, orderID [32]byte, resolver string, commitmentTime time.Time, status domain.CommitmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := commitmentKey{orderID: orderID, resolver: resolver, commitmentTime: commitmentTime}
	commitment, ok := s.commitments[key]
	if !ok {
		return domain.ErrNotFound
	}
	commitment.Status = status
	s.commitments[key] = commitment
	return nil
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := store.Stats{ByStatus: map[domain.Status]int64{}}
	for _, order := range s.orders {
		stats.ByStatus[order.Status]++
		stats.Total++
	}
	return stats, nil
}

func (s *Store) Prune(ctx context.Context, retentionDays int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	var pruned int64
	for id, order := range s.orders {
		if order.Status != domain.StatusCompleted && order.Status != domain.StatusFailed {
			continue
		}
		if order.UpdatedAt.After(cutoff) {
			continue
		}
		delete(s.orders, id)
		delete(s.secrets, id)
		for key := range s.commitments {
			if key.orderID == id {
				delete(s.commitments, key)
			}
		}
		pruned++
	}
	return pruned, nil
}
