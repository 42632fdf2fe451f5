// Package pgstore is the production Order Store (C2), backed by
// Postgres through pgx/v5 and pgxpool.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goex/swaprelayer/internal/domain"
	"github.com/goex/swaprelayer/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const orderColumns = `
	id, maker, src_chain, src_token, src_amount, dst_chain, dst_token, secret_hash,
	min_acceptable_price, order_duration_seconds, nonce, deadline, status,
	auction_start_price, auction_end_price, auction_duration_seconds, auction_start_time,
	market_price, resolver, committed_price, commitment_time, commitment_deadline,
	src_escrow, dst_escrow, funds_moved_at, src_settlement_tx, dst_settlement_tx,
	secret_revealed_at, secret_reveal_tx, competition_deadline,
	created_at, expires_at, updated_at
`

func (s *Store) Save(ctx context.Context, order domain.Order) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			auction_start_price = EXCLUDED.auction_start_price,
			auction_end_price = EXCLUDED.auction_end_price,
			auction_duration_seconds = EXCLUDED.auction_duration_seconds,
			auction_start_time = EXCLUDED.auction_start_time,
			market_price = EXCLUDED.market_price,
			resolver = EXCLUDED.resolver,
			committed_price = EXCLUDED.committed_price,
			commitment_time = EXCLUDED.commitment_time,
			commitment_deadline = EXCLUDED.commitment_deadline,
			src_escrow = EXCLUDED.src_escrow,
			dst_escrow = EXCLUDED.dst_escrow,
			funds_moved_at = EXCLUDED.funds_moved_at,
			src_settlement_tx = EXCLUDED.src_settlement_tx,
			dst_settlement_tx = EXCLUDED.dst_settlement_tx,
			secret_revealed_at = EXCLUDED.secret_revealed_at,
			secret_reveal_tx = EXCLUDED.secret_reveal_tx,
			competition_deadline = EXCLUDED.competition_deadline,
			updated_at = EXCLUDED.updated_at
	`, orderArgs(order)...)
	return err
}

func (s *Store) Get(ctx context.Context, orderID [32]byte) (domain.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID[:])
	return scanOrder(row)
}

func (s *Store) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *Store) Expired(ctx context.Context, now time.Time) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
	`, domain.StatusActive, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *Store) ExpiredCommitments(ctx context.Context, now time.Time) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND commitment_deadline IS NOT NULL AND commitment_deadline < $2
		ORDER BY commitment_deadline
	`, domain.StatusCommitted, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *Store) PendingReveal(ctx context.Context, now time.Time, revealDelay time.Duration) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1
		  AND src_settlement_tx != '' AND dst_settlement_tx != ''
		  AND secret_revealed_at IS NULL
		  AND funds_moved_at IS NOT NULL AND funds_moved_at < $2
	`, domain.StatusSettling, now.Add(-revealDelay))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *Store) SaveSecret(ctx context.Context, secret domain.Secret) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO secrets (order_id, preimage, hash, created_at, revealed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO NOTHING
	`, secret.OrderID[:], secret.Preimage[:], secret.Hash[:], secret.CreatedAt, secret.RevealedAt)
	return err
}

func (s *Store) GetSecret(ctx context.Context, orderID [32]byte) (domain.Secret, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT order_id, preimage, hash, created_at, revealed_at FROM secrets WHERE order_id = $1
	`, orderID[:])

	var secret domain.Secret
	var orderIDBytes, preimageBytes, hashBytes []byte
	if err := row.Scan(&orderIDBytes, &preimageBytes, &hashBytes, &secret.CreatedAt, &secret.RevealedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Secret{}, domain.ErrNotFound
		}
		return domain.Secret{}, err
	}
	copy(secret.OrderID[:], orderIDBytes)
	copy(secret.Preimage[:], preimageBytes)
	copy(secret.Hash[:], hashBytes)
	return secret, nil
}

func (s *Store) MarkRevealed(ctx context.Context, orderID [32]byte, revealedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE secrets SET revealed_at = $1 WHERE order_id = $2`, revealedAt, orderID[:])
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) SaveCommitment(ctx context.Context, commitment domain.ResolverCommitment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO commitments (order_id, resolver, accepted_price, commitment_time, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, resolver, commitment_time) DO NOTHING
	`, commitment.OrderID[:], commitment.Resolver, commitment.AcceptedPrice.String(), commitment.Timestamp, commitment.Status)
	return err
}

func (s *Store) UpdateCommitmentStatus(ctx context.Context, orderID [32]byte, resolver string, commitmentTime time.Time, status domain.CommitmentStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE commitments SET status = $1
		WHERE order_id = $2 AND resolver = $3 AND commitment_time = $4
	`, status, orderID[:], resolver, commitmentTime)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM orders GROUP BY status`)
	if err != nil {
		return store.Stats{}, err
	}
	defer rows.Close()

	stats := store.Stats{ByStatus: map[domain.Status]int64{}}
	for rows.Next() {
		var status domain.Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return store.Stats{}, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

func (s *Store) Prune(ctx context.Context, retentionDays int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM orders
		WHERE status IN ($1, $2) AND updated_at < now() - ($3 || ' days')::interval
	`, domain.StatusCompleted, domain.StatusFailed, retentionDays)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func orderArgs(o domain.Order) []any {
	return []any{
		o.ID[:], o.Intent.Maker, o.Intent.SrcChain, o.Intent.SrcToken, o.Intent.SrcAmount.String(),
		o.Intent.DstChain, o.Intent.DstToken, o.Intent.SecretHash[:],
		o.Intent.MinAcceptablePrice.String(), int64(o.Intent.OrderDuration.Seconds()), o.Intent.Nonce, o.Intent.Deadline,
		o.Status,
		o.Auction.StartPrice.String(), o.Auction.EndPrice.String(), int64(o.Auction.Duration.Seconds()), o.Auction.StartTime,
		nullableBigInt(o.MarketPrice), o.Resolver, nullableBigInt(o.CommittedPrice), o.CommitmentTime, o.CommitmentDeadline,
		o.SrcEscrow, o.DstEscrow, o.FundsMovedAt, o.SrcSettlementTx, o.DstSettlementTx,
		o.SecretRevealedAt, o.SecretRevealTx, o.CompetitionDeadline,
		o.CreatedAt, o.ExpiresAt, o.UpdatedAt,
	}
}

func nullableBigInt(v *big.Int) any {
	if v == nil {
		return nil
	}
	return v.String()
}

func scanOrders(rows pgx.Rows) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var idBytes, secretHashBytes []byte
	var srcAmountStr, minPriceStr, startPriceStr, endPriceStr string
	var marketPriceStr, committedPriceStr *string
	var orderDurationSecs, auctionDurationSecs int64

	err := row.Scan(
		&idBytes, &o.Intent.Maker, &o.Intent.SrcChain, &o.Intent.SrcToken, &srcAmountStr,
		&o.Intent.DstChain, &o.Intent.DstToken, &secretHashBytes,
		&minPriceStr, &orderDurationSecs, &o.Intent.Nonce, &o.Intent.Deadline,
		&o.Status,
		&startPriceStr, &endPriceStr, &auctionDurationSecs, &o.Auction.StartTime,
		&marketPriceStr, &o.Resolver, &committedPriceStr, &o.CommitmentTime, &o.CommitmentDeadline,
		&o.SrcEscrow, &o.DstEscrow, &o.FundsMovedAt, &o.SrcSettlementTx, &o.DstSettlementTx,
		&o.SecretRevealedAt, &o.SecretRevealTx, &o.CompetitionDeadline,
		&o.CreatedAt, &o.ExpiresAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, err
	}

	copy(o.ID[:], idBytes)
	copy(o.Intent.SecretHash[:], secretHashBytes)
	o.Intent.OrderDuration = time.Duration(orderDurationSecs) * time.Second
	o.Auction.Duration = time.Duration(auctionDurationSecs) * time.Second

	if o.Intent.SrcAmount, err = parseBigInt(srcAmountStr); err != nil {
		return domain.Order{}, fmt.Errorf("parse src_amount: %w", err)
	}
	if o.Intent.MinAcceptablePrice, err = parseBigInt(minPriceStr); err != nil {
		return domain.Order{}, fmt.Errorf("parse min_acceptable_price: %w", err)
	}
	if o.Auction.StartPrice, err = parseBigInt(startPriceStr); err != nil {
		return domain.Order{}, fmt.Errorf("parse auction_start_price: %w", err)
	}
	if o.Auction.EndPrice, err = parseBigInt(endPriceStr); err != nil {
		return domain.Order{}, fmt.Errorf("parse auction_end_price: %w", err)
	}
	if marketPriceStr != nil {
		if o.MarketPrice, err = parseBigInt(*marketPriceStr); err != nil {
			return domain.Order{}, fmt.Errorf("parse market_price: %w", err)
		}
	}
	if committedPriceStr != nil {
		if o.CommittedPrice, err = parseBigInt(*committedPriceStr); err != nil {
			return domain.Order{}, fmt.Errorf("parse committed_price: %w", err)
		}
	}

	return o, nil
}

func parseBigInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}
