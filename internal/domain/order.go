// Package domain holds the order lifecycle's data model: the Order
// aggregate, its embedded Auction, the Secret record kept isolated from
// broadcast payloads, and the append-only ResolverCommitment audit trail.
package domain

import (
	"math/big"
	"time"
)

// Status is one of the seven states an Order can occupy. Transitions
// between them are restricted to the DAG in the lifecycle controller; see
// internal/lifecycle for the only code allowed to advance a Status.
type Status string

const (
	StatusActive          Status = "ACTIVE"
	StatusCommitted       Status = "COMMITTED"
	StatusSettling        Status = "SETTLING"
	StatusCompeting       Status = "COMPETING"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
	StatusRescueAvailable Status = "RESCUE_AVAILABLE"
)

// CommitmentWindow is the fixed offset applied to commitmentTime to derive
// commitmentDeadline (spec: "commitmentDeadline? = commitmentTime + 5 min").
const CommitmentWindow = 5 * time.Minute

// Intent is the maker's signed off-chain trade request. Its structural
// hash under the EIP-712-style domain separator is the Order's id.
type Intent struct {
	Maker              string
	SrcChain           uint64
	SrcToken           string
	SrcAmount          *big.Int
	DstChain           uint64
	DstToken           string
	SecretHash         [32]byte
	MinAcceptablePrice *big.Int
	OrderDuration      time.Duration
	Nonce              uint64
	Deadline           time.Time
}

// Auction is the descending-price Dutch auction attached to an order at
// admission time.
type Auction struct {
	StartPrice *big.Int // 6-decimal fixed-point price scale
	EndPrice   *big.Int
	Duration   time.Duration
	StartTime  time.Time
}

// Order is the primary entity mutated exclusively by the lifecycle
// controller under the per-order-id critical section.
type Order struct {
	ID     [32]byte
	Intent Intent
	Status Status

	Auction     Auction
	MarketPrice *big.Int

	Resolver           string
	CommittedPrice     *big.Int
	CommitmentTime     *time.Time
	CommitmentDeadline *time.Time

	SrcEscrow string
	DstEscrow string

	FundsMovedAt    *time.Time
	SrcSettlementTx string
	DstSettlementTx string

	SecretRevealedAt    *time.Time
	SecretRevealTx      string
	CompetitionDeadline *time.Time

	CreatedAt time.Time
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Secret is stored separately from Order and is never part of an
// OrderBroadcast. Apart from the stores that persist it, only the lifecycle
// controller's reveal paths read Preimage: the SecretBroadcast and the
// on-chain reveal.
type Secret struct {
	OrderID    [32]byte
	Preimage   [32]byte
	Hash       [32]byte
	CreatedAt  time.Time
	RevealedAt *time.Time
}

// CommitmentStatus records the outcome of a single resolver's attempt to
// fill an order; multiple rows accumulate per order across rescues.
type CommitmentStatus string

const (
	CommitmentActive    CommitmentStatus = "active"
	CommitmentFailed    CommitmentStatus = "failed"
	CommitmentCompleted CommitmentStatus = "completed"
)

// ResolverCommitment is one append-only audit row. (orderId, resolver,
// commitmentTime) is unique; Status is mutated in place as the
// commitment's fate resolves.
type ResolverCommitment struct {
	OrderID       [32]byte
	Resolver      string
	AcceptedPrice *big.Int
	Timestamp     time.Time
	Status        CommitmentStatus
}

// Clone returns a deep-enough copy of Order for handing to callers outside
// the lifecycle controller's critical section — callers must never be able
// to mutate the controller's authoritative state through a returned value.
func (o Order) Clone() Order {
	clone := o
	if o.Intent.SrcAmount != nil {
		clone.Intent.SrcAmount = new(big.Int).Set(o.Intent.SrcAmount)
	}
	if o.Intent.MinAcceptablePrice != nil {
		clone.Intent.MinAcceptablePrice = new(big.Int).Set(o.Intent.MinAcceptablePrice)
	}
	if o.Auction.StartPrice != nil {
		clone.Auction.StartPrice = new(big.Int).Set(o.Auction.StartPrice)
	}
	if o.Auction.EndPrice != nil {
		clone.Auction.EndPrice = new(big.Int).Set(o.Auction.EndPrice)
	}
	if o.MarketPrice != nil {
		clone.MarketPrice = new(big.Int).Set(o.MarketPrice)
	}
	if o.CommittedPrice != nil {
		clone.CommittedPrice = new(big.Int).Set(o.CommittedPrice)
	}
	return clone
}
