// Package gateway defines the Chain Gateway (C1): the only component
// permitted to perform I/O against the source and destination chains.
// Every other component reaches the chains exclusively through this
// vocabulary.
package gateway

import (
	"context"
	"fmt"
	"math/big"
)

// Kind classifies a gateway failure so callers can branch on it without
// string matching.
type Kind string

const (
	KindChainUnreachable     Kind = "CHAIN_UNREACHABLE"
	KindNotAuthorized        Kind = "NOT_AUTHORIZED"
	KindInsufficientAllowance Kind = "INSUFFICIENT_ALLOWANCE"
	KindRejected             Kind = "REJECTED"
	KindTxNotFound           Kind = "TX_NOT_FOUND"
	KindTxReverted           Kind = "TX_REVERTED"
	KindTimeout              Kind = "TIMEOUT"
	KindAlreadyClaimed       Kind = "ALREADY_CLAIMED"
	KindDeadlinePassed       Kind = "DEADLINE_PASSED"
	KindHashMismatch         Kind = "HASH_MISMATCH"
	KindNotFound             Kind = "NOT_FOUND"
)

// Error is the typed failure every Gateway method returns instead of a bare
// error, so a caller (the lifecycle controller, the reaper) can decide
// whether to retry, downgrade the order, or surface the failure verbatim.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	gerr, ok := err.(*Error)
	return ok && gerr.Kind == kind
}

// Receipt is the confirmation-polling result for a submitted transaction.
type Receipt struct {
	TxHash        string
	BlockNumber   uint64
	Confirmations uint64
	Success       bool
}

// Gateway is the chain-facing vocabulary every other component uses. chain
// identifies the target chain by its numeric chain-id; token is the empty
// string for a chain's native asset.
type Gateway interface {
	// Allowance returns the base-unit amount owner has approved spender to
	// move on token, on chain.
	Allowance(ctx context.Context, chain uint64, token, owner, spender string) (*big.Int, error)

	// EscrowBalance returns the base-unit balance held at escrow, in token
	// (or the native asset if token is empty).
	EscrowBalance(ctx context.Context, chain uint64, escrow, token string) (*big.Int, error)

	// Decimals returns token's on-chain decimals. Callers fall back to 18
	// only when this call itself fails, and log that fallback.
	Decimals(ctx context.Context, chain uint64, token string) (uint8, error)

	// TransferUserFunds pulls amount of token from from into chain's escrow
	// factory (the maker's pre-approved spender) via transferFrom, returning
	// the submitted transaction hash.
	TransferUserFunds(ctx context.Context, chain uint64, orderID [32]byte, from, token string, amount *big.Int) (txHash string, err error)

	// AwaitConfirmations blocks (respecting ctx) until txHash has at least
	// n confirmations on chain, or fails with TxNotFound/TxReverted/Timeout.
	AwaitConfirmations(ctx context.Context, chain uint64, txHash string, n uint64) (Receipt, error)

	// RevealOnDestination submits preimage to escrow on chain, releasing
	// the destination-side funds to whoever reveals first.
	RevealOnDestination(ctx context.Context, chain uint64, escrow string, preimage [32]byte) (txHash string, err error)

	// ExtractRevealedSecret reads the preimage a settled reveal transaction
	// disclosed on-chain.
	ExtractRevealedSecret(ctx context.Context, chain uint64, txHash, escrow string) ([32]byte, error)
}
