// Package memgateway is a deterministic in-memory Gateway used by
// controller and reaper tests. It is not part of the production contract:
// callers configure its behavior directly rather than driving it through
// real chain state.
package memgateway

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/goex/swaprelayer/internal/gateway"
)

// Gateway is a hand-rolled fake satisfying gateway.Gateway. Build it with
// New: the setters and TransferUserFunds write into the maps New allocates,
// so the zero value is not usable. Every lookup defaults to success with a
// zero balance unless pre-seeded.
type Gateway struct {
	mu sync.Mutex

	Allowances     map[string]*big.Int // key: chain/token/owner/spender
	EscrowBalances map[string]*big.Int // key: chain/escrow/token
	TokenDecimals  map[string]uint8    // key: chain/token

	// EscrowFactories is the per-chain pre-approved spender TransferUserFunds
	// pulls into, mirroring ethgateway.ChainClient's configured
	// escrowFactory: the pull is modeled as a real transferFrom against this
	// address's allowance, not a no-op success.
	EscrowFactories map[uint64]string

	// TxCounter assigns deterministic synthetic tx hashes.
	TxCounter int

	Receipts map[string]gateway.Receipt // key: txHash

	// RevealedSecrets maps a settled reveal tx hash to the preimage it
	// disclosed on-chain.
	RevealedSecrets map[string][32]byte

	// Failures is allocated by New but no Gateway method reads it; forced
	// failures are injected through TransferErr and RevealErr.
	Failures map[string]*gateway.Error

	TransferErr error
	RevealErr   error
}

func New() *Gateway {
	return &Gateway{
		Allowances:      map[string]*big.Int{},
		EscrowBalances:  map[string]*big.Int{},
		TokenDecimals:   map[string]uint8{},
		EscrowFactories: map[uint64]string{},
		Receipts:        map[string]gateway.Receipt{},
		RevealedSecrets: map[string][32]byte{},
		Failures:        map[string]*gateway.Error{},
	}
}

func allowanceKey(chain uint64, token, owner, spender string) string {
	return fmt.Sprintf("%d/%s/%s/%s", chain, token, owner, spender)
}

func balanceKey(chain uint64, escrow, token string) string {
	return fmt.Sprintf("%d/%s/%s", chain, escrow, token)
}

func decimalsKey(chain uint64, token string) string {
	return fmt.Sprintf("%d/%s", chain, token)
}

func (g *Gateway) SetAllowance(chain uint64, token, owner, spender string, amount *big.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Allowances[allowanceKey(chain, token, owner, spender)] = amount
}

func (g *Gateway) SetEscrowBalance(chain uint64, escrow, token string, amount *big.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.EscrowBalances[balanceKey(chain, escrow, token)] = amount
}

func (g *Gateway) SetDecimals(chain uint64, token string, decimals uint8) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.TokenDecimals[decimalsKey(chain, token)] = decimals
}

// SetEscrowFactory configures the address TransferUserFunds pulls into on
// chain, mirroring the per-chain escrow factory cmd/relayer wires into the
// real ethgateway.ChainClient.
func (g *Gateway) SetEscrowFactory(chain uint64, factory string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.EscrowFactories[chain] = factory
}

// SetReceipt seeds a confirmed receipt for a tx hash a test constructs
// itself (e.g. a deposit tx submitted outside the gateway, such as a
// resolver's own escrow funding transaction).
func (g *Gateway) SetReceipt(txHash string, receipt gateway.Receipt) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Receipts[txHash] = receipt
}

func (g *Gateway) Allowance(ctx context.Context, chain uint64, token, owner, spender string) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.Allowances[allowanceKey(chain, token, owner, spender)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (g *Gateway) EscrowBalance(ctx context.Context, chain uint64, escrow, token string) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.EscrowBalances[balanceKey(chain, escrow, token)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (g *Gateway) Decimals(ctx context.Context, chain uint64, token string) (uint8, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.TokenDecimals[decimalsKey(chain, token)]; ok {
		return v, nil
	}
	return 18, nil
}

// TransferUserFunds models a real transferFrom(from, escrowFactory, amount)
// pull: it is satisfied only out of the allowance from's granted the
// chain's configured escrow factory, decrementing it, never a no-op
// success — the same semantics ethgateway.Gateway's production adapter
// enforces on-chain.
func (g *Gateway) TransferUserFunds(ctx context.Context, chain uint64, orderID [32]byte, from, token string, amount *big.Int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.TransferErr != nil {
		return "", g.TransferErr
	}

	factory, ok := g.EscrowFactories[chain]
	if !ok {
		return "", gateway.NewError(gateway.KindNotAuthorized, fmt.Errorf("no escrow factory configured for chain %d", chain))
	}
	key := allowanceKey(chain, token, from, factory)
	allowance, ok := g.Allowances[key]
	if !ok || allowance.Cmp(amount) < 0 {
		return "", gateway.NewError(gateway.KindInsufficientAllowance, fmt.Errorf("allowance below required %s", amount))
	}
	g.Allowances[key] = new(big.Int).Sub(allowance, amount)

	g.TxCounter++
	txHash := fmt.Sprintf("0xtx%d", g.TxCounter)
	g.Receipts[txHash] = gateway.Receipt{TxHash: txHash, BlockNumber: uint64(g.TxCounter), Confirmations: 99, Success: true}
	return txHash, nil
}

func (g *Gateway) AwaitConfirmations(ctx context.Context, chain uint64, txHash string, n uint64) (gateway.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	receipt, ok := g.Receipts[txHash]
	if !ok {
		return gateway.Receipt{}, gateway.NewError(gateway.KindTxNotFound, fmt.Errorf("tx %s not found", txHash))
	}
	if !receipt.Success {
		return receipt, gateway.NewError(gateway.KindTxReverted, fmt.Errorf("tx %s reverted", txHash))
	}
	return receipt, nil
}

func (g *Gateway) RevealOnDestination(ctx context.Context, chain uint64, escrow string, preimage [32]byte) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.RevealErr != nil {
		return "", g.RevealErr
	}
	g.TxCounter++
	txHash := fmt.Sprintf("0xreveal%d", g.TxCounter)
	g.Receipts[txHash] = gateway.Receipt{TxHash: txHash, BlockNumber: uint64(g.TxCounter), Confirmations: 99, Success: true}
	g.RevealedSecrets[txHash] = preimage
	return txHash, nil
}

func (g *Gateway) ExtractRevealedSecret(ctx context.Context, chain uint64, txHash, escrow string) ([32]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	preimage, ok := g.RevealedSecrets[txHash]
	if !ok {
		return [32]byte{}, gateway.NewError(gateway.KindNotFound, fmt.Errorf("no revealed secret for tx %s", txHash))
	}
	return preimage, nil
}
