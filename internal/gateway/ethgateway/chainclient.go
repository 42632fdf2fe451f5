package ethgateway

import (
	"context"
	"crypto/ecdsa"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ChainClient owns one signer, one RPC connection and one local nonce
// counter for a single chain. All submissions through this client are
// serialized by nonceMu, matching the "MUST serialise submissions using the
// same signer" requirement for a chain with exactly one hot signer.
type ChainClient struct {
	ChainID uint64

	eth    *ethclient.Client
	signer *ecdsa.PrivateKey
	from   common.Address

	// escrowFactory is the address the maker pre-approved as spender
	// (spec.md's "pre-approved pull" model); TransferUserFunds pulls into
	// this address via transferFrom, never via a plain transfer out of the
	// gateway's own balance.
	escrowFactory common.Address

	nonceMu sync.Mutex
	nonce   uint64
	primed  bool

	callTimeout time.Duration
	breaker     *breaker
}

// ChainClientConfig configures one ChainClient.
type ChainClientConfig struct {
	ChainID       uint64
	RPCEndpoint   string
	SignerKey     *ecdsa.PrivateKey
	EscrowFactory common.Address
	CallTimeout   time.Duration

	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func NewChainClient(cfg ChainClientConfig) (*ChainClient, error) {
	eth, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		return nil, err
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cc := &ChainClient{
		ChainID:       cfg.ChainID,
		eth:           eth,
		signer:        cfg.SignerKey,
		escrowFactory: cfg.EscrowFactory,
		callTimeout:   timeout,
		breaker:       newBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
	}
	if cfg.SignerKey != nil {
		pub, ok := cfg.SignerKey.Public().(*ecdsa.PublicKey)
		if ok {
			cc.from = crypto.PubkeyToAddress(*pub)
		}
	}
	return cc, nil
}

// nextNonce returns the next nonce to use for a submission, priming the
// local counter from the network on first use. The caller must hold
// nonceMu; submit holds it across the whole submit-and-increment sequence,
// which is what keeps concurrent goroutines from colliding on the same
// chain account.
func (c *ChainClient) nextNonce(ctx context.Context) (uint64, error) {
	if !c.primed {
		pending, err := c.eth.PendingNonceAt(ctx, c.from)
		if err != nil {
			return 0, err
		}
		c.nonce = pending
		c.primed = true
	}
	n := c.nonce
	c.nonce++
	return n, nil
}

func (c *ChainClient) callTimeoutCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.callTimeout)
}

// waitReceipt polls for txHash's receipt, up to ctx's deadline, sleeping
// between polls rather than subscribing, since callers already run inside a
// bounded-timeout supervisor goroutine.
func (c *ChainClient) waitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
