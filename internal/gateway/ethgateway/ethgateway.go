// Package ethgateway is the production Chain Gateway (C1) adapter: one
// ChainClient per configured chain-id, talking to go-ethereum's
// ethclient.Client, with every call wrapped in a bounded retry and a
// per-chain circuit breaker so a wedged RPC endpoint degrades to
// CHAIN_UNREACHABLE instead of hanging a supervisor goroutine.
package ethgateway

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/goex/swaprelayer/internal/gateway"
)

// Gateway implements gateway.Gateway over one or more configured chains.
type Gateway struct {
	clients map[uint64]*ChainClient
}

func New(clients ...*ChainClient) *Gateway {
	g := &Gateway{clients: make(map[uint64]*ChainClient, len(clients))}
	for _, c := range clients {
		g.clients[c.ChainID] = c
	}
	return g
}

func (g *Gateway) client(chain uint64) (*ChainClient, error) {
	c, ok := g.clients[chain]
	if !ok {
		return nil, gateway.NewError(gateway.KindChainUnreachable, fmt.Errorf("no chain client configured for chain %d", chain))
	}
	return c, nil
}

func (g *Gateway) Allowance(ctx context.Context, chain uint64, token, owner, spender string) (*big.Int, error) {
	c, err := g.client(chain)
	if err != nil {
		return nil, err
	}

	var out *big.Int
	err = g.withBreaker(ctx, c, func() error {
		callCtx, cancel := c.callTimeoutCtx(ctx)
		defer cancel()

		data, packErr := erc20ABI.Pack("allowance", common.HexToAddress(owner), common.HexToAddress(spender))
		if packErr != nil {
			return gateway.NewError(gateway.KindChainUnreachable, packErr)
		}
		tokenAddr := common.HexToAddress(token)
		result, callErr := c.eth.CallContract(callCtx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
		if callErr != nil {
			return gateway.NewError(gateway.KindChainUnreachable, callErr)
		}
		unpacked, unpackErr := erc20ABI.Unpack("allowance", result)
		if unpackErr != nil || len(unpacked) == 0 {
			return gateway.NewError(gateway.KindChainUnreachable, fmt.Errorf("unpack allowance: %v", unpackErr))
		}
		amount, ok := unpacked[0].(*big.Int)
		if !ok {
			return gateway.NewError(gateway.KindChainUnreachable, fmt.Errorf("unexpected allowance type"))
		}
		out = amount
		return nil
	})
	return out, err
}

func (g *Gateway) EscrowBalance(ctx context.Context, chain uint64, escrow, token string) (*big.Int, error) {
	c, err := g.client(chain)
	if err != nil {
		return nil, err
	}

	var out *big.Int
	err = g.withBreaker(ctx, c, func() error {
		callCtx, cancel := c.callTimeoutCtx(ctx)
		defer cancel()

		if token == "" {
			balance, balErr := c.eth.BalanceAt(callCtx, common.HexToAddress(escrow), nil)
			if balErr != nil {
				return gateway.NewError(gateway.KindChainUnreachable, balErr)
			}
			out = balance
			return nil
		}

		data, packErr := erc20ABI.Pack("balanceOf", common.HexToAddress(escrow))
		if packErr != nil {
			return gateway.NewError(gateway.KindChainUnreachable, packErr)
		}
		tokenAddr := common.HexToAddress(token)
		result, callErr := c.eth.CallContract(callCtx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
		if callErr != nil {
			return gateway.NewError(gateway.KindChainUnreachable, callErr)
		}
		unpacked, unpackErr := erc20ABI.Unpack("balanceOf", result)
		if unpackErr != nil || len(unpacked) == 0 {
			return gateway.NewError(gateway.KindChainUnreachable, fmt.Errorf("unpack balanceOf: %v", unpackErr))
		}
		amount, ok := unpacked[0].(*big.Int)
		if !ok {
			return gateway.NewError(gateway.KindChainUnreachable, fmt.Errorf("unexpected balanceOf type"))
		}
		out = amount
		return nil
	})
	return out, err
}

func (g *Gateway) Decimals(ctx context.Context, chain uint64, token string) (uint8, error) {
	c, err := g.client(chain)
	if err != nil {
		return 0, err
	}

	var out uint8
	err = g.withBreaker(ctx, c, func() error {
		callCtx, cancel := c.callTimeoutCtx(ctx)
		defer cancel()

		data, packErr := erc20ABI.Pack("decimals")
		if packErr != nil {
			return gateway.NewError(gateway.KindChainUnreachable, packErr)
		}
		tokenAddr := common.HexToAddress(token)
		result, callErr := c.eth.CallContract(callCtx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
		if callErr != nil {
			return gateway.NewError(gateway.KindChainUnreachable, callErr)
		}
		unpacked, unpackErr := erc20ABI.Unpack("decimals", result)
		if unpackErr != nil || len(unpacked) == 0 {
			return gateway.NewError(gateway.KindChainUnreachable, fmt.Errorf("unpack decimals: %v", unpackErr))
		}
		d, ok := unpacked[0].(uint8)
		if !ok {
			return gateway.NewError(gateway.KindChainUnreachable, fmt.Errorf("unexpected decimals type"))
		}
		out = d
		return nil
	})
	return out, err
}

// TransferUserFunds pulls amount of token out of the maker's (from's) own
// balance into the chain's escrow factory, exercising the allowance the
// maker granted the factory at admission time (spec.md's "pre-approved
// pull" model) via transferFrom. It never moves the gateway's own balance.
func (g *Gateway) TransferUserFunds(ctx context.Context, chain uint64, orderID [32]byte, from, token string, amount *big.Int) (string, error) {
	c, err := g.client(chain)
	if err != nil {
		return "", err
	}
	if c.signer == nil {
		return "", gateway.NewError(gateway.KindNotAuthorized, fmt.Errorf("no signer configured for chain %d", chain))
	}
	if c.escrowFactory == (common.Address{}) {
		return "", gateway.NewError(gateway.KindNotAuthorized, fmt.Errorf("no escrow factory configured for chain %d", chain))
	}

	allowance, err := g.Allowance(ctx, chain, token, from, c.escrowFactory.Hex())
	if err != nil {
		return "", err
	}
	if allowance.Cmp(amount) < 0 {
		return "", gateway.NewError(gateway.KindInsufficientAllowance, fmt.Errorf("allowance %s below required %s", allowance, amount))
	}

	var txHash string
	err = g.withBreaker(ctx, c, func() error {
		data, packErr := erc20ABI.Pack("transferFrom", common.HexToAddress(from), c.escrowFactory, amount)
		if packErr != nil {
			return gateway.NewError(gateway.KindRejected, packErr)
		}
		tx, submitErr := c.submit(ctx, common.HexToAddress(token), big.NewInt(0), data)
		if submitErr != nil {
			return gateway.NewError(gateway.KindRejected, submitErr)
		}
		txHash = tx.Hash().Hex()
		return nil
	})
	return txHash, err
}

func (g *Gateway) AwaitConfirmations(ctx context.Context, chain uint64, txHash string, n uint64) (gateway.Receipt, error) {
	c, err := g.client(chain)
	if err != nil {
		return gateway.Receipt{}, err
	}

	var out gateway.Receipt
	err = g.withBreaker(ctx, c, func() error {
		receipt, waitErr := c.waitReceipt(ctx, common.HexToHash(txHash))
		if waitErr != nil {
			if ctx.Err() != nil {
				return gateway.NewError(gateway.KindTimeout, waitErr)
			}
			return gateway.NewError(gateway.KindTxNotFound, waitErr)
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			out = gateway.Receipt{TxHash: txHash, BlockNumber: receipt.BlockNumber.Uint64(), Success: false}
			return gateway.NewError(gateway.KindTxReverted, fmt.Errorf("tx %s reverted", txHash))
		}

		head, headErr := c.eth.BlockNumber(ctx)
		if headErr != nil {
			return gateway.NewError(gateway.KindChainUnreachable, headErr)
		}
		confirmations := uint64(0)
		if head >= receipt.BlockNumber.Uint64() {
			confirmations = head - receipt.BlockNumber.Uint64() + 1
		}
		out = gateway.Receipt{
			TxHash:        txHash,
			BlockNumber:   receipt.BlockNumber.Uint64(),
			Confirmations: confirmations,
			Success:       true,
		}
		if confirmations < n {
			return gateway.NewError(gateway.KindTimeout, fmt.Errorf("only %d/%d confirmations", confirmations, n))
		}
		return nil
	})
	return out, err
}

func (g *Gateway) RevealOnDestination(ctx context.Context, chain uint64, escrow string, preimage [32]byte) (string, error) {
	c, err := g.client(chain)
	if err != nil {
		return "", err
	}
	if c.signer == nil {
		return "", gateway.NewError(gateway.KindNotAuthorized, fmt.Errorf("no signer configured for chain %d", chain))
	}

	var txHash string
	err = g.withBreaker(ctx, c, func() error {
		data, packErr := htlcABI.Pack("reveal", preimage)
		if packErr != nil {
			return gateway.NewError(gateway.KindRejected, packErr)
		}
		tx, submitErr := c.submit(ctx, common.HexToAddress(escrow), big.NewInt(0), data)
		if submitErr != nil {
			return classifyRevealError(submitErr)
		}
		txHash = tx.Hash().Hex()
		return nil
	})
	return txHash, err
}

func (g *Gateway) ExtractRevealedSecret(ctx context.Context, chain uint64, txHash, escrow string) ([32]byte, error) {
	c, err := g.client(chain)
	if err != nil {
		return [32]byte{}, err
	}

	var out [32]byte
	err = g.withBreaker(ctx, c, func() error {
		callCtx, cancel := c.callTimeoutCtx(ctx)
		defer cancel()

		receipt, recErr := c.eth.TransactionReceipt(callCtx, common.HexToHash(txHash))
		if recErr != nil {
			return gateway.NewError(gateway.KindNotFound, recErr)
		}
		escrowAddr := common.HexToAddress(escrow)
		for _, logEntry := range receipt.Logs {
			if logEntry.Address != escrowAddr {
				continue
			}
			event, parseErr := htlcABI.EventByID(logEntry.Topics[0])
			if parseErr != nil || event.Name != "Revealed" {
				continue
			}
			unpacked, unpackErr := htlcABI.Unpack("Revealed", logEntry.Data)
			if unpackErr != nil || len(unpacked) == 0 {
				continue
			}
			preimage, ok := unpacked[0].([32]byte)
			if !ok {
				continue
			}
			out = preimage
			return nil
		}
		return gateway.NewError(gateway.KindNotFound, fmt.Errorf("no Revealed log in tx %s for escrow %s", txHash, escrow))
	})
	return out, err
}

// submit signs and sends a transaction from c's signer, holding nonceMu
// from nonce assignment through SendTransaction.
func (c *ChainClient) submit(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	nonce, err := c.nextNonce(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := c.callTimeoutCtx(ctx)
	defer cancel()

	gasPrice, err := c.eth.SuggestGasPrice(callCtx)
	if err != nil {
		return nil, err
	}
	gasLimit, err := c.eth.EstimateGas(callCtx, ethereum.CallMsg{From: c.from, To: &to, Value: value, Data: data})
	if err != nil {
		return nil, err
	}

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(c.ChainID))
	signedTx, err := types.SignTx(tx, signer, c.signer)
	if err != nil {
		return nil, err
	}
	if err := c.eth.SendTransaction(callCtx, signedTx); err != nil {
		return nil, err
	}
	return signedTx, nil
}

// withBreaker runs fn through the shared retry budget, gating on c's
// circuit breaker so a chain that is already known-down fails fast.
func (g *Gateway) withBreaker(ctx context.Context, c *ChainClient, fn func() error) error {
	if !c.breaker.Allow() {
		return gateway.NewError(gateway.KindChainUnreachable, fmt.Errorf("chain %d breaker open", c.ChainID))
	}
	err := withRetryFn(ctx, fn)
	if err != nil && isTransientErr(err) {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}
	return err
}

func classifyRevealError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already claimed") || strings.Contains(msg, "already revealed"):
		return gateway.NewError(gateway.KindAlreadyClaimed, err)
	case strings.Contains(msg, "deadline"):
		return gateway.NewError(gateway.KindDeadlinePassed, err)
	case strings.Contains(msg, "hash mismatch") || strings.Contains(msg, "invalid preimage"):
		return gateway.NewError(gateway.KindHashMismatch, err)
	default:
		return gateway.NewError(gateway.KindRejected, err)
	}
}
