// Package signing implements the Signature Verifier (C5): a pure,
// deterministic component that derives an order's structural hash under an
// EIP-712 domain separator and recovers the signer from a signature over
// that hash. It performs no I/O and holds no state.
package signing

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/goex/swaprelayer/internal/domain"
)

const (
	DomainName    = "SwapRelayer"
	DomainVersion = "1"
)

var intentTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Intent": {
		{Name: "maker", Type: "address"},
		{Name: "srcChain", Type: "uint256"},
		{Name: "srcToken", Type: "address"},
		{Name: "srcAmount", Type: "uint256"},
		{Name: "dstChain", Type: "uint256"},
		{Name: "dstToken", Type: "address"},
		{Name: "secretHash", Type: "bytes32"},
		{Name: "minAcceptablePrice", Type: "uint256"},
		{Name: "orderDuration", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	},
}

// EscrowFactoryResolver maps a source chain-id to the escrow factory
// contract address used as EIP-712's verifyingContract. It is supplied by
// the caller (typically internal/config) rather than hard-coded, since the
// factory address is deployment-specific.
type EscrowFactoryResolver func(srcChain uint64) (common.Address, error)

// Verifier verifies signed intents and derives their deterministic
// order-id. It carries no mutable state.
type Verifier struct {
	escrowFactory EscrowFactoryResolver
}

func NewVerifier(escrowFactory EscrowFactoryResolver) *Verifier {
	return &Verifier{escrowFactory: escrowFactory}
}

// typedData builds the EIP-712 typed-data structure for intent under the
// domain separator {name, version, chainId=intent.SrcChain,
// verifyingContract=escrowFactory(intent.SrcChain)}.
func (v *Verifier) typedData(intent domain.Intent) (apitypes.TypedData, error) {
	factory, err := v.escrowFactory(intent.SrcChain)
	if err != nil {
		return apitypes.TypedData{}, fmt.Errorf("resolve escrow factory: %w", err)
	}

	return apitypes.TypedData{
		Types:       intentTypes,
		PrimaryType: "Intent",
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           math.NewHexOrDecimal256(int64(intent.SrcChain)),
			VerifyingContract: factory.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"maker":              intent.Maker,
			"srcChain":           new(big.Int).SetUint64(intent.SrcChain).String(),
			"srcToken":           intent.SrcToken,
			"srcAmount":          intent.SrcAmount.String(),
			"dstChain":           new(big.Int).SetUint64(intent.DstChain).String(),
			"dstToken":           intent.DstToken,
			"secretHash":         intent.SecretHash[:],
			"minAcceptablePrice": intent.MinAcceptablePrice.String(),
			"orderDuration":      new(big.Int).SetInt64(int64(intent.OrderDuration.Seconds())).String(),
			"nonce":              new(big.Int).SetUint64(intent.Nonce).String(),
			"deadline":           new(big.Int).SetInt64(intent.Deadline.Unix()).String(),
		},
	}, nil
}

// StructuralHash computes H(O), the EIP-712 hash the maker signs and the
// value the order-id is derived from. Identical intents across independent
// coordinator instances hash identically because the computation is a pure
// function of intent and the domain, never of wall-clock or local state.
func (v *Verifier) StructuralHash(intent domain.Intent) ([32]byte, error) {
	td, err := v.typedData(intent)
	if err != nil {
		return [32]byte{}, err
	}

	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return [32]byte{}, fmt.Errorf("hash domain: %w", err)
	}
	msgHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return [32]byte{}, fmt.Errorf("hash message: %w", err)
	}

	rawData := append([]byte{0x19, 0x01}, domainSeparator...)
	rawData = append(rawData, msgHash...)

	var out [32]byte
	copy(out[:], crypto.Keccak256(rawData))
	return out, nil
}

// Verify recovers the signer from (H(O), sig) and confirms it equals
// O.Maker, returning the order-id on success.
func (v *Verifier) Verify(intent domain.Intent, sig []byte) (orderID [32]byte, err error) {
	hash, err := v.StructuralHash(intent)
	if err != nil {
		return [32]byte{}, err
	}

	signer, err := recoverSigner(hash, sig)
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: %v", domain.ErrBadSignature, err)
	}
	if !equalAddress(signer, intent.Maker) {
		return [32]byte{}, domain.ErrBadSignature
	}
	return hash, nil
}

func recoverSigner(hash [32]byte, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	// go-ethereum's crypto.Ecrecover expects the recovery id in the last
	// byte as 0/1; wallets commonly produce 27/28 (EIP-191 legacy v).
	sigCopy := make([]byte, 65)
	copy(sigCopy, sig)
	if sigCopy[64] >= 27 {
		sigCopy[64] -= 27
	}

	pubKey, err := crypto.SigToPub(hash[:], sigCopy)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

func equalAddress(recovered common.Address, claimed string) bool {
	return recovered == common.HexToAddress(claimed)
}
