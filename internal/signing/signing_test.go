package signing

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/goex/swaprelayer/internal/domain"
)

var testFactory = common.HexToAddress("0x000000000000000000000000000000000000f1")

func fixedFactory(srcChain uint64) (common.Address, error) {
	return testFactory, nil
}

func testIntent(makerKey *ecdsa.PrivateKey) domain.Intent {
	return domain.Intent{
		Maker:              crypto.PubkeyToAddress(makerKey.PublicKey).Hex(),
		SrcChain:           1,
		SrcToken:           "0x000000000000000000000000000000000000000a",
		SrcAmount:          big.NewInt(1_000_000_000_000_000_000),
		DstChain:           137,
		DstToken:           "0x000000000000000000000000000000000000000b",
		SecretHash:         [32]byte{1, 2, 3},
		MinAcceptablePrice: big.NewInt(900_000),
		OrderDuration:      5 * time.Minute,
		Nonce:              1,
		Deadline:           time.Unix(1_800_000_000, 0),
	}
}

func signIntent(t *testing.T, v *Verifier, key *ecdsa.PrivateKey, intent domain.Intent) []byte {
	t.Helper()
	hash, err := v.StructuralHash(intent)
	if err != nil {
		t.Fatalf("StructuralHash: %v", err)
	}
	sig, err := crypto.Sign(hash[:], key)
	if err != nil {
		t.Fatalf("crypto.Sign: %v", err)
	}
	return sig
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	v := NewVerifier(fixedFactory)
	intent := testIntent(key)
	sig := signIntent(t, v, key, intent)

	orderID, err := v.Verify(intent, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	wantHash, err := v.StructuralHash(intent)
	if err != nil {
		t.Fatalf("StructuralHash: %v", err)
	}
	if orderID != wantHash {
		t.Fatalf("orderID mismatch: got %x want %x", orderID, wantHash)
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	key, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()
	v := NewVerifier(fixedFactory)
	intent := testIntent(key)
	sig := signIntent(t, v, other, intent)

	if _, err := v.Verify(intent, sig); err == nil {
		t.Fatal("expected rejection for signature from a different key")
	}
}

func TestVerifyRejectsTamperedIntent(t *testing.T) {
	key, _ := crypto.GenerateKey()
	v := NewVerifier(fixedFactory)
	intent := testIntent(key)
	sig := signIntent(t, v, key, intent)

	intent.SrcAmount = big.NewInt(2_000_000_000_000_000_000)
	if _, err := v.Verify(intent, sig); err == nil {
		t.Fatal("expected rejection after intent amount changed post-signing")
	}
}

func TestVerifyRejectsShortSignature(t *testing.T) {
	key, _ := crypto.GenerateKey()
	v := NewVerifier(fixedFactory)
	intent := testIntent(key)

	if _, err := v.Verify(intent, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected rejection for malformed signature")
	}
}

func TestStructuralHashDeterministic(t *testing.T) {
	key, _ := crypto.GenerateKey()
	v := NewVerifier(fixedFactory)
	intent := testIntent(key)

	h1, err := v.StructuralHash(intent)
	if err != nil {
		t.Fatalf("StructuralHash: %v", err)
	}
	h2, err := v.StructuralHash(intent)
	if err != nil {
		t.Fatalf("StructuralHash: %v", err)
	}
	if h1 != h2 {
		t.Fatal("StructuralHash is not deterministic across identical calls")
	}
}

func TestStructuralHashDiffersByChain(t *testing.T) {
	key, _ := crypto.GenerateKey()
	v := NewVerifier(fixedFactory)
	intentA := testIntent(key)
	intentB := intentA
	intentB.DstChain = 10

	hA, err := v.StructuralHash(intentA)
	if err != nil {
		t.Fatalf("StructuralHash: %v", err)
	}
	hB, err := v.StructuralHash(intentB)
	if err != nil {
		t.Fatalf("StructuralHash: %v", err)
	}
	if hA == hB {
		t.Fatal("expected different hashes for different dstChain")
	}
}
