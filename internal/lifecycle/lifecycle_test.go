package lifecycle

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/goex/swaprelayer/internal/bus"
	"github.com/goex/swaprelayer/internal/domain"
	"github.com/goex/swaprelayer/internal/gateway"
	"github.com/goex/swaprelayer/internal/gateway/memgateway"
	"github.com/goex/swaprelayer/internal/lock"
	"github.com/goex/swaprelayer/internal/oracle"
	"github.com/goex/swaprelayer/internal/signing"
	"github.com/goex/swaprelayer/internal/store"
	"github.com/goex/swaprelayer/internal/store/memstore"
)

const (
	testSrcChain uint64 = 84532
	testDstChain uint64 = 421614
	testSrcToken        = "0x000000000000000000000000000000000000000a"
	testDstToken        = "0x000000000000000000000000000000000000000b"
	testFactory         = "0x00000000000000000000000000000000000f00"
)

type harness struct {
	ctrl     *Controller
	st       store.Store
	gw       *memgateway.Gateway
	b        *bus.MemBus
	priceSet *oracle.StaticCache
	makerKey *ecdsa.PrivateKey
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	makerKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	st := memstore.New()
	gw := memgateway.New()
	gw.SetEscrowFactory(testSrcChain, testFactory)
	gw.SetEscrowFactory(testDstChain, testFactory)
	memBus := bus.NewMemBus()
	priceSet := oracle.NewStaticCache(nil)
	priceSet.Set(testSrcChain, testSrcToken, testDstChain, testDstToken, big.NewInt(1_000_000))

	verifier := signing.NewVerifier(func(srcChain uint64) (common.Address, error) {
		return common.HexToAddress(testFactory), nil
	})

	cfg := Config{
		DefaultOrderDuration:     300 * time.Second,
		FastAuctionDuration:      60 * time.Second,
		ResolverCommitmentWindow: 5 * time.Minute,
		SecretRevealDelay:        10 * time.Millisecond,
		CompetitionWindow:        5 * time.Minute,
		DefaultConfirmations:     1,
	}

	escrowFactory := func(srcChain uint64) (string, error) { return testFactory, nil }

	ctrl := NewController(st, gw, memBus, verifier, priceSet, lock.NewKeyedLocker(), escrowFactory, cfg, nil)

	return &harness{ctrl: ctrl, st: st, gw: gw, b: memBus, priceSet: priceSet, makerKey: makerKey}
}

func (h *harness) intent(t *testing.T, preimage [32]byte) domain.Intent {
	t.Helper()
	hash := crypto.Keccak256Hash(preimage[:])
	var secretHash [32]byte
	copy(secretHash[:], hash[:])
	return domain.Intent{
		Maker:              crypto.PubkeyToAddress(h.makerKey.PublicKey).Hex(),
		SrcChain:           testSrcChain,
		SrcToken:           testSrcToken,
		SrcAmount:          big.NewInt(1_000_000),
		DstChain:           testDstChain,
		DstToken:           testDstToken,
		SecretHash:         secretHash,
		MinAcceptablePrice: big.NewInt(900_000),
		OrderDuration:      300 * time.Second,
		Nonce:              1,
		Deadline:           time.Now().Add(time.Hour),
	}
}

func (h *harness) sign(t *testing.T, intent domain.Intent) []byte {
	t.Helper()
	verifier := signing.NewVerifier(func(srcChain uint64) (common.Address, error) {
		return common.HexToAddress(testFactory), nil
	})
	hash, err := verifier.StructuralHash(intent)
	if err != nil {
		t.Fatalf("StructuralHash: %v", err)
	}
	sig, err := crypto.Sign(hash[:], h.makerKey)
	if err != nil {
		t.Fatalf("crypto.Sign: %v", err)
	}
	return sig
}

func testPreimage(b byte) [32]byte {
	var p [32]byte
	p[0] = b
	return p
}

// Scenario 1: Happy path.
func TestHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	preimage := testPreimage(1)
	intent := h.intent(t, preimage)
	sig := h.sign(t, intent)

	h.gw.SetAllowance(testSrcChain, testSrcToken, intent.Maker, testFactory, big.NewInt(1_000_000))

	admitted, err := h.ctrl.Admit(ctx, intent, sig, preimage)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	order, err := h.ctrl.OrderStatus(ctx, admitted.OrderID)
	if err != nil {
		t.Fatalf("OrderStatus: %v", err)
	}
	if order.Status != domain.StatusActive {
		t.Fatalf("status = %s, want ACTIVE", order.Status)
	}
	if order.Auction.StartPrice.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("startPrice = %s, want 1000000", order.Auction.StartPrice)
	}
	if order.Auction.EndPrice.Cmp(big.NewInt(900_000)) != 0 {
		t.Fatalf("endPrice = %s, want 900000", order.Auction.EndPrice)
	}

	resolver := "0x0000000000000000000000000000000000000d"
	quoted := big.NewInt(950_000)
	now := time.Now()
	if _, err := h.ctrl.Commit(ctx, admitted.OrderID, resolver, quoted, now); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	srcEscrow, dstEscrow := "0xsrcescrow", "0xdstescrow"
	srcDepositTx, dstDepositTx := "0xsrcdeposit", "0xdstdeposit"
	h.gw.SetReceipt(srcDepositTx, gateway.Receipt{TxHash: srcDepositTx, Confirmations: 99, Success: true})
	h.gw.SetReceipt(dstDepositTx, gateway.Receipt{TxHash: dstDepositTx, Confirmations: 99, Success: true})
	h.gw.SetEscrowBalance(testSrcChain, srcEscrow, "", big.NewInt(0))
	h.gw.SetEscrowBalance(testDstChain, dstEscrow, "", big.NewInt(0))
	if err := h.ctrl.EscrowsReady(ctx, admitted.OrderID, resolver, srcEscrow, dstEscrow, srcDepositTx, dstDepositTx); err != nil {
		t.Fatalf("EscrowsReady: %v", err)
	}

	order, err = h.ctrl.OrderStatus(ctx, admitted.OrderID)
	if err != nil {
		t.Fatalf("OrderStatus: %v", err)
	}
	if order.Status != domain.StatusSettling {
		t.Fatalf("status = %s, want SETTLING", order.Status)
	}

	h.gw.SetEscrowBalance(testSrcChain, srcEscrow, testSrcToken, big.NewInt(1_000_000))
	h.gw.SetEscrowBalance(testDstChain, dstEscrow, testDstToken, big.NewInt(950_000))
	if err := h.ctrl.NotifySettlement(ctx, admitted.OrderID, resolver, big.NewInt(950_000), "0xdsttx"); err != nil {
		t.Fatalf("NotifySettlement: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		order, err = h.ctrl.OrderStatus(ctx, admitted.OrderID)
		if err != nil {
			t.Fatalf("OrderStatus: %v", err)
		}
		if order.Status == domain.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("order did not reach COMPLETED, last status %s", order.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if order.SecretRevealedAt == nil {
		t.Fatal("expected secretRevealedAt to be set")
	}
	if len(h.b.SecretMessages) != 1 {
		t.Fatalf("expected exactly one secret broadcast, got %d", len(h.b.SecretMessages))
	}
}

// Scenario 2: signature failure.
func TestAdmitRejectsWrongSignature(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	preimage := testPreimage(2)
	intent := h.intent(t, preimage)

	otherKey, _ := crypto.GenerateKey()
	verifier := signing.NewVerifier(func(srcChain uint64) (common.Address, error) {
		return common.HexToAddress(testFactory), nil
	})
	hash, err := verifier.StructuralHash(intent)
	if err != nil {
		t.Fatalf("StructuralHash: %v", err)
	}
	sig, err := crypto.Sign(hash[:], otherKey)
	if err != nil {
		t.Fatalf("crypto.Sign: %v", err)
	}

	if _, err := h.ctrl.Admit(ctx, intent, sig, preimage); err == nil {
		t.Fatal("expected Admit to reject a signature from a different key")
	}

	stats, err := h.st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("expected no orders persisted, got %d", stats.Total)
	}
}

// Scenario 3: allowance failure.
func TestAdmitRejectsInsufficientAllowance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	preimage := testPreimage(3)
	intent := h.intent(t, preimage)
	sig := h.sign(t, intent)

	h.gw.SetAllowance(testSrcChain, testSrcToken, intent.Maker, testFactory, big.NewInt(500_000))

	_, err := h.ctrl.Admit(ctx, intent, sig, preimage)
	if err == nil {
		t.Fatal("expected Admit to reject insufficient allowance")
	}
	if err != domain.ErrInsufficientAllowance {
		t.Fatalf("err = %v, want ErrInsufficientAllowance", err)
	}
}

// Scenario 4: expired auction. The reaper's job (emitting OrderExpired) is
// internal/reaper's responsibility; this test exercises the lifecycle
// controller's half of the contract directly.
func TestOrderExpiredTransitionsToFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	preimage := testPreimage(4)
	intent := h.intent(t, preimage)
	sig := h.sign(t, intent)
	h.gw.SetAllowance(testSrcChain, testSrcToken, intent.Maker, testFactory, big.NewInt(1_000_000))

	admitted, err := h.ctrl.Admit(ctx, intent, sig, preimage)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	if err := h.ctrl.OrderExpired(ctx, admitted.OrderID); err != nil {
		t.Fatalf("OrderExpired: %v", err)
	}

	order, err := h.ctrl.OrderStatus(ctx, admitted.OrderID)
	if err != nil {
		t.Fatalf("OrderStatus: %v", err)
	}
	if order.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want FAILED", order.Status)
	}
}

// Scenario 5: rescue.
func TestRescueAfterCommitmentLapse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	preimage := testPreimage(5)
	intent := h.intent(t, preimage)
	sig := h.sign(t, intent)
	h.gw.SetAllowance(testSrcChain, testSrcToken, intent.Maker, testFactory, big.NewInt(1_000_000))

	admitted, err := h.ctrl.Admit(ctx, intent, sig, preimage)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	original := "0x0000000000000000000000000000000000000d"
	if _, err := h.ctrl.Commit(ctx, admitted.OrderID, original, big.NewInt(950_000), time.Now()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := h.ctrl.CommitmentLapsed(ctx, admitted.OrderID); err != nil {
		t.Fatalf("CommitmentLapsed: %v", err)
	}

	order, err := h.ctrl.OrderStatus(ctx, admitted.OrderID)
	if err != nil {
		t.Fatalf("OrderStatus: %v", err)
	}
	if order.Status != domain.StatusRescueAvailable {
		t.Fatalf("status = %s, want RESCUE_AVAILABLE", order.Status)
	}

	rescuer := "0x0000000000000000000000000000000000000e"
	prior, err := h.ctrl.RescueOrder(ctx, admitted.OrderID, rescuer)
	if err != nil {
		t.Fatalf("RescueOrder: %v", err)
	}
	if prior != original {
		t.Fatalf("originalResolver = %s, want %s", prior, original)
	}

	order, err = h.ctrl.OrderStatus(ctx, admitted.OrderID)
	if err != nil {
		t.Fatalf("OrderStatus: %v", err)
	}
	if order.Status != domain.StatusCommitted {
		t.Fatalf("status = %s, want COMMITTED", order.Status)
	}
	if order.Resolver != rescuer {
		t.Fatalf("resolver = %s, want %s", order.Resolver, rescuer)
	}
}

// Scenario 6: hash mismatch.
func TestAdmitRejectsHashMismatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	preimage := testPreimage(6)
	wrongPreimage := testPreimage(60)
	intent := h.intent(t, preimage)
	sig := h.sign(t, intent)

	if _, err := h.ctrl.Admit(ctx, intent, sig, wrongPreimage); err != domain.ErrHashMismatch {
		t.Fatalf("err = %v, want ErrHashMismatch", err)
	}
}

func TestAdmitIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	preimage := testPreimage(7)
	intent := h.intent(t, preimage)
	sig := h.sign(t, intent)
	h.gw.SetAllowance(testSrcChain, testSrcToken, intent.Maker, testFactory, big.NewInt(1_000_000))

	first, err := h.ctrl.Admit(ctx, intent, sig, preimage)
	if err != nil {
		t.Fatalf("Admit (first): %v", err)
	}
	second, err := h.ctrl.Admit(ctx, intent, sig, preimage)
	if err != nil {
		t.Fatalf("Admit (second): %v", err)
	}
	if first.OrderID != second.OrderID {
		t.Fatalf("orderID changed across resubmission: %x vs %x", first.OrderID, second.OrderID)
	}

	stats, err := h.st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("expected exactly one persisted order, got %d", stats.Total)
	}
}

func TestCommitRejectsSecondCommitWhileActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	preimage := testPreimage(8)
	intent := h.intent(t, preimage)
	sig := h.sign(t, intent)
	h.gw.SetAllowance(testSrcChain, testSrcToken, intent.Maker, testFactory, big.NewInt(1_000_000))

	admitted, err := h.ctrl.Admit(ctx, intent, sig, preimage)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	if _, err := h.ctrl.Commit(ctx, admitted.OrderID, "0xresolverA", big.NewInt(950_000), time.Now()); err != nil {
		t.Fatalf("Commit A: %v", err)
	}
	if _, err := h.ctrl.Commit(ctx, admitted.OrderID, "0xresolverB", big.NewInt(950_000), time.Now()); err != domain.ErrWrongStatus {
		t.Fatalf("Commit B err = %v, want ErrWrongStatus", err)
	}
}

func TestCommitRejectsQuotedOutsideBand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	preimage := testPreimage(9)
	intent := h.intent(t, preimage)
	sig := h.sign(t, intent)
	h.gw.SetAllowance(testSrcChain, testSrcToken, intent.Maker, testFactory, big.NewInt(1_000_000))

	admitted, err := h.ctrl.Admit(ctx, intent, sig, preimage)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	if _, err := h.ctrl.Commit(ctx, admitted.OrderID, "0xresolverA", big.NewInt(1_100_000), time.Now()); !errors.Is(err, domain.ErrPriceOutOfBand) {
		t.Fatalf("err = %v, want ErrPriceOutOfBand", err)
	}
}

var _ gateway.Gateway = (*memgateway.Gateway)(nil)
