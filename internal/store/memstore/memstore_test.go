package memstore

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/goex/swaprelayer/internal/domain"
)

func testOrder(id byte) domain.Order {
	now := time.Now()
	var orderID [32]byte
	orderID[0] = id
	return domain.Order{
		ID: orderID,
		Intent: domain.Intent{
			Maker:              "0xmaker",
			SrcChain:           1,
			SrcToken:           "0xsrc",
			SrcAmount:          big.NewInt(1_000),
			DstChain:           137,
			DstToken:           "0xdst",
			MinAcceptablePrice: big.NewInt(900_000),
			OrderDuration:      5 * time.Minute,
		},
		Status: domain.StatusActive,
		Auction: domain.Auction{
			StartPrice: big.NewInt(1_000_000),
			EndPrice:   big.NewInt(900_000),
			Duration:   60 * time.Second,
			StartTime:  now,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
		UpdatedAt: now,
	}
}

func TestSaveAndGetRoundTrips(t *testing.T) {
	s := New()
	order := testOrder(1)

	if err := s.Save(context.Background(), order); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Intent.Maker != order.Intent.Maker {
		t.Fatalf("expected maker %s, got %s", order.Intent.Maker, got.Intent.Maker)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := New()
	var missing [32]byte
	missing[0] = 0xff
	if _, err := s.Get(context.Background(), missing); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetReturnsACopyNotTheLiveOrder(t *testing.T) {
	s := New()
	order := testOrder(2)
	_ = s.Save(context.Background(), order)

	got, _ := s.Get(context.Background(), order.ID)
	got.Intent.SrcAmount.SetInt64(999)

	again, _ := s.Get(context.Background(), order.ID)
	if again.Intent.SrcAmount.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("mutating a returned order leaked into the store: got %s", again.Intent.SrcAmount)
	}
}

func TestExpiredFiltersByStatusAndDeadline(t *testing.T) {
	s := New()
	expired := testOrder(3)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	notExpired := testOrder(4)
	notExpired.ExpiresAt = time.Now().Add(time.Minute)
	committed := testOrder(5)
	committed.Status = domain.StatusCommitted
	committed.ExpiresAt = time.Now().Add(-time.Minute)

	_ = s.Save(context.Background(), expired)
	_ = s.Save(context.Background(), notExpired)
	_ = s.Save(context.Background(), committed)

	got, err := s.Expired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Expired: %v", err)
	}
	if len(got) != 1 || got[0].ID != expired.ID {
		t.Fatalf("expected exactly the one expired active order, got %d", len(got))
	}
}

func TestExpiredCommitmentsRequiresDeadlineSet(t *testing.T) {
	s := New()
	lapsed := testOrder(6)
	lapsed.Status = domain.StatusCommitted
	deadline := time.Now().Add(-time.Minute)
	lapsed.CommitmentDeadline = &deadline

	noDeadline := testOrder(7)
	noDeadline.Status = domain.StatusCommitted

	_ = s.Save(context.Background(), lapsed)
	_ = s.Save(context.Background(), noDeadline)

	got, err := s.ExpiredCommitments(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ExpiredCommitments: %v", err)
	}
	if len(got) != 1 || got[0].ID != lapsed.ID {
		t.Fatalf("expected exactly the lapsed commitment, got %d", len(got))
	}
}

func TestSecretLifecycle(t *testing.T) {
	s := New()
	var orderID [32]byte
	orderID[0] = 8
	secret := domain.Secret{OrderID: orderID, Preimage: [32]byte{1}, Hash: [32]byte{2}, CreatedAt: time.Now()}

	if err := s.SaveSecret(context.Background(), secret); err != nil {
		t.Fatalf("SaveSecret: %v", err)
	}
	got, err := s.GetSecret(context.Background(), orderID)
	if err != nil {
		t.Fatalf("GetSecret: %v", err)
	}
	if got.RevealedAt != nil {
		t.Fatal("expected RevealedAt unset before MarkRevealed")
	}

	now := time.Now()
	if err := s.MarkRevealed(context.Background(), orderID, now); err != nil {
		t.Fatalf("MarkRevealed: %v", err)
	}
	got, _ = s.GetSecret(context.Background(), orderID)
	if got.RevealedAt == nil {
		t.Fatal("expected RevealedAt set after MarkRevealed")
	}
}

func TestCommitmentStatusTransitionRequiresExistingRow(t *testing.T) {
	s := New()
	var orderID [32]byte
	orderID[0] = 9
	ts := time.Now()

	if err := s.UpdateCommitmentStatus(context.Background(), orderID, "0xresolver", ts, domain.CommitmentFailed); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing commitment, got %v", err)
	}

	commitment := domain.ResolverCommitment{OrderID: orderID, Resolver: "0xresolver", AcceptedPrice: big.NewInt(1), Timestamp: ts, Status: domain.CommitmentActive}
	if err := s.SaveCommitment(context.Background(), commitment); err != nil {
		t.Fatalf("SaveCommitment: %v", err)
	}
	if err := s.UpdateCommitmentStatus(context.Background(), orderID, "0xresolver", ts, domain.CommitmentFailed); err != nil {
		t.Fatalf("UpdateCommitmentStatus: %v", err)
	}
}

func TestPruneRemovesOnlyOldTerminalOrders(t *testing.T) {
	s := New()
	oldCompleted := testOrder(10)
	oldCompleted.Status = domain.StatusCompleted
	oldCompleted.UpdatedAt = time.Now().AddDate(0, 0, -40)

	recentCompleted := testOrder(11)
	recentCompleted.Status = domain.StatusCompleted
	recentCompleted.UpdatedAt = time.Now()

	stillActive := testOrder(12)
	stillActive.UpdatedAt = time.Now().AddDate(0, 0, -40)

	_ = s.Save(context.Background(), oldCompleted)
	_ = s.Save(context.Background(), recentCompleted)
	_ = s.Save(context.Background(), stillActive)

	pruned, err := s.Prune(context.Background(), 30)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned order, got %d", pruned)
	}
	if _, err := s.Get(context.Background(), oldCompleted.ID); err != domain.ErrNotFound {
		t.Fatal("expected old completed order to be pruned")
	}
	if _, err := s.Get(context.Background(), recentCompleted.ID); err != nil {
		t.Fatal("recent completed order should survive prune")
	}
}

func TestStatsCountsByStatus(t *testing.T) {
	s := New()
	a := testOrder(13)
	b := testOrder(14)
	b.Status = domain.StatusCompleted
	_ = s.Save(context.Background(), a)
	_ = s.Save(context.Background(), b)

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 {
		t.Fatalf("expected total 2, got %d", stats.Total)
	}
	if stats.ByStatus[domain.StatusActive] != 1 || stats.ByStatus[domain.StatusCompleted] != 1 {
		t.Fatalf("unexpected status breakdown: %+v", stats.ByStatus)
	}
}
