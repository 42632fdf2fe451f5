package reaper

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/goex/swaprelayer/internal/domain"
	"github.com/goex/swaprelayer/internal/store/memstore"
)

type fakeController struct {
	expired            []([32]byte)
	commitmentLapsed   []([32]byte)
	competitionTimeout []([32]byte)
}

func (f *fakeController) OrderExpired(ctx context.Context, orderID [32]byte) error {
	f.expired = append(f.expired, orderID)
	return nil
}

func (f *fakeController) CommitmentLapsed(ctx context.Context, orderID [32]byte) error {
	f.commitmentLapsed = append(f.commitmentLapsed, orderID)
	return nil
}

func (f *fakeController) CompetitionTimeout(ctx context.Context, orderID [32]byte) error {
	f.competitionTimeout = append(f.competitionTimeout, orderID)
	return nil
}

func baseOrder(id byte, status domain.Status) domain.Order {
	now := time.Now()
	return domain.Order{
		ID:     [32]byte{id},
		Status: status,
		Intent: domain.Intent{
			SrcAmount:          big.NewInt(1),
			MinAcceptablePrice: big.NewInt(1),
		},
		Auction: domain.Auction{
			StartPrice: big.NewInt(1),
			EndPrice:   big.NewInt(1),
			Duration:   time.Minute,
			StartTime:  now,
		},
		MarketPrice: big.NewInt(1),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestScanEmitsOrderExpired(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	order := baseOrder(1, domain.StatusActive)
	order.ExpiresAt = time.Now().Add(-time.Minute)
	if err := st.Save(ctx, order); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ctrl := &fakeController{}
	r := New(st, ctrl, 30, nil)
	r.scan(ctx)

	if len(ctrl.expired) != 1 || ctrl.expired[0] != order.ID {
		t.Fatalf("expected OrderExpired for %x, got %v", order.ID, ctrl.expired)
	}
}

func TestScanEmitsCommitmentLapsed(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	order := baseOrder(2, domain.StatusCommitted)
	deadline := time.Now().Add(-time.Minute)
	order.CommitmentDeadline = &deadline
	order.ExpiresAt = time.Now().Add(time.Hour)
	if err := st.Save(ctx, order); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ctrl := &fakeController{}
	r := New(st, ctrl, 30, nil)
	r.scan(ctx)

	if len(ctrl.commitmentLapsed) != 1 || ctrl.commitmentLapsed[0] != order.ID {
		t.Fatalf("expected CommitmentLapsed for %x, got %v", order.ID, ctrl.commitmentLapsed)
	}
}

func TestScanEmitsCompetitionTimeout(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	order := baseOrder(3, domain.StatusCompeting)
	deadline := time.Now().Add(-time.Minute)
	order.CompetitionDeadline = &deadline
	order.ExpiresAt = time.Now().Add(time.Hour)
	if err := st.Save(ctx, order); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ctrl := &fakeController{}
	r := New(st, ctrl, 30, nil)
	r.scan(ctx)

	if len(ctrl.competitionTimeout) != 1 || ctrl.competitionTimeout[0] != order.ID {
		t.Fatalf("expected CompetitionTimeout for %x, got %v", order.ID, ctrl.competitionTimeout)
	}
}

func TestScanSkipsOrdersNotYetDue(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	order := baseOrder(4, domain.StatusActive)
	order.ExpiresAt = time.Now().Add(time.Hour)
	if err := st.Save(ctx, order); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ctrl := &fakeController{}
	r := New(st, ctrl, 30, nil)
	r.scan(ctx)

	if len(ctrl.expired) != 0 {
		t.Fatalf("expected no OrderExpired events, got %v", ctrl.expired)
	}
}

func TestPruneDeletesTerminalOrders(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	order := baseOrder(5, domain.StatusCompleted)
	order.ExpiresAt = time.Now()
	order.UpdatedAt = time.Now().Add(-40 * 24 * time.Hour)
	if err := st.Save(ctx, order); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ctrl := &fakeController{}
	r := New(st, ctrl, 30, nil)
	r.prune(ctx)

	if _, err := st.Get(ctx, order.ID); err == nil {
		t.Fatal("expected pruned order to be gone")
	}
}
