package bus

import (
	"context"
	"sync"

	"github.com/goex/swaprelayer/internal/domain"
)

// MemBus is an in-memory Bus double for lifecycle controller tests. It is
// not part of the production contract.
type MemBus struct {
	mu             sync.Mutex
	OrderMessages  []domain.OrderBroadcast
	SecretMessages []domain.SecretBroadcast
	PublishErr     error
}

func NewMemBus() *MemBus {
	return &MemBus{}
}

func (b *MemBus) PublishOrder(ctx context.Context, broadcast domain.OrderBroadcast) error {
	if b.PublishErr != nil {
		return b.PublishErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.OrderMessages = append(b.OrderMessages, broadcast)
	return nil
}

func (b *MemBus) PublishSecret(ctx context.Context, broadcast domain.SecretBroadcast) error {
	if b.PublishErr != nil {
		return b.PublishErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.SecretMessages = append(b.SecretMessages, broadcast)
	return nil
}
