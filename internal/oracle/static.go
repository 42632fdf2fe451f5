package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"
)

// pairKey identifies a (srcChain, srcToken, dstChain, dstToken) quote.
func pairKey(srcChain uint64, srcToken string, dstChain uint64, dstToken string) string {
	return fmt.Sprintf("%d/%s-%d/%s", srcChain, srcToken, dstChain, dstToken)
}

// StaticCache holds operator-seeded reference prices, refreshed by calling
// Set (typically from a config file or an admin endpoint, never a live
// feed). It is the only Oracle implementation this repository ships;
// production price-feed integration is a deliberate non-goal.
type StaticCache struct {
	mu          sync.RWMutex
	prices      map[string]*big.Int
	lastUpdated time.Time
	logger      *slog.Logger
}

func NewStaticCache(logger *slog.Logger) *StaticCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticCache{prices: map[string]*big.Int{}, logger: logger}
}

func (c *StaticCache) Set(srcChain uint64, srcToken string, dstChain uint64, dstToken string, price *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[pairKey(srcChain, srcToken, dstChain, dstToken)] = new(big.Int).Set(price)
	c.lastUpdated = time.Now()
}

func (c *StaticCache) MarketPrice(ctx context.Context, srcChain uint64, srcToken string, dstChain uint64, dstToken string) (*big.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	price, ok := c.prices[pairKey(srcChain, srcToken, dstChain, dstToken)]
	if !ok {
		return nil, fmt.Errorf("no reference price configured for %s/%d -> %s/%d", srcToken, srcChain, dstToken, dstChain)
	}
	return new(big.Int).Set(price), nil
}

func (c *StaticCache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}
