package ethgateway

import (
	"sync"
	"time"
)

// breaker trips after threshold consecutive failures against one chain and
// refuses calls until cooldown elapses, so a wedged RPC endpoint fails
// every caller fast instead of letting them queue behind the same timeout.
type breaker struct {
	mu          sync.Mutex
	failures    int
	threshold   int
	cooldown    time.Duration
	openedUntil time.Time
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &breaker{threshold: threshold, cooldown: cooldown}
}

func (b *breaker) Allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openedUntil.IsZero() {
		return true
	}
	if time.Now().After(b.openedUntil) {
		b.openedUntil = time.Time{}
		b.failures = 0
		return true
	}
	return false
}

func (b *breaker) RecordSuccess() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openedUntil = time.Time{}
}

func (b *breaker) RecordFailure() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openedUntil = time.Now().Add(b.cooldown)
	}
}
