package ethgateway

import (
	"context"
	"time"

	"github.com/goex/swaprelayer/internal/gateway"
)

// retryMax and retryBackoff mirror libs/bus's producer retry budget
// (Retry.Max=5, Retry.Backoff=250ms): bounded exponential back-off, applied
// here only to transient gateway errors.
const (
	retryMax     = 5
	retryBackoff = 250 * time.Millisecond
)

// withRetryFn retries fn on transient *gateway.Error with the same bounded
// exponential back-off budget internal/gateway documents for every adapter.
func withRetryFn(ctx context.Context, fn func() error) error {
	backoff := retryBackoff
	var lastErr error
	for attempt := 0; attempt <= retryMax; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransientErr(lastErr) {
			return lastErr
		}
		if attempt == retryMax {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

func isTransientErr(err error) bool {
	return gateway.IsKind(err, gateway.KindChainUnreachable) || gateway.IsKind(err, gateway.KindTimeout)
}
