// Package bus defines the Message Bus (C3): the at-least-once broadcast
// channel resolvers consume order and secret events from.
package bus

import (
	"context"

	"github.com/goex/swaprelayer/internal/domain"
)

// Bus publishes the two broadcast payloads every lifecycle transition that
// needs resolver attention emits. Payloads are JSON-serializable; the
// order broadcast excludes the signature and the secret broadcast is the
// only message ever carrying the preimage.
type Bus interface {
	PublishOrder(ctx context.Context, broadcast domain.OrderBroadcast) error
	PublishSecret(ctx context.Context, broadcast domain.SecretBroadcast) error
}
