package bus

import (
	"context"
	"fmt"

	libsbus "github.com/goex/swaprelayer/libs/bus"

	"github.com/goex/swaprelayer/internal/domain"
)

const (
	TopicOrderBroadcast  = "order-broadcast"
	TopicSecretBroadcast = "secret-broadcast"
)

// KafkaBus wraps libs/bus's sarama publisher with the envelope shape and
// deterministic event-id the at-least-once consumer contract requires:
// consumers are idempotent on (orderId, eventType), and the envelope's
// event_id is derived from exactly that pair.
type KafkaBus struct {
	publisher libsbus.Publisher
}

func NewKafkaBus(publisher libsbus.Publisher) *KafkaBus {
	return &KafkaBus{publisher: publisher}
}

type orderBroadcastMessage struct {
	libsbus.Envelope
	OrderData domain.OrderBroadcast `json:"order_data"`
}

type secretBroadcastMessage struct {
	libsbus.Envelope
	Data domain.SecretBroadcast `json:"data"`
}

func (b *KafkaBus) PublishOrder(ctx context.Context, broadcast domain.OrderBroadcast) error {
	eventID := libsbus.DeterministicEventID(broadcast.OrderID, "order_broadcast")
	envelope, err := libsbus.NewEnvelopeWithID(eventID, "order_broadcast", 1, broadcast.OrderID)
	if err != nil {
		return fmt.Errorf("build envelope: %w", err)
	}

	msg := orderBroadcastMessage{Envelope: envelope, OrderData: broadcast}
	_, _, err = b.publisher.PublishJSON(ctx, TopicOrderBroadcast, broadcast.OrderID, msg)
	return err
}

func (b *KafkaBus) PublishSecret(ctx context.Context, broadcast domain.SecretBroadcast) error {
	eventID := libsbus.DeterministicEventID(broadcast.OrderID, "secret_broadcast")
	envelope, err := libsbus.NewEnvelopeWithID(eventID, "secret_broadcast", 1, broadcast.OrderID)
	if err != nil {
		return fmt.Errorf("build envelope: %w", err)
	}

	msg := secretBroadcastMessage{Envelope: envelope, Data: broadcast}
	_, _, err = b.publisher.PublishJSON(ctx, TopicSecretBroadcast, broadcast.OrderID, msg)
	return err
}
