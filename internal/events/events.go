package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Cart lifecycle events.
const (
	Added    = "cart.added"
	Updated  = "cart.updated"
	Removed  = "cart.removed"
	Stored   = "cart.stored"
	Restored = "cart.restored"
	Merged   = "cart.merged"
)

// Dispatcher publishes cart lifecycle events to interested consumers.
type Dispatcher interface {
	Dispatch(ctx context.Context, event string, payload any) error
}

// Envelope is the wire shape of a published event.
type Envelope struct {
	ID      string    `json:"id"`
	Event   string    `json:"event"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// KafkaDispatcher publishes events to a kafka topic, keyed by event name so
// consumers can route on the key alone.
type KafkaDispatcher struct {
	writer *kafka.Writer
}

func NewKafkaDispatcher(writer *kafka.Writer) *KafkaDispatcher {
	return &KafkaDispatcher{writer: writer}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, event string, payload any) error {
	value, err := json.Marshal(Envelope{
		ID:      uuid.NewString(),
		Event:   event,
		At:      time.Now().UTC(),
		Payload: payload,
	})
	if err != nil {
		return err
	}

	return d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event),
		Value: value,
	})
}

// Nop discards every event. Useful when no broker is configured.
type Nop struct{}

func (Nop) Dispatch(context.Context, string, any) error { return nil }
