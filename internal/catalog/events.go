package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-storefront/internal/platform/broker"
)

// Change event types.
const (
	EventProductCreated  = "product.created"
	EventProductUpdated  = "product.updated"
	EventProductDeleted  = "product.deleted"
	EventCategoryCreated = "category.created"
	EventCategoryUpdated = "category.updated"
	EventCategoryDeleted = "category.deleted"
)

// ChangeEvent announces an admin mutation of the catalog.
type ChangeEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EntityID   string    `json:"entityId"`
	Product    *Product  `json:"product,omitempty"`
	Category   *Category `json:"category,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func newChangeEvent(kind, entityID string, at time.Time) ChangeEvent {
	return ChangeEvent{ID: uuid.NewString(), Type: kind, EntityID: entityID, OccurredAt: at.UTC()}
}

// EventPublisher delivers change events to downstream consumers.
type EventPublisher interface {
	PublishChange(ctx context.Context, evt ChangeEvent) error
}

type messagePublisher interface {
	Publish(ctx context.Context, msgs ...broker.Message) error
}

// BrokerEvents publishes change events through the Kafka producer, keyed by
// entity so per-entity ordering holds.
type BrokerEvents struct {
	producer messagePublisher
}

// NewBrokerEvents adapts a broker producer.
func NewBrokerEvents(producer messagePublisher) *BrokerEvents {
	return &BrokerEvents{producer: producer}
}

// PublishChange implements EventPublisher.
func (b *BrokerEvents) PublishChange(ctx context.Context, evt ChangeEvent) error {
	if b == nil || b.producer == nil {
		return nil
	}
	return b.producer.Publish(ctx, broker.Message{Key: evt.EntityID, Value: evt})
}
