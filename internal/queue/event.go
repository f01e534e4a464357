package queue

import (
	"fmt"
	"time"
)

// Event types carried on the outbox stream and the Kafka topic.
const (
	EventOrderCreated         = "order.created"
	EventOrderCancelled       = "order.cancelled"
	EventOrderStatusChanged   = "order.status_changed"
	EventOrderPaymentUpdated  = "order.payment_updated"
	EventServiceCreated       = "service.created"
	EventServiceStatusChanged = "service.status_changed"
	EventListingCreated       = "listing.created"
	EventListingModerated     = "listing.moderated"
)

// Event is a domain event. ID is a ULID and doubles as the dedupe key for
// consumers; Reference is the human number (order or ticket) shown to users.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Entity     string            `json:"entity"`
	EntityID   string            `json:"entity_id"`
	UserID     string            `json:"user_id"`
	Email      string            `json:"email,omitempty"`
	Reference  string            `json:"reference,omitempty"`
	Status     string            `json:"status,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Payload    map[string]string `json:"payload,omitempty"`
}

// Validate rejects events a consumer could not act on.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.Type == "" {
		return fmt.Errorf("type is required")
	}
	if e.Entity == "" || e.EntityID == "" {
		return fmt.Errorf("entity and entity_id are required")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	return nil
}

// Key partitions events so that all events of one entity stay ordered.
func (e Event) Key() string {
	return e.Entity + ":" + e.EntityID
}
