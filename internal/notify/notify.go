// Package notify is the best-effort push channel for approval decision
// events. Delivery is at-least-once at best: events may be delayed,
// duplicated, or dropped, and consumers must never rely on the channel as the
// sole correctness mechanism (the coordinator's poll loop is the backstop).
package notify

import "context"

// Event is an approval decision pushed to the owning account's subscribers.
type Event struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// Subscription is a handle bound to a single account's event topic.
type Subscription interface {
	// Events delivers pushed events. The channel is closed on Unsubscribe.
	Events() <-chan Event
	// Unsubscribe releases the subscription. Idempotent; safe to call multiple times.
	Unsubscribe()
}

// Channel publishes and subscribes to per-account approval events.
type Channel interface {
	// Publish pushes an event to userID's subscribers. Best-effort: an error
	// means the push was not delivered, never that the decision is lost.
	Publish(ctx context.Context, userID string, ev Event) error
	// Subscribe opens a subscription scoped to exactly one account.
	Subscribe(userID string) (Subscription, error)
}
