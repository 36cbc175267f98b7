package notify

import (
	"context"
	"sync"
)

// subscriberBuffer bounds each subscriber's queue; a full queue drops the
// event rather than blocking the publisher (delivery is best-effort).
const subscriberBuffer = 8

// MemoryChannel is an in-process Channel for single-instance deployments and
// tests. Events fan out to all live subscriptions for the user.
type MemoryChannel struct {
	mu   sync.RWMutex
	subs map[string]map[*memorySubscription]struct{}
}

// NewMemoryChannel returns an empty in-process channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{subs: make(map[string]map[*memorySubscription]struct{})}
}

// Publish fans the event out to userID's subscribers without blocking.
func (c *MemoryChannel) Publish(ctx context.Context, userID string, ev Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for sub := range c.subs[userID] {
		select {
		case sub.ch <- ev:
		default:
			// Slow subscriber; drop. The poll loop covers the gap.
		}
	}
	return nil
}

// Subscribe opens a subscription for userID's events.
func (c *MemoryChannel) Subscribe(userID string) (Subscription, error) {
	sub := &memorySubscription{
		parent: c,
		userID: userID,
		ch:     make(chan Event, subscriberBuffer),
	}
	c.mu.Lock()
	set, ok := c.subs[userID]
	if !ok {
		set = make(map[*memorySubscription]struct{})
		c.subs[userID] = set
	}
	set[sub] = struct{}{}
	c.mu.Unlock()
	return sub, nil
}

// SubscriberCount returns the number of live subscriptions for userID.
func (c *MemoryChannel) SubscriberCount(userID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs[userID])
}

type memorySubscription struct {
	parent *MemoryChannel
	userID string
	ch     chan Event
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan Event { return s.ch }

// Unsubscribe detaches from the hub and closes the event channel exactly once.
func (s *memorySubscription) Unsubscribe() {
	s.once.Do(func() {
		s.parent.mu.Lock()
		if set, ok := s.parent.subs[s.userID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.parent.subs, s.userID)
			}
		}
		s.parent.mu.Unlock()
		close(s.ch)
	})
}
