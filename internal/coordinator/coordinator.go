// Package coordinator implements the client side of the login approval
// protocol: given a pending approval request, it races a push subscription
// against a timed poll loop to learn the decision, bounded by a hard timeout.
//
// Polling alone guarantees eventual correctness even when the push channel is
// down or lossy; the push path only shortens the common-case latency. The
// first terminal signal observed wins and every later signal is discarded.
package coordinator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/MarkJaven/thodemy-sub002/internal/approval/domain"
	"github.com/MarkJaven/thodemy-sub002/internal/notify"
)

// ErrRateLimited is how a status fetcher signals a rate-limit response from
// the store. The poll loop treats it as "no new information" and keeps its
// cadence; it is never surfaced to the caller.
var ErrRateLimited = errors.New("status poll rate limited")

// StatusFetcher reads the current status of an approval request.
type StatusFetcher interface {
	Status(ctx context.Context, requestID string) (domain.Status, error)
}

// Coordinator waits for approval decisions. The notification channel is
// optional: a nil channel or a failed subscribe degrades to poll-only
// operation without affecting correctness.
type Coordinator struct {
	fetcher      StatusFetcher
	channel      notify.Channel
	timeout      time.Duration
	pollInterval time.Duration
}

// New returns a Coordinator with the given decision sources and timing.
// channel may be nil. Non-positive durations fall back to 60s / 2s.
func New(fetcher StatusFetcher, channel notify.Channel, timeout, pollInterval time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Coordinator{
		fetcher:      fetcher,
		channel:      channel,
		timeout:      timeout,
		pollInterval: pollInterval,
	}
}

// Await blocks until the request reaches a terminal status, the timeout
// fires, or ctx is cancelled. An empty requestID bypasses the protocol and
// returns approved immediately: there is nothing to approve against.
//
// Exactly one of the push watcher, the poll watcher, and the timeout settles
// the result; all watchers are torn down before Await returns, whichever won.
func (c *Coordinator) Await(ctx context.Context, userID, requestID string) (domain.Status, error) {
	if requestID == "" {
		return domain.StatusApproved, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Single-assignment result slot: the buffered channel holds the winning
	// status and the Once guarantees at most one writer ever succeeds.
	result := make(chan domain.Status, 1)
	var once sync.Once
	settle := func(st domain.Status) {
		once.Do(func() { result <- st })
	}

	if c.channel != nil {
		sub, err := c.channel.Subscribe(userID)
		if err != nil {
			log.Printf("coordinator: push subscribe failed, polling only: %v", err)
		} else {
			defer sub.Unsubscribe()
			go c.watchPush(ctx, sub, requestID, settle)
		}
	}

	go c.watchPoll(ctx, requestID, settle)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case st := <-result:
		return st, nil
	case <-timer.C:
		return domain.StatusTimeout, nil
	case <-ctx.Done():
		return domain.StatusUnknown, ctx.Err()
	}
}

// watchPush settles on the first event for this request carrying a terminal
// status. Duplicate or late events after settlement are drained by ctx
// cancellation, never re-processed.
func (c *Coordinator) watchPush(ctx context.Context, sub notify.Subscription, requestID string, settle func(domain.Status)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.RequestID != requestID {
				continue
			}
			st := domain.Status(ev.Status)
			if !st.Valid() {
				st = domain.StatusUnknown
			}
			if st.Terminal() {
				settle(st)
				return
			}
		}
	}
}

// watchPoll fetches the stored status every poll interval. Transient fetch
// errors and rate-limit signals are swallowed and retried on the next tick.
func (c *Coordinator) watchPoll(ctx context.Context, requestID string, settle func(domain.Status)) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, err := c.fetcher.Status(ctx, requestID)
			if err != nil {
				if !errors.Is(err, ErrRateLimited) && ctx.Err() == nil {
					log.Printf("coordinator: status poll failed, retrying: %v", err)
				}
				continue
			}
			if st.Terminal() {
				settle(st)
				return
			}
		}
	}
}
