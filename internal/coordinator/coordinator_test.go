package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MarkJaven/thodemy-sub002/internal/approval/domain"
	"github.com/MarkJaven/thodemy-sub002/internal/notify"
)

// mockFetcher implements StatusFetcher with a scripted sequence of results.
type mockFetcher struct {
	mu       sync.Mutex
	statuses []domain.Status
	errs     []error
	calls    int
}

func (m *mockFetcher) Status(ctx context.Context, requestID string) (domain.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i >= len(m.statuses) {
		if len(m.statuses) == 0 {
			return domain.StatusPending, nil
		}
		return m.statuses[len(m.statuses)-1], nil
	}
	return m.statuses[i], nil
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// failingChannel always fails Subscribe, forcing poll-only operation.
type failingChannel struct{}

func (failingChannel) Publish(ctx context.Context, userID string, ev notify.Event) error {
	return nil
}

func (failingChannel) Subscribe(userID string) (notify.Subscription, error) {
	return nil, errors.New("broker unreachable")
}

// countingChannel wraps a MemoryChannel and records unsubscribes.
type countingChannel struct {
	*notify.MemoryChannel
	unsubscribed atomic.Int32
}

func (c *countingChannel) Subscribe(userID string) (notify.Subscription, error) {
	sub, err := c.MemoryChannel.Subscribe(userID)
	if err != nil {
		return nil, err
	}
	return &countingSubscription{Subscription: sub, counter: &c.unsubscribed}, nil
}

type countingSubscription struct {
	notify.Subscription
	counter *atomic.Int32
	once    sync.Once
}

func (s *countingSubscription) Unsubscribe() {
	s.once.Do(func() { s.counter.Add(1) })
	s.Subscription.Unsubscribe()
}

func TestAwait_EmptyRequestIDBypasses(t *testing.T) {
	c := New(&mockFetcher{}, nil, time.Second, time.Millisecond)
	st, err := c.Await(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if st != domain.StatusApproved {
		t.Errorf("status = %q, want approved (nothing to approve against)", st)
	}
}

func TestAwait_PollObservesDecision(t *testing.T) {
	fetcher := &mockFetcher{statuses: []domain.Status{domain.StatusPending, domain.StatusApproved}}
	c := New(fetcher, nil, time.Second, 10*time.Millisecond)

	start := time.Now()
	st, err := c.Await(context.Background(), "u1", "r1")
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if st != domain.StatusApproved {
		t.Errorf("status = %q, want approved", st)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("poll path took %v, should resolve within a few intervals", elapsed)
	}
}

func TestAwait_PollObservesDenial(t *testing.T) {
	fetcher := &mockFetcher{statuses: []domain.Status{domain.StatusDenied}}
	c := New(fetcher, nil, time.Second, 10*time.Millisecond)

	st, err := c.Await(context.Background(), "u1", "r1")
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if st != domain.StatusDenied {
		t.Errorf("status = %q, want denied", st)
	}
}

func TestAwait_PushBeatsPendingPoll(t *testing.T) {
	// Poll always reports pending; only the push channel carries the decision.
	fetcher := &mockFetcher{statuses: []domain.Status{domain.StatusPending}}
	channel := notify.NewMemoryChannel()
	c := New(fetcher, channel, 2*time.Second, 50*time.Millisecond)

	done := make(chan struct{})
	var st domain.Status
	var err error
	go func() {
		defer close(done)
		st, err = c.Await(context.Background(), "u1", "r1")
	}()

	// Give Await time to subscribe, then push the decision.
	time.Sleep(20 * time.Millisecond)
	_ = channel.Publish(context.Background(), "u1", notify.Event{RequestID: "r1", Status: "approved"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Await did not return after push event")
	}
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if st != domain.StatusApproved {
		t.Errorf("status = %q, want approved (push must win over a pending poll)", st)
	}
}

func TestAwait_PushIgnoresOtherRequestsAndNonTerminal(t *testing.T) {
	fetcher := &mockFetcher{statuses: []domain.Status{domain.StatusPending}}
	channel := notify.NewMemoryChannel()
	c := New(fetcher, channel, 300*time.Millisecond, 50*time.Millisecond)

	done := make(chan domain.Status, 1)
	go func() {
		st, _ := c.Await(context.Background(), "u1", "r1")
		done <- st
	}()

	time.Sleep(20 * time.Millisecond)
	// Wrong request id and a non-terminal status for ours: neither may settle.
	_ = channel.Publish(context.Background(), "u1", notify.Event{RequestID: "r2", Status: "approved"})
	_ = channel.Publish(context.Background(), "u1", notify.Event{RequestID: "r1", Status: "pending"})

	st := <-done
	if st != domain.StatusTimeout {
		t.Errorf("status = %q, want timeout (stray events must not resolve)", st)
	}
}

func TestAwait_TimesOutWhenNoDecision(t *testing.T) {
	fetcher := &mockFetcher{} // always pending
	timeout := 200 * time.Millisecond
	c := New(fetcher, notify.NewMemoryChannel(), timeout, 20*time.Millisecond)

	start := time.Now()
	st, err := c.Await(context.Background(), "u1", "r1")
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if st != domain.StatusTimeout {
		t.Errorf("status = %q, want timeout", st)
	}
	if elapsed < timeout {
		t.Errorf("returned after %v, before the %v timeout", elapsed, timeout)
	}
	if elapsed > timeout+300*time.Millisecond {
		t.Errorf("returned after %v, far beyond the %v timeout", elapsed, timeout)
	}
}

func TestAwait_SubscribeFailureDegradesToPolling(t *testing.T) {
	fetcher := &mockFetcher{statuses: []domain.Status{domain.StatusPending, domain.StatusApproved}}
	c := New(fetcher, failingChannel{}, time.Second, 10*time.Millisecond)

	st, err := c.Await(context.Background(), "u1", "r1")
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if st != domain.StatusApproved {
		t.Errorf("status = %q, want approved via polling alone", st)
	}
}

func TestAwait_TransientPollErrorsRetried(t *testing.T) {
	fetcher := &mockFetcher{
		errs:     []error{errors.New("store hiccup"), ErrRateLimited, nil},
		statuses: []domain.Status{"", "", domain.StatusApproved},
	}
	c := New(fetcher, nil, time.Second, 10*time.Millisecond)

	st, err := c.Await(context.Background(), "u1", "r1")
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if st != domain.StatusApproved {
		t.Errorf("status = %q, want approved after retried errors", st)
	}
}

func TestAwait_WatchersTornDownAfterResolution(t *testing.T) {
	fetcher := &mockFetcher{statuses: []domain.Status{domain.StatusApproved}}
	channel := &countingChannel{MemoryChannel: notify.NewMemoryChannel()}
	c := New(fetcher, channel, time.Second, 10*time.Millisecond)

	if _, err := c.Await(context.Background(), "u1", "r1"); err != nil {
		t.Fatalf("Await: %v", err)
	}

	if got := channel.unsubscribed.Load(); got != 1 {
		t.Errorf("unsubscribe count = %d, want 1", got)
	}

	// The poll goroutine must stop once the caller has moved on.
	calls := fetcher.callCount()
	time.Sleep(100 * time.Millisecond)
	if after := fetcher.callCount(); after != calls {
		t.Errorf("poll loop still running after resolution: %d calls then %d", calls, after)
	}
}

func TestAwait_DuplicatePushEventsIgnored(t *testing.T) {
	fetcher := &mockFetcher{statuses: []domain.Status{domain.StatusPending}}
	channel := notify.NewMemoryChannel()
	c := New(fetcher, channel, 2*time.Second, 50*time.Millisecond)

	done := make(chan domain.Status, 1)
	go func() {
		st, _ := c.Await(context.Background(), "u1", "r1")
		done <- st
	}()

	time.Sleep(20 * time.Millisecond)
	// Contradictory duplicates: only the first observed decision counts.
	_ = channel.Publish(context.Background(), "u1", notify.Event{RequestID: "r1", Status: "denied"})
	_ = channel.Publish(context.Background(), "u1", notify.Event{RequestID: "r1", Status: "approved"})
	_ = channel.Publish(context.Background(), "u1", notify.Event{RequestID: "r1", Status: "denied"})

	st := <-done
	if st != domain.StatusDenied {
		t.Errorf("status = %q, want denied (first terminal signal wins)", st)
	}
}

func TestAwait_ContextCancellation(t *testing.T) {
	fetcher := &mockFetcher{} // always pending
	c := New(fetcher, nil, 10*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	st, err := c.Await(ctx, "u1", "r1")
	if err == nil {
		t.Fatal("Await should surface context cancellation")
	}
	if st != domain.StatusUnknown {
		t.Errorf("status = %q, want unknown on cancellation", st)
	}
}
