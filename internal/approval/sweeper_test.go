package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockExpirer records ExpireStale calls.
type mockExpirer struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (m *mockExpirer) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	if m.err != nil {
		return 0, m.err
	}
	return 1, nil
}

func (m *mockExpirer) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cutoffs)
}

func TestSweeper_UsesRetentionCutoff(t *testing.T) {
	repo := &mockExpirer{}
	s := NewSweeper(repo, 10*time.Minute, time.Minute)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.nowF = func() time.Time { return now }

	s.sweep(context.Background())

	if repo.calls() != 1 {
		t.Fatalf("ExpireStale calls = %d, want 1", repo.calls())
	}
	want := now.Add(-10 * time.Minute)
	if got := repo.cutoffs[0]; !got.Equal(want) {
		t.Errorf("cutoff = %v, want %v", got, want)
	}
}

func TestSweeper_RunSweepsPeriodicallyAndStops(t *testing.T) {
	repo := &mockExpirer{}
	s := NewSweeper(repo, time.Minute, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}

	if repo.calls() < 2 {
		t.Errorf("ExpireStale calls = %d, want at least 2", repo.calls())
	}
	after := repo.calls()
	time.Sleep(50 * time.Millisecond)
	if repo.calls() != after {
		t.Error("sweeper still running after cancellation")
	}
}

func TestSweeper_ErrorsDoNotStopLoop(t *testing.T) {
	repo := &mockExpirer{err: errors.New("store down")}
	s := NewSweeper(repo, time.Minute, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if repo.calls() < 2 {
		t.Errorf("ExpireStale calls = %d, want retries despite errors", repo.calls())
	}
}
