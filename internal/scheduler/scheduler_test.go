package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/proxybid/auctionengine/internal/domain"
)

// fakeLifecycle is an in-memory stand-in for LifecycleService, sufficient to
// exercise Scheduler's tick logic without the full service stack.
type fakeLifecycle struct {
	mu        sync.Mutex
	auctions  map[string]domain.Auction
	started   []string
	ended     []string
	endingSoon []string
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{auctions: make(map[string]domain.Auction)}
}

func (f *fakeLifecycle) add(a domain.Auction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auctions[a.ID] = a
}

func (f *fakeLifecycle) ListByStatus(ctx context.Context, status domain.AuctionStatus) ([]domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Auction
	for _, a := range f.auctions {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeLifecycle) StartAuction(ctx context.Context, id string) (domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.auctions[id]
	a.Status = domain.AuctionStatusActive
	f.auctions[id] = a
	f.started = append(f.started, id)
	return a, nil
}

func (f *fakeLifecycle) EndAuction(ctx context.Context, id string) (domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.auctions[id]
	a.Status = domain.AuctionStatusUnsold
	f.auctions[id] = a
	f.ended = append(f.ended, id)
	return a, nil
}

func (f *fakeLifecycle) EmitEndingSoon(ctx context.Context, auctionID string, secondsRemaining int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endingSoon = append(f.endingSoon, auctionID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTickAutoStartsDuePendingAuction(t *testing.T) {
	ctx := context.Background()
	fl := newFakeLifecycle()
	now := time.Now()
	fl.add(domain.Auction{ID: "a1", Status: domain.AuctionStatusPending, StartTime: now.Add(-time.Minute), HasTimeLimit: true, EndTime: now.Add(time.Hour)})

	s := New(fl, nil, testLogger(), time.Second, time.Minute)
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if len(fl.started) != 1 || fl.started[0] != "a1" {
		t.Errorf("started = %v, want [a1]", fl.started)
	}
	if s.StatsSnapshot().Started != 1 {
		t.Errorf("Stats.Started = %d, want 1", s.StatsSnapshot().Started)
	}
}

func TestTickDoesNotStartFuturePendingAuction(t *testing.T) {
	ctx := context.Background()
	fl := newFakeLifecycle()
	now := time.Now()
	fl.add(domain.Auction{ID: "a1", Status: domain.AuctionStatusPending, StartTime: now.Add(time.Hour)})

	s := New(fl, nil, testLogger(), time.Second, time.Minute)
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(fl.started) != 0 {
		t.Errorf("expected no auctions started, got %v", fl.started)
	}
}

func TestTickAutoEndsExpiredActiveAuction(t *testing.T) {
	ctx := context.Background()
	fl := newFakeLifecycle()
	now := time.Now()
	fl.add(domain.Auction{ID: "a1", Status: domain.AuctionStatusActive, HasTimeLimit: true, EndTime: now.Add(-time.Second)})

	s := New(fl, nil, testLogger(), time.Second, time.Minute)
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(fl.ended) != 1 || fl.ended[0] != "a1" {
		t.Errorf("ended = %v, want [a1]", fl.ended)
	}
}

func TestTickEmitsEndingSoonWithinThreshold(t *testing.T) {
	ctx := context.Background()
	fl := newFakeLifecycle()
	now := time.Now()
	fl.add(domain.Auction{ID: "a1", Status: domain.AuctionStatusActive, HasTimeLimit: true, EndTime: now.Add(120 * time.Second)})

	s := New(fl, nil, testLogger(), time.Second, time.Minute)
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(fl.endingSoon) != 1 {
		t.Errorf("endingSoon = %v, want exactly one emission", fl.endingSoon)
	}
}

func TestTickEndingSoonThrottledWithin30Seconds(t *testing.T) {
	ctx := context.Background()
	fl := newFakeLifecycle()
	now := time.Now()
	fl.add(domain.Auction{ID: "a1", Status: domain.AuctionStatusActive, HasTimeLimit: true, EndTime: now.Add(120 * time.Second)})

	s := New(fl, nil, testLogger(), time.Second, time.Minute)
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if len(fl.endingSoon) != 1 {
		t.Errorf("endingSoon = %v, want still exactly one emission (throttled)", fl.endingSoon)
	}
}

func TestTickSkipsEndingSoonOutsideThreshold(t *testing.T) {
	ctx := context.Background()
	fl := newFakeLifecycle()
	now := time.Now()
	fl.add(domain.Auction{ID: "a1", Status: domain.AuctionStatusActive, HasTimeLimit: true, EndTime: now.Add(time.Hour)})

	s := New(fl, nil, testLogger(), time.Second, time.Minute)
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(fl.endingSoon) != 0 {
		t.Errorf("endingSoon = %v, want none (far from end time)", fl.endingSoon)
	}
}

func TestFailSafeForcesCloseOnceGracePeriodElapsed(t *testing.T) {
	fl := newFakeLifecycle()
	now := time.Now()
	fl.add(domain.Auction{ID: "a1", Status: domain.AuctionStatusActive, HasTimeLimit: true, EndTime: now.Add(-2 * time.Minute)})

	s := New(fl, nil, testLogger(), time.Second, time.Minute)
	if err := s.sweepOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(fl.ended) != 1 {
		t.Errorf("ended = %v, want [a1] forced by fail-safe", fl.ended)
	}
	if s.StatsSnapshot().FailSafeForced != 1 {
		t.Errorf("Stats.FailSafeForced = %d, want 1", s.StatsSnapshot().FailSafeForced)
	}
}

func TestFailSafeLeavesAuctionWithinGracePeriod(t *testing.T) {
	fl := newFakeLifecycle()
	now := time.Now()
	fl.add(domain.Auction{ID: "a1", Status: domain.AuctionStatusActive, HasTimeLimit: true, EndTime: now.Add(-10 * time.Second)})

	s := New(fl, nil, testLogger(), time.Second, time.Minute)
	if err := s.sweepOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(fl.ended) != 0 {
		t.Errorf("expected no force-close within grace period, got %v", fl.ended)
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	fl := newFakeLifecycle()
	s := New(fl, nil, testLogger(), 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	if err == nil {
		t.Fatal("expected Run to return an error on context cancellation")
	}
}
