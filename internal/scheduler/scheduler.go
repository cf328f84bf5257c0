// Package scheduler drives auction lifecycle transitions on a cooperative
// timer: auto-starting PENDING auctions whose start time has arrived,
// auto-ending ACTIVE auctions past their end time, and emitting throttled
// ending-soon warnings. A separate fail-safe sweep forces closed any ACTIVE
// auction the regular tick missed by more than a grace period.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/proxybid/auctionengine/internal/domain"
	"github.com/proxybid/auctionengine/internal/notify"
)

// endingSoonThreshold is the window before an auction's end time in which
// AUCTION_ENDING_SOON is eligible to fire.
const endingSoonThreshold = 300 * time.Second

// endingSoonThrottle bounds how often the same auction may re-emit
// AUCTION_ENDING_SOON.
const endingSoonThrottle = 30 * time.Second

// lifecycle is the subset of LifecycleService the scheduler drives.
type lifecycle interface {
	ListByStatus(ctx context.Context, status domain.AuctionStatus) ([]domain.Auction, error)
	StartAuction(ctx context.Context, id string) (domain.Auction, error)
	EndAuction(ctx context.Context, id string) (domain.Auction, error)
	EmitEndingSoon(ctx context.Context, auctionID string, secondsRemaining int64)
}

// Stats are the cumulative counters the scheduler exposes, per specification
// §4.8 ("track statistics").
type Stats struct {
	Ticks            int64
	Started          int64
	Ended            int64
	EndingSoon       int64
	FailSafeForced   int64
	LastTickAt       time.Time
	StartedAt        time.Time
}

// Scheduler ticks on a fixed interval, fanning per-auction start/end/
// ending-soon checks out with a bounded errgroup, mirroring the teacher's
// ticker-driven RunLoop plus errgroup fan-out shape.
type Scheduler struct {
	lifecycle   lifecycle
	notifier    *notify.Notifier
	logger      *slog.Logger
	interval    time.Duration
	gracePeriod time.Duration
	fanOutLimit int

	inTick int32 // 0 or 1, guards against overlapping ticks (atomic)

	mu             sync.Mutex
	stats          Stats
	lastEndingSoon map[string]time.Time
}

// New builds a Scheduler. interval is the tick period (default 5s in
// production config); gracePeriod bounds the fail-safe sweep (default 60s).
func New(lc lifecycle, notifier *notify.Notifier, logger *slog.Logger, interval, gracePeriod time.Duration) *Scheduler {
	return &Scheduler{
		lifecycle:      lc,
		notifier:       notifier,
		logger:         logger.With(slog.String("component", "scheduler")),
		interval:       interval,
		gracePeriod:    gracePeriod,
		fanOutLimit:    8,
		lastEndingSoon: make(map[string]time.Time),
	}
}

// Run ticks Tick on the configured interval until ctx is cancelled. A tick
// that is still running when the next interval fires is skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.stats.StartedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	defer s.logger.Info("scheduler stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !atomic.CompareAndSwapInt32(&s.inTick, 0, 1) {
				s.logger.Warn("tick skipped: previous tick still running")
				continue
			}
			func() {
				defer atomic.StoreInt32(&s.inTick, 0)
				if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("scheduler tick failed", slog.String("error", err.Error()))
				}
			}()
		}
	}
}

// Tick runs one pass: auto-start due PENDING auctions, auto-end expired
// ACTIVE auctions, and emit throttled ending-soon warnings for the rest.
// Per-auction failures are logged and do not abort the tick.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()
	s.mu.Lock()
	s.stats.Ticks++
	s.stats.LastTickAt = now
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOutLimit)

	pending, err := s.lifecycle.ListByStatus(ctx, domain.AuctionStatusPending)
	if err != nil {
		return fmt.Errorf("scheduler: list pending auctions: %w", err)
	}
	for _, a := range pending {
		a := a
		if now.Before(a.StartTime) {
			continue
		}
		g.Go(func() error {
			s.startDue(gctx, a)
			return nil
		})
	}

	active, err := s.lifecycle.ListByStatus(ctx, domain.AuctionStatusActive)
	if err != nil {
		return fmt.Errorf("scheduler: list active auctions: %w", err)
	}
	for _, a := range active {
		a := a
		g.Go(func() error {
			s.checkActive(gctx, a, now)
			return nil
		})
	}

	return g.Wait()
}

func (s *Scheduler) startDue(ctx context.Context, a domain.Auction) {
	if _, err := s.lifecycle.StartAuction(ctx, a.ID); err != nil {
		s.logger.Warn("auto-start failed", slog.String("auction_id", a.ID), slog.String("error", err.Error()))
		return
	}
	s.mu.Lock()
	s.stats.Started++
	s.mu.Unlock()
	s.notify(ctx, "auction_started", "Auction started", a.Title+" ("+a.ID+") is now live")
}

func (s *Scheduler) checkActive(ctx context.Context, a domain.Auction, now time.Time) {
	if a.HasTimeLimit && !now.Before(a.EndTime) {
		ended, err := s.lifecycle.EndAuction(ctx, a.ID)
		if err != nil {
			s.logger.Warn("auto-end failed", slog.String("auction_id", a.ID), slog.String("error", err.Error()))
			return
		}
		s.mu.Lock()
		s.stats.Ended++
		s.mu.Unlock()
		s.notify(ctx, "auction_ended", "Auction ended", fmt.Sprintf("%s (%s) ended as %s", a.Title, a.ID, ended.Status))
		return
	}

	if !a.HasTimeLimit {
		return
	}
	remaining := a.EndTime.Sub(now)
	if remaining <= 0 || remaining > endingSoonThreshold {
		return
	}

	s.mu.Lock()
	last, fired := s.lastEndingSoon[a.ID]
	throttled := fired && now.Sub(last) < endingSoonThrottle
	if !throttled {
		s.lastEndingSoon[a.ID] = now
		s.stats.EndingSoon++
	}
	s.mu.Unlock()
	if throttled {
		return
	}

	s.lifecycle.EmitEndingSoon(ctx, a.ID, int64(remaining.Seconds()))
}

// RunFailSafe runs independently of Tick (intended for a slower, separately
// schedulable loop): it forces closed any ACTIVE auction whose end time plus
// gracePeriod has already elapsed, covering scheduler pauses per
// specification §4.8.
func (s *Scheduler) RunFailSafe(ctx context.Context, interval time.Duration) error {
	s.logger.Info("fail-safe sweep started", slog.Duration("interval", interval), slog.Duration("grace_period", s.gracePeriod))
	defer s.logger.Info("fail-safe sweep stopped")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("fail-safe sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Scheduler) sweepOnce(ctx context.Context) error {
	now := time.Now()
	active, err := s.lifecycle.ListByStatus(ctx, domain.AuctionStatusActive)
	if err != nil {
		return fmt.Errorf("fail-safe: list active auctions: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOutLimit)

	for _, a := range active {
		a := a
		if !a.HasTimeLimit || now.Sub(a.EndTime) <= s.gracePeriod {
			continue
		}
		g.Go(func() error {
			ended, err := s.lifecycle.EndAuction(gctx, a.ID)
			if err != nil {
				s.logger.Error("fail-safe force-end failed", slog.String("auction_id", a.ID), slog.String("error", err.Error()))
				return nil
			}
			s.mu.Lock()
			s.stats.FailSafeForced++
			s.mu.Unlock()
			s.notify(gctx, "fail_safe", "Fail-safe force-close", fmt.Sprintf("%s (%s) force-closed as %s after exceeding the grace period", a.Title, a.ID, ended.Status))
			return nil
		})
	}

	return g.Wait()
}

func (s *Scheduler) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.Warn("notifier dispatch failed", slog.String("error", err.Error()))
	}
}

// StatsSnapshot returns a copy of the scheduler's cumulative counters.
func (s *Scheduler) StatsSnapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
