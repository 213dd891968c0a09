// Package sweep implements the grace-period auto-release loop: approved
// reservations that were never claimed are released once their grace period
// after the reserved start has run out, freeing the interval for walk-ins.
package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomspace/internal/metrics"
	"roomspace/internal/models"
	"roomspace/internal/notify"
	"roomspace/internal/timeutil"
)

// Store is the persistence surface the sweeper drives.
type Store interface {
	SweepCandidates(ctx context.Context, date timeutil.Date) ([]models.Reservation, error)
	GetBookingRule(ctx context.Context, roomID string) (models.BookingRule, error)
	AutoRelease(ctx context.Context, id string, at time.Time) (bool, error)
}

// Stats summarizes one sweep pass.
type Stats struct {
	Scanned  int `json:"scanned"`
	Released int `json:"released"`
}

// Sweeper periodically releases unclaimed reservations.
type Sweeper struct {
	store    Store
	notifier *notify.Dispatcher
	clock    *timeutil.Clock
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	trigger chan chan sweepReply
	stop    chan struct{}
	done    chan struct{}
	started bool
}

type sweepReply struct {
	stats Stats
	err   error
}

// NewSweeper creates a sweeper. notifier may be nil.
func NewSweeper(store Store, notifier *notify.Dispatcher, clock *timeutil.Clock, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		store:    store,
		notifier: notifier,
		clock:    clock,
		interval: interval,
		logger:   logger.With().Str("component", "sweep").Logger(),
		trigger:  make(chan chan sweepReply),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info().Dur("interval", s.interval).Msg("grace-period sweeper started")
	go s.loop(ctx)
}

// Stop shuts the loop down and waits for the in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	close(s.stop)
	<-s.done
	s.started = false
}

// RunNow executes one sweep pass immediately. When the loop is running the
// pass executes inside it, serialized with scheduled passes; otherwise it
// runs inline. Used by the cron endpoint and by tests.
func (s *Sweeper) RunNow(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		return s.sweep(ctx)
	}

	reply := make(chan sweepReply, 1)
	select {
	case s.trigger <- reply:
	case <-s.done:
		// The loop exited (its parent context was cancelled) without Stop
		// being called; run the pass inline instead of waiting forever.
		return s.sweep(ctx)
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.stats, r.err
	case <-s.done:
		// The loop accepted the trigger, so the buffered reply is on its
		// way even if the loop has since exited.
		r := <-reply
		return r.stats, r.err
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			if _, err := s.sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep pass failed")
			}
		case reply := <-s.trigger:
			stats, err := s.sweep(ctx)
			reply <- sweepReply{stats: stats, err: err}
		}
	}
}

// sweep releases every approved, unclaimed reservation for today whose grace
// period has expired. The guarded update makes overlapping passes converge:
// each reservation is released exactly once.
func (s *Sweeper) sweep(ctx context.Context) (Stats, error) {
	metrics.IncSweepRun()

	today := s.clock.Today()
	minute := s.clock.MinuteOfDay()

	candidates, err := s.store.SweepCandidates(ctx, today)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Scanned: len(candidates)}
	graceByRoom := make(map[string]int)

	for i := range candidates {
		res := &candidates[i]

		grace, ok := graceByRoom[res.RoomID]
		if !ok {
			rule, err := s.store.GetBookingRule(ctx, res.RoomID)
			if err != nil {
				s.logger.Error().Err(err).Str("room_id", res.RoomID).Msg("failed to load booking rule, skipping room")
				continue
			}
			grace = rule.GracePeriodMinutes
			graceByRoom[res.RoomID] = grace
		}

		if minute <= res.StartMinute+grace {
			continue
		}

		released, err := s.store.AutoRelease(ctx, res.ID, s.clock.Now())
		if err != nil {
			s.logger.Error().Err(err).Str("reservation_id", res.ID).Msg("failed to auto-release reservation")
			continue
		}
		if !released {
			// Claimed or released by someone else between the scan and now.
			continue
		}

		stats.Released++
		s.logger.Info().
			Str("reservation_id", res.ID).
			Str("room_id", res.RoomID).
			Str("start", timeutil.FormatClock(res.StartMinute)).
			Int("grace_minutes", grace).
			Msg("reservation auto-released")

		if s.notifier != nil {
			s.notifier.RoomReleased(res)
		}
	}

	metrics.AddSweepReleased(stats.Released)
	if stats.Released > 0 {
		s.logger.Info().Int("scanned", stats.Scanned).Int("released", stats.Released).Msg("sweep pass completed")
	} else {
		s.logger.Debug().Int("scanned", stats.Scanned).Msg("sweep pass completed")
	}
	return stats, nil
}
