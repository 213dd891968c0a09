// Package remind sends upcoming-reservation reminders. Each reservation gets
// at most one reminder per type, deduplicated through a persistent log.
package remind

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"roomspace/internal/models"
	"roomspace/internal/notify"
	"roomspace/internal/timeutil"
)

// Reminder types, keyed into the dedup log.
const (
	TypeDayBefore = "24h"
	TypeHourAhead = "1h"
)

// Store is the persistence surface the processor drives.
type Store interface {
	ReminderCandidates(ctx context.Context, from, to timeutil.Date) ([]models.Reservation, error)
	MarkReminderSent(ctx context.Context, reservationID, reminderType string) (bool, error)
}

// Processor periodically scans upcoming reservations and fires reminders.
type Processor struct {
	store    Store
	notifier *notify.Dispatcher
	clock    *timeutil.Clock
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewProcessor creates a reminder processor.
func NewProcessor(store Store, notifier *notify.Dispatcher, clock *timeutil.Clock, interval time.Duration, logger zerolog.Logger) *Processor {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Processor{
		store:    store,
		notifier: notifier,
		clock:    clock,
		interval: interval,
		logger:   logger.With().Str("component", "remind").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the reminder loop.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.logger.Info().Dur("interval", p.interval).Msg("reminder processor started")

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			case <-ticker.C:
				if sent, err := p.RunNow(ctx); err != nil {
					p.logger.Error().Err(err).Msg("reminder pass failed")
				} else if sent > 0 {
					p.logger.Info().Int("sent", sent).Msg("reminder pass completed")
				}
			}
		}
	}()
}

// Stop shuts the loop down.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	close(p.stop)
	<-p.done
	p.started = false
}

// RunNow executes one reminder pass and returns how many reminders went out.
// Safe to call concurrently with the loop: the dedup log keeps each reminder
// to one send.
func (p *Processor) RunNow(ctx context.Context) (int, error) {
	today := p.clock.Today()
	candidates, err := p.store.ReminderCandidates(ctx, today, today.AddDays(1))
	if err != nil {
		return 0, err
	}

	now := p.clock.Now()
	sent := 0

	for i := range candidates {
		res := &candidates[i]
		startsAt := res.Date.Time(res.StartMinute, p.clock.Location())
		untilStart := startsAt.Sub(now)
		if untilStart <= 0 {
			continue
		}

		kind := ""
		switch {
		case untilStart <= time.Hour:
			kind = TypeHourAhead
		case untilStart <= 24*time.Hour:
			kind = TypeDayBefore
		default:
			continue
		}

		first, err := p.store.MarkReminderSent(ctx, res.ID, kind)
		if err != nil {
			p.logger.Error().Err(err).Str("reservation_id", res.ID).Msg("failed to log reminder")
			continue
		}
		if !first {
			continue
		}

		if p.notifier != nil {
			p.notifier.ReservationReminder(res, kind)
		}
		sent++
		p.logger.Debug().
			Str("reservation_id", res.ID).
			Str("type", kind).
			Msg("reminder dispatched")
	}
	return sent, nil
}
