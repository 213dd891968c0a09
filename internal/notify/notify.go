// Package notify dispatches reservation notifications. Dispatch is
// fire-and-forget: failures are logged and counted, never returned to the
// operation that triggered them.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"roomspace/internal/metrics"
	"roomspace/internal/models"
	"roomspace/internal/timeutil"
)

// Event names a notification kind.
type Event string

const (
	EventConfirmed Event = "confirmed"
	EventApproved  Event = "approved"
	EventDeclined  Event = "declined"
	EventReleased  Event = "released"
	EventReminder  Event = "reminder"
)

// Sender delivers a single notification message. Implementations may block;
// the dispatcher throttles and isolates them.
type Sender interface {
	Send(ctx context.Context, event Event, res *models.Reservation, text string) error
}

// Dispatcher fans reservation events out to a sender with rate limiting.
type Dispatcher struct {
	sender  Sender
	limiter *rate.Limiter
	logger  zerolog.Logger
	timeout time.Duration
}

// NewDispatcher creates a dispatcher around sender. Sends are throttled to
// perSecond messages with a small burst, matching the transport's limits.
func NewDispatcher(sender Sender, perSecond float64, logger zerolog.Logger) *Dispatcher {
	if perSecond <= 0 {
		perSecond = 20
	}
	return &Dispatcher{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 30),
		logger:  logger.With().Str("component", "notify").Logger(),
		timeout: 30 * time.Second,
	}
}

// ReservationConfirmed announces a newly created reservation.
func (d *Dispatcher) ReservationConfirmed(res *models.Reservation) {
	d.dispatch(EventConfirmed, res, fmt.Sprintf(
		"Reservation received for room %s on %s, %s-%s.",
		res.RoomID, res.Date, timeutil.FormatClock(res.StartMinute), timeutil.FormatClock(res.EndMinute)))
}

// ReservationApproved announces an approval decision.
func (d *Dispatcher) ReservationApproved(res *models.Reservation) {
	d.dispatch(EventApproved, res, fmt.Sprintf(
		"Reservation approved: room %s on %s, %s-%s.",
		res.RoomID, res.Date, timeutil.FormatClock(res.StartMinute), timeutil.FormatClock(res.EndMinute)))
}

// ReservationDeclined announces a decline decision.
func (d *Dispatcher) ReservationDeclined(res *models.Reservation) {
	d.dispatch(EventDeclined, res, fmt.Sprintf(
		"Reservation declined: room %s on %s, %s-%s.",
		res.RoomID, res.Date, timeutil.FormatClock(res.StartMinute), timeutil.FormatClock(res.EndMinute)))
}

// RoomReleased announces that the grace sweep freed a reservation.
func (d *Dispatcher) RoomReleased(res *models.Reservation) {
	d.dispatch(EventReleased, res, fmt.Sprintf(
		"Reservation released: room %s, %s-%s was not claimed within the grace period.",
		res.RoomID, timeutil.FormatClock(res.StartMinute), timeutil.FormatClock(res.EndMinute)))
}

// ReservationReminder announces an upcoming reservation.
func (d *Dispatcher) ReservationReminder(res *models.Reservation, kind string) {
	d.dispatch(EventReminder, res, fmt.Sprintf(
		"Reminder (%s): room %s on %s at %s.",
		kind, res.RoomID, res.Date, timeutil.FormatClock(res.StartMinute)))
}

func (d *Dispatcher) dispatch(event Event, res *models.Reservation, text string) {
	if d.sender == nil {
		return
	}
	// Copy so the caller can keep mutating its reservation.
	snapshot := *res

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.limiter.Wait(ctx); err != nil {
			metrics.IncNotification(string(event), "dropped")
			d.logger.Warn().Err(err).Str("event", string(event)).Msg("notification dropped at rate limiter")
			return
		}

		if err := d.sender.Send(ctx, event, &snapshot, text); err != nil {
			metrics.IncNotification(string(event), "failed")
			d.logger.Error().Err(err).
				Str("event", string(event)).
				Str("reservation_id", snapshot.ID).
				Msg("notification failed")
			return
		}
		metrics.IncNotification(string(event), "sent")
	}()
}

// LogSender writes notifications to the log; used when no transport is
// configured and in tests.
type LogSender struct {
	Logger zerolog.Logger
}

// Send logs the notification.
func (s *LogSender) Send(_ context.Context, event Event, res *models.Reservation, text string) error {
	s.Logger.Info().
		Str("event", string(event)).
		Str("reservation_id", res.ID).
		Str("recipient", res.RequesterEmail).
		Msg(text)
	return nil
}
