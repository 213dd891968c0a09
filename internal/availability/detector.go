// Package availability implements the conflict detector: deciding whether a
// requested room interval is bookable against operating hours, booking-rule
// limits, and existing active reservations.
package availability

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"roomspace/internal/apperr"
	"roomspace/internal/metrics"
	"roomspace/internal/models"
	"roomspace/internal/suggest"
	"roomspace/internal/timeutil"
)

// Store is the subset of the reservation store the detector reads.
type Store interface {
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	GetBookingRule(ctx context.Context, roomID string) (models.BookingRule, error)
	SlotsForRoomDay(ctx context.Context, roomID string, dayOfWeek int) ([]models.OperatingSlot, error)
	ActiveReservationsForRoomDate(ctx context.Context, roomID string, date timeutil.Date, excludeID string) ([]models.Reservation, error)
}

// Result is the outcome of a validation.
type Result struct {
	Valid        bool                    `json:"valid"`
	Reason       string                  `json:"error,omitempty"`
	Conflict     *models.ConflictSummary `json:"conflicting_reservation,omitempty"`
	Alternatives []suggest.Slot          `json:"alternative_slots"`
}

// Detector validates requested intervals.
type Detector struct {
	store     Store
	suggester *suggest.Engine
	clock     *timeutil.Clock
	logger    zerolog.Logger
}

// NewDetector creates a conflict detector.
func NewDetector(store Store, suggester *suggest.Engine, clock *timeutil.Clock, logger zerolog.Logger) *Detector {
	return &Detector{
		store:     store,
		suggester: suggester,
		clock:     clock,
		logger:    logger.With().Str("component", "availability").Logger(),
	}
}

// Validate checks, in order: room bookability, operating-hours containment,
// booking-rule limits, and interval conflicts. Alternatives are attached for
// unavailable-time and conflict outcomes. excludeID omits one reservation
// from the conflict scan, for revalidating an edit.
func (d *Detector) Validate(ctx context.Context, roomID string, date timeutil.Date, start, end int, excludeID string) (*Result, error) {
	if start < 0 || end > timeutil.MinutesPerDay || start >= end {
		return nil, apperr.New(apperr.KindValidation, "start time must be before end time and within the day")
	}

	room, err := d.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if !room.Active || room.Availability != models.RoomAvailable {
		metrics.IncValidation("room_unavailable")
		reason := "Room not available"
		if room.Active && room.Availability != models.RoomAvailable {
			reason = "Room is currently " + string(room.Availability)
		}
		return &Result{Valid: false, Reason: reason}, nil
	}

	slots, err := d.store.SlotsForRoomDay(ctx, roomID, int(date.Weekday()))
	if err != nil {
		return nil, err
	}
	contained := false
	for _, slot := range slots {
		if slot.Contains(start, end) {
			contained = true
			break
		}
	}
	if !contained {
		metrics.IncValidation("outside_hours")
		return &Result{
			Valid:        false,
			Reason:       "Room not available at this time",
			Alternatives: d.alternatives(ctx, roomID, date, start, end),
		}, nil
	}

	rule, err := d.store.GetBookingRule(ctx, roomID)
	if err != nil {
		return nil, err
	}

	duration := end - start
	if duration > rule.MaxDurationMinutes {
		metrics.IncValidation("duration_exceeded")
		return &Result{
			Valid:  false,
			Reason: "Maximum booking duration is " + strconv.Itoa(rule.MaxDurationMinutes) + " minutes",
		}, nil
	}

	today := d.clock.Today()
	daysAhead := today.DaysUntil(date)
	if daysAhead < 0 {
		metrics.IncValidation("past_date")
		return &Result{Valid: false, Reason: "Cannot book dates in the past"}, nil
	}
	if daysAhead > rule.MaxAdvanceDays {
		metrics.IncValidation("advance_exceeded")
		return &Result{
			Valid:  false,
			Reason: "Bookings can only be made up to " + strconv.Itoa(rule.MaxAdvanceDays) + " days in advance",
		}, nil
	}

	reservations, err := d.store.ActiveReservationsForRoomDate(ctx, roomID, date, excludeID)
	if err != nil {
		return nil, err
	}
	for i := range reservations {
		res := &reservations[i]
		if res.OverlapsInterval(start, end) {
			metrics.IncValidation("conflict")
			summary := res.Summary()
			return &Result{
				Valid:        false,
				Reason:       "Time slot conflicts with an existing reservation",
				Conflict:     &summary,
				Alternatives: d.alternatives(ctx, roomID, date, start, end),
			}, nil
		}
	}

	metrics.IncValidation("valid")
	return &Result{Valid: true}, nil
}

// alternatives asks the suggestion engine for replacements; failures here
// never fail the validation itself.
func (d *Detector) alternatives(ctx context.Context, roomID string, date timeutil.Date, start, end int) []suggest.Slot {
	slots, err := d.suggester.SuggestTimes(ctx, roomID, suggest.Preference{
		Date:           date,
		PreferredStart: start,
		Duration:       end - start,
	}, suggest.TopEmbedded)
	if err != nil {
		d.logger.Warn().Err(err).Str("room_id", roomID).Msg("failed to compute alternative slots")
		return nil
	}
	return slots
}

