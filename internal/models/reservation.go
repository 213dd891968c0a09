package models

import (
	"time"

	"roomspace/internal/timeutil"
)

// ReservationStatus is the approval state of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusApproved  ReservationStatus = "approved"
	StatusDeclined  ReservationStatus = "declined"
	StatusCancelled ReservationStatus = "cancelled"
)

// CheckInStatus tracks physical attendance once a reservation is approved.
type CheckInStatus string

const (
	CheckInNone     CheckInStatus = "not_checked_in"
	CheckInDone     CheckInStatus = "checked_in"
	CheckInNoShow   CheckInStatus = "no_show"
	CheckInReleased CheckInStatus = "auto_released"
)

// Terminal reports whether the check-in state accepts no further transitions.
func (s CheckInStatus) Terminal() bool {
	return s == CheckInDone || s == CheckInNoShow || s == CheckInReleased
}

// Released reports whether the state frees the reservation's interval.
func (s CheckInStatus) Released() bool {
	return s == CheckInNoShow || s == CheckInReleased
}

// Reservation is a booked room interval together with its lifecycle state.
// Time-of-day values are minutes since midnight in the engine's zone.
type Reservation struct {
	ID            string            `json:"id"`
	RoomID        string            `json:"room_id"`
	LocationID    string            `json:"location_id"`
	ProgramTypeID string            `json:"program_type_id"`
	Date          timeutil.Date     `json:"date"`
	StartMinute   int               `json:"start_minute"`
	EndMinute     int               `json:"end_minute"`
	Status        ReservationStatus `json:"status"`
	CheckInStatus CheckInStatus     `json:"check_in_status"`

	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	CheckedInBy string     `json:"checked_in_by,omitempty"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	DeclinedAt  *time.Time `json:"declined_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	IsWalkIn              bool   `json:"is_walk_in"`
	OriginalReservationID string `json:"original_reservation_id,omitempty"`

	RequesterName  string `json:"requester_name"`
	RequesterEmail string `json:"requester_email"`
	RequesterPhone string `json:"requester_phone,omitempty"`
	Notes          string `json:"notes,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DurationMinutes returns the reserved interval length.
func (r *Reservation) DurationMinutes() int {
	return r.EndMinute - r.StartMinute
}

// Active reports whether the reservation still holds its interval for
// conflict purposes: pending or approved, and not released as a no-show.
func (r *Reservation) Active() bool {
	if r.Status != StatusPending && r.Status != StatusApproved {
		return false
	}
	return !r.CheckInStatus.Released()
}

// Overlaps reports whether two reservations on the same room and date claim
// intersecting intervals.
func (r *Reservation) Overlaps(other *Reservation) bool {
	if r.RoomID != other.RoomID || !r.Date.Equal(other.Date) {
		return false
	}
	return timeutil.Overlaps(r.StartMinute, r.EndMinute, other.StartMinute, other.EndMinute)
}

// OverlapsInterval reports whether the reservation intersects [start, end).
func (r *Reservation) OverlapsInterval(start, end int) bool {
	return timeutil.Overlaps(r.StartMinute, r.EndMinute, start, end)
}

// CoversMinute reports whether the given minute of day falls inside the
// reserved interval.
func (r *Reservation) CoversMinute(minute int) bool {
	return r.StartMinute <= minute && minute < r.EndMinute
}

// ConflictSummary is the caller-facing description of a conflicting
// reservation, attached to conflict errors and validation results.
type ConflictSummary struct {
	ID            string `json:"id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	RequesterName string `json:"requester_name"`
}

// Summary builds the conflict summary for the reservation.
func (r *Reservation) Summary() ConflictSummary {
	return ConflictSummary{
		ID:            r.ID,
		StartTime:     timeutil.FormatClock(r.StartMinute),
		EndTime:       timeutil.FormatClock(r.EndMinute),
		RequesterName: r.RequesterName,
	}
}
