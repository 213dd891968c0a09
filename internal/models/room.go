package models

import "time"

// RoomAvailability is the operational status of a room, independent of
// individual reservations.
type RoomAvailability string

const (
	RoomAvailable   RoomAvailability = "available"
	RoomUnavailable RoomAvailability = "unavailable"
	RoomMaintenance RoomAvailability = "maintenance"
)

// Room represents a reservable shared room.
type Room struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	LocationID   string           `json:"location_id"`
	Capacity     int              `json:"capacity"`
	Description  string           `json:"description,omitempty"`
	Active       bool             `json:"active"`
	Availability RoomAvailability `json:"availability_status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Bookable reports whether the room accepts reservations at all.
func (r *Room) Bookable() bool {
	return r.Active && r.Availability == RoomAvailable
}

// OperatingSlot is a recurring weekly window in which a room accepts
// bookings. DayOfWeek follows time.Weekday numbering (Sunday = 0). Times are
// minutes since midnight; a room may have several slots per day.
type OperatingSlot struct {
	ID          int64  `json:"id"`
	RoomID      string `json:"room_id"`
	DayOfWeek   int    `json:"day_of_week"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

// Contains reports whether [start, end) lies fully inside the slot.
func (s *OperatingSlot) Contains(start, end int) bool {
	return s.StartMinute <= start && end <= s.EndMinute
}

// Covers reports whether the given minute of day falls inside the slot.
func (s *OperatingSlot) Covers(minute int) bool {
	return s.StartMinute <= minute && minute < s.EndMinute
}

// BookingRule holds per-room booking limits. A room owns at most one rule;
// rooms without a rule fall back to DefaultBookingRule.
type BookingRule struct {
	RoomID             string `json:"room_id"`
	GracePeriodMinutes int    `json:"grace_period_minutes"`
	MaxDurationMinutes int    `json:"max_duration_minutes"`
	MaxAdvanceDays     int    `json:"max_advance_days"`
}

// DefaultBookingRule returns the limits applied to rooms without an explicit
// rule.
func DefaultBookingRule(roomID string) BookingRule {
	return BookingRule{
		RoomID:             roomID,
		GracePeriodMinutes: 15,
		MaxDurationMinutes: 240,
		MaxAdvanceDays:     30,
	}
}
