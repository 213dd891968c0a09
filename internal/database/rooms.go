package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"roomspace/internal/apperr"
	"roomspace/internal/models"
)

// CreateRoom inserts a room.
func (db *DB) CreateRoom(ctx context.Context, r *models.Room) error {
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.Availability == "" {
		r.Availability = models.RoomAvailable
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO rooms (id, name, location_id, capacity, description, active, availability_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.LocationID, r.Capacity, r.Description, r.Active, string(r.Availability), now, now,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindService, err, "insert room")
	}
	return nil
}

// GetRoom returns a room by id.
func (db *DB) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var r models.Room
	var availability string
	err := db.QueryRowContext(ctx, `
		SELECT id, name, location_id, capacity, COALESCE(description, ''), active, availability_status, created_at, updated_at
		FROM rooms WHERE id = ?`, roomID,
	).Scan(&r.ID, &r.Name, &r.LocationID, &r.Capacity, &r.Description, &r.Active, &availability, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "room %s not found", roomID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindService, err, "get room")
	}
	r.Availability = models.RoomAvailability(availability)
	return &r, nil
}

// ListRooms returns all rooms, optionally filtered by location.
func (db *DB) ListRooms(ctx context.Context, locationID string) ([]models.Room, error) {
	query := `
		SELECT id, name, location_id, capacity, COALESCE(description, ''), active, availability_status, created_at, updated_at
		FROM rooms`
	args := []any{}
	if locationID != "" {
		query += ` WHERE location_id = ?`
		args = append(args, locationID)
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindService, err, "list rooms")
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var r models.Room
		var availability string
		if err := rows.Scan(&r.ID, &r.Name, &r.LocationID, &r.Capacity, &r.Description, &r.Active, &availability, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindService, err, "scan room")
		}
		r.Availability = models.RoomAvailability(availability)
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// SetRoomAvailability updates the operational status of a room.
func (db *DB) SetRoomAvailability(ctx context.Context, roomID string, status models.RoomAvailability) error {
	result, err := db.ExecContext(ctx, `
		UPDATE rooms SET availability_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), roomID,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindService, err, "update room availability")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.KindService, err, "rows affected")
	}
	if affected == 0 {
		return apperr.Newf(apperr.KindNotFound, "room %s not found", roomID)
	}
	return nil
}

// AddOperatingSlot registers a weekly availability window for a room.
func (db *DB) AddOperatingSlot(ctx context.Context, s *models.OperatingSlot) error {
	if s.DayOfWeek < 0 || s.DayOfWeek > 6 {
		return apperr.Newf(apperr.KindValidation, "day_of_week %d out of range 0-6", s.DayOfWeek)
	}
	if s.StartMinute >= s.EndMinute {
		return apperr.New(apperr.KindValidation, "slot start must be before end")
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO operating_slots (room_id, day_of_week, start_minute, end_minute)
		VALUES (?, ?, ?, ?)`,
		s.RoomID, s.DayOfWeek, s.StartMinute, s.EndMinute,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindService, err, "insert operating slot")
	}
	s.ID, err = result.LastInsertId()
	if err != nil {
		return apperr.Wrap(apperr.KindService, err, "last insert id")
	}
	return nil
}

// SlotsForRoomDay returns the operating slots of a room on a weekday,
// ordered by start time.
func (db *DB) SlotsForRoomDay(ctx context.Context, roomID string, dayOfWeek int) ([]models.OperatingSlot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, room_id, day_of_week, start_minute, end_minute
		FROM operating_slots
		WHERE room_id = ? AND day_of_week = ?
		ORDER BY start_minute`,
		roomID, dayOfWeek,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindService, err, "query operating slots")
	}
	defer rows.Close()

	var slots []models.OperatingSlot
	for rows.Next() {
		var s models.OperatingSlot
		if err := rows.Scan(&s.ID, &s.RoomID, &s.DayOfWeek, &s.StartMinute, &s.EndMinute); err != nil {
			return nil, apperr.Wrap(apperr.KindService, err, "scan operating slot")
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// SetBookingRule creates or replaces a room's booking rule.
func (db *DB) SetBookingRule(ctx context.Context, rule *models.BookingRule) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO booking_rules (room_id, grace_period_minutes, max_duration_minutes, max_advance_days)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET
			grace_period_minutes = excluded.grace_period_minutes,
			max_duration_minutes = excluded.max_duration_minutes,
			max_advance_days = excluded.max_advance_days`,
		rule.RoomID, rule.GracePeriodMinutes, rule.MaxDurationMinutes, rule.MaxAdvanceDays,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindService, err, "upsert booking rule")
	}
	return nil
}

// GetBookingRule returns the room's rule, falling back to defaults when the
// room has none.
func (db *DB) GetBookingRule(ctx context.Context, roomID string) (models.BookingRule, error) {
	var rule models.BookingRule
	err := db.QueryRowContext(ctx, `
		SELECT room_id, grace_period_minutes, max_duration_minutes, max_advance_days
		FROM booking_rules WHERE room_id = ?`, roomID,
	).Scan(&rule.RoomID, &rule.GracePeriodMinutes, &rule.MaxDurationMinutes, &rule.MaxAdvanceDays)
	if err == sql.ErrNoRows {
		return db.fallbackRule(roomID), nil
	}
	if err != nil {
		return models.BookingRule{}, apperr.Wrap(apperr.KindService, err, fmt.Sprintf("get booking rule for %s", roomID))
	}
	return rule, nil
}
