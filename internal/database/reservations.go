package database

import (
	"context"
	"database/sql"
	"time"

	"roomspace/internal/apperr"
	"roomspace/internal/models"
	"roomspace/internal/timeutil"
)

const reservationColumns = `
	id, room_id, location_id, program_type_id, date, start_minute, end_minute,
	status, check_in_status, checked_in_at, COALESCE(checked_in_by, ''),
	released_at, approved_at, declined_at, cancelled_at,
	is_walk_in, COALESCE(original_reservation_id, ''),
	requester_name, requester_email, COALESCE(requester_phone, ''),
	COALESCE(notes, ''), COALESCE(created_by, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	var dateStr, status, checkInStatus string
	var checkedInAt, releasedAt, approvedAt, declinedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.RoomID, &r.LocationID, &r.ProgramTypeID,
		&dateStr, &r.StartMinute, &r.EndMinute,
		&status, &checkInStatus, &checkedInAt, &r.CheckedInBy,
		&releasedAt, &approvedAt, &declinedAt, &cancelledAt,
		&r.IsWalkIn, &r.OriginalReservationID,
		&r.RequesterName, &r.RequesterEmail, &r.RequesterPhone,
		&r.Notes, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Date, err = timeutil.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}
	r.Status = models.ReservationStatus(status)
	r.CheckInStatus = models.CheckInStatus(checkInStatus)
	if checkedInAt.Valid {
		r.CheckedInAt = &checkedInAt.Time
	}
	if releasedAt.Valid {
		r.ReleasedAt = &releasedAt.Time
	}
	if approvedAt.Valid {
		r.ApprovedAt = &approvedAt.Time
	}
	if declinedAt.Valid {
		r.DeclinedAt = &declinedAt.Time
	}
	if cancelledAt.Valid {
		r.CancelledAt = &cancelledAt.Time
	}
	return &r, nil
}

func collectReservations(rows *sql.Rows) ([]models.Reservation, error) {
	defer rows.Close()
	var out []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindService, err, "scan reservation")
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetReservation returns a reservation by id.
func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "reservation %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindService, err, "get reservation")
	}
	return r, nil
}

// ReservationFilter narrows ListReservations.
type ReservationFilter struct {
	RoomID     string
	LocationID string
	Status     models.ReservationStatus
	DateFrom   timeutil.Date
	DateTo     timeutil.Date
}

// ListReservations returns reservations matching the filter, most recent
// date first.
func (db *DB) ListReservations(ctx context.Context, f ReservationFilter) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE 1=1`
	var args []any
	if f.RoomID != "" {
		query += ` AND room_id = ?`
		args = append(args, f.RoomID)
	}
	if f.LocationID != "" {
		query += ` AND location_id = ?`
		args = append(args, f.LocationID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if !f.DateFrom.IsZero() {
		query += ` AND date >= ?`
		args = append(args, f.DateFrom.String())
	}
	if !f.DateTo.IsZero() {
		query += ` AND date <= ?`
		args = append(args, f.DateTo.String())
	}
	query += ` ORDER BY date DESC, start_minute`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindService, err, "list reservations")
	}
	return collectReservations(rows)
}

// ReservationsForRoomDate returns all reservations for a room on a date,
// ordered by start time.
func (db *DB) ReservationsForRoomDate(ctx context.Context, roomID string, date timeutil.Date) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE room_id = ? AND date = ?
		 ORDER BY start_minute`,
		roomID, date.String(),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindService, err, "query reservations for room/date")
	}
	return collectReservations(rows)
}

const activeClause = `status IN ('pending', 'approved')
	AND check_in_status NOT IN ('auto_released', 'no_show')`

// ActiveReservationsForRoomDate returns the reservations that still hold
// their interval on the given room and date, ordered by start time.
// excludeID, when non-empty, omits that reservation (used when revalidating
// an edit).
func (db *DB) ActiveReservationsForRoomDate(ctx context.Context, roomID string, date timeutil.Date, excludeID string) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE room_id = ? AND date = ? AND ` + activeClause
	args := []any{roomID, date.String()}
	if excludeID != "" {
		query += ` AND id != ?`
		args = append(args, excludeID)
	}
	query += ` ORDER BY start_minute`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindService, err, "query active reservations")
	}
	return collectReservations(rows)
}

// CreateReservation checks for an interval conflict and inserts the
// reservation in one transaction. Concurrent requests for the same slot
// serialize at BEGIN; the loser receives a Conflict error carrying the
// winner's summary.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindService, err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE room_id = ? AND date = ? AND `+activeClause+`
		   AND start_minute < ? AND end_minute > ?
		 ORDER BY start_minute LIMIT 1`,
		r.RoomID, r.Date.String(), r.EndMinute, r.StartMinute,
	)
	conflict, err := scanReservation(row)
	if err != nil && err != sql.ErrNoRows {
		return apperr.Wrap(apperr.KindService, err, "check conflicts")
	}
	if err == nil {
		return apperr.New(apperr.KindConflict, "time slot conflicts with an existing reservation").
			With("conflict", conflict.Summary())
	}

	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (
			id, room_id, location_id, program_type_id, date, start_minute, end_minute,
			status, check_in_status, checked_in_at, checked_in_by, released_at,
			approved_at, declined_at, cancelled_at, is_walk_in, original_reservation_id,
			requester_name, requester_email, requester_phone, notes, created_by,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RoomID, r.LocationID, r.ProgramTypeID, r.Date.String(), r.StartMinute, r.EndMinute,
		string(r.Status), string(r.CheckInStatus), nullTime(r.CheckedInAt), nullStr(r.CheckedInBy), nullTime(r.ReleasedAt),
		nullTime(r.ApprovedAt), nullTime(r.DeclinedAt), nullTime(r.CancelledAt), r.IsWalkIn, nullStr(r.OriginalReservationID),
		r.RequesterName, r.RequesterEmail, nullStr(r.RequesterPhone), nullStr(r.Notes), nullStr(r.CreatedBy),
		now, now,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindService, err, "insert reservation")
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindService, err, "commit")
	}
	return nil
}

// SetStatus transitions a reservation's status, guarded by the set of
// statuses the transition may start from. Returns false when the row was not
// in an allowed starting status (a concurrent transition won).
func (db *DB) SetStatus(ctx context.Context, id string, to models.ReservationStatus, at time.Time, from ...models.ReservationStatus) (bool, error) {
	stamp := ""
	switch to {
	case models.StatusApproved:
		stamp = "approved_at"
	case models.StatusDeclined:
		stamp = "declined_at"
	case models.StatusCancelled:
		stamp = "cancelled_at"
	}

	query := `UPDATE reservations SET status = ?, updated_at = ?`
	args := []any{string(to), at}
	if stamp != "" {
		query += `, ` + stamp + ` = ?`
		args = append(args, at)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	if len(from) > 0 {
		query += ` AND status IN (`
		for i, s := range from {
			if i > 0 {
				query += `, `
			}
			query += `?`
			args = append(args, string(s))
		}
		query += `)`
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperr.Wrap(apperr.KindService, err, "update status")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.KindService, err, "rows affected")
	}
	return affected > 0, nil
}

// SetCheckedIn records a successful check-in. The guard only fires while the
// reservation is still approved and unclaimed, which makes repeated calls
// converge without double-stamping.
func (db *DB) SetCheckedIn(ctx context.Context, id string, at time.Time, by string) (bool, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET check_in_status = 'checked_in', checked_in_at = ?, checked_in_by = ?, updated_at = ?
		WHERE id = ? AND status = 'approved' AND check_in_status = 'not_checked_in'`,
		at, nullStr(by), at, id,
	)
	if err != nil {
		return false, apperr.Wrap(apperr.KindService, err, "set checked in")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.KindService, err, "rows affected")
	}
	return affected > 0, nil
}

// SetNoShow marks an unclaimed reservation as a no-show.
func (db *DB) SetNoShow(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET check_in_status = 'no_show', released_at = ?, updated_at = ?
		WHERE id = ? AND status = 'approved' AND check_in_status = 'not_checked_in'`,
		at, at, id,
	)
	if err != nil {
		return false, apperr.Wrap(apperr.KindService, err, "set no-show")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.KindService, err, "rows affected")
	}
	return affected > 0, nil
}

// AutoRelease flips an unclaimed reservation to auto_released. The
// not_checked_in guard makes the sweep idempotent under overlapping runs.
func (db *DB) AutoRelease(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET check_in_status = 'auto_released', released_at = ?, updated_at = ?
		WHERE id = ? AND status = 'approved' AND check_in_status = 'not_checked_in'`,
		at, at, id,
	)
	if err != nil {
		return false, apperr.Wrap(apperr.KindService, err, "auto release")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.KindService, err, "rows affected")
	}
	return affected > 0, nil
}

// SweepCandidates returns the approved, still-unclaimed reservations for a
// date; the sweep decides which of them have outlived their grace period.
func (db *DB) SweepCandidates(ctx context.Context, date timeutil.Date) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE date = ? AND status = 'approved' AND check_in_status = 'not_checked_in'
		 ORDER BY start_minute`,
		date.String(),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindService, err, "query sweep candidates")
	}
	return collectReservations(rows)
}

// ReminderCandidates returns approved, unclaimed reservations dated within
// [from, to] for the reminder processor.
func (db *DB) ReminderCandidates(ctx context.Context, from, to timeutil.Date) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE date >= ? AND date <= ? AND status = 'approved' AND check_in_status = 'not_checked_in'
		 ORDER BY date, start_minute`,
		from.String(), to.String(),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindService, err, "query reminder candidates")
	}
	return collectReservations(rows)
}

// MarkReminderSent records that a reminder of the given type went out.
// Returns false when the reminder was already logged, so each type fires at
// most once per reservation.
func (db *DB) MarkReminderSent(ctx context.Context, reservationID, reminderType string) (bool, error) {
	result, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO reminder_logs (reservation_id, reminder_type) VALUES (?, ?)`,
		reservationID, reminderType,
	)
	if err != nil {
		return false, apperr.Wrap(apperr.KindService, err, "log reminder")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.KindService, err, "rows affected")
	}
	return affected > 0, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
