// Package database implements the sqlite-backed store for rooms, operating
// slots, booking rules, and reservations. Reservation creation paths run
// their conflict check and insert inside one transaction so concurrent
// requests for the same interval serialize at the store.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"

	"roomspace/internal/models"
)

// DB wraps the sqlite connection pool.
type DB struct {
	*sql.DB
	logger   *zerolog.Logger
	defaults models.BookingRule
}

// SetBookingDefaults overrides the limits applied to rooms without an
// explicit booking rule. The zero value keeps the built-in defaults.
func (db *DB) SetBookingDefaults(rule models.BookingRule) {
	rule.RoomID = ""
	db.defaults = rule
}

// fallbackRule is the rule served for rooms with no row in booking_rules.
func (db *DB) fallbackRule(roomID string) models.BookingRule {
	if db.defaults == (models.BookingRule{}) {
		return models.DefaultBookingRule(roomID)
	}
	rule := db.defaults
	rule.RoomID = roomID
	return rule
}

// NewDB opens (and if needed creates) the database at path.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode plus a busy timeout keeps concurrent writers serialized
	// instead of failing fast. _txlock=immediate makes every transaction
	// take the write lock at BEGIN, so check-then-insert paths cannot
	// interleave their reads.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}

	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			location_id TEXT NOT NULL,
			capacity INTEGER NOT NULL DEFAULT 1,
			description TEXT,
			active BOOLEAN NOT NULL DEFAULT 1,
			availability_status TEXT NOT NULL DEFAULT 'available',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS operating_slots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			start_minute INTEGER NOT NULL,
			end_minute INTEGER NOT NULL,
			FOREIGN KEY(room_id) REFERENCES rooms(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS booking_rules (
			room_id TEXT PRIMARY KEY,
			grace_period_minutes INTEGER NOT NULL DEFAULT 15,
			max_duration_minutes INTEGER NOT NULL DEFAULT 240,
			max_advance_days INTEGER NOT NULL DEFAULT 30,
			FOREIGN KEY(room_id) REFERENCES rooms(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			location_id TEXT NOT NULL,
			program_type_id TEXT NOT NULL,
			date TEXT NOT NULL,
			start_minute INTEGER NOT NULL,
			end_minute INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			check_in_status TEXT NOT NULL DEFAULT 'not_checked_in',
			checked_in_at DATETIME,
			checked_in_by TEXT,
			released_at DATETIME,
			approved_at DATETIME,
			declined_at DATETIME,
			cancelled_at DATETIME,
			is_walk_in BOOLEAN NOT NULL DEFAULT 0,
			original_reservation_id TEXT,
			requester_name TEXT NOT NULL,
			requester_email TEXT NOT NULL,
			requester_phone TEXT,
			notes TEXT,
			created_by TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(room_id) REFERENCES rooms(id)
		)`,

		`CREATE TABLE IF NOT EXISTS reminder_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reservation_id TEXT NOT NULL,
			reminder_type TEXT NOT NULL,
			sent_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(reservation_id, reminder_type),
			FOREIGN KEY(reservation_id) REFERENCES reservations(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_slots_room_day ON operating_slots(room_id, day_of_week)`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_location ON rooms(location_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_active ON rooms(active)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_room_date_status ON reservations(room_id, date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_date ON reservations(date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_checkin ON reservations(check_in_status, date)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Close shuts down the connection pool.
func (db *DB) Close() error {
	return db.DB.Close()
}
