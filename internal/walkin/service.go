// Package walkin admits on-the-spot reservations into rooms that are free
// right now, including rooms freed by the grace-period sweep.
package walkin

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"roomspace/internal/access"
	"roomspace/internal/apperr"
	"roomspace/internal/metrics"
	"roomspace/internal/models"
	"roomspace/internal/notify"
	"roomspace/internal/timeutil"
)

const (
	// MinDurationMinutes and MaxDurationMinutes bound a walk-in request.
	MinDurationMinutes = 15
	MaxDurationMinutes = 120

	// startStepMinutes aligns walk-in starts to the reservation grid.
	startStepMinutes = 15
)

// Store is the persistence surface the walk-in service drives.
type Store interface {
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	ListRooms(ctx context.Context, locationID string) ([]models.Room, error)
	SlotsForRoomDay(ctx context.Context, roomID string, dayOfWeek int) ([]models.OperatingSlot, error)
	ReservationsForRoomDate(ctx context.Context, roomID string, date timeutil.Date) ([]models.Reservation, error)
	CreateReservation(ctx context.Context, r *models.Reservation) error
}

// Availability describes a room that can take a walk-in right now.
type Availability struct {
	Room                  models.Room `json:"room"`
	AvailableUntil        string      `json:"available_until"`
	AvailableUntilMinute  int         `json:"-"`
	AvailableMinutes      int         `json:"available_minutes"`
	WasReleased           bool        `json:"was_released"`
	OriginalReservationID string      `json:"original_reservation_id,omitempty"`
}

// Service computes walk-in availability and admits walk-ins.
type Service struct {
	store    Store
	notifier *notify.Dispatcher
	clock    *timeutil.Clock
	logger   zerolog.Logger
}

// NewService creates a walk-in service. notifier may be nil.
func NewService(store Store, notifier *notify.Dispatcher, clock *timeutil.Clock, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		clock:    clock,
		logger:   logger.With().Str("component", "walkin").Logger(),
	}
}

// AvailableNow lists the location's rooms that are open and unoccupied at
// this moment, with how long each stays free. Rooms freed by an auto-release
// are flagged, carrying the released reservation's id. Windows shorter than
// the minimum walk-in duration are omitted.
func (s *Service) AvailableNow(ctx context.Context, locationID string) ([]Availability, error) {
	rooms, err := s.store.ListRooms(ctx, locationID)
	if err != nil {
		return nil, err
	}

	today := s.clock.Today()
	minute := s.clock.MinuteOfDay()

	var out []Availability
	for i := range rooms {
		room := rooms[i]
		if !room.Bookable() {
			continue
		}

		slots, err := s.store.SlotsForRoomDay(ctx, room.ID, int(today.Weekday()))
		if err != nil {
			return nil, err
		}
		var current *models.OperatingSlot
		for j := range slots {
			if slots[j].Covers(minute) {
				current = &slots[j]
				break
			}
		}
		if current == nil {
			continue
		}

		reservations, err := s.store.ReservationsForRoomDate(ctx, room.ID, today)
		if err != nil {
			return nil, err
		}

		avail, ok := s.windowFrom(reservations, minute, current.EndMinute)
		if !ok {
			continue
		}
		avail.Room = room
		out = append(out, *avail)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AvailableMinutes > out[j].AvailableMinutes
	})
	return out, nil
}

// windowFrom computes how long the room stays free from `minute`, given the
// day's reservations. An active reservation covering the moment occupies the
// room; a released one covering it marks the window as freed by the sweep
// and caps it at that reservation's scheduled end.
func (s *Service) windowFrom(reservations []models.Reservation, minute, slotEnd int) (*Availability, bool) {
	until := slotEnd
	wasReleased := false
	originalID := ""

	for i := range reservations {
		res := &reservations[i]
		if res.Active() {
			if res.CoversMinute(minute) {
				return nil, false
			}
			if res.StartMinute > minute && res.StartMinute < until {
				until = res.StartMinute
			}
			continue
		}
		if res.Status == models.StatusApproved && res.CheckInStatus.Released() && res.CoversMinute(minute) {
			// The room was scheduled to be busy now but the sweep freed it;
			// offer it until the released reservation would have ended.
			wasReleased = true
			originalID = res.ID
			if res.EndMinute < until {
				until = res.EndMinute
			}
		}
	}

	if until-minute < MinDurationMinutes {
		return nil, false
	}
	return &Availability{
		AvailableUntil:        timeutil.FormatClock(until),
		AvailableUntilMinute:  until,
		AvailableMinutes:      until - minute,
		WasReleased:           wasReleased,
		OriginalReservationID: originalID,
	}, true
}

// CreateRequest carries a walk-in admission. OriginalReservationID may name
// the released reservation whose interval the walk-in reclaims; when empty it
// is derived from the day's released reservations.
type CreateRequest struct {
	RoomID                string
	ProgramTypeID         string
	DurationMinutes       int
	RequesterName         string
	RequesterEmail        string
	RequesterPhone        string
	Notes                 string
	OriginalReservationID string
}

// Create admits a walk-in: the reservation starts at the next quarter-hour
// boundary, is born approved and checked in, and claims its interval through
// the same transactional conflict check as a normal reservation, so two
// simultaneous walk-ins for one room cannot both win.
func (s *Service) Create(ctx context.Context, actor access.Actor, req CreateRequest) (*models.Reservation, error) {
	if req.RequesterName == "" || req.RequesterEmail == "" {
		return nil, apperr.New(apperr.KindValidation, "requester name and email are required")
	}
	if req.ProgramTypeID == "" {
		return nil, apperr.New(apperr.KindValidation, "program type is required")
	}
	if req.DurationMinutes < MinDurationMinutes || req.DurationMinutes > MaxDurationMinutes {
		return nil, apperr.Newf(apperr.KindValidation,
			"walk-in duration must be between %d and %d minutes", MinDurationMinutes, MaxDurationMinutes)
	}

	room, err := s.store.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.Bookable() {
		return nil, apperr.New(apperr.KindPolicy, "Room not available")
	}

	today := s.clock.Today()
	minute := s.clock.MinuteOfDay()
	start := timeutil.RoundUp(minute, startStepMinutes)
	end := start + req.DurationMinutes

	slots, err := s.store.SlotsForRoomDay(ctx, req.RoomID, int(today.Weekday()))
	if err != nil {
		return nil, err
	}
	contained := false
	for i := range slots {
		if slots[i].Contains(start, end) {
			contained = true
			break
		}
	}
	if !contained {
		return nil, apperr.New(apperr.KindPolicy, "Room not available at this time")
	}

	// Walk-ins into a freed interval keep a pointer to the released
	// reservation for reporting. A caller-supplied id wins; otherwise it is
	// derived from the day's released reservations.
	originalID := req.OriginalReservationID
	if originalID == "" {
		reservations, err := s.store.ReservationsForRoomDate(ctx, req.RoomID, today)
		if err != nil {
			return nil, err
		}
		for i := range reservations {
			res := &reservations[i]
			if res.Status == models.StatusApproved && res.CheckInStatus.Released() && res.OverlapsInterval(start, end) {
				originalID = res.ID
				break
			}
		}
	}

	now := s.clock.Now()
	res := &models.Reservation{
		ID:                    uuid.NewString(),
		RoomID:                req.RoomID,
		LocationID:            room.LocationID,
		ProgramTypeID:         req.ProgramTypeID,
		Date:                  today,
		StartMinute:           start,
		EndMinute:             end,
		Status:                models.StatusApproved,
		CheckInStatus:         models.CheckInDone,
		CheckedInAt:           &now,
		CheckedInBy:           actor.ID,
		ApprovedAt:            &now,
		IsWalkIn:              true,
		OriginalReservationID: originalID,
		RequesterName:         req.RequesterName,
		RequesterEmail:        req.RequesterEmail,
		RequesterPhone:        req.RequesterPhone,
		Notes:                 req.Notes,
		CreatedBy:             actor.ID,
	}

	if err := s.store.CreateReservation(ctx, res); err != nil {
		return nil, err
	}

	metrics.IncWalkInCreated()
	s.logger.Info().
		Str("reservation_id", res.ID).
		Str("room_id", res.RoomID).
		Str("start", timeutil.FormatClock(start)).
		Int("duration", req.DurationMinutes).
		Bool("reclaimed_release", originalID != "").
		Msg("walk-in admitted")

	if s.notifier != nil {
		s.notifier.ReservationConfirmed(res)
	}
	return res, nil
}
