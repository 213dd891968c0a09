// Package lifecycle implements the reservation state machine: creation,
// approval decisions, cancellation, check-in, and staff no-show marking.
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"roomspace/internal/access"
	"roomspace/internal/apperr"
	"roomspace/internal/availability"
	"roomspace/internal/metrics"
	"roomspace/internal/models"
	"roomspace/internal/notify"
	"roomspace/internal/timeutil"
)

// EarlyCheckInMinutes is how long before the reserved start the check-in
// window opens.
const EarlyCheckInMinutes = 15

// statusTransitions enumerates the legal status edges. Everything else is a
// state error.
var statusTransitions = map[models.ReservationStatus][]models.ReservationStatus{
	models.StatusPending:  {models.StatusApproved, models.StatusDeclined, models.StatusCancelled},
	models.StatusApproved: {models.StatusCancelled},
}

func canTransition(from, to models.ReservationStatus) bool {
	for _, t := range statusTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Store is the persistence surface the lifecycle service drives.
type Store interface {
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetBookingRule(ctx context.Context, roomID string) (models.BookingRule, error)
	SetStatus(ctx context.Context, id string, to models.ReservationStatus, at time.Time, from ...models.ReservationStatus) (bool, error)
	SetCheckedIn(ctx context.Context, id string, at time.Time, by string) (bool, error)
	SetNoShow(ctx context.Context, id string, at time.Time) (bool, error)
}

// Service runs reservation lifecycle operations.
type Service struct {
	store    Store
	detector *availability.Detector
	notifier *notify.Dispatcher
	clock    *timeutil.Clock
	logger   zerolog.Logger
}

// NewService creates a lifecycle service. notifier may be nil.
func NewService(store Store, detector *availability.Detector, notifier *notify.Dispatcher, clock *timeutil.Clock, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		detector: detector,
		notifier: notifier,
		clock:    clock,
		logger:   logger.With().Str("component", "lifecycle").Logger(),
	}
}

// CreateRequest carries the fields of a new reservation request.
type CreateRequest struct {
	RoomID        string
	LocationID    string
	ProgramTypeID string
	Date          timeutil.Date
	StartMinute   int
	EndMinute     int

	RequesterName  string
	RequesterEmail string
	RequesterPhone string
	Notes          string
}

// Create validates the requested interval and inserts the reservation.
// Requests from privileged actors are approved immediately; others start
// pending. A failed validation surfaces as a policy or conflict error
// carrying the detector's alternatives.
func (s *Service) Create(ctx context.Context, actor access.Actor, req CreateRequest) (*models.Reservation, error) {
	if req.RequesterName == "" || req.RequesterEmail == "" {
		return nil, apperr.New(apperr.KindValidation, "requester name and email are required")
	}

	result, err := s.detector.Validate(ctx, req.RoomID, req.Date, req.StartMinute, req.EndMinute, "")
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		kind := apperr.KindPolicy
		if result.Conflict != nil {
			kind = apperr.KindConflict
		}
		ae := apperr.New(kind, result.Reason)
		if result.Conflict != nil {
			ae = ae.With("conflicting_reservation", result.Conflict)
		}
		if len(result.Alternatives) > 0 {
			ae = ae.With("alternative_slots", result.Alternatives)
		}
		return nil, ae
	}

	now := s.clock.Now()
	res := &models.Reservation{
		ID:             uuid.NewString(),
		RoomID:         req.RoomID,
		LocationID:     req.LocationID,
		ProgramTypeID:  req.ProgramTypeID,
		Date:           req.Date,
		StartMinute:    req.StartMinute,
		EndMinute:      req.EndMinute,
		Status:         models.StatusPending,
		CheckInStatus:  models.CheckInNone,
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		RequesterPhone: req.RequesterPhone,
		Notes:          req.Notes,
		CreatedBy:      actor.ID,
	}
	if actor.Privileged() {
		res.Status = models.StatusApproved
		res.ApprovedAt = &now
	}

	if err := s.store.CreateReservation(ctx, res); err != nil {
		return nil, err
	}

	metrics.IncReservationCreated(string(res.Status))
	s.logger.Info().
		Str("reservation_id", res.ID).
		Str("room_id", res.RoomID).
		Str("date", res.Date.String()).
		Str("status", string(res.Status)).
		Msg("reservation created")

	if s.notifier != nil {
		s.notifier.ReservationConfirmed(res)
	}
	return res, nil
}

// Approve transitions a pending reservation to approved. Privileged only.
func (s *Service) Approve(ctx context.Context, actor access.Actor, id string) (*models.Reservation, error) {
	return s.decide(ctx, actor, id, models.StatusApproved)
}

// Decline transitions a pending reservation to declined. Privileged only.
func (s *Service) Decline(ctx context.Context, actor access.Actor, id string) (*models.Reservation, error) {
	return s.decide(ctx, actor, id, models.StatusDeclined)
}

func (s *Service) decide(ctx context.Context, actor access.Actor, id string, to models.ReservationStatus) (*models.Reservation, error) {
	if !actor.Privileged() {
		return nil, apperr.Newf(apperr.KindAuthorization, "only staff can %s reservations", verbFor(to))
	}

	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(res.Status, to) {
		return nil, apperr.Newf(apperr.KindState, "cannot %s a %s reservation", verbFor(to), res.Status)
	}

	ok, err := s.store.SetStatus(ctx, id, to, s.clock.Now(), models.StatusPending)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent decision won; report the state it left behind.
		current, err := s.store.GetReservation(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Newf(apperr.KindState, "cannot %s a %s reservation", verbFor(to), current.Status)
	}

	res, err = s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("reservation_id", id).
		Str("status", string(to)).
		Str("decided_by", actor.ID).
		Msg("reservation decision recorded")

	if s.notifier != nil {
		switch to {
		case models.StatusApproved:
			s.notifier.ReservationApproved(res)
		case models.StatusDeclined:
			s.notifier.ReservationDeclined(res)
		}
	}
	return res, nil
}

// Cancel cancels a reservation. Owners may cancel their own; staff may cancel
// any. Reservations that have already been checked in stay on the books.
func (s *Service) Cancel(ctx context.Context, actor access.Actor, id string) (*models.Reservation, error) {
	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanCancel(res) {
		return nil, apperr.New(apperr.KindAuthorization, "only the requester or staff can cancel this reservation")
	}
	if res.CheckInStatus == models.CheckInDone {
		return nil, apperr.New(apperr.KindState, "cannot cancel a reservation that has been checked in")
	}
	if !canTransition(res.Status, models.StatusCancelled) {
		return nil, apperr.Newf(apperr.KindState, "cannot cancel a %s reservation", res.Status)
	}

	ok, err := s.store.SetStatus(ctx, id, models.StatusCancelled, s.clock.Now(),
		models.StatusPending, models.StatusApproved)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.store.GetReservation(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Newf(apperr.KindState, "cannot cancel a %s reservation", current.Status)
	}

	s.logger.Info().Str("reservation_id", id).Str("cancelled_by", actor.ID).Msg("reservation cancelled")
	return s.store.GetReservation(ctx, id)
}

// Window is a check-in window in minutes since midnight on the reservation
// date.
type Window struct {
	OpensMinute  int    `json:"-"`
	ClosesMinute int    `json:"-"`
	Opens        string `json:"opens"`
	Closes       string `json:"closes"`
}

// CheckInWindow computes the window for a reservation under the given grace
// period: it opens shortly before the reserved start and closes once the
// grace period after the start has run out.
func CheckInWindow(res *models.Reservation, graceMinutes int) Window {
	opens := res.StartMinute - EarlyCheckInMinutes
	if opens < 0 {
		opens = 0
	}
	closes := res.StartMinute + graceMinutes
	return Window{
		OpensMinute:  opens,
		ClosesMinute: closes,
		Opens:        timeutil.FormatClock(opens),
		Closes:       timeutil.FormatClock(closes),
	}
}

// CheckInResult is the outcome of a check-in attempt.
type CheckInResult struct {
	Reservation *models.Reservation `json:"reservation"`
	Already     bool                `json:"already_checked_in"`
}

// CheckIn claims a reservation. A reservation already checked in reports
// success without mutating anything. Override skips the same-day and window
// checks for privileged actors; it never resurrects a released reservation
// or an unapproved one.
func (s *Service) CheckIn(ctx context.Context, actor access.Actor, id string, override bool) (*CheckInResult, error) {
	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	if res.CheckInStatus == models.CheckInDone {
		metrics.IncCheckIn("already")
		return &CheckInResult{Reservation: res, Already: true}, nil
	}
	if res.CheckInStatus.Released() {
		metrics.IncCheckIn("released")
		ae := apperr.New(apperr.KindState, "reservation has been released")
		if res.ReleasedAt != nil {
			ae = ae.With("released_at", *res.ReleasedAt)
		}
		return nil, ae
	}
	if res.Status != models.StatusApproved {
		metrics.IncCheckIn("not_approved")
		return nil, apperr.Newf(apperr.KindState, "cannot check in a %s reservation", res.Status)
	}

	rule, err := s.store.GetBookingRule(ctx, res.RoomID)
	if err != nil {
		return nil, err
	}
	window := CheckInWindow(res, rule.GracePeriodMinutes)

	if override {
		if !actor.Privileged() {
			return nil, apperr.New(apperr.KindAuthorization, "only staff can override the check-in window")
		}
	} else {
		today := s.clock.Today()
		if !res.Date.Equal(today) {
			metrics.IncCheckIn("wrong_date")
			return nil, apperr.New(apperr.KindState, "check-in is only available on the reservation date").
				With("reservation_date", res.Date.String())
		}
		minute := s.clock.MinuteOfDay()
		if minute < window.OpensMinute {
			metrics.IncCheckIn("too_early")
			return nil, apperr.New(apperr.KindState, "check-in window is not yet open").
				With("window", window)
		}
		if minute > window.ClosesMinute {
			metrics.IncCheckIn("too_late")
			return nil, apperr.New(apperr.KindState, "check-in window has closed").
				With("window", window)
		}
	}

	ok, err := s.store.SetCheckedIn(ctx, id, s.clock.Now(), actor.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with a concurrent check-in or the sweep.
		current, err := s.store.GetReservation(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.CheckInStatus == models.CheckInDone {
			metrics.IncCheckIn("already")
			return &CheckInResult{Reservation: current, Already: true}, nil
		}
		metrics.IncCheckIn("released")
		return nil, apperr.New(apperr.KindState, "reservation has been released")
	}

	metrics.IncCheckIn("success")
	s.logger.Info().
		Str("reservation_id", id).
		Str("checked_in_by", actor.ID).
		Bool("override", override).
		Msg("reservation checked in")

	res, err = s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CheckInResult{Reservation: res}, nil
}

// CheckInStatus describes where a reservation stands relative to its window;
// used by the pre-check-in lookup.
type CheckInStatus struct {
	Reservation *models.Reservation `json:"reservation"`
	Window      Window              `json:"window"`
	Open        bool                `json:"window_open"`
}

// Describe reports a reservation together with its check-in window.
func (s *Service) Describe(ctx context.Context, id string) (*CheckInStatus, error) {
	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	rule, err := s.store.GetBookingRule(ctx, res.RoomID)
	if err != nil {
		return nil, err
	}
	window := CheckInWindow(res, rule.GracePeriodMinutes)

	open := false
	if res.Status == models.StatusApproved && res.CheckInStatus == models.CheckInNone && res.Date.Equal(s.clock.Today()) {
		minute := s.clock.MinuteOfDay()
		open = minute >= window.OpensMinute && minute <= window.ClosesMinute
	}
	return &CheckInStatus{Reservation: res, Window: window, Open: open}, nil
}

// MarkNoShow records that the requester never arrived. Privileged only; the
// reservation must be approved and unclaimed.
func (s *Service) MarkNoShow(ctx context.Context, actor access.Actor, id string) (*models.Reservation, error) {
	if !actor.Privileged() {
		return nil, apperr.New(apperr.KindAuthorization, "only staff can mark a no-show")
	}

	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != models.StatusApproved || res.CheckInStatus != models.CheckInNone {
		return nil, apperr.Newf(apperr.KindState, "cannot mark %s/%s reservation as no-show", res.Status, res.CheckInStatus)
	}

	ok, err := s.store.SetNoShow(ctx, id, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.KindState, "reservation is no longer eligible for no-show")
	}

	s.logger.Info().Str("reservation_id", id).Str("marked_by", actor.ID).Msg("reservation marked no-show")
	return s.store.GetReservation(ctx, id)
}

func verbFor(to models.ReservationStatus) string {
	switch to {
	case models.StatusApproved:
		return "approve"
	case models.StatusDeclined:
		return "decline"
	default:
		return "cancel"
	}
}
