package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"roomspace/internal/apperr"
	"roomspace/internal/metrics"
	"roomspace/internal/models"
	"roomspace/internal/timeutil"
)

type createRoomRequest struct {
	Name        string `json:"name"`
	LocationID  string `json:"location_id"`
	Capacity    int    `json:"capacity"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_room")
	if !actorFrom(r).Privileged() {
		s.writeError(w, r, apperr.New(apperr.KindAuthorization, "only staff can manage rooms"))
		return
	}
	var req createRoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.LocationID == "" {
		s.writeError(w, r, apperr.New(apperr.KindValidation, "name and location_id are required"))
		return
	}

	now := time.Now()
	room := &models.Room{
		ID:           uuid.NewString(),
		Name:         req.Name,
		LocationID:   req.LocationID,
		Capacity:     req.Capacity,
		Description:  req.Description,
		Active:       true,
		Availability: models.RoomAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.CreateRoom(r.Context(), room); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_rooms")
	rooms, err := s.db.ListRooms(r.Context(), r.URL.Query().Get("location_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

type roomAvailabilityRequest struct {
	Availability models.RoomAvailability `json:"availability_status"`
}

func (s *Server) handleSetRoomAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("set_room_availability")
	if !actorFrom(r).Privileged() {
		s.writeError(w, r, apperr.New(apperr.KindAuthorization, "only staff can manage rooms"))
		return
	}
	var req roomAvailabilityRequest
	if !s.decode(w, r, &req) {
		return
	}
	switch req.Availability {
	case models.RoomAvailable, models.RoomUnavailable, models.RoomMaintenance:
	default:
		s.writeError(w, r, apperr.Newf(apperr.KindValidation, "unknown availability status %q", req.Availability))
		return
	}

	if err := s.db.SetRoomAvailability(r.Context(), r.PathValue("id"), req.Availability); err != nil {
		s.writeError(w, r, err)
		return
	}
	room, err := s.db.GetRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, room)
}

type addSlotRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (s *Server) handleAddOperatingSlot(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("add_operating_slot")
	if !actorFrom(r).Privileged() {
		s.writeError(w, r, apperr.New(apperr.KindAuthorization, "only staff can manage rooms"))
		return
	}
	var req addSlotRequest
	if !s.decode(w, r, &req) {
		return
	}
	start, err := timeutil.ParseClock(req.StartTime)
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.KindValidation, err, "invalid start_time"))
		return
	}
	end, err := timeutil.ParseClock(req.EndTime)
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.KindValidation, err, "invalid end_time"))
		return
	}

	slot := &models.OperatingSlot{
		RoomID:      r.PathValue("id"),
		DayOfWeek:   req.DayOfWeek,
		StartMinute: start,
		EndMinute:   end,
	}
	if err := s.db.AddOperatingSlot(r.Context(), slot); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, slot)
}

type bookingRuleRequest struct {
	GracePeriodMinutes int `json:"grace_period_minutes"`
	MaxDurationMinutes int `json:"max_duration_minutes"`
	MaxAdvanceDays     int `json:"max_advance_days"`
}

func (s *Server) handleSetBookingRule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("set_booking_rule")
	if !actorFrom(r).Privileged() {
		s.writeError(w, r, apperr.New(apperr.KindAuthorization, "only staff can manage rooms"))
		return
	}
	var req bookingRuleRequest
	if !s.decode(w, r, &req) {
		return
	}

	rule := models.BookingRule{
		RoomID:             r.PathValue("id"),
		GracePeriodMinutes: req.GracePeriodMinutes,
		MaxDurationMinutes: req.MaxDurationMinutes,
		MaxAdvanceDays:     req.MaxAdvanceDays,
	}
	defaults := models.DefaultBookingRule(rule.RoomID)
	if rule.GracePeriodMinutes <= 0 {
		rule.GracePeriodMinutes = defaults.GracePeriodMinutes
	}
	if rule.MaxDurationMinutes <= 0 {
		rule.MaxDurationMinutes = defaults.MaxDurationMinutes
	}
	if rule.MaxAdvanceDays <= 0 {
		rule.MaxAdvanceDays = defaults.MaxAdvanceDays
	}

	if err := s.db.SetBookingRule(r.Context(), &rule); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rule)
}
