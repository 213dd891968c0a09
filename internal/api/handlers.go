package api

import (
	"net/http"

	"roomspace/internal/apperr"
	"roomspace/internal/database"
	"roomspace/internal/lifecycle"
	"roomspace/internal/metrics"
	"roomspace/internal/models"
	"roomspace/internal/suggest"
	"roomspace/internal/timeutil"
	"roomspace/internal/walkin"
)

// intervalRequest is the common date/time shape of validation, creation, and
// suggestion requests. Times are "15:04" strings, dates "2006-01-02".
type intervalRequest struct {
	RoomID    string `json:"room_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (req *intervalRequest) parse() (timeutil.Date, int, int, error) {
	date, err := timeutil.ParseDate(req.Date)
	if err != nil {
		return timeutil.Date{}, 0, 0, apperr.Wrap(apperr.KindValidation, err, "invalid date")
	}
	start, err := timeutil.ParseClock(req.StartTime)
	if err != nil {
		return timeutil.Date{}, 0, 0, apperr.Wrap(apperr.KindValidation, err, "invalid start_time")
	}
	end, err := timeutil.ParseClock(req.EndTime)
	if err != nil {
		return timeutil.Date{}, 0, 0, apperr.Wrap(apperr.KindValidation, err, "invalid end_time")
	}
	return date, start, end, nil
}

type validateRequest struct {
	intervalRequest
	ExcludeReservationID string `json:"exclude_reservation_id,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("validate")
	var req validateRequest
	if !s.decode(w, r, &req) {
		return
	}
	date, start, end, err := req.parse()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.detector.Validate(r.Context(), req.RoomID, date, start, end, req.ExcludeReservationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type createReservationRequest struct {
	intervalRequest
	LocationID     string `json:"location_id"`
	ProgramTypeID  string `json:"program_type_id,omitempty"`
	RequesterName  string `json:"requester_name"`
	RequesterEmail string `json:"requester_email"`
	RequesterPhone string `json:"requester_phone,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_reservation")
	var req createReservationRequest
	if !s.decode(w, r, &req) {
		return
	}
	date, start, end, err := req.parse()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.lifecycle.Create(r.Context(), actorFrom(r), lifecycle.CreateRequest{
		RoomID:         req.RoomID,
		LocationID:     req.LocationID,
		ProgramTypeID:  req.ProgramTypeID,
		Date:           date,
		StartMinute:    start,
		EndMinute:      end,
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		RequesterPhone: req.RequesterPhone,
		Notes:          req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_reservations")
	q := r.URL.Query()

	filter := database.ReservationFilter{
		RoomID:     q.Get("room_id"),
		LocationID: q.Get("location_id"),
		Status:     models.ReservationStatus(q.Get("status")),
	}
	if v := q.Get("date_from"); v != "" {
		date, err := timeutil.ParseDate(v)
		if err != nil {
			s.writeError(w, r, apperr.Wrap(apperr.KindValidation, err, "invalid date_from"))
			return
		}
		filter.DateFrom = date
	}
	if v := q.Get("date_to"); v != "" {
		date, err := timeutil.ParseDate(v)
		if err != nil {
			s.writeError(w, r, apperr.Wrap(apperr.KindValidation, err, "invalid date_to"))
			return
		}
		filter.DateTo = date
	}

	reservations, err := s.db.ListReservations(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if reservations == nil {
		reservations = []models.Reservation{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

func (s *Server) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_reservation")
	res, err := s.db.GetReservation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type decisionRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservation_decision")
	var req decisionRequest
	if !s.decode(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	actor := actorFrom(r)

	var (
		res *models.Reservation
		err error
	)
	switch req.Action {
	case "approve":
		res, err = s.lifecycle.Approve(r.Context(), actor, id)
	case "decline":
		res, err = s.lifecycle.Decline(r.Context(), actor, id)
	case "cancel":
		res, err = s.lifecycle.Cancel(r.Context(), actor, id)
	case "no_show":
		res, err = s.lifecycle.MarkNoShow(r.Context(), actor, id)
	default:
		s.writeError(w, r, apperr.Newf(apperr.KindValidation, "unknown action %q", req.Action))
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCheckInStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("checkin_status")
	status, err := s.lifecycle.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

type checkInRequest struct {
	ReservationID string `json:"reservation_id"`
	Override      bool   `json:"override,omitempty"`
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("checkin")
	var req checkInRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ReservationID == "" {
		s.writeError(w, r, apperr.New(apperr.KindValidation, "reservation_id is required"))
		return
	}

	result, err := s.lifecycle.CheckIn(r.Context(), actorFrom(r), req.ReservationID, req.Override)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type suggestTimesRequest struct {
	RoomID           string `json:"room_id"`
	Date             string `json:"date"`
	PreferredStart   string `json:"preferred_start_time"`
	DurationMinutes  int    `json:"duration_minutes"`
	PreferredWeekday *int   `json:"preferred_weekday,omitempty"`
}

func (s *Server) handleSuggestTimes(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("suggest_times")
	var req suggestTimesRequest
	if !s.decode(w, r, &req) {
		return
	}

	date, err := timeutil.ParseDate(req.Date)
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.KindValidation, err, "invalid date"))
		return
	}
	start, err := timeutil.ParseClock(req.PreferredStart)
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.KindValidation, err, "invalid preferred_start_time"))
		return
	}
	if req.DurationMinutes <= 0 {
		s.writeError(w, r, apperr.New(apperr.KindValidation, "duration_minutes must be positive"))
		return
	}

	slots, err := s.suggester.SuggestTimes(r.Context(), req.RoomID, suggest.Preference{
		Date:             date,
		PreferredStart:   start,
		PreferredWeekday: req.PreferredWeekday,
		Duration:         req.DurationMinutes,
	}, suggest.TopTimes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if slots == nil {
		slots = []suggest.Slot{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"suggestions": slots})
}

type suggestRoomsRequest struct {
	LocationID       string `json:"location_id"`
	Date             string `json:"date"`
	PreferredStart   string `json:"preferred_start_time"`
	DurationMinutes  int    `json:"duration_minutes"`
	RequiredCapacity int    `json:"required_capacity,omitempty"`
	PreferredWeekday *int   `json:"preferred_weekday,omitempty"`
}

func (s *Server) handleSuggestRooms(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("suggest_rooms")
	var req suggestRoomsRequest
	if !s.decode(w, r, &req) {
		return
	}

	date, err := timeutil.ParseDate(req.Date)
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.KindValidation, err, "invalid date"))
		return
	}
	start, err := timeutil.ParseClock(req.PreferredStart)
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.KindValidation, err, "invalid preferred_start_time"))
		return
	}
	if req.DurationMinutes <= 0 {
		s.writeError(w, r, apperr.New(apperr.KindValidation, "duration_minutes must be positive"))
		return
	}

	suggestions, err := s.suggester.SuggestRooms(r.Context(), req.LocationID, suggest.Preference{
		Date:             date,
		PreferredStart:   start,
		PreferredWeekday: req.PreferredWeekday,
		Duration:         req.DurationMinutes,
		RequiredCapacity: req.RequiredCapacity,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if suggestions == nil {
		suggestions = []suggest.RoomSuggestion{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleWalkInAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("walkin_availability")
	rooms, err := s.walkins.AvailableNow(r.Context(), r.URL.Query().Get("location_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rooms == nil {
		rooms = []walkin.Availability{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

type createWalkInRequest struct {
	RoomID                string `json:"room_id"`
	ProgramTypeID         string `json:"program_type_id"`
	DurationMinutes       int    `json:"duration_minutes"`
	RequesterName         string `json:"requester_name"`
	RequesterEmail        string `json:"requester_email"`
	RequesterPhone        string `json:"requester_phone,omitempty"`
	Notes                 string `json:"notes,omitempty"`
	OriginalReservationID string `json:"original_reservation_id,omitempty"`
}

func (s *Server) handleCreateWalkIn(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_walkin")
	var req createWalkInRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.walkins.Create(r.Context(), actorFrom(r), walkin.CreateRequest{
		RoomID:                req.RoomID,
		ProgramTypeID:         req.ProgramTypeID,
		DurationMinutes:       req.DurationMinutes,
		RequesterName:         req.RequesterName,
		RequesterEmail:        req.RequesterEmail,
		RequesterPhone:        req.RequesterPhone,
		Notes:                 req.Notes,
		OriginalReservationID: req.OriginalReservationID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}
