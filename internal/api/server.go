// Package api exposes the reservation engine over HTTP/JSON.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"roomspace/internal/access"
	"roomspace/internal/apperr"
	"roomspace/internal/availability"
	"roomspace/internal/database"
	"roomspace/internal/lifecycle"
	"roomspace/internal/metrics"
	"roomspace/internal/remind"
	"roomspace/internal/suggest"
	"roomspace/internal/sweep"
	"roomspace/internal/walkin"
)

// Server wires the engine's services into an http.Handler.
type Server struct {
	db        *database.DB
	detector  *availability.Detector
	suggester *suggest.Engine
	lifecycle *lifecycle.Service
	walkins   *walkin.Service
	sweeper   *sweep.Sweeper
	reminders *remind.Processor
	cronToken string
	logger    zerolog.Logger
}

// NewServer creates the API server. reminders may be nil when the reminder
// loop is disabled.
func NewServer(
	db *database.DB,
	detector *availability.Detector,
	suggester *suggest.Engine,
	lifecycleSvc *lifecycle.Service,
	walkins *walkin.Service,
	sweeper *sweep.Sweeper,
	reminders *remind.Processor,
	cronToken string,
	logger zerolog.Logger,
) *Server {
	return &Server{
		db:        db,
		detector:  detector,
		suggester: suggester,
		lifecycle: lifecycleSvc,
		walkins:   walkins,
		sweeper:   sweeper,
		reminders: reminders,
		cronToken: cronToken,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("PATCH /api/rooms/{id}/availability", s.handleSetRoomAvailability)
	mux.HandleFunc("POST /api/rooms/{id}/slots", s.handleAddOperatingSlot)
	mux.HandleFunc("PUT /api/rooms/{id}/rule", s.handleSetBookingRule)

	mux.HandleFunc("POST /api/reservations/validate", s.handleValidate)
	mux.HandleFunc("POST /api/reservations", s.handleCreateReservation)
	mux.HandleFunc("GET /api/reservations", s.handleListReservations)
	mux.HandleFunc("GET /api/reservations/{id}", s.handleGetReservation)
	mux.HandleFunc("PATCH /api/reservations/{id}", s.handleDecision)

	mux.HandleFunc("GET /api/checkin/{id}", s.handleCheckInStatus)
	mux.HandleFunc("POST /api/checkin", s.handleCheckIn)

	mux.HandleFunc("POST /api/suggestions/times", s.handleSuggestTimes)
	mux.HandleFunc("POST /api/suggestions/rooms", s.handleSuggestRooms)

	mux.HandleFunc("GET /api/walkins/available", s.handleWalkInAvailability)
	mux.HandleFunc("POST /api/walkins", s.handleCreateWalkIn)

	mux.HandleFunc("POST /api/cron/no-show", s.handleCronSweep)
	mux.HandleFunc("POST /api/cron/reminders", s.handleCronReminders)

	return mux
}

// actorFrom reads the caller identity forwarded by the authenticating
// gateway. Absent headers yield an anonymous patron.
func actorFrom(r *http.Request) access.Actor {
	return access.Actor{
		ID:   r.Header.Get("X-Actor-Id"),
		Role: access.ParseRole(r.Header.Get("X-Actor-Role")),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindPolicy:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict, apperr.KindState:
		return http.StatusConflict
	case apperr.KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps an engine error to a response. Structured detail (the
// conflicting reservation, alternatives, window bounds) is merged into the
// body next to the message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	status := statusFor(ae.Kind)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}

	body := map[string]any{"error": ae.Msg}
	for k, v := range ae.Detail {
		body[k] = v
	}
	s.writeJSON(w, status, body)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return false
	}
	return true
}

// cronAuthorized checks the bearer token on manual trigger endpoints.
func (s *Server) cronAuthorized(w http.ResponseWriter, r *http.Request) bool {
	if s.cronToken == "" {
		s.writeJSON(w, http.StatusForbidden, map[string]any{"error": "cron endpoints are disabled"})
		return false
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token != s.cronToken {
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid cron token"})
		return false
	}
	return true
}

func (s *Server) handleCronSweep(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cron_sweep")
	if !s.cronAuthorized(w, r) {
		return
	}
	stats, err := s.sweeper.RunNow(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCronReminders(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cron_reminders")
	if !s.cronAuthorized(w, r) {
		return
	}
	if s.reminders == nil {
		s.writeJSON(w, http.StatusConflict, map[string]any{"error": "reminders are disabled"})
		return
	}
	sent, err := s.reminders.RunNow(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sent": sent})
}
