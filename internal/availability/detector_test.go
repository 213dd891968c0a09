package availability

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomspace/internal/apperr"
	"roomspace/internal/models"
	"roomspace/internal/suggest"
	"roomspace/internal/timeutil"
)

type fakeStore struct {
	rooms        map[string]*models.Room
	rules        map[string]models.BookingRule
	slots        map[int][]models.OperatingSlot
	reservations map[string][]models.Reservation // "roomID|date"
}

func (f *fakeStore) GetRoom(_ context.Context, roomID string) (*models.Room, error) {
	if r, ok := f.rooms[roomID]; ok {
		return r, nil
	}
	return nil, apperr.Newf(apperr.KindNotFound, "room %s not found", roomID)
}

func (f *fakeStore) GetBookingRule(_ context.Context, roomID string) (models.BookingRule, error) {
	if r, ok := f.rules[roomID]; ok {
		return r, nil
	}
	return models.DefaultBookingRule(roomID), nil
}

func (f *fakeStore) SlotsForRoomDay(_ context.Context, roomID string, dayOfWeek int) ([]models.OperatingSlot, error) {
	var out []models.OperatingSlot
	for _, s := range f.slots[dayOfWeek] {
		s.RoomID = roomID
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) ListRooms(_ context.Context, locationID string) ([]models.Room, error) {
	var out []models.Room
	for _, r := range f.rooms {
		if locationID == "" || r.LocationID == locationID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveReservationsForRoomDate(_ context.Context, roomID string, date timeutil.Date, excludeID string) ([]models.Reservation, error) {
	var out []models.Reservation
	for _, r := range f.reservations[roomID+"|"+date.String()] {
		if r.ID != excludeID && r.Active() {
			out = append(out, r)
		}
	}
	return out, nil
}

// Monday 2026-03-16 09:00 in a fixed zone.
func fixture(t *testing.T) (*Detector, *fakeStore, timeutil.Date) {
	t.Helper()
	clock := timeutil.NewFixedClock(time.Date(2026, time.March, 16, 9, 0, 0, 0, time.UTC))

	store := &fakeStore{
		rooms: map[string]*models.Room{
			"room-a": {ID: "room-a", LocationID: "loc-1", Capacity: 4, Active: true, Availability: models.RoomAvailable},
		},
		rules: map[string]models.BookingRule{},
		slots: map[int][]models.OperatingSlot{},
		reservations: map[string][]models.Reservation{},
	}
	for d := 0; d < 7; d++ {
		store.slots[d] = []models.OperatingSlot{{DayOfWeek: d, StartMinute: 540, EndMinute: 1020}} // 09:00-17:00
	}

	engine := suggest.NewEngine(store, suggest.StaticDemand{}, clock, zerolog.Nop())
	return NewDetector(store, engine, clock, zerolog.Nop()), store, timeutil.NewDate(2026, time.March, 16)
}

func TestValidateEmptyRoom(t *testing.T) {
	detector, _, monday := fixture(t)

	result, err := detector.Validate(context.Background(), "room-a", monday, 600, 660, "")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Reason)
	assert.Nil(t, result.Conflict)
}

func TestValidateConflictWithAlternatives(t *testing.T) {
	detector, store, monday := fixture(t)
	store.reservations["room-a|"+monday.String()] = []models.Reservation{{
		ID: "existing", RoomID: "room-a", Date: monday,
		StartMinute: 600, EndMinute: 660, // 10:00-11:00
		Status: models.StatusApproved, CheckInStatus: models.CheckInNone,
		RequesterName: "Ada",
	}}

	result, err := detector.Validate(context.Background(), "room-a", monday, 630, 690, "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "Time slot conflicts with an existing reservation", result.Reason)

	require.NotNil(t, result.Conflict)
	assert.Equal(t, "existing", result.Conflict.ID)
	assert.Equal(t, "10:00", result.Conflict.StartTime)
	assert.Equal(t, "11:00", result.Conflict.EndTime)

	require.NotEmpty(t, result.Alternatives)
	assert.LessOrEqual(t, len(result.Alternatives), suggest.TopEmbedded)
	top := result.Alternatives[0]
	assert.Equal(t, "11:00", top.StartTime)
	assert.Equal(t, "12:00", top.EndTime)
	assert.Equal(t, "Close to your preferred time", top.Reason)
}

func TestValidateExcludeID(t *testing.T) {
	detector, store, monday := fixture(t)
	store.reservations["room-a|"+monday.String()] = []models.Reservation{{
		ID: "mine", RoomID: "room-a", Date: monday,
		StartMinute: 600, EndMinute: 660,
		Status: models.StatusApproved, CheckInStatus: models.CheckInNone,
	}}

	// Revalidating an edit against itself passes.
	result, err := detector.Validate(context.Background(), "room-a", monday, 600, 690, "mine")
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateReleasedReservationDoesNotConflict(t *testing.T) {
	detector, store, monday := fixture(t)
	store.reservations["room-a|"+monday.String()] = []models.Reservation{{
		ID: "released", RoomID: "room-a", Date: monday,
		StartMinute: 600, EndMinute: 660,
		Status: models.StatusApproved, CheckInStatus: models.CheckInReleased,
	}}

	result, err := detector.Validate(context.Background(), "room-a", monday, 600, 660, "")
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateOutsideOperatingHours(t *testing.T) {
	detector, _, monday := fixture(t)

	result, err := detector.Validate(context.Background(), "room-a", monday, 480, 600, "") // opens 09:00
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "Room not available at this time", result.Reason)
}

func TestValidateRoomUnavailable(t *testing.T) {
	detector, store, monday := fixture(t)
	store.rooms["room-a"].Availability = models.RoomMaintenance

	result, err := detector.Validate(context.Background(), "room-a", monday, 600, 660, "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "Room is currently maintenance", result.Reason)
	assert.Empty(t, result.Alternatives)
}

func TestValidateDurationLimit(t *testing.T) {
	detector, store, monday := fixture(t)
	store.rules["room-a"] = models.BookingRule{
		RoomID: "room-a", GracePeriodMinutes: 15, MaxDurationMinutes: 60, MaxAdvanceDays: 30,
	}

	result, err := detector.Validate(context.Background(), "room-a", monday, 600, 690, "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "Maximum booking duration is 60 minutes", result.Reason)
}

func TestValidatePastDate(t *testing.T) {
	detector, _, monday := fixture(t)

	result, err := detector.Validate(context.Background(), "room-a", monday.AddDays(-1), 600, 660, "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "Cannot book dates in the past", result.Reason)
}

func TestValidateAdvanceLimit(t *testing.T) {
	detector, _, monday := fixture(t)

	result, err := detector.Validate(context.Background(), "room-a", monday.AddDays(31), 600, 660, "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "Bookings can only be made up to 30 days in advance", result.Reason)
}

func TestValidateRejectsInvertedInterval(t *testing.T) {
	detector, _, monday := fixture(t)

	_, err := detector.Validate(context.Background(), "room-a", monday, 660, 600, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestValidateUnknownRoom(t *testing.T) {
	detector, _, monday := fixture(t)

	_, err := detector.Validate(context.Background(), "ghost", monday, 600, 660, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
