package suggest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomspace/internal/models"
	"roomspace/internal/timeutil"
)

// fakeStore serves rooms, weekly slots, and per-date reservations from maps.
type fakeStore struct {
	rooms        []models.Room
	slots        map[int][]models.OperatingSlot // weekday -> slots (all rooms share)
	reservations map[string][]models.Reservation // "roomID|date" -> reservations
}

func (f *fakeStore) ListRooms(_ context.Context, locationID string) ([]models.Room, error) {
	var out []models.Room
	for _, r := range f.rooms {
		if locationID == "" || r.LocationID == locationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) SlotsForRoomDay(_ context.Context, roomID string, dayOfWeek int) ([]models.OperatingSlot, error) {
	var out []models.OperatingSlot
	for _, s := range f.slots[dayOfWeek] {
		s.RoomID = roomID
		out = append(out, s)
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

func testClock(t *testing.T) *timeutil.Clock {
	t.Helper()
	// Monday 2026-03-16 09:00.
	return timeutil.NewFixedClock(time.Date(2026, time.March, 16, 9, 0, 0, 0, time.UTC))
}

func allWeekdays(start, end int) map[int][]models.OperatingSlot {
	slots := make(map[int][]models.OperatingSlot)
	for d := 0; d < 7; d++ {
		slots[d] = []models.OperatingSlot{{DayOfWeek: d, StartMinute: start, EndMinute: end}}
	}
	return slots
}

func TestSuggestTimesAroundConflict(t *testing.T) {
	monday := timeutil.NewDate(2026, time.March, 16)
	store := &fakeStore{
		slots: allWeekdays(540, 1020), // 09:00-17:00
		reservations: map[string][]models.Reservation{
			"room-a|" + monday.String(): {{
				ID: "busy", RoomID: "room-a", Date: monday,
				StartMinute: 600, EndMinute: 660, // 10:00-11:00
				Status: models.StatusApproved, CheckInStatus: models.CheckInNone,
			}},
		},
	}
	engine := NewEngine(store, StaticDemand{}, testClock(t), testLogger())

	slots, err := engine.SuggestTimes(context.Background(), "room-a", Preference{
		Date:           monday,
		PreferredStart: 630, // 10:30
		Duration:       60,
	}, TopTimes)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	// 11:00 is only half an hour from the preferred start and outranks
	// everything else.
	top := slots[0]
	assert.Equal(t, "11:00", top.StartTime)
	assert.Equal(t, "12:00", top.EndTime)
	assert.Equal(t, monday, top.Date)
	assert.Equal(t, "Close to your preferred time", top.Reason)

	// The conflicting interval itself is never offered.
	for _, s := range slots {
		if s.Date.Equal(monday) {
			assert.False(t, timeutil.Overlaps(s.StartMinute, s.EndMinute, 600, 660),
				"suggested %s-%s overlaps the existing reservation", s.StartTime, s.EndTime)
		}
	}

	// Scores are sorted descending.
	for i := 1; i < len(slots); i++ {
		assert.GreaterOrEqual(t, slots[i-1].Score, slots[i].Score)
	}
}

func TestSuggestTimesHonorsDuration(t *testing.T) {
	monday := timeutil.NewDate(2026, time.March, 16)
	store := &fakeStore{
		slots: allWeekdays(540, 660), // 09:00-11:00 only
		reservations: map[string][]models.Reservation{
			"room-a|" + monday.String(): {{
				ID: "busy", RoomID: "room-a", Date: monday,
				StartMinute: 540, EndMinute: 600,
				Status: models.StatusApproved, CheckInStatus: models.CheckInNone,
			}},
		},
	}
	engine := NewEngine(store, StaticDemand{}, testClock(t), testLogger())

	// Only a 60-minute gap remains on Monday; a 90-minute request cannot
	// land on it.
	slots, err := engine.SuggestTimes(context.Background(), "room-a", Preference{
		Date:           monday,
		PreferredStart: 540,
		Duration:       90,
	}, TopTimes)
	require.NoError(t, err)
	for _, s := range slots {
		assert.False(t, s.Date.Equal(monday), "no Monday gap fits 90 minutes, got %s", s.StartTime)
		assert.Equal(t, 90, s.EndMinute-s.StartMinute)
	}
}

func TestSuggestTimesGapsAreSlotScoped(t *testing.T) {
	monday := timeutil.NewDate(2026, time.March, 16)
	slots := make(map[int][]models.OperatingSlot)
	for d := 0; d < 7; d++ {
		slots[d] = []models.OperatingSlot{
			{DayOfWeek: d, StartMinute: 540, EndMinute: 660},  // 09:00-11:00
			{DayOfWeek: d, StartMinute: 660, EndMinute: 1020}, // 11:00-17:00
		}
	}
	store := &fakeStore{
		slots: slots,
		reservations: map[string][]models.Reservation{
			"room-a|" + monday.String(): {{
				ID: "busy", RoomID: "room-a", Date: monday,
				StartMinute: 600, EndMinute: 660, // ends exactly at the slot boundary
				Status: models.StatusApproved, CheckInStatus: models.CheckInNone,
			}},
		},
	}
	engine := NewEngine(store, StaticDemand{}, testClock(t), testLogger())

	suggestions, err := engine.SuggestTimes(context.Background(), "room-a", Preference{
		Date:           monday,
		PreferredStart: 660,
		Duration:       60,
	}, TopTimes)
	require.NoError(t, err)

	// The reservation only touches the second slot's boundary, so the full
	// 11:00 gap survives.
	var starts []string
	for _, s := range suggestions {
		if s.Date.Equal(monday) {
			starts = append(starts, s.StartTime)
		}
	}
	assert.Contains(t, starts, "11:00")
}

func TestSuggestTimesForwardDays(t *testing.T) {
	monday := timeutil.NewDate(2026, time.March, 16)
	store := &fakeStore{slots: allWeekdays(540, 1020)}
	engine := NewEngine(store, StaticDemand{}, testClock(t), testLogger())

	slots, err := engine.SuggestTimes(context.Background(), "room-a", Preference{
		Date:           monday,
		PreferredStart: 600,
		Duration:       60,
	}, TopTimes)
	require.NoError(t, err)

	sawForward := map[string]bool{}
	for _, s := range slots {
		if !s.Date.Equal(monday) {
			sawForward[s.Date.String()] = true
			assert.Equal(t, "10:00", s.StartTime, "forward-day candidates keep the preferred time")
		}
	}
	assert.Len(t, sawForward, 3, "one candidate per forward day")
}

func TestSuggestTimesWeekdayPreference(t *testing.T) {
	monday := timeutil.NewDate(2026, time.March, 16)
	store := &fakeStore{slots: allWeekdays(540, 1020)}
	engine := NewEngine(store, StaticDemand{}, testClock(t), testLogger())

	wednesday := 3
	slots, err := engine.SuggestTimes(context.Background(), "room-a", Preference{
		Date:             monday,
		PreferredStart:   600,
		Duration:         60,
		PreferredWeekday: &wednesday,
	}, TopTimes)
	require.NoError(t, err)

	var tueScore, wedScore int
	for _, s := range slots {
		switch s.Date.String() {
		case "2026-03-17":
			tueScore = s.Score
		case "2026-03-18":
			wedScore = s.Score
		}
	}
	require.NotZero(t, tueScore)
	require.NotZero(t, wedScore)
	// +10 weekday bonus beats the -2/day future penalty.
	assert.Greater(t, wedScore, tueScore)
}

func TestSuggestTimesDemandAffectsReason(t *testing.T) {
	monday := timeutil.NewDate(2026, time.March, 16)
	store := &fakeStore{
		slots: allWeekdays(540, 1020),
		reservations: map[string][]models.Reservation{
			"room-a|" + monday.String(): {{
				ID: "busy", RoomID: "room-a", Date: monday,
				StartMinute: 600, EndMinute: 660, // 10:00-11:00
				Status: models.StatusApproved, CheckInStatus: models.CheckInNone,
			}},
		},
	}
	demand := StaticDemand{}
	for d := 0; d < 7; d++ {
		for h := 9; h < 17; h++ {
			demand[Bucket{Weekday: d, Hour: h}] = 10
		}
	}
	// Monday 11:00 is quiet.
	demand[Bucket{Weekday: 1, Hour: 11}] = 1

	engine := NewEngine(store, demand, testClock(t), testLogger())
	slots, err := engine.SuggestTimes(context.Background(), "room-a", Preference{
		Date:           monday,
		PreferredStart: 600, // 10:00, so both Monday gaps are a full hour away
		Duration:       60,
	}, TopTimes)
	require.NoError(t, err)

	reasons := map[string]string{}
	for _, s := range slots {
		if s.Date.Equal(monday) {
			reasons[s.StartTime] = s.Reason
		}
	}
	assert.Equal(t, "Low demand", reasons["11:00"])
	assert.Equal(t, "Today", reasons["09:00"])
}

func TestSuggestRooms(t *testing.T) {
	monday := timeutil.NewDate(2026, time.March, 16)
	store := &fakeStore{
		rooms: []models.Room{
			{ID: "small", LocationID: "loc-1", Capacity: 2, Active: true, Availability: models.RoomAvailable},
			{ID: "big", LocationID: "loc-1", Capacity: 10, Active: true, Availability: models.RoomAvailable},
			{ID: "closed", LocationID: "loc-1", Capacity: 10, Active: true, Availability: models.RoomMaintenance},
			{ID: "elsewhere", LocationID: "loc-2", Capacity: 10, Active: true, Availability: models.RoomAvailable},
		},
		slots: allWeekdays(540, 1020),
	}
	engine := NewEngine(store, StaticDemand{}, testClock(t), testLogger())

	suggestions, err := engine.SuggestRooms(context.Background(), "loc-1", Preference{
		Date:             monday,
		PreferredStart:   600,
		Duration:         60,
		RequiredCapacity: 5,
	})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "big", suggestions[0].Room.ID)
	assert.LessOrEqual(t, len(suggestions[0].Slots), 3)
	assert.Equal(t, suggestions[0].Slots[0].Score, suggestions[0].Score)
}
