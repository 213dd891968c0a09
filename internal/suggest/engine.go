// Package suggest finds and scores alternative reservation slots. Scoring
// combines closeness to the requested time, an explicit weekday preference,
// historical demand, and how far in the future the candidate lies.
package suggest

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"roomspace/internal/models"
	"roomspace/internal/timeutil"
)

const (
	// TopTimes is returned by a standalone time query.
	TopTimes = 10
	// TopEmbedded is returned inside a validation response.
	TopEmbedded = 5
	// topSlotsPerRoom caps candidates attached to each room suggestion.
	topSlotsPerRoom = 3
	// forwardDays is how many extra days beyond the requested date are
	// scanned for a same-time-of-day candidate.
	forwardDays = 3
)

// Preference describes what the requester asked for.
type Preference struct {
	Date             timeutil.Date
	PreferredStart   int // minutes since midnight
	PreferredWeekday *int
	Duration         int // minutes
	RequiredCapacity int
}

// Slot is a scored candidate interval.
type Slot struct {
	Date        timeutil.Date `json:"date"`
	StartMinute int           `json:"-"`
	EndMinute   int           `json:"-"`
	StartTime   string        `json:"start_time"`
	EndTime     string        `json:"end_time"`
	Score       int           `json:"score"`
	Reason      string        `json:"reason"`
}

// RoomSuggestion ranks a room by its best candidate slot.
type RoomSuggestion struct {
	Room  models.Room `json:"room"`
	Score int         `json:"score"`
	Slots []Slot      `json:"available_slots"`
}

// Store is the subset of the reservation store the engine reads.
type Store interface {
	ListRooms(ctx context.Context, locationID string) ([]models.Room, error)
	SlotsForRoomDay(ctx context.Context, roomID string, dayOfWeek int) ([]models.OperatingSlot, error)
	ActiveReservationsForRoomDate(ctx context.Context, roomID string, date timeutil.Date, excludeID string) ([]models.Reservation, error)
}

// Engine computes slot and room suggestions.
type Engine struct {
	store  Store
	demand DemandSource
	clock  *timeutil.Clock
	logger zerolog.Logger
}

// NewEngine creates a suggestion engine.
func NewEngine(store Store, demand DemandSource, clock *timeutil.Clock, logger zerolog.Logger) *Engine {
	if demand == nil {
		demand = StaticDemand{}
	}
	return &Engine{
		store:  store,
		demand: demand,
		clock:  clock,
		logger: logger.With().Str("component", "suggest").Logger(),
	}
}

// SuggestTimes returns up to limit scored candidates for a room: gap
// candidates on the requested date, plus same-time-of-day candidates on the
// next three days.
func (e *Engine) SuggestTimes(ctx context.Context, roomID string, pref Preference, limit int) ([]Slot, error) {
	if pref.Duration <= 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = TopTimes
	}

	buckets, err := e.demand.Buckets(ctx)
	if err != nil {
		// The demand feed is advisory; score without it.
		e.logger.Warn().Err(err).Msg("demand feed unavailable, scoring without utilization")
		buckets = nil
	}
	maxUtil := 1.0
	for _, u := range buckets {
		if u > maxUtil {
			maxUtil = u
		}
	}

	var candidates []Slot

	// Day 0: every gap on the requested date that fits the duration.
	gaps, err := e.freeGaps(ctx, roomID, pref.Date, pref.Duration)
	if err != nil {
		return nil, err
	}
	for _, g := range gaps {
		candidates = append(candidates, e.score(pref, pref.Date, 0, g.start, buckets, maxUtil))
	}

	// Days 1..3: the requested time of day, when it is open and free.
	for offset := 1; offset <= forwardDays; offset++ {
		date := pref.Date.AddDays(offset)
		free, err := e.intervalFree(ctx, roomID, date, pref.PreferredStart, pref.PreferredStart+pref.Duration)
		if err != nil {
			return nil, err
		}
		if free {
			candidates = append(candidates, e.score(pref, date, offset, pref.PreferredStart, buckets, maxUtil))
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if !candidates[i].Date.Equal(candidates[j].Date) {
			return candidates[i].Date.Before(candidates[j].Date)
		}
		return candidates[i].StartMinute < candidates[j].StartMinute
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// SuggestRooms ranks a location's rooms by their best candidate slot,
// attaching each room's top three candidates.
func (e *Engine) SuggestRooms(ctx context.Context, locationID string, pref Preference) ([]RoomSuggestion, error) {
	rooms, err := e.store.ListRooms(ctx, locationID)
	if err != nil {
		return nil, err
	}

	var suggestions []RoomSuggestion
	for i := range rooms {
		room := rooms[i]
		if !room.Bookable() {
			continue
		}
		if pref.RequiredCapacity > 0 && room.Capacity < pref.RequiredCapacity {
			continue
		}

		slots, err := e.SuggestTimes(ctx, room.ID, pref, TopTimes)
		if err != nil {
			return nil, err
		}
		if len(slots) == 0 {
			continue
		}

		best := slots[0].Score
		if len(slots) > topSlotsPerRoom {
			slots = slots[:topSlotsPerRoom]
		}
		suggestions = append(suggestions, RoomSuggestion{Room: room, Score: best, Slots: slots})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	return suggestions, nil
}

type gap struct {
	start int
	end   int
}

// freeGaps subtracts a date's active reservations from its operating slots
// and keeps the gaps long enough for the requested duration.
func (e *Engine) freeGaps(ctx context.Context, roomID string, date timeutil.Date, duration int) ([]gap, error) {
	slots, err := e.store.SlotsForRoomDay(ctx, roomID, int(date.Weekday()))
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, nil
	}

	reservations, err := e.store.ActiveReservationsForRoomDate(ctx, roomID, date, "")
	if err != nil {
		return nil, err
	}

	var gaps []gap
	for _, slot := range slots {
		cursor := slot.StartMinute
		for _, res := range reservations {
			if !timeutil.Overlaps(res.StartMinute, res.EndMinute, slot.StartMinute, slot.EndMinute) {
				continue
			}
			if res.StartMinute > cursor && res.StartMinute-cursor >= duration {
				gaps = append(gaps, gap{start: cursor, end: res.StartMinute})
			}
			if res.EndMinute > cursor {
				cursor = res.EndMinute
			}
		}
		if slot.EndMinute > cursor && slot.EndMinute-cursor >= duration {
			gaps = append(gaps, gap{start: cursor, end: slot.EndMinute})
		}
	}
	return gaps, nil
}

// intervalFree reports whether [start, end) on date lies inside an operating
// slot and clears all active reservations.
func (e *Engine) intervalFree(ctx context.Context, roomID string, date timeutil.Date, start, end int) (bool, error) {
	slots, err := e.store.SlotsForRoomDay(ctx, roomID, int(date.Weekday()))
	if err != nil {
		return false, err
	}
	inside := false
	for _, s := range slots {
		if s.Contains(start, end) {
			inside = true
			break
		}
	}
	if !inside {
		return false, nil
	}

	reservations, err := e.store.ActiveReservationsForRoomDate(ctx, roomID, date, "")
	if err != nil {
		return false, err
	}
	for _, res := range reservations {
		if res.OverlapsInterval(start, end) {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) score(pref Preference, date timeutil.Date, dayOffset, start int, buckets map[Bucket]float64, maxUtil float64) Slot {
	score := 100.0

	hourDiff := math.Abs(float64(start-pref.PreferredStart)) / 60.0
	score -= hourDiff * 5

	weekday := int(date.Weekday())
	if pref.PreferredWeekday != nil && weekday == *pref.PreferredWeekday {
		score += 10
	}

	util := buckets[Bucket{Weekday: weekday, Hour: start / 60}]
	score += (1 - util/maxUtil) * 30

	score -= float64(dayOffset) * 2

	if score < 0 {
		score = 0
	}

	return Slot{
		Date:        date,
		StartMinute: start,
		EndMinute:   start + pref.Duration,
		StartTime:   timeutil.FormatClock(start),
		EndTime:     timeutil.FormatClock(start + pref.Duration),
		Score:       int(math.Round(score)),
		Reason:      e.reason(date, hourDiff, util, maxUtil),
	}
}

// reason picks one human-readable label per candidate, most specific first.
func (e *Engine) reason(date timeutil.Date, hourDiff, util, maxUtil float64) string {
	switch {
	case hourDiff < 1:
		return "Close to your preferred time"
	case util < maxUtil*0.3:
		return "Low demand"
	}

	today := e.clock.Today()
	switch today.DaysUntil(date) {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	default:
		return date.Weekday().String()
	}
}
