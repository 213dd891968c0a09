package suggest

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestRedisDemandBuckets(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	mr.HSet(demandKey, "1-10", "4.5")
	mr.HSet(demandKey, "1-11", "2")
	mr.HSet(demandKey, "garbage", "1")    // malformed field, skipped
	mr.HSet(demandKey, "2-9", "not-a-number") // malformed value, skipped

	source := NewRedisDemand(client)
	buckets, err := source.Buckets(context.Background())
	require.NoError(t, err)

	assert.Len(t, buckets, 2)
	assert.Equal(t, 4.5, buckets[Bucket{Weekday: 1, Hour: 10}])
	assert.Equal(t, 2.0, buckets[Bucket{Weekday: 1, Hour: 11}])
}

func TestRedisDemandEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	buckets, err := NewRedisDemand(client).Buckets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

func TestEngineSurvivesDemandFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close() // every subsequent call errors

	store := &fakeStore{slots: allWeekdays(540, 1020)}
	engine := NewEngine(store, NewRedisDemand(client), testClock(t), testLogger())

	slots, err := engine.SuggestTimes(context.Background(), "room-a", Preference{
		Date:           testClock(t).Today(),
		PreferredStart: 600,
		Duration:       60,
	}, TopTimes)
	require.NoError(t, err, "a dead demand feed must not fail suggestions")
	assert.NotEmpty(t, slots)
}
