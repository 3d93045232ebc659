package models

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestBestSpeedPicksLowestTier(t *testing.T) {
	strip := &RoadStrip{
		ID: 7,
		ToEnd: NewSpeedSet(
			Speed{Direction: DirectionToEnd, Quality: QualityAllHistory, Value: 80},
			Speed{Direction: DirectionToEnd, Quality: QualityUpToDate, Value: 20},
			Speed{Direction: DirectionToEnd, Quality: QualitySameWeekday, Value: 60},
		),
		ToStart: NewSpeedSet(
			Speed{Direction: DirectionToStart, Quality: QualitySameWeekday, Value: 45},
		),
	}

	assert.Equal(t, 20, strip.BestSpeed(DirectionToEnd).Value)
	assert.Equal(t, 45, strip.BestSpeed(DirectionToStart).Value)
	assert.Equal(t, QualityUpToDate, strip.BestSpeed(DirectionUnknown).Quality)
}

func TestBestSpeedRandomTiers(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tiers := []Quality{QualityUpToDate, QualitySameWeekday, QualityAllHistory}

	for i := 0; i < 200; i++ {
		var speeds []Speed
		lowest := QualityAllHistory + 1
		for _, q := range tiers {
			if rng.Intn(2) == 0 {
				continue
			}
			speeds = append(speeds, Speed{Direction: DirectionToStart, Quality: q, Value: rng.Intn(130)})
			if q < lowest {
				lowest = q
			}
		}
		rng.Shuffle(len(speeds), func(a, b int) { speeds[a], speeds[b] = speeds[b], speeds[a] })

		strip := &RoadStrip{ToStart: NewSpeedSet(speeds...)}
		got := strip.BestSpeed(DirectionToStart)
		if len(speeds) == 0 {
			assert.True(t, got.NoData)
			continue
		}
		assert.Equal(t, lowest, got.Quality)
	}
}

func TestBestSpeedUnknownDirectionTieGoesToEnd(t *testing.T) {
	strip := &RoadStrip{
		ToStart: NewSpeedSet(Speed{Direction: DirectionToStart, Quality: QualitySameWeekday, Value: 10}),
		ToEnd:   NewSpeedSet(Speed{Direction: DirectionToEnd, Quality: QualitySameWeekday, Value: 90}),
	}
	assert.Equal(t, 90, strip.BestSpeed(DirectionUnknown).Value)

	strip.ToStart = NewSpeedSet(Speed{Direction: DirectionToStart, Quality: QualityUpToDate, Value: 10})
	assert.Equal(t, 10, strip.BestSpeed(DirectionUnknown).Value)
}

func TestBestSpeedFallbacks(t *testing.T) {
	strip := &RoadStrip{ID: 3, Road: &Road{MaxSpeed: intPtr(50)}}

	limit := strip.BestSpeed(DirectionToEnd)
	assert.Equal(t, QualityLimit, limit.Quality)
	assert.Equal(t, 50, limit.Value)
	assert.False(t, limit.NoData)

	strip.Road.MaxSpeed = nil
	none := strip.BestSpeed(DirectionToEnd)
	assert.True(t, none.NoData)
	assert.Equal(t, -1, none.Value)
	assert.Equal(t, int64(3), none.StripID)
}

func TestBestSpeedIgnoresOtherDirection(t *testing.T) {
	strip := &RoadStrip{
		Road:  &Road{MaxSpeed: intPtr(100)},
		ToEnd: NewSpeedSet(Speed{Direction: DirectionToEnd, Quality: QualityUpToDate, Value: 5}),
	}
	assert.Equal(t, 100, strip.BestSpeed(DirectionToStart).Value)
}

func TestRoadLimitState(t *testing.T) {
	fixed, inferred := false, true

	assert.False(t, (&Road{}).LimitFixed())
	assert.False(t, (&Road{Calculated: &inferred}).LimitFixed())
	assert.True(t, (&Road{Calculated: &fixed}).LimitFixed())
}

func TestDirectionFlags(t *testing.T) {
	yes, no := true, false

	assert.Equal(t, DirectionToStart, DirectionFromFlags(&yes, &no))
	assert.Equal(t, DirectionToEnd, DirectionFromFlags(&no, &yes))
	assert.Equal(t, DirectionUnknown, DirectionFromFlags(&yes, &yes))
	assert.Equal(t, DirectionUnknown, DirectionFromFlags(nil, nil))

	for _, d := range []Direction{DirectionToStart, DirectionToEnd, DirectionUnknown} {
		s, e := d.Flags()
		assert.Equal(t, d, DirectionFromFlags(&s, &e))
	}

	_, err := DirectionUnknown.Column()
	assert.Error(t, err)
}

func TestClientState(t *testing.T) {
	now := time.UnixMilli(1_000_000)

	var missing *Client
	assert.Equal(t, SessionUnknown, missing.State(now))

	c := &Client{LeaseMs: now.UnixMilli() + 1000}
	assert.Equal(t, SessionPendingAck, c.State(now))

	c.Acknowledged = true
	assert.Equal(t, SessionActive, c.State(now))

	c.LeaseMs = now.UnixMilli() - 1
	assert.Equal(t, SessionExpired, c.State(now))
}
