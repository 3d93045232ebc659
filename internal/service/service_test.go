package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/protocol"
	"github.com/jengzang/traffic-backend-go/internal/repository"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
	"github.com/jengzang/traffic-backend-go/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	stripStart = spatial.Point{Lat: 48.1, Lon: 11.5}
	stripEnd   = spatial.Point{Lat: 48.1, Lon: 11.51}
	nearStrip  = spatial.Point{Lat: 48.1002, Lon: 11.505}
	farAway    = spatial.Point{Lat: 48.2, Lon: 11.7}
)

type fixture struct {
	svc       *Services
	store     *repository.Store
	router    *testutil.FakeRouter
	publisher *testutil.Publisher
	client    *models.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := testutil.NewStore(t)
	fake, rt := testutil.NewFakeRouter(t, stripStart, stripEnd)
	pub := &testutil.Publisher{}
	svc := New(store, rt, pub, Options{
		SnapRadius:           80,
		CongestionSnapRadius: 80,
		LeaseDuration:        86399 * time.Second,
		Now:                  testutil.FixedClock(testNow),
	})

	return &fixture{
		svc:       svc,
		store:     store,
		router:    fake,
		publisher: pub,
		client:    testutil.SeedClient(t, store, "tok", testNow.Add(time.Hour).UnixMilli()),
	}
}

func TestIdentify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.svc.Sessions.Identify(ctx, "abc")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), s.Token)
	assert.Equal(t, testNow.UnixMilli()+86_399_000, s.Lease)

	client, err := f.store.Clients.GetByToken(ctx, s.Token)
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "abc", client.Device)
	assert.Equal(t, models.SessionPendingAck, client.State(testNow))

	require.NoError(t, f.svc.Sessions.Acknowledge(ctx, client))
	client, err = f.store.Clients.GetByToken(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, client.State(testNow))
}

func TestIdentifyNeverReusesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// same device at the same instant must still get distinct tokens
	first, err := f.svc.Sessions.Identify(ctx, "abc")
	require.NoError(t, err)
	second, err := f.svc.Sessions.Identify(ctx, "abc")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)
}

func TestIdentifyWithoutDevice(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Sessions.Identify(context.Background(), "")
	assert.ErrorIs(t, err, protocol.ErrValidation)
	assert.Equal(t, "device id not found", protocol.Message(err))
}

func TestRefreshMovesLeaseForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	oldToken, oldLease := f.client.Token, f.client.LeaseMs
	s, err := f.svc.Sessions.Refresh(ctx, f.client, "abc")
	require.NoError(t, err)

	assert.NotEqual(t, oldToken, s.Token)
	assert.Greater(t, s.Lease, oldLease)

	_, err = f.svc.Sessions.Resolve(ctx, oldToken)
	assert.ErrorIs(t, err, protocol.ErrSession)

	resolved, err := f.svc.Sessions.Resolve(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, f.client.ID, resolved.ID)
}

func TestRefreshNeverShortensLease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// a lease already beyond now + duration still moves forward
	far := testutil.SeedClient(t, f.store, "far", testNow.Add(72*time.Hour).UnixMilli())
	s, err := f.svc.Sessions.Refresh(ctx, far, "abc")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(72*time.Hour).UnixMilli()+1, s.Lease)
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedClient(t, f.store, "expired", testNow.Add(-time.Second).UnixMilli())

	for _, token := range []string{"", "unknown", "expired"} {
		_, err := f.svc.Sessions.Resolve(ctx, token)
		assert.ErrorIs(t, err, protocol.ErrSession, token)
		assert.Equal(t, protocol.MsgNoSession, protocol.Message(err))
	}

	// resolving never deletes
	expired, err := f.store.Clients.GetByToken(ctx, "expired")
	require.NoError(t, err)
	assert.NotNil(t, expired)

	client, err := f.svc.Sessions.Resolve(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, f.client.ID, client.ID)
}

func TestUpdateWithoutStrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedStrip(t, f.store, "Leopoldstraße", testutil.IntPtr(50), stripStart, stripEnd)

	res, err := f.svc.Traffic.Update(ctx, f.client, UpdateInput{
		Position: farAway, TimeMs: testNow.UnixMilli(), Speed: 30, Detail: 3, Save: true,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Traffic)
	assert.NotNil(t, res.Traffic)
	assert.False(t, res.Routing)

	// stored unsnapped, left for cleanup
	n, err := f.store.UserData.DeleteUnsnapped(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUpdateReportsStripAndNeighbours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	strip := testutil.SeedStrip(t, f.store, "Leopoldstraße", testutil.IntPtr(50), stripStart, stripEnd)
	next := testutil.SeedStrip(t, f.store, "Ungererstraße", nil, stripEnd, spatial.Point{Lat: 48.11, Lon: 11.51})
	testutil.SeedSpeed(t, f.store, strip.ID, models.DirectionToEnd, models.QualityAllHistory, 42)
	testutil.SeedSpeed(t, f.store, strip.ID, models.DirectionToEnd, models.QualityUpToDate, 17)

	_, err := f.svc.Congestions.Report(ctx, models.CongestionCrash, nearStrip, testNow.UnixMilli())
	require.NoError(t, err)

	tests := []struct {
		detail int
		want   []int64
	}{
		{DetailStrip, []int64{strip.ID}},
		{DetailTouching, []int64{strip.ID, next.ID}},
		{3, []int64{strip.ID, next.ID}},
	}

	for _, tt := range tests {
		res, err := f.svc.Traffic.Update(ctx, f.client, UpdateInput{
			Position: nearStrip, TimeMs: testNow.UnixMilli(), Speed: 20, Detail: tt.detail,
		})
		require.NoError(t, err)

		var ids []int64
		for _, r := range res.Traffic {
			ids = append(ids, r.StripID)
		}
		assert.Equal(t, tt.want, ids, "detail %d", tt.detail)

		first := res.Traffic[0]
		assert.Equal(t, 50, first.MaxSpeed)
		// no previous sample: both directions considered
		assert.Equal(t, 17, first.Speed.Value)
		assert.Equal(t, models.QualityUpToDate, first.Speed.Quality)

		require.Len(t, res.Congestions, 1)
		assert.Equal(t, models.CongestionCrash, res.Congestions[0].Type)
	}

	res, err := f.svc.Traffic.Update(ctx, f.client, UpdateInput{Position: nearStrip, TimeMs: 1, Detail: DetailTouching})
	require.NoError(t, err)
	neighbour := res.Traffic[1]
	assert.Equal(t, 0, neighbour.MaxSpeed)
	assert.True(t, neighbour.Speed.NoData)
}

func TestUpdateUsesPreviousSampleForDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	strip := testutil.SeedStrip(t, f.store, "Leopoldstraße", testutil.IntPtr(50), stripStart, stripEnd)
	testutil.SeedSpeed(t, f.store, strip.ID, models.DirectionToStart, models.QualityUpToDate, 11)
	testutil.SeedSpeed(t, f.store, strip.ID, models.DirectionToEnd, models.QualityUpToDate, 44)

	first := spatial.Point{Lat: 48.1001, Lon: 11.502}
	_, err := f.svc.Traffic.Update(ctx, f.client, UpdateInput{Position: first, TimeMs: 1000, Speed: 40, Detail: DetailStrip, Save: true})
	require.NoError(t, err)

	// moving away from the start: toward the end
	res, err := f.svc.Traffic.Update(ctx, f.client, UpdateInput{Position: nearStrip, TimeMs: 2000, Speed: 40, Detail: DetailStrip, Save: true})
	require.NoError(t, err)
	assert.Equal(t, 44, res.Traffic[0].Speed.Value)

	// back toward the start
	res, err = f.svc.Traffic.Update(ctx, f.client, UpdateInput{Position: first, TimeMs: 3000, Speed: 40, Detail: DetailStrip})
	require.NoError(t, err)
	assert.Equal(t, 11, res.Traffic[0].Speed.Value)
}

func TestCongestionReportIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strip := testutil.SeedStrip(t, f.store, "Leopoldstraße", testutil.IntPtr(50), stripStart, stripEnd)

	stored, err := f.svc.Congestions.Report(ctx, models.CongestionJam, nearStrip, testNow.UnixMilli())
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = f.svc.Congestions.Report(ctx, models.CongestionJam, nearStrip, testNow.UnixMilli()+5000)
	require.NoError(t, err)
	assert.False(t, stored)

	congestions, err := f.store.Congestions.ForStrips(ctx, []int64{strip.ID})
	require.NoError(t, err)
	require.Len(t, congestions, 1)
	assert.Equal(t, models.CongestionJam, congestions[0].Type)
	assert.Len(t, f.publisher.Congestions, 1)
}

func TestConcurrentCongestionReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strip := testutil.SeedStrip(t, f.store, "Leopoldstraße", testutil.IntPtr(50), stripStart, stripEnd)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Congestions.Report(ctx, models.CongestionJam, nearStrip, testNow.UnixMilli())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	congestions, err := f.store.Congestions.ForStrips(ctx, []int64{strip.ID})
	require.NoError(t, err)
	assert.Len(t, congestions, 1)
}

func TestCongestionReportEdgeCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedStrip(t, f.store, "Leopoldstraße", testutil.IntPtr(50), stripStart, stripEnd)

	_, err := f.svc.Congestions.Report(ctx, models.CongestionType(42), nearStrip, 0)
	assert.ErrorIs(t, err, protocol.ErrValidation)

	stored, err := f.svc.Congestions.Report(ctx, models.CongestionJam, farAway, 0)
	require.NoError(t, err)
	assert.False(t, stored)

	// another type on the same strip is a separate congestion
	_, err = f.svc.Congestions.Report(ctx, models.CongestionJam, nearStrip, 0)
	require.NoError(t, err)
	stored, err = f.svc.Congestions.Report(ctx, models.CongestionIce, nearStrip, 0)
	require.NoError(t, err)
	assert.True(t, stored)

	require.NoError(t, f.svc.Congestions.Delete(ctx, f.publisher.Congestions[0].ID))
	require.NoError(t, f.svc.Congestions.Delete(ctx, 9999))
}

func TestCalculateRouteBlocksJammedStrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	jammed := testutil.SeedStrip(t, f.store, "Leopoldstraße", testutil.IntPtr(50), stripStart, stripEnd)
	testutil.SeedSpeed(t, f.store, jammed.ID, models.DirectionToEnd, models.QualityUpToDate, 10)
	free := testutil.SeedStrip(t, f.store, "Ludwigstraße", testutil.IntPtr(50),
		spatial.Point{Lat: 48.105, Lon: 11.5}, spatial.Point{Lat: 48.105, Lon: 11.51})
	testutil.SeedSpeed(t, f.store, free.ID, models.DirectionToEnd, models.QualityUpToDate, 48)

	waypoints := []spatial.Point{{Lat: 48.09, Lon: 11.49}, {Lat: 48.11, Lon: 11.52}}
	route, err := f.svc.Routes.Calculate(ctx, f.client, waypoints)
	require.NoError(t, err)

	assert.Equal(t, []string{"48.1,11.5", "48.1,11.51"}, f.router.Blocked())
	assert.True(t, route.Updated)
	assert.Contains(t, route.ProviderQuery, "48.09,11.49,48.11,11.52/car.js?tId=CloudMade")
	assert.NotContains(t, route.ProviderQuery, "blockedRoad")
	assert.Equal(t, []int64{route.ID}, f.publisher.Routes)
}

func TestCalculateRouteFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Routes.Calculate(ctx, f.client, []spatial.Point{stripStart})
	assert.Equal(t, protocol.MsgNothingToRoute, protocol.Message(err))
	assert.Zero(t, f.router.Calls())

	f.router.SetWay()
	_, err = f.svc.Routes.Calculate(ctx, f.client, []spatial.Point{stripStart, stripEnd})
	assert.ErrorIs(t, err, protocol.ErrUpstream)
	assert.Equal(t, protocol.MsgNothingToRoute, protocol.Message(err))

	route, err := f.store.Routes.GetByClient(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Nil(t, route)
}

func TestFetchRouteClearsUpdatedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Routes.Fetch(ctx, f.client)
	assert.Equal(t, protocol.MsgNothingToRoute, protocol.Message(err))

	_, err = f.svc.Routes.Calculate(ctx, f.client, []spatial.Point{stripStart, stripEnd})
	require.NoError(t, err)

	first, err := f.svc.Routes.Fetch(ctx, f.client)
	require.NoError(t, err)
	route, err := f.store.Routes.GetByClient(ctx, f.client.ID)
	require.NoError(t, err)
	assert.False(t, route.Updated)

	second, err := f.svc.Routes.Fetch(ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	route, err = f.store.Routes.GetByClient(ctx, f.client.ID)
	require.NoError(t, err)
	assert.False(t, route.Updated)

	require.NoError(t, f.svc.Routes.Delete(ctx, f.client))
	_, err = f.svc.Routes.Fetch(ctx, f.client)
	assert.ErrorIs(t, err, protocol.ErrValidation)
}

func TestRerouteOnlyFlagsChangedWays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	route, err := f.svc.Routes.Calculate(ctx, f.client, []spatial.Point{stripStart, stripEnd})
	require.NoError(t, err)
	_, err = f.svc.Routes.Fetch(ctx, f.client)
	require.NoError(t, err)
	route.Updated = false

	changed, err := f.svc.Routes.Reroute(ctx, route)
	require.NoError(t, err)
	assert.False(t, changed)

	f.router.SetWay(stripStart, nearStrip, stripEnd)
	changed, err = f.svc.Routes.Reroute(ctx, route)
	require.NoError(t, err)
	assert.True(t, changed)

	stored, err := f.store.Routes.GetByClient(ctx, f.client.ID)
	require.NoError(t, err)
	assert.True(t, stored.Updated)
	assert.Len(t, stored.Way, 3)

	res, err := f.svc.Traffic.Update(ctx, f.client, UpdateInput{Position: farAway, TimeMs: 1})
	require.NoError(t, err)
	assert.True(t, res.Routing)
}

func TestRerouteSkipsRouteRecomputedMeanwhile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Routes.Calculate(ctx, f.client, []spatial.Point{stripStart, stripEnd})
	require.NoError(t, err)
	snapshot, err := f.store.Routes.ListOwned(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)

	// the client asks for a new destination while the maintenance pass
	// still holds the old row
	_, err = f.svc.Routes.Calculate(ctx, f.client, []spatial.Point{stripStart, farAway})
	require.NoError(t, err)
	_, err = f.svc.Routes.Fetch(ctx, f.client)
	require.NoError(t, err)

	f.router.SetWay(stripStart, nearStrip, stripEnd)
	changed, err := f.svc.Routes.Reroute(ctx, &snapshot[0])
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := f.store.Routes.GetByClient(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.ProviderQuery, "48.1,11.5,48.2,11.7")
	assert.Len(t, stored.Way, 2)
	assert.False(t, stored.Updated)
	assert.Len(t, f.publisher.Routes, 2)
}

func TestFetchKeepsFlagForNewerWay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	route, err := f.svc.Routes.Calculate(ctx, f.client, []spatial.Point{stripStart, stripEnd})
	require.NoError(t, err)
	delivered := route.Way

	// a reroute lands between reading the route and clearing its flag
	f.router.SetWay(stripStart, nearStrip, stripEnd)
	changed, err := f.svc.Routes.Reroute(ctx, route)
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, f.store.Routes.MarkDelivered(ctx, route.ID, delivered))

	stored, err := f.store.Routes.GetByClient(ctx, f.client.ID)
	require.NoError(t, err)
	assert.True(t, stored.Updated)

	points, err := f.svc.Routes.Fetch(ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, []spatial.Point{stripStart, nearStrip, stripEnd}, points)
	stored, err = f.store.Routes.GetByClient(ctx, f.client.ID)
	require.NoError(t, err)
	assert.False(t, stored.Updated)
}

func TestListProblems(t *testing.T) {
	f := newFixture(t)

	problems, err := f.svc.Problems.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, problems)
	assert.Empty(t, problems)
}
