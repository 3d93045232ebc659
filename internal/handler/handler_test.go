package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/protocol"
	"github.com/jengzang/traffic-backend-go/internal/repository"
	"github.com/jengzang/traffic-backend-go/internal/service"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
	"github.com/jengzang/traffic-backend-go/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type env struct {
	svc    *service.Services
	store  *repository.Store
	router *testutil.FakeRouter
	client *models.Client
	byType map[protocol.RequestType]Factory
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := testutil.NewStore(t)
	fake, rt := testutil.NewFakeRouter(t, spatial.Point{Lat: 48.1, Lon: 11.5}, spatial.Point{Lat: 48.1, Lon: 11.51})
	svc := service.New(store, rt, nil, service.Options{
		SnapRadius:           80,
		CongestionSnapRadius: 80,
		LeaseDuration:        86399 * time.Second,
		Now:                  testutil.FixedClock(now),
	})

	e := &env{
		svc:    svc,
		store:  store,
		router: fake,
		client: testutil.SeedClient(t, store, "tok", now.Add(time.Hour).UnixMilli()),
		byType: map[protocol.RequestType]Factory{},
	}
	for _, entry := range Entries(svc) {
		e.byType[entry.Type] = entry.Factory
	}
	return e
}

func (e *env) call(t *testing.T, typ protocol.RequestType, data string) (any, error) {
	t.Helper()

	body := `{"meta":{"type":` + itoa(int(typ)) + `,"id":"tok"},"data":` + data + `}`
	req, err := protocol.DecodeRequest([]byte(body))
	require.NoError(t, err)

	factory, ok := e.byType[typ]
	require.True(t, ok, "no handler for %s", typ)
	return factory().Handle(context.Background(), &Request{Request: req, Client: e.client})
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func wire(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestEntriesCoverEveryServedType(t *testing.T) {
	e := newEnv(t)

	assert.Len(t, e.byType, 10)
	for _, typ := range protocol.Types() {
		_, ok := e.byType[typ]
		assert.Equal(t, typ != protocol.TypeMapDownload, ok, typ.String())
	}
}

func TestIdentifyReply(t *testing.T) {
	e := newEnv(t)

	reply, err := e.call(t, protocol.TypeIdentify, `{"device":"abc"}`)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(wire(t, reply)), &out))
	assert.Len(t, out["id"], 64)
	assert.EqualValues(t, now.UnixMilli()+86_399_000, out["lease"])

	_, err = e.call(t, protocol.TypeIdentify, `{}`)
	assert.Equal(t, "device id not found", protocol.Message(err))
}

func TestAcknowledgeAndRefreshSession(t *testing.T) {
	e := newEnv(t)

	reply, err := e.call(t, protocol.TypeAcknowledge, `{}`)
	require.NoError(t, err)
	assert.Nil(t, reply)

	reply, err = e.call(t, protocol.TypeRefreshSession, `{"device":"abc"}`)
	require.NoError(t, err)
	assert.Contains(t, wire(t, reply), `"lease":`)

	_, err = e.call(t, protocol.TypeRefreshSession, `{}`)
	assert.ErrorIs(t, err, protocol.ErrValidation)
}

func TestUpdateReplyShape(t *testing.T) {
	e := newEnv(t)
	strip := testutil.SeedStrip(t, e.store, "Leopoldstraße", testutil.IntPtr(50),
		spatial.Point{Lat: 48.1, Lon: 11.5}, spatial.Point{Lat: 48.1, Lon: 11.51})
	testutil.SeedSpeed(t, e.store, strip.ID, models.DirectionToEnd, models.QualitySameWeekday, 35)

	_, err := e.call(t, protocol.TypeCongestion, `{"lat":48.1002,"lon":11.505,"type":0,"time":1000}`)
	require.NoError(t, err)

	reply, err := e.call(t, protocol.TypeUpdate, `{"lat":48.1002,"lon":11.505,"time":2000,"speed":31.5,"bbox":"1"}`)
	require.NoError(t, err)

	congestions, err := e.store.Congestions.ForStrips(context.Background(), []int64{strip.ID})
	require.NoError(t, err)
	require.Len(t, congestions, 1)

	want := `{
		"traffic":[{"id":` + itoa(int(strip.ID)) + `,"maxspeed":50,"speed":35,"quality":1}],
		"congestions":[{"id":` + itoa(int(congestions[0].ID)) + `,"lat":48.1002,"lon":11.505,"type":0,"time":1000}]
	}`
	assert.JSONEq(t, want, wire(t, reply))
}

func TestUpdateWithoutStripReturnsEmptyTraffic(t *testing.T) {
	e := newEnv(t)

	reply, err := e.call(t, protocol.TypeUpdate, `{"lat":10,"lon":10,"time":1,"speed":0,"bbox":3,"save":false}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"traffic":[],"congestions":[]}`, wire(t, reply))
}

func TestMissingArguments(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		typ  protocol.RequestType
		data string
	}{
		{protocol.TypeUpdate, `{"lat":1,"lon":2,"time":3}`},
		{protocol.TypeUpdate, `{"lat":"north"}`},
		{protocol.TypeCongestion, `{"lat":1,"lon":2,"time":3}`},
		{protocol.TypeDeleteCongestion, `{"time":3}`},
	}
	for _, tt := range tests {
		_, err := e.call(t, tt.typ, tt.data)
		assert.ErrorIs(t, err, protocol.ErrValidation, tt.data)
		assert.Equal(t, protocol.MsgMissingArgs, protocol.Message(err), tt.data)
	}
}

func TestRouteHandlers(t *testing.T) {
	e := newEnv(t)

	_, err := e.call(t, protocol.TypeCalculateRoute, `{"route":[{"lat":48.1,"lon":11.5}]}`)
	assert.Equal(t, protocol.MsgNothingToRoute, protocol.Message(err))

	_, err = e.call(t, protocol.TypeRefreshRoute, `{}`)
	assert.Equal(t, protocol.MsgNothingToRoute, protocol.Message(err))

	reply, err := e.call(t, protocol.TypeCalculateRoute, `{"route":[{"lat":48.1,"lon":11.5},{"lat":48.1,"lon":11.51}]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"done"}`, wire(t, reply))

	reply, err = e.call(t, protocol.TypeRefreshRoute, `{}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"route":[{"lat":48.1,"lon":11.5},{"lat":48.1,"lon":11.51}]}`, wire(t, reply))

	reply, err = e.call(t, protocol.TypeDeleteRoute, `{}`)
	require.NoError(t, err)
	assert.Nil(t, reply)

	_, err = e.call(t, protocol.TypeRefreshRoute, `{}`)
	assert.Equal(t, protocol.MsgNothingToRoute, protocol.Message(err))
}

func TestProblemsReply(t *testing.T) {
	e := newEnv(t)

	reply, err := e.call(t, protocol.TypeProblems, `{}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"problems":[]}`, wire(t, reply))

	mon := time.Monday
	_, err = e.store.Problems.InsertIfAbsent(context.Background(), &models.Problem{
		DayOfWeek: &mon, Hour: 8, Region: []int64{3, 4}, Description: "Recurring problem (Leopoldstraße): Mondays, from 8:00",
	})
	require.NoError(t, err)

	reply, err = e.call(t, protocol.TypeProblems, `{}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"problems":[{"description":"Recurring problem (Leopoldstraße): Mondays, from 8:00","region":[3,4]}]}`, wire(t, reply))
}
