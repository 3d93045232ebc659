package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/router"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
)

// FixedClock returns a clock stuck at t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// FakeRouter serves a fixed route geometry and records every query.
type FakeRouter struct {
	mu       sync.Mutex
	Geometry [][]float64
	Status   int
	Queries  []*http.Request
}

// NewFakeRouter starts a routing endpoint answering with way, closed with t.
func NewFakeRouter(t testing.TB, way ...spatial.Point) (*FakeRouter, *router.Client) {
	t.Helper()

	f := &FakeRouter{Status: http.StatusOK}
	f.SetWay(way...)
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, router.New(srv.URL+"/", 2*time.Second)
}

// SetWay replaces the geometry served from now on.
func (f *FakeRouter) SetWay(way ...spatial.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Geometry = make([][]float64, 0, len(way))
	for _, p := range way {
		f.Geometry = append(f.Geometry, []float64{p.Lat, p.Lon})
	}
}

// Fail makes every following query answer with status.
func (f *FakeRouter) Fail(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Status = status
}

// Blocked returns the blockedRoad values of the last query.
func (f *FakeRouter) Blocked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Queries) == 0 {
		return nil
	}
	return f.Queries[len(f.Queries)-1].URL.Query()["blockedRoad"]
}

// Calls returns the number of queries served.
func (f *FakeRouter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Queries)
}

func (f *FakeRouter) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.Queries = append(f.Queries, r)
	status, geometry := f.Status, f.Geometry
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"route_geometry": geometry})
}

// Publisher records published events.
type Publisher struct {
	mu          sync.Mutex
	Congestions []models.Congestion
	Routes      []int64
}

func (p *Publisher) CongestionReported(_ context.Context, c models.Congestion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Congestions = append(p.Congestions, c)
}

func (p *Publisher) RouteChanged(_ context.Context, routeID int64, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Routes = append(p.Routes, routeID)
}
