// Package service implements the device-facing operations on the road model.
package service

import (
	"time"

	"github.com/jengzang/traffic-backend-go/internal/events"
	"github.com/jengzang/traffic-backend-go/internal/repository"
	"github.com/jengzang/traffic-backend-go/internal/router"
)

// Clock returns the current time; tests replace it
type Clock func() time.Time

// Options tunes the services
type Options struct {
	SnapRadius           float64 // meters, telemetry
	CongestionSnapRadius float64 // meters, congestion reports
	LeaseDuration        time.Duration
	Now                  Clock
}

// Services bundles every device-facing service
type Services struct {
	Sessions    *SessionService
	Traffic     *TrafficService
	Congestions *CongestionService
	Routes      *RouteService
	Problems    *ProblemService
}

// New wires the services over one store, router and publisher.
func New(store *repository.Store, rt *router.Client, pub events.Publisher, opts Options) *Services {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Services{
		Sessions:    NewSessionService(store, opts.LeaseDuration, opts.Now),
		Traffic:     NewTrafficService(store, opts.SnapRadius, opts.Now),
		Congestions: NewCongestionService(store, pub, opts.CongestionSnapRadius),
		Routes:      NewRouteService(store, rt, pub, opts.Now),
		Problems:    NewProblemService(store),
	}
}
