// Package events announces road-model changes to other processes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/metrics"
	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/redis/go-redis/v9"
)

// Channels
const (
	ChannelCongestions = "traffic:congestions"
	ChannelRoutes      = "traffic:routes"
)

// Route change reasons
const (
	RouteCalculated = "calculated"
	RouteRerouted   = "rerouted"
)

// CongestionEvent is published when a new congestion is stored
type CongestionEvent struct {
	ID      int64   `json:"id"`
	Type    int     `json:"type"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Time    int64   `json:"time"`
	StripID int64   `json:"strip_id"`
}

// RouteEvent is published when a stored route changes
type RouteEvent struct {
	RouteID int64  `json:"route_id"`
	Reason  string `json:"reason"`
	At      int64  `json:"at"`
}

// Publisher announces changes. Implementations never fail the caller.
type Publisher interface {
	CongestionReported(ctx context.Context, c models.Congestion)
	RouteChanged(ctx context.Context, routeID int64, reason string)
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) CongestionReported(context.Context, models.Congestion) {}

func (NopPublisher) RouteChanged(context.Context, int64, string) {}

// RedisPublisher publishes JSON events over Redis pub/sub
type RedisPublisher struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisPublisher connects to the Redis instance at url (redis://host:port/db).
func NewRedisPublisher(url string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return &RedisPublisher{client: redis.NewClient(opts), now: time.Now}, nil
}

// Ping checks the connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisPublisher) CongestionReported(ctx context.Context, c models.Congestion) {
	p.publish(ctx, ChannelCongestions, CongestionEvent{
		ID:      c.ID,
		Type:    int(c.Type),
		Lat:     c.Lat,
		Lon:     c.Lon,
		Time:    c.ReportedMs,
		StripID: c.StripID,
	})
}

func (p *RedisPublisher) RouteChanged(ctx context.Context, routeID int64, reason string) {
	p.publish(ctx, ChannelRoutes, RouteEvent{
		RouteID: routeID,
		Reason:  reason,
		At:      p.now().UnixMilli(),
	})
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode event", "channel", channel, "error", err)
		metrics.EventsPublished.WithLabelValues(channel, metrics.OutcomeError).Inc()
		return
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		slog.Warn("failed to publish event", "channel", channel, "error", err)
		metrics.EventsPublished.WithLabelValues(channel, metrics.OutcomeError).Inc()
		return
	}
	metrics.EventsPublished.WithLabelValues(channel, metrics.OutcomeOK).Inc()
}
