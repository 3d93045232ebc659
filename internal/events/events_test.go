package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisPublisherRejectsBadURL(t *testing.T) {
	_, err := NewRedisPublisher("http://not-redis")
	assert.Error(t, err)
}

func TestPublishFailureDoesNotPanic(t *testing.T) {
	p, err := NewRedisPublisher("redis://127.0.0.1:1/0")
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NotPanics(t, func() {
		p.CongestionReported(ctx, models.Congestion{ID: 1, Type: models.CongestionJam})
		p.RouteChanged(ctx, 1, RouteRerouted)
	})
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NotPanics(t, func() {
		p.CongestionReported(context.Background(), models.Congestion{})
		p.RouteChanged(context.Background(), 0, RouteCalculated)
	})
}

func TestCongestionEventEncoding(t *testing.T) {
	data, err := json.Marshal(CongestionEvent{ID: 3, Type: 1, Lat: 48.1, Lon: 11.5, Time: 1000, StripID: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"type":1,"lat":48.1,"lon":11.5,"time":1000,"strip_id":7}`, string(data))
}
