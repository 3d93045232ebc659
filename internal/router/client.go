// Package router talks to the external navigation service.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/metrics"
	"github.com/jengzang/traffic-backend-go/internal/protocol"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
	"github.com/paulmach/orb"
)

const querySuffix = "/car.js?tId=CloudMade"

// Client queries a CloudMade-style routing endpoint
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a router client with a bounded request timeout
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type routeResponse struct {
	Geometry [][]float64 `json:"route_geometry"`
}

// BuildQuery returns the provider query for an ordered list of waypoints.
// Intermediate waypoints are sent as a bracketed transit list.
func (c *Client) BuildQuery(waypoints []spatial.Point) (string, error) {
	if len(waypoints) < 2 {
		return "", protocol.Validation(protocol.MsgNothingToRoute)
	}

	var b strings.Builder
	b.WriteString(c.BaseURL)
	writeCoord(&b, waypoints[0])
	b.WriteByte(',')
	if transit := waypoints[1 : len(waypoints)-1]; len(transit) > 0 {
		b.WriteByte('[')
		for i, p := range transit {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCoord(&b, p)
		}
		b.WriteString("],")
	}
	writeCoord(&b, waypoints[len(waypoints)-1])
	b.WriteString(querySuffix)
	return b.String(), nil
}

// Route runs query with every blocked point appended and returns the
// geometry. Any failure, including an empty route, is an upstream error.
func (c *Client) Route(ctx context.Context, query string, blocked []spatial.Point) (orb.LineString, error) {
	line, err := c.route(ctx, query, blocked)
	if err != nil {
		metrics.RouterCalls.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, protocol.Upstream(protocol.MsgNothingToRoute, err)
	}
	metrics.RouterCalls.WithLabelValues(metrics.OutcomeOK).Inc()
	return line, nil
}

func (c *Client) route(ctx context.Context, query string, blocked []spatial.Point) (orb.LineString, error) {
	url := WithBlocked(query, blocked)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request route: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var payload routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(payload.Geometry) == 0 {
		return nil, errors.New("empty route geometry")
	}

	line := make(orb.LineString, 0, len(payload.Geometry))
	for i, pair := range payload.Geometry {
		if len(pair) < 2 {
			return nil, fmt.Errorf("route vertex %d has %d coordinates", i, len(pair))
		}
		line = append(line, orb.Point{pair[1], pair[0]})
	}
	return line, nil
}

// WithBlocked appends one blockedRoad parameter per point to query.
func WithBlocked(query string, blocked []spatial.Point) string {
	if len(blocked) == 0 {
		return query
	}
	var b strings.Builder
	b.WriteString(query)
	for _, p := range blocked {
		b.WriteString("&blockedRoad=")
		writeCoord(&b, p)
	}
	return b.String()
}

func writeCoord(b *strings.Builder, p spatial.Point) {
	b.WriteString(strconv.FormatFloat(p.Lat, 'f', -1, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(p.Lon, 'f', -1, 64))
}
