// Package handler serves the device request types.
package handler

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/protocol"
	"github.com/jengzang/traffic-backend-go/internal/service"
)

// Request is a decoded device request with its resolved client.
// Client is nil for identify.
type Request struct {
	*protocol.Request
	Client *models.Client
}

// Handler serves one request type. A nil reply writes nothing back.
type Handler interface {
	Handle(ctx context.Context, req *Request) (any, error)
}

// Factory builds the handler of one request type
type Factory func() Handler

// Entry pairs a request type with its factory
type Entry struct {
	Type    protocol.RequestType
	Factory Factory
}

// Entries returns the handler table served by the device socket.
func Entries(svc *service.Services) []Entry {
	return []Entry{
		{protocol.TypeUpdate, func() Handler { return NewUpdateHandler(svc.Traffic) }},
		{protocol.TypeCongestion, func() Handler { return NewCongestionHandler(svc.Congestions) }},
		{protocol.TypeIdentify, func() Handler { return NewIdentifyHandler(svc.Sessions) }},
		{protocol.TypeAcknowledge, func() Handler { return NewAcknowledgeHandler(svc.Sessions) }},
		{protocol.TypeDeleteCongestion, func() Handler { return NewDeleteCongestionHandler(svc.Congestions) }},
		{protocol.TypeCalculateRoute, func() Handler { return NewCalculateRouteHandler(svc.Routes) }},
		{protocol.TypeRefreshSession, func() Handler { return NewRefreshSessionHandler(svc.Sessions) }},
		{protocol.TypeRefreshRoute, func() Handler { return NewRefreshRouteHandler(svc.Routes) }},
		{protocol.TypeDeleteRoute, func() Handler { return NewDeleteRouteHandler(svc.Routes) }},
		{protocol.TypeProblems, func() Handler { return NewProblemsHandler(svc.Problems) }},
	}
}

// flexInt accepts both 3 and "3"
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*n = flexInt(v)
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}

func missingArgs() error {
	return protocol.Validation(protocol.MsgMissingArgs)
}
