package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RequestType is the closed set of device requests, by wire value
type RequestType int

// RequestType constants
const (
	TypeMapDownload      RequestType = 1 // retired, never served
	TypeUpdate           RequestType = 2
	TypeCongestion       RequestType = 3
	TypeIdentify         RequestType = 4
	TypeAcknowledge      RequestType = 5
	TypeDeleteCongestion RequestType = 6
	TypeCalculateRoute   RequestType = 7
	TypeRefreshSession   RequestType = 8
	TypeRefreshRoute     RequestType = 9
	TypeDeleteRoute      RequestType = 10
	TypeProblems         RequestType = 11

	minType = TypeMapDownload
	maxType = TypeProblems
)

var typeNames = map[RequestType]string{
	TypeMapDownload:      "map_download",
	TypeUpdate:           "update",
	TypeCongestion:       "congestion",
	TypeIdentify:         "identify",
	TypeAcknowledge:      "acknowledge",
	TypeDeleteCongestion: "delete_congestion",
	TypeCalculateRoute:   "calculate_route",
	TypeRefreshSession:   "refresh_session",
	TypeRefreshRoute:     "refresh_route",
	TypeDeleteRoute:      "delete_route",
	TypeProblems:         "problems",
}

// Valid reports whether t is inside the wire range.
func (t RequestType) Valid() bool {
	return t >= minType && t <= maxType
}

func (t RequestType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type_%d", int(t))
}

// Types returns every valid request type in wire order.
func Types() []RequestType {
	out := make([]RequestType, 0, maxType-minType+1)
	for t := minType; t <= maxType; t++ {
		out = append(out, t)
	}
	return out
}

// Meta is the envelope header
type Meta struct {
	Type *int    `json:"type"`
	ID   *string `json:"id"`
}

// Request is a decoded envelope
type Request struct {
	Type  RequestType
	Token string // empty when meta.id is null or absent
	Data  json.RawMessage
}

type envelope struct {
	Meta *Meta           `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// DecodeRequest parses the JSON envelope. A missing data part decodes as {}.
func DecodeRequest(body []byte) (*Request, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, Protocol(MsgEmptyInput)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &Error{Kind: ErrProtocol, Msg: "invalid_input", Err: err}
	}
	if env.Meta == nil || env.Meta.Type == nil {
		return nil, Protocol(MsgInvalidMetadata + ": meta.type missing")
	}

	t := RequestType(*env.Meta.Type)
	if !t.Valid() {
		return nil, Protocol(fmt.Sprintf("%s: type %d out of range", MsgInvalidMetadata, *env.Meta.Type))
	}

	req := &Request{Type: t, Data: env.Data}
	if env.Meta.ID != nil {
		req.Token = *env.Meta.ID
	}
	if len(req.Data) == 0 || bytes.Equal(bytes.TrimSpace(req.Data), []byte("null")) {
		req.Data = json.RawMessage("{}")
	}
	return req, nil
}

// Bind decodes the data part into v. Malformed data is a validation error.
func (r *Request) Bind(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return &Error{Kind: ErrValidation, Msg: MsgMissingArgs, Err: err}
	}
	return nil
}
