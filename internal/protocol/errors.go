package protocol

import "errors"

// Error kinds, matched with errors.Is
var (
	ErrProtocol   = errors.New("protocol error")
	ErrSession    = errors.New("session error")
	ErrValidation = errors.New("validation error")
	ErrUpstream   = errors.New("upstream error")
	ErrStore      = errors.New("store error")
)

// Client-facing messages
const (
	MsgNoHandler       = "no matching handler found"
	MsgNoSession       = "no valid identification"
	MsgMissingArgs     = "missing arguments"
	MsgNothingToRoute  = "nothing to route"
	MsgInternal        = "critical server error"
	MsgEmptyInput      = "empty_input: The input may not be empty"
	MsgInvalidMetadata = "invalid_metadata"
	MsgRateLimited     = "too many requests"
	MsgNoDevice        = "device id not found"
	MsgUnknownType     = "unknown congestion type"
)

// Error carries a client-facing message and the kind of failure
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Protocol reports a malformed envelope
func Protocol(msg string) error {
	return &Error{Kind: ErrProtocol, Msg: msg}
}

// Session reports a missing, unknown or expired token
func Session(msg string) error {
	return &Error{Kind: ErrSession, Msg: msg}
}

// Validation reports missing or invalid request data
func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Msg: msg}
}

// Upstream reports a Router failure; msg is what the client sees
func Upstream(msg string, err error) error {
	return &Error{Kind: ErrUpstream, Msg: msg, Err: err}
}

// Store wraps a persistence failure; the client only sees MsgInternal
func Store(err error) error {
	return &Error{Kind: ErrStore, Msg: MsgInternal, Err: err}
}

// Message maps an error to the text written in {"error": ...}.
// Unclassified errors are treated as store failures.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return MsgInternal
	}
	if errors.Is(e.Kind, ErrStore) {
		return MsgInternal
	}
	return e.Msg
}

// ErrorReply is the body written for a failed request
type ErrorReply struct {
	Error string `json:"error"`
}

// Reply builds the error body for err.
func Reply(err error) ErrorReply {
	return ErrorReply{Error: Message(err)}
}
