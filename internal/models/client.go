package models

import "time"

// Client represents a device session
type Client struct {
	ID           int64  `json:"id" db:"id"`
	Token        string `json:"token" db:"token"`     // opaque session token
	Device       string `json:"-" db:"device"`        // durable hardware identifier
	LeaseMs      int64  `json:"lease" db:"lease_ms"` // epoch millis
	Acknowledged bool   `json:"acknowledged" db:"acknowledged"`
}

// SessionState is the handshake state of a device session.
type SessionState string

// SessionState constants
const (
	SessionUnknown    SessionState = "UNKNOWN"
	SessionPendingAck SessionState = "PENDING_ACK"
	SessionActive     SessionState = "ACTIVE"
	SessionExpired    SessionState = "EXPIRED"
	SessionRefreshing SessionState = "REFRESHING"
	SessionDeleted    SessionState = "DELETED"
)

// Lease returns the lease expiry as a time.
func (c *Client) Lease() time.Time {
	return time.UnixMilli(c.LeaseMs)
}

// Expired reports whether the lease has passed at now.
func (c *Client) Expired(now time.Time) bool {
	return c.LeaseMs < now.UnixMilli()
}

// State derives the session state from the stored record. A nil client is
// UNKNOWN. REFRESHING and DELETED are transitions, never stored.
func (c *Client) State(now time.Time) SessionState {
	switch {
	case c == nil:
		return SessionUnknown
	case c.Expired(now):
		return SessionExpired
	case !c.Acknowledged:
		return SessionPendingAck
	default:
		return SessionActive
	}
}
