package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/protocol"
	"github.com/jengzang/traffic-backend-go/internal/repository"
)

// maxTokenAttempts bounds the search for an unused token
const maxTokenAttempts = 16

// Session is the identification handed to a device
type Session struct {
	Token string `json:"id"`
	Lease int64  `json:"lease"`
}

// SessionService runs the identify / acknowledge / refresh handshake
type SessionService struct {
	store *repository.Store
	lease time.Duration
	now   Clock
}

// NewSessionService creates a new session service
func NewSessionService(store *repository.Store, lease time.Duration, now Clock) *SessionService {
	return &SessionService{store: store, lease: lease, now: now}
}

// Identify creates a client for device with a fresh token and lease.
func (s *SessionService) Identify(ctx context.Context, device string) (*Session, error) {
	if device == "" {
		return nil, protocol.Validation(protocol.MsgNoDevice)
	}

	now := s.now()
	client := &models.Client{Device: device, LeaseMs: now.Add(s.lease).UnixMilli()}
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		token, err := freshToken(ctx, r.Clients, device, now)
		if err != nil {
			return err
		}
		client.Token = token
		return r.Clients.Create(ctx, client)
	})
	if err != nil {
		return nil, protocol.Store(err)
	}
	return &Session{Token: client.Token, Lease: client.LeaseMs}, nil
}

// Acknowledge completes the handshake of client.
func (s *SessionService) Acknowledge(ctx context.Context, client *models.Client) error {
	if err := s.store.Clients.Acknowledge(ctx, client.ID); err != nil {
		return protocol.Store(err)
	}
	client.Acknowledged = true
	return nil
}

// Refresh rotates the token of client and moves its lease strictly forward.
func (s *SessionService) Refresh(ctx context.Context, client *models.Client, device string) (*Session, error) {
	if device == "" {
		return nil, protocol.Validation(protocol.MsgNoDevice)
	}

	now := s.now()
	lease := now.Add(s.lease).UnixMilli()
	if lease <= client.LeaseMs {
		lease = client.LeaseMs + 1
	}

	var token string
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		var err error
		if token, err = freshToken(ctx, r.Clients, device, now); err != nil {
			return err
		}
		return r.Clients.Rotate(ctx, client.ID, token, lease)
	})
	if err != nil {
		return nil, protocol.Store(err)
	}

	client.Token, client.LeaseMs = token, lease
	return &Session{Token: token, Lease: lease}, nil
}

// Resolve returns the live client holding token. Expired clients are left
// for the cleanup task.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.Client, error) {
	if token == "" {
		return nil, protocol.Session(protocol.MsgNoSession)
	}
	client, err := s.store.Clients.GetByToken(ctx, token)
	if err != nil {
		return nil, protocol.Store(err)
	}
	if client == nil || client.Expired(s.now()) {
		return nil, protocol.Session(protocol.MsgNoSession)
	}
	return client, nil
}

// freshToken hashes device with the server time, bumping the time salt until
// no client holds the result.
func freshToken(ctx context.Context, clients *repository.ClientRepository, device string, now time.Time) (string, error) {
	base := now.UnixNano()
	for i := int64(0); i < maxTokenAttempts; i++ {
		sum := sha256.Sum256([]byte(device + strconv.FormatInt(base+i, 10)))
		token := hex.EncodeToString(sum[:])

		inUse, err := clients.TokenInUse(ctx, token)
		if err != nil {
			return "", err
		}
		if !inUse {
			return token, nil
		}
	}
	return "", fmt.Errorf("no unused token after %d attempts", maxTokenAttempts)
}
