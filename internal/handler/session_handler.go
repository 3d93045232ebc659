package handler

import (
	"context"

	"github.com/jengzang/traffic-backend-go/internal/service"
)

type deviceData struct {
	Device string `json:"device"`
}

// IdentifyHandler hands out a session to a new device
type IdentifyHandler struct {
	sessions *service.SessionService
}

// NewIdentifyHandler creates a new identify handler
func NewIdentifyHandler(sessions *service.SessionService) *IdentifyHandler {
	return &IdentifyHandler{sessions: sessions}
}

// Handle replies {id, lease}
func (h *IdentifyHandler) Handle(ctx context.Context, req *Request) (any, error) {
	var data deviceData
	if err := req.Bind(&data); err != nil {
		return nil, err
	}
	session, err := h.sessions.Identify(ctx, data.Device)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// AcknowledgeHandler completes the handshake
type AcknowledgeHandler struct {
	sessions *service.SessionService
}

// NewAcknowledgeHandler creates a new acknowledge handler
func NewAcknowledgeHandler(sessions *service.SessionService) *AcknowledgeHandler {
	return &AcknowledgeHandler{sessions: sessions}
}

// Handle replies nothing
func (h *AcknowledgeHandler) Handle(ctx context.Context, req *Request) (any, error) {
	return nil, h.sessions.Acknowledge(ctx, req.Client)
}

// RefreshSessionHandler rotates the session token
type RefreshSessionHandler struct {
	sessions *service.SessionService
}

// NewRefreshSessionHandler creates a new refresh session handler
func NewRefreshSessionHandler(sessions *service.SessionService) *RefreshSessionHandler {
	return &RefreshSessionHandler{sessions: sessions}
}

// Handle replies {id, lease}
func (h *RefreshSessionHandler) Handle(ctx context.Context, req *Request) (any, error) {
	var data deviceData
	if err := req.Bind(&data); err != nil {
		return nil, err
	}
	session, err := h.sessions.Refresh(ctx, req.Client, data.Device)
	if err != nil {
		return nil, err
	}
	return session, nil
}
