// Package server accepts device connections and dispatches their requests.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/handler"
	"github.com/jengzang/traffic-backend-go/internal/metrics"
	"github.com/jengzang/traffic-backend-go/internal/middleware"
	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/protocol"
)

// SessionResolver maps a token to its live client
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.Client, error)
}

// Server serves one request per accepted connection
type Server struct {
	registry *Registry
	sessions SessionResolver
	limiter  *middleware.RateLimiter
	timeout  time.Duration

	conns atomic.Uint64
	wg    sync.WaitGroup
}

// New creates a server. A nil limiter accepts every connection; a zero
// timeout sets no deadline.
func New(registry *Registry, sessions SessionResolver, limiter *middleware.RateLimiter, timeout time.Duration) *Server {
	return &Server{registry: registry, sessions: sessions, limiter: limiter, timeout: timeout}
}

// Serve accepts connections on ln until ctx is cancelled, then waits for
// in-flight connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	slog.Info("device server listening", "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				slog.Warn("accept failed, retrying", "error", err, "backoff", backoff)
				time.Sleep(backoff)
				continue
			}
			s.wg.Wait()
			return fmt.Errorf("failed to accept connection: %w", err)
		}
		backoff = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	id := s.conns.Add(1)
	remote := conn.RemoteAddr().String()
	log := slog.With("conn", id, "remote_addr", remote)

	if s.timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
			log.Warn("failed to set deadline", "error", err)
		}
	}

	if s.limiter != nil && !s.limiter.Allow(hostOf(remote)) {
		metrics.ConnectionsRejected.Inc()
		log.Warn("connection rate limited")
		// consume the request so the reply is not lost to a reset
		_, _ = protocol.ReadMessage(conn)
		s.reply(log, conn, nil, protocol.Protocol(protocol.MsgRateLimited))
		return
	}

	reply, err := s.Dispatch(ctx, conn)
	if s.timeout > 0 {
		// a read that hit the deadline still gets its error reply
		_ = conn.SetWriteDeadline(time.Now().Add(s.timeout))
	}
	s.reply(log, conn, reply, err)
}

func (s *Server) reply(log *slog.Logger, w io.Writer, reply any, err error) {
	if err != nil {
		reply = protocol.Reply(err)
	}
	if werr := protocol.WriteResponse(w, reply); werr != nil {
		log.Warn("failed to write reply", "error", werr)
	}
}

// Dispatch reads one request from r and runs its handler. The returned
// error is meant for the client; panics are recovered into store errors.
func (s *Server) Dispatch(ctx context.Context, r io.Reader) (reply any, err error) {
	start := time.Now()
	typeLabel := "invalid"

	defer func() {
		if p := recover(); p != nil {
			slog.Error("handler panicked", "type", typeLabel, "panic", p)
			reply, err = nil, protocol.Store(fmt.Errorf("panic: %v", p))
		}

		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
			logFailure(typeLabel, err)
		}
		metrics.RequestsTotal.WithLabelValues(typeLabel, outcome).Inc()
		metrics.RequestDuration.WithLabelValues(typeLabel).Observe(time.Since(start).Seconds())
	}()

	req, err := protocol.ReadRequest(r)
	if err != nil {
		return nil, err
	}
	typeLabel = req.Type.String()

	factory, ok := s.registry.Lookup(req.Type)
	if !ok {
		return nil, protocol.Protocol(protocol.MsgNoHandler)
	}

	hreq := &handler.Request{Request: req}
	if req.Type != protocol.TypeIdentify {
		if hreq.Client, err = s.sessions.Resolve(ctx, req.Token); err != nil {
			return nil, err
		}
	}

	return factory().Handle(ctx, hreq)
}

func logFailure(typ string, err error) {
	switch {
	case errors.Is(err, protocol.ErrStore):
		slog.Error("request failed", "type", typ, "error", err)
	case errors.Is(err, protocol.ErrUpstream):
		slog.Warn("request failed", "type", typ, "error", err)
	default:
		slog.Debug("request rejected", "type", typ, "error", err)
	}
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
