// Package server coordinates WebSocket upgrades, session lifetimes, and
// graceful shutdown for the LFG chat system via the Server type.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/lfgchat/internal/chat"
	"github.com/Tyrowin/lfgchat/internal/metrics"
)

// Server owns the shared room registry and runs one chat session per
// upgraded connection. net/http already serves each connection on its own
// goroutine, so ServeWS runs the session inline for the connection lifetime.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	registry *chat.Registry
	sessions *SessionTable
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conns   map[*wsConn]struct{}
	closing bool
	wg      sync.WaitGroup
}

// New creates a Server from cfg. Unset config fields take their defaults.
func New(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.sanitize()
	origins := newOriginPolicy(cfg.AllowedOrigins, logger)
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:      cfg,
		logger:   logger,
		registry: chat.NewRegistry(cfg.Rooms.Capacity, logger.Named("rooms")),
		sessions: NewSessionTable(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[*wsConn]struct{}),
	}
}

// Config returns the sanitized configuration in use.
func (s *Server) Config() Config {
	return s.cfg
}

// Registry returns the shared room registry.
func (s *Server) Registry() *chat.Registry {
	return s.registry
}

// Sessions returns the diagnostics side-table.
func (s *Server) Sessions() *SessionTable {
	return s.sessions
}

// ServeWS upgrades the request and runs a chat session until the connection
// ends.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.String("addr", r.RemoteAddr), zap.Error(err))
		return
	}

	c := newWSConn(conn, r.RemoteAddr, s.cfg, s.logger)
	if !s.add(c) {
		c.close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer s.remove(c)

	c.start()

	session := chat.NewSession(c, s.registry, chat.Options{
		DefaultRoom:         s.cfg.Rooms.DefaultRoom,
		DefaultRoomCapacity: s.cfg.Rooms.DefaultCapacity,
		Tracker:             s.sessions,
		Logger:              s.logger,
	})
	logger := s.logger.With(zap.String("session", session.ID()), zap.String("addr", c.addr))
	logger.Debug("connection accepted")

	err = session.Run(s.ctx)

	reason := exitReason(err)
	metrics.SessionEnded(reason)
	logSessionEnd(logger, reason, err)
	c.close(closeCode(reason), "")
}

func (s *Server) add(c *wsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) remove(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

// Shutdown ends every session and waits for them to finish or for timeout.
// Sessions in a room stop through their context; connections still waiting
// for a username are closed directly.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.logger.Info("initiating chat shutdown")

	s.mu.Lock()
	s.closing = true
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	s.registry.Close()
	for _, c := range conns {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("chat shutdown completed", zap.Int("connections", len(conns)))
		return nil
	case <-time.After(timeout):
		s.logger.Warn("chat shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}
