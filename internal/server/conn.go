// Package server adapts individual WebSocket connections to the chat
// session, handling deadlines, keepalive pings, rate limiting, and close.
package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// wsConn is the chat.Conn implementation backed by a gorilla connection.
// Only the owning session writes data frames; pings and the close frame go
// through WriteControl, which gorilla allows concurrently with other writers.
type wsConn struct {
	conn      *websocket.Conn
	addr      string
	limiter   *rate.Limiter
	rateLimit RateLimitConfig
	logger    *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, addr string, cfg Config, logger *zap.Logger) *wsConn {
	conn.SetReadLimit(cfg.MaxMessageSize)

	return &wsConn{
		conn:      conn,
		addr:      addr,
		limiter:   newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit: cfg.RateLimit,
		logger:    logger.With(zap.String("addr", addr)),
		done:      make(chan struct{}),
	}
}

// start arms the read deadline and launches the keepalive pinger.
func (c *wsConn) start() {
	c.setupReadConnection()
	go c.keepAlive()
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *wsConn) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("error setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn("error setting read deadline in pong handler", zap.Error(err))
		}
		return nil
	})
}

// ReadMessage returns the next frame. Text frames over the rate limit are
// discarded here so the session never sees them.
func (c *wsConn) ReadMessage() (string, bool, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", false, err
		}
		if messageType != websocket.TextMessage {
			return "", false, nil
		}
		if !c.checkRateLimit() {
			continue
		}
		return string(data), true, nil
	}
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *wsConn) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.Allow() {
		c.logger.Info("rate limit exceeded; discarding message",
			zap.Int("burst", c.rateLimit.Burst),
			zap.Duration("interval", c.rateLimit.RefillInterval))
		return false
	}
	return true
}

// WriteText sends one text frame.
func (c *wsConn) WriteText(text string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// RemoteAddr returns the client address recorded at upgrade time.
func (c *wsConn) RemoteAddr() string {
	return c.addr
}

func (c *wsConn) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if !isExpectedCloseError(err) {
					c.logger.Debug("error writing ping message", zap.Error(err))
				}
				return
			}
		}
	}
}

// close sends a close frame with code and tears the connection down. Safe to
// call more than once and from any goroutine.
func (c *wsConn) close(code int, text string) {
	c.closeOnce.Do(func() {
		close(c.done)

		msg := websocket.FormatCloseMessage(code, text)
		if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
			if !isExpectedCloseError(err) {
				c.logger.Debug("error writing close message", zap.Error(err))
			}
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Debug("error closing connection", zap.Error(err))
		}
	})
}
