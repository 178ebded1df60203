package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// CreateServer builds the HTTP server for handler on port. The timeouts stop
// applying once a connection is upgraded to a WebSocket.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer blocks serving srv. It returns http.ErrServerClosed after
// ShutdownServer.
func StartServer(srv *http.Server, logger *zap.Logger) error {
	logger.Info("server listening", zap.String("addr", srv.Addr))
	return srv.ListenAndServe()
}

// ShutdownServer stops accepting requests and waits up to timeout for
// in-flight ones. Upgraded WebSocket connections are not waited for; see
// Server.Shutdown.
func ShutdownServer(srv *http.Server, timeout time.Duration, logger *zap.Logger) error {
	logger.Info("stopping HTTP listener")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("HTTP listener stopped")
	return nil
}
