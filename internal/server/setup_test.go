package server_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/lfgchat/internal/server"
	"github.com/Tyrowin/lfgchat/internal/testhelpers"
)

// newTestServer starts the full router on an httptest server. Connections
// from testhelpers.TestOrigin are allowed and rate limiting is loose unless
// configure says otherwise.
func newTestServer(t *testing.T, configure func(cfg *server.Config)) (*server.Server, *httptest.Server) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{testhelpers.TestOrigin}
	cfg.RateLimit = server.RateLimitConfig{Burst: 1000, RefillInterval: time.Second}
	if configure != nil {
		configure(cfg)
	}

	chatServer := server.New(*cfg, zap.NewNop())
	testServer := httptest.NewServer(server.NewRouter(chatServer))
	t.Cleanup(testServer.Close)
	t.Cleanup(func() { _ = chatServer.Shutdown(2 * time.Second) })

	return chatServer, testServer
}
