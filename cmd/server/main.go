package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tyrowin/lfgchat/internal/server"
)

var (
	portFlag string
	envFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "lfgchat-server",
	Short: "Run the LFG chat server",
	Long: `Runs the LFG WebSocket chat server.

Settings are read from the environment (and a local .env file); flags
override the matching environment variables.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&portFlag, "port", "", "Listen address, e.g. :8080 (overrides SERVER_PORT)")
	rootCmd.Flags().StringVar(&envFlag, "env", "", "Environment name; prod enables JSON logs (overrides APP_ENV)")
}

func main() {
	// Local .env is optional.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	config := server.NewConfigFromEnv()
	if portFlag != "" {
		config.Port = portFlag
	}
	if envFlag != "" {
		config.Env = envFlag
	}

	logger, err := server.NewLogger(config.Env)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	chatServer := server.New(*config, logger)
	httpServer := server.CreateServer(config.Port, server.NewRouter(chatServer))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, logger)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listener failed", zap.Error(err))
		}
		return nil
	case <-ctx.Done():
	}

	timeout := chatServer.Config().ShutdownTimeout
	_ = server.ShutdownServer(httpServer, timeout, logger)
	return chatServer.Shutdown(timeout)
}
