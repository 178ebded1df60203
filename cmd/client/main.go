package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tyrowin/lfgchat/internal/client"
)

var (
	serverURL string
	origin    string
)

var rootCmd = &cobra.Command{
	Use:   "lfgchat",
	Short: "Terminal client for the LFG chat server",
	Long: `Connects to an LFG chat server, asks for a username and then sends
every line typed on stdin. Lines starting with /create <room> or
/join <room> manage rooms; anything else is a chat message.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err := client.Run(ctx, client.Options{
			URL:    serverURL,
			Origin: origin,
		}, os.Stdin, os.Stdout)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "url", "ws://localhost:8080/ws", "WebSocket URL of the chat server")
	rootCmd.Flags().StringVar(&origin, "origin", "http://localhost:8080", "Origin header sent during the handshake")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
