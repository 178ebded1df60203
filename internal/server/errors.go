package server

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/lfgchat/internal/chat"
)

// Session exit reasons, used as the metrics label and log field.
const (
	reasonNoUsername = "no_username"
	reasonDisconnect = "disconnected"
	reasonShutdown   = "shutdown"
	reasonRoomClosed = "room_closed"
	reasonTooLarge   = "message_too_large"
	reasonUnexpected = "error"
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}

// exitReason classifies the error a session ended with.
func exitReason(err error) string {
	switch {
	case err == nil:
		return reasonDisconnect
	case errors.Is(err, chat.ErrNoUsername):
		return reasonNoUsername
	case errors.Is(err, context.Canceled):
		return reasonShutdown
	case errors.Is(err, chat.ErrRoomClosed):
		return reasonRoomClosed
	case errors.Is(err, websocket.ErrReadLimit):
		return reasonTooLarge
	case isClientClose(err):
		return reasonDisconnect
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), isExpectedCloseError(err):
		return reasonDisconnect
	default:
		return reasonUnexpected
	}
}

// isClientClose unwraps err to a close frame from the peer. websocket.IsCloseError
// only inspects the outermost error.
func isClientClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	return websocket.IsCloseError(closeErr,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived)
}

// closeCode picks the close frame sent back to the client.
func closeCode(reason string) int {
	switch reason {
	case reasonShutdown, reasonRoomClosed:
		return websocket.CloseGoingAway
	case reasonTooLarge:
		return websocket.CloseMessageTooBig
	case reasonUnexpected:
		return websocket.CloseInternalServerErr
	default:
		return websocket.CloseNormalClosure
	}
}

// logSessionEnd logs at a level matching how surprising the exit was.
func logSessionEnd(logger *zap.Logger, reason string, err error) {
	switch reason {
	case reasonNoUsername:
		logger.Debug("connection closed before username", zap.Error(err))
	case reasonDisconnect, reasonShutdown, reasonRoomClosed:
		logger.Info("session ended", zap.String("reason", reason), zap.Error(err))
	case reasonTooLarge:
		logger.Warn("message exceeded maximum size", zap.Error(err))
	default:
		logger.Error("session failed", zap.Error(err))
	}
}
