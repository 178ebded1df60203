package chat

import "errors"

var (
	// ErrNoUsername is returned when the connection closes or sends a
	// non-text frame before the username handshake completes.
	ErrNoUsername = errors.New("chat: no username received")

	// ErrNoSubscribers is returned by Publish when a room has no receivers.
	// Callers treat it as a dropped message.
	ErrNoSubscribers = errors.New("chat: room has no subscribers")

	// ErrRoomClosed is returned by Publish on a closed room and ends any
	// session whose current subscription is closed.
	ErrRoomClosed = errors.New("chat: room closed")
)
