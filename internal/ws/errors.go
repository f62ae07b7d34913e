package ws

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailure means the handshake never reached the Open state.
	ErrConnectionFailure = errors.New("connection failure")
	// ErrConnectionClosed means the transport closed during an active session.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrInvalidSubscription means a message carries neither a usable type nor a channel.
	ErrInvalidSubscription = errors.New("invalid subscription")
	// ErrInvalidState means the operation is not allowed in the current connection state.
	ErrInvalidState = errors.New("invalid connection state")
	// ErrMalformedFrame means an inbound frame was not valid JSON.
	ErrMalformedFrame = errors.New("malformed frame")
)

// ServerError is a protocol error reported by the feed. It ends the session when no
// error handler is configured.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}
