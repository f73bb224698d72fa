package channel

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by Submit when no session is live.
var ErrNotConnected = errors.New("no active session")

// ErrChannelClosed is returned once the channel is permanently closed.
var ErrChannelClosed = errors.New("channel permanently closed")

// ConnectionError wraps a transport-level failure. It is surfaced on the
// Errors stream; the reconnection state machine recovers from it locally.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ThrottledDropError reports a frame dropped by the rate gate. It is
// informational: the submission was intentionally discarded, not failed.
type ThrottledDropError struct {
	FrameID string
}

func (e *ThrottledDropError) Error() string {
	return fmt.Sprintf("frame %s dropped: rate ceiling exceeded", e.FrameID)
}

// ServerError carries an error message scoped to a single frame, reported
// by the detection service over the wire.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %s", e.Message)
}
