package imtcp

import (
	"errors"
	"fmt"
)

var ErrClosed = errors.New("imtcp: client is closed")

// ConnectionError is returned by Dial when the IM command port cannot be reached.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to IM at %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a reply that does not have the expected framing.
type ProtocolError struct {
	Command  string
	Response []byte
	Reason   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: malformed reply %q: %s", e.Command, e.Response, e.Reason)
}
