package transport

import (
	"errors"
	"fmt"
)

// Reason identifies why the transport gave up.
type Reason string

const (
	ReasonHandshakeRejected  Reason = "handshake_rejected"
	ReasonReconnectExhausted Reason = "reconnect_exhausted"
	ReasonClosed             Reason = "closed"
)

// TransportError is fatal to the run: either the server rejected the
// connect handshake or the reconnect budget is spent.
type TransportError struct {
	Reason Reason
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transport: %s", e.Reason)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrRestarted is returned once by Subscription.Next after the
// connection was re-established and the subscription re-issued.
// Consumers must discard any partially accumulated payload and keep
// reading; the stream restarts from the request parameters.
var ErrRestarted = errors.New("transport: subscription restarted")
