package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/Yeboster/trade-republic-tracker/internal/protocol"
)

// SubState tracks a subscription through its lifecycle.
type SubState int

const (
	SubPending SubState = iota
	SubStreaming
	SubCompleted
	SubFailed
)

func (s SubState) String() string {
	switch s {
	case SubPending:
		return "pending"
	case SubStreaming:
		return "streaming"
	case SubCompleted:
		return "completed"
	case SubFailed:
		return "failed"
	}
	return "unknown"
}

// Subscription is one logical request/response stream multiplexed over
// the connection. Frames for one subscription are delivered in wire
// order; nothing is guaranteed across subscriptions.
type Subscription struct {
	id      uint64
	request any
	client  *Client

	// issuedEpoch records the connection epoch the sub frame was last
	// written on; guarded by the client's write mutex.
	issuedEpoch uint64

	mu        sync.Mutex
	buf       []protocol.Frame
	state     SubState
	err       error
	restarted bool
	notify    chan struct{}
}

func newSubscription(id uint64, request any, c *Client) *Subscription {
	return &Subscription{
		id:      id,
		request: request,
		client:  c,
		notify:  make(chan struct{}, 1),
	}
}

// ID returns the numeric subscription id, unique for the lifetime of
// the client and never recycled before the terminal state.
func (s *Subscription) ID() uint64 { return s.id }

// Request returns the payload the subscription was opened with; it is
// what gets re-sent after a reconnect.
func (s *Subscription) Request() any { return s.request }

// State returns the current lifecycle state.
func (s *Subscription) State() SubState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Next blocks until the next frame, the end of the stream (io.EOF), a
// server error (*protocol.ProtocolError), a restart marker
// (ErrRestarted) or ctx cancellation. Silence beyond the client's idle
// timeout is treated as connection loss: the connection is torn down,
// the reconnect policy runs, and Next keeps waiting, so no call blocks
// past the reconnect budget.
func (s *Subscription) Next(ctx context.Context) (protocol.Frame, error) {
	for {
		s.mu.Lock()
		if s.restarted {
			s.restarted = false
			s.mu.Unlock()
			return protocol.Frame{}, ErrRestarted
		}
		if len(s.buf) > 0 {
			f := s.buf[0]
			s.buf = s.buf[1:]
			s.mu.Unlock()
			return f, nil
		}
		if s.state == SubFailed {
			err := s.err
			s.mu.Unlock()
			return protocol.Frame{}, err
		}
		if s.state == SubCompleted {
			s.mu.Unlock()
			return protocol.Frame{}, io.EOF
		}
		s.mu.Unlock()

		idle := time.NewTimer(s.client.idleTimeout())
		select {
		case <-s.notify:
			idle.Stop()
		case <-ctx.Done():
			idle.Stop()
			return protocol.Frame{}, ctx.Err()
		case <-idle.C:
			s.client.dropConnection()
		}
	}
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) push(f protocol.Frame) {
	s.mu.Lock()
	if s.state == SubPending {
		s.state = SubStreaming
	}
	s.buf = append(s.buf, f)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) complete() {
	s.mu.Lock()
	if s.state == SubPending || s.state == SubStreaming {
		s.state = SubCompleted
	}
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	if s.state == SubPending || s.state == SubStreaming {
		s.state = SubFailed
		s.err = err
	}
	s.mu.Unlock()
	s.wake()
}

// restart discards buffered frames and arms the one-shot restart
// marker; called after the subscription is re-issued on a fresh
// connection.
func (s *Subscription) restart() {
	s.mu.Lock()
	if s.state == SubCompleted || s.state == SubFailed {
		s.mu.Unlock()
		return
	}
	s.buf = nil
	s.restarted = true
	s.state = SubPending
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == SubCompleted || s.state == SubFailed
}
