// Package transport owns the single duplex connection to the
// brokerage: frame encoding/decoding, heartbeat and echo filtering,
// the reconnect policy, and the demultiplexing of inbound frames onto
// per-subscription streams.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Yeboster/trade-republic-tracker/internal/config"
	"github.com/Yeboster/trade-republic-tracker/internal/protocol"
)

// ConnState is the connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateClosing
)

var errNotConnected = errors.New("transport: not connected")

type sentRecord struct {
	raw     []byte
	payload []byte
	at      time.Time
}

// Client owns one Connection. All writes are serialized; concurrent
// logical requests share the connection for sending but each reads
// only its own subscription stream.
type Client struct {
	cfg  config.TransportConfig
	meta protocol.ConnectMeta
	dial Dialer
	log  zerolog.Logger

	// onAuthError is invoked when the server reports an
	// authentication failure on a subscription, so the session owner
	// can refresh reactively.
	onAuthError func()

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu           sync.Mutex
	conn         Conn
	state        ConnState
	epoch        uint64 // bumped per established connection
	subs         map[uint64]*Subscription
	lastSent     map[uint64]sentRecord
	nextID       uint64
	reconnecting bool
	fatal        error
}

// NewClient builds a client; no connection is opened until Connect.
func NewClient(cfg config.TransportConfig, meta protocol.ConnectMeta, dial Dialer, log zerolog.Logger) *Client {
	return &Client{
		cfg:      cfg,
		meta:     meta,
		dial:     dial,
		log:      log,
		subs:     make(map[uint64]*Subscription),
		lastSent: make(map[uint64]sentRecord),
	}
}

// OnAuthError registers the reactive-refresh hook. Must be called
// before Connect.
func (c *Client) OnAuthError(fn func()) { c.onAuthError = fn }

// Connect dials the endpoint and performs the connect handshake. The
// given context bounds the whole connection lifetime: cancelling it
// stops the reader and any reconnect attempts.
func (c *Client) Connect(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.setState(StateConnecting)
	conn, err := c.establish(c.ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.epoch++
	c.state = StateConnected
	c.mu.Unlock()

	go c.readLoop(conn)
	c.log.Debug().Msg("connection established")
	return nil
}

// establish dials and completes the handshake on a fresh connection.
func (c *Client) establish(ctx context.Context) (Conn, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	hello, err := protocol.EncodeConnect(c.meta)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		conn.Close()
		return nil, err
	}

	// The server answers the handshake before any subscription frame.
	_, reply, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if !protocol.IsConnected(reply) {
		conn.Close()
		return nil, &TransportError{
			Reason: ReasonHandshakeRejected,
			Err:    fmt.Errorf("server replied %q", reply),
		}
	}
	return conn, nil
}

// Subscribe allocates the next id, registers the subscription and
// writes the sub frame. It returns immediately; data arrives on the
// returned Subscription. If the connection is mid-reconnect the frame
// is issued once the connection is back.
func (c *Client) Subscribe(ctx context.Context, request any) (*Subscription, error) {
	c.mu.Lock()
	if c.fatal != nil {
		err := c.fatal
		c.mu.Unlock()
		return nil, err
	}
	if c.state == StateClosing || c.state == StateDisconnected {
		c.mu.Unlock()
		return nil, &TransportError{Reason: ReasonClosed}
	}
	c.nextID++
	id := c.nextID
	sub := newSubscription(id, request, c)
	c.subs[id] = sub
	c.mu.Unlock()

	if err := c.issueSub(sub); err != nil && !errors.Is(err, errNotConnected) {
		// A failed write means the connection just broke; the
		// reconnect path will re-issue this subscription.
		c.log.Debug().Err(err).Uint64("sub_id", id).Msg("subscribe write failed, deferring to reconnect")
		c.dropConnection()
	}
	return sub, nil
}

// Unsubscribe is best-effort: the unsub frame is written if the
// connection is up, and the id is deregistered so trailing frames in
// the grace window are discarded rather than delivered.
func (c *Client) Unsubscribe(id uint64) {
	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	conn := c.conn
	c.mu.Unlock()

	if ok {
		sub.complete()
	}
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteMessage(websocket.TextMessage, protocol.EncodeUnsub(id))
		c.writeMu.Unlock()
	}
}

// Close unsubscribes all open subscriptions best-effort and tears the
// connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosing {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	conn := c.conn
	c.conn = nil
	open := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		open = append(open, s)
	}
	c.subs = make(map[uint64]*Subscription)
	c.mu.Unlock()

	for _, s := range open {
		if conn != nil {
			c.writeMu.Lock()
			_ = conn.WriteMessage(websocket.TextMessage, protocol.EncodeUnsub(s.id))
			c.writeMu.Unlock()
		}
		s.fail(&TransportError{Reason: ReasonClosed})
	}

	if c.cancel != nil {
		c.cancel()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// issueSub writes the sub frame for s exactly once per connection
// epoch. issuedEpoch is guarded by writeMu.
func (c *Client) issueSub(s *Subscription) error {
	raw, err := protocol.EncodeSub(s.id, s.request)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	conn := c.conn
	epoch := c.epoch
	if conn != nil {
		c.lastSent[s.id] = sentRecord{raw: raw, payload: subPayload(raw), at: time.Now()}
	}
	c.mu.Unlock()

	if conn == nil {
		return errNotConnected
	}
	if s.issuedEpoch == epoch {
		return nil
	}
	s.issuedEpoch = epoch
	return conn.WriteMessage(websocket.TextMessage, raw)
}

// subPayload strips the "sub <id> " prefix so inbound payloads can be
// compared against what was sent.
func subPayload(raw []byte) []byte {
	parts := bytes.SplitN(raw, []byte(" "), 3)
	if len(parts) == 3 {
		return parts[2]
	}
	return nil
}

func (c *Client) readLoop(conn Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg []byte) {
	// Server keep-alives are not data.
	if bytes.HasPrefix(msg, []byte("echo")) {
		return
	}
	// A reflected outbound frame starts with its verb and can never be
	// a valid inbound frame; drop it before parsing.
	if bytes.HasPrefix(msg, []byte("sub ")) || bytes.HasPrefix(msg, []byte("unsub ")) || bytes.HasPrefix(msg, []byte("connect ")) {
		c.log.Debug().Bytes("frame", msg).Msg("dropping reflected outbound frame")
		return
	}

	f, err := protocol.ParseInbound(msg)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed frame")
		return
	}

	c.mu.Lock()
	if rec, ok := c.lastSent[f.ID]; ok &&
		time.Since(rec.at) <= c.cfg.EchoWindow &&
		f.HasPayload() && bytes.Equal(f.Payload, rec.payload) {
		c.mu.Unlock()
		c.log.Debug().Uint64("sub_id", f.ID).Msg("dropping echoed payload")
		return
	}
	sub, ok := c.subs[f.ID]
	if ok && (f.State == protocol.StateError || f.State == protocol.StateEnd) {
		delete(c.subs, f.ID)
	}
	c.mu.Unlock()

	if !ok {
		// Trailing frame after unsubscribe, or an id we never issued.
		c.log.Debug().Uint64("sub_id", f.ID).Msg("dropping frame for unknown subscription")
		return
	}

	switch f.State {
	case protocol.StateError:
		perr := protocol.ParseError(f.Payload)
		if perr.Code == "AUTHENTICATION_ERROR" && c.onAuthError != nil {
			go c.onAuthError()
		}
		sub.fail(perr)
	case protocol.StateEnd:
		sub.complete()
	default:
		sub.push(f)
	}
}

// dropConnection force-closes the current connection; the read loop
// notices and runs the reconnect policy. Used when a subscription's
// idle timeout fires.
func (c *Client) dropConnection() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *Client) handleDisconnect(conn Conn, cause error) {
	c.mu.Lock()
	if c.state == StateClosing || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateConnecting
	if c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	c.log.Warn().Err(cause).Msg("connection lost, reconnecting")
	go c.reconnect(cause)
}

func (c *Client) reconnect(cause error) {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	for attempt := 1; attempt <= c.cfg.MaxReconnects; attempt++ {
		delay := backoffDelay(c.cfg.BackoffBase, c.cfg.BackoffCap, attempt)
		select {
		case <-time.After(delay):
		case <-c.ctx.Done():
			return
		}

		conn, err := c.establish(c.ctx)
		if err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.epoch++
		c.state = StateConnected
		pending := make([]*Subscription, 0, len(c.subs))
		for _, s := range c.subs {
			if !s.terminal() {
				pending = append(pending, s)
			}
		}
		c.mu.Unlock()

		go c.readLoop(conn)

		// Re-issue open subscriptions from their request parameters.
		// Partial buffers are discarded; consumers see ErrRestarted.
		for _, s := range pending {
			s.restart()
			if err := c.issueSub(s); err != nil {
				c.log.Warn().Err(err).Uint64("sub_id", s.id).Msg("re-issue failed")
			}
		}
		c.log.Info().Int("attempt", attempt).Int("resubscribed", len(pending)).Msg("reconnected")
		return
	}

	ferr := &TransportError{Reason: ReasonReconnectExhausted, Err: cause}
	c.mu.Lock()
	c.fatal = ferr
	c.state = StateDisconnected
	open := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		open = append(open, s)
	}
	c.subs = make(map[uint64]*Subscription)
	c.mu.Unlock()

	for _, s := range open {
		s.fail(ferr)
	}
	c.log.Error().Err(cause).Int("attempts", c.cfg.MaxReconnects).Msg("reconnect budget exhausted")
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the connection lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) idleTimeout() time.Duration {
	if c.cfg.IdleTimeout > 0 {
		return c.cfg.IdleTimeout
	}
	return 30 * time.Second
}
