// Package ws implements the streaming client: one long-lived websocket connection that
// carries many topic subscriptions, answers heartbeats and hands data frames to the
// handlers registered for them.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alejoacosta74/shrimpy-stream/internal/dispatcher"
	"github.com/alejoacosta74/shrimpy-stream/internal/events"
	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
	"github.com/alejoacosta74/shrimpy-stream/pkg/shrimpy"
)

const (
	// DefaultURL is the production streaming endpoint.
	DefaultURL = "wss://ws-feed.shrimpy.io"

	defaultHandshakeTimeout = 10 * time.Second
	defaultDrainTimeout     = 5 * time.Second
	defaultCloseGrace       = 2 * time.Second
	closeFrameTimeout       = time.Second
)

// Client owns one websocket connection at a time. Each connection runs on a dedicated
// goroutine that is the only reader and writer of the socket.
//
// State machine:
//
//	Idle -> Connecting -> Open | Faulted        (Connect)
//	Open -> Closing -> Closed                    (Disconnect)
//	Open -> Faulted                              (transport or protocol error)
//	Open | Closed | Faulted -> Connecting        (Reconnect)
//
// The client never reconnects on its own.
type Client struct {
	url              string
	dialer           Dialer
	handshakeTimeout time.Duration
	drainTimeout     time.Duration
	closeGrace       time.Duration
	errorHandler     ErrorHandler
	registry         *Registry
	bus              events.Bus
	observer         Observer
	logger           *logger.Logger

	// lifecycleMu serializes Connect, Disconnect and Reconnect.
	lifecycleMu sync.Mutex

	mu      sync.RWMutex
	state   State
	token   string
	sess    *session
	lastErr error
}

// session is the state of one connection.
type session struct {
	id         string
	conn       Conn
	dispatcher *dispatcher.Dispatcher
	router     *Router
	closing    atomic.Bool
	done       chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithURL sets the streaming endpoint.
func WithURL(u string) Option {
	return func(c *Client) {
		c.url = u
	}
}

// WithToken sets the access token appended as the token query parameter.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithDialer replaces the gorilla dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithErrorHandler receives server errors instead of ending the session.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Client) {
		c.errorHandler = h
	}
}

// WithEventBus publishes state and subscription changes on bus.
func WithEventBus(bus events.Bus) Option {
	return func(c *Client) {
		c.bus = bus
	}
}

// WithObserver attaches a statistics observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithHandshakeTimeout bounds the websocket handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.handshakeTimeout = d
	}
}

// WithDrainTimeout bounds how long a closing session waits for running handlers.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.drainTimeout = d
	}
}

// WithCloseGrace bounds how long Disconnect waits for the next inbound frame before
// the pending read is abandoned. Zero waits for the feed indefinitely.
//
// This is the only receive timeout the client sets, and only after a close request:
// a read deadline of d is applied to transports that support SetReadDeadline. Open
// sessions never time out a read.
func WithCloseGrace(d time.Duration) Option {
	return func(c *Client) {
		c.closeGrace = d
	}
}

// NewClient creates an idle client. It does not connect.
func NewClient(opts ...Option) *Client {
	c := &Client{
		url:              DefaultURL,
		handshakeTimeout: defaultHandshakeTimeout,
		drainTimeout:     defaultDrainTimeout,
		closeGrace:       defaultCloseGrace,
		observer:         nopObserver{},
		logger:           logger.WithField("component", "ws_client"),
		state:            StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = NewGorillaDialer(c.handshakeTimeout)
	}
	c.registry = NewRegistry(c.bus)
	return c
}

// Subscribe registers handler for the topic of msg and queues msg for the server.
// It may be called in any state; queued messages are sent by the next connection loop
// iteration.
func (c *Client) Subscribe(msg shrimpy.Message, handler Handler) error {
	return c.registry.Subscribe(msg, handler)
}

// Unsubscribe removes the handler for the topic of msg and queues msg for the server.
func (c *Client) Unsubscribe(msg shrimpy.Message) error {
	return c.registry.Unsubscribe(msg)
}

// Registry exposes the subscription registry.
func (c *Client) Registry() *Registry {
	return c.registry
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the error that ended the last session, if any.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Done returns a channel closed when the current session ends. Before the first
// successful Connect it returns nil.
func (c *Client) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sess == nil {
		return nil
	}
	return c.sess.done
}

// SessionID identifies the current connection in logs and events.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.id
}

// Connect dials the feed and starts the connection goroutine. It is only valid from
// the Idle state; use Reconnect afterwards. A failed handshake leaves the client
// Faulted and returns an error wrapping ErrConnectionFailure.
func (c *Client) Connect(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if s := c.State(); s != StateIdle {
		return fmt.Errorf("%w: connect from %s", ErrInvalidState, s)
	}
	return c.connect(ctx)
}

// Disconnect asks the connection goroutine to stop and waits until it has exited and
// the transport is closed. The goroutine notices the request between frames, so the
// call returns after the next inbound frame, a transport error or the close grace
// period, whichever comes first.
func (c *Client) Disconnect() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.disconnect()
}

// Reconnect tears down the current connection, if any, and connects again. A non-empty
// token replaces the one used so far.
func (c *Client) Reconnect(ctx context.Context, token string) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	switch s := c.State(); s {
	case StateOpen:
		c.disconnect()
	case StateClosed, StateFaulted:
	default:
		return fmt.Errorf("%w: reconnect from %s", ErrInvalidState, s)
	}

	c.mu.Lock()
	old := c.sess
	if token != "" {
		c.token = token
	}
	c.mu.Unlock()

	if old != nil {
		<-old.done
	}

	c.logger.Info("reconnecting")
	return c.connect(ctx)
}

func (c *Client) connect(ctx context.Context) error {
	c.transition(StateConnecting, nil)

	endpoint, err := c.endpoint()
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrConnectionFailure, err)
		c.transition(StateFaulted, wrapped)
		return wrapped
	}

	dialCtx := ctx
	if c.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.handshakeTimeout)
		defer cancel()
	}

	conn, resp, err := c.dialer.DialContext(dialCtx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err == nil && conn == nil {
		err = errors.New("dialer returned no connection")
	}
	if err != nil {
		c.observer.ConnectionError("dial")
		wrapped := fmt.Errorf("%w: %v", ErrConnectionFailure, err)
		c.logger.WithError(err).Error("failed to connect to feed")
		c.transition(StateFaulted, wrapped)
		return wrapped
	}

	sess := &session{
		id:   uuid.NewString(),
		conn: conn,
		done: make(chan struct{}),
	}
	sess.dispatcher = dispatcher.NewDispatcher(
		dispatcher.WithRecorder(c.observer),
		dispatcher.WithLogger(c.logger.WithField("session", sess.id)),
	)
	sess.router = NewRouter(c.registry, sess.dispatcher, c.errorHandler, c.observer)

	c.mu.Lock()
	c.sess = sess
	c.lastErr = nil
	c.mu.Unlock()

	c.transition(StateOpen, nil)
	c.logger.WithField("session", sess.id).Info("connected to feed")

	go c.run(sess)
	return nil
}

func (c *Client) disconnect() {
	c.mu.Lock()
	sess := c.sess
	if sess == nil || c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	sess.closing.Store(true)
	from := c.state
	c.state = StateClosing
	c.mu.Unlock()
	c.announce(sess.id, from, StateClosing, nil)

	if rd, ok := sess.conn.(interface{ SetReadDeadline(time.Time) error }); ok && c.closeGrace > 0 {
		_ = rd.SetReadDeadline(time.Now().Add(c.closeGrace))
	}
	c.logger.WithField("session", sess.id).Debug("waiting for connection goroutine to exit")
	<-sess.done
}

// run is the connection goroutine.
func (c *Client) run(sess *session) {
	err := c.loop(sess)
	c.finish(sess, err)
}

func (c *Client) loop(sess *session) error {
	log := c.logger.WithField("session", sess.id)

	for {
		if sess.closing.Load() {
			return nil
		}

		for _, msg := range c.registry.Drain() {
			if err := c.send(sess, msg.Type, msg); err != nil {
				return err
			}
			log.Tracef("sent %s for channel %q", msg.Type, msg.Channel)
		}

		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			if sess.closing.Load() {
				return nil
			}
			return c.transportError("read", err)
		}

		msg, err := shrimpy.DecodeMessage(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		topic, err := ResolveTopic(msg)
		if err != nil {
			return err
		}
		c.observer.FrameReceived(topic)

		out := sess.router.Route(topic, msg, raw)
		switch out.Kind {
		case OutcomePong:
			if err := c.send(sess, shrimpy.TypePong, out.Reply); err != nil {
				return err
			}
			c.observer.HeartbeatAnswered()
		case OutcomeFatal:
			return out.Err
		}
	}
}

func (c *Client) send(sess *session, kind string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", kind, err)
	}
	if err := sess.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return c.transportError("write", err)
	}
	c.observer.FrameSent(kind)
	return nil
}

func (c *Client) transportError(op string, err error) error {
	c.observer.ConnectionError(op)
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.WithError(err).Warnf("feed closed the connection unexpectedly during %s", op)
	}
	return fmt.Errorf("%w: %s: %v", ErrConnectionClosed, op, err)
}

// finish runs the shutdown protocol once the loop has stopped: no further dispatches,
// bounded wait for running handlers, then best-effort transport close.
func (c *Client) finish(sess *session, err error) {
	log := c.logger.WithField("session", sess.id)

	if derr := sess.dispatcher.Close(c.drainTimeout); derr != nil {
		log.WithError(derr).Warn("handlers did not drain before close")
	}
	closeConn(sess.conn)

	// A loop error wins over a close request that arrived while handlers drained.
	to := StateFaulted
	if err == nil && sess.closing.Load() {
		to = StateClosed
	}
	if err != nil {
		log.WithError(err).Error("connection loop terminated")
	} else {
		log.Info("connection closed")
	}

	c.mu.Lock()
	from := c.state
	c.state = to
	c.lastErr = err
	c.mu.Unlock()
	c.announce(sess.id, from, to, err)

	close(sess.done)
}

// closeConn sends a close frame and closes the socket, ignoring errors.
func closeConn(conn Conn) {
	if wc, ok := conn.(interface {
		WriteControl(messageType int, data []byte, deadline time.Time) error
	}); ok {
		_ = wc.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeFrameTimeout))
	}
	_ = conn.Close()
}

func (c *Client) transition(to State, err error) {
	c.mu.Lock()
	from := c.state
	c.state = to
	if err != nil {
		c.lastErr = err
	}
	id := ""
	if c.sess != nil {
		id = c.sess.id
	}
	c.mu.Unlock()
	c.announce(id, from, to, err)
}

func (c *Client) announce(session string, from, to State, err error) {
	c.observer.StateChanged(to.String())
	c.logger.WithFields(logger.Fields{"from": from.String(), "to": to.String()}).Debug("state change")
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.TopicConnectionState, events.StateChange{
		Session: session,
		From:    from.String(),
		To:      to.String(),
		Err:     err,
		At:      time.Now(),
	})
}

func (c *Client) endpoint() (string, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
