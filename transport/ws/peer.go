// Package ws bridges a WAMP session to a WebSocket connection.
//
// A Peer owns one gorilla/websocket connection and one session. It installs
// itself as the session's send hook so outbound messages become text
// frames, and its Run loop decodes inbound frames and feeds them to
// Session.Handle. The peer adds no protocol of its own: reconnection,
// authentication, and flow control are out of scope.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"goa.design/wamp"
	"goa.design/wamp/message"
	"goa.design/wamp/pubsub"
	"goa.design/wamp/session"
	"goa.design/wamp/telemetry"
)

type (
	// Peer pumps WAMP messages between a WebSocket connection and a
	// session. Create with NewPeer or Dial, then call Run to process
	// inbound frames until the connection closes.
	Peer struct {
		conn   *websocket.Conn
		sess   *session.Session
		logger telemetry.Logger

		writeMu sync.Mutex
		once    sync.Once
	}

	// Option configures a Peer.
	Option func(*Peer)
)

// WithLogger sets the logger used by the peer's read and write paths.
// Defaults to a no-op.
func WithLogger(logger telemetry.Logger) Option {
	return func(p *Peer) { p.logger = logger }
}

// NewPeer wraps an established WebSocket connection. The session's send
// hook is installed to write outbound frames; the peer holds the session
// strongly for its own lifetime.
func NewPeer(conn *websocket.Conn, sess *session.Session, opts ...Option) *Peer {
	p := &Peer{
		conn:   conn,
		sess:   sess,
		logger: telemetry.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	sess.SetSendHook(session.BindHook(p, (*Peer).Send))
	return p
}

// Dial connects to a WAMP WebSocket endpoint and wraps the connection. The
// returned peer is ready to Run; the server is expected to open with a
// WELCOME frame, which Run routes through the session to adopt the
// server-assigned session id.
func Dial(ctx context.Context, url string, sess *session.Session, opts ...Option) (*Peer, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return NewPeer(conn, sess, opts...), nil
}

// Session returns the session the peer pumps messages into.
func (p *Peer) Session() *session.Session {
	return p.sess
}

// Send encodes a message and writes it as a text frame. Safe for concurrent
// use; installed as the session's send hook by NewPeer.
func (p *Peer) Send(m message.Message) error {
	data, err := message.Marshal(m)
	if err != nil {
		return fmt.Errorf("ws: encode: %w", err)
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("ws: write: %w", err)
	}
	return nil
}

// Announce opens the server side of the handshake by sending WELCOME with
// the session's id.
func (p *Peer) Announce() error {
	return p.Send(message.NewWelcome(p.sess.ID()))
}

// Run reads frames until the connection closes and dispatches each decoded
// message to the session. Malformed frames and messages that lack a hook
// are logged and dropped; Run returns nil on a normal close or after the
// connection was closed locally, and the read error otherwise.
func (p *Peer) Run(ctx context.Context) error {
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("ws: read: %w", err)
		}
		m, err := message.Unmarshal(data)
		if err != nil {
			p.logger.Warn(ctx, "ws: dropping malformed frame", "err", err.Error())
			continue
		}
		if err := p.sess.Handle(ctx, m); err != nil {
			if errors.Is(err, wamp.ErrHookMissing) {
				p.logger.Debug(ctx, "ws: dropped message, no hook", "type", m.Type.String())
				continue
			}
			p.logger.Warn(ctx, "ws: message handling failed",
				"type", m.Type.String(), "err", err.Error())
		}
	}
}

// Close removes the session's bus subscriptions, sends a close frame, and
// closes the connection. Idempotent.
func (p *Peer) Close() error {
	var err error
	p.once.Do(func() {
		p.sess.Bus().Unsubscribe(pubsub.Filter{Subscriber: p.sess})
		p.writeMu.Lock()
		deadline := time.Now().Add(time.Second)
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		p.writeMu.Unlock()
		err = p.conn.Close()
	})
	return err
}
