package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/libmcu/ocpp-go/internal/engine"
	"github.com/libmcu/ocpp-go/internal/ocppmsg"
)

// Client is a single persistent OCPP-J WebSocket connection to a Central
// System. It implements engine.Transport: Send and Recv are each called from
// the engine's single Step loop, with the engine lock released around the
// call, so conn is guarded independently here for the (rare) case a caller
// drives Send and Recv from different goroutines.
type Client struct {
	url         string
	subprotocol string
	dialTimeout time.Duration
	recvTimeout time.Duration
	header      http.Header

	mu   sync.Mutex
	conn *websocket.Conn
	log  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBasicAuth adds HTTP Basic credentials to the upgrade request, the
// authentication method OCPP 1.6 central systems commonly require.
func WithBasicAuth(user, password string) Option {
	return func(c *Client) {
		if user == "" {
			return
		}
		c.header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+password)))
	}
}

// WithDialTimeout overrides the default connect timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithRecvTimeout overrides the default Recv read-deadline; a Recv that
// times out returns engine.ErrNoMessage rather than blocking the Step loop.
func WithRecvTimeout(d time.Duration) Option {
	return func(c *Client) { c.recvTimeout = d }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient builds a Client for the given Central System URL (ws:// or
// wss://). chargePointID is appended as a path segment, per the OCPP 1.6
// convention of routing by Charge Point identity.
func NewClient(centralURL, chargePointID string, opts ...Option) *Client {
	c := &Client{
		url:         centralURL + "/" + chargePointID,
		subprotocol: "ocpp1.6",
		dialTimeout: 10 * time.Second,
		recvTimeout: 1 * time.Second,
		header:      http.Header{},
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the Central System and negotiates the ocpp1.6 subprotocol.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.dialTimeout,
		Subprotocols:     []string{c.subprotocol},
	}

	conn, resp, err := dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("transport: connect %s: %w", c.url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.log.Info("transport: connected", "url", c.url)
	return nil
}

// Connected reports whether a connection is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close closes the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Send encodes msg as an OCPP-J frame and writes it as a single text
// message.
func (c *Client) Send(msg engine.Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport: send: %w", engine.ErrNoMessage)
	}

	raw, err := Encode(msg.Role, msg.ID, msg.Type, msg.Payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(c.dialTimeout)); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Recv reads the next frame with a bounded read deadline. A deadline
// exceeded is mapped to engine.ErrNoMessage so the Step loop never blocks on
// an idle link.
func (c *Client) Recv() (engine.Message, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return engine.Message{}, engine.ErrNoMessage
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.recvTimeout)); err != nil {
		return engine.Message{}, err
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return engine.Message{}, engine.ErrNoMessage
		}
		return engine.Message{}, fmt.Errorf("transport: recv: %w", err)
	}

	frame, err := Decode(raw)
	if err != nil {
		return engine.Message{}, err
	}

	typ := ocppmsg.MsgMax
	if frame.Role() == ocppmsg.Call {
		typ = ocppmsg.ParseType(frame.Action)
	}

	return engine.Message{
		ID:      frame.ID,
		Role:    frame.Role(),
		Type:    typ,
		Payload: frame.Payload,
	}, nil
}
