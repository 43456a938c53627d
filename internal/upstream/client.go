// Package upstream maintains the websocket link to the cognitive module
// that answers orb queries and pushes motion preferences.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sf-orb/server/logging"
	networklog "sf-orb/server/logging/network"
)

// ErrNotConnected reports a send attempted while the link is down.
var ErrNotConnected = errors.New("upstream: not connected")

// Hub receives the upstream pushes the client decodes.
type Hub interface {
	HandleSmoothingOverride(value float64) bool
	HandleDriftPreference(quadrant string)
	HandleQueryResult(queryID string, confidence float64)
	RecordUpstreamReconnect()
	RecordMalformed()
}

// Config tunes the connection lifecycle.
type Config struct {
	URL              string
	OrbID            string
	HandshakeTimeout time.Duration
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
}

func (c Config) normalized() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 5 * time.Second
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = time.Second
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = 30 * time.Second
	}
	return c
}

// envelope covers every frame on the upstream wire in both directions.
type envelope struct {
	Type       string  `json:"type"`
	OrbID      string  `json:"orb_id,omitempty"`
	Kind       string  `json:"kind,omitempty"`
	Value      float64 `json:"value,omitempty"`
	Quadrant   string  `json:"quadrant,omitempty"`
	ID         string  `json:"id,omitempty"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Client dials the upstream module, performs the handshake, and keeps
// reconnecting with capped backoff until its context ends.
type Client struct {
	cfg       Config
	hub       Hub
	publisher logging.Publisher

	mu   sync.Mutex
	conn *websocket.Conn
}

// New builds a client. Run must be called to establish the link.
func New(cfg Config, hub Hub, publisher logging.Publisher) *Client {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Client{cfg: cfg.normalized(), hub: hub, publisher: publisher}
}

// SendQuery forwards a click query over the live link.
func (c *Client) SendQuery(id, text string) error {
	return c.send(envelope{Type: "query", ID: id, Text: text})
}

// SendClick notifies the upstream of a bare click with no query text.
func (c *Client) SendClick() error {
	return c.send(envelope{Type: "orb_click", OrbID: c.cfg.OrbID})
}

func (c *Client) send(msg envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return ErrNotConnected
	}
	conn.SetWriteDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

// backoff doubles the retry delay up to max. Reset after a successful
// handshake so a long-lived connection does not inherit the penalty of
// flaps from hours ago.
type backoff struct {
	min, max time.Duration
	next     time.Duration
}

func (b *backoff) Next() time.Duration {
	if b.next <= 0 {
		b.next = b.min
	}
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

func (b *backoff) Reset() {
	b.next = b.min
}

// Run connects and serves the link until ctx is cancelled. Each dropped
// connection triggers a backoff-and-retry; the first attempt failing is
// not fatal either.
func (c *Client) Run(ctx context.Context) error {
	retry := backoff{min: c.cfg.ReconnectMin, max: c.cfg.ReconnectMax}
	first := true

	for {
		connected, err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			networklog.UpstreamDisconnected(ctx, c.publisher, 0, c.cfg.URL,
				networklog.DisconnectPayload{Reason: err.Error()})
			if !first {
				c.hub.RecordUpstreamReconnect()
			}
		}
		first = false
		if connected {
			retry.Reset()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.Next()):
		}
	}
}

// runOnce reports whether the handshake completed so Run can reset the
// backoff even though the connection always ends in an error.
func (c *Client) runOnce(ctx context.Context) (bool, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.URL, nil)
	cancel()
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()

	if err := c.handshake(conn); err != nil {
		return false, err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	networklog.UpstreamConnected(ctx, c.publisher, 0, c.cfg.URL)

	// The watcher must die with this connection, not with the Run context.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	return true, c.readLoop(ctx, conn)
}

func (c *Client) handshake(conn *websocket.Conn) error {
	hello := envelope{Type: "orb_handshake", OrbID: c.cfg.OrbID}
	data, err := json.Marshal(hello)
	if err != nil {
		return fmt.Errorf("encode handshake: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read handshake ack: %w", err)
	}

	var ack envelope
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decode handshake ack: %w", err)
	}
	if ack.Type != "handshake_ack" {
		return fmt.Errorf("unexpected handshake reply %q", ack.Type)
	}

	conn.SetReadDeadline(time.Time{})
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		var msg envelope
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.hub.RecordMalformed()
			continue
		}

		switch msg.Type {
		case "preference":
			switch msg.Kind {
			case "smoothing_override":
				c.hub.HandleSmoothingOverride(msg.Value)
			case "drift_preference":
				c.hub.HandleDriftPreference(msg.Quadrant)
			default:
				c.hub.RecordMalformed()
			}
		case "query_result":
			c.hub.HandleQueryResult(msg.ID, msg.Confidence)
		case "handshake_ack":
			// Redundant ack after reconnect races are harmless.
		default:
			c.hub.RecordMalformed()
		}
	}
}
