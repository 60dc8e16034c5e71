// Package client speaks the realtime room protocol from Go.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-meet/internal/types"
)

const (
	writeWait = 10 * time.Second

	EventConnected        = "connected"
	EventExistingUsers    = "existing-users"
	EventUserJoined       = "user-joined"
	EventReceiveOffer     = "receive-offer"
	EventReceiveAnswer    = "receive-answer"
	EventUserMediaChanged = "user-media-changed"
	EventChatMessage      = "chat-message"
	EventChatHistory      = "chat-history"
	EventWhiteboardData   = "whiteboard-data"
	EventUserLeft         = "user-left"
	EventError            = "error"
)

var ErrUnexpectedGreeting = errors.New("unexpected greeting")

// Envelope is a server event with its payload left undecoded.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	return json.Unmarshal(e.Payload, v)
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// Sender queues a client event for the server.
type Sender interface {
	Send(eventType string, payload any) error
}

type Conn struct {
	ws  *websocket.Conn
	id  string
	log *slog.Logger

	writeMu sync.Mutex
}

// Dial opens a realtime session at rawURL and waits for the server's
// greeting. token may be empty for an anonymous session.
func Dial(ctx context.Context, rawURL, token string, logger *slog.Logger) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("access_token", token)
		u.RawQuery = q.Encode()
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", u.Redacted(), resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}

	c := &Conn{ws: ws, log: logger}

	if deadline, ok := ctx.Deadline(); ok {
		ws.SetReadDeadline(deadline)
	}
	hello, err := c.Receive()
	ws.SetReadDeadline(time.Time{})
	if err != nil {
		ws.Close()
		return nil, err
	}

	var greeting struct {
		ConnectionId string `json:"connection_id"`
	}
	if hello.Type != EventConnected || hello.Decode(&greeting) != nil || greeting.ConnectionId == "" {
		ws.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedGreeting, hello.Type)
	}

	c.id = greeting.ConnectionId
	c.log = logger.With("connection_id", c.id)
	return c, nil
}

func (c *Conn) Id() string {
	return c.id
}

func (c *Conn) Send(eventType string, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(struct {
		Type    string `json:"type"`
		Payload any    `json:"payload,omitempty"`
	}{eventType, payload})
}

// Receive blocks for the next server event.
func (c *Conn) Receive() (Envelope, error) {
	var env Envelope
	if err := c.ws.ReadJSON(&env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (c *Conn) Join(roomId, displayName string) error {
	return c.Send("join-room", map[string]string{"room_id": roomId, "display_name": displayName})
}

func (c *Conn) Chat(text string) error {
	return c.Send("chat-message", map[string]string{"text": text})
}

func (c *Conn) ToggleMedia(kind types.MediaKind, enabled bool) error {
	return c.Send("toggle-media", map[string]any{"kind": kind, "enabled": enabled})
}

func (c *Conn) Leave() error {
	return c.Send("leave-room", nil)
}

// Close says goodbye with a normal close frame before dropping the socket.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	err := c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	c.writeMu.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.log.Debug("close frame", "error", err)
	}

	return c.ws.Close()
}
