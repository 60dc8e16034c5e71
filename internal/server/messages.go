package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/npezzotti/go-meet/internal/types"
)

const (
	maxRoomIdLength      = 128
	maxDisplayNameLength = 64
	maxChatTextLength    = 2000
	defaultDisplayName   = "Anonymous"
)

type EventType string

// client -> server
const (
	EventJoinRoom          EventType = "join-room"
	EventSendOffer         EventType = "send-offer"
	EventSendAnswer        EventType = "send-answer"
	EventToggleMedia       EventType = "toggle-media"
	EventGetWhiteboardData EventType = "get-whiteboard-data"
	EventLeaveRoom         EventType = "leave-room"
)

// server -> client
const (
	EventConnected        EventType = "connected"
	EventExistingUsers    EventType = "existing-users"
	EventUserJoined       EventType = "user-joined"
	EventReceiveOffer     EventType = "receive-offer"
	EventReceiveAnswer    EventType = "receive-answer"
	EventUserMediaChanged EventType = "user-media-changed"
	EventChatHistory      EventType = "chat-history"
	EventWhiteboardData   EventType = "whiteboard-data"
	EventUserLeft         EventType = "user-left"
	EventError            EventType = "error"
)

// both directions
const (
	EventChatMessage     EventType = "chat-message"
	EventWhiteboardDraw  EventType = "whiteboard-draw"
	EventWhiteboardClear EventType = "whiteboard-clear"
)

// ClientMessage is the wire envelope of every event sent by a client.
type ClientMessage struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ClientEvent is the closed set of decoded client events. Every
// implementation is handled by Relay.dispatch.
type ClientEvent interface {
	Type() EventType
}

type JoinRoom struct {
	RoomId      string `json:"room_id"`
	DisplayName string `json:"display_name"`
	UserId      string `json:"user_id,omitempty"`
}

// Negotiation is an opaque connection-setup envelope. Signal is never
// interpreted by the server.
type Negotiation struct {
	CallerId string          `json:"caller_id,omitempty"`
	TargetId string          `json:"target_id"`
	Signal   json.RawMessage `json:"signal"`
}

type SendOffer struct {
	Negotiation
}

type SendAnswer struct {
	Negotiation
}

type ToggleMedia struct {
	Kind    types.MediaKind `json:"kind"`
	Enabled *bool           `json:"enabled"`
}

type SendChat struct {
	RoomId string `json:"room_id,omitempty"`
	Text   string `json:"text"`
}

type PublishWhiteboard struct {
	RoomId  string         `json:"room_id,omitempty"`
	Strokes []types.Stroke `json:"strokes"`
}

type ClearWhiteboard struct {
	RoomId string `json:"room_id,omitempty"`
}

type RequestWhiteboard struct {
	RoomId string `json:"room_id,omitempty"`
}

type LeaveRoom struct{}

func (*JoinRoom) Type() EventType          { return EventJoinRoom }
func (*SendOffer) Type() EventType         { return EventSendOffer }
func (*SendAnswer) Type() EventType        { return EventSendAnswer }
func (*ToggleMedia) Type() EventType       { return EventToggleMedia }
func (*SendChat) Type() EventType          { return EventChatMessage }
func (*PublishWhiteboard) Type() EventType { return EventWhiteboardDraw }
func (*ClearWhiteboard) Type() EventType   { return EventWhiteboardClear }
func (*RequestWhiteboard) Type() EventType { return EventGetWhiteboardData }
func (*LeaveRoom) Type() EventType         { return EventLeaveRoom }

// DecodeClientMessage parses a raw frame into a typed, validated event.
func DecodeClientMessage(raw []byte) (ClientEvent, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var ev ClientEvent
	switch msg.Type {
	case EventJoinRoom:
		ev = &JoinRoom{}
	case EventSendOffer:
		ev = &SendOffer{}
	case EventSendAnswer:
		ev = &SendAnswer{}
	case EventToggleMedia:
		ev = &ToggleMedia{}
	case EventChatMessage:
		ev = &SendChat{}
	case EventWhiteboardDraw:
		ev = &PublishWhiteboard{}
	case EventWhiteboardClear:
		ev = &ClearWhiteboard{}
	case EventGetWhiteboardData:
		ev = &RequestWhiteboard{}
	case EventLeaveRoom:
		ev = &LeaveRoom{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Type)
	}

	if len(msg.Payload) > 0 && !bytes.Equal(msg.Payload, []byte("null")) {
		if err := json.Unmarshal(msg.Payload, ev); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, msg.Type, err)
		}
	}

	if err := validate(ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, msg.Type, err)
	}

	return ev, nil
}

func validate(ev ClientEvent) error {
	switch e := ev.(type) {
	case *JoinRoom:
		e.RoomId = strings.TrimSpace(e.RoomId)
		if e.RoomId == "" {
			return fmt.Errorf("room_id is required")
		}
		if len(e.RoomId) > maxRoomIdLength {
			return fmt.Errorf("room_id exceeds %d bytes", maxRoomIdLength)
		}
		e.DisplayName = strings.TrimSpace(e.DisplayName)
		if e.DisplayName == "" {
			e.DisplayName = defaultDisplayName
		}
		if utf8.RuneCountInString(e.DisplayName) > maxDisplayNameLength {
			return fmt.Errorf("display_name exceeds %d characters", maxDisplayNameLength)
		}
	case *SendOffer:
		return validateNegotiation(&e.Negotiation)
	case *SendAnswer:
		return validateNegotiation(&e.Negotiation)
	case *ToggleMedia:
		if !e.Kind.Valid() {
			return fmt.Errorf("unknown media kind %q", e.Kind)
		}
		if e.Enabled == nil {
			return fmt.Errorf("enabled is required")
		}
	case *SendChat:
		e.Text = strings.TrimSpace(e.Text)
		if e.Text == "" {
			return fmt.Errorf("text is required")
		}
		if utf8.RuneCountInString(e.Text) > maxChatTextLength {
			return fmt.Errorf("text exceeds %d characters", maxChatTextLength)
		}
	case *PublishWhiteboard:
		if e.Strokes == nil {
			e.Strokes = []types.Stroke{}
		}
		for i, s := range e.Strokes {
			if !s.Valid() {
				return fmt.Errorf("stroke %d is invalid", i)
			}
		}
	}
	return nil
}

func validateNegotiation(n *Negotiation) error {
	if n.TargetId == "" {
		return fmt.Errorf("target_id is required")
	}
	if len(n.Signal) == 0 || bytes.Equal(n.Signal, []byte("null")) {
		return fmt.Errorf("signal is required")
	}
	return nil
}

type ServerMessage struct {
	Type      EventType `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Connected struct {
	ConnectionId string `json:"connection_id"`
}

type MediaChanged struct {
	ConnectionId string          `json:"connection_id"`
	Kind         types.MediaKind `json:"kind"`
	Enabled      bool            `json:"enabled"`
}

type WhiteboardSnapshot struct {
	Strokes []types.Stroke `json:"strokes"`
}

type UserLeft struct {
	ConnectionId string `json:"connection_id"`
	DisplayName  string `json:"display_name"`
	UserId       string `json:"user_id,omitempty"`
}

type ErrorPayload struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Event   EventType `json:"event,omitempty"`
}

func newServerMessage(t EventType, payload any) *ServerMessage {
	return &ServerMessage{
		Type:      t,
		Payload:   payload,
		Timestamp: Now(),
	}
}

func NewConnected(connectionId string) *ServerMessage {
	return newServerMessage(EventConnected, Connected{ConnectionId: connectionId})
}

func NewExistingUsers(participants []types.Participant) *ServerMessage {
	if participants == nil {
		participants = []types.Participant{}
	}
	return newServerMessage(EventExistingUsers, participants)
}

func NewUserJoined(p types.Participant) *ServerMessage {
	return newServerMessage(EventUserJoined, p)
}

func NewReceiveOffer(n Negotiation) *ServerMessage {
	return newServerMessage(EventReceiveOffer, n)
}

func NewReceiveAnswer(n Negotiation) *ServerMessage {
	return newServerMessage(EventReceiveAnswer, n)
}

func NewUserMediaChanged(connectionId string, kind types.MediaKind, enabled bool) *ServerMessage {
	return newServerMessage(EventUserMediaChanged, MediaChanged{
		ConnectionId: connectionId,
		Kind:         kind,
		Enabled:      enabled,
	})
}

func NewChatMessage(msg types.ChatMessage) *ServerMessage {
	return newServerMessage(EventChatMessage, msg)
}

func NewChatHistory(history []types.ChatMessage) *ServerMessage {
	if history == nil {
		history = []types.ChatMessage{}
	}
	return newServerMessage(EventChatHistory, history)
}

func NewWhiteboardData(strokes []types.Stroke) *ServerMessage {
	if strokes == nil {
		strokes = []types.Stroke{}
	}
	return newServerMessage(EventWhiteboardData, WhiteboardSnapshot{Strokes: strokes})
}

func NewWhiteboardDraw(strokes []types.Stroke) *ServerMessage {
	if strokes == nil {
		strokes = []types.Stroke{}
	}
	return newServerMessage(EventWhiteboardDraw, WhiteboardSnapshot{Strokes: strokes})
}

func NewWhiteboardClear() *ServerMessage {
	return newServerMessage(EventWhiteboardClear, nil)
}

func NewUserLeft(p types.Participant) *ServerMessage {
	return newServerMessage(EventUserLeft, UserLeft{
		ConnectionId: p.ConnectionId,
		DisplayName:  p.DisplayName,
		UserId:       p.UserId,
	})
}

// NewErrorMessage reports a rejected event back to its sender.
func NewErrorMessage(event EventType, err error) *ServerMessage {
	return newServerMessage(EventError, ErrorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
		Event:   event,
	})
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
