package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait              = 10 * time.Second
	defaultPongWait        = 60 * time.Second
	defaultMaxMessageBytes = 1 << 20
	defaultSendQueue       = 256
)

type SessionState int

const (
	StateConnected SessionState = iota
	StateJoining
	StateActive
	StateLeft
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateJoining:
		return "Joining"
	case StateActive:
		return "Active"
	case StateLeft:
		return "Left"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// Session is one websocket connection. Its read goroutine is the only
// caller of the relay on its behalf, so events from one connection are
// handled in arrival order.
type Session struct {
	id     string
	userId string
	conn   *websocket.Conn
	relay  *Relay
	log    *slog.Logger
	send   chan *ServerMessage

	stop     chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	state SessionState
	room  *Room
}

func NewSession(conn *websocket.Conn, relay *Relay, l *slog.Logger, userId string) *Session {
	queue := defaultSendQueue
	if relay != nil && relay.opts.SendQueue > 0 {
		queue = relay.opts.SendQueue
	}

	id := uuid.NewString()
	return &Session{
		id:     id,
		userId: userId,
		conn:   conn,
		relay:  relay,
		log:    l.With("connection_id", id),
		send:   make(chan *ServerMessage, queue),
		stop:   make(chan struct{}),
		state:  StateConnected,
	}
}

func (s *Session) Id() string {
	return s.id
}

func (s *Session) UserId() string {
	return s.userId
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// RoomId is empty unless the session is Active.
func (s *Session) RoomId() string {
	if r := s.activeRoom(); r != nil {
		return r.Id()
	}
	return ""
}

// Queue enqueues msg without blocking. A full queue drops the message.
func (s *Session) Queue(msg *ServerMessage) bool {
	select {
	case s.send <- msg:
	default:
		s.log.Warn("send queue full, dropping message", "type", msg.Type)
		if s.relay != nil {
			s.relay.stats.Incr(metricDroppedMessages)
		}
		return false
	}

	return true
}

func (s *Session) beginJoin() (SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	if prev != StateConnected && prev != StateLeft {
		return prev, false
	}
	s.state = StateJoining
	return prev, true
}

func (s *Session) abortJoin(prev SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateJoining {
		s.state = prev
	}
}

func (s *Session) activate(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateActive
	s.room = r
}

func (s *Session) activeRoom() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return nil
	}
	return s.room
}

// detach moves the session to next and returns the room it was active in,
// if any.
func (s *Session) detach(next SessionState) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return nil
	}

	r := s.room
	if s.state != StateActive {
		r = nil
	}
	if next == StateDisconnected || s.state == StateActive {
		s.state = next
	}
	s.room = nil
	return r
}

func (s *Session) stopSession() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

func (s *Session) Write() {
	pingInterval := (s.relay.opts.PongWait * 9) / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		s.log.Debug("write exiting")
	}()

	for {
		select {
		case msg := <-s.send:
			bytes, err := json.Marshal(msg)
			if err != nil {
				s.log.Error("failed to serialize message", "type", msg.Type, "error", err)
				continue
			}

			if !s.writeFrame(websocket.TextMessage, bytes) {
				return
			}
		case <-s.stop:
			s.drain()
			s.writeFrame(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if !s.writeFrame(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// drain flushes whatever is already queued before the connection closes.
func (s *Session) drain() {
	for {
		select {
		case msg := <-s.send:
			bytes, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if !s.writeFrame(websocket.TextMessage, bytes) {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) Read() {
	defer func() {
		s.conn.Close()
		s.relay.Disconnect(s)
		s.log.Debug("read exiting")
	}()

	pongWait := s.relay.opts.PongWait
	s.conn.SetReadLimit(s.relay.opts.MaxMessageBytes)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Warn("ws read", "error", err)
			}
			return
		}

		s.handle(raw)
	}
}

func (s *Session) handle(raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("panic while handling event", "panic", rec)
			s.Queue(NewErrorMessage("", errInternal))
		}
	}()

	ev, err := DecodeClientMessage(raw)
	if err != nil {
		s.log.Debug("rejected message", "error", err)
		s.Queue(NewErrorMessage(peekType(raw), err))
		return
	}

	s.relay.dispatch(s, ev)
}

func (s *Session) writeFrame(msgType int, data []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := s.conn.WriteMessage(msgType, data); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			s.log.Warn("ws write", "error", err)
		}
		return false
	}

	return true
}

// peekType recovers the event type of a frame that failed to decode, if the
// envelope itself is readable.
func peekType(raw []byte) EventType {
	var env ClientMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return env.Type
}
