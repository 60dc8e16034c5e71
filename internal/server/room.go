package server

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/npezzotti/go-meet/internal/types"
)

const defaultMaxChatHistory = 500

// Sink receives the events a room fans out to one participant.
type Sink interface {
	Queue(msg *ServerMessage) bool
}

type member struct {
	types.Participant
	sink Sink
}

// Room is the realtime state of one meeting session. Every mutation and
// every fan-out happens under mu, so all participants observe room events
// in the same order.
type Room struct {
	id        string
	createdAt time.Time
	maxChat   int

	mu         sync.Mutex
	members    []*member
	index      map[string]*member
	chat       []types.ChatMessage
	whiteboard []types.Stroke
	// closed is set by the registry when it reclaims the empty room
	closed bool
}

func newRoom(id string, maxChat int) *Room {
	if maxChat <= 0 {
		maxChat = defaultMaxChatHistory
	}

	return &Room{
		id:         id,
		createdAt:  time.Now(),
		maxChat:    maxChat,
		index:      make(map[string]*member),
		chat:       []types.ChatMessage{},
		whiteboard: []types.Stroke{},
	}
}

func (r *Room) Id() string {
	return r.id
}

// AddParticipant registers p. A connection id that is already present is
// rejected with ErrAlreadyJoined.
func (r *Room) AddParticipant(p types.Participant, sink Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errRoomClosed
	}
	return r.addLocked(p, sink)
}

func (r *Room) addLocked(p types.Participant, sink Sink) error {
	if _, ok := r.index[p.ConnectionId]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyJoined, p.ConnectionId)
	}

	m := &member{Participant: p, sink: sink}
	r.members = append(r.members, m)
	r.index[p.ConnectionId] = m
	return nil
}

// RemoveParticipant removes the connection and reports whether the room is
// empty afterwards. Removing an absent connection is a no-op.
func (r *Room) RemoveParticipant(connectionId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(connectionId)
	return len(r.members) == 0
}

func (r *Room) removeLocked(connectionId string) (types.Participant, bool) {
	m, ok := r.index[connectionId]
	if !ok {
		return types.Participant{}, false
	}

	delete(r.index, connectionId)
	r.members = slices.DeleteFunc(r.members, func(other *member) bool {
		return other == m
	})
	return m.Participant, true
}

// Participants returns the participants in join order.
func (r *Room) Participants() []types.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.participantsLocked()
}

func (r *Room) participantsLocked() []types.Participant {
	out := make([]types.Participant, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.Participant)
	}
	return out
}

func (r *Room) Participant(connectionId string) (types.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.index[connectionId]
	if !ok {
		return types.Participant{}, false
	}
	return m.Participant, true
}

func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.members)
}

func (r *Room) AppendChatMessage(msg types.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.appendChatLocked(msg)
}

func (r *Room) appendChatLocked(msg types.ChatMessage) {
	r.chat = append(r.chat, msg)
	if over := len(r.chat) - r.maxChat; over > 0 {
		r.chat = slices.Delete(r.chat, 0, over)
	}
}

// ChatHistory returns a copy of the retained chat messages in append order.
func (r *Room) ChatHistory() []types.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.chat)
}

func (r *Room) SetWhiteboardSnapshot(strokes []types.Stroke) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.setWhiteboardLocked(strokes)
}

func (r *Room) setWhiteboardLocked(strokes []types.Stroke) {
	if strokes == nil {
		strokes = []types.Stroke{}
	}
	r.whiteboard = slices.Clone(strokes)
}

func (r *Room) WhiteboardSnapshot() []types.Stroke {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.whiteboard)
}

// SetMedia updates one media flag of a participant.
func (r *Room) SetMedia(connectionId string, kind types.MediaKind, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.setMediaLocked(connectionId, kind, enabled)
}

func (r *Room) setMediaLocked(connectionId string, kind types.MediaKind, enabled bool) error {
	m, ok := r.index[connectionId]
	if !ok {
		return ErrNotInRoom
	}

	switch kind {
	case types.MediaAudio:
		m.AudioEnabled = enabled
	case types.MediaVideo:
		m.VideoEnabled = enabled
	case types.MediaScreen:
		m.ScreenSharing = enabled
	default:
		return fmt.Errorf("%w: unknown media kind %q", ErrMalformedPayload, kind)
	}
	return nil
}

func (r *Room) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closed
}

// join adds p and, against the same membership snapshot, replies to the
// joiner and notifies everybody else.
func (r *Room) join(p types.Participant, sink Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errRoomClosed
	}

	existing := r.participantsLocked()
	if err := r.addLocked(p, sink); err != nil {
		return err
	}

	sink.Queue(NewExistingUsers(existing))
	sink.Queue(NewChatHistory(slices.Clone(r.chat)))
	sink.Queue(NewWhiteboardData(slices.Clone(r.whiteboard)))

	r.broadcast(NewUserJoined(p), p.ConnectionId)
	return nil
}

// leave removes the connection and notifies the remaining participants.
func (r *Room) leave(connectionId string) (p types.Participant, empty bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok = r.removeLocked(connectionId)
	if ok {
		r.broadcast(NewUserLeft(p), "")
	}
	return p, len(r.members) == 0, ok
}

// relay delivers a negotiation envelope to its target iff both ends are
// still participants of this room.
func (r *Room) relay(n Negotiation, out EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[n.CallerId]; !ok {
		return false
	}
	target, ok := r.index[n.TargetId]
	if !ok {
		return false
	}

	var msg *ServerMessage
	if out == EventReceiveAnswer {
		msg = NewReceiveAnswer(n)
	} else {
		msg = NewReceiveOffer(n)
	}
	return target.sink.Queue(msg)
}

func (r *Room) toggleMedia(connectionId string, kind types.MediaKind, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.setMediaLocked(connectionId, kind, enabled); err != nil {
		return err
	}

	r.broadcast(NewUserMediaChanged(connectionId, kind, enabled), connectionId)
	return nil
}

// chatMessage appends msg and sends it to every participant including the
// sender. An empty SenderName is taken from the participant record.
func (r *Room) chatMessage(msg types.ChatMessage) (types.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.index[msg.SenderId]
	if !ok {
		return types.ChatMessage{}, ErrNotInRoom
	}
	if msg.SenderName == "" {
		msg.SenderName = m.DisplayName
	}

	r.appendChatLocked(msg)
	r.broadcast(NewChatMessage(msg), "")
	return msg, nil
}

func (r *Room) publishWhiteboard(senderId string, strokes []types.Stroke) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[senderId]; !ok {
		return ErrNotInRoom
	}

	r.setWhiteboardLocked(strokes)
	r.broadcast(NewWhiteboardDraw(slices.Clone(r.whiteboard)), senderId)
	return nil
}

func (r *Room) clearWhiteboard(senderId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[senderId]; !ok {
		return ErrNotInRoom
	}

	r.setWhiteboardLocked(nil)
	r.broadcast(NewWhiteboardClear(), senderId)
	return nil
}

func (r *Room) sendWhiteboard(requesterId string) ([]types.Stroke, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.index[requesterId]
	if !ok {
		return nil, ErrNotInRoom
	}

	strokes := slices.Clone(r.whiteboard)
	m.sink.Queue(NewWhiteboardData(strokes))
	return strokes, nil
}

// broadcast must be called with mu held. skip may be empty.
func (r *Room) broadcast(msg *ServerMessage, skip string) {
	for _, m := range r.members {
		if m.ConnectionId == skip {
			continue
		}
		m.sink.Queue(msg)
	}
}
