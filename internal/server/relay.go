package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/npezzotti/go-meet/internal/stats"
	"github.com/npezzotti/go-meet/internal/types"
	"github.com/teris-io/shortid"
)

const (
	metricActiveRooms        = "ActiveRooms"
	metricActiveConnections  = "ActiveConnections"
	metricActiveParticipants = "ActiveParticipants"
	metricChatMessages       = "ChatMessages"
	metricSignalsRelayed     = "SignalsRelayed"
	metricDroppedMessages    = "DroppedMessages"
)

var metrics = []string{
	metricActiveRooms,
	metricActiveConnections,
	metricActiveParticipants,
	metricChatMessages,
	metricSignalsRelayed,
	metricDroppedMessages,
}

type Options struct {
	MaxChatHistory  int
	MaxMessageBytes int64
	SendQueue       int
	PongWait        time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxChatHistory <= 0 {
		o.MaxChatHistory = defaultMaxChatHistory
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = defaultMaxMessageBytes
	}
	if o.SendQueue <= 0 {
		o.SendQueue = defaultSendQueue
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	return o
}

// Relay applies client events to rooms on behalf of sessions.
type Relay struct {
	log      *slog.Logger
	stats    stats.StatsProvider
	registry *Registry
	opts     Options
	newId    func() (string, error)

	sessionsLock sync.Mutex
	sessions     map[string]*Session
}

func NewRelay(logger *slog.Logger, su stats.StatsProvider, opts Options) *Relay {
	opts = opts.withDefaults()
	for _, m := range metrics {
		su.RegisterMetric(m)
	}

	return &Relay{
		log:      logger,
		stats:    su,
		registry: NewRegistry(opts.MaxChatHistory, su),
		opts:     opts,
		newId:    shortid.Generate,
		sessions: make(map[string]*Session),
	}
}

func (rl *Relay) Registry() *Registry {
	return rl.registry
}

// Register tracks s and greets it with its connection id.
func (rl *Relay) Register(s *Session) {
	rl.sessionsLock.Lock()
	rl.sessions[s.id] = s
	rl.sessionsLock.Unlock()

	rl.stats.Incr(metricActiveConnections)
	s.Queue(NewConnected(s.id))
}

func (rl *Relay) deregister(s *Session) {
	rl.sessionsLock.Lock()
	defer rl.sessionsLock.Unlock()

	if _, ok := rl.sessions[s.id]; ok {
		delete(rl.sessions, s.id)
		rl.stats.Decr(metricActiveConnections)
	}
}

func (rl *Relay) SessionCount() int {
	rl.sessionsLock.Lock()
	defer rl.sessionsLock.Unlock()

	return len(rl.sessions)
}

// Join places s into the room ev names, creating the room if needed.
func (rl *Relay) Join(s *Session, ev *JoinRoom) error {
	prev, ok := s.beginJoin()
	if !ok {
		return fmt.Errorf("%w: session is %s", ErrAlreadyJoined, prev)
	}

	userId := ev.UserId
	if s.userId != "" {
		userId = s.userId
	}

	p := types.Participant{
		ConnectionId: s.id,
		DisplayName:  ev.DisplayName,
		UserId:       userId,
		AudioEnabled: true,
		VideoEnabled: true,
		JoinedAt:     Now(),
	}

	for {
		room := rl.registry.GetOrCreate(ev.RoomId)
		err := room.join(p, s)
		if errors.Is(err, errRoomClosed) {
			continue
		}
		if err != nil {
			s.abortJoin(prev)
			return err
		}

		s.activate(room)
		break
	}

	rl.stats.Incr(metricActiveParticipants)
	s.log.Info("joined room", "room_id", ev.RoomId, "display_name", ev.DisplayName)
	return nil
}

func (rl *Relay) Offer(s *Session, n Negotiation) error {
	return rl.negotiate(s, n, EventReceiveOffer)
}

func (rl *Relay) Answer(s *Session, n Negotiation) error {
	return rl.negotiate(s, n, EventReceiveAnswer)
}

// negotiate forwards n to its target. A target that is not in the caller's
// room is not an error, the envelope is just dropped.
func (rl *Relay) negotiate(s *Session, n Negotiation, out EventType) error {
	room := s.activeRoom()
	if room == nil {
		return ErrNotInRoom
	}

	n.CallerId = s.id
	if room.relay(n, out) {
		rl.stats.Incr(metricSignalsRelayed)
	} else {
		s.log.Debug("dropped negotiation", "type", out, "target_id", n.TargetId)
	}
	return nil
}

func (rl *Relay) ToggleMedia(s *Session, kind types.MediaKind, enabled bool) error {
	room := s.activeRoom()
	if room == nil {
		return ErrNotInRoom
	}
	return room.toggleMedia(s.id, kind, enabled)
}

// SendChat appends text to the room history and broadcasts it to every
// participant including the sender. An empty roomId means the sender's room.
func (rl *Relay) SendChat(s *Session, roomId, text string) (types.ChatMessage, error) {
	room, err := rl.memberRoom(s, roomId)
	if err != nil {
		return types.ChatMessage{}, err
	}

	id, err := rl.newId()
	if err != nil {
		return types.ChatMessage{}, fmt.Errorf("generate message id: %w", err)
	}

	msg, err := room.chatMessage(types.ChatMessage{
		Id:        id,
		SenderId:  s.id,
		Text:      text,
		Timestamp: Now(),
	})
	if err != nil {
		return types.ChatMessage{}, err
	}

	rl.stats.Incr(metricChatMessages)
	return msg, nil
}

func (rl *Relay) RequestWhiteboard(s *Session, roomId string) error {
	room, err := rl.memberRoom(s, roomId)
	if err != nil {
		return err
	}
	_, err = room.sendWhiteboard(s.id)
	return err
}

func (rl *Relay) PublishWhiteboard(s *Session, roomId string, strokes []types.Stroke) error {
	room, err := rl.memberRoom(s, roomId)
	if err != nil {
		return err
	}
	return room.publishWhiteboard(s.id, strokes)
}

func (rl *Relay) ClearWhiteboard(s *Session, roomId string) error {
	room, err := rl.memberRoom(s, roomId)
	if err != nil {
		return err
	}
	return room.clearWhiteboard(s.id)
}

func (rl *Relay) memberRoom(s *Session, roomId string) (*Room, error) {
	room := s.activeRoom()
	if room == nil {
		return nil, ErrNotInRoom
	}
	if roomId != "" && roomId != room.Id() {
		return nil, fmt.Errorf("%w: %s", ErrNotInRoom, roomId)
	}
	return room, nil
}

// Leave removes s from its room. It is a no-op unless s is Active.
func (rl *Relay) Leave(s *Session) {
	rl.exitRoom(s, s.detach(StateLeft))
}

// Disconnect is an implicit leave followed by deregistration. Calling it
// more than once is harmless.
func (rl *Relay) Disconnect(s *Session) {
	rl.exitRoom(s, s.detach(StateDisconnected))
	rl.deregister(s)
	s.stopSession()
}

func (rl *Relay) exitRoom(s *Session, room *Room) {
	if room == nil {
		return
	}

	_, empty, ok := room.leave(s.id)
	if !ok {
		return
	}

	rl.stats.Decr(metricActiveParticipants)
	s.log.Info("left room", "room_id", room.Id())

	if empty && rl.registry.remove(room.Id(), room) {
		rl.log.Info("room removed", "room_id", room.Id())
	}
}

func (rl *Relay) dispatch(s *Session, ev ClientEvent) {
	var err error

	switch e := ev.(type) {
	case *JoinRoom:
		err = rl.Join(s, e)
	case *SendOffer:
		err = rl.Offer(s, e.Negotiation)
	case *SendAnswer:
		err = rl.Answer(s, e.Negotiation)
	case *ToggleMedia:
		err = rl.ToggleMedia(s, e.Kind, *e.Enabled)
	case *SendChat:
		_, err = rl.SendChat(s, e.RoomId, e.Text)
	case *PublishWhiteboard:
		err = rl.PublishWhiteboard(s, e.RoomId, e.Strokes)
	case *ClearWhiteboard:
		err = rl.ClearWhiteboard(s, e.RoomId)
	case *RequestWhiteboard:
		err = rl.RequestWhiteboard(s, e.RoomId)
	case *LeaveRoom:
		rl.Leave(s)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}

	if err != nil {
		s.log.Debug("event rejected", "type", ev.Type(), "error", err)
		s.Queue(NewErrorMessage(ev.Type(), err))
	}
}

// Shutdown stops every session and waits for their cleanup to finish.
func (rl *Relay) Shutdown(ctx context.Context) error {
	rl.log.Info("received shutdown signal")

	rl.sessionsLock.Lock()
	for _, s := range rl.sessions {
		s.stopSession()
	}
	rl.sessionsLock.Unlock()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if rl.SessionCount() == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
