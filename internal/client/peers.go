package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/npezzotti/go-meet/internal/types"
)

var ErrUnknownPeer = errors.New("no peer for connection")

// Peer is one side of a negotiated connection to a remote participant.
type Peer interface {
	// Signal feeds an offer, answer, or candidate from the remote side.
	Signal(data json.RawMessage) error
	// Send writes text to the remote side over the peer's data path.
	Send(text string) error
	Close() error
}

// Negotiator creates peers. onSignal receives every signal the local side
// produces and may be called before NewPeer returns.
type Negotiator interface {
	NewPeer(remoteId string, initiator bool, onSignal func(json.RawMessage)) (Peer, error)
}

type RemotePeer struct {
	ConnectionId  string
	DisplayName   string
	UserId        string
	Initiator     bool
	AudioEnabled  bool
	VideoEnabled  bool
	ScreenSharing bool

	peer Peer
}

type negotiation struct {
	CallerId string          `json:"caller_id,omitempty"`
	TargetId string          `json:"target_id"`
	Signal   json.RawMessage `json:"signal"`
}

type mediaChange struct {
	ConnectionId string          `json:"connection_id"`
	Kind         types.MediaKind `json:"kind"`
	Enabled      bool            `json:"enabled"`
}

// PeerSet tracks one negotiated peer per remote participant. The joiner
// initiates towards everyone already present; everyone else answers.
type PeerSet struct {
	mu    sync.Mutex
	out   Sender
	neg   Negotiator
	log   *slog.Logger
	peers map[string]*RemotePeer
	known map[string]types.Participant
}

func NewPeerSet(out Sender, neg Negotiator, logger *slog.Logger) *PeerSet {
	return &PeerSet{
		out:   out,
		neg:   neg,
		log:   logger,
		peers: make(map[string]*RemotePeer),
		known: make(map[string]types.Participant),
	}
}

// Handle applies one server event. Events that do not concern peers are
// ignored.
func (ps *PeerSet) Handle(env Envelope) error {
	switch env.Type {
	case EventExistingUsers:
		var users []types.Participant
		if err := env.Decode(&users); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		var errs []error
		for _, u := range users {
			if err := ps.initiate(u); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	case EventUserJoined:
		var u types.Participant
		if err := env.Decode(&u); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		ps.remember(u)
	case EventReceiveOffer:
		var n negotiation
		if err := env.Decode(&n); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ps.offer(n)
	case EventReceiveAnswer:
		var n negotiation
		if err := env.Decode(&n); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ps.answer(n)
	case EventUserMediaChanged:
		var mc mediaChange
		if err := env.Decode(&mc); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		ps.mediaChanged(mc)
	case EventUserLeft:
		var u types.Participant
		if err := env.Decode(&u); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		ps.remove(u.ConnectionId)
	}

	return nil
}

func (ps *PeerSet) remember(u types.Participant) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.known[u.ConnectionId] = u
}

func (ps *PeerSet) initiate(u types.Participant) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.known[u.ConnectionId] = u
	if _, ok := ps.peers[u.ConnectionId]; ok {
		return nil
	}

	_, err := ps.create(u.ConnectionId, true)
	return err
}

// offer feeds an existing peer or, for an unknown caller, answers with a new
// responder peer.
func (ps *PeerSet) offer(n negotiation) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	rp, ok := ps.peers[n.CallerId]
	if !ok {
		var err error
		if rp, err = ps.create(n.CallerId, false); err != nil {
			return err
		}
	}

	return rp.peer.Signal(n.Signal)
}

func (ps *PeerSet) answer(n negotiation) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	rp, ok := ps.peers[n.CallerId]
	if !ok {
		ps.log.Debug("answer from unknown peer", "caller_id", n.CallerId)
		return nil
	}

	return rp.peer.Signal(n.Signal)
}

// create must be called with ps.mu held.
func (ps *PeerSet) create(remoteId string, initiator bool) (*RemotePeer, error) {
	out := "send-answer"
	if initiator {
		out = "send-offer"
	}

	onSignal := func(sig json.RawMessage) {
		if err := ps.out.Send(out, negotiation{TargetId: remoteId, Signal: sig}); err != nil {
			ps.log.Warn("failed to send signal", "target_id", remoteId, "error", err)
		}
	}

	p, err := ps.neg.NewPeer(remoteId, initiator, onSignal)
	if err != nil {
		return nil, fmt.Errorf("new peer %s: %w", remoteId, err)
	}

	// a caller we never saw join still starts with the join defaults
	u, ok := ps.known[remoteId]
	if !ok {
		u = types.Participant{ConnectionId: remoteId, AudioEnabled: true, VideoEnabled: true}
	}

	rp := &RemotePeer{
		ConnectionId:  remoteId,
		DisplayName:   u.DisplayName,
		UserId:        u.UserId,
		Initiator:     initiator,
		AudioEnabled:  u.AudioEnabled,
		VideoEnabled:  u.VideoEnabled,
		ScreenSharing: u.ScreenSharing,
		peer:          p,
	}
	ps.peers[remoteId] = rp
	ps.log.Debug("peer created", "remote_id", remoteId, "initiator", initiator)
	return rp, nil
}

func (ps *PeerSet) mediaChanged(mc mediaChange) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	rp, ok := ps.peers[mc.ConnectionId]
	if !ok {
		return
	}

	switch mc.Kind {
	case types.MediaAudio:
		rp.AudioEnabled = mc.Enabled
	case types.MediaVideo:
		rp.VideoEnabled = mc.Enabled
	case types.MediaScreen:
		rp.ScreenSharing = mc.Enabled
	}
}

func (ps *PeerSet) remove(id string) {
	ps.mu.Lock()
	rp, ok := ps.peers[id]
	delete(ps.peers, id)
	delete(ps.known, id)
	ps.mu.Unlock()

	if ok {
		if err := rp.peer.Close(); err != nil {
			ps.log.Debug("close peer", "remote_id", id, "error", err)
		}
	}
}

// Send writes text to the peer negotiated with remoteId.
func (ps *PeerSet) Send(remoteId, text string) error {
	ps.mu.Lock()
	rp, ok := ps.peers[remoteId]
	ps.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, remoteId)
	}
	return rp.peer.Send(text)
}

// Peers returns a snapshot ordered by connection id.
func (ps *PeerSet) Peers() []RemotePeer {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	out := make([]RemotePeer, 0, len(ps.peers))
	for _, rp := range ps.peers {
		out = append(out, *rp)
	}
	slices.SortFunc(out, func(a, b RemotePeer) int {
		return strings.Compare(a.ConnectionId, b.ConnectionId)
	})
	return out
}

// Close tears down every peer.
func (ps *PeerSet) Close() {
	ps.mu.Lock()
	peers := ps.peers
	ps.peers = make(map[string]*RemotePeer)
	ps.mu.Unlock()

	for id, rp := range peers {
		if err := rp.peer.Close(); err != nil {
			ps.log.Debug("close peer", "remote_id", id, "error", err)
		}
	}
}
