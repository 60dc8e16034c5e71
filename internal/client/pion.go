package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

const dataChannelLabel = "meet"

var ErrChannelClosed = errors.New("data channel not open")

// signal is the payload carried inside send-offer and send-answer envelopes.
type signal struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

const (
	signalOffer     = "offer"
	signalAnswer    = "answer"
	signalCandidate = "candidate"
)

// PionNegotiator negotiates data-channel peers with trickle ICE.
type PionNegotiator struct {
	config webrtc.Configuration
	log    *slog.Logger

	// OnMessage, if set, receives every data channel message.
	OnMessage func(remoteId string, data []byte)
	// OnOpen, if set, is called once a peer's data channel can carry Send.
	OnOpen func(remoteId string)
}

func NewPionNegotiator(iceServers []string, logger *slog.Logger) *PionNegotiator {
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}

	return &PionNegotiator{config: cfg, log: logger}
}

type pionPeer struct {
	remoteId string
	pc       *webrtc.PeerConnection
	log      *slog.Logger
	emit     func(signal)
	onMsg    func(remoteId string, data []byte)
	onOpen   func(remoteId string)

	mu      sync.Mutex
	dc      *webrtc.DataChannel
	pending []webrtc.ICECandidateInit
}

func (n *PionNegotiator) NewPeer(remoteId string, initiator bool, onSignal func(json.RawMessage)) (Peer, error) {
	pc, err := webrtc.NewPeerConnection(n.config)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	p := &pionPeer{
		remoteId: remoteId,
		pc:       pc,
		log:      n.log.With("remote_id", remoteId),
		onMsg:    n.OnMessage,
		onOpen:   n.OnOpen,
	}
	p.emit = func(s signal) {
		raw, err := json.Marshal(s)
		if err != nil {
			p.log.Error("encode signal", "error", err)
			return
		}
		onSignal(raw)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		p.emit(signal{Type: signalCandidate, Candidate: &init})
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.log.Debug("peer connection state", "state", s.String())
	})

	if !initiator {
		pc.OnDataChannel(p.attach)
		return p, nil
	}

	dc, err := pc.CreateDataChannel(dataChannelLabel, nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	p.attach(dc)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("set local description: %w", err)
	}
	p.emit(signal{Type: signalOffer, SDP: offer.SDP})

	return p, nil
}

func (p *pionPeer) attach(dc *webrtc.DataChannel) {
	p.mu.Lock()
	p.dc = dc
	p.mu.Unlock()

	dc.OnOpen(func() {
		p.log.Debug("data channel open", "label", dc.Label())
		if p.onOpen != nil {
			p.onOpen(p.remoteId)
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if p.onMsg != nil {
			p.onMsg(p.remoteId, msg.Data)
		}
	})
}

func (p *pionPeer) Signal(data json.RawMessage) error {
	var s signal
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode signal: %w", err)
	}

	switch s.Type {
	case signalOffer:
		if err := p.setRemote(webrtc.SDPTypeOffer, s.SDP); err != nil {
			return err
		}
		answer, err := p.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := p.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local description: %w", err)
		}
		p.emit(signal{Type: signalAnswer, SDP: answer.SDP})
		return nil
	case signalAnswer:
		return p.setRemote(webrtc.SDPTypeAnswer, s.SDP)
	case signalCandidate:
		if s.Candidate == nil {
			return fmt.Errorf("candidate signal without candidate")
		}
		return p.addCandidate(*s.Candidate)
	default:
		return fmt.Errorf("unknown signal type %q", s.Type)
	}
}

// setRemote applies the remote description and then any candidates that
// arrived ahead of it.
func (p *pionPeer) setRemote(t webrtc.SDPType, sdp string) error {
	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: t, SDP: sdp}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			return fmt.Errorf("add candidate: %w", err)
		}
	}
	return nil
}

func (p *pionPeer) addCandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	if p.pc.RemoteDescription() == nil {
		p.pending = append(p.pending, c)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("add candidate: %w", err)
	}
	return nil
}

// Send writes text over the peer's data channel once it is open.
func (p *pionPeer) Send(text string) error {
	p.mu.Lock()
	dc := p.dc
	p.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelClosed
	}
	return dc.SendText(text)
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}
