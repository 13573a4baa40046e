package network

import (
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/lixenwraith/rollback/input"
	"github.com/lixenwraith/rollback/status"
)

// Service carries input messages between a Session and remote peers
//
// Every connection opens with a MsgConnect hello. Input from a peer is only
// delivered after its hello matches the local session id, tick rate and
// horizon, and only for the participant that peer announced.
type Service struct {
	config    *Config
	transport *Transport
	session   *input.Session
	hello     Hello
	remotes   []input.ParticipantID // participants a peer may claim
	log       *slog.Logger

	mu     sync.Mutex
	joined map[input.ParticipantID]PeerID
	resend resendQueue

	statPeers    *atomic.Int64
	statJoined   *atomic.Int64
	statSent     *atomic.Int64
	statReceived *atomic.Int64
	statRejected *atomic.Int64
	statDropped  *atomic.Int64
	statLost     *atomic.Int64
	statSession  *status.AtomicString
}

// NewService wires a transport to session
// The session's participants must be registered before Start
func NewService(cfg *Config, session *input.Session, hello Hello, reg *status.Registry, log *slog.Logger) *Service {
	if reg == nil {
		reg = status.NewRegistry()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	s := &Service{
		config:       cfg,
		session:      session,
		hello:        hello,
		log:          log.With("component", "network", "role", cfg.Role.String()),
		joined:       make(map[input.ParticipantID]PeerID),
		statPeers:    reg.Ints.Get("network.peers"),
		statJoined:   reg.Ints.Get("network.joined"),
		statSent:     reg.Ints.Get("network.inputs_sent"),
		statReceived: reg.Ints.Get("network.inputs_received"),
		statRejected: reg.Ints.Get("network.rejected"),
		statDropped:  reg.Ints.Get("network.send_dropped"),
		statLost:     reg.Ints.Get("network.inputs_lost"),
		statSession:  reg.Strings.Get("network.session"),
	}
	s.statSession.Store(hello.Session.String())

	local, hasLocal := session.Local()
	for _, id := range session.Participants() {
		if !hasLocal || id != local {
			s.remotes = append(s.remotes, id)
		}
	}

	if cfg.Role != RoleNone {
		s.transport = NewTransport(cfg)
		s.transport.SetHandlers(s.onConnect, s.onDisconnect, s.onMessage)
	}
	return s
}

func (s *Service) Name() string {
	return "network"
}

// Start listens or dials according to the configured role
func (s *Service) Start() error {
	if s.transport == nil {
		return nil
	}
	if err := s.transport.Start(); err != nil {
		return fmt.Errorf("network: start %s on %s: %w", s.config.Role, s.config.Address, err)
	}
	s.log.Info("network started", "transport", s.config.Transport.String(), "address", s.config.Address, "session", s.hello.Session)
	return nil
}

func (s *Service) Stop() error {
	if s.transport != nil {
		return s.transport.Stop()
	}
	return nil
}

// Addr returns the bound listener address, nil when not serving
func (s *Service) Addr() net.Addr {
	if s.transport == nil {
		return nil
	}
	return s.transport.Addr()
}

func (s *Service) PeerCount() int {
	if s.transport == nil {
		return 0
	}
	return s.transport.PeerCount()
}

// Joined returns the remote participants with an accepted handshake
func (s *Service) Joined() []input.ParticipantID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]input.ParticipantID, 0, len(s.joined))
	for id := range s.joined {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Service) IsRunning() bool {
	return s.transport != nil && s.transport.IsRunning()
}

// SendInput implements input.Sender by broadcasting to joined peers
func (s *Service) SendInput(msg input.Message) error {
	if s.transport == nil || !s.transport.IsRunning() {
		return ErrNotRunning
	}
	s.mu.Lock()
	payload, err := EncodeInput(msg, s.resend.pending()...)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	dropped := s.transport.Broadcast(NewFrame(MsgInput, payload), func(p *Peer) bool {
		_, ok := p.Remote()
		return ok
	})
	s.statSent.Add(1)

	s.mu.Lock()
	lost := s.resend.settle(msg, dropped)
	s.mu.Unlock()
	if dropped == 0 {
		return nil
	}
	s.statDropped.Add(int64(dropped))
	if lost > 0 {
		s.statLost.Add(int64(lost))
		s.log.Warn("input resend backlog full, remote peers will keep predicting", "lost", lost, "tick", msg.Tick)
	} else {
		s.log.Warn("input frame not queued, resending with next input", "tick", msg.Tick, "peers", dropped)
	}
	return fmt.Errorf("%w: %d peers", ErrSendQueueFull, dropped)
}

func (s *Service) onConnect(p *Peer) {
	s.statPeers.Store(int64(s.transport.PeerCount()))
	s.log.Info("peer connected", "peer", p.ID, "addr", p.Addr)

	payload, err := EncodeHello(s.hello)
	if err != nil {
		s.log.Error("hello encode failed", "err", err)
		p.Close()
		return
	}
	p.Send(NewFrame(MsgConnect, payload))
}

func (s *Service) onDisconnect(p *Peer) {
	s.statPeers.Store(int64(s.transport.PeerCount()))
	if h, ok := p.Remote(); ok {
		s.mu.Lock()
		if s.joined[h.Participant] == p.ID {
			delete(s.joined, h.Participant)
		}
		s.statJoined.Store(int64(len(s.joined)))
		s.mu.Unlock()
	}
	s.log.Info("peer disconnected", "peer", p.ID, "addr", p.Addr)
}

func (s *Service) onMessage(p *Peer, f *Frame) {
	switch f.Type {
	case MsgConnect:
		s.handleHello(p, f.Payload)

	case MsgInput:
		h, ok := p.Remote()
		if !ok {
			s.statRejected.Add(1)
			s.log.Warn("input before handshake dropped", "peer", p.ID)
			return
		}
		msgs, err := DecodeInput(f.Payload)
		if err != nil {
			s.statRejected.Add(1)
			s.log.Warn("bad input frame", "peer", p.ID, "err", err)
			return
		}
		if claimed := msgs[0].Participant; claimed != h.Participant {
			s.statRejected.Add(1)
			s.log.Warn("input for foreign participant dropped", "peer", p.ID, "claimed", claimed, "owner", h.Participant)
			return
		}
		for _, msg := range msgs {
			if err := s.session.Deliver(msg); err != nil {
				s.statRejected.Add(1)
				s.log.Warn("input not delivered", "peer", p.ID, "tick", msg.Tick, "err", err)
				return
			}
		}
		s.statReceived.Add(1)

	case MsgReject:
		reason, err := DecodeReject(f.Payload)
		if err != nil {
			reason = err.Error()
		}
		s.log.Warn("handshake rejected by peer", "peer", p.ID, "reason", reason)
		p.Close()

	case MsgDisconnect:
		p.Close()

	default:
		s.log.Debug("unhandled frame", "peer", p.ID, "type", f.Type)
	}
}

func (s *Service) handleHello(p *Peer, payload []byte) {
	h, err := DecodeHello(payload)
	if err == nil {
		err = s.hello.Compatible(h)
	}
	if err == nil && !slices.Contains(s.remotes, h.Participant) {
		err = fmt.Errorf("%w: participant %d not in session", ErrHandshake, h.Participant)
	}
	if err == nil {
		s.mu.Lock()
		if owner, taken := s.joined[h.Participant]; taken && owner != p.ID {
			err = fmt.Errorf("%w: participant %d already joined", ErrHandshake, h.Participant)
		} else {
			s.joined[h.Participant] = p.ID
			s.statJoined.Store(int64(len(s.joined)))
		}
		s.mu.Unlock()
	}

	if err != nil {
		s.statRejected.Add(1)
		s.log.Warn("handshake rejected", "peer", p.ID, "err", err)
		if b, encErr := EncodeReject(err.Error()); encErr == nil {
			p.Send(NewFrame(MsgReject, b))
		}
		p.CloseAfterSend()
		return
	}

	if h.Delay != s.hello.Delay {
		s.log.Info("peer uses a different input delay", "peer", p.ID, "delay", h.Delay, "local", s.hello.Delay)
	}
	p.remote.Store(&h)
	s.log.Info("peer joined", "peer", p.ID, "participant", h.Participant)
}

