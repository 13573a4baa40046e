package input

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/engine"
	"github.com/lixenwraith/rollback/physics"
	"github.com/lixenwraith/rollback/status"
)

// Source captures the local device state once per live tick
type Source interface {
	Sample() Sample
}

// SourceFunc adapts a function to Source
type SourceFunc func() Sample

func (f SourceFunc) Sample() Sample { return f() }

// Sender publishes local samples to remote peers
type Sender interface {
	SendInput(msg Message) error
}

// SessionConfig sizes the per-participant buffers and the inbox
type SessionConfig struct {
	Horizon   int // buffer window, normally the simulation's history length
	Delay     int // ticks between capture and use of local input
	InboxSize int
}

func (c SessionConfig) validate() error {
	if c.Horizon <= 0 {
		return fmt.Errorf("input: horizon must be positive, got %d", c.Horizon)
	}
	if c.Delay < 0 || c.Delay >= c.Horizon {
		return fmt.Errorf("input: delay %d outside [0, %d)", c.Delay, c.Horizon)
	}
	if c.InboxSize <= 0 {
		return fmt.Errorf("input: inbox size must be positive, got %d", c.InboxSize)
	}
	return nil
}

type participant struct {
	id    ParticipantID
	local bool
	buf   *Buffer
	body  physics.BodyID
	bound bool
}

// Session owns every participant's input history and reconciles late remote input
//
// Local input is captured in the Pre phase and recorded Delay ticks ahead.
// Remote input arrives on any goroutine through Deliver and is applied at the
// simulation's safe point; all corrections from one drain share one Reconcile
type Session struct {
	cfg          SessionConfig
	participants []*participant // ascending id
	local        *participant
	source       Source
	sender       Sender
	inbox        *Inbox[Message]
	log          *slog.Logger

	statDelivered   *atomic.Int64
	statRejected    *atomic.Int64
	statOverflow    *atomic.Int64
	statCorrections *atomic.Int64
	statLate        *atomic.Int64
	statSendErrors  *atomic.Int64
	statLastCorrect *atomic.Int64
}

// NewSession creates an empty session. A nil registry or logger gets a private one
func NewSession(cfg SessionConfig, reg *status.Registry, log *slog.Logger) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = status.NewRegistry()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Session{
		cfg:             cfg,
		inbox:           NewInbox[Message](cfg.InboxSize),
		log:             log.With("component", "input"),
		statDelivered:   reg.Ints.Get("input.delivered"),
		statRejected:    reg.Ints.Get("input.rejected"),
		statOverflow:    reg.Ints.Get("input.overflow"),
		statCorrections: reg.Ints.Get("input.corrections"),
		statLate:        reg.Ints.Get("input.late"),
		statSendErrors:  reg.Ints.Get("input.send_errors"),
		statLastCorrect: reg.Ints.Get("input.last_correction_tick"),
	}, nil
}

func (s *Session) Config() SessionConfig { return s.cfg }

// AddParticipant registers id. Ticks before Delay are prefilled with neutral
// authoritative samples for every participant, since no peer captures them
// At most one participant may be local
func (s *Session) AddParticipant(id ParticipantID, local bool) error {
	if _, ok := s.find(id); ok {
		return fmt.Errorf("%w: %d", ErrDuplicateParticipant, id)
	}
	if local && s.local != nil {
		return fmt.Errorf("%w: local participant already set to %d", ErrDuplicateParticipant, s.local.id)
	}

	p := &participant{id: id, local: local, buf: NewBuffer(s.cfg.Horizon)}
	for t := core.Tick(0); t < core.Tick(s.cfg.Delay); t++ {
		_ = p.buf.Record(0, t, Neutral, false)
	}

	i, _ := slices.BinarySearchFunc(s.participants, id, func(p *participant, id ParticipantID) int {
		return cmp.Compare(p.id, id)
	})
	s.participants = slices.Insert(s.participants, i, p)
	if local {
		s.local = p
	}
	return nil
}

func (s *Session) find(id ParticipantID) (*participant, bool) {
	i, ok := slices.BinarySearchFunc(s.participants, id, func(p *participant, id ParticipantID) int {
		return cmp.Compare(p.id, id)
	})
	if !ok {
		return nil, false
	}
	return s.participants[i], true
}

// Participants returns registered ids in ascending order
func (s *Session) Participants() []ParticipantID {
	ids := make([]ParticipantID, len(s.participants))
	for i, p := range s.participants {
		ids[i] = p.id
	}
	return ids
}

// Local returns the local participant id, if any
func (s *Session) Local() (ParticipantID, bool) {
	if s.local == nil {
		return 0, false
	}
	return s.local.id, true
}

// Bind attaches participant id to the body its input drives
func (s *Session) Bind(id ParticipantID, body physics.BodyID) error {
	p, ok := s.find(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownParticipant, id)
	}
	p.body = body
	p.bound = true
	return nil
}

// BodyOf returns the body bound to id
func (s *Session) BodyOf(id ParticipantID) (physics.BodyID, bool) {
	p, ok := s.find(id)
	if !ok || !p.bound {
		return 0, false
	}
	return p.body, true
}

func (s *Session) SetSource(src Source) { s.source = src }
func (s *Session) SetSender(snd Sender) { s.sender = snd }

// Buffer exposes the history of id for inspection
func (s *Session) Buffer(id ParticipantID) (*Buffer, bool) {
	p, ok := s.find(id)
	if !ok {
		return nil, false
	}
	return p.buf, true
}

// Attach registers the capture observer and the inbox drain with sim
func (s *Session) Attach(sim *engine.Simulation) {
	sim.AddSafePoint(s.drain)
	sim.AddObserver(engine.PhasePre, engine.ObserverFunc(s.capture))
}

// Deliver queues a remote message; safe to call from any goroutine
func (s *Session) Deliver(msg Message) error {
	if !s.inbox.Push(msg) {
		s.statOverflow.Add(1)
		return fmt.Errorf("%w: participant %d tick %d", ErrInboxFull, msg.Participant, msg.Tick)
	}
	return nil
}

// InputFor returns the sample participant id uses at tick, recording predictions
func (s *Session) InputFor(id ParticipantID, tick core.Tick) Sample {
	p, ok := s.find(id)
	if !ok {
		return Neutral
	}
	return p.buf.Resolve(tick, tick)
}

// capture records the local device sample Delay ticks ahead and sends it
// Skipped while resimulating so replays never re-read the device or resend
func (s *Session) capture(sim *engine.Simulation) {
	if s.local == nil || sim.Resimulating() {
		return
	}

	sample := Neutral
	if s.source != nil {
		sample = s.source.Sample()
	}
	current := sim.Tick()
	msg := Message{
		Participant: s.local.id,
		Tick:        current + core.Tick(s.cfg.Delay),
		Sample:      sample,
	}
	if err := s.local.buf.Record(current, msg.Tick, sample, false); err != nil {
		s.log.Warn("local input not recorded", "tick", msg.Tick, "err", err)
		return
	}
	if s.sender != nil {
		if err := s.sender.SendInput(msg); err != nil {
			s.statSendErrors.Add(1)
			s.log.Debug("input send failed", "tick", msg.Tick, "err", err)
		}
	}
}

// drain applies queued remote input and reconciles once from the earliest
// tick whose simulated sample turned out wrong
func (s *Session) drain(sim *engine.Simulation) {
	current := sim.Tick()
	target := core.TickNone

	s.inbox.Drain(func(msg Message) {
		p, ok := s.find(msg.Participant)
		if !ok {
			s.statRejected.Add(1)
			s.log.Warn("input for unknown participant dropped", "participant", msg.Participant, "tick", msg.Tick)
			return
		}
		if p.local {
			s.statRejected.Add(1)
			s.log.Warn("remote input for local participant dropped", "participant", msg.Participant, "tick", msg.Tick)
			return
		}

		// What the simulation used (or would have used) before this message
		simulated, _, had := p.buf.Recorded(msg.Tick)
		if !had {
			simulated, _ = p.buf.Get(msg.Tick)
		}

		if err := p.buf.Record(current, msg.Tick, msg.Sample, false); err != nil {
			s.statRejected.Add(1)
			s.log.Warn("input dropped", "participant", msg.Participant, "tick", msg.Tick, "current", current, "err", err)
			return
		}
		s.statDelivered.Add(1)

		if msg.Tick < current && simulated != msg.Sample {
			s.statLate.Add(1)
			if !target.Valid() || msg.Tick < target {
				target = msg.Tick
			}
		}
	})

	if !target.Valid() {
		return
	}
	if err := sim.Reconcile(target); err != nil {
		s.log.Warn("late input not reconciled", "target", target, "current", current, "err", err)
		return
	}
	s.statCorrections.Add(1)
	s.statLastCorrect.Store(int64(target))
	s.log.Debug("reconciled late input", "target", target, "current", current)
}
