package input

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/engine"
	"github.com/lixenwraith/rollback/physics"
	"github.com/lixenwraith/rollback/status"
	"github.com/lixenwraith/rollback/vmath"
)

const (
	localID  ParticipantID = 0
	remoteID ParticipantID = 1
)

type recordingSender struct {
	sent []Message
}

func (r *recordingSender) SendInput(msg Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

type rig struct {
	sim     *engine.Simulation
	session *Session
	reg     *status.Registry
}

// newRig builds ground plus two player boxes driven by a local and a remote participant
func newRig(t *testing.T) *rig {
	t.Helper()
	reg := status.NewRegistry()
	world := physics.NewWorld(physics.Config{})
	if _, err := world.AddBody(physics.BodyDesc{
		Kind:   physics.Static,
		Shapes: []physics.Shape{physics.Box(vmath.FromInt(30), vmath.Scale)},
	}, 0); err != nil {
		t.Fatal(err)
	}
	player := func(x int) physics.BodyID {
		id, err := world.AddBody(physics.BodyDesc{
			Kind:           physics.Dynamic,
			Position:       vmath.V2(vmath.FromInt(x), vmath.FromRatio(3, 2)),
			Gravity:        vmath.V2(0, -vmath.FromInt(10)),
			MaxSpeed:       vmath.FromInt(8),
			FreezeRotation: true,
			Shapes:         []physics.Shape{physics.Box(vmath.FromRatio(1, 2), vmath.FromRatio(1, 2))},
		}, 0)
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	a, b := player(-3), player(3)

	sim, err := engine.NewSimulation(engine.DefaultConfig(), world, reg, nil)
	if err != nil {
		t.Fatal(err)
	}
	session, err := NewSession(SessionConfig{
		Horizon:   sim.Horizon(),
		Delay:     2,
		InboxSize: 64,
	}, reg, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []struct {
		id    ParticipantID
		local bool
		body  physics.BodyID
	}{{localID, true, a}, {remoteID, false, b}} {
		if err := session.AddParticipant(p.id, p.local); err != nil {
			t.Fatal(err)
		}
		if err := session.Bind(p.id, p.body); err != nil {
			t.Fatal(err)
		}
	}
	session.Attach(sim)
	NewDriver(session, DriverConfig{
		MoveForce: vmath.FromInt(20),
		JumpForce: vmath.FromInt(40),
	}).Attach(sim)

	return &rig{sim: sim, session: session, reg: reg}
}

func (r *rig) state() physics.WorldSnapshot {
	return r.sim.World().Snapshot(r.sim.Tick())
}

func (r *rig) metric(key string) int64 {
	return r.reg.Ints.Get(key).Load()
}

// TestLateInputCorrection verifies a late remote sample reconciles to the same
// state as a run that knew the sample from the start
func TestLateInputCorrection(t *testing.T) {
	late := newRig(t)
	if err := late.sim.RunTicks(20); err != nil {
		t.Fatal(err)
	}
	uncorrected := late.state()

	if err := late.session.Deliver(Message{Participant: remoteID, Tick: 10, Sample: right}); err != nil {
		t.Fatal(err)
	}
	late.sim.RunTicks(0)

	if late.sim.Tick() != 20 {
		t.Fatalf("tick after reconcile = %d, want 20", late.sim.Tick())
	}
	if late.metric("input.corrections") != 1 || late.metric("engine.resim_ticks") != 10 {
		t.Errorf("corrections = %d resim = %d", late.metric("input.corrections"), late.metric("engine.resim_ticks"))
	}

	known := newRig(t)
	known.session.Deliver(Message{Participant: remoteID, Tick: 10, Sample: right})
	known.sim.RunTicks(20)
	if known.metric("engine.rollbacks") != 0 {
		t.Error("input known in advance should not roll back")
	}

	if !late.state().Equal(known.state()) {
		t.Error("corrected state differs from the state with timely input")
	}
	if late.state().Equal(uncorrected) {
		t.Error("late input had no effect on the simulation")
	}
}

// deliver queues msgs, draining before the inbox fills
func (r *rig) deliver(t *testing.T, msgs ...Message) {
	t.Helper()
	for i, msg := range msgs {
		if err := r.session.Deliver(msg); err != nil {
			t.Fatal(err)
		}
		if (i+1)%32 == 0 {
			r.sim.RunTicks(0)
		}
	}
	r.sim.RunTicks(0)
}

func remoteRun(from, to core.Tick, sample Sample) []Message {
	var msgs []Message
	for tick := from; tick < to; tick++ {
		msgs = append(msgs, Message{Participant: remoteID, Tick: tick, Sample: sample})
	}
	return msgs
}

// TestFutureInputKeepsCorrectionsExact verifies a far-future sample arriving with
// a late correction does not displace input the correction replays
func TestFutureInputKeepsCorrectionsExact(t *testing.T) {
	future := Message{Participant: remoteID, Tick: 420, Sample: left}
	correction := Message{Participant: remoteID, Tick: 50, Sample: left}

	late := newRig(t)
	late.deliver(t, remoteRun(2, 100, right)...)
	late.sim.RunTicks(100)
	late.deliver(t, future, correction)

	known := newRig(t)
	known.deliver(t, remoteRun(2, 50, right)...)
	known.deliver(t, correction)
	known.deliver(t, remoteRun(51, 100, right)...)
	known.sim.RunTicks(100)
	known.deliver(t, future)

	if late.metric("input.corrections") != 1 || known.metric("engine.rollbacks") != 0 {
		t.Fatalf("corrections = %d, known rollbacks = %d",
			late.metric("input.corrections"), known.metric("engine.rollbacks"))
	}
	if !late.state().Equal(known.state()) {
		t.Error("state after correction differs from the run with timely input")
	}
}

// TestLateInputAtHorizonEdge verifies input for the oldest restorable tick still corrects
func TestLateInputAtHorizonEdge(t *testing.T) {
	late := newRig(t)
	h := core.Tick(late.sim.Horizon())
	late.sim.RunTicks(int(h) + 40)
	edge := Message{Participant: remoteID, Tick: late.sim.Tick() - h, Sample: right}
	late.deliver(t, edge)

	if got := late.metric("input.rejected"); got != 0 {
		t.Errorf("rejected = %d, want 0", got)
	}
	if got := late.metric("engine.rollbacks"); got != 1 {
		t.Fatalf("rollbacks = %d, want 1", got)
	}

	known := newRig(t)
	known.deliver(t, edge)
	known.sim.RunTicks(int(h) + 40)
	if !late.state().Equal(known.state()) {
		t.Error("edge correction differs from the run with timely input")
	}
}

// TestCorrectionsBatchedPerDrain verifies one reconcile from the earliest wrong tick
func TestCorrectionsBatchedPerDrain(t *testing.T) {
	r := newRig(t)
	r.sim.RunTicks(30)

	r.session.Deliver(Message{Participant: remoteID, Tick: 20, Sample: right})
	r.session.Deliver(Message{Participant: remoteID, Tick: 12, Sample: left})
	r.session.Deliver(Message{Participant: remoteID, Tick: 25, Sample: right})
	r.sim.RunTicks(0)

	if got := r.metric("engine.rollbacks"); got != 1 {
		t.Errorf("rollbacks = %d, want 1", got)
	}
	if got := r.metric("engine.rollback_depth"); got != 18 {
		t.Errorf("depth = %d, want 18", got)
	}
	if got := r.metric("input.last_correction_tick"); got != 12 {
		t.Errorf("correction target = %d, want 12", got)
	}
}

// TestMatchingLateInputSkipsRollback verifies a confirmed prediction needs no correction
func TestMatchingLateInputSkipsRollback(t *testing.T) {
	r := newRig(t)
	r.sim.RunTicks(20)
	before := r.state()

	r.session.Deliver(Message{Participant: remoteID, Tick: 5, Sample: Neutral})
	r.sim.RunTicks(0)

	if r.metric("engine.rollbacks") != 0 {
		t.Error("matching input triggered a rollback")
	}
	if r.metric("input.delivered") != 1 {
		t.Error("message not recorded")
	}
	if !r.state().Equal(before) {
		t.Error("state changed")
	}
}

// TestLocalCaptureSkippedWhileResimulating verifies capture is delayed and never resent
func TestLocalCaptureSkippedWhileResimulating(t *testing.T) {
	r := newRig(t)
	snd := &recordingSender{}
	r.session.SetSender(snd)
	r.session.SetSource(SourceFunc(func() Sample { return right }))

	r.sim.RunTicks(5)
	var ticks []core.Tick
	for _, m := range snd.sent {
		ticks = append(ticks, m.Tick)
		if m.Participant != localID || m.Sample != right {
			t.Errorf("unexpected message %+v", m)
		}
	}
	if want := []core.Tick{2, 3, 4, 5, 6}; !slices.Equal(ticks, want) {
		t.Errorf("sent ticks = %v, want %v", ticks, want)
	}

	buf, _ := r.session.Buffer(localID)
	for tick := core.Tick(0); tick < 2; tick++ {
		if s, predicted, ok := buf.Recorded(tick); !ok || predicted || s != Neutral {
			t.Errorf("tick %d not prefilled neutral", tick)
		}
	}

	r.session.Deliver(Message{Participant: remoteID, Tick: 1, Sample: left})
	r.sim.RunTicks(0)
	if r.metric("engine.resim_ticks") != 4 {
		t.Fatalf("expected a resimulation, got %d ticks", r.metric("engine.resim_ticks"))
	}
	if len(snd.sent) != 5 {
		t.Errorf("resimulation resent input: %d messages", len(snd.sent))
	}
}

func TestDeliverRejectsBadMessages(t *testing.T) {
	r := newRig(t)
	r.sim.RunTicks(400)

	r.session.Deliver(Message{Participant: 9, Tick: 399, Sample: right})
	r.session.Deliver(Message{Participant: remoteID, Tick: 10, Sample: right})
	r.session.Deliver(Message{Participant: localID, Tick: 399, Sample: right})
	r.sim.RunTicks(0)

	if got := r.metric("input.rejected"); got != 3 {
		t.Errorf("rejected = %d, want 3", got)
	}
	if r.metric("engine.rollbacks") != 0 {
		t.Error("rejected input caused a rollback")
	}
}

func TestDeliverInboxFull(t *testing.T) {
	s, err := NewSession(SessionConfig{Horizon: 16, Delay: 1, InboxSize: 2}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.AddParticipant(remoteID, false)
	for i := 0; i < 2; i++ {
		if err := s.Deliver(Message{Participant: remoteID, Tick: core.Tick(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Deliver(Message{Participant: remoteID, Tick: 3}); !errors.Is(err, ErrInboxFull) {
		t.Errorf("err = %v, want ErrInboxFull", err)
	}
}

// TestDeliverFromManyGoroutines verifies concurrent delivery is applied at the safe point
func TestDeliverFromManyGoroutines(t *testing.T) {
	r := newRig(t)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 8; i++ {
				r.session.Deliver(Message{Participant: remoteID, Tick: core.Tick(g*8 + i + 2), Sample: right})
			}
		}(g)
	}
	wg.Wait()
	r.sim.RunTicks(1)
	if got := r.metric("input.delivered"); got != 32 {
		t.Errorf("delivered = %d, want 32", got)
	}
}

func TestSessionParticipantRules(t *testing.T) {
	s, _ := NewSession(SessionConfig{Horizon: 16, Delay: 2, InboxSize: 8}, nil, nil)
	if err := s.AddParticipant(3, true); err != nil {
		t.Fatal(err)
	}
	if err := s.AddParticipant(3, false); !errors.Is(err, ErrDuplicateParticipant) {
		t.Errorf("duplicate id: %v", err)
	}
	if err := s.AddParticipant(4, true); !errors.Is(err, ErrDuplicateParticipant) {
		t.Errorf("second local: %v", err)
	}
	s.AddParticipant(1, false)
	if ids := s.Participants(); !slices.Equal(ids, []ParticipantID{1, 3}) {
		t.Errorf("participants = %v", ids)
	}
	if err := s.Bind(7, 1); !errors.Is(err, ErrUnknownParticipant) {
		t.Errorf("bind unknown: %v", err)
	}
	if _, err := NewSession(SessionConfig{Horizon: 4, Delay: 4, InboxSize: 1}, nil, nil); err == nil {
		t.Error("delay equal to horizon accepted")
	}
}
