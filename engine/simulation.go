package engine

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/physics"
	"github.com/lixenwraith/rollback/status"
	"github.com/lixenwraith/rollback/vmath"
)

// Phase is one of the three ordered stages of a tick
type Phase uint8

const (
	// PhasePre runs before physics; input capture lives here
	PhasePre Phase = iota
	// PhaseStep observers queue forces, then the world integrates
	PhaseStep
	// PhasePost runs after the tick's snapshot is committed
	PhasePost
	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhaseStep:
		return "step"
	case PhasePost:
		return "post"
	default:
		return fmt.Sprintf("phase(%d)", p)
	}
}

// Mode tells observers whether ticks are fresh or being replayed
type Mode uint8

const (
	ModeLive Mode = iota
	ModeResimulating
)

func (m Mode) String() string {
	if m == ModeResimulating {
		return "resimulating"
	}
	return "live"
}

// Observer is notified synchronously once per phase per tick
type Observer interface {
	Observe(s *Simulation)
}

// ObserverFunc adapts a plain function to Observer
type ObserverFunc func(s *Simulation)

func (f ObserverFunc) Observe(s *Simulation) { f(s) }

// Config controls tick rate, history depth and catch-up behaviour
type Config struct {
	TickRate        int // ticks per second
	HistoryTicks    int // rollback horizon H
	MaxTicksPerPoll int // ticks fired per Poll/Advance at most
	MaxBacklogTicks int // accumulated time beyond this many ticks is dropped
}

// DefaultConfig returns 120 Hz with a three second horizon
func DefaultConfig() Config {
	return Config{
		TickRate:        120,
		HistoryTicks:    360,
		MaxTicksPerPoll: 1,
		MaxBacklogTicks: 12,
	}
}

func (c Config) validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("%w: tick rate %d", ErrInvalidConfig, c.TickRate)
	}
	if c.HistoryTicks <= 0 {
		return fmt.Errorf("%w: history ticks %d", ErrInvalidConfig, c.HistoryTicks)
	}
	if c.MaxTicksPerPoll <= 0 {
		return fmt.Errorf("%w: max ticks per poll %d", ErrInvalidConfig, c.MaxTicksPerPoll)
	}
	if c.MaxBacklogTicks < c.MaxTicksPerPoll {
		return fmt.Errorf("%w: backlog %d below ticks per poll %d", ErrInvalidConfig, c.MaxBacklogTicks, c.MaxTicksPerPoll)
	}
	return nil
}

// Simulation owns the world, its snapshot history and the tick counter
// It drives fixed ticks from wall time and rolls back on request
// All methods must be called from one goroutine; other goroutines hand data
// in through safe-point handlers
type Simulation struct {
	cfg      Config
	world    *physics.World
	history  *SnapshotHistory
	interval time.Duration
	dt       int64

	tick   core.Tick
	mode   Mode
	phase  Phase
	inTick bool
	paused bool

	// busy guards tick execution, inSafePoint guards handler recursion
	busy        bool
	inSafePoint bool

	observers  [phaseCount][]Observer
	safePoints []func(*Simulation)
	onRollback []func(from, to core.Tick)

	accumulator time.Duration
	lastPoll    time.Time
	dropped     time.Duration
	pending     physics.WorldSnapshot

	log *slog.Logger

	statTicks      *atomic.Int64
	statRollbacks  *atomic.Int64
	statResimTicks *atomic.Int64
	statExpired    *atomic.Int64
	statDepth      *atomic.Int64
	statDropped    *atomic.Int64
	statPaused     *atomic.Bool
}

// NewSimulation wraps world. A nil registry or logger gets a private one
func NewSimulation(cfg Config, world *physics.World, reg *status.Registry, log *slog.Logger) (*Simulation, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if world == nil {
		return nil, fmt.Errorf("%w: nil world", ErrInvalidConfig)
	}
	if reg == nil {
		reg = status.NewRegistry()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Simulation{
		cfg:            cfg,
		world:          world,
		history:        NewSnapshotHistory(cfg.HistoryTicks),
		interval:       core.TickInterval(cfg.TickRate),
		dt:             vmath.FromRatio(1, int64(cfg.TickRate)),
		log:            log.With("component", "engine"),
		statTicks:      reg.Ints.Get("engine.ticks"),
		statRollbacks:  reg.Ints.Get("engine.rollbacks"),
		statResimTicks: reg.Ints.Get("engine.resim_ticks"),
		statExpired:    reg.Ints.Get("engine.rollback_expired"),
		statDepth:      reg.Ints.Get("engine.rollback_depth"),
		statDropped:    reg.Ints.Get("engine.dropped_ns"),
		statPaused:     reg.Bools.Get("engine.paused"),
	}, nil
}

func (s *Simulation) Config() Config               { return s.cfg }
func (s *Simulation) World() *physics.World        { return s.world }
func (s *Simulation) History() *SnapshotHistory    { return s.history }
func (s *Simulation) Interval() time.Duration      { return s.interval }
func (s *Simulation) Logger() *slog.Logger         { return s.log }
func (s *Simulation) Mode() Mode                   { return s.mode }
func (s *Simulation) Resimulating() bool           { return s.mode == ModeResimulating }
func (s *Simulation) DroppedTime() time.Duration   { return s.dropped }
func (s *Simulation) Accumulated() time.Duration   { return s.accumulator }
func (s *Simulation) Horizon() int                 { return s.cfg.HistoryTicks }
func (s *Simulation) Paused() bool                 { return s.paused }
func (s *Simulation) InTick() bool                 { return s.inTick }
func (s *Simulation) Phase() Phase                 { return s.phase }
func (s *Simulation) DeltaTime() int64             { return s.dt }
func (s *Simulation) Observers(p Phase) []Observer { return s.observers[p] }

// Tick returns the next tick to execute; every earlier tick has been simulated
func (s *Simulation) Tick() core.Tick { return s.tick }

// AddObserver appends obs to phase; observers run in registration order
func (s *Simulation) AddObserver(phase Phase, obs Observer) {
	s.observers[phase] = append(s.observers[phase], obs)
}

// AddSafePoint registers fn to run at the start of every Poll/Advance,
// before any tick fires. Handlers may call RollbackTo, ResimulateTo and Reconcile
func (s *Simulation) AddSafePoint(fn func(*Simulation)) {
	s.safePoints = append(s.safePoints, fn)
}

// OnRollback registers fn to run after every completed rollback
// from is the tick that was current, to the restored tick
func (s *Simulation) OnRollback(fn func(from, to core.Tick)) {
	s.onRollback = append(s.onRollback, fn)
}

// Pause stops time accumulation; Resume continues from where it stopped
func (s *Simulation) Pause() {
	s.paused = true
	s.statPaused.Store(true)
}

func (s *Simulation) Resume() {
	s.paused = false
	s.statPaused.Store(false)
	s.lastPoll = time.Time{}
}

// AddBody inserts a body into the world. Bodies added while a tick is in
// progress sleep until the next tick so live and replayed runs agree
func (s *Simulation) AddBody(desc physics.BodyDesc) (physics.BodyID, error) {
	spawn := s.tick
	if s.inTick {
		spawn++
	}
	return s.world.AddBody(desc, spawn)
}

func (s *Simulation) RemoveBody(id physics.BodyID) error {
	return s.world.RemoveBody(id)
}

// Poll advances by the wall time elapsed since the previous Poll
// The first call only establishes the reference point
func (s *Simulation) Poll(now time.Time) (int, error) {
	if s.lastPoll.IsZero() {
		s.lastPoll = now
		return s.Advance(0)
	}
	elapsed := now.Sub(s.lastPoll)
	s.lastPoll = now
	if elapsed < 0 {
		elapsed = 0
	}
	return s.Advance(elapsed)
}

// Advance runs safe points, adds elapsed to the accumulator and fires at most
// MaxTicksPerPoll ticks. Backlog beyond MaxBacklogTicks is dropped and counted
func (s *Simulation) Advance(elapsed time.Duration) (int, error) {
	if s.busy || s.inSafePoint {
		return 0, ErrReentrant
	}
	s.runSafePoints()

	if s.paused {
		return 0, nil
	}

	s.accumulator += elapsed
	if limit := time.Duration(s.cfg.MaxBacklogTicks) * s.interval; s.accumulator > limit {
		drop := s.accumulator - limit
		s.dropped += drop
		s.statDropped.Add(int64(drop))
		s.accumulator = limit
		s.log.Debug("dropped backlog", "dropped", drop, "tick", s.tick)
	}

	s.busy = true
	defer func() { s.busy = false }()

	fired := 0
	for s.accumulator >= s.interval && fired < s.cfg.MaxTicksPerPoll {
		s.runTick()
		s.accumulator -= s.interval
		fired++
	}
	return fired, nil
}

// RunTicks fires n live ticks immediately, ignoring wall time and pause
// Safe points run once before the first tick
func (s *Simulation) RunTicks(n int) error {
	if s.busy || s.inSafePoint {
		return ErrReentrant
	}
	s.runSafePoints()

	s.busy = true
	defer func() { s.busy = false }()
	for i := 0; i < n; i++ {
		s.runTick()
	}
	return nil
}

func (s *Simulation) runSafePoints() {
	s.inSafePoint = true
	defer func() { s.inSafePoint = false }()
	for _, fn := range s.safePoints {
		fn(s)
	}
}

// runTick executes tick s.tick: snapshot, Pre, Step, commit, Post, advance
func (s *Simulation) runTick() {
	t := s.tick
	s.inTick = true

	s.world.BeginTick(t)
	s.world.SnapshotInto(&s.pending, t)

	s.phase = PhasePre
	s.notify(PhasePre)

	s.phase = PhaseStep
	s.world.Lock()
	s.notify(PhaseStep)
	s.world.Step(s.dt)
	s.world.Unlock()

	s.history.Record(t, s.pending)

	s.phase = PhasePost
	s.notify(PhasePost)

	s.inTick = false
	s.tick++
	s.statTicks.Store(int64(s.tick))
}

func (s *Simulation) notify(p Phase) {
	for _, obs := range s.observers[p] {
		obs.Observe(s)
	}
}
