package engine

import (
	"fmt"

	"github.com/lixenwraith/rollback/core"
)

// RollbackTo restores the snapshot of target and makes target the next tick
//
// target == Tick() is a no-op. Targets older than the horizon fail with
// ErrRollbackTargetExpired, targets ahead of Tick() with ErrRollbackTargetFuture;
// neither mutates anything. Body mismatches during restore are logged and the
// rollback still completes.
func (s *Simulation) RollbackTo(target core.Tick) error {
	if s.busy {
		return ErrReentrant
	}
	if target > s.tick {
		return fmt.Errorf("%w: target %d, current %d", ErrRollbackTargetFuture, target, s.tick)
	}
	if target == s.tick {
		return nil
	}

	snap, ok := s.history.Get(target)
	if !ok || s.tick-target > core.Tick(s.cfg.HistoryTicks) {
		s.statExpired.Add(1)
		return fmt.Errorf("%w: target %d, current %d, horizon %d", ErrRollbackTargetExpired, target, s.tick, s.cfg.HistoryTicks)
	}

	if err := s.world.Restore(snap); err != nil {
		s.log.Warn("rollback restored with mismatches", "target", target, "err", err)
	}

	from := s.tick
	depth := from - target
	s.tick = target
	s.statRollbacks.Add(1)
	s.statDepth.Store(int64(depth))
	s.statTicks.Store(int64(s.tick))
	s.log.Debug("rolled back", "target", target, "depth", depth)
	for _, fn := range s.onRollback {
		fn(from, target)
	}
	return nil
}

// ResimulateTo replays ticks until Tick() == future without wall-clock gating
// Observers see ModeResimulating for the duration
func (s *Simulation) ResimulateTo(future core.Tick) error {
	if s.busy {
		return ErrReentrant
	}
	if future < s.tick {
		return fmt.Errorf("%w: target %d, current %d", ErrResimulateBackwards, future, s.tick)
	}
	n := future - s.tick
	if n == 0 {
		return nil
	}

	prev := s.mode
	s.mode = ModeResimulating
	s.busy = true
	defer func() {
		s.busy = false
		s.mode = prev
	}()

	for s.tick < future {
		s.runTick()
	}
	s.statResimTicks.Add(int64(n))
	return nil
}

// Reconcile rolls back to target and replays up to the tick that was current
// This is the correction path for late authoritative input
func (s *Simulation) Reconcile(target core.Tick) error {
	if s.busy {
		return ErrReentrant
	}
	current := s.tick
	if target >= current {
		return nil
	}
	if err := s.RollbackTo(target); err != nil {
		return err
	}
	return s.ResimulateTo(current)
}
