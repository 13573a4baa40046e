package engine

import (
	"context"
	"time"
)

// Run drives Poll from clock once per tick interval until ctx is done
// Sleeps between deadlines without busy-waiting; if the loop falls more than
// two intervals behind, the deadline is reset instead of bursting
func (s *Simulation) Run(ctx context.Context, clock Clock) error {
	if clock == nil {
		clock = NewTimeProvider()
	}

	next := clock.Now().Add(s.interval)
	if _, err := s.Poll(clock.Now()); err != nil {
		return err
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		now := clock.Now()
		if !now.Before(next) {
			if _, err := s.Poll(now); err != nil {
				return err
			}

			next = next.Add(s.interval)
			maxBehind := s.interval * 2
			if now.Sub(next) > maxBehind {
				next = now.Add(s.interval)
			}
		}

		sleep := next.Sub(clock.Now())
		if s.paused {
			// Safe points still need to run while paused, at a relaxed pace
			sleep = s.interval * 2
		}
		if sleep <= 0 {
			continue
		}

		timer.Reset(sleep)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}
