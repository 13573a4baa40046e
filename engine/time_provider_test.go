package engine

import (
	"sync"
	"testing"
	"time"
)

func TestTimeProviderIsMonotonic(t *testing.T) {
	provider := NewTimeProvider()

	t1 := provider.Now()
	time.Sleep(10 * time.Millisecond)
	t2 := provider.Now()

	if !t2.After(t1) {
		t.Errorf("Expected t2 to be after t1, got t1=%v, t2=%v", t1, t2)
	}
	if diff := t2.Sub(t1); diff < 10*time.Millisecond {
		t.Errorf("Expected at least 10ms difference, got %v", diff)
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Expected initial time %v, got %v", start, clock.Now())
	}

	next := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	clock.Set(next)
	if !clock.Now().Equal(next) {
		t.Errorf("Expected %v after Set, got %v", next, clock.Now())
	}

	clock.Advance(30 * time.Minute)
	if got := clock.Advance(15 * time.Minute); !got.Equal(next.Add(45 * time.Minute)) {
		t.Errorf("Expected %v after advances, got %v", next.Add(45*time.Minute), got)
	}
}

func TestManualClockConcurrency(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = clock.Now()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				clock.Advance(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := clock.Now().Sub(time.Unix(0, 0)); got != time.Second {
		t.Errorf("Expected 1s of advances, got %v", got)
	}
}

// Polling from a manual clock fires one tick per elapsed interval
func TestPollFromManualClock(t *testing.T) {
	s, _ := newTestSim(t, DefaultConfig())
	clock := NewManualClock(time.Unix(1000, 0))

	if _, err := s.Poll(clock.Now()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		if _, err := s.Poll(clock.Advance(s.Interval())); err != nil {
			t.Fatal(err)
		}
	}
	if s.Tick() != 50 {
		t.Errorf("tick = %d, want 50", s.Tick())
	}
}
