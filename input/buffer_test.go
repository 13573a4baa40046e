package input

import (
	"errors"
	"testing"

	"github.com/lixenwraith/rollback/core"
)

var right = Sample{Move: MoveRight}
var left = Sample{Move: MoveLeft}

// TestBufferRejectsOutsideWindow verifies the window runs from current-8 to current+7
func TestBufferRejectsOutsideWindow(t *testing.T) {
	b := NewBuffer(8)
	cases := []struct {
		tick core.Tick
		ok   bool
	}{
		{18, false},
		{17, true},
		{1, false},
		{2, true},
		{3, true},
		{10, true},
		{-1, false},
	}
	for _, c := range cases {
		err := b.Record(10, c.tick, right, false)
		if c.ok && err != nil {
			t.Errorf("Record(%d) = %v, want nil", c.tick, err)
		}
		if !c.ok && !errors.Is(err, ErrInputOutsideWindow) {
			t.Errorf("Record(%d) = %v, want ErrInputOutsideWindow", c.tick, err)
		}
	}
}

func TestBufferRejectsInvalidSample(t *testing.T) {
	b := NewBuffer(8)
	if err := b.Record(0, 0, Sample{Move: 7}, false); !errors.Is(err, ErrInvalidSample) {
		t.Errorf("err = %v", err)
	}
}

// TestPredictionRepeatsLastAuthoritative verifies the repeat-last policy
func TestPredictionRepeatsLastAuthoritative(t *testing.T) {
	b := NewBuffer(16)
	b.Record(3, 3, right, false)

	if s, predicted := b.Get(3); s != right || predicted {
		t.Errorf("Get(3) = %v, %v", s, predicted)
	}
	if s, predicted := b.Get(7); s != right || !predicted {
		t.Errorf("Get(7) = %v, %v; want predicted right", s, predicted)
	}
	if s, predicted := b.Get(2); s != Neutral || !predicted {
		t.Errorf("Get(2) = %v, %v; want predicted neutral", s, predicted)
	}

	// Out of order arrival: most recent before tick wins, not most recent overall
	b.Record(9, 9, left, false)
	if s, _ := b.Get(7); s != right {
		t.Errorf("Get(7) after tick 9 arrived = %v, want right", s)
	}
	if s, _ := b.Get(12); s != left {
		t.Errorf("Get(12) = %v, want left", s)
	}
}

// TestPredictionIdempotent verifies Get is a pure read and Resolve keeps the value
func TestPredictionIdempotent(t *testing.T) {
	b := NewBuffer(16)
	b.Record(1, 1, right, false)

	first, _ := b.Get(5)
	second, _ := b.Get(5)
	if first != second {
		t.Fatalf("repeated Get differs: %v vs %v", first, second)
	}
	if _, _, ok := b.Recorded(5); ok {
		t.Fatal("Get must not record")
	}

	if got := b.Resolve(5, 5); got != first {
		t.Errorf("Resolve = %v, want %v", got, first)
	}
	s, predicted, ok := b.Recorded(5)
	if !ok || !predicted || s != first {
		t.Errorf("Recorded(5) = %v %v %v", s, predicted, ok)
	}
	if again, _ := b.Get(5); again != first {
		t.Errorf("Get after Resolve = %v", again)
	}

	// New authoritative data re-predicts over a stored prediction
	b.Record(5, 3, left, false)
	if s, predicted := b.Get(5); s != left || !predicted {
		t.Errorf("Get(5) after new data = %v %v, want predicted left", s, predicted)
	}
}

func TestPredictionNeverOverwritesAuthoritative(t *testing.T) {
	b := NewBuffer(8)
	b.Record(4, 4, right, false)
	b.Record(4, 4, left, true)
	if s, predicted, _ := b.Recorded(4); s != right || predicted {
		t.Errorf("authoritative slot overwritten: %v %v", s, predicted)
	}
}

// TestBufferStaleSlotIgnored verifies a wrapped slot does not answer for its old tick
func TestBufferStaleSlotIgnored(t *testing.T) {
	b := NewBuffer(4)
	b.Record(1, 1, right, false)
	b.Record(9, 9, left, false)
	if _, _, ok := b.Recorded(1); ok {
		t.Error("slot for tick 1 should have been replaced by tick 9")
	}
	if s, predicted := b.Get(1); s != Neutral || !predicted {
		t.Errorf("Get(1) = %v %v", s, predicted)
	}
}

// TestFutureInputKeepsRollbackWindow verifies the furthest accepted future tick
// leaves every tick back to current-window intact
func TestFutureInputKeepsRollbackWindow(t *testing.T) {
	const window = 8
	b := NewBuffer(window)
	for tick := core.Tick(0); tick < 10; tick++ {
		if err := b.Record(tick, tick, right, false); err != nil {
			t.Fatal(err)
		}
	}

	current := core.Tick(10)
	for future := current + 1; future < current+window; future++ {
		if err := b.Record(current, future, left, false); err != nil {
			t.Fatalf("Record(%d) = %v", future, err)
		}
	}

	for tick := current - window; tick < current; tick++ {
		s, predicted, ok := b.Recorded(tick)
		if !ok || predicted || s != right {
			t.Errorf("tick %d = %v predicted=%v ok=%v, want authoritative right", tick, s, predicted, ok)
		}
	}
}

func TestSampleAxis(t *testing.T) {
	if left.Axis() != -1 || right.Axis() != 1 || Neutral.Axis() != 0 {
		t.Error("axis mapping wrong")
	}
	if !(Sample{Jump: JumpPressed}).Jumping() || Neutral.Jumping() {
		t.Error("jump mapping wrong")
	}
}
