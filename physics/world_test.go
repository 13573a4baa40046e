package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/vmath"
)

var dt120 = vmath.FromRatio(1, 120)

func near(got, want, tol int64) bool {
	return vmath.Abs(got-want) <= tol
}

func mustAdd(t *testing.T, w *World, desc BodyDesc, spawn core.Tick) BodyID {
	t.Helper()
	id, err := w.AddBody(desc, spawn)
	if err != nil {
		t.Fatalf("AddBody: %v", err)
	}
	return id
}

func groundDesc() BodyDesc {
	return BodyDesc{
		Kind:     Static,
		Position: vmath.V2Int(0, 0),
		Shapes:   []Shape{Box(vmath.FromInt(10), vmath.Scale)},
	}
}

// TestFreeFallMatchesClosedForm verifies one second of free fall at 120 Hz
// reproduces the semi-implicit Euler sum bit for bit
func TestFreeFallMatchesClosedForm(t *testing.T) {
	w := NewWorld(Config{})
	id := mustAdd(t, w, BodyDesc{
		Kind:    Dynamic,
		Mass:    vmath.Scale,
		Gravity: vmath.V2(0, -vmath.Scale),
	}, 0)

	var vy, py int64
	for i := 0; i < 120; i++ {
		w.Step(dt120)
		vy += vmath.Mul(-vmath.Scale, dt120)
		py += vmath.Mul(vy, dt120)
	}

	b, _ := w.Body(id)
	if b.Velocity.Y != vy || b.Position.Y != py {
		t.Fatalf("state = (%d, %d), want (%d, %d)", b.Position.Y, b.Velocity.Y, py, vy)
	}
	if b.Velocity.X != 0 || b.Position.X != 0 {
		t.Errorf("horizontal drift: %+v %+v", b.Position, b.Velocity)
	}

	// v(1s) = -1 within truncation of dt
	if !near(b.Velocity.Y, -vmath.Scale, 200) {
		t.Errorf("vy = %v, want -1", vmath.ToFloat(b.Velocity.Y))
	}
	// semi-implicit: y(n) = -g*dt^2 * n(n+1)/2 = -(121/240)
	if got := vmath.ToFloat(b.Position.Y); math.Abs(got+121.0/240.0) > 1e-6 {
		t.Errorf("y = %v, want %v", got, -121.0/240.0)
	}
}

// TestStaticBodyNeverMoves verifies forces and gravity are ignored for static bodies
func TestStaticBodyNeverMoves(t *testing.T) {
	w := NewWorld(Config{})
	desc := groundDesc()
	desc.Gravity = vmath.V2(0, -vmath.Scale)
	id := mustAdd(t, w, desc, 0)

	for i := 0; i < 60; i++ {
		if err := w.QueueForce(id, vmath.V2Int(100, 100)); err != nil {
			t.Fatal(err)
		}
		w.Step(dt120)
	}
	b, _ := w.Body(id)
	if !b.Position.IsZero() || !b.Velocity.IsZero() || b.Angle != 0 {
		t.Errorf("static body moved: %+v", b.State())
	}
}

// TestKinematicBodyIgnoresForces verifies kinematic bodies follow their velocity only
func TestKinematicBodyIgnoresForces(t *testing.T) {
	w := NewWorld(Config{})
	id := mustAdd(t, w, BodyDesc{
		Kind:     Kinematic,
		Velocity: vmath.V2Int(1, 0),
		Gravity:  vmath.V2(0, -vmath.Scale),
		Shapes:   []Shape{Box(vmath.Scale, vmath.Scale)},
	}, 0)
	// Dynamic body resting in its path
	mustAdd(t, w, BodyDesc{
		Kind:     Dynamic,
		Position: vmath.V2Int(2, 0),
		Shapes:   []Shape{Circle(vmath.Vec2{}, vmath.FromRatio(1, 2))},
	}, 0)

	var px int64
	for i := 0; i < 120; i++ {
		w.QueueForce(id, vmath.V2Int(0, 50))
		w.Step(dt120)
		px += vmath.Mul(vmath.Scale, dt120)
	}
	b, _ := w.Body(id)
	if b.Position.X != px || b.Position.Y != 0 {
		t.Errorf("kinematic position = %+v, want (%d, 0)", b.Position, px)
	}
	if b.Velocity != vmath.V2Int(1, 0) {
		t.Errorf("kinematic velocity changed: %+v", b.Velocity)
	}
}

// TestCircleRestsOnGround verifies circle-polygon contact settles with small penetration
func TestCircleRestsOnGround(t *testing.T) {
	w := NewWorld(Config{})
	mustAdd(t, w, groundDesc(), 0)
	radius := vmath.FromRatio(1, 2)
	id := mustAdd(t, w, BodyDesc{
		Kind:     Dynamic,
		Position: vmath.V2Int(0, 3),
		Gravity:  vmath.V2(0, -vmath.FromInt(10)),
		Shapes:   []Shape{Circle(vmath.Vec2{}, radius)},
	}, 0)

	for i := 0; i < 240; i++ {
		w.Step(dt120)
	}

	b, _ := w.Body(id)
	rest := vmath.Scale + radius
	if !near(b.Position.Y, rest, vmath.FromRatio(5, 100)) {
		t.Errorf("rest height = %v, want ~%v", vmath.ToFloat(b.Position.Y), vmath.ToFloat(rest))
	}
	if vmath.Abs(b.Velocity.Y) > vmath.FromRatio(2, 10) {
		t.Errorf("still moving: vy = %v", vmath.ToFloat(b.Velocity.Y))
	}
	if len(w.Contacts()) == 0 {
		t.Error("expected a resting contact")
	}
}

// TestBoxRestsFlatOnGround verifies polygon-polygon contact with clipped points
// does not spin a box that lands flat
func TestBoxRestsFlatOnGround(t *testing.T) {
	w := NewWorld(Config{})
	ground := mustAdd(t, w, groundDesc(), 0)
	half := vmath.FromRatio(1, 2)
	id := mustAdd(t, w, BodyDesc{
		Kind:     Dynamic,
		Position: vmath.V2Int(0, 3),
		Gravity:  vmath.V2(0, -vmath.FromInt(10)),
		Shapes:   []Shape{Box(half, half)},
	}, 0)

	for i := 0; i < 240; i++ {
		w.Step(dt120)
	}

	b, _ := w.Body(id)
	if !near(b.Position.Y, vmath.Scale+half, vmath.FromRatio(5, 100)) {
		t.Errorf("rest height = %v", vmath.ToFloat(b.Position.Y))
	}
	if vmath.Abs(b.Angle) > vmath.FromRatio(1, 1000) {
		t.Errorf("box rotated: %v rad", vmath.ToFloat(b.Angle))
	}

	cs := w.Contacts()
	if len(cs) != 1 {
		t.Fatalf("contacts = %d, want 1", len(cs))
	}
	if cs[0].A != ground || cs[0].B != id {
		t.Errorf("contact pair = %d/%d", cs[0].A, cs[0].B)
	}
	if cs[0].Normal.Y <= 0 {
		t.Errorf("normal should point from ground to box: %+v", cs[0].Normal)
	}
}

// TestElasticCirclesExchangeVelocity verifies the impulse for equal masses with restitution 1
func TestElasticCirclesExchangeVelocity(t *testing.T) {
	w := NewWorld(Config{})
	radius := vmath.FromRatio(1, 2)
	shape := Circle(vmath.Vec2{}, radius).WithMaterial(vmath.Scale, 0)
	a := mustAdd(t, w, BodyDesc{
		Kind:     Dynamic,
		Velocity: vmath.V2Int(2, 0),
		Shapes:   []Shape{shape},
	}, 0)
	b := mustAdd(t, w, BodyDesc{
		Kind:     Dynamic,
		Position: vmath.V2(vmath.FromRatio(3, 2), 0),
		Shapes:   []Shape{shape},
	}, 0)

	for i := 0; i < 60; i++ {
		w.Step(dt120)
	}

	ba, _ := w.Body(a)
	bb, _ := w.Body(b)
	tol := vmath.FromRatio(1, 1000)
	if !near(ba.Velocity.X, 0, tol) {
		t.Errorf("a.vx = %v, want 0", vmath.ToFloat(ba.Velocity.X))
	}
	if !near(bb.Velocity.X, vmath.FromInt(2), tol) {
		t.Errorf("b.vx = %v, want 2", vmath.ToFloat(bb.Velocity.X))
	}
	if ba.AngularVelocity != 0 || bb.AngularVelocity != 0 {
		t.Error("head-on contact should not spin")
	}
}

func TestFrictionSlowsSlidingBox(t *testing.T) {
	w := NewWorld(Config{})
	g := groundDesc()
	g.Shapes[0] = g.Shapes[0].WithMaterial(0, vmath.FromRatio(1, 2))
	mustAdd(t, w, g, 0)
	half := vmath.FromRatio(1, 2)
	id := mustAdd(t, w, BodyDesc{
		Kind:           Dynamic,
		Position:       vmath.V2(0, vmath.Scale+half),
		Velocity:       vmath.V2Int(3, 0),
		Gravity:        vmath.V2(0, -vmath.FromInt(10)),
		FreezeRotation: true,
		Shapes:         []Shape{Box(half, half).WithMaterial(0, vmath.FromRatio(1, 2))},
	}, 0)

	for i := 0; i < 120; i++ {
		w.Step(dt120)
	}
	b, _ := w.Body(id)
	if b.Velocity.X >= vmath.FromRatio(1, 10) {
		t.Errorf("box still sliding at %v", vmath.ToFloat(b.Velocity.X))
	}
	if b.Velocity.X < -vmath.FromRatio(1, 100) {
		t.Errorf("friction reversed motion: %v", vmath.ToFloat(b.Velocity.X))
	}
}

func TestFreezeFlagsAndSpeedCap(t *testing.T) {
	w := NewWorld(Config{})
	id := mustAdd(t, w, BodyDesc{
		Kind:            Dynamic,
		Velocity:        vmath.V2Int(5, 0),
		AngularVelocity: vmath.Scale,
		Gravity:         vmath.V2(0, -vmath.FromInt(100)),
		MaxSpeed:        vmath.FromInt(2),
		FreezeX:         true,
		FreezeRotation:  true,
	}, 0)

	for i := 0; i < 120; i++ {
		w.Step(dt120)
	}
	b, _ := w.Body(id)
	if b.Position.X != 0 || b.Velocity.X != 0 {
		t.Errorf("frozen X axis moved: %+v", b.State())
	}
	if b.Angle != 0 {
		t.Errorf("frozen rotation changed angle: %d", b.Angle)
	}
	if vmath.Abs(b.Velocity.Y) > vmath.FromInt(2)+64 {
		t.Errorf("speed cap exceeded: %v", vmath.ToFloat(b.Velocity.Y))
	}
}

func TestTorqueSpinsBody(t *testing.T) {
	w := NewWorld(Config{})
	id := mustAdd(t, w, BodyDesc{
		Kind:   Dynamic,
		Shapes: []Shape{Box(vmath.FromRatio(1, 2), vmath.FromRatio(1, 2))},
	}, 0)
	if err := w.QueueTorque(id, vmath.Scale); err != nil {
		t.Fatal(err)
	}
	w.Step(dt120)
	b, _ := w.Body(id)
	if b.AngularVelocity <= 0 || b.Angle <= 0 {
		t.Errorf("torque had no effect: %+v", b.State())
	}
	// accumulators are consumed by the step
	before := b.AngularVelocity
	w.Step(dt120)
	if b.AngularVelocity != before {
		t.Errorf("torque applied twice")
	}
}

func buildScene(t *testing.T) *World {
	t.Helper()
	w := NewWorld(Config{})
	mustAdd(t, w, groundDesc(), 0)
	half := vmath.FromRatio(1, 2)
	for i := 0; i < 4; i++ {
		mustAdd(t, w, BodyDesc{
			Kind:     Dynamic,
			Position: vmath.V2(vmath.FromInt(i-2), vmath.FromInt(2+i)),
			Angle:    vmath.FromRatio(int64(i), 10),
			Gravity:  vmath.V2(0, -vmath.FromInt(10)),
			Shapes: []Shape{
				Box(half, half).WithMaterial(vmath.FromRatio(2, 10), vmath.FromRatio(3, 10)),
			},
		}, 0)
		mustAdd(t, w, BodyDesc{
			Kind:     Dynamic,
			Position: vmath.V2(vmath.FromInt(i-2)+half/2, vmath.FromInt(5+i)),
			Gravity:  vmath.V2(0, -vmath.FromInt(10)),
			Shapes:   []Shape{Circle(vmath.Vec2{}, half)},
		}, 0)
	}
	return w
}

// TestRestoreReplaysIdentically verifies restore followed by the same steps
// reproduces the original trajectory bit for bit
func TestRestoreReplaysIdentically(t *testing.T) {
	w := buildScene(t)
	for i := 0; i < 30; i++ {
		w.Step(dt120)
	}
	mid := w.Snapshot(30)
	for i := 0; i < 90; i++ {
		w.Step(dt120)
	}
	want := w.Snapshot(120)

	if err := w.Restore(mid); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := w.Snapshot(30); !got.Equal(mid) {
		t.Fatal("restored state differs from snapshot")
	}
	for i := 0; i < 90; i++ {
		w.Step(dt120)
	}
	if got := w.Snapshot(120); !got.Equal(want) {
		t.Error("replay diverged after restore")
	}
}

// TestRestoreSleepsLaterSpawns verifies bodies added after the snapshot tick
// return to their spawn state and wake when the tick comes around again
func TestRestoreSleepsLaterSpawns(t *testing.T) {
	w := buildScene(t)
	snaps := make(map[core.Tick]WorldSnapshot)
	var late BodyID

	run := func(from, to core.Tick) {
		for tick := from; tick < to; tick++ {
			w.BeginTick(tick)
			snaps[tick] = w.Snapshot(tick)
			w.Step(dt120)
		}
	}

	run(0, 5)
	late = mustAdd(t, w, BodyDesc{
		Kind:     Dynamic,
		Position: vmath.V2Int(0, 8),
		Gravity:  vmath.V2(0, -vmath.FromInt(10)),
		Shapes:   []Shape{Circle(vmath.Vec2{}, vmath.FromRatio(1, 2))},
	}, 5)
	if b, _ := w.Body(late); !b.Dormant() {
		t.Fatal("body added ahead of its spawn tick should be dormant")
	}
	run(5, 20)
	want := w.Snapshot(20)

	if err := w.Restore(snaps[2]); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	b, _ := w.Body(late)
	if !b.Dormant() || b.Position != vmath.V2Int(0, 8) {
		t.Fatalf("late body not reset: dormant=%v pos=%+v", b.Dormant(), b.Position)
	}

	run(2, 20)
	if got := w.Snapshot(20); !got.Equal(want) {
		t.Error("resimulation with late spawn diverged")
	}
}

// TestRestoreReportsRemovedBody verifies a removed body is reported but does not
// abort the restore of the others
func TestRestoreReportsRemovedBody(t *testing.T) {
	w := buildScene(t)
	snap := w.Snapshot(0)
	for i := 0; i < 10; i++ {
		w.Step(dt120)
	}
	if err := w.RemoveBody(3); err != nil {
		t.Fatal(err)
	}

	err := w.Restore(snap)
	if !errors.Is(err, ErrSnapshotBodyMismatch) {
		t.Fatalf("err = %v, want ErrSnapshotBodyMismatch", err)
	}
	for _, s := range snap.Bodies {
		if s.ID == 3 {
			continue
		}
		b, ok := w.Body(s.ID)
		if !ok {
			t.Fatalf("body %d lost", s.ID)
		}
		if b.State() != s {
			t.Errorf("body %d not restored", s.ID)
		}
	}
}

func TestLockedWorldRejectsStructuralChanges(t *testing.T) {
	w := NewWorld(Config{})
	id := mustAdd(t, w, groundDesc(), 0)
	w.Lock()
	if _, err := w.AddBody(groundDesc(), 0); !errors.Is(err, ErrWorldStepping) {
		t.Errorf("AddBody while locked: %v", err)
	}
	if err := w.RemoveBody(id); !errors.Is(err, ErrWorldStepping) {
		t.Errorf("RemoveBody while locked: %v", err)
	}
	if err := w.Restore(w.Snapshot(0)); !errors.Is(err, ErrWorldStepping) {
		t.Errorf("Restore while locked: %v", err)
	}
	w.Unlock()
	if err := w.RemoveBody(id); err != nil {
		t.Errorf("RemoveBody after unlock: %v", err)
	}
	if err := w.RemoveBody(id); !errors.Is(err, ErrUnknownBody) {
		t.Errorf("double remove: %v", err)
	}
}

func TestInvalidShapesRejected(t *testing.T) {
	w := NewWorld(Config{})
	bad := []Shape{
		Circle(vmath.Vec2{}, 0),
		Polygon(vmath.V2Int(0, 0), vmath.V2Int(1, 0)),
		Polygon(vmath.V2Int(0, 0), vmath.V2Int(2, 0), vmath.V2Int(1, 1), vmath.V2Int(2, 2), vmath.V2Int(0, 2)),
	}
	for i, s := range bad {
		if _, err := w.AddBody(BodyDesc{Kind: Dynamic, Shapes: []Shape{s}}, 0); !errors.Is(err, ErrInvalidShape) {
			t.Errorf("case %d: err = %v, want ErrInvalidShape", i, err)
		}
	}

	// Clockwise input is accepted and rewound
	cw := Polygon(vmath.V2Int(0, 0), vmath.V2Int(0, 1), vmath.V2Int(1, 1), vmath.V2Int(1, 0))
	id, err := w.AddBody(BodyDesc{Kind: Dynamic, Shapes: []Shape{cw}}, 0)
	if err != nil {
		t.Fatalf("clockwise polygon rejected: %v", err)
	}
	b, _ := w.Body(id)
	if signedArea2(b.Shapes()[0].Vertices) <= 0 {
		t.Error("polygon not normalized to counter-clockwise")
	}
}

func TestBoxInertia(t *testing.T) {
	// Unit box of mass 1: I = (w^2 + h^2) / 12
	s := Box(vmath.FromRatio(1, 2), vmath.FromRatio(1, 2))
	got := s.inertia(vmath.Scale)
	if !near(got, vmath.FromRatio(1, 6), 64) {
		t.Errorf("inertia = %v, want 1/6", vmath.ToFloat(got))
	}
}
