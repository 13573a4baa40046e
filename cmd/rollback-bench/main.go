// Command rollback-bench measures the cost of ticks, snapshots and
// rollbacks, and checks fixed-point accuracy against float math
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/lixenwraith/rollback/config"
	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/engine"
	"github.com/lixenwraith/rollback/physics"
	"github.com/lixenwraith/rollback/status"
	"github.com/lixenwraith/rollback/vmath"
)

var (
	bodyCounts = flag.String("bodies", "8,32,128", "comma separated body counts")
	depths     = flag.String("depths", "1,8,30,120", "comma separated rollback depths, in ticks")
)

// scene fills a world with a floor and a grid of player boxes, then settles it
func scene(cfg *config.Config, bodies int) (*engine.Simulation, error) {
	world := physics.NewWorld(cfg.PhysicsConfig())
	sim, err := engine.NewSimulation(cfg.EngineConfig(), world, status.NewRegistry(), nil)
	if err != nil {
		return nil, err
	}
	if _, err := sim.AddBody(physics.BodyDesc{
		Kind:   physics.Static,
		Shapes: []physics.Shape{physics.Box(vmath.FromInt(64), vmath.FromRatio(1, 2))},
	}); err != nil {
		return nil, err
	}
	cols := int(math.Ceil(math.Sqrt(float64(bodies))))
	for i := range bodies {
		x := vmath.FromInt(2*(i%cols) - cols)
		y := vmath.FromInt(2 + 2*(i/cols))
		if _, err := sim.AddBody(cfg.PlayerBody(x, y)); err != nil {
			return nil, err
		}
	}
	return sim, sim.RunTicks(cfg.Simulation.HistoryTicks)
}

func parseInts(s string) []int {
	var out []int
	for _, f := range strings.Split(s, ",") {
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(f), "%d", &n); err == nil && n > 0 {
			out = append(out, n)
		}
	}
	return out
}

func perOp(r testing.BenchmarkResult) string {
	return fmt.Sprintf("%10d ns/op %6d allocs/op", r.NsPerOp(), r.AllocsPerOp())
}

func verifyAccuracy() {
	fmt.Println("=== vmath accuracy ===")
	fmt.Printf("%-12s %15s %15s %12s\n", "Input", "vmath", "math", "Error %")
	for _, d := range []int{1, 2, 9, 100, 1000, 40000} {
		got := vmath.ToFloat(vmath.Sqrt(vmath.FromInt(d)))
		want := math.Sqrt(float64(d))
		fmt.Printf("sqrt(%-6d) %15.9f %15.9f %11.6f%%\n", d, got, want, math.Abs(got-want)/want*100)
	}
	for _, deg := range []int{0, 30, 45, 90, 135, 270} {
		got := vmath.ToFloat(vmath.Sin(vmath.FromRatio(int64(deg), 360)))
		want := math.Sin(float64(deg) * math.Pi / 180)
		fmt.Printf("sin(%3d°)    %15.9f %15.9f %12.3g\n", deg, got, want, math.Abs(got-want))
	}
	for _, deg := range []int{10, 45, 120, 200, 300} {
		rad := float64(deg) * math.Pi / 180
		y, x := vmath.FromFloat(math.Sin(rad)), vmath.FromFloat(math.Cos(rad))
		got := vmath.ToFloat(vmath.Atan2(y, x)) * 360
		fmt.Printf("atan2(%3d°)  %15.9f %15.9f %12.3g\n", deg, got, float64(deg), math.Abs(got-float64(deg)))
	}
	fmt.Println()
}

func main() {
	flag.Parse()
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	verifyAccuracy()

	fmt.Println("=== Tick and snapshot cost ===")
	for _, n := range parseInts(*bodyCounts) {
		sim, err := scene(cfg, n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "scene: %v\n", err)
			os.Exit(1)
		}
		tick := testing.Benchmark(func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = sim.RunTicks(1)
			}
		})
		var snap physics.WorldSnapshot
		snapshot := testing.Benchmark(func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				sim.World().SnapshotInto(&snap, sim.Tick())
			}
		})
		fmt.Printf("%4d bodies  tick %s  snapshot %s\n", n, perOp(tick), perOp(snapshot))
	}
	fmt.Println()

	fmt.Println("=== Reconcile cost ===")
	for _, n := range parseInts(*bodyCounts) {
		sim, err := scene(cfg, n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "scene: %v\n", err)
			os.Exit(1)
		}
		for _, d := range parseInts(*depths) {
			if d >= sim.Horizon() {
				continue
			}
			r := testing.Benchmark(func(b *testing.B) {
				for b.Loop() {
					if err := sim.Reconcile(sim.Tick() - core.Tick(d)); err != nil {
						b.Fatal(err)
					}
				}
			})
			fmt.Printf("%4d bodies  depth %4d  %s\n", n, d, perOp(r))
		}
	}
}
