package telemetry

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lixenwraith/rollback/core"
)

// Summary accumulates rollback depths over a run
type Summary struct {
	depths []float64
}

// Report is the aggregate written to summary.csv
type Report struct {
	Rollbacks   int     `csv:"rollbacks"`
	MeanDepth   float64 `csv:"mean_depth"`
	StdDevDepth float64 `csv:"stddev_depth"`
	MaxDepth    float64 `csv:"max_depth"`
	LiveTicks   int64   `csv:"live_ticks"`
	ResimTicks  int64   `csv:"resim_ticks"`
}

// AddRollback matches engine.Simulation.OnRollback
func (s *Summary) AddRollback(from, to core.Tick) {
	s.depths = append(s.depths, float64(from-to))
}

func (s *Summary) Count() int {
	return len(s.depths)
}

// Report computes depth statistics; all zero before the first rollback
// Standard deviation is the unbiased estimate and zero for a single sample
func (s *Summary) Report() Report {
	r := Report{Rollbacks: len(s.depths)}
	if len(s.depths) == 0 {
		return r
	}
	r.MeanDepth = stat.Mean(s.depths, nil)
	if len(s.depths) > 1 {
		r.StdDevDepth = stat.StdDev(s.depths, nil)
	}
	r.MaxDepth = floats.Max(s.depths)
	return r
}

func (s *Summary) Reset() {
	s.depths = s.depths[:0]
}
