// Package telemetry exports a per-tick trace and rollback statistics as CSV
package telemetry

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"

	"github.com/gocarina/gocsv"

	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/engine"
	"github.com/lixenwraith/rollback/physics"
	"github.com/lixenwraith/rollback/status"
)

// TickRecord is one row of ticks.csv, written after every executed tick
// Rollbacks and ResimTicks are running totals. A resimulated row supersedes
// earlier rows for the same tick
type TickRecord struct {
	Tick        int64  `csv:"tick"`
	Resimulated bool   `csv:"resimulated"`
	Rollbacks   int64  `csv:"rollbacks"`
	ResimTicks  int64  `csv:"resim_ticks"`
	Bodies      int    `csv:"bodies"`
	StateHash   string `csv:"state_hash"`
}

const flushEvery = 128

// Recorder is a Post observer tracing ticks, live and resimulated
// Use Final on the trace to compare peers: the last row of a tick carries its
// corrected hash, which is settled once the tick is older than the horizon
type Recorder struct {
	ticks   io.Writer
	closers []io.Closer
	dir     string

	pending       []TickRecord
	headerWritten bool
	scratch       physics.WorldSnapshot
	summary       Summary
	liveTicks     int64

	statRollbacks  *atomic.Int64
	statResimTicks *atomic.Int64
	statMeanDepth  *status.AtomicFloat
	statStdDev     *status.AtomicFloat
	statMaxDepth   *status.AtomicFloat
}

// NewRecorder writes rows to w. reg must be the registry the simulation uses
func NewRecorder(w io.Writer, reg *status.Registry) *Recorder {
	return &Recorder{
		ticks:          w,
		pending:        make([]TickRecord, 0, flushEvery),
		statRollbacks:  reg.Ints.Get("engine.rollbacks"),
		statResimTicks: reg.Ints.Get("engine.resim_ticks"),
		statMeanDepth:  reg.Floats.Get("telemetry.depth_mean"),
		statStdDev:     reg.Floats.Get("telemetry.depth_stddev"),
		statMaxDepth:   reg.Floats.Get("telemetry.depth_max"),
	}
}

// OpenRecorder creates dir and writes ticks.csv there; Close adds summary.csv
func OpenRecorder(dir string, reg *status.Registry) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating telemetry directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "ticks.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating ticks.csv: %w", err)
	}
	r := NewRecorder(f, reg)
	r.closers = append(r.closers, f)
	r.dir = dir
	return r, nil
}

// Attach registers the recorder as a Post observer and rollback listener
func (r *Recorder) Attach(sim *engine.Simulation) {
	sim.AddObserver(engine.PhasePost, r)
	sim.OnRollback(r.onRollback)
}

func (r *Recorder) onRollback(from, to core.Tick) {
	r.summary.AddRollback(from, to)
	rep := r.summary.Report()
	r.statMeanDepth.Store(rep.MeanDepth)
	r.statStdDev.Store(rep.StdDevDepth)
	r.statMaxDepth.Store(rep.MaxDepth)
}

func (r *Recorder) Observe(sim *engine.Simulation) {
	resim := sim.Resimulating()
	if !resim {
		r.liveTicks++
	}

	// Post runs before the counter advances, so the world is already at Tick()+1
	world := sim.World()
	world.SnapshotInto(&r.scratch, sim.Tick()+1)
	r.pending = append(r.pending, TickRecord{
		Tick:        int64(sim.Tick()),
		Resimulated: resim,
		Rollbacks:   r.statRollbacks.Load(),
		ResimTicks:  r.statResimTicks.Load(),
		Bodies:      len(r.scratch.Bodies),
		StateHash:   fmt.Sprintf("%016x", StateHash(r.scratch.Bodies)),
	})

	if len(r.pending) >= flushEvery {
		if err := r.Flush(); err != nil {
			sim.Logger().Warn("telemetry flush failed", "err", err)
		}
	}
}

// Flush writes buffered rows, with the header on first write
func (r *Recorder) Flush() error {
	if len(r.pending) == 0 {
		return nil
	}
	var err error
	if !r.headerWritten {
		err = gocsv.Marshal(r.pending, r.ticks)
		r.headerWritten = err == nil
	} else {
		err = gocsv.MarshalWithoutHeaders(r.pending, r.ticks)
	}
	r.pending = r.pending[:0]
	if err != nil {
		return fmt.Errorf("writing ticks: %w", err)
	}
	return nil
}

// Summary returns the aggregate so far
func (r *Recorder) Summary() Report {
	rep := r.summary.Report()
	rep.LiveTicks = r.liveTicks
	rep.ResimTicks = r.statResimTicks.Load()
	return rep
}

// Close flushes rows, writes summary.csv when opened on a directory, and
// closes owned files
func (r *Recorder) Close() error {
	errs := []error{r.Flush()}

	if r.dir != "" {
		errs = append(errs, writeSummary(filepath.Join(r.dir, "summary.csv"), r.Summary()))
	}
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// ReadTrace parses a ticks.csv written by a Recorder
func ReadTrace(r io.Reader) ([]TickRecord, error) {
	var rows []TickRecord
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("reading ticks: %w", err)
	}
	return rows, nil
}

// Final keeps the last row written for each tick, in tick order
func Final(rows []TickRecord) []TickRecord {
	last := make(map[int64]TickRecord, len(rows))
	for _, row := range rows {
		last[row.Tick] = row
	}
	out := make([]TickRecord, 0, len(last))
	for _, row := range last {
		out = append(out, row)
	}
	slices.SortFunc(out, func(a, b TickRecord) int { return cmp.Compare(a.Tick, b.Tick) })
	return out
}

func writeSummary(path string, rep Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating summary.csv: %w", err)
	}
	defer f.Close()
	if err := gocsv.Marshal([]Report{rep}, f); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}
