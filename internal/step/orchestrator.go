// Package step drives the per-iteration sequence of the force core:
// halo sync, tree upsweep, traversal, collective diagnostics and rung
// assignment. One Orchestrator per partition, stepped in lockstep
// with every other partition of the run.
package step

import (
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/gravlab/internal/comm"
	"github.com/san-kum/gravlab/internal/domain"
	"github.com/san-kum/gravlab/internal/gravity"
	"github.com/san-kum/gravlab/internal/particles"
	"github.com/san-kum/gravlab/internal/rung"
)

// Options configures one partition's orchestrator.
type Options struct {
	Comm    *comm.Comm
	Backend gravity.Backend
	Domain  domain.Domain
	// Out receives the per-step diagnostic line on the coordinating
	// partition (rank 0, the owner of global particle index 0).
	Out io.Writer
	Log *logrus.Logger

	// Krho is the kernel coefficient of the divergence criterion.
	Krho float64
	// EtaAcc scales the acceleration criterion.
	EtaAcc float64
	// Eps is the gravitational softening the acceleration criterion
	// derives its length scale from.
	Eps float64
	// MaxDt caps every dt estimate and doubles as the externally
	// supplied global estimate on backends without group timesteps.
	MaxDt float64
}

// Report is what one step leaves behind. Egrav and MaxP2PGlobal are
// only meaningful on rank 0.
type Report struct {
	Step         int
	Rank         int
	NumOwned     int
	EgravLocal   float64
	Egrav        float64
	Stats        gravity.Stats
	MaxP2PGlobal uint64
	Timestep     rung.Timestep
	Phases       []Phase
}

type Orchestrator struct {
	opt   Options
	log   *logrus.Entry
	timer PhaseTimer

	scratch  rung.Scratch
	groupDt  []float64
	groupIdx []int
	step     int
}

func New(opt Options) *Orchestrator {
	if opt.Log == nil {
		opt.Log = logrus.New()
		opt.Log.SetLevel(logrus.WarnLevel)
	}
	return &Orchestrator{
		opt: opt,
		log: opt.Log.WithField("rank", opt.Comm.Rank()),
	}
}

// Step runs one full iteration and returns the step report together
// with the Timestep record for the integrator. A NaN or Inf in the
// accumulated accelerations means the tree aggregates were malformed;
// that is fatal and ends the run.
func (o *Orchestrator) Step(ps *particles.Set) (*Report, error) {
	c := o.opt.Comm
	dom := o.opt.Domain
	o.timer.Start()

	if err := dom.SyncGrav(ps); err != nil {
		return nil, fmt.Errorf("domain sync: %w", err)
	}
	o.timer.Step("domain::sync")

	first, last := dom.StartIndex(), dom.EndIndex()
	ps.SentinelMassFill(first, last)
	ps.ZeroScratch(first, last)

	o.opt.Backend.Upsweep(ps, dom)
	c.Barrier()
	o.timer.Step("upsweep")

	egrav := o.opt.Backend.Traverse(ps, dom)
	globalEnergy := c.ReduceSum(egrav, 0)
	o.timer.Step("gravity")

	stats := o.opt.Backend.ReadStats()
	maxP2Pglobal := c.ReduceMax(stats.MaxP2P, 0)

	// The coordinating partition owns global particle index 0, so the
	// line appears exactly once per step even when another partition's
	// left halo happens to be empty.
	if c.Rank() == 0 && last > first {
		n := uint64(last - first)
		fmt.Fprintf(o.opt.Out, "numP2P %d maxP2P %d numM2P %d maxM2P %d maxP2Pglobal %d\n",
			stats.NumP2P/n, stats.MaxP2P, stats.NumM2P/n, stats.MaxM2P, maxP2Pglobal)
	}

	if !ps.Valid(first, last) {
		return nil, fmt.Errorf("step %d: malformed tree state produced non-finite accelerations", o.step)
	}

	ts := o.computeTimestep(ps)
	o.timer.Step("timestep")

	rep := &Report{
		Step:         o.step,
		Rank:         c.Rank(),
		NumOwned:     last - first,
		EgravLocal:   egrav,
		Egrav:        globalEnergy,
		Stats:        stats,
		MaxP2PGlobal: maxP2Pglobal,
		Timestep:     ts,
		Phases:       append([]Phase(nil), o.timer.Phases()...),
	}
	o.step++

	for _, p := range rep.Phases {
		o.log.WithFields(logrus.Fields{"step": rep.Step, "phase": p.Name}).
			Debugf("%v", p.Elapsed)
	}
	return rep, nil
}

// computeTimestep runs the per-group criteria when the backend
// evaluates at group granularity, and otherwise falls back to the
// single global estimate.
func (o *Orchestrator) computeTimestep(ps *particles.Set) rung.Timestep {
	grp := o.opt.Domain.Groups()
	ng := grp.NumGroups()

	if !o.opt.Backend.SupportsGroupTimesteps() {
		return rung.FromGlobalDt(o.opt.Comm, o.opt.MaxDt, ng)
	}

	if cap(o.groupDt) < ng {
		o.groupDt = make([]float64, ng)
		o.groupIdx = make([]int, ng)
	}
	o.groupDt = o.groupDt[:ng]
	o.groupIdx = o.groupIdx[:ng]
	for g := range o.groupDt {
		o.groupDt[g] = o.opt.MaxDt
	}

	rung.GroupDivvTimestep(o.opt.Krho, grp, ps.Divv, o.groupDt)
	rung.GroupAccTimestep(o.opt.EtaAcc*math.Sqrt(o.opt.Eps), grp, ps.Ax, ps.Ay, ps.Az, o.groupDt)

	return rung.ComputeRungTimestep(o.opt.Comm, grp, o.groupDt, o.groupIdx, &o.scratch)
}
