// Package rung assigns every particle group an integer timestep rung:
// rung r advances with step 2^r * minDt, where minDt is the global
// minimum over all partitions. Local per-group dt estimates are
// sorted, reduced across partitions and binned into rung ranges on
// the sorted order.
package rung

import (
	"math"
	"sort"

	"github.com/san-kum/gravlab/internal/comm"
	"github.com/san-kum/gravlab/internal/domain"
)

// MaxNumRungs caps the rung hierarchy: the slowest groups step at
// most 2^(MaxNumRungs-1) times the global minimum.
const MaxNumRungs = 4

// DefaultFastFraction selects the dt bound at 40% of the sorted
// groups as the boundary of the fastest-moving fraction.
const DefaultFastFraction = 0.4

// Timestep is the block time-step record handed to the integrator.
// RungRanges[r] is the first index in the sorted group order whose dt
// reaches 2^r * MinDt; entries at and beyond NumRungs equal the group
// count. Substep and DtDrift start zeroed and are advanced by the
// integrator across sub-cycles.
type Timestep struct {
	MinDt      float64
	NumRungs   int
	Substep    int
	RungRanges [MaxNumRungs + 1]int
	DtDrift    [MaxNumRungs]float64
}

// Scratch is the reusable sort buffer, sized to one dt plus one index
// per group and grown only when the group count does.
type Scratch struct {
	dt []float64
}

func (s *Scratch) reserve(n int) {
	if cap(s.dt) < n {
		s.dt = make([]float64, n)
	}
	s.dt = s.dt[:n]
}

// SortGroupDt sorts groupDt ascending in place, stable, and fills
// groupIndices with the permutation mapping sorted positions back to
// original group identity.
func SortGroupDt(groupDt []float64, groupIndices []int, scratch *Scratch) {
	n := len(groupDt)
	scratch.reserve(n)
	copy(scratch.dt, groupDt)

	for i := range groupIndices[:n] {
		groupIndices[i] = i
	}
	sort.SliceStable(groupIndices[:n], func(a, b int) bool {
		return scratch.dt[groupIndices[a]] < scratch.dt[groupIndices[b]]
	})
	for i, j := range groupIndices[:n] {
		groupDt[i] = scratch.dt[j]
	}
}

// TimestepRange returns the local minimum dt and the dt at the
// fastFraction boundary of the sorted array. The boundary index is
// clamped to [0, n-1].
func TimestepRange(sortedDt []float64, fastFraction float64) (float64, float64) {
	n := len(sortedDt)
	i := int(fastFraction * float64(n))
	if i < 0 {
		i = 0
	}
	if i > n-1 {
		i = n - 1
	}
	return sortedDt[0], sortedDt[i]
}

// ComputeRungTimestep sorts the local group dt values, min-reduces
// the local (minDt, boundDt) pair across all partitions and bins the
// sorted groups into rung ranges. Partitions with zero groups still
// participate in the reduction (with +Inf bounds) so the collective
// call counts stay matched.
func ComputeRungTimestep(c *comm.Comm, grp domain.GroupView, groupDt []float64, groupIndices []int, scratch *Scratch) Timestep {
	ng := grp.NumGroups()

	local := []float64{math.Inf(1), math.Inf(1)}
	if ng > 0 {
		SortGroupDt(groupDt[:ng], groupIndices, scratch)
		local[0], local[1] = TimestepRange(groupDt[:ng], DefaultFastFraction)
	}

	global := c.AllreduceMin(local)
	minDt, bound := global[0], global[1]

	ts := Timestep{MinDt: minDt, NumRungs: 1}
	for r := 1; r <= MaxNumRungs; r++ {
		ts.RungRanges[r] = ng
	}

	if bound > minDt && minDt > 0 && !math.IsInf(bound, 1) {
		n := int(math.Log2(bound/minDt)) + 1
		if n > MaxNumRungs {
			n = MaxNumRungs
		}
		ts.NumRungs = n
	}

	if ng > 0 {
		for r := 1; r < ts.NumRungs; r++ {
			maxDtRung := float64(uint(1)<<uint(r)) * minDt
			ts.RungRanges[r] = sort.SearchFloat64s(groupDt[:ng], maxDtRung)
		}
	}
	return ts
}

// FromGlobalDt is the fallback for execution paths without per-group
// dt estimates: a single global minimum, one rung.
func FromGlobalDt(c *comm.Comm, dt float64, numGroups int) Timestep {
	global := c.AllreduceMin([]float64{dt})
	ts := Timestep{MinDt: global[0], NumRungs: 1}
	for r := 1; r <= MaxNumRungs; r++ {
		ts.RungRanges[r] = numGroups
	}
	return ts
}
