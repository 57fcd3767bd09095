// Package domain defines the contract of the external domain
// decomposition collaborator and ships an in-memory slab
// implementation used by the engine and the tests. The force core
// only ever sees the interface: which particles a partition owns,
// where its halo padding sits, and how its owned range is cut into
// spatially local groups.
package domain

import "github.com/san-kum/gravlab/internal/particles"

// Domain is the external collaborator that materializes a consistent
// particle+halo snapshot before each step. SyncGrav must refresh
// position, smoothing length, mass and divv for the whole local
// buffer; the core never checks staleness.
type Domain interface {
	// NParticlesWithHalos is the size of the local buffer, halos
	// included.
	NParticlesWithHalos() int
	// StartIndex and EndIndex delimit the locally owned range
	// [start, end) inside the buffer.
	StartIndex() int
	EndIndex() int
	// SyncGrav refreshes the local buffer, resizing ps as needed.
	SyncGrav(ps *particles.Set) error
	// Groups returns the current grouping of the owned range.
	Groups() GroupView
}

// GroupView cuts the owned particle range into contiguous,
// non-overlapping groups. Starts has NumGroups()+1 entries with
// Starts[0] == First and Starts[len-1] == Last.
type GroupView struct {
	First, Last int
	Starts      []int
}

func (g GroupView) NumGroups() int {
	if len(g.Starts) == 0 {
		return 0
	}
	return len(g.Starts) - 1
}

// Bounds returns the particle range [lo, hi) of group i.
func (g GroupView) Bounds(i int) (int, int) {
	return g.Starts[i], g.Starts[i+1]
}

// SplitGroups builds a GroupView over [first, last) with groups of at
// most groupSize particles.
func SplitGroups(first, last, groupSize int) GroupView {
	if groupSize < 1 {
		groupSize = 1
	}
	g := GroupView{First: first, Last: last}
	if last <= first {
		return g
	}
	for i := first; i < last; i += groupSize {
		g.Starts = append(g.Starts, i)
	}
	g.Starts = append(g.Starts, last)
	return g
}
