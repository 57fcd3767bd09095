package domain

import (
	"fmt"
	"sort"

	"github.com/san-kum/gravlab/internal/particles"
)

// Cloud is the global particle snapshot a run is decomposed from,
// sorted ascending in x. All slabs of a run share one Cloud and read
// it concurrently; nobody writes it after construction.
type Cloud struct {
	X, Y, Z, M, H, Divv []float64
}

func (c *Cloud) Len() int { return len(c.X) }

// SortByX orders the cloud ascending in x so slab ownership ranges
// are contiguous.
func (c *Cloud) SortByX() {
	idx := make([]int, c.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return c.X[idx[a]] < c.X[idx[b]] })

	for _, f := range [][]float64{c.X, c.Y, c.Z, c.M, c.H, c.Divv} {
		tmp := make([]float64, len(f))
		for i, j := range idx {
			tmp[i] = f[j]
		}
		copy(f, tmp)
	}
}

// Slab owns a contiguous x-range of the cloud plus a halo of width
// haloWidth on either side, copied fresh on every SyncGrav.
type Slab struct {
	cloud     *Cloud
	rank      int
	size      int
	haloWidth float64
	groupSize int

	ownLo, ownHi   int // global owned range
	haloLo, haloHi int // global range including halos, set by SyncGrav
}

func NewSlab(cloud *Cloud, rank, size int, haloWidth float64, groupSize int) *Slab {
	n := cloud.Len()
	lo := rank * n / size
	hi := (rank + 1) * n / size
	return &Slab{
		cloud:     cloud,
		rank:      rank,
		size:      size,
		haloWidth: haloWidth,
		groupSize: groupSize,
		ownLo:     lo,
		ownHi:     hi,
		haloLo:    lo,
		haloHi:    hi,
	}
}

func (s *Slab) NParticlesWithHalos() int { return s.haloHi - s.haloLo }
func (s *Slab) StartIndex() int          { return s.ownLo - s.haloLo }
func (s *Slab) EndIndex() int            { return s.ownHi - s.haloLo }

// SyncGrav recomputes the halo ranges from the current positions and
// copies the slab's slice of the cloud into ps. Layout: left halo,
// owned range, right halo.
func (s *Slab) SyncGrav(ps *particles.Set) error {
	if s.ownHi <= s.ownLo {
		return fmt.Errorf("slab %d/%d owns no particles", s.rank, s.size)
	}
	c := s.cloud

	s.haloLo = sort.SearchFloat64s(c.X, c.X[s.ownLo]-s.haloWidth)
	if s.haloLo > s.ownLo {
		s.haloLo = s.ownLo
	}
	s.haloHi = sort.SearchFloat64s(c.X, c.X[s.ownHi-1]+s.haloWidth)
	if s.haloHi < s.ownHi {
		s.haloHi = s.ownHi
	}

	n := s.haloHi - s.haloLo
	ps.Resize(n)
	copy(ps.X, c.X[s.haloLo:s.haloHi])
	copy(ps.Y, c.Y[s.haloLo:s.haloHi])
	copy(ps.Z, c.Z[s.haloLo:s.haloHi])
	copy(ps.M, c.M[s.haloLo:s.haloHi])
	copy(ps.H, c.H[s.haloLo:s.haloHi])
	copy(ps.Divv, c.Divv[s.haloLo:s.haloHi])
	return nil
}

func (s *Slab) Groups() GroupView {
	return SplitGroups(s.StartIndex(), s.EndIndex(), s.groupSize)
}
