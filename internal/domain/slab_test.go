package domain

import (
	"sort"
	"testing"

	"github.com/san-kum/gravlab/internal/particles"
)

func lineCloud(n int) *Cloud {
	c := &Cloud{
		X:    make([]float64, n),
		Y:    make([]float64, n),
		Z:    make([]float64, n),
		M:    make([]float64, n),
		H:    make([]float64, n),
		Divv: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		c.X[i] = float64(i)
		c.M[i] = 1
	}
	return c
}

func TestSortByX(t *testing.T) {
	c := &Cloud{
		X:    []float64{3, 1, 2},
		Y:    []float64{30, 10, 20},
		Z:    make([]float64, 3),
		M:    []float64{0.3, 0.1, 0.2},
		H:    make([]float64, 3),
		Divv: make([]float64, 3),
	}
	c.SortByX()

	if !sort.Float64sAreSorted(c.X) {
		t.Fatalf("x not sorted: %v", c.X)
	}
	// companion fields move with x
	if c.Y[0] != 10 || c.M[0] != 0.1 {
		t.Errorf("fields not permuted together: y=%v m=%v", c.Y, c.M)
	}
}

func TestSlabOwnershipCoversCloud(t *testing.T) {
	c := lineCloud(10)
	covered := make([]bool, 10)

	for rank := 0; rank < 3; rank++ {
		s := NewSlab(c, rank, 3, 0.5, 4)
		for g := s.ownLo; g < s.ownHi; g++ {
			if covered[g] {
				t.Fatalf("particle %d owned twice", g)
			}
			covered[g] = true
		}
	}
	for g, ok := range covered {
		if !ok {
			t.Fatalf("particle %d owned by nobody", g)
		}
	}
}

func TestSyncGravHaloRanges(t *testing.T) {
	c := lineCloud(9)
	s := NewSlab(c, 1, 3, 1.5, 4) // owns x in [3, 6)

	ps := particles.NewSet(0)
	if err := s.SyncGrav(ps); err != nil {
		t.Fatal(err)
	}

	// halo reaches x >= 1.5 on the left and x <= 6.5 on the right
	if s.haloLo != 2 || s.haloHi != 7 {
		t.Fatalf("halo range [%d, %d), want [2, 7)", s.haloLo, s.haloHi)
	}
	if ps.Len() != s.NParticlesWithHalos() {
		t.Fatalf("set len %d, want %d", ps.Len(), s.NParticlesWithHalos())
	}
	if ps.X[s.StartIndex()] != 3 {
		t.Errorf("first owned x = %f, want 3", ps.X[s.StartIndex()])
	}
	if ps.X[s.EndIndex()-1] != 5 {
		t.Errorf("last owned x = %f, want 5", ps.X[s.EndIndex()-1])
	}
}

func TestSyncGravRejectsEmptySlab(t *testing.T) {
	c := lineCloud(2)
	s := NewSlab(c, 0, 3, 0.5, 4) // 2 particles over 3 ranks: rank 0 gets none

	if s.ownHi > s.ownLo {
		t.Fatal("expected rank 0 to own nothing under this split")
	}
	if err := s.SyncGrav(particles.NewSet(0)); err == nil {
		t.Error("expected error for empty slab")
	}
}

func TestSplitGroups(t *testing.T) {
	grp := SplitGroups(2, 12, 4)

	if grp.NumGroups() != 3 {
		t.Fatalf("expected 3 groups, got %d", grp.NumGroups())
	}
	lo, hi := grp.Bounds(0)
	if lo != 2 || hi != 6 {
		t.Errorf("group 0 = [%d, %d), want [2, 6)", lo, hi)
	}
	lo, hi = grp.Bounds(2)
	if lo != 10 || hi != 12 {
		t.Errorf("last group = [%d, %d), want [10, 12)", lo, hi)
	}

	empty := SplitGroups(5, 5, 4)
	if empty.NumGroups() != 0 {
		t.Errorf("empty range must yield no groups, got %d", empty.NumGroups())
	}
}
