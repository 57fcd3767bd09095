package particles

import "math"

// Set holds particle fields in struct-of-arrays layout. One Set per
// partition: indices [0, n) cover the left halo, the owned range and
// the right halo. Position, mass, smoothing length and divv are
// refreshed by the domain each step; acceleration and potential are
// per-step scratch.
type Set struct {
	X, Y, Z []float64
	M       []float64
	H       []float64
	Divv    []float64

	Ax, Ay, Az []float64
	Pot        []float64
}

func NewSet(n int) *Set {
	s := &Set{}
	s.Resize(n)
	return s
}

func (s *Set) Len() int { return len(s.X) }

// Resize grows or shrinks every field to n, reusing capacity.
func (s *Set) Resize(n int) {
	fields := []*[]float64{&s.X, &s.Y, &s.Z, &s.M, &s.H, &s.Divv, &s.Ax, &s.Ay, &s.Az, &s.Pot}
	for _, f := range fields {
		if cap(*f) < n {
			next := make([]float64, n)
			copy(next, *f)
			*f = next
		} else {
			*f = (*f)[:n]
		}
	}
}

// Fill sets field[first:last) to v.
func Fill(field []float64, first, last int, v float64) {
	for i := first; i < last; i++ {
		field[i] = v
	}
}

// ZeroScratch clears the accumulated acceleration and potential over
// the owned range [first, last).
func (s *Set) ZeroScratch(first, last int) {
	Fill(s.Ax, first, last, 0)
	Fill(s.Ay, first, last, 0)
	Fill(s.Az, first, last, 0)
	Fill(s.Pot, first, last, 0)
}

// SentinelMassFill gives halo slots outside the owned range [first,
// last) the mass of the first owned particle, so that degenerate or
// stale halo entries cannot corrupt the tree aggregates.
func (s *Set) SentinelMassFill(first, last int) {
	if first >= last {
		return
	}
	m := s.M[first]
	Fill(s.M, 0, first, m)
	Fill(s.M, last, s.Len(), m)
}

// Valid reports whether the owned acceleration and potential range is
// free of NaN/Inf. A false result means the tree or traversal produced
// a malformed value and the step must be treated as fatal.
func (s *Set) Valid(first, last int) bool {
	for i := first; i < last; i++ {
		if math.IsNaN(s.Ax[i]) || math.IsInf(s.Ax[i], 0) ||
			math.IsNaN(s.Ay[i]) || math.IsInf(s.Ay[i], 0) ||
			math.IsNaN(s.Az[i]) || math.IsInf(s.Az[i], 0) ||
			math.IsNaN(s.Pot[i]) || math.IsInf(s.Pot[i], 0) {
			return false
		}
	}
	return true
}
