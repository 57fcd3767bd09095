package rung

import (
	"math"

	"github.com/san-kum/gravlab/internal/domain"
)

// GroupDivvTimestep applies the divergence-limited criterion to each
// group: dt = krho / max|divv| over the group's particles, folded by
// minimum into groupDt. krho is the kernel-dependent coefficient.
func GroupDivvTimestep(krho float64, grp domain.GroupView, divv []float64, groupDt []float64) {
	for g := 0; g < grp.NumGroups(); g++ {
		lo, hi := grp.Bounds(g)
		maxAbs := 0.0
		for i := lo; i < hi; i++ {
			if a := math.Abs(divv[i]); a > maxAbs {
				maxAbs = a
			}
		}
		if maxAbs > 0 {
			if dt := krho / maxAbs; dt < groupDt[g] {
				groupDt[g] = dt
			}
		}
	}
}

// GroupAccTimestep applies the acceleration-limited criterion:
// dt = coeff / sqrt(|a|) with coeff = etaAcc * sqrt(eps), folded by
// minimum into groupDt.
func GroupAccTimestep(coeff float64, grp domain.GroupView, ax, ay, az []float64, groupDt []float64) {
	for g := 0; g < grp.NumGroups(); g++ {
		lo, hi := grp.Bounds(g)
		maxA2 := 0.0
		for i := lo; i < hi; i++ {
			a2 := ax[i]*ax[i] + ay[i]*ay[i] + az[i]*az[i]
			if a2 > maxA2 {
				maxA2 = a2
			}
		}
		if maxA2 > 0 {
			if dt := coeff / math.Sqrt(math.Sqrt(maxA2)); dt < groupDt[g] {
				groupDt[g] = dt
			}
		}
	}
}
