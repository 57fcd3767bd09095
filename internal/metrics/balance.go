package metrics

import "github.com/san-kum/gravlab/internal/step"

// LoadImbalance measures how far the heaviest partition's pairwise
// work sits above the mean. 0 means perfectly even; the reported
// value is the average over steps of max/mean - 1, using the global
// per-particle maximum as the proxy for the heaviest partition.
type LoadImbalance struct {
	name    string
	total   float64
	samples int
}

func NewLoadImbalance() *LoadImbalance {
	return &LoadImbalance{name: "load_imbalance"}
}

func (l *LoadImbalance) Name() string { return l.name }

func (l *LoadImbalance) Observe(rep *step.Report) {
	if rep.NumOwned == 0 || rep.Stats.NumP2P == 0 {
		return
	}
	mean := float64(rep.Stats.NumP2P) / float64(rep.NumOwned)
	if mean == 0 {
		return
	}
	l.total += float64(rep.MaxP2PGlobal)/mean - 1
	l.samples++
}

func (l *LoadImbalance) Value() float64 {
	if l.samples == 0 {
		return 0
	}
	return l.total / float64(l.samples)
}

func (l *LoadImbalance) Reset() {
	l.total = 0
	l.samples = 0
}
