package gravity

// Stats counts the interactions of one traversal. Totals accumulate
// over the whole partition; the maxima track the busiest group.
// Counters are diagnostic-only: overflow wraps silently and never
// affects forces.
type Stats struct {
	NumP2P uint64
	MaxP2P uint64
	NumM2P uint64
	MaxM2P uint64
}

// Merge folds another partial count into s.
func (s *Stats) Merge(o Stats) {
	s.NumP2P += o.NumP2P
	s.NumM2P += o.NumM2P
	if o.MaxP2P > s.MaxP2P {
		s.MaxP2P = o.MaxP2P
	}
	if o.MaxM2P > s.MaxM2P {
		s.MaxM2P = o.MaxM2P
	}
}
