package step

import "time"

// Phase is one named slice of a step's wall time.
type Phase struct {
	Name    string
	Elapsed time.Duration
}

// PhaseTimer records per-phase durations within one step. Callers
// barrier before Step() so a phase reflects the slowest partition,
// not a straggler's local clock.
type PhaseTimer struct {
	last   time.Time
	phases []Phase
}

func (t *PhaseTimer) Start() {
	t.phases = t.phases[:0]
	t.last = time.Now()
}

func (t *PhaseTimer) Step(name string) {
	now := time.Now()
	t.phases = append(t.phases, Phase{Name: name, Elapsed: now.Sub(t.last)})
	t.last = now
}

func (t *PhaseTimer) Phases() []Phase { return t.phases }

func (t *PhaseTimer) Total() time.Duration {
	var sum time.Duration
	for _, p := range t.phases {
		sum += p.Elapsed
	}
	return sum
}
