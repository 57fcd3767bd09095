// Package comm provides synchronous collective reductions across the
// fixed set of compute partitions that make up one run. Partitions
// live in the same process, one goroutine each; the collectives block
// until every partition has issued the matching call. There is no
// timeout: a partition that stops calling stalls the whole run, and a
// mismatched call count deadlocks it. That is the fail-stop model, not
// a bug to defend against here. Abort is the one escape hatch: it
// releases every blocked partition so a failed run can unwind instead
// of hanging.
package comm

import "sync"

// World is the communicator shared by all partitions of a run. The
// partition count is fixed at creation.
type World struct {
	size int

	mu      sync.Mutex
	cond    *sync.Cond
	arrived int
	leaving bool
	aborted bool
	acc     []float64
	out     []float64
	accU64  []uint64
	outU64  []uint64
}

func NewWorld(size int) *World {
	if size < 1 {
		size = 1
	}
	w := &World{size: size}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *World) Size() int { return w.size }

// Abort marks the world dead and wakes every partition blocked in a
// collective. Collectives on an aborted world return the caller's own
// values immediately; the results are only good enough to unwind with.
// The world cannot be reused afterwards.
func (w *World) Abort() {
	w.mu.Lock()
	w.aborted = true
	w.cond.Broadcast()
	w.mu.Unlock()
}

func (w *World) Aborted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.aborted
}

// Comm returns the per-partition handle for the given rank.
func (w *World) Comm(rank int) *Comm {
	return &Comm{world: w, rank: rank}
}

type Comm struct {
	world *World
	rank  int
}

func (c *Comm) Rank() int { return c.rank }
func (c *Comm) Size() int { return c.world.size }

// allreduce combines vals elementwise across all partitions with op
// and returns the combined vector to every caller. Implemented as a
// two-turnstile barrier so the world can be reused round after round.
func (w *World) allreduce(vals []float64, op func(a, b float64) float64) []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	for w.leaving && !w.aborted {
		w.cond.Wait()
	}
	if w.aborted {
		return append([]float64(nil), vals...)
	}

	if w.arrived == 0 {
		w.acc = append(w.acc[:0], vals...)
	} else {
		for i, v := range vals {
			w.acc[i] = op(w.acc[i], v)
		}
	}
	w.arrived++

	if w.arrived == w.size {
		w.out = append(w.out[:0], w.acc...)
		w.leaving = true
		w.cond.Broadcast()
	} else {
		for !w.leaving && !w.aborted {
			w.cond.Wait()
		}
		if w.aborted {
			return append([]float64(nil), vals...)
		}
	}

	res := make([]float64, len(w.out))
	copy(res, w.out)

	w.arrived--
	if w.arrived == 0 {
		w.leaving = false
		w.cond.Broadcast()
	}
	return res
}

// allreduceU64 is the counter-sized twin of allreduce; uint64 values
// stay exact where a float64 detour would round above 2^53.
func (w *World) allreduceU64(vals []uint64, op func(a, b uint64) uint64) []uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	for w.leaving && !w.aborted {
		w.cond.Wait()
	}
	if w.aborted {
		return append([]uint64(nil), vals...)
	}

	if w.arrived == 0 {
		w.accU64 = append(w.accU64[:0], vals...)
	} else {
		for i, v := range vals {
			w.accU64[i] = op(w.accU64[i], v)
		}
	}
	w.arrived++

	if w.arrived == w.size {
		w.outU64 = append(w.outU64[:0], w.accU64...)
		w.leaving = true
		w.cond.Broadcast()
	} else {
		for !w.leaving && !w.aborted {
			w.cond.Wait()
		}
		if w.aborted {
			return append([]uint64(nil), vals...)
		}
	}

	res := make([]uint64, len(w.outU64))
	copy(res, w.outU64)

	w.arrived--
	if w.arrived == 0 {
		w.leaving = false
		w.cond.Broadcast()
	}
	return res
}

func opSum(a, b float64) float64 { return a + b }

func opMin(a, b float64) float64 {
	if b < a {
		return b
	}
	return a
}

func opMaxU64(a, b uint64) uint64 {
	if b > a {
		return b
	}
	return a
}

// Barrier blocks until every partition has reached it.
func (c *Comm) Barrier() {
	c.world.allreduce(nil, opSum)
}

// AllreduceMin returns the elementwise minimum of vals across all
// partitions, to every partition.
func (c *Comm) AllreduceMin(vals []float64) []float64 {
	return c.world.allreduce(vals, opMin)
}

// ReduceSum combines x by summation. The result is meaningful at the
// root partition; other partitions receive zero.
func (c *Comm) ReduceSum(x float64, root int) float64 {
	sum := c.world.allreduce([]float64{x}, opSum)[0]
	if c.rank != root {
		return 0
	}
	return sum
}

// ReduceMax combines x by maximum, delivered to the root partition.
func (c *Comm) ReduceMax(x uint64, root int) uint64 {
	m := c.world.allreduceU64([]uint64{x}, opMaxU64)[0]
	if c.rank != root {
		return 0
	}
	return m
}
