package comm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReduceSumDeliversTotalToRoot(t *testing.T) {
	for _, size := range []int{1, 2, 3, 7} {
		w := NewWorld(size)

		results := make([]float64, size)
		var wg sync.WaitGroup
		want := 0.0
		for rank := 0; rank < size; rank++ {
			want += float64(rank + 1)
		}

		for rank := 0; rank < size; rank++ {
			wg.Add(1)
			go func(rank int) {
				defer wg.Done()
				c := w.Comm(rank)
				results[rank] = c.ReduceSum(float64(rank+1), 0)
			}(rank)
		}
		wg.Wait()

		assert.Equal(t, want, results[0], "size %d", size)
		for rank := 1; rank < size; rank++ {
			assert.Zero(t, results[rank])
		}
	}
}

func TestAllreduceMinVector(t *testing.T) {
	contrib := [][]float64{
		{1, 4},
		{1, 8},
		{2, 2},
	}
	w := NewWorld(3)

	results := make([][]float64, 3)
	var wg sync.WaitGroup
	for rank := 0; rank < 3; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			results[rank] = w.Comm(rank).AllreduceMin(contrib[rank])
		}(rank)
	}
	wg.Wait()

	for rank := 0; rank < 3; rank++ {
		assert.Equal(t, []float64{1, 2}, results[rank])
	}
}

func TestReduceMax(t *testing.T) {
	w := NewWorld(4)
	vals := []uint64{12, 99, 7, 42}

	results := make([]uint64, 4)
	var wg sync.WaitGroup
	for rank := 0; rank < 4; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			results[rank] = w.Comm(rank).ReduceMax(vals[rank], 0)
		}(rank)
	}
	wg.Wait()

	assert.Equal(t, uint64(99), results[0])
}

func TestReduceMaxExactAboveFloatRange(t *testing.T) {
	// counters above 2^53 must survive the reduction bit-exact
	w := NewWorld(2)
	vals := []uint64{1<<60 + 1, 1 << 60}

	results := make([]uint64, 2)
	var wg sync.WaitGroup
	for rank := 0; rank < 2; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			results[rank] = w.Comm(rank).ReduceMax(vals[rank], 0)
		}(rank)
	}
	wg.Wait()

	assert.Equal(t, uint64(1<<60+1), results[0])
}

// A partition that dies before its collective call must not strand the
// survivors: Abort wakes everyone blocked in a collective, and later
// calls return immediately.
func TestAbortReleasesBlockedCollectives(t *testing.T) {
	w := NewWorld(2)

	released := make(chan []float64, 1)
	go func() {
		released <- w.Comm(0).AllreduceMin([]float64{3, 4})
	}()

	// rank 1 never joins; tear the world down instead
	time.Sleep(10 * time.Millisecond)
	w.Abort()

	select {
	case res := <-released:
		// the survivor gets its own contribution back, just to unwind
		assert.Equal(t, []float64{3, 4}, res)
	case <-time.After(5 * time.Second):
		t.Fatal("collective still blocked after abort")
	}

	assert.True(t, w.Aborted())
	done := make(chan struct{})
	go func() {
		w.Comm(1).Barrier()
		w.Comm(1).ReduceMax(7, 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("collectives on an aborted world must not block")
	}
}

func TestCollectivesReusableAcrossRounds(t *testing.T) {
	const size = 3
	const rounds = 50
	w := NewWorld(size)

	sums := make([][]float64, size)
	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			c := w.Comm(rank)
			for r := 0; r < rounds; r++ {
				c.Barrier()
				s := c.ReduceSum(float64(r), 0)
				if rank == 0 {
					sums[rank] = append(sums[rank], s)
				}
				c.Barrier()
			}
		}(rank)
	}
	wg.Wait()

	assert.Len(t, sums[0], rounds)
	for r := 0; r < rounds; r++ {
		assert.Equal(t, float64(r*size), sums[0][r])
	}
}
