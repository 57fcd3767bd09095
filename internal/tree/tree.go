// Package tree builds the hierarchical multipole structure used by
// the gravity traversal. The tree is a flat arena of index-linked
// node records, rebuilt from scratch every step from the current
// particle snapshot; node ranges refer to a permutation of particle
// indices so that every node covers a contiguous slice and children
// exactly partition their parent.
package tree

import (
	"math/rand"

	"github.com/san-kum/gravlab/internal/particles"
)

// LeafCap is the largest particle count a leaf may cover.
const LeafCap = 8

// Node is one multipole record. Left/Right are arena indices, -1 on
// leaves. Q is the traceless Cartesian quadrupole about the center of
// mass, stored as xx, xy, xz, yy, yz, zz.
type Node struct {
	Start, End  int
	Left, Right int
	Size        float64

	Mass          float64
	CMX, CMY, CMZ float64
	Q             [6]float64
}

func (n *Node) IsLeaf() bool { return n.Left < 0 }

type Tree struct {
	Nodes []Node
	// Order is the particle index permutation node ranges refer to.
	Order []int

	rng *rand.Rand
}

func New() *Tree {
	return &Tree{rng: rand.New(rand.NewSource(1))}
}

func (t *Tree) Root() int { return 0 }

// Build constructs the node hierarchy over particles [0, n) bottom-up.
// Leaves aggregate their covered particles directly; every internal
// node combines the moments of its two children and never rescans raw
// particles. Zero-mass aggregates are not repaired here: they yield
// NaN centers that propagate into accelerations, where the
// orchestrator treats them as fatal.
func (t *Tree) Build(ps *particles.Set, n int) {
	t.Nodes = t.Nodes[:0]
	if cap(t.Order) < n {
		t.Order = make([]int, n)
	}
	t.Order = t.Order[:n]
	for i := range t.Order {
		t.Order[i] = i
	}

	if n == 0 {
		t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1})
		return
	}
	t.build(ps, 0, n, 0)
}

func (t *Tree) node(i int) *Node {
	for i >= len(t.Nodes) {
		t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1})
	}
	return &t.Nodes[i]
}

// build fills node cur covering Order[start:end) and returns the
// index of the last arena slot used by its subtree.
func (t *Tree) build(ps *particles.Set, start, end, cur int) int {
	np := end - start
	if np <= LeafCap {
		nd := t.node(cur)
		*nd = Node{Start: start, End: end, Left: -1, Right: -1}
		t.aggregateLeaf(ps, nd)
		return cur
	}

	splitDim, size := t.spread(ps, start, end)

	mid := (start + end) / 2
	t.quickSelect(ps, start, end-1, mid, splitDim)

	left := t.build(ps, start, mid, cur+1)
	right := t.build(ps, mid, end, left+1)

	nd := t.node(cur)
	*nd = Node{
		Start: start,
		End:   end,
		Left:  cur + 1,
		Right: left + 1,
		Size:  size,
	}
	t.combine(nd)
	return right
}

// spread returns the widest coordinate dimension over the covered
// range and its extent.
func (t *Tree) spread(ps *particles.Set, start, end int) (int, float64) {
	lo := [3]float64{ps.X[t.Order[start]], ps.Y[t.Order[start]], ps.Z[t.Order[start]]}
	hi := lo
	for i := start + 1; i < end; i++ {
		j := t.Order[i]
		p := [3]float64{ps.X[j], ps.Y[j], ps.Z[j]}
		for d := 0; d < 3; d++ {
			if p[d] < lo[d] {
				lo[d] = p[d]
			}
			if p[d] > hi[d] {
				hi[d] = p[d]
			}
		}
	}
	dim, max := 0, hi[0]-lo[0]
	for d := 1; d < 3; d++ {
		if hi[d]-lo[d] > max {
			dim, max = d, hi[d]-lo[d]
		}
	}
	return dim, max
}

func (t *Tree) coord(ps *particles.Set, i, dim int) float64 {
	switch dim {
	case 0:
		return ps.X[t.Order[i]]
	case 1:
		return ps.Y[t.Order[i]]
	default:
		return ps.Z[t.Order[i]]
	}
}

// quickSelect places the k-th smallest coordinate along dim at
// position k of Order, partitioning the range around it.
func (t *Tree) quickSelect(ps *particles.Set, left, right, k, dim int) {
	for left < right {
		pivot := left + t.rng.Intn(right-left+1)
		pivot = t.partition(ps, left, right, pivot, dim)
		if k == pivot {
			return
		} else if k < pivot {
			right = pivot - 1
		} else {
			left = pivot + 1
		}
	}
}

func (t *Tree) partition(ps *particles.Set, left, right, pivot, dim int) int {
	pv := t.coord(ps, pivot, dim)
	t.Order[pivot], t.Order[right] = t.Order[right], t.Order[pivot]
	store := left
	for i := left; i < right; i++ {
		if t.coord(ps, i, dim) < pv {
			t.Order[store], t.Order[i] = t.Order[i], t.Order[store]
			store++
		}
	}
	t.Order[right], t.Order[store] = t.Order[store], t.Order[right]
	return store
}

// aggregateLeaf computes mass, center of mass and quadrupole of a
// leaf directly from its covered particles.
func (t *Tree) aggregateLeaf(ps *particles.Set, nd *Node) {
	var m, cx, cy, cz float64
	lo := [3]float64{}
	hi := [3]float64{}
	for i := nd.Start; i < nd.End; i++ {
		j := t.Order[i]
		m += ps.M[j]
		cx += ps.M[j] * ps.X[j]
		cy += ps.M[j] * ps.Y[j]
		cz += ps.M[j] * ps.Z[j]
		p := [3]float64{ps.X[j], ps.Y[j], ps.Z[j]}
		if i == nd.Start {
			lo, hi = p, p
			continue
		}
		for d := 0; d < 3; d++ {
			if p[d] < lo[d] {
				lo[d] = p[d]
			}
			if p[d] > hi[d] {
				hi[d] = p[d]
			}
		}
	}
	nd.Mass = m
	nd.CMX, nd.CMY, nd.CMZ = cx/m, cy/m, cz/m

	nd.Size = hi[0] - lo[0]
	for d := 1; d < 3; d++ {
		if hi[d]-lo[d] > nd.Size {
			nd.Size = hi[d] - lo[d]
		}
	}

	var q [6]float64
	for i := nd.Start; i < nd.End; i++ {
		j := t.Order[i]
		addPointQuadrupole(&q, ps.M[j], ps.X[j]-nd.CMX, ps.Y[j]-nd.CMY, ps.Z[j]-nd.CMZ)
	}
	nd.Q = q
}

// combine folds both children's moments into nd (M2M). The
// quadrupole shift uses the parallel-axis form of the traceless
// Cartesian quadrupole.
func (t *Tree) combine(nd *Node) {
	l := &t.Nodes[nd.Left]
	r := &t.Nodes[nd.Right]

	nd.Mass = l.Mass + r.Mass
	nd.CMX = (l.Mass*l.CMX + r.Mass*r.CMX) / nd.Mass
	nd.CMY = (l.Mass*l.CMY + r.Mass*r.CMY) / nd.Mass
	nd.CMZ = (l.Mass*l.CMZ + r.Mass*r.CMZ) / nd.Mass

	var q [6]float64
	for _, c := range []*Node{l, r} {
		for k := 0; k < 6; k++ {
			q[k] += c.Q[k]
		}
		addPointQuadrupole(&q, c.Mass, c.CMX-nd.CMX, c.CMY-nd.CMY, c.CMZ-nd.CMZ)
	}
	nd.Q = q
}

// addPointQuadrupole accumulates m*(3 y_a y_b - |y|^2 delta_ab) into q.
func addPointQuadrupole(q *[6]float64, m, dx, dy, dz float64) {
	r2 := dx*dx + dy*dy + dz*dz
	q[0] += m * (3*dx*dx - r2)
	q[1] += m * 3 * dx * dy
	q[2] += m * 3 * dx * dz
	q[3] += m * (3*dy*dy - r2)
	q[4] += m * 3 * dy * dz
	q[5] += m * (3*dz*dz - r2)
}
