package gravity

import (
	"math"
	"runtime"

	"github.com/dgravesa/go-parallel/parallel"
	"github.com/san-kum/gravlab/internal/domain"
	"github.com/san-kum/gravlab/internal/particles"
	"github.com/san-kum/gravlab/internal/tree"
)

// CPU is the multi-threaded host backend. The traversal sweeps the
// groups in parallel; lanes write to disjoint particle slots, so the
// only shared state is the per-goroutine stat and energy partials
// merged at the end.
type CPU struct {
	cfg     Config
	workers int

	tree  *tree.Tree
	stats Stats

	statParts  []Stats
	egravParts []float64
	stacks     [][]int
}

func NewCPU(cfg Config) *CPU {
	w := runtime.NumCPU()
	return &CPU{
		cfg:        cfg,
		workers:    w,
		tree:       tree.New(),
		statParts:  make([]Stats, w),
		egravParts: make([]float64, w),
		stacks:     make([][]int, w),
	}
}

func (b *CPU) Name() string                 { return "cpu" }
func (b *CPU) Available() bool              { return true }
func (b *CPU) SupportsGroupTimesteps() bool { return true }
func (b *CPU) Cleanup()                     {}

// Upsweep rebuilds the multipole tree over the full local buffer,
// halos included. The caller must have applied the sentinel mass
// fill first; upsweep itself does no communication.
func (b *CPU) Upsweep(ps *particles.Set, dom domain.Domain) {
	b.tree.Build(ps, dom.NParticlesWithHalos())
	b.stats = Stats{}
}

// Traverse walks the tree once per owned particle, group by group,
// and accumulates acceleration and potential into the particle
// scratch fields. Returns the local potential-energy sum.
func (b *CPU) Traverse(ps *particles.Set, dom domain.Domain) float64 {
	grp := dom.Groups()
	ng := grp.NumGroups()
	if ng == 0 {
		return 0
	}

	for w := 0; w < b.workers; w++ {
		b.statParts[w] = Stats{}
		b.egravParts[w] = 0
	}

	parallel.WithNumGoroutines(b.workers).For(ng, func(g, grID int) {
		lo, hi := grp.Bounds(g)
		var p2p, m2p uint64
		for i := lo; i < hi; i++ {
			np, nm := b.walk(ps, i, grID)
			p2p += np
			m2p += nm
			b.egravParts[grID] += 0.5 * ps.M[i] * ps.Pot[i]
		}
		st := &b.statParts[grID]
		st.NumP2P += p2p
		st.NumM2P += m2p
		if p2p > st.MaxP2P {
			st.MaxP2P = p2p
		}
		if m2p > st.MaxM2P {
			st.MaxM2P = m2p
		}
	})

	egrav := 0.0
	for w := 0; w < b.workers; w++ {
		b.stats.Merge(b.statParts[w])
		egrav += b.egravParts[w]
	}
	return egrav
}

func (b *CPU) ReadStats() Stats { return b.stats }

// walk evaluates all forces on particle i with an explicit stack,
// applying the opening criterion at every internal node. Returns the
// P2P and M2P interaction counts for this particle.
func (b *CPU) walk(ps *particles.Set, i, grID int) (uint64, uint64) {
	t := b.tree
	theta2 := b.cfg.Theta * b.cfg.Theta
	eps2 := b.cfg.Eps * b.cfg.Eps
	xi, yi, zi := ps.X[i], ps.Y[i], ps.Z[i]

	var ax, ay, az, pot float64
	var p2p, m2p uint64

	stack := b.stacks[grID]
	if cap(stack) < 64 {
		stack = make([]int, 0, 64)
	}
	stack = append(stack[:0], t.Root())

	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nd := &t.Nodes[ni]

		if nd.IsLeaf() {
			for k := nd.Start; k < nd.End; k++ {
				j := t.Order[k]
				if j == i {
					continue
				}
				dx := ps.X[j] - xi
				dy := ps.Y[j] - yi
				dz := ps.Z[j] - zi
				r2 := dx*dx + dy*dy + dz*dz + eps2
				rInv := 1.0 / math.Sqrt(r2)
				r3Inv := rInv * rInv * rInv

				f := b.cfg.G * ps.M[j] * r3Inv
				ax += f * dx
				ay += f * dy
				az += f * dz
				pot -= b.cfg.G * ps.M[j] * rInv
				p2p++
			}
			continue
		}

		dx := xi - nd.CMX
		dy := yi - nd.CMY
		dz := zi - nd.CMZ
		d2 := dx*dx + dy*dy + dz*dz + eps2

		if nd.Size*nd.Size < theta2*d2 {
			gx, gy, gz, phi := m2pKernel(nd, dx, dy, dz, d2, b.cfg.G)
			ax += gx
			ay += gy
			az += gz
			pot += phi
			m2p++
			continue
		}

		stack = append(stack, nd.Right, nd.Left)
	}
	b.stacks[grID] = stack

	ps.Ax[i] += ax
	ps.Ay[i] += ay
	ps.Az[i] += az
	ps.Pot[i] += pot
	return p2p, m2p
}

// m2pKernel evaluates the far-field acceleration and potential of a
// node at offset d = particle - com, monopole plus traceless
// quadrupole correction.
func m2pKernel(nd *tree.Node, dx, dy, dz, d2, g float64) (float64, float64, float64, float64) {
	rInv := 1.0 / math.Sqrt(d2)
	r2Inv := rInv * rInv
	r3Inv := r2Inv * rInv
	r5Inv := r3Inv * r2Inv
	r7Inv := r5Inv * r2Inv

	// monopole
	gm := -g * nd.Mass * r3Inv
	gx := gm * dx
	gy := gm * dy
	gz := gm * dz
	phi := -g * nd.Mass * rInv

	// quadrupole
	q := &nd.Q
	qdx := q[0]*dx + q[1]*dy + q[2]*dz
	qdy := q[1]*dx + q[3]*dy + q[4]*dz
	qdz := q[2]*dx + q[4]*dy + q[5]*dz
	dqd := dx*qdx + dy*qdy + dz*qdz

	gx += g * (qdx*r5Inv - 2.5*dqd*dx*r7Inv)
	gy += g * (qdy*r5Inv - 2.5*dqd*dy*r7Inv)
	gz += g * (qdz*r5Inv - 2.5*dqd*dz*r7Inv)
	phi -= 0.5 * g * dqd * r5Inv

	return gx, gy, gz, phi
}
