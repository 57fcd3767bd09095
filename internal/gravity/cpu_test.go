package gravity

import (
	"math"
	"math/rand"
	"testing"

	"github.com/san-kum/gravlab/internal/domain"
	"github.com/san-kum/gravlab/internal/particles"
)

// testDomain is a single-partition domain over an already-local set.
type testDomain struct {
	n         int
	groupSize int
}

func (d *testDomain) NParticlesWithHalos() int         { return d.n }
func (d *testDomain) StartIndex() int                  { return 0 }
func (d *testDomain) EndIndex() int                    { return d.n }
func (d *testDomain) SyncGrav(ps *particles.Set) error { return nil }
func (d *testDomain) Groups() domain.GroupView {
	return domain.SplitGroups(0, d.n, d.groupSize)
}

func randomSet(n int, seed int64) *particles.Set {
	rng := rand.New(rand.NewSource(seed))
	ps := particles.NewSet(n)
	for i := 0; i < n; i++ {
		ps.X[i] = rng.Float64()
		ps.Y[i] = rng.Float64()
		ps.Z[i] = rng.Float64()
		ps.M[i] = 0.5 + rng.Float64()
		ps.H[i] = 0.05
	}
	return ps
}

func bruteForce(ps *particles.Set, g, eps float64) (ax, ay, az []float64) {
	n := ps.Len()
	ax = make([]float64, n)
	ay = make([]float64, n)
	az = make([]float64, n)
	eps2 := eps * eps
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			dx := ps.X[j] - ps.X[i]
			dy := ps.Y[j] - ps.Y[i]
			dz := ps.Z[j] - ps.Z[i]
			r2 := dx*dx + dy*dy + dz*dz + eps2
			rInv := 1.0 / math.Sqrt(r2)
			f := g * ps.M[j] * rInv * rInv * rInv
			ax[i] += f * dx
			ay[i] += f * dy
			az[i] += f * dz
		}
	}
	return
}

// With theta = 0 every node is opened, so the traversal degenerates
// to pure P2P and must match the O(N^2) sum to round-off.
func TestFullyOpenedTraversalMatchesBruteForce(t *testing.T) {
	const n = 100
	ps := randomSet(n, 42)
	dom := &testDomain{n: n, groupSize: 16}
	cfg := Config{G: 1, Theta: 0, Eps: 0.01}

	b := NewCPU(cfg)
	b.Upsweep(ps, dom)
	b.Traverse(ps, dom)

	wantAx, wantAy, wantAz := bruteForce(ps, cfg.G, cfg.Eps)
	for i := 0; i < n; i++ {
		tol := 1e-8 * (1 + math.Abs(wantAx[i]) + math.Abs(wantAy[i]) + math.Abs(wantAz[i]))
		if math.Abs(ps.Ax[i]-wantAx[i]) > tol ||
			math.Abs(ps.Ay[i]-wantAy[i]) > tol ||
			math.Abs(ps.Az[i]-wantAz[i]) > tol {
			t.Fatalf("particle %d: got (%g,%g,%g) want (%g,%g,%g)",
				i, ps.Ax[i], ps.Ay[i], ps.Az[i], wantAx[i], wantAy[i], wantAz[i])
		}
	}

	st := b.ReadStats()
	if st.NumP2P != uint64(n*(n-1)) {
		t.Fatalf("expected %d P2P interactions, got %d", n*(n-1), st.NumP2P)
	}
	if st.NumM2P != 0 {
		t.Fatalf("expected no M2P interactions, got %d", st.NumM2P)
	}
}

// The quadrupole-corrected far field at a working opening angle stays
// within a small relative error of brute force.
func TestTraversalAccuracyAtWorkingTheta(t *testing.T) {
	const n = 500
	ps := randomSet(n, 9)
	dom := &testDomain{n: n, groupSize: 32}
	cfg := Config{G: 1, Theta: 0.5, Eps: 0.01}

	b := NewCPU(cfg)
	b.Upsweep(ps, dom)
	b.Traverse(ps, dom)

	wantAx, wantAy, wantAz := bruteForce(ps, cfg.G, cfg.Eps)
	var errSum, refSum float64
	for i := 0; i < n; i++ {
		ex := ps.Ax[i] - wantAx[i]
		ey := ps.Ay[i] - wantAy[i]
		ez := ps.Az[i] - wantAz[i]
		errSum += ex*ex + ey*ey + ez*ez
		refSum += wantAx[i]*wantAx[i] + wantAy[i]*wantAy[i] + wantAz[i]*wantAz[i]
	}
	relErr := math.Sqrt(errSum / refSum)
	if relErr > 1e-2 {
		t.Fatalf("relative force error %g too large for theta=0.5", relErr)
	}

	st := b.ReadStats()
	if st.NumM2P == 0 {
		t.Fatal("expected far-field interactions at theta=0.5")
	}
	if st.MaxP2P == 0 || st.MaxP2P > st.NumP2P {
		t.Fatalf("implausible stats: %+v", st)
	}
}

// Potential energy from the traversal matches the pairwise sum.
func TestPotentialEnergy(t *testing.T) {
	const n = 80
	ps := randomSet(n, 5)
	dom := &testDomain{n: n, groupSize: 8}
	cfg := Config{G: 1, Theta: 0, Eps: 0.01}

	b := NewCPU(cfg)
	b.Upsweep(ps, dom)
	egrav := b.Traverse(ps, dom)

	want := 0.0
	eps2 := cfg.Eps * cfg.Eps
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := ps.X[j] - ps.X[i]
			dy := ps.Y[j] - ps.Y[i]
			dz := ps.Z[j] - ps.Z[i]
			want -= ps.M[i] * ps.M[j] / math.Sqrt(dx*dx+dy*dy+dz*dz+eps2)
		}
	}
	if math.Abs(egrav-want) > 1e-9*math.Abs(want) {
		t.Fatalf("egrav %g, want %g", egrav, want)
	}
}

func TestTraverseEmptyGroups(t *testing.T) {
	ps := randomSet(10, 1)
	dom := &testDomain{n: 0, groupSize: 8}
	b := NewCPU(Config{G: 1, Theta: 0.5, Eps: 0.01})
	b.Upsweep(particles.NewSet(0), dom)
	if egrav := b.Traverse(ps, dom); egrav != 0 {
		t.Fatalf("expected zero energy for empty partition, got %g", egrav)
	}
}
