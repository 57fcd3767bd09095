//go:build cuda

package gravity

/*
#cgo CFLAGS: -I/opt/cuda/include
#cgo LDFLAGS: -L/opt/cuda/lib64 -L${SRCDIR} -lcudart -lgravkernels -lstdc++
#include <stdlib.h>

extern int cuda_device_count();
extern void grav_upsweep(float* x, float* y, float* z, float* m, int n);
extern void grav_traverse(float* ax, float* ay, float* az, float* pot,
                          int first, int last, float g, float theta, float eps,
                          unsigned long long* stats, float* egrav);
*/
import "C"
import (
	"unsafe"

	"github.com/san-kum/gravlab/internal/domain"
	"github.com/san-kum/gravlab/internal/particles"
)

// CUDA offloads upsweep and traversal to the device. The tree lives
// in device memory between the two calls; host particle scratch is
// read back after traversal.
type CUDA struct {
	cfg       Config
	available bool
	stats     Stats

	x, y, z, m      []C.float
	ax, ay, az, pot []C.float
	devStats        [4]C.ulonglong
}

func NewCUDA(cfg Config) *CUDA {
	return &CUDA{cfg: cfg, available: int(C.cuda_device_count()) > 0}
}

func (b *CUDA) Name() string                 { return "cuda" }
func (b *CUDA) Available() bool              { return b.available }
func (b *CUDA) SupportsGroupTimesteps() bool { return true }
func (b *CUDA) Cleanup()                     {}

func (b *CUDA) Upsweep(ps *particles.Set, dom domain.Domain) {
	n := dom.NParticlesWithHalos()
	b.x = fill32(b.x, ps.X[:n])
	b.y = fill32(b.y, ps.Y[:n])
	b.z = fill32(b.z, ps.Z[:n])
	b.m = fill32(b.m, ps.M[:n])
	C.grav_upsweep(&b.x[0], &b.y[0], &b.z[0], &b.m[0], C.int(n))
	b.stats = Stats{}
}

func (b *CUDA) Traverse(ps *particles.Set, dom domain.Domain) float64 {
	n := dom.NParticlesWithHalos()
	first, last := dom.StartIndex(), dom.EndIndex()
	b.ax = grow32(b.ax, n)
	b.ay = grow32(b.ay, n)
	b.az = grow32(b.az, n)
	b.pot = grow32(b.pot, n)

	var egrav C.float
	C.grav_traverse(&b.ax[0], &b.ay[0], &b.az[0], &b.pot[0],
		C.int(first), C.int(last),
		C.float(b.cfg.G), C.float(b.cfg.Theta), C.float(b.cfg.Eps),
		(*C.ulonglong)(unsafe.Pointer(&b.devStats[0])), &egrav)

	for i := first; i < last; i++ {
		ps.Ax[i] += float64(b.ax[i])
		ps.Ay[i] += float64(b.ay[i])
		ps.Az[i] += float64(b.az[i])
		ps.Pot[i] += float64(b.pot[i])
	}
	b.stats = Stats{
		NumP2P: uint64(b.devStats[0]),
		MaxP2P: uint64(b.devStats[1]),
		NumM2P: uint64(b.devStats[2]),
		MaxM2P: uint64(b.devStats[3]),
	}
	return float64(egrav)
}

func (b *CUDA) ReadStats() Stats { return b.stats }

func fill32(dst []C.float, src []float64) []C.float {
	dst = grow32(dst, len(src))
	for i, v := range src {
		dst[i] = C.float(v)
	}
	return dst
}

func grow32(dst []C.float, n int) []C.float {
	if cap(dst) < n {
		return make([]C.float, n)
	}
	return dst[:n]
}
