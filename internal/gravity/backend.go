// Package gravity evaluates gravitational forces by mixed
// near-field/far-field traversal of the multipole tree. The
// evaluation strategy is a Backend chosen once at startup; both
// strategies expose the same upsweep/traverse/readStats contract.
package gravity

import (
	"github.com/san-kum/gravlab/internal/domain"
	"github.com/san-kum/gravlab/internal/particles"
)

// Config carries the force-law parameters shared by all backends.
type Config struct {
	// G is the gravitational constant.
	G float64
	// Theta is the multipole opening angle: a node of extent s at
	// distance d is accepted far-field when s*s < Theta*Theta*d*d.
	Theta float64
	// Eps is the Plummer softening length.
	Eps float64
}

// Backend is one force-evaluation strategy. Traverse must only be
// called after Upsweep completed for the same step; it returns the
// partition's potential-energy contribution.
type Backend interface {
	Name() string
	Available() bool
	Upsweep(ps *particles.Set, dom domain.Domain)
	Traverse(ps *particles.Set, dom domain.Domain) float64
	ReadStats() Stats
	// SupportsGroupTimesteps reports whether the backend evaluates
	// forces at group granularity, which the scheduler needs for
	// per-group dt criteria.
	SupportsGroupTimesteps() bool
	Cleanup()
}

// AutoSelect returns the best available backend: CUDA when built in
// and a device is present, multi-threaded CPU otherwise.
func AutoSelect(cfg Config) Backend {
	cuda := NewCUDA(cfg)
	if cuda.Available() {
		return cuda
	}
	return NewCPU(cfg)
}
