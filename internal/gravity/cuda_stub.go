//go:build !cuda

package gravity

import (
	"github.com/san-kum/gravlab/internal/domain"
	"github.com/san-kum/gravlab/internal/particles"
)

type CUDA struct {
	cpu *CPU
}

func NewCUDA(cfg Config) *CUDA {
	return &CUDA{cpu: NewCPU(cfg)}
}

func (b *CUDA) Name() string                 { return "cuda (not available)" }
func (b *CUDA) Available() bool              { return false }
func (b *CUDA) SupportsGroupTimesteps() bool { return true }
func (b *CUDA) Cleanup()                     {}

func (b *CUDA) Upsweep(ps *particles.Set, dom domain.Domain) {
	b.cpu.Upsweep(ps, dom)
}

func (b *CUDA) Traverse(ps *particles.Set, dom domain.Domain) float64 {
	return b.cpu.Traverse(ps, dom)
}

func (b *CUDA) ReadStats() Stats { return b.cpu.ReadStats() }
