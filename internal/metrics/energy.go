package metrics

import (
	"math"

	"github.com/san-kum/gravlab/internal/step"
)

// EnergyDrift tracks the relative excursion of the total potential
// energy from its value on the first observed step.
type EnergyDrift struct {
	name     string
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(rep *step.Report) {
	if e.samples == 0 {
		e.initial = rep.Egrav
	}
	e.samples++
	if e.initial == 0 {
		return
	}
	drift := math.Abs(rep.Egrav-e.initial) / math.Abs(e.initial)
	if drift > e.maxDrift {
		e.maxDrift = drift
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
