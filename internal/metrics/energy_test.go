package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/gravlab/internal/gravity"
	"github.com/san-kum/gravlab/internal/step"
)

func report(egrav float64, owned int, p2p, m2p, maxP2P uint64) *step.Report {
	return &step.Report{
		NumOwned:     owned,
		Egrav:        egrav,
		Stats:        gravity.Stats{NumP2P: p2p, NumM2P: m2p, MaxP2P: maxP2P},
		MaxP2PGlobal: maxP2P,
	}
}

func TestEnergyDriftTracksMaxExcursion(t *testing.T) {
	m := NewEnergyDrift()

	m.Observe(report(-10, 1, 0, 0, 0))
	m.Observe(report(-11, 1, 0, 0, 0))
	m.Observe(report(-10.5, 1, 0, 0, 0))

	if math.Abs(m.Value()-0.1) > 1e-12 {
		t.Errorf("expected drift 0.1, got %f", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero drift after reset")
	}
}

func TestEnergyDriftZeroInitial(t *testing.T) {
	m := NewEnergyDrift()
	m.Observe(report(0, 1, 0, 0, 0))
	m.Observe(report(5, 1, 0, 0, 0))
	if m.Value() != 0 {
		t.Error("drift is undefined from a zero baseline and must stay 0")
	}
}

func TestLoadImbalance(t *testing.T) {
	m := NewLoadImbalance()

	// 100 pairs over 10 particles -> mean 10; heaviest particle 20
	m.Observe(report(-1, 10, 100, 0, 20))

	if math.Abs(m.Value()-1.0) > 1e-12 {
		t.Errorf("expected imbalance 1.0, got %f", m.Value())
	}
}

func TestTraversalCost(t *testing.T) {
	m := NewTraversalCost()
	m.Observe(report(-1, 10, 100, 50, 0))
	m.Observe(report(-1, 10, 200, 100, 0))

	if math.Abs(m.Value()-22.5) > 1e-12 {
		t.Errorf("expected mean cost 22.5, got %f", m.Value())
	}
}
