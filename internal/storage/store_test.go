package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/gravlab/internal/config"
	"github.com/san-kum/gravlab/internal/gravity"
	"github.com/san-kum/gravlab/internal/rung"
	"github.com/san-kum/gravlab/internal/step"
)

func TestSaveAndLoad(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	reports := []*step.Report{
		{
			Step:         0,
			Egrav:        -1.5,
			Stats:        gravity.Stats{NumP2P: 100, MaxP2P: 12, NumM2P: 40, MaxM2P: 8},
			MaxP2PGlobal: 14,
			Timestep:     rung.Timestep{MinDt: 1e-3, NumRungs: 2},
		},
		{Step: 1, Egrav: -1.5},
	}

	id, err := s.Save(cfg, reports, map[string]float64{"energy_drift": 0})
	if err != nil {
		t.Fatal(err)
	}

	meta, err := s.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	if meta.ID != id {
		t.Errorf("expected id %s, got %s", id, meta.ID)
	}
	if meta.Config.Particles != cfg.Particles {
		t.Errorf("config round trip lost particles: %d", meta.Config.Particles)
	}
	if meta.Metrics["energy_drift"] != 0 {
		t.Error("metrics not persisted")
	}

	f, err := os.Open(filepath.Join(s.baseDir, id, "steps.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 { // header + 2 steps
		t.Fatalf("expected 3 csv rows, got %d", len(rows))
	}
	if rows[1][0] != "0" || rows[2][0] != "1" {
		t.Error("step column wrong")
	}
}

func TestSeries(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	reports := []*step.Report{
		{Step: 0, Egrav: -1.5, Timestep: rung.Timestep{MinDt: 1e-3}},
		{Step: 1, Egrav: -2.5, Timestep: rung.Timestep{MinDt: 2e-3}},
	}
	id, err := s.Save(config.DefaultConfig(), reports, nil)
	if err != nil {
		t.Fatal(err)
	}

	egrav, err := s.Series(id, "egrav")
	if err != nil {
		t.Fatal(err)
	}
	if len(egrav) != 2 || egrav[0] != -1.5 || egrav[1] != -2.5 {
		t.Errorf("egrav series = %v", egrav)
	}

	dt, err := s.Series(id, "min_dt")
	if err != nil {
		t.Fatal(err)
	}
	if dt[1] != 2e-3 {
		t.Errorf("min_dt series = %v", dt)
	}

	if _, err := s.Series(id, "bogus"); err == nil {
		t.Error("expected error for unknown column")
	}
	if _, err := s.Series("no_such_run", "egrav"); err == nil {
		t.Error("expected error for missing run")
	}
}

func TestList(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"))
	ids, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if ids != nil {
		t.Error("expected nil for missing base dir")
	}

	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(config.DefaultConfig(), nil, nil); err != nil {
		t.Fatal(err)
	}
	ids, err = s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 run, got %d", len(ids))
	}
}
