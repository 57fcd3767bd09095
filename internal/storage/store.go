// Package storage persists finished runs: a metadata record per run
// plus the per-step report series in CSV for downstream plotting.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/gravlab/internal/config"
	"github.com/san-kum/gravlab/internal/step"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Config    config.Config      `json:"config"`
	Metrics   map[string]float64 `json:"metrics"`
}

func (s *Store) Save(cfg *config.Config, reports []*step.Report, metrics map[string]float64) (string, error) {
	runID := fmt.Sprintf("run_%d", time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Timestamp: time.Now(),
		Config:    *cfg,
		Metrics:   metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "steps.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	header := []string{
		"step", "egrav", "num_p2p", "max_p2p", "num_m2p", "max_m2p",
		"max_p2p_global", "min_dt", "num_rungs",
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, rep := range reports {
		row := []string{
			strconv.Itoa(rep.Step),
			strconv.FormatFloat(rep.Egrav, 'e', 9, 64),
			strconv.FormatUint(rep.Stats.NumP2P, 10),
			strconv.FormatUint(rep.Stats.MaxP2P, 10),
			strconv.FormatUint(rep.Stats.NumM2P, 10),
			strconv.FormatUint(rep.Stats.MaxM2P, 10),
			strconv.FormatUint(rep.MaxP2PGlobal, 10),
			strconv.FormatFloat(rep.Timestep.MinDt, 'e', 9, 64),
			strconv.Itoa(rep.Timestep.NumRungs),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, w.Error()
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Series reads one column of a stored run's step records as floats.
func (s *Store) Series(runID, column string) ([]float64, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "steps.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("run %s has no step records", runID)
	}

	col := -1
	for i, name := range rows[0] {
		if name == column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("run %s has no column %q (have %v)", runID, column, rows[0])
	}

	series := make([]float64, 0, len(rows)-1)
	for _, row := range rows[1:] {
		v, err := strconv.ParseFloat(row[col], 64)
		if err != nil {
			return nil, fmt.Errorf("run %s column %q: %w", runID, column, err)
		}
		series = append(series, v)
	}
	return series, nil
}

// List returns stored run IDs, newest first.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}
