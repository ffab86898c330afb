// Package storage persists run results: metadata as json, energy and
// position traces as csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/r-dsouza/molgrad/internal/engine"
	"github.com/r-dsouza/molgrad/internal/sim"
	"github.com/r-dsouza/molgrad/internal/vecmath"
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

// RunMetadata describes one persisted run.
type RunMetadata struct {
	ID         string             `json:"id"`
	System     string             `json:"system"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Dt         float64            `json:"dt"`
	Steps      int                `json:"steps"`
	Integrator string             `json:"integrator"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes metadata.json, energies.csv and final_positions.csv into
// a fresh run directory and returns the run id.
func (s *Store) Save(system string, dt float64, seed int64, integrator string, e *engine.DerivEngine, result *sim.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", system, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		System:     system,
		Timestamp:  time.Now(),
		Seed:       seed,
		Dt:         dt,
		Steps:      result.StepsTaken,
		Integrator: integrator,
		Metrics:    result.Metrics,
	}
	if err := s.writeMetadata(runDir, meta); err != nil {
		return "", err
	}
	if err := s.writeEnergies(runDir, result); err != nil {
		return "", err
	}
	if err := s.writePositions(runDir, e); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) writeMetadata(runDir string, meta RunMetadata) error {
	f, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func (s *Store) writeEnergies(runDir string, result *sim.Result) error {
	f, err := os.Create(filepath.Join(runDir, "energies.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"step", "time", "potential", "kinetic", "total", "n_hbond"}); err != nil {
		return err
	}
	for _, sample := range result.Samples {
		row := []string{
			strconv.Itoa(sample.Step),
			strconv.FormatFloat(sample.T, 'g', -1, 64),
			strconv.FormatFloat(sample.Potential, 'g', -1, 64),
			strconv.FormatFloat(sample.Kinetic, 'g', -1, 64),
			strconv.FormatFloat(sample.Total(), 'g', -1, 64),
			strconv.FormatFloat(sample.NHBond, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writePositions(runDir string, e *engine.DerivEngine) error {
	f, err := os.Create(filepath.Join(runDir, "final_positions.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"atom", "x", "y", "z"}); err != nil {
		return err
	}
	for a := 0; a < e.Pos.NAtom; a++ {
		x := vecmath.LoadVec3(e.Pos.Output, a)
		row := []string{
			strconv.Itoa(a),
			strconv.FormatFloat(float64(x[0]), 'g', -1, 32),
			strconv.FormatFloat(float64(x[1]), 'g', -1, 32),
			strconv.FormatFloat(float64(x[2]), 'g', -1, 32),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// List returns the metadata of every stored run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var runs []RunMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}

	for i := 0; i < len(runs); i++ {
		for j := i + 1; j < len(runs); j++ {
			if runs[j].Timestamp.After(runs[i].Timestamp) {
				runs[i], runs[j] = runs[j], runs[i]
			}
		}
	}
	return runs, nil
}
