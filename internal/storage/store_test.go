package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/r-dsouza/molgrad/internal/engine"
	"github.com/r-dsouza/molgrad/internal/sim"
)

func TestSaveAndList(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "runs"))
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}

	e := engine.New(2)
	result := &sim.Result{
		Samples: []sim.Sample{
			{Step: 0, T: 0, Potential: 0.5, Kinetic: 0.1, NHBond: -1},
			{Step: 10, T: 0.01, Potential: 0.4, Kinetic: 0.2, NHBond: -1},
		},
		Metrics:    map[string]float64{"energy_drift": 0.001},
		StepsTaken: 10,
	}

	runID, err := store.Save("chain", 0.001, 7, "verlet", e, result)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(runID, "chain_") {
		t.Errorf("run id %q should start with the system name", runID)
	}

	runs, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Steps != 10 || runs[0].Seed != 7 {
		t.Errorf("unexpected metadata: %+v", runs[0])
	}
	if runs[0].Metrics["energy_drift"] != 0.001 {
		t.Errorf("metrics not round-tripped: %+v", runs[0].Metrics)
	}

	for _, name := range []string{"metadata.json", "energies.csv", "final_positions.csv"} {
		if _, err := os.Stat(filepath.Join(store.baseDir, runID, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestListEmpty(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "does_not_exist_yet"))
	runs, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}
