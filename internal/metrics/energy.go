// Package metrics provides run-level scalar summaries fed from the
// simulation's sample stream.
package metrics

import (
	"math"

	"github.com/r-dsouza/molgrad/internal/sim"
)

// EnergyDrift tracks the largest relative deviation of the total
// energy from its first sampled value.
type EnergyDrift struct {
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{}
}

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(s sim.Sample) {
	total := s.Total()
	if e.samples == 0 {
		e.initial = total
	}
	e.samples++

	if e.initial != 0 {
		drift := math.Abs(total-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}

// MeanEnergy averages the sampled total energy.
type MeanEnergy struct {
	sum     float64
	samples int
}

func NewMeanEnergy() *MeanEnergy { return &MeanEnergy{} }

func (m *MeanEnergy) Name() string { return "mean_energy" }

func (m *MeanEnergy) Observe(s sim.Sample) {
	m.sum += s.Total()
	m.samples++
}

func (m *MeanEnergy) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanEnergy) Reset() {
	m.sum = 0
	m.samples = 0
}

// MeanHBond averages the hydrogen-bond count, skipping samples from
// graphs without a counter node.
type MeanHBond struct {
	sum     float64
	samples int
}

func NewMeanHBond() *MeanHBond { return &MeanHBond{} }

func (m *MeanHBond) Name() string { return "mean_hbond" }

func (m *MeanHBond) Observe(s sim.Sample) {
	if s.NHBond < 0 {
		return
	}
	m.sum += s.NHBond
	m.samples++
}

func (m *MeanHBond) Value() float64 {
	if m.samples == 0 {
		return -1
	}
	return m.sum / float64(m.samples)
}

func (m *MeanHBond) Reset() {
	m.sum = 0
	m.samples = 0
}
