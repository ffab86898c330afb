// Package sim drives the engine through integration cycles: velocity
// initialization, periodic recentering, sampling, metrics and
// observers.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/r-dsouza/molgrad/internal/engine"
	"github.com/r-dsouza/molgrad/internal/integrators"
	"github.com/r-dsouza/molgrad/internal/vecmath"
)

// Options fixes the run parameters.
type Options struct {
	Dt          float64
	Steps       int
	MaxForce    float64
	Integrator  integrators.Kind
	Temperature float64
	Seed        int64
	// RecenterEvery applies centroid recentering every that many
	// steps; zero disables it.
	RecenterEvery  int
	XYRecenterOnly bool
	// SampleEvery controls the trace density; zero samples every step.
	SampleEvery int
}

// Simulator owns the momentum buffer and runs the step loop.
type Simulator struct {
	eng       *engine.DerivEngine
	opts      Options
	mom       vecmath.VecArray
	metrics   []Metric
	observers []Observer
}

// New builds a simulator around an engine.
func New(eng *engine.DerivEngine, opts Options) (*Simulator, error) {
	if opts.Dt <= 0 {
		return nil, fmt.Errorf("dt must be positive, got %f", opts.Dt)
	}
	if opts.Steps <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d", opts.Steps)
	}
	if opts.SampleEvery <= 0 {
		opts.SampleEvery = 1
	}
	return &Simulator{
		eng:  eng,
		opts: opts,
		mom:  vecmath.NewVecArray(3, eng.Pos.NAtom),
	}, nil
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Momentum exposes the live momentum buffer.
func (s *Simulator) Momentum() vecmath.VecArray { return s.mom }

// Engine exposes the wrapped engine.
func (s *Simulator) Engine() *engine.DerivEngine { return s.eng }

// InitVelocities draws momenta from a Maxwell-Boltzmann distribution
// at the configured temperature (unit masses) and removes the net
// drift.
func (s *Simulator) InitVelocities() {
	rng := rand.New(rand.NewSource(s.opts.Seed))
	sigma := math.Sqrt(s.opts.Temperature)

	nAtom := s.eng.Pos.NAtom
	var net vecmath.Vec3
	for a := 0; a < nAtom; a++ {
		p := vecmath.Vec3{
			float32(rng.NormFloat64() * sigma),
			float32(rng.NormFloat64() * sigma),
			float32(rng.NormFloat64() * sigma),
		}
		vecmath.StoreVec3(s.mom, a, p)
		net = net.Add(p)
	}

	correction := net.Scale(1 / float32(nAtom))
	for a := 0; a < nAtom; a++ {
		vecmath.StoreVec3(s.mom, a, vecmath.LoadVec3(s.mom, a).Sub(correction))
	}
}

// KineticEnergy sums p^2/2 over all atoms.
func (s *Simulator) KineticEnergy() float64 {
	k := 0.0
	for a := 0; a < s.eng.Pos.NAtom; a++ {
		k += 0.5 * float64(vecmath.LoadVec3(s.mom, a).Mag2())
	}
	return k
}

// Sample evaluates the engine in full mode and packages the current
// energies.
func (s *Simulator) Sample(step int) (Sample, error) {
	if err := s.eng.Compute(engine.PotentialAndDeriv); err != nil {
		return Sample{}, err
	}
	return Sample{
		Step:      step,
		T:         float64(step) * s.opts.Dt,
		Potential: s.eng.Potential,
		Kinetic:   s.KineticEnergy(),
		NHBond:    engine.GetNHBond(s.eng),
	}, nil
}

// Step advances one integration cycle, recentering on schedule.
func (s *Simulator) Step(step int) error {
	if err := s.eng.IntegrationCycle(s.mom, float32(s.opts.Dt), float32(s.opts.MaxForce), s.opts.Integrator); err != nil {
		return StepError{Step: step, Time: float64(step) * s.opts.Dt, Message: err.Error()}
	}
	if s.opts.RecenterEvery > 0 && step%s.opts.RecenterEvery == 0 {
		integrators.Recenter(s.eng.Pos.Output, s.opts.XYRecenterOnly, s.eng.Pos.NAtom)
	}
	return nil
}

// Run advances the configured number of steps, sampling as it goes.
// Numerical failures abort the run with a StepError; the partial
// result is returned alongside the error.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	result := &Result{Metrics: make(map[string]float64)}
	for _, m := range s.metrics {
		m.Reset()
	}

	record := func(step int) error {
		sample, err := s.Sample(step)
		if err != nil {
			return err
		}
		result.Samples = append(result.Samples, sample)
		for _, m := range s.metrics {
			m.Observe(sample)
		}
		for _, o := range s.observers {
			o.OnSample(sample)
		}
		return nil
	}

	if err := record(0); err != nil {
		return result, err
	}

	for step := 1; step <= s.opts.Steps; step++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := s.Step(step); err != nil {
			return result, err
		}

		if step%s.opts.SampleEvery == 0 || step == s.opts.Steps {
			if err := record(step); err != nil {
				return result, err
			}
		}
		result.StepsTaken = step
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}
