package potential

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/r-dsouza/molgrad/internal/engine"
	"github.com/r-dsouza/molgrad/internal/vecmath"
)

// parallelThreshold is the term count above which spring loops fan out
// over a worker pool.
const parallelThreshold = 512

type springTerm struct {
	atoms [2]engine.CoordPair
	equil float32
	k     float32
	// stretch caches dist - equil from the last forward pass for the
	// parameter derivative.
	stretch float32
}

// DistSpring applies harmonic springs between pairs of elements of any
// width-3 coordinate node, E = k/2 (|x_i - x_j| - equil)^2.
type DistSpring struct {
	engine.PotentialNode
	input *engine.CoordNode
	terms []springTerm
}

func init() {
	engine.MustRegisterNode("dist_spring", engine.NodeFactory1(
		func(grp engine.Group, arg *engine.CoordNode) (engine.Node, error) {
			return NewDistSpring(grp, arg)
		}))
}

// NewDistSpring reads pairs, equil and spring_const from the group and
// registers one dependency per spring endpoint.
func NewDistSpring(grp engine.Group, input *engine.CoordNode) (*DistSpring, error) {
	if err := engine.CheckElemWidth(grp, input, 3); err != nil {
		return nil, err
	}
	pairs, err := grp.IntTable("pairs", 2)
	if err != nil {
		return nil, err
	}
	equil, err := grp.Floats("equil")
	if err != nil {
		return nil, err
	}
	springConst, err := grp.Floats("spring_const")
	if err != nil {
		return nil, err
	}
	if len(equil) != len(pairs) || len(springConst) != len(pairs) {
		return nil, fmt.Errorf("%w: group %q has %d pairs but %d equil and %d spring_const entries",
			engine.ErrConfiguration, grp.Name, len(pairs), len(equil), len(springConst))
	}

	s := &DistSpring{input: input, terms: make([]springTerm, len(pairs))}
	for i, p := range pairs {
		for side, atom := range p {
			if atom < 0 || atom >= input.NElem {
				return nil, fmt.Errorf("%w: group %q pair %d index %d out of range [0,%d)",
					engine.ErrConfiguration, grp.Name, i, atom, input.NElem)
			}
			s.terms[i].atoms[side] = engine.CoordPair{Index: atom}
			input.Slots.AddRequest(1, &s.terms[i].atoms[side])
		}
		s.terms[i].equil = equil[i]
		s.terms[i].k = springConst[i]
	}
	return s, nil
}

func (s *DistSpring) Forward(mode engine.ComputeMode) {
	if len(s.terms) < parallelThreshold {
		s.Potential = s.forwardRange(0, len(s.terms))
		return
	}

	workers := runtime.NumCPU()
	partial := make([]float64, workers)
	chunk := (len(s.terms) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, len(s.terms))
		if start >= end {
			break
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			partial[w] = s.forwardRange(start, end)
		}(w, start, end)
	}
	wg.Wait()

	s.Potential = 0
	for _, p := range partial {
		s.Potential += p
	}
}

// forwardRange evaluates a contiguous run of springs. Each term writes
// only its own exclusive slots, so ranges may run concurrently.
func (s *DistSpring) forwardRange(start, end int) float64 {
	pot := 0.0
	for i := start; i < end; i++ {
		t := &s.terms[i]
		x1 := vecmath.LoadVec3(s.input.Output, t.atoms[0].Index)
		x2 := vecmath.LoadVec3(s.input.Output, t.atoms[1].Index)

		disp := x1.Sub(x2)
		dist := disp.Mag()
		t.stretch = dist - t.equil

		var dUdx vecmath.Vec3
		if dist > 0 {
			dUdx = disp.Scale(t.k * t.stretch / dist)
		}
		s.input.Slots.SetBlock(t.atoms[0].Slot, 0, dUdx[:])
		neg := dUdx.Scale(-1)
		s.input.Slots.SetBlock(t.atoms[1].Slot, 0, neg[:])

		pot += 0.5 * float64(t.k) * float64(t.stretch) * float64(t.stretch)
	}
	return pot
}

// Dependencies exposes the registered endpoint pairs for the gradient
// checker.
func (s *DistSpring) Dependencies() []engine.InputDeps {
	pairs := make([]engine.CoordPair, 0, 2*len(s.terms))
	for i := range s.terms {
		pairs = append(pairs, s.terms[i].atoms[0], s.terms[i].atoms[1])
	}
	return []engine.InputDeps{{Node: s.input, Pairs: pairs}}
}

// Params returns the spring constants.
func (s *DistSpring) Params() []float32 {
	out := make([]float32, len(s.terms))
	for i := range s.terms {
		out[i] = s.terms[i].k
	}
	return out
}

// SetParams replaces the spring constants.
func (s *DistSpring) SetParams(p []float32) error {
	if len(p) != len(s.terms) {
		return fmt.Errorf("%w: expected %d spring constants, got %d", engine.ErrShape, len(s.terms), len(p))
	}
	for i := range s.terms {
		s.terms[i].k = p[i]
	}
	return nil
}

// ParamDeriv returns dU/dk per spring from the last forward pass.
func (s *DistSpring) ParamDeriv() []float32 {
	out := make([]float32, len(s.terms))
	for i := range s.terms {
		out[i] = 0.5 * s.terms[i].stretch * s.terms[i].stretch
	}
	return out
}

// ValueByName answers "stretch" with the per-spring extension from the
// last forward pass.
func (s *DistSpring) ValueByName(name string) ([]float32, error) {
	switch name {
	case "stretch":
		out := make([]float32, len(s.terms))
		for i := range s.terms {
			out[i] = s.terms[i].stretch
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", engine.ErrQuery, name)
}
