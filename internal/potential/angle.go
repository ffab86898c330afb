package potential

import (
	"fmt"
	"math"

	"github.com/r-dsouza/molgrad/internal/engine"
	"github.com/r-dsouza/molgrad/internal/vecmath"
)

type angleTerm struct {
	atoms [3]engine.CoordPair
	equil float32
	k     float32
}

// AngleSpring applies a harmonic restraint on the planar angle at the
// middle atom of each triple, E = k/2 (theta - equil)^2 with theta in
// radians.
type AngleSpring struct {
	engine.PotentialNode
	input *engine.CoordNode
	terms []angleTerm
}

func init() {
	engine.MustRegisterNode("angle_spring", engine.NodeFactory1(
		func(grp engine.Group, arg *engine.CoordNode) (engine.Node, error) {
			return NewAngleSpring(grp, arg)
		}))
}

// NewAngleSpring reads triples, equil and spring_const from the group.
// Triples are ordered (end, vertex, end).
func NewAngleSpring(grp engine.Group, input *engine.CoordNode) (*AngleSpring, error) {
	if err := engine.CheckElemWidth(grp, input, 3); err != nil {
		return nil, err
	}
	triples, err := grp.IntTable("triples", 3)
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
	if len(equil) != len(triples) || len(springConst) != len(triples) {
		return nil, fmt.Errorf("%w: group %q has %d triples but %d equil and %d spring_const entries",
			engine.ErrConfiguration, grp.Name, len(triples), len(equil), len(springConst))
	}

	a := &AngleSpring{input: input, terms: make([]angleTerm, len(triples))}
	for i, tr := range triples {
		for slot, atom := range tr {
			if atom < 0 || atom >= input.NElem {
				return nil, fmt.Errorf("%w: group %q triple %d index %d out of range [0,%d)",
					engine.ErrConfiguration, grp.Name, i, atom, input.NElem)
			}
			a.terms[i].atoms[slot] = engine.CoordPair{Index: atom}
			input.Slots.AddRequest(1, &a.terms[i].atoms[slot])
		}
		a.terms[i].equil = equil[i]
		a.terms[i].k = springConst[i]
	}
	return a, nil
}

func (a *AngleSpring) Forward(mode engine.ComputeMode) {
	pot := 0.0
	for i := range a.terms {
		t := &a.terms[i]
		r1 := vecmath.LoadVec3(a.input.Output, t.atoms[0].Index)
		rv := vecmath.LoadVec3(a.input.Output, t.atoms[1].Index)
		r2 := vecmath.LoadVec3(a.input.Output, t.atoms[2].Index)

		u := r1.Sub(rv)
		v := r2.Sub(rv)
		uMag := u.Mag()
		vMag := v.Mag()

		uHat := u.Scale(1 / uMag)
		vHat := v.Scale(1 / vMag)
		// cos(theta) in float64: near theta = pi, acos amplifies float32
		// rounding of the dot product.
		var dot, uu, vv float64
		for d := 0; d < 3; d++ {
			dot += float64(u[d]) * float64(v[d])
			uu += float64(u[d]) * float64(u[d])
			vv += float64(v[d]) * float64(v[d])
		}
		cosT := dot / math.Sqrt(uu*vv)
		cosT = math.Min(1, math.Max(-1, cosT))
		theta := math.Acos(cosT)

		sinT := math.Sqrt(1 - cosT*cosT)
		// Keep the gradient bounded through the collinear singularity.
		if sinT < 1e-6 {
			sinT = 1e-6
		}

		delta := theta - float64(t.equil)
		coeff := t.k * float32(delta)

		// d(theta)/dr for the two ends; the vertex balances them.
		invSin := float32(1 / sinT)
		dTdR1 := uHat.Scale(float32(cosT)).Sub(vHat).Scale(invSin / uMag)
		dTdR2 := vHat.Scale(float32(cosT)).Sub(uHat).Scale(invSin / vMag)
		dTdRv := dTdR1.Add(dTdR2).Scale(-1)

		g1 := dTdR1.Scale(coeff)
		gv := dTdRv.Scale(coeff)
		g2 := dTdR2.Scale(coeff)
		a.input.Slots.SetBlock(t.atoms[0].Slot, 0, g1[:])
		a.input.Slots.SetBlock(t.atoms[1].Slot, 0, gv[:])
		a.input.Slots.SetBlock(t.atoms[2].Slot, 0, g2[:])

		pot += 0.5 * float64(t.k) * delta * delta
	}
	a.Potential = pot
}

// Dependencies exposes the registered triples for the gradient checker.
func (a *AngleSpring) Dependencies() []engine.InputDeps {
	pairs := make([]engine.CoordPair, 0, 3*len(a.terms))
	for i := range a.terms {
		pairs = append(pairs, a.terms[i].atoms[:]...)
	}
	return []engine.InputDeps{{Node: a.input, Pairs: pairs}}
}
