package potential

import (
	"fmt"
	"math"

	"github.com/r-dsouza/molgrad/internal/engine"
	"github.com/r-dsouza/molgrad/internal/vecmath"
)

type dihedralTerm struct {
	atoms [4]engine.CoordPair
	equil float32
	k     float32
	// phi caches the torsion angle from the last forward pass.
	phi float32
}

// DihedralSpring restrains the torsion angle of each atom quadruple,
// E = k/2 wrap(phi - equil)^2, with the difference wrapped into
// (-pi, pi].
type DihedralSpring struct {
	engine.PotentialNode
	input *engine.CoordNode
	terms []dihedralTerm
}

func init() {
	engine.MustRegisterNode("dihedral_spring", engine.NodeFactory1(
		func(grp engine.Group, arg *engine.CoordNode) (engine.Node, error) {
			return NewDihedralSpring(grp, arg)
		}))
}

// NewDihedralSpring reads quads, equil and spring_const from the group.
func NewDihedralSpring(grp engine.Group, input *engine.CoordNode) (*DihedralSpring, error) {
	if err := engine.CheckElemWidth(grp, input, 3); err != nil {
		return nil, err
	}
	quads, err := grp.IntTable("quads", 4)
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
	if len(equil) != len(quads) || len(springConst) != len(quads) {
		return nil, fmt.Errorf("%w: group %q has %d quads but %d equil and %d spring_const entries",
			engine.ErrConfiguration, grp.Name, len(quads), len(equil), len(springConst))
	}

	dn := &DihedralSpring{input: input, terms: make([]dihedralTerm, len(quads))}
	for i, q := range quads {
		for slot, atom := range q {
			if atom < 0 || atom >= input.NElem {
				return nil, fmt.Errorf("%w: group %q quad %d index %d out of range [0,%d)",
					engine.ErrConfiguration, grp.Name, i, atom, input.NElem)
			}
			dn.terms[i].atoms[slot] = engine.CoordPair{Index: atom}
			input.Slots.AddRequest(1, &dn.terms[i].atoms[slot])
		}
		dn.terms[i].equil = equil[i]
		dn.terms[i].k = springConst[i]
	}
	return dn, nil
}

func (dn *DihedralSpring) Forward(mode engine.ComputeMode) {
	pot := 0.0
	for i := range dn.terms {
		t := &dn.terms[i]
		r1 := vecmath.LoadVec3(dn.input.Output, t.atoms[0].Index)
		r2 := vecmath.LoadVec3(dn.input.Output, t.atoms[1].Index)
		r3 := vecmath.LoadVec3(dn.input.Output, t.atoms[2].Index)
		r4 := vecmath.LoadVec3(dn.input.Output, t.atoms[3].Index)

		b1 := r2.Sub(r1)
		b2 := r3.Sub(r2)
		b3 := r4.Sub(r3)

		n1 := b1.Cross(b2)
		n2 := b2.Cross(b3)
		b2Mag := b2.Mag()

		phi := math.Atan2(float64(n1.Cross(n2).Dot(b2))/float64(b2Mag), float64(n1.Dot(n2)))
		t.phi = float32(phi)

		delta := float32(vecmath.WrapAngle(phi - float64(t.equil)))
		coeff := t.k * delta

		// Torsion gradient in terms of the two plane normals.
		dPhiDr1 := n1.Scale(-b2Mag / n1.Mag2())
		dPhiDr4 := n2.Scale(b2Mag / n2.Mag2())

		c12 := -b1.Dot(b2) / (b2Mag * b2Mag)
		c32 := -b3.Dot(b2) / (b2Mag * b2Mag)
		dPhiDr2 := dPhiDr1.Scale(c12 - 1).Sub(dPhiDr4.Scale(c32))
		dPhiDr3 := dPhiDr4.Scale(c32 - 1).Sub(dPhiDr1.Scale(c12))

		for slot, g := range []vecmath.Vec3{dPhiDr1, dPhiDr2, dPhiDr3, dPhiDr4} {
			scaled := g.Scale(coeff)
			dn.input.Slots.SetBlock(t.atoms[slot].Slot, 0, scaled[:])
		}

		pot += 0.5 * float64(t.k) * float64(delta) * float64(delta)
	}
	dn.Potential = pot
}

// Dependencies exposes the registered quads for the gradient checker.
func (dn *DihedralSpring) Dependencies() []engine.InputDeps {
	pairs := make([]engine.CoordPair, 0, 4*len(dn.terms))
	for i := range dn.terms {
		pairs = append(pairs, dn.terms[i].atoms[:]...)
	}
	return []engine.InputDeps{{Node: dn.input, Pairs: pairs}}
}

// ValueByName answers "torsion" with the per-quad angle from the last
// forward pass.
func (dn *DihedralSpring) ValueByName(name string) ([]float32, error) {
	if name != "torsion" {
		return nil, fmt.Errorf("%w: %q", engine.ErrQuery, name)
	}
	out := make([]float32, len(dn.terms))
	for i := range dn.terms {
		out[i] = dn.terms[i].phi
	}
	return out, nil
}
