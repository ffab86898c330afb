package potential

import (
	"fmt"
	"math"

	"github.com/r-dsouza/molgrad/internal/engine"
	"github.com/r-dsouza/molgrad/internal/vecmath"
)

type hbondTerm struct {
	donor    engine.CoordPair
	acceptor engine.CoordPair
}

// HBondCount counts donor-acceptor contacts through a smooth logistic
// switch on the pair distance and contributes scale per bond to the
// potential, so the count stays differentiable.
type HBondCount struct {
	engine.PotentialNode
	input  *engine.CoordNode
	terms  []hbondTerm
	radius float32
	width  float32
	scale  float32
	nHBond float64
}

func init() {
	engine.MustRegisterNode("hbond_count", engine.NodeFactory1(
		func(grp engine.Group, arg *engine.CoordNode) (engine.Node, error) {
			return NewHBondCount(grp, arg)
		}))
}

// NewHBondCount reads donors, acceptors, radius, width and scale from
// the group and registers every donor-acceptor pair.
func NewHBondCount(grp engine.Group, input *engine.CoordNode) (*HBondCount, error) {
	if err := engine.CheckElemWidth(grp, input, 3); err != nil {
		return nil, err
	}
	donorRows, err := grp.IntTable("donors", 1)
	if err != nil {
		return nil, err
	}
	acceptorRows, err := grp.IntTable("acceptors", 1)
	if err != nil {
		return nil, err
	}
	radius, err := grp.Float("radius")
	if err != nil {
		return nil, err
	}
	width, err := grp.FloatOr("width", 0.25)
	if err != nil {
		return nil, err
	}
	scale, err := grp.FloatOr("scale", 0)
	if err != nil {
		return nil, err
	}
	if width <= 0 {
		return nil, fmt.Errorf("%w: group %q width must be positive", engine.ErrConfiguration, grp.Name)
	}

	h := &HBondCount{
		input:  input,
		radius: float32(radius),
		width:  float32(width),
		scale:  float32(scale),
		nHBond: -1,
	}
	for _, dr := range donorRows {
		for _, ar := range acceptorRows {
			donor, acceptor := dr[0], ar[0]
			if donor < 0 || donor >= input.NElem || acceptor < 0 || acceptor >= input.NElem {
				return nil, fmt.Errorf("%w: group %q donor/acceptor pair (%d,%d) out of range [0,%d)",
					engine.ErrConfiguration, grp.Name, donor, acceptor, input.NElem)
			}
			if donor == acceptor {
				continue
			}
			t := hbondTerm{
				donor:    engine.CoordPair{Index: donor},
				acceptor: engine.CoordPair{Index: acceptor},
			}
			input.Slots.AddRequest(1, &t.donor)
			input.Slots.AddRequest(1, &t.acceptor)
			h.terms = append(h.terms, t)
		}
	}
	return h, nil
}

func (h *HBondCount) Forward(mode engine.ComputeMode) {
	count := 0.0
	for i := range h.terms {
		t := &h.terms[i]
		xd := vecmath.LoadVec3(h.input.Output, t.donor.Index)
		xa := vecmath.LoadVec3(h.input.Output, t.acceptor.Index)

		disp := xd.Sub(xa)
		dist := disp.Mag()

		// s(d) = 1 / (1 + exp((d - radius)/width))
		z := float64((dist - h.radius) / h.width)
		s := 1 / (1 + math.Exp(z))
		count += s

		dsdd := float32(-s * (1 - s) / float64(h.width))
		var grad vecmath.Vec3
		if dist > 0 {
			grad = disp.Scale(h.scale * dsdd / dist)
		}
		h.input.Slots.SetBlock(t.donor.Slot, 0, grad[:])
		neg := grad.Scale(-1)
		h.input.Slots.SetBlock(t.acceptor.Slot, 0, neg[:])
	}
	h.nHBond = count
	h.Potential = float64(h.scale) * count
}

// NHBond reports the smooth contact count from the last forward pass,
// -1 before any evaluation.
func (h *HBondCount) NHBond() float64 { return h.nHBond }

// Dependencies exposes the registered donor-acceptor pairs for the
// gradient checker.
func (h *HBondCount) Dependencies() []engine.InputDeps {
	pairs := make([]engine.CoordPair, 0, 2*len(h.terms))
	for i := range h.terms {
		pairs = append(pairs, h.terms[i].donor, h.terms[i].acceptor)
	}
	return []engine.InputDeps{{Node: h.input, Pairs: pairs}}
}

// ValueByName answers "n_hbond" with the current contact count.
func (h *HBondCount) ValueByName(name string) ([]float32, error) {
	if name != "n_hbond" {
		return nil, fmt.Errorf("%w: %q", engine.ErrQuery, name)
	}
	return []float32{float32(h.nHBond)}, nil
}
