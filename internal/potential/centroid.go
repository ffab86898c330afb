package potential

import (
	"fmt"

	"github.com/r-dsouza/molgrad/internal/engine"
	"github.com/r-dsouza/molgrad/internal/vecmath"
)

type centroidGroup struct {
	members []engine.CoordPair
	params  engine.AutoDiffParams
}

// GroupCentroid is a coordinate node producing the centroid of each
// member group as a new width-3 element, so downstream springs can act
// on rigid clusters instead of single atoms.
type GroupCentroid struct {
	engine.CoordNode
	input  *engine.CoordNode
	groups []centroidGroup
	// autodiff holds one slot record per output element for the
	// generic reverse aggregator.
	autodiff []engine.AutoDiffParams
}

func init() {
	engine.MustRegisterNode("group_centroid", engine.NodeFactory1(
		func(grp engine.Group, arg *engine.CoordNode) (engine.Node, error) {
			return NewGroupCentroid(grp, arg)
		}))
}

// NewGroupCentroid reads groups (ragged member-index rows of up to
// SlotCapFirst atoms) and registers one width-3 dependency per member.
func NewGroupCentroid(grp engine.Group, input *engine.CoordNode) (*GroupCentroid, error) {
	if err := engine.CheckElemWidth(grp, input, 3); err != nil {
		return nil, err
	}
	rows, err := grp.IntRows("groups", engine.SlotCapFirst)
	if err != nil {
		return nil, err
	}

	c := &GroupCentroid{
		CoordNode: engine.NewCoordNode(len(rows), 3),
		input:     input,
		groups:    make([]centroidGroup, len(rows)),
		autodiff:  make([]engine.AutoDiffParams, len(rows)),
	}
	for g, row := range rows {
		c.autodiff[g] = engine.NewAutoDiffParams()
		for _, atom := range row {
			if atom < 0 || atom >= input.NElem {
				return nil, fmt.Errorf("%w: group %q groups[%d] index %d out of range [0,%d)",
					engine.ErrConfiguration, grp.Name, g, atom, input.NElem)
			}
			pair := engine.CoordPair{Index: atom}
			input.Slots.AddRequest(3, &pair)
			c.groups[g].members = append(c.groups[g].members, pair)
			if err := c.autodiff[g].AddSlot1(pair.Slot); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// Forward averages member positions and stashes the raw per-member
// Jacobian blocks (1/n on the diagonal) in the input's accumulator;
// Reverse scales them by the gathered output sensitivity.
func (c *GroupCentroid) Forward(mode engine.ComputeMode) {
	for g := range c.groups {
		members := c.groups[g].members
		inv := 1 / float32(len(members))

		var sum vecmath.Vec3
		for _, m := range members {
			sum = sum.Add(vecmath.LoadVec3(c.input.Output, m.Index))
		}
		vecmath.StoreVec3(c.Output, g, sum.Scale(inv))

		for _, m := range members {
			for d := 0; d < 3; d++ {
				var jac vecmath.Vec3
				jac[d] = inv
				c.input.Slots.SetBlock(m.Slot, d, jac[:])
			}
		}
	}
}

func (c *GroupCentroid) Reverse() {
	engine.ReverseAutodiff(&c.CoordNode, &c.input.Slots, nil, c.autodiff)
}

// Dependencies exposes the registered member pairs for the gradient
// checker.
func (c *GroupCentroid) Dependencies() []engine.InputDeps {
	var pairs []engine.CoordPair
	for g := range c.groups {
		pairs = append(pairs, c.groups[g].members...)
	}
	return []engine.InputDeps{{Node: c.input, Pairs: pairs}}
}
