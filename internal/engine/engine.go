package engine

import (
	"fmt"
	"math"

	"github.com/r-dsouza/molgrad/internal/integrators"
	"github.com/r-dsouza/molgrad/internal/vecmath"
)

// GraphNode is one entry of the engine's node list. Parents and
// children are indices into the same list; levels order the forward
// and reverse traversals.
type GraphNode struct {
	Name         string
	Computation  Node
	Parents      []int
	Children     []int
	ForwardLevel int
	ReverseLevel int
}

// DerivEngine owns the computation graph. Node 0 is always the
// position node.
type DerivEngine struct {
	Nodes     []GraphNode
	Pos       *Pos
	Potential float64

	levelsDirty bool
}

// New creates an engine whose graph contains only the position node
// for nAtom atoms.
func New(nAtom int) *DerivEngine {
	e := &DerivEngine{Pos: NewPos(nAtom)}
	e.Nodes = append(e.Nodes, GraphNode{Name: "pos", Computation: e.Pos})
	return e
}

// AddNode links a new computation under name, resolving argumentNames
// against already-added nodes. Names must be unique; every argument
// must exist.
func (e *DerivEngine) AddNode(name string, comp Node, argumentNames []string) error {
	if comp == nil {
		return fmt.Errorf("%w: node %q has no computation", ErrConfiguration, name)
	}
	if idx, _ := e.GetIdx(name, false); idx >= 0 {
		return fmt.Errorf("%w: duplicate node name %q", ErrConfiguration, name)
	}

	n := GraphNode{Name: name, Computation: comp}
	newIdx := len(e.Nodes)
	for _, arg := range argumentNames {
		parent, err := e.GetIdx(arg, true)
		if err != nil {
			return fmt.Errorf("%w: node %q references unknown argument %q", ErrConfiguration, name, arg)
		}
		n.Parents = append(n.Parents, parent)
		e.Nodes[parent].Children = append(e.Nodes[parent].Children, newIdx)
		if lvl := e.Nodes[parent].ForwardLevel + 1; lvl > n.ForwardLevel {
			n.ForwardLevel = lvl
		}
	}

	e.Nodes = append(e.Nodes, n)
	e.levelsDirty = true
	return nil
}

// Get returns the graph node registered under name.
func (e *DerivEngine) Get(name string) (*GraphNode, error) {
	idx, err := e.GetIdx(name, true)
	if err != nil {
		return nil, err
	}
	return &e.Nodes[idx], nil
}

// GetIdx returns the index of name. With mustExist false a missing
// name yields -1 and no error.
func (e *DerivEngine) GetIdx(name string, mustExist bool) (int, error) {
	for i := range e.Nodes {
		if e.Nodes[i].Name == name {
			return i, nil
		}
	}
	if mustExist {
		return -1, fmt.Errorf("%w: no node named %q", ErrConfiguration, name)
	}
	return -1, nil
}

// updateReverseLevels assigns reverse levels in a post-order walk.
// Arguments always precede consumers in the node list, so a reverse
// index scan sees every child before its parents.
func (e *DerivEngine) updateReverseLevels() {
	for i := len(e.Nodes) - 1; i >= 0; i-- {
		lvl := 0
		for _, c := range e.Nodes[i].Children {
			if l := e.Nodes[c].ReverseLevel + 1; l > lvl {
				lvl = l
			}
		}
		e.Nodes[i].ReverseLevel = lvl
	}
	e.levelsDirty = false
}

// forwardOrder returns node indices sorted by ascending forward level.
func (e *DerivEngine) forwardOrder() []int {
	return e.levelOrder(func(n *GraphNode) int { return n.ForwardLevel })
}

// reverseOrder returns node indices sorted by ascending reverse level.
func (e *DerivEngine) reverseOrder() []int {
	return e.levelOrder(func(n *GraphNode) int { return n.ReverseLevel })
}

func (e *DerivEngine) levelOrder(level func(*GraphNode) int) []int {
	maxLevel := 0
	for i := range e.Nodes {
		if l := level(&e.Nodes[i]); l > maxLevel {
			maxLevel = l
		}
	}
	order := make([]int, 0, len(e.Nodes))
	for lvl := 0; lvl <= maxLevel; lvl++ {
		for i := range e.Nodes {
			if level(&e.Nodes[i]) == lvl {
				order = append(order, i)
			}
		}
	}
	return order
}

// Compute runs one forward evaluation and the reverse gradient
// traversal. All sens buffers and slot-machine accumulators are zeroed
// first; afterwards Potential holds the summed potential terms (exact
// only in PotentialAndDeriv mode) and Pos.Sens holds dU/dx.
func (e *DerivEngine) Compute(mode ComputeMode) error {
	if e.levelsDirty {
		e.updateReverseLevels()
	}

	for i := range e.Nodes {
		if cp, ok := e.Nodes[i].Computation.(CoordProvider); ok {
			cn := cp.Coord()
			cn.Sens.Zero()
			cn.Slots.Zero()
		}
	}

	for _, idx := range e.forwardOrder() {
		e.Nodes[idx].Computation.Forward(mode)
	}

	e.Potential = 0
	for i := range e.Nodes {
		if pp, ok := e.Nodes[i].Computation.(PotentialProvider); ok {
			e.Potential += pp.PotentialTerm()
		}
	}

	for _, idx := range e.reverseOrder() {
		e.Nodes[idx].Computation.Reverse()
	}

	return e.checkFinite(mode)
}

func (e *DerivEngine) checkFinite(mode ComputeMode) error {
	for a := 0; a < e.Pos.NAtom; a++ {
		if !vecmath.LoadVec3(e.Pos.Sens, a).IsFinite() {
			return fmt.Errorf("%w: force on atom %d", ErrNumerical, a)
		}
	}
	if mode == PotentialAndDeriv && (math.IsNaN(e.Potential) || math.IsInf(e.Potential, 0)) {
		return fmt.Errorf("%w: potential", ErrNumerical)
	}
	return nil
}

// IntegrationCycle advances momenta and positions by one full step of
// the selected scheme, recomputing derivatives before each stage.
func (e *DerivEngine) IntegrationCycle(mom vecmath.VecArray, dt, maxForce float32, kind integrators.Kind) error {
	for _, stage := range integrators.Schedule(kind, dt) {
		if err := e.Compute(DerivOnly); err != nil {
			return err
		}
		integrators.Stage(mom, e.Pos.Output, e.Pos.Sens,
			stage.VelFactor, stage.PosFactor, maxForce, e.Pos.NAtom)
	}
	for a := 0; a < e.Pos.NAtom; a++ {
		if !vecmath.LoadVec3(e.Pos.Output, a).IsFinite() {
			return fmt.Errorf("%w: position of atom %d", ErrNumerical, a)
		}
	}
	return nil
}

// GetComputation looks up a node by name and returns its computation
// as the requested concrete type.
func GetComputation[T any](e *DerivEngine, name string) (T, error) {
	var zero T
	gn, err := e.Get(name)
	if err != nil {
		return zero, err
	}
	c, ok := gn.Computation.(T)
	if !ok {
		return zero, fmt.Errorf("%w: node %q does not have the requested type", ErrConfiguration, name)
	}
	return c, nil
}

// GetNHBond reads the hydrogen-bond counter node if the graph has one,
// returning -1 otherwise.
func GetNHBond(e *DerivEngine) float64 {
	for i := range e.Nodes {
		if h, ok := e.Nodes[i].Computation.(HBondSource); ok {
			return h.NHBond()
		}
	}
	return -1
}
