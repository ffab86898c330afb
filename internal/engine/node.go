package engine

import (
	"github.com/r-dsouza/molgrad/internal/vecmath"
)

// ComputeMode selects whether a forward pass must produce a correct
// potential value as well as correct derivatives.
type ComputeMode int

const (
	// DerivOnly promises only that derivatives are correct; nodes may
	// skip scalar potential accumulation when that is cheaper.
	DerivOnly ComputeMode = iota
	// PotentialAndDeriv requires both the potential and its derivative.
	PotentialAndDeriv
)

// Node is the unit of computation in the graph.
type Node interface {
	// Forward reads input node outputs and writes this node's output
	// (coordinate nodes) or potential (potential nodes).
	Forward(mode ComputeMode)
	// Reverse combines the sensitivity to this node's output with cached
	// forward state and pushes sensitivities onto its inputs' slot
	// machine accumulators.
	Reverse()
}

// CoordProvider is implemented by coordinate-producing nodes.
type CoordProvider interface {
	Node
	Coord() *CoordNode
}

// PotentialProvider is implemented by potential-producing nodes.
type PotentialProvider interface {
	Node
	PotentialTerm() float64
}

// Parametric is an optional capability for nodes exposing a tunable
// parameter subset.
type Parametric interface {
	Params() []float32
	SetParams(p []float32) error
	ParamDeriv() []float32
}

// Valuer is an optional capability for nodes answering named value
// queries.
type Valuer interface {
	ValueByName(name string) ([]float32, error)
}

// HBondSource is implemented by nodes that count hydrogen bonds.
type HBondSource interface {
	NHBond() float64
}

// CoordNode is the shared state of every coordinate-producing node:
// the output block, the sensitivity buffer filled during the reverse
// pass, and the slot machine ledgering downstream dependencies.
// Concrete nodes embed it and implement Forward/Reverse around it.
type CoordNode struct {
	NElem     int
	ElemWidth int
	Output    vecmath.VecArray
	Sens      vecmath.VecArray
	Slots     SlotMachine
}

// NewCoordNode builds the buffers for nElem elements of width
// elemWidth. Element extents are padded by the storage layer.
func NewCoordNode(nElem, elemWidth int) CoordNode {
	return CoordNode{
		NElem:     nElem,
		ElemWidth: elemWidth,
		Output:    vecmath.NewVecArray(elemWidth, nElem),
		Sens:      vecmath.NewVecArray(elemWidth, nElem),
		Slots:     NewSlotMachine(elemWidth),
	}
}

// Coord satisfies CoordProvider for every embedding node.
func (c *CoordNode) Coord() *CoordNode { return c }

// GatherSens drains the slot-machine accumulator into Sens. Called at
// the start of the embedding node's Reverse, after every downstream
// consumer has flushed its deposits.
func (c *CoordNode) GatherSens() {
	c.Slots.Gather(c.Sens)
}

// PotentialNode is the shared state of potential-producing nodes. The
// reverse pass is a no-op at the node boundary: the sensitivity of the
// potential to itself is one, so embedding nodes deposit their
// scalar-weighted input derivatives directly during Forward.
type PotentialNode struct {
	Potential float64
}

func (p *PotentialNode) PotentialTerm() float64 { return p.Potential }

func (p *PotentialNode) Reverse() {}

// Pos is the unique leaf coordinate node holding atomic positions. Its
// output is mutated by the integrator between steps; after a reverse
// pass its sens buffer holds dU/dx for every atom.
type Pos struct {
	CoordNode
	NAtom int
}

// NewPos builds the position node for nAtom atoms.
func NewPos(nAtom int) *Pos {
	return &Pos{CoordNode: NewCoordNode(nAtom, 3), NAtom: nAtom}
}

func (p *Pos) Forward(mode ComputeMode) {}

func (p *Pos) Reverse() { p.GatherSens() }
