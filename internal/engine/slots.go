package engine

import (
	"fmt"

	"github.com/r-dsouza/molgrad/internal/vecmath"
)

// CoordPair is handed back to a consumer when it registers a dependency
// on one element of an upstream coordinate node. Index is the upstream
// element; Slot is the exclusive derivative-block offset assigned to
// this request.
type CoordPair struct {
	Index int
	Slot  uint16
}

// DerivRecord is one row of the derivative tape: a consumer depending
// on element Atom deposits OutputWidth derivative blocks starting at
// block offset Loc.
type DerivRecord struct {
	Atom        int
	Loc         uint16
	OutputWidth int
}

// SlotMachine is the per-node derivative ledger. Every dependency
// registration reserves a run of zeroed derivative blocks in the
// accumulator; the tape remembers which upstream element each run
// belongs to so the reverse pass can gather deposits back into the
// owner's sens buffer. Slots are assigned strictly sequentially and
// never move for the engine's lifetime.
type SlotMachine struct {
	width  int
	offset uint16
	tape   []DerivRecord
	accum  []float32
}

// NewSlotMachine builds an empty ledger for a node of element width
// width.
func NewSlotMachine(width int) SlotMachine {
	return SlotMachine{width: width}
}

// AddRequest reserves outputWidth consecutive derivative blocks for a
// consumer depending on element pair.Index. On return pair.Slot holds
// the assigned offset. The accumulator grows by outputWidth*width
// zeroed floats.
func (s *SlotMachine) AddRequest(outputWidth int, pair *CoordPair) {
	pair.Slot = s.offset
	s.tape = append(s.tape, DerivRecord{Atom: pair.Index, Loc: s.offset, OutputWidth: outputWidth})
	s.offset += uint16(outputWidth)
	s.accum = append(s.accum, make([]float32, outputWidth*s.width)...)
}

// Width returns the element width of the owning node.
func (s *SlotMachine) Width() int { return s.width }

// Offset returns the total number of derivative blocks allocated.
func (s *SlotMachine) Offset() int { return int(s.offset) }

// Tape returns the derivative records in registration order.
func (s *SlotMachine) Tape() []DerivRecord { return s.tape }

// Accum returns a view over the whole accumulator buffer.
func (s *SlotMachine) Accum() []float32 { return s.accum }

// Block returns the width-sized derivative block j blocks past slot.
func (s *SlotMachine) Block(slot uint16, j int) []float32 {
	base := (int(slot) + j) * s.width
	return s.accum[base : base+s.width]
}

// SetBlock overwrites the block j blocks past slot.
func (s *SlotMachine) SetBlock(slot uint16, j int, v []float32) {
	copy(s.Block(slot, j), v[:s.width])
}

// AddToBlock accumulates v onto the block j blocks past slot.
func (s *SlotMachine) AddToBlock(slot uint16, j int, v []float32) {
	blk := s.Block(slot, j)
	for d := range blk {
		blk[d] += v[d]
	}
}

// ScaleBlock multiplies the block j blocks past slot by f. Consumers
// that stash raw local Jacobians during Forward flush them this way
// once their own output sensitivity is known.
func (s *SlotMachine) ScaleBlock(slot uint16, j int, f float32) {
	blk := s.Block(slot, j)
	for d := range blk {
		blk[d] *= f
	}
}

// Zero clears every accumulator block.
func (s *SlotMachine) Zero() {
	for i := range s.accum {
		s.accum[i] = 0
	}
}

// Gather sums every tape record's deposited blocks onto sens, keyed by
// the recorded upstream element. sens must have the owner's shape.
func (s *SlotMachine) Gather(sens vecmath.VecArray) {
	for _, r := range s.tape {
		for j := 0; j < r.OutputWidth; j++ {
			blk := s.Block(r.Loc, j)
			for d := 0; d < s.width; d++ {
				sens.Add(d, r.Atom, blk[d])
			}
		}
	}
}

// CheckSize verifies the accumulator matches the tape, returning
// ErrShape on disagreement.
func (s *SlotMachine) CheckSize() error {
	want := 0
	for _, r := range s.tape {
		want += r.OutputWidth
	}
	if want != int(s.offset) || want*s.width != len(s.accum) {
		return fmt.Errorf("%w: accumulator holds %d blocks, tape requires %d",
			ErrShape, len(s.accum)/s.width, want)
	}
	return nil
}

// Slot-list capacities for nodes with one or two coordinate inputs.
const (
	SlotCapFirst  = 6
	SlotCapSecond = 5
)

// SlotEmpty marks an unused entry in an AutoDiffParams slot list.
const SlotEmpty = ^uint16(0)

// AutoDiffParams is the fixed-capacity per-element record of the slots
// a consumer has been assigned by up to two input coordinate nodes.
type AutoDiffParams struct {
	slots1 [SlotCapFirst]uint16
	slots2 [SlotCapSecond]uint16
	n1, n2 uint8
}

// NewAutoDiffParams returns a record with every entry marked empty.
func NewAutoDiffParams() AutoDiffParams {
	var p AutoDiffParams
	for i := range p.slots1 {
		p.slots1[i] = SlotEmpty
	}
	for i := range p.slots2 {
		p.slots2[i] = SlotEmpty
	}
	return p
}

// AddSlot1 appends a slot assigned by the first input.
func (p *AutoDiffParams) AddSlot1(slot uint16) error {
	if int(p.n1) == SlotCapFirst {
		return fmt.Errorf("%w: more than %d slots from first input", ErrShape, SlotCapFirst)
	}
	p.slots1[p.n1] = slot
	p.n1++
	return nil
}

// AddSlot2 appends a slot assigned by the second input.
func (p *AutoDiffParams) AddSlot2(slot uint16) error {
	if int(p.n2) == SlotCapSecond {
		return fmt.Errorf("%w: more than %d slots from second input", ErrShape, SlotCapSecond)
	}
	p.slots2[p.n2] = slot
	p.n2++
	return nil
}

// Slots1 returns the in-use first-input slots.
func (p *AutoDiffParams) Slots1() []uint16 { return p.slots1[:p.n1] }

// Slots2 returns the in-use second-input slots.
func (p *AutoDiffParams) Slots2() []uint16 { return p.slots2[:p.n2] }

// ReverseAutodiff is the generic reverse pass for a coordinate node
// with one or two inputs: gather this node's own deposited output
// sensitivities, then scale the raw Jacobian blocks it stashed in its
// inputs' accumulators during Forward by the matching sensitivity
// component. input2 may be nil.
func ReverseAutodiff(node *CoordNode, input1, input2 *SlotMachine, params []AutoDiffParams) {
	node.GatherSens()
	for e := 0; e < node.NElem; e++ {
		p := &params[e]
		for _, slot := range p.Slots1() {
			for d := 0; d < node.ElemWidth; d++ {
				input1.ScaleBlock(slot, d, node.Sens.At(d, e))
			}
		}
		if input2 == nil {
			continue
		}
		for _, slot := range p.Slots2() {
			for d := 0; d < node.ElemWidth; d++ {
				input2.ScaleBlock(slot, d, node.Sens.At(d, e))
			}
		}
	}
}
