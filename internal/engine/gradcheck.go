package engine

import (
	"fmt"
	"math"

	"github.com/r-dsouza/molgrad/internal/vecmath"
)

// ValueType tells the finite-difference machinery how to compare
// perturbed outputs.
type ValueType int

const (
	// CartesianValue differences outputs directly.
	CartesianValue ValueType = iota
	// AngularValue unwraps output differences into (-pi, pi].
	AngularValue
	// BodyValue treats the input as 7-wide rigid-body elements
	// (quaternion + center of mass) and differentiates with respect to
	// the six body coordinates, reporting quaternion-space rows.
	BodyValue
)

// CentralDifference estimates the Jacobian of output with respect to
// input by central differences: compute must re-read input and
// refresh output in place. The result is laid out row-major as
// jac[i*len(output)+j] = d output[j] / d input[i]. A final compute
// call restores output for the unperturbed input.
func CentralDifference(compute func(), input, output []float32, eps float32, vt ValueType) []float32 {
	if vt == BodyValue {
		return bodyCentralDifference(compute, input, output, eps)
	}

	nOut := len(output)
	jac := make([]float32, len(input)*nOut)
	plus := make([]float32, nOut)

	for i := range input {
		x := input[i]

		input[i] = x + eps
		compute()
		copy(plus, output)

		input[i] = x - eps
		compute()

		input[i] = x
		for j := 0; j < nOut; j++ {
			diff := float64(plus[j] - output[j])
			if vt == AngularValue {
				diff = vecmath.WrapAngle(diff)
			}
			jac[i*nOut+j] = float32(diff / (2 * float64(eps)))
		}
	}

	compute()
	return jac
}

// bodyCentralDifference probes three body-axis rotations and three
// translations per 7-wide element, then converts each torque row back
// to quaternion sensitivities using the element's orientation at time
// of call.
func bodyCentralDifference(compute func(), input, output []float32, eps float32) []float32 {
	const bodyWidth = 7
	nOut := len(output)
	nElem := len(input) / bodyWidth
	jac := make([]float32, len(input)*nOut)
	plus := make([]float32, nOut)
	saved := make([]float32, bodyWidth)

	axes := [3]vecmath.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

	for e := 0; e < nElem; e++ {
		base := e * bodyWidth
		copy(saved, input[base:base+bodyWidth])
		q := vecmath.Quat{saved[0], saved[1], saved[2], saved[3]}

		// Rotation probes give one torque row per body axis.
		torque := make([]vecmath.Vec3, nOut)
		for k, axis := range axes {
			for _, sign := range []float64{1, -1} {
				dq := vecmath.AxisAngle(axis, sign*float64(eps))
				rot := q.Mul(dq).Normalized()
				input[base+0], input[base+1], input[base+2], input[base+3] = rot[0], rot[1], rot[2], rot[3]
				compute()
				if sign > 0 {
					copy(plus, output)
				}
			}
			copy(input[base:base+bodyWidth], saved)
			for j := 0; j < nOut; j++ {
				torque[j][k] = (plus[j] - output[j]) / (2 * eps)
			}
		}
		for j := 0; j < nOut; j++ {
			dq := vecmath.TorqueToQuatDeriv(q, torque[j])
			for r := 0; r < 4; r++ {
				jac[(base+r)*nOut+j] = dq[r]
			}
		}

		// Translation probes difference the center of mass directly.
		for r := 4; r < bodyWidth; r++ {
			x := input[base+r]
			input[base+r] = x + eps
			compute()
			copy(plus, output)
			input[base+r] = x - eps
			compute()
			input[base+r] = x
			for j := 0; j < nOut; j++ {
				jac[(base+r)*nOut+j] = (plus[j] - output[j]) / (2 * eps)
			}
		}
	}

	compute()
	return jac
}

// RelativeRMSDeviation compares an actual vector against a reference,
// sqrt(sum((a-b)^2) / sum(b^2)).
func RelativeRMSDeviation(reference, actual []float32) (float64, error) {
	if len(reference) != len(actual) {
		return 0, fmt.Errorf("%w: reference has %d entries, actual %d", ErrShape, len(reference), len(actual))
	}
	var diff2, ref2 float64
	for i := range reference {
		d := float64(reference[i] - actual[i])
		diff2 += d * d
		ref2 += float64(reference[i]) * float64(reference[i])
	}
	return math.Sqrt(diff2 / ref2), nil
}

// InputDeps lists the coordinate pairs a node registered against one
// of its inputs, in registration order.
type InputDeps struct {
	Node  *CoordNode
	Pairs []CoordPair
}

// PairProvider is implemented by nodes that expose their registered
// dependencies to the gradient checker.
type PairProvider interface {
	Dependencies() []InputDeps
}

// CheckNodeDeriv compares a potential node's deposited input
// derivatives against central differences of its own potential term,
// returning the relative RMS deviation. The engine is recomputed
// afterwards so its state stays consistent.
func CheckNodeDeriv(e *DerivEngine, name string, eps float32) (float64, error) {
	gn, err := e.Get(name)
	if err != nil {
		return 0, err
	}
	pot, ok := gn.Computation.(PotentialProvider)
	if !ok {
		return 0, fmt.Errorf("%w: node %q is not a potential node", ErrConfiguration, name)
	}
	pairs, ok := gn.Computation.(PairProvider)
	if !ok {
		return 0, fmt.Errorf("%w: node %q does not expose its dependencies", ErrConfiguration, name)
	}

	if err := e.Compute(PotentialAndDeriv); err != nil {
		return 0, err
	}

	// Analytical entries live in the inputs' accumulators, one block
	// per registered pair, deposited by the node's forward pass. A
	// perturbed element moves every term that touches it, so each pair's
	// entry sums the blocks of all pairs on the same element.
	var analytic []float32
	for _, dep := range pairs.Dependencies() {
		for _, p := range dep.Pairs {
			total := make([]float32, dep.Node.ElemWidth)
			for _, q := range dep.Pairs {
				if q.Index != p.Index {
					continue
				}
				for d, v := range dep.Node.Slots.Block(q.Slot, 0) {
					total[d] += v
				}
			}
			analytic = append(analytic, total...)
		}
	}

	var numeric []float32
	for _, dep := range pairs.Dependencies() {
		width := dep.Node.ElemWidth
		for _, p := range dep.Pairs {
			for d := 0; d < width; d++ {
				x := dep.Node.Output.At(d, p.Index)

				dep.Node.Output.Set(d, p.Index, x+eps)
				gn.Computation.Forward(PotentialAndDeriv)
				up := pot.PotentialTerm()

				dep.Node.Output.Set(d, p.Index, x-eps)
				gn.Computation.Forward(PotentialAndDeriv)
				um := pot.PotentialTerm()

				dep.Node.Output.Set(d, p.Index, x)
				numeric = append(numeric, float32((up-um)/(2*float64(eps))))
			}
		}
	}

	if err := e.Compute(PotentialAndDeriv); err != nil {
		return 0, err
	}
	return RelativeRMSDeviation(numeric, analytic)
}

// CheckEngineDeriv compares the full engine gradient in Pos.Sens
// against central differences of the total potential with respect to
// every atomic coordinate.
func CheckEngineDeriv(e *DerivEngine, eps float32) (float64, error) {
	if err := e.Compute(PotentialAndDeriv); err != nil {
		return 0, err
	}

	nAtom := e.Pos.NAtom
	analytic := make([]float32, 0, 3*nAtom)
	for a := 0; a < nAtom; a++ {
		for d := 0; d < 3; d++ {
			analytic = append(analytic, e.Pos.Sens.At(d, a))
		}
	}

	numeric := make([]float32, 0, 3*nAtom)
	for a := 0; a < nAtom; a++ {
		for d := 0; d < 3; d++ {
			x := e.Pos.Output.At(d, a)

			e.Pos.Output.Set(d, a, x+eps)
			if err := e.Compute(PotentialAndDeriv); err != nil {
				return 0, err
			}
			up := e.Potential

			e.Pos.Output.Set(d, a, x-eps)
			if err := e.Compute(PotentialAndDeriv); err != nil {
				return 0, err
			}
			um := e.Potential

			e.Pos.Output.Set(d, a, x)
			numeric = append(numeric, float32((up-um)/(2*float64(eps))))
		}
	}

	if err := e.Compute(PotentialAndDeriv); err != nil {
		return 0, err
	}
	return RelativeRMSDeviation(numeric, analytic)
}
