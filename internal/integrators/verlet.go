// Package integrators provides the symplectic update primitives driven
// by the graph engine: the kick/drift integration stage with force
// clipping, centroid recentering, and the stage schedules for the
// velocity-Verlet and Predescu cycles.
package integrators

import (
	"github.com/r-dsouza/molgrad/internal/vecmath"
)

// Kind selects the integration scheme for one cycle.
type Kind int

const (
	Verlet Kind = iota
	Predescu
)

// Predescu force-splitting coefficients.
const (
	predescuA = 0.1932
	predescuB = 0.5
)

// StageCoeff scales one kick/drift stage: the momentum absorbs
// VelFactor times the clipped force, the position VelFactor-kicked
// momentum times PosFactor.
type StageCoeff struct {
	VelFactor float32
	PosFactor float32
}

// Schedule returns the stage coefficients of one full cycle of the
// scheme. The caller recomputes derivatives before each stage.
func Schedule(kind Kind, dt float32) []StageCoeff {
	switch kind {
	case Predescu:
		return []StageCoeff{
			{VelFactor: predescuA * dt, PosFactor: predescuB * dt},
			{VelFactor: (1 - predescuA) * dt, PosFactor: (1 - predescuB) * dt},
		}
	default:
		// Half-kick and full drift, then the closing half-kick against
		// fresh forces.
		return []StageCoeff{
			{VelFactor: 0.5 * dt, PosFactor: dt},
			{VelFactor: 0.5 * dt, PosFactor: 0},
		}
	}
}

// Stage advances momentum and position by one kick/drift stage. Forces
// whose magnitude exceeds maxForce are rescaled onto the threshold
// before the kick; a maxForce of zero disables clipping.
func Stage(mom, pos, deriv vecmath.VecArray, velFactor, posFactor, maxForce float32, nAtom int) {
	for a := 0; a < nAtom; a++ {
		f := vecmath.LoadVec3(deriv, a)
		if maxForce > 0 {
			if mag := f.Mag(); mag > maxForce {
				f = f.Scale(maxForce / mag)
			}
		}

		p := vecmath.LoadVec3(mom, a).Sub(f.Scale(velFactor))
		vecmath.StoreVec3(mom, a, p)

		x := vecmath.LoadVec3(pos, a).Add(p.Scale(posFactor))
		vecmath.StoreVec3(pos, a, x)
	}
}

// Recenter subtracts the centroid from every position. With xyOnly the
// z components are left untouched, which keeps membrane-style systems
// anchored.
func Recenter(pos vecmath.VecArray, xyOnly bool, nAtom int) {
	if nAtom == 0 {
		return
	}

	var sum vecmath.Vec3
	for a := 0; a < nAtom; a++ {
		sum = sum.Add(vecmath.LoadVec3(pos, a))
	}
	center := sum.Scale(1 / float32(nAtom))
	if xyOnly {
		center[2] = 0
	}

	for a := 0; a < nAtom; a++ {
		vecmath.StoreVec3(pos, a, vecmath.LoadVec3(pos, a).Sub(center))
	}
}
