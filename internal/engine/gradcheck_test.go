package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-dsouza/molgrad/internal/vecmath"
)

func TestCentralDifferenceCartesian(t *testing.T) {
	input := []float32{1.0, 2.0}
	output := make([]float32, 1)
	compute := func() {
		output[0] = input[0]*input[0] + 3*input[1]
	}
	compute()

	jac := CentralDifference(compute, input, output, 1e-3, CartesianValue)

	require.Len(t, jac, 2)
	assert.InDelta(t, 2.0, float64(jac[0]), 1e-3)
	assert.InDelta(t, 3.0, float64(jac[1]), 1e-3)

	// Inputs and outputs are restored after probing.
	assert.Equal(t, float32(1.0), input[0])
	assert.InDelta(t, 7.0, float64(output[0]), 1e-6)
}

func TestCentralDifferenceAngular(t *testing.T) {
	// The output angle crosses the pi branch cut; naive differences
	// would see a 2*pi jump.
	input := []float32{float32(math.Pi) - 1e-4}
	output := make([]float32, 1)
	compute := func() {
		output[0] = float32(vecmath.WrapAngle(float64(input[0])))
	}
	compute()

	jac := CentralDifference(compute, input, output, 1e-2, AngularValue)

	require.Len(t, jac, 1)
	assert.InDelta(t, 1.0, float64(jac[0]), 1e-3)
}

func TestCentralDifferenceBody(t *testing.T) {
	// Height of a body-fixed lever arm under the element's rotation:
	// f(q, c) = (q R a)_z + c_z with a = (1, 0, 0).
	arm := vecmath.Vec3{1, 0, 0}
	q := vecmath.AxisAngle(vecmath.Vec3{0, 1, 0}, 0.3)
	input := []float32{q[0], q[1], q[2], q[3], 0.5, -1, 2}
	output := make([]float32, 1)
	compute := func() {
		rot := vecmath.Quat{input[0], input[1], input[2], input[3]}
		tip := rot.Rotate(arm)
		output[0] = tip[2] + input[6]
	}
	compute()

	jac := CentralDifference(compute, input, output, 1e-3, BodyValue)
	require.Len(t, jac, 7)

	// Analytical quaternion sensitivity via the torque identity: the
	// body-frame gradient of tip_z about each axis is (a x (R^T e_z)).
	ez := q.Conj().Rotate(vecmath.Vec3{0, 0, 1})
	tau := arm.Cross(ez)
	want := vecmath.TorqueToQuatDeriv(q, tau)
	for r := 0; r < 4; r++ {
		assert.InDelta(t, float64(want[r]), float64(jac[r]), 1e-3, "quat row %d", r)
	}

	// Translation rows: only z moves the output.
	assert.InDelta(t, 0.0, float64(jac[4]), 1e-4)
	assert.InDelta(t, 0.0, float64(jac[5]), 1e-4)
	assert.InDelta(t, 1.0, float64(jac[6]), 1e-4)
}

func TestRelativeRMSDeviation(t *testing.T) {
	dev, err := RelativeRMSDeviation([]float32{3, 4}, []float32{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 0.0, dev)

	dev, err = RelativeRMSDeviation([]float32{3, 4}, []float32{3, 5})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, dev, 1e-9)

	_, err = RelativeRMSDeviation([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrShape)
}

func TestCheckNodeDeriv(t *testing.T) {
	e := New(3)
	coords := []vecmath.Vec3{{0.1, -0.2, 0.3}, {1.1, 0.4, -0.2}, {2.3, 1.0, 0.6}}
	for a, c := range coords {
		vecmath.StoreVec3(e.Pos.Output, a, c)
	}
	require.NoError(t, e.AddNode("spring", newTestSpring(&e.Pos.CoordNode, 10), []string{"pos"}))

	dev, err := CheckNodeDeriv(e, "spring", 1e-2)
	require.NoError(t, err)
	assert.Less(t, dev, 1e-3)
}

func TestCheckEngineDerivChained(t *testing.T) {
	e := New(2)
	vecmath.StoreVec3(e.Pos.Output, 0, vecmath.Vec3{0.3, 0.9, -0.4})
	vecmath.StoreVec3(e.Pos.Output, 1, vecmath.Vec3{-1.2, 0.1, 0.8})

	scaled := newTestScale(&e.Pos.CoordNode)
	require.NoError(t, e.AddNode("scaled", scaled, []string{"pos"}))
	require.NoError(t, e.AddNode("spring", newTestSpring(&scaled.CoordNode, 5), []string{"scaled"}))

	dev, err := CheckEngineDeriv(e, 1e-2)
	require.NoError(t, err)
	assert.Less(t, dev, 1e-3)
}
