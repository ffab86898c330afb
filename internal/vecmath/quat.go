package vecmath

import "math"

// Quat is a rotation quaternion stored (w, x, y, z).
type Quat [4]float32

// Conj returns the conjugate quaternion.
func (q Quat) Conj() Quat { return Quat{q[0], -q[1], -q[2], -q[3]} }

// Mul returns the Hamilton product q*r.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		q[0]*r[0] - q[1]*r[1] - q[2]*r[2] - q[3]*r[3],
		q[0]*r[1] + q[1]*r[0] + q[2]*r[3] - q[3]*r[2],
		q[0]*r[2] - q[1]*r[3] + q[2]*r[0] + q[3]*r[1],
		q[0]*r[3] + q[1]*r[2] - q[2]*r[1] + q[3]*r[0],
	}
}

// Normalized rescales q to unit magnitude.
func (q Quat) Normalized() Quat {
	m := float32(math.Sqrt(float64(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])))
	if m == 0 {
		return q
	}
	inv := 1 / m
	return Quat{q[0] * inv, q[1] * inv, q[2] * inv, q[3] * inv}
}

// Rotate applies the rotation q to a vector.
func (q Quat) Rotate(v Vec3) Vec3 {
	p := q.Mul(Quat{0, v[0], v[1], v[2]}).Mul(q.Conj())
	return Vec3{p[1], p[2], p[3]}
}

// AxisAngle builds the quaternion rotating by angle about a unit axis.
func AxisAngle(axis Vec3, angle float64) Quat {
	s := float32(math.Sin(angle / 2))
	return Quat{float32(math.Cos(angle / 2)), axis[0] * s, axis[1] * s, axis[2] * s}
}

// TorqueToQuatDeriv converts a body torque into the four quaternion
// sensitivities for the orientation q, dq = 2 * (0, tau) ⊗ q, that is
// (-2 tau·q_v, 2 q_w tau + 2 tau × q_v).
func TorqueToQuatDeriv(q Quat, tau Vec3) Quat {
	qv := Vec3{q[1], q[2], q[3]}
	w := -2 * tau.Dot(qv)
	v := tau.Scale(2 * q[0]).Add(tau.Cross(qv).Scale(2))
	return Quat{w, v[0], v[1], v[2]}
}
