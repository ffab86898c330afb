package vecmath

import (
	"math"
	"testing"
)

func TestVecArrayPadding(t *testing.T) {
	v := NewVecArray(3, 10)

	if v.NElem != 10 {
		t.Errorf("expected 10 elements, got %d", v.NElem)
	}
	if len(v.Row(0)) != 12 {
		t.Errorf("expected row padded to 12, got %d", len(v.Row(0)))
	}

	w := NewVecArray(3, 12)
	if len(w.Row(0)) != 12 {
		t.Errorf("expected exact multiple to stay 12, got %d", len(w.Row(0)))
	}
}

func TestVecArrayAccess(t *testing.T) {
	v := NewVecArray(2, 5)
	v.Set(0, 3, 1.5)
	v.Set(1, 3, -2.0)
	v.Add(1, 3, 0.5)

	if v.At(0, 3) != 1.5 {
		t.Errorf("expected 1.5, got %f", v.At(0, 3))
	}
	if v.At(1, 3) != -1.5 {
		t.Errorf("expected -1.5, got %f", v.At(1, 3))
	}
}

func TestVecArrayCopyRoundTrip(t *testing.T) {
	v := NewVecArray(3, 4)
	for e := 0; e < 4; e++ {
		for d := 0; d < 3; d++ {
			v.Set(d, e, float32(10*e+d))
		}
	}

	buf := make([]float32, 12)
	v.CopyTo(buf)
	if buf[0] != 0 || buf[1] != 1 || buf[2] != 2 || buf[3] != 10 {
		t.Errorf("unexpected flat layout: %v", buf[:4])
	}

	w := NewVecArray(3, 4)
	w.CopyFrom(buf)
	for e := 0; e < 4; e++ {
		for d := 0; d < 3; d++ {
			if w.At(d, e) != v.At(d, e) {
				t.Fatalf("round trip mismatch at (%d,%d)", d, e)
			}
		}
	}
}

func TestVec3Ops(t *testing.T) {
	a := Vec3{1, 0, 0}
	b := Vec3{0, 1, 0}

	c := a.Cross(b)
	if c != (Vec3{0, 0, 1}) {
		t.Errorf("expected z unit vector, got %v", c)
	}
	if a.Dot(b) != 0 {
		t.Errorf("expected orthogonal dot 0, got %f", a.Dot(b))
	}

	d := Vec3{3, 4, 0}
	if math.Abs(float64(d.Mag())-5) > 1e-6 {
		t.Errorf("expected magnitude 5, got %f", d.Mag())
	}
	n := d.Normalized()
	if math.Abs(float64(n.Mag())-1) > 1e-6 {
		t.Errorf("expected unit magnitude, got %f", n.Mag())
	}
}

func TestWrapAngle(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{math.Pi + 0.1, -math.Pi + 0.1},
		{-math.Pi - 0.1, math.Pi - 0.1},
		{2 * math.Pi, 0},
	}
	for _, c := range cases {
		got := WrapAngle(c.in)
		if math.Abs(got-c.want) > 1e-12 {
			t.Errorf("WrapAngle(%f) = %f, want %f", c.in, got, c.want)
		}
	}
}

func TestQuatRotate(t *testing.T) {
	// Quarter turn about z maps x onto y.
	q := AxisAngle(Vec3{0, 0, 1}, math.Pi/2)
	v := q.Rotate(Vec3{1, 0, 0})

	if math.Abs(float64(v[0])) > 1e-6 || math.Abs(float64(v[1])-1) > 1e-6 {
		t.Errorf("expected (0,1,0), got %v", v)
	}
}

func TestQuatMulIdentity(t *testing.T) {
	q := AxisAngle(Vec3{0, 1, 0}.Normalized(), 0.7)
	p := q.Mul(q.Conj())

	if math.Abs(float64(p[0])-1) > 1e-6 {
		t.Errorf("expected identity rotation, got %v", p)
	}
	for i := 1; i < 4; i++ {
		if math.Abs(float64(p[i])) > 1e-6 {
			t.Errorf("expected zero vector part, got %v", p)
		}
	}
}

func TestTorqueToQuatDeriv(t *testing.T) {
	q := Quat{1, 0, 0, 0}
	tau := Vec3{0, 0, 1}

	dq := TorqueToQuatDeriv(q, tau)
	want := Quat{0, 0, 0, 2}
	for i := range dq {
		if math.Abs(float64(dq[i]-want[i])) > 1e-6 {
			t.Errorf("identity-orientation deriv = %v, want %v", dq, want)
		}
	}
}
