package vecmath

import "math"

// Vec3 is a 3-component float32 vector.
type Vec3 [3]float32

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func (a Vec3) Scale(s float32) Vec3 { return Vec3{a[0] * s, a[1] * s, a[2] * s} }

func (a Vec3) Dot(b Vec3) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func (a Vec3) Mag() float32 {
	return float32(math.Sqrt(float64(a.Dot(a))))
}

func (a Vec3) Mag2() float32 { return a.Dot(a) }

// Normalized returns a unit vector along a. Zero vectors come back
// unchanged.
func (a Vec3) Normalized() Vec3 {
	m := a.Mag()
	if m == 0 {
		return a
	}
	return a.Scale(1 / m)
}

// LoadVec3 reads element e of a width-3 array.
func LoadVec3(v VecArray, e int) Vec3 {
	return Vec3{v.At(0, e), v.At(1, e), v.At(2, e)}
}

// StoreVec3 writes element e of a width-3 array.
func StoreVec3(v VecArray, e int, x Vec3) {
	v.Set(0, e, x[0])
	v.Set(1, e, x[1])
	v.Set(2, e, x[2])
}

// AddVec3 accumulates onto element e of a width-3 array.
func AddVec3(v VecArray, e int, x Vec3) {
	v.Add(0, e, x[0])
	v.Add(1, e, x[1])
	v.Add(2, e, x[2])
}

// IsFinite reports whether every component of x is finite.
func (a Vec3) IsFinite() bool {
	for _, x := range a {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// WrapAngle maps an angle difference into (-pi, pi].
func WrapAngle(x float64) float64 {
	for x > math.Pi {
		x -= 2 * math.Pi
	}
	for x <= -math.Pi {
		x += 2 * math.Pi
	}
	return x
}
