package potential

import (
	"math"
	"testing"

	"github.com/r-dsouza/molgrad/internal/engine"
	"github.com/r-dsouza/molgrad/internal/vecmath"
)

func buildHBondEngine(t *testing.T, coords []vecmath.Vec3, scale float64) (*engine.DerivEngine, *HBondCount) {
	t.Helper()
	e := engine.New(len(coords))
	for a, c := range coords {
		vecmath.StoreVec3(e.Pos.Output, a, c)
	}

	grp := engine.Group{
		Name: "hbond_count_test",
		Attrs: map[string]any{
			"donors":    []any{[]any{0}, []any{1}},
			"acceptors": []any{[]any{2}, []any{3}},
			"radius":    3.0,
			"width":     0.25,
			"scale":     scale,
		},
	}
	node, err := NewHBondCount(grp, &e.Pos.CoordNode)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.AddNode("hbond_count_test", node, []string{"pos"}); err != nil {
		t.Fatal(err)
	}
	return e, node
}

func hbondCoords() []vecmath.Vec3 {
	return []vecmath.Vec3{
		{0, 0, 0},
		{0.5, 4.0, 0},
		{2.8, 0.2, 0.1}, // close to donor 0
		{9, 9, 9},       // far from everything
	}
}

func TestHBondCountValue(t *testing.T) {
	e, node := buildHBondEngine(t, hbondCoords(), -0.5)

	if node.NHBond() != -1 {
		t.Errorf("expected -1 before any evaluation, got %f", node.NHBond())
	}

	if err := e.Compute(engine.PotentialAndDeriv); err != nil {
		t.Fatal(err)
	}

	n := node.NHBond()
	if n < 0.5 || n > 2.5 {
		t.Errorf("contact count %f outside plausible range", n)
	}
	// The 0-2 pair sits inside the radius, all others well outside.
	if n < 0.6 {
		t.Errorf("close pair should count near 1, got %f", n)
	}

	if math.Abs(e.Potential+0.5*n) > 1e-6 {
		t.Errorf("potential %f inconsistent with scale*count %f", e.Potential, -0.5*n)
	}

	if got := engine.GetNHBond(e); got != n {
		t.Errorf("GetNHBond = %f, want %f", got, n)
	}

	v, err := node.ValueByName("n_hbond")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(v[0])-n) > 1e-5 {
		t.Errorf("ValueByName n_hbond = %f, want %f", v[0], n)
	}
}

func TestHBondGradientCheck(t *testing.T) {
	e, _ := buildHBondEngine(t, hbondCoords(), -2.0)

	dev, err := engine.CheckNodeDeriv(e, "hbond_count_test", 1e-2)
	if err != nil {
		t.Fatal(err)
	}
	if dev > 1e-3 {
		t.Errorf("relative RMS deviation %.2e exceeds 1e-3", dev)
	}
}

func TestHBondZeroScaleHasNoForce(t *testing.T) {
	e, node := buildHBondEngine(t, hbondCoords(), 0)

	if err := e.Compute(engine.PotentialAndDeriv); err != nil {
		t.Fatal(err)
	}

	if e.Potential != 0 {
		t.Errorf("pure counter should not contribute potential, got %f", e.Potential)
	}
	if node.NHBond() <= 0 {
		t.Errorf("counter should still count, got %f", node.NHBond())
	}
	for a := 0; a < 4; a++ {
		if g := vecmath.LoadVec3(e.Pos.Sens, a); g.Mag() != 0 {
			t.Errorf("pure counter should not exert force, atom %d has %v", a, g)
		}
	}
}
