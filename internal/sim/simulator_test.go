package sim_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/r-dsouza/molgrad/internal/engine"
	"github.com/r-dsouza/molgrad/internal/integrators"
	"github.com/r-dsouza/molgrad/internal/metrics"
	"github.com/r-dsouza/molgrad/internal/potential"
	"github.com/r-dsouza/molgrad/internal/sim"
	"github.com/r-dsouza/molgrad/internal/vecmath"
)

// chainEngine builds nAtom atoms on a line joined by unit-length
// harmonic bonds, slightly stretched so the system oscillates.
func chainEngine(nAtom int) *engine.DerivEngine {
	e := engine.New(nAtom)
	for a := 0; a < nAtom; a++ {
		vecmath.StoreVec3(e.Pos.Output, a, vecmath.Vec3{1.02 * float32(a), 0, 0})
	}

	pairs := make([]any, 0, nAtom-1)
	equil := make([]any, 0, nAtom-1)
	ks := make([]any, 0, nAtom-1)
	for a := 0; a < nAtom-1; a++ {
		pairs = append(pairs, []any{a, a + 1})
		equil = append(equil, 1.0)
		ks = append(ks, 100.0)
	}
	grp := engine.Group{
		Name: "dist_spring_chain",
		Attrs: map[string]any{
			"pairs":        pairs,
			"equil":        equil,
			"spring_const": ks,
		},
	}
	node, err := potential.NewDistSpring(grp, &e.Pos.CoordNode)
	Expect(err).NotTo(HaveOccurred())
	Expect(e.AddNode("dist_spring_chain", node, []string{"pos"})).To(Succeed())
	return e
}

var _ = Describe("Simulator", func() {
	newSim := func(nAtom int, opts sim.Options) *sim.Simulator {
		s, err := sim.New(chainEngine(nAtom), opts)
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	It("rejects non-positive step counts and timesteps", func() {
		_, err := sim.New(chainEngine(2), sim.Options{Dt: 0.001, Steps: 0})
		Expect(err).To(HaveOccurred())
		_, err = sim.New(chainEngine(2), sim.Options{Dt: 0, Steps: 10})
		Expect(err).To(HaveOccurred())
	})

	It("records one sample per sampling interval plus the start", func() {
		s := newSim(4, sim.Options{Dt: 0.001, Steps: 100, MaxForce: 1e6, SampleEvery: 10})
		res, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.StepsTaken).To(Equal(100))
		Expect(res.Samples).To(HaveLen(11))
		Expect(res.Samples[0].Step).To(Equal(0))
		Expect(res.Samples[10].Step).To(Equal(100))
	})

	It("keeps the total energy nearly constant under Verlet", func() {
		s := newSim(6, sim.Options{
			Dt: 0.001, Steps: 2000, MaxForce: 1e6,
			Integrator: integrators.Verlet, Temperature: 0.1, Seed: 3,
		})
		s.InitVelocities()
		drift := metrics.NewEnergyDrift()
		s.AddMetric(drift)

		_, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(drift.Value()).To(BeNumerically("<", 0.01))
	})

	It("removes net momentum when initializing velocities", func() {
		s := newSim(8, sim.Options{Dt: 0.001, Steps: 1, Temperature: 1.0, Seed: 42})
		s.InitVelocities()

		var net vecmath.Vec3
		for a := 0; a < 8; a++ {
			net = net.Add(vecmath.LoadVec3(s.Momentum(), a))
		}
		Expect(net.Mag()).To(BeNumerically("<", 1e-4))
		Expect(s.KineticEnergy()).To(BeNumerically(">", 0))
	})

	It("recenters the centroid on schedule", func() {
		s := newSim(4, sim.Options{
			Dt: 0.001, Steps: 10, MaxForce: 1e6, RecenterEvery: 10,
		})
		_, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		var centroid vecmath.Vec3
		for a := 0; a < 4; a++ {
			centroid = centroid.Add(vecmath.LoadVec3(s.Engine().Pos.Output, a))
		}
		Expect(centroid.Scale(0.25).Mag()).To(BeNumerically("<", 1e-4))
	})

	It("stops when the context is cancelled", func() {
		s := newSim(4, sim.Options{Dt: 0.001, Steps: 100000, MaxForce: 1e6})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.Run(ctx)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("surfaces numerical blowup as a step error", func() {
		// An absurd timestep detonates the harmonic chain within a few
		// cycles.
		s := newSim(4, sim.Options{Dt: 1e10, Steps: 50, MaxForce: 0})
		_, err := s.Run(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(err).To(BeAssignableToTypeOf(sim.StepError{}))
	})

	It("reports metric values in the result", func() {
		s := newSim(4, sim.Options{Dt: 0.001, Steps: 50, MaxForce: 1e6})
		s.AddMetric(metrics.NewMeanEnergy())
		s.AddMetric(metrics.NewMeanHBond())

		res, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Metrics).To(HaveKey("mean_energy"))
		// No counter node in the graph.
		Expect(res.Metrics["mean_hbond"]).To(Equal(-1.0))
	})
})
