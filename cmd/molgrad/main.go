package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/r-dsouza/molgrad/internal/config"
	"github.com/r-dsouza/molgrad/internal/engine"
	"github.com/r-dsouza/molgrad/internal/integrators"
	"github.com/r-dsouza/molgrad/internal/metrics"
	_ "github.com/r-dsouza/molgrad/internal/potential"
	"github.com/r-dsouza/molgrad/internal/sim"
	"github.com/r-dsouza/molgrad/internal/storage"
	"github.com/r-dsouza/molgrad/internal/tui"
)

var (
	dataDir      string
	dt           float64
	steps        int
	maxForce     float64
	seed         int64
	temperature  float64
	integrator   string
	recenterInt  int
	xyOnly       bool
	sampleEvery  int
	plot         bool
	save         bool
	eps          float64
	tol          float64
	checkNode    string
	stepsPerTick int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "molgrad",
		Short: "differentiable molecular energy engine",
	}

	runCmd := &cobra.Command{
		Use:   "run [system.yaml]",
		Short: "run a simulation",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().Float64Var(&dt, "dt", 0, "timestep override")
	runCmd.Flags().IntVar(&steps, "steps", 0, "step count override")
	runCmd.Flags().Float64Var(&maxForce, "max-force", 0, "force clipping threshold override")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "velocity seed override")
	runCmd.Flags().Float64Var(&temperature, "temperature", 0, "velocity temperature override")
	runCmd.Flags().StringVar(&integrator, "integrator", "", "verlet or predescu")
	runCmd.Flags().IntVar(&recenterInt, "recenter-every", 0, "recenter interval override")
	runCmd.Flags().BoolVar(&xyOnly, "xy-only", false, "recenter x and y only")
	runCmd.Flags().IntVar(&sampleEvery, "sample-every", 10, "trace sampling interval")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot the energy trace")
	runCmd.Flags().BoolVar(&save, "save", false, "persist the run under the data directory")

	checkCmd := &cobra.Command{
		Use:   "check [system.yaml]",
		Short: "gradient-check the declared nodes",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	checkCmd.Flags().Float64Var(&eps, "eps", 1e-2, "finite difference step")
	checkCmd.Flags().Float64Var(&tol, "tol", 1e-3, "relative RMS threshold")
	checkCmd.Flags().StringVar(&checkNode, "node", "", "check only this node")

	liveCmd := &cobra.Command{
		Use:   "live [system.yaml]",
		Short: "watch a simulation in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().IntVar(&stepsPerTick, "steps-per-tick", 10, "integration cycles per frame")

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".molgrad", "data directory")
	rootCmd.AddCommand(runCmd, checkCmd, liveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildSimulator loads the system file, applies flag overrides and
// wires a simulator around the materialized graph.
func buildSimulator(cmd *cobra.Command, path string) (*sim.Simulator, *config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("steps") {
		cfg.Steps = steps
	}
	if cmd.Flags().Changed("max-force") {
		cfg.MaxForce = maxForce
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("temperature") {
		cfg.Temperature = temperature
	}
	if cmd.Flags().Changed("integrator") {
		cfg.Integrator = integrator
	}
	if cmd.Flags().Changed("recenter-every") {
		cfg.RecenterEvery = recenterInt
	}
	if cmd.Flags().Changed("xy-only") {
		cfg.XYRecenterOnly = xyOnly
	}

	kind, err := parseIntegrator(cfg.Integrator)
	if err != nil {
		return nil, nil, err
	}

	e, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}

	s, err := sim.New(e, sim.Options{
		Dt:             cfg.Dt,
		Steps:          cfg.Steps,
		MaxForce:       cfg.MaxForce,
		Integrator:     kind,
		Temperature:    cfg.Temperature,
		Seed:           cfg.Seed,
		RecenterEvery:  cfg.RecenterEvery,
		XYRecenterOnly: cfg.XYRecenterOnly,
		SampleEvery:    sampleEvery,
	})
	if err != nil {
		return nil, nil, err
	}
	s.InitVelocities()
	return s, cfg, nil
}

func parseIntegrator(name string) (integrators.Kind, error) {
	switch name {
	case "", "verlet":
		return integrators.Verlet, nil
	case "predescu":
		return integrators.Predescu, nil
	}
	return 0, fmt.Errorf("unknown integrator %q", name)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	s, cfg, err := buildSimulator(cmd, args[0])
	if err != nil {
		return err
	}

	drift := metrics.NewEnergyDrift()
	s.AddMetric(drift)
	s.AddMetric(metrics.NewMeanEnergy())
	s.AddMetric(metrics.NewMeanHBond())

	result, err := s.Run(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "system\t%s\n", args[0])
	fmt.Fprintf(w, "steps\t%d\n", result.StepsTaken)
	if len(result.Samples) > 0 {
		last := result.Samples[len(result.Samples)-1]
		fmt.Fprintf(w, "potential\t%.6f\n", last.Potential)
		fmt.Fprintf(w, "kinetic\t%.6f\n", last.Kinetic)
		fmt.Fprintf(w, "total\t%.6f\n", last.Total())
		if last.NHBond >= 0 {
			fmt.Fprintf(w, "n_hbond\t%.2f\n", last.NHBond)
		}
	}
	for name, value := range result.Metrics {
		fmt.Fprintf(w, "%s\t%.6g\n", name, value)
	}
	w.Flush()

	if plot && len(result.Samples) > 1 {
		trace := make([]float64, len(result.Samples))
		for i, sample := range result.Samples {
			trace[i] = sample.Total()
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(trace,
			asciigraph.Height(12),
			asciigraph.Width(70),
			asciigraph.Caption("total energy")))
	}

	if save {
		store := storage.New(dataDir)
		if err := store.Init(); err != nil {
			return err
		}
		runID, err := store.Save(args[0], cfg.Dt, cfg.Seed, cfg.Integrator, s.Engine(), result)
		if err != nil {
			return err
		}
		fmt.Printf("saved run %s\n", runID)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	e, err := cfg.Build()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "node\trel rms\tstatus")

	failed := false
	checked := 0
	for i := range e.Nodes {
		gn := &e.Nodes[i]
		if checkNode != "" && gn.Name != checkNode {
			continue
		}
		if _, ok := gn.Computation.(engine.PairProvider); !ok {
			continue
		}
		if _, ok := gn.Computation.(engine.PotentialProvider); !ok {
			continue
		}

		dev, err := engine.CheckNodeDeriv(e, gn.Name, float32(eps))
		if err != nil {
			return err
		}
		status := "ok"
		if dev > tol {
			status = "FAIL"
			failed = true
		}
		fmt.Fprintf(w, "%s\t%.3e\t%s\n", gn.Name, dev, status)
		checked++
	}

	dev, err := engine.CheckEngineDeriv(e, float32(eps))
	if err != nil {
		return err
	}
	status := "ok"
	if dev > tol {
		status = "FAIL"
		failed = true
	}
	fmt.Fprintf(w, "engine total\t%.3e\t%s\n", dev, status)
	w.Flush()

	if checkNode != "" && checked == 0 {
		return fmt.Errorf("no checkable node named %q", checkNode)
	}
	if failed {
		return fmt.Errorf("gradient check failed above tolerance %.1e", tol)
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	s, cfg, err := buildSimulator(cmd, args[0])
	if err != nil {
		return err
	}
	return tui.Run(tui.NewModel(s, args[0], stepsPerTick, cfg.Steps))
}
