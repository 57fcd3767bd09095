package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/gravlab/internal/config"
	"github.com/san-kum/gravlab/internal/engine"
	"github.com/san-kum/gravlab/internal/gravity"
	"github.com/san-kum/gravlab/internal/metrics"
	"github.com/san-kum/gravlab/internal/step"
	"github.com/san-kum/gravlab/internal/storage"
	"github.com/san-kum/gravlab/internal/viz"
)

var (
	dataDir    string
	particles  int
	partitions int
	steps      int
	groupSize  int
	haloWidth  float64
	theta      float64
	softening  float64
	gconst     float64
	krho       float64
	etaAcc     float64
	maxDt      float64
	backend    string
	seed       int64
	configFile string
	preset     string
	verbose    bool
	plotColumn string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gravlab",
		Short: "distributed barnes-hut gravity lab",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gravlab", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation",
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with a live dashboard",
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time the force evaluation at several opening angles",
		RunE:  benchTraversal,
	}
	addRunFlags(benchCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range config.ListPresets() {
				fmt.Println(p)
			}
			return nil
		},
	}

	backendsCmd := &cobra.Command{
		Use:   "backends",
		Short: "show force-evaluation backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := gravity.Config{G: 1, Theta: 0.5, Eps: 0.01}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, b := range []gravity.Backend{gravity.NewCPU(cfg), gravity.NewCUDA(cfg)} {
				fmt.Fprintf(w, "%s\tavailable=%v\n", b.Name(), b.Available())
				b.Cleanup()
			}
			return w.Flush()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			ids, err := st.List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, id := range ids {
				meta, err := st.Load(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\tn=%d\tk=%d\tsteps=%d\n",
					id, meta.Timestamp.Format(time.RFC3339),
					meta.Config.Particles, meta.Config.Partitions, meta.Config.Steps)
			}
			return w.Flush()
		},
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run's step series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := storage.New(dataDir).Series(args[0], plotColumn)
			if err != nil {
				return err
			}
			if len(series) < 2 {
				return fmt.Errorf("run %s has too few steps to plot", args[0])
			}
			fmt.Println(asciigraph.Plot(series,
				asciigraph.Height(15),
				asciigraph.Width(70),
				asciigraph.Caption(fmt.Sprintf("%s per step", plotColumn))))
			return nil
		},
	}
	plotCmd.Flags().StringVar(&plotColumn, "column", "egrav", "steps.csv column to plot")

	rootCmd.AddCommand(runCmd, liveCmd, benchCmd, presetsCmd, backendsCmd, listCmd, plotCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&particles, "particles", "n", config.DefaultParticles, "number of particles")
	cmd.Flags().IntVarP(&partitions, "partitions", "p", config.DefaultPartitions, "number of partitions")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	cmd.Flags().IntVar(&groupSize, "group-size", config.DefaultGroupSize, "particles per timestep group")
	cmd.Flags().Float64Var(&haloWidth, "halo", config.DefaultHaloWidth, "halo exchange width")
	cmd.Flags().Float64Var(&theta, "theta", config.DefaultTheta, "multipole opening angle")
	cmd.Flags().Float64Var(&softening, "softening", config.DefaultEps, "plummer softening length")
	cmd.Flags().Float64Var(&gconst, "g", config.DefaultG, "gravitational constant")
	cmd.Flags().Float64Var(&krho, "krho", config.DefaultKrho, "divergence timestep coefficient")
	cmd.Flags().Float64Var(&etaAcc, "eta-acc", config.DefaultEtaAcc, "acceleration timestep coefficient")
	cmd.Flags().Float64Var(&maxDt, "max-dt", config.DefaultMaxDt, "timestep cap")
	cmd.Flags().StringVar(&backend, "backend", "auto", "force backend (auto, cpu, cuda)")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

// buildConfig resolves preset, config file and flags in ascending
// priority: explicit flags always win.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("particles") {
		cfg.Particles = particles
	}
	if cmd.Flags().Changed("partitions") {
		cfg.Partitions = partitions
	}
	if cmd.Flags().Changed("steps") {
		cfg.Steps = steps
	}
	if cmd.Flags().Changed("group-size") {
		cfg.GroupSize = groupSize
	}
	if cmd.Flags().Changed("halo") {
		cfg.HaloWidth = haloWidth
	}
	if cmd.Flags().Changed("theta") {
		cfg.Theta = theta
	}
	if cmd.Flags().Changed("softening") {
		cfg.Eps = softening
	}
	if cmd.Flags().Changed("g") {
		cfg.G = gconst
	}
	if cmd.Flags().Changed("krho") {
		cfg.Krho = krho
	}
	if cmd.Flags().Changed("eta-acc") {
		cfg.EtaAcc = etaAcc
	}
	if cmd.Flags().Changed("max-dt") {
		cfg.MaxDt = maxDt
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = backend
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}

	return cfg, cfg.Validate()
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func newEngine(cfg *config.Config, out io.Writer, log *logrus.Logger) *engine.Engine {
	e := engine.New(engine.Config{
		Particles:  cfg.Particles,
		Partitions: cfg.Partitions,
		Steps:      cfg.Steps,
		GroupSize:  cfg.GroupSize,
		HaloWidth:  cfg.HaloWidth,
		Theta:      cfg.Theta,
		Eps:        cfg.Eps,
		G:          cfg.G,
		Krho:       cfg.Krho,
		EtaAcc:     cfg.EtaAcc,
		MaxDt:      cfg.MaxDt,
		Seed:       cfg.Seed,
	}, out, log)

	gcfg := gravity.Config{G: cfg.G, Theta: cfg.Theta, Eps: cfg.Eps}
	switch cfg.Backend {
	case "cpu":
		e.SetBackend(func() gravity.Backend { return gravity.NewCPU(gcfg) })
	case "cuda":
		e.SetBackend(func() gravity.Backend { return gravity.NewCUDA(gcfg) })
	}
	return e
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger()

	e := newEngine(cfg, os.Stdout, log)
	e.AddMetric(metrics.NewEnergyDrift())
	e.AddMetric(metrics.NewLoadImbalance())
	e.AddMetric(metrics.NewTraversalCost())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	res, err := e.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(cfg, res.Reports, res.Metrics)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", runID)
	fmt.Fprintf(w, "steps\t%d\n", len(res.Reports))
	fmt.Fprintf(w, "wall time\t%v\n", elapsed.Round(time.Millisecond))
	if len(res.EnergyHistory) > 0 {
		fmt.Fprintf(w, "final energy\t%.6e\n", res.EnergyHistory[len(res.EnergyHistory)-1])
	}
	for name, v := range res.Metrics {
		fmt.Fprintf(w, "%s\t%.6g\n", name, v)
	}
	return w.Flush()
}

type programObserver struct{ p *tea.Program }

func (o programObserver) OnStep(rep *step.Report) {
	o.p.Send(viz.ReportMsg{Report: rep})
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger()
	log.SetOutput(io.Discard) // the dashboard owns the terminal

	title := fmt.Sprintf("gravlab · %d particles · %d partitions", cfg.Particles, cfg.Partitions)
	p := tea.NewProgram(viz.NewModel(title, cfg.Steps), tea.WithAltScreen())

	e := newEngine(cfg, io.Discard, log)
	e.AddObserver(programObserver{p: p})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_, err := e.Run(ctx)
		p.Send(viz.DoneMsg{Err: err})
	}()

	_, err = p.Run()
	return err
}

func benchTraversal(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger()
	log.SetLevel(logrus.WarnLevel)

	thetas := []float64{0.2, 0.5, 0.8, 1.0}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "theta\tsteps/s\ttraversal cost\tenergy")

	for _, th := range thetas {
		run := *cfg
		run.Theta = th

		e := newEngine(&run, io.Discard, log)
		cost := metrics.NewTraversalCost()
		e.AddMetric(cost)

		start := time.Now()
		res, err := e.Run(context.Background())
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		fmt.Fprintf(w, "%.2f\t%.2f\t%.1f\t%.6e\n",
			th,
			float64(len(res.Reports))/elapsed.Seconds(),
			cost.Value(),
			res.EnergyHistory[len(res.EnergyHistory)-1])
	}
	return w.Flush()
}
