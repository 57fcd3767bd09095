// Package engine runs a full multi-partition simulation in process:
// one goroutine per partition, all joined through a shared collective
// world, stepped in lockstep for a fixed number of iterations.
package engine

import (
	"context"
	"fmt"
	"io"
	"math/rand"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/gravlab/internal/comm"
	"github.com/san-kum/gravlab/internal/domain"
	"github.com/san-kum/gravlab/internal/gravity"
	"github.com/san-kum/gravlab/internal/particles"
	"github.com/san-kum/gravlab/internal/step"
)

// Metric consumes the coordinating partition's step reports and folds
// them into a single scalar.
type Metric interface {
	Name() string
	Observe(rep *step.Report)
	Value() float64
	Reset()
}

// Observer receives every coordinating-partition report as it is
// produced, before the run finishes.
type Observer interface {
	OnStep(rep *step.Report)
}

type Config struct {
	Particles  int
	Partitions int
	Steps      int
	GroupSize  int
	HaloWidth  float64
	Theta      float64
	Eps        float64
	G          float64
	Krho       float64
	EtaAcc     float64
	MaxDt      float64
	Seed       int64
}

type Result struct {
	Reports       []*step.Report
	EnergyHistory []float64
	Metrics       map[string]float64
}

type Engine struct {
	cfg       Config
	out       io.Writer
	log       *logrus.Logger
	metrics   []Metric
	observers []Observer
	backend   func() gravity.Backend
}

func New(cfg Config, out io.Writer, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}
	e := &Engine{cfg: cfg, out: out, log: log}
	e.backend = func() gravity.Backend {
		return gravity.AutoSelect(gravity.Config{G: cfg.G, Theta: cfg.Theta, Eps: cfg.Eps})
	}
	return e
}

func (e *Engine) AddMetric(m Metric)     { e.metrics = append(e.metrics, m) }
func (e *Engine) AddObserver(o Observer) { e.observers = append(e.observers, o) }

// SetBackend overrides backend selection, mainly for tests that need
// a fixed CPU configuration.
func (e *Engine) SetBackend(f func() gravity.Backend) { e.backend = f }

func (e *Engine) validate() error {
	if e.cfg.Particles < 1 {
		return fmt.Errorf("particles must be positive, got %d", e.cfg.Particles)
	}
	if e.cfg.Partitions < 1 {
		return fmt.Errorf("partitions must be positive, got %d", e.cfg.Partitions)
	}
	if e.cfg.Partitions > e.cfg.Particles {
		return fmt.Errorf("more partitions (%d) than particles (%d)", e.cfg.Partitions, e.cfg.Particles)
	}
	if e.cfg.Steps < 1 {
		return fmt.Errorf("steps must be positive, got %d", e.cfg.Steps)
	}
	if e.cfg.MaxDt <= 0 {
		return fmt.Errorf("max dt must be positive, got %f", e.cfg.MaxDt)
	}
	return nil
}

// Run executes the configured number of steps across all partitions
// and returns the coordinating partition's reports. A failure on any
// partition cancels the run: the world is aborted so survivors fall
// out of their collectives, and the first error is returned.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	cloud := makeCloud(e.cfg.Particles, e.cfg.Seed)
	world := comm.NewWorld(e.cfg.Partitions)

	for _, m := range e.metrics {
		m.Reset()
	}

	res := &Result{
		Reports:       make([]*step.Report, 0, e.cfg.Steps),
		EnergyHistory: make([]float64, 0, e.cfg.Steps),
		Metrics:       make(map[string]float64),
	}

	g, ctx := errgroup.WithContext(ctx)

	// A partition that errors out mid-step leaves the others blocked in
	// the next collective. The errgroup cancels ctx on the first error
	// (and on external cancellation); aborting the world then releases
	// every blocked survivor so Wait can return.
	go func() {
		<-ctx.Done()
		world.Abort()
	}()

	for rank := 0; rank < e.cfg.Partitions; rank++ {
		rank := rank
		g.Go(func() error {
			dom := domain.NewSlab(cloud, rank, e.cfg.Partitions, e.cfg.HaloWidth, e.cfg.GroupSize)
			orch := step.New(step.Options{
				Comm:    world.Comm(rank),
				Backend: e.backend(),
				Domain:  dom,
				Out:     e.out,
				Log:     e.log,
				Krho:    e.cfg.Krho,
				EtaAcc:  e.cfg.EtaAcc,
				Eps:     e.cfg.Eps,
				MaxDt:   e.cfg.MaxDt,
			})

			ps := particles.NewSet(0)
			for i := 0; i < e.cfg.Steps; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				rep, err := orch.Step(ps)
				if err != nil {
					return fmt.Errorf("partition %d step %d: %w", rank, i, err)
				}
				if rank == 0 {
					res.Reports = append(res.Reports, rep)
					res.EnergyHistory = append(res.EnergyHistory, rep.Egrav)
					for _, m := range e.metrics {
						m.Observe(rep)
					}
					for _, obs := range e.observers {
						obs.OnStep(rep)
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, m := range e.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	return res, nil
}

// makeCloud draws a uniform unit-cube cloud of equal-mass particles,
// sorted along x so contiguous index ranges map to spatial slabs.
func makeCloud(n int, seed int64) *domain.Cloud {
	rng := rand.New(rand.NewSource(seed))
	c := &domain.Cloud{
		X:    make([]float64, n),
		Y:    make([]float64, n),
		Z:    make([]float64, n),
		M:    make([]float64, n),
		H:    make([]float64, n),
		Divv: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		c.X[i] = rng.Float64()
		c.Y[i] = rng.Float64()
		c.Z[i] = rng.Float64()
		c.M[i] = 1.0 / float64(n)
		c.H[i] = 0.05
		c.Divv[i] = 0.1 * rng.NormFloat64()
	}
	c.SortByX()
	return c
}
