package cli

import (
	"context"
	"image/color"

	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/acsr/racecar/config"
	"github.com/acsr/racecar/globalpath"
	"github.com/acsr/racecar/kinematics"
	"github.com/acsr/racecar/obstacles"
	"github.com/acsr/racecar/store"
	"github.com/acsr/racecar/trajectory"
)

// goalTolerance is how close to the last waypoint the simulation stops.
const goalTolerance = 0.25

// run is the outcome of a closed loop simulation.
type run struct {
	states         [][]float64
	controls       [][]float64
	positions      []r2.Point
	solveTimes     []float64
	trackingErrors []float64
}

// driven returns the executed states and controls as a trajectory.
func (r *run) driven() *trajectory.Trajectory {
	traj := trajectory.New(trajectory.Shape{NX: kinematics.NX, NU: kinematics.NU, Horizon: len(r.controls)})
	for k, x := range r.states {
		traj.X.SetCol(k, x)
	}
	for k, u := range r.controls {
		traj.U.SetCol(k, u)
	}
	return traj
}

// simulate plans from the current state, applies the first control for one step and repeats until
// the goal is reached or steps cycles have run. At least one cycle always runs.
func (s *session) simulate(ctx context.Context, steps int) (*run, error) {
	goal := s.path.Position(s.path.Length())
	x := append([]float64{}, s.x0...)
	r := &run{
		states:    [][]float64{append([]float64{}, x...)},
		positions: []r2.Point{s.position(x)},
	}
	for k := 0; k < max(steps, 1); k++ {
		start := s.clock.Now()
		traj, err := s.planner.Plan(ctx, x)
		if err != nil {
			return r, errors.Wrapf(err, "cycle %d", k)
		}
		r.solveTimes = append(r.solveTimes, float64(s.clock.Since(start).Microseconds())/1000)

		u := traj.Control(0)
		next := make([]float64, kinematics.NX)
		kinematics.Step(s.model, next, x, u, s.cfg.Dt)
		x = next

		r.controls = append(r.controls, u)
		r.states = append(r.states, append([]float64{}, x...))
		pos := s.position(x)
		r.positions = append(r.positions, pos)
		r.trackingErrors = append(r.trackingErrors, s.trackingError(x))
		s.logger.Debugw("simulation step", "step", k, "state", x, "control", u)

		if pos.Sub(goal).Norm() < goalTolerance {
			break
		}
	}
	return r, nil
}

// SimulateAction drives the vehicle along the path in closed loop and reports how well it tracked.
func SimulateAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}

	var obstacleMap *obstacles.Map
	if c.IsSet(flagObstacles) {
		if obstacleMap, err = obstacles.ReadXML(c.Path(flagObstacles)); err != nil {
			return err
		}
	}

	r, err := s.simulate(c.Context, c.Int(flagSteps))
	if err != nil {
		return Errorf(c.App.ErrWriter, "simulation stopped after %d steps: %v", len(r.controls), err)
	}
	if err := printSummary(c, r); err != nil {
		return err
	}

	if c.IsSet(flagPlot) {
		if err := plotRun(c.Path(flagPlot), s.path, r, obstacleMap); err != nil {
			return err
		}
		infof(c.App.Writer, "plot written to %s", c.Path(flagPlot))
	}

	if c.IsSet(flagDatabase) {
		if err := s.save(c.Context, c.Path(flagDatabase), r); err != nil {
			return err
		}
	}

	if obstacleMap != nil {
		xs := lo.Map(r.positions, func(p r2.Point, _ int) float64 { return p.X })
		ys := lo.Map(r.positions, func(p r2.Point, _ int) float64 { return p.Y })
		if k := obstacleMap.FirstCollision(xs, ys); k >= 0 {
			return Errorf(c.App.ErrWriter, "driven path enters an obstacle at step %d (%.3f, %.3f)", k, xs[k], ys[k])
		}
		infof(c.App.Writer, "driven path is clear of %d obstacles", obstacleMap.Len())
	}
	return nil
}

func printSummary(c *cli.Context, r *run) error {
	meanSolve, err := stats.Mean(r.solveTimes)
	if err != nil {
		return err
	}
	p95Solve, err := stats.Percentile(r.solveTimes, 95)
	if err != nil {
		return err
	}
	meanTracking, err := stats.Mean(r.trackingErrors)
	if err != nil {
		return err
	}
	maxTracking, err := stats.Max(r.trackingErrors)
	if err != nil {
		return err
	}
	final := r.positions[len(r.positions)-1]
	printf(c.App.Writer, "steps: %d", len(r.controls))
	printf(c.App.Writer, "final position: (%.3f, %.3f)", final.X, final.Y)
	printf(c.App.Writer, "solve time: mean %.2fms, p95 %.2fms", meanSolve, p95Solve)
	printf(c.App.Writer, "tracking error: mean %.4fm, max %.4fm", meanTracking, maxTracking)
	return nil
}

func (s *session) save(ctx context.Context, filename string, r *run) error {
	db, err := store.Open(ctx, filename, s.clock, s.logger.Sublogger("store"))
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(db.Close)

	xHeaders := []string{"x", "y", "theta", "v"}
	if s.cfg.FrameName() == config.FrameCurvilinear {
		xHeaders = []string{"s", "n", "phi", "v"}
	}
	tbl, err := trajectory.Export(r.driven(), []float64{s.cfg.Dt}, xHeaders, []string{"delta", "d"})
	if err != nil {
		return err
	}
	_, err = db.Save(ctx, trajectory.TableName(s.clock), tbl)
	return err
}

func plotRun(filename string, path *globalpath.Path, r *run, obstacleMap *obstacles.Map) error {
	p := plot.New()
	p.Title.Text = "Driven path"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	if obstacleMap != nil {
		xs, ys := obstacleMap.PlotData()
		for i := range xs {
			pts := make(plotter.XYs, len(xs[i]))
			for j := range xs[i] {
				pts[j] = plotter.XY{X: xs[i][j], Y: ys[i][j]}
			}
			poly, err := plotter.NewPolygon(pts)
			if err != nil {
				return errors.Wrap(err, "plotting obstacle")
			}
			poly.Color = color.Gray{Y: 200}
			p.Add(poly)
		}
	}

	const samples = 200
	refPts := make(plotter.XYs, samples+1)
	for i := range refPts {
		pos := path.Position(path.Length() * float64(i) / samples)
		refPts[i] = plotter.XY{X: pos.X, Y: pos.Y}
	}
	refLine, err := plotter.NewLine(refPts)
	if err != nil {
		return errors.Wrap(err, "plotting reference")
	}
	refLine.Width = vg.Points(1)
	refLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	refLine.Color = color.RGBA{B: 200, A: 255}
	p.Add(refLine)
	p.Legend.Add("reference", refLine)

	drivenPts := make(plotter.XYs, len(r.positions))
	for i, pos := range r.positions {
		drivenPts[i] = plotter.XY{X: pos.X, Y: pos.Y}
	}
	drivenLine, err := plotter.NewLine(drivenPts)
	if err != nil {
		return errors.Wrap(err, "plotting driven path")
	}
	drivenLine.Width = vg.Points(1.5)
	drivenLine.Color = color.RGBA{R: 220, A: 255}
	p.Add(drivenLine)
	p.Legend.Add("driven", drivenLine)
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 6*vg.Inch, filename); err != nil {
		return errors.Wrap(err, "saving plot")
	}
	return nil
}
