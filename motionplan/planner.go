// Package motionplan is a receding-horizon local planner. Each planning cycle turns the current
// state and a reference from a ReferenceProvider into a nonlinear program, hands it to an nlp.Solver
// and returns the solved trajectory.
package motionplan

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/acsr/racecar/config"
	"github.com/acsr/racecar/logging"
	"github.com/acsr/racecar/motionplan/nlp"
	"github.com/acsr/racecar/trajectory"
	"github.com/acsr/racecar/utils"
)

// Planner computes one trajectory per call.
type Planner interface {
	// Plan runs one planning cycle from x0. On failure the trajectory is nil.
	Plan(ctx context.Context, x0 []float64) (*trajectory.Trajectory, error)
	// Shape returns the dimensions of every trajectory the planner returns.
	Shape() trajectory.Shape
}

// ReferenceProvider supplies the reference a cycle tracks. The reference has N+1 states and N or
// N+1 controls, anchored at x0.
type ReferenceProvider interface {
	Reference(x0 []float64, horizon int, dt float64) (*trajectory.Reference, error)
}

// kinematicPlanner is a Planner over a kinematics.Model. The builder workspace is reused by every
// cycle, so only one Plan may run at a time.
type kinematicPlanner struct {
	cfg      *config.Config
	builder  *Builder
	solver   nlp.Solver
	provider ReferenceProvider
	clock    clock.Clock
	logger   logging.Logger
	busy     atomic.Bool
}

// NewPlanner validates cfg and returns the planner variant registered for its frame.
func NewPlanner(cfg *config.Config, provider ReferenceProvider, logger logging.Logger, opts ...Option) (Planner, error) {
	if cfg == nil {
		return nil, utils.NewConfigValidationError("planner", errors.New("no configuration"))
	}
	if err := cfg.Validate("planner"); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, utils.NewConfigValidationFieldRequiredError("planner", "reference provider")
	}
	options := newPlannerOptions(opts)

	model, err := ModelFor(cfg, options.geometry)
	if err != nil {
		return nil, err
	}
	builder, err := NewBuilder(model, cfg.Horizon, cfg.Dt, cfg.Weights(), cfg.Limits())
	if err != nil {
		return nil, utils.NewConfigValidationError("planner", err)
	}

	solver := options.solver
	if solver == nil {
		if solver, err = nlp.NewSolver(cfg, logger.Sublogger("solver")); err != nil {
			return nil, utils.NewConfigValidationError("planner", err)
		}
	}
	frozen := *cfg
	return &kinematicPlanner{
		cfg:      &frozen,
		builder:  builder,
		solver:   solver,
		provider: provider,
		clock:    options.clock,
		logger:   logger,
	}, nil
}

func (p *kinematicPlanner) Shape() trajectory.Shape {
	return p.builder.Shape()
}

func (p *kinematicPlanner) Plan(ctx context.Context, x0 []float64) (*trajectory.Trajectory, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, ErrPlannerBusy
	}
	defer p.busy.Store(false)

	shape := p.builder.Shape()
	if err := trajectory.CheckState(shape, x0); err != nil {
		return nil, err
	}
	ref, err := p.provider.Reference(x0, shape.Horizon, p.cfg.Dt)
	if err != nil {
		return nil, errors.Wrap(err, "reference provider failed")
	}
	problem, err := p.builder.Build(x0, ref)
	if err != nil {
		return nil, err
	}

	if p.cfg.SolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.SolveTimeout)
		defer cancel()
	}
	start := p.clock.Now()
	solution, err := p.solver.Solve(ctx, problem)
	elapsed := p.clock.Since(start)
	if err == nil && solution == nil {
		err = errors.Wrap(nlp.ErrNumerical, "solver returned no solution")
	}
	if err == nil {
		var traj *trajectory.Trajectory
		if traj, err = p.builder.Extract(solution.Z); err == nil {
			p.logger.Debugw("planning cycle solved",
				"status", solution.Status,
				"objective", solution.Objective,
				"violation", solution.Violation,
				"iterations", solution.Iterations,
				"elapsed", elapsed)
			return traj, nil
		}
	}
	p.logger.Errorw("planning cycle failed",
		"error", err,
		"frame", p.cfg.FrameName(),
		"state", x0,
		"elapsed", elapsed)
	return nil, NewSolverError(err)
}
