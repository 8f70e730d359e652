//go:build !windows && !no_cgo

package nlp

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"github.com/acsr/racecar/logging"
	"github.com/acsr/racecar/utils"
)

const (
	defaultNloptMaxEval   = 4001
	defaultNloptTolerance = 1e-8
)

// NloptOptions tunes Nlopt. Zero values select the defaults.
type NloptOptions struct {
	MaxEvaluations       int
	Tolerance            float64
	FeasibilityTolerance float64
}

// Nlopt solves problems with NLopt's SLSQP, which handles the equalities and bounds natively.
type Nlopt struct {
	opts   NloptOptions
	logger logging.Logger
}

type optimizeReturn struct {
	solution []float64
	score    float64
	err      error
}

// NewNlopt returns an SLSQP backed solver.
func NewNlopt(opts NloptOptions, logger logging.Logger) (*Nlopt, error) {
	if opts.MaxEvaluations <= 0 {
		opts.MaxEvaluations = defaultNloptMaxEval
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = defaultNloptTolerance
	}
	if opts.FeasibilityTolerance <= 0 {
		opts.FeasibilityTolerance = DefaultFeasibilityTolerance
	}
	return &Nlopt{opts: opts, logger: logger}, nil
}

// Solve implements Solver.
func (n *Nlopt) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(p.NumVars))
	if err != nil {
		return nil, errors.Wrapf(ErrBadProblem, "nlopt creation error: %v", err)
	}
	defer opt.Destroy()

	evaluations := 0
	// Gradient is, under the hood, an unsafe C array that must be written in place.
	minFunc := func(x, gradient []float64) float64 {
		evaluations++
		if len(gradient) > 0 {
			p.ObjectiveGrad(gradient, x)
		}
		return p.Objective(x)
	}

	err = multierr.Combine(
		opt.SetMinObjective(minFunc),
		opt.SetLowerBounds(p.Lower),
		opt.SetUpperBounds(p.Upper),
		opt.SetXtolRel(n.opts.Tolerance),
		opt.SetFtolAbs(n.opts.Tolerance),
		opt.SetMaxEval(n.opts.MaxEvaluations),
	)
	if p.NumEq > 0 {
		jac := mat.NewDense(p.NumEq, p.NumVars, nil)
		tols := make([]float64, p.NumEq)
		for i := range tols {
			tols[i] = n.opts.FeasibilityTolerance / 10
		}
		// The constraint gradient is m×n row-major, which is the layout of a packed Dense.
		err = multierr.Combine(err, opt.AddEqualityMConstraint(func(result, x, gradient []float64) {
			p.Equality(result, x)
			if len(gradient) > 0 {
				p.EqualityJac(jac, x)
				copy(gradient, jac.RawMatrix().Data)
			}
		}, tols))
	}
	if deadline, ok := ctx.Deadline(); ok {
		err = multierr.Combine(err, opt.SetMaxTime(time.Until(deadline).Seconds()))
	}
	if err != nil {
		return nil, errors.Wrapf(ErrBadProblem, "configuring nlopt: %v", err)
	}

	start := append([]float64{}, p.Initial...)
	p.Clip(start)

	var activeSolvers sync.WaitGroup
	solveChan := make(chan *optimizeReturn, 1)
	activeSolvers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer activeSolvers.Done()
		solution, score, nloptErr := opt.Optimize(start)
		solveChan <- &optimizeReturn{solution, score, nloptErr}
	})

	var result *optimizeReturn
	select {
	case <-ctx.Done():
		stopErr := opt.ForceStop()
		activeSolvers.Wait()
		return nil, multierr.Combine(ctx.Err(), stopErr)
	case result = <-solveChan:
	}

	status := opt.LastStatus()
	n.logger.Debugw("nlopt finished", "status", status, "evaluations", evaluations, "objective", result.score)
	if result.err != nil {
		return nil, n.classify(ctx, status, result.err)
	}
	switch status {
	case "MAXEVAL_REACHED":
		return nil, errors.Wrapf(ErrIterationLimit, "nlopt stopped after %d evaluations", evaluations)
	case "MAXTIME_REACHED":
		return nil, errors.Wrap(context.DeadlineExceeded, "nlopt reached its time limit")
	}
	if !utils.AllFinite(result.solution) || math.IsNaN(result.score) {
		return nil, errors.Wrap(ErrNumerical, "nlopt returned a non-finite point")
	}
	violation := p.Violation(result.solution)
	if violation > n.opts.FeasibilityTolerance {
		return nil, errors.Wrapf(ErrInfeasible, "nlopt stopped with constraint violation %g (%s)", violation, status)
	}
	return &Solution{
		Z:          result.solution,
		Objective:  result.score,
		Violation:  violation,
		Iterations: evaluations,
		Status:     strings.ToLower(status),
	}, nil
}

func (n *Nlopt) classify(ctx context.Context, status string, err error) error {
	switch status {
	case "FORCED_STOP":
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	case "INVALID_ARGS":
		return errors.Wrap(ErrBadProblem, err.Error())
	}
	return errors.Wrap(ErrNumerical, err.Error())
}
