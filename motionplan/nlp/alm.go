package nlp

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/acsr/racecar/logging"
	"github.com/acsr/racecar/utils"
)

// Defaults for the augmented Lagrangian solver.
const (
	DefaultMaxOuterIterations   = 30
	DefaultMaxInnerIterations   = 500
	DefaultFeasibilityTolerance = 1e-6
	DefaultOptimalityTolerance  = 1e-6
	DefaultAcceptableTolerance  = 1e-4
	defaultInitialPenalty       = 10.
	defaultMaxPenalty           = 1e8
	// the penalty grows when the violation does not shrink by at least this factor.
	penaltyProgressRatio = 0.25
	penaltyGrowth        = 10.
	// the default inner budget is at least this many L-BFGS iterations per variable.
	innerIterationsPerVar = 5
	// a feasible point is accepted once the objective moves less than this between outer iterations.
	objectiveStall = 1e-8
)

// ALMOptions tunes ALM. Zero values select the defaults. When MaxInnerIterations is unset the inner
// budget grows with the number of variables.
//
// A subproblem that hits its iteration cap still ends the solve when the point is feasible and the
// projected gradient of the Lagrangian is below AcceptableTolerance, scaled by 1+|f|.
type ALMOptions struct {
	MaxOuterIterations   int
	MaxInnerIterations   int
	FeasibilityTolerance float64
	OptimalityTolerance  float64
	AcceptableTolerance  float64
	InitialPenalty       float64
	MaxPenalty           float64
}

func (o ALMOptions) withDefaults() ALMOptions {
	if o.MaxOuterIterations <= 0 {
		o.MaxOuterIterations = DefaultMaxOuterIterations
	}
	if o.MaxInnerIterations <= 0 {
		o.MaxInnerIterations = DefaultMaxInnerIterations
	}
	if o.FeasibilityTolerance <= 0 {
		o.FeasibilityTolerance = DefaultFeasibilityTolerance
	}
	if o.OptimalityTolerance <= 0 {
		o.OptimalityTolerance = DefaultOptimalityTolerance
	}
	if o.AcceptableTolerance <= 0 {
		o.AcceptableTolerance = math.Max(DefaultAcceptableTolerance, o.OptimalityTolerance)
	}
	if o.InitialPenalty <= 0 {
		o.InitialPenalty = defaultInitialPenalty
	}
	if o.MaxPenalty <= 0 {
		o.MaxPenalty = defaultMaxPenalty
	}
	return o
}

// ALM is a pure Go augmented Lagrangian (Powell-Hestenes-Rockafellar) solver. Equalities and
// finite bounds are moved into the merit function and each subproblem is minimized with
// gonum's L-BFGS. The returned point is projected onto the bounds.
type ALM struct {
	opts       ALMOptions
	scaleInner bool
	logger     logging.Logger
}

// NewALM returns an augmented Lagrangian solver.
func NewALM(opts ALMOptions, logger logging.Logger) *ALM {
	return &ALM{opts: opts.withDefaults(), scaleInner: opts.MaxInnerIterations <= 0, logger: logger}
}

// innerBudget is the L-BFGS iteration cap of each subproblem.
func (a *ALM) innerBudget(p *Problem) int {
	if a.scaleInner {
		return max(a.opts.MaxInnerIterations, innerIterationsPerVar*p.NumVars)
	}
	return a.opts.MaxInnerIterations
}

// almState holds the multipliers and scratch space of one Solve call.
type almState struct {
	p       *Problem
	rho     float64
	lambda  []float64
	lowerIx []int
	upperIx []int
	muLower []float64
	muUpper []float64

	c       []float64
	shifted []float64
	jac     *mat.Dense
	jtc     *mat.VecDense
}

func newALMState(p *Problem, rho float64) *almState {
	st := &almState{p: p, rho: rho, lambda: make([]float64, p.NumEq), c: make([]float64, p.NumEq), shifted: make([]float64, p.NumEq)}
	if p.NumEq > 0 {
		st.jac = mat.NewDense(p.NumEq, p.NumVars, nil)
		st.jtc = mat.NewVecDense(p.NumVars, nil)
	}
	for i := range p.Lower {
		if !math.IsInf(p.Lower[i], -1) {
			st.lowerIx = append(st.lowerIx, i)
		}
		if !math.IsInf(p.Upper[i], 1) {
			st.upperIx = append(st.upperIx, i)
		}
	}
	st.muLower = make([]float64, len(st.lowerIx))
	st.muUpper = make([]float64, len(st.upperIx))
	return st
}

// merit is f + λ·c + ρ/2‖c‖² + Σ (max(0, μ+ρg)² - μ²)/2ρ over bound constraints g <= 0.
func (st *almState) merit(z []float64) float64 {
	p := st.p
	val := p.Objective(z)
	if p.NumEq > 0 {
		p.Equality(st.c, z)
		for i, ci := range st.c {
			val += st.lambda[i]*ci + 0.5*st.rho*ci*ci
		}
	}
	bound := func(mu, g float64) float64 {
		shifted := math.Max(0, mu+st.rho*g)
		return (shifted*shifted - mu*mu) / (2 * st.rho)
	}
	for j, i := range st.lowerIx {
		val += bound(st.muLower[j], p.Lower[i]-z[i])
	}
	for j, i := range st.upperIx {
		val += bound(st.muUpper[j], z[i]-p.Upper[i])
	}
	return val
}

func (st *almState) meritGrad(grad, z []float64) {
	p := st.p
	p.ObjectiveGrad(grad, z)
	if p.NumEq > 0 {
		p.Equality(st.c, z)
		p.EqualityJac(st.jac, z)
		for i, ci := range st.c {
			st.shifted[i] = st.lambda[i] + st.rho*ci
		}
		// grad += Jᵀ(λ + ρc)
		st.jtc.MulVec(st.jac.T(), mat.NewVecDense(p.NumEq, st.shifted))
		floats.Add(grad, st.jtc.RawVector().Data)
	}
	for j, i := range st.lowerIx {
		grad[i] -= math.Max(0, st.muLower[j]+st.rho*(p.Lower[i]-z[i]))
	}
	for j, i := range st.upperIx {
		grad[i] += math.Max(0, st.muUpper[j]+st.rho*(z[i]-p.Upper[i]))
	}
}

// updateMultipliers applies the first-order multiplier update at z and returns the largest
// constraint violation there.
func (st *almState) updateMultipliers(z []float64) float64 {
	p := st.p
	violation := 0.
	if p.NumEq > 0 {
		p.Equality(st.c, z)
		for i, ci := range st.c {
			st.lambda[i] += st.rho * ci
			violation = math.Max(violation, math.Abs(ci))
		}
	}
	for j, i := range st.lowerIx {
		g := p.Lower[i] - z[i]
		st.muLower[j] = math.Max(0, st.muLower[j]+st.rho*g)
		violation = math.Max(violation, g)
	}
	for j, i := range st.upperIx {
		g := z[i] - p.Upper[i]
		st.muUpper[j] = math.Max(0, st.muUpper[j]+st.rho*g)
		violation = math.Max(violation, g)
	}
	return violation
}

// projectedNorm is the infinity norm of grad with the components that push z out of an active
// bound removed.
func projectedNorm(p *Problem, z, grad []float64) float64 {
	norm := 0.
	for i, g := range grad {
		if (z[i] <= p.Lower[i] && g > 0) || (z[i] >= p.Upper[i] && g < 0) {
			continue
		}
		norm = math.Max(norm, math.Abs(g))
	}
	return norm
}

// solution clips z onto the bounds and reports it.
func solution(p *Problem, z []float64, iterations int, status string) *Solution {
	p.Clip(z)
	return &Solution{
		Z:          z,
		Objective:  p.Objective(z),
		Violation:  p.Violation(z),
		Iterations: iterations,
		Status:     status,
	}
}

// Solve implements Solver.
func (a *ALM) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	z := append([]float64{}, p.Initial...)
	p.Clip(z)
	if !utils.AllFinite(z) {
		return nil, errors.Wrap(ErrNumerical, "initial point is not finite")
	}

	st := newALMState(p, a.opts.InitialPenalty)
	grad := make([]float64, p.NumVars)
	prevViolation := math.Inf(1)
	prevObjective := math.Inf(1)
	innerIterations := 0
	var feasible []float64

	settings := &optimize.Settings{
		GradientThreshold: a.opts.OptimalityTolerance,
		MajorIterations:   a.innerBudget(p),
		Converger:         &optimize.FunctionConverge{Absolute: 1e-12, Relative: 1e-10, Iterations: 20},
	}
	inner := optimize.Problem{
		Func: st.merit,
		Grad: st.meritGrad,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}

	for outer := 1; outer <= a.opts.MaxOuterIterations; outer++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		innerConverged := true
		st.meritGrad(grad, z)
		if !utils.AllFinite(grad) {
			return nil, errors.Wrapf(ErrNumerical, "non-finite gradient at outer iteration %d", outer)
		}
		// L-BFGS cannot start from a stationary point, so skip subproblems that are already solved.
		if floats.Norm(grad, math.Inf(1)) > a.opts.OptimalityTolerance {
			res, err := optimize.Minimize(inner, z, settings, &optimize.LBFGS{})
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if res == nil {
				return nil, errors.Wrap(ErrNumerical, err.Error())
			}
			if !utils.AllFinite(res.X) || math.IsNaN(res.F) {
				return nil, errors.Wrapf(ErrNumerical, "subproblem diverged at outer iteration %d", outer)
			}
			if err != nil {
				// Line search breakdowns near a minimum are not fatal; the multipliers still move.
				a.logger.Debugw("subproblem stalled", "outer", outer, "status", res.Status.String(), "error", err)
			}
			innerConverged = res.Status != optimize.IterationLimit
			innerIterations += res.MajorIterations
			copy(z, res.X)
			st.meritGrad(grad, z)
		}
		// The merit gradient under the old multipliers is the Lagrangian gradient under the new ones.
		stationarity := projectedNorm(p, z, grad)

		violation := st.updateMultipliers(z)
		objective := p.Objective(z)
		a.logger.Debugw("augmented lagrangian iteration", "outer", outer, "violation", violation,
			"stationarity", stationarity, "penalty", st.rho, "objective", objective)

		if violation <= a.opts.FeasibilityTolerance {
			scale := 1 + math.Abs(objective)
			switch {
			case innerConverged:
				return solution(p, z, innerIterations, "converged"), nil
			case stationarity <= a.opts.AcceptableTolerance*scale:
				return solution(p, z, innerIterations, "acceptable"), nil
			case math.Abs(prevObjective-objective) <= objectiveStall*scale:
				return solution(p, z, innerIterations, "stalled"), nil
			}
			feasible = append(feasible[:0], z...)
		} else if violation > penaltyProgressRatio*prevViolation {
			st.rho = math.Min(st.rho*penaltyGrowth, a.opts.MaxPenalty)
		}
		prevViolation = violation
		prevObjective = objective
	}
	if feasible != nil {
		a.logger.Debugw("outer iteration limit reached at a feasible point", "iterations", innerIterations)
		return solution(p, feasible, innerIterations, "iteration limit"), nil
	}
	return nil, errors.Wrapf(ErrIterationLimit, "constraint violation %g after %d outer iterations",
		prevViolation, a.opts.MaxOuterIterations)
}
