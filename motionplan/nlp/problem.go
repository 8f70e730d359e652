// Package nlp is the boundary between the planner and the engines that solve its nonlinear
// programs:
//
//	minimize f(z) subject to c(z) = 0 and lower <= z <= upper
//
// The planner only depends on Solver. Every failure a backend reports is one of the sentinel errors
// below, or a context error, so callers can classify outcomes without knowing the backend.
package nlp

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInfeasible is returned when no point satisfies the constraints.
	ErrInfeasible = errors.New("problem is infeasible")
	// ErrIterationLimit is returned when the iteration budget ran out before convergence.
	ErrIterationLimit = errors.New("iteration limit reached before convergence")
	// ErrNumerical is returned when the solve produced NaN or infinite values or the backend broke down.
	ErrNumerical = errors.New("numerical failure")
	// ErrBadProblem is returned when the problem description is inconsistent.
	ErrBadProblem = errors.New("malformed problem")
)

// Problem describes one nonlinear program.
type Problem struct {
	NumVars int
	// Objective returns f(z).
	Objective func(z []float64) float64
	// ObjectiveGrad writes ∇f(z) into grad.
	ObjectiveGrad func(grad, z []float64)

	NumEq int
	// Equality writes c(z) into dst, which has length NumEq.
	Equality func(dst, z []float64)
	// EqualityJac overwrites jac (NumEq×NumVars) with ∂c/∂z.
	EqualityJac func(jac *mat.Dense, z []float64)

	// Lower and Upper bound each variable. Use ±Inf for free variables.
	Lower []float64
	Upper []float64

	// Initial is the warm start.
	Initial []float64
}

// Solution is a converged point.
type Solution struct {
	Z         []float64
	Objective float64
	// Violation is the largest constraint or bound violation at Z.
	Violation  float64
	Iterations int
	Status     string
}

// Solver solves a Problem. Implementations must not retain the problem after Solve returns.
type Solver interface {
	Solve(ctx context.Context, problem *Problem) (*Solution, error)
}

// Validate checks the problem is self-consistent. Crossed bounds are reported as infeasible.
func (p *Problem) Validate() error {
	if p.NumVars <= 0 {
		return errors.Wrap(ErrBadProblem, "no decision variables")
	}
	if p.Objective == nil || p.ObjectiveGrad == nil {
		return errors.Wrap(ErrBadProblem, "objective and gradient are required")
	}
	if p.NumEq > 0 && (p.Equality == nil || p.EqualityJac == nil) {
		return errors.Wrap(ErrBadProblem, "equality constraints need values and a jacobian")
	}
	for name, v := range map[string][]float64{"lower": p.Lower, "upper": p.Upper, "initial": p.Initial} {
		if len(v) != p.NumVars {
			return errors.Wrapf(ErrBadProblem, "%s has %d entries, expected %d", name, len(v), p.NumVars)
		}
	}
	for i := range p.Lower {
		if p.Lower[i] > p.Upper[i] {
			return errors.Wrapf(ErrInfeasible, "variable %d has lower bound %g above upper bound %g", i, p.Lower[i], p.Upper[i])
		}
	}
	return nil
}

// Clip projects z onto the bounds in place.
func (p *Problem) Clip(z []float64) {
	for i := range z {
		z[i] = math.Max(p.Lower[i], math.Min(p.Upper[i], z[i]))
	}
}

// Violation returns the largest equality residual or bound violation at z.
func (p *Problem) Violation(z []float64) float64 {
	worst := 0.
	if p.NumEq > 0 {
		c := make([]float64, p.NumEq)
		p.Equality(c, z)
		for _, v := range c {
			worst = math.Max(worst, math.Abs(v))
		}
	}
	for i, v := range z {
		worst = math.Max(worst, math.Max(p.Lower[i]-v, v-p.Upper[i]))
	}
	return worst
}

// IsSolverFailure reports whether err is one of the failure outcomes a Solver can produce.
func IsSolverFailure(err error) bool {
	for _, target := range []error{
		ErrInfeasible, ErrIterationLimit, ErrNumerical, ErrBadProblem,
		context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
