package nlp

import (
	"context"
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/acsr/racecar/config"
	"github.com/acsr/racecar/logging"
)

func inf(n int, sign int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Inf(sign)
	}
	return out
}

// minimize x² + y² subject to x + y = 1.
func circleOnLine() *Problem {
	return &Problem{
		NumVars: 2,
		Objective: func(z []float64) float64 {
			return z[0]*z[0] + z[1]*z[1]
		},
		ObjectiveGrad: func(grad, z []float64) {
			grad[0] = 2 * z[0]
			grad[1] = 2 * z[1]
		},
		NumEq: 1,
		Equality: func(dst, z []float64) {
			dst[0] = z[0] + z[1] - 1
		},
		EqualityJac: func(jac *mat.Dense, z []float64) {
			jac.Set(0, 0, 1)
			jac.Set(0, 1, 1)
		},
		Lower:   inf(2, -1),
		Upper:   inf(2, 1),
		Initial: []float64{3, -1},
	}
}

// minimize (x - 2)² subject to x <= 1.
func boundedParabola() *Problem {
	return &Problem{
		NumVars: 1,
		Objective: func(z []float64) float64 {
			return (z[0] - 2) * (z[0] - 2)
		},
		ObjectiveGrad: func(grad, z []float64) {
			grad[0] = 2 * (z[0] - 2)
		},
		Lower:   []float64{math.Inf(-1)},
		Upper:   []float64{1},
		Initial: []float64{0},
	}
}

func TestALMEquality(t *testing.T) {
	solver := NewALM(ALMOptions{}, logging.NewTestLogger(t))
	sol, err := solver.Solve(context.Background(), circleOnLine())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sol.Z[0], test.ShouldAlmostEqual, 0.5, 1e-4)
	test.That(t, sol.Z[1], test.ShouldAlmostEqual, 0.5, 1e-4)
	test.That(t, sol.Violation, test.ShouldBeLessThanOrEqualTo, DefaultFeasibilityTolerance)
	test.That(t, sol.Status, test.ShouldEqual, "converged")
}

func TestALMBounds(t *testing.T) {
	solver := NewALM(ALMOptions{}, logging.NewTestLogger(t))
	sol, err := solver.Solve(context.Background(), boundedParabola())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sol.Z[0], test.ShouldAlmostEqual, 1, 1e-4)
	test.That(t, sol.Z[0], test.ShouldBeLessThanOrEqualTo, 1)
}

// minimize the Rosenbrock function subject to x = y.
func rosenbrockOnDiagonal() *Problem {
	return &Problem{
		NumVars: 2,
		Objective: func(z []float64) float64 {
			return (1-z[0])*(1-z[0]) + 100*(z[1]-z[0]*z[0])*(z[1]-z[0]*z[0])
		},
		ObjectiveGrad: func(grad, z []float64) {
			grad[0] = -2*(1-z[0]) - 400*z[0]*(z[1]-z[0]*z[0])
			grad[1] = 200 * (z[1] - z[0]*z[0])
		},
		NumEq: 1,
		Equality: func(dst, z []float64) {
			dst[0] = z[0] - z[1]
		},
		EqualityJac: func(jac *mat.Dense, z []float64) {
			jac.Set(0, 0, 1)
			jac.Set(0, 1, -1)
		},
		Lower:   inf(2, -1),
		Upper:   inf(2, 1),
		Initial: []float64{-1.2, 1},
	}
}

func TestALMCappedSubproblems(t *testing.T) {
	solver := NewALM(ALMOptions{MaxInnerIterations: 5, MaxOuterIterations: 200}, logging.NewTestLogger(t))
	sol, err := solver.Solve(context.Background(), rosenbrockOnDiagonal())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sol.Violation, test.ShouldBeLessThanOrEqualTo, DefaultFeasibilityTolerance)
	test.That(t, math.Abs(sol.Z[0]-sol.Z[1]), test.ShouldBeLessThanOrEqualTo, DefaultFeasibilityTolerance)
}

func TestALMInnerBudget(t *testing.T) {
	logger := logging.NewTestLogger(t)
	p := &Problem{NumVars: 400}
	test.That(t, NewALM(ALMOptions{}, logger).innerBudget(p), test.ShouldEqual, innerIterationsPerVar*400)
	test.That(t, NewALM(ALMOptions{}, logger).innerBudget(circleOnLine()), test.ShouldEqual, DefaultMaxInnerIterations)
	test.That(t, NewALM(ALMOptions{MaxInnerIterations: 7}, logger).innerBudget(p), test.ShouldEqual, 7)
}

func TestProjectedNorm(t *testing.T) {
	p := &Problem{NumVars: 3, Lower: []float64{0, 0, 0}, Upper: []float64{1, 1, 1}}
	// pushing out of the lower bound, pushing out of the upper bound, free
	test.That(t, projectedNorm(p, []float64{0, 1, 0.5}, []float64{3, -4, 0.5}), test.ShouldEqual, 0.5)
	// pointing back into the box counts
	test.That(t, projectedNorm(p, []float64{0, 1, 0.5}, []float64{-3, 4, 0.5}), test.ShouldEqual, 4.)
}

func TestALMFailures(t *testing.T) {
	logger := logging.NewTestLogger(t)
	solver := NewALM(ALMOptions{}, logger)

	t.Run("crossed bounds", func(t *testing.T) {
		p := boundedParabola()
		p.Lower[0] = 2
		_, err := solver.Solve(context.Background(), p)
		test.That(t, err, test.ShouldWrap, ErrInfeasible)
		test.That(t, IsSolverFailure(err), test.ShouldBeTrue)
	})

	t.Run("malformed", func(t *testing.T) {
		p := circleOnLine()
		p.Initial = []float64{1}
		_, err := solver.Solve(context.Background(), p)
		test.That(t, err, test.ShouldWrap, ErrBadProblem)
	})

	t.Run("not finite", func(t *testing.T) {
		p := circleOnLine()
		p.Initial = []float64{math.NaN(), 0}
		_, err := solver.Solve(context.Background(), p)
		test.That(t, err, test.ShouldWrap, ErrNumerical)
	})

	t.Run("inconsistent equalities", func(t *testing.T) {
		p := circleOnLine()
		p.NumEq = 2
		p.Equality = func(dst, z []float64) {
			dst[0] = z[0] - 1
			dst[1] = z[0] + 1
		}
		p.EqualityJac = func(jac *mat.Dense, z []float64) {
			jac.Zero()
			jac.Set(0, 0, 1)
			jac.Set(1, 0, 1)
		}
		short := NewALM(ALMOptions{MaxOuterIterations: 5}, logger)
		_, err := short.Solve(context.Background(), p)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, IsSolverFailure(err), test.ShouldBeTrue)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := solver.Solve(ctx, circleOnLine())
		test.That(t, err, test.ShouldBeError, context.Canceled)
		test.That(t, IsSolverFailure(err), test.ShouldBeTrue)
	})
}

func TestProblemHelpers(t *testing.T) {
	p := boundedParabola()
	z := []float64{4}
	test.That(t, p.Violation(z), test.ShouldEqual, 3.)
	p.Clip(z)
	test.That(t, z[0], test.ShouldEqual, 1.)
	test.That(t, p.Violation(z), test.ShouldEqual, 0.)
	test.That(t, IsSolverFailure(ErrIterationLimit), test.ShouldBeTrue)
	test.That(t, IsSolverFailure(context.DeadlineExceeded), test.ShouldBeTrue)
}

func TestNewSolver(t *testing.T) {
	logger := logging.NewTestLogger(t)
	solver, err := NewSolver(&config.Config{}, logger)
	test.That(t, err, test.ShouldBeNil)
	_, ok := solver.(*ALM)
	test.That(t, ok, test.ShouldBeTrue)

	solver, err = NewSolver(&config.Config{Solver: config.SolverConfig{Type: config.SolverALM, MaxIterations: 3}}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, solver.(*ALM).opts.MaxOuterIterations, test.ShouldEqual, 3)

	_, err = NewSolver(&config.Config{Solver: config.SolverConfig{Type: "ipopt"}}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "ipopt")
}
