//go:build !windows && !no_cgo

package nlp

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/acsr/racecar/logging"
)

func TestNloptEquality(t *testing.T) {
	solver, err := NewNlopt(NloptOptions{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	sol, err := solver.Solve(context.Background(), circleOnLine())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sol.Z[0], test.ShouldAlmostEqual, 0.5, 1e-4)
	test.That(t, sol.Z[1], test.ShouldAlmostEqual, 0.5, 1e-4)
	test.That(t, sol.Violation, test.ShouldBeLessThanOrEqualTo, DefaultFeasibilityTolerance)
}

func TestNloptBounds(t *testing.T) {
	solver, err := NewNlopt(NloptOptions{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	sol, err := solver.Solve(context.Background(), boundedParabola())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sol.Z[0], test.ShouldAlmostEqual, 1, 1e-4)
}

func TestNloptFailures(t *testing.T) {
	solver, err := NewNlopt(NloptOptions{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	crossed := boundedParabola()
	crossed.Lower[0] = 2
	_, err = solver.Solve(context.Background(), crossed)
	test.That(t, err, test.ShouldWrap, ErrInfeasible)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = solver.Solve(ctx, circleOnLine())
	test.That(t, err, test.ShouldWrap, context.Canceled)
}
