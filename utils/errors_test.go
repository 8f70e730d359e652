package utils

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/test"
)

func TestConfigValidationError(t *testing.T) {
	err := NewConfigValidationFieldRequiredError("planner", "dt")
	test.That(t, err.Error(), test.ShouldEqual, `error validating "planner": "dt" is required`)
	test.That(t, IsConfigurationError(err), test.ShouldBeTrue)

	inner := errors.New("must be positive")
	err = NewConfigValidationError("", inner)
	test.That(t, err.Error(), test.ShouldContainSubstring, "must be positive")
	test.That(t, err, test.ShouldWrap, inner)

	combined := multierr.Combine(errors.New("other"), NewConfigValidationFieldRequiredError("planner", "horizon"))
	test.That(t, IsConfigurationError(combined), test.ShouldBeTrue)
	test.That(t, IsConfigurationError(errors.New("plain")), test.ShouldBeFalse)
	test.That(t, IsConfigurationError(nil), test.ShouldBeFalse)
}

func TestWrapToPi(t *testing.T) {
	test.That(t, WrapToPi(0), test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, WrapToPi(math.Pi), test.ShouldAlmostEqual, math.Pi, 1e-12)
	test.That(t, WrapToPi(-math.Pi), test.ShouldAlmostEqual, math.Pi, 1e-12)
	test.That(t, WrapToPi(3*math.Pi/2), test.ShouldAlmostEqual, -math.Pi/2, 1e-12)
	test.That(t, WrapToPi(-5*math.Pi/2), test.ShouldAlmostEqual, -math.Pi/2, 1e-12)
	test.That(t, Clamp(5, -1, 1), test.ShouldEqual, 1.)
	test.That(t, Clamp(-5, -1, 1), test.ShouldEqual, -1.)
	test.That(t, AllFinite([]float64{1, 2}), test.ShouldBeTrue)
	test.That(t, AllFinite([]float64{1, math.NaN()}), test.ShouldBeFalse)
}

func TestStoppableWorkers(t *testing.T) {
	var started atomic.Int32
	workers := NewStoppableWorkers(func(ctx context.Context) {
		started.Add(1)
		<-ctx.Done()
	})
	workers.AddWorkers(func(ctx context.Context) {
		started.Add(1)
		<-ctx.Done()
	})
	workers.Stop()
	test.That(t, started.Load(), test.ShouldEqual, int32(2))
	test.That(t, workers.Context().Err(), test.ShouldNotBeNil)

	// no-op once stopped
	workers.AddWorkers(func(ctx context.Context) { started.Add(1) })
	test.That(t, started.Load(), test.ShouldEqual, int32(2))
}
