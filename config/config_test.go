package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/acsr/racecar/kinematics"
	"github.com/acsr/racecar/utils"
)

func validAttributes() AttributeMap {
	return AttributeMap{
		"horizon":    10,
		"dt":         0.1,
		"wheel_base": 2.5,
		"delta_min":  -0.5,
		"delta_max":  0.5,
		"v_min":      0.,
		"v_max":      10.,
		"d_min":      -1.,
		"d_max":      1.,
	}
}

func TestFromAttributes(t *testing.T) {
	conf, err := FromAttributes(validAttributes())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Horizon, test.ShouldEqual, 10)
	test.That(t, conf.FrameName(), test.ShouldEqual, FrameCartesian)
	test.That(t, conf.SolverType(), test.ShouldEqual, SolverALM)
	test.That(t, conf.WheelBaseLength(), test.ShouldEqual, 2.5)

	limits := conf.Limits()
	test.That(t, limits.Steering.Min, test.ShouldEqual, -0.5)
	test.That(t, limits.Steering.Max, test.ShouldEqual, 0.5)
	test.That(t, limits.Speed.Max, test.ShouldEqual, 10.)
	test.That(t, limits.Throttle.Min, test.ShouldEqual, -1.)

	weights := conf.Weights()
	test.That(t, weights, test.ShouldHaveLength, kinematics.NX)
	test.That(t, weights[0], test.ShouldEqual, 5.)
	test.That(t, weights[3], test.ShouldEqual, 0.)
	weights[0] = 100
	test.That(t, DefaultTrackingWeights[0], test.ShouldEqual, 5.)
}

func TestAxleOffsets(t *testing.T) {
	attrs := validAttributes()
	delete(attrs, "wheel_base")
	attrs["lf"] = 1.2
	attrs["lr"] = 1.3
	conf, err := FromAttributes(attrs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.WheelBaseLength(), test.ShouldAlmostEqual, 2.5)

	attrs["wheel_base"] = 3.
	_, err = FromAttributes(attrs)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "disagrees")

	delete(attrs, "wheel_base")
	delete(attrs, "lr")
	_, err = FromAttributes(attrs)
	test.That(t, utils.IsConfigurationError(err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"lr" is required`)

	delete(attrs, "lf")
	attrs["lr"] = 1.3
	_, err = FromAttributes(attrs)
	test.That(t, utils.IsConfigurationError(err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"lf" is required`)
}

func TestMissingFields(t *testing.T) {
	attrs := validAttributes()
	delete(attrs, "v_max")
	delete(attrs, "delta_min")
	_, err := FromAttributes(attrs)
	test.That(t, utils.IsConfigurationError(err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"v_max" is required`)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"delta_min" is required`)

	_, err = FromAttributes(AttributeMap{})
	for _, field := range []string{"horizon", "dt", "wheel_base", "d_min", "d_max"} {
		test.That(t, err.Error(), test.ShouldContainSubstring, `"`+field+`" is required`)
	}
}

func TestInvalidValues(t *testing.T) {
	for name, tc := range map[string]struct {
		key   string
		value interface{}
		msg   string
	}{
		"negative horizon": {"horizon", -2, "horizon must be at least 1"},
		"negative dt":      {"dt", -0.1, "dt must be a positive"},
		"weights":          {"tracking_weights", []float64{1, 1}, "needs 4 entries"},
		"negative weight":  {"tracking_weights", []float64{1, -1, 0, 0}, "tracking_weights[1]"},
		"solver":           {"solver", map[string]interface{}{"type": "ipopt"}, "unknown solver type"},
		"geometry":         {"lf", -1., "cannot be negative"},
		"unknown key":      {"wheelbase", 2., "wheelbase"},
	} {
		t.Run(name, func(t *testing.T) {
			attrs := validAttributes()
			attrs[tc.key] = tc.value
			_, err := FromAttributes(attrs)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, utils.IsConfigurationError(err), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.msg)
		})
	}
}

func TestCrossedBoundsAreNotAConfigError(t *testing.T) {
	attrs := validAttributes()
	attrs["v_min"] = 8.
	attrs["v_max"] = 2.
	conf, err := FromAttributes(attrs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Limits().Speed.Min, test.ShouldBeGreaterThan, conf.Limits().Speed.Max)
}

func TestLongitudinal(t *testing.T) {
	conf, err := FromAttributes(validAttributes())
	test.That(t, err, test.ShouldBeNil)
	u := []float64{0, 0.5}
	test.That(t, conf.Longitudinal().Acceleration(nil, u), test.ShouldAlmostEqual, kinematics.DefaultThrottleGain*0.5)

	conf.ThrottleGain = 2
	test.That(t, conf.Longitudinal().Acceleration(nil, u), test.ShouldAlmostEqual, 1.)

	conf.Acceleration = kinematics.LinearGain{K: -3}
	test.That(t, conf.Longitudinal().Acceleration(nil, u), test.ShouldAlmostEqual, -1.5)
}

func TestReadFile(t *testing.T) {
	attrs := validAttributes()
	attrs["frame"] = FrameCurvilinear
	attrs["solve_timeout"] = "50ms"
	attrs["solver"] = map[string]interface{}{"type": SolverNlopt, "max_iterations": 200}
	raw, err := json.Marshal(attrs)
	test.That(t, err, test.ShouldBeNil)

	filename := filepath.Join(t.TempDir(), "planner.json")
	test.That(t, os.WriteFile(filename, raw, 0o600), test.ShouldBeNil)
	conf, err := ReadFile(filename)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.FrameName(), test.ShouldEqual, FrameCurvilinear)
	test.That(t, conf.SolveTimeout, test.ShouldEqual, 50*time.Millisecond)
	test.That(t, conf.SolverType(), test.ShouldEqual, SolverNlopt)
	test.That(t, conf.Solver.MaxIterations, test.ShouldEqual, 200)

	_, err = Read(strings.NewReader("{"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSchema(t *testing.T) {
	raw, err := json.Marshal(Schema())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(raw), test.ShouldContainSubstring, "delta_min")
	test.That(t, string(raw), test.ShouldContainSubstring, "solve_timeout")
	test.That(t, string(raw), test.ShouldNotContainSubstring, "Acceleration")
}
