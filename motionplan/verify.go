package motionplan

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/floats"

	"github.com/acsr/racecar/config"
	"github.com/acsr/racecar/kinematics"
	"github.com/acsr/racecar/trajectory"
)

// CheckTrajectory verifies that traj starts at x0, follows the forward-Euler dynamics of model
// with the step of cfg, and stays inside the configured limits, all within tol. Every violation
// found is returned.
func CheckTrajectory(traj *trajectory.Trajectory, x0 []float64, model kinematics.Model, cfg *config.Config, tol float64) error {
	nx, nu := model.Dims()
	shape := trajectory.Shape{NX: nx, NU: nu, Horizon: cfg.Horizon}
	if got := traj.Shape(); got != shape {
		return errors.Errorf("trajectory has shape %v, expected %v", got, shape)
	}

	var err error
	if dist := floats.Distance(traj.State(0), x0, math.Inf(1)); dist > tol {
		err = multierr.Append(err, errors.Errorf("initial state is %g away from x0", dist))
	}

	next := make([]float64, nx)
	for k := 0; k < shape.Horizon; k++ {
		kinematics.Step(model, next, traj.State(k), traj.Control(k), cfg.Dt)
		if dist := floats.Distance(traj.State(k+1), next, math.Inf(1)); dist > tol {
			err = multierr.Append(err, errors.Errorf("step %d breaks the dynamics by %g", k, dist))
		}
	}

	limits := cfg.Limits()
	outside := func(v float64, in config.Interval) bool {
		return v < in.Min-tol || v > in.Max+tol
	}
	for k := 0; k <= shape.Horizon; k++ {
		if v := traj.X.At(kinematics.IndexSpeed, k); outside(v, limits.Speed) {
			err = multierr.Append(err, errors.Errorf("speed %g at step %d is outside [%g, %g]", v, k, limits.Speed.Min, limits.Speed.Max))
		}
	}
	for k := 0; k < shape.Horizon; k++ {
		if v := traj.U.At(kinematics.IndexSteering, k); outside(v, limits.Steering) {
			err = multierr.Append(err, errors.Errorf("steering %g at step %d is outside [%g, %g]",
				v, k, limits.Steering.Min, limits.Steering.Max))
		}
		if v := traj.U.At(kinematics.IndexThrottle, k); outside(v, limits.Throttle) {
			err = multierr.Append(err, errors.Errorf("throttle %g at step %d is outside [%g, %g]",
				v, k, limits.Throttle.Min, limits.Throttle.Max))
		}
	}
	return err
}
