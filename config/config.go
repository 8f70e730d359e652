// Package config defines the planner configuration, how it is read from JSON and how it is validated.
package config

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/acsr/racecar/kinematics"
	"github.com/acsr/racecar/utils"
)

// Frame names of the built in planner variants. Other frames can be registered with the motionplan
// package.
const (
	FrameCartesian   = "cartesian"
	FrameCurvilinear = "curvilinear"
)

// Solver backend names.
const (
	SolverALM   = "alm"
	SolverNlopt = "nlopt"
)

// DefaultTrackingWeights penalizes the two position components only.
var DefaultTrackingWeights = []float64{5, 5, 0, 0}

// Interval is a closed range of allowed values.
type Interval struct {
	Min float64
	Max float64
}

// Limits are the resolved box constraints of a planner.
type Limits struct {
	Steering Interval
	Throttle Interval
	Speed    Interval
}

// SolverConfig selects and tunes the nonlinear program solver.
type SolverConfig struct {
	Type          string  `json:"type,omitempty"`
	MaxIterations int     `json:"max_iterations,omitempty"`
	Tolerance     float64 `json:"tolerance,omitempty"`
}

// Config is how you configure a planner. The six bounds and the geometry are required.
type Config struct {
	Frame   string  `json:"frame,omitempty"`
	Horizon int     `json:"horizon"`
	Dt      float64 `json:"dt"`

	DeltaMin *float64 `json:"delta_min"`
	DeltaMax *float64 `json:"delta_max"`
	VMin     *float64 `json:"v_min"`
	VMax     *float64 `json:"v_max"`
	DMin     *float64 `json:"d_min"`
	DMax     *float64 `json:"d_max"`

	// Either wheel_base or both axle offsets.
	WheelBase float64 `json:"wheel_base,omitempty"`
	Lf        float64 `json:"lf,omitempty"`
	Lr        float64 `json:"lr,omitempty"`

	ThrottleGain    float64       `json:"throttle_gain,omitempty"`
	TrackingWeights []float64     `json:"tracking_weights,omitempty"`
	SolveTimeout    time.Duration `json:"solve_timeout,omitempty"`
	Solver          SolverConfig  `json:"solver,omitempty"`

	// Acceleration overrides the linear throttle model. It can only be set from code.
	Acceleration kinematics.Longitudinal `json:"-"`
}

// Validate ensures all parts of the config are valid. Every problem found is reported.
func (cfg *Config) Validate(path string) error {
	var err error
	fail := func(format string, args ...interface{}) {
		err = multierr.Append(err, utils.NewConfigValidationError(path, errors.Errorf(format, args...)))
	}

	if cfg.Horizon == 0 {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "horizon"))
	} else if cfg.Horizon < 1 {
		fail("horizon must be at least 1, got %d", cfg.Horizon)
	}
	if cfg.Dt == 0 {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "dt"))
	} else if !(cfg.Dt > 0) || math.IsInf(cfg.Dt, 1) {
		fail("dt must be a positive finite step, got %v", cfg.Dt)
	}

	for _, bound := range []struct {
		name  string
		value *float64
	}{
		{"delta_min", cfg.DeltaMin}, {"delta_max", cfg.DeltaMax},
		{"v_min", cfg.VMin}, {"v_max", cfg.VMax},
		{"d_min", cfg.DMin}, {"d_max", cfg.DMax},
	} {
		if bound.value == nil {
			err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, bound.name))
			continue
		}
		if math.IsNaN(*bound.value) {
			fail("%q is not a number", bound.name)
		}
	}

	switch {
	case cfg.WheelBase < 0 || cfg.Lf < 0 || cfg.Lr < 0:
		fail("wheel_base, lf and lr cannot be negative")
	case cfg.WheelBase == 0 && cfg.Lf == 0 && cfg.Lr == 0:
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "wheel_base"))
	case cfg.Lf > 0 && cfg.Lr == 0:
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "lr"))
	case cfg.Lr > 0 && cfg.Lf == 0:
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "lf"))
	case cfg.WheelBase > 0 && cfg.Lf+cfg.Lr > 0 && !utils.Float64AlmostEqual(cfg.WheelBase, cfg.Lf+cfg.Lr, 1e-9):
		fail("wheel_base %v disagrees with lf + lr = %v", cfg.WheelBase, cfg.Lf+cfg.Lr)
	}

	if math.IsNaN(cfg.ThrottleGain) || math.IsInf(cfg.ThrottleGain, 0) {
		fail("throttle_gain must be finite")
	}
	if len(cfg.TrackingWeights) != 0 {
		if len(cfg.TrackingWeights) != kinematics.NX {
			fail("tracking_weights needs %d entries, got %d", kinematics.NX, len(cfg.TrackingWeights))
		}
		for i, w := range cfg.TrackingWeights {
			if !(w >= 0) || math.IsInf(w, 1) {
				fail("tracking_weights[%d] must be a non-negative finite number, got %v", i, w)
			}
		}
	}
	if cfg.SolveTimeout < 0 {
		fail("solve_timeout cannot be negative")
	}

	switch cfg.Solver.Type {
	case "", SolverALM, SolverNlopt:
	default:
		fail("unknown solver type %q", cfg.Solver.Type)
	}
	if cfg.Solver.MaxIterations < 0 {
		fail("solver max_iterations cannot be negative")
	}
	if cfg.Solver.Tolerance < 0 || math.IsNaN(cfg.Solver.Tolerance) {
		fail("solver tolerance cannot be negative")
	}
	return err
}

// FrameName returns the configured frame, defaulting to cartesian.
func (cfg *Config) FrameName() string {
	if cfg.Frame == "" {
		return FrameCartesian
	}
	return cfg.Frame
}

// SolverType returns the configured solver backend, defaulting to the augmented Lagrangian solver.
func (cfg *Config) SolverType() string {
	if cfg.Solver.Type == "" {
		return SolverALM
	}
	return cfg.Solver.Type
}

// WheelBaseLength returns wheel_base, or lf + lr when wheel_base is absent.
func (cfg *Config) WheelBaseLength() float64 {
	if cfg.WheelBase > 0 {
		return cfg.WheelBase
	}
	return cfg.Lf + cfg.Lr
}

// Weights returns the tracking weights, one per state component.
func (cfg *Config) Weights() []float64 {
	if len(cfg.TrackingWeights) == 0 {
		return append([]float64{}, DefaultTrackingWeights...)
	}
	return append([]float64{}, cfg.TrackingWeights...)
}

// Longitudinal returns the acceleration strategy. It is never nil.
func (cfg *Config) Longitudinal() kinematics.Longitudinal {
	if cfg.Acceleration != nil {
		return cfg.Acceleration
	}
	if cfg.ThrottleGain != 0 {
		return kinematics.LinearGain{K: cfg.ThrottleGain}
	}
	return kinematics.DefaultLongitudinal()
}

// Limits returns the box constraints. Validate must have succeeded.
func (cfg *Config) Limits() Limits {
	return Limits{
		Steering: Interval{Min: *cfg.DeltaMin, Max: *cfg.DeltaMax},
		Throttle: Interval{Min: *cfg.DMin, Max: *cfg.DMax},
		Speed:    Interval{Min: *cfg.VMin, Max: *cfg.VMax},
	}
}
