package motionplan

import (
	"github.com/benbjohnson/clock"

	"github.com/acsr/racecar/kinematics"
	"github.com/acsr/racecar/motionplan/nlp"
)

type plannerOptions struct {
	solver   nlp.Solver
	geometry kinematics.PathGeometry
	clock    clock.Clock
}

func newPlannerOptions(opts []Option) *plannerOptions {
	options := &plannerOptions{clock: clock.New()}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Option customizes a planner.
type Option func(*plannerOptions)

// WithSolver replaces the solver selected by the configuration.
func WithSolver(solver nlp.Solver) Option {
	return func(opts *plannerOptions) {
		opts.solver = solver
	}
}

// WithPathGeometry supplies the path the curvilinear frame is measured against.
func WithPathGeometry(geometry kinematics.PathGeometry) Option {
	return func(opts *plannerOptions) {
		opts.geometry = geometry
	}
}

// WithClock sets the clock used to time solves.
func WithClock(clk clock.Clock) Option {
	return func(opts *plannerOptions) {
		opts.clock = clk
	}
}
