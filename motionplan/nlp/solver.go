package nlp

import (
	"github.com/pkg/errors"

	"github.com/acsr/racecar/config"
	"github.com/acsr/racecar/logging"
)

// NewSolver returns the backend selected by the solver section of cfg.
func NewSolver(cfg *config.Config, logger logging.Logger) (Solver, error) {
	opts := cfg.Solver
	switch cfg.SolverType() {
	case config.SolverALM:
		return NewALM(ALMOptions{
			MaxOuterIterations:   opts.MaxIterations,
			FeasibilityTolerance: opts.Tolerance,
			OptimalityTolerance:  opts.Tolerance,
		}, logger.Sublogger(config.SolverALM)), nil
	case config.SolverNlopt:
		return NewNlopt(NloptOptions{
			MaxEvaluations:       opts.MaxIterations,
			FeasibilityTolerance: opts.Tolerance,
		}, logger.Sublogger(config.SolverNlopt))
	default:
		return nil, errors.Errorf("unknown solver type %q", opts.Type)
	}
}
