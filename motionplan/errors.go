package motionplan

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrPlannerBusy is returned when Plan is called while another call on the same planner is running.
var ErrPlannerBusy = errors.New("planner is busy with another planning cycle")

// errRunnerClosed is returned by a Runner after Close.
var errRunnerClosed = errors.New("planner runner is closed")

// SolverError is returned when a planning cycle could not produce a trajectory. Cause is one of the
// nlp failure sentinels or a context error.
type SolverError struct {
	Cause error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("motion planner failed to find a trajectory: %v", e.Cause)
}

// Unwrap returns the cause.
func (e *SolverError) Unwrap() error {
	return e.Cause
}

// NewSolverError wraps a solver failure.
func NewSolverError(cause error) error {
	return &SolverError{Cause: cause}
}

// IsSolverFailure reports whether err is a SolverError.
func IsSolverFailure(err error) bool {
	var target *SolverError
	return errors.As(err, &target)
}
