//go:build windows || no_cgo

package nlp

import (
	"context"

	"github.com/pkg/errors"

	"github.com/acsr/racecar/logging"
)

// NloptOptions mirrors the type in the cgo compiled code.
type NloptOptions struct {
	MaxEvaluations       int
	Tolerance            float64
	FeasibilityTolerance float64
}

// Nlopt mimics the type in the cgo compiled code.
type Nlopt struct{}

// NewNlopt is not supported on no_cgo builds.
func NewNlopt(opts NloptOptions, logger logging.Logger) (*Nlopt, error) {
	return nil, errors.New("nlopt is not supported on this build")
}

// Solve refuses to solve problems without cgo.
func (n *Nlopt) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	return nil, errors.Wrap(ErrBadProblem, "cannot solve with nlopt without cgo")
}
