// Package fake implements a deterministic nlp.Solver for tests.
package fake

import (
	"context"
	"sync"

	"github.com/acsr/racecar/motionplan/nlp"
)

// Solver is a fake solver that returns the warm start of each problem, projected onto its bounds.
// Err and SolveFunc script other outcomes.
type Solver struct {
	// Err, when set, is returned from every Solve.
	Err error
	// SolveFunc, when set, replaces the default behavior.
	SolveFunc func(ctx context.Context, problem *nlp.Problem) (*nlp.Solution, error)

	mu       sync.Mutex
	initials [][]float64
}

// Solve returns the scripted outcome. Context errors take precedence.
func (s *Solver) Solve(ctx context.Context, problem *nlp.Problem) (*nlp.Solution, error) {
	s.mu.Lock()
	s.initials = append(s.initials, append([]float64{}, problem.Initial...))
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.SolveFunc != nil {
		return s.SolveFunc(ctx, problem)
	}
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	z := append([]float64{}, problem.Initial...)
	problem.Clip(z)
	return &nlp.Solution{
		Z:         z,
		Objective: problem.Objective(z),
		Violation: problem.Violation(z),
		Status:    "fake",
	}, nil
}

// Calls returns how many problems were submitted.
func (s *Solver) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.initials)
}

// Initial returns a copy of the warm start of the i-th submitted problem.
func (s *Solver) Initial(i int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64{}, s.initials[i]...)
}
