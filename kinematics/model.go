// Package kinematics defines the continuous-time vehicle models used by the planner, along with a
// kinematic bicycle in Cartesian and in path-relative (curvilinear) coordinates.
//
// A model only maps (state, control) to the state derivative. Discretization lives in Step, and
// the optimization problem is assembled in the motionplan package, so a new model only needs to
// implement Model.
package kinematics

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// Dimensions of the bicycle state and control vectors.
const (
	NX = 4
	NU = 2
)

// State indices. The curvilinear frame reuses the first two slots for progress and lateral offset.
const (
	IndexX = iota
	IndexY
	IndexHeading
	IndexSpeed
)

// Progress and lateral offset along the reference path in the curvilinear frame.
const (
	IndexProgress = IndexX
	IndexLateral  = IndexY
)

// Control indices.
const (
	IndexSteering = iota
	IndexThrottle
)

// Model is the continuous-time dynamics contract. Implementations must be pure: the same inputs
// always produce the same derivative and nothing outside dst is written.
type Model interface {
	// Dims returns the state and control dimensions.
	Dims() (nx, nu int)
	// Derivative writes f(x, u) into dst, which has length nx and does not alias x or u.
	Derivative(dst, x, u []float64)
}

// Differentiable is implemented by models that provide an analytic Jacobian.
type Differentiable interface {
	Model
	// Jacobian overwrites jx (nx×nx) with ∂f/∂x and ju (nx×nu) with ∂f/∂u.
	Jacobian(jx, ju *mat.Dense, x, u []float64)
}

// Jacobian fills jx and ju with the partial derivatives of m at (x, u). Models that do not
// implement Differentiable are differentiated with central finite differences.
func Jacobian(m Model, jx, ju *mat.Dense, x, u []float64) {
	if d, ok := m.(Differentiable); ok {
		d.Jacobian(jx, ju, x, u)
		return
	}
	nx, nu := m.Dims()
	xu := make([]float64, nx+nu)
	copy(xu, x)
	copy(xu[nx:], u)

	full := mat.NewDense(nx, nx+nu, nil)
	fd.Jacobian(full, func(y, z []float64) {
		m.Derivative(y, z[:nx], z[nx:])
	}, xu, &fd.JacobianSettings{Formula: fd.Central})

	jx.Copy(full.Slice(0, nx, 0, nx))
	ju.Copy(full.Slice(0, nx, nx, nx+nu))
}

// Step advances x by one explicit forward-Euler step of length dt and writes the result into dst.
// dst may alias x.
func Step(m Model, dst, x, u []float64, dt float64) {
	nx, _ := m.Dims()
	deriv := make([]float64, nx)
	m.Derivative(deriv, x, u)
	for i := range deriv {
		dst[i] = x[i] + dt*deriv[i]
	}
}
