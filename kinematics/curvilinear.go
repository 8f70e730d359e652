package kinematics

import (
	"math"

	"github.com/golang/geo/r2"
)

// minArcScale keeps ṡ finite when the vehicle sits on the center of curvature (1 - nκ = 0).
const minArcScale = 1e-6

// PathGeometry is the part of a reference path the curvilinear dynamics depend on. It is
// parameterized by progress s.
type PathGeometry interface {
	Curvature(s float64) float64
	Heading(s float64) float64
	// Tangent is the derivative of the path position with respect to s.
	Tangent(s float64) r2.Point
}

// CurvilinearBicycle is the kinematic bicycle expressed relative to a reference path, with state
// [s, n, φ, v] where s is progress, n the signed lateral offset and φ the absolute heading:
//
//	ṡ = v cos(φ - θc(s) + δ) / (‖T(s)‖ (1 - n κ(s)))
//	ṅ = v sin(φ - θc(s) + δ)
//	φ̇ = v/L tan δ
//	v̇ = g(x, u)
//
// Its Jacobian is computed numerically.
type CurvilinearBicycle struct {
	wheelBase float64
	accel     Longitudinal
	path      PathGeometry
}

// NewCurvilinearBicycle returns a path-relative bicycle. A nil accel selects DefaultLongitudinal.
func NewCurvilinearBicycle(wheelBase float64, accel Longitudinal, path PathGeometry) *CurvilinearBicycle {
	if accel == nil {
		accel = DefaultLongitudinal()
	}
	return &CurvilinearBicycle{wheelBase: wheelBase, accel: accel, path: path}
}

// Dims returns (4, 2).
func (c *CurvilinearBicycle) Dims() (int, int) {
	return NX, NU
}

// Derivative implements Model.
func (c *CurvilinearBicycle) Derivative(dst, x, u []float64) {
	s, n, phi, v := x[IndexProgress], x[IndexLateral], x[IndexHeading], x[IndexSpeed]
	delta := u[IndexSteering]

	relative := phi - c.path.Heading(s) + delta
	scale := c.path.Tangent(s).Norm() * (1 - n*c.path.Curvature(s))
	if math.Abs(scale) < minArcScale {
		scale = math.Copysign(minArcScale, scale)
	}

	dst[IndexProgress] = v * math.Cos(relative) / scale
	dst[IndexLateral] = v * math.Sin(relative)
	dst[IndexHeading] = v / c.wheelBase * math.Tan(delta)
	dst[IndexSpeed] = c.accel.Acceleration(x, u)
}
