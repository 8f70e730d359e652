package kinematics

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// Bicycle is the kinematic bicycle in Cartesian coordinates, with state [x, y, θ, v] and
// control [δ, d]:
//
//	ẋ = v cos θ
//	ẏ = v sin θ
//	θ̇ = v/L tan δ
//	v̇ = g(x, u)
type Bicycle struct {
	wheelBase float64
	accel     Longitudinal
}

// NewBicycle returns a Cartesian bicycle. A nil accel selects DefaultLongitudinal.
func NewBicycle(wheelBase float64, accel Longitudinal) *Bicycle {
	if accel == nil {
		accel = DefaultLongitudinal()
	}
	return &Bicycle{wheelBase: wheelBase, accel: accel}
}

// Dims returns (4, 2).
func (b *Bicycle) Dims() (int, int) {
	return NX, NU
}

// WheelBase returns L.
func (b *Bicycle) WheelBase() float64 {
	return b.wheelBase
}

// Derivative implements Model.
func (b *Bicycle) Derivative(dst, x, u []float64) {
	theta, v, delta := x[IndexHeading], x[IndexSpeed], u[IndexSteering]
	dst[IndexX] = v * math.Cos(theta)
	dst[IndexY] = v * math.Sin(theta)
	dst[IndexHeading] = v / b.wheelBase * math.Tan(delta)
	dst[IndexSpeed] = b.accel.Acceleration(x, u)
}

// Jacobian implements Differentiable.
func (b *Bicycle) Jacobian(jx, ju *mat.Dense, x, u []float64) {
	theta, v, delta := x[IndexHeading], x[IndexSpeed], u[IndexSteering]
	sin, cos := math.Sincos(theta)
	cosDelta := math.Cos(delta)

	jx.Zero()
	ju.Zero()
	jx.Set(IndexX, IndexHeading, -v*sin)
	jx.Set(IndexX, IndexSpeed, cos)
	jx.Set(IndexY, IndexHeading, v*cos)
	jx.Set(IndexY, IndexSpeed, sin)
	jx.Set(IndexHeading, IndexSpeed, math.Tan(delta)/b.wheelBase)
	ju.Set(IndexHeading, IndexSteering, v/(b.wheelBase*cosDelta*cosDelta))

	dx, du := make([]float64, NX), make([]float64, NU)
	accelGradient(b.accel, dx, du, x, u)
	jx.SetRow(IndexSpeed, dx)
	ju.SetRow(IndexSpeed, du)
}

// accelGradient uses the strategy's own gradient when it has one.
func accelGradient(accel Longitudinal, dx, du, x, u []float64) {
	if g, ok := accel.(LongitudinalGradient); ok {
		g.Gradient(dx, du, x, u)
		return
	}
	nx := len(x)
	xu := append(append(make([]float64, 0, nx+len(u)), x...), u...)
	grad := fd.Gradient(nil, func(z []float64) float64 {
		return accel.Acceleration(z[:nx], z[nx:])
	}, xu, &fd.Settings{Formula: fd.Central})
	copy(dx, grad[:nx])
	copy(du, grad[nx:])
}
