package kinematics

// DefaultThrottleGain maps a unit throttle command to m/s² of acceleration.
const DefaultThrottleGain = 7.9

// Longitudinal produces the speed derivative from the state and control. It is the only
// replaceable piece of the bicycle dynamics.
type Longitudinal interface {
	Acceleration(x, u []float64) float64
}

// LongitudinalGradient is implemented by strategies that know their own partial derivatives.
type LongitudinalGradient interface {
	Longitudinal
	// Gradient overwrites dx with ∂a/∂x and du with ∂a/∂u.
	Gradient(dx, du, x, u []float64)
}

// LinearGain is v̇ = K·d.
type LinearGain struct {
	K float64
}

// Acceleration returns K times the throttle command.
func (g LinearGain) Acceleration(x, u []float64) float64 {
	return g.K * u[IndexThrottle]
}

// Gradient of K·d.
func (g LinearGain) Gradient(dx, du, x, u []float64) {
	for i := range dx {
		dx[i] = 0
	}
	for i := range du {
		du[i] = 0
	}
	du[IndexThrottle] = g.K
}

// DefaultLongitudinal returns the linear throttle model with DefaultThrottleGain.
func DefaultLongitudinal() Longitudinal {
	return LinearGain{K: DefaultThrottleGain}
}
