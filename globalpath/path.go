// Package globalpath turns a coarse waypoint list into a smooth reference path and samples
// per-cycle references from it for the local planner.
package globalpath

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/acsr/racecar/utils"
)

const (
	// samples per waypoint segment used to seed a projection.
	projectionSamples = 20
	// golden-section iterations used to refine a projection.
	projectionRefinements = 60
)

var (
	errTooFewWaypoints = errors.New("a path needs at least two distinct waypoints")
	errRepeatedPoint   = errors.New("consecutive waypoints must be distinct")
)

// Path is a planar curve through waypoints, parameterized by cumulative chord length s and
// interpolated with natural cubic splines in x(s) and y(s).
type Path struct {
	waypoints []r2.Point
	knots     []float64
	xs, ys    interp.NaturalCubic
}

// NewPath fits a path through the waypoints.
func NewPath(waypoints []r2.Point) (*Path, error) {
	if len(waypoints) < 2 {
		return nil, errTooFewWaypoints
	}
	knots := make([]float64, len(waypoints))
	xs := make([]float64, len(waypoints))
	ys := make([]float64, len(waypoints))
	for i, p := range waypoints {
		xs[i], ys[i] = p.X, p.Y
		if i == 0 {
			continue
		}
		step := p.Sub(waypoints[i-1]).Norm()
		if step == 0 {
			return nil, errors.Wrapf(errRepeatedPoint, "waypoint %d", i)
		}
		knots[i] = knots[i-1] + step
	}

	path := &Path{waypoints: append([]r2.Point{}, waypoints...), knots: knots}
	if err := path.xs.Fit(knots, xs); err != nil {
		return nil, errors.Wrap(err, "fitting x spline")
	}
	if err := path.ys.Fit(knots, ys); err != nil {
		return nil, errors.Wrap(err, "fitting y spline")
	}
	return path, nil
}

// Length is the progress value at the last waypoint.
func (p *Path) Length() float64 {
	return p.knots[len(p.knots)-1]
}

// Waypoints returns the points the path was fit through.
func (p *Path) Waypoints() []r2.Point {
	return p.waypoints
}

func (p *Path) clamp(s float64) float64 {
	return utils.Clamp(s, 0, p.Length())
}

// Position returns the point at progress s.
func (p *Path) Position(s float64) r2.Point {
	s = p.clamp(s)
	return r2.Point{X: p.xs.Predict(s), Y: p.ys.Predict(s)}
}

// Tangent returns d(position)/ds.
func (p *Path) Tangent(s float64) r2.Point {
	s = p.clamp(s)
	return r2.Point{X: p.xs.PredictDerivative(s), Y: p.ys.PredictDerivative(s)}
}

// Heading returns the direction of the tangent in radians.
func (p *Path) Heading(s float64) float64 {
	t := p.Tangent(s)
	return math.Atan2(t.Y, t.X)
}

// Curvature returns the signed curvature at s, positive when turning left.
func (p *Path) Curvature(s float64) float64 {
	s = p.clamp(s)
	settings := &fd.Settings{Formula: fd.Central}
	ddx := fd.Derivative(p.xs.PredictDerivative, s, settings)
	ddy := fd.Derivative(p.ys.PredictDerivative, s, settings)
	t := p.Tangent(s)
	norm := t.Norm()
	if norm == 0 {
		return 0
	}
	return (t.X*ddy - t.Y*ddx) / (norm * norm * norm)
}

// Project returns the progress of the path point nearest to q.
func (p *Path) Project(q r2.Point) float64 {
	dist := func(s float64) float64 {
		return p.Position(s).Sub(q).Norm()
	}

	n := projectionSamples * (len(p.knots) - 1)
	samples := make([]float64, n+1)
	floats.Span(samples, 0, p.Length())
	distances := make([]float64, len(samples))
	for i, s := range samples {
		distances[i] = dist(s)
	}
	best := floats.MinIdx(distances)

	lo := samples[max(best-1, 0)]
	hi := samples[min(best+1, n)]
	// golden-section search on the bracketing samples
	invPhi := (math.Sqrt(5) - 1) / 2
	a, b := lo+(1-invPhi)*(hi-lo), lo+invPhi*(hi-lo)
	fa, fb := dist(a), dist(b)
	for i := 0; i < projectionRefinements; i++ {
		if fa < fb {
			hi, b, fb = b, a, fa
			a = lo + (1-invPhi)*(hi-lo)
			fa = dist(a)
		} else {
			lo, a, fa = a, b, fb
			b = lo + invPhi*(hi-lo)
			fb = dist(b)
		}
	}
	return (lo + hi) / 2
}

// ToFrenet converts a Cartesian state [x, y, θ, v] into [s, n, θ, v]. The heading stays absolute.
func (p *Path) ToFrenet(x []float64) []float64 {
	q := r2.Point{X: x[0], Y: x[1]}
	s := p.Project(q)
	t := p.Tangent(s).Normalize()
	n := t.Cross(q.Sub(p.Position(s)))
	return []float64{s, n, x[2], x[3]}
}

// ToCartesian converts a curvilinear state [s, n, φ, v] into [x, y, φ, v].
func (p *Path) ToCartesian(x []float64) []float64 {
	pos := p.Position(x[0])
	normal := p.Tangent(x[0]).Normalize().Ortho()
	pos = pos.Add(normal.Mul(x[1]))
	return []float64{pos.X, pos.Y, x[2], x[3]}
}
