package globalpath

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"github.com/acsr/racecar/kinematics"
	"github.com/acsr/racecar/trajectory"
	"github.com/acsr/racecar/utils"
)

// Frame selects the coordinates a reference is expressed in.
type Frame int

const (
	// Cartesian references are [x, y, θ, v].
	Cartesian Frame = iota
	// Curvilinear references are [s, n, φ, v] with n = 0 on the path.
	Curvilinear
)

// Provider samples a reference for each planning cycle by marching along a Path at a target
// speed, starting from the projection of the current state. Steering follows the path curvature
// and throttle is zero. Once the end of the path is reached the reference parks on the last
// point with zero speed. Reference headings are unwrapped starting from the heading of the state,
// so they never jump by 2π.
type Provider struct {
	path      *Path
	speed     float64
	wheelBase float64
	frame     Frame
}

// NewProvider returns a reference provider in the given frame.
func NewProvider(path *Path, speed, wheelBase float64, frame Frame) *Provider {
	return &Provider{path: path, speed: speed, wheelBase: wheelBase, frame: frame}
}

// Path returns the underlying path.
func (p *Provider) Path() *Path {
	return p.path
}

// Reference implements the planner's reference provider contract: nx×(N+1) states and nu×N
// controls.
func (p *Provider) Reference(x0 []float64, horizon int, dt float64) (*trajectory.Reference, error) {
	shape := trajectory.Shape{NX: kinematics.NX, NU: kinematics.NU, Horizon: horizon}
	if err := trajectory.CheckState(shape, x0); err != nil {
		return nil, err
	}

	var s0 float64
	switch p.frame {
	case Curvilinear:
		s0 = x0[kinematics.IndexProgress]
	default:
		s0 = p.path.Project(r2.Point{X: x0[kinematics.IndexX], Y: x0[kinematics.IndexY]})
	}

	ref := &trajectory.Reference{
		X: mat.NewDense(shape.NX, horizon+1, nil),
		U: mat.NewDense(shape.NU, horizon, nil),
	}
	length := p.path.Length()
	heading := x0[kinematics.IndexHeading]
	for k := 0; k <= horizon; k++ {
		s := math.Min(s0+p.speed*dt*float64(k), length)
		speed := p.speed
		if s >= length {
			speed = 0
		}
		heading += utils.WrapToPi(p.path.Heading(s) - heading)
		switch p.frame {
		case Curvilinear:
			ref.X.SetCol(k, []float64{s, 0, heading, speed})
		default:
			pos := p.path.Position(s)
			ref.X.SetCol(k, []float64{pos.X, pos.Y, heading, speed})
		}
		if k < horizon {
			ref.U.SetCol(k, []float64{math.Atan(p.wheelBase * p.path.Curvature(s)), 0})
		}
	}
	return ref, nil
}
