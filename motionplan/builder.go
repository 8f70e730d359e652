package motionplan

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/acsr/racecar/config"
	"github.com/acsr/racecar/kinematics"
	"github.com/acsr/racecar/motionplan/nlp"
	"github.com/acsr/racecar/trajectory"
	"github.com/acsr/racecar/utils"
)

// Builder assembles the nonlinear program of one planning cycle. The decision vector stacks the
// N+1 state columns followed by the N control columns:
//
//	z = [X[:,0] ... X[:,N] U[:,0] ... U[:,N-1]]
//
// Equalities are the initial condition followed by one forward-Euler residual per step. The
// workspace is allocated once and overwritten by every Build, so a Builder serves a single
// planning cycle at a time.
type Builder struct {
	model   kinematics.Model
	shape   trajectory.Shape
	dt      float64
	weights []float64

	numVars int
	numEq   int

	x0      []float64
	ref     *mat.Dense
	lower   []float64
	upper   []float64
	initial []float64

	deriv []float64
	jx    *mat.Dense
	ju    *mat.Dense

	problem nlp.Problem
}

// NewBuilder returns a builder for the given model, horizon and step. weights has one entry per state
// component and limits become variable bounds.
func NewBuilder(model kinematics.Model, horizon int, dt float64, weights []float64, limits config.Limits) (*Builder, error) {
	nx, nu := model.Dims()
	if nx != kinematics.NX || nu != kinematics.NU {
		return nil, errors.Errorf("model has %d states and %d controls, expected %d and %d", nx, nu, kinematics.NX, kinematics.NU)
	}
	if horizon < 1 {
		return nil, errors.Errorf("horizon must be at least 1, got %d", horizon)
	}
	if len(weights) != nx {
		return nil, errors.Errorf("expected %d tracking weights, got %d", nx, len(weights))
	}
	b := &Builder{
		model:   model,
		shape:   trajectory.Shape{NX: nx, NU: nu, Horizon: horizon},
		dt:      dt,
		weights: append([]float64{}, weights...),
		numVars: nx*(horizon+1) + nu*horizon,
		numEq:   nx * (horizon + 1),
		x0:      make([]float64, nx),
		ref:     mat.NewDense(nx, horizon+1, nil),
		deriv:   make([]float64, nx),
		jx:      mat.NewDense(nx, nx, nil),
		ju:      mat.NewDense(nx, nu, nil),
	}
	b.initial = make([]float64, b.numVars)
	b.lower = make([]float64, b.numVars)
	b.upper = make([]float64, b.numVars)
	for i := range b.lower {
		b.lower[i] = math.Inf(-1)
		b.upper[i] = math.Inf(1)
	}
	for k := 0; k <= horizon; k++ {
		b.lower[b.stateIndex(k, kinematics.IndexSpeed)] = limits.Speed.Min
		b.upper[b.stateIndex(k, kinematics.IndexSpeed)] = limits.Speed.Max
	}
	for k := 0; k < horizon; k++ {
		b.lower[b.controlIndex(k, kinematics.IndexSteering)] = limits.Steering.Min
		b.upper[b.controlIndex(k, kinematics.IndexSteering)] = limits.Steering.Max
		b.lower[b.controlIndex(k, kinematics.IndexThrottle)] = limits.Throttle.Min
		b.upper[b.controlIndex(k, kinematics.IndexThrottle)] = limits.Throttle.Max
	}

	b.problem = nlp.Problem{
		NumVars:       b.numVars,
		Objective:     b.objective,
		ObjectiveGrad: b.objectiveGrad,
		NumEq:         b.numEq,
		Equality:      b.equality,
		EqualityJac:   b.equalityJac,
		Lower:         b.lower,
		Upper:         b.upper,
		Initial:       b.initial,
	}
	return b, nil
}

// Shape returns the trajectory shape the builder was made for.
func (b *Builder) Shape() trajectory.Shape {
	return b.shape
}

func (b *Builder) stateIndex(k, i int) int {
	return k*b.shape.NX + i
}

func (b *Builder) controlIndex(k, j int) int {
	return (b.shape.Horizon+1)*b.shape.NX + k*b.shape.NU + j
}

// Build loads x0 and the reference into the workspace and returns the problem. The warm start is the
// reference itself, with a trailing reference control dropped.
func (b *Builder) Build(x0 []float64, ref *trajectory.Reference) (*nlp.Problem, error) {
	if err := trajectory.CheckState(b.shape, x0); err != nil {
		return nil, err
	}
	if err := ref.Validate(b.shape); err != nil {
		return nil, err
	}
	copy(b.x0, x0)
	b.ref.Copy(ref.X)

	for k := 0; k <= b.shape.Horizon; k++ {
		for i := 0; i < b.shape.NX; i++ {
			b.initial[b.stateIndex(k, i)] = ref.X.At(i, k)
		}
	}
	for k := 0; k < b.shape.Horizon; k++ {
		for j := 0; j < b.shape.NU; j++ {
			b.initial[b.controlIndex(k, j)] = ref.U.At(j, k)
		}
	}
	return &b.problem, nil
}

// Extract copies a solution vector into a new trajectory.
func (b *Builder) Extract(z []float64) (*trajectory.Trajectory, error) {
	if len(z) != b.numVars {
		return nil, errors.Wrapf(nlp.ErrBadProblem, "solution has %d entries, expected %d", len(z), b.numVars)
	}
	if !utils.AllFinite(z) {
		return nil, errors.Wrap(nlp.ErrNumerical, "solution is not finite")
	}
	traj := trajectory.New(b.shape)
	for k := 0; k <= b.shape.Horizon; k++ {
		for i := 0; i < b.shape.NX; i++ {
			traj.X.Set(i, k, z[b.stateIndex(k, i)])
		}
	}
	for k := 0; k < b.shape.Horizon; k++ {
		for j := 0; j < b.shape.NU; j++ {
			traj.U.Set(j, k, z[b.controlIndex(k, j)])
		}
	}
	return traj, nil
}

func (b *Builder) objective(z []float64) float64 {
	cost := 0.
	for k := 0; k <= b.shape.Horizon; k++ {
		for i, w := range b.weights {
			if w == 0 {
				continue
			}
			cost += w * utils.Square(z[b.stateIndex(k, i)]-b.ref.At(i, k))
		}
	}
	return cost
}

func (b *Builder) objectiveGrad(grad, z []float64) {
	for i := range grad {
		grad[i] = 0
	}
	for k := 0; k <= b.shape.Horizon; k++ {
		for i, w := range b.weights {
			idx := b.stateIndex(k, i)
			grad[idx] = 2 * w * (z[idx] - b.ref.At(i, k))
		}
	}
}

func (b *Builder) state(z []float64, k int) []float64 {
	start := b.stateIndex(k, 0)
	return z[start : start+b.shape.NX]
}

func (b *Builder) control(z []float64, k int) []float64 {
	start := b.controlIndex(k, 0)
	return z[start : start+b.shape.NU]
}

// equality writes the initial condition rows, then X[:,k+1] - X[:,k] - dt·f(X[:,k], U[:,k]) for each k.
func (b *Builder) equality(dst, z []float64) {
	nx := b.shape.NX
	x := b.state(z, 0)
	for i := 0; i < nx; i++ {
		dst[i] = x[i] - b.x0[i]
	}
	for k := 0; k < b.shape.Horizon; k++ {
		x, next := b.state(z, k), b.state(z, k+1)
		b.model.Derivative(b.deriv, x, b.control(z, k))
		row := nx * (k + 1)
		for i := 0; i < nx; i++ {
			dst[row+i] = next[i] - x[i] - b.dt*b.deriv[i]
		}
	}
}

func (b *Builder) equalityJac(jac *mat.Dense, z []float64) {
	nx, nu := b.shape.NX, b.shape.NU
	jac.Zero()
	for i := 0; i < nx; i++ {
		jac.Set(i, b.stateIndex(0, i), 1)
	}
	for k := 0; k < b.shape.Horizon; k++ {
		kinematics.Jacobian(b.model, b.jx, b.ju, b.state(z, k), b.control(z, k))
		row := nx * (k + 1)
		for i := 0; i < nx; i++ {
			jac.Set(row+i, b.stateIndex(k+1, i), 1)
			for j := 0; j < nx; j++ {
				v := -b.dt * b.jx.At(i, j)
				if i == j {
					v--
				}
				jac.Set(row+i, b.stateIndex(k, j), v)
			}
			for j := 0; j < nu; j++ {
				jac.Set(row+i, b.controlIndex(k, j), -b.dt*b.ju.At(i, j))
			}
		}
	}
}
