// Package trajectory holds planned and reference state/control sequences and their tabular export.
package trajectory

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Shape is the (state dimension, control dimension, horizon) triple a planner is built for.
type Shape struct {
	NX      int
	NU      int
	Horizon int
}

func (s Shape) String() string {
	return fmt.Sprintf("nx=%d nu=%d N=%d", s.NX, s.NU, s.Horizon)
}

// Trajectory is a planned sequence of N+1 states and N controls. Column k of X is the state at
// step k and column k of U is the control applied between steps k and k+1.
type Trajectory struct {
	X *mat.Dense
	U *mat.Dense
}

// New allocates a zeroed trajectory of the given shape.
func New(shape Shape) *Trajectory {
	return &Trajectory{
		X: mat.NewDense(shape.NX, shape.Horizon+1, nil),
		U: mat.NewDense(shape.NU, shape.Horizon, nil),
	}
}

// Shape returns the dimensions of the trajectory.
func (t *Trajectory) Shape() Shape {
	nx, cols := t.X.Dims()
	nu, _ := t.U.Dims()
	return Shape{NX: nx, NU: nu, Horizon: cols - 1}
}

// State returns a copy of the state at step k.
func (t *Trajectory) State(k int) []float64 {
	return mat.Col(nil, k, t.X)
}

// Control returns a copy of the control at step k.
func (t *Trajectory) Control(k int) []float64 {
	return mat.Col(nil, k, t.U)
}

// String renders one row per step with the state and the control applied from it.
func (t *Trajectory) String() string {
	shape := t.Shape()
	xHeaders, uHeaders := Headers(shape, nil, nil)

	w := table.NewWriter()
	header := table.Row{"k"}
	for _, h := range append(xHeaders, uHeaders...) {
		header = append(header, h)
	}
	w.AppendHeader(header)
	for k := 0; k <= shape.Horizon; k++ {
		row := table.Row{k}
		for i := 0; i < shape.NX; i++ {
			row = append(row, fmt.Sprintf("%.4f", t.X.At(i, k)))
		}
		for i := 0; i < shape.NU; i++ {
			if k == shape.Horizon {
				row = append(row, "")
				continue
			}
			row = append(row, fmt.Sprintf("%.4f", t.U.At(i, k)))
		}
		w.AppendRow(row)
	}
	return w.Render()
}

// Reference is the desired state and control sequence for one planning cycle. U may carry one
// trailing column beyond the horizon, which is ignored.
type Reference struct {
	X *mat.Dense
	U *mat.Dense
}

// Validate checks the reference against the planner shape.
func (r *Reference) Validate(shape Shape) error {
	if r == nil {
		return &ShapeMismatchError{Field: "reference", WantRows: shape.NX, WantCols: shape.Horizon + 1}
	}
	if err := checkDims("reference states", r.X, shape.NX, shape.Horizon+1); err != nil {
		return err
	}
	if r.U == nil {
		return &ShapeMismatchError{Field: "reference controls", WantRows: shape.NU, WantCols: shape.Horizon}
	}
	rows, cols := r.U.Dims()
	if rows != shape.NU || (cols != shape.Horizon && cols != shape.Horizon+1) {
		return &ShapeMismatchError{
			Field: "reference controls", WantRows: shape.NU, WantCols: shape.Horizon,
			GotRows: rows, GotCols: cols,
		}
	}
	return nil
}

// CheckState returns a ShapeMismatchError when x0 does not have nx entries.
func CheckState(shape Shape, x0 []float64) error {
	if len(x0) != shape.NX {
		return &ShapeMismatchError{Field: "initial state", WantRows: shape.NX, WantCols: 1, GotRows: len(x0), GotCols: 1}
	}
	return nil
}

func checkDims(field string, m *mat.Dense, rows, cols int) error {
	if m == nil {
		return &ShapeMismatchError{Field: field, WantRows: rows, WantCols: cols}
	}
	r, c := m.Dims()
	if r != rows || c != cols {
		return &ShapeMismatchError{Field: field, WantRows: rows, WantCols: cols, GotRows: r, GotCols: c}
	}
	return nil
}

// ShapeMismatchError is returned when a reference or state does not match the planner dimensions.
type ShapeMismatchError struct {
	Field    string
	WantRows int
	WantCols int
	GotRows  int
	GotCols  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s shape mismatch: expected %dx%d, got %dx%d", e.Field, e.WantRows, e.WantCols, e.GotRows, e.GotCols)
}

// IsShapeMismatch reports whether err is or wraps a ShapeMismatchError.
func IsShapeMismatch(err error) bool {
	var target *ShapeMismatchError
	return errors.As(err, &target)
}
