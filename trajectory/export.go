package trajectory

import (
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
)

// tableNameLayout is `_<day>_<hour>_<minute>_<second>` in local time.
const tableNameLayout = "_02_15_04_05"

// TableName derives the export table name from the current time.
func TableName(clk clock.Clock) string {
	return clk.Now().Format(tableNameLayout)
}

// Headers returns column names for the state and control rows. Supplied names are used in order
// and missing ones default to x_i and u_i.
func Headers(shape Shape, xHeaders, uHeaders []string) ([]string, []string) {
	pad := func(prefix string, supplied []string, n int) []string {
		return lo.Times(n, func(i int) string {
			if i < len(supplied) && supplied[i] != "" {
				return supplied[i]
			}
			return fmt.Sprintf("%s_%d", prefix, i)
		})
	}
	return pad("x", xHeaders, shape.NX), pad("u", uHeaders, shape.NU)
}

// Row is one exported step. The terminal row carries the final state only.
type Row struct {
	Dt       float64
	X        []float64
	U        []float64
	Terminal bool
}

// Table is the flat, row-per-step form of a trajectory.
type Table struct {
	StateColumns   []string
	ControlColumns []string
	Rows           []Row
}

// Export flattens traj into one row per step followed by a terminal state row. dts holds the step
// length of each of the N steps; a single value applies to all of them.
func Export(traj *Trajectory, dts []float64, xHeaders, uHeaders []string) (*Table, error) {
	shape := traj.Shape()
	switch len(dts) {
	case 1:
		dts = lo.Times(shape.Horizon, func(int) float64 { return dts[0] })
	case shape.Horizon:
	default:
		return nil, &ShapeMismatchError{Field: "step lengths", WantRows: shape.Horizon, WantCols: 1, GotRows: len(dts), GotCols: 1}
	}

	tbl := &Table{}
	tbl.StateColumns, tbl.ControlColumns = Headers(shape, xHeaders, uHeaders)
	tbl.Rows = make([]Row, 0, shape.Horizon+1)
	for k := 0; k < shape.Horizon; k++ {
		tbl.Rows = append(tbl.Rows, Row{Dt: dts[k], X: traj.State(k), U: traj.Control(k)})
	}
	tbl.Rows = append(tbl.Rows, Row{X: traj.State(shape.Horizon), Terminal: true})
	return tbl, nil
}

// Statement is one SQL statement with its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Schema returns the statements that (re)create the table called name.
func (tbl *Table) Schema(name string) []Statement {
	cols := []string{"id INTEGER PRIMARY KEY AUTOINCREMENT", "dt REAL"}
	for _, c := range append(append([]string{}, tbl.StateColumns...), tbl.ControlColumns...) {
		cols = append(cols, quoteIdent(c)+" REAL")
	}
	return []Statement{
		{SQL: "DROP TABLE IF EXISTS " + quoteIdent(name)},
		{SQL: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(name), strings.Join(cols, ", "))},
	}
}

// InsertSQL returns the parameterized insert for step rows and for the terminal row.
func (tbl *Table) InsertSQL(name string) (step, terminal string) {
	stepCols := append([]string{"dt"}, append(append([]string{}, tbl.StateColumns...), tbl.ControlColumns...)...)
	return insertInto(name, stepCols), insertInto(name, tbl.StateColumns)
}

// Args returns the positional arguments of row for the matching InsertSQL statement.
func (row Row) Args() []any {
	args := make([]any, 0, 1+len(row.X)+len(row.U))
	if !row.Terminal {
		args = append(args, row.Dt)
	}
	for _, v := range row.X {
		args = append(args, v)
	}
	if !row.Terminal {
		for _, v := range row.U {
			args = append(args, v)
		}
	}
	return args
}

// Statements returns the full export as SQL: schema first, then one insert per row.
func (tbl *Table) Statements(name string) []Statement {
	stmts := tbl.Schema(name)
	step, terminal := tbl.InsertSQL(name)
	for _, row := range tbl.Rows {
		query := step
		if row.Terminal {
			query = terminal
		}
		stmts = append(stmts, Statement{SQL: query, Args: row.Args()})
	}
	return stmts
}

func insertInto(name string, cols []string) string {
	quoted := lo.Map(cols, func(c string, _ int) string { return quoteIdent(c) })
	placeholders := lo.Times(len(cols), func(int) string { return "?" })
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
