// Package store persists exported trajectories to SQLite.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	// registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/acsr/racecar/logging"
	"github.com/acsr/racecar/trajectory"
)

const runsSchema = `CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	rows INTEGER NOT NULL,
	created_at TEXT NOT NULL
)`

// Run describes one saved trajectory.
type Run struct {
	ID        uuid.UUID
	TableName string
	Rows      int
	CreatedAt time.Time
}

// SQLite stores each trajectory in its own table and keeps an index of them in the runs table.
type SQLite struct {
	db     *sql.DB
	clock  clock.Clock
	logger logging.Logger
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string, clk clock.Clock, logger logging.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, runsSchema); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "creating runs table"), db.Close())
	}
	return &SQLite{db: db, clock: clk, logger: logger}, nil
}

// Save writes tbl into the table called name, replacing any previous contents, and records the run.
// Everything happens in one transaction.
func (s *SQLite) Save(ctx context.Context, name string, tbl *trajectory.Table) (run Run, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, err
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, tx.Rollback())
		}
	}()

	for _, stmt := range tbl.Schema(name) {
		if _, err := tx.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
			return Run{}, errors.Wrapf(err, "creating table %s", name)
		}
	}

	stepSQL, terminalSQL := tbl.InsertSQL(name)
	step, err := tx.PrepareContext(ctx, stepSQL)
	if err != nil {
		return Run{}, err
	}
	defer func() {
		err = multierr.Combine(err, step.Close())
	}()
	terminal, err := tx.PrepareContext(ctx, terminalSQL)
	if err != nil {
		return Run{}, err
	}
	defer func() {
		err = multierr.Combine(err, terminal.Close())
	}()

	total := len(tbl.Rows)
	every := max(total/10, 1)
	for i, row := range tbl.Rows {
		stmt := step
		if row.Terminal {
			stmt = terminal
		}
		if _, err := stmt.ExecContext(ctx, row.Args()...); err != nil {
			return Run{}, errors.Wrapf(err, "inserting row %d", i)
		}
		if (i+1)%every == 0 || i+1 == total {
			s.logger.Debugw("saving trajectory", "table", name, "progress", 100*(i+1)/total)
		}
	}

	run = Run{ID: uuid.New(), TableName: name, Rows: total, CreatedAt: s.clock.Now().UTC()}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, table_name, rows, created_at) VALUES (?, ?, ?, ?)",
		run.ID.String(), run.TableName, run.Rows, run.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return Run{}, errors.Wrap(err, "recording run")
	}
	if err := tx.Commit(); err != nil {
		return Run{}, err
	}
	s.logger.Infow("saved trajectory", "table", name, "rows", total, "run", run.ID)
	return run, nil
}

// Runs lists saved runs, oldest first.
func (s *SQLite) Runs(ctx context.Context) (runs []Run, err error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, table_name, rows, created_at FROM runs ORDER BY created_at, rowid")
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, rows.Close())
	}()

	for rows.Next() {
		var id, createdAt string
		var run Run
		if err := rows.Scan(&id, &run.TableName, &run.Rows, &createdAt); err != nil {
			return nil, err
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
