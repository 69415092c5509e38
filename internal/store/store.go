// Package store materializes a dataset into a private in-memory SQLite
// database and runs validated queries against it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/askcsv/internal/dataset"
)

// ExecutionError carries the engine's rejection of a query.
type ExecutionError struct {
	Query string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute query: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Result is the column-labeled output of one query. A result with zero rows
// is valid.
type Result struct {
	Columns []string          `json:"columns"`
	Rows    [][]dataset.Value `json:"rows"`
}

// Empty reports whether the query produced no rows.
func (r *Result) Empty() bool { return r == nil || len(r.Rows) == 0 }

// Column returns the cells of column i.
func (r *Result) Column(i int) []dataset.Value {
	out := make([]dataset.Value, len(r.Rows))
	for j, row := range r.Rows {
		out[j] = row[i]
	}
	return out
}

// Records renders rows as column-name keyed maps.
func (r *Result) Records() []map[string]any {
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for c, name := range r.Columns {
			rec[name] = row[c]
		}
		out[i] = rec
	}
	return out
}

// Store is a request-scoped relational copy of one dataset. ID names the
// in-memory database.
type Store struct {
	ID   string
	db   *sql.DB
	rows int
}

// Open creates a fresh in-memory database holding ds as data_table. The
// database is private to the returned Store and vanishes on Close.
func Open(ctx context.Context, ds *dataset.Dataset) (*Store, error) {
	if ds == nil || len(ds.Columns) == 0 {
		return nil, dataset.ErrNoColumns
	}
	id := uuid.NewString()
	db, err := sql.Open("sqlite", memoryDSN(id))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection, so every statement sees the same in-memory database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{ID: id, db: db}
	if err := s.materialize(ctx, ds); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set query_only: %w", err)
	}
	return s, nil
}

// memoryDSN names a private in-memory database. Without cache=shared no other
// connection can reach it, even one opened with the same name.
func memoryDSN(id string) string {
	return "file:" + id + "?mode=memory&cache=private"
}

func (s *Store) materialize(ctx context.Context, ds *dataset.Dataset) error {
	schema := dataset.Describe(ds)
	if _, err := s.db.ExecContext(ctx, schema.String()); err != nil {
		return fmt.Errorf("create table %s: %w", schema.Table, err)
	}
	cols := make([]string, len(schema.Columns))
	marks := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = dataset.QuoteIdent(c.Name)
		marks[i] = "?"
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", schema.Table, strings.Join(cols, ", "), strings.Join(marks, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(ds.Columns))
	n := ds.NumRows()
	for i := 0; i < n; i++ {
		for c := range ds.Columns {
			args[c] = ds.Columns[c].Values[i].Any()
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.rows = n
	return nil
}

// Rows returns the number of materialized rows.
func (s *Store) Rows() int { return s.rows }

// Execute runs q and collects every row. Engine failures are returned as
// *ExecutionError.
func (s *Store) Execute(ctx context.Context, q string) (*Result, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, &ExecutionError{Query: q, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &ExecutionError{Query: q, Err: err}
	}
	res := &Result{Columns: cols, Rows: [][]dataset.Value{}}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &ExecutionError{Query: q, Err: err}
		}
		row := make([]dataset.Value, len(cols))
		for i, v := range raw {
			row[i] = toValue(v)
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Query: q, Err: err}
	}
	return res, nil
}

// Close discards the database.
func (s *Store) Close() error { return s.db.Close() }

// Run materializes ds, executes q and discards the database.
func Run(ctx context.Context, ds *dataset.Dataset, q string) (*Result, error) {
	s, err := Open(ctx, ds)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Execute(ctx, q)
}

func toValue(v any) dataset.Value {
	switch x := v.(type) {
	case nil:
		return dataset.Null()
	case int64:
		return dataset.Int(x)
	case int:
		return dataset.Int(int64(x))
	case float64:
		return dataset.Real(x)
	case bool:
		if x {
			return dataset.Int(1)
		}
		return dataset.Int(0)
	case string:
		return dataset.Text(x)
	case []byte:
		return dataset.Text(string(x))
	case time.Time:
		return dataset.Text(x.Format(time.RFC3339Nano))
	default:
		return dataset.Text(fmt.Sprint(x))
	}
}
