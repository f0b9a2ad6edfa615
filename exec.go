package simpledb

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// prepare builds the statement and picks the executor it runs on
func (s *Sql) prepare(ctx context.Context, op string) (Executor, string, []any, error) {
	query, args, err := s.Build()
	if err != nil {
		return nil, query, nil, err
	}

	if s.db == nil {
		return nil, query, nil, &ExecutionError{Op: op, Query: query, Err: ErrUnbound}
	}

	exec, err := s.db.executor(ctx)
	if err != nil {
		return nil, query, nil, err
	}

	return exec, query, args, nil
}

// Exec runs the statement and returns the driver's result
func (s *Sql) Exec(ctx context.Context) (sql.Result, error) {
	return s.exec(ctx, "exec")
}

// Run runs the statement and discards its result.
// It is meant for schema statements such as CREATE, DROP and TRUNCATE.
func (s *Sql) Run(ctx context.Context) error {
	_, err := s.exec(ctx, "run")
	return err
}

func (s *Sql) exec(ctx context.Context, op string) (sql.Result, error) {
	exec, query, args, err := s.prepare(ctx, op)
	if err != nil {
		return nil, err
	}

	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &ExecutionError{Op: op, Query: query, Err: err}
	}

	return result, nil
}

// Update runs the statement and returns the number of affected rows
func (s *Sql) Update(ctx context.Context) (int64, error) {
	return s.affected(ctx, "update")
}

// Delete runs the statement and returns the number of affected rows
func (s *Sql) Delete(ctx context.Context) (int64, error) {
	return s.affected(ctx, "delete")
}

func (s *Sql) affected(ctx context.Context, op string) (int64, error) {
	result, err := s.exec(ctx, op)
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, &ExecutionError{Op: op, Query: s.String(), Err: err}
	}

	return n, nil
}

// Insert runs an INSERT statement and returns the generated primary key.
//
// For dialects that report keys through RETURNING (postgres), the statement
// must carry a RETURNING clause: the first column of the row it returns is the key.
func (s *Sql) Insert(ctx context.Context) (int64, error) {
	const op = "insert"

	if !isInsert(s.String()) {
		return 0, &ExecutionError{Op: op, Query: s.String(), Err: ErrNotInsert}
	}

	if rd, ok := s.dialect.(ReturningDialect); ok && rd.ReturnsGeneratedKeys() {
		row, found, err := s.selectOne(ctx, op)
		if err != nil {
			return 0, err
		}
		if !found || row.Len() == 0 {
			return 0, &ExecutionError{Op: op, Query: s.String(), Err: ErrNoGeneratedKey}
		}
		return decodeScalar[int64](row.columns[0], row.values[0])
	}

	result, err := s.exec(ctx, op)
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, &ExecutionError{Op: op, Query: s.String(), Err: err}
	}
	if id < 1 {
		return 0, &ExecutionError{Op: op, Query: s.String(), Err: ErrNoGeneratedKey}
	}

	return id, nil
}

func isInsert(query string) bool {
	fields := strings.Fields(query)
	return len(fields) > 0 && strings.EqualFold(fields[0], "INSERT")
}

// query runs the statement and reads at most limit rows (all if limit < 0)
func (s *Sql) query(ctx context.Context, op string, limit int) ([]Row, string, bool, error) {
	exec, query, args, err := s.prepare(ctx, op)
	if err != nil {
		return nil, query, false, err
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, query, false, &ExecutionError{Op: op, Query: query, Err: err}
	}

	result, more, err := readRows(rows, limit)
	if err != nil {
		return nil, query, false, &ExecutionError{Op: op, Query: query, Err: err}
	}

	return result, query, more, nil
}

// selectOne reads the only row of the result.
// found is false when there is no row, more than one row is a [MultiplicityError].
func (s *Sql) selectOne(ctx context.Context, op string) (Row, bool, error) {
	rows, query, more, err := s.query(ctx, op, 1)
	if err != nil {
		return Row{}, false, err
	}

	if more {
		return Row{}, false, &MultiplicityError{Query: query}
	}

	if len(rows) == 0 {
		return Row{}, false, nil
	}

	return rows[0], true, nil
}

// SelectRow runs the statement and decodes its only row into T.
// found is false, with a nil error, when no row matched.
// A result with more than one row returns a [*MultiplicityError].
func SelectRow[T any](ctx context.Context, s *Sql) (t T, found bool, err error) {
	row, found, err := s.selectOne(ctx, "select")
	if err != nil || !found {
		return t, false, err
	}

	t, err = Decode[T](row)
	if err != nil {
		return t, false, err
	}

	return t, true, nil
}

// SelectRows runs the statement and decodes every row into T
func SelectRows[T any](ctx context.Context, s *Sql) ([]T, error) {
	rows, _, _, err := s.query(ctx, "select", -1)
	if err != nil {
		return nil, err
	}

	result := make([]T, 0, len(rows))
	for _, row := range rows {
		t, err := Decode[T](row)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	return result, nil
}

// SelectValue runs the statement and converts the first column of its only
// row to T. It returns [sql.ErrNoRows] when no row matched.
func SelectValue[T any](ctx context.Context, s *Sql) (T, error) {
	var t T

	row, found, err := s.selectOne(ctx, "select")
	if err != nil {
		return t, err
	}
	if !found || row.Len() == 0 {
		return t, sql.ErrNoRows
	}

	return decodeScalar[T](row.columns[0], row.values[0])
}

// SelectValues runs the statement and converts the first column of every row to T
func SelectValues[T any](ctx context.Context, s *Sql) ([]T, error) {
	rows, _, _, err := s.query(ctx, "select", -1)
	if err != nil {
		return nil, err
	}

	result := make([]T, 0, len(rows))
	for _, row := range rows {
		if row.Len() == 0 {
			continue
		}
		t, err := decodeScalar[T](row.columns[0], row.values[0])
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	return result, nil
}

// SelectRowMap returns the only row as column name -> raw value,
// or a nil map when no row matched
func (s *Sql) SelectRowMap(ctx context.Context) (map[string]any, error) {
	row, found, err := s.selectOne(ctx, "select")
	if err != nil || !found {
		return nil, err
	}

	return row.Map(), nil
}

// SelectRowsMap returns every row as column name -> raw value
func (s *Sql) SelectRowsMap(ctx context.Context) ([]map[string]any, error) {
	rows, _, _, err := s.query(ctx, "select", -1)
	if err != nil {
		return nil, err
	}

	result := make([]map[string]any, len(rows))
	for i, row := range rows {
		result[i] = row.Map()
	}

	return result, nil
}

// SelectLong returns the first column of the only row as an int64
func (s *Sql) SelectLong(ctx context.Context) (int64, error) {
	return SelectValue[int64](ctx, s)
}

// SelectLongs returns the first column of every row as int64s
func (s *Sql) SelectLongs(ctx context.Context) ([]int64, error) {
	return SelectValues[int64](ctx, s)
}

// SelectString returns the first column of the only row as a string
func (s *Sql) SelectString(ctx context.Context) (string, error) {
	return SelectValue[string](ctx, s)
}

// SelectBoolean returns the first column of the only row as a bool
func (s *Sql) SelectBoolean(ctx context.Context) (bool, error) {
	return SelectValue[bool](ctx, s)
}

// SelectDatetime returns the first column of the only row as a time.Time
func (s *Sql) SelectDatetime(ctx context.Context) (time.Time, error) {
	return SelectValue[time.Time](ctx, s)
}
