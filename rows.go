package simpledb

import (
	"strings"

	"github.com/stephenafamo/scan"
)

// Row holds the raw values of one result row in column order.
// if multiple columns have the same name, lookups by name return the last one
type Row struct {
	columns []string
	values  []any
	index   map[string]int // lower-cased column name -> position
}

// NewRow builds a row from parallel column and value slices
func NewRow(columns []string, values []any) Row {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[strings.ToLower(c)] = i
	}

	return Row{columns: columns, values: values, index: index}
}

// Columns returns the column names in the order of the query
func (r Row) Columns() []string {
	return r.columns
}

// Values returns the raw values in column order
func (r Row) Values() []any {
	return r.values
}

// Len returns the number of columns
func (r Row) Len() int {
	return len(r.columns)
}

// Get returns the raw value of a column. Names are matched case-insensitively.
func (r Row) Get(name string) (any, bool) {
	i, ok := r.index[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// DecodeRow implements [RowDecoder], so that [SelectRows] can return raw rows
func (r *Row) DecodeRow(src Row) error {
	*r = src
	return nil
}

// Map returns the row as column name -> raw value
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i]
	}
	return m
}

// readRows scans at most limit rows (all of them if limit < 0) and
// closes rows. more reports whether rows were left unread.
func readRows(rows scan.Rows, limit int) (result []Row, more bool, err error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, false, err
	}

	for rows.Next() {
		if limit >= 0 && len(result) == limit {
			more = true
			break
		}

		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, false, err
		}

		result = append(result, NewRow(cols, values))
	}

	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	return result, more, rows.Close()
}
