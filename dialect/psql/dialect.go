// Package psql holds the PostgreSQL placeholder dialect.
package psql

import (
	"io"
	"strconv"
)

//nolint:gochecknoglobals
var (
	Dialect dialect
	dollar  = []byte("$")
)

type dialect struct{}

func (d dialect) WriteArg(w io.Writer, position int) {
	w.Write(dollar)
	w.Write([]byte(strconv.Itoa(position)))
}

// ReturnsGeneratedKeys reports that postgres drivers do not implement
// LastInsertId. Generated keys must be read from a RETURNING clause.
func (d dialect) ReturnsGeneratedKeys() bool {
	return true
}

func (d dialect) String() string {
	return "psql"
}
