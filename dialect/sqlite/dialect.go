// Package sqlite holds the SQLite placeholder dialect.
// It is also used for libsql connections.
package sqlite

import (
	"io"
	"strconv"
)

//nolint:gochecknoglobals
var (
	Dialect  dialect
	question = []byte("?")
)

type dialect struct{}

// WriteArg writes numbered placeholders: ?1, ?2, ...
func (d dialect) WriteArg(w io.Writer, position int) {
	w.Write(question)
	w.Write([]byte(strconv.Itoa(position)))
}

func (d dialect) String() string {
	return "sqlite"
}
