// Package mysql holds the MySQL placeholder dialect.
package mysql

import (
	"io"
)

//nolint:gochecknoglobals
var (
	Dialect  dialect
	question = []byte("?")
)

type dialect struct{}

func (d dialect) WriteArg(w io.Writer, position int) {
	w.Write(question)
}

func (d dialect) String() string {
	return "mysql"
}
