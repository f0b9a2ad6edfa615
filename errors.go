package simpledb

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrUnsupportedArg is wrapped by a BuildError when a parameter cannot be bound
	ErrUnsupportedArg = errors.New("unsupported argument type")
	// ErrEmptySequence is wrapped by a BuildError when a sequence parameter has no elements
	ErrEmptySequence = errors.New("empty sequence argument")

	// ErrNotInsert is wrapped by an ExecutionError when Insert is called on another statement
	ErrNotInsert = errors.New("statement is not an INSERT")
	// ErrNoGeneratedKey is wrapped by an ExecutionError when the driver reports no key
	ErrNoGeneratedKey = errors.New("no generated key")
	// ErrUnbound is wrapped by an ExecutionError when a statement built with
	// [NewSql] is executed
	ErrUnbound = errors.New("statement is not bound to a handle")

	// ErrTxInProgress is returned when a transaction is started twice on the same handle
	ErrTxInProgress = errors.New("simpledb: transaction already in progress")
	// ErrNoTx is returned by Commit and Rollback when no transaction is open
	ErrNoTx = errors.New("simpledb: no transaction in progress")
	// ErrClosed is returned when a statement is issued on a closed handle
	ErrClosed = errors.New("simpledb: handle is closed")
)

// BuildError is returned when a statement cannot be turned into SQL and
// arguments. It is detected when the statement is executed, never on Append.
type BuildError struct {
	Query        string
	Placeholders int
	Args         int
	// Cause is set when a parameter value was rejected
	Cause error
}

func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("simpledb: bad statement: %v: %s", e.Cause, e.Query)
	}

	return fmt.Sprintf(
		"simpledb: bad statement: has %d placeholders but %d args: %s",
		e.Placeholders, e.Args, e.Query,
	)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}

func (e *BuildError) Equal(err error) bool {
	var e2 *BuildError
	if !errors.As(err, &e2) {
		return false
	}

	if e.Cause != nil || e2.Cause != nil {
		return errors.Is(e2.Cause, e.Cause) || errors.Is(e.Cause, e2.Cause)
	}

	return e2.Args == e.Args && e2.Placeholders == e.Placeholders
}

// ExecutionError is returned when the database rejects or cannot run a
// statement. Err is the driver error, untouched.
type ExecutionError struct {
	Op    string
	Query string
	Err   error
}

func (e *ExecutionError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("simpledb: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("simpledb: %s: %v: %s", e.Op, e.Err, e.Query)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Equal(err error) bool {
	var e2 *ExecutionError
	if !errors.As(err, &e2) {
		return false
	}

	if e.Op != e2.Op {
		return false
	}
	if e.Err == nil || e2.Err == nil {
		return e.Err == e2.Err
	}

	return errors.Is(e2.Err, e.Err) || e.Err.Error() == e2.Err.Error()
}

// DecodeError is returned when a column value cannot be converted to the
// type of the field it maps to.
type DecodeError struct {
	Column string
	Field  string
	Type   reflect.Type
	Value  any
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("simpledb: cannot decode into %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf(
		"simpledb: cannot decode column %q (%T) into %s of type %s: %v",
		e.Column, e.Value, e.Field, e.Type, e.Err,
	)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Equal(err error) bool {
	var e2 *DecodeError
	if !errors.As(err, &e2) {
		return false
	}

	return e.Column == e2.Column && e.Field == e2.Field
}

// MultiplicityError is returned by single-row selects when the query
// returns more than one row.
type MultiplicityError struct {
	Query string
}

func (e *MultiplicityError) Error() string {
	return fmt.Sprintf("simpledb: expected at most one row but got more: %s", e.Query)
}

func (e *MultiplicityError) Equal(err error) bool {
	var e2 *MultiplicityError
	return errors.As(err, &e2)
}
