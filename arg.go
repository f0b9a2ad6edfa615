package simpledb

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"time"
)

// Sequence is a parameter bound to a single placeholder which is expanded
// to one placeholder per element: `IN ?` becomes `IN (?, ?, ?)`.
type Sequence []any

// In groups the values into one [Sequence] parameter
func In(vals ...any) Sequence {
	return Sequence(vals)
}

//nolint:gochecknoglobals
var (
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	timeType   = reflect.TypeOf(time.Time{})
	bytesType  = reflect.TypeOf([]byte(nil))
)

// param is a resolved parameter: either one scalar, or the elements of a sequence
type param struct {
	vals     []any
	sequence bool
}

// resolveArg classifies an appended parameter.
// Slices and arrays are sequences unless they are []byte or implement
// driver.Valuer, which the driver binds as one value.
func resolveArg(arg any) (param, error) {
	if s, ok := arg.(Sequence); ok {
		return resolveSequence(s)
	}

	if arg == nil {
		return param{vals: []any{nil}}, nil
	}

	typ := reflect.TypeOf(arg)
	if isScalarType(typ) {
		return param{vals: []any{arg}}, nil
	}

	switch typ.Kind() {
	case reflect.Slice, reflect.Array:
		rv := reflect.ValueOf(arg)
		vals := make(Sequence, rv.Len())
		for i := range vals {
			vals[i] = rv.Index(i).Interface()
		}
		return resolveSequence(vals)
	}

	return param{}, fmt.Errorf("%w: %T", ErrUnsupportedArg, arg)
}

func resolveSequence(s Sequence) (param, error) {
	if len(s) == 0 {
		return param{}, ErrEmptySequence
	}

	for _, v := range s {
		if v == nil {
			continue
		}
		if !isScalarType(reflect.TypeOf(v)) {
			return param{}, fmt.Errorf("%w: %T inside sequence", ErrUnsupportedArg, v)
		}
	}

	return param{vals: s, sequence: true}, nil
}

func isScalarType(typ reflect.Type) bool {
	if typ.Implements(valuerType) || typ == timeType || typ == bytesType {
		return true
	}

	switch typ.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Pointer:
		return isScalarType(typ.Elem())
	case reflect.Slice:
		// named byte slices such as json.RawMessage
		return typ.Elem().Kind() == reflect.Uint8
	}

	return false
}
