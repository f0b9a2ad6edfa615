package simpledb

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// ErrNotStruct is wrapped by a DecodeError when the target of a row is not a struct
var ErrNotStruct = errors.New("target is not a struct or pointer to a struct")

// RowDecoder is implemented by records that decode themselves.
// If *T implements it, the reflection based mapping is skipped for T.
type RowDecoder interface {
	DecodeRow(Row) error
}

// Decode maps a row onto a new T, which must be a struct or a pointer to a struct.
//
// A column is matched to a field by its `db` tag, or by the field name or
// its snake_case form. Matching ignores case, so the column "createdDate"
// fills CreatedDate as does "created_date". Columns without a field are
// ignored and fields without a column keep their zero value.
func Decode[T any](row Row) (T, error) {
	var t T
	err := decodeInto(reflect.ValueOf(&t).Elem(), row)
	return t, err
}

func decodeInto(rv reflect.Value, row Row) error {
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		rv = rv.Elem()
	}

	if d, ok := rv.Addr().Interface().(RowDecoder); ok {
		return d.DecodeRow(row)
	}

	if rv.Kind() != reflect.Struct {
		return &DecodeError{Type: rv.Type(), Err: ErrNotStruct}
	}

	index := getStructIndex(rv.Type())
	for i, col := range row.columns {
		f, ok := index[strings.ToLower(col)]
		if !ok {
			continue
		}

		fv := fieldByIndex(rv, f.position)
		if err := convertValue(fv, row.values[i]); err != nil {
			return &DecodeError{
				Column: col,
				Field:  f.name,
				Type:   fv.Type(),
				Value:  row.values[i],
				Err:    err,
			}
		}
	}

	return nil
}

// decodeScalar converts a single raw value to T
func decodeScalar[T any](column string, raw any) (T, error) {
	var t T
	rv := reflect.ValueOf(&t).Elem()
	if err := convertValue(rv, raw); err != nil {
		return t, &DecodeError{
			Column: column,
			Field:  rv.Type().String(),
			Type:   rv.Type(),
			Value:  raw,
			Err:    err,
		}
	}

	return t, nil
}

// fieldByIndex is like [reflect.Value.FieldByIndex] but allocates
// nil embedded pointers on the way
func fieldByIndex(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}

	return v
}

type fieldInfo struct {
	name     string // Go path of the field, for errors
	position []int
	depth    int
}

// lower-cased column key -> field
type structIndex = map[string]fieldInfo

//nolint:gochecknoglobals
var (
	structIndexCache sync.Map // reflect.Type -> structIndex
	scannerType      = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

const (
	structTagKey    = "db"
	columnSeparator = "."
	maxDepth        = 3
)

//nolint:gochecknoglobals
var (
	matchFirstCapRe = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCapRe   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// snakeCase maps a field name to its snake_case column: CreatedDate -> created_date
func snakeCase(str string) string {
	snake := matchFirstCapRe.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCapRe.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}

func getStructIndex(typ reflect.Type) structIndex {
	if v, ok := structIndexCache.Load(typ); ok {
		return v.(structIndex)
	}

	index := make(structIndex)
	setMappings(typ, "", typ.Name(), make(map[reflect.Type]int), index, nil)

	v, _ := structIndexCache.LoadOrStore(typ, index)
	return v.(structIndex)
}

func setMappings(typ reflect.Type, prefix, goPath string, visited map[reflect.Type]int, index structIndex, position []int) {
	count := visited[typ]
	if count > maxDepth {
		return
	}
	visited[typ] = count + 1
	defer func() { visited[typ] = count }()

	// Go through the struct fields and populate the index.
	// Recursively go into any child structs, adding a prefix where necessary
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		if !field.IsExported() {
			continue
		}

		// Skip columns that have the tag "-"
		tag := field.Tag.Get(structTagKey)
		if tag == "-" {
			continue
		}

		currentIndex := append(append([]int(nil), position...), i)
		fieldPath := goPath + "." + field.Name

		fieldType := field.Type
		if fieldType.Kind() == reflect.Pointer {
			fieldType = fieldType.Elem()
		}
		branch := isStructBranch(fieldType)

		var keys []string
		if !field.Anonymous || tag != "" || !branch {
			names := []string{field.Name, snakeCase(field.Name)}
			if tag != "" {
				names = []string{tag}
			}

			for _, name := range names {
				if prefix != "" {
					name = prefix + columnSeparator + name
				}
				keys = append(keys, name)
			}
		}

		if branch {
			childPrefix := prefix
			if len(keys) > 0 {
				childPrefix = keys[0]
			}
			setMappings(fieldType, childPrefix, fieldPath, visited, index, currentIndex)
			continue
		}

		for _, key := range keys {
			key = strings.ToLower(key)
			if existing, ok := index[key]; ok && existing.depth <= len(currentIndex) {
				continue
			}
			index[key] = fieldInfo{name: fieldPath, position: currentIndex, depth: len(currentIndex)}
		}
	}
}

// isStructBranch reports whether the fields of typ should be mapped
// individually. Scanners and structs without exported fields
// (such as time.Time) are decoded as a single value.
func isStructBranch(typ reflect.Type) bool {
	if typ.Kind() != reflect.Struct || reflect.PointerTo(typ).Implements(scannerType) {
		return false
	}

	for i := 0; i < typ.NumField(); i++ {
		if typ.Field(i).IsExported() {
			return true
		}
	}

	return false
}

// convertValue sets dst from a raw driver value
func convertValue(dst reflect.Value, raw any) error {
	if raw == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	if dst.CanAddr() {
		if sc, ok := dst.Addr().Interface().(sql.Scanner); ok {
			return sc.Scan(raw)
		}
	}

	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := convertValue(elem.Elem(), raw); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	if dst.Type() == timeType {
		t, err := toTime(raw)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}

	switch dst.Kind() {
	case reflect.Bool:
		b, err := toBool(raw)
		if err != nil {
			return err
		}
		dst.SetBool(b)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(textual(raw))
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(textual(raw))
		if err != nil {
			return err
		}
		if dst.OverflowUint(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetUint(n)
		return nil

	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(textual(raw))
		if err != nil {
			return err
		}
		if dst.OverflowFloat(f) {
			return fmt.Errorf("value %v overflows %s", f, dst.Type())
		}
		dst.SetFloat(f)
		return nil

	case reflect.String:
		if t, ok := raw.(time.Time); ok {
			dst.SetString(t.Format(time.RFC3339Nano))
			return nil
		}
		s, err := cast.ToStringE(textual(raw))
		if err != nil {
			return err
		}
		dst.SetString(s)
		return nil

	case reflect.Slice:
		if dst.Type().Elem().Kind() != reflect.Uint8 {
			break
		}
		switch v := raw.(type) {
		case []byte:
			dst.SetBytes(append([]byte(nil), v...))
			return nil
		case string:
			dst.SetBytes([]byte(v))
			return nil
		}
	}

	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(dst.Type()) {
		dst.Set(rv)
		return nil
	}

	return fmt.Errorf("unsupported conversion from %T to %s", raw, dst.Type())
}

// textual turns the []byte values returned by text protocols into strings
func textual(raw any) any {
	if b, ok := raw.([]byte); ok {
		return string(b)
	}
	return raw
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case []byte:
		// BIT(1) columns
		if len(v) == 1 && v[0] <= 1 {
			return v[0] == 1, nil
		}
		return cast.ToBoolE(string(v))
	}

	return cast.ToBoolE(raw)
}

func toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case int64:
		return time.Unix(v, 0), nil
	case []byte:
		return parseTime(string(v))
	case string:
		return parseTime(v)
	}

	return time.Time{}, fmt.Errorf("unsupported type for time.Time: %T", raw)
}

//nolint:gochecknoglobals
var timeFormats = []string{
	// MySQL and SQLite formats
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	// Go formats
	"2006-01-02 15:04:05.999999999 -0700 MST", // Default Go format
	time.RFC3339Nano,
	time.RFC3339,
}

func parseTime(s string) (time.Time, error) {
	for _, format := range timeFormats {
		if t, err := time.ParseInLocation(format, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time from %q", s)
}
