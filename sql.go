package simpledb

import (
	"io"
	"strings"

	"github.com/simpledb-go/simpledb/dialect/mysql"
)

// Dialect writes placeholders for the target database
type Dialect interface {
	// WriteArg should write an argument placeholder to the writer with the given index
	WriteArg(w io.Writer, position int)
}

// ReturningDialect is implemented by dialects whose drivers cannot report
// generated keys through sql.Result. Insert then reads the key from the
// first column returned by the statement's RETURNING clause.
type ReturningDialect interface {
	Dialect
	ReturnsGeneratedKeys() bool
}

//nolint:gochecknoglobals
var (
	openPar    = []byte("(")
	closePar   = []byte(")")
	commaSpace = []byte(", ")
)

// Sql accumulates the fragments and parameters of one statement.
// It is obtained from [SimpleDb.GenSql] and consumed by one terminal call
// such as Insert, Update or SelectRow. A Sql is not safe for concurrent use.
type Sql struct {
	db        *SimpleDb
	dialect   Dialect
	fragments []string
	args      []any
}

// NewSql returns a statement that is not bound to a handle.
// It can be built but not executed. A nil dialect defaults to MySQL.
func NewSql(d Dialect) *Sql {
	if d == nil {
		d = mysql.Dialect
	}
	return &Sql{dialect: d}
}

// Append adds a fragment of SQL and the parameters for its placeholders.
// Fragments are trimmed and joined with a single space.
// Nothing is validated until the statement is built.
func (s *Sql) Append(fragment string, args ...any) *Sql {
	if fragment = strings.TrimSpace(fragment); fragment != "" {
		s.fragments = append(s.fragments, fragment)
	}
	s.args = append(s.args, args...)

	return s
}

// AppendIn is like Append, but all the values are bound to the
// fragment's single placeholder as one sequence.
//
//	sql.AppendIn("WHERE id IN ?", 1, 2, 3) // WHERE id IN (?, ?, ?)
func (s *Sql) AppendIn(fragment string, vals ...any) *Sql {
	return s.Append(fragment, In(vals...))
}

// String returns the accumulated SQL before placeholders are expanded
func (s *Sql) String() string {
	return strings.Join(s.fragments, " ")
}

// Clone returns a copy of the statement bound to the same handle.
// Sequence parameters are copied, so changing a slice after Clone
// does not change what the clone binds.
func (s *Sql) Clone() *Sql {
	s2 := &Sql{
		db:        s.db,
		dialect:   s.dialect,
		fragments: append([]string(nil), s.fragments...),
	}
	if len(s.args) > 0 {
		s2.args = make([]any, len(s.args))
		for i, arg := range s.args {
			s2.args[i] = cloneArg(arg)
		}
	}

	return s2
}

// cloneArg copies the elements of a sequence parameter.
// Scalars, and args Build will reject, are kept as they are.
func cloneArg(arg any) any {
	p, err := resolveArg(arg)
	if err != nil || !p.sequence {
		return arg
	}

	return append(Sequence(nil), p.vals...)
}

// Build expands the placeholders for the statement's dialect and returns
// the final query with the flattened arguments in order.
func (s *Sql) Build() (string, []any, error) {
	b := &strings.Builder{}
	args, err := s.WriteSQL(b, 1)

	return b.String(), args, err
}

// WriteSQL writes the expanded query to w, numbering placeholders from start
func (s *Sql) WriteSQL(w io.Writer, start int) ([]any, error) {
	query := s.String()

	total, args, err := convertQuestionMarks(w, s.dialect, query, s.args, start)
	if err != nil {
		return nil, &BuildError{Query: query, Cause: err}
	}

	if len(s.args) != total {
		return nil, &BuildError{Query: query, Placeholders: total, Args: len(s.args)}
	}

	return args, nil
}

// convertQuestionMarks replaces each ? with the dialect's placeholder,
// numbered from startAt. A sequence argument is written as a
// parenthesized group with one placeholder per element.
// If question-mark (?) is escaped using back-slash (\), it will be ignored.
func convertQuestionMarks(w io.Writer, d Dialect, clause string, rawArgs []any, startAt int) (int, []any, error) {
	paramIndex := 0
	total := 0
	var args []any

	for {
		if paramIndex >= len(clause) {
			break
		}

		clause = clause[paramIndex:]
		paramIndex = strings.IndexByte(clause, '?')

		if paramIndex == -1 {
			io.WriteString(w, clause)
			break
		}

		escapeIndex := strings.Index(clause, `\?`)
		if escapeIndex != -1 && paramIndex > escapeIndex {
			io.WriteString(w, clause[:escapeIndex]+"?")
			paramIndex = escapeIndex + 2
			continue
		}

		io.WriteString(w, clause[:paramIndex])

		if total < len(rawArgs) {
			p, err := resolveArg(rawArgs[total])
			if err != nil {
				return total, nil, err
			}

			if p.sequence {
				w.Write(openPar)
			}
			for k := range p.vals {
				if k > 0 {
					w.Write(commaSpace)
				}
				d.WriteArg(w, startAt)
				startAt++
			}
			if p.sequence {
				w.Write(closePar)
			}

			args = append(args, p.vals...)
		} else {
			d.WriteArg(w, startAt)
			startAt++
		}

		total++
		paramIndex++
	}

	return total, args, nil
}
