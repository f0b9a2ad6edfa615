package simpledb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stephenafamo/scan"
)

// DebugPrinter is used to print queries and arguments
type DebugPrinter interface {
	PrintQuery(query string, args ...any)
}

// StatsPrinter is a [DebugPrinter] that is also told how a statement went
type StatsPrinter interface {
	DebugPrinter
	PrintStats(Stats)
}

// Stats describes a finished statement.
// Rows is the affected row count for Exec, and the number of rows scanned for queries.
type Stats struct {
	Query   string
	Elapsed time.Duration
	Rows    int64
	Err     error
}

// an implementtion of the [DebugPrinter]
type writerPrinter struct{ io.Writer }

// implements [DebugPrinter]
func (w writerPrinter) PrintQuery(query string, args ...any) {
	fmt.Fprintln(w.Writer, query)
	for i, arg := range args {
		fmt.Fprintf(w.Writer, "%d: %T: %v\n", i, arg, debugValue(arg))
	}
}

// implements [StatsPrinter]
func (w writerPrinter) PrintStats(s Stats) {
	if s.Err != nil {
		fmt.Fprintf(w.Writer, "-- error after %s: %v\n\n", s.Elapsed, s.Err)
		return
	}
	fmt.Fprintf(w.Writer, "-- %d rows in %s\n\n", s.Rows, s.Elapsed)
}

// LogrusPrinter prints queries and their stats as structured log entries
type LogrusPrinter struct {
	Logger logrus.FieldLogger
}

// NewLogrusPrinter returns a printer writing to the given logger.
// if l is nil, it falls back to the logrus standard logger
func NewLogrusPrinter(l logrus.FieldLogger) LogrusPrinter {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return LogrusPrinter{Logger: l}
}

// implements [DebugPrinter]
func (p LogrusPrinter) PrintQuery(query string, args ...any) {
	vals := make([]any, len(args))
	for i, arg := range args {
		vals[i] = debugValue(arg)
	}

	p.Logger.WithFields(logrus.Fields{
		"sql":  query,
		"args": vals,
	}).Info("executing statement")
}

// implements [StatsPrinter]
func (p LogrusPrinter) PrintStats(s Stats) {
	entry := p.Logger.WithFields(logrus.Fields{
		"sql":     s.Query,
		"elapsed": s.Elapsed,
		"rows":    s.Rows,
	})

	if s.Err != nil {
		entry.WithError(s.Err).Error("statement failed")
		return
	}
	entry.Info("statement done")
}

func debugValue(arg any) any {
	if valuer, ok := arg.(driver.Valuer); ok {
		if val, err := valuer.Value(); err == nil {
			return val
		}
	}
	return arg
}

// DebugExecutor wraps an existing [Executor] and writes all
// queries and args to the given [io.Writer]
// if w is nil, it fallsback to [os.Stdout]
func DebugExecutor(exec Executor, w io.Writer) Executor {
	if w == nil {
		w = os.Stdout
	}
	return DebugToPrinter(exec, writerPrinter{w})
}

// DebugToPrinter wraps an existing [Executor] and writes all
// queries and args to the given [DebugPrinter]
// if p is nil, it fallsback to writing to [os.Stdout]
func DebugToPrinter(exec Executor, p DebugPrinter) Executor {
	if p == nil {
		p = writerPrinter{os.Stdout}
	}
	return debugExecutor{printer: p, exec: exec}
}

type debugExecutor struct {
	printer DebugPrinter
	exec    Executor
}

func (d debugExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	d.printer.PrintQuery(query, args...)
	start := time.Now()

	result, err := d.exec.ExecContext(ctx, query, args...)

	if sp, ok := d.printer.(StatsPrinter); ok {
		s := Stats{Query: query, Elapsed: time.Since(start), Err: err}
		if err == nil && result != nil {
			s.Rows, _ = result.RowsAffected()
		}
		sp.PrintStats(s)
	}

	return result, err
}

func (d debugExecutor) QueryContext(ctx context.Context, query string, args ...any) (scan.Rows, error) {
	d.printer.PrintQuery(query, args...)
	start := time.Now()

	rows, err := d.exec.QueryContext(ctx, query, args...)

	sp, ok := d.printer.(StatsPrinter)
	if !ok {
		return rows, err
	}
	if err != nil {
		sp.PrintStats(Stats{Query: query, Elapsed: time.Since(start), Err: err})
		return rows, err
	}

	return &countingRows{Rows: rows, query: query, start: start, printer: sp}, nil
}

// countingRows reports the number of rows read once it is closed
type countingRows struct {
	scan.Rows
	query   string
	start   time.Time
	printer StatsPrinter
	count   int64
	done    bool
}

// rows that are advanced to but never scanned are not counted
func (r *countingRows) Scan(dest ...any) error {
	if err := r.Rows.Scan(dest...); err != nil {
		return err
	}
	r.count++
	return nil
}

func (r *countingRows) Close() error {
	err := r.Rows.Close()
	if !r.done {
		r.done = true
		r.printer.PrintStats(Stats{
			Query:   r.query,
			Elapsed: time.Since(r.start),
			Rows:    r.count,
			Err:     r.Rows.Err(),
		})
	}

	return err
}
