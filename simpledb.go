package simpledb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/simpledb-go/simpledb/dialect/mysql"
	"github.com/simpledb-go/simpledb/dialect/psql"
	"github.com/simpledb-go/simpledb/dialect/sqlite"
	"github.com/sirupsen/logrus"
)

// SimpleDb is the database handle. It holds the connection settings and
// owns one session that every statement of the handle runs on.
//
// The session is opened on first use, or by [SimpleDb.Connect], and released
// by [SimpleDb.Close]. A handle runs at most one statement at a time:
// callers that share a handle between goroutines must serialize access
// themselves, or use one handle each.
type SimpleDb struct {
	cfg     Config
	dialect Dialect
	logger  *logrus.Logger
	printer DebugPrinter
	devMode bool

	mu     sync.Mutex // guards the session lifecycle
	sess   *session
	exec   Executor // set by WithExecutor, used instead of a session
	closed bool
}

// Option configures a [SimpleDb]
type Option func(*SimpleDb)

// WithDevMode turns dev mode on or off. In dev mode every statement is
// printed with its arguments, elapsed time and row count.
func WithDevMode(on bool) Option {
	return func(d *SimpleDb) {
		d.devMode = on
	}
}

// WithLogger sets the logger used for lifecycle events and, unless
// [WithDebugWriter] is given, for dev mode output
func WithLogger(l *logrus.Logger) Option {
	return func(d *SimpleDb) {
		d.logger = l
	}
}

// WithDebugWriter prints dev mode output as plain text to w
func WithDebugWriter(w io.Writer) Option {
	return func(d *SimpleDb) {
		d.printer = writerPrinter{w}
	}
}

// WithDebugPrinter sets the dev mode sink
func WithDebugPrinter(p DebugPrinter) Option {
	return func(d *SimpleDb) {
		d.printer = p
	}
}

// WithDialect overrides the dialect derived from the driver name
func WithDialect(dl Dialect) Option {
	return func(d *SimpleDb) {
		d.dialect = dl
	}
}

// WithExecutor runs statements on exec instead of opening a session from
// the config. The handle does not close exec, and transactions are not
// available through the handle.
func WithExecutor(exec Executor) Option {
	return func(d *SimpleDb) {
		d.exec = exec
	}
}

// New creates a handle. No connection is made until the first statement
// or a call to [SimpleDb.Connect].
func New(cfg Config, opts ...Option) (*SimpleDb, error) {
	d := &SimpleDb{
		cfg:     cfg,
		devMode: cfg.DevMode,
		logger:  logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.exec == nil {
		if _, err := cfg.DataSourceName(); err != nil {
			return nil, err
		}
	}

	if d.dialect == nil {
		dl, err := dialectFor(cfg.Driver)
		if err != nil {
			return nil, err
		}
		d.dialect = dl
	}

	if d.printer == nil {
		d.printer = NewLogrusPrinter(d.logger)
	}

	return d, nil
}

// NewMySQL creates a handle for a MySQL server.
// host is in the form "host:port".
func NewMySQL(host, user, password, database string, opts ...Option) (*SimpleDb, error) {
	cfg := DefaultConfig()
	cfg.Host = host
	cfg.User = user
	cfg.Password = password
	cfg.Database = database

	return New(cfg, opts...)
}

func dialectFor(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return mysql.Dialect, nil
	case "sqlite", "sqlite3", "libsql":
		return sqlite.Dialect, nil
	case "pgx", "postgres":
		return psql.Dialect, nil
	}

	return nil, fmt.Errorf("simpledb: no dialect for driver %q, use WithDialect", driver)
}

// SetDevMode turns dev mode on or off
func (d *SimpleDb) SetDevMode(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.devMode = on
}

// DevMode reports whether dev mode is on
func (d *SimpleDb) DevMode() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.devMode
}

// Dialect returns the placeholder dialect of the handle
func (d *SimpleDb) Dialect() Dialect {
	return d.dialect
}

// GenSql returns an empty statement bound to the handle
func (d *SimpleDb) GenSql() *Sql {
	return &Sql{db: d, dialect: d.dialect}
}

// Run executes a statement without decoding its result.
// It is the same as GenSql().Append(query, args...).Run(ctx)
func (d *SimpleDb) Run(ctx context.Context, query string, args ...any) error {
	return d.GenSql().Append(query, args...).Run(ctx)
}

// Connect opens the session if it is not open yet
func (d *SimpleDb) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.sessionLocked(ctx)
	return err
}

// Close releases the session. An open transaction is rolled back.
// Closing a handle twice is a no-op.
func (d *SimpleDb) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if d.sess == nil {
		return nil
	}

	err := d.sess.close()
	d.sess = nil
	d.logger.WithField("driver", d.cfg.Driver).Debug("simpledb: session closed")

	if err != nil {
		return &ExecutionError{Op: "close", Err: err}
	}
	return nil
}

func (d *SimpleDb) sessionLocked(ctx context.Context) (*session, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.sess != nil {
		return d.sess, nil
	}

	dsn, err := d.cfg.DataSourceName()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.cfg.Driver, dsn)
	if err != nil {
		return nil, &ExecutionError{Op: "connect", Err: err}
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, &ExecutionError{Op: "connect", Err: err}
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, &ExecutionError{Op: "connect", Err: err}
	}

	d.sess = &session{db: db, conn: conn}
	d.logger.WithFields(logrus.Fields{
		"driver":   d.cfg.Driver,
		"host":     d.cfg.Host,
		"database": d.cfg.Database,
	}).Debug("simpledb: session opened")

	return d.sess, nil
}

// executor returns what the next statement runs on
func (d *SimpleDb) executor(ctx context.Context) (Executor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var exec Executor
	switch {
	case d.closed:
		return nil, ErrClosed
	case d.exec != nil:
		exec = d.exec
	default:
		sess, err := d.sessionLocked(ctx)
		if err != nil {
			return nil, err
		}
		exec = sess.executor()
	}

	if d.devMode {
		exec = DebugToPrinter(exec, d.printer)
	}

	return exec, nil
}

// StartTransaction begins a transaction on the session.
// Until Commit or Rollback, every statement of the handle runs inside it.
func (d *SimpleDb) StartTransaction(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.exec != nil {
		return &ExecutionError{Op: "begin", Err: errors.New("transactions need a handle owned session")}
	}

	sess, err := d.sessionLocked(ctx)
	if err != nil {
		return err
	}

	if sess.tx != nil {
		return ErrTxInProgress
	}

	tx, err := sess.conn.BeginTx(ctx, nil)
	if err != nil {
		return &ExecutionError{Op: "begin", Err: err}
	}
	sess.tx = tx

	if d.devMode {
		d.printer.PrintQuery("BEGIN")
	}

	return nil
}

// Commit commits the open transaction
func (d *SimpleDb) Commit() error {
	return d.endTx("commit", (*sql.Tx).Commit)
}

// Rollback aborts the open transaction
func (d *SimpleDb) Rollback() error {
	return d.endTx("rollback", (*sql.Tx).Rollback)
}

func (d *SimpleDb) endTx(op string, end func(*sql.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sess == nil || d.sess.tx == nil {
		return ErrNoTx
	}

	tx := d.sess.tx
	d.sess.tx = nil

	if d.devMode {
		d.printer.PrintQuery(strings.ToUpper(op))
	}

	if err := end(tx); err != nil {
		return &ExecutionError{Op: op, Err: err}
	}

	return nil
}

// InTx runs fn inside a transaction. The transaction is committed if fn
// returns nil, and rolled back if it returns an error or panics.
func (d *SimpleDb) InTx(ctx context.Context, fn func(context.Context) error) error {
	if err := d.StartTransaction(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			d.rollbackQuietly()
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		d.rollbackQuietly()
		return err
	}

	return d.Commit()
}

func (d *SimpleDb) rollbackQuietly() {
	if err := d.Rollback(); err != nil {
		d.logger.WithError(err).Warn("simpledb: rollback failed")
	}
}
