package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/simpledb-go/simpledb"
	"github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"github.com/urfave/cli/v2"
	_ "modernc.org/sqlite"
)

func main() {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	app := &cli.App{
		Name:      "simpledb",
		Usage:     "Run SQL statements through a simpledb handle",
		UsageText: "simpledb [-c FILE] [--dev] COMMAND SQL [ARGS...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "Override the configured driver",
			},
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "Override the configured data source name",
			},
			&cli.BoolFlag{
				Name:  "dev",
				Usage: "Print every statement with its arguments",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log connection events",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Execute a statement and discard its result",
				ArgsUsage: "SQL [ARGS...]",
				Action: withStatement(func(c *cli.Context, s *simpledb.Sql) error {
					return s.Run(c.Context)
				}),
			},
			{
				Name:      "insert",
				Usage:     "Execute an INSERT and print the generated key",
				ArgsUsage: "SQL [ARGS...]",
				Action: withStatement(func(c *cli.Context, s *simpledb.Sql) error {
					id, err := s.Insert(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, id)
					return nil
				}),
			},
			{
				Name:      "update",
				Aliases:   []string{"delete"},
				Usage:     "Execute an UPDATE or DELETE and print the affected row count",
				ArgsUsage: "SQL [ARGS...]",
				Action: withStatement(func(c *cli.Context, s *simpledb.Sql) error {
					n, err := s.Update(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, n)
					return nil
				}),
			},
			{
				Name:      "query",
				Usage:     "Execute a SELECT and print its rows",
				ArgsUsage: "SQL [ARGS...]",
				Action: withStatement(func(c *cli.Context, s *simpledb.Sql) error {
					rows, err := simpledb.SelectRows[simpledb.Row](c.Context, s)
					if err != nil {
						return err
					}
					return printRows(c.App.Writer, rows)
				}),
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func withStatement(f func(*cli.Context, *simpledb.Sql) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() == 0 {
			return cli.Exit("missing SQL statement", 2)
		}

		db, err := open(c)
		if err != nil {
			return err
		}
		defer db.Close()

		args := make([]any, 0, c.NArg()-1)
		for _, a := range c.Args().Tail() {
			args = append(args, a)
		}

		return f(c, db.GenSql().Append(c.Args().First(), args...))
	}
}

func open(c *cli.Context) (*simpledb.SimpleDb, error) {
	cfg, err := simpledb.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("driver") {
		cfg.Driver = c.String("driver")
	}
	if c.IsSet("dsn") {
		cfg.DSN = c.String("dsn")
	}
	if c.Bool("dev") {
		cfg.DevMode = true
	}

	logger := logrus.New()
	logger.SetOutput(c.App.ErrWriter)
	if c.Bool("verbose") {
		logger.SetLevel(logrus.DebugLevel)
	}

	return simpledb.New(cfg,
		simpledb.WithLogger(logger),
		simpledb.WithDebugWriter(c.App.ErrWriter),
	)
}

func printRows(w io.Writer, rows []simpledb.Row) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(rows[0].Columns(), "\t"))

	for _, row := range rows {
		vals := make([]string, row.Len())
		for i, v := range row.Values() {
			switch v := v.(type) {
			case nil:
				vals[i] = "NULL"
			case []byte:
				vals[i] = string(v)
			default:
				vals[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(vals, "\t"))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}
