package simpledb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata", "simpledb.yaml"))
	require.NoError(t, err)

	require.Equal(t, Config{
		Driver:      "mysql",
		Host:        "db.internal:3307",
		User:        "sbsst",
		Password:    "sbs123414",
		Database:    "sbsst",
		DevMode:     true,
		Timeout:     5 * time.Second,
		ReadTimeout: 30 * time.Second,
		Params:      map[string]string{"charset": "utf8mb4"},
	}, cfg)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("SIMPLEDB_PASSWORD", "from-env")
	t.Setenv("SIMPLEDB_DEV_MODE", "false")
	t.Setenv("SIMPLEDB_WRITE_TIMEOUT", "1m")

	cfg, err := LoadConfig(filepath.Join("testdata", "simpledb.yaml"))
	require.NoError(t, err)

	require.Equal(t, "from-env", cfg.Password)
	require.False(t, cfg.DevMode)
	require.Equal(t, time.Minute, cfg.WriteTimeout)
	require.Equal(t, "sbsst", cfg.User)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDataSourceName(t *testing.T) {
	t.Run("mysql", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.User = "sbsst"
		cfg.Password = "sbs123414"
		cfg.Database = "sbsst"
		cfg.Timeout = 5 * time.Second
		cfg.Params = map[string]string{"autocommit": "true"}

		dsn, err := cfg.DataSourceName()
		require.NoError(t, err)

		parsed, err := mysqldriver.ParseDSN(dsn)
		require.NoError(t, err)
		require.Equal(t, "tcp", parsed.Net)
		require.Equal(t, "localhost:3306", parsed.Addr)
		require.Equal(t, "sbsst", parsed.User)
		require.Equal(t, "sbs123414", parsed.Passwd)
		require.Equal(t, "sbsst", parsed.DBName)
		require.True(t, parsed.ParseTime)
		require.Equal(t, time.UTC, parsed.Loc)
		require.Equal(t, 5*time.Second, parsed.Timeout)
		require.Equal(t, "true", parsed.Params["autocommit"])
	})

	t.Run("explicit dsn", func(t *testing.T) {
		dsn, err := Config{Driver: "sqlite", DSN: "file:test.db"}.DataSourceName()
		require.NoError(t, err)
		require.Equal(t, "file:test.db", dsn)
	})

	t.Run("errors", func(t *testing.T) {
		cases := map[string]Config{
			"no driver":           {},
			"no dsn for sqlite":   {Driver: "sqlite"},
			"no host for mysql":   {Driver: "mysql"},
			"no dsn for postgres": {Driver: "pgx", Host: "localhost"},
		}

		for name, cfg := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := cfg.DataSourceName()
				require.Error(t, err)
			})
		}
	})
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Driver: "sqlite"})
	require.Error(t, err)

	_, err = New(Config{Driver: "oracle", DSN: "x"})
	require.ErrorContains(t, err, "no dialect")

	db, err := NewMySQL("localhost:3306", "sbsst", "sbs123414", "sbsst")
	require.NoError(t, err)
	require.Equal(t, "mysql", db.Dialect().(interface{ String() string }).String())
	require.NoError(t, db.Close())
}
