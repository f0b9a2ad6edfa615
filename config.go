package simpledb

import (
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of the environment variables read by [LoadConfig],
// for example SIMPLEDB_PASSWORD or SIMPLEDB_DEV_MODE
const EnvPrefix = "SIMPLEDB_"

// Config holds the connection settings of a handle.
//
// For the mysql driver the DSN is built from Host, User, Password and
// Database unless DSN is set. Every other driver needs DSN.
// The timeouts are handed to the driver, statements themselves have none.
type Config struct {
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	DSN      string `koanf:"dsn"`
	DevMode  bool   `koanf:"dev_mode"`

	Timeout      time.Duration `koanf:"timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// Extra driver parameters, added to the mysql DSN
	Params map[string]string `koanf:"params"`
}

// DefaultConfig returns the settings of a local MySQL server
func DefaultConfig() Config {
	return Config{
		Driver: "mysql",
		Host:   "localhost:3306",
	}
}

// LoadConfig reads the defaults, then the YAML file at path (if path is not
// empty), then the SIMPLEDB_ environment variables. Later sources win.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	def := DefaultConfig()
	if err := k.Load(confmap.Provider(map[string]any{
		"driver": def.Driver,
		"host":   def.Host,
	}, "."), nil); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file %q: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	return cfg, nil
}

// DataSourceName returns the DSN handed to sql.Open
func (c Config) DataSourceName() (string, error) {
	if c.Driver == "" {
		return "", fmt.Errorf("simpledb: no driver configured")
	}

	if c.DSN != "" {
		return c.DSN, nil
	}

	if c.Driver != "mysql" {
		return "", fmt.Errorf("simpledb: dsn is required for driver %q", c.Driver)
	}

	if c.Host == "" {
		return "", fmt.Errorf("simpledb: host is required for driver %q", c.Driver)
	}

	mc := mysqldriver.NewConfig()
	mc.Net = "tcp"
	mc.Addr = c.Host
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = c.Timeout
	mc.ReadTimeout = c.ReadTimeout
	mc.WriteTimeout = c.WriteTimeout
	if len(c.Params) > 0 {
		mc.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			mc.Params[k] = v
		}
	}

	return mc.FormatDSN(), nil
}
