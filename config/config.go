package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "AGENCI"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Bind string
	Port int

	Driver            string
	DBPath            string
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	WordsFile      string
	AllowedOrigins []string
	PublicURL      string

	LogLevel  string
	PrettyLog bool

	// CreateRate is the per-IP refill rate, in requests per minute, for
	// room creation and joins.
	CreateRate  float64
	CreateBurst int
}

func Default() Config {
	return Config{
		Bind:              "0.0.0.0",
		Port:              8080,
		Driver:            DriverSQLite,
		DBPath:            "./agenci.db",
		DBMaxOpenConns:    10,
		DBMaxIdleConns:    10,
		DBConnMaxLifetime: 5 * time.Minute,
		AllowedOrigins:    []string{"*"},
		LogLevel:          "info",
		CreateRate:        10,
		CreateBurst:       5,
	}
}

// RegisterFlags declares every setting on fs with cfg's current values as
// defaults.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", cfg.Bind, "address to bind to (env: AGENCI_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (env: AGENCI_PORT)")
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "storage backend, sqlite or postgres (env: AGENCI_DRIVER)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sqlite database file (env: AGENCI_DB_PATH)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "postgres connection url (env: AGENCI_DATABASE_URL)")
	fs.IntVar(&cfg.DBMaxOpenConns, "db-max-open-conns", cfg.DBMaxOpenConns, "postgres pool size (env: AGENCI_DB_MAX_OPEN_CONNS)")
	fs.IntVar(&cfg.DBMaxIdleConns, "db-max-idle-conns", cfg.DBMaxIdleConns, "postgres idle connections (env: AGENCI_DB_MAX_IDLE_CONNS)")
	fs.DurationVar(&cfg.DBConnMaxLifetime, "db-conn-max-lifetime", cfg.DBConnMaxLifetime, "postgres connection lifetime (env: AGENCI_DB_CONN_MAX_LIFETIME)")
	fs.StringVar(&cfg.WordsFile, "words-file", cfg.WordsFile, "word list, one per line; built-in list when empty (env: AGENCI_WORDS_FILE)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", cfg.AllowedOrigins, "CORS and websocket origins (env: AGENCI_ALLOWED_ORIGINS)")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "externally visible base url for join links (env: AGENCI_PUBLIC_URL)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (env: AGENCI_LOG_LEVEL)")
	fs.BoolVar(&cfg.PrettyLog, "pretty-log", cfg.PrettyLog, "human readable console logs (env: AGENCI_PRETTY_LOG)")
	fs.Float64Var(&cfg.CreateRate, "create-rate", cfg.CreateRate, "room creations and joins per minute per ip (env: AGENCI_CREATE_RATE)")
	fs.IntVar(&cfg.CreateBurst, "create-burst", cfg.CreateBurst, "burst for --create-rate (env: AGENCI_CREATE_BURST)")
}

// ApplyEnv fills every flag the user did not set from its AGENCI_* variable.
func ApplyEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, envValue(f, v.GetString(f.Name)))
		}
	})
}

// envValue turns a space separated env list into the comma form pflag
// slices expect.
func envValue(f *pflag.Flag, raw string) string {
	if f.Value.Type() == "stringSlice" {
		return strings.Join(strings.Fields(strings.ReplaceAll(raw, ",", " ")), ",")
	}
	return raw
}

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.Driver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("--db-path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("--database-url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown driver %q (want sqlite or postgres)", c.Driver)
	}
	if c.PublicURL != "" {
		if u, err := url.Parse(c.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid --public-url: %q", c.PublicURL)
		}
	}
	if c.CreateRate <= 0 || c.CreateBurst < 1 {
		return errors.New("--create-rate and --create-burst must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return c.Bind + ":" + strconv.Itoa(c.Port)
}
