package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/d-sanghavi/library-management/core"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Connection adapters for the postgres driver.
const (
	AdapterPGX  = "pgx"
	AdapterSQL  = "sql"
	AdapterSQLX = "sqlx"
)

// Log formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

var (
	// ErrReadingConfigFailed is returned when the file can not be read or parsed.
	ErrReadingConfigFailed = errors.New("reading config failed")

	// ErrUnknownKeys is returned when the file contains keys no field maps to.
	ErrUnknownKeys = errors.New("unknown config keys")

	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Store    StoreConfig    `toml:"store"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Lending  LendingConfig  `toml:"lending"`
	Policy   PolicyConfig   `toml:"policy"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `toml:"addr"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver  string `toml:"driver"`
	DSN     string `toml:"dsn"`
	Adapter string `toml:"adapter"`
}

// PostgresConfig tunes the connection pool.
type PostgresConfig struct {
	MaxConns          int32         `toml:"max_conns"`
	MinConns          int32         `toml:"min_conns"`
	MaxConnLifetime   time.Duration `toml:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `toml:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `toml:"health_check_period"`
	ConnectTimeout    time.Duration `toml:"connect_timeout"`
}

// RedisConfig enables the distributed per-book lock when Addr is set.
type RedisConfig struct {
	Addr          string        `toml:"addr"`
	Password      string        `toml:"password"`
	DB            int           `toml:"db"`
	LockPrefix    string        `toml:"lock_prefix"`
	LockExpiry    time.Duration `toml:"lock_expiry"`
	LockTries     int           `toml:"lock_tries"`
	LockRetryWait time.Duration `toml:"lock_retry_wait"`
}

// LendingConfig tunes the engine's conflict handling.
type LendingConfig struct {
	ConflictAttempts int           `toml:"conflict_attempts"`
	RetryBaseDelay   time.Duration `toml:"retry_base_delay"`
	RetryJitter      float64       `toml:"retry_jitter"`
}

// PolicyConfig holds the lending terms. Money amounts are decimal strings.
type PolicyConfig struct {
	LoanPeriod    time.Duration `toml:"loan_period"`
	MaxRenewals   int           `toml:"max_renewals"`
	HoldWindow    time.Duration `toml:"hold_window"`
	DailyFineRate string        `toml:"daily_fine_rate"`
	FineCap       string        `toml:"fine_cap"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	OTelBridge bool   `toml:"otel_bridge"`
}

// Default returns a configuration that runs the service in memory on :8080.
func Default() Config {
	policy := core.DefaultPolicy()

	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Driver:  DriverMemory,
			Adapter: AdapterPGX,
		},
		Postgres: PostgresConfig{
			MaxConns:          50,
			MinConns:          2,
			MaxConnLifetime:   time.Hour,
			MaxConnIdleTime:   5 * time.Minute,
			HealthCheckPeriod: time.Minute,
			ConnectTimeout:    5 * time.Second,
		},
		Redis: RedisConfig{
			LockPrefix:    "lending:lock:",
			LockExpiry:    8 * time.Second,
			LockTries:     32,
			LockRetryWait: 50 * time.Millisecond,
		},
		Lending: LendingConfig{
			ConflictAttempts: 2,
			RetryBaseDelay:   5 * time.Millisecond,
			RetryJitter:      0.3,
		},
		Policy: PolicyConfig{
			LoanPeriod:    policy.LoanPeriod,
			MaxRenewals:   policy.MaxRenewals,
			HoldWindow:    policy.HoldWindow,
			DailyFineRate: policy.DailyFineRate.StringFixed(2),
			FineCap:       policy.FineCap.StringFixed(2),
		},
		Log: LogConfig{
			Level:  "info",
			Format: FormatJSON,
		},
	}
}

// Load reads the TOML file at path over the defaults and validates the result.
// Keys the file sets but no field maps to are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Join(ErrReadingConfigFailed, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}

		return Config{}, errors.Join(ErrUnknownKeys, fmt.Errorf("%s", strings.Join(keys, ", ")))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the settings that can be checked without connecting anywhere.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Store.DSN == "" {
			return errors.Join(ErrInvalidConfig, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		return errors.Join(ErrInvalidConfig, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	switch c.Store.Adapter {
	case AdapterPGX, AdapterSQL, AdapterSQLX:
	default:
		return errors.Join(ErrInvalidConfig, fmt.Errorf("unknown store.adapter %q", c.Store.Adapter))
	}

	switch c.Log.Format {
	case FormatJSON, FormatText:
	default:
		return errors.Join(ErrInvalidConfig, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	if c.Lending.ConflictAttempts < 1 {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("lending.conflict_attempts must be at least 1, got %d", c.Lending.ConflictAttempts))
	}

	if _, err := c.Policy.ToPolicy(); err != nil {
		return err
	}

	return nil
}

// ToPolicy converts the configured terms into a validated core.Policy.
func (p PolicyConfig) ToPolicy() (core.Policy, error) {
	rate, err := decimal.NewFromString(p.DailyFineRate)
	if err != nil {
		return core.Policy{}, errors.Join(ErrInvalidConfig, fmt.Errorf("policy.daily_fine_rate: %w", err))
	}

	fineCap, err := decimal.NewFromString(p.FineCap)
	if err != nil {
		return core.Policy{}, errors.Join(ErrInvalidConfig, fmt.Errorf("policy.fine_cap: %w", err))
	}

	policy := core.Policy{
		LoanPeriod:    p.LoanPeriod,
		MaxRenewals:   p.MaxRenewals,
		HoldWindow:    p.HoldWindow,
		DailyFineRate: rate,
		FineCap:       fineCap,
	}

	if err := policy.Validate(); err != nil {
		return core.Policy{}, errors.Join(ErrInvalidConfig, err)
	}

	return policy, nil
}
