package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite" // sqlite driver
)

const sqliteDriverName = "sqlite"

var (
	// ErrDriverMismatch is returned when a constructor does not serve the configured driver.
	ErrDriverMismatch = errors.New("constructor does not match store.driver")

	// ErrConnectingFailed is returned when a connection can not be opened or pinged.
	ErrConnectingFailed = errors.New("connecting failed")
)

// NewPGXPool opens a pgx pool for the postgres store.
func NewPGXPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.Store.Driver != DriverPostgres {
		return nil, errors.Join(ErrDriverMismatch, fmt.Errorf("pgx needs %q, got %q", DriverPostgres, cfg.Store.Driver))
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.Store.DSN)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	dbConfig.MaxConns = cfg.Postgres.MaxConns
	dbConfig.MinConns = cfg.Postgres.MinConns
	dbConfig.MaxConnLifetime = cfg.Postgres.MaxConnLifetime
	dbConfig.MaxConnIdleTime = cfg.Postgres.MaxConnIdleTime
	dbConfig.HealthCheckPeriod = cfg.Postgres.HealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = cfg.Postgres.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, errors.Join(ErrConnectingFailed, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Join(ErrConnectingFailed, err)
	}

	return pool, nil
}

// NewSQLDB opens a database/sql handle for the postgres or sqlite store.
// SQLite handles are limited to a single connection.
func NewSQLDB(ctx context.Context, cfg Config) (*sql.DB, error) {
	driverName, err := sqlDriverName(cfg.Store.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, cfg.Store.DSN)
	if err != nil {
		return nil, errors.Join(ErrConnectingFailed, err)
	}

	configurePool(db, cfg)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrConnectingFailed, err)
	}

	return db, nil
}

// NewSQLX opens an sqlx handle over the same drivers as NewSQLDB.
func NewSQLX(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	driverName, err := sqlDriverName(cfg.Store.Driver)
	if err != nil {
		return nil, err
	}

	db, err := NewSQLDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return sqlx.NewDb(db, driverName), nil
}

// NewRedisClient connects to the configured redis server.
func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("redis.addr is empty"))
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrConnectingFailed, err)
	}

	return client, nil
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return "postgres", nil
	case DriverSQLite:
		return sqliteDriverName, nil
	default:
		return "", errors.Join(ErrDriverMismatch, fmt.Errorf("no sql driver for %q", driver))
	}
}

func configurePool(db *sql.DB, cfg Config) {
	if cfg.Store.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		return
	}

	db.SetMaxOpenConns(int(cfg.Postgres.MaxConns))
	db.SetMaxIdleConns(int(cfg.Postgres.MinConns))
	db.SetConnMaxLifetime(cfg.Postgres.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.Postgres.MaxConnIdleTime)
}
