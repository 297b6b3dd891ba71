package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/d-sanghavi/library-management/config"
	"github.com/d-sanghavi/library-management/lending"
	"github.com/d-sanghavi/library-management/lending/locking"
	"github.com/d-sanghavi/library-management/lending/memstore"
	"github.com/d-sanghavi/library-management/lending/oteladapters"
	"github.com/d-sanghavi/library-management/lending/promadapters"
	"github.com/d-sanghavi/library-management/lending/sqlstore"
)

const instrumentationName = "github.com/d-sanghavi/library-management"

var errMigrationUnsupported = errors.New("the memory store has no schema to migrate")

// migrator is implemented by stores with a schema.
type migrator interface {
	Migrate(ctx context.Context) error
}

// app holds everything a command needs, built from one Config.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    lending.Store
	engine   *lending.Engine
	registry *prometheus.Registry
	health   func(ctx context.Context) error
	closers  []func()
}

func buildApp(ctx context.Context, cfg config.Config, logOutput io.Writer) (*app, error) {
	handler, err := config.NewLogHandler(cfg.Log, logOutput)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   slog.New(handler),
		registry: prometheus.NewRegistry(),
		health:   func(context.Context) error { return nil },
	}

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := a.buildStore(ctx); err != nil {
		a.close()
		return nil, err
	}

	if err := a.buildEngine(ctx); err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

func (a *app) buildStore(ctx context.Context) error {
	cfg := a.cfg
	options := []sqlstore.Option{sqlstore.WithLogger(a.logger.With("component", "sqlstore"))}

	switch cfg.Store.Driver {
	case config.DriverMemory:
		a.store = memstore.New()
		return nil

	case config.DriverSQLite:
		options = append(options, sqlstore.WithDialect(sqlstore.DialectSQLite))

	case config.DriverPostgres:
		options = append(options, sqlstore.WithDialect(sqlstore.DialectPostgres))

		if cfg.Store.Adapter == config.AdapterPGX {
			pool, err := config.NewPGXPool(ctx, cfg)
			if err != nil {
				return err
			}

			a.closers = append(a.closers, pool.Close)
			a.health = pool.Ping

			store, err := sqlstore.NewStoreFromPGXPool(pool, options...)
			if err != nil {
				return err
			}

			a.store = store

			return nil
		}
	}

	if cfg.Store.Adapter == config.AdapterSQLX {
		db, err := config.NewSQLX(ctx, cfg)
		if err != nil {
			return err
		}

		a.closers = append(a.closers, func() { _ = db.Close() })
		a.health = db.PingContext

		store, err := sqlstore.NewStoreFromSQLX(db, options...)
		if err != nil {
			return err
		}

		a.store = store

		return nil
	}

	db, err := config.NewSQLDB(ctx, cfg)
	if err != nil {
		return err
	}

	a.closers = append(a.closers, func() { _ = db.Close() })
	a.health = db.PingContext

	store, err := sqlstore.NewStoreFromSQLDB(db, options...)
	if err != nil {
		return err
	}

	a.store = store

	return nil
}

func (a *app) buildEngine(ctx context.Context) error {
	cfg := a.cfg

	policy, err := cfg.Policy.ToPolicy()
	if err != nil {
		return err
	}

	options := []lending.Option{
		lending.WithPolicy(policy),
		lending.WithConflictRetries(cfg.Lending.ConflictAttempts),
		lending.WithRetryBackoff(cfg.Lending.RetryBaseDelay, cfg.Lending.RetryJitter),
		lending.WithMetrics(promadapters.NewMetricsCollector(a.registry)),
	}

	engineLogger := a.logger.With("component", "engine")

	if cfg.Log.OTelBridge {
		provider := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(provider)
		a.closers = append(a.closers, func() { _ = provider.Shutdown(context.Background()) })

		options = append(options,
			lending.WithLogger(oteladapters.NewSlogBridgeLogger(instrumentationName, engineLogger.Handler())),
			lending.WithTracing(oteladapters.NewTracingCollector(provider.Tracer(instrumentationName))),
		)
	} else {
		options = append(options, lending.WithLogger(engineLogger))
	}

	if cfg.Redis.Addr != "" {
		locker, err := a.buildRedisLocker(ctx)
		if err != nil {
			return err
		}

		options = append(options, lending.WithLocker(locker))
	}

	a.engine, err = lending.NewEngine(a.store, options...)

	return err
}

func (a *app) buildRedisLocker(ctx context.Context) (*locking.Redis, error) {
	cfg := a.cfg

	client, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.closers = append(a.closers, func() { _ = client.Close() })

	return locking.NewRedis(client,
		locking.WithKeyPrefix(cfg.Redis.LockPrefix),
		locking.WithExpiry(cfg.Redis.LockExpiry),
		locking.WithTries(cfg.Redis.LockTries),
		locking.WithRetryDelay(cfg.Redis.LockRetryWait),
		locking.WithLogger(a.logger.With("component", "locking")),
	)
}

func (a *app) migrate(ctx context.Context) error {
	m, ok := a.store.(migrator)
	if !ok {
		return errMigrationUnsupported
	}

	return m.Migrate(ctx)
}

// close releases connections in reverse order of creation.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
