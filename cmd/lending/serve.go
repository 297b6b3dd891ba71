package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/d-sanghavi/library-management/api"
)

const (
	flagMigrate = "migrate"
	flagSeed    = "seed"

	logMsgListening        = "lending service listening"
	logMsgShuttingDown     = "shutting down lending service"
	logMsgShutdownFailed   = "graceful shutdown failed"
	logAttrAddr            = "addr"
	logAttrError           = "error"
	logAttrStoreDriver     = "store_driver"
	logAttrDistributedLock = "distributed_lock"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  `Run the lending HTTP API until SIGINT or SIGTERM, then drain in-flight requests.`,
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().Bool(flagMigrate, false, "Create the SQL schema before serving")
	cmd.Flags().Bool(flagSeed, false, "Load the sample catalog before serving")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	if migrate, _ := cmd.Flags().GetBool(flagMigrate); migrate {
		if err := a.migrate(ctx); err != nil && !errors.Is(err, errMigrationUnsupported) {
			return err
		}
	}

	if seed, _ := cmd.Flags().GetBool(flagSeed); seed {
		books, err := sampleCatalog()
		if err != nil {
			return err
		}

		if _, err := seedCatalog(ctx, a.engine, books); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewServer(a.engine,
			api.WithLogger(a.logger.With("component", "api")),
			api.WithMetricsHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})),
			api.WithHealthCheck(a.health),
		).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info(logMsgListening,
			logAttrAddr, cfg.Server.Addr,
			logAttrStoreDriver, cfg.Store.Driver,
			logAttrDistributedLock, cfg.Redis.Addr != "")

		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err

	case <-ctx.Done():
	}

	a.logger.Info(logMsgShuttingDown)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error(logMsgShutdownFailed, logAttrError, err.Error())
		return err
	}

	return nil
}
