// Package app wires configuration, infrastructure, and domain handlers into
// a running HTTP server, the way the teacher's own internal/app.Run does.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/parklane/parkcore/internal/audit"
	"github.com/parklane/parkcore/internal/auth"
	"github.com/parklane/parkcore/internal/config"
	"github.com/parklane/parkcore/internal/httpserver"
	"github.com/parklane/parkcore/internal/opsalert"
	"github.com/parklane/parkcore/internal/platform"
	"github.com/parklane/parkcore/internal/telemetry"
	"github.com/parklane/parkcore/pkg/booking"
	"github.com/parklane/parkcore/pkg/customer"
	"github.com/parklane/parkcore/pkg/machine"
	"github.com/parklane/parkcore/pkg/site"
)

// Run reads config, connects to infrastructure, mounts every domain
// handler, and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting parkcore", "listen", cfg.ListenAddr(), "env", cfg.Env)

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(telemetry.All()...)

	sessionMgr, err := auth.NewSessionManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTExpire, cfg.JWTRefreshExpire)
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}

	auditWriter := audit.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	var alerts *opsalert.Notifier
	if cfg.SlackEnabled() {
		alerts = opsalert.New(cfg.SlackBotToken, cfg.SlackAlertChannel, logger)
		logger.Info("ops alerts enabled", "channel", cfg.SlackAlertChannel)
	} else {
		logger.Info("ops alerts disabled (SLACK_BOT_TOKEN/SLACK_ALERT_CHANNEL not set)")
	}

	srv := httpserver.NewServer(httpserver.ServerConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Env:                cfg.Env,
	}, logger, db, rdb, metricsReg, sessionMgr)

	siteHandler := site.NewHandler(logger, auditWriter, db, rdb)
	srv.APIRouter.Mount("/sites", siteHandler.Routes())

	customerHandler := customer.NewHandler(logger, auditWriter, db)
	srv.APIRouter.Mount("/customers", customerHandler.Routes())

	machineStore := machine.NewStore(db)
	machineService := machine.NewService(machineStore, alerts, logger)
	machineHandler := machine.NewHandler(logger, auditWriter, db, alerts)
	srv.APIRouter.Mount("/machines", machineHandler.Routes())

	customerService := customer.NewService(db, logger)
	bookingHandler := booking.NewHandler(logger, auditWriter, db, machineService, machineStore, customerService)
	srv.APIRouter.Mount("/bookings", bookingHandler.Routes())

	logger.Info("routes mounted", "domains", []string{"sites", "customers", "machines", "bookings"})

	go runStaleHeartbeatSweep(ctx, machineService, logger)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// staleHeartbeatSweepInterval is how often the background sweep checks for
// machines that have gone stale past machine's onlineThreshold.
const staleHeartbeatSweepInterval = time.Minute

// runStaleHeartbeatSweep periodically alerts on machines still marked online
// whose heartbeat has gone stale, until ctx is cancelled. Runs as a
// best-effort background loop alongside the API server; a failed sweep is
// logged and retried on the next tick rather than crashing the process.
func runStaleHeartbeatSweep(ctx context.Context, machines *machine.Service, logger *slog.Logger) {
	ticker := time.NewTicker(staleHeartbeatSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := machines.SweepStaleHeartbeats(ctx); err != nil {
				logger.Error("stale heartbeat sweep failed", "error", err)
			}
		}
	}
}
