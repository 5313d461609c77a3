package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jarlhq/jarl/internal/acceptor"
	"github.com/jarlhq/jarl/internal/config"
	errwrap "github.com/jarlhq/jarl/internal/errors"
	"github.com/jarlhq/jarl/internal/metrics"
	"github.com/jarlhq/jarl/internal/observability"
	"github.com/jarlhq/jarl/internal/server"
	"github.com/jarlhq/jarl/internal/server/handlers"
	"github.com/jarlhq/jarl/internal/window"
)

const (
	adminShutdownTimeout = 5 * time.Second
	uptimeInterval       = 15 * time.Second
)

// telemetryHealthChecker ensures the exporter is still installed
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadServerConfig(cmd.Flags(), verbose)
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "invalid configuration")
	}
	return serve(ctx, cfg)
}

// serve runs the delay listener, plus the optional status server and metrics
// exporter, until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	observability.InitServerLogger(appName, cfg.Logging.Level, cfg.Service)
	logger := observability.ServerLogger
	defer observability.Sync()

	period, err := cfg.PeriodDuration()
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "invalid period")
	}
	keeper, err := window.NewKeeper(cfg.Requests, period)
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "invalid rate limit")
	}

	if cfg.MetricsEnabled() {
		if err := observability.InitMetrics(observability.DefaultNamespace, cfg.Metrics.Port); err != nil {
			return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
		}
		defer func() { _ = observability.ShutdownMetrics() }()
	}

	acc, err := acceptor.Listen(ctx, cfg.Address(), keeper, acceptor.WithLogger(logger))
	if err != nil {
		return errwrap.WrapBindFailed(ctx, err, cfg.Address())
	}
	defer acc.Wait()

	logger.Info("Starting delay server",
		zap.String("service", cfg.Service),
		zap.Int("requests", cfg.Requests),
		zap.Duration("period", period),
		zap.Duration("base_delay", keeper.BaseDelay()),
		zap.String("addr", acc.Addr().String()),
		zap.String("version", versionInfo.Version))

	if cfg.AdminEnabled() {
		stopAdmin, err := startAdmin(ctx, cfg, keeper, acc)
		if err != nil {
			_ = acc.Close()
			return err
		}
		defer stopAdmin()
	}

	started := time.Now()
	metrics.SetServerStartTime(started.Unix())

	uptimeCtx, stopUptime := context.WithCancel(ctx)
	uptimeDone := make(chan struct{})
	go func() {
		defer close(uptimeDone)
		reportUptime(uptimeCtx, started, uptimeInterval)
	}()
	defer func() {
		stopUptime()
		<-uptimeDone
	}()

	return acc.Serve(ctx)
}

func startAdmin(ctx context.Context, cfg *config.Config, keeper *window.Keeper, acc *acceptor.Acceptor) (func(), error) {
	health := handlers.NewHealthManager(versionInfo.Version)
	health.RegisterChecker("acceptor", acc)
	if cfg.MetricsEnabled() {
		health.RegisterChecker("telemetry", telemetryHealthChecker{})
	}

	srv := server.New(server.Options{
		Addr:    cfg.AdminAddress(),
		Service: cfg.Service,
		Window:  keeper,
		Health:  health,
	})
	if err := srv.Listen(); err != nil {
		return nil, errwrap.WrapBindFailed(ctx, err, cfg.AdminAddress())
	}

	go func() {
		if err := srv.Serve(); err != nil {
			observability.ServerLogger.Error("Status server stopped", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			observability.ServerLogger.Warn("Status server shutdown failed", zap.Error(err))
		}
	}, nil
}

func reportUptime(ctx context.Context, started time.Time, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			metrics.SetServerUptime(int64(now.Sub(started).Seconds()))
		}
	}
}
