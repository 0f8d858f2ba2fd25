package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tvqos/tvqos/internal/config"
	"github.com/tvqos/tvqos/internal/database"
	"github.com/tvqos/tvqos/internal/database/migrations"
	internalhttp "github.com/tvqos/tvqos/internal/http"
	"github.com/tvqos/tvqos/internal/http/handlers"
	"github.com/tvqos/tvqos/internal/hls"
	"github.com/tvqos/tvqos/internal/metrics"
	"github.com/tvqos/tvqos/internal/models"
	"github.com/tvqos/tvqos/internal/observability"
	"github.com/tvqos/tvqos/internal/probe"
	"github.com/tvqos/tvqos/internal/repository"
	"github.com/tvqos/tvqos/internal/scheduler"
	"github.com/tvqos/tvqos/internal/snapshot"
	"github.com/tvqos/tvqos/internal/startup"
	"github.com/tvqos/tvqos/internal/storage"
	"github.com/tvqos/tvqos/internal/version"
	"github.com/tvqos/tvqos/pkg/format"
	"github.com/tvqos/tvqos/pkg/httpclient"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tvqosd monitoring daemon",
	Long: `Start the tvqosd monitoring daemon.

The daemon drives a continuous monitoring cycle over the enabled inputs in
the configuration store: MPEG-2 Transport Stream over UDP is captured and
analyzed for ETSI TR 101 290 errors, RFC 4445 MDI, and a heuristic QoE
score; HLS/HTTP adaptive-bitrate renditions are fetched and validated. Every
metric is written to the configured time-series sink. An ambient, read-only
HTTP surface exposes /health and /status.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("database", "tvqos.db", "Configuration store DSN")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := observability.LoggerFromContext(cmd.Context())

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := viper.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return fmt.Errorf("applying flag/env overrides: %w", err)
	}

	if removed, err := startup.CleanupSystemTempDirs(logger); err != nil {
		logger.Warn("snapshot temp directory cleanup failed", slog.Any("error", err))
	} else if removed > 0 {
		logger.Info("removed orphaned snapshot temp directories", slog.Int("count", removed))
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("connecting to configuration store: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Warn("closing configuration store connection failed", slog.Any("error", cerr))
		}
	}()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("applying configuration store migrations: %w", err)
	}

	inputRepo := repository.NewInputSourceRepository(db.DB)

	sandbox, err := storage.NewSandbox(cfg.Snapshot.SnapshotPath(cfg.Storage))
	if err != nil {
		return fmt.Errorf("creating snapshot sandbox: %w", err)
	}

	emitter := metrics.NewEmitter(cfg.Metrics).WithLogger(logger)
	defer emitter.Close()

	cbManager := httpclient.NewCircuitBreakerManager(nil).WithLogger(logger)
	clientFactory := httpclient.NewClientFactory(cbManager).WithLogger(logger)
	validator := hls.NewValidator(clientFactory, cfg.HLS).WithLogger(logger)

	// The scheduler/coordinator/executor dependency graph has a cycle: the
	// Snapshot Coordinator needs the Scheduler as its cross-cycle Tracker, but
	// the Scheduler is built from a Runner that is built from an Executor that
	// needs the probe handlers, which in turn need the Coordinator. Breaking
	// it: build the Executor with an empty handler table, thread it through
	// Runner and Scheduler, then register handlers into the already-built
	// Executor once the Coordinator (and therefore the probes) exist.
	executor := scheduler.NewExecutor().WithLogger(logger)
	runner := scheduler.NewRunner(inputRepo, executor, cfg.Scheduler.WorkerCount, cfg.Scheduler.TaskDeadline).WithLogger(logger)
	sched, err := scheduler.NewScheduler(runner, cfg.Scheduler.PollInterval, cfg.Scheduler.CronExpression)
	if err != nil {
		return fmt.Errorf("configuring scheduler: %w", err)
	}
	sched = sched.WithLogger(logger)

	coordinator := snapshot.NewCoordinator(sched, inputRepo, sandbox, cfg.Snapshot).WithLogger(logger)

	udpProbe := probe.NewUDPProbe(cfg.Capture, emitter, coordinator)
	hlsProbe := probe.NewHLSProbe(validator, emitter)
	executor.RegisterHandler(models.InputKindMPEGTSUDP, udpProbe)
	executor.RegisterHandler(models.InputKindHLS, hlsProbe)
	executor.RegisterHandler(models.InputKindHTTP, hlsProbe)

	serverConfig := internalhttp.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = cfg.Server.ReadTimeout
	serverConfig.WriteTimeout = cfg.Server.WriteTimeout
	serverConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout

	httpServer := internalhttp.NewServer(serverConfig, logger, version.Short())

	handlers.NewHealthHandler(version.Short()).
		WithCircuitBreakerManager(cbManager).
		WithDB(db.DB).
		Register(httpServer.API())
	handlers.NewStatusHandler(sched).Register(httpServer.API())

	scheduleDesc := "poll interval " + cfg.Scheduler.PollInterval.String()
	if cfg.Scheduler.CronExpression != "" {
		scheduleDesc = format.CronDescription("0 " + cfg.Scheduler.CronExpression)
	}

	logger.Info("starting tvqosd",
		slog.String("version", version.Short()),
		slog.String("address", cfg.Server.Address()),
		slog.String("schedule", scheduleDesc),
		slog.Int("worker_count", cfg.Scheduler.WorkerCount),
	)

	errCh := make(chan error, 2)
	go func() {
		errCh <- httpServer.ListenAndServe(ctx)
	}()
	go func() {
		errCh <- sched.Run(ctx)
	}()

	remaining := 2
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		remaining--
		if err != nil && err != context.Canceled {
			logger.Error("a daemon component exited unexpectedly", slog.Any("error", err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during HTTP server shutdown", slog.Any("error", err))
	}

	// Drain the remaining goroutines' exits so defers (emitter.Close, db.Close)
	// run after both components have actually stopped.
	cancel()
	drainTimeout := time.After(cfg.Server.ShutdownTimeout)
	for ; remaining > 0; remaining-- {
		select {
		case <-errCh:
		case <-drainTimeout:
			return nil
		}
	}

	return nil
}
