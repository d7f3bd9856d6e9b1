package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rustport/zorp/internal/config"
	"github.com/rustport/zorp/internal/console"
	"github.com/rustport/zorp/internal/httpserver"
	"github.com/rustport/zorp/internal/httpserver/deps"
	"github.com/rustport/zorp/internal/logger"
	"github.com/rustport/zorp/internal/presence"
	"github.com/rustport/zorp/internal/redis"
	"github.com/rustport/zorp/internal/scheduler"
	"github.com/rustport/zorp/internal/sources/servers"
	redisstore "github.com/rustport/zorp/internal/store/redis"
	"github.com/rustport/zorp/internal/version"
	"github.com/rustport/zorp/internal/zones"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	consoles    map[string]console.Client
	reconcilers []*scheduler.Reconciler
	sweepers    []*scheduler.Sweeper
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Load the monitored server list - fail fast on a bad file
	srvs, err := servers.NewLoader(cfg.ServersFile).Load()
	if err != nil {
		loggerClient.Errorf("Failed to load servers file: %v", err)
		os.Exit(1)
	}
	loggerClient.Infof("Monitoring %d game server(s)", len(srvs))

	// Initialize Redis early - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	store := redisstore.NewStore(redisClient)
	tracker := presence.NewTracker()
	locks := zones.NewLocks()

	// One console client, reconciler and sweeper per monitored server.
	serverMap := make(map[string]servers.Server, len(srvs))
	consoles := make(map[string]console.Client, len(srvs))
	reconcileTriggers := make(map[string]chan struct{}, len(srvs))
	sweepTriggers := make(map[string]chan struct{}, len(srvs))
	reconcilers := make([]*scheduler.Reconciler, 0, len(srvs))
	sweepers := make([]*scheduler.Sweeper, 0, len(srvs))

	for _, srv := range srvs {
		serverMap[srv.ID] = srv
		client := console.NewRconClient(srv.ID, srv.RconAddr, srv.RconPassword, cfg.ConsoleTimeout, loggerClient)
		consoles[srv.ID] = client

		reconcileTrigger := make(chan struct{}, 1)
		sweepTrigger := make(chan struct{}, 1)
		reconcileTriggers[srv.ID] = reconcileTrigger
		sweepTriggers[srv.ID] = sweepTrigger

		reconcilers = append(reconcilers, scheduler.NewReconciler(
			srv.ID,
			store,
			client,
			tracker,
			locks,
			loggerClient,
			scheduler.ReconcilerConfig{
				Interval:          cfg.ReconcileInterval,
				TransitionWindow:  cfg.TransitionWindow,
				TransitionColor:   cfg.TransitionColor,
				BatchSize:         cfg.BatchSize,
				Workers:           cfg.Workers,
				RepairCooldown:    cfg.RepairCooldown,
				MaxRepairFailures: cfg.MaxRepairFailures,
			},
			reconcileTrigger,
		))

		sweepers = append(sweepers, scheduler.NewSweeper(
			srv.ID,
			store,
			client,
			locks,
			loggerClient,
			scheduler.SweeperConfig{Interval: cfg.SweepInterval},
			sweepTrigger,
			reconcileTrigger,
		))
	}

	zoneService := zones.NewService(store, tracker, consoles, locks, loggerClient, reconcileTriggers)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		TimeNow:       time.Now,
		AllowedHosts:  cfg.AllowedHosts,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		TrustProxy:    cfg.TrustProxy,
		RedisClient:   redisClient,
		Servers:       serverMap,
		Store:         store,
		Zones:         zoneService,
		Presence:      tracker,
		SweepTriggers: sweepTriggers,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		consoles:    consoles,
		reconcilers: reconcilers,
		sweepers:    sweepers,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Zorp v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Zorp %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, r := range a.reconcilers {
		if err := r.Start(ctx); err != nil {
			return fmt.Errorf("failed to start reconciler: %w", err)
		}
	}
	a.logger.Info("reconcilers started",
		logger.Duration("interval", a.cfg.ReconcileInterval))

	for _, s := range a.sweepers {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("failed to start sweeper: %w", err)
		}
	}
	a.logger.Info("sweepers started",
		logger.Duration("interval", a.cfg.SweepInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	for _, r := range a.reconcilers {
		r.Stop()
	}
	for _, s := range a.sweepers {
		s.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	for id, client := range a.consoles {
		if err := client.Close(); err != nil {
			a.logger.Warnf("failed to close console for %s: %v", id, err)
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ Zorp stopped cleanly")
	return nil
}
