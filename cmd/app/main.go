package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pharmacy-invest-ledger/internal/config"
	"pharmacy-invest-ledger/internal/infra/db/postgres"
	"pharmacy-invest-ledger/internal/infra/logging"
	"pharmacy-invest-ledger/internal/infra/metrics"
	"pharmacy-invest-ledger/internal/infra/redis"
	"pharmacy-invest-ledger/internal/infra/sched"
	"pharmacy-invest-ledger/internal/infra/web"
	"pharmacy-invest-ledger/internal/usecase"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the YAML config file")
		dev        = flag.Bool("dev", false, "development mode (console logs, no sampling)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath, *dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("resolve timezone")
	}

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	redisCli, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() { _ = redisCli.Close() }()
	locker := redis.NewLocker(redisCli)

	// Repositories and use cases.
	users := postgres.NewUserRepo(pool)
	orders := postgres.NewOrderRepo(pool)
	weekendOrders := postgres.NewWeekendOrderRepo(pool)
	products := postgres.NewProductRepo(pool)
	tm := postgres.NewTxManager(pool)

	accrualUC := usecase.NewAccrualUseCase(orders, weekendOrders, users, tm, loc, logger)
	purchaseUC := usecase.NewPurchaseUseCase(orders, weekendOrders, users, products, tm, logger)
	statsUC := usecase.NewStatsUseCase(users, orders, weekendOrders)

	// Nightly sweep.
	sweep := sched.NewSweepWorker(
		cfg.Accrual.SweepCron,
		accrualUC,
		orders,
		weekendOrders,
		locker,
		cfg.Redis.LockTTL,
		cfg.Accrual.Workers,
		cfg.Accrual.BatchSize,
		loc,
		logger,
	)
	if err := sweep.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start sweep")
	}
	defer sweep.Stop()

	// HTTP API.
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	server := web.NewServer(accrualUC, purchaseUC, statsUC, auth, cfg.Admin.APIKey, logger)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
