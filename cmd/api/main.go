package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/commonshare/flow-backend/internal/api"
	"github.com/commonshare/flow-backend/internal/auth"
	"github.com/commonshare/flow-backend/internal/config"
	"github.com/commonshare/flow-backend/internal/db"
	"github.com/commonshare/flow-backend/internal/events"
	"github.com/commonshare/flow-backend/internal/logger"
	"github.com/commonshare/flow-backend/internal/metrics"
	"github.com/commonshare/flow-backend/internal/repository/postgres"
	"github.com/commonshare/flow-backend/internal/services"
	"github.com/commonshare/flow-backend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	metrics.Init()

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(4)
	defer wp.Stop()
	bus := events.NewBus(wp)

	// Notification delivery is external; for now just log what would
	// be fanned out.
	bus.Subscribe(func(e events.Event) {
		log.Info("event", "type", e.Type, "account", e.AccountID)
	})

	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)

	progSvc := services.NewProgressionService(repos.Progressions, repos.Accounts, repos.Balances, repos.AuditLogs)
	accountSvc := services.NewAccountService(repos.Accounts, repos.Balances, progSvc, cfg, tm)
	balanceSvc := services.NewBalanceService(repos.Balances, repos.Pools)
	transferSvc := services.NewTransferService(repos.Accounts, repos.Balances, repos.Transactions, repos.AuditLogs, progSvc, cfg.Flow, bus)
	governanceSvc := services.NewGovernanceService(repos.PoolRequests, repos.Accounts, repos.AuditLogs, cfg.Flow, bus)

	c := cron.New()
	if _, err := c.AddFunc("@every 5m", func() {
		n, err := governanceSvc.SweepExpired(context.Background())
		if err != nil {
			log.Error("expiry sweep", "err", err)
			return
		}
		if n > 0 {
			log.Info("expiry sweep", "expired", n)
		}
	}); err != nil {
		log.Error("cron", "err", err)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	r := api.NewRouter(api.Deps{
		Cfg:        cfg,
		TM:         tm,
		Accounts:   accountSvc,
		Balances:   balanceSvc,
		Transfers:  transferSvc,
		Governance: governanceSvc,
		Progress:   progSvc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
