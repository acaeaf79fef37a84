package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/subosito/gotenv"

	"github.com/warelane/lp-reserve/internal/config"
	"github.com/warelane/lp-reserve/internal/domain/plates"
	"github.com/warelane/lp-reserve/internal/domain/products"
	"github.com/warelane/lp-reserve/internal/domain/reservations"
	"github.com/warelane/lp-reserve/internal/domain/workorders"
	"github.com/warelane/lp-reserve/internal/infra/api"
	"github.com/warelane/lp-reserve/internal/infra/db"
	httpx "github.com/warelane/lp-reserve/internal/infra/http"
	"github.com/warelane/lp-reserve/internal/infra/logger"
	"github.com/warelane/lp-reserve/internal/infra/notify"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	var notifier *notify.Telegram
	if cfg.Telegram.Enabled {
		notifier, err = notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.AdminChatID, log)
		if err != nil {
			log.Error("telegram init failed", "err", err)
			return
		}
		log.Info("telegram alerts enabled", "chat_id", cfg.Telegram.AdminChatID)
	}

	svc := reservations.NewService(
		log,
		products.NewRepo(pool),
		plates.NewRepo(pool),
		workorders.NewRepo(pool),
		reservations.NewRepo(pool),
		notifier,
		decimal.NewFromFloat(cfg.Allocation.MaxLineQty),
	)

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, api.NewHandler(log, svc))
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
