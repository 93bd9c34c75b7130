package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-sms-relay/internal/application"
	"telegram-sms-relay/internal/config"
	"telegram-sms-relay/internal/infra/adapters/relay"
	tele "telegram-sms-relay/internal/infra/adapters/telegram"
	pg "telegram-sms-relay/internal/infra/db/postgres"
	"telegram-sms-relay/internal/infra/logging"
	"telegram-sms-relay/internal/infra/metrics"
	red "telegram-sms-relay/internal/infra/redis"
	"telegram-sms-relay/internal/infra/sched"
	"telegram-sms-relay/internal/infra/web"
	"telegram-sms-relay/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop bot, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("schema setup failed")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient, logger)
	locker := red.NewLocker(redisClient, logger)

	// ---- Repositories ----
	quotaRepo := pg.NewQuotaRepo(pool)
	dispatchRepo := pg.NewDispatchLogRepo(pool)
	referralRepo := pg.NewReferralRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Relay ----
	relayClient, err := relay.NewHTTPRelayClient(cfg.Relay.BaseURL, cfg.Relay.Timeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("relay client setup failed")
	}

	// ---- Use cases ----
	limits := usecase.Limits{DailyCap: cfg.Quota.DailyCap, PerNumberCap: cfg.Quota.PerNumberCap}
	sendUC := usecase.NewSendUseCase(quotaRepo, dispatchRepo, txManager, relayClient, locker, limits, logger)
	referralUC := usecase.NewReferralUseCase(quotaRepo, referralRepo, txManager, cfg.Quota.ReferralBonus, logger)
	historyUC := usecase.NewHistoryUseCase(dispatchRepo, logger)
	statsUC := usecase.NewStatsUseCase(quotaRepo, dispatchRepo, logger)
	adminUC := usecase.NewAdminUseCase(quotaRepo, dispatchRepo, cfg.Bot.AdminIDs, logger)

	// ---- Facade and Telegram ----
	// The gate needs the bot adapter for membership checks, and the adapter
	// needs the facade. The checker is attached after the adapter exists,
	// before any update is handled.
	gate := usecase.NewMembershipGate(nil, cfg.Bot.Channel, logger)
	flowUC := usecase.NewConversationUseCase(quotaRepo, txManager, gate, sendUC, limits, logger)
	facade := application.NewBotFacade(sendUC, flowUC, referralUC, historyUC, statsUC, adminUC, gate, cfg.Bot.Username, limits)

	if cfg.Runtime.Dev {
		noop := tele.NewNoopBotAdapter(logger)
		gate.SetChecker(noop)
		facade.SetNotifier(noop)
	} else {
		botAdapter, err := tele.NewRealBotAdapter(&cfg.Bot, facade, rateLimiter, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram setup failed")
		}
		gate.SetChecker(botAdapter)
		facade.SetNotifier(botAdapter)

		go func() {
			if err := botAdapter.StartPolling(ctx); err != nil && err != context.Canceled {
				logger.Error().Err(err).Msg("polling stopped")
			}
		}()
	}

	// ---- Admin web API ----
	webSrv := web.NewServer(cfg.Web, statsUC, adminUC, cfg.Runtime.Dev, logger)
	go func() {
		if err := webSrv.Start(); err != nil {
			logger.Error().Err(err).Msg("admin api stopped")
		}
	}()

	// ---- Reset sweep (hourly) ----
	resetWorker := sched.NewResetWorker(time.Hour, quotaRepo, logger)
	go func() { _ = resetWorker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := webSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin api shutdown failed")
	}
}
