// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"telegram-vpn-subscription/internal/config"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	pg "telegram-vpn-subscription/internal/infra/db/postgres"
	"telegram-vpn-subscription/internal/infra/gateway/best2pay"
	"telegram-vpn-subscription/internal/infra/gateway/nowpayments"
	"telegram-vpn-subscription/internal/infra/logging"
	"telegram-vpn-subscription/internal/infra/metrics"
	"telegram-vpn-subscription/internal/infra/panel"
	red "telegram-vpn-subscription/internal/infra/redis"
	"telegram-vpn-subscription/internal/infra/referral"
	"telegram-vpn-subscription/internal/infra/sched"
	tele "telegram-vpn-subscription/internal/infra/telegram"
	"telegram-vpn-subscription/internal/infra/web"
	"telegram-vpn-subscription/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logging)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	sessionRepo := red.NewSandboxSessionRepo(redisClient)

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	activationRepo := pg.NewActivationRepo(pool)
	txm := pg.NewTxManager(pool)

	// ---- Provider gateways ----
	gateways := make(map[string]adapter.ProviderGateway)
	if cfg.Best2Pay.Sector != "" {
		gateways[best2pay.Name] = best2pay.NewClient(cfg.Best2Pay.Sector, cfg.Best2Pay.Password, cfg.Best2Pay.BaseURL, cfg.Best2Pay.Timeout, logger)
		logger.Info().Str("base_url", cfg.Best2Pay.BaseURL).Msg("best2pay gateway enabled")
	}
	if cfg.NOWPayments.APIKey != "" {
		gateways[nowpayments.Name] = nowpayments.NewClient(cfg.NOWPayments.APIKey, cfg.NOWPayments.IPNSecret, cfg.NOWPayments.BaseURL, cfg.NOWPayments.CallbackURL, cfg.NOWPayments.Timeout, logger)
		logger.Info().Str("base_url", cfg.NOWPayments.BaseURL).Msg("nowpayments gateway enabled")
	}
	if len(gateways) == 0 {
		logger.Fatal().Msg("no payment provider configured: set best2pay.sector or nowpayments.api_key")
	}

	// ---- Panel and notifications ----
	panelClient := panel.NewClient(cfg.Panel.BaseURL, cfg.Panel.APIKey, cfg.Panel.Timeout, logger)

	var notifier adapter.Notifier
	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
		notifier, err = tele.NewNotifier(cfg.Telegram.Token, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
	} else {
		notifier = tele.NewNoopNotifier(logger)
	}

	// ---- Use cases ----
	activationUC := usecase.NewActivationUseCase(activationRepo, paymentRepo, panelClient, referral.NewNoopProgram(logger), notifier, logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, activationRepo, txm, gateways, locker, activationUC, cfg.Payments.RegisteredTTL, logger)

	var admin *web.AdminAPI
	if cfg.Admin.APIKey != "" {
		sandboxGW, ok := gateways[best2pay.Name]
		if !ok {
			logger.Warn().Msg("admin api enabled without best2pay; sandbox pipeline unavailable")
		} else {
			sandboxUC := usecase.NewSandboxUseCase(sessionRepo, paymentRepo, activationRepo, paymentUC, panelClient, sandboxGW, logger)
			admin = &web.AdminAPI{APIKey: cfg.Admin.APIKey, Sandbox: sandboxUC, Payments: paymentUC}
		}
	}

	// ---- Webhook server ----
	addr := net.JoinHostPort(cfg.Webhook.Host, strconv.Itoa(cfg.Webhook.Port))
	server := web.NewServer(addr, gateways, paymentUC, admin, cfg.Webhook.BotLink, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("webhook server stopped")
			cancel()
		}
	}()

	// ---- Background workers ----
	expiry := sched.NewExpiryWorker(cfg.Payments.SweepInterval, paymentUC, logger)
	go func() { _ = expiry.Run(ctx) }()
	retry := sched.NewActivationRetryWorker(cfg.Payments.SweepInterval, activationUC, logger)
	go func() { _ = retry.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("webhook server shutdown")
	}
	fmt.Println("bye")
}
