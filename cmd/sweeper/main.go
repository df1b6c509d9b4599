// Comando sweeper: ejecuta una pasada de limpieza y termina.
// Pensado para cron cuando la API corre con varias replicas.
package main

import (
	"context"
	"log"
	"os"

	"online-ide/internal/config"
	"online-ide/internal/db"
	"online-ide/internal/email"
	"online-ide/internal/repository"
	"online-ide/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	usageRepo := repository.NewPgUsageRepository(pool)
	auditRepo := repository.NewPgAuditRepository(pool)

	accountSvc := service.NewAccountService(logger, userRepo, auditRepo,
		email.NewDisabledSender("sweeper does not send email"), nil, nil, nil,
		service.WithOTPTTL(cfg.OTPTTL()),
	)
	usageSvc := service.NewUsageService(logger, userRepo, usageRepo, auditRepo)

	housekeeping := service.NewHousekeepingService(logger, cfg.CleanupInterval())
	housekeeping.Register("expired_unverified_accounts", accountSvc.CleanupExpiredUnverified)
	housekeeping.Register("expired_shared_links", usageSvc.PurgeExpiredSharedLinks)

	total := 2
	if ok := housekeeping.RunOnce(ctx); ok != total {
		logger.Error("sweep finished with failures", zap.Int("ok", ok), zap.Int("total", total))
		os.Exit(1)
	}
	logger.Info("sweep finished")
}
