package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"online-ide/internal/config"
	"online-ide/internal/db"
	"online-ide/internal/email"
	"online-ide/internal/google"
	apihttp "online-ide/internal/http"
	"online-ide/internal/recaptcha"
	"online-ide/internal/repository"
	"online-ide/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
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

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	usageRepo := repository.NewPgUsageRepository(pool)
	auditRepo := repository.NewPgAuditRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	redisClient := connectRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	otpLimiter := service.NewOTPRateLimiter(cfg.OTPWindow(), cfg.OTPMaxRequests)
	if redisClient != nil {
		otpLimiter = service.NewRedisOTPRateLimiter(redisClient, logger, cfg.OTPWindow(), cfg.OTPMaxRequests)
	}

	var googleVerifier service.GoogleVerifier
	if cfg.GoogleClientID != "" {
		googleVerifier = google.NewIDTokenVerifier(cfg.GoogleClientID)
	} else {
		logger.Warn("google client id not configured")
	}

	jwtSvc := service.NewJWTService(cfg.JWTSecret, cfg.JWTTTL())
	accountSvc := service.NewAccountService(logger, userRepo, auditRepo, emailSender, jwtSvc, googleVerifier, otpLimiter,
		service.WithOTPTTL(cfg.OTPTTL()),
		service.WithHasher(service.NewBcryptHasher(cfg.BcryptCost)),
	)
	usageSvc := service.NewUsageService(logger, userRepo, usageRepo, auditRepo)
	snippetSvc := service.NewSnippetShareService(logger, redisClient, usageSvc, cfg.ShareBaseURL)

	housekeeping := service.NewHousekeepingService(logger, cfg.CleanupInterval())
	housekeeping.Register("expired_unverified_accounts", accountSvc.CleanupExpiredUnverified)
	housekeeping.Register("expired_shared_links", usageSvc.PurgeExpiredSharedLinks)
	housekeeping.Start()
	defer housekeeping.Stop()

	router := apihttp.NewRouter(logger, apihttp.RouterOptions{
		APIPrefix:   cfg.APIPrefix,
		CORSOrigins: cfg.CORSOrigins,
		JWT:         jwtSvc,
		Recaptcha:   recaptcha.NewHTTPClient(cfg.RecaptchaVerifyURL, cfg.RecaptchaSecret, cfg.RecaptchaMinScore),
		Cleanup:     accountSvc.CleanupExpiredUnverified,
		Health: func(ctx context.Context) error {
			return db.Ping(ctx, pool)
		},
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	},
		apihttp.NewAccountHandler(logger, accountSvc, usageSvc),
		apihttp.NewUsageHandler(logger, usageSvc),
		apihttp.NewSnippetHandler(logger, snippetSvc),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	waitForShutdown(server, logger)
}

// connectRedis devuelve nil si Redis no esta configurado o no responde.
func connectRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		logger.Warn("redis not configured, snippet sharing disabled")
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		logger.Warn("redis ping failed", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

func waitForShutdown(server *http.Server, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
