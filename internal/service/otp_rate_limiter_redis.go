package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Ventana deslizante sobre un sorted set: score = instante de emision en ms.
// Devuelve 1 si el OTP puede emitirse y 0 si el email agoto su cupo.
var otpWindowScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", tonumber(ARGV[1]) - tonumber(ARGV[2]))
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return 1
`)

const otpIssueKeyPrefix = "ide:otp:issued:"

type redisOTPRateLimiter struct {
	client  redis.Scripter
	logger  *zap.Logger
	window  time.Duration
	max     int
	timeout time.Duration
	now     func() time.Time
}

// NewRedisOTPRateLimiter comparte el cupo de OTP por email entre replicas.
// Tiene la misma semantica que el limitador en memoria.
func NewRedisOTPRateLimiter(client *redis.Client, logger *zap.Logger, window time.Duration, max int) OTPRateLimiter {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	window, max = otpLimits(window, max)
	return &redisOTPRateLimiter{
		client:  client,
		logger:  logger,
		window:  window,
		max:     max,
		timeout: 500 * time.Millisecond,
		now:     time.Now,
	}
}

// Allow falla abierto si Redis no responde: la emision de OTP no depende de Redis.
func (l *redisOTPRateLimiter) Allow(ctx context.Context, email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	issuedAt := l.now().UnixMilli()
	allowed, err := otpWindowScript.Run(ctx, l.client,
		[]string{otpIssueKeyPrefix + email},
		issuedAt,
		l.window.Milliseconds(),
		l.max,
		strconv.FormatInt(issuedAt, 10)+"-"+uuid.NewString(),
	).Int()
	if err != nil {
		l.logger.Warn("otp limiter unavailable, allowing request", zap.String("email", email), zap.Error(err))
		return true
	}
	if allowed == 0 {
		l.logger.Info("otp quota exhausted", zap.String("email", email), zap.Duration("window", l.window))
		return false
	}
	return true
}
