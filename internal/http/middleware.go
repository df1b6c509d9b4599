package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"online-ide/internal/recaptcha"
)

const recaptchaHeader = "X-Recaptcha-Token"

// zapLoggerMiddleware registra cada request con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// corsMiddleware responde los preflight y agrega los headers CORS.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAny := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAny = true
		}
		allowed[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		h := c.Writer.Header()
		if allowAny {
			h.Set("Access-Control-Allow-Origin", "*")
		} else if _, ok := allowed[origin]; ok {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-recaptcha-token, X-File-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// recaptchaMiddleware exige un token de reCAPTCHA aprobado antes del handler.
func recaptchaMiddleware(logger *zap.Logger, verifier recaptcha.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(recaptchaHeader))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "reCAPTCHA token is missing."})
			return
		}
		if verifier == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": "Server configuration error."})
			return
		}
		ok, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, recaptcha.ErrMissingSecret) {
				logger.Error("recaptcha secret not configured")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": "Server configuration error."})
				return
			}
			logger.Warn("recaptcha verification error", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": "Server error during reCAPTCHA verification."})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "reCAPTCHA verification failed."})
			return
		}
		c.Next()
	}
}

// cleanupMiddleware borra las cuentas sin verificar vencidas antes del handler.
// Es best-effort: una falla solo se registra.
func cleanupMiddleware(logger *zap.Logger, cleanup func(ctx context.Context) (int64, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cleanup != nil {
			if _, err := cleanup(c.Request.Context()); err != nil {
				logger.Warn("cleanup expired accounts failed", zap.Error(err))
			}
		}
		c.Next()
	}
}

// ipRateLimiter mantiene un token bucket por IP.
type ipRateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	visitors map[string]*visitor
	now      func() time.Time

	// barrido de visitantes inactivos, como mucho uno por sweepEvery
	sweepEvery time.Duration
	lastSweep  time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 10
	}
	return &ipRateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		ttl:        10 * time.Minute,
		visitors:   make(map[string]*visitor),
		now:        time.Now,
		sweepEvery: time.Minute,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.sweepEvery {
		l.sweep(now)
	}
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *ipRateLimiter) sweep(now time.Time) {
	l.lastSweep = now
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}
}

func (l *ipRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"msg": "Too many requests, please try again later"})
			return
		}
		c.Next()
	}
}
