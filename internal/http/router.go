package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"online-ide/internal/domain"
	"online-ide/internal/recaptcha"
	"online-ide/internal/service"
)

// RouterOptions agrupa las dependencias transversales del router.
type RouterOptions struct {
	APIPrefix      string
	CORSOrigins    []string
	JWT            *service.JWTService
	Recaptcha      recaptcha.Verifier
	Cleanup        func(ctx context.Context) (int64, error)
	Health         func(ctx context.Context) error
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter configura el router de Gin con middlewares y rutas de la API.
func NewRouter(
	logger *zap.Logger,
	opts RouterOptions,
	accountH *AccountHandler,
	usageH *UsageHandler,
	snippetH *SnippetHandler,
) *gin.Engine {
	r := gin.New()
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), corsMiddleware(opts.CORSOrigins), jsonContentTypeMiddleware())

	r.GET("/healthz", healthHandler(opts.Health))

	prefix := opts.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}
	api := r.Group(prefix)

	bot := recaptchaMiddleware(logger, opts.Recaptcha)
	limit := newIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).middleware()
	clean := cleanupMiddleware(logger, opts.Cleanup)
	auth := JWTAuthMiddleware(opts.JWT, http.StatusForbidden)
	authStrict := JWTAuthMiddleware(opts.JWT, http.StatusUnauthorized)
	optionalAuth := OptionalJWTMiddleware(opts.JWT)

	if accountH != nil {
		registerAccountRoutes(api, accountH, limit, bot, clean, auth, authStrict)
	}
	if usageH != nil {
		registerUsageRoutes(api, usageH, bot, clean, auth, optionalAuth)
	}
	if snippetH != nil {
		api.POST("/temp-file-upload", bot, authStrict, snippetH.Upload)
		api.GET("/file/:shareId", snippetH.Get)
		api.DELETE("/file/:shareId/delete", bot, authStrict, snippetH.Delete)
	}

	return r
}

func registerAccountRoutes(api *gin.RouterGroup, accountH *AccountHandler, limit, bot, clean, auth, authStrict gin.HandlerFunc) {
	// Alta, login y recuperacion.
	api.POST("/register", limit, bot, clean, accountH.Register)
	api.POST("/login", limit, bot, clean, accountH.Login)
	api.POST("/auth/google", limit, bot, accountH.GoogleAuth)
	api.POST("/verify-otp", limit, bot, accountH.VerifyOTP)
	api.POST("/resend-otp", limit, bot, accountH.ResendOTP)
	api.DELETE("/wrong-email", limit, bot, accountH.DeleteWrongEmail)
	api.POST("/check-email-exists", limit, bot, accountH.CheckEmail)
	api.POST("/forgot-password", limit, bot, accountH.ForgotPassword)
	api.POST("/reset-password", limit, bot, accountH.ResetPassword)
	api.POST("/update-password", limit, bot, accountH.UpdatePassword)

	// Cuenta con sesion.
	api.GET("/protected", clean, auth, accountH.Protected)
	api.POST("/account-details", clean, bot, auth, accountH.AccountDetails)
	api.PUT("/change-username", bot, authStrict, accountH.ChangeUsername)
	api.PUT("/change-password", bot, authStrict, accountH.ChangePassword)
	api.DELETE("/account", bot, auth, accountH.DeleteAccount)
	api.POST("/verify-password", bot, auth, accountH.VerifyPassword)
}

func registerUsageRoutes(api *gin.RouterGroup, usageH *UsageHandler, bot, clean, auth, optionalAuth gin.HandlerFunc) {
	// Contadores y enlaces compartidos.
	api.POST("/runCode/count", bot, usageH.RunCount)
	api.POST("/generateCode/count", bot, auth, usageH.SessionCount(domain.CounterGenerate))
	api.POST("/refactorCode/count", bot, auth, usageH.SessionCount(domain.CounterRefactor))
	api.POST("/sharedLink/count", bot, auth, usageH.AddSharedLink)
	api.POST("/user/sharedLinks", clean, auth, usageH.ListSharedLinks)
	api.DELETE("/sharedLink", bot, usageH.RemoveSharedLink)
	api.DELETE("/user/sharedLink/:shareId", bot, optionalAuth, usageH.RemoveSharedLink)
}

func healthHandler(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			if err := check(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
