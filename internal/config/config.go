package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string   `env:"HTTP_PORT" envDefault:"5000"`
	APIPrefix     string   `env:"API_PREFIX" envDefault:"/api"`
	CORSOrigins   []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	DatabaseURL   string   `env:"DATABASE_URL,notEmpty"`
	DBMaxConns    int32    `env:"DB_MAX_CONNS" envDefault:"10"`
	RunMigrations bool     `env:"RUN_MIGRATIONS" envDefault:"true"`

	JWTSecret   string `env:"JWT_SECRET,notEmpty"`
	JWTTTLHours int    `env:"JWT_TTL_HOURS" envDefault:"168"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`

	RecaptchaSecret    string  `env:"RECAPTCHA_SECRET_KEY"`
	RecaptchaMinScore  float64 `env:"RECAPTCHA_MIN_SCORE" envDefault:"0.5"`
	RecaptchaVerifyURL string  `env:"RECAPTCHA_VERIFY_URL" envDefault:"https://www.google.com/recaptcha/api/siteverify"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Online IDE"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisTLS      bool   `env:"REDIS_TLS" envDefault:"false"`

	OTPTTLMinutes    int `env:"OTP_TTL_MINUTES" envDefault:"10"`
	OTPMaxRequests   int `env:"OTP_MAX_REQUESTS" envDefault:"3"`
	OTPWindowMinutes int `env:"OTP_WINDOW_MINUTES" envDefault:"10"`
	BcryptCost       int `env:"BCRYPT_COST" envDefault:"10"`

	ShareBaseURL string `env:"SHARE_BASE_URL" envDefault:"http://localhost:5000/api"`

	CleanupIntervalMinutes int     `env:"CLEANUP_INTERVAL_MINUTES" envDefault:"15"`
	RateLimitRPS           float64 `env:"RATE_LIMIT_RPS" envDefault:"1"`
	RateLimitBurst         int     `env:"RATE_LIMIT_BURST" envDefault:"10"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// JWTTTL devuelve la vigencia de las sesiones emitidas.
func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// OTPTTL devuelve la vigencia de cada OTP.
func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLMinutes) * time.Minute
}

// OTPWindow devuelve la ventana del limitador de OTP.
func (c *Config) OTPWindow() time.Duration {
	return time.Duration(c.OTPWindowMinutes) * time.Minute
}

// CleanupInterval devuelve el periodo del barrido de cuentas vencidas.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}
