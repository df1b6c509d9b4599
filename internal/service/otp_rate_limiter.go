package service

import (
	"context"
	"sync"
	"time"
)

// OTPRateLimiter limita cuantos OTP se emiten por email dentro de una ventana.
type OTPRateLimiter interface {
	Allow(ctx context.Context, email string) bool
}

type otpRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	now    func() time.Time
}

// NewOTPRateLimiter crea un limitador en memoria de ventana deslizante.
func NewOTPRateLimiter(window time.Duration, max int) OTPRateLimiter {
	window, max = otpLimits(window, max)
	return &otpRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *otpRateLimiter) Allow(_ context.Context, email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	cutoff := now.Add(-l.window)
	kept := l.hits[email][:0]
	for _, ts := range l.hits[email] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[email] = kept
		return false
	}
	l.hits[email] = append(kept, now)
	return true
}

// otpLimits aplica los valores por defecto de ventana y cupo.
func otpLimits(window time.Duration, max int) (time.Duration, int) {
	if window <= 0 {
		window = defaultOTPTTL
	}
	if max <= 0 {
		max = 1
	}
	return window, max
}

type allowAll struct{}

func (allowAll) Allow(context.Context, string) bool { return true }
