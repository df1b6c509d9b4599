package email

import (
	"context"
	"errors"
	"time"
)

// Sender define los correos transaccionales de la cuenta.
type Sender interface {
	SendVerificationOTP(ctx context.Context, toEmail string, code string, expiresAt time.Time) error
	SendPasswordChanged(ctx context.Context, toEmail string) error
	SendUsernameChanged(ctx context.Context, toEmail, oldUsername, newUsername string) error
	SendAccountDeleted(ctx context.Context, toEmail string) error
}

type disabledSender struct {
	reason string
}

// NewDisabledSender devuelve un Sender que falla siempre; se usa cuando SMTP no esta configurado.
func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

func (s *disabledSender) SendVerificationOTP(context.Context, string, string, time.Time) error {
	return s.err()
}

func (s *disabledSender) SendPasswordChanged(context.Context, string) error {
	return s.err()
}

func (s *disabledSender) SendUsernameChanged(context.Context, string, string, string) error {
	return s.err()
}

func (s *disabledSender) SendAccountDeleted(context.Context, string) error {
	return s.err()
}
