package google

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/api/idtoken"
)

// Identity son los datos de Google que usa el alta de cuentas.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

var (
	ErrMissingClientID = errors.New("google client id not configured")
	ErrMissingEmail    = errors.New("google token has no email claim")
	ErrMissingSubject  = errors.New("google token has no subject")
)

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// IDTokenVerifier valida ID tokens de Google contra el client id de la app.
type IDTokenVerifier struct {
	clientID string
	validate validateFunc
}

func NewIDTokenVerifier(clientID string) *IDTokenVerifier {
	return &IDTokenVerifier{
		clientID: strings.TrimSpace(clientID),
		validate: idtoken.Validate,
	}
}

func (v *IDTokenVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if v.clientID == "" {
		return Identity{}, ErrMissingClientID
	}
	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return Identity{}, err
	}
	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)
	subject := payload.Subject
	if subject == "" {
		subject, _ = payload.Claims["sub"].(string)
	}
	if strings.TrimSpace(email) == "" {
		return Identity{}, ErrMissingEmail
	}
	if subject == "" {
		return Identity{}, ErrMissingSubject
	}
	return Identity{
		Subject: subject,
		Email:   strings.ToLower(strings.TrimSpace(email)),
		Name:    name,
	}, nil
}
