package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"online-ide/internal/domain"
)

func TestJWTService_IssueParse(t *testing.T) {
	svc := NewJWTService("secret", 0)
	user := domain.User{ID: "u1", Email: "user@example.com"}

	token, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u1" || claims.Subject != "u1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != 7*24*time.Hour {
		t.Fatalf("expected one week ttl, got %v", ttl)
	}
}

func TestJWTService_Expired(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }

	token, err := svc.Issue(domain.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.now = time.Now
	if _, err := svc.Parse(token); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestJWTService_RejectsOtherSecret(t *testing.T) {
	issuer := NewJWTService("secret-a", time.Hour)
	parser := NewJWTService("secret-b", time.Hour)

	token, err := issuer.Issue(domain.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := parser.Parse(token); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestJWTService_RejectsOtherAlgorithm(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	now := time.Now()
	claims := Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "online-ide",
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Parse(token); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestJWTService_RejectsMismatchedSubject(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	claims := Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "online-ide",
			Subject:   "u2",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Parse(token); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestJWTService_EmptyInputs(t *testing.T) {
	if _, err := NewJWTService("", time.Hour).Issue(domain.User{ID: "u1"}); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected invalid error without secret, got %v", err)
	}
	if _, err := NewJWTService("secret", time.Hour).Parse("  "); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected invalid error for blank token, got %v", err)
	}
}
