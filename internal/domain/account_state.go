package domain

import (
	"errors"
	"time"
)

// AccountState es el estado explicito del ciclo de vida de una cuenta.
// Implementaciones: Pending, Verified y GoogleLinked. Sin registro, la cuenta
// no existe (no registrada o eliminada).
type AccountState interface {
	Name() string
	isAccountState()
}

// OTPChallenge es una ventana OTP abierta (verificacion o reset).
type OTPChallenge struct {
	Hash      string
	ExpiresAt time.Time
}

// Expired indica si la ventana cerro antes de now.
func (c OTPChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Pending: cuenta registrada esperando verificacion de email.
type Pending struct {
	Challenge    OTPChallenge
	PasswordHash string
}

// Verified: cuenta con password y email confirmado.
type Verified struct {
	PasswordHash string
	Reset        *OTPChallenge
}

// GoogleLinked: cuenta enlazada a Google. PasswordHash queda vacio hasta que
// el usuario define un password.
type GoogleLinked struct {
	GoogleID     string
	PasswordHash string
	Reset        *OTPChallenge
}

func (Pending) Name() string      { return "pending_verification" }
func (Verified) Name() string     { return "verified" }
func (GoogleLinked) Name() string { return "google_linked" }

func (Pending) isAccountState()      {}
func (Verified) isAccountState()     {}
func (GoogleLinked) isAccountState() {}

// ErrInconsistentState se devuelve cuando las columnas no forman un estado valido.
var ErrInconsistentState = errors.New("inconsistent account state")

// AuthColumns es la forma plana de AccountState en la base.
type AuthColumns struct {
	GoogleID        *string
	PasswordHash    *string
	IsEmailVerified bool
	OTPHash         *string
	OTPExpiresAt    *time.Time
}

// StateFromColumns reconstruye el estado a partir de las columnas.
func StateFromColumns(c AuthColumns) (AccountState, error) {
	if (c.OTPHash == nil) != (c.OTPExpiresAt == nil) {
		return nil, ErrInconsistentState
	}
	var challenge *OTPChallenge
	if c.OTPHash != nil {
		challenge = &OTPChallenge{Hash: *c.OTPHash, ExpiresAt: *c.OTPExpiresAt}
	}
	passwordHash := deref(c.PasswordHash)

	if !c.IsEmailVerified {
		if c.GoogleID != nil || challenge == nil {
			return nil, ErrInconsistentState
		}
		return Pending{Challenge: *challenge, PasswordHash: passwordHash}, nil
	}
	if c.GoogleID != nil && *c.GoogleID != "" {
		return GoogleLinked{GoogleID: *c.GoogleID, PasswordHash: passwordHash, Reset: challenge}, nil
	}
	if passwordHash == "" {
		return nil, ErrInconsistentState
	}
	return Verified{PasswordHash: passwordHash, Reset: challenge}, nil
}

// ColumnsFromState aplana el estado para persistirlo.
func ColumnsFromState(state AccountState) (AuthColumns, error) {
	var c AuthColumns
	switch s := state.(type) {
	case Pending:
		c.PasswordHash = ref(s.PasswordHash)
		c.OTPHash = ref(s.Challenge.Hash)
		c.OTPExpiresAt = &s.Challenge.ExpiresAt
	case Verified:
		if s.PasswordHash == "" {
			return AuthColumns{}, ErrInconsistentState
		}
		c.IsEmailVerified = true
		c.PasswordHash = ref(s.PasswordHash)
		setChallenge(&c, s.Reset)
	case GoogleLinked:
		if s.GoogleID == "" {
			return AuthColumns{}, ErrInconsistentState
		}
		c.IsEmailVerified = true
		c.GoogleID = ref(s.GoogleID)
		c.PasswordHash = ref(s.PasswordHash)
		setChallenge(&c, s.Reset)
	default:
		return AuthColumns{}, ErrInconsistentState
	}
	if c.OTPHash != nil && *c.OTPHash == "" {
		return AuthColumns{}, ErrInconsistentState
	}
	return c, nil
}

func setChallenge(c *AuthColumns, ch *OTPChallenge) {
	if ch == nil {
		return
	}
	c.OTPHash = ref(ch.Hash)
	expires := ch.ExpiresAt
	c.OTPExpiresAt = &expires
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
