package domain

import "time"

// User es el registro de identidad persistido. El estado de autenticacion vive
// en State y nunca como combinacion libre de campos opcionales.
type User struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	Email       string       `json:"email"`
	State       AccountState `json:"-"`
	LastLoginAt *time.Time   `json:"last_login_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// IsVerified reporta si el email del usuario fue confirmado.
func (u User) IsVerified() bool {
	switch u.State.(type) {
	case Verified, GoogleLinked:
		return true
	default:
		return false
	}
}

// PasswordHash devuelve el hash de password vigente o "" si no hay uno.
func (u User) PasswordHash() string {
	switch s := u.State.(type) {
	case Pending:
		return s.PasswordHash
	case Verified:
		return s.PasswordHash
	case GoogleLinked:
		return s.PasswordHash
	default:
		return ""
	}
}

// GoogleID devuelve la identidad externa enlazada, si existe.
func (u User) GoogleID() string {
	if s, ok := u.State.(GoogleLinked); ok {
		return s.GoogleID
	}
	return ""
}

// IsGoogleOnly indica una cuenta de Google que nunca definio password.
func (u User) IsGoogleOnly() bool {
	s, ok := u.State.(GoogleLinked)
	return ok && s.PasswordHash == ""
}

// Challenge devuelve la ventana OTP abierta, o nil.
func (u User) Challenge() *OTPChallenge {
	switch s := u.State.(type) {
	case Pending:
		c := s.Challenge
		return &c
	case Verified:
		return s.Reset
	case GoogleLinked:
		return s.Reset
	default:
		return nil
	}
}
