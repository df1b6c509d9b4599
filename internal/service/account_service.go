package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"online-ide/internal/domain"
	"online-ide/internal/email"
	"online-ide/internal/google"
	"online-ide/internal/repository"
)

// SessionIssuer firma tokens de sesion para un usuario.
type SessionIssuer interface {
	Issue(user domain.User) (string, error)
}

// GoogleVerifier valida un ID token de Google y devuelve la identidad.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (google.Identity, error)
}

const (
	defaultOTPTTL     = 10 * time.Minute
	lastLoginRefresh  = 5 * time.Minute
	maxUsernameProbes = 10
)

// AccountService coordina el ciclo de vida de las cuentas: alta, verificacion,
// login, Google, reset de password y cambios de perfil.
type AccountService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	audit    auditor
	mailer   email.Sender
	sessions SessionIssuer
	google   GoogleVerifier
	limiter  OTPRateLimiter
	hasher   Hasher
	otpTTL   time.Duration
	now      func() time.Time
}

type AccountOption func(*AccountService)

func WithHasher(h Hasher) AccountOption {
	return func(s *AccountService) {
		if h != nil {
			s.hasher = h
		}
	}
}

func WithOTPTTL(ttl time.Duration) AccountOption {
	return func(s *AccountService) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) AccountOption {
	return func(s *AccountService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAccountService(
	logger *zap.Logger,
	users repository.UserRepository,
	audit AuditLogger,
	mailer email.Sender,
	sessions SessionIssuer,
	googleVerifier GoogleVerifier,
	limiter OTPRateLimiter,
	opts ...AccountOption,
) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = allowAll{}
	}
	s := &AccountService{
		logger:   logger,
		users:    users,
		audit:    auditor{logger: logger, audit: audit},
		mailer:   mailer,
		sessions: sessions,
		google:   googleVerifier,
		limiter:  limiter,
		hasher:   NewBcryptHasher(0),
		otpTTL:   defaultOTPTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session es la respuesta de toda operacion que emite un token.
type Session struct {
	Token      string `json:"token"`
	Username   string `json:"username"`
	GoogleUser bool   `json:"isgoogleuser"`
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// RegisterResult indica si se creo la cuenta o se reenvio el OTP a una pendiente.
type RegisterResult struct {
	UserID   string
	Reissued bool
}

func (s *AccountService) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	username := strings.TrimSpace(input.Username)
	emailAddr := normalizeEmail(input.Email)
	password := strings.TrimSpace(input.Password)
	if username == "" || emailAddr == "" || password == "" {
		return RegisterResult{}, ErrMissingFields
	}
	if err := validateUsername(username); err != nil {
		return RegisterResult{}, err
	}
	if err := validateEmail(emailAddr); err != nil {
		return RegisterResult{}, err
	}
	if err := validatePassword(password); err != nil {
		return RegisterResult{}, err
	}
	if !s.limiter.Allow(ctx, emailAddr) {
		return RegisterResult{}, ErrRateLimited
	}

	existing, err := s.users.GetByEmail(ctx, emailAddr)
	switch {
	case err == nil:
		if _, pending := existing.State.(domain.Pending); !pending {
			return RegisterResult{}, ErrEmailInUse
		}
		if err := s.openChallenge(ctx, existing); err != nil {
			return RegisterResult{}, err
		}
		return RegisterResult{UserID: existing.ID, Reissued: true}, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return RegisterResult{}, err
	}

	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return RegisterResult{}, err
	}
	if taken {
		return RegisterResult{}, ErrUsernameTaken
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return RegisterResult{}, err
	}
	code, challenge, err := s.newChallenge()
	if err != nil {
		return RegisterResult{}, err
	}

	user := domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     emailAddr,
		State:     domain.Pending{Challenge: challenge, PasswordHash: passwordHash},
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return RegisterResult{}, translateDuplicate(err)
	}
	s.audit.mirror(ctx, user.ID, domain.AuditCreate)
	if err := s.sendOTP(ctx, user.Email, code, challenge.ExpiresAt); err != nil {
		return RegisterResult{}, err
	}
	return RegisterResult{UserID: user.ID}, nil
}

// VerifyOTP confirma el email de una cuenta pendiente y abre la sesion.
func (s *AccountService) VerifyOTP(ctx context.Context, emailAddr, otp, password string) (Session, error) {
	emailAddr = normalizeEmail(emailAddr)
	otp = strings.TrimSpace(otp)
	password = strings.TrimSpace(password)
	if otp == "" {
		return Session{}, ErrOTPRequired
	}
	if err := validatePassword(password); err != nil {
		return Session{}, err
	}

	user, err := s.userByEmail(ctx, emailAddr)
	if err != nil {
		return Session{}, err
	}
	if user.IsGoogleOnly() {
		return Session{}, ErrUseGoogleLogin
	}
	pending, ok := user.State.(domain.Pending)
	if !ok {
		return Session{}, ErrAlreadyVerified
	}
	if err := s.checkChallenge(&pending.Challenge, otp); err != nil {
		return Session{}, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return Session{}, err
	}
	now := s.now().UTC()
	user.State = domain.Verified{PasswordHash: passwordHash}
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrUserNotFound
		}
		return Session{}, err
	}
	s.audit.mirror(ctx, user.ID, domain.AuditUpdate)
	return s.issue(user)
}

// Login valida credenciales. Usuario inexistente y password incorrecto
// devuelven el mismo error.
func (s *AccountService) Login(ctx context.Context, emailAddr, password string) (Session, error) {
	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if err := validateEmail(emailAddr); err != nil {
		return Session{}, err
	}
	if err := validatePassword(password); err != nil {
		return Session{}, err
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if user.IsGoogleOnly() {
		return Session{}, ErrUseGoogleLogin
	}
	if !user.IsVerified() {
		return Session{}, ErrEmailNotVerified
	}
	if !s.hasher.Compare(user.PasswordHash(), password) {
		return Session{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	s.audit.mirror(ctx, user.ID, domain.AuditUpdate)
	return s.issue(user)
}

// GoogleAuth inicia sesion con un ID token de Google, creando la cuenta si hace falta.
func (s *AccountService) GoogleAuth(ctx context.Context, idToken string) (Session, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" || s.google == nil {
		return Session{}, ErrInvalidGoogleToken
	}
	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		s.logger.Info("google token rejected", zap.Error(err))
		return Session{}, ErrInvalidGoogleToken
	}

	now := s.now().UTC()
	user, err := s.users.GetByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		user.State = linkGoogle(user.State, identity.Subject)
		user.LastLoginAt = &now
		if err := s.users.Update(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateGoogleID) {
				return Session{}, ErrInvalidGoogleToken
			}
			return Session{}, err
		}
		s.audit.mirror(ctx, user.ID, domain.AuditUpdate)
	case errors.Is(err, pgx.ErrNoRows):
		username, err := s.generateUsername(ctx, identity.Name)
		if err != nil {
			return Session{}, err
		}
		user = domain.User{
			ID:          uuid.NewString(),
			Username:    username,
			Email:       identity.Email,
			State:       domain.GoogleLinked{GoogleID: identity.Subject},
			LastLoginAt: &now,
			CreatedAt:   now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateGoogleID) {
				return Session{}, ErrInvalidGoogleToken
			}
			return Session{}, translateDuplicate(err)
		}
		s.audit.mirror(ctx, user.ID, domain.AuditCreate)
	default:
		return Session{}, err
	}

	session, err := s.issue(user)
	if err != nil {
		return Session{}, err
	}
	session.GoogleUser = true
	return session, nil
}

// linkGoogle enlaza la identidad externa. Una cuenta pendiente queda verificada
// y pierde el password no confirmado.
func linkGoogle(state domain.AccountState, googleID string) domain.AccountState {
	switch st := state.(type) {
	case domain.Pending:
		return domain.GoogleLinked{GoogleID: googleID}
	case domain.Verified:
		return domain.GoogleLinked{GoogleID: googleID, PasswordHash: st.PasswordHash, Reset: st.Reset}
	case domain.GoogleLinked:
		if st.GoogleID == "" {
			st.GoogleID = googleID
		}
		return st
	default:
		return domain.GoogleLinked{GoogleID: googleID}
	}
}

func (s *AccountService) generateUsername(ctx context.Context, displayName string) (string, error) {
	base, err := sanitizeUsername(displayName)
	if err != nil {
		return "", err
	}
	candidate := base
	for probe := 0; ; probe++ {
		if !isReservedUsername(candidate) {
			taken, err := s.users.UsernameExists(ctx, candidate)
			if err != nil {
				return "", err
			}
			if !taken {
				return candidate, nil
			}
		}
		if probe == maxUsernameProbes {
			return "", ErrUsernameExhausted
		}
		suffix, err := randomSuffix(generatedSuffixLength)
		if err != nil {
			return "", err
		}
		candidate = base + "_" + suffix
	}
}

// ResendOTP reemite el codigo. Fuera del modo forgot-password solo aplica a
// cuentas pendientes.
func (s *AccountService) ResendOTP(ctx context.Context, emailAddr string, forgotPassword bool) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrMissingFields
	}
	if !s.limiter.Allow(ctx, emailAddr) {
		return ErrRateLimited
	}
	user, err := s.userByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if user.IsGoogleOnly() {
		return ErrUseGoogleLogin
	}
	if !forgotPassword && user.IsVerified() {
		return ErrAlreadyVerified
	}
	return s.openChallenge(ctx, user)
}

func (s *AccountService) ForgotPassword(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrMissingFields
	}
	if !s.limiter.Allow(ctx, emailAddr) {
		return ErrRateLimited
	}
	user, err := s.userByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if user.IsGoogleOnly() {
		return ErrUseGoogleLogin
	}
	if !user.IsVerified() {
		return ErrEmailNotVerified
	}
	return s.openChallenge(ctx, user)
}

// ResetPasswordCheck confirma el OTP de reset sin modificar nada.
func (s *AccountService) ResetPasswordCheck(ctx context.Context, emailAddr, otp string) error {
	_, err := s.resetTarget(ctx, emailAddr, otp)
	return err
}

func (s *AccountService) UpdatePassword(ctx context.Context, emailAddr, otp, newPassword string) error {
	newPassword = strings.TrimSpace(newPassword)
	if strings.TrimSpace(otp) == "" {
		return ErrOTPRequired
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.resetTarget(ctx, emailAddr, otp)
	if err != nil {
		return err
	}
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	switch st := user.State.(type) {
	case domain.Verified:
		user.State = domain.Verified{PasswordHash: passwordHash}
	case domain.GoogleLinked:
		user.State = domain.GoogleLinked{GoogleID: st.GoogleID, PasswordHash: passwordHash}
	}
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	s.audit.mirror(ctx, user.ID, domain.AuditUpdate)
	s.notify("password changed", user.Email, func() error {
		return s.mailer.SendPasswordChanged(ctx, user.Email)
	})
	return nil
}

// resetTarget carga la cuenta y valida el OTP de reset vigente.
func (s *AccountService) resetTarget(ctx context.Context, emailAddr, otp string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return domain.User{}, ErrOTPRequired
	}
	user, err := s.userByEmail(ctx, emailAddr)
	if err != nil {
		return domain.User{}, err
	}
	if user.IsGoogleOnly() {
		return domain.User{}, ErrUseGoogleLogin
	}
	if !user.IsVerified() {
		return domain.User{}, ErrEmailNotVerified
	}
	if err := s.checkChallenge(user.Challenge(), otp); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Profile devuelve la cuenta de la sesion y refresca lastLoginAt si pasaron
// mas de cinco minutos.
func (s *AccountService) Profile(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	now := s.now().UTC()
	if user.LastLoginAt == nil || now.Sub(*user.LastLoginAt) > lastLoginRefresh {
		user.LastLoginAt = &now
		if err := s.users.Update(ctx, user); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.User{}, ErrAccountNotFound
			}
			return domain.User{}, err
		}
		s.audit.mirror(ctx, user.ID, domain.AuditUpdate)
	}
	return user, nil
}

func (s *AccountService) ChangeUsername(ctx context.Context, userID, newUsername string) error {
	newUsername = strings.TrimSpace(newUsername)
	if err := validateUsername(newUsername); err != nil {
		return err
	}
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return err
	}
	taken, err := s.users.UsernameExists(ctx, newUsername)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameTaken
	}

	oldUsername := user.Username
	user.Username = newUsername
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return translateDuplicate(err)
	}
	s.audit.mirror(ctx, user.ID, domain.AuditUpdate)
	s.notify("username changed", user.Email, func() error {
		return s.mailer.SendUsernameChanged(ctx, user.Email, oldUsername, newUsername)
	})
	return nil
}

// ChangePassword define un password nuevo y reemite la sesion. Tambien habilita
// el login por password en cuentas creadas con Google.
func (s *AccountService) ChangePassword(ctx context.Context, userID, newPassword, confirmPassword string) (Session, error) {
	newPassword = strings.TrimSpace(newPassword)
	confirmPassword = strings.TrimSpace(confirmPassword)
	if newPassword == "" || confirmPassword == "" {
		return Session{}, ErrMissingFields
	}
	if newPassword != confirmPassword {
		return Session{}, ErrPasswordMismatch
	}
	if err := validatePassword(newPassword); err != nil {
		return Session{}, err
	}
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return Session{}, err
	}
	switch st := user.State.(type) {
	case domain.Verified:
		st.PasswordHash = passwordHash
		user.State = st
	case domain.GoogleLinked:
		st.PasswordHash = passwordHash
		user.State = st
	default:
		return Session{}, ErrEmailNotVerified
	}
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrAccountNotFound
		}
		return Session{}, err
	}
	s.audit.mirror(ctx, user.ID, domain.AuditUpdate)
	s.notify("password changed", user.Email, func() error {
		return s.mailer.SendPasswordChanged(ctx, user.Email)
	})
	return s.issue(user)
}

func (s *AccountService) VerifyPassword(ctx context.Context, userID, password string) error {
	password = strings.TrimSpace(password)
	if err := validatePassword(password); err != nil {
		return err
	}
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash() == "" {
		return ErrUseGoogleLogin
	}
	if !s.hasher.Compare(user.PasswordHash(), password) {
		return ErrIncorrectPassword
	}
	return nil
}

// DeleteAccount refleja la cuenta en auditoria como delete y luego la elimina.
func (s *AccountService) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return err
	}
	s.audit.mirror(ctx, user.ID, domain.AuditDelete)
	if err := s.users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}
	s.notify("account deleted", user.Email, func() error {
		return s.mailer.SendAccountDeleted(ctx, user.Email)
	})
	return nil
}

// DeleteUnverified borra una cuenta pendiente registrada con un email equivocado.
func (s *AccountService) DeleteUnverified(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrMissingFields
	}
	user, err := s.userByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if user.IsGoogleOnly() {
		return ErrUseGoogleLogin
	}
	if user.IsVerified() {
		return ErrAlreadyVerified
	}
	s.audit.mirror(ctx, user.ID, domain.AuditDelete)
	if err := s.users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// CheckEmail confirma que existe una cuenta con login por password.
func (s *AccountService) CheckEmail(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if err := validateEmail(emailAddr); err != nil {
		return err
	}
	user, err := s.userByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if user.IsGoogleOnly() {
		return ErrUseGoogleLogin
	}
	return nil
}

// CleanupExpiredUnverified elimina las cuentas pendientes cuyo OTP vencio.
func (s *AccountService) CleanupExpiredUnverified(ctx context.Context) (int64, error) {
	n, err := s.users.DeleteExpiredUnverified(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup unverified: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired unverified accounts removed", zap.Int64("count", n))
	}
	return n, nil
}

func (s *AccountService) userByEmail(ctx context.Context, emailAddr string) (domain.User, error) {
	if emailAddr == "" {
		return domain.User{}, ErrUserNotFound
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *AccountService) userByID(ctx context.Context, userID string) (domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, ErrUnauthorized
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrAccountNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *AccountService) newChallenge() (string, domain.OTPChallenge, error) {
	code, err := generateOTP()
	if err != nil {
		return "", domain.OTPChallenge{}, err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return "", domain.OTPChallenge{}, err
	}
	return code, domain.OTPChallenge{Hash: hash, ExpiresAt: s.now().UTC().Add(s.otpTTL)}, nil
}

// openChallenge emite un OTP nuevo sobre el estado actual, lo persiste y lo envia.
func (s *AccountService) openChallenge(ctx context.Context, user domain.User) error {
	code, challenge, err := s.newChallenge()
	if err != nil {
		return err
	}
	switch st := user.State.(type) {
	case domain.Pending:
		st.Challenge = challenge
		user.State = st
	case domain.Verified:
		st.Reset = &challenge
		user.State = st
	case domain.GoogleLinked:
		st.Reset = &challenge
		user.State = st
	default:
		return domain.ErrInconsistentState
	}
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	s.audit.mirror(ctx, user.ID, domain.AuditUpdate)
	return s.sendOTP(ctx, user.Email, code, challenge.ExpiresAt)
}

// checkChallenge compara primero el codigo y despues la vigencia.
func (s *AccountService) checkChallenge(challenge *domain.OTPChallenge, otp string) error {
	if challenge == nil || !s.hasher.Compare(challenge.Hash, otp) {
		return ErrOTPInvalid
	}
	if challenge.Expired(s.now().UTC()) {
		return ErrOTPExpired
	}
	return nil
}

func (s *AccountService) sendOTP(ctx context.Context, to, code string, expiresAt time.Time) error {
	if s.mailer == nil {
		return ErrEmailSendFailure
	}
	if err := s.mailer.SendVerificationOTP(ctx, to, code, expiresAt); err != nil {
		s.logger.Warn("send verification otp failed", zap.Error(err), zap.String("email", to))
		return ErrEmailSendFailure
	}
	return nil
}

// notify envia avisos no criticos; una falla solo se registra.
func (s *AccountService) notify(kind, to string, send func() error) {
	if s.mailer == nil {
		return
	}
	if err := send(); err != nil {
		s.logger.Warn("send notice failed", zap.String("notice", kind), zap.String("email", to), zap.Error(err))
	}
}

func (s *AccountService) issue(user domain.User) (Session, error) {
	if s.sessions == nil {
		return Session{}, errors.New("session issuer not configured")
	}
	token, err := s.sessions.Issue(user)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Username: user.Username}, nil
}

func translateDuplicate(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return ErrEmailInUse
	case errors.Is(err, repository.ErrDuplicateUsername):
		return ErrUsernameTaken
	default:
		return err
	}
}
