package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"online-ide/internal/domain"
)

var (
	ErrDuplicateEmail    = errors.New("duplicate email")
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateGoogleID = errors.New("duplicate google id")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Update(ctx context.Context, user domain.User) error
	Delete(ctx context.Context, id string) error
	DeleteExpiredUnverified(ctx context.Context, now time.Time) (int64, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, username, email, google_id, password_hash, is_email_verified,
		otp_hash, otp_expires_at, last_login_at, created_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	cols, err := domain.ColumnsFromState(user.State)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO users (id, username, email, google_id, password_hash, is_email_verified,
			otp_hash, otp_expires_at, last_login_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		cols.GoogleID,
		cols.PasswordHash,
		cols.IsEmailVerified,
		cols.OTPHash,
		cols.OTPExpiresAt,
		user.LastLoginAt,
		user.CreatedAt,
	)
	return translateUserError(err)
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PgUserRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *PgUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, username).Scan(&exists)
	return exists, err
}

// Update persiste la fila completa. Devuelve pgx.ErrNoRows si el registro ya no existe.
func (r *PgUserRepository) Update(ctx context.Context, user domain.User) error {
	cols, err := domain.ColumnsFromState(user.State)
	if err != nil {
		return err
	}
	const query = `
		UPDATE users
		SET username = $2, email = $3, google_id = $4, password_hash = $5,
			is_email_verified = $6, otp_hash = $7, otp_expires_at = $8, last_login_at = $9
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		cols.GoogleID,
		cols.PasswordHash,
		cols.IsEmailVerified,
		cols.OTPHash,
		cols.OTPExpiresAt,
		user.LastLoginAt,
	)
	if err != nil {
		return translateUserError(err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteExpiredUnverified elimina las cuentas sin verificar cuyo OTP vencio.
func (r *PgUserRepository) DeleteExpiredUnverified(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		DELETE FROM users
		WHERE NOT is_email_verified AND otp_expires_at <= $1
	`
	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgUserRepository) getOne(ctx context.Context, query string, arg any) (domain.User, error) {
	var (
		u    domain.User
		cols domain.AuthColumns
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&cols.GoogleID,
		&cols.PasswordHash,
		&cols.IsEmailVerified,
		&cols.OTPHash,
		&cols.OTPExpiresAt,
		&u.LastLoginAt,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	state, err := domain.StateFromColumns(cols)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	u.State = state
	return u, nil
}

// translateUserError traduce violaciones de unicidad a errores del repositorio.
func translateUserError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "users_email_key":
		return ErrDuplicateEmail
	case "users_username_key":
		return ErrDuplicateUsername
	case "users_google_id_key":
		return ErrDuplicateGoogleID
	default:
		return err
	}
}
