package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"online-ide/internal/domain"
)

// UsageRepository persiste contadores por lenguaje y enlaces compartidos.
type UsageRepository interface {
	Increment(ctx context.Context, userID string, kind domain.CounterKind, lang domain.Language) error
	Counters(ctx context.Context, userID string) (domain.UsageCounters, error)
	AddSharedLink(ctx context.Context, userID string, link domain.SharedLink) (bool, error)
	ListSharedLinks(ctx context.Context, userID string) ([]domain.SharedLink, error)
	DeleteExpiredSharedLinks(ctx context.Context, userID string, now time.Time) (int64, error)
	DeleteSharedLink(ctx context.Context, userID, shareID string) (bool, error)
	SharedLinkOwner(ctx context.Context, shareID string) (string, error)
	PurgeExpiredSharedLinks(ctx context.Context, now time.Time) (int64, error)
}

type PgUsageRepository struct {
	pool *pgxpool.Pool
}

func NewPgUsageRepository(pool *pgxpool.Pool) *PgUsageRepository {
	return &PgUsageRepository{pool: pool}
}

// Increment suma uno al contador en una sola sentencia. Si el usuario no
// existe devuelve pgx.ErrNoRows.
func (r *PgUsageRepository) Increment(ctx context.Context, userID string, kind domain.CounterKind, lang domain.Language) error {
	const query = `
		INSERT INTO usage_counters (user_id, kind, language, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, kind, language)
		DO UPDATE SET count = usage_counters.count + 1
	`
	_, err := r.pool.Exec(ctx, query, userID, kind.String(), lang.Key())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return pgx.ErrNoRows
	}
	return err
}

func (r *PgUsageRepository) Counters(ctx context.Context, userID string) (domain.UsageCounters, error) {
	const query = `
		SELECT kind, language, count
		FROM usage_counters
		WHERE user_id = $1
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return domain.UsageCounters{}, err
	}
	defer rows.Close()

	var out domain.UsageCounters
	for rows.Next() {
		var (
			kindName, key string
			count         int64
		)
		if err := rows.Scan(&kindName, &key, &count); err != nil {
			return domain.UsageCounters{}, err
		}
		kind, ok := domain.ParseCounterKind(kindName)
		if !ok {
			continue
		}
		lang, ok := domain.ParseLanguageKey(key)
		if !ok || !kind.Supports(lang) {
			continue
		}
		out.Of(kind)[lang] = count
	}
	return out, rows.Err()
}

// ErrDuplicateShareID indica que el shareId ya pertenece a otro usuario.
var ErrDuplicateShareID = errors.New("duplicate share id")

// AddSharedLink registra el enlace; devuelve false si el usuario ya tenia ese
// shareId y ErrDuplicateShareID si lo tiene otro usuario.
func (r *PgUsageRepository) AddSharedLink(ctx context.Context, userID string, link domain.SharedLink) (bool, error) {
	const query = `
		INSERT INTO shared_links (share_id, user_id, title, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (share_id) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query, link.ShareID, userID, link.Title, link.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return false, pgx.ErrNoRows
		}
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	owner, err := r.SharedLinkOwner(ctx, link.ShareID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if owner != userID {
		return false, ErrDuplicateShareID
	}
	return false, nil
}

func (r *PgUsageRepository) ListSharedLinks(ctx context.Context, userID string) ([]domain.SharedLink, error) {
	const query = `
		SELECT share_id, title, expires_at
		FROM shared_links
		WHERE user_id = $1
		ORDER BY created_at, share_id
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := make([]domain.SharedLink, 0)
	for rows.Next() {
		var l domain.SharedLink
		if err := rows.Scan(&l.ShareID, &l.Title, &l.ExpiresAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *PgUsageRepository) DeleteExpiredSharedLinks(ctx context.Context, userID string, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM shared_links WHERE user_id = $1 AND expires_at <= $2`, userID, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgUsageRepository) DeleteSharedLink(ctx context.Context, userID, shareID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM shared_links WHERE user_id = $1 AND share_id = $2`, userID, shareID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SharedLinkOwner devuelve el id del usuario dueño del enlace o pgx.ErrNoRows.
func (r *PgUsageRepository) SharedLinkOwner(ctx context.Context, shareID string) (string, error) {
	var userID string
	err := r.pool.QueryRow(ctx,
		`SELECT user_id FROM shared_links WHERE share_id = $1`, shareID).Scan(&userID)
	return userID, err
}

func (r *PgUsageRepository) PurgeExpiredSharedLinks(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM shared_links WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
