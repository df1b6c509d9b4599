package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"online-ide/internal/domain"
)

// PgAuditRepository mantiene el espejo desnormalizado de cada usuario en user_audit.
type PgAuditRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPgAuditRepository(pool *pgxpool.Pool) *PgAuditRepository {
	return &PgAuditRepository{pool: pool, now: time.Now}
}

// Mirror toma una foto del usuario, sus contadores y enlaces en una sola
// sentencia y la sobrescribe sobre (username, email).
func (r *PgAuditRepository) Mirror(ctx context.Context, userID string, action domain.AuditAction) error {
	const query = `
		INSERT INTO user_audit (username, email, last_login_at, created_at,
			generate_code_count, refactor_code_count, run_code_count, shared_links, action, logged_at)
		SELECT u.username, u.email, u.last_login_at, u.created_at,
			COALESCE((SELECT jsonb_object_agg(c.language, c.count) FROM usage_counters c
				WHERE c.user_id = u.id AND c.kind = 'generate'), '{}'::jsonb),
			COALESCE((SELECT jsonb_object_agg(c.language, c.count) FROM usage_counters c
				WHERE c.user_id = u.id AND c.kind = 'refactor'), '{}'::jsonb),
			COALESCE((SELECT jsonb_object_agg(c.language, c.count) FROM usage_counters c
				WHERE c.user_id = u.id AND c.kind = 'run'), '{}'::jsonb),
			COALESCE((SELECT jsonb_agg(jsonb_build_object(
					'shareId', l.share_id, 'title', l.title, 'expiryTime', l.expires_at)
					ORDER BY l.created_at) FROM shared_links l
				WHERE l.user_id = u.id), '[]'::jsonb),
			$2, $3
		FROM users u
		WHERE u.id = $1
		ON CONFLICT (username, email) DO UPDATE SET
			last_login_at = EXCLUDED.last_login_at,
			created_at = EXCLUDED.created_at,
			generate_code_count = EXCLUDED.generate_code_count,
			refactor_code_count = EXCLUDED.refactor_code_count,
			run_code_count = EXCLUDED.run_code_count,
			shared_links = EXCLUDED.shared_links,
			action = EXCLUDED.action,
			logged_at = EXCLUDED.logged_at
	`
	tag, err := r.pool.Exec(ctx, query, userID, string(action), r.now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
