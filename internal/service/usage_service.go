package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"online-ide/internal/domain"
	"online-ide/internal/repository"
)

// MaxSharedLinkMinutes acota la vigencia de un enlace compartido a una semana.
const MaxSharedLinkMinutes = 7 * 24 * 60

// UsageService lleva los contadores de uso por lenguaje y el registro de enlaces
// compartidos de cada usuario.
type UsageService struct {
	logger *zap.Logger
	users  repository.UserRepository
	usage  repository.UsageRepository
	audit  auditor
	now    func() time.Time
}

func NewUsageService(logger *zap.Logger, users repository.UserRepository, usage repository.UsageRepository, audit AuditLogger) *UsageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsageService{
		logger: logger,
		users:  users,
		usage:  usage,
		audit:  auditor{logger: logger, audit: audit},
		now:    time.Now,
	}
}

// UserRef identifica al usuario por sesion (ID) o por nombre (contador run).
type UserRef struct {
	ID       string
	Username string
}

// IncrementCounter suma uno al contador del lenguaje. Un lenguaje desconocido
// no modifica nada.
func (s *UsageService) IncrementCounter(ctx context.Context, ref UserRef, kind domain.CounterKind, language string) error {
	user, err := s.resolve(ctx, ref)
	if err != nil {
		return err
	}
	lang, ok := domain.ParseLanguage(strings.TrimSpace(language))
	if !ok || !kind.Supports(lang) {
		return ErrUnsupportedLang
	}
	if err := s.usage.Increment(ctx, user.ID, kind, lang); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}
	s.audit.mirror(ctx, user.ID, domain.AuditUpdate)
	return nil
}

func (s *UsageService) Counters(ctx context.Context, userID string) (domain.UsageCounters, error) {
	return s.usage.Counters(ctx, userID)
}

// AddSharedLink registra el enlace; repetir un shareId propio no tiene efecto.
func (s *UsageService) AddSharedLink(ctx context.Context, userID, shareID, title string, expiryMinutes int) error {
	shareID = strings.TrimSpace(shareID)
	title = strings.TrimSpace(title)
	if shareID == "" || title == "" || expiryMinutes == 0 {
		return ErrMissingFields
	}
	if expiryMinutes < 0 || expiryMinutes > MaxSharedLinkMinutes {
		return ErrInvalidExpiry
	}
	user, err := s.resolve(ctx, UserRef{ID: userID})
	if err != nil {
		return err
	}
	link := domain.SharedLink{
		ShareID:   shareID,
		Title:     title,
		ExpiresAt: s.now().UTC().Add(time.Duration(expiryMinutes) * time.Minute),
	}
	added, err := s.usage.AddSharedLink(ctx, user.ID, link)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		if errors.Is(err, repository.ErrDuplicateShareID) {
			return ErrShareIDTaken
		}
		return err
	}
	if added {
		s.audit.mirror(ctx, user.ID, domain.AuditUpdate)
	}
	return nil
}

// ListSharedLinks borra los enlaces vencidos del usuario y devuelve el resto.
func (s *UsageService) ListSharedLinks(ctx context.Context, userID string) ([]domain.SharedLink, error) {
	user, err := s.resolve(ctx, UserRef{ID: userID})
	if err != nil {
		return nil, err
	}
	removed, err := s.usage.DeleteExpiredSharedLinks(ctx, user.ID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		s.audit.mirror(ctx, user.ID, domain.AuditUpdate)
	}
	return s.usage.ListSharedLinks(ctx, user.ID)
}

// RemoveSharedLink quita un enlace del usuario de la sesion o, sin sesion, del
// usuario dueño del enlace.
func (s *UsageService) RemoveSharedLink(ctx context.Context, userID, shareID string) error {
	shareID = strings.TrimSpace(shareID)
	if shareID == "" {
		return ErrMissingFields
	}
	if userID == "" {
		owner, err := s.usage.SharedLinkOwner(ctx, shareID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrSharedLinkNotFound
			}
			return err
		}
		userID = owner
	} else if _, err := s.resolve(ctx, UserRef{ID: userID}); err != nil {
		return err
	}

	removed, err := s.usage.DeleteSharedLink(ctx, userID, shareID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrSharedLinkNotFound
	}
	s.audit.mirror(ctx, userID, domain.AuditUpdate)
	return nil
}

// PurgeExpiredSharedLinks borra enlaces vencidos de todos los usuarios.
func (s *UsageService) PurgeExpiredSharedLinks(ctx context.Context) (int64, error) {
	n, err := s.usage.PurgeExpiredSharedLinks(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired shared links removed", zap.Int64("count", n))
	}
	return n, nil
}

func (s *UsageService) resolve(ctx context.Context, ref UserRef) (domain.User, error) {
	var (
		user domain.User
		err  error
	)
	switch {
	case ref.ID != "":
		user, err = s.users.GetByID(ctx, ref.ID)
	case strings.TrimSpace(ref.Username) != "":
		user, err = s.users.GetByUsername(ctx, strings.TrimSpace(ref.Username))
	default:
		return domain.User{}, ErrAccountNotFound
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrAccountNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}
