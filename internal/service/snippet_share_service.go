package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"online-ide/internal/domain"
)

const snippetExpiryLayout = "2006-01-02 15:04:05 UTC"

var snippetExpiries = map[int]struct{}{10: {}, 30: {}, 60: {}, 1440: {}, 10080: {}}

type snippetStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// linkRegistry es el registro de enlaces del usuario que acompaña a cada snippet.
type linkRegistry interface {
	AddSharedLink(ctx context.Context, userID, shareID, title string, expiryMinutes int) error
	RemoveSharedLink(ctx context.Context, userID, shareID string) error
}

// SnippetShareService guarda snippets de codigo temporales en Redis.
type SnippetShareService struct {
	logger  *zap.Logger
	store   snippetStore
	links   linkRegistry
	baseURL string
	now     func() time.Time
}

func NewSnippetShareService(logger *zap.Logger, client *redis.Client, links linkRegistry, baseURL string) *SnippetShareService {
	if logger == nil {
		logger = zap.NewNop()
	}
	var store snippetStore
	if client != nil {
		store = client
	}
	return &SnippetShareService{
		logger:  logger,
		store:   store,
		links:   links,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

type SnippetUpload struct {
	Code          string
	Language      string
	Title         string
	ExpiryMinutes int
}

type SnippetShare struct {
	ShareID   string `json:"shareId"`
	FileURL   string `json:"fileUrl"`
	ExpiresAt string `json:"expiry_time"`
}

// Snippet es el contenido guardado bajo file:<shareId>:data.
type Snippet struct {
	Title     string `json:"title"`
	Code      string `json:"code"`
	Language  string `json:"language"`
	ExpiresAt string `json:"expiry_time"`
}

// Upload guarda el snippet con TTL y registra el enlace en la cuenta del
// usuario; si el registro falla, el snippet se descarta.
func (s *SnippetShareService) Upload(ctx context.Context, userID string, in SnippetUpload) (SnippetShare, error) {
	if userID == "" {
		return SnippetShare{}, ErrUnauthorized
	}
	language := strings.TrimSpace(in.Language)
	title := strings.TrimSpace(in.Title)
	if in.Code == "" || language == "" || title == "" || in.ExpiryMinutes == 0 {
		return SnippetShare{}, ErrMissingFields
	}
	if _, ok := snippetExpiries[in.ExpiryMinutes]; !ok {
		return SnippetShare{}, ErrInvalidExpiry
	}
	if _, ok := domain.ParseLanguage(language); !ok {
		return SnippetShare{}, ErrUnsupportedLang
	}
	if s.store == nil {
		return SnippetShare{}, ErrSnippetStoreDown
	}

	ttl := time.Duration(in.ExpiryMinutes) * time.Minute
	expiresAt := s.now().UTC().Add(ttl).Format(snippetExpiryLayout)
	shareID := language + "-" + uuid.NewString()

	payload, err := json.Marshal(Snippet{
		Title:     title,
		Code:      in.Code,
		Language:  language,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return SnippetShare{}, err
	}
	if err := s.store.Set(ctx, snippetKey(shareID), payload, ttl).Err(); err != nil {
		return SnippetShare{}, fmt.Errorf("store snippet: %w", err)
	}

	if s.links != nil {
		if err := s.links.AddSharedLink(ctx, userID, shareID, title, in.ExpiryMinutes); err != nil {
			if delErr := s.store.Del(ctx, snippetKey(shareID)).Err(); delErr != nil {
				s.logger.Warn("rollback snippet failed", zap.String("share_id", shareID), zap.Error(delErr))
			}
			return SnippetShare{}, err
		}
	}

	s.logger.Info("snippet shared", zap.String("share_id", shareID), zap.Int("expiry_minutes", in.ExpiryMinutes))
	return SnippetShare{
		ShareID:   shareID,
		FileURL:   s.baseURL + "/file/" + shareID,
		ExpiresAt: expiresAt,
	}, nil
}

// Get exige que el cliente repita el shareId en el header X-File-ID.
func (s *SnippetShareService) Get(ctx context.Context, shareID, headerID string) (Snippet, error) {
	if headerID == "" || headerID != shareID {
		return Snippet{}, ErrFileIDMismatch
	}
	if err := validateShareID(shareID); err != nil {
		return Snippet{}, err
	}
	if s.store == nil {
		return Snippet{}, ErrSnippetStoreDown
	}
	raw, err := s.store.Get(ctx, snippetKey(shareID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snippet{}, ErrSnippetNotFound
		}
		return Snippet{}, fmt.Errorf("load snippet: %w", err)
	}
	var snippet Snippet
	if err := json.Unmarshal(raw, &snippet); err != nil {
		return Snippet{}, fmt.Errorf("decode snippet: %w", err)
	}
	return snippet, nil
}

// Delete borra el snippet y su entrada en el registro del usuario.
func (s *SnippetShareService) Delete(ctx context.Context, userID, shareID string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	if err := validateShareID(shareID); err != nil {
		return err
	}
	if s.store == nil {
		return ErrSnippetStoreDown
	}
	n, err := s.store.Del(ctx, snippetKey(shareID)).Result()
	if err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	if n == 0 {
		return ErrSnippetNotFound
	}
	if s.links != nil {
		if err := s.links.RemoveSharedLink(ctx, userID, shareID); err != nil && !errors.Is(err, ErrSharedLinkNotFound) {
			s.logger.Warn("remove shared link failed", zap.String("share_id", shareID), zap.Error(err))
		}
	}
	return nil
}

func snippetKey(shareID string) string {
	return "file:" + shareID + ":data"
}

// validateShareID exige el formato <language>-<uuid>.
func validateShareID(shareID string) error {
	language, id, ok := strings.Cut(shareID, "-")
	if !ok || language == "" {
		return ErrInvalidShareID
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidShareID
	}
	return nil
}
