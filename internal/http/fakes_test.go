package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"online-ide/internal/domain"
	"online-ide/internal/repository"
	"online-ide/internal/service"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]domain.User)}
}

func (m *memUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *memUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Username == username })
}

func (m *memUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *memUserRepo) Update(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *memUserRepo) DeleteExpiredUnverified(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, u := range m.users {
		if p, ok := u.State.(domain.Pending); ok && !p.Challenge.ExpiresAt.After(now) {
			delete(m.users, id)
			n++
		}
	}
	return n, nil
}

type memLink struct {
	userID string
	link   domain.SharedLink
}

type memUsageRepo struct {
	mu       sync.Mutex
	users    *memUserRepo
	counters map[string]*domain.UsageCounters
	links    []memLink
}

func newMemUsageRepo(users *memUserRepo) *memUsageRepo {
	return &memUsageRepo{users: users, counters: make(map[string]*domain.UsageCounters)}
}

func (m *memUsageRepo) Increment(ctx context.Context, userID string, kind domain.CounterKind, lang domain.Language) error {
	if _, err := m.users.GetByID(ctx, userID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[userID]
	if !ok {
		c = &domain.UsageCounters{}
		m.counters[userID] = c
	}
	c.Of(kind)[lang]++
	return nil
}

func (m *memUsageRepo) Counters(_ context.Context, userID string) (domain.UsageCounters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[userID]; ok {
		return *c, nil
	}
	return domain.UsageCounters{}, nil
}

func (m *memUsageRepo) AddSharedLink(ctx context.Context, userID string, link domain.SharedLink) (bool, error) {
	if _, err := m.users.GetByID(ctx, userID); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.link.ShareID == link.ShareID {
			if l.userID != userID {
				return false, repository.ErrDuplicateShareID
			}
			return false, nil
		}
	}
	m.links = append(m.links, memLink{userID: userID, link: link})
	return true, nil
}

func (m *memUsageRepo) ListSharedLinks(_ context.Context, userID string) ([]domain.SharedLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SharedLink
	for _, l := range m.links {
		if l.userID == userID {
			out = append(out, l.link)
		}
	}
	return out, nil
}

func (m *memUsageRepo) remove(match func(memLink) bool) int64 {
	kept := m.links[:0]
	var n int64
	for _, l := range m.links {
		if match(l) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	m.links = kept
	return n
}

func (m *memUsageRepo) DeleteExpiredSharedLinks(_ context.Context, userID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remove(func(l memLink) bool { return l.userID == userID && l.link.Expired(now) }), nil
}

func (m *memUsageRepo) DeleteSharedLink(_ context.Context, userID, shareID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remove(func(l memLink) bool { return l.userID == userID && l.link.ShareID == shareID }) > 0, nil
}

func (m *memUsageRepo) SharedLinkOwner(_ context.Context, shareID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.link.ShareID == shareID {
			return l.userID, nil
		}
	}
	return "", pgx.ErrNoRows
}

func (m *memUsageRepo) PurgeExpiredSharedLinks(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remove(func(l memLink) bool { return l.link.Expired(now) }), nil
}

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (s *captureSender) SendVerificationOTP(_ context.Context, toEmail, code string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.codes[toEmail] = code
	return nil
}

func (s *captureSender) SendPasswordChanged(context.Context, string) error {
	return nil
}

func (s *captureSender) SendUsernameChanged(context.Context, string, string, string) error {
	return nil
}

func (s *captureSender) SendAccountDeleted(context.Context, string) error {
	return nil
}

func (s *captureSender) code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type fakeRecaptcha struct {
	ok  bool
	err error
}

func (f fakeRecaptcha) Verify(context.Context, string) (bool, error) {
	return f.ok, f.err
}

type testServer struct {
	router   *gin.Engine
	users    *memUserRepo
	mailer   *captureSender
	jwt      *service.JWTService
	accounts *service.AccountService
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	users := newMemUserRepo()
	usageRepo := newMemUsageRepo(users)
	mailer := &captureSender{codes: make(map[string]string)}
	jwtSvc := service.NewJWTService("test-secret", 0)

	accounts := service.NewAccountService(zap.NewNop(), users, nil, mailer, jwtSvc, nil, nil,
		service.WithHasher(service.NewBcryptHasher(bcrypt.MinCost)))
	usage := service.NewUsageService(zap.NewNop(), users, usageRepo, nil)

	router := NewRouter(zap.NewNop(), RouterOptions{
		JWT:            jwtSvc,
		Recaptcha:      fakeRecaptcha{ok: true},
		Cleanup:        accounts.CleanupExpiredUnverified,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	},
		NewAccountHandler(zap.NewNop(), accounts, usage),
		NewUsageHandler(zap.NewNop(), usage),
		nil,
	)
	return &testServer{router: router, users: users, mailer: mailer, jwt: jwtSvc, accounts: accounts}
}

func performRequest(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// botHeaders devuelve los headers de una request que pasa el bot-check.
func botHeaders(token string) map[string]string {
	h := map[string]string{recaptchaHeader: "captcha-ok"}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	return h
}

func decodeBody(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out
}
