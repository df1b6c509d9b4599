package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"online-ide/internal/domain"
	"online-ide/internal/google"
	"online-ide/internal/repository"
)

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]domain.User)}
}

func (m *mockUserRepo) conflict(user domain.User) error {
	for id, u := range m.users {
		if id == user.ID {
			continue
		}
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
		if g := user.GoogleID(); g != "" && u.GoogleID() == g {
			return repository.ErrDuplicateGoogleID
		}
	}
	return nil
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	if _, err := domain.ColumnsFromState(user.State); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.conflict(user); err != nil {
		return err
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Username == username })
}

func (m *mockUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *mockUserRepo) Update(_ context.Context, user domain.User) error {
	if _, err := domain.ColumnsFromState(user.State); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	if err := m.conflict(user); err != nil {
		return err
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) DeleteExpiredUnverified(_ context.Context, now time.Time) (int64, error) {
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

func (m *mockUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

type storedLink struct {
	userID string
	seq    int
	link   domain.SharedLink
}

type mockUsageRepo struct {
	mu       sync.Mutex
	users    *mockUserRepo
	counters map[string]*domain.UsageCounters
	links    map[string]storedLink
	seq      int
}

func newMockUsageRepo(users *mockUserRepo) *mockUsageRepo {
	return &mockUsageRepo{
		users:    users,
		counters: make(map[string]*domain.UsageCounters),
		links:    make(map[string]storedLink),
	}
}

func (m *mockUsageRepo) exists(userID string) bool {
	_, err := m.users.GetByID(context.Background(), userID)
	return err == nil
}

func (m *mockUsageRepo) Increment(_ context.Context, userID string, kind domain.CounterKind, lang domain.Language) error {
	if !m.exists(userID) {
		return pgx.ErrNoRows
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

func (m *mockUsageRepo) Counters(_ context.Context, userID string) (domain.UsageCounters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[userID]; ok {
		return *c, nil
	}
	return domain.UsageCounters{}, nil
}

func (m *mockUsageRepo) AddSharedLink(_ context.Context, userID string, link domain.SharedLink) (bool, error) {
	if !m.exists(userID) {
		return false, pgx.ErrNoRows
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.links[link.ShareID]; ok {
		if existing.userID != userID {
			return false, repository.ErrDuplicateShareID
		}
		return false, nil
	}
	m.seq++
	m.links[link.ShareID] = storedLink{userID: userID, seq: m.seq, link: link}
	return true, nil
}

func (m *mockUsageRepo) ListSharedLinks(_ context.Context, userID string) ([]domain.SharedLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stored []storedLink
	for _, l := range m.links {
		if l.userID == userID {
			stored = append(stored, l)
		}
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].seq < stored[j].seq })
	out := make([]domain.SharedLink, 0, len(stored))
	for _, l := range stored {
		out = append(out, l.link)
	}
	return out, nil
}

func (m *mockUsageRepo) DeleteExpiredSharedLinks(_ context.Context, userID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, l := range m.links {
		if l.userID == userID && l.link.Expired(now) {
			delete(m.links, id)
			n++
		}
	}
	return n, nil
}

func (m *mockUsageRepo) DeleteSharedLink(_ context.Context, userID, shareID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[shareID]
	if !ok || l.userID != userID {
		return false, nil
	}
	delete(m.links, shareID)
	return true, nil
}

func (m *mockUsageRepo) SharedLinkOwner(_ context.Context, shareID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[shareID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return l.userID, nil
}

func (m *mockUsageRepo) PurgeExpiredSharedLinks(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, l := range m.links {
		if l.link.Expired(now) {
			delete(m.links, id)
			n++
		}
	}
	return n, nil
}

type auditEntry struct {
	userID string
	action domain.AuditAction
}

type mockAudit struct {
	mu      sync.Mutex
	entries []auditEntry
	err     error
}

func (m *mockAudit) Mirror(_ context.Context, userID string, action domain.AuditAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditEntry{userID: userID, action: action})
	return m.err
}

func (m *mockAudit) actions() []domain.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.action)
	}
	return out
}

type mockEmailSender struct {
	mu       sync.Mutex
	codes    map[string]string
	notices  []string
	otpErr   error
	noticeEr error
}

func newMockEmailSender() *mockEmailSender {
	return &mockEmailSender{codes: make(map[string]string)}
}

func (m *mockEmailSender) SendVerificationOTP(_ context.Context, toEmail string, code string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.otpErr != nil {
		return m.otpErr
	}
	m.codes[toEmail] = code
	return nil
}

func (m *mockEmailSender) record(notice string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, notice)
	return m.noticeEr
}

func (m *mockEmailSender) SendPasswordChanged(_ context.Context, toEmail string) error {
	return m.record("password:" + toEmail)
}

func (m *mockEmailSender) SendUsernameChanged(_ context.Context, toEmail, oldUsername, newUsername string) error {
	return m.record("username:" + toEmail + ":" + oldUsername + "->" + newUsername)
}

func (m *mockEmailSender) SendAccountDeleted(_ context.Context, toEmail string) error {
	return m.record("deleted:" + toEmail)
}

func (m *mockEmailSender) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

func (m *mockEmailSender) noticeList() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.notices, ",")
}

type mockSessions struct{}

func (mockSessions) Issue(user domain.User) (string, error) {
	return "token-" + user.ID, nil
}

type mockGoogle struct {
	identity google.Identity
	err      error
}

func (m mockGoogle) Verify(context.Context, string) (google.Identity, error) {
	if m.err != nil {
		return google.Identity{}, m.err
	}
	return m.identity, nil
}

var errFake = errors.New("fake failure")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type accountFixture struct {
	svc    *AccountService
	users  *mockUserRepo
	audit  *mockAudit
	mailer *mockEmailSender
	clock  *testClock
}

func newAccountFixture(g GoogleVerifier) *accountFixture {
	f := &accountFixture{
		users:  newMockUserRepo(),
		audit:  &mockAudit{},
		mailer: newMockEmailSender(),
		clock:  newTestClock(),
	}
	f.svc = NewAccountService(nil, f.users, f.audit, f.mailer, mockSessions{}, g, nil,
		WithHasher(NewBcryptHasher(bcrypt.MinCost)),
		WithClock(f.clock.Now),
	)
	return f
}
