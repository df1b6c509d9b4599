package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"online-ide/internal/domain"
)

type usageFixture struct {
	svc   *UsageService
	users *mockUserRepo
	usage *mockUsageRepo
	audit *mockAudit
	clock *testClock
}

func newUsageFixture(t *testing.T, usernames ...string) *usageFixture {
	t.Helper()
	f := &usageFixture{
		users: newMockUserRepo(),
		audit: &mockAudit{},
		clock: newTestClock(),
	}
	f.usage = newMockUsageRepo(f.users)
	f.svc = NewUsageService(nil, f.users, f.usage, f.audit)
	f.svc.now = f.clock.Now
	for _, name := range usernames {
		err := f.users.Create(context.Background(), domain.User{
			ID:       "id-" + name,
			Username: name,
			Email:    name + "@x.com",
			State:    domain.Verified{PasswordHash: "hash"},
		})
		if err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	return f
}

func TestUsageService_IncrementSingleKey(t *testing.T) {
	f := newUsageFixture(t, "alice")
	ctx := context.Background()

	if err := f.svc.IncrementCounter(ctx, UserRef{ID: "id-alice"}, domain.CounterGenerate, "python"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	counters, err := f.svc.Counters(ctx, "id-alice")
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	for _, l := range domain.Languages() {
		want := int64(0)
		if l == domain.LangPython {
			want = 1
		}
		if counters.Generate[l] != want {
			t.Fatalf("generate[%s] = %d, want %d", l, counters.Generate[l], want)
		}
		if counters.Refactor[l] != 0 || counters.Run[l] != 0 {
			t.Fatalf("expected other counters untouched for %s", l)
		}
	}
	if actions := f.audit.actions(); len(actions) != 1 || actions[0] != domain.AuditUpdate {
		t.Fatalf("expected one update mirror, got %v", actions)
	}
}

func TestUsageService_UnknownLanguage(t *testing.T) {
	f := newUsageFixture(t, "alice")
	ctx := context.Background()

	err := f.svc.IncrementCounter(ctx, UserRef{ID: "id-alice"}, domain.CounterRefactor, "cobol")
	if !errors.Is(err, ErrUnsupportedLang) {
		t.Fatalf("expected unsupported language, got %v", err)
	}
	err = f.svc.IncrementCounter(ctx, UserRef{Username: "alice"}, domain.CounterRun, "HtmlJsCss")
	if !errors.Is(err, ErrUnsupportedLang) {
		t.Fatalf("expected HtmlJsCss to be rejected for run, got %v", err)
	}
	counters, _ := f.svc.Counters(ctx, "id-alice")
	if counters != (domain.UsageCounters{}) {
		t.Fatalf("expected counters unchanged, got %+v", counters)
	}
	if len(f.audit.actions()) != 0 {
		t.Fatalf("expected no audit on rejected increment")
	}
}

func TestUsageService_IncrementUnknownUser(t *testing.T) {
	f := newUsageFixture(t)
	ctx := context.Background()

	if err := f.svc.IncrementCounter(ctx, UserRef{Username: "ghost"}, domain.CounterRun, "python"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
	if err := f.svc.IncrementCounter(ctx, UserRef{}, domain.CounterRun, "python"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found without ref, got %v", err)
	}
}

func TestUsageService_ConcurrentRunIncrements(t *testing.T) {
	f := newUsageFixture(t, "runner")
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.svc.IncrementCounter(ctx, UserRef{Username: "runner"}, domain.CounterRun, "go")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	counters, _ := f.svc.Counters(ctx, "id-runner")
	if counters.Run[domain.LangGo] != 4 {
		t.Fatalf("expected 4 runs, got %d", counters.Run[domain.LangGo])
	}
}

func TestUsageService_AddSharedLinkIdempotent(t *testing.T) {
	f := newUsageFixture(t, "alice")
	ctx := context.Background()

	if err := f.svc.AddSharedLink(ctx, "id-alice", "py-1", "first", 60); err != nil {
		t.Fatalf("add link: %v", err)
	}
	if err := f.svc.AddSharedLink(ctx, "id-alice", "py-1", "second", 30); err != nil {
		t.Fatalf("duplicate add: %v", err)
	}
	links, err := f.svc.ListSharedLinks(ctx, "id-alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(links) != 1 || links[0].Title != "first" {
		t.Fatalf("expected single original link, got %+v", links)
	}
	if n := len(f.audit.actions()); n != 1 {
		t.Fatalf("expected one mirror for the single insert, got %d", n)
	}
}

func TestUsageService_AddSharedLinkOwnedByOtherUser(t *testing.T) {
	f := newUsageFixture(t, "alice", "bob")
	ctx := context.Background()

	if err := f.svc.AddSharedLink(ctx, "id-alice", "go-1", "mine", 60); err != nil {
		t.Fatalf("add link: %v", err)
	}
	if err := f.svc.AddSharedLink(ctx, "id-bob", "go-1", "theirs", 60); !errors.Is(err, ErrShareIDTaken) {
		t.Fatalf("expected share id conflict, got %v", err)
	}
	links, _ := f.svc.ListSharedLinks(ctx, "id-bob")
	if len(links) != 0 {
		t.Fatalf("expected no link for bob, got %+v", links)
	}
	links, _ = f.svc.ListSharedLinks(ctx, "id-alice")
	if len(links) != 1 || links[0].Title != "mine" {
		t.Fatalf("expected alice's link untouched, got %+v", links)
	}
}

func TestUsageService_AddSharedLinkValidation(t *testing.T) {
	f := newUsageFixture(t, "alice")
	ctx := context.Background()

	cases := []struct {
		name    string
		shareID string
		title   string
		minutes int
		want    error
	}{
		{name: "missing id", title: "t", minutes: 10, want: ErrMissingFields},
		{name: "missing title", shareID: "py-1", minutes: 10, want: ErrMissingFields},
		{name: "missing expiry", shareID: "py-1", title: "t", want: ErrMissingFields},
		{name: "negative", shareID: "py-1", title: "t", minutes: -5, want: ErrInvalidExpiry},
		{name: "too long", shareID: "py-1", title: "t", minutes: MaxSharedLinkMinutes + 1, want: ErrInvalidExpiry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := f.svc.AddSharedLink(ctx, "id-alice", tc.shareID, tc.title, tc.minutes); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if err := f.svc.AddSharedLink(ctx, "id-ghost", "py-2", "t", 10); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestUsageService_ListDropsExpired(t *testing.T) {
	f := newUsageFixture(t, "alice")
	ctx := context.Background()

	if err := f.svc.AddSharedLink(ctx, "id-alice", "py-short", "short", 10); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.svc.AddSharedLink(ctx, "id-alice", "py-long", "long", 60); err != nil {
		t.Fatalf("add: %v", err)
	}
	f.clock.Advance(30 * time.Minute)

	links, err := f.svc.ListSharedLinks(ctx, "id-alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(links) != 1 || links[0].ShareID != "py-long" {
		t.Fatalf("expected only unexpired link, got %+v", links)
	}
	for _, l := range links {
		if !l.ExpiresAt.After(f.clock.Now()) {
			t.Fatalf("listed expired link %s", l.ShareID)
		}
	}
}

func TestUsageService_RemoveSharedLink(t *testing.T) {
	f := newUsageFixture(t, "alice", "bob")
	ctx := context.Background()

	if err := f.svc.AddSharedLink(ctx, "id-alice", "py-a", "a", 60); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.svc.AddSharedLink(ctx, "id-alice", "py-b", "b", 60); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := f.svc.RemoveSharedLink(ctx, "id-bob", "py-a"); !errors.Is(err, ErrSharedLinkNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
	if err := f.svc.RemoveSharedLink(ctx, "id-alice", "py-a"); err != nil {
		t.Fatalf("remove with session: %v", err)
	}
	if err := f.svc.RemoveSharedLink(ctx, "", "py-b"); err != nil {
		t.Fatalf("remove by owner: %v", err)
	}
	if err := f.svc.RemoveSharedLink(ctx, "", "py-b"); !errors.Is(err, ErrSharedLinkNotFound) {
		t.Fatalf("expected not found after removal, got %v", err)
	}
	if err := f.svc.RemoveSharedLink(ctx, "", ""); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected missing fields, got %v", err)
	}
	links, _ := f.svc.ListSharedLinks(ctx, "id-alice")
	if len(links) != 0 {
		t.Fatalf("expected no links left, got %+v", links)
	}
}

func TestUsageService_PurgeExpiredSharedLinks(t *testing.T) {
	f := newUsageFixture(t, "alice", "bob")
	ctx := context.Background()

	_ = f.svc.AddSharedLink(ctx, "id-alice", "py-a", "a", 10)
	_ = f.svc.AddSharedLink(ctx, "id-bob", "py-b", "b", 10)
	_ = f.svc.AddSharedLink(ctx, "id-bob", "py-c", "c", 1440)
	f.clock.Advance(time.Hour)

	n, err := f.svc.PurgeExpiredSharedLinks(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 purged, got %d %v", n, err)
	}
}
