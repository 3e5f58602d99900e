package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubSignOuter struct {
	tokens []string
	err    error
}

func (s *stubSignOuter) SignOut(_ context.Context, token string) error {
	s.tokens = append(s.tokens, token)
	return s.err
}

func newTestManager(t *testing.T, store *memStore, opts ...ManagerOption) *Manager {
	t.Helper()
	m, err := NewManager(newTestResolver(t, store), opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestManagerCachesForSessionLifetime(t *testing.T) {
	store := newMemStore()
	store.users["u1"] = &Profile{ID: "u1", Role: RoleAdmin}
	m := newTestManager(t, store)
	s := &Session{UserID: "u1", AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}

	if _, err := m.Bootstrap(context.Background(), s); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	lookups := store.lookups
	res, err := m.Bootstrap(context.Background(), s)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if store.lookups != lookups {
		t.Fatalf("expected cache hit, store saw %d extra lookups", store.lookups-lookups)
	}
	if res.Session != s {
		t.Fatalf("cached resolution must carry the caller's session")
	}
}

func TestManagerDoesNotCacheExpiredSession(t *testing.T) {
	store := newMemStore()
	store.users["u1"] = &Profile{ID: "u1", Role: RoleAdmin}
	m := newTestManager(t, store)
	s := &Session{UserID: "u1", AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Minute)}

	_, _ = m.Bootstrap(context.Background(), s)
	lookups := store.lookups
	_, _ = m.Bootstrap(context.Background(), s)
	if store.lookups == lookups {
		t.Fatalf("expired session must not be served from cache")
	}
}

func TestManagerDiscardsCancelledResolution(t *testing.T) {
	store := newMemStore()
	store.users["u1"] = &Profile{ID: "u1", Role: RoleAdmin}
	m := newTestManager(t, store)
	s := &Session{UserID: "u1", AccessToken: "tok"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Bootstrap(ctx, s); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, ok, _ := m.cache.Get(context.Background(), s.Key()); ok {
		t.Fatal("stale completion must not be cached")
	}
}

func TestManagerObserversAndSignOut(t *testing.T) {
	store := newMemStore()
	store.users["u1"] = &Profile{ID: "u1", Role: RoleViewer}
	signer := &stubSignOuter{}
	m := newTestManager(t, store, WithSignOuter(signer))

	var events []EventKind
	unsubscribe := m.Subscribe(func(e Event) { events = append(events, e.Kind) })

	s := &Session{UserID: "u1", AccessToken: "tok"}
	if _, err := m.HandleAuthEvent(context.Background(), EventSignedIn, s); err != nil {
		t.Fatalf("HandleAuthEvent: %v", err)
	}
	if err := m.SignOut(context.Background(), s); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if len(signer.tokens) != 1 || signer.tokens[0] != "tok" {
		t.Fatalf("auth service not called: %v", signer.tokens)
	}
	if _, ok, _ := m.cache.Get(context.Background(), s.Key()); ok {
		t.Fatal("sign-out must clear cached identity")
	}

	unsubscribe()
	unsubscribe()
	_, _ = m.HandleAuthEvent(context.Background(), EventUserUpdated, s)

	want := []EventKind{EventSignedIn, EventSignedOut}
	if len(events) != len(want) {
		t.Fatalf("unexpected events %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, events[i], want[i])
		}
	}
}

func TestManagerPublishesResolutionFailure(t *testing.T) {
	store := newMemStore()
	store.staleToken = "old"
	m := newTestManager(t, store)

	var got []Event
	m.Subscribe(func(e Event) { got = append(got, e) })

	_, err := m.Bootstrap(context.Background(), &Session{UserID: "u1", AccessToken: "old"})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if len(got) != 1 || got[0].Kind != EventResolutionFailed {
		t.Fatalf("expected resolution_failed event, got %+v", got)
	}
}

func TestManagerRefreshRekeysCache(t *testing.T) {
	store := newMemStore()
	store.staleToken = "old"
	store.users["u1"] = &Profile{ID: "u1", Role: RoleViewer}
	resolver := newTestResolver(t, store, WithRefresher(&stubRefresher{session: &Session{UserID: "u1", AccessToken: "new"}}))
	m, err := NewManager(resolver)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	var kinds []EventKind
	m.Subscribe(func(e Event) { kinds = append(kinds, e.Kind) })

	res, err := m.Bootstrap(context.Background(), &Session{UserID: "u1", AccessToken: "old", RefreshToken: "r"})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if _, ok, _ := m.cache.Get(context.Background(), res.Session.Key()); !ok {
		t.Fatal("refreshed session should be cached under its new key")
	}
	if len(kinds) != 1 || kinds[0] != EventTokenRefreshed {
		t.Fatalf("expected token_refreshed, got %v", kinds)
	}
}

func TestParseEventKind(t *testing.T) {
	if k, ok := ParseEventKind("token_refreshed"); !ok || k != EventTokenRefreshed {
		t.Fatalf("unexpected %q %v", k, ok)
	}
	if _, ok := ParseEventKind("resolution_failed"); ok {
		t.Fatal("internal event kinds are not accepted from clients")
	}
}
